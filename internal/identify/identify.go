// Package identify classifies scanned devices. It fills in the vendor from
// the MAC address, infers a DeviceType from an ordered rule cascade, and
// collects the agents detected on the device's services.
//
// The cascade is evaluated top to bottom and the first matching rule wins.
// Hostname rules come first because a user-assigned or advertised name is
// the strongest signal available; port and vendor rules follow.
package identify

import (
	"strings"

	"github.com/anstrom/netrecon/internal/netmap"
	"github.com/anstrom/netrecon/internal/vendor"
)

// Evidence is the normalized input the rules match against.
type Evidence struct {
	Hostname string
	Vendor   string
	Ports    map[uint16]bool
}

// NewEvidence extracts evidence from a device. Hostname and vendor are
// lowercased; ports are those of open services.
func NewEvidence(d netmap.Device) Evidence {
	ports := make(map[uint16]bool, len(d.Services))
	for _, s := range d.OpenServices() {
		ports[s.Port] = true
	}
	return Evidence{
		Hostname: strings.ToLower(d.Hostname),
		Vendor:   strings.ToLower(d.Vendor),
		Ports:    ports,
	}
}

// HasAny reports whether any of the given ports is open.
func (e Evidence) HasAny(ports ...uint16) bool {
	for _, p := range ports {
		if e.Ports[p] {
			return true
		}
	}
	return false
}

// VendorIs reports whether the vendor contains any of the given names.
func (e Evidence) VendorIs(names ...string) bool {
	return containsAny(e.Vendor, names)
}

// HostnameHas reports whether the hostname contains any of the keywords.
func (e Evidence) HostnameHas(keywords ...string) bool {
	return containsAny(e.Hostname, keywords)
}

func containsAny(s string, subs []string) bool {
	if s == "" {
		return false
	}
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Identify returns the device with vendor, device type and detected agents
// filled in. It does not modify the input.
//
// A device already typed as Router (the default gateway) keeps that type
// when no rule matches.
func Identify(d netmap.Device) netmap.Device {
	if d.Vendor == "" {
		if name, ok := vendor.Lookup(d.MAC); ok {
			d.Vendor = name
		}
	}

	if t := InferDeviceType(d); t != netmap.DeviceTypeUnknown || d.DeviceType != netmap.DeviceTypeRouter {
		d.DeviceType = t
	}

	d.DetectedAgents = detectedAgents(d.Services)
	return d
}

// IdentifyAll identifies every device in place.
func IdentifyAll(devices []netmap.Device) {
	for i := range devices {
		devices[i] = Identify(devices[i])
	}
}

// InferDeviceType runs the rule cascade and returns the first match, or
// Unknown.
func InferDeviceType(d netmap.Device) netmap.DeviceType {
	if r, ok := Match(d); ok {
		return r.Type
	}
	return netmap.DeviceTypeUnknown
}

// Match returns the first rule matching the device.
func Match(d netmap.Device) (Rule, bool) {
	e := NewEvidence(d)
	for _, r := range rules {
		if r.Match(e) {
			return r, true
		}
	}
	return Rule{}, false
}

func detectedAgents(services []netmap.Service) []string {
	agents := make([]string, 0)
	seen := make(map[string]bool)
	for _, s := range services {
		if s.DetectedAgent == "" || seen[s.DetectedAgent] {
			continue
		}
		seen[s.DetectedAgent] = true
		agents = append(agents, s.DetectedAgent)
	}
	return agents
}

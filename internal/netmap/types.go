// Package netmap defines the device model shared by every stage of a
// network scan: devices and their services, the device type taxonomy,
// scan phases and the progress snapshots a scan emits.
package netmap

import (
	"fmt"
	"time"
)

// UnknownMAC is used for devices whose hardware address could not be resolved.
const UnknownMAC = "00:00:00:00:00:00"

// SelfHostname labels the host running the scan.
const SelfHostname = "This device"

// CommonPorts is the fixed list scanned on every discovered device.
var CommonPorts = []uint16{
	21, 22, 23, 25, 53, 80, 139, 443, 445, 548, 554, 3389, 5000, 5001,
	8080, 8443, 9100, 62078, 8008, 8009, 3000, 3001, 8000, 8001, 11434, 9229, 8501,
}

// DeviceType is the inferred category of a device.
type DeviceType int

const (
	DeviceTypeUnknown DeviceType = iota
	DeviceTypeRouter
	DeviceTypePhone
	DeviceTypeComputer
	DeviceTypeLaptop
	DeviceTypeTablet
	DeviceTypeSmartTV
	DeviceTypePrinter
	DeviceTypeNAS
	DeviceTypeIoT
	DeviceTypeGameConsole
)

var deviceTypeNames = map[DeviceType]string{
	DeviceTypeUnknown:     "Unknown",
	DeviceTypeRouter:      "Router",
	DeviceTypePhone:       "Phone",
	DeviceTypeComputer:    "Computer",
	DeviceTypeLaptop:      "Laptop",
	DeviceTypeTablet:      "Tablet",
	DeviceTypeSmartTV:     "Smart TV",
	DeviceTypePrinter:     "Printer",
	DeviceTypeNAS:         "NAS",
	DeviceTypeIoT:         "IoT Device",
	DeviceTypeGameConsole: "Game Console",
}

func (t DeviceType) String() string {
	if name, ok := deviceTypeNames[t]; ok {
		return name
	}
	return deviceTypeNames[DeviceTypeUnknown]
}

// MarshalText renders the display name, so JSON output matches the CLI.
func (t DeviceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts any display name produced by MarshalText.
func (t *DeviceType) UnmarshalText(text []byte) error {
	*t = ParseDeviceType(string(text))
	return nil
}

// ParseDeviceType maps a stored display name back onto a DeviceType.
// Unrecognized names yield DeviceTypeUnknown.
func ParseDeviceType(name string) DeviceType {
	for t, n := range deviceTypeNames {
		if n == name {
			return t
		}
	}
	switch name {
	case "SmartTV":
		return DeviceTypeSmartTV
	case "IoT":
		return DeviceTypeIoT
	case "GameConsole":
		return DeviceTypeGameConsole
	}
	return DeviceTypeUnknown
}

// Protocol is the transport a service was observed on.
type Protocol string

const (
	ProtocolTCP Protocol = "TCP"
	ProtocolUDP Protocol = "UDP"
)

// PortState is the observed state of a port. Only PortOpen is ever recorded
// by the scanner.
type PortState string

const (
	PortOpen     PortState = "open"
	PortClosed   PortState = "closed"
	PortFiltered PortState = "filtered"
)

// Service is one observed TCP port on a device.
type Service struct {
	Port          uint16    `json:"port"`
	Protocol      Protocol  `json:"protocol"`
	State         PortState `json:"state"`
	ServiceName   string    `json:"service_name,omitempty"`
	Banner        string    `json:"banner,omitempty"`
	DetectedAgent string    `json:"detected_agent,omitempty"`
}

// Device is one physical network endpoint, identified by its MAC address.
type Device struct {
	MAC            string     `json:"mac_address"`
	IP             string     `json:"ip_address"`
	Hostname       string     `json:"hostname,omitempty"`
	Vendor         string     `json:"vendor,omitempty"`
	DeviceType     DeviceType `json:"device_type" swaggertype:"string" example:"Computer"`
	CustomName     string     `json:"custom_name,omitempty"`
	FirstSeen      time.Time  `json:"first_seen"`
	LastSeen       time.Time  `json:"last_seen"`
	IsOnline       bool       `json:"is_online"`
	Services       []Service  `json:"services"`
	DetectedAgents []string   `json:"detected_agents"`
}

// NewDevice creates an online device seen now.
func NewDevice(mac, ip string) Device {
	now := time.Now()
	return Device{
		MAC:       mac,
		IP:        ip,
		FirstSeen: now,
		LastSeen:  now,
		IsOnline:  true,
	}
}

// DisplayName picks the most human-friendly label available:
// custom name, hostname, "<vendor> <type>", then the MAC address.
func (d Device) DisplayName() string {
	switch {
	case d.CustomName != "":
		return d.CustomName
	case d.Hostname != "":
		return d.Hostname
	case d.Vendor != "":
		return fmt.Sprintf("%s %s", d.Vendor, d.DeviceType)
	default:
		return d.MAC
	}
}

// OpenServices returns the services recorded as open.
func (d Device) OpenServices() []Service {
	open := make([]Service, 0, len(d.Services))
	for _, s := range d.Services {
		if s.State == PortOpen {
			open = append(open, s)
		}
	}
	return open
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (d Device) Clone() Device {
	c := d
	if d.Services != nil {
		c.Services = append([]Service(nil), d.Services...)
	}
	if d.DetectedAgents != nil {
		c.DetectedAgents = append([]string(nil), d.DetectedAgents...)
	}
	return c
}

// CloneDevices deep-copies a device list.
func CloneDevices(devices []Device) []Device {
	if devices == nil {
		return nil
	}
	out := make([]Device, len(devices))
	for i, d := range devices {
		out[i] = d.Clone()
	}
	return out
}

// ScanPhase is one stage of a scan run. Phases are strictly ordered.
type ScanPhase int

const (
	PhaseDiscovery ScanPhase = iota
	PhasePortScan
	PhaseIdentification
	PhaseComplete
)

func (p ScanPhase) String() string {
	switch p {
	case PhaseDiscovery:
		return "Discovering devices"
	case PhasePortScan:
		return "Scanning ports"
	case PhaseIdentification:
		return "Identifying devices"
	case PhaseComplete:
		return "Complete"
	default:
		return fmt.Sprintf("ScanPhase(%d)", int(p))
	}
}

// Ordinal is the rank used to detect out-of-order progress delivery.
func (p ScanPhase) Ordinal() int {
	return int(p)
}

// MarshalText renders the phase name.
func (p ScanPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ScanProgress is an immutable snapshot of a running scan.
type ScanProgress struct {
	Phase         ScanPhase `json:"phase" swaggertype:"string" example:"Scanning ports"`
	DevicesFound  int       `json:"devices_found"`
	CurrentDevice string    `json:"current_device,omitempty"`
	PortsScanned  int       `json:"ports_scanned"`
	TotalPorts    int       `json:"total_ports"`
}

// Percent estimates completion in the range 0-100.
func (p ScanProgress) Percent() float64 {
	switch p.Phase {
	case PhaseComplete:
		return 100
	case PhasePortScan:
		if p.TotalPorts == 0 {
			return 0
		}
		pct := float64(p.PortsScanned) / float64(p.TotalPorts) * 100
		if pct > 100 {
			pct = 100
		}
		return pct
	case PhaseIdentification:
		return 100
	default:
		return 0
	}
}

// Package discovery enumerates the devices on the local network. It reads
// the operating system's ARP cache, resolves the default gateway, and can
// optionally sweep the local /24 first so that quiet hosts show up in the
// cache. All OS access goes through small interfaces so that tests and the
// demo network can substitute their own sources.
package discovery

import (
	"context"
	stderrors "errors"
	"net/netip"
	"runtime"
	"time"

	"github.com/anstrom/netrecon/internal/errors"
	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/metrics"
	"github.com/anstrom/netrecon/internal/netmap"
)

// Options wires the collaborators of a Discoverer. Nil fields fall back
// to the system implementations for the current OS.
type Options struct {
	ARP       ARPTable
	Routes    RouteTable
	Sweeper   Sweeper
	LocalAddr LocalAddrFunc
	Logger    *logging.Logger
}

// Discoverer produces the initial device set of a scan.
type Discoverer struct {
	arp       ARPTable
	routes    RouteTable
	sweeper   Sweeper
	localAddr LocalAddrFunc
	logger    *logging.Logger
}

// New creates a Discoverer.
func New(opts Options) *Discoverer {
	d := &Discoverer{
		arp:       opts.ARP,
		routes:    opts.Routes,
		sweeper:   opts.Sweeper,
		localAddr: opts.LocalAddr,
		logger:    opts.Logger,
	}
	if d.arp == nil {
		d.arp = SystemARPTable()
	}
	if d.routes == nil {
		d.routes = SystemRouteTable()
	}
	if d.localAddr == nil {
		d.localAddr = LocalIPv4
	}
	if d.logger == nil {
		d.logger = logging.Default()
	}
	d.logger = d.logger.WithComponent("discovery")
	return d
}

// SystemARPTable returns the neighbor cache reader for the current OS.
func SystemARPTable() ARPTable {
	if runtime.GOOS == "linux" {
		return ProcARPTable{}
	}
	return CommandARPTable{}
}

// SystemRouteTable returns the route table reader for the current OS.
func SystemRouteTable() RouteTable {
	if runtime.GOOS == "linux" {
		return ProcRouteTable{}
	}
	return CommandRouteTable{}
}

// Discover returns the devices currently known to the host. With
// activeSweep set, the local /24 is swept first. Only a failure to read
// both the ARP table and the route table is an error.
func (d *Discoverer) Discover(ctx context.Context, activeSweep bool) ([]netmap.Device, error) {
	start := time.Now()

	local, err := d.localAddr()
	if err != nil {
		d.logger.Debug("Could not resolve local address", "error", err)
	}

	var swept []Entry
	if activeSweep {
		swept = d.sweep(ctx, local)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, arpErr := d.arp.Entries(ctx)
	if arpErr != nil {
		d.logger.Warn("ARP table unavailable", "error", arpErr)
	}
	gateway, routeErr := d.routes.DefaultGateway(ctx)
	if routeErr != nil {
		d.logger.Warn("Route table unavailable", "error", routeErr)
	}
	if arpErr != nil && routeErr != nil {
		return nil, errors.ErrDiscoveryFailed("arp+route", stderrors.Join(arpErr, routeErr))
	}

	entries := filterEntries(append(raw, swept...))
	devices := make([]netmap.Device, 0, len(entries)+1)
	for _, e := range entries {
		devices = append(devices, netmap.NewDevice(e.MAC, e.IP))
	}

	if gateway != "" && !containsIP(devices, gateway) {
		mac, ok := d.arp.Lookup(ctx, gateway)
		if !ok {
			mac = netmap.UnknownMAC
		}
		gw := netmap.NewDevice(mac, gateway)
		gw.DeviceType = netmap.DeviceTypeRouter
		devices = append(devices, gw)
	}

	if local.IsValid() {
		self := local.String()
		for i := range devices {
			if devices[i].IP == self {
				devices[i].Hostname = netmap.SelfHostname
			}
		}
	}

	method := "arp"
	if activeSweep && d.sweeper != nil {
		method = d.sweeper.Name()
	}
	m := metrics.GetGlobalMetrics()
	m.RecordDiscoveryDuration(method, time.Since(start))
	m.AddDevicesDiscovered(method, len(devices))

	d.logger.Info("Discovery finished",
		"devices", len(devices),
		"gateway", gateway,
		"active_sweep", activeSweep,
		"duration", time.Since(start))

	return devices, nil
}

func (d *Discoverer) sweep(ctx context.Context, local netip.Addr) []Entry {
	if d.sweeper == nil {
		return nil
	}
	if !local.IsValid() || !local.Is4() {
		d.logger.Debug("Skipping active sweep without a local IPv4 address")
		return nil
	}

	prefix := SweepPrefix(local)
	entries, err := d.sweeper.Sweep(ctx, prefix)
	if err != nil && ctx.Err() == nil {
		d.logger.ErrorDiscovery("Active sweep failed", prefix.String(), err, "method", d.sweeper.Name())
	}
	return entries
}

func containsIP(devices []netmap.Device, ip string) bool {
	for _, d := range devices {
		if d.IP == ip {
			return true
		}
	}
	return false
}

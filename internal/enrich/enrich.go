// Package enrich fills in device hostnames after discovery. Resolvers are
// tried in order and only devices that still have no hostname are handed to
// the next one. Resolution failures are logged and otherwise ignored.
package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/netmap"
)

// Resolver maps device IPs to hostnames. Resolvers receive the full device
// list and only need to name devices whose Hostname is empty.
type Resolver interface {
	Name() string
	ResolveHostnames(ctx context.Context, devices []netmap.Device) (map[string]string, error)
}

// Chain runs resolvers in order.
type Chain struct {
	resolvers []Resolver
	logger    *logging.Logger
}

// NewChain creates a chain. A nil logger uses the default logger.
func NewChain(logger *logging.Logger, resolvers ...Resolver) *Chain {
	if logger == nil {
		logger = logging.Default()
	}
	return &Chain{resolvers: resolvers, logger: logger.WithComponent("enrich")}
}

// Len returns the number of resolvers.
func (c *Chain) Len() int {
	return len(c.resolvers)
}

// Enrich sets the hostname of every device that has none and that some
// resolver can name. Existing hostnames are never replaced.
func (c *Chain) Enrich(ctx context.Context, devices []netmap.Device) {
	for _, r := range c.resolvers {
		pending := len(unnamed(devices))
		if pending == 0 || ctx.Err() != nil {
			return
		}

		start := time.Now()
		names, err := r.ResolveHostnames(ctx, devices)
		if err != nil {
			c.logger.Debug("Hostname resolver failed", "resolver", r.Name(), "error", err)
		}

		filled := 0
		for i := range devices {
			if devices[i].Hostname != "" {
				continue
			}
			if name := CleanHostname(names[devices[i].IP]); name != "" {
				devices[i].Hostname = name
				filled++
			}
		}
		c.logger.Debug("Hostname resolver finished",
			"resolver", r.Name(),
			"queried", pending,
			"resolved", filled,
			"duration", time.Since(start))
	}
}

func unnamed(devices []netmap.Device) []netmap.Device {
	var out []netmap.Device
	for _, d := range devices {
		if d.Hostname == "" {
			out = append(out, d)
		}
	}
	return out
}

// CleanHostname strips the trailing root dot and the mDNS ".local" suffix.
func CleanHostname(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ".")
	name = strings.TrimSuffix(name, ".local")
	return name
}

// gateway returns the IP of the first router-typed device.
func gateway(devices []netmap.Device) string {
	for _, d := range devices {
		if d.DeviceType == netmap.DeviceTypeRouter {
			return d.IP
		}
	}
	return ""
}

package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/Ullaakut/nmap/v3"
)

// NmapSweeper runs an nmap ping scan (-sn) over the prefix. When nmap runs
// with privileges it reports MAC addresses, which are returned as entries.
type NmapSweeper struct {
	opts SweepOptions
}

// Name implements Sweeper.
func (s *NmapSweeper) Name() string { return SweepNmap }

// Sweep implements Sweeper.
func (s *NmapSweeper) Sweep(ctx context.Context, prefix netip.Prefix) ([]Entry, error) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout*10)
	defer cancel()

	scanner, err := nmap.NewScanner(sweepCtx, buildNmapOptions(prefix, s.opts.HostTimeout)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create nmap scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("nmap sweep failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		s.opts.Logger.Debug("nmap sweep completed with warnings", "warnings", *warnings)
	}

	return entriesFromNmap(result.Hosts), nil
}

func buildNmapOptions(prefix netip.Prefix, hostTimeout time.Duration) []nmap.Option {
	options := []nmap.Option{
		nmap.WithTargets(prefix.String()),
		nmap.WithPingScan(),
	}

	if hostTimeout <= time.Second {
		options = append(options, nmap.WithTimingTemplate(nmap.TimingAggressive))
	} else {
		options = append(options, nmap.WithTimingTemplate(nmap.TimingNormal))
	}

	return options
}

// entriesFromNmap keeps hosts that are up and carry both an IPv4 and a MAC
// address.
func entriesFromNmap(hosts []nmap.Host) []Entry {
	var entries []Entry
	for i := range hosts {
		host := &hosts[i]
		if host.Status.State != "up" {
			continue
		}

		var ip, mac string
		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				ip = addr.Addr
			case "mac":
				mac = addr.Addr
			}
		}
		if ip != "" && mac != "" {
			entries = append(entries, Entry{IP: ip, MAC: mac})
		}
	}
	return entries
}

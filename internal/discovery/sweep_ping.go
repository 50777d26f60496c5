package discovery

import (
	"context"
	"net/netip"

	"github.com/anstrom/netrecon/internal/workers"
)

// PingSweeper sends one ICMP echo per host through the system ping command.
// Pings run on a worker pool bounded by Concurrency, each cut off after
// HostTimeout.
type PingSweeper struct {
	opts SweepOptions
}

// Name implements Sweeper.
func (s *PingSweeper) Name() string { return SweepPing }

// Sweep implements Sweeper. Replies populate the ARP cache; no entries are
// returned directly.
func (s *PingSweeper) Sweep(ctx context.Context, prefix netip.Prefix) ([]Entry, error) {
	hosts := Hosts(prefix)
	tasks := make([]workers.Task, 0, len(hosts))
	for _, ip := range hosts {
		if ip.IsLoopback() {
			continue
		}
		target := ip.String()
		tasks = append(tasks, workers.NewFuncTask(target, SweepPing, func(ctx context.Context) error {
			pctx, cancel := context.WithTimeout(ctx, s.opts.HostTimeout)
			defer cancel()
			_, err := s.opts.Runner.Run(pctx, "ping", "-c", "1", "-W", "1", target)
			return err
		}))
	}

	results := workers.RunAll(ctx, workers.Config{Size: s.opts.Concurrency}, tasks)

	alive := 0
	for _, r := range results {
		if r.Err == nil {
			alive++
		}
	}
	s.opts.Logger.Debug("Ping sweep finished", "network", prefix.String(), "pinged", len(tasks), "alive", alive)

	return nil, ctx.Err()
}

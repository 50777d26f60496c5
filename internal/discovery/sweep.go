package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/anstrom/netrecon/internal/errors"
	"github.com/anstrom/netrecon/internal/logging"
)

// Sweep methods.
const (
	SweepPing = "ping"
	SweepNmap = "nmap"
	SweepARP  = "arp"
)

// Sweeper actively contacts a prefix so that live hosts land in the ARP
// cache. Sweepers that learn MAC addresses directly return them as
// entries. Individual host failures are never errors.
type Sweeper interface {
	Sweep(ctx context.Context, prefix netip.Prefix) ([]Entry, error)
	Name() string
}

// SweepOptions tunes the active sweep.
type SweepOptions struct {
	// Concurrency bounds the number of hosts contacted at once.
	Concurrency int
	// HostTimeout bounds a single host.
	HostTimeout time.Duration
	// Timeout bounds the whole sweep for sweepers that listen for replies.
	Timeout time.Duration
	// Interface names the interface for raw ARP sweeps. Empty selects the
	// default interface.
	Interface string
	// Runner executes external commands.
	Runner CommandRunner
	// Logger receives sweep diagnostics. Nil selects the default logger.
	Logger *logging.Logger
}

// DefaultSweepOptions returns the standard sweep bounds.
func DefaultSweepOptions() SweepOptions {
	return SweepOptions{
		Concurrency: 50,
		HostTimeout: 500 * time.Millisecond,
		Timeout:     3 * time.Second,
	}
}

func (o SweepOptions) normalized(method string) SweepOptions {
	def := DefaultSweepOptions()
	if o.Concurrency <= 0 {
		o.Concurrency = def.Concurrency
	}
	if o.HostTimeout <= 0 {
		o.HostTimeout = def.HostTimeout
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	o.Runner = runner(o.Runner)
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	o.Logger = o.Logger.WithComponent("discovery").WithFields("sweep_method", method)
	return o
}

// NewSweeper builds the sweeper for a method name.
func NewSweeper(method string, opts SweepOptions) (Sweeper, error) {
	if method == "" {
		method = SweepPing
	}
	opts = opts.normalized(method)
	switch method {
	case SweepPing:
		return &PingSweeper{opts: opts}, nil
	case SweepNmap:
		return &NmapSweeper{opts: opts}, nil
	case SweepARP:
		return &ARPSweeper{opts: opts}, nil
	default:
		return nil, errors.NewConfigFieldError(errors.CodeValidation,
			fmt.Sprintf("unknown sweep method %q", method), "discovery.sweep_method", method)
	}
}

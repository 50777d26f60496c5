//go:build !linux

package discovery

import (
	"context"
	"net/netip"

	"github.com/anstrom/netrecon/internal/errors"
)

// Sweep implements Sweeper.
func (s *ARPSweeper) Sweep(_ context.Context, _ netip.Prefix) ([]Entry, error) {
	return nil, errors.NewDiscoveryError(errors.CodeConfiguration,
		"raw ARP sweep is only supported on linux; use the ping or nmap sweep")
}

//go:build linux

package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"time"

	"github.com/mdlayher/arp"
)

// Sweep implements Sweeper.
func (s *ARPSweeper) Sweep(ctx context.Context, prefix netip.Prefix) ([]Entry, error) {
	ifi, err := s.iface()
	if err != nil {
		return nil, fmt.Errorf("failed to select interface: %w", err)
	}

	c, err := arp.Dial(ifi)
	if err != nil {
		return nil, fmt.Errorf("failed to open arp socket on %s: %w", ifi.Name, err)
	}
	defer c.Close()

	deadline := time.Now().Add(s.opts.Timeout)
	if err := c.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.SetReadDeadline(time.Now())
	})
	defer stop()

	go func() {
		for _, ip := range Hosts(prefix) {
			if ctx.Err() != nil {
				return
			}
			_ = c.Request(ip)
		}
	}()

	replies := make(map[netip.Addr]Entry)
	for ctx.Err() == nil && time.Now().Before(deadline) {
		pkt, _, err := c.Read()
		if err != nil {
			continue
		}
		if pkt.Operation != arp.OperationReply {
			continue
		}
		addReply(replies, prefix, pkt.SenderIP, pkt.SenderHardwareAddr)
	}

	entries := make([]Entry, 0, len(replies))
	for _, e := range replies {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, _ := netip.ParseAddr(entries[i].IP)
		b, _ := netip.ParseAddr(entries[j].IP)
		return a.Less(b)
	})
	s.opts.Logger.Debug("ARP sweep finished", "network", prefix.String(), "interface", ifi.Name, "replies", len(entries))
	return entries, ctx.Err()
}

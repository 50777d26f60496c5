package discovery

import (
	"net"
	"net/netip"
)

// ARPSweeper broadcasts raw ARP requests for every host in the prefix and
// collects the replies until Timeout. It needs CAP_NET_RAW and is only
// available on Linux.
type ARPSweeper struct {
	opts SweepOptions
}

// Name implements Sweeper.
func (s *ARPSweeper) Name() string { return SweepARP }

func (s *ARPSweeper) iface() (*net.Interface, error) {
	if s.opts.Interface != "" {
		ifi, _, err := InterfaceByName(s.opts.Interface)
		return ifi, err
	}
	ifi, _, err := DefaultInterface()
	return ifi, err
}

// addReply records the first reply seen for each sender address.
func addReply(entries map[netip.Addr]Entry, prefix netip.Prefix, ip netip.Addr, mac net.HardwareAddr) {
	if !prefix.Contains(ip) || len(mac) == 0 {
		return
	}
	if _, ok := entries[ip]; ok {
		return
	}
	entries[ip] = Entry{IP: ip.String(), MAC: mac.String()}
}

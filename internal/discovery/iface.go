package discovery

import (
	"errors"
	"net"
	"net/netip"
)

// LocalAddrFunc returns the host's own IPv4 address on the LAN.
type LocalAddrFunc func() (netip.Addr, error)

// DefaultInterface returns the first up, non-loopback interface carrying an
// IPv4 address, along with that address and its prefix.
func DefaultInterface() (*net.Interface, netip.Prefix, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, netip.Prefix{}, err
	}

	for i := range ifaces {
		iface := &ifaces[i]
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if pfx, err := firstIPv4Prefix(iface); err == nil {
			return iface, pfx, nil
		}
	}
	return nil, netip.Prefix{}, errors.New("no usable interface found")
}

// InterfaceByName returns a named interface and its first IPv4 prefix.
func InterfaceByName(name string) (*net.Interface, netip.Prefix, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, netip.Prefix{}, err
	}
	pfx, err := firstIPv4Prefix(iface)
	if err != nil {
		return nil, netip.Prefix{}, err
	}
	return iface, pfx, nil
}

func firstIPv4Prefix(iface *net.Interface) (netip.Prefix, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return netip.Prefix{}, err
	}

	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.To4() == nil {
			continue
		}
		ip, _ := netip.AddrFromSlice(ipnet.IP.To4())
		ones, _ := ipnet.Mask.Size()
		return netip.PrefixFrom(ip, ones), nil
	}
	return netip.Prefix{}, errors.New("no IPv4 address found on interface")
}

// LocalIPv4 returns the IPv4 address of the default interface.
func LocalIPv4() (netip.Addr, error) {
	_, pfx, err := DefaultInterface()
	if err != nil {
		return netip.Addr{}, err
	}
	return pfx.Addr(), nil
}

// SweepPrefix returns the /24 containing ip, which is the range swept
// before reading the ARP table.
func SweepPrefix(ip netip.Addr) netip.Prefix {
	return netip.PrefixFrom(ip, 24).Masked()
}

// Hosts lists the usable host addresses of an IPv4 prefix, skipping the
// network and broadcast addresses for prefixes shorter than /31.
func Hosts(prefix netip.Prefix) []netip.Addr {
	prefix = prefix.Masked()
	if !prefix.Addr().Is4() {
		return nil
	}

	var hosts []netip.Addr
	for ip := prefix.Addr(); prefix.Contains(ip); ip = ip.Next() {
		hosts = append(hosts, ip)
	}
	if prefix.Bits() < 31 && len(hosts) > 2 {
		hosts = hosts[1 : len(hosts)-1]
	}
	return hosts
}

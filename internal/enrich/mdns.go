package enrich

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/anstrom/netrecon/internal/netmap"
)

var mdnsGroup = &net.UDPAddr{IP: net.IPv4(224, 0, 0, 251), Port: 5353}

// MDNSResolver asks the local link for names over multicast DNS. It sends
// a service enumeration query plus a reverse PTR question per device and
// collects A, AAAA and PTR answers until the timeout.
type MDNSResolver struct {
	// Interface to listen on. Nil lets the OS choose.
	Interface *net.Interface
	Timeout   time.Duration
}

func (r *MDNSResolver) Name() string { return "mdns" }

func (r *MDNSResolver) ResolveHostnames(ctx context.Context, devices []netmap.Device) (map[string]string, error) {
	out := make(map[string]string)

	packed, err := buildMDNSQuery(devices).Pack()
	if err != nil {
		return out, err
	}

	conn, err := net.ListenMulticastUDP("udp4", r.Interface, mdnsGroup)
	if err != nil {
		return out, err
	}
	defer conn.Close()
	_ = conn.SetReadBuffer(1 << 20)

	_, _ = conn.WriteToUDP(packed, mdnsGroup)
	time.Sleep(50 * time.Millisecond)
	_, _ = conn.WriteToUDP(packed, mdnsGroup)

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 65536)

	for time.Now().Before(deadline) && ctx.Err() == nil {
		_ = conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		m := new(dns.Msg)
		if err := m.Unpack(buf[:n]); err != nil {
			continue
		}
		collectMDNSNames(m, out)
	}
	return out, nil
}

func buildMDNSQuery(devices []netmap.Device) *dns.Msg {
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn("_services._dns-sd._udp.local"), dns.TypePTR)
	for _, d := range devices {
		if d.Hostname != "" {
			continue
		}
		rev, err := dns.ReverseAddr(d.IP)
		if err != nil {
			continue
		}
		q.Question = append(q.Question, dns.Question{Name: rev, Qtype: dns.TypePTR, Qclass: dns.ClassINET})
	}
	return q
}

// collectMDNSNames records address and reverse-pointer answers by IP.
// The first name seen for an IP wins.
func collectMDNSNames(m *dns.Msg, out map[string]string) {
	add := func(ip, name string) {
		if ip == "" || name == "" {
			return
		}
		if _, ok := out[ip]; !ok {
			out[ip] = strings.TrimSuffix(name, ".")
		}
	}

	for _, rr := range append(m.Answer, m.Extra...) {
		switch t := rr.(type) {
		case *dns.A:
			add(t.A.String(), t.Hdr.Name)
		case *dns.AAAA:
			add(t.AAAA.String(), t.Hdr.Name)
		case *dns.PTR:
			add(ipFromReverse(t.Hdr.Name), t.Ptr)
		}
	}
}

// ipFromReverse turns "10.1.168.192.in-addr.arpa." into "192.168.1.10".
// Other names yield "".
func ipFromReverse(name string) string {
	name = strings.TrimSuffix(strings.ToLower(name), ".")
	rest, ok := strings.CutSuffix(name, ".in-addr.arpa")
	if !ok {
		return ""
	}
	labels := strings.Split(rest, ".")
	if len(labels) != 4 {
		return ""
	}
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	ip := net.ParseIP(strings.Join(labels, "."))
	if ip == nil || ip.To4() == nil {
		return ""
	}
	return ip.String()
}

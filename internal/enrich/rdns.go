package enrich

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/anstrom/netrecon/internal/netmap"
	"github.com/anstrom/netrecon/internal/workers"
)

// ReverseDNSResolver sends PTR queries to a DNS server. Home routers
// usually answer for their DHCP leases, so the gateway is used when no
// server is configured.
type ReverseDNSResolver struct {
	// Server is a host:port address. Empty selects the gateway on port 53.
	Server      string
	Timeout     time.Duration
	Concurrency int
}

func (r *ReverseDNSResolver) Name() string { return "rdns" }

func (r *ReverseDNSResolver) server(devices []netmap.Device) string {
	if r.Server != "" {
		return r.Server
	}
	if gw := gateway(devices); gw != "" {
		return net.JoinHostPort(gw, "53")
	}
	return ""
}

func (r *ReverseDNSResolver) ResolveHostnames(ctx context.Context, devices []netmap.Device) (map[string]string, error) {
	out := make(map[string]string)
	server := r.server(devices)
	if server == "" {
		return out, fmt.Errorf("no DNS server for reverse lookups")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	client := &dns.Client{Net: "udp", Timeout: timeout}

	var mu sync.Mutex
	var tasks []workers.Task
	for _, d := range devices {
		if d.Hostname != "" {
			continue
		}
		ip := d.IP
		tasks = append(tasks, workers.NewFuncTask("ptr-"+ip, "rdns", func(ctx context.Context) error {
			name, err := lookupPTR(ctx, client, server, ip)
			if err != nil {
				return err
			}
			mu.Lock()
			out[ip] = name
			mu.Unlock()
			return nil
		}))
	}

	cfg := workers.DefaultConfig()
	if r.Concurrency > 0 {
		cfg.Size = r.Concurrency
	}
	workers.RunAll(ctx, cfg, tasks)
	return out, nil
}

func lookupPTR(ctx context.Context, client *dns.Client, server, ip string) (string, error) {
	rev, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", err
	}
	m := new(dns.Msg)
	m.SetQuestion(rev, dns.TypePTR)
	m.RecursionDesired = true

	resp, _, err := client.ExchangeContext(ctx, m, server)
	if err != nil {
		return "", fmt.Errorf("ptr %s: %w", ip, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("ptr %s: %s", ip, dns.RcodeToString[resp.Rcode])
	}
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return ptr.Ptr, nil
		}
	}
	return "", fmt.Errorf("ptr %s: no answer", ip)
}

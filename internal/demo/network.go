// Package demo provides a fixed, simulated home network. It implements the
// collaborator interfaces of discovery, scanning and enrichment so the full
// pipeline can run without touching the real network.
package demo

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/anstrom/netrecon/internal/discovery"
	"github.com/anstrom/netrecon/internal/netmap"
)

// Host is one simulated device.
type Host struct {
	IP       string
	MAC      string
	Hostname string
	// Ports maps each open port to the banner it sends. An empty banner
	// means the service stays silent.
	Ports map[uint16]string
	// Quiet hosts are absent from the ARP cache until a sweep runs.
	Quiet bool
}

const (
	// GatewayIP is the default route of the simulated network.
	GatewayIP = "192.168.1.1"
	// LocalIP is the address of the simulated scanning host.
	LocalIP = "192.168.1.100"
	// Prefix is the simulated subnet.
	Prefix = "192.168.1.0/24"
)

var errRefused = stderrors.New("connection refused")

// Hosts returns the simulated devices. The gateway comes first.
func Hosts() []Host {
	return []Host{
		{
			IP: GatewayIP, MAC: "14:CC:20:1A:2B:01",
			Ports: map[uint16]string{
				53:  "",
				80:  "HTTP/1.1 200 OK\r\nServer: TP-Link Router\r\n\r\n",
				443: "",
			},
		},
		{
			IP: "192.168.1.10", MAC: "00:26:BB:4F:10:0A", Hostname: "studio-macbook-pro",
			Ports: map[uint16]string{
				22:   "SSH-2.0-OpenSSH_9.6",
				548:  "",
				3000: "HTTP/1.1 200 OK\r\nX-Powered-By: claude-code\r\n\r\n",
			},
		},
		{
			IP: "192.168.1.20", MAC: "8C:71:F8:22:33:44", Hostname: "living-room-tv",
			Ports: map[uint16]string{8008: "HTTP/1.1 404 Not Found\r\n\r\n", 8009: ""},
		},
		{
			IP: "192.168.1.30", MAC: "00:11:32:AB:CD:EF", Hostname: "DiskStation",
			Ports: map[uint16]string{
				22:   "SSH-2.0-OpenSSH_8.2",
				445:  "",
				5000: "HTTP/1.1 200 OK\r\nServer: nginx\r\n\r\n",
				5001: "",
			},
		},
		{
			IP: "192.168.1.40", MAC: "00:10:83:55:66:77", Hostname: "office-laserjet",
			Ports: map[uint16]string{80: "HTTP/1.1 200 OK\r\nServer: HP HTTP Server\r\n\r\n", 9100: ""},
		},
		{
			IP: "192.168.1.50", MAC: "B8:27:EB:12:34:56",
			Ports: map[uint16]string{
				22:    "SSH-2.0-OpenSSH_9.2p1 Raspbian-2",
				11434: "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nOllama is running",
			},
		},
		{
			IP: "192.168.1.60", MAC: "5C:CF:7F:A1:B2:C3", Hostname: "tasmota-plug-4711",
			Ports: map[uint16]string{80: "HTTP/1.1 200 OK\r\nServer: Tasmota/13.1\r\n\r\n"},
		},
		{
			IP: "192.168.1.70", MAC: "DA:A1:19:6E:0F:21",
		},
		{
			IP: "192.168.1.80", MAC: "98:B6:E9:01:02:03", Quiet: true,
		},
		{
			IP: "192.168.1.90", MAC: "D8:9E:F3:77:88:99", Hostname: "dev-workstation",
			Ports: map[uint16]string{
				22:    "SSH-2.0-OpenSSH_9.6p1 Ubuntu-3ubuntu13",
				3389:  "",
				8501:  "HTTP/1.1 200 OK\r\nServer: TornadoServer/6.4\r\n\r\n",
				18789: "HTTP/1.1 200 OK\r\nServer: openclaw-gateway\r\nX-Bot: clawdbot\r\n\r\n",
			},
		},
		{
			IP: LocalIP, MAC: "3E:22:FB:90:1C:5D",
		},
	}
}

// Network is the simulated network. The zero value is not usable; call
// New.
type Network struct {
	hosts   map[string]Host
	order   []string
	latency time.Duration
}

// New builds the simulated network. Latency is added to every connect
// attempt so that progress is observable.
func New(latency time.Duration) *Network {
	n := &Network{hosts: make(map[string]Host), latency: latency}
	for _, h := range Hosts() {
		n.hosts[h.IP] = h
		n.order = append(n.order, h.IP)
	}
	return n
}

// Entries returns the ARP cache: every non-quiet host except the gateway,
// plus the broadcast entry real caches carry.
func (n *Network) Entries(ctx context.Context) ([]discovery.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries := make([]discovery.Entry, 0, len(n.order)+1)
	for _, ip := range n.order {
		h := n.hosts[ip]
		if h.Quiet || ip == GatewayIP {
			continue
		}
		entries = append(entries, discovery.Entry{IP: h.IP, MAC: h.MAC})
	}
	entries = append(entries, discovery.Entry{IP: "192.168.1.255", MAC: "ff:ff:ff:ff:ff:ff"})
	return entries, nil
}

// Lookup resolves one address, as a targeted ARP request would.
func (n *Network) Lookup(_ context.Context, ip string) (string, bool) {
	h, ok := n.hosts[ip]
	if !ok {
		return "", false
	}
	return h.MAC, true
}

// DefaultGateway returns the simulated default route.
func (n *Network) DefaultGateway(_ context.Context) (string, error) {
	return GatewayIP, nil
}

// LocalAddr returns the simulated address of this host.
func (n *Network) LocalAddr() (netip.Addr, error) {
	return netip.MustParseAddr(LocalIP), nil
}

// Name identifies the demo sweeper.
func (n *Network) Name() string { return "demo" }

// Sweep reports every host in the prefix, quiet ones included.
func (n *Network) Sweep(ctx context.Context, prefix netip.Prefix) ([]discovery.Entry, error) {
	var entries []discovery.Entry
	for _, ip := range n.order {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		addr, err := netip.ParseAddr(ip)
		if err != nil || !prefix.Contains(addr) {
			continue
		}
		entries = append(entries, discovery.Entry{IP: ip, MAC: n.hosts[ip].MAC})
	}
	return entries, nil
}

// ResolveHostnames returns the advertised names of the given devices,
// keyed by IP.
func (n *Network) ResolveHostnames(_ context.Context, devices []netmap.Device) (map[string]string, error) {
	names := make(map[string]string)
	for _, d := range devices {
		if h, ok := n.hosts[d.IP]; ok && h.Hostname != "" {
			names[d.IP] = h.Hostname
		}
	}
	return names, nil
}

// DialContext connects to a simulated service. Closed ports are refused
// after the configured latency; open ports return an in-memory connection
// that answers with the host's banner.
func (n *Network) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	if n.latency > 0 {
		t := time.NewTimer(n.latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	h, ok := n.hosts[host]
	if !ok {
		return nil, &net.OpError{Op: "dial", Net: network, Err: errRefused}
	}
	banner, open := h.Ports[uint16(port)]
	if !open {
		return nil, &net.OpError{Op: "dial", Net: network, Err: errRefused}
	}

	client, server := net.Pipe()
	go serve(server, banner)
	return client, nil
}

func serve(conn net.Conn, banner string) {
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(io.Discard, conn)
	}()

	if banner != "" {
		_, _ = conn.Write([]byte(banner))
	}
	<-done
}

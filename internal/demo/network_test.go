package demo

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netrecon/internal/discovery"
	"github.com/anstrom/netrecon/internal/identify"
	"github.com/anstrom/netrecon/internal/netmap"
	"github.com/anstrom/netrecon/internal/scanning"
)

func newDiscoverer(n *Network) *discovery.Discoverer {
	return discovery.New(discovery.Options{
		ARP:       n,
		Routes:    n,
		Sweeper:   n,
		LocalAddr: n.LocalAddr,
	})
}

func findIP(devices []netmap.Device, ip string) (netmap.Device, bool) {
	for _, d := range devices {
		if d.IP == ip {
			return d, true
		}
	}
	return netmap.Device{}, false
}

func TestDiscoverDemoNetwork(t *testing.T) {
	n := New(0)

	devices, err := newDiscoverer(n).Discover(context.Background(), false)
	require.NoError(t, err)

	_, quietFound := findIP(devices, "192.168.1.80")
	assert.False(t, quietFound, "quiet host needs a sweep")
	_, broadcast := findIP(devices, "192.168.1.255")
	assert.False(t, broadcast)

	gw, ok := findIP(devices, GatewayIP)
	require.True(t, ok)
	assert.Equal(t, netmap.DeviceTypeRouter, gw.DeviceType)
	assert.Equal(t, "14:CC:20:1A:2B:01", gw.MAC)

	self, ok := findIP(devices, LocalIP)
	require.True(t, ok)
	assert.Equal(t, netmap.SelfHostname, self.Hostname)
}

func TestDiscoverDemoNetworkWithSweep(t *testing.T) {
	devices, err := newDiscoverer(New(0)).Discover(context.Background(), true)
	require.NoError(t, err)

	assert.Len(t, devices, len(Hosts()))
	_, quietFound := findIP(devices, "192.168.1.80")
	assert.True(t, quietFound)
}

func TestDemoPipeline(t *testing.T) {
	n := New(time.Millisecond)
	devices, err := newDiscoverer(n).Discover(context.Background(), false)
	require.NoError(t, err)

	names, err := n.ResolveHostnames(context.Background(), devices)
	require.NoError(t, err)
	for i := range devices {
		if devices[i].Hostname == "" {
			devices[i].Hostname = names[devices[i].IP]
		}
	}

	scanner := scanning.NewPortScanner(scanning.Config{BannerTimeout: 100 * time.Millisecond},
		scanning.WithDialer(n))
	require.NoError(t, scanner.ScanPorts(context.Background(), devices, netmap.CommonPorts, nil))
	identify.IdentifyAll(devices)

	want := map[string]netmap.DeviceType{
		GatewayIP:       netmap.DeviceTypeRouter,
		"192.168.1.10":  netmap.DeviceTypeComputer,
		"192.168.1.20":  netmap.DeviceTypeSmartTV,
		"192.168.1.30":  netmap.DeviceTypeNAS,
		"192.168.1.40":  netmap.DeviceTypePrinter,
		"192.168.1.50":  netmap.DeviceTypeComputer,
		"192.168.1.60":  netmap.DeviceTypeIoT,
		"192.168.1.70":  netmap.DeviceTypeUnknown,
		"192.168.1.90":  netmap.DeviceTypeComputer,
	}
	for ip, typ := range want {
		d, ok := findIP(devices, ip)
		require.True(t, ok, ip)
		assert.Equal(t, typ, d.DeviceType, ip)
	}

	pi, _ := findIP(devices, "192.168.1.50")
	assert.Equal(t, []string{"Ollama"}, pi.DetectedAgents)
	assert.Equal(t, "Raspberry Pi", pi.Vendor)

	ws, _ := findIP(devices, "192.168.1.90")
	assert.Equal(t, []string{"Aider (Streamlit)"}, ws.DetectedAgents, "18789 is outside the common ports")

	mac, _ := findIP(devices, "192.168.1.10")
	assert.Equal(t, []string{"Claude Code"}, mac.DetectedAgents)

	phone, _ := findIP(devices, "192.168.1.70")
	assert.Equal(t, "Private/Randomized", phone.Vendor)
}

func TestDialContext(t *testing.T) {
	n := New(0)

	t.Run("closed port is refused", func(t *testing.T) {
		_, err := n.DialContext(context.Background(), "tcp", "192.168.1.10:23")
		assert.Error(t, err)
	})

	t.Run("unknown host is refused", func(t *testing.T) {
		_, err := n.DialContext(context.Background(), "tcp", "10.9.9.9:22")
		assert.Error(t, err)
	})

	t.Run("open port sends banner", func(t *testing.T) {
		conn, err := n.DialContext(context.Background(), "tcp", "192.168.1.10:22")
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		buf := make([]byte, 64)
		m, err := conn.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "SSH-2.0-OpenSSH_9.6", string(buf[:m]))
	})

	t.Run("latency honours cancellation", func(t *testing.T) {
		slow := New(time.Hour)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := slow.DialContext(ctx, "tcp", "192.168.1.10:22")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSweepHonoursPrefix(t *testing.T) {
	entries, err := New(0).Sweep(context.Background(), netip.MustParsePrefix("192.168.1.0/28"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, netip.MustParsePrefix("192.168.1.0/28").Contains(netip.MustParseAddr(e.IP)), e.IP)
	}
	assert.Len(t, entries, 2)
}

package identify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netrecon/internal/netmap"
	"github.com/anstrom/netrecon/internal/vendor"
)

func device(mac, hostname, vendorName string, ports ...uint16) netmap.Device {
	d := netmap.NewDevice(mac, "192.168.1.50")
	d.Hostname = hostname
	d.Vendor = vendorName
	for _, p := range ports {
		d.Services = append(d.Services, netmap.Service{
			Port:     p,
			Protocol: netmap.ProtocolTCP,
			State:    netmap.PortOpen,
		})
	}
	return d
}

const unlistedMAC = "10:20:30:40:50:60"

func TestInferDeviceType(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		vendor   string
		ports    []uint16
		want     netmap.DeviceType
	}{
		{"tv hostname beats ssh", "living-room-tv", "", []uint16{22}, netmap.DeviceTypeSmartTV},
		{"console hostname", "Xbox-Series-X", "", nil, netmap.DeviceTypeGameConsole},
		{"switchbot is not a console", "switchbot-hub", "", nil, netmap.DeviceTypeIoT},
		{"iphone hostname", "Annas-iPhone", "", nil, netmap.DeviceTypePhone},
		{"ipad hostname", "kitchen-ipad", "", nil, netmap.DeviceTypePhone},
		{"macbook hostname", "Johns-MacBook-Pro", "", nil, netmap.DeviceTypeComputer},
		{"linux distro hostname", "ubuntu-server", "", []uint16{53, 80}, netmap.DeviceTypeComputer},
		{"shelly hostname", "shelly1pm-A4CF12", "", nil, netmap.DeviceTypeIoT},
		{"esp hostname", "esp32-cam", "", nil, netmap.DeviceTypeIoT},
		{"printer hostname", "office-laserjet", "", nil, netmap.DeviceTypePrinter},
		{"nas hostname", "DiskStation", "", nil, netmap.DeviceTypeNAS},
		{"router hostname", "openwrt", "", nil, netmap.DeviceTypeRouter},

		{"dns and http", "", "", []uint16{53, 80}, netmap.DeviceTypeRouter},
		{"dns and https", "", "", []uint16{53, 443}, netmap.DeviceTypeRouter},
		{"apple sync port", "", "Apple", []uint16{62078}, netmap.DeviceTypePhone},
		{"apple with ssh", "", "Apple", []uint16{22}, netmap.DeviceTypeComputer},
		{"apple with afp", "", "Apple", []uint16{548}, netmap.DeviceTypeComputer},
		{"apple alone", "", "Apple", nil, netmap.DeviceTypePhone},
		{"chromecast port", "", "", []uint16{8009}, netmap.DeviceTypeSmartTV},
		{"samsung tv port", "", "", []uint16{9197}, netmap.DeviceTypeSmartTV},
		{"samsung without ssh", "", "Samsung", nil, netmap.DeviceTypeSmartTV},
		{"lg without ssh", "", "LG", []uint16{80}, netmap.DeviceTypeSmartTV},
		{"roku", "", "Roku", []uint16{22}, netmap.DeviceTypeSmartTV},
		{"sonos", "", "Sonos", nil, netmap.DeviceTypeSmartTV},
		{"nintendo", "", "Nintendo", nil, netmap.DeviceTypeGameConsole},
		{"sony without ssh", "", "Sony", nil, netmap.DeviceTypeGameConsole},
		{"nas ports", "", "", []uint16{22, 445, 5000}, netmap.DeviceTypeNAS},
		{"synology vendor", "", "Synology", nil, netmap.DeviceTypeNAS},
		{"qnap vendor", "", "QNAP", []uint16{22}, netmap.DeviceTypeNAS},
		{"jetdirect port", "", "", []uint16{9100}, netmap.DeviceTypePrinter},
		{"ipp port", "", "", []uint16{631}, netmap.DeviceTypePrinter},
		{"hp web without ssh", "", "HP", []uint16{80}, netmap.DeviceTypePrinter},
		{"hp with ssh", "", "HP", []uint16{22, 80}, netmap.DeviceTypeLaptop},
		{"dell with rdp", "", "Dell", []uint16{3389}, netmap.DeviceTypeLaptop},
		{"lenovo with ssh", "", "Lenovo", []uint16{22}, netmap.DeviceTypeLaptop},
		{"unknown vendor with ssh", "", "", []uint16{22}, netmap.DeviceTypeComputer},
		{"samsung with ssh", "", "Samsung", []uint16{22}, netmap.DeviceTypeComputer},
		{"espressif", "", "Espressif", nil, netmap.DeviceTypeIoT},
		{"amazon", "", "Amazon", []uint16{443}, netmap.DeviceTypeIoT},
		{"tp-link with web", "", "TP-Link", []uint16{80}, netmap.DeviceTypeRouter},
		{"ubiquiti with https", "", "Ubiquiti", []uint16{443}, netmap.DeviceTypeRouter},
		{"cisco without web", "", "Cisco", nil, netmap.DeviceTypeUnknown},
		{"xiaomi", "", "Xiaomi", nil, netmap.DeviceTypePhone},
		{"google", "", "Google", []uint16{443}, netmap.DeviceTypePhone},
		{"raspberry pi", "", "Raspberry Pi", []uint16{80}, netmap.DeviceTypeComputer},
		{"nothing", "", "", nil, netmap.DeviceTypeUnknown},
		{"randomized mac", "", vendor.PrivateRandomized, nil, netmap.DeviceTypeUnknown},
		{"self label only", netmap.SelfHostname, "", nil, netmap.DeviceTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := device(unlistedMAC, tt.hostname, tt.vendor, tt.ports...)
			assert.Equal(t, tt.want, InferDeviceType(d))
		})
	}
}

func TestInferDeviceTypeIgnoresClosedServices(t *testing.T) {
	d := device(unlistedMAC, "", "")
	d.Services = []netmap.Service{{Port: 22, Protocol: netmap.ProtocolTCP, State: netmap.PortClosed}}
	assert.Equal(t, netmap.DeviceTypeUnknown, InferDeviceType(d))
}

func TestMatchReportsRule(t *testing.T) {
	r, ok := Match(device(unlistedMAC, "living-room-tv", "", 22))
	require.True(t, ok)
	assert.Equal(t, "hostname-tv", r.Name)

	_, ok = Match(device(unlistedMAC, "", ""))
	assert.False(t, ok)
}

func TestRulesOrder(t *testing.T) {
	rs := Rules()
	require.NotEmpty(t, rs)

	names := make(map[string]bool, len(rs))
	for _, r := range rs {
		assert.False(t, names[r.Name], "duplicate rule %q", r.Name)
		names[r.Name] = true
		assert.NotNil(t, r.Match)
	}

	lastHostname, firstOther := -1, len(rs)
	for i, r := range rs {
		if strings.HasPrefix(r.Name, "hostname-") {
			lastHostname = i
		} else if i < firstOther {
			firstOther = i
		}
	}
	assert.Less(t, lastHostname, firstOther, "hostname rules must precede port and vendor rules")

	rs[0].Name = "mutated"
	assert.NotEqual(t, "mutated", Rules()[0].Name)
}

func TestIdentify(t *testing.T) {
	t.Run("vendor filled from MAC", func(t *testing.T) {
		d := Identify(device("00:26:BB:12:34:56", "", "", 22))
		assert.Equal(t, "Apple", d.Vendor)
		assert.Equal(t, netmap.DeviceTypeComputer, d.DeviceType)
	})

	t.Run("existing vendor is kept", func(t *testing.T) {
		d := Identify(device("00:26:BB:12:34:56", "", "Custom Vendor"))
		assert.Equal(t, "Custom Vendor", d.Vendor)
	})

	t.Run("gateway keeps router type", func(t *testing.T) {
		gw := device(netmap.UnknownMAC, "", "")
		gw.DeviceType = netmap.DeviceTypeRouter
		assert.Equal(t, netmap.DeviceTypeRouter, Identify(gw).DeviceType)
	})

	t.Run("gateway type yields to a matching rule", func(t *testing.T) {
		gw := device(unlistedMAC, "", "", 22)
		gw.DeviceType = netmap.DeviceTypeRouter
		assert.Equal(t, netmap.DeviceTypeComputer, Identify(gw).DeviceType)
	})

	t.Run("stale type is recomputed", func(t *testing.T) {
		d := device(unlistedMAC, "", "")
		d.DeviceType = netmap.DeviceTypePrinter
		assert.Equal(t, netmap.DeviceTypeUnknown, Identify(d).DeviceType)
	})

	t.Run("detected agents are distinct in first-seen order", func(t *testing.T) {
		d := device(unlistedMAC, "", "")
		d.Services = []netmap.Service{
			{Port: 8501, State: netmap.PortOpen, DetectedAgent: "Aider (Streamlit)"},
			{Port: 11434, State: netmap.PortOpen, DetectedAgent: "Ollama"},
			{Port: 22, State: netmap.PortOpen},
			{Port: 8080, State: netmap.PortOpen, DetectedAgent: "Ollama"},
		}
		got := Identify(d)
		assert.Equal(t, []string{"Aider (Streamlit)", "Ollama"}, got.DetectedAgents)
	})

	t.Run("no agents is an empty list", func(t *testing.T) {
		got := Identify(device(unlistedMAC, "", "", 22))
		assert.NotNil(t, got.DetectedAgents)
		assert.Empty(t, got.DetectedAgents)
	})

	t.Run("input is not modified", func(t *testing.T) {
		d := device("00:26:BB:12:34:56", "", "", 22)
		_ = Identify(d)
		assert.Empty(t, d.Vendor)
		assert.Equal(t, netmap.DeviceTypeUnknown, d.DeviceType)
	})
}

func TestIdentifyIsIdempotent(t *testing.T) {
	inputs := []netmap.Device{
		device("00:26:BB:12:34:56", "", "", 22, 548),
		device("B8:27:EB:00:00:01", "", "", 80),
		device(unlistedMAC, "living-room-tv", "", 22),
		device("DA:A1:19:00:00:01", "", ""),
		device(netmap.UnknownMAC, "", ""),
	}
	inputs[4].DeviceType = netmap.DeviceTypeRouter

	for _, in := range inputs {
		once := Identify(in)
		twice := Identify(once)
		assert.Equal(t, once.DeviceType, twice.DeviceType, in.MAC)
		assert.Equal(t, once.Vendor, twice.Vendor, in.MAC)
		assert.Equal(t, once.DetectedAgents, twice.DetectedAgents, in.MAC)
	}
}

func TestIdentifyAll(t *testing.T) {
	devices := []netmap.Device{
		device("5C:CF:7F:00:00:01", "", ""),
		device("B8:27:EB:00:00:02", "", "", 22),
	}
	IdentifyAll(devices)

	assert.Equal(t, "Espressif", devices[0].Vendor)
	assert.Equal(t, netmap.DeviceTypeIoT, devices[0].DeviceType)
	assert.Equal(t, "Raspberry Pi", devices[1].Vendor)
	assert.Equal(t, netmap.DeviceTypeComputer, devices[1].DeviceType)
}

func TestIdentifyScannedSSHHost(t *testing.T) {
	d := netmap.NewDevice("AA:BB:CC:DD:EE:01", "192.168.1.10")
	d.Services = []netmap.Service{{
		Port:        22,
		Protocol:    netmap.ProtocolTCP,
		State:       netmap.PortOpen,
		ServiceName: "SSH",
		Banner:      "SSH-2.0-OpenSSH_9.0",
	}}

	got := Identify(d)

	assert.Equal(t, vendor.PrivateRandomized, got.Vendor)
	assert.Equal(t, netmap.DeviceTypeComputer, got.DeviceType)
	assert.Equal(t, "SSH", got.Services[0].ServiceName)
	assert.Empty(t, got.DetectedAgents)
}

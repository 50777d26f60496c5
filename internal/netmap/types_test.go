package netmap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommonPorts(t *testing.T) {
	assert.Len(t, CommonPorts, 27)
	assert.Equal(t, uint16(21), CommonPorts[0])
	assert.Equal(t, uint16(8501), CommonPorts[len(CommonPorts)-1])

	seen := make(map[uint16]bool)
	for _, p := range CommonPorts {
		assert.False(t, seen[p], "port %d listed twice", p)
		seen[p] = true
	}
}

func TestDeviceTypeString(t *testing.T) {
	tests := []struct {
		dt   DeviceType
		want string
	}{
		{DeviceTypeRouter, "Router"},
		{DeviceTypeSmartTV, "Smart TV"},
		{DeviceTypeIoT, "IoT Device"},
		{DeviceTypeGameConsole, "Game Console"},
		{DeviceTypeUnknown, "Unknown"},
		{DeviceType(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dt.String())
		})
	}
}

func TestParseDeviceTypeRoundTrip(t *testing.T) {
	for dt := DeviceTypeUnknown; dt <= DeviceTypeGameConsole; dt++ {
		assert.Equal(t, dt, ParseDeviceType(dt.String()))
	}
	assert.Equal(t, DeviceTypeSmartTV, ParseDeviceType("SmartTV"))
	assert.Equal(t, DeviceTypeUnknown, ParseDeviceType("toaster"))
}

func TestDeviceJSON(t *testing.T) {
	d := NewDevice("AA:BB:CC:DD:EE:01", "192.168.1.10")
	d.DeviceType = DeviceTypeSmartTV

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"device_type":"Smart TV"`)

	var back Device
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, DeviceTypeSmartTV, back.DeviceType)
}

func TestDisplayName(t *testing.T) {
	base := Device{MAC: "AA:BB:CC:DD:EE:01", DeviceType: DeviceTypePrinter}

	assert.Equal(t, "AA:BB:CC:DD:EE:01", base.DisplayName())

	withVendor := base
	withVendor.Vendor = "HP"
	assert.Equal(t, "HP Printer", withVendor.DisplayName())

	withHost := withVendor
	withHost.Hostname = "office-printer"
	assert.Equal(t, "office-printer", withHost.DisplayName())

	withCustom := withHost
	withCustom.CustomName = "Laserjet"
	assert.Equal(t, "Laserjet", withCustom.DisplayName())
}

func TestOpenServicesAndClone(t *testing.T) {
	d := NewDevice("AA:BB:CC:DD:EE:01", "192.168.1.10")
	d.Services = []Service{
		{Port: 22, Protocol: ProtocolTCP, State: PortOpen},
		{Port: 23, Protocol: ProtocolTCP, State: PortClosed},
	}
	d.DetectedAgents = []string{"Ollama"}

	open := d.OpenServices()
	require.Len(t, open, 1)
	assert.Equal(t, uint16(22), open[0].Port)

	c := d.Clone()
	c.Services[0].Port = 2222
	c.DetectedAgents[0] = "vLLM"
	assert.Equal(t, uint16(22), d.Services[0].Port)
	assert.Equal(t, "Ollama", d.DetectedAgents[0])

	assert.Nil(t, CloneDevices(nil))
	assert.Len(t, CloneDevices([]Device{d, d}), 2)
}

func TestScanPhaseOrdering(t *testing.T) {
	assert.Less(t, PhaseDiscovery.Ordinal(), PhasePortScan.Ordinal())
	assert.Less(t, PhasePortScan.Ordinal(), PhaseIdentification.Ordinal())
	assert.Less(t, PhaseIdentification.Ordinal(), PhaseComplete.Ordinal())

	assert.Equal(t, "Discovering devices", PhaseDiscovery.String())
	assert.Equal(t, "Scanning ports", PhasePortScan.String())
	assert.Equal(t, "Identifying devices", PhaseIdentification.String())
	assert.Equal(t, "Complete", PhaseComplete.String())
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0.0, ScanProgress{Phase: PhaseDiscovery}.Percent())
	assert.Equal(t, 0.0, ScanProgress{Phase: PhasePortScan}.Percent())
	assert.Equal(t, 50.0, ScanProgress{Phase: PhasePortScan, PortsScanned: 27, TotalPorts: 54}.Percent())
	assert.Equal(t, 100.0, ScanProgress{Phase: PhasePortScan, PortsScanned: 80, TotalPorts: 54}.Percent())
	assert.Equal(t, 100.0, ScanProgress{Phase: PhaseComplete}.Percent())
}

package coordinator

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/netrecon/internal/errors"
	"github.com/anstrom/netrecon/internal/netmap"
	"github.com/anstrom/netrecon/internal/netmap/mocks"
)

type fakeDiscoverer struct {
	devices []netmap.Device
	err     error
	// block, when set, holds Discover until it is closed or ctx ends.
	block chan struct{}

	mu       sync.Mutex
	fullSeen []bool
}

func (f *fakeDiscoverer) Discover(ctx context.Context, full bool) ([]netmap.Device, error) {
	f.mu.Lock()
	f.fullSeen = append(f.fullSeen, full)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return netmap.CloneDevices(f.devices), nil
}

// fakeScanner opens the configured ports on every device and reports one
// progress event per device.
type fakeScanner struct {
	open  map[string][]netmap.Service
	err   error
	ports []uint16
}

func (f *fakeScanner) ScanPorts(ctx context.Context, devices []netmap.Device, ports []uint16,
	progress chan<- netmap.ScanProgress) error {
	f.ports = ports
	if f.err != nil {
		return f.err
	}
	scanned := 0
	for i := range devices {
		if err := ctx.Err(); err != nil {
			return err
		}
		devices[i].Services = append([]netmap.Service{}, f.open[devices[i].MAC]...)
		scanned += len(ports)
		progress <- netmap.ScanProgress{
			Phase:         netmap.PhasePortScan,
			DevicesFound:  len(devices),
			CurrentDevice: devices[i].MAC,
			PortsScanned:  scanned,
			TotalPorts:    len(ports) * len(devices),
		}
	}
	return nil
}

type fakeEnricher struct{ names map[string]string }

func (f fakeEnricher) Enrich(_ context.Context, devices []netmap.Device) {
	for i := range devices {
		if devices[i].Hostname == "" {
			devices[i].Hostname = f.names[devices[i].IP]
		}
	}
}

func twoDevices() []netmap.Device {
	return []netmap.Device{
		netmap.NewDevice("AA:BB:CC:DD:EE:01", "192.168.1.10"),
		netmap.NewDevice("AA:BB:CC:DD:EE:02", "192.168.1.11"),
	}
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("event stream did not close")
			return got
		}
	}
}

func waitIdle(t *testing.T, c *Coordinator) {
	t.Helper()
	require.Eventually(t, func() bool { return !c.Running() }, 2*time.Second, 5*time.Millisecond)
}

func TestStartRunsAllPhases(t *testing.T) {
	scanner := &fakeScanner{open: map[string][]netmap.Service{
		"AA:BB:CC:DD:EE:01": {{Port: 22, Protocol: netmap.ProtocolTCP, State: netmap.PortOpen,
			ServiceName: "SSH", Banner: "SSH-2.0-OpenSSH_9.0"}},
	}}
	c := New(Config{Ports: []uint16{22, 80}}, &fakeDiscoverer{devices: twoDevices()}, scanner)

	events, err := c.Start(context.Background(), ScanRequest{ID: "scan-1"})
	require.NoError(t, err)
	got := collect(t, events)

	phases := make([]netmap.ScanPhase, len(got))
	for i, ev := range got {
		phases[i] = ev.Progress.Phase
		assert.Equal(t, "scan-1", ev.ScanID)
	}
	assert.Equal(t, []netmap.ScanPhase{
		netmap.PhaseDiscovery,
		netmap.PhaseDiscovery,
		netmap.PhasePortScan,
		netmap.PhasePortScan,
		netmap.PhaseIdentification,
		netmap.PhaseComplete,
	}, phases)

	assert.Equal(t, 0, got[0].Progress.DevicesFound)
	assert.Equal(t, 2, got[1].Progress.DevicesFound)
	assert.Equal(t, 4, got[3].Progress.PortsScanned)
	assert.Equal(t, 2, got[4].Progress.DevicesFound)

	final := got[len(got)-1]
	require.NoError(t, final.Err)
	require.Len(t, final.Devices, 2)

	d := final.Devices[0]
	assert.Equal(t, "SSH", d.Services[0].ServiceName)
	assert.Equal(t, netmap.DeviceTypeComputer, d.DeviceType)
	assert.Equal(t, "Private/Randomized", d.Vendor)
	assert.Empty(t, d.DetectedAgents)

	assert.Equal(t, []uint16{22, 80}, scanner.ports)
	waitIdle(t, c)
	assert.Equal(t, netmap.PhaseComplete, c.Status().Progress.Phase)
}

func TestStartDefaultsToCommonPorts(t *testing.T) {
	scanner := &fakeScanner{}
	c := New(Config{}, &fakeDiscoverer{devices: twoDevices()}, scanner)

	events, err := c.Start(context.Background(), ScanRequest{})
	require.NoError(t, err)
	got := collect(t, events)

	require.NotEmpty(t, got)
	assert.NotEmpty(t, got[0].ScanID, "a scan id is generated")
	assert.Equal(t, netmap.CommonPorts, scanner.ports)
}

func TestStartRequestOverridesPorts(t *testing.T) {
	scanner := &fakeScanner{}
	disc := &fakeDiscoverer{devices: twoDevices()}
	c := New(Config{}, disc, scanner)

	events, err := c.Start(context.Background(), ScanRequest{Full: true, Ports: []uint16{443}})
	require.NoError(t, err)
	collect(t, events)

	assert.Equal(t, []uint16{443}, scanner.ports)
	assert.Equal(t, []bool{true}, disc.fullSeen)
}

func TestStartSingleFlight(t *testing.T) {
	disc := &fakeDiscoverer{devices: twoDevices(), block: make(chan struct{})}
	c := New(Config{}, disc, &fakeScanner{})

	events, err := c.Start(context.Background(), ScanRequest{})
	require.NoError(t, err)
	assert.True(t, c.Running())

	_, err = c.Start(context.Background(), ScanRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeScanInProgress))

	close(disc.block)
	collect(t, events)
	waitIdle(t, c)

	again, err := c.Start(context.Background(), ScanRequest{})
	require.NoError(t, err)
	collect(t, again)
}

func TestCancelClosesWithoutComplete(t *testing.T) {
	disc := &fakeDiscoverer{devices: twoDevices(), block: make(chan struct{})}
	c := New(Config{}, disc, &fakeScanner{})

	events, err := c.Start(context.Background(), ScanRequest{})
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, netmap.PhaseDiscovery, first.Progress.Phase)

	assert.True(t, c.Cancel())
	assert.False(t, c.Running())
	assert.False(t, c.Cancel(), "second cancel is a no-op")

	for _, ev := range collect(t, events) {
		assert.NotEqual(t, netmap.PhaseComplete, ev.Progress.Phase)
		assert.Nil(t, ev.Devices)
	}

	// A new scan may start right after cancellation.
	close(disc.block)
	next, err := c.Start(context.Background(), ScanRequest{})
	require.NoError(t, err)
	got := collect(t, next)
	assert.Equal(t, netmap.PhaseComplete, got[len(got)-1].Progress.Phase)
}

func TestParentContextCancellation(t *testing.T) {
	disc := &fakeDiscoverer{devices: twoDevices(), block: make(chan struct{})}
	c := New(Config{}, disc, &fakeScanner{})

	ctx, cancel := context.WithCancel(context.Background())
	events, err := c.Start(ctx, ScanRequest{})
	require.NoError(t, err)
	cancel()

	for _, ev := range collect(t, events) {
		assert.NotEqual(t, netmap.PhaseComplete, ev.Progress.Phase)
	}
	waitIdle(t, c)
}

func TestEmptyScanCompletes(t *testing.T) {
	c := New(Config{}, &fakeDiscoverer{devices: []netmap.Device{}}, &fakeScanner{})

	events, err := c.Start(context.Background(), ScanRequest{})
	require.NoError(t, err)
	got := collect(t, events)

	final := got[len(got)-1]
	assert.Equal(t, netmap.PhaseComplete, final.Progress.Phase)
	assert.NoError(t, final.Err)
	assert.NotNil(t, final.Devices)
	assert.Empty(t, final.Devices)
}

func TestDiscoveryFailureEndsWithError(t *testing.T) {
	discErr := errors.ErrDiscoveryFailed("arp+route", stderrors.New("no network"))
	c := New(Config{}, &fakeDiscoverer{err: discErr}, &fakeScanner{})

	events, err := c.Start(context.Background(), ScanRequest{})
	require.NoError(t, err)
	got := collect(t, events)

	final := got[len(got)-1]
	assert.Equal(t, netmap.PhaseComplete, final.Progress.Phase)
	assert.Nil(t, final.Devices)
	assert.True(t, errors.IsCode(final.Err, errors.CodeDiscoveryFailed))
	waitIdle(t, c)
}

func TestScannerFailureEndsWithError(t *testing.T) {
	c := New(Config{}, &fakeDiscoverer{devices: twoDevices()},
		&fakeScanner{err: errors.ErrInvalidPorts(0)})

	events, err := c.Start(context.Background(), ScanRequest{})
	require.NoError(t, err)
	got := collect(t, events)

	final := got[len(got)-1]
	assert.True(t, errors.IsCode(final.Err, errors.CodeValidation))
}

func TestEnricherFillsHostnames(t *testing.T) {
	c := New(Config{}, &fakeDiscoverer{devices: twoDevices()}, &fakeScanner{},
		WithEnricher(fakeEnricher{names: map[string]string{"192.168.1.11": "living-room-tv"}}))

	events, err := c.Start(context.Background(), ScanRequest{})
	require.NoError(t, err)
	got := collect(t, events)

	final := got[len(got)-1].Devices
	assert.Equal(t, "living-room-tv", final[1].Hostname)
	assert.Equal(t, netmap.DeviceTypeSmartTV, final[1].DeviceType)
}

func TestCompletedScanIsPersisted(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	scanner := &fakeScanner{open: map[string][]netmap.Service{
		"AA:BB:CC:DD:EE:01": {{Port: 11434, Protocol: netmap.ProtocolTCP, State: netmap.PortOpen,
			ServiceName: "Ollama", DetectedAgent: "Ollama"}},
	}}

	store.EXPECT().UpsertDevice(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec netmap.DeviceRecord) (int64, error) {
			if assert.NotNil(t, rec.Network) {
				assert.Equal(t, "home", *rec.Network)
			}
			if rec.MAC == "AA:BB:CC:DD:EE:01" {
				return 1, nil
			}
			return 2, nil
		}).Times(2)
	store.EXPECT().UpsertDeviceService(gomock.Any(), int64(1), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, rec netmap.ServiceRecord) error {
			assert.Equal(t, 11434, rec.Port)
			return nil
		}).Times(1)

	c := New(Config{Network: "home"}, &fakeDiscoverer{devices: twoDevices()}, scanner, WithStore(store))
	events, err := c.Start(context.Background(), ScanRequest{})
	require.NoError(t, err)
	got := collect(t, events)

	final := got[len(got)-1]
	require.NoError(t, final.Err)
	assert.Equal(t, []string{"Ollama"}, final.Devices[0].DetectedAgents)
}

func TestCancelDuringPersistenceDeliversNoResult(t *testing.T) {
	for i := 0; i < 20; i++ {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)

		entered := make(chan struct{})
		release := make(chan struct{})
		store.EXPECT().UpsertDevice(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ netmap.DeviceRecord) (int64, error) {
				close(entered)
				<-release
				return 1, nil
			}).Times(1)

		c := New(Config{Network: "home"}, &fakeDiscoverer{devices: twoDevices()}, &fakeScanner{},
			WithStore(store))
		events, err := c.Start(context.Background(), ScanRequest{})
		require.NoError(t, err)

		<-entered
		require.True(t, c.Cancel())
		close(release)

		for _, ev := range collect(t, events) {
			assert.NotEqual(t, netmap.PhaseComplete, ev.Progress.Phase, "run %d", i)
			assert.Empty(t, ev.Devices, "run %d", i)
		}
		assert.False(t, c.Running())
	}
}

func TestCancelAfterCompletionReportsIdle(t *testing.T) {
	c := New(Config{}, &fakeDiscoverer{devices: twoDevices()}, &fakeScanner{})
	events, err := c.Start(context.Background(), ScanRequest{})
	require.NoError(t, err)

	got := collect(t, events)
	require.NotEmpty(t, got)
	assert.Equal(t, netmap.PhaseComplete, got[len(got)-1].Progress.Phase)
	assert.False(t, c.Cancel())
}

func TestPersistFailureDoesNotFailScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().UpsertDevice(gomock.Any(), gomock.Any()).
		Return(int64(0), stderrors.New("disk full")).AnyTimes()

	c := New(Config{}, &fakeDiscoverer{devices: twoDevices()}, &fakeScanner{}, WithStore(store))
	events, err := c.Start(context.Background(), ScanRequest{})
	require.NoError(t, err)
	got := collect(t, events)

	final := got[len(got)-1]
	assert.NoError(t, final.Err)
	assert.Len(t, final.Devices, 2)
}

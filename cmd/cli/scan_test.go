package cli

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netrecon/internal/coordinator"
	"github.com/anstrom/netrecon/internal/errors"
	"github.com/anstrom/netrecon/internal/netmap"
)

// fakeStarter replays a fixed sequence of events.
type fakeStarter struct {
	events []coordinator.Event
	err    error
	req    coordinator.ScanRequest
}

func (f *fakeStarter) Start(_ context.Context, req coordinator.ScanRequest) (<-chan coordinator.Event, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan coordinator.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func TestRunScan(t *testing.T) {
	devices := []netmap.Device{netmap.NewDevice("B8:27:EB:12:34:56", "192.168.1.50")}
	discovery := coordinator.Event{Progress: netmap.ScanProgress{Phase: netmap.PhaseDiscovery, DevicesFound: 1}}
	complete := coordinator.Event{
		Progress: netmap.ScanProgress{Phase: netmap.PhaseComplete, DevicesFound: 1},
		Devices:  devices,
	}
	failed := coordinator.Event{
		Progress: netmap.ScanProgress{Phase: netmap.PhaseComplete},
		Err:      errors.NewScanError(errors.CodeDiscoveryFailed, "arp table unavailable"),
	}

	tests := []struct {
		name        string
		starter     *fakeStarter
		wantDevices []netmap.Device
		wantCode    errors.ErrorCode
		wantLines   int
	}{
		{
			name:        "complete",
			starter:     &fakeStarter{events: []coordinator.Event{discovery, complete}},
			wantDevices: devices,
			wantLines:   2,
		},
		{
			name:      "failed scan",
			starter:   &fakeStarter{events: []coordinator.Event{discovery, failed}},
			wantCode:  errors.CodeDiscoveryFailed,
			wantLines: 1,
		},
		{
			name:     "already running",
			starter:  &fakeStarter{err: errors.ErrScanInProgress()},
			wantCode: errors.CodeScanInProgress,
		},
		{
			name:      "stream ends without completing",
			starter:   &fakeStarter{events: []coordinator.Event{discovery}},
			wantCode:  errors.CodeCanceled,
			wantLines: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var progress bytes.Buffer
			got, err := runScan(context.Background(), tt.starter, coordinator.ScanRequest{Full: true}, &progress)

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, tt.wantCode), "got %v", err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantDevices, got)
			}
			assert.True(t, tt.starter.req.Full)
			assert.Equal(t, tt.wantLines, bytes.Count(progress.Bytes(), []byte("\n")))
		})
	}
}

func TestRunScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runScan(ctx, &fakeStarter{}, coordinator.ScanRequest{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, context.Canceled))
}

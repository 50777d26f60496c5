// Package coordinator runs scans as three phases: discovery, port scanning
// and identification. Progress is streamed to the caller over a channel
// whose last message carries the final device list. At most one scan runs
// at a time, and a cancelled scan ends without a result.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/netrecon/internal/errors"
	"github.com/anstrom/netrecon/internal/identify"
	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/metrics"
	"github.com/anstrom/netrecon/internal/netmap"
)

const (
	outputBuffer      = 256
	minProgressBuffer = 64
)

// Discoverer produces the initial device set.
type Discoverer interface {
	Discover(ctx context.Context, activeSweep bool) ([]netmap.Device, error)
}

// Scanner scans ports and records open services on each device.
type Scanner interface {
	ScanPorts(ctx context.Context, devices []netmap.Device, ports []uint16,
		progress chan<- netmap.ScanProgress) error
}

// Enricher fills in missing device details after discovery.
type Enricher interface {
	Enrich(ctx context.Context, devices []netmap.Device)
}

// Config holds the per-coordinator scan settings.
type Config struct {
	// Ports is the port list scanned when a request does not name one.
	Ports []uint16
	// Network labels persisted devices.
	Network string
}

// ScanRequest starts one scan.
type ScanRequest struct {
	// ID identifies the scan. A random UUID is used when empty.
	ID string
	// Full runs an active sweep before reading the ARP cache.
	Full bool
	// Ports overrides Config.Ports.
	Ports []uint16
}

// Event is one message of a scan stream. The final event has phase
// Complete and carries either the devices or the error that ended the
// scan.
type Event struct {
	ScanID   string
	Progress netmap.ScanProgress
	Devices  []netmap.Device
	Err      error
}

// Status is a snapshot of the coordinator state.
type Status struct {
	Running   bool                `json:"running"`
	ScanID    string              `json:"scan_id,omitempty"`
	StartedAt time.Time           `json:"started_at,omitempty"`
	Progress  netmap.ScanProgress `json:"progress"`
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStore persists every completed scan.
func WithStore(store netmap.Store) Option {
	return func(c *Coordinator) { c.store = store }
}

// WithEnricher runs hostname enrichment after discovery.
func WithEnricher(e Enricher) Option {
	return func(c *Coordinator) { c.enricher = e }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// Coordinator sequences scans.
type Coordinator struct {
	cfg        Config
	discoverer Discoverer
	scanner    Scanner
	enricher   Enricher
	store      netmap.Store
	logger     *logging.Logger
	metrics    *metrics.PrometheusMetrics

	mu     sync.Mutex
	cancel context.CancelFunc
	status Status
}

// New creates a coordinator.
func New(cfg Config, discoverer Discoverer, scanner Scanner, opts ...Option) *Coordinator {
	if len(cfg.Ports) == 0 {
		cfg.Ports = netmap.CommonPorts
	}
	c := &Coordinator{
		cfg:        cfg,
		discoverer: discoverer,
		scanner:    scanner,
		logger:     logging.Default(),
		metrics:    metrics.GetGlobalMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("coordinator")
	return c
}

// message travels from the pipeline to the forwarder. Progress and the
// final result share one channel.
type message struct {
	progress netmap.ScanProgress
	devices  []netmap.Device
	err      error
}

// Start launches a scan and returns its event stream. The stream closes
// after the Complete event, or without one when the scan is cancelled.
// Starting while another scan is in flight fails with CodeScanInProgress.
func (c *Coordinator) Start(ctx context.Context, req ScanRequest) (<-chan Event, error) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil, errors.ErrScanInProgress()
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if len(req.Ports) == 0 {
		req.Ports = c.cfg.Ports
	}
	scanCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.status = Status{
		Running:   true,
		ScanID:    req.ID,
		StartedAt: time.Now(),
		Progress:  netmap.ScanProgress{Phase: netmap.PhaseDiscovery},
	}
	c.mu.Unlock()

	c.metrics.ScanStarted()

	msgs := make(chan message, minProgressBuffer)
	out := make(chan Event, outputBuffer)

	go c.run(scanCtx, req, msgs)
	go c.forward(scanCtx, req, msgs, out)

	return out, nil
}

// Cancel stops the running scan. It reports whether a scan was running.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	c.cancel = nil
	c.status.Running = false
	c.logger.Info("Scan cancelled", "scan_id", c.status.ScanID)
	return true
}

// Running reports whether a scan is in flight.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Status returns the state of the current or last scan.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// finish releases the single-flight slot if it still belongs to scanID.
func (c *Coordinator) finish(scanID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.ScanID != scanID || c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.status.Running = false
}

// commit releases the single-flight slot on behalf of a finishing scan.
// It reports false when Cancel got there first; once it returns true,
// Cancel reports no running scan and the result is delivered.
func (c *Coordinator) commit(scanID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.ScanID != scanID || c.cancel == nil {
		return false
	}
	c.cancel()
	c.cancel = nil
	c.status.Running = false
	return true
}

func (c *Coordinator) setProgress(scanID string, p netmap.ScanProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.ScanID == scanID {
		c.status.Progress = p
	}
}

// run executes the pipeline and reports through msgs, which it closes.
func (c *Coordinator) run(ctx context.Context, req ScanRequest, msgs chan<- message) {
	defer close(msgs)

	emit := func(m message) bool {
		select {
		case msgs <- m:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		emit(message{progress: netmap.ScanProgress{Phase: netmap.PhaseComplete}, err: err})
	}

	if !emit(message{progress: netmap.ScanProgress{Phase: netmap.PhaseDiscovery}}) {
		return
	}

	devices, err := c.discoverer.Discover(ctx, req.Full)
	if err != nil {
		if ctx.Err() == nil {
			fail(err)
		}
		return
	}
	if c.enricher != nil {
		c.enricher.Enrich(ctx, devices)
	}
	n := len(devices)
	if !emit(message{progress: netmap.ScanProgress{Phase: netmap.PhaseDiscovery, DevicesFound: n}}) {
		return
	}

	bufSize := n + 8
	if bufSize < minProgressBuffer {
		bufSize = minProgressBuffer
	}
	progress := make(chan netmap.ScanProgress, bufSize)
	relayed := make(chan struct{})
	go func() {
		defer close(relayed)
		for p := range progress {
			emit(message{progress: p})
		}
	}()

	scanErr := c.scanner.ScanPorts(ctx, devices, req.Ports, progress)
	close(progress)
	<-relayed

	if ctx.Err() != nil {
		return
	}
	if scanErr != nil {
		fail(scanErr)
		return
	}

	if !emit(message{progress: netmap.ScanProgress{Phase: netmap.PhaseIdentification, DevicesFound: n}}) {
		return
	}
	identify.IdentifyAll(devices)

	total := n * len(req.Ports)
	emit(message{
		progress: netmap.ScanProgress{
			Phase:        netmap.PhaseComplete,
			DevicesFound: n,
			PortsScanned: total,
			TotalPorts:   total,
		},
		devices: devices,
	})
}

// forward applies stale-event suppression and delivers events to the
// caller until Complete or cancellation.
func (c *Coordinator) forward(ctx context.Context, req ScanRequest, msgs <-chan message, out chan<- Event) {
	start := time.Now()
	mode := scanMode(req.Full)
	log := c.logger.WithScanID(req.ID)
	status := metrics.StatusCanceled

	defer func() {
		close(out)
		c.finish(req.ID)
		c.metrics.ScanFinished()
		c.metrics.IncrementScansTotal(mode, status)
		c.metrics.RecordScanDuration(mode, time.Since(start))
	}()

	tracker := NewTracker()
	for {
		var (
			m  message
			ok bool
		)
		select {
		case <-ctx.Done():
			return
		case m, ok = <-msgs:
		}
		if !ok || ctx.Err() != nil {
			return
		}
		if !tracker.Apply(m.progress) {
			log.Debug("Discarded stale progress", "phase", m.progress.Phase.String())
			continue
		}
		c.setProgress(req.ID, m.progress)

		ev := Event{ScanID: req.ID, Progress: m.progress, Devices: m.devices, Err: m.err}
		if m.progress.Phase != netmap.PhaseComplete {
			// The last slot is kept free for the terminal event.
			if len(out) < cap(out)-1 {
				out <- ev
			}
			continue
		}

		if ctx.Err() != nil {
			return
		}
		if m.err == nil {
			c.complete(ctx, log, m.devices)
		}
		if ctx.Err() != nil || !c.commit(req.ID) {
			log.Info("Scan cancelled before its result was delivered")
			return
		}

		if m.err != nil {
			status = metrics.StatusError
			log.ErrorScan("Scan failed", mode, m.err)
		} else {
			status = metrics.StatusSuccess
			c.recordAgents(m.devices)
			log.InfoScan("Scan complete", mode,
				"devices", len(m.devices),
				"duration", time.Since(start))
		}
		out <- ev
		return
	}
}

// complete persists the result when a store is configured. Persistence
// stops when ctx is cancelled. Failures are logged and do not fail the
// scan.
func (c *Coordinator) complete(ctx context.Context, log *logging.Logger, devices []netmap.Device) {
	if c.store == nil {
		return
	}
	if err := netmap.Persist(ctx, c.store, devices, c.cfg.Network); err != nil {
		log.ErrorDatabase("Failed to persist scan result", err, "devices", len(devices))
		return
	}
	log.InfoDatabase("Scan result persisted", "devices", len(devices), "network", c.cfg.Network)
}

func (c *Coordinator) recordAgents(devices []netmap.Device) {
	for _, d := range devices {
		for _, agent := range d.DetectedAgents {
			c.metrics.IncrementAgentsDetected(agent)
		}
	}
}

func scanMode(full bool) string {
	if full {
		return "full"
	}
	return "quick"
}

package scanning

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/anstrom/netrecon/internal/errors"
	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/metrics"
	"github.com/anstrom/netrecon/internal/netmap"
)

const (
	defaultConnectTimeout = 500 * time.Millisecond
	defaultBannerTimeout  = 1000 * time.Millisecond
	defaultMaxDevices     = 10
	defaultMaxPorts       = 50
	bannerReadBytes       = 256
	maxBannerChars        = 200

	// DeepScanChunk is the number of ports scanned per deep scan step.
	DeepScanChunk = 2000
)

// Dialer opens TCP connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config tunes the scanner. Zero or negative values fall back to defaults.
type Config struct {
	ConnectTimeout       time.Duration
	BannerTimeout        time.Duration
	MaxConcurrentDevices int
	MaxConcurrentPorts   int
}

// DefaultConfig returns the standard scan bounds.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:       defaultConnectTimeout,
		BannerTimeout:        defaultBannerTimeout,
		MaxConcurrentDevices: defaultMaxDevices,
		MaxConcurrentPorts:   defaultMaxPorts,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.BannerTimeout <= 0 {
		c.BannerTimeout = def.BannerTimeout
	}
	if c.MaxConcurrentDevices <= 0 {
		c.MaxConcurrentDevices = def.MaxConcurrentDevices
	}
	if c.MaxConcurrentPorts <= 0 {
		c.MaxConcurrentPorts = def.MaxConcurrentPorts
	}
	return c
}

// Option configures a PortScanner.
type Option func(*PortScanner)

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) Option {
	return func(s *PortScanner) { s.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *PortScanner) { s.logger = l }
}

// PortScanner performs bounded-concurrency TCP connect scans.
type PortScanner struct {
	cfg     Config
	dialer  Dialer
	logger  *logging.Logger
	metrics *metrics.PrometheusMetrics
}

// NewPortScanner creates a scanner.
func NewPortScanner(cfg Config, opts ...Option) *PortScanner {
	s := &PortScanner{
		cfg:     cfg.normalized(),
		dialer:  &net.Dialer{},
		logger:  logging.Default(),
		metrics: metrics.GetGlobalMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("scanner")
	return s
}

// Config returns the effective configuration.
func (s *PortScanner) Config() Config {
	return s.cfg
}

func validatePorts(ports []uint16) error {
	for _, p := range ports {
		if p != 0 {
			return nil
		}
	}
	return errors.ErrInvalidPorts(len(ports))
}

// ScanPorts scans ports on every device and stores the open services on
// devices[i].Services. One PortScan progress event is sent per finished
// device; sends never block, so a slow consumer misses events rather than
// stalling the scan. The only errors are an invalid port list and
// cancellation of ctx.
func (s *PortScanner) ScanPorts(ctx context.Context, devices []netmap.Device, ports []uint16,
	progress chan<- netmap.ScanProgress) error {
	if err := validatePorts(ports); err != nil {
		return err
	}

	total := len(ports) * len(devices)
	rm := NewFixedResourceManager(s.cfg.MaxConcurrentDevices)
	defer func() { _ = rm.Close() }()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		scanned int
	)

	for i := range devices {
		key := fmt.Sprintf("%d/%s", i, devices[i].MAC)
		if err := rm.Acquire(ctx, key); err != nil {
			break
		}

		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			defer rm.Release(key)

			devices[i].Services = s.scanHost(ctx, devices[i].IP, ports)

			mu.Lock()
			scanned += len(ports)
			sendProgress(progress, netmap.ScanProgress{
				Phase:         netmap.PhasePortScan,
				DevicesFound:  len(devices),
				CurrentDevice: devices[i].MAC,
				PortsScanned:  scanned,
				TotalPorts:    total,
			})
			mu.Unlock()
		}(i, key)
	}
	wg.Wait()

	s.logger.Debug("Port scan finished", "devices", len(devices), "ports", len(ports), "slots", rm.GetStats())
	return ctx.Err()
}

// ScanDevice scans a single device and returns it with its open services.
func (s *PortScanner) ScanDevice(ctx context.Context, device netmap.Device, ports []uint16) (netmap.Device, error) {
	if err := validatePorts(ports); err != nil {
		return device, err
	}
	device.Services = s.scanHost(ctx, device.IP, ports)
	return device, ctx.Err()
}

// DeepScan scans every TCP port of a device in chunks of DeepScanChunk,
// sending a progress event after each chunk.
func (s *PortScanner) DeepScan(ctx context.Context, device netmap.Device,
	progress chan<- netmap.ScanProgress) (netmap.Device, error) {
	const totalPorts = 65535

	var services []netmap.Service
	scanned := 0
	for start := 1; start <= totalPorts; start += DeepScanChunk {
		if err := ctx.Err(); err != nil {
			return device, err
		}

		end := start + DeepScanChunk - 1
		if end > totalPorts {
			end = totalPorts
		}
		chunk := make([]uint16, 0, end-start+1)
		for p := start; p <= end; p++ {
			chunk = append(chunk, uint16(p))
		}

		services = append(services, s.scanHost(ctx, device.IP, chunk)...)
		scanned += len(chunk)
		sendProgress(progress, netmap.ScanProgress{
			Phase:         netmap.PhasePortScan,
			DevicesFound:  1,
			CurrentDevice: device.IP,
			PortsScanned:  scanned,
			TotalPorts:    totalPorts,
		})
	}

	device.Services = services
	return device, ctx.Err()
}

// scanHost scans ports on one address with at most MaxConcurrentPorts
// connects in flight. Services are returned in port-list order.
func (s *PortScanner) scanHost(ctx context.Context, ip string, ports []uint16) []netmap.Service {
	found := make([]*netmap.Service, len(ports))
	sem := make(chan struct{}, s.cfg.MaxConcurrentPorts)
	var wg sync.WaitGroup

	for i, port := range ports {
		if port == 0 {
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(i int, port uint16) {
			defer wg.Done()
			defer func() { <-sem }()
			if svc, ok := s.dialPort(ctx, ip, port); ok {
				found[i] = &svc
			}
		}(i, port)
	}
	wg.Wait()

	services := make([]netmap.Service, 0)
	for _, svc := range found {
		if svc != nil {
			services = append(services, *svc)
		}
	}

	s.metrics.AddPortsScanned("open", len(services))
	s.metrics.AddPortsScanned("closed", len(ports)-len(services))
	return services
}

// dialPort connects to one port. A failed or timed-out connect reports false.
func (s *PortScanner) dialPort(ctx context.Context, ip string, port uint16) (netmap.Service, bool) {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	conn, err := s.dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(ip, strconv.Itoa(int(port))))
	cancel()
	if err != nil {
		return netmap.Service{}, false
	}
	defer conn.Close()

	banner := s.grabBanner(conn, port)
	return netmap.Service{
		Port:          port,
		Protocol:      netmap.ProtocolTCP,
		State:         netmap.PortOpen,
		ServiceName:   IdentifyService(port, banner),
		Banner:        banner,
		DetectedAgent: DetectAgent(port, banner),
	}, true
}

// grabBanner sends an HTTP request where needed and reads a single response
// chunk. Read failures yield "".
func (s *PortScanner) grabBanner(conn net.Conn, port uint16) string {
	deadline := time.Now().Add(s.cfg.BannerTimeout)
	_ = conn.SetDeadline(deadline)

	if httpGreetingPorts[port] {
		if _, err := conn.Write([]byte(httpGreeting)); err != nil {
			s.logger.Debug("Banner request write failed", "port", port, "error", err)
		}
	}

	buf := make([]byte, bannerReadBytes)
	n, err := conn.Read(buf)
	if n <= 0 {
		if err != nil {
			s.logger.Debug("No banner", "port", port, "error", err)
		}
		return ""
	}
	return SanitizeBanner(buf[:n])
}

func sendProgress(ch chan<- netmap.ScanProgress, p netmap.ScanProgress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
	}
}

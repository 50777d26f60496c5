// Package metrics provides Prometheus-based metrics collection for netrecon.
// All collectors live on a private registry that the API server exposes at
// /metrics, alongside the standard Go and process collectors.
package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all netrecon metrics
	namespace = "netrecon"

	// Subsystems
	subsystemScan      = "scan"
	subsystemDiscovery = "discovery"
	subsystemStore     = "store"
	subsystemWorkers   = "workers"
	subsystemSystem    = "system"
	subsystemAPI       = "api"
)

// Status label values.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Scan metrics
	scansTotal     *prometheus.CounterVec
	scanDuration   *prometheus.HistogramVec
	portsScanned    *prometheus.CounterVec
	agentsDetected *prometheus.CounterVec
	activeScans    prometheus.Gauge

	// Discovery metrics
	devicesDiscovered *prometheus.CounterVec
	discoveryDuration *prometheus.HistogramVec

	// Store metrics
	storeQueries       *prometheus.CounterVec
	storeQueryDuration *prometheus.HistogramVec

	// Worker pool metrics
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// System metrics
	memoryUsage prometheus.Gauge
	goroutines  prometheus.Gauge
	uptime      prometheus.Gauge

	startTime  time.Time
	lastUpdate time.Time
	mu         sync.RWMutex
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initScanMetrics()
	pm.initDiscoveryMetrics()
	pm.initStoreMetrics()
	pm.initWorkerMetrics()
	pm.initAPIMetrics()
	pm.initSystemMetrics()

	pm.registerMetrics()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scans by mode and status",
		},
		[]string{"mode", "status"},
	)

	pm.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of complete scans in seconds",
			Buckets:   []float64{0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 300.0, 900.0},
		},
		[]string{"mode"},
	)

	pm.portsScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "ports_scanned_total",
			Help:      "Total number of TCP ports scanned by result",
		},
		[]string{"result"},
	)

	pm.agentsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "agents_detected_total",
			Help:      "Total number of AI or developer agents detected",
		},
		[]string{"agent"},
	)

	pm.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of currently running scans",
		},
	)
}

func (pm *PrometheusMetrics) initDiscoveryMetrics() {
	pm.devicesDiscovered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDiscovery,
			Name:      "devices_total",
			Help:      "Total number of devices discovered by method",
		},
		[]string{"method"},
	)

	pm.discoveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemDiscovery,
			Name:      "duration_seconds",
			Help:      "Duration of discovery in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		},
		[]string{"method"},
	)
}

func (pm *PrometheusMetrics) initStoreMetrics() {
	pm.storeQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemStore,
			Name:      "queries_total",
			Help:      "Total number of store queries by operation and status",
		},
		[]string{"operation", "status"},
	)

	pm.storeQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemStore,
			Name:      "query_duration_seconds",
			Help:      "Duration of store queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"operation"},
	)
}

func (pm *PrometheusMetrics) initWorkerMetrics() {
	pm.tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemWorkers,
			Name:      "tasks_total",
			Help:      "Total number of blocking tasks executed by kind and status",
		},
		[]string{"kind", "status"},
	)

	pm.taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemWorkers,
			Name:      "task_duration_seconds",
			Help:      "Duration of blocking tasks in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
		[]string{"kind"},
	)
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "path"},
	)
}

func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.memoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "memory_bytes",
			Help:      "Current memory usage in bytes",
		},
	)

	pm.goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	pm.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		},
	)
}

func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.scansTotal,
		pm.scanDuration,
		pm.portsScanned,
		pm.agentsDetected,
		pm.activeScans,

		pm.devicesDiscovered,
		pm.discoveryDuration,

		pm.storeQueries,
		pm.storeQueryDuration,

		pm.tasksTotal,
		pm.taskDuration,

		pm.httpRequests,
		pm.httpDuration,

		pm.memoryUsage,
		pm.goroutines,
		pm.uptime,
	)
}

// GetRegistry returns the Prometheus registry for HTTP handler
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Scan Metrics Methods

// IncrementScansTotal increments the total scan counter
func (pm *PrometheusMetrics) IncrementScansTotal(mode, status string) {
	pm.scansTotal.WithLabelValues(mode, status).Inc()
}

// RecordScanDuration records a scan duration
func (pm *PrometheusMetrics) RecordScanDuration(mode string, duration time.Duration) {
	pm.scanDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// AddPortsScanned adds to the scanned port counter for a result ("open" or "closed").
func (pm *PrometheusMetrics) AddPortsScanned(result string, count int) {
	pm.portsScanned.WithLabelValues(result).Add(float64(count))
}

// IncrementAgentsDetected counts a detected agent.
func (pm *PrometheusMetrics) IncrementAgentsDetected(agent string) {
	pm.agentsDetected.WithLabelValues(agent).Inc()
}

// ScanStarted bumps the active scan gauge.
func (pm *PrometheusMetrics) ScanStarted() {
	pm.activeScans.Inc()
}

// ScanFinished lowers the active scan gauge.
func (pm *PrometheusMetrics) ScanFinished() {
	pm.activeScans.Dec()
}

// Discovery Metrics Methods

// AddDevicesDiscovered increments the discovered device counter
func (pm *PrometheusMetrics) AddDevicesDiscovered(method string, count int) {
	pm.devicesDiscovered.WithLabelValues(method).Add(float64(count))
}

// RecordDiscoveryDuration records discovery duration
func (pm *PrometheusMetrics) RecordDiscoveryDuration(method string, duration time.Duration) {
	pm.discoveryDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Store Metrics Methods

// RecordStoreQuery records the outcome and duration of a store query.
func (pm *PrometheusMetrics) RecordStoreQuery(operation string, duration time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	pm.storeQueries.WithLabelValues(operation, status).Inc()
	pm.storeQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Worker Metrics Methods

// RecordTask records the outcome and duration of a blocking task.
func (pm *PrometheusMetrics) RecordTask(kind string, duration time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	pm.tasksTotal.WithLabelValues(kind, status).Inc()
	pm.taskDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// API Metrics Methods

// RecordHTTPRequest records an HTTP request.
func (pm *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	pm.httpRequests.WithLabelValues(method, path, status).Inc()
	pm.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// System Metrics Methods

// UpdateSystemMetrics updates all system metrics with current values
func (pm *PrometheusMetrics) UpdateSystemMetrics() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	pm.memoryUsage.Set(float64(memStats.Alloc))
	pm.goroutines.Set(float64(runtime.NumGoroutine()))
	pm.uptime.Set(time.Since(pm.startTime).Seconds())

	pm.lastUpdate = time.Now()
}

// GetUptime returns the application uptime
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// GetLastUpdate returns the last metrics update time
func (pm *PrometheusMetrics) GetLastUpdate() time.Time {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.lastUpdate
}

// StartPeriodicUpdates updates system metrics every interval until ctx is done.
func (pm *PrometheusMetrics) StartPeriodicUpdates(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pm.UpdateSystemMetrics()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.UpdateSystemMetrics()
		}
	}
}

var globalMetrics *PrometheusMetrics
var metricsOnce sync.Once

// GetGlobalMetrics returns the global Prometheus metrics instance
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}

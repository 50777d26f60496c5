package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/anstrom/netrecon/internal/errors"
	"github.com/anstrom/netrecon/internal/logging"
)

const healthCheckTimeout = 5 * time.Second

// Status constants.
const (
	StatusHealthy       = "healthy"
	StatusUnhealthy     = "unhealthy"
	StatusNotConfigured = "not configured"
)

var errNoStore = errors.NewScanError(errors.CodeNotFound, "persistence is not configured")

// DatabasePinger defines the interface for database health checking.
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Uptime      string            `json:"uptime"`
	ScanRunning bool              `json:"scan_running"`
	Checks      map[string]string `json:"checks"`
}

// HealthHandler handles the health endpoint.
type HealthHandler struct {
	database    DatabasePinger
	coordinator Coordinator
	logger      *logging.Logger
	startTime   time.Time
}

// NewHealthHandler creates a new health handler. database may be nil.
func NewHealthHandler(database DatabasePinger, coord Coordinator, logger *logging.Logger) *HealthHandler {
	return &HealthHandler{
		database:    database,
		coordinator: coord,
		logger:      logger.WithFields("handler", "health"),
		startTime:   time.Now(),
	}
}

// Health performs a basic health check.
//
// @Summary Health check
// @Description Returns service health including database connectivity.
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
// @ID getHealth
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response := HealthResponse{
		Status:      StatusHealthy,
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		ScanRunning: h.coordinator.Status().Running,
		Checks:      make(map[string]string),
	}

	if h.database != nil {
		if err := h.database.PingContext(ctx); err != nil {
			response.Status = StatusUnhealthy
			response.Checks["database"] = "failed"
			h.logger.Warn("Database health check failed", "error", err)
		} else {
			response.Checks["database"] = "ok"
		}
	} else {
		response.Checks["database"] = StatusNotConfigured
	}

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, r, statusCode, response)
}

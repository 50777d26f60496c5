package handlers

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/anstrom/netrecon/internal/coordinator"
	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/netmap"
)

// ScanResult is the outcome of the last completed scan.
type ScanResult struct {
	ScanID      string          `json:"scan_id,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Devices     []netmap.Device `json:"devices"`
}

// Results keeps the last successful scan result.
type Results struct {
	mu   sync.RWMutex
	last ScanResult
}

// NewResults creates an empty result holder.
func NewResults() *Results {
	return &Results{last: ScanResult{Devices: []netmap.Device{}}}
}

// Publish records the devices of a successful Complete event and ignores
// everything else.
func (r *Results) Publish(ev coordinator.Event) {
	if ev.Progress.Phase != netmap.PhaseComplete || ev.Err != nil {
		return
	}
	now := time.Now().UTC()
	devices := ev.Devices
	if devices == nil {
		devices = []netmap.Device{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = ScanResult{ScanID: ev.ScanID, CompletedAt: &now, Devices: devices}
}

// Last returns the last successful scan result.
func (r *Results) Last() ScanResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// StoredDevices lists persisted devices.
type StoredDevices struct {
	Network string                `json:"network,omitempty"`
	Devices []netmap.DeviceRecord `json:"devices"`
}

// DeviceHandler serves device listings.
type DeviceHandler struct {
	results *Results
	store   netmap.Store
	network string
	logger  *logging.Logger
}

// NewDeviceHandler creates a device handler. store may be nil.
func NewDeviceHandler(results *Results, store netmap.Store, network string, logger *logging.Logger) *DeviceHandler {
	return &DeviceHandler{
		results: results,
		store:   store,
		network: network,
		logger:  logger.WithFields("handler", "devices"),
	}
}

// ListDevices handles GET /api/v1/devices.
//
// @Summary List devices
// @Description Returns the devices of the last completed scan. With stored=true the persisted
// @Description inventory is returned as StoredDevices, filtered by network ("all" lists every network).
// @Tags Devices
// @Produce json
// @Param stored query bool false "List persisted devices"
// @Param network query string false "Network identifier for stored devices"
// @Success 200 {object} ScanResult
// @Failure 404 {object} ErrorResponse "Persistence is not configured"
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/devices [get]
// @ID listDevices
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	stored, _ := strconv.ParseBool(r.URL.Query().Get("stored"))
	if !stored {
		writeJSON(w, r, http.StatusOK, h.results.Last())
		return
	}

	if h.store == nil {
		writeError(w, r, http.StatusNotFound, errNoStore)
		return
	}

	network := r.URL.Query().Get("network")
	if network == "" {
		network = h.network
	}
	if network == "all" {
		network = ""
	}

	records, err := h.store.ListDevices(r.Context(), network)
	if err != nil {
		h.logger.Error("Failed to list stored devices", "error", err, "network", network)
		writeError(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, r, http.StatusOK, StoredDevices{Network: network, Devices: records})
}

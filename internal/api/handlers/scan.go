package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/anstrom/netrecon/internal/coordinator"
	"github.com/anstrom/netrecon/internal/errors"
	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/scanning"
)

// ScanRequest is the body of POST /api/v1/scans.
type ScanRequest struct {
	Full bool `json:"full"`
	// Optional port list, e.g. "22,80,8000-8010".
	Ports string `json:"ports,omitempty"`
}

// ScanAccepted is returned when a scan starts.
type ScanAccepted struct {
	ScanID string `json:"scan_id"`
	Full   bool   `json:"full"`
	Ports  int    `json:"ports,omitempty"`
}

// ScanHandler starts, inspects and cancels scans.
type ScanHandler struct {
	// ctx outlives the request that started the scan.
	ctx         context.Context
	coordinator Coordinator
	publisher   Publisher
	logger      *logging.Logger
}

// NewScanHandler creates a scan handler. Scans started through it run
// under ctx and their events are handed to publisher.
func NewScanHandler(ctx context.Context, coord Coordinator, publisher Publisher,
	logger *logging.Logger) *ScanHandler {
	return &ScanHandler{
		ctx:         ctx,
		coordinator: coord,
		publisher:   publisher,
		logger:      logger.WithFields("handler", "scan"),
	}
}

// StartScan handles POST /api/v1/scans.
//
// @Summary Start a scan
// @Description Starts discovery, port scanning and identification. Progress is streamed on /ws.
// @Tags Scans
// @Accept json
// @Produce json
// @Param scan body ScanRequest false "Scan options"
// @Success 202 {object} ScanAccepted
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "A scan is already running"
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/scans [post]
// @ID startScan
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	var body ScanRequest
	if err := parseJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	req := coordinator.ScanRequest{ID: uuid.NewString(), Full: body.Full}
	if body.Ports != "" {
		ports, err := scanning.ParsePorts(body.Ports)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		req.Ports = ports
	}

	events, err := h.coordinator.Start(h.ctx, req)
	if err != nil {
		if !errors.IsCode(err, errors.CodeScanInProgress) {
			h.logger.Error("Failed to start scan", "error", err)
		}
		writeError(w, r, statusForError(err), err)
		return
	}

	h.logger.Info("Scan started", "scan_id", req.ID, "full", req.Full)
	go h.drain(events)

	writeJSON(w, r, http.StatusAccepted, ScanAccepted{
		ScanID: req.ID,
		Full:   req.Full,
		Ports:  len(req.Ports),
	})
}

func (h *ScanHandler) drain(events <-chan coordinator.Event) {
	for ev := range events {
		if h.publisher != nil {
			h.publisher.Publish(ev)
		}
	}
}

// CurrentScan handles GET /api/v1/scans/current.
//
// @Summary Current scan
// @Description Returns the state of the running scan, or of the last one when idle.
// @Tags Scans
// @Produce json
// @Success 200 {object} coordinator.Status
// @Router /api/v1/scans/current [get]
// @ID getCurrentScan
func (h *ScanHandler) CurrentScan(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.coordinator.Status())
}

// CancelScan handles DELETE /api/v1/scans/current.
//
// @Summary Cancel the running scan
// @Description A cancelled scan delivers no result.
// @Tags Scans
// @Success 204
// @Failure 404 {object} ErrorResponse "No scan in progress"
// @Router /api/v1/scans/current [delete]
// @ID cancelScan
func (h *ScanHandler) CancelScan(w http.ResponseWriter, r *http.Request) {
	if !h.coordinator.Cancel() {
		writeError(w, r, http.StatusNotFound, errors.NewScanError(errors.CodeNotFound, "no scan in progress"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

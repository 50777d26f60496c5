// Package handlers provides HTTP request handlers for the netrecon API.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/anstrom/netrecon/internal/api/middleware"
	"github.com/anstrom/netrecon/internal/coordinator"
	"github.com/anstrom/netrecon/internal/errors"
)

// maxRequestSize bounds request bodies. Scan requests are tiny.
const maxRequestSize = 64 * 1024

// Coordinator is the scan control surface used by the handlers.
type Coordinator interface {
	Start(ctx context.Context, req coordinator.ScanRequest) (<-chan coordinator.Event, error)
	Cancel() bool
	Status() coordinator.Status
}

// Publisher receives every scan event.
type Publisher interface {
	Publish(ev coordinator.Event)
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	writeJSON(w, r, statusCode, ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	})
}

// statusForError maps an error code to an HTTP status.
func statusForError(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeValidation, errors.CodeTargetInvalid:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeConflict, errors.CodeScanInProgress:
		return http.StatusConflict
	case errors.CodeTimeout, errors.CodeDatabaseTimeout:
		return http.StatusGatewayTimeout
	case errors.CodeDatabaseConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseJSON decodes an optional JSON body. An empty body leaves dest
// untouched.
func parseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.NewScanError(errors.CodeValidation, "request body too large")
		}
		return errors.NewScanError(errors.CodeValidation, fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

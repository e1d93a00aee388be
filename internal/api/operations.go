package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// handleDiagnostics returns the installation diagnostics report.
func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	b := s.getBroker()
	if b == nil {
		writeNotReady(w, "installation setup has not completed")
		return
	}
	writeJSON(w, http.StatusOK, b.Diagnostics())
}

// healthCheckRequest is the request body for POST /health-check.
// An empty body, or an empty device_id, checks every device.
type healthCheckRequest struct {
	DeviceID string `json:"device_id,omitempty"`
}

// handleHealthCheck runs a health check over one device or the whole
// installation.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	b := s.getBroker()
	if b == nil {
		writeNotReady(w, "installation setup has not completed")
		return
	}

	var req healthCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	report, err := b.HealthCheck(r.Context(), req.DeviceID)
	if err != nil {
		writeBrokerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

// deviceResponse is the JSON shape of a device in list and detail responses.
type deviceResponse struct {
	DeviceID     string   `json:"device_id"`
	Label        string   `json:"label"`
	Name         string   `json:"name,omitempty"`
	Type         string   `json:"type"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Firmware     string   `json:"firmware,omitempty"`
	Hardware     string   `json:"hardware,omitempty"`
	Capabilities []string `json:"capabilities"`
	Components   []string `json:"components"`

	Reachable      bool     `json:"reachable"`
	BatteryLevel   *float64 `json:"battery_level,omitempty"`
	BatteryHealth  string   `json:"battery_health,omitempty"`
	SignalStrength *float64 `json:"signal_strength,omitempty"`
	SignalQuality  string   `json:"signal_quality,omitempty"`
}

// newDeviceResponse builds the response shape from a broker device snapshot.
func newDeviceResponse(device *broker.Device) deviceResponse {
	resp := deviceResponse{
		DeviceID:     device.ID(),
		Label:        device.Label(),
		Name:         device.Info().Name,
		Type:         string(device.Info().Type),
		Capabilities: device.Capabilities(),
		Components:   device.Components(),
		Reachable:    device.Available(),
	}
	if ocf := device.Info().OCF; ocf != nil {
		resp.Manufacturer = ocf.ManufacturerName
		resp.Model = ocf.ModelNumber
		resp.Firmware = ocf.FirmwareVersion
		resp.Hardware = ocf.HwVersion
	}
	if battery, ok := device.Battery(); ok {
		resp.BatteryLevel = &battery
		resp.BatteryHealth = broker.BatteryHealth(battery)
	}
	if signal, ok := device.SignalStrength(); ok {
		resp.SignalStrength = &signal
		resp.SignalQuality = broker.SignalQuality(signal)
	}
	return resp
}

// handleListDevices returns every device of the installation.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	b := s.getBroker()
	if b == nil {
		writeNotReady(w, "installation setup has not completed")
		return
	}

	devices := b.Devices()
	resp := make([]deviceResponse, 0, len(devices))
	for _, device := range devices {
		resp = append(resp, newDeviceResponse(device))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": resp,
		"count":   len(resp),
	})
}

// handleGetDevice returns one device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	b := s.getBroker()
	if b == nil {
		writeNotReady(w, "installation setup has not completed")
		return
	}

	device := b.Device(chi.URLParam(r, "id"))
	if device == nil {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, newDeviceResponse(device))
}

// commandRequest is the request body for POST /devices/{id}/commands.
type commandRequest struct {
	Component  string `json:"component,omitempty"`
	Capability string `json:"capability"`
	Command    string `json:"command"`
	Arguments  []any  `json:"arguments,omitempty"`
}

// handleDeviceCommand sends a capability command to a device.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	b := s.getBroker()
	if b == nil {
		writeNotReady(w, "installation setup has not completed")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Capability == "" || req.Command == "" {
		writeBadRequest(w, "capability and command are required")
		return
	}
	if req.Component == "" {
		req.Component = broker.ComponentMain
	}

	deviceID := chi.URLParam(r, "id")
	if err := b.SendCommand(r.Context(), deviceID, req.Component, req.Capability, req.Command, req.Arguments); err != nil {
		writeBrokerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":  deviceID,
		"component":  req.Component,
		"capability": req.Capability,
		"command":    req.Command,
	})
}

// handleRefreshDevice re-fetches a device's full status from the cloud
// and returns the refreshed snapshot.
func (s *Server) handleRefreshDevice(w http.ResponseWriter, r *http.Request) {
	b := s.getBroker()
	if b == nil {
		writeNotReady(w, "installation setup has not completed")
		return
	}

	deviceID := chi.URLParam(r, "id")
	if err := b.RefreshDevice(r.Context(), deviceID); err != nil {
		writeBrokerError(w, err)
		return
	}
	device := b.Device(deviceID)
	if device == nil {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, newDeviceResponse(device))
}

package broker

import (
	"context"
	"fmt"
	"time"

	smartthings "github.com/tj-smith47/smartthings-go"
)

// SendCommand executes a capability command on a device. Failures are
// logged and returned to the caller.
func (b *DeviceBroker) SendCommand(ctx context.Context, deviceID, componentID, capability, command string, arguments []any) error {
	if componentID == "" {
		componentID = ComponentMain
	}
	cmd := smartthings.Command{
		Component:  componentID,
		Capability: capability,
		Command:    command,
		Arguments:  arguments,
	}
	if err := b.api.ExecuteCommand(ctx, deviceID, cmd); err != nil {
		b.logger.Error("command failed",
			"device_id", deviceID, "capability", capability, "command", command, "error", err)
		return fmt.Errorf("sending %s.%s to %s: %w", capability, command, deviceID, err)
	}
	b.logger.Info("command sent",
		"device_id", deviceID, "capability", capability, "command", command, "arguments", arguments)
	return nil
}

// RefreshDevice re-fetches a device's full status from the cloud and
// broadcasts an update notification for that device.
func (b *DeviceBroker) RefreshDevice(ctx context.Context, deviceID string) error {
	device, ok := b.devices[deviceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	status, err := b.api.GetDeviceFullStatus(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("refreshing device %s: %w", deviceID, err)
	}
	device.ApplyFullStatus(status)

	b.dispatcher.BroadcastUpdate(map[string]struct{}{deviceID: {}})
	b.logger.Info("refreshed device status", "device_id", deviceID)
	return nil
}

// ExecuteScene executes a scene of the installation's location.
func (b *DeviceBroker) ExecuteScene(ctx context.Context, sceneID string) error {
	if _, ok := b.scenes[sceneID]; !ok {
		return fmt.Errorf("%w: %s", ErrSceneNotFound, sceneID)
	}
	if err := b.api.ExecuteScene(ctx, sceneID); err != nil {
		b.logger.Error("scene execution failed", "scene_id", sceneID, "error", err)
		return fmt.Errorf("executing scene %s: %w", sceneID, err)
	}
	b.logger.Info("executed scene", "scene_id", sceneID)
	return nil
}

// DiagnosticsReport describes the current state of an installation.
type DiagnosticsReport struct {
	Timestamp      time.Time           `json:"timestamp"`
	InstalledAppID string              `json:"installed_app_id"`
	LocationID     string              `json:"location_id"`
	DeviceCount    int                 `json:"device_count"`
	SceneCount     int                 `json:"scene_count"`
	Subscribers    int                 `json:"subscribers"`
	Devices        []DeviceDiagnostics `json:"devices"`
}

// DeviceDiagnostics describes a single device in a diagnostics report.
type DeviceDiagnostics struct {
	DeviceID     string   `json:"device_id"`
	Label        string   `json:"label"`
	Type         string   `json:"type"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Firmware     string   `json:"firmware,omitempty"`
	Hardware     string   `json:"hardware,omitempty"`
	Capabilities []string `json:"capabilities"`
	Components   []string `json:"components"`

	Reachable      bool     `json:"reachable"`
	BatteryLevel   *float64 `json:"battery_level,omitempty"`
	SignalStrength *float64 `json:"signal_strength,omitempty"`
}

// Diagnostics assembles a report over all devices of the installation.
func (b *DeviceBroker) Diagnostics() *DiagnosticsReport {
	report := &DiagnosticsReport{
		Timestamp:      time.Now().UTC(),
		InstalledAppID: b.installedAppID,
		LocationID:     b.locationID,
		DeviceCount:    len(b.devices),
		SceneCount:     len(b.scenes),
		Subscribers:    b.dispatcher.SubscriberCount(),
	}

	for _, device := range b.devices {
		diag := DeviceDiagnostics{
			DeviceID:     device.ID(),
			Label:        device.Label(),
			Type:         string(device.Info().Type),
			Capabilities: device.Capabilities(),
			Components:   device.Components(),
			Reachable:    device.Available(),
		}
		if ocf := device.Info().OCF; ocf != nil {
			diag.Manufacturer = ocf.ManufacturerName
			diag.Model = ocf.ModelNumber
			diag.Firmware = ocf.FirmwareVersion
			diag.Hardware = ocf.HwVersion
		}
		if battery, ok := device.Battery(); ok {
			diag.BatteryLevel = &battery
		}
		if signal, ok := device.SignalStrength(); ok {
			diag.SignalStrength = &signal
		}
		report.Devices = append(report.Devices, diag)
	}

	return report
}

// CheckStatus grades a single health check.
type CheckStatus string

// Health check grades, ordered from best to worst.
const (
	CheckOK      CheckStatus = "ok"
	CheckWarning CheckStatus = "warning"
	CheckError   CheckStatus = "error"
)

// HealthReport is the result of a health check over one or all devices.
type HealthReport struct {
	Timestamp time.Time           `json:"timestamp"`
	Results   []DeviceHealthCheck `json:"results"`
}

// DeviceHealthCheck is the health check result for one device.
type DeviceHealthCheck struct {
	DeviceID string `json:"device_id"`
	Label    string `json:"label"`

	Connectivity CheckStatus   `json:"connectivity"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`

	Available bool `json:"available"`

	BatteryLevel  *float64 `json:"battery_level,omitempty"`
	BatteryHealth string   `json:"battery_health,omitempty"`

	SignalStrength *float64 `json:"signal_strength,omitempty"`
	SignalQuality  string   `json:"signal_quality,omitempty"`

	Overall CheckStatus `json:"overall"`
}

// HealthCheck runs a health check on one device, or on every device of
// the installation when deviceID is empty.
//
// Each check refreshes the device's status as a connectivity probe, then
// grades availability, battery level, and signal strength. The overall
// grade is the worst individual grade.
func (b *DeviceBroker) HealthCheck(ctx context.Context, deviceID string) (*HealthReport, error) {
	var targets []*Device
	if deviceID == "" {
		targets = b.Devices()
	} else {
		device, ok := b.devices[deviceID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
		}
		targets = []*Device{device}
	}

	report := &HealthReport{Timestamp: time.Now().UTC()}
	for _, device := range targets {
		report.Results = append(report.Results, b.checkDevice(ctx, device))
	}

	healthy := 0
	for _, r := range report.Results {
		if r.Overall == CheckOK {
			healthy++
		}
	}
	b.logger.Info("device health check complete",
		"total", len(report.Results), "healthy", healthy)
	return report, nil
}

func (b *DeviceBroker) checkDevice(ctx context.Context, device *Device) DeviceHealthCheck {
	check := DeviceHealthCheck{
		DeviceID: device.ID(),
		Label:    device.Label(),
	}

	start := time.Now()
	status, err := b.api.GetDeviceFullStatus(ctx, device.ID())
	check.ResponseTime = time.Since(start)
	if err != nil {
		check.Connectivity = CheckError
		check.Error = err.Error()
		check.Overall = CheckError
		if b.recorder != nil {
			b.recorder.WriteHealthCheck(device.ID(), false, check.ResponseTime)
		}
		return check
	}
	device.ApplyFullStatus(status)
	check.Connectivity = CheckOK

	check.Available = device.Available()

	if battery, ok := device.Battery(); ok {
		check.BatteryLevel = &battery
		check.BatteryHealth = BatteryHealth(battery)
	}
	if signal, ok := device.SignalStrength(); ok {
		check.SignalStrength = &signal
		check.SignalQuality = SignalQuality(signal)
	}

	check.Overall = overallHealth(check)

	if b.recorder != nil {
		b.recorder.WriteHealthCheck(device.ID(), check.Available, check.ResponseTime)
	}
	return check
}

// overallHealth reduces the individual checks to the worst grade.
func overallHealth(check DeviceHealthCheck) CheckStatus {
	if check.Connectivity == CheckError || !check.Available {
		return CheckError
	}
	if check.BatteryHealth == "critical" || check.BatteryHealth == "low" {
		return CheckWarning
	}
	if check.SignalQuality == "poor" {
		return CheckWarning
	}
	return CheckOK
}

package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

// vacuumStateMap translates robot cleaner movement and cleaning mode
// values into vacuum states.
var vacuumStateMap = map[string]string{
	"homing":   "returning",
	"charging": "docked",
	"cleaning": "cleaning",
	"idle":     "idle",
	"paused":   "paused",
	"auto":     "cleaning",
	"spot":     "cleaning",
	"edge":     "cleaning",
	"single":   "cleaning",
	"stop":     "idle",
	"pause":    "paused",
}

// fanSpeedMap translates cleaning modes into fan speed display names.
var fanSpeedMap = map[string]string{
	"auto":     "Auto",
	"quiet":    "Quiet",
	"standard": "Standard",
	"medium":   "Medium",
	"high":     "High",
	"turbo":    "Turbo",
	"max":      "Max",
	"eco":      "Eco",
	"spot":     "Spot Clean",
	"edge":     "Edge Clean",
	"single":   "Single Room",
}

// VacuumPlatform exposes robot cleaner devices as vacuum entities.
type VacuumPlatform struct{}

// Name returns the platform identifier.
func (VacuumPlatform) Name() string { return "vacuum" }

// GetCapabilities claims the robot cleaner control capabilities.
func (VacuumPlatform) GetCapabilities(capabilities []string) []string {
	var claimed []string
	for _, capability := range []string{broker.CapabilityRobotCleanerCleaningMode, broker.CapabilityRobotCleanerMovement} {
		if containsString(capabilities, capability) {
			claimed = append(claimed, capability)
		}
	}
	return claimed
}

// Entities builds one vacuum entity per device with an assigned robot
// cleaner capability.
func (VacuumPlatform) Entities(device *broker.Device, capabilities []string, commander Commander) []Entity {
	if len(capabilities) == 0 {
		return nil
	}
	name := "Robot Cleaner"
	if containsString(capabilities, broker.CapabilityRobotCleanerCleaningMode) {
		name = "Robot Vacuum"
	}
	return []Entity{&vacuumEntity{
		Base: newBase(device, commander, "vacuum", "vacuum",
			fmt.Sprintf("%s %s", device.Label(), name)),
		capabilities: capabilities,
	}}
}

type vacuumEntity struct {
	Base
	capabilities []string
}

// vacuumState is the JSON state payload.
type vacuumState struct {
	State        string   `json:"state"`
	BatteryLevel *float64 `json:"battery_level,omitempty"`
	FanSpeed     string   `json:"fan_speed,omitempty"`
}

// State renders the vacuum state, battery level and fan speed.
func (e *vacuumEntity) State() (string, bool) {
	state := vacuumState{
		State:    e.cleanerState(),
		FanSpeed: e.fanSpeed(),
	}
	if level, ok := e.device.Battery(); ok {
		state.BatteryLevel = &level
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", false
	}
	return string(payload), true
}

// cleanerState reads the movement attribute first, then the cleaning
// mode, mapping both through the state table.
func (e *vacuumEntity) cleanerState() string {
	if e.device.HasCapability(broker.CapabilityRobotCleanerMovement) {
		movement := e.device.StringAttribute(broker.CapabilityRobotCleanerMovement, "robotCleanerMovement")
		if mapped, ok := vacuumStateMap[movement]; ok {
			return mapped
		}
	}
	if e.device.HasCapability(broker.CapabilityRobotCleanerCleaningMode) {
		mode := e.device.StringAttribute(broker.CapabilityRobotCleanerCleaningMode, "robotCleanerCleaningMode")
		if mapped, ok := vacuumStateMap[mode]; ok {
			return mapped
		}
	}
	return "idle"
}

// fanSpeed reports Turbo while turbo mode is on, otherwise maps the
// current cleaning mode.
func (e *vacuumEntity) fanSpeed() string {
	if e.device.HasCapability(broker.CapabilityRobotCleanerTurboMode) {
		if e.device.StringAttribute(broker.CapabilityRobotCleanerTurboMode, "robotCleanerTurboMode") == "on" {
			return "Turbo"
		}
	}
	if e.device.HasCapability(broker.CapabilityRobotCleanerCleaningMode) {
		mode := e.device.StringAttribute(broker.CapabilityRobotCleanerCleaningMode, "robotCleanerCleaningMode")
		if mapped, ok := fanSpeedMap[mode]; ok {
			return mapped
		}
	}
	return "Standard"
}

// DiscoveryExtras declares the fan speed list for discovery.
func (e *vacuumEntity) DiscoveryExtras() map[string]any {
	return map[string]any{"fan_speed_list": e.fanSpeedList()}
}

func (e *vacuumEntity) fanSpeedList() []string {
	var speeds []string
	if e.device.HasCapability(broker.CapabilityRobotCleanerTurboMode) {
		speeds = append(speeds, "quiet", "standard", "turbo")
	} else {
		speeds = append(speeds, "quiet", "standard", "high")
	}
	if containsString(e.capabilities, broker.CapabilityRobotCleanerCleaningMode) {
		speeds = append(speeds, "auto", "spot", "edge")
	}

	display := make([]string, 0, len(speeds))
	for _, speed := range speeds {
		if mapped, ok := fanSpeedMap[speed]; ok {
			display = append(display, mapped)
			continue
		}
		display = append(display, titleCase(speed))
	}
	return display
}

// HandleCommand accepts the plain commands start, pause, stop and
// return_to_base; any payload matching a fan speed name sets that speed.
func (e *vacuumEntity) HandleCommand(ctx context.Context, payload []byte) error {
	command := strings.TrimSpace(string(payload))
	switch command {
	case "start":
		return e.control(ctx, "auto", "cleaning")
	case "pause":
		return e.control(ctx, "pause", "paused")
	case "stop":
		return e.control(ctx, "stop", "idle")
	case "return_to_base":
		return e.control(ctx, "homing", "homing")
	case "clean_spot":
		if !containsString(e.capabilities, broker.CapabilityRobotCleanerCleaningMode) {
			return fmt.Errorf("%w: spot cleaning not supported", ErrUnknownCommand)
		}
		return e.send(ctx, broker.CapabilityRobotCleanerCleaningMode, "setRobotCleanerCleaningMode", []any{"spot"})
	default:
		if containsString(e.fanSpeedList(), command) {
			return e.setFanSpeed(ctx, command)
		}
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

// control issues the mode or movement variant of a cleaner command,
// preferring the cleaning mode capability.
func (e *vacuumEntity) control(ctx context.Context, mode, movement string) error {
	if containsString(e.capabilities, broker.CapabilityRobotCleanerCleaningMode) {
		return e.send(ctx, broker.CapabilityRobotCleanerCleaningMode, "setRobotCleanerCleaningMode", []any{mode})
	}
	if containsString(e.capabilities, broker.CapabilityRobotCleanerMovement) {
		return e.send(ctx, broker.CapabilityRobotCleanerMovement, "setRobotCleanerMovement", []any{movement})
	}
	return fmt.Errorf("%w: no cleaner control capability", ErrUnknownCommand)
}

// setFanSpeed toggles turbo mode around the cleaning mode change: turbo
// on for the Turbo speed, off for everything else.
func (e *vacuumEntity) setFanSpeed(ctx context.Context, speed string) error {
	var internal string
	for mode, display := range fanSpeedMap {
		if display == speed {
			internal = mode
			break
		}
	}
	if internal == "" {
		return fmt.Errorf("%w: fan speed %q", ErrInvalidPayload, speed)
	}

	if e.device.HasCapability(broker.CapabilityRobotCleanerTurboMode) {
		turbo := "off"
		if internal == "turbo" {
			turbo = "on"
		}
		if err := e.send(ctx, broker.CapabilityRobotCleanerTurboMode, "setRobotCleanerTurboMode", []any{turbo}); err != nil {
			return err
		}
	}
	if containsString(e.capabilities, broker.CapabilityRobotCleanerCleaningMode) {
		return e.send(ctx, broker.CapabilityRobotCleanerCleaningMode, "setRobotCleanerCleaningMode", []any{internal})
	}
	return nil
}

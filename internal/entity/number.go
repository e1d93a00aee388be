package entity

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

// numberConfig describes a numeric capability setting.
type numberConfig struct {
	attribute string
	command   string
	name      string
	min       float64
	max       float64
	step      float64
	unit      string
}

var numberTable = []struct {
	capability string
	config     numberConfig
}{
	{broker.CapabilityAudioVolume, numberConfig{broker.AttributeVolume, "setVolume", "Volume", 0, 100, 1, "%"}},
	{broker.CapabilityRefrigerationSetpoint, numberConfig{"refrigerationSetpoint", "setRefrigerationSetpoint", "Temperature Setpoint", -20, 20, 1, "°C"}},
	{broker.CapabilityOvenSetpoint, numberConfig{"ovenSetpoint", "setOvenSetpoint", "Oven Setpoint", 0, 300, 5, "°C"}},
	{broker.CapabilityInfraredLevel, numberConfig{"infraredLevel", "setInfraredLevel", "Infrared Level", 0, 100, 1, "%"}},
}

// NumberPlatform exposes numeric capability settings, one entity per
// assigned capability.
type NumberPlatform struct{}

// Name returns the platform identifier.
func (NumberPlatform) Name() string { return "number" }

// GetCapabilities returns the offered capabilities present in the number
// table.
func (NumberPlatform) GetCapabilities(capabilities []string) []string {
	var claimed []string
	for _, row := range numberTable {
		if containsString(capabilities, row.capability) {
			claimed = append(claimed, row.capability)
		}
	}
	return claimed
}

// Entities builds one number entity per assigned capability.
func (NumberPlatform) Entities(device *broker.Device, capabilities []string, commander Commander) []Entity {
	var entities []Entity
	for _, row := range numberTable {
		if !containsString(capabilities, row.capability) {
			continue
		}
		entities = append(entities, &numberEntity{
			Base: newBase(device, commander, "number", row.capability,
				fmt.Sprintf("%s %s", device.Label(), row.config.name)),
			capability: row.capability,
			config:     row.config,
		})
	}
	return entities
}

type numberEntity struct {
	Base
	capability string
	config     numberConfig
}

// State renders the current numeric value.
func (e *numberEntity) State() (string, bool) {
	value, ok := e.device.FloatAttribute(e.capability, e.config.attribute)
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(value, 'f', -1, 64), true
}

// DiscoveryExtras declares the value range for discovery.
func (e *numberEntity) DiscoveryExtras() map[string]any {
	extras := map[string]any{
		"min":  e.config.min,
		"max":  e.config.max,
		"step": e.config.step,
	}
	if e.config.unit != "" {
		extras["unit_of_measurement"] = e.config.unit
	}
	return extras
}

// HandleCommand parses a numeric payload, validates the range and updates
// the status snapshot optimistically after a successful command.
func (e *numberEntity) HandleCommand(ctx context.Context, payload []byte) error {
	value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
	if value < e.config.min || value > e.config.max {
		return fmt.Errorf("%w: %v out of range [%v, %v]", ErrInvalidPayload, value, e.config.min, e.config.max)
	}

	// The cloud expects whole numbers for these settings.
	var arg any = value
	if value == math.Trunc(value) {
		arg = int(value)
	}
	if err := e.send(ctx, e.capability, e.config.command, []any{arg}); err != nil {
		return err
	}
	e.device.ApplyAttributeUpdate(broker.ComponentMain, e.capability, e.config.attribute, value)
	return nil
}

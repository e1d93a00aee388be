package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

// buttonConfig describes the stateless press actions a capability offers.
type buttonConfig struct {
	commands []string
	name     string
}

// buttonTable maps capabilities to press actions. Declaration order fixes
// entity ordering.
var buttonTable = []struct {
	capability string
	config     buttonConfig
}{
	{broker.CapabilitySceneControl, buttonConfig{[]string{"execute"}, "Execute Scene"}},
	{broker.CapabilityButton, buttonConfig{[]string{"push"}, "Push Button"}},
	{broker.CapabilityMomentary, buttonConfig{[]string{"push"}, "Momentary Switch"}},
	{broker.CapabilityPanicAlarm, buttonConfig{[]string{"panic"}, "Panic Button"}},
	{broker.CapabilityWaterSensor, buttonConfig{[]string{"test"}, "Test Water Sensor"}},
	{broker.CapabilitySmokeDetector, buttonConfig{[]string{"test"}, "Test Smoke Detector"}},
	{broker.CapabilityCarbonMonoxideDetector, buttonConfig{[]string{"test"}, "Test CO Detector"}},
	{broker.CapabilityChime, buttonConfig{[]string{"chime"}, "Chime"}},
	{broker.CapabilityMediaInputSource, buttonConfig{[]string{"showInputSource"}, "Show Input Source"}},
	{broker.CapabilityWasherOperatingState, buttonConfig{[]string{"start", "pause", "stop"}, "Washer Control"}},
	{broker.CapabilityDryerOperatingState, buttonConfig{[]string{"start", "pause", "stop"}, "Dryer Control"}},
	{broker.CapabilityDishwasherOperatingState, buttonConfig{[]string{"start", "pause", "stop"}, "Dishwasher Control"}},
	{broker.CapabilityOvenOperatingState, buttonConfig{[]string{"start", "pause", "stop"}, "Oven Control"}},
	{broker.CapabilityRobotCleanerCleaningMode, buttonConfig{[]string{"start", "pause", "stop", "homing"}, "Robot Cleaner Control"}},
}

// ButtonPlatform exposes command-only capabilities as press buttons, one
// entity per (capability, command) pair.
type ButtonPlatform struct{}

// Name returns the platform identifier.
func (ButtonPlatform) Name() string { return "button" }

// GetCapabilities returns the offered capabilities present in the button
// table.
func (ButtonPlatform) GetCapabilities(capabilities []string) []string {
	var claimed []string
	for _, row := range buttonTable {
		if containsString(capabilities, row.capability) {
			claimed = append(claimed, row.capability)
		}
	}
	return claimed
}

// Entities builds one button per command of each assigned capability.
func (ButtonPlatform) Entities(device *broker.Device, capabilities []string, commander Commander) []Entity {
	var entities []Entity
	for _, row := range buttonTable {
		if !containsString(capabilities, row.capability) {
			continue
		}
		for _, command := range row.config.commands {
			entities = append(entities, &buttonEntity{
				Base: newBase(device, commander, "button",
					row.capability+"_"+command,
					fmt.Sprintf("%s %s - %s", device.Label(), row.config.name, titleCase(command))),
				capability: row.capability,
				command:    command,
			})
		}
	}
	return entities
}

type buttonEntity struct {
	Base
	capability string
	command    string
}

// State returns no payload; buttons are stateless.
func (e *buttonEntity) State() (string, bool) { return "", false }

// HandleCommand sends the configured command regardless of the payload.
func (e *buttonEntity) HandleCommand(ctx context.Context, _ []byte) error {
	return e.send(ctx, e.capability, e.command, []any{})
}

// titleCase upper-cases the first letter of a command name for display.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

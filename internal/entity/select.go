package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

// selectConfig describes a mode capability with enumerated options.
type selectConfig struct {
	attribute string
	command   string
	name      string
}

var selectTable = []struct {
	capability string
	config     selectConfig
}{
	{broker.CapabilityWasherMode, selectConfig{"washerMode", "setMachineState", "Washer Mode"}},
	{broker.CapabilityDryerMode, selectConfig{"dryerMode", "setMachineState", "Dryer Mode"}},
	{broker.CapabilityAirConditionerMode, selectConfig{"airConditionerMode", "setAirConditionerMode", "AC Mode"}},
	{broker.CapabilityDishwasherMode, selectConfig{"dishwasherMode", "setMachineState", "Dishwasher Mode"}},
	{broker.CapabilityOvenMode, selectConfig{"ovenMode", "setOvenMode", "Oven Mode"}},
	{broker.CapabilityRobotCleanerCleaningMode, selectConfig{"robotCleanerCleaningMode", "setRobotCleanerCleaningMode", "Cleaning Mode"}},
	{broker.CapabilityMediaInputSource, selectConfig{"inputSource", "setInputSource", "Input Source"}},
}

// SelectPlatform exposes mode capabilities as option selectors, one entity
// per assigned capability.
type SelectPlatform struct{}

// Name returns the platform identifier.
func (SelectPlatform) Name() string { return "select" }

// GetCapabilities returns the offered capabilities present in the select
// table.
func (SelectPlatform) GetCapabilities(capabilities []string) []string {
	var claimed []string
	for _, row := range selectTable {
		if containsString(capabilities, row.capability) {
			claimed = append(claimed, row.capability)
		}
	}
	return claimed
}

// Entities builds one select entity per assigned capability.
func (SelectPlatform) Entities(device *broker.Device, capabilities []string, commander Commander) []Entity {
	var entities []Entity
	for _, row := range selectTable {
		if !containsString(capabilities, row.capability) {
			continue
		}
		entities = append(entities, &selectEntity{
			Base: newBase(device, commander, "select", row.capability,
				fmt.Sprintf("%s %s", device.Label(), row.config.name)),
			capability: row.capability,
			config:     row.config,
		})
	}
	return entities
}

type selectEntity struct {
	Base
	capability string
	config     selectConfig
}

// State renders the currently selected option.
func (e *selectEntity) State() (string, bool) {
	current := e.device.StringAttribute(e.capability, e.config.attribute)
	return current, current != ""
}

// DiscoveryExtras declares the option list for discovery.
func (e *selectEntity) DiscoveryExtras() map[string]any {
	return map[string]any{"options": e.Options()}
}

// Options returns the selectable values from the capability's
// supported-values attribute, falling back to the current value.
func (e *selectEntity) Options() []string {
	if supported := e.supportedValues(); len(supported) > 0 {
		return supported
	}
	if current := e.device.StringAttribute(e.capability, e.config.attribute); current != "" {
		return []string{current}
	}
	return nil
}

// supportedValues reads the supported<Attribute>s status attribute.
func (e *selectEntity) supportedValues() []string {
	value, ok := e.device.Attribute(e.capability, supportedAttribute(e.config.attribute))
	if !ok {
		return nil
	}
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

// HandleCommand validates the option and updates the status snapshot
// optimistically after a successful command.
func (e *selectEntity) HandleCommand(ctx context.Context, payload []byte) error {
	option := strings.TrimSpace(string(payload))
	if option == "" {
		return ErrInvalidPayload
	}
	if options := e.Options(); len(options) > 0 && !containsString(options, option) {
		return fmt.Errorf("%w: option %q not available", ErrInvalidPayload, option)
	}

	if err := e.send(ctx, e.capability, e.config.command, []any{option}); err != nil {
		return err
	}
	e.device.ApplyAttributeUpdate(broker.ComponentMain, e.capability, e.config.attribute, option)
	return nil
}

// supportedAttribute derives the supported-values attribute name from a
// mode attribute (e.g. washerMode -> supportedWasherModes).
func supportedAttribute(attribute string) string {
	if attribute == "" {
		return ""
	}
	return "supported" + strings.ToUpper(attribute[:1]) + attribute[1:] + "s"
}

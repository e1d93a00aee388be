package entity

import (
	"context"
	"strings"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

// Switch state payloads follow the Home Assistant MQTT switch defaults.
const (
	payloadOn  = "ON"
	payloadOff = "OFF"
)

// SwitchPlatform exposes the switch capability as an on/off entity.
type SwitchPlatform struct{}

// Name returns the platform identifier.
func (SwitchPlatform) Name() string { return "switch" }

// GetCapabilities claims the switch capability when offered.
func (SwitchPlatform) GetCapabilities(capabilities []string) []string {
	if containsString(capabilities, broker.CapabilitySwitch) {
		return []string{broker.CapabilitySwitch}
	}
	return nil
}

// Entities builds one switch entity when the capability was assigned.
func (SwitchPlatform) Entities(device *broker.Device, capabilities []string, commander Commander) []Entity {
	if !containsString(capabilities, broker.CapabilitySwitch) {
		return nil
	}
	return []Entity{&switchEntity{
		Base: newBase(device, commander, "switch", "switch", device.Label()),
	}}
}

type switchEntity struct {
	Base
}

// State renders the switch attribute as ON/OFF.
func (e *switchEntity) State() (string, bool) {
	if e.device.StringAttribute(broker.CapabilitySwitch, broker.AttributeSwitch) == "on" {
		return payloadOn, true
	}
	return payloadOff, true
}

// HandleCommand accepts ON/OFF payloads and updates the status snapshot
// optimistically after a successful command.
func (e *switchEntity) HandleCommand(ctx context.Context, payload []byte) error {
	var command, state string
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case payloadOn:
		command, state = "on", "on"
	case payloadOff:
		command, state = "off", "off"
	default:
		return ErrInvalidPayload
	}

	if err := e.send(ctx, broker.CapabilitySwitch, command, []any{}); err != nil {
		return err
	}
	e.device.ApplyAttributeUpdate(broker.ComponentMain, broker.CapabilitySwitch, broker.AttributeSwitch, state)
	return nil
}

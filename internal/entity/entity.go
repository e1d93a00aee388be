package entity

import (
	"context"
	"sync"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

// Logger is the minimal logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Commander sends a capability command to a device. Satisfied by
// *broker.DeviceBroker.
type Commander interface {
	SendCommand(ctx context.Context, deviceID, componentID, capability, command string, arguments []any) error
}

// Entity is one addressable unit of a device: a state payload, an
// optional command handler and a Home Assistant discovery config.
type Entity interface {
	// Device returns the wrapped device.
	Device() *broker.Device

	// EntityID is the entity's identifier within its device, used as the
	// last topic segment of state and command topics.
	EntityID() string

	// UniqueID is globally unique across all devices and entities.
	UniqueID() string

	// Name is the user-facing entity name.
	Name() string

	// Component is the Home Assistant discovery component
	// (e.g. "switch", "media_player").
	Component() string

	// Available reports whether the entity's device is reachable.
	Available() bool

	// State renders the current state payload. The second return value is
	// false for stateless entities (buttons).
	State() (string, bool)

	// Attributes returns the extra attribute payload: device metadata,
	// health indicators and diagnostic counters.
	Attributes() map[string]any

	// DiscoveryExtras returns platform-specific discovery config fields
	// merged into the base config (options, min/max, device class).
	DiscoveryExtras() map[string]any

	// HandleCommand parses a command payload and sends the resulting
	// cloud command.
	HandleCommand(ctx context.Context, payload []byte) error
}

// Platform constructs entities for the capabilities the broker assigned
// to it.
type Platform interface {
	broker.Platform

	// Entities builds the platform's entities for one device from its
	// assigned capabilities. Returns nil when the assignment yields no
	// entity.
	Entities(device *broker.Device, capabilities []string, commander Commander) []Entity
}

// Counters holds an entity's diagnostic counters.
type Counters struct {
	Updates   int    `json:"updates"`
	Errors    int    `json:"errors"`
	LastError string `json:"last_error,omitempty"`
}

// Base carries the state shared by all entity types: the wrapped device,
// the command sender and diagnostic counters.
type Base struct {
	device    *broker.Device
	commander Commander
	entityID  string
	name      string
	component string

	mu       sync.Mutex
	counters Counters
}

func newBase(device *broker.Device, commander Commander, component, entityID, name string) Base {
	return Base{
		device:    device,
		commander: commander,
		entityID:  entityID,
		name:      name,
		component: component,
	}
}

// Device returns the wrapped device.
func (b *Base) Device() *broker.Device { return b.device }

// EntityID returns the entity's identifier within its device.
func (b *Base) EntityID() string { return b.entityID }

// UniqueID returns the globally unique entity identifier.
func (b *Base) UniqueID() string { return b.device.ID() + "_" + b.entityID }

// Name returns the user-facing entity name.
func (b *Base) Name() string { return b.name }

// Component returns the Home Assistant discovery component.
func (b *Base) Component() string { return b.component }

// Available reports whether the entity's device is reachable.
func (b *Base) Available() bool { return b.device.Available() }

// DiscoveryExtras returns nil; entity types override it as needed.
func (b *Base) DiscoveryExtras() map[string]any { return nil }

// Counters returns a copy of the diagnostic counters.
func (b *Base) Counters() Counters {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counters
}

// Attributes returns device metadata, health indicators and diagnostic
// counters for the attribute topic.
func (b *Base) Attributes() map[string]any {
	attrs := map[string]any{
		"device_id": b.device.ID(),
	}

	info := b.device.Info()
	if info.Type != "" {
		attrs["device_type"] = string(info.Type)
	}
	if info.OCF != nil {
		if info.OCF.ManufacturerName != "" {
			attrs["manufacturer"] = info.OCF.ManufacturerName
		}
		if info.OCF.ModelNumber != "" {
			attrs["model"] = info.OCF.ModelNumber
		}
		if info.OCF.FirmwareVersion != "" {
			attrs["firmware_version"] = info.OCF.FirmwareVersion
		}
		if info.OCF.HwVersion != "" {
			attrs["hardware_version"] = info.OCF.HwVersion
		}
	}

	if level, ok := b.device.Battery(); ok {
		attrs["battery_level"] = level
		attrs["battery_health"] = broker.BatteryHealth(level)
	}
	if strength, ok := b.device.SignalStrength(); ok {
		attrs["signal_strength"] = strength
		attrs["signal_quality"] = broker.SignalQuality(strength)
	}

	counters := b.Counters()
	attrs["update_count"] = counters.Updates
	attrs["error_count"] = counters.Errors
	if counters.LastError != "" {
		attrs["last_error"] = counters.LastError
	}

	return attrs
}

// send issues a cloud command on the device's main component and updates
// the diagnostic counters.
func (b *Base) send(ctx context.Context, capability, command string, arguments []any) error {
	err := b.commander.SendCommand(ctx, b.device.ID(), broker.ComponentMain, capability, command, arguments)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.counters.Errors++
		b.counters.LastError = err.Error()
		return err
	}
	b.counters.Updates++
	return nil
}

// containsString reports whether values contains v.
func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

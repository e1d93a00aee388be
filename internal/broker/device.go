package broker

import (
	"sync"

	smartthings "github.com/tj-smith47/smartthings-go"
)

// Capability names used across the broker and entity platforms.
const (
	CapabilityButton                   = "button"
	CapabilitySwitch                   = "switch"
	CapabilityBattery                  = "battery"
	CapabilityAudioVolume              = "audioVolume"
	CapabilityMediaPlayback            = "mediaPlayback"
	CapabilityMediaInputSource         = "mediaInputSource"
	CapabilityTvChannel                = "tvChannel"
	CapabilitySceneControl             = "sceneControl"
	CapabilityMomentary                = "momentary"
	CapabilityPanicAlarm               = "panicAlarm"
	CapabilityWaterSensor              = "waterSensor"
	CapabilitySmokeDetector            = "smokeDetector"
	CapabilityCarbonMonoxideDetector   = "carbonMonoxideDetector"
	CapabilityChime                    = "chime"
	CapabilityWasherOperatingState     = "washerOperatingState"
	CapabilityDryerOperatingState      = "dryerOperatingState"
	CapabilityDishwasherOperatingState = "dishwasherOperatingState"
	CapabilityOvenOperatingState       = "ovenOperatingState"
	CapabilityWasherMode               = "washerMode"
	CapabilityDryerMode                = "dryerMode"
	CapabilityAirConditionerMode       = "airConditionerMode"
	CapabilityDishwasherMode           = "dishwasherMode"
	CapabilityOvenMode                 = "ovenMode"
	CapabilityRefrigerationSetpoint    = "refrigerationSetpoint"
	CapabilityOvenSetpoint             = "ovenSetpoint"
	CapabilityInfraredLevel            = "infraredLevel"
	CapabilityRobotCleanerCleaningMode = "robotCleanerCleaningMode"
	CapabilityRobotCleanerMovement     = "robotCleanerMovement"
	CapabilityRobotCleanerTurboMode    = "robotCleanerTurboMode"
)

// Attribute names used across the broker and entity platforms.
const (
	AttributeButton  = "button"
	AttributeSwitch  = "switch"
	AttributeBattery = "battery"
	AttributeVolume  = "volume"
	AttributeMute    = "mute"
	AttributeLQI     = "lqi"
	AttributeRSSI    = "rssi"
)

// ComponentMain is the default component every SmartThings device has.
const ComponentMain = "main"

// Device wraps a SmartThings device with a mutable status snapshot.
//
// The snapshot is keyed component -> capability -> attribute -> value and
// is mutated by push events and full-status refreshes. All accessors are
// safe for concurrent use.
type Device struct {
	info smartthings.Device

	mu     sync.RWMutex
	status map[string]map[string]map[string]any
}

// NewDevice creates a device wrapper around the cloud device record.
func NewDevice(info smartthings.Device) *Device {
	return &Device{
		info:   info,
		status: make(map[string]map[string]map[string]any),
	}
}

// ID returns the device's opaque cloud identifier.
func (d *Device) ID() string {
	return d.info.DeviceID
}

// Label returns the user-facing device name, falling back to the
// internal name when no label is set.
func (d *Device) Label() string {
	if d.info.Label != "" {
		return d.info.Label
	}
	return d.info.Name
}

// Info returns the underlying cloud device record.
func (d *Device) Info() smartthings.Device {
	return d.info
}

// Capabilities returns the capability IDs of the main component.
func (d *Device) Capabilities() []string {
	for _, comp := range d.info.Components {
		if comp.ID != ComponentMain {
			continue
		}
		caps := make([]string, 0, len(comp.Capabilities))
		for _, ref := range comp.Capabilities {
			caps = append(caps, ref.ID)
		}
		return caps
	}
	return nil
}

// HasCapability reports whether the main component declares the capability.
func (d *Device) HasCapability(capability string) bool {
	for _, c := range d.Capabilities() {
		if c == capability {
			return true
		}
	}
	return false
}

// Components returns the IDs of all device components.
func (d *Device) Components() []string {
	ids := make([]string, 0, len(d.info.Components))
	for _, comp := range d.info.Components {
		ids = append(ids, comp.ID)
	}
	return ids
}

// ApplyFullStatus replaces the status snapshot with a full-status response.
// The response maps component -> capability -> attribute -> {value, unit, ...};
// only the value is retained.
func (d *Device) ApplyFullStatus(components map[string]smartthings.Status) {
	snapshot := make(map[string]map[string]map[string]any, len(components))
	for componentID, capabilities := range components {
		compStatus := make(map[string]map[string]any, len(capabilities))
		for capability, raw := range capabilities {
			attrs, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			capStatus := make(map[string]any, len(attrs))
			for attribute, attrRaw := range attrs {
				if attrMap, ok := attrRaw.(map[string]any); ok {
					capStatus[attribute] = attrMap["value"]
				}
			}
			compStatus[capability] = capStatus
		}
		snapshot[componentID] = compStatus
	}

	d.mu.Lock()
	d.status = snapshot
	d.mu.Unlock()
}

// ApplyAttributeUpdate mutates a single attribute in the status snapshot.
func (d *Device) ApplyAttributeUpdate(componentID, capability, attribute string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	compStatus, ok := d.status[componentID]
	if !ok {
		compStatus = make(map[string]map[string]any)
		d.status[componentID] = compStatus
	}
	capStatus, ok := compStatus[capability]
	if !ok {
		capStatus = make(map[string]any)
		compStatus[capability] = capStatus
	}
	capStatus[attribute] = value
}

// Attribute returns the current value of an attribute on the main component.
// The second return value reports whether the attribute is present in the
// snapshot.
func (d *Device) Attribute(capability, attribute string) (any, bool) {
	return d.ComponentAttribute(ComponentMain, capability, attribute)
}

// ComponentAttribute returns the current value of an attribute on a
// specific component.
func (d *Device) ComponentAttribute(componentID, capability, attribute string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	capStatus, ok := d.status[componentID][capability]
	if !ok {
		return nil, false
	}
	value, ok := capStatus[attribute]
	return value, ok
}

// StringAttribute returns an attribute as a string, or "" when absent or
// not a string.
func (d *Device) StringAttribute(capability, attribute string) string {
	value, ok := d.Attribute(capability, attribute)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}

// FloatAttribute returns an attribute as a float64. JSON numbers decode as
// float64; integer values stored by optimistic updates are converted.
func (d *Device) FloatAttribute(capability, attribute string) (float64, bool) {
	value, ok := d.Attribute(capability, attribute)
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Available reports whether the device is reachable. The cloud marks an
// unreachable device by setting its switch attribute to "unavailable";
// devices without a switch attribute are always considered available.
func (d *Device) Available() bool {
	value, ok := d.Attribute(CapabilitySwitch, AttributeSwitch)
	if !ok {
		return true
	}
	s, _ := value.(string)
	return s != "unavailable"
}

// Battery returns the battery level percentage, if the device reports one.
func (d *Device) Battery() (float64, bool) {
	return d.FloatAttribute(CapabilityBattery, AttributeBattery)
}

// SignalStrength returns the radio signal indicator, preferring LQI over
// RSSI when both are reported.
func (d *Device) SignalStrength() (float64, bool) {
	for _, capability := range d.capabilitiesWithSignal() {
		for _, attribute := range []string{AttributeLQI, AttributeRSSI} {
			if v, ok := d.FloatAttribute(capability, attribute); ok {
				return v, true
			}
		}
	}
	return 0, false
}

// capabilitiesWithSignal lists the capabilities that carry lqi/rssi
// attributes in device status payloads.
func (d *Device) capabilitiesWithSignal() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var caps []string
	for capability, attrs := range d.status[ComponentMain] {
		if _, ok := attrs[AttributeLQI]; ok {
			caps = append(caps, capability)
			continue
		}
		if _, ok := attrs[AttributeRSSI]; ok {
			caps = append(caps, capability)
		}
	}
	return caps
}

// BatteryHealth bands a battery level into a health label.
func BatteryHealth(level float64) string {
	switch {
	case level < 10:
		return "critical"
	case level < 25:
		return "low"
	case level < 50:
		return "medium"
	default:
		return "good"
	}
}

// SignalQuality bands a signal strength indicator into a quality label.
func SignalQuality(strength float64) string {
	switch {
	case strength < 30:
		return "poor"
	case strength < 60:
		return "fair"
	default:
		return "good"
	}
}

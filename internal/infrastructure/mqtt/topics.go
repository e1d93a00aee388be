package mqtt

import (
	"fmt"
	"strings"

	"github.com/DSorlov/smartthingsng/internal/infrastructure/config"
)

// Topics provides builders for SmartThings NG MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Two topic trees are used:
//
//   - Discovery configs follow the Home Assistant discovery layout:
//     {discovery_prefix}/{component}/{unique_id}/config
//   - State, command, availability, and event topics live under the
//     configurable base topic:
//     {base}/{device_id}/{entity_id}/state
//     {base}/{device_id}/{entity_id}/set
//     {base}/{device_id}/event
//     {base}/status
type Topics struct {
	// DiscoveryPrefix is the root for retained discovery configs
	// (default "homeassistant").
	DiscoveryPrefix string

	// Base is the root for state, command, and event topics
	// (default "smartthingsng").
	Base string
}

// NewTopics builds a Topics helper from MQTT configuration.
func NewTopics(cfg config.MQTTConfig) Topics {
	return Topics{
		DiscoveryPrefix: cfg.DiscoveryPrefix,
		Base:            cfg.BaseTopic,
	}
}

// Discovery returns the retained discovery config topic for an entity.
//
// Example: homeassistant/switch/st_abc123_switch/config
func (t Topics) Discovery(component, uniqueID string) string {
	return fmt.Sprintf("%s/%s/%s/config", t.DiscoveryPrefix, component, uniqueID)
}

// State returns the state topic for an entity.
//
// Example: smartthingsng/device-abc/switch/state
func (t Topics) State(deviceID, entityID string) string {
	return fmt.Sprintf("%s/%s/%s/state", t.Base, deviceID, entityID)
}

// Command returns the command topic for an entity.
//
// Example: smartthingsng/device-abc/switch/set
func (t Topics) Command(deviceID, entityID string) string {
	return fmt.Sprintf("%s/%s/%s/set", t.Base, deviceID, entityID)
}

// Availability returns the daemon availability topic.
// The payload is "online" or "offline" (retained), published on connect,
// graceful shutdown, and via LWT on unexpected disconnect.
//
// Example: smartthingsng/status
func (t Topics) Availability() string {
	return fmt.Sprintf("%s/status", t.Base)
}

// ButtonEvent returns the topic for button press events from a device.
//
// Example: smartthingsng/device-abc/event
func (t Topics) ButtonEvent(deviceID string) string {
	return fmt.Sprintf("%s/%s/event", t.Base, deviceID)
}

// AllCommands returns a pattern matching all entity command topics.
//
// Pattern: smartthingsng/+/+/set
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/+/+/set", t.Base)
}

// ParseCommand extracts the device and entity identifiers from a command
// topic. Returns ok=false if the topic does not match the command layout.
func (t Topics) ParseCommand(topic string) (deviceID, entityID string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Base+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != "set" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

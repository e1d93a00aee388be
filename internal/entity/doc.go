// Package entity maps device capabilities onto typed entities and
// presents them over MQTT.
//
// Six platforms are declared in a fixed order: button, media_player,
// number, select, switch and vacuum. Each platform carries a static
// capability table and probes the broker's capability pool through
// GetCapabilities; the broker assigns every capability to at most one
// platform, first claim wins. Entities are then constructed from the
// assignments and render device status into state payloads, and parse
// command payloads into cloud commands.
//
// The Presenter publishes retained Home Assistant discovery configs,
// state and attribute payloads, and listens on the shared command topic
// pattern. It refreshes only the entities whose device appears in the
// broker's touched set for an update batch.
//
// # Thread Safety
//
// Entities and the Presenter are safe for concurrent use. Entity state
// reads go through the device's status snapshot, which is guarded by
// its own lock.
package entity

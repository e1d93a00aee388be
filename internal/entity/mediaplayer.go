package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

// mediaCapabilities lists the claimable capabilities in primary-preference
// order: tvChannel > audioVolume > mediaPlayback > mediaInputSource.
var mediaCapabilities = []string{
	broker.CapabilityTvChannel,
	broker.CapabilityAudioVolume,
	broker.CapabilityMediaPlayback,
	broker.CapabilityMediaInputSource,
}

// mediaNames maps the primary capability to the entity name suffix.
var mediaNames = map[string]string{
	broker.CapabilityTvChannel:        "TV",
	broker.CapabilityAudioVolume:      "Audio Device",
	broker.CapabilityMediaPlayback:    "Media Player",
	broker.CapabilityMediaInputSource: "Media Input",
}

// playbackStateMap translates the cloud's playbackStatus values.
var playbackStateMap = map[string]string{
	"playing":   "playing",
	"paused":    "paused",
	"stopped":   "idle",
	"buffering": "playing",
	"idle":      "idle",
	"off":       "off",
	"on":        "on",
}

// The mute attribute is reported under audioMute on most devices; the
// mute/unmute commands live on audioVolume.
const capabilityAudioMute = "audioMute"

// defaultSourceList is used when the device does not report its inputs.
var defaultSourceList = []string{"HDMI1", "HDMI2", "HDMI3", "HDMI4", "USB", "TV", "AV"}

// MediaPlayerPlatform combines the media capabilities of a device into a
// single media player entity.
type MediaPlayerPlatform struct{}

// Name returns the platform identifier.
func (MediaPlayerPlatform) Name() string { return "media_player" }

// GetCapabilities claims every offered media capability.
func (MediaPlayerPlatform) GetCapabilities(capabilities []string) []string {
	var claimed []string
	for _, capability := range mediaCapabilities {
		if containsString(capabilities, capability) {
			claimed = append(claimed, capability)
		}
	}
	return claimed
}

// Entities builds one media player entity per device, named after the
// highest-preference assigned capability.
func (MediaPlayerPlatform) Entities(device *broker.Device, capabilities []string, commander Commander) []Entity {
	var primary string
	for _, capability := range mediaCapabilities {
		if containsString(capabilities, capability) {
			primary = capability
			break
		}
	}
	if primary == "" {
		return nil
	}

	return []Entity{&mediaPlayerEntity{
		Base: newBase(device, commander, "media_player", "media_player",
			fmt.Sprintf("%s %s", device.Label(), mediaNames[primary])),
		capabilities: capabilities,
		primary:      primary,
	}}
}

type mediaPlayerEntity struct {
	Base
	capabilities []string
	primary      string
}

// mediaState is the JSON state payload.
type mediaState struct {
	State         string   `json:"state"`
	VolumeLevel   *float64 `json:"volume_level,omitempty"`
	IsVolumeMuted *bool    `json:"is_volume_muted,omitempty"`
	Source        string   `json:"source,omitempty"`
	SourceList    []string `json:"source_list,omitempty"`
	MediaTitle    string   `json:"media_title,omitempty"`
}

// mediaCommand is the JSON command payload.
type mediaCommand struct {
	Command string   `json:"command"`
	Volume  *float64 `json:"volume,omitempty"`
	Source  string   `json:"source,omitempty"`
}

// State renders the combined media player state.
func (e *mediaPlayerEntity) State() (string, bool) {
	state := mediaState{
		State:      e.playerState(),
		Source:     e.source(),
		SourceList: e.sourceList(),
		MediaTitle: e.device.StringAttribute(broker.CapabilityTvChannel, "tvChannelName"),
	}
	if volume, ok := e.device.FloatAttribute(broker.CapabilityAudioVolume, broker.AttributeVolume); ok {
		level := volume / 100.0
		state.VolumeLevel = &level
	}
	if mute, ok := e.muteState(); ok {
		state.IsVolumeMuted = &mute
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", false
	}
	return string(payload), true
}

// playerState derives the media state from switch power, channel name,
// playback status and volume presence, in that order.
func (e *mediaPlayerEntity) playerState() string {
	if e.device.StringAttribute(broker.CapabilitySwitch, broker.AttributeSwitch) == "off" {
		return "off"
	}
	if e.device.StringAttribute(broker.CapabilityTvChannel, "tvChannelName") != "" {
		return "on"
	}
	if status := e.device.StringAttribute(broker.CapabilityMediaPlayback, "playbackStatus"); status != "" {
		if mapped, ok := playbackStateMap[status]; ok {
			return mapped
		}
		return "idle"
	}
	if _, ok := e.device.FloatAttribute(broker.CapabilityAudioVolume, broker.AttributeVolume); ok {
		return "on"
	}
	return "idle"
}

func (e *mediaPlayerEntity) source() string {
	if source := e.device.StringAttribute(broker.CapabilityMediaInputSource, "inputSource"); source != "" {
		return source
	}
	return e.device.StringAttribute(broker.CapabilityTvChannel, "tvChannelName")
}

func (e *mediaPlayerEntity) sourceList() []string {
	value, ok := e.device.Attribute(broker.CapabilityMediaInputSource, "supportedInputSources")
	if !ok {
		return defaultSourceList
	}
	raw, ok := value.([]any)
	if !ok {
		return defaultSourceList
	}
	sources := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		return defaultSourceList
	}
	return sources
}

func (e *mediaPlayerEntity) muteState() (muted, ok bool) {
	for _, capability := range []string{broker.CapabilityAudioVolume, capabilityAudioMute} {
		if value, found := e.device.Attribute(capability, broker.AttributeMute); found {
			s, _ := value.(string)
			return s == "muted", true
		}
	}
	return false, false
}

// HandleCommand dispatches a JSON media command to the matching cloud
// command on the assigned capabilities.
func (e *mediaPlayerEntity) HandleCommand(ctx context.Context, payload []byte) error {
	var cmd mediaCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch cmd.Command {
	case "turn_on":
		return e.power(ctx, "on")
	case "turn_off":
		return e.power(ctx, "off")
	case "volume_set":
		if cmd.Volume == nil {
			return fmt.Errorf("%w: volume_set requires volume", ErrInvalidPayload)
		}
		return e.setVolume(ctx, *cmd.Volume)
	case "volume_up":
		return e.audioCommand(ctx, "volumeUp")
	case "volume_down":
		return e.audioCommand(ctx, "volumeDown")
	case "mute":
		return e.audioCommand(ctx, "mute")
	case "unmute":
		return e.audioCommand(ctx, "unmute")
	case "play":
		return e.playbackCommand(ctx, "play")
	case "pause":
		return e.playbackCommand(ctx, "pause")
	case "stop":
		return e.playbackCommand(ctx, "stop")
	case "next_track":
		return e.track(ctx, "fastForward", "channelUp")
	case "previous_track":
		return e.track(ctx, "rewind", "channelDown")
	case "select_source":
		if cmd.Source == "" {
			return fmt.Errorf("%w: select_source requires source", ErrInvalidPayload)
		}
		return e.selectSource(ctx, cmd.Source)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
}

func (e *mediaPlayerEntity) power(ctx context.Context, command string) error {
	if !e.device.HasCapability(broker.CapabilitySwitch) {
		return fmt.Errorf("%w: device has no power control", ErrUnknownCommand)
	}
	return e.send(ctx, broker.CapabilitySwitch, command, []any{})
}

// setVolume converts the 0..1 level to the cloud's 0..100 range.
func (e *mediaPlayerEntity) setVolume(ctx context.Context, level float64) error {
	if level < 0 || level > 1 {
		return fmt.Errorf("%w: volume %v out of range [0, 1]", ErrInvalidPayload, level)
	}
	if !containsString(e.capabilities, broker.CapabilityAudioVolume) {
		return fmt.Errorf("%w: device has no volume control", ErrUnknownCommand)
	}
	return e.send(ctx, broker.CapabilityAudioVolume, "setVolume", []any{int(math.Round(level * 100))})
}

func (e *mediaPlayerEntity) audioCommand(ctx context.Context, command string) error {
	if !containsString(e.capabilities, broker.CapabilityAudioVolume) {
		return fmt.Errorf("%w: device has no volume control", ErrUnknownCommand)
	}
	return e.send(ctx, broker.CapabilityAudioVolume, command, []any{})
}

func (e *mediaPlayerEntity) playbackCommand(ctx context.Context, command string) error {
	if !containsString(e.capabilities, broker.CapabilityMediaPlayback) {
		return fmt.Errorf("%w: device has no playback control", ErrUnknownCommand)
	}
	return e.send(ctx, broker.CapabilityMediaPlayback, command, []any{})
}

// track prefers playback seek commands, falling back to channel stepping
// on TV devices.
func (e *mediaPlayerEntity) track(ctx context.Context, playbackCommand, channelCommand string) error {
	if containsString(e.capabilities, broker.CapabilityMediaPlayback) {
		return e.send(ctx, broker.CapabilityMediaPlayback, playbackCommand, []any{})
	}
	if containsString(e.capabilities, broker.CapabilityTvChannel) {
		return e.send(ctx, broker.CapabilityTvChannel, channelCommand, []any{})
	}
	return fmt.Errorf("%w: device has no track control", ErrUnknownCommand)
}

// selectSource uses the input-source capability when assigned; on TV
// devices a numeric source sets the channel, anything else the channel
// name.
func (e *mediaPlayerEntity) selectSource(ctx context.Context, source string) error {
	if containsString(e.capabilities, broker.CapabilityMediaInputSource) {
		return e.send(ctx, broker.CapabilityMediaInputSource, "setInputSource", []any{source})
	}
	if containsString(e.capabilities, broker.CapabilityTvChannel) {
		if isDigits(source) {
			return e.send(ctx, broker.CapabilityTvChannel, "setTvChannel", []any{source})
		}
		return e.send(ctx, broker.CapabilityTvChannel, "setTvChannelName", []any{source})
	}
	return fmt.Errorf("%w: device has no source selection", ErrUnknownCommand)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	smartthings "github.com/tj-smith47/smartthings-go"
)

// Logger defines the logging interface used by the broker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// API is the subset of the SmartThings client the broker depends on.
// *smartthings.Client satisfies this interface.
type API interface {
	GetApp(ctx context.Context, appID string) (*smartthings.App, error)
	GetInstalledApp(ctx context.Context, installedAppID string) (*smartthings.InstalledApp, error)
	ListScenes(ctx context.Context, locationID string) ([]smartthings.Scene, error)
	ListDevicesWithOptions(ctx context.Context, opts *smartthings.ListDevicesOptions) (*smartthings.PagedDevices, error)
	GetDeviceFullStatus(ctx context.Context, deviceID string) (map[string]smartthings.Status, error)
	GetDeviceHealth(ctx context.Context, deviceID string) (*smartthings.DeviceHealth, error)
	ExecuteCommand(ctx context.Context, deviceID string, cmd smartthings.Command) error
	ExecuteScene(ctx context.Context, sceneID string) error
	DeleteAllSubscriptions(ctx context.Context, installedAppID string) error
	CreateSubscription(ctx context.Context, installedAppID string, sub *smartthings.SubscriptionCreate) (*smartthings.Subscription, error)
	SetToken(token string)
}

// TokenUpdater persists rotated OAuth token pairs.
// *installation.SQLiteRepository satisfies this interface.
type TokenUpdater interface {
	UpdateTokens(ctx context.Context, installedAppID, accessToken, refreshToken string, expiresAt time.Time) error
}

// HistoryRecorder records push-event and health-check telemetry.
// *influxdb.Client satisfies this interface.
type HistoryRecorder interface {
	WriteAttributeEvent(deviceID, component, capability, attribute string, value float64)
	WriteHealthCheck(deviceID string, online bool, responseTime time.Duration)
}

// Platform is the probe interface each entity platform exposes to the
// broker for capability slot assignment.
type Platform interface {
	// Name returns the platform identifier (e.g. "switch", "media_player").
	Name() string

	// GetCapabilities returns the subset of the offered capabilities this
	// platform supports. The broker removes claimed capabilities from the
	// pool before offering it to the next platform.
	GetCapabilities(capabilities []string) []string
}

// eventTypeDevice is the event type of device attribute events in a
// push-event batch.
const eventTypeDevice = "DEVICE_EVENT"

// DeviceBroker owns the discovered devices and scenes of one SmartThings
// installation, assigns device capabilities to entity platforms, relays
// push events, and regenerates OAuth tokens on a periodic timer.
//
// The capability assignment is built once at construction and is immutable
// afterwards. Refresh tokens rotate on every regeneration; the broker keeps
// the current pair in memory and persists it through the TokenUpdater.
type DeviceBroker struct {
	api        API
	tokens     TokenUpdater
	oauth      *smartthings.OAuthConfig
	dispatcher *Dispatcher
	recorder   HistoryRecorder
	logger     Logger

	appID          string
	installedAppID string
	locationID     string

	devices     map[string]*Device
	scenes      map[string]smartthings.Scene
	assignments map[string]map[string]string // device ID -> capability -> platform

	refreshInterval time.Duration
	refreshTokens   func(ctx context.Context, cfg *smartthings.OAuthConfig, refreshToken string) (*smartthings.TokenResponse, error)

	mu           sync.Mutex
	refreshToken string
	cancel       context.CancelFunc
	done         chan struct{}
}

// Config carries the identity and timing parameters for a broker.
type Config struct {
	AppID           string
	InstalledAppID  string
	LocationID      string
	RefreshToken    string
	RefreshInterval time.Duration
}

// New creates a broker for one installation.
//
// Parameters:
//   - cfg: Installation identity and the current refresh token
//   - api: SmartThings API client, already authorized
//   - tokens: Persistence for rotated token pairs
//   - oauth: OAuth client credentials for token regeneration
//   - devices: Discovered devices with status snapshots applied
//   - scenes: Discovered scenes for the installation's location
//   - platforms: Entity platforms in declaration order; the order decides
//     which platform claims a capability supported by several
//   - logger: Logger instance (may be nil)
func New(cfg Config, api API, tokens TokenUpdater, oauth *smartthings.OAuthConfig, devices []*Device, scenes []smartthings.Scene, platforms []Platform, logger Logger) *DeviceBroker {
	if logger == nil {
		logger = noopLogger{}
	}

	deviceMap := make(map[string]*Device, len(devices))
	for _, d := range devices {
		deviceMap[d.ID()] = d
	}
	sceneMap := make(map[string]smartthings.Scene, len(scenes))
	for _, s := range scenes {
		sceneMap[s.SceneID] = s
	}

	return &DeviceBroker{
		api:             api,
		tokens:          tokens,
		oauth:           oauth,
		dispatcher:      NewDispatcher(),
		logger:          logger,
		appID:           cfg.AppID,
		installedAppID:  cfg.InstalledAppID,
		locationID:      cfg.LocationID,
		devices:         deviceMap,
		scenes:          sceneMap,
		assignments:     assignCapabilities(devices, platforms),
		refreshInterval: cfg.RefreshInterval,
		refreshTokens:   smartthings.RefreshTokens,
		refreshToken:    cfg.RefreshToken,
	}
}

// SetRecorder attaches an optional telemetry recorder for push events and
// health checks.
func (b *DeviceBroker) SetRecorder(recorder HistoryRecorder) {
	b.recorder = recorder
}

// assignCapabilities partitions each device's capabilities across the
// platforms. Platforms are offered the remaining pool in declaration order;
// a claimed capability is removed before the next platform sees the pool,
// so the first platform to claim a capability wins. Capabilities no
// platform claims are dropped.
func assignCapabilities(devices []*Device, platforms []Platform) map[string]map[string]string {
	assignments := make(map[string]map[string]string, len(devices))
	for _, device := range devices {
		pool := device.Capabilities()
		slots := make(map[string]string)
		for _, platform := range platforms {
			claimed := platform.GetCapabilities(pool)
			for _, capability := range claimed {
				if !contains(pool, capability) {
					continue
				}
				pool = remove(pool, capability)
				slots[capability] = platform.Name()
			}
		}
		assignments[device.ID()] = slots
	}
	return assignments
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// GetAssigned returns the capabilities assigned to the platform for a
// device, in no particular order.
func (b *DeviceBroker) GetAssigned(deviceID, platform string) []string {
	var assigned []string
	for capability, p := range b.assignments[deviceID] {
		if p == platform {
			assigned = append(assigned, capability)
		}
	}
	return assigned
}

// AnyAssigned reports whether the platform claimed any capability of the
// device.
func (b *DeviceBroker) AnyAssigned(deviceID, platform string) bool {
	for _, p := range b.assignments[deviceID] {
		if p == platform {
			return true
		}
	}
	return false
}

// Device returns a device by ID, or nil when the device is not part of
// this installation.
func (b *DeviceBroker) Device(deviceID string) *Device {
	return b.devices[deviceID]
}

// Devices returns all devices of the installation.
func (b *DeviceBroker) Devices() []*Device {
	devices := make([]*Device, 0, len(b.devices))
	for _, d := range b.devices {
		devices = append(devices, d)
	}
	return devices
}

// Scenes returns all scenes of the installation's location.
func (b *DeviceBroker) Scenes() []smartthings.Scene {
	scenes := make([]smartthings.Scene, 0, len(b.scenes))
	for _, s := range b.scenes {
		scenes = append(scenes, s)
	}
	return scenes
}

// Dispatcher returns the broker's notification dispatcher for entity
// subscriptions.
func (b *DeviceBroker) Dispatcher() *Dispatcher {
	return b.dispatcher
}

// InstalledAppID returns the installation this broker serves.
func (b *DeviceBroker) InstalledAppID() string {
	return b.installedAppID
}

// Connect starts the periodic token regeneration timer. Refresh tokens
// expire after 30 days and cannot be recovered once expired, so the timer
// runs independently of request traffic.
func (b *DeviceBroker) Connect(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	go b.refreshLoop(ctx)
	b.logger.Info("broker connected", "installed_app_id", b.installedAppID, "devices", len(b.devices))
}

// Disconnect stops the token regeneration timer. Entity subscriptions are
// removed by their own unsubscribe functions; the two teardowns have no
// ordering dependency.
func (b *DeviceBroker) Disconnect() {
	b.mu.Lock()
	cancel := b.cancel
	done := b.done
	b.cancel = nil
	b.done = nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	b.logger.Info("broker disconnected", "installed_app_id", b.installedAppID)
}

func (b *DeviceBroker) refreshLoop(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.RegenerateToken(ctx); err != nil {
				b.logger.Error("token regeneration failed",
					"installed_app_id", b.installedAppID, "error", err)
			}
		}
	}
}

// RegenerateToken exchanges the current refresh token for a new token pair,
// updates the API client, and persists the rotated pair.
func (b *DeviceBroker) RegenerateToken(ctx context.Context) error {
	b.mu.Lock()
	refreshToken := b.refreshToken
	b.mu.Unlock()

	resp, err := b.refreshTokens(ctx, b.oauth, refreshToken)
	if err != nil {
		return fmt.Errorf("refreshing tokens: %w", err)
	}

	b.api.SetToken(resp.AccessToken)

	b.mu.Lock()
	b.refreshToken = resp.RefreshToken
	b.mu.Unlock()

	expiresAt := resp.ExpiresAt
	if expiresAt.IsZero() && resp.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	if err := b.tokens.UpdateTokens(ctx, b.installedAppID, resp.AccessToken, resp.RefreshToken, expiresAt); err != nil {
		return fmt.Errorf("persisting tokens: %w", err)
	}

	b.logger.Debug("regenerated refresh token", "installed_app_id", b.installedAppID)
	return nil
}

// ProcessEvents applies a push-event batch to the device snapshots.
//
// Batches scoped to a foreign installation are discarded entirely without
// error. Non-device events and events for unknown device IDs are skipped.
// After the whole batch is applied, exactly one update notification naming
// the touched device IDs is broadcast. Button pushes additionally fire a
// distinct button event carrying device and location metadata.
func (b *DeviceBroker) ProcessEvents(installedAppID string, events []smartthings.DeviceEventData) {
	// Events from a different installed app under the same parent SmartApp
	// are a valid scenario, not an error.
	if installedAppID != b.installedAppID {
		return
	}

	updated := make(map[string]struct{})
	for _, evt := range events {
		if evt.EventType != eventTypeDevice || evt.DeviceEvent == nil {
			continue
		}
		detail := evt.DeviceEvent
		device, ok := b.devices[detail.DeviceID]
		if !ok {
			continue
		}

		device.ApplyAttributeUpdate(detail.ComponentID, detail.Capability, detail.Attribute, detail.Value)

		if detail.Capability == CapabilityButton && detail.Attribute == AttributeButton {
			buttonEvt := ButtonEvent{
				ComponentID: detail.ComponentID,
				DeviceID:    detail.DeviceID,
				LocationID:  detail.LocationID,
				Value:       detail.Value,
				Name:        device.Label(),
			}
			b.dispatcher.BroadcastButton(buttonEvt)
			b.logger.Debug("fired button event", "device_id", detail.DeviceID, "value", detail.Value)
		} else {
			b.logger.Debug("push update received",
				"device_id", detail.DeviceID,
				"component_id", detail.ComponentID,
				"capability", detail.Capability,
				"attribute", detail.Attribute,
				"value", detail.Value)
		}

		if b.recorder != nil {
			if value, ok := detail.Value.(float64); ok {
				b.recorder.WriteAttributeEvent(detail.DeviceID, detail.ComponentID,
					detail.Capability, detail.Attribute, value)
			}
		}

		updated[detail.DeviceID] = struct{}{}
	}

	b.dispatcher.BroadcastUpdate(updated)
}

// isAuthError reports whether the cloud rejected the installation's
// credentials. Both 401 and 403 mean the authorization cannot be recovered
// without repeating onboarding.
func isAuthError(err error) bool {
	if smartthings.IsUnauthorized(err) {
		return true
	}
	var apiErr *smartthings.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}

// isForbidden reports a 403 specifically, used for the scene-listing
// permission degradation.
func isForbidden(err error) bool {
	var apiErr *smartthings.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 403
	}
	return false
}

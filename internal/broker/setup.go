package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	smartthings "github.com/tj-smith47/smartthings-go"
)

// InstallationRemover removes a persisted installation when the cloud
// reports its authorization revoked.
type InstallationRemover interface {
	TokenUpdater
	Delete(ctx context.Context, installedAppID string) error
}

// SetupParams carries everything Setup needs to bring an installation
// online.
type SetupParams struct {
	API       API
	Store     InstallationRemover
	OAuth     *smartthings.OAuthConfig
	Platforms []Platform
	Recorder  HistoryRecorder
	Logger    Logger

	AppID          string
	InstalledAppID string
	LocationID     string
	RefreshToken   string

	TokenRefreshInterval time.Duration

	// refreshTokens is overridable in tests; defaults to
	// smartthings.RefreshTokens.
	refreshTokens func(ctx context.Context, cfg *smartthings.OAuthConfig, refreshToken string) (*smartthings.TokenResponse, error)
}

// Setup validates the installation against the cloud, discovers its scenes
// and devices, refreshes every device's status, syncs event subscriptions,
// and returns a constructed broker.
//
// Error contract:
//   - 401/403 from the cloud: the persisted installation is removed and
//     ErrAuthRevoked is returned; onboarding must be repeated.
//   - any other failure: ErrNotReady is returned and the caller should
//     retry with backoff. The installation is kept.
//
// A device whose status refresh fails is excluded from the session rather
// than failing setup.
func Setup(ctx context.Context, params SetupParams) (*DeviceBroker, error) {
	logger := params.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	if params.refreshTokens == nil {
		params.refreshTokens = smartthings.RefreshTokens
	}

	// Validate the app and the installed app.
	if _, err := params.API.GetApp(ctx, params.AppID); err != nil {
		return nil, params.classify(ctx, logger, fmt.Errorf("validating app %s: %w", params.AppID, err))
	}
	installedApp, err := params.API.GetInstalledApp(ctx, params.InstalledAppID)
	if err != nil {
		return nil, params.classify(ctx, logger, fmt.Errorf("validating installed app %s: %w", params.InstalledAppID, err))
	}
	locationID := installedApp.LocationID
	if locationID == "" {
		locationID = params.LocationID
	}

	// Scenes. Insufficient permission degrades to an empty list; the
	// installation still works, just without scene execution.
	scenes, err := params.API.ListScenes(ctx, locationID)
	if err != nil {
		if !isForbidden(err) {
			return nil, params.classify(ctx, logger, fmt.Errorf("listing scenes: %w", err))
		}
		logger.Warn("access token lacks scene permissions, scenes disabled",
			"installed_app_id", params.InstalledAppID)
		scenes = nil
	}

	// Regenerate tokens before the session starts so the rotated refresh
	// token is persisted even if the daemon restarts soon after.
	resp, err := params.refreshTokens(ctx, params.OAuth, params.RefreshToken)
	if err != nil {
		return nil, params.classify(ctx, logger, fmt.Errorf("regenerating tokens: %w", err))
	}
	params.API.SetToken(resp.AccessToken)
	expiresAt := resp.ExpiresAt
	if expiresAt.IsZero() && resp.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	if err := params.Store.UpdateTokens(ctx, params.InstalledAppID, resp.AccessToken, resp.RefreshToken, expiresAt); err != nil {
		return nil, fmt.Errorf("%w: persisting tokens: %v", ErrNotReady, err)
	}

	// Discover devices for the installation's location.
	paged, err := params.API.ListDevicesWithOptions(ctx, &smartthings.ListDevicesOptions{
		LocationID: []string{locationID},
	})
	if err != nil {
		return nil, params.classify(ctx, logger, fmt.Errorf("listing devices: %w", err))
	}

	devices := refreshDeviceStatuses(ctx, params.API, logger, paged.Items)

	if err := syncSubscriptions(ctx, params.API, params.InstalledAppID, devices); err != nil {
		return nil, params.classify(ctx, logger, fmt.Errorf("syncing subscriptions: %w", err))
	}

	b := New(Config{
		AppID:           params.AppID,
		InstalledAppID:  params.InstalledAppID,
		LocationID:      locationID,
		RefreshToken:    resp.RefreshToken,
		RefreshInterval: params.TokenRefreshInterval,
	}, params.API, params.Store, params.OAuth, devices, scenes, params.Platforms, logger)
	if params.Recorder != nil {
		b.SetRecorder(params.Recorder)
	}

	logger.Info("installation setup complete",
		"installed_app_id", params.InstalledAppID,
		"devices", len(devices),
		"scenes", len(scenes))
	return b, nil
}

// classify maps a setup failure to the retry contract. Auth failures
// remove the persisted installation before returning ErrAuthRevoked.
func (p SetupParams) classify(ctx context.Context, logger Logger, err error) error {
	if isAuthError(err) {
		logger.Error("installation authorization revoked, removing installation",
			"installed_app_id", p.InstalledAppID, "error", err)
		if delErr := p.Store.Delete(ctx, p.InstalledAppID); delErr != nil {
			logger.Error("removing installation failed",
				"installed_app_id", p.InstalledAppID, "error", delErr)
		}
		return fmt.Errorf("%w: %v", ErrAuthRevoked, err)
	}
	return fmt.Errorf("%w: %v", ErrNotReady, err)
}

// refreshDeviceStatuses fetches every device's full status concurrently.
// A device whose refresh fails is excluded from the returned set.
func refreshDeviceStatuses(ctx context.Context, api API, logger Logger, items []smartthings.Device) []*Device {
	var (
		mu      sync.Mutex
		devices []*Device
		wg      sync.WaitGroup
	)

	for _, item := range items {
		wg.Add(1)
		go func(item smartthings.Device) {
			defer wg.Done()

			status, err := api.GetDeviceFullStatus(ctx, item.DeviceID)
			if err != nil {
				logger.Debug("unable to refresh device status, excluding device",
					"device_id", item.DeviceID, "label", item.Label, "error", err)
				return
			}

			device := NewDevice(item)
			device.ApplyFullStatus(status)

			mu.Lock()
			devices = append(devices, device)
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	return devices
}

// syncSubscriptions replaces the installation's event subscriptions with
// one DEVICE subscription per discovered device.
func syncSubscriptions(ctx context.Context, api API, installedAppID string, devices []*Device) error {
	if err := api.DeleteAllSubscriptions(ctx, installedAppID); err != nil {
		return fmt.Errorf("deleting stale subscriptions: %w", err)
	}
	for _, device := range devices {
		sub := &smartthings.SubscriptionCreate{
			SourceType: "DEVICE",
			Device: &smartthings.DeviceSubscription{
				DeviceID:        device.ID(),
				StateChangeOnly: true,
			},
		}
		if _, err := api.CreateSubscription(ctx, installedAppID, sub); err != nil {
			return fmt.Errorf("subscribing to device %s: %w", device.ID(), err)
		}
	}
	return nil
}

package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	smartthings "github.com/tj-smith47/smartthings-go"
)

func okRefresh(_ context.Context, _ *smartthings.OAuthConfig, _ string) (*smartthings.TokenResponse, error) {
	return &smartthings.TokenResponse{
		AccessToken:  "at-new",
		RefreshToken: "rt-new",
		ExpiresIn:    86400,
	}, nil
}

func setupParams(api API, store InstallationRemover) SetupParams {
	return SetupParams{
		API:                  api,
		Store:                store,
		OAuth:                &smartthings.OAuthConfig{ClientID: "id", ClientSecret: "secret"},
		AppID:                "app-1",
		InstalledAppID:       "iapp-1",
		LocationID:           "loc-1",
		RefreshToken:         "rt-0",
		TokenRefreshInterval: time.Hour,
		refreshTokens:        okRefresh,
	}
}

func TestSetup_Success(t *testing.T) {
	api := &mockAPI{
		listScenes: func(_ context.Context, _ string) ([]smartthings.Scene, error) {
			return []smartthings.Scene{{SceneID: "scene-1", SceneName: "Movie Night"}}, nil
		},
		listDevices: func(_ context.Context, opts *smartthings.ListDevicesOptions) (*smartthings.PagedDevices, error) {
			if len(opts.LocationID) != 1 || opts.LocationID[0] != "loc-1" {
				t.Errorf("device listing not scoped to location: %v", opts.LocationID)
			}
			return &smartthings.PagedDevices{Items: []smartthings.Device{
				testDeviceInfo("dev-1", "Lamp", CapabilitySwitch),
				testDeviceInfo("dev-2", "Fan", CapabilitySwitch),
			}}, nil
		},
		getDeviceFullStatus: func(_ context.Context, deviceID string) (map[string]smartthings.Status, error) {
			return map[string]smartthings.Status{
				ComponentMain: {
					CapabilitySwitch: map[string]any{
						AttributeSwitch: map[string]any{"value": "on"},
					},
				},
			}, nil
		},
	}
	store := &mockTokenUpdater{}

	b, err := Setup(context.Background(), setupParams(api, store))
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	if len(b.Devices()) != 2 {
		t.Errorf("expected 2 devices, got %d", len(b.Devices()))
	}
	if len(b.Scenes()) != 1 {
		t.Errorf("expected 1 scene, got %d", len(b.Scenes()))
	}
	if store.updateCalls != 1 {
		t.Errorf("expected rotated tokens persisted once, got %d", store.updateCalls)
	}
	if len(api.tokens) != 1 || api.tokens[0] != "at-new" {
		t.Errorf("expected new access token applied to client, got %v", api.tokens)
	}
}

func TestSetup_AuthRevokedRemovesInstallation(t *testing.T) {
	api := &mockAPI{
		getInstalledApp: func(_ context.Context, _ string) (*smartthings.InstalledApp, error) {
			return nil, &smartthings.APIError{StatusCode: 401, Message: "unauthorized"}
		},
	}
	store := &mockTokenUpdater{}

	_, err := Setup(context.Background(), setupParams(api, store))
	if !errors.Is(err, ErrAuthRevoked) {
		t.Fatalf("expected ErrAuthRevoked, got %v", err)
	}
	if store.deleteCalls != 1 {
		t.Errorf("expected installation removed once, got %d deletes", store.deleteCalls)
	}
}

func TestSetup_ForbiddenAppIsAuthRevoked(t *testing.T) {
	api := &mockAPI{
		getApp: func(_ context.Context, _ string) (*smartthings.App, error) {
			return nil, &smartthings.APIError{StatusCode: 403, Message: "forbidden"}
		},
	}
	store := &mockTokenUpdater{}

	_, err := Setup(context.Background(), setupParams(api, store))
	if !errors.Is(err, ErrAuthRevoked) {
		t.Fatalf("expected ErrAuthRevoked for 403, got %v", err)
	}
}

func TestSetup_TransientFailureIsNotReady(t *testing.T) {
	api := &mockAPI{
		listDevices: func(_ context.Context, _ *smartthings.ListDevicesOptions) (*smartthings.PagedDevices, error) {
			return nil, &smartthings.APIError{StatusCode: 500, Message: "server error"}
		},
	}
	store := &mockTokenUpdater{}

	_, err := Setup(context.Background(), setupParams(api, store))
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if store.deleteCalls != 0 {
		t.Errorf("transient failure must not remove the installation, got %d deletes", store.deleteCalls)
	}
}

func TestSetup_ForbiddenScenesDegradeToEmpty(t *testing.T) {
	api := &mockAPI{
		listScenes: func(_ context.Context, _ string) ([]smartthings.Scene, error) {
			return nil, &smartthings.APIError{StatusCode: 403, Message: "missing scope"}
		},
	}
	store := &mockTokenUpdater{}

	b, err := Setup(context.Background(), setupParams(api, store))
	if err != nil {
		t.Fatalf("Setup should tolerate forbidden scene listing: %v", err)
	}
	if len(b.Scenes()) != 0 {
		t.Errorf("expected empty scene list, got %d", len(b.Scenes()))
	}
}

func TestSetup_FailingDeviceExcluded(t *testing.T) {
	api := &mockAPI{
		listDevices: func(_ context.Context, _ *smartthings.ListDevicesOptions) (*smartthings.PagedDevices, error) {
			return &smartthings.PagedDevices{Items: []smartthings.Device{
				testDeviceInfo("dev-good", "Lamp", CapabilitySwitch),
				testDeviceInfo("dev-bad", "Broken", CapabilitySwitch),
			}}, nil
		},
		getDeviceFullStatus: func(_ context.Context, deviceID string) (map[string]smartthings.Status, error) {
			if deviceID == "dev-bad" {
				return nil, &smartthings.APIError{StatusCode: 504, Message: "timeout"}
			}
			return map[string]smartthings.Status{}, nil
		},
	}
	store := &mockTokenUpdater{}

	b, err := Setup(context.Background(), setupParams(api, store))
	if err != nil {
		t.Fatalf("per-device failure must not fail setup: %v", err)
	}
	if len(b.Devices()) != 1 {
		t.Fatalf("expected 1 device after exclusion, got %d", len(b.Devices()))
	}
	if b.Device("dev-bad") != nil {
		t.Error("failing device should be excluded from the session")
	}
	if b.Device("dev-good") == nil {
		t.Error("healthy device should remain in the session")
	}
}

func TestSetup_SyncsSubscriptions(t *testing.T) {
	var deleted bool
	var subscribed []string

	api := &mockAPI{
		listDevices: func(_ context.Context, _ *smartthings.ListDevicesOptions) (*smartthings.PagedDevices, error) {
			return &smartthings.PagedDevices{Items: []smartthings.Device{
				testDeviceInfo("dev-1", "Lamp", CapabilitySwitch),
			}}, nil
		},
		deleteAllSubscriptions: func(_ context.Context, installedAppID string) error {
			deleted = true
			return nil
		},
		createSubscription: func(_ context.Context, _ string, sub *smartthings.SubscriptionCreate) (*smartthings.Subscription, error) {
			if sub.SourceType != "DEVICE" || sub.Device == nil {
				t.Errorf("unexpected subscription shape: %+v", sub)
			}
			subscribed = append(subscribed, sub.Device.DeviceID)
			return &smartthings.Subscription{}, nil
		},
	}
	store := &mockTokenUpdater{}

	if _, err := Setup(context.Background(), setupParams(api, store)); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if !deleted {
		t.Error("expected stale subscriptions deleted")
	}
	if len(subscribed) != 1 || subscribed[0] != "dev-1" {
		t.Errorf("expected subscription for dev-1, got %v", subscribed)
	}
}

package installation

import "time"

// Installation is a persisted SmartApp installation record.
//
// One row exists per installed app instance. The daemon normally owns a
// single installation (the one named in config), but the table supports
// several so re-onboarding doesn't require wiping the database.
type Installation struct {
	// ID is the internal record identifier (UUID).
	ID string

	// AppID is the SmartApp identifier from the developer workspace.
	AppID string

	// InstalledAppID identifies this installation in the SmartThings cloud.
	// Webhook event batches carry it, and batches for other installations
	// are discarded.
	InstalledAppID string

	// LocationID scopes the devices and scenes this installation sees.
	LocationID string

	// AccessToken is the current OAuth access token. Rotates every refresh.
	AccessToken string

	// RefreshToken is the current OAuth refresh token. SmartThings rotates
	// it on every use, so a stale value here means re-onboarding.
	RefreshToken string

	// TokenExpiresAt is when the access token expires.
	TokenExpiresAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

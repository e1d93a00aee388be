package broker

import "errors"

// Domain errors for the broker package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, broker.ErrAuthRevoked) {
//	    // onboarding must be repeated
//	}
var (
	// ErrAuthRevoked is returned when the SmartThings cloud rejects the
	// installation's credentials (401/403). The persisted installation has
	// been removed and onboarding must be repeated.
	ErrAuthRevoked = errors.New("broker: authorization revoked")

	// ErrNotReady is returned when setup fails for a transient reason
	// (network error, 5xx). The caller should retry with backoff.
	ErrNotReady = errors.New("broker: not ready")

	// ErrDeviceNotFound is returned when a device ID is not part of the
	// current installation.
	ErrDeviceNotFound = errors.New("broker: device not found")

	// ErrSceneNotFound is returned when a scene ID is not part of the
	// current installation.
	ErrSceneNotFound = errors.New("broker: scene not found")

	// ErrNotConnected is returned when an operation requires a connected
	// broker.
	ErrNotConnected = errors.New("broker: not connected")
)

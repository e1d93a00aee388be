// Package broker owns the devices and scenes of one SmartThings
// installation.
//
// The DeviceBroker assigns each device's capabilities to exactly one
// presenting entity platform using a greedy first-claim-wins scheme over
// the platform declaration order, relays push-event batches into device
// status snapshots with a single end-of-batch update notification, and
// regenerates OAuth tokens on a periodic timer.
//
// Setup brings an installation online: it validates the app against the
// cloud, discovers scenes and devices, refreshes device statuses, syncs
// event subscriptions, and constructs the broker. Authorization failures
// (401/403) remove the persisted installation and surface as
// ErrAuthRevoked; transient failures surface as ErrNotReady and should be
// retried with backoff.
//
// # Thread Safety
//
// Device snapshots, the dispatcher, and the broker's operations are safe
// for concurrent use. The capability assignment is immutable after
// construction.
package broker

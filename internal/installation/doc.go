// Package installation tracks SmartApp installations and their OAuth state.
//
// A SmartThings SmartApp is installed into exactly one location, and the
// cloud issues a short-lived access token plus a rotating refresh token
// per installation. This package persists that state so the bridge can
// resume after restarts without a new OAuth exchange.
//
// The package provides a Repository interface with a SQLite implementation,
// plus a TokenStore adapter that plugs the repository into the SmartThings
// client library's automatic token refresh.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines
// (SQLite WAL mode + connection pooling).
package installation

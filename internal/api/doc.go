// Package api implements the HTTP REST API, webhook endpoint, and WebSocket
// server for smartthingsng.
//
// This package provides:
//   - The SmartThings webhook endpoint (lifecycle dispatch, HMAC signature
//     validation) that feeds push events into the device broker
//   - REST endpoints for device and scene listing, capability commands,
//     refresh, scene execution, diagnostics, and health checks
//   - JWT authentication with ticket-based WebSocket auth
//   - WebSocket hub broadcasting device updates and button events
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The server sits between the SmartThings cloud and local clients. The cloud
// calls POST /webhook with lifecycle events; device events are handed to the
// broker, which updates its snapshots and notifies subscribers. REST and
// WebSocket clients read from and command through the same broker.
//
// The broker is attached with SetBroker once installation setup completes.
// Until then the webhook endpoint still answers PING and CONFIRMATION
// lifecycles (both are needed during onboarding), and broker-backed routes
// return 503.
//
// # Security
//
// The webhook endpoint verifies the X-ST-Signature HMAC when a webhook secret
// is configured. REST routes require a bearer token issued by POST
// /api/v1/auth/token against the configured credentials. WebSocket
// connections use single-use tickets to keep tokens out of URLs.
package api

// Package api implements the dashboard's HTTP API and WebSocket server.
//
// This package provides:
//   - REST endpoints for the latest-value snapshot and the topic registry
//   - WebSocket hub pushing each aggregated reading to subscribed browsers
//   - The embedded dashboard page at /
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for deployments outside the plant network
//
// # Architecture
//
// The server sits between browsers and the latest-value aggregator. It
// never touches the aggregator's table directly: REST handlers render a
// Snapshot, and the hub is fed by the aggregator's update listener.
//
// Sensors that have not reported yet are rendered with state "no_data" and
// a null value.
//
// # Graceful Degradation
//
// The server operates without an MQTT connection. The snapshot simply stops
// changing and /api/v1/health reports the bus as disconnected.
package api

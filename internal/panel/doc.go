// Package panel serves the plant dashboard page.
//
// The page is a single HTML file with a script and stylesheet, embedded
// into the binary with go:embed. The script loads /api/v1/sensors once,
// then opens the WebSocket, subscribes to sensor.updated, and patches each
// tile as readings arrive. Sensors that have not reported show "no data".
package panel

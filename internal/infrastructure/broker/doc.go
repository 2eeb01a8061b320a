// Package broker runs an optional in-process MQTT broker.
//
// Plant deployments normally point the publisher and the dashboard at an
// existing broker (Mosquitto or similar). For demos, CI, and single-host
// installs the broker can instead be embedded in either binary by setting:
//
//	broker:
//	  embedded: true
//	  address: ":1883"
//
// The embedded broker accepts every client; it is not meant to be exposed
// beyond a trusted network.
package broker

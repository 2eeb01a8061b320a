// Package telemetry defines the sensor vocabulary shared by the publisher
// and the dashboard: sensor identities, the topic registry, display units,
// and the JSON message carried on the bus.
//
// # Topics
//
// Every sensor has exactly one topic, derived from its identity by the
// registry's scheme:
//
//	process: battery_plant/1/process/mixing/sensor/temperature
//	flat:    factory/zone1/temperature
//
// Publisher and subscriber build the same Registry from the same
// configuration, so topic formatting and parsing cannot drift apart.
//
// # Messages
//
//	{"value": 25.3, "unit": "°C", "timestamp": "2024-05-05T12:00:00Z"}
//
// Payloads may also carry sensor_type and location, which must agree with
// the topic when present.
package telemetry

// Package config loads and validates the plant telemetry configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding values with PLANT_* environment variables
//   - Validation of every section, reported together
//
// The same file drives all binaries. The publisher reads the simulator and
// dataset sections, the dashboard reads the api and websocket sections, and
// both share the mqtt, broker, and telemetry sections.
//
// Security Considerations:
//   - MQTT credentials should be set via PLANT_MQTT_USERNAME and PLANT_MQTT_PASSWORD
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Plant.Name)
package config

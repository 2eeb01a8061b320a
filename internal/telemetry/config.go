package telemetry

import (
	"fmt"

	"github.com/nerrad567/plant-telemetry/internal/infrastructure/config"
)

// RegistryFromConfig builds the registry described by the telemetry section.
//
// A non-empty sensor list replaces the named schema entirely. Otherwise the
// named built-in schema is used, with scheme and base overridable.
func RegistryFromConfig(cfg config.TelemetryConfig) (*Registry, error) {
	if len(cfg.Sensors) > 0 {
		scheme := Scheme(cfg.Scheme)
		if scheme == "" {
			scheme = SchemeProcess
		}
		specs := make([]SensorSpec, len(cfg.Sensors))
		for i, s := range cfg.Sensors {
			specs[i] = SensorSpec{Group: s.Group, Name: s.Name, Field: s.Field}
		}
		return NewRegistry(scheme, cfg.Base, specs)
	}

	schema, err := LookupSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}
	if cfg.Scheme != "" {
		schema.Scheme = Scheme(cfg.Scheme)
	}
	if cfg.Base != "" {
		schema.Base = cfg.Base
	}

	r, err := schema.Registry()
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", schema.Name, err)
	}
	return r, nil
}

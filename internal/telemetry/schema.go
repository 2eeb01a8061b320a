package telemetry

import (
	"fmt"
	"sort"
)

// Schema is a named, built-in sensor set with its default topic layout.
type Schema struct {
	Name    string
	Scheme  Scheme
	Base    string
	Sensors []SensorSpec
}

// Registry builds a registry for the schema.
func (s Schema) Registry() (*Registry, error) {
	return NewRegistry(s.Scheme, s.Base, s.Sensors)
}

// Fields returns the dataset fields the schema reads, in declaration order.
func (s Schema) Fields() []string {
	out := make([]string, len(s.Sensors))
	for i, spec := range s.Sensors {
		out[i] = spec.Field
	}
	return out
}

// Built-in schema names.
const (
	SchemaBatteryPlant = "battery_plant"
	SchemaFactory      = "factory"
)

var schemas = map[string]Schema{
	SchemaBatteryPlant: {
		Name:   SchemaBatteryPlant,
		Scheme: SchemeProcess,
		Base:   "battery_plant/1",
		Sensors: []SensorSpec{
			{Group: "mixing", Name: "temperature", Field: "mixing_temperature"},
			{Group: "mixing", Name: "humidity", Field: "mixing_humidity"},
			{Group: "mixing", Name: "pressure", Field: "mixing_pressure"},
			{Group: "mixing", Name: "viscosity", Field: "slurry_viscosity"},
			{Group: "mixing", Name: "density", Field: "slurry_density"},

			{Group: "coating", Name: "thickness", Field: "coating_thickness"},
			{Group: "coating", Name: "speed", Field: "coating_speed"},
			{Group: "coating", Name: "temperature", Field: "coating_temperature"},
			{Group: "coating", Name: "humidity", Field: "coating_humidity"},
			{Group: "coating", Name: "web_tension", Field: "web_tension"},

			{Group: "drying", Name: "temperature", Field: "oven_temperature"},
			{Group: "drying", Name: "humidity", Field: "oven_humidity"},
			{Group: "drying", Name: "air_flow", Field: "air_flow_rate"},
			{Group: "drying", Name: "drying_time", Field: "drying_time"},

			{Group: "calendering", Name: "pressure", Field: "calender_pressure"},
			{Group: "calendering", Name: "temperature", Field: "calender_temperature"},
			{Group: "calendering", Name: "speed", Field: "calender_speed"},
			{Group: "calendering", Name: "thickness", Field: "electrode_thickness"},

			{Group: "slitting", Name: "speed", Field: "slitting_speed"},
			{Group: "slitting", Name: "tension", Field: "slitting_tension"},
			{Group: "slitting", Name: "width", Field: "electrode_width"},

			{Group: "environmental", Name: "temperature", Field: "room_temperature"},
			{Group: "environmental", Name: "humidity", Field: "room_humidity"},
			{Group: "environmental", Name: "pressure", Field: "room_pressure"},

			{Group: "quality", Name: "resistance", Field: "electrode_resistance"},
			{Group: "quality", Name: "porosity", Field: "electrode_porosity"},
			{Group: "quality", Name: "density", Field: "electrode_density"},

			{Group: "energy", Name: "power", Field: "power_consumption"},
			{Group: "energy", Name: "air_pressure", Field: "compressed_air_pressure"},
			{Group: "energy", Name: "water_temperature", Field: "cooling_water_temperature"},
		},
	},
	SchemaFactory: {
		Name:   SchemaFactory,
		Scheme: SchemeFlat,
		Base:   "factory",
		Sensors: []SensorSpec{
			{Group: "zone1", Name: "temperature", Field: "zone1_temperature"},
			{Group: "zone1", Name: "pressure", Field: "zone1_pressure"},
			{Group: "zone1", Name: "humidity", Field: "zone1_humidity"},
			{Group: "zone2", Name: "temperature", Field: "zone2_temperature"},
			{Group: "zone2", Name: "pressure", Field: "zone2_pressure"},
			{Group: "zone2", Name: "humidity", Field: "zone2_humidity"},
			{Group: "machine1", Name: "vibration", Field: "machine1_vibration"},
			{Group: "machine2", Name: "vibration", Field: "machine2_vibration"},
			{Group: "line1", Name: "power", Field: "line1_power"},
			{Group: "line2", Name: "power", Field: "line2_power"},
		},
	},
}

// LookupSchema returns a built-in schema by name. The returned schema's
// sensor slice is a copy.
func LookupSchema(name string) (Schema, error) {
	s, ok := schemas[name]
	if !ok {
		return Schema{}, fmt.Errorf("%w: unknown schema %q (known: %v)", ErrConfiguration, name, SchemaNames())
	}
	s.Sensors = append([]SensorSpec(nil), s.Sensors...)
	return s, nil
}

// SchemaNames lists the built-in schemas in sorted order.
func SchemaNames() []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

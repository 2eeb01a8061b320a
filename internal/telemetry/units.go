package telemetry

import "strings"

// units maps sensor types to display units. Compound types such as
// water_temperature fall back to the unit of their last word.
var units = map[string]string{
	"temperature":  "°C",
	"pressure":     "hPa",
	"humidity":     "%",
	"viscosity":    "cP",
	"density":      "g/cm³",
	"thickness":    "μm",
	"speed":        "m/min",
	"tension":      "N",
	"resistance":   "Ω",
	"width":        "mm",
	"power":        "kW",
	"porosity":     "%",
	"vibration":    "mm/s",
	"air_pressure": "bar",
	"air_flow":     "m³/h",
	"drying_time":  "min",
}

// UnitFor returns the display unit for a sensor type, or "" when the type
// has none. It is a pure function of the type name.
func UnitFor(sensorType string) string {
	if u, ok := units[sensorType]; ok {
		return u
	}
	if i := strings.LastIndexByte(sensorType, '_'); i >= 0 {
		return units[sensorType[i+1:]]
	}
	return ""
}

package dataset

import "fmt"

var profiles = map[string]map[string]Profile{
	"battery_plant": {
		"mixing_temperature":        {Base: 25, Jitter: 0.5, DailyAmplitude: 2, Decimals: 2},
		"mixing_humidity":           {Base: 45, Jitter: 2, Decimals: 2},
		"mixing_pressure":           {Base: 1013, Jitter: 1, Decimals: 2},
		"slurry_viscosity":          {Base: 5000, Jitter: 100, Decimals: 2},
		"slurry_density":            {Base: 1.8, Jitter: 0.05, Decimals: 3},
		"coating_thickness":         {Base: 100, Jitter: 2, Decimals: 2},
		"coating_speed":             {Base: 10, Jitter: 0.2, Decimals: 2},
		"coating_temperature":       {Base: 30, Jitter: 0.5, DailyAmplitude: 2, Decimals: 2},
		"coating_humidity":          {Base: 40, Jitter: 2, Decimals: 2},
		"web_tension":               {Base: 50, Jitter: 2, Decimals: 2},
		"oven_temperature":          {Base: 80, Jitter: 1, Decimals: 2},
		"oven_humidity":             {Base: 20, Jitter: 1, Decimals: 2},
		"air_flow_rate":             {Base: 100, Jitter: 5, Decimals: 2},
		"drying_time":               {Base: 5, Jitter: 0.1, Decimals: 2},
		"calender_pressure":         {Base: 100, Jitter: 2, Decimals: 2},
		"calender_temperature":      {Base: 60, Jitter: 1, Decimals: 2},
		"calender_speed":            {Base: 8, Jitter: 0.2, Decimals: 2},
		"electrode_thickness":       {Base: 80, Jitter: 1, Decimals: 2},
		"slitting_speed":            {Base: 15, Jitter: 0.5, Decimals: 2},
		"slitting_tension":          {Base: 30, Jitter: 1, Decimals: 2},
		"electrode_width":           {Base: 100, Jitter: 0.5, Decimals: 2},
		"room_temperature":          {Base: 23, Jitter: 0.5, DailyAmplitude: 2, Decimals: 2},
		"room_humidity":             {Base: 45, Jitter: 2, Decimals: 2},
		"room_pressure":             {Base: 1013, Jitter: 1, Decimals: 2},
		"electrode_resistance":      {Base: 0.5, Jitter: 0.05, Decimals: 3},
		"electrode_porosity":        {Base: 30, Jitter: 1, Decimals: 2},
		"electrode_density":         {Base: 1.6, Jitter: 0.05, Decimals: 3},
		"power_consumption":         {Base: 100, Jitter: 5, Decimals: 2},
		"compressed_air_pressure":   {Base: 6, Jitter: 0.2, Decimals: 2},
		"cooling_water_temperature": {Base: 20, Jitter: 0.5, Decimals: 2},
	},
	"factory": {
		"zone1_temperature":  {Base: 22, Jitter: 0.5, DailyAmplitude: 2, Decimals: 2},
		"zone1_pressure":     {Base: 1013, Jitter: 1, Decimals: 2},
		"zone1_humidity":     {Base: 45, Jitter: 2, Decimals: 2},
		"zone2_temperature":  {Base: 24, Jitter: 0.5, DailyAmplitude: 2, Decimals: 2},
		"zone2_pressure":     {Base: 1012, Jitter: 1, Decimals: 2},
		"zone2_humidity":     {Base: 50, Jitter: 2, Decimals: 2},
		"machine1_vibration": {Base: 2.5, Jitter: 0.5, Decimals: 2},
		"machine2_vibration": {Base: 3.1, Jitter: 0.5, Decimals: 2},
		"line1_power":        {Base: 75, Jitter: 5, Decimals: 2},
		"line2_power":        {Base: 60, Jitter: 5, Decimals: 2},
	},
}

// ProfilesFor returns the generation profiles for a built-in schema's fields.
func ProfilesFor(schema string) (map[string]Profile, error) {
	p, ok := profiles[schema]
	if !ok {
		return nil, fmt.Errorf("dataset: no generation profiles for schema %q", schema)
	}
	out := make(map[string]Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out, nil
}

// DefaultProfile is used for fields with no schema-specific profile.
var DefaultProfile = Profile{Base: 50, Jitter: 5, Decimals: 2}

// ProfilesForFields returns a profile for each field, taken from the named
// schema where it has one and DefaultProfile otherwise. An unknown schema
// name gives DefaultProfile for every field.
func ProfilesForFields(schema string, fields []string) map[string]Profile {
	known := profiles[schema]
	out := make(map[string]Profile, len(fields))
	for _, f := range fields {
		if p, ok := known[f]; ok {
			out[f] = p
		} else {
			out[f] = DefaultProfile
		}
	}
	return out
}

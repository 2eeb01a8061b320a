package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Profile describes how one synthetic field behaves: a base level, uniform
// noise of ±Jitter, and an optional daily sine cycle of DailyAmplitude.
// Values are rounded to Decimals places.
type Profile struct {
	Base           float64
	Jitter         float64
	DailyAmplitude float64
	Decimals       int
}

// GenerateOptions controls synthetic dataset generation.
type GenerateOptions struct {
	Rows  int
	Start time.Time
	Step  time.Duration
	Seed  uint64
}

// DefaultStart is the timestamp of the first generated row.
var DefaultStart = time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)

const defaultStep = time.Minute

// Generate produces Rows readings spaced Step apart from Start. Each field
// must have a profile. The same options always produce the same rows.
func Generate(fields []string, profiles map[string]Profile, opts GenerateOptions) ([]Reading, error) {
	if opts.Rows < 1 {
		return nil, errors.New("dataset: at least one row is required")
	}
	for _, f := range fields {
		if _, ok := profiles[f]; !ok {
			return nil, fmt.Errorf("dataset: no generation profile for field %q", f)
		}
	}
	if opts.Start.IsZero() {
		opts.Start = DefaultStart
	}
	if opts.Step <= 0 {
		opts.Step = defaultStep
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	rows := make([]Reading, opts.Rows)
	for i := range rows {
		offset := time.Duration(i) * opts.Step
		dayPhase := 2 * math.Pi * offset.Hours() / 24

		values := make(map[string]float64, len(fields))
		for _, f := range fields {
			p := profiles[f]
			v := p.Base + p.DailyAmplitude*math.Sin(dayPhase) + (rng.Float64()*2-1)*p.Jitter
			values[f] = round(v, p.Decimals)
		}
		rows[i] = Reading{Index: i, Timestamp: opts.Start.Add(offset), Fields: values}
	}
	return rows, nil
}

func round(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}

package telemetry

import (
	"fmt"
	"math"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/segmentio/encoding/json"
)

// Message is one sensor measurement as carried on the bus.
//
// On the wire it is a JSON object with required keys value, unit, and
// timestamp (ISO-8601), and optional sensor_type and location keys naming
// the sensor.
type Message struct {
	Value      float64
	Unit       string
	Timestamp  time.Time
	SensorType string
	Location   string
}

type wireMessage struct {
	Value      *float64 `json:"value"`
	Unit       *string  `json:"unit"`
	Timestamp  *string  `json:"timestamp"`
	SensorType string   `json:"sensor_type,omitempty"`
	Location   string   `json:"location,omitempty"`
}

// Encode renders the message as JSON. Timestamps are written in UTC with
// nanosecond precision.
func (m Message) Encode() ([]byte, error) {
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return nil, fmt.Errorf("telemetry: value %v is not representable in JSON", m.Value)
	}
	ts := m.Timestamp.UTC().Format(time.RFC3339Nano)
	return json.Marshal(wireMessage{
		Value:      &m.Value,
		Unit:       &m.Unit,
		Timestamp:  &ts,
		SensorType: m.SensorType,
		Location:   m.Location,
	})
}

// DecodeMessage parses a payload. Any structural problem returns an error
// wrapping ErrDecode. Timestamps without a zone are taken as UTC.
func DecodeMessage(payload []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(payload, &w); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	switch {
	case w.Value == nil:
		return Message{}, fmt.Errorf("%w: missing value", ErrDecode)
	case w.Unit == nil:
		return Message{}, fmt.Errorf("%w: missing unit", ErrDecode)
	case w.Timestamp == nil:
		return Message{}, fmt.Errorf("%w: missing timestamp", ErrDecode)
	}

	ts, err := iso8601.ParseString(*w.Timestamp)
	if err != nil {
		return Message{}, fmt.Errorf("%w: timestamp %q: %w", ErrDecode, *w.Timestamp, err)
	}

	return Message{
		Value:      *w.Value,
		Unit:       *w.Unit,
		Timestamp:  ts,
		SensorType: w.SensorType,
		Location:   w.Location,
	}, nil
}

// EmbeddedIdentity returns the identity named inside the payload, if any.
// A payload naming only one of location and sensor_type is malformed.
func (m Message) EmbeddedIdentity() (SensorIdentity, bool, error) {
	switch {
	case m.Location == "" && m.SensorType == "":
		return SensorIdentity{}, false, nil
	case m.Location == "" || m.SensorType == "":
		return SensorIdentity{}, false, fmt.Errorf("%w: payload names only one of location and sensor_type", ErrDecode)
	}
	return SensorIdentity{Group: m.Location, Name: m.SensorType}, true, nil
}

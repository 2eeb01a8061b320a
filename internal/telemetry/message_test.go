package telemetry

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
)

func TestMessage_EncodeDecode(t *testing.T) {
	ts := time.Date(2024, 5, 5, 12, 0, 0, 123456789, time.UTC)
	msg := Message{Value: 25.3, Unit: "°C", Timestamp: ts}

	payload, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("payload %s is not JSON: %v", payload, err)
	}
	if raw["timestamp"] != "2024-05-05T12:00:00.123456789Z" {
		t.Errorf("timestamp = %v", raw["timestamp"])
	}
	if _, ok := raw["sensor_type"]; ok {
		t.Error("sensor_type present without embedded identity")
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	if got.Value != 25.3 || got.Unit != "°C" || !got.Timestamp.Equal(ts) {
		t.Errorf("DecodeMessage() = %+v, want %+v", got, msg)
	}
}

func TestMessage_EncodeEmbeddedIdentity(t *testing.T) {
	msg := Message{Value: 1, Unit: "kW", Timestamp: time.Unix(0, 0), SensorType: "power", Location: "line1"}

	payload, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}

	id, ok, err := got.EmbeddedIdentity()
	if err != nil || !ok {
		t.Fatalf("EmbeddedIdentity() = %v, %v, %v", id, ok, err)
	}
	if id != (SensorIdentity{Group: "line1", Name: "power"}) {
		t.Errorf("EmbeddedIdentity() = %s, want line1/power", id)
	}
}

func TestMessage_EncodeRejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := (Message{Value: v, Timestamp: time.Now()}).Encode(); err == nil {
			t.Errorf("Encode(%v) error = nil, want error", v)
		}
	}
}

func TestDecodeMessage_Timestamps(t *testing.T) {
	tests := []struct {
		name string
		ts   string
		want time.Time
	}{
		{name: "utc", ts: "2024-05-05T12:00:00Z", want: time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)},
		{name: "offset", ts: "2024-05-05T14:00:00+02:00", want: time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)},
		{name: "naive is utc", ts: "2024-05-05T12:00:00.5", want: time.Date(2024, 5, 5, 12, 0, 0, 5e8, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{"value": 1, "unit": "", "timestamp": "` + tt.ts + `"}`
			got, err := DecodeMessage([]byte(payload))
			if err != nil {
				t.Fatalf("DecodeMessage() error = %v", err)
			}
			if !got.Timestamp.Equal(tt.want) {
				t.Errorf("Timestamp = %v, want %v", got.Timestamp, tt.want)
			}
		})
	}
}

func TestDecodeMessage_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantMsg string
	}{
		{name: "not json", payload: "not json", wantMsg: "malformed"},
		{name: "empty", payload: "", wantMsg: "malformed"},
		{name: "array", payload: `[1,2]`, wantMsg: "malformed"},
		{name: "missing value", payload: `{"unit":"°C","timestamp":"2024-05-05T12:00:00Z"}`, wantMsg: "missing value"},
		{name: "null value", payload: `{"value":null,"unit":"°C","timestamp":"2024-05-05T12:00:00Z"}`, wantMsg: "missing value"},
		{name: "string value", payload: `{"value":"hot","unit":"°C","timestamp":"2024-05-05T12:00:00Z"}`, wantMsg: "malformed"},
		{name: "missing unit", payload: `{"value":1,"timestamp":"2024-05-05T12:00:00Z"}`, wantMsg: "missing unit"},
		{name: "missing timestamp", payload: `{"value":1,"unit":"°C"}`, wantMsg: "missing timestamp"},
		{name: "bad timestamp", payload: `{"value":1,"unit":"°C","timestamp":"yesterday"}`, wantMsg: "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tt.payload))
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("DecodeMessage() error = %v, want ErrDecode", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("DecodeMessage() error = %v, want mention of %q", err, tt.wantMsg)
			}
		})
	}
}

func TestMessage_PartialEmbeddedIdentity(t *testing.T) {
	_, _, err := Message{SensorType: "temperature"}.EmbeddedIdentity()
	if !errors.Is(err, ErrDecode) {
		t.Errorf("EmbeddedIdentity() error = %v, want ErrDecode", err)
	}

	_, ok, err := Message{}.EmbeddedIdentity()
	if ok || err != nil {
		t.Errorf("EmbeddedIdentity() on bare message = %v, %v", ok, err)
	}
}

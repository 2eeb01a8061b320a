package dataset

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReadCSV(t *testing.T) {
	input := "\ufefftimestamp,mixing_temperature,mixing_humidity\n" +
		"2024-05-05 12:00:00,25.31,44.2\n" +
		"2024-05-05T12:01:00Z,,45\n" +
		"2024-05-05 12:02:00,NaN,46.5\n"

	src, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	if src.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", src.Len())
	}
	fields := src.Fields()
	if len(fields) != 2 || fields[0] != "mixing_temperature" || fields[1] != "mixing_humidity" {
		t.Errorf("Fields() = %v", fields)
	}

	ctx := context.Background()
	row0, _ := src.Row(ctx, 0)
	if want := time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC); !row0.Timestamp.Equal(want) {
		t.Errorf("row 0 timestamp = %v, want %v", row0.Timestamp, want)
	}
	if v, ok := row0.Value("mixing_temperature"); !ok || v != 25.31 {
		t.Errorf("row 0 mixing_temperature = %v, %v", v, ok)
	}

	row1, _ := src.Row(ctx, 1)
	if _, ok := row1.Value("mixing_temperature"); ok {
		t.Error("empty cell should be missing")
	}

	row2, _ := src.Row(ctx, 2)
	if _, ok := row2.Value("mixing_temperature"); ok {
		t.Error("NaN cell should be missing")
	}
	if v, _ := row2.Value("mixing_humidity"); v != 46.5 {
		t.Errorf("row 2 mixing_humidity = %v, want 46.5", v)
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty input", "", ErrEmptyDataset},
		{"header only", "timestamp,a\n", ErrEmptyDataset},
		{"bad number", "a,b\n1,x\n", ErrMalformed},
		{"bad timestamp", "timestamp,a\nyesterday,1\n", ErrMalformed},
		{"unnamed column", "a,,b\n1,2,3\n", ErrMalformed},
		{"ragged row", "a,b\n1\n", ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadCSV() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteCSVReadBack(t *testing.T) {
	start := time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)
	rows := []Reading{
		{Timestamp: start, Fields: map[string]float64{"a": 1.5, "b": -2}},
		{Timestamp: start.Add(time.Minute), Fields: map[string]float64{"b": 3}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []string{"a", "b"}, rows); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "timestamp,a,b\n2024-05-05 12:00:00,1.5,-2\n2024-05-05 12:01:00,,3\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() output =\n%s\nwant\n%s", buf.String(), want)
	}

	src, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	row, _ := src.Row(context.Background(), 1)
	if _, ok := row.Value("a"); ok {
		t.Error("missing field came back present")
	}
	if !row.Timestamp.Equal(start.Add(time.Minute)) {
		t.Errorf("timestamp = %v", row.Timestamp)
	}
}

func TestSaveAndLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	rows := []Reading{{Timestamp: DefaultStart, Fields: map[string]float64{"x": 7}}}

	if err := SaveCSV(path, []string{"x"}, rows); err != nil {
		t.Fatalf("SaveCSV() error = %v", err)
	}
	src, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if src.Len() != 1 {
		t.Errorf("Len() = %d, want 1", src.Len())
	}

	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("LoadCSV() on missing file error = nil")
	}
}

package dataset

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"
)

var (
	// ErrEmptyDataset is returned when a dataset has no rows to replay.
	ErrEmptyDataset = errors.New("dataset: no rows")

	// ErrRowOutOfRange is returned for row indexes outside [0, Len).
	ErrRowOutOfRange = errors.New("dataset: row index out of range")

	// ErrMalformed is returned when a dataset file cannot be parsed.
	ErrMalformed = errors.New("dataset: malformed input")
)

// Reading is one row of a dataset: a timestamp and a value per field.
// Fields missing from the row are absent from the map.
type Reading struct {
	Index     int
	Timestamp time.Time
	Fields    map[string]float64
}

// Value returns the value recorded for field in this row.
func (r Reading) Value(field string) (float64, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// Source provides indexed access to a finite sequence of readings.
type Source interface {
	Len() int
	Fields() []string
	Row(ctx context.Context, index int) (Reading, error)
}

// MemorySource is a Source held entirely in memory.
type MemorySource struct {
	fields []string
	rows   []Reading
}

// NewMemorySource wraps rows, renumbering their Index to their position.
// fields lists the column names in their original order.
func NewMemorySource(fields []string, rows []Reading) (*MemorySource, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}
	out := make([]Reading, len(rows))
	for i, r := range rows {
		out[i] = Reading{Index: i, Timestamp: r.Timestamp, Fields: maps.Clone(r.Fields)}
	}
	return &MemorySource{fields: append([]string(nil), fields...), rows: out}, nil
}

// Len returns the number of rows.
func (m *MemorySource) Len() int {
	return len(m.rows)
}

// Fields returns the column names in their original order.
func (m *MemorySource) Fields() []string {
	return append([]string(nil), m.fields...)
}

// Row returns a copy of row index.
func (m *MemorySource) Row(_ context.Context, index int) (Reading, error) {
	if index < 0 || index >= len(m.rows) {
		return Reading{}, fmt.Errorf("%w: %d not in [0, %d)", ErrRowOutOfRange, index, len(m.rows))
	}
	r := m.rows[index]
	r.Fields = maps.Clone(r.Fields)
	return r, nil
}

// Rows returns copies of all rows.
func (m *MemorySource) Rows() []Reading {
	out := make([]Reading, len(m.rows))
	for i, r := range m.rows {
		r.Fields = maps.Clone(r.Fields)
		out[i] = r
	}
	return out
}

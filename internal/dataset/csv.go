package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
)

const (
	timestampColumn = "timestamp"

	// csvTimeLayout matches the layout pandas writes for naive datetimes.
	csvTimeLayout = "2006-01-02 15:04:05"
)

// LoadCSV reads a dataset file. See ReadCSV for the format.
func LoadCSV(path string) (*MemorySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	src, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// ReadCSV parses a header row followed by data rows. A "timestamp" column,
// if present, is parsed as ISO-8601 (a space may separate date and time,
// and zoneless values are UTC). Every other column is numeric. Empty and
// NaN cells are treated as missing for that row.
func ReadCSV(r io.Reader) (*MemorySource, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrMalformed, err)
	}

	tsCol := -1
	fields := make([]string, 0, len(header))
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		columns[i] = name
		if name == timestampColumn {
			tsCol = i
			continue
		}
		if name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrMalformed, i+1)
		}
		fields = append(fields, name)
	}

	var rows []Reading
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		reading := Reading{Index: len(rows), Fields: make(map[string]float64, len(fields))}
		for i, cell := range record {
			cell = strings.TrimSpace(cell)
			if i == tsCol {
				ts, err := parseTimestamp(cell)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: timestamp %q: %w", ErrMalformed, line, cell, err)
				}
				reading.Timestamp = ts
				continue
			}
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %w", ErrMalformed, line, columns[i], err)
			}
			if math.IsNaN(v) {
				continue
			}
			reading.Fields[columns[i]] = v
		}
		rows = append(rows, reading)
	}

	return NewMemorySource(fields, rows)
}

func parseTimestamp(s string) (time.Time, error) {
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	return iso8601.ParseString(s)
}

// WriteCSV writes rows with a timestamp column followed by fields in order.
// Fields missing from a row are written as empty cells.
func WriteCSV(w io.Writer, fields []string, rows []Reading) error {
	cw := csv.NewWriter(w)

	record := make([]string, len(fields)+1)
	record[0] = timestampColumn
	copy(record[1:], fields)
	if err := cw.Write(record); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, r := range rows {
		record[0] = r.Timestamp.UTC().Format(csvTimeLayout)
		for i, field := range fields {
			if v, ok := r.Fields[field]; ok {
				record[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
			} else {
				record[i+1] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", r.Index, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes rows to a new or truncated file at path.
func SaveCSV(path string, fields []string, rows []Reading) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dataset: %w", err)
	}
	if err := WriteCSV(f, fields, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

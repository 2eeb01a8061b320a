package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/plant-telemetry/internal/infrastructure/database"
)

// Store is a Source backed by the readings tables in SQLite.
// The schema comes from the embedded migrations, which must be applied
// before OpenStore.
type Store struct {
	db *database.DB

	mu     sync.RWMutex
	fields []string
	count  int
}

// OpenStore attaches to a migrated database and loads the dataset shape.
func OpenStore(ctx context.Context, db *database.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) refresh(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM readings").Scan(&count); err != nil {
		return fmt.Errorf("counting readings: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT field FROM dataset_fields ORDER BY position")
	if err != nil {
		return fmt.Errorf("loading dataset fields: %w", err)
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return fmt.Errorf("scanning dataset field: %w", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating dataset fields: %w", err)
	}

	s.mu.Lock()
	s.count = count
	s.fields = fields
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Fields returns the column names in their original order.
func (s *Store) Fields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.fields...)
}

// Replace swaps the stored dataset for rows in one transaction. Rows are
// renumbered from zero in the order given.
func (s *Store) Replace(ctx context.Context, fields []string, rows []Reading) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, stmt := range []string{
		"DELETE FROM reading_values",
		"DELETE FROM readings",
		"DELETE FROM dataset_fields",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing dataset: %w", err)
		}
	}

	for i, f := range fields {
		if _, err := tx.ExecContext(ctx, "INSERT INTO dataset_fields (position, field) VALUES (?, ?)", i, f); err != nil {
			return fmt.Errorf("storing field %q: %w", f, err)
		}
	}

	insertRow, err := tx.PrepareContext(ctx, "INSERT INTO readings (row_index, recorded_at) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("preparing row insert: %w", err)
	}
	defer insertRow.Close()

	insertValue, err := tx.PrepareContext(ctx, "INSERT INTO reading_values (row_index, field, value) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing value insert: %w", err)
	}
	defer insertValue.Close()

	for i, r := range rows {
		if _, err := insertRow.ExecContext(ctx, i, r.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("storing row %d: %w", i, err)
		}
		for field, v := range r.Fields {
			if _, err := insertValue.ExecContext(ctx, i, field, v); err != nil {
				return fmt.Errorf("storing row %d field %q: %w", i, field, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing dataset: %w", err)
	}

	s.mu.Lock()
	s.count = len(rows)
	s.fields = append([]string(nil), fields...)
	s.mu.Unlock()
	return nil
}

// Row loads row index.
func (s *Store) Row(ctx context.Context, index int) (Reading, error) {
	n := s.Len()
	if index < 0 || index >= n {
		return Reading{}, fmt.Errorf("%w: %d not in [0, %d)", ErrRowOutOfRange, index, n)
	}

	var recordedAt string
	err := s.db.QueryRowContext(ctx, "SELECT recorded_at FROM readings WHERE row_index = ?", index).Scan(&recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Reading{}, fmt.Errorf("%w: row %d missing from store", ErrRowOutOfRange, index)
	}
	if err != nil {
		return Reading{}, fmt.Errorf("loading row %d: %w", index, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return Reading{}, fmt.Errorf("row %d timestamp %q: %w", index, recordedAt, err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT field, value FROM reading_values WHERE row_index = ?", index)
	if err != nil {
		return Reading{}, fmt.Errorf("loading row %d values: %w", index, err)
	}
	defer rows.Close()

	reading := Reading{Index: index, Timestamp: ts, Fields: make(map[string]float64)}
	for rows.Next() {
		var field string
		var v float64
		if err := rows.Scan(&field, &v); err != nil {
			return Reading{}, fmt.Errorf("scanning row %d value: %w", index, err)
		}
		reading.Fields[field] = v
	}
	if err := rows.Err(); err != nil {
		return Reading{}, fmt.Errorf("iterating row %d values: %w", index, err)
	}
	return reading, nil
}

package dataset

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/plant-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/database"
	"github.com/nerrad567/plant-telemetry/migrations"
)

func testDBConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "plant.db"),
		WALMode:     true,
		BusyTimeout: 5,
	}
}

func openTestStore(t *testing.T, cfg config.DatabaseConfig) *Store {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	store, err := OpenStore(ctx, db)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	return store
}

func TestStoreReplaceAndRow(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, testDBConfig(t))

	if store.Len() != 0 {
		t.Fatalf("empty store Len() = %d", store.Len())
	}

	ts := time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)
	rows := []Reading{
		{Timestamp: ts, Fields: map[string]float64{"a": 1.25, "b": 2}},
		{Timestamp: ts.Add(time.Minute), Fields: map[string]float64{"b": 3}},
	}
	if err := store.Replace(ctx, []string{"b", "a"}, rows); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
	if f := store.Fields(); len(f) != 2 || f[0] != "b" || f[1] != "a" {
		t.Errorf("Fields() = %v, want [b a]", f)
	}

	r, err := store.Row(ctx, 1)
	if err != nil {
		t.Fatalf("Row(1) error = %v", err)
	}
	if r.Index != 1 || !r.Timestamp.Equal(ts.Add(time.Minute)) {
		t.Errorf("Row(1) = %+v", r)
	}
	if _, ok := r.Value("a"); ok {
		t.Error("Row(1) has value for missing field a")
	}
	if v, _ := r.Value("b"); v != 3 {
		t.Errorf("Row(1) b = %v, want 3", v)
	}

	if _, err := store.Row(ctx, 2); !errors.Is(err, ErrRowOutOfRange) {
		t.Errorf("Row(2) error = %v, want ErrRowOutOfRange", err)
	}

	// Replacing drops the previous rows.
	if err := store.Replace(ctx, []string{"c"}, rows[:1]); err != nil {
		t.Fatalf("second Replace() error = %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() after replace = %d, want 1", store.Len())
	}
}

func TestStoreReopen(t *testing.T) {
	ctx := context.Background()
	cfg := testDBConfig(t)

	first := openTestStore(t, cfg)
	rows, _ := Generate([]string{"x"}, map[string]Profile{"x": {Base: 1}}, GenerateOptions{Rows: 3})
	if err := first.Replace(ctx, []string{"x"}, rows); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	second := openTestStore(t, cfg)
	if second.Len() != 3 {
		t.Errorf("reopened Len() = %d, want 3", second.Len())
	}
	if f := second.Fields(); len(f) != 1 || f[0] != "x" {
		t.Errorf("reopened Fields() = %v", f)
	}
}

func TestOpenFromConfig(t *testing.T) {
	ctx := context.Background()
	fields := []string{"zone1_temperature", "line1_power"}

	t.Run("generated", func(t *testing.T) {
		src, closeFn, err := Open(ctx, config.DatasetConfig{Format: "generated", Rows: 10, Seed: 3}, config.DatabaseConfig{}, "factory", fields)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer closeFn() //nolint:errcheck // test cleanup
		if src.Len() != 10 {
			t.Errorf("Len() = %d, want 10", src.Len())
		}
	})

	t.Run("csv", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "d.csv")
		rows, _ := Generate(fields, ProfilesForFields("factory", fields), GenerateOptions{Rows: 4})
		if err := SaveCSV(path, fields, rows); err != nil {
			t.Fatalf("SaveCSV() error = %v", err)
		}
		src, _, err := Open(ctx, config.DatasetConfig{Format: "csv", Path: path}, config.DatabaseConfig{}, "factory", fields)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if src.Len() != 4 {
			t.Errorf("Len() = %d, want 4", src.Len())
		}
	})

	t.Run("sqlite empty", func(t *testing.T) {
		_, closeFn, err := Open(ctx, config.DatasetConfig{Format: "sqlite"}, testDBConfig(t), "factory", fields)
		if !errors.Is(err, ErrEmptyDataset) {
			t.Errorf("Open() error = %v, want ErrEmptyDataset", err)
		}
		if closeFn == nil {
			t.Error("close function is nil")
		}
	})

	t.Run("sqlite populated", func(t *testing.T) {
		dbCfg := testDBConfig(t)
		store := openTestStore(t, dbCfg)
		rows, _ := Generate(fields, ProfilesForFields("factory", fields), GenerateOptions{Rows: 6})
		if err := store.Replace(ctx, fields, rows); err != nil {
			t.Fatalf("Replace() error = %v", err)
		}

		src, closeFn, err := Open(ctx, config.DatasetConfig{Format: "sqlite"}, dbCfg, "factory", fields)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer closeFn() //nolint:errcheck // test cleanup
		if src.Len() != 6 {
			t.Errorf("Len() = %d, want 6", src.Len())
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, _, err := Open(ctx, config.DatasetConfig{Format: "parquet"}, config.DatabaseConfig{}, "factory", fields); err == nil {
			t.Error("Open() error = nil")
		}
	})
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/plant-telemetry/internal/dataset"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/config"
)

// quietConfig writes a config that keeps generator logging out of test
// output and returns its path.
func quietConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "plant:\n  id: test-plant\nlogging:\n  level: error\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestRun_CSV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "factory.csv")
	err := run(context.Background(), options{
		configPath: quietConfig(t),
		schema:     "factory",
		rows:       12,
		seed:       42,
		format:     "csv",
		out:        out,
		start:      "2024-01-01T00:00:00Z",
		step:       time.Second,
	})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	src, err := dataset.LoadCSV(out)
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if src.Len() != 12 {
		t.Errorf("Len() = %d, want 12", src.Len())
	}
	if got := len(src.Fields()); got != 10 {
		t.Errorf("fields = %d, want 10", got)
	}
	row, err := src.Row(context.Background(), 1)
	if err != nil {
		t.Fatalf("Row(1) error = %v", err)
	}
	if want := time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC); !row.Timestamp.Equal(want) {
		t.Errorf("row 1 timestamp = %v, want %v", row.Timestamp, want)
	}
}

func TestRun_SameSeedSameFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := quietConfig(t)
	for _, name := range []string{"a.csv", "b.csv"} {
		err := run(context.Background(), options{
			configPath: cfgPath,
			rows:       20,
			seed:       9,
			format:     "csv",
			out:        filepath.Join(dir, name),
		})
		if err != nil {
			t.Fatalf("run(%s) error = %v", name, err)
		}
	}

	a, err := os.ReadFile(filepath.Join(dir, "a.csv"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "b.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("same seed produced different files")
	}
}

func TestRun_SQLite(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "plant.db")
	err := run(ctx, options{
		configPath: quietConfig(t),
		rows:       5,
		seed:       3,
		format:     "sqlite",
		out:        out,
	})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	src, closeSrc, err := dataset.Open(ctx,
		config.DatasetConfig{Format: "sqlite"},
		config.DatabaseConfig{Path: out, BusyTimeout: 5},
		"battery_plant", nil,
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer closeSrc()

	if src.Len() != 5 {
		t.Errorf("Len() = %d, want 5", src.Len())
	}
	if got := len(src.Fields()); got != 30 {
		t.Errorf("fields = %d, want 30", got)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts options
		want string
	}{
		{name: "unknown format", opts: options{format: "parquet"}, want: "unknown format"},
		{name: "unknown schema", opts: options{format: "csv", schema: "brewery"}, want: "topic registry"},
		{name: "bad start", opts: options{format: "csv", start: "yesterday"}, want: "--start"},
		{name: "negative rows", opts: options{format: "csv", rows: -1}, want: "generating dataset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.configPath = quietConfig(t)
			tt.opts.out = filepath.Join(t.TempDir(), "out")
			err := run(context.Background(), tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("run() error = %v, want %q", err, tt.want)
			}
		})
	}
}

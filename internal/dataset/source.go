package dataset

import (
	"context"
	"fmt"

	"github.com/nerrad567/plant-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/database"
	"github.com/nerrad567/plant-telemetry/migrations"
)

// Open resolves the configured dataset into a Source. fields are the
// dataset columns the active schema reads; schema names the generation
// profile set for the generated format.
//
// The returned close function releases any database handle and is never nil.
func Open(ctx context.Context, cfg config.DatasetConfig, dbCfg config.DatabaseConfig, schema string, fields []string) (Source, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Format {
	case "csv":
		src, err := LoadCSV(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil

	case "sqlite":
		db, err := database.Open(ctx, dbCfg)
		if err != nil {
			return nil, noop, err
		}
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			db.Close() //nolint:errcheck // already failing
			return nil, noop, err
		}
		store, err := OpenStore(ctx, db)
		if err != nil {
			db.Close() //nolint:errcheck // already failing
			return nil, noop, err
		}
		if store.Len() == 0 {
			db.Close() //nolint:errcheck // already failing
			return nil, noop, fmt.Errorf("%s: %w", dbCfg.Path, ErrEmptyDataset)
		}
		return store, db.Close, nil

	case "generated":
		rows, err := Generate(fields, ProfilesForFields(schema, fields), GenerateOptions{
			Rows: cfg.Rows,
			Seed: cfg.Seed,
		})
		if err != nil {
			return nil, noop, err
		}
		src, err := NewMemorySource(fields, rows)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil

	default:
		return nil, noop, fmt.Errorf("dataset: unknown format %q", cfg.Format)
	}
}

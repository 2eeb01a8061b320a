// plantgen writes a synthetic sensor dataset for plantsim to replay.
//
// Values follow each field's profile: a base level, a daily swing and
// seeded jitter, so the same seed always yields the same file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/spf13/pflag"

	"github.com/nerrad567/plant-telemetry/internal/dataset"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/database"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/plant-telemetry/internal/telemetry"
	"github.com/nerrad567/plant-telemetry/migrations"
)

var version = "dev"

const serviceName = "plantgen"

type options struct {
	configPath string
	schema     string
	rows       int
	seed       uint64
	format     string
	out        string
	start      string
	step       time.Duration
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts options
	fs := pflag.NewFlagSet(serviceName, pflag.ExitOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "config file (default $PLANT_CONFIG or "+config.DefaultPath+")")
	fs.StringVar(&opts.schema, "schema", "", "built-in sensor schema, overrides telemetry.schema")
	fs.IntVarP(&opts.rows, "rows", "n", 0, "rows to generate, overrides dataset.rows")
	fs.Uint64Var(&opts.seed, "seed", 0, "random seed, overrides dataset.seed")
	fs.StringVarP(&opts.format, "format", "f", "csv", "output format: csv or sqlite")
	fs.StringVarP(&opts.out, "out", "o", "", "output file (default dataset.path or database.path)")
	fs.StringVar(&opts.start, "start", "", "first row timestamp, ISO-8601 (default 2024-05-05T12:00:00Z)")
	fs.DurationVar(&opts.step, "step", time.Minute, "time between rows")
	fs.Parse(os.Args[1:]) //nolint:errcheck // ExitOnError

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, _, err := config.Resolve(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, serviceName, version)

	if opts.schema != "" {
		cfg.Telemetry.Schema = opts.schema
		cfg.Telemetry.Sensors = nil
	}
	registry, err := telemetry.RegistryFromConfig(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("building topic registry: %w", err)
	}

	genOpts := dataset.GenerateOptions{
		Rows: cfg.Dataset.Rows,
		Seed: cfg.Dataset.Seed,
		Step: opts.step,
	}
	if opts.rows != 0 {
		genOpts.Rows = opts.rows
	}
	if opts.seed != 0 {
		genOpts.Seed = opts.seed
	}
	if opts.start != "" {
		start, err := iso8601.ParseString(opts.start)
		if err != nil {
			return fmt.Errorf("parsing --start: %w", err)
		}
		genOpts.Start = start
	}

	fields := registry.Fields()
	rows, err := dataset.Generate(fields, dataset.ProfilesForFields(cfg.Telemetry.Schema, fields), genOpts)
	if err != nil {
		return fmt.Errorf("generating dataset: %w", err)
	}

	var out string
	switch opts.format {
	case "csv":
		out = firstNonEmpty(opts.out, cfg.Dataset.Path)
		if err := os.MkdirAll(filepath.Dir(out), 0750); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		if err := dataset.SaveCSV(out, fields, rows); err != nil {
			return err
		}
	case "sqlite":
		dbCfg := cfg.Database
		dbCfg.Path = firstNonEmpty(opts.out, dbCfg.Path)
		out = dbCfg.Path
		if err := writeSQLite(ctx, dbCfg, fields, rows); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (want csv or sqlite)", opts.format)
	}

	log.Info("dataset written",
		"path", out,
		"format", opts.format,
		"schema", cfg.Telemetry.Schema,
		"rows", len(rows),
		"fields", len(fields),
		"seed", genOpts.Seed,
	)
	return nil
}

// writeSQLite replaces the dataset held in the database at cfg.Path.
func writeSQLite(ctx context.Context, cfg config.DatabaseConfig, fields []string, rows []dataset.Reading) error {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-only after Replace

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return err
	}
	store, err := dataset.OpenStore(ctx, db)
	if err != nil {
		return err
	}
	return store.Replace(ctx, fields, rows)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// plantsim replays a sensor dataset onto the MQTT bus.
//
// Every tick it takes the next dataset row and publishes one message per
// configured sensor, looping back to the first row at the end. With
// broker.embedded set it also runs an in-process broker, so a demo needs
// no external Mosquitto.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/plant-telemetry/internal/dataset"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/broker"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/mqtt"
	"github.com/nerrad567/plant-telemetry/internal/publisher"
	"github.com/nerrad567/plant-telemetry/internal/telemetry"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const serviceName = "plantsim"

type options struct {
	configPath string
	interval   time.Duration
	schema     string
	format     string
	path       string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts options
	fs := pflag.NewFlagSet(serviceName, pflag.ExitOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "config file (default $PLANT_CONFIG or "+config.DefaultPath+")")
	fs.DurationVar(&opts.interval, "interval", 0, "publish interval, overrides simulator.interval")
	fs.StringVar(&opts.schema, "schema", "", "built-in sensor schema, overrides telemetry.schema")
	fs.StringVar(&opts.format, "dataset-format", "", "csv, sqlite or generated, overrides dataset.format")
	fs.StringVar(&opts.path, "dataset", "", "dataset file, overrides dataset.path")
	fs.Parse(os.Args[1:]) //nolint:errcheck // ExitOnError

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags layers command-line overrides on top of the loaded config.
func applyFlags(cfg *config.Config, opts options) error {
	if opts.interval != 0 {
		cfg.Simulator.Interval = opts.interval
	}
	if opts.schema != "" {
		cfg.Telemetry.Schema = opts.schema
		cfg.Telemetry.Sensors = nil
	}
	if opts.format != "" {
		cfg.Dataset.Format = opts.format
	}
	if opts.path != "" {
		cfg.Dataset.Path = opts.path
	}
	return cfg.Validate()
}

// run wires the simulator together and blocks until ctx is cancelled.
func run(ctx context.Context, opts options) error {
	log := logging.Default(serviceName)

	cfg, source, err := config.Resolve(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := applyFlags(cfg, opts); err != nil {
		return fmt.Errorf("applying flags: %w", err)
	}

	log = logging.New(cfg.Logging, serviceName, version)
	log.Info("starting plant simulator",
		"version", version,
		"commit", commit,
		"config", source,
		"plant", cfg.Plant.ID,
	)

	registry, err := telemetry.RegistryFromConfig(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("building topic registry: %w", err)
	}

	src, closeSource, err := dataset.Open(ctx, cfg.Dataset, cfg.Database, cfg.Telemetry.Schema, registry.Fields())
	if err != nil {
		return fmt.Errorf("opening dataset: %w", err)
	}
	defer closeSource() //nolint:errcheck // shutdown
	log.Info("dataset loaded", "format", cfg.Dataset.Format, "rows", src.Len())

	if cfg.Broker.Embedded {
		b, err := broker.Start(cfg.Broker, log.With("component", "broker").Logger)
		if err != nil {
			return err
		}
		defer b.Close() //nolint:errcheck // shutdown
		log.Info("embedded MQTT broker started", "address", b.Address())
	}

	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = mqtt.GenerateClientID(serviceName)
	}
	client, err := mqtt.ConnectWithRetry(ctx, cfg.MQTT, log.With("component", "mqtt"))
	if err != nil {
		return err
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", client.ClientID(),
	)

	pub, err := publisher.New(registry, src, client, publisher.Options{
		TimestampSource: publisher.TimestampSource(cfg.Telemetry.TimestampSource),
		EmbedIdentity:   cfg.Telemetry.EmbedIdentity,
		Logger:          log.With("component", "publisher"),
	})
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}

	log.Info("publishing sensor readings",
		"sensors", registry.Len(),
		"layout", registry.Layout(),
		"interval", cfg.Simulator.Interval,
	)
	if err := pub.Run(ctx, cfg.Simulator.Interval); err != nil {
		return err
	}

	stats := pub.Stats()
	log.Info("plant simulator stopped",
		"ticks", stats.Ticks,
		"published", stats.Published,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return nil
}

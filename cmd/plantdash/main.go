// plantdash is the live plant dashboard.
//
// It subscribes to every registered sensor topic, keeps the latest reading
// per sensor, and serves the table over HTTP and WebSocket together with
// the browser panel.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nerrad567/plant-telemetry/internal/aggregator"
	"github.com/nerrad567/plant-telemetry/internal/api"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/broker"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/mqtt"
	"github.com/nerrad567/plant-telemetry/internal/telemetry"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const serviceName = "plantdash"

type options struct {
	configPath string
	port       int
	panelDir   string
	schema     string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts options
	fs := pflag.NewFlagSet(serviceName, pflag.ExitOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "config file (default $PLANT_CONFIG or "+config.DefaultPath+")")
	fs.IntVarP(&opts.port, "port", "p", 0, "HTTP port, overrides api.port")
	fs.StringVar(&opts.panelDir, "panel-dir", "", "serve dashboard assets from this directory")
	fs.StringVar(&opts.schema, "schema", "", "built-in sensor schema, overrides telemetry.schema")
	fs.Parse(os.Args[1:]) //nolint:errcheck // ExitOnError

	if err := run(ctx, opts, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags layers command-line overrides on top of the loaded config.
func applyFlags(cfg *config.Config, opts options) error {
	if opts.port != 0 {
		cfg.API.Port = opts.port
	}
	if opts.panelDir != "" {
		cfg.API.PanelDir = opts.panelDir
	}
	if opts.schema != "" {
		cfg.Telemetry.Schema = opts.schema
		cfg.Telemetry.Sensors = nil
	}
	return cfg.Validate()
}

// run wires the dashboard together and blocks until ctx is cancelled.
// ready, when non-nil, receives the API listen address once serving.
func run(ctx context.Context, opts options, ready chan<- string) error {
	log := logging.Default(serviceName)

	cfg, source, err := config.Resolve(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := applyFlags(cfg, opts); err != nil {
		return fmt.Errorf("applying flags: %w", err)
	}

	log = logging.New(cfg.Logging, serviceName, version)
	log.Info("starting plant dashboard",
		"version", version,
		"commit", commit,
		"config", source,
		"plant", cfg.Plant.ID,
	)

	registry, err := telemetry.RegistryFromConfig(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("building topic registry: %w", err)
	}

	agg, err := aggregator.New(registry, aggregator.Options{
		IdentitySource: aggregator.IdentitySource(cfg.Telemetry.IdentitySource),
		Logger:         log.With("component", "aggregator"),
	})
	if err != nil {
		return fmt.Errorf("creating aggregator: %w", err)
	}

	if cfg.Broker.Embedded {
		b, err := broker.Start(cfg.Broker, log.With("component", "broker").Logger)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("stopping embedded MQTT broker")
			if closeErr := b.Close(); closeErr != nil {
				log.Error("error stopping broker", "error", closeErr)
			}
		}()
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
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.With("component", "api"),
		Aggregator: agg,
		MQTT:       client,
		PanelDir:   cfg.API.PanelDir,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Subscribe only once the hub relays updates, so no early reading is
	// missed by connected clients.
	if err := agg.Start(client, byte(cfg.MQTT.QoS)); err != nil {
		return err
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, client, srv); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("dashboard ready",
		"address", srv.Addr(),
		"sensors", registry.Len(),
		"layout", registry.Layout(),
	)
	if ready != nil {
		ready <- srv.Addr()
	}

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	stats := agg.Stats()
	log.Info("aggregator totals",
		"accepted", stats.Accepted,
		"decode_errors", stats.DecodeErrors,
		"unknown_topics", stats.UnknownTopics,
	)
	return nil
}

// healthCheck verifies the bus connection and the HTTP listener.
func healthCheck(ctx context.Context, client *mqtt.Client, srv *api.Server) error {
	if err := client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if err := srv.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration shared by the plant telemetry binaries.
// Values are loaded from YAML and can be overridden by environment variables.
type Config struct {
	Plant     PlantConfig     `yaml:"plant"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Broker    BrokerConfig    `yaml:"broker"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PlantConfig identifies the plant being monitored.
type PlantConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// StatusPrefix roots the retained online/offline topic published for
	// each client: <status_prefix>/status/<client_id>.
	StatusPrefix string `yaml:"status_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnection and startup retry settings.
// Delays are in seconds. MaxAttempts of 0 retries the initial connect
// until the caller's context is cancelled.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// BrokerConfig controls the optional in-process MQTT broker.
type BrokerConfig struct {
	Embedded bool   `yaml:"embedded"`
	Address  string `yaml:"address"`
}

// TelemetryConfig selects the sensor schema and topic layout.
//
// Schema names a built-in sensor set. When Sensors is non-empty it replaces
// the built-in set entirely, and Scheme and Base must describe the layout.
// Scheme and Base may also be set alongside a built-in schema to override
// its defaults.
type TelemetryConfig struct {
	Schema          string         `yaml:"schema"`
	Scheme          string         `yaml:"scheme"`
	Base            string         `yaml:"base"`
	Sensors         []SensorConfig `yaml:"sensors"`
	IdentitySource  string         `yaml:"identity_source"`
	TimestampSource string         `yaml:"timestamp_source"`
	EmbedIdentity   bool           `yaml:"embed_identity"`
}

// SensorConfig declares one sensor and the dataset field feeding it.
type SensorConfig struct {
	Group string `yaml:"group"`
	Name  string `yaml:"name"`
	Field string `yaml:"field"`
}

// SimulatorConfig contains publisher pacing settings.
type SimulatorConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// DatasetConfig selects where the publisher reads its rows from.
//
// Format is one of:
//   - "csv": rows are loaded from Path
//   - "sqlite": rows are read from the database at database.path
//   - "generated": Rows synthetic rows are generated in memory from Seed
type DatasetConfig struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
	Rows   int    `yaml:"rows"`
	Seed   uint64 `yaml:"seed"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// PanelDir serves the dashboard assets from disk when set, for editing
	// the page without rebuilding.
	PanelDir string `yaml:"panel_dir"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
//
// Format is "json", "text" (colourised console output) or "plain"
// (slog's logfmt-style text handler).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values
//  2. YAML file values
//  3. Environment variables
//
// Environment variables follow the pattern PLANT_SECTION_KEY, for example
// PLANT_MQTT_HOST or PLANT_API_PORT.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultPath is where the binaries look for a config file when neither
// --config nor PLANT_CONFIG names one.
const DefaultPath = "configs/config.yaml"

// Resolve loads the configuration for a binary. An explicit path (the
// --config flag, else PLANT_CONFIG) must exist. Without one, DefaultPath is
// used if present and the built-in defaults otherwise. It returns the
// config and a description of where it came from.
func Resolve(flagPath string) (*Config, string, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv("PLANT_CONFIG")
	}
	if path != "" {
		cfg, err := Load(path)
		return cfg, path, err
	}

	if _, err := os.Stat(DefaultPath); err == nil {
		cfg, err := Load(DefaultPath)
		return cfg, DefaultPath, err
	}
	cfg, err := Default()
	return cfg, "built-in defaults", err
}

// Default returns the built-in configuration with environment overrides
// applied. It is what the binaries run with when no config file exists.
func Default() (*Config, error) {
	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Plant: PlantConfig{
			ID:   "plant-001",
			Name: "Battery Plant",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     30,
				MaxAttempts:  5,
			},
			StatusPrefix: "plant",
		},
		Broker: BrokerConfig{
			Embedded: false,
			Address:  ":1883",
		},
		Telemetry: TelemetryConfig{
			Schema:          "battery_plant",
			IdentitySource:  "topic",
			TimestampSource: "publish",
		},
		Simulator: SimulatorConfig{
			Interval: time.Second,
		},
		Dataset: DatasetConfig{
			Format: "csv",
			Path:   "./data/battery_sensor_data.csv",
			Rows:   1000,
			Seed:   1,
		},
		Database: DatabaseConfig{
			Path:        "./data/plant.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies PLANT_* environment variable overrides.
func applyEnvOverrides(cfg *Config) error {
	// MQTT
	if v := os.Getenv("PLANT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PLANT_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PLANT_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("PLANT_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("PLANT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PLANT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Broker
	if v := os.Getenv("PLANT_BROKER_EMBEDDED"); v != "" {
		embedded, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PLANT_BROKER_EMBEDDED: %w", err)
		}
		cfg.Broker.Embedded = embedded
	}

	// Telemetry
	if v := os.Getenv("PLANT_TELEMETRY_SCHEMA"); v != "" {
		cfg.Telemetry.Schema = v
	}

	// Simulator
	if v := os.Getenv("PLANT_SIMULATOR_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PLANT_SIMULATOR_INTERVAL: %w", err)
		}
		cfg.Simulator.Interval = d
	}

	// Dataset and database
	if v := os.Getenv("PLANT_DATASET_FORMAT"); v != "" {
		cfg.Dataset.Format = v
	}
	if v := os.Getenv("PLANT_DATASET_PATH"); v != "" {
		cfg.Dataset.Path = v
	}
	if v := os.Getenv("PLANT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("PLANT_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("PLANT_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PLANT_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}

	// Logging
	if v := os.Getenv("PLANT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PLANT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	return nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Plant.ID == "" {
		errs = append(errs, "plant.id is required")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Reconnect.MaxAttempts < 0 {
		errs = append(errs, "mqtt.reconnect.max_attempts must not be negative")
	}

	if c.Broker.Embedded && c.Broker.Address == "" {
		errs = append(errs, "broker.address is required when broker.embedded is true")
	}

	// Telemetry
	if c.Telemetry.Schema == "" && len(c.Telemetry.Sensors) == 0 {
		errs = append(errs, "telemetry.schema or telemetry.sensors is required")
	}
	if len(c.Telemetry.Sensors) > 0 && c.Telemetry.Base == "" {
		errs = append(errs, "telemetry.base is required when telemetry.sensors is set")
	}
	switch c.Telemetry.Scheme {
	case "", "process", "flat":
	default:
		errs = append(errs, "telemetry.scheme must be process or flat")
	}
	switch c.Telemetry.IdentitySource {
	case "", "topic", "payload":
	default:
		errs = append(errs, "telemetry.identity_source must be topic or payload")
	}
	switch c.Telemetry.TimestampSource {
	case "", "publish", "reading":
	default:
		errs = append(errs, "telemetry.timestamp_source must be publish or reading")
	}

	if c.Simulator.Interval <= 0 {
		errs = append(errs, "simulator.interval must be positive")
	}

	// Dataset
	switch c.Dataset.Format {
	case "csv":
		if c.Dataset.Path == "" {
			errs = append(errs, "dataset.path is required for csv datasets")
		}
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite datasets")
		}
	case "generated":
		if c.Dataset.Rows < 1 {
			errs = append(errs, "dataset.rows must be at least 1 for generated datasets")
		}
	default:
		errs = append(errs, "dataset.format must be csv, sqlite, or generated")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text", "plain":
	default:
		errs = append(errs, "logging.format must be json, text, or plain")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

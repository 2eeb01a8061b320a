// Package logging provides structured logging for the plant telemetry services.
//
// It wraps log/slog so every binary logs the same way. JSON is the
// production format; the text format uses tint for readable, colourised
// console output and drops colour automatically when the output is not a
// terminal.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text, plain
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "plantsim", "1.0.0")
//	logger.Info("publishing", "sensors", 30)
//	logger.Error("failed to connect", "error", err)
//
// Never log MQTT passwords or other credentials.
package logging

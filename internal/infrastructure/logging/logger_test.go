package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/plant-telemetry/internal/infrastructure/config"
)

func TestNew_JSONFormat(t *testing.T) {
	cfg := config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	logger := New(cfg, "plantsim", "1.0.0")

	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNew_TextFormat(t *testing.T) {
	cfg := config.LoggingConfig{
		Level:  "debug",
		Format: "text",
		Output: "stderr",
	}

	logger := New(cfg, "plantdash", "1.0.0")

	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{name: "debug level", input: "debug", expected: slog.LevelDebug},
		{name: "info level", input: "info", expected: slog.LevelInfo},
		{name: "warn level", input: "warn", expected: slog.LevelWarn},
		{name: "warning level", input: "warning", expected: slog.LevelWarn},
		{name: "error level", input: "error", expected: slog.LevelError},
		{name: "unknown defaults to info", input: "unknown", expected: slog.LevelInfo},
		{name: "empty defaults to info", input: "", expected: slog.LevelInfo},
		{name: "case insensitive", input: "DEBUG", expected: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	logger := Default("plantsim")
	childLogger := logger.With("component", "mqtt")

	if childLogger == nil {
		t.Fatal("expected non-nil child logger")
	}

	if childLogger == logger {
		t.Error("expected child logger to be different from parent")
	}
}

func TestLogger_JSONOutputContainsDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf, true, "plantsim", "test")

	logger.Info("tick published", "published", 30)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if entry["msg"] != "tick published" {
		t.Errorf("msg = %v, want %q", entry["msg"], "tick published")
	}
	if entry["service"] != "plantsim" {
		t.Errorf("service = %v, want %q", entry["service"], "plantsim")
	}
	if entry["version"] != "test" {
		t.Errorf("version = %v, want %q", entry["version"], "test")
	}
	if entry["published"] != float64(30) {
		t.Errorf("published = %v, want 30", entry["published"])
	}
}

func TestLogger_TextOutputWithoutColour(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, &buf, true, "plantdash", "test")

	logger.Info("dashboard ready", "port", 8080)

	output := buf.String()
	if !strings.Contains(output, "dashboard ready") {
		t.Errorf("output %q missing message", output)
	}
	if !strings.Contains(output, "service=plantdash") {
		t.Errorf("output %q missing service field", output)
	}
	if strings.Contains(output, "\x1b[") {
		t.Errorf("output %q contains ANSI escapes with colour disabled", output)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(config.LoggingConfig{Level: "warn", Format: "plain"}, &buf, true, "plantsim", "test")

	logger.Info("hidden")
	logger.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(output, "shown") {
		t.Error("warn message missing at warn level")
	}
}

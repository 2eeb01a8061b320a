package publisher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/plant-telemetry/internal/dataset"
	"github.com/nerrad567/plant-telemetry/internal/telemetry"
)

// Transport hands a message to the bus without waiting for delivery.
// *mqtt.Client satisfies it.
type Transport interface {
	PublishAsync(topic string, payload []byte) error
}

// Logger defines the logging interface used by the Publisher.
// It is compatible with slog.Logger and logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// TimestampSource selects which clock stamps outgoing messages.
type TimestampSource string

const (
	// TimestampPublish stamps messages with the wall clock at publish time.
	TimestampPublish TimestampSource = "publish"

	// TimestampReading stamps messages with the row's own timestamp.
	TimestampReading TimestampSource = "reading"
)

// Options configures a Publisher. The zero value publishes with the wall
// clock, without embedded identity, and discards logs.
type Options struct {
	TimestampSource TimestampSource

	// EmbedIdentity adds sensor_type and location to each payload.
	EmbedIdentity bool

	// Clock overrides time.Now.
	Clock func() time.Time

	Logger Logger
}

// Outcome reports what one tick did.
type Outcome struct {
	Row       int
	Published int
	Skipped   []telemetry.SensorIdentity
	Failed    int
}

// Stats are cumulative counters since the Publisher was created.
type Stats struct {
	Ticks     uint64 `json:"ticks"`
	Published uint64 `json:"published"`
	Skipped   uint64 `json:"skipped"`
	Failed    uint64 `json:"failed"`
	Wraps     uint64 `json:"wraps"`
}

// Publisher turns dataset rows into bus messages.
//
// Thread Safety:
//   - Next, Tick and PublishOneTick are safe to call concurrently, though
//     Run is the intended single driver.
type Publisher struct {
	registry  *telemetry.Registry
	source    dataset.Source
	transport Transport
	opts      Options
	logger    Logger

	mu     sync.Mutex
	cursor int
	warned map[telemetry.SensorIdentity]bool

	ticks     atomic.Uint64
	published atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
	wraps     atomic.Uint64
}

// New creates a Publisher reading from source and publishing every sensor
// in registry through transport.
func New(registry *telemetry.Registry, source dataset.Source, transport Transport, opts Options) (*Publisher, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: registry is required", telemetry.ErrConfiguration)
	}
	if transport == nil {
		return nil, errors.New("publisher: transport is required")
	}
	if source == nil || source.Len() == 0 {
		return nil, dataset.ErrEmptyDataset
	}

	switch opts.TimestampSource {
	case "":
		opts.TimestampSource = TimestampPublish
	case TimestampPublish, TimestampReading:
	default:
		return nil, fmt.Errorf("%w: unknown timestamp source %q", telemetry.ErrConfiguration, opts.TimestampSource)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Publisher{
		registry:  registry,
		source:    source,
		transport: transport,
		opts:      opts,
		logger:    logger,
		warned:    make(map[telemetry.SensorIdentity]bool),
	}, nil
}

// Next returns the row at the cursor and advances it, wrapping to the first
// row after the last. The cursor advances even when the read fails, so one
// bad row cannot stall replay.
func (p *Publisher) Next(ctx context.Context) (dataset.Reading, error) {
	p.mu.Lock()
	index := p.cursor
	p.cursor++
	wrapped := p.cursor >= p.source.Len()
	if wrapped {
		p.cursor = 0
	}
	p.mu.Unlock()

	if wrapped {
		p.wraps.Add(1)
		p.logger.Info("reached end of dataset, replaying from the first row", "rows", p.source.Len())
	}

	return p.source.Row(ctx, index)
}

// Position returns the index of the row the next call to Next will read.
func (p *Publisher) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// PublishOneTick publishes one message per registered sensor from reading.
// Sensors whose field is missing or not a finite number are skipped; a
// failed hand-off is logged and counted. Neither stops the fan-out.
func (p *Publisher) PublishOneTick(reading dataset.Reading) Outcome {
	out := Outcome{Row: reading.Index}

	ts := p.opts.Clock()
	if p.opts.TimestampSource == TimestampReading && !reading.Timestamp.IsZero() {
		ts = reading.Timestamp
	}

	for _, spec := range p.registry.Specs() {
		id := spec.Identity()

		msg, err := p.message(spec, reading, ts)
		if err != nil {
			out.Skipped = append(out.Skipped, id)
			p.noteMissing(id, reading.Index, err)
			continue
		}

		payload, err := msg.Encode()
		if err != nil {
			out.Failed++
			p.logger.Error("encoding sensor message failed", "sensor", id.String(), "row", reading.Index, "error", err)
			continue
		}

		topic := p.registry.MustTopic(id)
		if err := p.transport.PublishAsync(topic, payload); err != nil {
			out.Failed++
			p.logger.Warn("publishing sensor message failed", "topic", topic, "error", err)
			continue
		}
		out.Published++
	}

	p.ticks.Add(1)
	p.published.Add(uint64(out.Published))
	p.skipped.Add(uint64(len(out.Skipped)))
	p.failed.Add(uint64(out.Failed))

	return out
}

func (p *Publisher) message(spec telemetry.SensorSpec, reading dataset.Reading, ts time.Time) (telemetry.Message, error) {
	v, ok := reading.Value(spec.Field)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return telemetry.Message{}, fmt.Errorf("%w: %s", telemetry.ErrMissingField, spec.Field)
	}

	msg := telemetry.Message{
		Value:     v,
		Unit:      telemetry.UnitFor(spec.Name),
		Timestamp: ts,
	}
	if p.opts.EmbedIdentity {
		msg.SensorType = spec.Name
		msg.Location = spec.Group
	}
	return msg, nil
}

// noteMissing warns the first time a sensor is skipped and logs at debug
// after that, so a permanently absent column does not flood the log.
func (p *Publisher) noteMissing(id telemetry.SensorIdentity, row int, err error) {
	p.mu.Lock()
	first := !p.warned[id]
	p.warned[id] = true
	p.mu.Unlock()

	if first {
		p.logger.Warn("skipping sensor with no value", "sensor", id.String(), "row", row, "error", err)
		return
	}
	p.logger.Debug("skipping sensor with no value", "sensor", id.String(), "row", row)
}

// Tick reads the next row and publishes it.
func (p *Publisher) Tick(ctx context.Context) (Outcome, error) {
	reading, err := p.Next(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("reading dataset row: %w", err)
	}
	return p.PublishOneTick(reading), nil
}

// Run publishes a tick immediately and then once per interval until ctx is
// cancelled. A row that cannot be read is logged and that tick skipped.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("publisher: interval must be positive, got %v", interval)
	}

	p.logger.Info("publisher started",
		"interval", interval,
		"rows", p.source.Len(),
		"sensors", p.registry.Len(),
	)
	defer p.logger.Info("publisher stopped", "ticks", p.ticks.Load())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p.runTick(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Publisher) runTick(ctx context.Context) {
	out, err := p.Tick(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("tick skipped", "error", err)
		}
		return
	}
	p.logger.Debug("tick published",
		"row", out.Row,
		"published", out.Published,
		"skipped", len(out.Skipped),
		"failed", out.Failed,
	)
}

// Stats returns the cumulative counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Ticks:     p.ticks.Load(),
		Published: p.published.Load(),
		Skipped:   p.skipped.Load(),
		Failed:    p.failed.Load(),
		Wraps:     p.wraps.Load(),
	}
}

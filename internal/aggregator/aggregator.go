package aggregator

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/plant-telemetry/internal/telemetry"
)

// Subscriber registers a handler for a topic filter. *mqtt.Client
// satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
}

// Logger defines the logging interface used by the Aggregator.
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

// IdentitySource selects what names the sensor a message belongs to.
type IdentitySource string

const (
	// IdentityTopic resolves the sensor from the topic. Identity fields in
	// the payload, if present, must agree.
	IdentityTopic IdentitySource = "topic"

	// IdentityPayload resolves the sensor from the payload's location and
	// sensor_type fields. If the topic also resolves, it must agree.
	IdentityPayload IdentitySource = "payload"
)

// Options configures an Aggregator.
type Options struct {
	IdentitySource IdentitySource

	// Clock overrides time.Now for ReceivedAt.
	Clock func() time.Time

	Logger Logger
}

// Entry is the latest accepted message for a sensor.
type Entry struct {
	telemetry.Message
	ReceivedAt time.Time
}

// Snapshot is a point-in-time copy of the table. Sensors absent from
// Entries are Unset.
type Snapshot struct {
	TakenAt time.Time
	Entries map[telemetry.SensorIdentity]Entry
}

// Update describes one accepted message.
type Update struct {
	Identity telemetry.SensorIdentity
	Topic    string
	Entry    Entry
}

// Stats are cumulative counters plus the current table state.
type Stats struct {
	Accepted      uint64 `json:"accepted"`
	DecodeErrors  uint64 `json:"decode_errors"`
	UnknownTopics uint64 `json:"unknown_topics"`
	Known         int    `json:"known"`
	Unset         int    `json:"unset"`
}

// Aggregator maintains the latest-value table.
type Aggregator struct {
	registry *telemetry.Registry
	source   IdentitySource
	clock    func() time.Time
	logger   Logger

	mu     sync.RWMutex
	latest map[telemetry.SensorIdentity]Entry

	listenersMu sync.RWMutex
	listeners   []func(Update)

	accepted      atomic.Uint64
	decodeErrors  atomic.Uint64
	unknownTopics atomic.Uint64
}

// New creates an Aggregator with an empty table for the sensors in registry.
func New(registry *telemetry.Registry, opts Options) (*Aggregator, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: registry is required", telemetry.ErrConfiguration)
	}

	switch opts.IdentitySource {
	case "":
		opts.IdentitySource = IdentityTopic
	case IdentityTopic, IdentityPayload:
	default:
		return nil, fmt.Errorf("%w: unknown identity source %q", telemetry.ErrConfiguration, opts.IdentitySource)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Aggregator{
		registry: registry,
		source:   opts.IdentitySource,
		clock:    opts.Clock,
		logger:   logger,
		latest:   make(map[telemetry.SensorIdentity]Entry, registry.Len()),
	}, nil
}

// Registry returns the registry the aggregator resolves topics with.
func (a *Aggregator) Registry() *telemetry.Registry {
	return a.registry
}

// Start subscribes to every topic pattern the registry covers.
func (a *Aggregator) Start(sub Subscriber, qos byte) error {
	for _, pattern := range a.registry.SubscriptionPatterns() {
		if err := sub.Subscribe(pattern, qos, a.deliver); err != nil {
			return fmt.Errorf("subscribing to %s: %w", pattern, err)
		}
		a.logger.Info("subscribed to sensor topics", "pattern", pattern, "qos", qos)
	}
	return nil
}

// deliver is the bus callback. Rejected messages are already logged and
// counted by HandleMessage.
func (a *Aggregator) deliver(topic string, payload []byte) error {
	_ = a.HandleMessage(topic, payload) //nolint:errcheck // logged in HandleMessage
	return nil
}

// HandleMessage decodes payload and, if it names a registered sensor,
// makes it that sensor's latest entry. A rejected message leaves the table
// unchanged and returns an error wrapping telemetry.ErrDecode or
// telemetry.ErrUnknownTopic.
func (a *Aggregator) HandleMessage(topic string, payload []byte) error {
	receivedAt := a.clock()

	msg, err := telemetry.DecodeMessage(payload)
	if err != nil {
		a.decodeErrors.Add(1)
		a.logger.Warn("dropping malformed sensor message", "topic", topic, "error", err)
		return err
	}

	id, err := a.resolve(topic, msg)
	if err != nil {
		if errors.Is(err, telemetry.ErrUnknownTopic) {
			a.unknownTopics.Add(1)
			a.logger.Warn("dropping message for unknown sensor", "topic", topic, "error", err)
		} else {
			a.decodeErrors.Add(1)
			a.logger.Warn("dropping inconsistent sensor message", "topic", topic, "error", err)
		}
		return err
	}

	entry := Entry{Message: msg, ReceivedAt: receivedAt}

	a.mu.Lock()
	a.latest[id] = entry
	a.mu.Unlock()

	a.accepted.Add(1)
	a.notify(Update{Identity: id, Topic: topic, Entry: entry})
	return nil
}

func (a *Aggregator) resolve(topic string, msg telemetry.Message) (telemetry.SensorIdentity, error) {
	embedded, hasEmbedded, err := msg.EmbeddedIdentity()
	if err != nil {
		return telemetry.SensorIdentity{}, err
	}

	fromTopic, topicErr := a.registry.Parse(topic)

	if a.source == IdentityPayload {
		if !hasEmbedded {
			return telemetry.SensorIdentity{}, fmt.Errorf("%w: payload does not name its sensor", telemetry.ErrDecode)
		}
		if !a.registry.Contains(embedded) {
			return telemetry.SensorIdentity{}, fmt.Errorf("%w: payload names unregistered sensor %s", telemetry.ErrUnknownTopic, embedded)
		}
		if topicErr == nil && fromTopic != embedded {
			return telemetry.SensorIdentity{}, fmt.Errorf("%w: payload names %s but topic names %s", telemetry.ErrDecode, embedded, fromTopic)
		}
		return embedded, nil
	}

	if topicErr != nil {
		return telemetry.SensorIdentity{}, topicErr
	}
	if hasEmbedded && embedded != fromTopic {
		return telemetry.SensorIdentity{}, fmt.Errorf("%w: topic names %s but payload names %s", telemetry.ErrDecode, fromTopic, embedded)
	}
	return fromTopic, nil
}

// Snapshot returns a copy of the whole table.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	entries := maps.Clone(a.latest)
	a.mu.RUnlock()

	if entries == nil {
		entries = make(map[telemetry.SensorIdentity]Entry)
	}
	return Snapshot{TakenAt: a.clock(), Entries: entries}
}

// Get returns the latest entry for a sensor, or false if it is Unset.
func (a *Aggregator) Get(id telemetry.SensorIdentity) (Entry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.latest[id]
	return e, ok
}

// OnUpdate registers fn to be called after each accepted message. Listeners
// run on the delivery goroutine and must not block.
func (a *Aggregator) OnUpdate(fn func(Update)) {
	a.listenersMu.Lock()
	a.listeners = append(a.listeners, fn)
	a.listenersMu.Unlock()
}

func (a *Aggregator) notify(u Update) {
	a.listenersMu.RLock()
	listeners := a.listeners
	a.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(u)
	}
}

// Stats returns counters and the number of Known and Unset sensors.
func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	known := len(a.latest)
	a.mu.RUnlock()

	return Stats{
		Accepted:      a.accepted.Load(),
		DecodeErrors:  a.decodeErrors.Load(),
		UnknownTopics: a.unknownTopics.Load(),
		Known:         known,
		Unset:         a.registry.Len() - known,
	}
}

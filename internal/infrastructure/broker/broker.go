package broker

import (
	"errors"
	"fmt"
	"log/slog"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/nerrad567/plant-telemetry/internal/infrastructure/config"
)

const listenerID = "plant-tcp"

// ErrStartFailed is returned when the embedded broker cannot be started.
var ErrStartFailed = errors.New("broker: start failed")

// Broker is a running in-process MQTT broker.
type Broker struct {
	server  *mochi.Server
	address string
}

// Start launches a broker listening on cfg.Address and returns once the
// listener is accepting connections. The logger may be nil.
func Start(cfg config.BrokerConfig, logger *slog.Logger) (*Broker, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrStartFailed)
	}

	server := mochi.New(&mochi.Options{
		Logger: logger,
	})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("%w: adding auth hook: %w", ErrStartFailed, err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      listenerID,
		Type:    "tcp",
		Address: cfg.Address,
	})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("%w: listening on %s: %w", ErrStartFailed, cfg.Address, err)
	}

	if err := server.Serve(); err != nil {
		_ = server.Close()
		return nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	return &Broker{server: server, address: cfg.Address}, nil
}

// Address returns the configured listen address.
func (b *Broker) Address() string {
	return b.address
}

// ClientCount returns the number of clients currently known to the broker.
func (b *Broker) ClientCount() int {
	return b.server.Clients.Len()
}

// Close stops all listeners and disconnects clients.
func (b *Broker) Close() error {
	if b == nil || b.server == nil {
		return nil
	}
	return b.server.Close()
}

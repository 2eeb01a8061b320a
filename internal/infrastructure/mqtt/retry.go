package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/nerrad567/plant-telemetry/internal/infrastructure/config"
)

// ConnectWithRetry calls Connect until it succeeds, the attempt budget in
// cfg.Reconnect is spent, or ctx is cancelled. Delays grow exponentially
// from reconnect.initial_delay up to reconnect.max_delay.
//
// The returned error always wraps ErrConnectionFailed.
func ConnectWithRetry(ctx context.Context, cfg config.MQTTConfig, logger Logger) (*Client, error) {
	if cfg.Broker.ClientID == "" {
		cfg.Broker.ClientID = GenerateClientID("plant")
	}

	initial := time.Duration(cfg.Reconnect.InitialDelay) * time.Second
	if initial <= 0 {
		initial = time.Second
	}
	maxDelay := time.Duration(cfg.Reconnect.MaxDelay) * time.Second
	if maxDelay < initial {
		maxDelay = initial
	}

	var client *Client
	err := retry.Do(
		func() error {
			c, err := Connect(cfg)
			if err != nil {
				return err
			}
			client = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(cfg.Reconnect.MaxAttempts)),
		retry.Delay(initial),
		retry.MaxDelay(maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if logger != nil {
				logger.Warn("MQTT connect attempt failed",
					"attempt", n+1,
					"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
					"error", err,
				)
			}
		}),
	)
	if err != nil {
		if !errors.Is(err, ErrConnectionFailed) {
			err = fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
		return nil, err
	}

	client.SetLogger(logger)
	return client, nil
}

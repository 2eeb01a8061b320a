package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps outgoing payloads at 1MB, in line with common broker limits.
const maxPayloadSize = 1 << 20

func validatePublish(topic string, qos byte, payload []byte) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if HasWildcard(topic) {
		return fmt.Errorf("%w: wildcards are not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	return nil
}

// Publish sends a message and waits for the broker to acknowledge it
// (for QoS 0, until it is written to the network).
//
// QoS Levels:
//   - 0: At most once
//   - 1: At least once, may duplicate
//   - 2: Exactly once
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validatePublish(topic, qos, payload); err != nil {
		return err
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishAsync hands a non-retained message to the client at the configured
// QoS and returns without waiting for acknowledgement. Validation and
// connection errors are returned; delivery failures are logged.
func (c *Client) PublishAsync(topic string, payload []byte) error {
	qos := byte(c.cfg.QoS)
	if err := validatePublish(topic, qos, payload); err != nil {
		return err
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, false, payload)
	go c.awaitDelivery(topic, token)

	return nil
}

func (c *Client) awaitDelivery(topic string, token pahomqtt.Token) {
	logger := c.getLogger()
	if !token.WaitTimeout(defaultPublishTimeout) {
		if logger != nil {
			logger.Warn("MQTT publish not acknowledged", "topic", topic, "timeout", defaultPublishTimeout)
		}
		return
	}
	if err := token.Error(); err != nil && logger != nil {
		logger.Warn("MQTT publish failed", "topic", topic, "error", err)
	}
}

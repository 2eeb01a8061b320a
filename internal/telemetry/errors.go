package telemetry

import "errors"

var (
	// ErrConfiguration is returned when a sensor set cannot form a valid registry.
	ErrConfiguration = errors.New("telemetry: invalid sensor configuration")

	// ErrUnknownTopic is returned when a topic does not resolve to a registered sensor.
	ErrUnknownTopic = errors.New("telemetry: unknown topic")

	// ErrMissingField is returned when a reading has no usable value for a sensor's field.
	ErrMissingField = errors.New("telemetry: reading is missing field")

	// ErrDecode is returned for payloads that are not well-formed sensor messages.
	ErrDecode = errors.New("telemetry: malformed message")
)

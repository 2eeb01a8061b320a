package mqtt

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// StatusTopic returns the retained presence topic for a client.
//
// Example: plant/status/plantsim-3f2a9c1d
func StatusTopic(prefix, clientID string) string {
	return fmt.Sprintf("%s/status/%s", prefix, clientID)
}

// AllStatusTopics returns a filter matching every client's presence topic.
func AllStatusTopics(prefix string) string {
	return prefix + "/status/+"
}

// GenerateClientID returns a client ID unique to this process, so that two
// instances of the same binary do not kick each other off the broker.
//
// Example: plantdash-3f2a9c1d
func GenerateClientID(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// HasWildcard reports whether a topic contains an MQTT wildcard.
func HasWildcard(topic string) bool {
	return strings.ContainsAny(topic, "+#")
}

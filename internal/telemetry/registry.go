package telemetry

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Scheme selects how sensor identities are laid out in topics.
type Scheme string

const (
	// SchemeProcess lays topics out as <base>/process/<group>/sensor/<name>.
	SchemeProcess Scheme = "process"

	// SchemeFlat lays topics out as <base>/<group>/<name>.
	SchemeFlat Scheme = "flat"
)

// SensorIdentity names a sensor: the process stage or zone it belongs to,
// and what it measures.
type SensorIdentity struct {
	Group string `json:"group"`
	Name  string `json:"name"`
}

// String returns "group/name".
func (id SensorIdentity) String() string {
	return id.Group + "/" + id.Name
}

// SensorSpec declares a sensor and the dataset field that feeds it.
type SensorSpec struct {
	Group string
	Name  string
	Field string
}

// Identity returns the spec's sensor identity.
func (s SensorSpec) Identity() SensorIdentity {
	return SensorIdentity{Group: s.Group, Name: s.Name}
}

// Registry maps sensor identities to topics and back.
//
// A Registry is immutable after construction and safe for concurrent use.
// Every registered identity has exactly one topic, and Parse inverts
// TopicFor for every registered identity.
type Registry struct {
	scheme Scheme
	base   string

	specs      []SensorSpec
	byIdentity map[SensorIdentity]int
	byTopic    map[string]SensorIdentity
	topics     []string
}

// NewRegistry validates a sensor set and builds its topic map.
//
// Sensors keep their declaration order, which is also the order a
// publisher emits them in. The error wraps ErrConfiguration and names the
// offending sensor.
func NewRegistry(scheme Scheme, base string, sensors []SensorSpec) (*Registry, error) {
	switch scheme {
	case SchemeProcess, SchemeFlat:
	default:
		return nil, fmt.Errorf("%w: unknown topic scheme %q", ErrConfiguration, scheme)
	}
	if err := validateBase(base); err != nil {
		return nil, err
	}
	if len(sensors) == 0 {
		return nil, fmt.Errorf("%w: no sensors declared", ErrConfiguration)
	}

	r := &Registry{
		scheme:     scheme,
		base:       base,
		specs:      make([]SensorSpec, 0, len(sensors)),
		byIdentity: make(map[SensorIdentity]int, len(sensors)),
		byTopic:    make(map[string]SensorIdentity, len(sensors)),
		topics:     make([]string, 0, len(sensors)),
	}
	fields := make(map[string]SensorIdentity, len(sensors))

	for i, s := range sensors {
		if err := validateSegment(fmt.Sprintf("sensor %d group", i), s.Group); err != nil {
			return nil, err
		}
		if err := validateSegment(fmt.Sprintf("sensor %d name", i), s.Name); err != nil {
			return nil, err
		}
		id := s.Identity()
		if s.Field == "" {
			return nil, fmt.Errorf("%w: sensor %s has no field", ErrConfiguration, id)
		}
		if _, dup := r.byIdentity[id]; dup {
			return nil, fmt.Errorf("%w: sensor %s declared more than once", ErrConfiguration, id)
		}
		if other, dup := fields[s.Field]; dup {
			return nil, fmt.Errorf("%w: field %q feeds both %s and %s", ErrConfiguration, s.Field, other, id)
		}
		topic := r.format(id)
		if other, dup := r.byTopic[topic]; dup {
			return nil, fmt.Errorf("%w: sensors %s and %s both map to topic %q", ErrConfiguration, other, id, topic)
		}

		r.byIdentity[id] = len(r.specs)
		r.byTopic[topic] = id
		fields[s.Field] = id
		r.specs = append(r.specs, s)
		r.topics = append(r.topics, topic)
	}

	return r, nil
}

func validateBase(base string) error {
	if base == "" {
		return fmt.Errorf("%w: topic base is empty", ErrConfiguration)
	}
	if strings.HasPrefix(base, "$") {
		return fmt.Errorf("%w: topic base %q uses the reserved $ prefix", ErrConfiguration, base)
	}
	for _, seg := range strings.Split(base, "/") {
		if err := validateSegment("topic base "+base, seg); err != nil {
			return err
		}
	}
	return nil
}

// validateSegment checks a single topic level. Levels must be non-empty
// UTF-8 without separators, wildcards, or NUL.
func validateSegment(what, seg string) error {
	switch {
	case seg == "":
		return fmt.Errorf("%w: %s has an empty topic level", ErrConfiguration, what)
	case !utf8.ValidString(seg):
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrConfiguration, what)
	case strings.ContainsAny(seg, "/+#\x00"):
		return fmt.Errorf("%w: %s %q contains '/', '+', '#', or NUL", ErrConfiguration, what, seg)
	}
	return nil
}

func (r *Registry) format(id SensorIdentity) string {
	if r.scheme == SchemeFlat {
		return r.base + "/" + id.Group + "/" + id.Name
	}
	return r.base + "/process/" + id.Group + "/sensor/" + id.Name
}

// split extracts an identity from a topic by layout alone.
func (r *Registry) split(topic string) (SensorIdentity, bool) {
	rest, ok := strings.CutPrefix(topic, r.base+"/")
	if !ok {
		return SensorIdentity{}, false
	}
	parts := strings.Split(rest, "/")
	if r.scheme == SchemeFlat {
		if len(parts) != 2 {
			return SensorIdentity{}, false
		}
		return SensorIdentity{Group: parts[0], Name: parts[1]}, true
	}
	if len(parts) != 4 || parts[0] != "process" || parts[2] != "sensor" {
		return SensorIdentity{}, false
	}
	return SensorIdentity{Group: parts[1], Name: parts[3]}, true
}

// TopicFor returns the topic a sensor publishes on.
func (r *Registry) TopicFor(id SensorIdentity) (string, error) {
	i, ok := r.byIdentity[id]
	if !ok {
		return "", fmt.Errorf("%w: %s is not a registered sensor", ErrUnknownTopic, id)
	}
	return r.topics[i], nil
}

// MustTopic is like TopicFor but panics for an unregistered sensor.
func (r *Registry) MustTopic(id SensorIdentity) string {
	topic, err := r.TopicFor(id)
	if err != nil {
		panic(err)
	}
	return topic
}

// Parse resolves a topic to the sensor that publishes on it.
// Topics outside the layout, and well-formed topics naming unregistered
// sensors, both return an error wrapping ErrUnknownTopic.
func (r *Registry) Parse(topic string) (SensorIdentity, error) {
	if id, ok := r.byTopic[topic]; ok {
		return id, nil
	}
	if id, ok := r.split(topic); ok {
		return SensorIdentity{}, fmt.Errorf("%w: %q names unregistered sensor %s", ErrUnknownTopic, topic, id)
	}
	return SensorIdentity{}, fmt.Errorf("%w: %q does not match %s", ErrUnknownTopic, topic, r.Layout())
}

// Spec returns the declaration for a registered sensor.
func (r *Registry) Spec(id SensorIdentity) (SensorSpec, bool) {
	i, ok := r.byIdentity[id]
	if !ok {
		return SensorSpec{}, false
	}
	return r.specs[i], true
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id SensorIdentity) bool {
	_, ok := r.byIdentity[id]
	return ok
}

// Specs returns all sensor declarations in declaration order.
func (r *Registry) Specs() []SensorSpec {
	out := make([]SensorSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Identities returns all registered identities in declaration order.
func (r *Registry) Identities() []SensorIdentity {
	out := make([]SensorIdentity, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.Identity()
	}
	return out
}

// Fields returns the reading field of each sensor in declaration order.
func (r *Registry) Fields() []string {
	out := make([]string, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.Field
	}
	return out
}

// Topics returns every sensor topic in declaration order.
func (r *Registry) Topics() []string {
	out := make([]string, len(r.topics))
	copy(out, r.topics)
	return out
}

// Groups returns the distinct groups in first-declared order.
func (r *Registry) Groups() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range r.specs {
		if !seen[s.Group] {
			seen[s.Group] = true
			out = append(out, s.Group)
		}
	}
	return out
}

// SubscriptionPatterns returns topic filters covering every sensor topic.
// Filters may also match unregistered topics, which Parse rejects.
func (r *Registry) SubscriptionPatterns() []string {
	if r.scheme == SchemeFlat {
		return []string{r.base + "/+/+"}
	}
	return []string{r.base + "/process/+/sensor/+"}
}

// Layout describes the topic layout with placeholders.
func (r *Registry) Layout() string {
	return r.format(SensorIdentity{Group: "{group}", Name: "{name}"})
}

// Len returns the number of registered sensors.
func (r *Registry) Len() int {
	return len(r.specs)
}

// Scheme returns the topic layout scheme.
func (r *Registry) Scheme() Scheme {
	return r.scheme
}

// Base returns the topic prefix shared by all sensors.
func (r *Registry) Base() string {
	return r.base
}

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/plant-telemetry/internal/aggregator"
	"github.com/nerrad567/plant-telemetry/internal/telemetry"
)

// Sensor states as rendered to clients.
const (
	StateOK     = "ok"
	StateNoData = "no_data"
)

// SensorReading is one sensor's latest value as seen by the dashboard.
// Value is null and State is "no_data" until the sensor first reports.
type SensorReading struct {
	Group      string   `json:"group"`
	Name       string   `json:"name"`
	Topic      string   `json:"topic"`
	State      string   `json:"state"`
	Value      *float64 `json:"value"`
	Unit       string   `json:"unit"`
	Timestamp  string   `json:"timestamp,omitempty"`
	ReceivedAt string   `json:"received_at,omitempty"`
	AgeSeconds *float64 `json:"age_seconds,omitempty"`
}

// SensorsResponse is the full table grouped by sensor group then name.
type SensorsResponse struct {
	TakenAt string                              `json:"taken_at"`
	Known   int                                 `json:"known"`
	Unset   int                                 `json:"unset"`
	Sensors map[string]map[string]SensorReading `json:"sensors"`
}

// TopicInfo describes one registered sensor and where it publishes.
type TopicInfo struct {
	Group string `json:"group"`
	Name  string `json:"name"`
	Field string `json:"field"`
	Topic string `json:"topic"`
	Unit  string `json:"unit"`
}

// TopicsResponse lists the registry.
type TopicsResponse struct {
	Scheme   string      `json:"scheme"`
	Base     string      `json:"base"`
	Layout   string      `json:"layout"`
	Patterns []string    `json:"patterns"`
	Sensors  []TopicInfo `json:"sensors"`
}

// readingView renders an entry. known is false for Unset sensors.
func (s *Server) readingView(id telemetry.SensorIdentity, e aggregator.Entry, known bool) SensorReading {
	reg := s.aggregator.Registry()
	topic, _ := reg.TopicFor(id) //nolint:errcheck // id always comes from the registry

	view := SensorReading{
		Group: id.Group,
		Name:  id.Name,
		Topic: topic,
		State: StateNoData,
		Unit:  telemetry.UnitFor(id.Name),
	}
	if !known {
		return view
	}

	value := e.Value
	age := s.now().Sub(e.ReceivedAt).Seconds()
	view.State = StateOK
	view.Value = &value
	view.Unit = e.Unit
	view.Timestamp = e.Timestamp.UTC().Format(time.RFC3339Nano)
	view.ReceivedAt = e.ReceivedAt.UTC().Format(time.RFC3339Nano)
	view.AgeSeconds = &age
	return view
}

// sensorsView renders a snapshot covering every registered sensor.
func (s *Server) sensorsView() SensorsResponse {
	snap := s.aggregator.Snapshot()

	resp := SensorsResponse{
		TakenAt: snap.TakenAt.UTC().Format(time.RFC3339Nano),
		Sensors: make(map[string]map[string]SensorReading),
	}
	for _, id := range s.aggregator.Registry().Identities() {
		e, ok := snap.Entries[id]
		if ok {
			resp.Known++
		} else {
			resp.Unset++
		}

		group := resp.Sensors[id.Group]
		if group == nil {
			group = make(map[string]SensorReading)
			resp.Sensors[id.Group] = group
		}
		group[id.Name] = s.readingView(id, e, ok)
	}
	return resp
}

// handleListSensors returns the latest value of every sensor.
func (s *Server) handleListSensors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sensorsView())
}

// handleGetSensor returns one sensor's latest value.
func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	id := telemetry.SensorIdentity{
		Group: chi.URLParam(r, "group"),
		Name:  chi.URLParam(r, "name"),
	}
	if !s.aggregator.Registry().Contains(id) {
		writeNotFound(w, "sensor "+id.String()+" is not registered")
		return
	}

	e, ok := s.aggregator.Get(id)
	writeJSON(w, http.StatusOK, s.readingView(id, e, ok))
}

// handleListTopics describes the topic registry.
func (s *Server) handleListTopics(w http.ResponseWriter, _ *http.Request) {
	reg := s.aggregator.Registry()

	resp := TopicsResponse{
		Scheme:   string(reg.Scheme()),
		Base:     reg.Base(),
		Layout:   reg.Layout(),
		Patterns: reg.SubscriptionPatterns(),
		Sensors:  make([]TopicInfo, 0, reg.Len()),
	}
	for _, spec := range reg.Specs() {
		topic, err := reg.TopicFor(spec.Identity())
		if err != nil {
			writeInternalError(w, "registry is inconsistent")
			return
		}
		resp.Sensors = append(resp.Sensors, TopicInfo{
			Group: spec.Group,
			Name:  spec.Name,
			Field: spec.Field,
			Topic: topic,
			Unit:  telemetry.UnitFor(spec.Name),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

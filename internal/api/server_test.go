package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"

	"github.com/nerrad567/plant-telemetry/internal/aggregator"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/plant-telemetry/internal/telemetry"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)

const mixingTempTopic = "battery_plant/1/process/mixing/sensor/temperature"

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "json", Output: "stdout"}, "test", "test")
}

// testServer creates a Server over a two-sensor aggregator. The aggregator
// stamps arrivals ten seconds before the server's clock.
func testServer(t *testing.T) (*Server, *aggregator.Aggregator) {
	t.Helper()

	reg, err := telemetry.NewRegistry(telemetry.SchemeProcess, "battery_plant/1", []telemetry.SensorSpec{
		{Group: "mixing", Name: "temperature", Field: "mixing_temperature"},
		{Group: "coating", Name: "speed", Field: "coating_speed"},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	agg, err := aggregator.New(reg, aggregator.Options{
		Clock: func() time.Time { return testNow.Add(-10 * time.Second) },
	})
	if err != nil {
		t.Fatalf("aggregator.New() error = %v", err)
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:     testLogger(),
		Aggregator: agg,
		Version:    "test",
		Clock:      func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, agg
}

func accept(t *testing.T, agg *aggregator.Aggregator, topic string, value float64) {
	t.Helper()
	payload := fmt.Appendf(nil, `{"value": %v, "unit": "°C", "timestamp": "2026-03-01T11:59:59Z"}`, value)
	if err := agg.HandleMessage(topic, payload); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
	return v
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger error = nil")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without aggregator error = nil")
	}
}

func TestHealth(t *testing.T) {
	srv, agg := testServer(t)
	accept(t, agg, mixingTempTopic, 1)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := decode[map[string]any](t, w)
	if body["status"] != "ok" || body["mqtt"] != "not_configured" || body["version"] != "test" {
		t.Errorf("health = %v", body)
	}
	if body["sensors_known"] != float64(1) || body["sensors_unset"] != float64(1) {
		t.Errorf("sensor counts = %v/%v", body["sensors_known"], body["sensors_unset"])
	}
}

func TestTestRoute(t *testing.T) {
	srv, _ := testServer(t)
	w := doRequest(t, srv, http.MethodGet, "/test")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "working") {
		t.Errorf("GET /test = %d %q", w.Code, w.Body.String())
	}
}

func TestDashboardPage(t *testing.T) {
	srv, _ := testServer(t)
	w := doRequest(t, srv, http.MethodGet, "/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Errorf("GET / = %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/health")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "from-client")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "from-client" {
		t.Errorf("X-Request-ID = %q, want from-client", got)
	}
}

func TestCORS(t *testing.T) {
	srv, _ := testServer(t)
	srv.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}

	tests := []struct {
		origin    string
		wantAllow string
	}{
		{"http://panel.local", "http://panel.local"},
		{"http://evil.example", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/sensors", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		srv.buildRouter().ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("preflight from %s: status %d, want 204", tt.origin, w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
			t.Errorf("preflight from %s: allow-origin = %q, want %q", tt.origin, got, tt.wantAllow)
		}
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)
	if w := doRequest(t, srv, http.MethodGet, "/api/v1/nonexistent"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListSensors(t *testing.T) {
	srv, agg := testServer(t)
	accept(t, agg, mixingTempTopic, 25.3)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/sensors")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[SensorsResponse](t, w)

	if resp.Known != 1 || resp.Unset != 1 {
		t.Errorf("known/unset = %d/%d, want 1/1", resp.Known, resp.Unset)
	}

	temp := resp.Sensors["mixing"]["temperature"]
	if temp.State != StateOK || temp.Value == nil || *temp.Value != 25.3 || temp.Unit != "°C" {
		t.Errorf("mixing/temperature = %+v", temp)
	}
	if temp.Topic != mixingTempTopic {
		t.Errorf("topic = %q", temp.Topic)
	}
	if temp.AgeSeconds == nil || *temp.AgeSeconds != 10 {
		t.Errorf("age_seconds = %v, want 10", temp.AgeSeconds)
	}
	if temp.Timestamp != "2026-03-01T11:59:59Z" {
		t.Errorf("timestamp = %q", temp.Timestamp)
	}

	speed := resp.Sensors["coating"]["speed"]
	if speed.State != StateNoData || speed.Value != nil || speed.Unit != "m/min" {
		t.Errorf("unset coating/speed = %+v", speed)
	}
	if !strings.Contains(w.Body.String(), `"value":null`) {
		t.Error("unset sensor value not rendered as null")
	}
}

func TestGetSensor(t *testing.T) {
	srv, agg := testServer(t)
	accept(t, agg, mixingTempTopic, 30)

	tests := []struct {
		path       string
		wantStatus int
		wantState  string
	}{
		{"/api/v1/sensors/mixing/temperature", http.StatusOK, StateOK},
		{"/api/v1/sensors/coating/speed", http.StatusOK, StateNoData},
		{"/api/v1/sensors/mixing/colour", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := doRequest(t, srv, http.MethodGet, tt.path)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				if e := decode[Error](t, w); e.Code != ErrCodeNotFound {
					t.Errorf("error code = %q", e.Code)
				}
				return
			}
			if got := decode[SensorReading](t, w); got.State != tt.wantState {
				t.Errorf("state = %q, want %q", got.State, tt.wantState)
			}
		})
	}
}

func TestListTopics(t *testing.T) {
	srv, _ := testServer(t)

	resp := decode[TopicsResponse](t, doRequest(t, srv, http.MethodGet, "/api/v1/topics"))
	if resp.Scheme != string(telemetry.SchemeProcess) || resp.Base != "battery_plant/1" {
		t.Errorf("scheme/base = %q/%q", resp.Scheme, resp.Base)
	}
	if len(resp.Patterns) != 1 || resp.Patterns[0] != "battery_plant/1/process/+/sensor/+" {
		t.Errorf("patterns = %v", resp.Patterns)
	}
	if len(resp.Sensors) != 2 || resp.Sensors[0].Topic != mixingTempTopic || resp.Sensors[0].Field != "mixing_temperature" {
		t.Errorf("sensors = %+v", resp.Sensors)
	}
}

func TestMetrics(t *testing.T) {
	srv, agg := testServer(t)
	accept(t, agg, mixingTempTopic, 1)
	_ = agg.HandleMessage(mixingTempTopic, []byte("not json"))

	m := decode[SystemMetrics](t, doRequest(t, srv, http.MethodGet, "/api/v1/metrics"))
	if m.Aggregator.Accepted != 1 || m.Aggregator.DecodeErrors != 1 {
		t.Errorf("aggregator metrics = %+v", m.Aggregator)
	}
	if m.MQTT.Configured {
		t.Error("MQTT reported configured without a client")
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("goroutine count missing")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// =============================================================================
// Server lifecycle and WebSocket
// =============================================================================

func startServer(t *testing.T) (*Server, *aggregator.Aggregator) {
	t.Helper()
	srv, agg := testServer(t)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv, agg
}

func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readWS reads the next message, re-decoding the payload into P.
func readWS[P any](t *testing.T, ws *websocket.Conn) (WSMessage, P) {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck // test
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("websocket read: %v", err)
	}

	var raw struct {
		WSMessage
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decoding %s: %v", data, err)
	}
	var p P
	if len(raw.Payload) > 0 {
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			t.Fatalf("decoding payload %s: %v", raw.Payload, err)
		}
	}
	msg := raw.WSMessage
	msg.Payload = nil
	return msg, p
}

func subscribe(t *testing.T, ws *websocket.Conn, channels ...string) {
	t.Helper()
	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: channels},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	if msg, _ := readWS[map[string]any](t, ws); msg.Type != WSTypeResponse || msg.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v", msg)
	}
}

func TestServer_StartAndClose(t *testing.T) {
	srv, _ := testServer(t)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start error = nil")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if srv.Addr() == "" {
		t.Fatal("Addr() empty after Start")
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := http.Get("http://" + srv.Addr() + "/api/v1/health"); err == nil {
		t.Error("server still answering after Close()")
	}
}

func TestServer_StartPortInUse(t *testing.T) {
	first, _ := startServer(t)

	second, _ := testServer(t)
	_, port, _ := strings.Cut(first.Addr(), ":")
	fmt.Sscan(port, &second.cfg.Port) //nolint:errcheck // test
	if err := second.Start(context.Background()); err == nil {
		second.Close()
		t.Error("Start() on a bound port error = nil")
	}
}

func TestWebSocket_SnapshotThenUpdates(t *testing.T) {
	srv, agg := startServer(t)
	accept(t, agg, mixingTempTopic, 21)

	ws := dialWS(t, srv)
	subscribe(t, ws, ChannelSensorUpdated)

	msg, snap := readWS[SensorsResponse](t, ws)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelSensorSnapshot {
		t.Fatalf("first event = %+v, want snapshot", msg)
	}
	if snap.Known != 1 || *snap.Sensors["mixing"]["temperature"].Value != 21 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Sensors["coating"]["speed"].State != StateNoData {
		t.Error("snapshot missing unset sensor")
	}

	accept(t, agg, mixingTempTopic, 22)

	msg, reading := readWS[SensorReading](t, ws)
	if msg.EventType != ChannelSensorUpdated {
		t.Fatalf("event = %+v, want sensor.updated", msg)
	}
	if reading.Group != "mixing" || reading.Name != "temperature" || *reading.Value != 22 {
		t.Errorf("update = %+v", reading)
	}
}

func TestWebSocket_UnsubscribedGetsNothing(t *testing.T) {
	srv, agg := startServer(t)
	ws := dialWS(t, srv)
	subscribe(t, ws, "something.else")

	accept(t, agg, mixingTempTopic, 1)

	ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond)) //nolint:errcheck // test
	if _, data, err := ws.ReadMessage(); err == nil {
		t.Errorf("unsubscribed client received %s", data)
	}
}

func TestWebSocket_Unsubscribe(t *testing.T) {
	srv, _ := startServer(t)
	ws := dialWS(t, srv)
	subscribe(t, ws, "a", "b")

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "unsub-1",
		Payload: WSSubscribePayload{Channels: []string{"b"}},
	}); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}
	msg, body := readWS[map[string][]string](t, ws)
	if msg.Type != WSTypeResponse || len(body["unsubscribed"]) != 1 {
		t.Errorf("unsubscribe response = %+v %v", msg, body)
	}
}

func TestWebSocket_PingAndErrors(t *testing.T) {
	srv, _ := startServer(t)
	ws := dialWS(t, srv)

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "ping-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if msg, _ := readWS[any](t, ws); msg.Type != WSTypePong || msg.ID != "ping-1" {
		t.Errorf("ping reply = %+v", msg)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg, _ := readWS[map[string]string](t, ws); msg.Type != WSTypeError {
		t.Errorf("invalid JSON reply = %+v", msg)
	}

	if err := ws.WriteJSON(WSMessage{Type: "dance", ID: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg, body := readWS[map[string]string](t, ws)
	if msg.Type != WSTypeError || !strings.Contains(body["message"], "dance") {
		t.Errorf("unknown type reply = %+v %v", msg, body)
	}
}

func TestHub_ClientCountAndDrops(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())

	slow := &WSClient{hub: hub, send: make(chan []byte, 1), subscriptions: map[string]struct{}{"x": {}}}
	hub.Register(slow)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Broadcast("x", 1)
	hub.Broadcast("x", 2)
	if hub.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", hub.Dropped())
	}

	hub.Unregister(slow)
	hub.Unregister(slow)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	// Broadcasting to a departed client must not panic.
	if slow.trySend([]byte("late")) {
		t.Error("trySend() to closed client reported success")
	}
}

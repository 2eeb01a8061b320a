package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/plant-telemetry/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/test", s.handleTest)
	r.Get(s.wsCfg.Path, s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/sensors", func(r chi.Router) {
			r.Get("/", s.handleListSensors)
			r.Get("/{group}/{name}", s.handleGetSensor)
		})

		r.Get("/topics", s.handleListTopics)
	})

	// Dashboard page and its assets.
	r.Handle("/*", panel.Handler(s.panelDir))

	return r
}

// handleTest is a plain-text liveness probe.
func (s *Server) handleTest(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Test route is working!\n")) //nolint:errcheck // best-effort write
}

// handleHealth returns the server health status. The bus being down is
// reported as degraded rather than failing the probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	bus := "not_configured"
	if s.mqtt != nil {
		bus = "connected"
		if !s.mqtt.IsConnected() {
			bus = "disconnected"
			status = "degraded"
		}
	}

	stats := s.aggregator.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"version":       s.version,
		"mqtt":          bus,
		"sensors_known": stats.Known,
		"sensors_unset": stats.Unset,
	})
}

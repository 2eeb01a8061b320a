package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/plant-telemetry/internal/aggregator"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Aggregator    aggregator.Stats `json:"aggregator"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	Dropped          uint64 `json:"dropped"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Configured    bool   `json:"configured"`
	Connected     bool   `json:"connected"`
	ClientID      string `json:"client_id,omitempty"`
	Subscriptions int    `json:"subscriptions"`
}

// handleMetrics returns runtime, bus, hub and aggregation counters.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	now := s.now()
	metrics := SystemMetrics{
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(now.Sub(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			Dropped:          s.hub.Dropped(),
		},
		Aggregator: s.aggregator.Stats(),
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Configured:    true,
			Connected:     s.mqtt.IsConnected(),
			ClientID:      s.mqtt.ClientID(),
			Subscriptions: s.mqtt.SubscriptionCount(),
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

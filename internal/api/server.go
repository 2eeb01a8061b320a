package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/plant-telemetry/internal/aggregator"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/plant-telemetry/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Aggregator *aggregator.Aggregator
	MQTT       *mqtt.Client // optional; reported in health and metrics
	PanelDir   string       // serve dashboard assets from disk instead of the binary
	Version    string

	// Clock overrides time.Now for snapshot ages.
	Clock func() time.Time
}

// Server is the dashboard HTTP server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	aggregator *aggregator.Aggregator
	mqtt       *mqtt.Client
	panelDir   string
	version    string
	now        func() time.Time
	startTime  time.Time

	hub    *Hub
	server *http.Server
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called, but its hub is live:
// aggregated readings are relayed to WebSocket clients from construction.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if deps.WS.Path == "" {
		deps.WS.Path = "/ws"
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		aggregator: deps.Aggregator,
		mqtt:       deps.MQTT,
		panelDir:   deps.PanelDir,
		version:    deps.Version,
		now:        now,
		startTime:  now(),
	}

	s.hub = NewHub(s.wsCfg, s.logger)
	s.hub.SetSnapshotProvider(func() any { return s.sensorsView() })
	s.aggregator.OnUpdate(s.relayUpdate)

	return s, nil
}

// relayUpdate pushes one accepted reading to subscribed WebSocket clients.
// It runs on the bus delivery goroutine; Broadcast never blocks.
func (s *Server) relayUpdate(u aggregator.Update) {
	s.hub.Broadcast(ChannelSensorUpdated, s.readingView(u.Identity, u.Entry, true))
}

// Start begins listening for HTTP connections.
//
// It binds the configured address synchronously, so a port already in use
// is reported here, then serves in a background goroutine until Close().
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", srv.Addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.server = srv

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

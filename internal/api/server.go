// Package api provides the HTTP and WebSocket surface of the Wonderback
// server: device registration and approval, settings polling, skill relay,
// utterance analysis, and session recording.
//
// The server follows the same lifecycle pattern as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mccartykim/wonderback/internal/analysis"
	"github.com/mccartykim/wonderback/internal/device"
	"github.com/mccartykim/wonderback/internal/infrastructure/config"
	"github.com/mccartykim/wonderback/internal/infrastructure/influxdb"
	"github.com/mccartykim/wonderback/internal/infrastructure/logging"
	"github.com/mccartykim/wonderback/internal/infrastructure/mqtt"
	"github.com/mccartykim/wonderback/internal/session"
	"github.com/mccartykim/wonderback/internal/settings"
	"github.com/mccartykim/wonderback/internal/skills"
)

// gracefulShutdownTimeout bounds the wait for in-flight requests on Close.
const gracefulShutdownTimeout = 10 * time.Second

// SessionExporter retrieves persisted session exports. Satisfied by
// session.SQLiteRepository; nil when persistence is disabled.
type SessionExporter interface {
	Export(ctx context.Context, sessionID string) ([]byte, error)
}

// Deps holds the dependencies required by the API server.
// MQTT and Metrics are optional; everything else is required.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Settings *settings.Manager
	Skills   *skills.Queue
	Sessions *session.Manager
	Exporter SessionExporter
	Analyzer analysis.Analyzer
	MQTT     *mqtt.Client
	Metrics  *influxdb.Client
	Version  string
}

// Server is the Wonderback HTTP server.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	registry *device.Registry
	settings *settings.Manager
	skills   *skills.Queue
	sessions *session.Manager
	exporter SessionExporter
	analyzer analysis.Analyzer
	mqtt     *mqtt.Client
	metrics  *influxdb.Client
	version  string

	server    *http.Server
	startedAt time.Time
}

// New creates an API server from its dependencies. The server does not
// listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("settings manager is required")
	}
	if deps.Skills == nil {
		return nil, fmt.Errorf("skill queue is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if deps.Analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		registry: deps.Registry,
		settings: deps.Settings,
		skills:   deps.Skills,
		sessions: deps.Sessions,
		exporter: deps.Exporter,
		analyzer: deps.Analyzer,
		mqtt:     deps.MQTT,
		metrics:  deps.Metrics,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	s.startedAt = time.Now()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the server, waiting for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server has been started.
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

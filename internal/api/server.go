package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/hcbridge/internal/homekit"
	"github.com/nerrad567/hcbridge/internal/infrastructure/config"
	"github.com/nerrad567/hcbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hcbridge/internal/syncer"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// AccessorySource lists the accessories published on the bridge.
type AccessorySource interface {
	Records() []homekit.AccessoryRecord
	Record(key string) (homekit.AccessoryRecord, bool)
}

// PassSource exposes the sync loop.
type PassSource interface {
	LastReport() (syncer.Report, bool)
	Trigger()
}

// PassHistory returns stored pass reports, newest first.
type PassHistory interface {
	Recent(ctx context.Context, limit int) ([]syncer.Report, error)
}

// HealthChecker is implemented by infrastructure clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Logger      *logging.Logger
	Accessories AccessorySource
	Passes      PassSource
	History     PassHistory              // optional
	Checks      map[string]HealthChecker // optional, keyed by component name
	Hub         *Hub                     // if set, used instead of creating one
	Version     string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	accessories AccessorySource
	passes      PassSource
	history     PassHistory
	checks      map[string]HealthChecker
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Accessories == nil {
		return nil, fmt.Errorf("accessory source is required")
	}
	if deps.Passes == nil {
		return nil, fmt.Errorf("pass source is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		logger:      deps.Logger.With("component", "api"),
		accessories: deps.Accessories,
		passes:      deps.Passes,
		history:     deps.History,
		checks:      deps.Checks,
		version:     deps.Version,
		startTime:   time.Now(),
	}
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(s.logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub, for registering it as a pass reporter.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
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

// HealthCheck verifies the API server is running.
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

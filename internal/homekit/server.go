package homekit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"

	"github.com/nerrad567/hcbridge/internal/infrastructure/config"
	"github.com/nerrad567/hcbridge/internal/infrastructure/logging"
)

const (
	bridgeModel = "HomeCenterBridge"

	// restartDelay collects bursts of topology changes into one restart.
	restartDelay = 2 * time.Second
)

// Server publishes the platform's accessories behind a HAP bridge.
//
// HAP has no way to add or remove accessories from a running server, so
// the server is rebuilt whenever the platform signals a topology change.
// Pairings survive restarts through the file store.
type Server struct {
	cfg      config.HomeKitConfig
	platform *Platform
	version  string
	logger   *logging.Logger
	store    hap.Store
}

// NewServer creates a server for platform.
func NewServer(cfg config.HomeKitConfig, platform *Platform, version string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		cfg:      cfg,
		platform: platform,
		version:  version,
		logger:   logger.With("component", "hap"),
		store:    hap.NewFsStore(cfg.StorePath),
	}
}

// Run serves until ctx is cancelled, restarting on topology changes.
func (s *Server) Run(ctx context.Context) error {
	for {
		srv, err := s.build()
		if err != nil {
			return err
		}

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- srv.ListenAndServe(runCtx) }()
		s.logger.Info("hap server started", "accessories", len(s.platform.Accessories()), "addr", s.cfg.Addr)

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return nil
		case err := <-done:
			cancel()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("hap server: %w", err)
			}
			return nil
		case <-s.platform.Changes():
			if !s.settle(ctx) {
				cancel()
				<-done
				return nil
			}
			cancel()
			<-done
			s.logger.Info("restarting hap server after topology change")
		}
	}
}

// settle waits for further changes to stop. It returns false if ctx ended.
func (s *Server) settle(ctx context.Context) bool {
	timer := time.NewTimer(restartDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-s.platform.Changes():
			timer.Reset(restartDelay)
		case <-timer.C:
			return true
		}
	}
}

func (s *Server) build() (*hap.Server, error) {
	bridge := s.bridge()
	srv, err := hap.NewServer(s.store, bridge.A, s.platform.Accessories()...)
	if err != nil {
		return nil, fmt.Errorf("creating hap server: %w", err)
	}
	srv.Pin = s.cfg.Pin
	srv.Addr = s.cfg.Addr
	return srv, nil
}

func (s *Server) bridge() *accessory.Bridge {
	b := accessory.NewBridge(accessory.Info{
		Name:         s.cfg.Name,
		Manufacturer: s.cfg.Manufacturer,
		Model:        bridgeModel,
		Firmware:     s.version,
	})
	b.A.Id = bridgeAID
	return b
}

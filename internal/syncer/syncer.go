package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/hcbridge/internal/hub"
	"github.com/nerrad567/hcbridge/internal/infrastructure/config"
	"github.com/nerrad567/hcbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hcbridge/internal/shadow"
)

// Source is what the syncer needs from the hub.
type Source interface {
	// Devices returns the visible, enabled hub devices.
	Devices(ctx context.Context) ([]hub.Device, error)

	// Scenes returns the visible hub scenes.
	Scenes(ctx context.Context) ([]hub.Scene, error)

	// GlobalVariable fetches one hub global variable by name.
	GlobalVariable(ctx context.Context, name string) (hub.Variable, error)
}

// Platform is what the syncer needs from the bridge.
type Platform interface {
	shadow.Platform

	// BeginPass starts a review round for passID.
	BeginPass(passID string)

	// Lookup returns the live accessory for sa and whether it is new.
	Lookup(sa *shadow.ShadowAccessory) (shadow.LiveAccessory, bool)

	// Cleanup removes accessories not reviewed since BeginPass and
	// returns their keys.
	Cleanup(ctx context.Context) ([]string, error)
}

// KeyFunc maps a shadow accessory to the key the platform reports it under.
type KeyFunc func(sa *shadow.ShadowAccessory) string

// Syncer runs sync passes.
//
// Thread Safety: RunPass serialises itself; Trigger and LastReport are
// safe for concurrent use.
type Syncer struct {
	cfg        config.SyncConfig
	interval   time.Duration
	source     Source
	platform   Platform
	classifier *shadow.Classifier
	reporters  []Reporter
	key        KeyFunc
	logger     *logging.Logger

	running sync.Mutex
	trigger chan struct{}

	mu   sync.RWMutex
	last *Report
}

// New creates a syncer.
//
// Parameters:
//   - cfg: what to publish besides devices and how many devices to reconcile at once
//   - interval: time between periodic passes
//   - source: hub client
//   - platform: bridge platform
//   - key: accessory key used in report events (nil uses the device id)
//   - logger: logger instance (nil discards)
func New(cfg config.SyncConfig, interval time.Duration, source Source, platform Platform, key KeyFunc, logger *logging.Logger) *Syncer {
	if logger == nil {
		logger = logging.Discard()
	}
	if key == nil {
		key = func(sa *shadow.ShadowAccessory) string { return sa.Device.ID }
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Syncer{
		cfg:        cfg,
		interval:   interval,
		source:     source,
		platform:   platform,
		classifier: shadow.NewClassifier(),
		key:        key,
		logger:     logger.With("component", "syncer"),
		trigger:    make(chan struct{}, 1),
	}
}

// AddReporter registers r to receive every pass report.
// It must be called before Run.
func (s *Syncer) AddReporter(r Reporter) {
	s.reporters = append(s.reporters, r)
}

// Trigger requests a pass as soon as the current one, if any, finishes.
// Repeated requests collapse into one.
func (s *Syncer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// LastReport returns the most recent pass report.
func (s *Syncer) LastReport() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

// SetLastReport seeds LastReport, typically from the pass store at startup.
func (s *Syncer) SetLastReport(r Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &r
}

// Run executes a pass immediately, then on every interval tick or Trigger,
// until ctx is cancelled. Pass errors are logged; they do not stop the loop.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunPass(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sync pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.trigger:
			s.logger.Info("sync pass requested")
		}
	}
}

// outcome is what one reconciliation contributes to the report.
type outcome struct {
	key    string
	result shadow.Result
	err    error
}

// RunPass performs one full sync pass.
//
// If the device list cannot be fetched the pass stops with ErrPollFailed
// and nothing is reconciled or removed. Failures of individual devices
// are counted in Report.Errors and do not abort the pass.
func (s *Syncer) RunPass(ctx context.Context) (Report, error) {
	if !s.running.TryLock() {
		return Report{}, ErrPassRunning
	}
	defer s.running.Unlock()

	report := Report{
		PassID:    uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Removed:   []string{},
	}
	log := s.logger.With("pass_id", report.PassID)

	devices, err := s.source.Devices(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrPollFailed, err)
	}
	report.Devices = len(devices)

	s.platform.BeginPass(report.PassID)

	accessories, complete := s.collect(ctx, devices, &report, log)
	if !complete {
		report.CleanupSkipped = true
	}

	outcomes := s.reconcileAll(ctx, accessories)
	for _, o := range outcomes {
		if o.err != nil {
			report.Errors++
			log.Error("reconciling accessory failed", "key", o.key, "error", o.err)
			continue
		}
		report.ServicesAdded += o.result.Added
		report.ServicesRemoved += o.result.Removed
		switch {
		case o.result.New:
			report.Registered++
			report.Events = append(report.Events, AccessoryEvent{Key: o.key, Event: EventRegistered})
		default:
			report.Updated++
			if o.result.Added > 0 || o.result.Removed > 0 {
				report.Events = append(report.Events, AccessoryEvent{Key: o.key, Event: EventUpdated})
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	// A failed reconciliation leaves its accessory unreviewed; cleanup
	// would unpublish it, so it is skipped as well.
	if report.Errors > 0 {
		report.CleanupSkipped = true
	}
	if !report.CleanupSkipped {
		removed, err := s.platform.Cleanup(ctx)
		report.Removed = append(report.Removed, removed...)
		if err != nil {
			report.Errors++
			log.Error("cleanup failed", "error", err)
		}
		for _, key := range removed {
			report.Events = append(report.Events, AccessoryEvent{Key: key, Event: EventRemoved})
		}
	} else {
		log.Warn("cleanup skipped after errors")
	}

	report.Duration = time.Since(report.StartedAt)

	s.mu.Lock()
	last := report
	s.last = &last
	s.mu.Unlock()

	log.Info("sync pass completed",
		"devices", report.Devices,
		"unsupported", report.Unsupported,
		"registered", report.Registered,
		"updated", report.Updated,
		"removed", len(report.Removed),
		"errors", report.Errors,
		"duration_ms", report.Duration.Milliseconds(),
	)

	s.report(ctx, report)
	return report, nil
}

// collect builds the desired accessories for this pass. complete is false
// when an optional poll failed.
func (s *Syncer) collect(ctx context.Context, devices []hub.Device, report *Report, log *logging.Logger) (accessories []*shadow.ShadowAccessory, complete bool) {
	complete = true
	siblings := hub.NewSiblingIndex(devices)

	for _, d := range devices {
		sa, err := s.classifier.NewShadowAccessory(d, siblings.For(d))
		if err != nil {
			if errors.Is(err, shadow.ErrUnsupportedDevice) {
				report.Unsupported++
				log.Debug("device not supported", "device_id", d.ID, "type", d.Type)
				continue
			}
			report.Errors++
			log.Error("classifying device failed", "device_id", d.ID, "error", err)
			continue
		}
		accessories = append(accessories, sa)
	}

	if s.cfg.Scenes {
		scenes, err := s.source.Scenes(ctx)
		if err != nil {
			report.Errors++
			complete = false
			log.Error("polling scenes failed", "error", err)
		}
		for _, sc := range scenes {
			accessories = append(accessories, shadow.NewSceneAccessory(sc.AsDevice()))
		}
	}

	if s.cfg.SecuritySystem {
		accessories = append(accessories, shadow.NewSecuritySystemAccessory(hub.SecuritySystemDevice()))
	}

	variables := []struct {
		names []string
		kind  shadow.VariableKind
	}{
		{s.cfg.GlobalVariables.Dimmers, shadow.VariableDimmer},
		{s.cfg.GlobalVariables.Switches, shadow.VariableSwitch},
	}
	for _, group := range variables {
		for _, name := range group.names {
			v, err := s.source.GlobalVariable(ctx, name)
			if err != nil {
				report.Errors++
				complete = false
				log.Error("polling global variable failed", "name", name, "error", err)
				continue
			}
			sa, err := shadow.NewGlobalVariableAccessory(v.AsDevice(), group.kind)
			if err != nil {
				report.Errors++
				log.Error("building global variable accessory failed", "name", name, "error", err)
				continue
			}
			accessories = append(accessories, sa)
		}
	}
	return accessories, complete
}

// reconcileAll reconciles every accessory with bounded concurrency. Each
// accessory is handled by exactly one goroutine; outcomes keep input order.
func (s *Syncer) reconcileAll(ctx context.Context, accessories []*shadow.ShadowAccessory) []outcome {
	outcomes := make([]outcome, len(accessories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, sa := range accessories {
		g.Go(func() error {
			key := s.key(sa)
			if err := gctx.Err(); err != nil {
				outcomes[i] = outcome{key: key, err: err}
				return nil
			}
			live, isNew := s.platform.Lookup(sa)
			res, err := sa.Reconcile(live, isNew, s.platform)
			outcomes[i] = outcome{key: key, result: res, err: err}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines record errors in outcomes
	return outcomes
}

func (s *Syncer) report(ctx context.Context, r Report) {
	for _, rep := range s.reporters {
		if err := rep.ReportPass(ctx, r); err != nil {
			s.logger.Warn("pass reporter failed", "pass_id", r.PassID, "error", err)
		}
	}
}

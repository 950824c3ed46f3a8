package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/clinisight/agent-orchestrator/config"
	"github.com/clinisight/agent-orchestrator/models"
	"go.uber.org/zap"
)

// EventProcessor runs a normalized event through the orchestration pipeline.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *models.CanonicalEvent) (map[string]any, error)
}

// Reaper deletes rows past their retention horizon and reports the count.
type Reaper interface {
	ReapExpired(ctx context.Context) (int64, error)
}

// Scheduler fires scheduled-check events for configured tenants on a fixed
// interval and runs the retention reapers. The persistence layer filters
// expired rows from every read, so reaping is cleanup, not correctness; the
// scheduler just keeps the tables from growing without bound.
type Scheduler struct {
	cfg       config.SchedulerConfig
	reapEvery time.Duration
	processor EventProcessor
	reapers   []Reaper
	logger    *zap.Logger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	started   bool
	mu        sync.Mutex
}

// New creates a scheduler. reapers may include the state store and audit log.
func New(cfg config.SchedulerConfig, reapEvery time.Duration, processor EventProcessor, reapers []Reaper, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		reapEvery: reapEvery,
		processor: processor,
		reapers:   reapers,
		logger:    logger,
	}
}

// Start launches the tick loops. A disabled scheduler still runs the reapers;
// only the scheduled-check fan-out is gated on the config flag.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.started = true

	if s.cfg.Enabled {
		s.wg.Add(1)
		go s.checkLoop(ctx)
		s.logger.Info("scheduler started",
			zap.Duration("interval", s.cfg.Interval),
			zap.Strings("tenants", s.cfg.Tenants))
	}

	if len(s.reapers) > 0 {
		s.wg.Add(1)
		go s.reapLoop(ctx)
	}
}

// Stop cancels the loops and waits for in-flight work to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) checkLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fireChecks(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// fireChecks runs one scheduled check per configured tenant. Tenants are
// independent: one tenant's failure never stops the sweep for the rest.
func (s *Scheduler) fireChecks(ctx context.Context) {
	for _, tenantID := range s.cfg.Tenants {
		event := &models.CanonicalEvent{
			Source:    models.SourceSchedule,
			TenantID:  tenantID,
			EventType: models.EventScheduledCheck,
			Data:      map[string]any{},
		}
		if _, err := s.processor.ProcessEvent(ctx, event); err != nil {
			s.logger.Error("scheduled check failed",
				zap.String("tenant_id", tenantID),
				zap.Error(err))
		}
	}
}

func (s *Scheduler) reapLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.reapEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, reaper := range s.reapers {
				if _, err := reaper.ReapExpired(ctx); err != nil {
					s.logger.Error("retention reap failed", zap.Error(err))
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

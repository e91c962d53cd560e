package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

// SupplierProvider lists the suppliers eligible for scheduled syncs. The
// supplier repository satisfies it.
type SupplierProvider interface {
	FindActive(ctx context.Context) ([]*supplier.Supplier, error)
}

// IntervalTriggerConfig holds configuration for the interval trigger
type IntervalTriggerConfig struct {
	// SyncInterval is how often all active suppliers are enqueued
	SyncInterval time.Duration
	// RunOnStart enqueues one full pass immediately after Start
	RunOnStart bool
}

// DefaultIntervalTriggerConfig returns default trigger configuration
func DefaultIntervalTriggerConfig() IntervalTriggerConfig {
	return IntervalTriggerConfig{
		SyncInterval: 6 * time.Hour,
		RunOnStart:   false,
	}
}

// IntervalTrigger periodically enqueues sync jobs for every active supplier.
// Manual suppliers never sync on a schedule; they only change through uploads.
type IntervalTrigger struct {
	config    IntervalTriggerConfig
	scheduler *SyncScheduler
	suppliers SupplierProvider
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalTrigger creates a new interval trigger
func NewIntervalTrigger(
	config IntervalTriggerConfig,
	scheduler *SyncScheduler,
	suppliers SupplierProvider,
	logger *zap.Logger,
) *IntervalTrigger {
	if config.SyncInterval <= 0 {
		config.SyncInterval = DefaultIntervalTriggerConfig().SyncInterval
	}
	return &IntervalTrigger{
		config:    config,
		scheduler: scheduler,
		suppliers: suppliers,
		logger:    logger,
	}
}

// Start starts the trigger loop
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Sync trigger started",
		zap.Duration("sync_interval", t.config.SyncInterval),
		zap.Bool("run_on_start", t.config.RunOnStart),
	)

	return nil
}

// Stop stops the trigger loop
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop enqueues a full pass every interval
func (t *IntervalTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		t.TriggerAll(ctx)
	}

	ticker := time.NewTicker(t.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.TriggerAll(ctx)
		}
	}
}

// TriggerAll enqueues one sync job per active non-manual supplier. Individual
// submit failures are logged; the pass continues.
func (t *IntervalTrigger) TriggerAll(ctx context.Context) {
	active, err := t.suppliers.FindActive(ctx)
	if err != nil {
		t.logger.Error("Failed to list suppliers for scheduled sync", zap.Error(err))
		return
	}

	enqueued := 0
	for _, sup := range active {
		if sup.Type == supplier.ConnectorTypeManual {
			continue
		}
		if err := t.scheduler.ScheduleSync(sup.Name, false); err != nil {
			t.logger.Error("Failed to enqueue scheduled sync",
				zap.String("supplier", sup.Name),
				zap.Error(err),
			)
			continue
		}
		enqueued++
	}

	t.logger.Info("Scheduled sync pass enqueued",
		zap.Int("suppliers", enqueued),
	)
}

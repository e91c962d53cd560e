package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/catalog"
	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

// RunLock serializes sync runs per supplier. The locking package provides
// Redis-backed and in-process implementations.
type RunLock interface {
	Acquire(ctx context.Context, supplierID string) (release func(), err error)
}

// Runtime bundles the per-supplier moving parts the orchestrator needs.
// Manual suppliers have no connector and therefore no runtime.
type Runtime struct {
	Connector   supplier.Connector
	Transformer *Transformer
}

// Options parameterize one sync run.
type Options struct {
	// Limit caps the number of records fetched; 0 means the whole catalog.
	Limit int
	// DryRun classifies every record without writing anything.
	DryRun bool
	// FullSync asks the connector to ignore incremental cursors.
	FullSync bool
	// SessionName records the triggering actor on the audit trail.
	SessionName string
}

// ServiceConfig wires the orchestrator's dependencies.
type ServiceConfig struct {
	Suppliers   supplier.Repository
	Store       catalog.Store
	DryRunStore catalog.Store
	Directory   supplier.SupplierDirectory
	Runtimes    map[string]Runtime
	Tracker     *SessionTracker
	CrashLogger *CrashLogger
	RunLock     RunLock
	Workers     int
	Logger      *zap.Logger
}

// Service orchestrates sync runs: lock, fetch, transform, guard, upsert,
// track. One instance serves all suppliers; per-supplier state lives in the
// runtime map and the database.
type Service struct {
	suppliers supplier.Repository
	store     catalog.Store
	dryStore  catalog.Store
	guard     *supplier.AuthorityGuard
	runtimes  map[string]Runtime
	tracker   *SessionTracker
	crashes   *CrashLogger
	lock      RunLock
	workers   int
	logger    *zap.Logger
}

// NewService creates the sync orchestrator.
func NewService(cfg ServiceConfig) *Service {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	dryStore := cfg.DryRunStore
	if dryStore == nil {
		dryStore = cfg.Store
	}
	return &Service{
		suppliers: cfg.Suppliers,
		store:     cfg.Store,
		dryStore:  dryStore,
		guard:     supplier.NewAuthorityGuard(cfg.Directory),
		runtimes:  cfg.Runtimes,
		tracker:   cfg.Tracker,
		crashes:   cfg.CrashLogger,
		lock:      cfg.RunLock,
		workers:   workers,
		logger:    cfg.Logger.Named("sync"),
	}
}

// ---------------------------------------------------------------------------
// Sync operations
// ---------------------------------------------------------------------------

// SyncSupplier runs one supplier's sync end to end and returns the session
// summary. Pre-run failures (unknown supplier, busy lock, connector that
// cannot start) come back as errors; anything after the session opens is
// reported through the session status instead.
func (s *Service) SyncSupplier(ctx context.Context, supplierID uuid.UUID, opts Options) (*supplier.SyncResult, error) {
	sup, err := s.suppliers.FindByID(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, sup, opts)
}

// SyncByName resolves a supplier by name and runs its sync.
func (s *Service) SyncByName(ctx context.Context, name string, opts Options) (*supplier.SyncResult, error) {
	sup, err := s.suppliers.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, sup, opts)
}

// SyncAll runs every active non-manual supplier sequentially and returns the
// per-supplier results. One supplier's failure never stops the others.
func (s *Service) SyncAll(ctx context.Context, opts Options) (map[string]*supplier.SyncResult, error) {
	active, err := s.suppliers.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*supplier.SyncResult, len(active))
	for _, sup := range active {
		if sup.Type == supplier.ConnectorTypeManual {
			continue
		}
		result, err := s.run(ctx, sup, opts)
		if err != nil {
			s.logger.Error("supplier sync failed to start",
				zap.String("supplier", sup.Name),
				zap.Error(err))
			results[sup.Name] = &supplier.SyncResult{
				Success: false,
				Status:  supplier.SyncStatusFailed,
				Errors:  []string{err.Error()},
			}
			continue
		}
		results[sup.Name] = result
	}
	return results, nil
}

// run is the orchestration core for one supplier.
func (s *Service) run(ctx context.Context, sup *supplier.Supplier, opts Options) (result *supplier.SyncResult, err error) {
	logger := s.logger.With(
		zap.String("supplier", sup.Name),
		zap.String("supplier_id", sup.ID.String()))

	if !sup.Active {
		return nil, supplier.ErrSupplierInactive
	}

	runtime, ok := s.runtimes[sup.Name]
	if !ok || runtime.Connector == nil {
		return nil, fmt.Errorf("%w: %q", supplier.ErrConnectorNotFound, sup.Name)
	}

	release, err := s.lock.Acquire(ctx, sup.ID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	store := s.store
	if opts.DryRun {
		store = s.dryStore
	}

	// Connector start failures happen before a session exists; they go to
	// the crash log so "the browser never started" still leaves a trace.
	iterator, err := runtime.Connector.FetchProducts(ctx, supplier.FetchOptions{
		Limit:    opts.Limit,
		FullSync: opts.FullSync,
	})
	if err != nil {
		s.crashes.Record(ctx, sup.Name, err, map[string]any{
			"stage":   "fetch_start",
			"dry_run": opts.DryRun,
		})
		if statusErr := s.suppliers.UpdateStatus(ctx, sup.ID, supplier.SupplierStatusError, err.Error()); statusErr != nil {
			logger.Error("failed to record supplier failure", zap.Error(statusErr))
		}
		return nil, err
	}

	sessionName := opts.SessionName
	if sessionName == "" {
		sessionName = "manual"
	}
	session, err := s.tracker.Open(ctx, sup.ID, sessionName)
	if err != nil {
		return nil, err
	}

	if !opts.DryRun {
		if err := s.suppliers.UpdateStatus(ctx, sup.ID, supplier.SupplierStatusSyncing, ""); err != nil {
			logger.Warn("failed to mark supplier syncing", zap.Error(err))
		}
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			closeCtx, cancel := closeoutContext(ctx)
			defer cancel()
			s.crashes.RecordPanic(closeCtx, sup.Name, recovered)
			session.AddError(fmt.Sprintf("panic: %v", recovered))
			_ = s.tracker.Close(closeCtx, session, supplier.SyncStatusFailed)
			s.finishSupplier(closeCtx, sup, session, opts, logger)
			result = session.Result()
			err = nil
		}
	}()

	status := s.walkPages(ctx, iterator, runtime.Transformer, store, session, logger)

	// The run context is already dead when status is cancelled; the
	// close-out writes must still land or the session row never leaves
	// running. Same detached-context pattern as the lock release.
	closeCtx, cancel := closeoutContext(ctx)
	defer cancel()

	if err := s.tracker.Close(closeCtx, session, status); err != nil {
		logger.Error("failed to close session", zap.Error(err))
	}
	s.finishSupplier(closeCtx, sup, session, opts, logger)

	return session.Result(), nil
}

// closeoutContext derives a short-lived context that survives cancellation
// of the run context, for terminal-state persistence.
func closeoutContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
}

// walkPages drains the iterator and classifies the run's terminal status.
func (s *Service) walkPages(
	ctx context.Context,
	iterator supplier.PageIterator,
	transformer *Transformer,
	store catalog.Store,
	session *supplier.SyncSession,
	logger *zap.Logger,
) supplier.SyncSessionStatus {
	pagesProcessed := 0
	for {
		page, err := iterator.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				session.AddError(ctx.Err().Error())
				return supplier.SyncStatusCancelled
			}
			session.AddError(err.Error())
			// Nothing fetched at all is a failed run; a tail failure
			// after some pages landed is partial.
			if pagesProcessed == 0 {
				return supplier.SyncStatusFailed
			}
			return supplier.SyncStatusPartial
		}
		if page == nil {
			return supplier.SyncStatusCompleted
		}

		pagesProcessed++
		s.processPage(ctx, page, transformer, store, session, logger)

		if err := s.tracker.Flush(ctx, session); err != nil {
			logger.Warn("failed to flush session progress", zap.Error(err))
		}

		logger.Debug("page processed",
			zap.Int("page", page.Number),
			zap.Int("records", len(page.Records)),
			zap.Int("added", session.Counters.Added),
			zap.Int("updated", session.Counters.Updated))
	}
}

// recordOutcome is one record's classification within a page.
type recordOutcome int

const (
	outcomeAdded recordOutcome = iota
	outcomeUpdated
	outcomeUnchanged
	outcomeSkipped
)

// processPage pushes a page's records through transform, guard and upsert
// with a bounded worker pool. Counter updates serialize on the session mutex;
// the store handles its own concurrency.
func (s *Service) processPage(
	ctx context.Context,
	page *supplier.RawPage,
	transformer *Transformer,
	store catalog.Store,
	session *supplier.SyncSession,
	logger *zap.Logger,
) {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, s.workers)
	)

	for i := range page.Records {
		record := page.Records[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()

			outcome, warning := s.processRecord(ctx, record, transformer, store, logger)

			mu.Lock()
			defer mu.Unlock()
			if warning != "" {
				session.AddWarning(warning)
			}
			switch outcome {
			case outcomeAdded:
				session.Counters.Added++
			case outcomeUpdated:
				session.Counters.Updated++
			case outcomeUnchanged:
				session.Counters.Unchanged++
			case outcomeSkipped:
				session.Counters.Skipped++
			}
		}()
	}
	wg.Wait()
}

// processRecord classifies one raw record. Failures are warnings, never
// run-fatal.
func (s *Service) processRecord(
	ctx context.Context,
	record supplier.RawRecord,
	transformer *Transformer,
	store catalog.Store,
	logger *zap.Logger,
) (recordOutcome, string) {
	product, err := transformer.Transform(record)
	if err != nil {
		return outcomeSkipped, fmt.Sprintf("record skipped: %v", err)
	}

	existing, err := store.GetByNaturalKey(ctx, product.NaturalKey())
	if err != nil && !errors.Is(err, catalog.ErrProductNotFound) {
		return outcomeSkipped, fmt.Sprintf("lookup failed for %q: %v", product.NaturalKey(), err)
	}
	if errors.Is(err, catalog.ErrProductNotFound) {
		existing = nil
	}

	decision, err := s.guard.Decide(ctx, existing, product.SupplierID)
	if err != nil {
		return outcomeSkipped, fmt.Sprintf("authority check failed for %q: %v", product.NaturalKey(), err)
	}
	if decision == supplier.DecisionSkip {
		logger.Debug("authority conflict, record skipped",
			zap.String("natural_key", product.NaturalKey()),
			zap.String("owning_supplier", existing.SupplierID.String()))
		return outcomeSkipped, ""
	}

	if existing != nil && existing.SupplierID == product.SupplierID && productsEqual(existing, product) {
		return outcomeUnchanged, ""
	}

	result, err := store.Upsert(ctx, product)
	if err != nil {
		return outcomeSkipped, fmt.Sprintf("upsert failed for %q: %v", product.NaturalKey(), err)
	}
	if result.IsNew {
		return outcomeAdded, ""
	}
	return outcomeUpdated, ""
}

// finishSupplier records the run outcome on the supplier row. Dry runs leave
// the supplier untouched.
func (s *Service) finishSupplier(ctx context.Context, sup *supplier.Supplier, session *supplier.SyncSession, opts Options, logger *zap.Logger) {
	if opts.DryRun {
		return
	}

	var err error
	switch session.Status {
	case supplier.SyncStatusCompleted, supplier.SyncStatusPartial:
		if err = s.suppliers.UpdateLastSync(ctx, sup.ID); err == nil {
			err = s.suppliers.UpdateStatus(ctx, sup.ID, supplier.SupplierStatusOK, "")
		}
	case supplier.SyncStatusFailed:
		message := "sync failed"
		if len(session.Errors) > 0 {
			message = session.Errors[0]
		}
		err = s.suppliers.UpdateStatus(ctx, sup.ID, supplier.SupplierStatusError, message)
	case supplier.SyncStatusCancelled:
		err = s.suppliers.UpdateStatus(ctx, sup.ID, supplier.SupplierStatusIdle, "sync cancelled")
	}
	if err != nil {
		logger.Error("failed to record run outcome", zap.Error(err))
	}
}

// productsEqual reports whether an upsert would change anything material.
func productsEqual(a, b *catalog.UnifiedProduct) bool {
	return a.Name == b.Name &&
		a.SKU == b.SKU &&
		a.Brand == b.Brand &&
		a.Category == b.Category &&
		a.CostPrice.Equal(b.CostPrice) &&
		a.SellingPrice.Equal(b.SellingPrice) &&
		a.StockTotal == b.StockTotal &&
		a.StockConfidence == b.StockConfidence &&
		a.Active == b.Active &&
		len(a.Images) == len(b.Images)
}

// ---------------------------------------------------------------------------
// Status surface
// ---------------------------------------------------------------------------

// TestConnection probes one supplier's upstream without syncing.
func (s *Service) TestConnection(ctx context.Context, name string) (bool, error) {
	runtime, ok := s.runtimes[name]
	if !ok || runtime.Connector == nil {
		return false, fmt.Errorf("%w: %q", supplier.ErrConnectorNotFound, name)
	}
	return runtime.Connector.TestConnection(ctx)
}

// Status returns the sync snapshot for one supplier.
func (s *Service) Status(ctx context.Context, supplierID uuid.UUID) (*supplier.SupplierSyncStatus, error) {
	sup, err := s.suppliers.FindByID(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	count, err := s.store.Count(ctx, sup.ID)
	if err != nil {
		return nil, err
	}
	return &supplier.SupplierSyncStatus{
		SupplierName:  sup.Name,
		Status:        sup.Status,
		LastSyncAt:    sup.LastSyncAt,
		TotalProducts: count,
		ErrorMessage:  sup.ErrorMessage,
	}, nil
}

// Statuses returns the sync snapshot for every registered supplier.
func (s *Service) Statuses(ctx context.Context) ([]*supplier.SupplierSyncStatus, error) {
	all, err := s.suppliers.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make([]*supplier.SupplierSyncStatus, 0, len(all))
	for _, sup := range all {
		count, err := s.store.Count(ctx, sup.ID)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, &supplier.SupplierSyncStatus{
			SupplierName:  sup.Name,
			Status:        sup.Status,
			LastSyncAt:    sup.LastSyncAt,
			TotalProducts: count,
			ErrorMessage:  sup.ErrorMessage,
		})
	}
	return statuses, nil
}

// Sessions returns the most recent sync sessions for one supplier.
func (s *Service) Sessions(ctx context.Context, supplierID uuid.UUID, limit int) ([]*supplier.SyncSession, error) {
	return s.tracker.History(ctx, supplierID, limit)
}

// CrashLogs returns the newest crash log entries.
func (s *Service) CrashLogs(ctx context.Context, limit int) ([]*supplier.CrashLogEntry, error) {
	return s.crashes.Recent(ctx, limit)
}

// Suppliers lists all registered suppliers.
func (s *Service) Suppliers(ctx context.Context) ([]*supplier.Supplier, error) {
	return s.suppliers.FindAll(ctx)
}

// SupplierByName resolves one supplier registration.
func (s *Service) SupplierByName(ctx context.Context, name string) (*supplier.Supplier, error) {
	return s.suppliers.FindByName(ctx, name)
}

// ---------------------------------------------------------------------------
// Bootstrap
// ---------------------------------------------------------------------------

// EnsureSupplier registers a configured supplier when missing and keeps the
// stored type and active flag in line with configuration.
func EnsureSupplier(ctx context.Context, repo supplier.Repository, name string, connectorType supplier.ConnectorType, active bool) (*supplier.Supplier, error) {
	existing, err := repo.FindByName(ctx, name)
	if err == nil {
		if existing.Type != connectorType || existing.Active != active {
			existing.Type = connectorType
			existing.Active = active
			if err := repo.Save(ctx, existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}
	if !errors.Is(err, supplier.ErrSupplierNotFound) {
		return nil, err
	}

	sup := supplier.NewSupplier(name, connectorType)
	sup.Active = active
	if err := repo.Save(ctx, sup); err != nil {
		return nil, err
	}
	return sup, nil
}

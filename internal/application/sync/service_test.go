package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/catalog"
	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/locking"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/persistence"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/persistence/models"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type memStore struct {
	mu       sync.Mutex
	products map[string]*catalog.UnifiedProduct // supplierID/naturalKey
}

func newMemStore() *memStore {
	return &memStore{products: make(map[string]*catalog.UnifiedProduct)}
}

func (s *memStore) key(supplierID uuid.UUID, naturalKey string) string {
	return supplierID.String() + "/" + naturalKey
}

func (s *memStore) Upsert(_ context.Context, p *catalog.UnifiedProduct) (catalog.UpsertResult, error) {
	if err := p.Validate(); err != nil {
		return catalog.UpsertResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.key(p.SupplierID, p.NaturalKey())
	if existing, ok := s.products[k]; ok {
		clone := *p
		clone.ID = existing.ID
		clone.CreatedAt = existing.CreatedAt
		clone.UpdatedAt = time.Now()
		s.products[k] = &clone
		return catalog.UpsertResult{IsNew: false, ID: existing.ID}, nil
	}

	clone := *p
	if clone.ID == uuid.Nil {
		clone.ID = uuid.New()
	}
	clone.CreatedAt = time.Now()
	clone.UpdatedAt = clone.CreatedAt
	s.products[k] = &clone
	return catalog.UpsertResult{IsNew: true, ID: clone.ID}, nil
}

func (s *memStore) GetBySKU(_ context.Context, supplierID uuid.UUID, sku string) (*catalog.UnifiedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[s.key(supplierID, sku)]; ok {
		clone := *p
		return &clone, nil
	}
	if p, ok := s.products[s.key(supplierID, catalog.NormalizeSKU(sku))]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, catalog.ErrProductNotFound
}

func (s *memStore) GetByNaturalKey(_ context.Context, key string) (*catalog.UnifiedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *catalog.UnifiedProduct
	for _, p := range s.products {
		if p.NaturalKey() != key {
			continue
		}
		if newest == nil || p.UpdatedAt.After(newest.UpdatedAt) {
			newest = p
		}
	}
	if newest == nil {
		return nil, catalog.ErrProductNotFound
	}
	clone := *newest
	return &clone, nil
}

func (s *memStore) Count(_ context.Context, supplierID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, p := range s.products {
		if p.SupplierID == supplierID {
			count++
		}
	}
	return count, nil
}

type memSupplierRepo struct {
	mu        sync.Mutex
	suppliers map[uuid.UUID]*supplier.Supplier
}

func newMemSupplierRepo() *memSupplierRepo {
	return &memSupplierRepo{suppliers: make(map[uuid.UUID]*supplier.Supplier)}
}

func (r *memSupplierRepo) FindByID(_ context.Context, id uuid.UUID) (*supplier.Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.suppliers[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, supplier.ErrSupplierNotFound
}

func (r *memSupplierRepo) FindByName(_ context.Context, name string) (*supplier.Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.suppliers {
		if s.Name == name {
			clone := *s
			return &clone, nil
		}
	}
	return nil, supplier.ErrSupplierNotFound
}

func (r *memSupplierRepo) FindAll(_ context.Context) ([]*supplier.Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*supplier.Supplier, 0, len(r.suppliers))
	for _, s := range r.suppliers {
		clone := *s
		out = append(out, &clone)
	}
	return out, nil
}

func (r *memSupplierRepo) FindActive(ctx context.Context) ([]*supplier.Supplier, error) {
	all, _ := r.FindAll(ctx)
	out := all[:0]
	for _, s := range all {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSupplierRepo) Save(_ context.Context, s *supplier.Supplier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	r.suppliers[s.ID] = &clone
	return nil
}

func (r *memSupplierRepo) UpdateStatus(_ context.Context, id uuid.UUID, status supplier.SupplierStatus, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.suppliers[id]
	if !ok {
		return supplier.ErrSupplierNotFound
	}
	s.Status = status
	s.ErrorMessage = msg
	return nil
}

func (r *memSupplierRepo) UpdateLastSync(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.suppliers[id]
	if !ok {
		return supplier.ErrSupplierNotFound
	}
	now := time.Now()
	s.LastSyncAt = &now
	return nil
}

// SupplierType implements supplier.SupplierDirectory on the repo fake.
func (r *memSupplierRepo) SupplierType(_ context.Context, id uuid.UUID) (supplier.ConnectorType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.suppliers[id]; ok {
		return s.Type, nil
	}
	return "", supplier.ErrSupplierNotFound
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*supplier.SyncSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[uuid.UUID]*supplier.SyncSession)}
}

func (r *memSessionRepo) Create(_ context.Context, s *supplier.SyncSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	r.sessions[s.ID] = &clone
	return nil
}

func (r *memSessionRepo) Update(_ context.Context, s *supplier.SyncSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return errors.New("session not found")
	}
	clone := *s
	r.sessions[s.ID] = &clone
	return nil
}

func (r *memSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*supplier.SyncSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, errors.New("session not found")
}

func (r *memSessionRepo) FindBySupplier(_ context.Context, supplierID uuid.UUID, limit int) ([]*supplier.SyncSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*supplier.SyncSession
	for _, s := range r.sessions {
		if s.SupplierID == supplierID {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

type memCrashRepo struct {
	mu      sync.Mutex
	entries []*supplier.CrashLogEntry
}

func (r *memCrashRepo) Append(_ context.Context, e *supplier.CrashLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memCrashRepo) Recent(_ context.Context, limit int) ([]*supplier.CrashLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]*supplier.CrashLogEntry(nil), r.entries...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeConnector serves canned pages and can fail at a given page or refuse
// to start at all.
type fakeConnector struct {
	name       string
	ctype      supplier.ConnectorType
	pages      [][]supplier.RawRecord
	startErr   error
	failAtPage int // 1-based; 0 means never
}

func (c *fakeConnector) TestConnection(context.Context) (bool, error) { return true, nil }

func (c *fakeConnector) SupplierInfo() supplier.SupplierInfo {
	return supplier.SupplierInfo{Name: c.name, Type: c.ctype}
}

func (c *fakeConnector) FetchProducts(context.Context, supplier.FetchOptions) (supplier.PageIterator, error) {
	if c.startErr != nil {
		return nil, c.startErr
	}
	return &fakeIterator{connector: c}, nil
}

type fakeIterator struct {
	connector *fakeConnector
	next      int
}

func (it *fakeIterator) Next(ctx context.Context) (*supplier.RawPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	it.next++
	if it.connector.failAtPage != 0 && it.next == it.connector.failAtPage {
		return nil, fmt.Errorf("%w: page %d: HTTP 502", supplier.ErrPageRetriesExceeded, it.next)
	}
	if it.next > len(it.connector.pages) {
		return nil, nil
	}
	return &supplier.RawPage{Number: it.next, Records: it.connector.pages[it.next-1]}, nil
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type harness struct {
	service  *Service
	store    *memStore
	sups     *memSupplierRepo
	sessions *memSessionRepo
	crashes  *memCrashRepo
	lock     *locking.MemoryRunLock
}

func newHarness(t *testing.T, runtimes map[string]Runtime, sups *memSupplierRepo, store *memStore) *harness {
	t.Helper()
	sessions := newMemSessionRepo()
	crashes := &memCrashRepo{}
	lock := locking.NewMemoryRunLock()
	logger := zap.NewNop()

	service := NewService(ServiceConfig{
		Suppliers:   sups,
		Store:       store,
		DryRunStore: persistence.NewDryRunStore(store),
		Directory:   sups,
		Runtimes:    runtimes,
		Tracker:     NewSessionTracker(sessions, logger),
		CrashLogger: NewCrashLogger(crashes, logger),
		RunLock:     lock,
		Workers:     2,
		Logger:      logger,
	})
	return &harness{service: service, store: store, sups: sups, sessions: sessions, crashes: crashes, lock: lock}
}

func apiRecords() []supplier.RawRecord {
	return []supplier.RawRecord{
		{"name": "Denon AVR-X1800H", "sku": "DEN-AVR-X1800H", "price": 1000.0, "stock": 4.0},
		{"name": "Denon AVR-X2800H", "sku": "DEN-AVR-X2800H", "price": 1400.0, "stock": 2.0},
		{"name": "Denon AVR-X3800H", "sku": "DEN-AVR-X3800H", "price": 1900.0, "stock": 1.0},
	}
}

func registerSupplier(t *testing.T, sups *memSupplierRepo, name string, ctype supplier.ConnectorType) *supplier.Supplier {
	t.Helper()
	s := supplier.NewSupplier(name, ctype)
	require.NoError(t, sups.Save(context.Background(), s))
	return s
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSyncSupplier_AddsThenUnchanged(t *testing.T) {
	sups := newMemSupplierRepo()
	store := newMemStore()
	nology := registerSupplier(t, sups, "Nology", supplier.ConnectorTypeAPI)

	conn := &fakeConnector{name: "Nology", ctype: supplier.ConnectorTypeAPI, pages: [][]supplier.RawRecord{apiRecords()}}
	h := newHarness(t, map[string]Runtime{
		"Nology": {Connector: conn, Transformer: nologyTransformer(nology.ID)},
	}, sups, store)
	ctx := context.Background()

	result, err := h.service.SyncSupplier(ctx, nology.ID, Options{SessionName: "test"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, supplier.SyncStatusCompleted, result.Status)
	assert.Equal(t, 3, result.Counters.Added)
	assert.Equal(t, 0, result.Counters.Updated)

	// Second run with identical data changes nothing.
	result, err = h.service.SyncSupplier(ctx, nology.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Counters.Added)
	assert.Equal(t, 0, result.Counters.Updated)
	assert.Equal(t, 3, result.Counters.Unchanged)

	count, err := store.Count(ctx, nology.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	got, err := sups.FindByID(ctx, nology.ID)
	require.NoError(t, err)
	assert.Equal(t, supplier.SupplierStatusOK, got.Status)
	assert.NotNil(t, got.LastSyncAt)
}

func TestSyncSupplier_UpdatesChangedRecords(t *testing.T) {
	sups := newMemSupplierRepo()
	store := newMemStore()
	nology := registerSupplier(t, sups, "Nology", supplier.ConnectorTypeAPI)

	conn := &fakeConnector{name: "Nology", ctype: supplier.ConnectorTypeAPI, pages: [][]supplier.RawRecord{apiRecords()}}
	h := newHarness(t, map[string]Runtime{
		"Nology": {Connector: conn, Transformer: nologyTransformer(nology.ID)},
	}, sups, store)
	ctx := context.Background()

	_, err := h.service.SyncSupplier(ctx, nology.ID, Options{})
	require.NoError(t, err)

	// Stock moved on one article.
	changed := apiRecords()
	changed[0]["stock"] = 9.0
	conn.pages = [][]supplier.RawRecord{changed}

	result, err := h.service.SyncSupplier(ctx, nology.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counters.Updated)
	assert.Equal(t, 2, result.Counters.Unchanged)
}

func TestSyncSupplier_DryRunPersistsNothing(t *testing.T) {
	sups := newMemSupplierRepo()
	store := newMemStore()
	nology := registerSupplier(t, sups, "Nology", supplier.ConnectorTypeAPI)

	conn := &fakeConnector{name: "Nology", ctype: supplier.ConnectorTypeAPI, pages: [][]supplier.RawRecord{apiRecords()}}
	h := newHarness(t, map[string]Runtime{
		"Nology": {Connector: conn, Transformer: nologyTransformer(nology.ID)},
	}, sups, store)
	ctx := context.Background()

	result, err := h.service.SyncSupplier(ctx, nology.ID, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Counters.Added, "dry-run reports what would happen")

	count, err := store.Count(ctx, nology.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count, "dry-run must not write")

	got, err := sups.FindByID(ctx, nology.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastSyncAt, "dry-run must not stamp last sync")
}

func TestSyncSupplier_PartialOnTailFailure(t *testing.T) {
	sups := newMemSupplierRepo()
	store := newMemStore()
	nology := registerSupplier(t, sups, "Nology", supplier.ConnectorTypeAPI)

	conn := &fakeConnector{
		name:       "Nology",
		ctype:      supplier.ConnectorTypeAPI,
		pages:      [][]supplier.RawRecord{apiRecords(), apiRecords()},
		failAtPage: 2,
	}
	h := newHarness(t, map[string]Runtime{
		"Nology": {Connector: conn, Transformer: nologyTransformer(nology.ID)},
	}, sups, store)

	result, err := h.service.SyncSupplier(context.Background(), nology.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, supplier.SyncStatusPartial, result.Status)
	assert.True(t, result.Success, "partial runs still count as success")
	assert.Equal(t, 3, result.Counters.Added)
	require.NotEmpty(t, result.Errors)

	got, _ := sups.FindByID(context.Background(), nology.ID)
	assert.Equal(t, supplier.SupplierStatusOK, got.Status)
}

func TestSyncSupplier_FailedOnFirstPage(t *testing.T) {
	sups := newMemSupplierRepo()
	store := newMemStore()
	nology := registerSupplier(t, sups, "Nology", supplier.ConnectorTypeAPI)

	conn := &fakeConnector{name: "Nology", ctype: supplier.ConnectorTypeAPI, failAtPage: 1}
	h := newHarness(t, map[string]Runtime{
		"Nology": {Connector: conn, Transformer: nologyTransformer(nology.ID)},
	}, sups, store)

	result, err := h.service.SyncSupplier(context.Background(), nology.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, supplier.SyncStatusFailed, result.Status)
	assert.False(t, result.Success)

	got, _ := sups.FindByID(context.Background(), nology.ID)
	assert.Equal(t, supplier.SupplierStatusError, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestSyncSupplier_EngineUnavailableGoesToCrashLog(t *testing.T) {
	sups := newMemSupplierRepo()
	store := newMemStore()
	scraper := registerSupplier(t, sups, "HiFi Store", supplier.ConnectorTypeScraper)

	conn := &fakeConnector{
		name:     "HiFi Store",
		ctype:    supplier.ConnectorTypeScraper,
		startErr: fmt.Errorf("%w: chrome failed to start", supplier.ErrEngineUnavailable),
	}
	h := newHarness(t, map[string]Runtime{
		"HiFi Store": {Connector: conn, Transformer: nologyTransformer(scraper.ID)},
	}, sups, store)
	ctx := context.Background()

	_, err := h.service.SyncSupplier(ctx, scraper.ID, Options{})
	require.ErrorIs(t, err, supplier.ErrEngineUnavailable)

	entries, err := h.crashes.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "engine_unavailable", entries[0].ErrorType)
	assert.Equal(t, "HiFi Store", entries[0].SupplierName)

	assert.Empty(t, h.sessions.sessions, "no session opens when the engine never starts")

	got, _ := sups.FindByID(ctx, scraper.ID)
	assert.Equal(t, supplier.SupplierStatusError, got.Status)
}

func TestSyncSupplier_ManualCannotOverwriteAuthoritative(t *testing.T) {
	sups := newMemSupplierRepo()
	store := newMemStore()
	nology := registerSupplier(t, sups, "Nology", supplier.ConnectorTypeAPI)
	manual := registerSupplier(t, sups, "Manual Upload", supplier.ConnectorTypeManual)
	ctx := context.Background()

	// Seed an API-owned product.
	nologyConn := &fakeConnector{name: "Nology", ctype: supplier.ConnectorTypeAPI, pages: [][]supplier.RawRecord{apiRecords()}}
	manualConn := &fakeConnector{name: "Manual Upload", ctype: supplier.ConnectorTypeManual, pages: [][]supplier.RawRecord{{
		{"name": "Denon AVR-X1800H (manual)", "sku": "DEN-AVR-X1800H", "price": 1.0},
		{"name": "Custom Speaker Cable 3m", "sku": "CUSTOM-CABLE-123", "price": 450.0},
	}}}

	h := newHarness(t, map[string]Runtime{
		"Nology":        {Connector: nologyConn, Transformer: nologyTransformer(nology.ID)},
		"Manual Upload": {Connector: manualConn, Transformer: NewTransformer(TransformerConfig{SupplierID: manual.ID})},
	}, sups, store)

	_, err := h.service.SyncSupplier(ctx, nology.ID, Options{})
	require.NoError(t, err)

	result, err := h.service.SyncSupplier(ctx, manual.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counters.Added, "unclaimed SKU writes")
	assert.Equal(t, 1, result.Counters.Skipped, "authoritative SKU is protected")

	// The API-owned record is untouched.
	got, err := store.GetBySKU(ctx, nology.ID, "DEN-AVR-X1800H")
	require.NoError(t, err)
	assert.Equal(t, "Denon AVR-X1800H", got.Name)

	// The genuinely new manual record landed.
	added, err := store.GetBySKU(ctx, manual.ID, "CUSTOM-CABLE-123")
	require.NoError(t, err)
	assert.Equal(t, "Custom Speaker Cable 3m", added.Name)
}

func TestSyncSupplier_AuthorityConflictIsLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	sups := newMemSupplierRepo()
	store := newMemStore()
	nology := registerSupplier(t, sups, "Nology", supplier.ConnectorTypeAPI)
	manual := registerSupplier(t, sups, "Manual Upload", supplier.ConnectorTypeManual)
	ctx := context.Background()

	nologyConn := &fakeConnector{name: "Nology", ctype: supplier.ConnectorTypeAPI, pages: [][]supplier.RawRecord{apiRecords()}}
	manualConn := &fakeConnector{name: "Manual Upload", ctype: supplier.ConnectorTypeManual, pages: [][]supplier.RawRecord{{
		{"name": "Denon AVR-X1800H (manual)", "sku": "DEN-AVR-X1800H", "price": 1.0},
	}}}

	service := NewService(ServiceConfig{
		Suppliers:   sups,
		Store:       store,
		DryRunStore: persistence.NewDryRunStore(store),
		Directory:   sups,
		Runtimes: map[string]Runtime{
			"Nology":        {Connector: nologyConn, Transformer: nologyTransformer(nology.ID)},
			"Manual Upload": {Connector: manualConn, Transformer: NewTransformer(TransformerConfig{SupplierID: manual.ID})},
		},
		Tracker:     NewSessionTracker(newMemSessionRepo(), logger),
		CrashLogger: NewCrashLogger(&memCrashRepo{}, logger),
		RunLock:     locking.NewMemoryRunLock(),
		Workers:     2,
		Logger:      logger,
	})

	_, err := service.SyncSupplier(ctx, nology.ID, Options{})
	require.NoError(t, err)

	result, err := service.SyncSupplier(ctx, manual.ID, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, result.Counters.Skipped)

	entries := logs.FilterMessage("authority conflict, record skipped").All()
	require.Len(t, entries, 1, "a protected record leaves a trace in the log")
	fields := entries[0].ContextMap()
	assert.Equal(t, nology.ID.String(), fields["owning_supplier"])
	assert.NotEmpty(t, fields["natural_key"])
}

func TestSyncSupplier_SingleFlight(t *testing.T) {
	sups := newMemSupplierRepo()
	store := newMemStore()
	nology := registerSupplier(t, sups, "Nology", supplier.ConnectorTypeAPI)

	conn := &fakeConnector{name: "Nology", ctype: supplier.ConnectorTypeAPI, pages: [][]supplier.RawRecord{apiRecords()}}
	h := newHarness(t, map[string]Runtime{
		"Nology": {Connector: conn, Transformer: nologyTransformer(nology.ID)},
	}, sups, store)
	ctx := context.Background()

	release, err := h.lock.Acquire(ctx, nology.ID.String())
	require.NoError(t, err)
	defer release()

	_, err = h.service.SyncSupplier(ctx, nology.ID, Options{})
	assert.ErrorIs(t, err, supplier.ErrSyncAlreadyRunning)
}

func TestSyncSupplier_PreRunValidation(t *testing.T) {
	sups := newMemSupplierRepo()
	store := newMemStore()
	h := newHarness(t, map[string]Runtime{}, sups, store)
	ctx := context.Background()

	t.Run("unknown supplier", func(t *testing.T) {
		_, err := h.service.SyncSupplier(ctx, uuid.New(), Options{})
		assert.ErrorIs(t, err, supplier.ErrSupplierNotFound)
	})

	t.Run("inactive supplier", func(t *testing.T) {
		dormant := registerSupplier(t, sups, "Dormant", supplier.ConnectorTypeAPI)
		dormant.Active = false
		require.NoError(t, sups.Save(ctx, dormant))

		_, err := h.service.SyncSupplier(ctx, dormant.ID, Options{})
		assert.ErrorIs(t, err, supplier.ErrSupplierInactive)
	})

	t.Run("no connector", func(t *testing.T) {
		orphan := registerSupplier(t, sups, "Orphan", supplier.ConnectorTypeAPI)
		_, err := h.service.SyncSupplier(ctx, orphan.ID, Options{})
		assert.ErrorIs(t, err, supplier.ErrConnectorNotFound)
	})
}

func TestSyncSupplier_Cancellation(t *testing.T) {
	sups := newMemSupplierRepo()
	store := newMemStore()
	nology := registerSupplier(t, sups, "Nology", supplier.ConnectorTypeAPI)

	conn := &fakeConnector{name: "Nology", ctype: supplier.ConnectorTypeAPI, pages: [][]supplier.RawRecord{apiRecords()}}
	h := newHarness(t, map[string]Runtime{
		"Nology": {Connector: conn, Transformer: nologyTransformer(nology.ID)},
	}, sups, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.service.SyncSupplier(ctx, nology.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, supplier.SyncStatusCancelled, result.Status)
	assert.False(t, result.Success)
}

// cancellingConnector serves one page and then cancels the run context, the
// way an operator interrupt lands mid-walk.
type cancellingConnector struct {
	name    string
	records []supplier.RawRecord
	cancel  context.CancelFunc
}

func (c *cancellingConnector) TestConnection(context.Context) (bool, error) { return true, nil }

func (c *cancellingConnector) SupplierInfo() supplier.SupplierInfo {
	return supplier.SupplierInfo{Name: c.name, Type: supplier.ConnectorTypeAPI}
}

func (c *cancellingConnector) FetchProducts(context.Context, supplier.FetchOptions) (supplier.PageIterator, error) {
	return &cancellingIterator{connector: c}, nil
}

type cancellingIterator struct {
	connector *cancellingConnector
	served    bool
}

func (it *cancellingIterator) Next(ctx context.Context) (*supplier.RawPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.served {
		return nil, context.Canceled
	}
	it.served = true
	it.connector.cancel()
	return &supplier.RawPage{Number: 1, Records: it.connector.records}, nil
}

func TestSyncSupplier_CancelledRunPersistsTerminalState(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ProductModel{},
		&models.SupplierModel{},
		&models.SyncSessionModel{},
		&models.CrashLogModel{},
	))

	sups := persistence.NewSupplierRepository(db)
	sessions := persistence.NewSessionRepository(db)
	crashes := persistence.NewCrashLogRepository(db)
	store := newMemStore()
	logger := zap.NewNop()

	nology := supplier.NewSupplier("Nology", supplier.ConnectorTypeAPI)
	require.NoError(t, sups.Save(context.Background(), nology))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn := &cancellingConnector{name: "Nology", records: apiRecords(), cancel: cancel}

	service := NewService(ServiceConfig{
		Suppliers:   sups,
		Store:       store,
		DryRunStore: persistence.NewDryRunStore(store),
		Directory:   sups,
		Runtimes: map[string]Runtime{
			"Nology": {Connector: conn, Transformer: nologyTransformer(nology.ID)},
		},
		Tracker:     NewSessionTracker(sessions, logger),
		CrashLogger: NewCrashLogger(crashes, logger),
		RunLock:     locking.NewMemoryRunLock(),
		Workers:     2,
		Logger:      logger,
	})

	result, err := service.SyncSupplier(ctx, nology.ID, Options{SessionName: "test"})
	require.NoError(t, err)
	assert.Equal(t, supplier.SyncStatusCancelled, result.Status)
	assert.False(t, result.Success)

	// The terminal state must land in the database even though the run
	// context is already cancelled.
	persisted, err := sessions.FindBySupplier(context.Background(), nology.ID, 10)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, supplier.SyncStatusCancelled, persisted[0].Status)
	assert.NotNil(t, persisted[0].CompletedAt)

	got, err := sups.FindByID(context.Background(), nology.ID)
	require.NoError(t, err)
	assert.Equal(t, supplier.SupplierStatusIdle, got.Status)
	assert.Equal(t, "sync cancelled", got.ErrorMessage)
}

func TestSyncSupplier_BadRecordsBecomeWarnings(t *testing.T) {
	sups := newMemSupplierRepo()
	store := newMemStore()
	nology := registerSupplier(t, sups, "Nology", supplier.ConnectorTypeAPI)

	records := apiRecords()
	records = append(records, supplier.RawRecord{"sku": "NO-NAME", "price": 10.0})

	conn := &fakeConnector{name: "Nology", ctype: supplier.ConnectorTypeAPI, pages: [][]supplier.RawRecord{records}}
	h := newHarness(t, map[string]Runtime{
		"Nology": {Connector: conn, Transformer: nologyTransformer(nology.ID)},
	}, sups, store)

	result, err := h.service.SyncSupplier(context.Background(), nology.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, supplier.SyncStatusCompleted, result.Status, "bad records never fail a run")
	assert.Equal(t, 3, result.Counters.Added)
	assert.Equal(t, 1, result.Counters.Skipped)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no product name")
}

func TestSyncAll_SkipsManualAndSurvivesFailures(t *testing.T) {
	sups := newMemSupplierRepo()
	store := newMemStore()
	nology := registerSupplier(t, sups, "Nology", supplier.ConnectorTypeAPI)
	broken := registerSupplier(t, sups, "Broken Feed", supplier.ConnectorTypeFeed)
	registerSupplier(t, sups, "Manual Upload", supplier.ConnectorTypeManual)

	h := newHarness(t, map[string]Runtime{
		"Nology": {
			Connector:   &fakeConnector{name: "Nology", ctype: supplier.ConnectorTypeAPI, pages: [][]supplier.RawRecord{apiRecords()}},
			Transformer: nologyTransformer(nology.ID),
		},
		"Broken Feed": {
			Connector:   &fakeConnector{name: "Broken Feed", ctype: supplier.ConnectorTypeFeed, startErr: fmt.Errorf("%w: DNS failure", supplier.ErrTransport)},
			Transformer: NewTransformer(TransformerConfig{SupplierID: broken.ID}),
		},
	}, sups, store)

	results, err := h.service.SyncAll(context.Background(), Options{SessionName: "scheduler"})
	require.NoError(t, err)
	require.Len(t, results, 2, "manual suppliers are not synced")

	assert.True(t, results["Nology"].Success)
	assert.False(t, results["Broken Feed"].Success)
}

func TestService_StatusSurface(t *testing.T) {
	sups := newMemSupplierRepo()
	store := newMemStore()
	nology := registerSupplier(t, sups, "Nology", supplier.ConnectorTypeAPI)

	conn := &fakeConnector{name: "Nology", ctype: supplier.ConnectorTypeAPI, pages: [][]supplier.RawRecord{apiRecords()}}
	h := newHarness(t, map[string]Runtime{
		"Nology": {Connector: conn, Transformer: nologyTransformer(nology.ID)},
	}, sups, store)
	ctx := context.Background()

	_, err := h.service.SyncSupplier(ctx, nology.ID, Options{})
	require.NoError(t, err)

	status, err := h.service.Status(ctx, nology.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nology", status.SupplierName)
	assert.Equal(t, supplier.SupplierStatusOK, status.Status)
	assert.EqualValues(t, 3, status.TotalProducts)

	ok, err := h.service.TestConnection(ctx, "Nology")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = h.service.TestConnection(ctx, "Ghost")
	assert.ErrorIs(t, err, supplier.ErrConnectorNotFound)

	sessions, err := h.service.Sessions(ctx, nology.ID, 10)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestEnsureSupplier(t *testing.T) {
	sups := newMemSupplierRepo()
	ctx := context.Background()

	created, err := EnsureSupplier(ctx, sups, "Nology", supplier.ConnectorTypeAPI, true)
	require.NoError(t, err)

	again, err := EnsureSupplier(ctx, sups, "Nology", supplier.ConnectorTypeAPI, true)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID, "registration is idempotent")

	// Config change flows through.
	deactivated, err := EnsureSupplier(ctx, sups, "Nology", supplier.ConnectorTypeAPI, false)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)
}

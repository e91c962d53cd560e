package supplier

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Supplier Errors
// ---------------------------------------------------------------------------

var (
	ErrSupplierNotFound    = errors.New("supplier: supplier not found")
	ErrSupplierInactive    = errors.New("supplier: supplier is inactive")
	ErrSyncAlreadyRunning  = errors.New("supplier: a sync is already running for this supplier")
	ErrConnectorNotFound   = errors.New("supplier: no connector registered for supplier")
	ErrMissingCredentials  = errors.New("supplier: connector credentials are missing")
	ErrMissingBaseURL      = errors.New("supplier: connector base URL is missing")
	ErrEngineUnavailable   = errors.New("supplier: automation engine unavailable")
	ErrTransport           = errors.New("supplier: upstream transport failure")
	ErrInvalidResponse     = errors.New("supplier: invalid upstream response")
	ErrPageRetriesExceeded = errors.New("supplier: page fetch retries exceeded")
)

// ---------------------------------------------------------------------------
// ConnectorType
// ---------------------------------------------------------------------------

// ConnectorType identifies how a supplier's catalog is reached.
type ConnectorType string

const (
	// ConnectorTypeAPI is an authenticated vendor REST API.
	ConnectorTypeAPI ConnectorType = "api"
	// ConnectorTypeScraper is a headless-browser scrape of rendered pages.
	ConnectorTypeScraper ConnectorType = "scraper"
	// ConnectorTypeFeed is an unauthenticated JSON or XML feed.
	ConnectorTypeFeed ConnectorType = "feed"
	// ConnectorTypeManual is the fallback manual-upload pseudo-supplier.
	ConnectorTypeManual ConnectorType = "manual"
)

// IsValid returns true if the connector type is known.
func (t ConnectorType) IsValid() bool {
	switch t {
	case ConnectorTypeAPI, ConnectorTypeScraper, ConnectorTypeFeed, ConnectorTypeManual:
		return true
	default:
		return false
	}
}

// String returns the string representation of ConnectorType.
func (t ConnectorType) String() string {
	return string(t)
}

// IsAuthoritative returns true when data from this supplier type may not be
// overwritten by the manual-upload fallback.
func (t ConnectorType) IsAuthoritative() bool {
	return t.IsValid() && t != ConnectorTypeManual
}

// ---------------------------------------------------------------------------
// SupplierStatus
// ---------------------------------------------------------------------------

// SupplierStatus reflects the outcome of the most recent sync run.
type SupplierStatus string

const (
	SupplierStatusIdle    SupplierStatus = "idle"
	SupplierStatusSyncing SupplierStatus = "syncing"
	SupplierStatusOK      SupplierStatus = "ok"
	SupplierStatusError   SupplierStatus = "error"
)

// ---------------------------------------------------------------------------
// Supplier
// ---------------------------------------------------------------------------

// Supplier describes one upstream catalog source. Rows are created from
// configuration at startup and only the sync path mutates status fields;
// suppliers are never deleted by a sync run.
type Supplier struct {
	ID           uuid.UUID
	Name         string
	Type         ConnectorType
	Active       bool
	Status       SupplierStatus
	LastSyncAt   *time.Time
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSupplier creates a supplier registration.
func NewSupplier(name string, connectorType ConnectorType) *Supplier {
	now := time.Now()
	return &Supplier{
		ID:        uuid.New(),
		Name:      name,
		Type:      connectorType,
		Active:    true,
		Status:    SupplierStatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkSynced records a successful (or partial) run.
func (s *Supplier) MarkSynced(at time.Time) {
	s.LastSyncAt = &at
	s.Status = SupplierStatusOK
	s.ErrorMessage = ""
	s.UpdatedAt = at
}

// MarkFailed records a failed run with its first error.
func (s *Supplier) MarkFailed(at time.Time, message string) {
	s.Status = SupplierStatusError
	s.ErrorMessage = message
	s.UpdatedAt = at
}

// IsAuthoritative returns true when this supplier's records may not be
// overwritten by the manual fallback.
func (s *Supplier) IsAuthoritative() bool {
	return s.Type.IsAuthoritative()
}

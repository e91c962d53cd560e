package supplier

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists supplier registrations.
type Repository interface {
	// FindByID returns a supplier or ErrSupplierNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*Supplier, error)

	// FindByName returns a supplier by its unique name.
	FindByName(ctx context.Context, name string) (*Supplier, error)

	// FindAll returns all registered suppliers.
	FindAll(ctx context.Context) ([]*Supplier, error)

	// FindActive returns all active suppliers.
	FindActive(ctx context.Context) ([]*Supplier, error)

	// Save creates or updates a supplier registration.
	Save(ctx context.Context, s *Supplier) error

	// UpdateStatus updates the status and error message after a run.
	UpdateStatus(ctx context.Context, id uuid.UUID, status SupplierStatus, errorMessage string) error

	// UpdateLastSync stamps the last successful sync time.
	UpdateLastSync(ctx context.Context, id uuid.UUID) error
}

// SessionRepository persists the sync audit trail.
type SessionRepository interface {
	// Create persists a freshly opened session.
	Create(ctx context.Context, session *SyncSession) error

	// Update persists counters, logs and status transitions.
	Update(ctx context.Context, session *SyncSession) error

	// FindByID returns one session.
	FindByID(ctx context.Context, id uuid.UUID) (*SyncSession, error)

	// FindBySupplier returns the most recent sessions for a supplier,
	// newest first.
	FindBySupplier(ctx context.Context, supplierID uuid.UUID, limit int) ([]*SyncSession, error)
}

// CrashLogRepository appends catastrophic failure records.
type CrashLogRepository interface {
	// Append writes one crash log entry. Append-only by contract.
	Append(ctx context.Context, entry *CrashLogEntry) error

	// Recent returns the newest entries, newest first.
	Recent(ctx context.Context, limit int) ([]*CrashLogEntry, error)
}

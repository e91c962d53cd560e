package supplier

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionAlreadyClosed is returned when a terminal transition is
	// attempted on a session that already reached a terminal state.
	ErrSessionAlreadyClosed = errors.New("supplier: sync session already closed")
)

// ---------------------------------------------------------------------------
// SyncSessionStatus
// ---------------------------------------------------------------------------

// SyncSessionStatus is the state of one sync run.
type SyncSessionStatus string

const (
	SyncStatusRunning   SyncSessionStatus = "running"
	SyncStatusCompleted SyncSessionStatus = "completed"
	SyncStatusPartial   SyncSessionStatus = "partial"
	SyncStatusFailed    SyncSessionStatus = "failed"
	SyncStatusCancelled SyncSessionStatus = "cancelled"
)

// IsValid returns true if the status is known.
func (s SyncSessionStatus) IsValid() bool {
	switch s {
	case SyncStatusRunning, SyncStatusCompleted, SyncStatusPartial,
		SyncStatusFailed, SyncStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states a session cannot leave.
func (s SyncSessionStatus) IsTerminal() bool {
	return s.IsValid() && s != SyncStatusRunning
}

// String returns the string representation of SyncSessionStatus.
func (s SyncSessionStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// SyncCounters
// ---------------------------------------------------------------------------

// SyncCounters tallies record outcomes within a run.
type SyncCounters struct {
	Added       int
	Updated     int
	Unchanged   int
	Skipped     int
	Deactivated int
}

// Total returns the number of records the run classified.
func (c SyncCounters) Total() int {
	return c.Added + c.Updated + c.Unchanged + c.Skipped + c.Deactivated
}

// ---------------------------------------------------------------------------
// SyncSession
// ---------------------------------------------------------------------------

// SyncSession is the audit record of one sync run for one supplier. It is
// created in the running state, transitions to exactly one terminal state,
// and is immutable afterwards.
type SyncSession struct {
	ID          uuid.UUID
	SupplierID  uuid.UUID
	Name        string
	Status      SyncSessionStatus
	Counters    SyncCounters
	Errors      []string
	Warnings    []string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// NewSyncSession opens a session in the running state. Name records the
// triggering actor (CLI operator, scheduler, API caller).
func NewSyncSession(supplierID uuid.UUID, name string) *SyncSession {
	return &SyncSession{
		ID:         uuid.New(),
		SupplierID: supplierID,
		Name:       name,
		Status:     SyncStatusRunning,
		StartedAt:  time.Now(),
	}
}

// AddError appends a session-level error. No-op once the session is closed.
func (s *SyncSession) AddError(msg string) {
	if s.Status.IsTerminal() {
		return
	}
	s.Errors = append(s.Errors, msg)
}

// AddWarning appends a non-fatal warning.
func (s *SyncSession) AddWarning(msg string) {
	if s.Status.IsTerminal() {
		return
	}
	s.Warnings = append(s.Warnings, msg)
}

// Close transitions the session to a terminal state. Calling Close on an
// already-closed session returns ErrSessionAlreadyClosed and leaves the
// session untouched, which makes the tracker's complete/fail operations
// idempotent per session.
func (s *SyncSession) Close(status SyncSessionStatus) error {
	if !status.IsTerminal() {
		return errors.New("supplier: close requires a terminal status")
	}
	if s.Status.IsTerminal() {
		return ErrSessionAlreadyClosed
	}
	now := time.Now()
	s.Status = status
	s.CompletedAt = &now
	return nil
}

// Duration returns the wall-clock span of the run, or the elapsed time so
// far for a session still running.
func (s *SyncSession) Duration() time.Duration {
	if s.CompletedAt != nil {
		return s.CompletedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// Result derives the caller-facing summary from the session.
func (s *SyncSession) Result() *SyncResult {
	return &SyncResult{
		Success:   s.Status == SyncStatusCompleted || s.Status == SyncStatusPartial,
		SessionID: s.ID,
		Status:    s.Status,
		Counters:  s.Counters,
		Errors:    append([]string(nil), s.Errors...),
		Warnings:  append([]string(nil), s.Warnings...),
		Duration:  s.Duration(),
	}
}

// ---------------------------------------------------------------------------
// SyncResult
// ---------------------------------------------------------------------------

// SyncResult is the value returned to sync callers. It is derived entirely
// from the session and never persisted on its own.
type SyncResult struct {
	Success   bool
	SessionID uuid.UUID
	Status    SyncSessionStatus
	Counters  SyncCounters
	Errors    []string
	Warnings  []string
	Duration  time.Duration
}

// ---------------------------------------------------------------------------
// SupplierSyncStatus
// ---------------------------------------------------------------------------

// SupplierSyncStatus is the snapshot exposed on the status surface.
type SupplierSyncStatus struct {
	SupplierName  string
	Status        SupplierStatus
	LastSyncAt    *time.Time
	TotalProducts int64
	ErrorMessage  string
}

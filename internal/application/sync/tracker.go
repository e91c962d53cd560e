package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

// SessionTracker owns the lifecycle of sync sessions: open, flush progress,
// close exactly once. Close operations are idempotent per session so that a
// deferred failure handler and the normal completion path cannot double-close.
type SessionTracker struct {
	sessions supplier.SessionRepository
	logger   *zap.Logger
}

// NewSessionTracker creates a tracker over the session repository.
func NewSessionTracker(sessions supplier.SessionRepository, logger *zap.Logger) *SessionTracker {
	return &SessionTracker{
		sessions: sessions,
		logger:   logger.Named("tracker"),
	}
}

// Open creates and persists a running session.
func (t *SessionTracker) Open(ctx context.Context, supplierID uuid.UUID, name string) (*supplier.SyncSession, error) {
	session := supplier.NewSyncSession(supplierID, name)
	if err := t.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to open sync session: %w", err)
	}
	t.logger.Info("sync session opened",
		zap.String("session_id", session.ID.String()),
		zap.String("supplier_id", supplierID.String()),
		zap.String("name", name))
	return session, nil
}

// Flush persists the session's current counters and logs mid-run.
func (t *SessionTracker) Flush(ctx context.Context, session *supplier.SyncSession) error {
	return t.sessions.Update(ctx, session)
}

// History returns the most recent sessions for a supplier, newest first.
func (t *SessionTracker) History(ctx context.Context, supplierID uuid.UUID, limit int) ([]*supplier.SyncSession, error) {
	return t.sessions.FindBySupplier(ctx, supplierID, limit)
}

// Close transitions the session to a terminal status and persists it. A
// second Close on the same session is a no-op.
func (t *SessionTracker) Close(ctx context.Context, session *supplier.SyncSession, status supplier.SyncSessionStatus) error {
	if err := session.Close(status); err != nil {
		if errors.Is(err, supplier.ErrSessionAlreadyClosed) {
			return nil
		}
		return err
	}
	if err := t.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to persist session close: %w", err)
	}
	t.logger.Info("sync session closed",
		zap.String("session_id", session.ID.String()),
		zap.String("status", status.String()),
		zap.Int("added", session.Counters.Added),
		zap.Int("updated", session.Counters.Updated),
		zap.Int("unchanged", session.Counters.Unchanged),
		zap.Int("skipped", session.Counters.Skipped),
		zap.Duration("duration", session.Duration()))
	return nil
}

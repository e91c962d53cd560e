package sync

import (
	"context"
	"errors"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

// CrashLogger records catastrophic failures that happen before a session
// exists or escape the orchestrator entirely. Logging a crash must never
// itself fail the caller; persistence errors are logged and swallowed.
type CrashLogger struct {
	crashLogs supplier.CrashLogRepository
	logger    *zap.Logger
}

// NewCrashLogger creates a crash logger over the repository.
func NewCrashLogger(crashLogs supplier.CrashLogRepository, logger *zap.Logger) *CrashLogger {
	return &CrashLogger{
		crashLogs: crashLogs,
		logger:    logger.Named("crashlog"),
	}
}

// Record persists one crash entry classified from err.
func (c *CrashLogger) Record(ctx context.Context, supplierName string, err error, fields map[string]any) {
	entry := supplier.NewCrashLogEntry(supplierName, classifyError(err), err.Error()).
		WithContext(fields)
	c.append(ctx, entry)
}

// RecordPanic persists a crash entry for a recovered panic, stack included.
func (c *CrashLogger) RecordPanic(ctx context.Context, supplierName string, recovered any) {
	entry := supplier.NewCrashLogEntry(supplierName, "panic", panicMessage(recovered)).
		WithStackTrace(string(debug.Stack()))
	c.append(ctx, entry)
}

// Recent returns the newest crash entries, newest first.
func (c *CrashLogger) Recent(ctx context.Context, limit int) ([]*supplier.CrashLogEntry, error) {
	return c.crashLogs.Recent(ctx, limit)
}

func (c *CrashLogger) append(ctx context.Context, entry *supplier.CrashLogEntry) {
	if err := c.crashLogs.Append(ctx, entry); err != nil {
		c.logger.Error("failed to persist crash log entry",
			zap.String("supplier", entry.SupplierName),
			zap.String("error_type", entry.ErrorType),
			zap.Error(err))
		return
	}
	c.logger.Error("crash recorded",
		zap.String("supplier", entry.SupplierName),
		zap.String("error_type", entry.ErrorType),
		zap.String("message", entry.ErrorMessage))
}

// classifyError buckets an error for the crash log's error_type column.
func classifyError(err error) string {
	switch {
	case errors.Is(err, supplier.ErrEngineUnavailable):
		return "engine_unavailable"
	case errors.Is(err, supplier.ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, supplier.ErrMissingBaseURL):
		return "missing_base_url"
	case errors.Is(err, supplier.ErrTransport):
		return "transport"
	case errors.Is(err, supplier.ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, supplier.ErrPageRetriesExceeded):
		return "page_retries_exceeded"
	default:
		return "unclassified"
	}
}

func panicMessage(recovered any) string {
	if err, ok := recovered.(error); ok {
		return err.Error()
	}
	if s, ok := recovered.(string); ok {
		return s
	}
	return "unknown panic"
}

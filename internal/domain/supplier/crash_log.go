package supplier

import (
	"time"

	"github.com/google/uuid"
)

// CrashLogEntry records a catastrophic connector failure that happened
// before a sync session could be opened, or that escaped the orchestrator's
// own failure handling. It is deliberately independent of SyncSession so
// that "the browser engine did not even start" still leaves a trace.
type CrashLogEntry struct {
	ID           uuid.UUID
	SupplierName string
	ErrorType    string
	ErrorMessage string
	StackTrace   string
	Context      map[string]any
	CreatedAt    time.Time
}

// NewCrashLogEntry builds an entry with a fresh ID and timestamp.
func NewCrashLogEntry(supplierName, errorType, errorMessage string) *CrashLogEntry {
	return &CrashLogEntry{
		ID:           uuid.New(),
		SupplierName: supplierName,
		ErrorType:    errorType,
		ErrorMessage: errorMessage,
		CreatedAt:    time.Now(),
	}
}

// WithStackTrace attaches a stack trace.
func (e *CrashLogEntry) WithStackTrace(trace string) *CrashLogEntry {
	e.StackTrace = trace
	return e
}

// WithContext attaches structured context.
func (e *CrashLogEntry) WithContext(ctx map[string]any) *CrashLogEntry {
	e.Context = ctx
	return e
}

package dto

import (
	"time"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

// SyncRequest represents a request to start a sync run
type SyncRequest struct {
	Limit       int    `json:"limit" binding:"omitempty,min=0"`
	DryRun      bool   `json:"dry_run"`
	FullSync    bool   `json:"full_sync"`
	SessionName string `json:"session_name" binding:"omitempty,max=200"`
}

// SupplierResponse represents one supplier registration
type SupplierResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Active       bool       `json:"active"`
	Status       string     `json:"status"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// NewSupplierResponse maps a supplier to its API representation
func NewSupplierResponse(s *supplier.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:           s.ID.String(),
		Name:         s.Name,
		Type:         s.Type.String(),
		Active:       s.Active,
		Status:       string(s.Status),
		LastSyncAt:   s.LastSyncAt,
		ErrorMessage: s.ErrorMessage,
	}
}

// SupplierStatusResponse represents a supplier's sync snapshot
type SupplierStatusResponse struct {
	SupplierName  string     `json:"supplier_name"`
	Status        string     `json:"status"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
	TotalProducts int64      `json:"total_products"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}

// NewSupplierStatusResponse maps a sync snapshot to its API representation
func NewSupplierStatusResponse(s *supplier.SupplierSyncStatus) SupplierStatusResponse {
	return SupplierStatusResponse{
		SupplierName:  s.SupplierName,
		Status:        string(s.Status),
		LastSyncAt:    s.LastSyncAt,
		TotalProducts: s.TotalProducts,
		ErrorMessage:  s.ErrorMessage,
	}
}

// SyncCountersResponse represents record outcome tallies
type SyncCountersResponse struct {
	Added       int `json:"added"`
	Updated     int `json:"updated"`
	Unchanged   int `json:"unchanged"`
	Skipped     int `json:"skipped"`
	Deactivated int `json:"deactivated"`
}

func newSyncCountersResponse(c supplier.SyncCounters) SyncCountersResponse {
	return SyncCountersResponse{
		Added:       c.Added,
		Updated:     c.Updated,
		Unchanged:   c.Unchanged,
		Skipped:     c.Skipped,
		Deactivated: c.Deactivated,
	}
}

// SyncResultResponse represents the outcome of one sync run
type SyncResultResponse struct {
	SessionID string               `json:"session_id"`
	Success   bool                 `json:"success"`
	Status    string               `json:"status"`
	Counters  SyncCountersResponse `json:"counters"`
	Errors    []string             `json:"errors,omitempty"`
	Warnings  []string             `json:"warnings,omitempty"`
	Duration  string               `json:"duration"`
}

// NewSyncResultResponse maps a sync result to its API representation
func NewSyncResultResponse(r *supplier.SyncResult) SyncResultResponse {
	return SyncResultResponse{
		SessionID: r.SessionID.String(),
		Success:   r.Success,
		Status:    string(r.Status),
		Counters:  newSyncCountersResponse(r.Counters),
		Errors:    r.Errors,
		Warnings:  r.Warnings,
		Duration:  r.Duration.String(),
	}
}

// SessionResponse represents one sync session on the audit trail
type SessionResponse struct {
	ID          string               `json:"id"`
	SupplierID  string               `json:"supplier_id"`
	Name        string               `json:"name"`
	Status      string               `json:"status"`
	Counters    SyncCountersResponse `json:"counters"`
	Errors      []string             `json:"errors,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

// NewSessionResponse maps a sync session to its API representation
func NewSessionResponse(s *supplier.SyncSession) SessionResponse {
	return SessionResponse{
		ID:          s.ID.String(),
		SupplierID:  s.SupplierID.String(),
		Name:        s.Name,
		Status:      string(s.Status),
		Counters:    newSyncCountersResponse(s.Counters),
		Errors:      s.Errors,
		Warnings:    s.Warnings,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
	}
}

// CrashLogResponse represents one crash log entry
type CrashLogResponse struct {
	ID           string         `json:"id"`
	SupplierName string         `json:"supplier_name"`
	ErrorType    string         `json:"error_type"`
	ErrorMessage string         `json:"error_message"`
	Context      map[string]any `json:"context,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewCrashLogResponse maps a crash log entry to its API representation
func NewCrashLogResponse(e *supplier.CrashLogEntry) CrashLogResponse {
	return CrashLogResponse{
		ID:           e.ID.String(),
		SupplierName: e.SupplierName,
		ErrorType:    e.ErrorType,
		ErrorMessage: e.ErrorMessage,
		Context:      e.Context,
		CreatedAt:    e.CreatedAt,
	}
}

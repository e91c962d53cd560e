package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

// SupplierModel is the persistence model for supplier registrations.
type SupplierModel struct {
	BaseModel
	Name         string     `gorm:"type:varchar(200);not null;uniqueIndex"`
	Type         string     `gorm:"type:varchar(20);not null"`
	Active       bool       `gorm:"not null;default:true"`
	Status       string     `gorm:"type:varchar(20);not null;default:'idle'"`
	LastSyncAt   *time.Time `gorm:""`
	ErrorMessage string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SupplierModel) TableName() string {
	return "suppliers"
}

// ToDomain converts the persistence model to a domain Supplier.
func (m *SupplierModel) ToDomain() *supplier.Supplier {
	return &supplier.Supplier{
		ID:           m.ID,
		Name:         m.Name,
		Type:         supplier.ConnectorType(m.Type),
		Active:       m.Active,
		Status:       supplier.SupplierStatus(m.Status),
		LastSyncAt:   m.LastSyncAt,
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Supplier.
func (m *SupplierModel) FromDomain(s *supplier.Supplier) {
	m.ID = s.ID
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
	m.Name = s.Name
	m.Type = string(s.Type)
	m.Active = s.Active
	m.Status = string(s.Status)
	m.LastSyncAt = s.LastSyncAt
	m.ErrorMessage = s.ErrorMessage
}

// SyncSessionModel is the persistence model for the sync audit trail.
type SyncSessionModel struct {
	BaseModel
	SupplierID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_session_supplier_started,priority:1"`
	Name        string     `gorm:"type:varchar(200)"`
	Status      string     `gorm:"type:varchar(20);not null"`
	Added       int        `gorm:"not null;default:0"`
	Updated     int        `gorm:"not null;default:0"`
	Unchanged   int        `gorm:"not null;default:0"`
	Skipped     int        `gorm:"not null;default:0"`
	Deactivated int        `gorm:"not null;default:0"`
	Errors      []string   `gorm:"type:jsonb;serializer:json"`
	Warnings    []string   `gorm:"type:jsonb;serializer:json"`
	StartedAt   time.Time  `gorm:"not null;index:idx_session_supplier_started,priority:2,sort:desc"`
	CompletedAt *time.Time `gorm:""`
}

// TableName returns the table name for GORM
func (SyncSessionModel) TableName() string {
	return "sync_sessions"
}

// ToDomain converts the persistence model to a domain SyncSession.
func (m *SyncSessionModel) ToDomain() *supplier.SyncSession {
	return &supplier.SyncSession{
		ID:         m.ID,
		SupplierID: m.SupplierID,
		Name:       m.Name,
		Status:     supplier.SyncSessionStatus(m.Status),
		Counters: supplier.SyncCounters{
			Added:       m.Added,
			Updated:     m.Updated,
			Unchanged:   m.Unchanged,
			Skipped:     m.Skipped,
			Deactivated: m.Deactivated,
		},
		Errors:      m.Errors,
		Warnings:    m.Warnings,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncSession.
func (m *SyncSessionModel) FromDomain(s *supplier.SyncSession) {
	m.ID = s.ID
	m.CreatedAt = s.StartedAt
	m.SupplierID = s.SupplierID
	m.Name = s.Name
	m.Status = string(s.Status)
	m.Added = s.Counters.Added
	m.Updated = s.Counters.Updated
	m.Unchanged = s.Counters.Unchanged
	m.Skipped = s.Counters.Skipped
	m.Deactivated = s.Counters.Deactivated
	m.Errors = s.Errors
	m.Warnings = s.Warnings
	m.StartedAt = s.StartedAt
	m.CompletedAt = s.CompletedAt
}

// CrashLogModel is the persistence model for catastrophic failure records.
type CrashLogModel struct {
	BaseModel
	SupplierName string         `gorm:"type:varchar(200);index"`
	ErrorType    string         `gorm:"type:varchar(100);not null"`
	ErrorMessage string         `gorm:"type:text;not null"`
	StackTrace   string         `gorm:"type:text"`
	Context      map[string]any `gorm:"type:jsonb;serializer:json"`
}

// TableName returns the table name for GORM
func (CrashLogModel) TableName() string {
	return "crash_logs"
}

// ToDomain converts the persistence model to a domain CrashLogEntry.
func (m *CrashLogModel) ToDomain() *supplier.CrashLogEntry {
	return &supplier.CrashLogEntry{
		ID:           m.ID,
		SupplierName: m.SupplierName,
		ErrorType:    m.ErrorType,
		ErrorMessage: m.ErrorMessage,
		StackTrace:   m.StackTrace,
		Context:      m.Context,
		CreatedAt:    m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain CrashLogEntry.
func (m *CrashLogModel) FromDomain(e *supplier.CrashLogEntry) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.SupplierName = e.SupplierName
	m.ErrorType = e.ErrorType
	m.ErrorMessage = e.ErrorMessage
	m.StackTrace = e.StackTrace
	m.Context = e.Context
}

package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/persistence/models"
)

// CrashLogRepository implements supplier.CrashLogRepository using GORM.
type CrashLogRepository struct {
	db *gorm.DB
}

var _ supplier.CrashLogRepository = (*CrashLogRepository)(nil)

// NewCrashLogRepository creates a new crash log repository.
func NewCrashLogRepository(db *gorm.DB) *CrashLogRepository {
	return &CrashLogRepository{db: db}
}

// Append implements supplier.CrashLogRepository.
func (r *CrashLogRepository) Append(ctx context.Context, entry *supplier.CrashLogEntry) error {
	var model models.CrashLogModel
	model.FromDomain(entry)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to append crash log: %w", err)
	}
	return nil
}

// Recent implements supplier.CrashLogRepository.
func (r *CrashLogRepository) Recent(ctx context.Context, limit int) ([]*supplier.CrashLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var modelList []models.CrashLogModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&modelList).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list crash logs: %w", err)
	}
	entries := make([]*supplier.CrashLogEntry, 0, len(modelList))
	for i := range modelList {
		entries = append(entries, modelList[i].ToDomain())
	}
	return entries, nil
}

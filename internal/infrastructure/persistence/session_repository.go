package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/persistence/models"
)

// ErrSessionNotFound is returned when a sync session does not exist.
var ErrSessionNotFound = errors.New("persistence: sync session not found")

// SessionRepository implements supplier.SessionRepository using GORM.
type SessionRepository struct {
	db *gorm.DB
}

var _ supplier.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create implements supplier.SessionRepository.
func (r *SessionRepository) Create(ctx context.Context, session *supplier.SyncSession) error {
	var model models.SyncSessionModel
	model.FromDomain(session)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to create sync session: %w", err)
	}
	return nil
}

// Update implements supplier.SessionRepository.
func (r *SessionRepository) Update(ctx context.Context, session *supplier.SyncSession) error {
	var model models.SyncSessionModel
	model.FromDomain(session)
	result := r.db.WithContext(ctx).
		Model(&models.SyncSessionModel{}).
		Where("id = ?", session.ID).
		Select("*").
		Omit("id", "created_at", "supplier_id", "started_at").
		Updates(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to update sync session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// FindByID implements supplier.SessionRepository.
func (r *SessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*supplier.SyncSession, error) {
	var model models.SyncSessionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find sync session: %w", err)
	}
	return model.ToDomain(), nil
}

// FindBySupplier implements supplier.SessionRepository.
func (r *SessionRepository) FindBySupplier(ctx context.Context, supplierID uuid.UUID, limit int) ([]*supplier.SyncSession, error) {
	if limit <= 0 {
		limit = 20
	}
	var modelList []models.SyncSessionModel
	err := r.db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("started_at DESC").
		Limit(limit).
		Find(&modelList).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sync sessions: %w", err)
	}
	sessions := make([]*supplier.SyncSession, 0, len(modelList))
	for i := range modelList {
		sessions = append(sessions, modelList[i].ToDomain())
	}
	return sessions, nil
}

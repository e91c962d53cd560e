package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/persistence/models"
)

// SupplierRepository implements supplier.Repository using GORM. It also
// serves as the supplier.SupplierDirectory for the authority guard.
type SupplierRepository struct {
	db *gorm.DB
}

var (
	_ supplier.Repository        = (*SupplierRepository)(nil)
	_ supplier.SupplierDirectory = (*SupplierRepository)(nil)
)

// NewSupplierRepository creates a new supplier repository.
func NewSupplierRepository(db *gorm.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// FindByID implements supplier.Repository.
func (r *SupplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*supplier.Supplier, error) {
	var model models.SupplierModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, supplier.ErrSupplierNotFound
		}
		return nil, fmt.Errorf("failed to find supplier: %w", err)
	}
	return model.ToDomain(), nil
}

// FindByName implements supplier.Repository. Names compare case-insensitively
// because configuration files and CLI flags disagree about casing.
func (r *SupplierRepository) FindByName(ctx context.Context, name string) (*supplier.Supplier, error) {
	var model models.SupplierModel
	err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, supplier.ErrSupplierNotFound
		}
		return nil, fmt.Errorf("failed to find supplier: %w", err)
	}
	return model.ToDomain(), nil
}

// FindAll implements supplier.Repository.
func (r *SupplierRepository) FindAll(ctx context.Context) ([]*supplier.Supplier, error) {
	return r.findWhere(ctx, r.db.WithContext(ctx))
}

// FindActive implements supplier.Repository.
func (r *SupplierRepository) FindActive(ctx context.Context) ([]*supplier.Supplier, error) {
	return r.findWhere(ctx, r.db.WithContext(ctx).Where("active = ?", true))
}

func (r *SupplierRepository) findWhere(_ context.Context, tx *gorm.DB) ([]*supplier.Supplier, error) {
	var modelList []models.SupplierModel
	if err := tx.Order("name ASC").Find(&modelList).Error; err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	suppliers := make([]*supplier.Supplier, 0, len(modelList))
	for i := range modelList {
		suppliers = append(suppliers, modelList[i].ToDomain())
	}
	return suppliers, nil
}

// Save implements supplier.Repository.
func (r *SupplierRepository) Save(ctx context.Context, s *supplier.Supplier) error {
	var model models.SupplierModel
	model.FromDomain(s)
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to save supplier: %w", err)
	}
	return nil
}

// UpdateStatus implements supplier.Repository.
func (r *SupplierRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status supplier.SupplierStatus, errorMessage string) error {
	result := r.db.WithContext(ctx).
		Model(&models.SupplierModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        string(status),
			"error_message": errorMessage,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update supplier status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return supplier.ErrSupplierNotFound
	}
	return nil
}

// UpdateLastSync implements supplier.Repository.
func (r *SupplierRepository) UpdateLastSync(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.SupplierModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_sync_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update last sync: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return supplier.ErrSupplierNotFound
	}
	return nil
}

// SupplierType implements supplier.SupplierDirectory.
func (r *SupplierRepository) SupplierType(ctx context.Context, id uuid.UUID) (supplier.ConnectorType, error) {
	var model models.SupplierModel
	err := r.db.WithContext(ctx).Select("type").Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", supplier.ErrSupplierNotFound
		}
		return "", fmt.Errorf("failed to resolve supplier type: %w", err)
	}
	return supplier.ConnectorType(model.Type), nil
}

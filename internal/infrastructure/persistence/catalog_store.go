package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/catalog"
	"github.com/AudicoSA/audico-management-team-sub005/internal/infrastructure/persistence/models"
)

// ProductStore implements catalog.Store using GORM.
type ProductStore struct {
	db *gorm.DB
}

var _ catalog.Store = (*ProductStore)(nil)

// NewProductStore creates a new product store.
func NewProductStore(db *gorm.DB) *ProductStore {
	return &ProductStore{db: db}
}

// Upsert implements catalog.Store. The natural-key lookup and the write run
// in one transaction so two workers cannot both classify the same record as
// new.
func (s *ProductStore) Upsert(ctx context.Context, product *catalog.UnifiedProduct) (catalog.UpsertResult, error) {
	if err := product.Validate(); err != nil {
		return catalog.UpsertResult{}, err
	}

	var result catalog.UpsertResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findBySKU(tx, product.SupplierID, product.NaturalKey())
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up product: %w", err)
		}

		var model models.ProductModel
		model.FromDomain(product)

		if errors.Is(err, gorm.ErrRecordNotFound) {
			if model.ID == uuid.Nil {
				model.ID = uuid.New()
			}
			if err := tx.Create(&model).Error; err != nil {
				return fmt.Errorf("failed to create product: %w", err)
			}
			result = catalog.UpsertResult{IsNew: true, ID: model.ID}
			return nil
		}

		// The stored row's identity and creation time win over whatever
		// the transformer put on the candidate.
		model.ID = existing.ID
		model.CreatedAt = existing.CreatedAt
		if err := tx.Model(&models.ProductModel{}).
			Where("id = ?", existing.ID).
			Select("*").
			Omit("id", "created_at").
			Updates(&model).Error; err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		result = catalog.UpsertResult{IsNew: false, ID: existing.ID}
		return nil
	})
	if err != nil {
		return catalog.UpsertResult{}, err
	}

	product.ID = result.ID
	return result, nil
}

// GetBySKU implements catalog.Store.
func (s *ProductStore) GetBySKU(ctx context.Context, supplierID uuid.UUID, sku string) (*catalog.UnifiedProduct, error) {
	model, err := findBySKU(s.db.WithContext(ctx), supplierID, sku)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return model.ToDomain(), nil
}

// GetByNaturalKey implements catalog.Store. The lookup spans all suppliers;
// the newest row wins when more than one supplier ever claimed the key.
func (s *ProductStore) GetByNaturalKey(ctx context.Context, key string) (*catalog.UnifiedProduct, error) {
	var model models.ProductModel
	err := s.db.WithContext(ctx).
		Where("supplier_sku = ? OR sku_normalized = ?", key, catalog.NormalizeSKU(key)).
		Order("updated_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by natural key: %w", err)
	}
	return model.ToDomain(), nil
}

// Count implements catalog.Store.
func (s *ProductStore) Count(ctx context.Context, supplierID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("supplier_id = ?", supplierID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// findBySKU matches by supplier SKU first, then by normalized SKU.
func findBySKU(tx *gorm.DB, supplierID uuid.UUID, sku string) (*models.ProductModel, error) {
	var model models.ProductModel
	err := tx.
		Where("supplier_id = ? AND (supplier_sku = ? OR sku_normalized = ?)",
			supplierID, sku, catalog.NormalizeSKU(sku)).
		First(&model).Error
	if err != nil {
		return nil, err
	}
	return &model, nil
}

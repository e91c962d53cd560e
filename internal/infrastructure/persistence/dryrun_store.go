package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/catalog"
)

// DryRunStore decorates a catalog.Store so that a sync run classifies every
// record without persisting anything. Upsert answers exactly as the wrapped
// store would have, counts included, which is what makes dry-run reports
// trustworthy.
type DryRunStore struct {
	inner catalog.Store
}

var _ catalog.Store = (*DryRunStore)(nil)

// NewDryRunStore wraps a store in a no-write decorator.
func NewDryRunStore(inner catalog.Store) *DryRunStore {
	return &DryRunStore{inner: inner}
}

// Upsert implements catalog.Store without writing. Classification mirrors
// the real store: a record whose natural key is unknown for this supplier
// would be created, anything else updated.
func (s *DryRunStore) Upsert(ctx context.Context, product *catalog.UnifiedProduct) (catalog.UpsertResult, error) {
	if err := product.Validate(); err != nil {
		return catalog.UpsertResult{}, err
	}

	existing, err := s.inner.GetBySKU(ctx, product.SupplierID, product.NaturalKey())
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return catalog.UpsertResult{IsNew: true, ID: uuid.New()}, nil
		}
		return catalog.UpsertResult{}, err
	}
	return catalog.UpsertResult{IsNew: false, ID: existing.ID}, nil
}

// GetBySKU implements catalog.Store.
func (s *DryRunStore) GetBySKU(ctx context.Context, supplierID uuid.UUID, sku string) (*catalog.UnifiedProduct, error) {
	return s.inner.GetBySKU(ctx, supplierID, sku)
}

// GetByNaturalKey implements catalog.Store.
func (s *DryRunStore) GetByNaturalKey(ctx context.Context, key string) (*catalog.UnifiedProduct, error) {
	return s.inner.GetByNaturalKey(ctx, key)
}

// Count implements catalog.Store.
func (s *DryRunStore) Count(ctx context.Context, supplierID uuid.UUID) (int64, error) {
	return s.inner.Count(ctx, supplierID)
}

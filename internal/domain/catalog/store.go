package catalog

import (
	"context"

	"github.com/google/uuid"
)

// UpsertResult reports how the store classified an upsert.
type UpsertResult struct {
	// IsNew is true when the upsert created a new row.
	IsNew bool
	// ID is the canonical product ID after the write.
	ID uuid.UUID
}

// Store is the port through which the sync engine reads and writes the
// canonical catalog. Implementations must be safe for concurrent callers
// syncing different suppliers; same-SKU conflicts are resolved by the
// authority guard, not by store-level locking.
type Store interface {
	// Upsert creates or updates a product by its natural key
	// (supplier_id, supplier_sku), falling back to the normalized SKU.
	Upsert(ctx context.Context, product *UnifiedProduct) (UpsertResult, error)

	// GetBySKU looks up a product for a supplier by supplier SKU or
	// normalized SKU. Returns ErrProductNotFound when absent.
	GetBySKU(ctx context.Context, supplierID uuid.UUID, sku string) (*UnifiedProduct, error)

	// GetByNaturalKey looks a product up across all suppliers by natural
	// key. Used by the authority guard to find the current owner of a SKU.
	GetByNaturalKey(ctx context.Context, key string) (*UnifiedProduct, error)

	// Count returns the number of products held for one supplier.
	Count(ctx context.Context, supplierID uuid.UUID) (int64, error)
}

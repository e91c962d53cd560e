package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Catalog Errors
// ---------------------------------------------------------------------------

var (
	ErrProductMissingName     = errors.New("catalog: product name is required")
	ErrProductMissingIdentity = errors.New("catalog: product has neither supplier SKU nor SKU")
	ErrProductNotFound        = errors.New("catalog: product not found")
	ErrNegativeCostPrice      = errors.New("catalog: cost price cannot be negative")
)

// ---------------------------------------------------------------------------
// StockConfidence
// ---------------------------------------------------------------------------

// StockConfidence distinguishes a stock quantity reported by the supplier
// from a placeholder assigned when the supplier only reports availability.
type StockConfidence string

const (
	// StockConfirmed means the quantity came from the supplier's own counts.
	StockConfirmed StockConfidence = "confirmed"
	// StockAssumed means the supplier reported "available" without a
	// quantity and the stored total is a configured placeholder.
	StockAssumed StockConfidence = "assumed"
)

// IsValid returns true if the confidence value is known.
func (c StockConfidence) IsValid() bool {
	return c == StockConfirmed || c == StockAssumed
}

// ---------------------------------------------------------------------------
// UnifiedProduct
// ---------------------------------------------------------------------------

// UnifiedProduct is the canonical cross-supplier product record. Every
// connector, regardless of upstream shape, normalizes into this type before
// anything is persisted.
//
// SellingPrice is always derived from CostPrice through the supplier's
// PricingRule (or passed through unchanged for retail-priced feeds). The sync
// path never hand-edits it.
type UnifiedProduct struct {
	ID   uuid.UUID
	Name string

	SKU      string
	Model    string
	Brand    string
	Category string

	CostPrice        decimal.Decimal
	SellingPrice     decimal.Decimal
	MarginPercentage decimal.Decimal

	// StockTotal is the aggregate across all regions.
	StockTotal int
	// StockByRegion holds per-region quantities when the supplier reports them.
	StockByRegion map[string]int
	// StockConfidence records whether StockTotal was reported or assumed.
	StockConfidence StockConfidence

	// Images preserves document order with duplicates removed.
	Images []string
	// Specifications holds supplier-reported attributes keyed by label.
	Specifications map[string]any

	SupplierID  uuid.UUID
	SupplierSKU string

	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the invariants a product must satisfy before upsert.
func (p *UnifiedProduct) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrProductMissingName
	}
	if p.NaturalKey() == "" {
		return ErrProductMissingIdentity
	}
	if p.CostPrice.IsNegative() {
		return ErrNegativeCostPrice
	}
	return nil
}

// NaturalKey returns the identity used for upserts: the supplier SKU when
// present, otherwise the normalized SKU.
func (p *UnifiedProduct) NaturalKey() string {
	if s := strings.TrimSpace(p.SupplierSKU); s != "" {
		return s
	}
	return NormalizeSKU(p.SKU)
}

// NormalizeSKU uppercases a SKU and strips surrounding and inner whitespace
// so that the same article from different feeds compares equal.
func NormalizeSKU(sku string) string {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return ""
	}
	return strings.Join(strings.Fields(sku), "")
}

// DedupeImages removes duplicate URLs while preserving first-seen order.
func DedupeImages(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

package sync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/catalog"
	"github.com/AudicoSA/audico-management-team-sub005/internal/domain/supplier"
)

var (
	// ErrRecordMissingName marks a raw record with no usable product name.
	ErrRecordMissingName = errors.New("sync: record has no product name")
	// ErrRecordMissingIdentity marks a raw record with no usable SKU.
	ErrRecordMissingIdentity = errors.New("sync: record has no SKU or model")
	// ErrRecordMissingPrice marks a raw record with no parseable price.
	ErrRecordMissingPrice = errors.New("sync: record has no parseable price")
)

// defaultFieldCandidates are tried in order when no explicit field mapping
// overrides a canonical field. They cover the shapes the connectors produce:
// vendor API payloads, Shopify-style feeds, XML feeds and scraped pages.
var defaultFieldCandidates = map[string][]string{
	"name":         {"name", "title", "product_name"},
	"sku":          {"sku", "code", "product_code", "id"},
	"model":        {"model", "model_number", "mpn"},
	"brand":        {"brand", "vendor", "manufacturer"},
	"product_type": {"product_type", "category", "type"},
	"price":        {"price", "cost_price", "cost", "wholesale_price"},
	"stock":        {"stock", "stock_quantity", "quantity", "qty"},
	"availability": {"availability", "available", "in_stock"},
	"images":       {"images", "image", "image_url"},
	"description":  {"description", "body_html", "summary"},
}

// TransformerConfig parameterizes normalization for one supplier.
type TransformerConfig struct {
	SupplierID uuid.UUID
	Pricing    catalog.PricingRule
	Categories *catalog.CategoryMapping
	// FieldMap overrides the canonical-to-upstream field resolution,
	// e.g. {"price": "dealer_price"}.
	FieldMap map[string]string
	// KeyFields are tried in order for the supplier SKU.
	KeyFields []string
	// PlaceholderStock is stored when the supplier reports availability
	// without a quantity.
	PlaceholderStock int
}

// Transformer normalizes raw supplier records into unified products. One
// instance serves one supplier; it is stateless and safe for concurrent use.
type Transformer struct {
	cfg TransformerConfig
}

// NewTransformer builds a transformer. Nil category mappings resolve
// everything to the empty fallback.
func NewTransformer(cfg TransformerConfig) *Transformer {
	if cfg.Categories == nil {
		cfg.Categories = catalog.NewCategoryMapping(nil, "")
	}
	if len(cfg.KeyFields) == 0 {
		cfg.KeyFields = []string{"sku", "id", "model"}
	}
	return &Transformer{cfg: cfg}
}

// Transform normalizes one raw record. Record-level problems come back as
// errors for the caller to log and count; they never abort a run.
func (t *Transformer) Transform(record supplier.RawRecord) (*catalog.UnifiedProduct, error) {
	variant := firstVariant(record)

	name := collapseWhitespace(t.lookup(record, variant, "name"))
	if name == "" {
		return nil, ErrRecordMissingName
	}

	sku := t.lookup(record, variant, "sku")
	supplierSKU := firstNonEmpty(variantKey(variant, t.cfg.KeyFields), record.Key(t.cfg.KeyFields...))
	if sku == "" && supplierSKU == "" {
		return nil, fmt.Errorf("%w: %q", ErrRecordMissingIdentity, name)
	}

	cost, ok := t.lookupDecimal(record, variant, "price")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRecordMissingPrice, name)
	}
	if cost.IsNegative() {
		return nil, fmt.Errorf("%w: %q", catalog.ErrNegativeCostPrice, name)
	}

	product := &catalog.UnifiedProduct{
		Name:             name,
		SKU:              sku,
		Model:            t.lookup(record, variant, "model"),
		Brand:            t.lookup(record, variant, "brand"),
		Category:         t.cfg.Categories.Resolve(t.lookup(record, variant, "product_type"), name),
		CostPrice:        cost,
		SellingPrice:     t.cfg.Pricing.SellingPrice(cost),
		MarginPercentage: t.cfg.Pricing.MarginPercentage,
		Images:           catalog.DedupeImages(t.lookupStrings(record, "images")),
		SupplierID:       t.cfg.SupplierID,
		SupplierSKU:      supplierSKU,
		Active:           true,
	}

	t.applyStock(product, record, variant)
	t.applySpecifications(product, record)

	if err := product.Validate(); err != nil {
		return nil, err
	}
	return product, nil
}

// applyStock resolves the stock total, per-region split and confidence.
func (t *Transformer) applyStock(product *catalog.UnifiedProduct, record supplier.RawRecord, variant supplier.RawRecord) {
	product.StockConfidence = catalog.StockConfirmed

	// Per-region maps like {"jhb": 3, "cpt": 1} take precedence.
	if regions := record.Map(t.fieldName("stock")); regions != nil {
		byRegion := make(map[string]int, len(regions))
		total := 0
		for region := range regions {
			if qty, ok := regions.Int(region); ok {
				byRegion[strings.ToUpper(region)] = qty
				total += qty
			}
		}
		if len(byRegion) > 0 {
			product.StockByRegion = byRegion
			product.StockTotal = total
			return
		}
	}

	if qty, ok := t.lookupInt(record, variant, "stock"); ok {
		product.StockTotal = qty
		return
	}

	// Availability without a quantity gets the configured placeholder.
	if available, ok := t.lookupBool(record, variant, "availability"); ok {
		if available {
			product.StockTotal = t.cfg.PlaceholderStock
			product.StockConfidence = catalog.StockAssumed
		}
		return
	}

	// Scraped stock text like "In Stock" lands under the stock field.
	if available, ok := t.lookupBool(record, variant, "stock"); ok && available {
		product.StockTotal = t.cfg.PlaceholderStock
		product.StockConfidence = catalog.StockAssumed
	}
}

// applySpecifications merges explicit spec maps with the cleaned description.
func (t *Transformer) applySpecifications(product *catalog.UnifiedProduct, record supplier.RawRecord) {
	specs := map[string]any{}
	for _, key := range []string{"specifications", "specs", "attributes"} {
		for k, v := range record.Map(key) {
			specs[k] = v
		}
	}

	if desc := StripHTML(t.lookup(record, nil, "description")); desc != "" {
		specs["description"] = desc
	}

	if len(specs) > 0 {
		product.Specifications = specs
	}
}

// lookup resolves a canonical field to a string, preferring the variant.
func (t *Transformer) lookup(record, variant supplier.RawRecord, canonical string) string {
	if override, ok := t.cfg.FieldMap[canonical]; ok {
		if variant != nil {
			if v := variant.String(override); v != "" {
				return v
			}
		}
		return record.String(override)
	}
	for _, field := range defaultFieldCandidates[canonical] {
		if variant != nil {
			if v := variant.String(field); v != "" {
				return v
			}
		}
		if v := record.String(field); v != "" {
			return v
		}
	}
	return ""
}

func (t *Transformer) lookupDecimal(record, variant supplier.RawRecord, canonical string) (decimal.Decimal, bool) {
	for _, field := range t.fieldNames(canonical) {
		if variant != nil {
			if d, ok := variant.Decimal(field); ok {
				return d, true
			}
		}
		if d, ok := record.Decimal(field); ok {
			return d, true
		}
	}
	return decimal.Zero, false
}

func (t *Transformer) lookupInt(record, variant supplier.RawRecord, canonical string) (int, bool) {
	for _, field := range t.fieldNames(canonical) {
		if variant != nil {
			if n, ok := variant.Int(field); ok {
				return n, true
			}
		}
		if n, ok := record.Int(field); ok {
			return n, true
		}
	}
	return 0, false
}

func (t *Transformer) lookupBool(record, variant supplier.RawRecord, canonical string) (bool, bool) {
	for _, field := range t.fieldNames(canonical) {
		if variant != nil {
			if b, ok := variant.Bool(field); ok {
				return b, true
			}
		}
		if b, ok := record.Bool(field); ok {
			return b, true
		}
	}
	return false, false
}

func (t *Transformer) lookupStrings(record supplier.RawRecord, canonical string) []string {
	for _, field := range t.fieldNames(canonical) {
		if v := record.Strings(field); len(v) > 0 {
			return v
		}
	}
	return nil
}

// fieldNames returns the upstream fields to try for a canonical field.
func (t *Transformer) fieldNames(canonical string) []string {
	if override, ok := t.cfg.FieldMap[canonical]; ok {
		return []string{override}
	}
	return defaultFieldCandidates[canonical]
}

// fieldName returns the single best upstream field for a canonical field.
func (t *Transformer) fieldName(canonical string) string {
	if override, ok := t.cfg.FieldMap[canonical]; ok {
		return override
	}
	candidates := defaultFieldCandidates[canonical]
	if len(candidates) == 0 {
		return canonical
	}
	return candidates[0]
}

// firstVariant returns the first entry of a Shopify-style variants array.
func firstVariant(record supplier.RawRecord) supplier.RawRecord {
	raw, ok := record["variants"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	if m, ok := raw[0].(map[string]any); ok {
		return supplier.RawRecord(m)
	}
	return nil
}

func variantKey(variant supplier.RawRecord, keyFields []string) string {
	if variant == nil {
		return ""
	}
	return variant.Key(keyFields...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// StripHTML reduces HTML fragments to their visible text with whitespace
// collapsed. Plain strings pass through untouched.
func StripHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return collapseWhitespace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseWhitespace(s)
	}
	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

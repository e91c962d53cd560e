package catalog

import (
	"github.com/shopspring/decimal"
)

// PricingRule captures one supplier's deterministic cost-to-selling-price
// computation. Supplier differences are data here, not code branches: every
// connector's records run through the same evaluator with different
// parameters.
type PricingRule struct {
	// VATPercentage is the VAT rate, e.g. 15 for 15%.
	VATPercentage decimal.Decimal
	// MarginPercentage is the markup applied on top, e.g. 15 for 15%.
	MarginPercentage decimal.Decimal
	// ApplyVATToCost adds VAT to the cost price before any margin.
	ApplyVATToCost bool
	// ApplyMarginToVATInclusive applies the margin to the VAT-inclusive base.
	ApplyMarginToVATInclusive bool
}

// PassthroughRule returns a rule that leaves prices untouched, for feeds
// that already carry retail pricing.
func PassthroughRule() PricingRule {
	return PricingRule{}
}

// IsPassthrough reports whether the rule performs no adjustment at all.
func (r PricingRule) IsPassthrough() bool {
	return !r.ApplyVATToCost && !r.ApplyMarginToVATInclusive
}

var one = decimal.NewFromInt(1)
var hundred = decimal.NewFromInt(100)

// SellingPrice derives the selling price from a cost price. The computation
// is deterministic: no time, rounding mode, or state dependency beyond the
// rule parameters themselves. The result is rounded half-up to two decimals.
func (r PricingRule) SellingPrice(costPrice decimal.Decimal) decimal.Decimal {
	base := costPrice
	if r.ApplyVATToCost {
		base = base.Mul(one.Add(r.VATPercentage.Div(hundred)))
	}
	if r.ApplyMarginToVATInclusive {
		base = base.Mul(one.Add(r.MarginPercentage.Div(hundred)))
	}
	return base.Round(2)
}

package pricing

import "github.com/shopspring/decimal"

// ScopeOrder is the only adjustment scope this engine produces; per-item
// adjustments belong to a different subsystem.
const ScopeOrder = "Order"

// DiscountRule is a configured discount. Percent applies to the order
// subtotal, Flat is an absolute amount; either may be zero.
type DiscountRule struct {
	ID      string
	Name    string
	Percent decimal.Decimal
	Flat    decimal.Decimal
}

// ServiceChargeRule is a configured service charge. Taxable charges are
// folded into the tax base.
type ServiceChargeRule struct {
	ID      string
	Name    string
	Percent decimal.Decimal
	Flat    decimal.Decimal
	Taxable bool
}

// TaxRule is a configured tax applied over the tax base. Flat is an
// optional absolute component carried on the record; the computed tax
// amount comes from Percent alone.
type TaxRule struct {
	ID      string
	Name    string
	Percent decimal.Decimal
	Flat    decimal.Decimal
}

// Config carries the tenant pricing rules for a single calculation.
// It is a plain value so the engine stays pure; callers source it per
// request from a ConfigProvider.
type Config struct {
	Discounts      []DiscountRule
	ServiceCharges []ServiceChargeRule
	Taxes          []TaxRule
}

// AppliedDiscount is an order-level discount line in a breakdown.
type AppliedDiscount struct {
	RuleID  string          `json:"ruleId"`
	Name    string          `json:"name"`
	Percent decimal.Decimal `json:"percent"`
	Flat    decimal.Decimal `json:"flat"`
	Amount  decimal.Decimal `json:"amount"`
	Scope   string          `json:"scope"`
}

// ServiceCharge is an order-level service charge line in a breakdown.
type ServiceCharge struct {
	RuleID  string          `json:"ruleId"`
	Name    string          `json:"name"`
	Percent decimal.Decimal `json:"percent"`
	Flat    decimal.Decimal `json:"flat"`
	Amount  decimal.Decimal `json:"amount"`
	Scope   string          `json:"scope"`
	Taxable bool            `json:"taxable"`
}

// AppliedTax is an order-level tax line in a breakdown.
type AppliedTax struct {
	RuleID  string          `json:"ruleId"`
	Name    string          `json:"name"`
	Percent decimal.Decimal `json:"percent"`
	Flat    decimal.Decimal `json:"flat"`
	Amount  decimal.Decimal `json:"amount"`
	Scope   string          `json:"scope"`
}

// Breakdown is the itemized monetary result of pricing an order.
// Invariant: GrandTotal = Subtotal - DiscountTotal + ServiceChargeTotal +
// TaxTotal + Tip, every component rounded to 2 decimals.
type Breakdown struct {
	Subtotal           decimal.Decimal   `json:"subtotal"`
	DiscountTotal      decimal.Decimal   `json:"discountTotal"`
	Discounts          []AppliedDiscount `json:"discounts,omitempty"`
	ServiceChargeTotal decimal.Decimal   `json:"serviceChargeTotal"`
	ServiceCharges     []ServiceCharge   `json:"serviceCharges,omitempty"`
	TaxTotal           decimal.Decimal   `json:"taxTotal"`
	Taxes              []AppliedTax      `json:"taxes,omitempty"`
	Tip                decimal.Decimal   `json:"tip"`
	GrandTotal         decimal.Decimal   `json:"grandTotal"`
}

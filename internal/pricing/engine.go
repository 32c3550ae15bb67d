package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// round2 rounds to 2 decimals, half away from zero.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Calculate prices an order. Pure and deterministic: no I/O, no state.
//
// Discounts are non-stacking (the single largest computed amount wins),
// service charges are additive, taxes apply over
// max(0, subtotal - discount + taxable service charges).
// Zero-amount rules produce no itemized record.
func Calculate(subtotal, tip decimal.Decimal, cfg Config) Breakdown {
	subtotal = round2(subtotal)
	tip = round2(tip)

	bd := Breakdown{
		Subtotal:           subtotal,
		DiscountTotal:      decimal.Zero,
		ServiceChargeTotal: decimal.Zero,
		TaxTotal:           decimal.Zero,
		Tip:                tip,
	}

	// Non-stacking discount: keep only the rule with the largest amount.
	var best *AppliedDiscount
	for _, rule := range cfg.Discounts {
		amount := round2(rule.Flat.Add(subtotal.Mul(rule.Percent).Div(hundred)))
		if amount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		if best == nil || amount.GreaterThan(best.Amount) {
			best = &AppliedDiscount{
				RuleID:  rule.ID,
				Name:    rule.Name,
				Percent: rule.Percent,
				Flat:    rule.Flat,
				Amount:  amount,
				Scope:   ScopeOrder,
			}
		}
	}
	if best != nil {
		bd.Discounts = append(bd.Discounts, *best)
		bd.DiscountTotal = best.Amount
	}

	// Service charges are additive; taxable ones feed the tax base.
	taxableCharges := decimal.Zero
	for _, rule := range cfg.ServiceCharges {
		amount := round2(rule.Flat.Add(subtotal.Mul(rule.Percent).Div(hundred)))
		if amount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		bd.ServiceCharges = append(bd.ServiceCharges, ServiceCharge{
			RuleID:  rule.ID,
			Name:    rule.Name,
			Percent: rule.Percent,
			Flat:    rule.Flat,
			Amount:  amount,
			Scope:   ScopeOrder,
			Taxable: rule.Taxable,
		})
		bd.ServiceChargeTotal = bd.ServiceChargeTotal.Add(amount)
		if rule.Taxable {
			taxableCharges = taxableCharges.Add(amount)
		}
	}

	// Single tax base, no compounding.
	taxBase := subtotal.Sub(bd.DiscountTotal).Add(taxableCharges)
	if taxBase.IsNegative() {
		taxBase = decimal.Zero
	}
	for _, rule := range cfg.Taxes {
		amount := round2(taxBase.Mul(rule.Percent).Div(hundred))
		if amount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		bd.Taxes = append(bd.Taxes, AppliedTax{
			RuleID:  rule.ID,
			Name:    rule.Name,
			Percent: rule.Percent,
			Flat:    rule.Flat,
			Amount:  amount,
			Scope:   ScopeOrder,
		})
		bd.TaxTotal = bd.TaxTotal.Add(amount)
	}

	bd.GrandTotal = subtotal.
		Sub(bd.DiscountTotal).
		Add(bd.ServiceChargeTotal).
		Add(bd.TaxTotal).
		Add(tip)

	return bd
}

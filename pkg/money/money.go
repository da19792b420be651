package money

import "github.com/shopspring/decimal"

// Round2 rounds an amount to two decimal places using half-up rounding.
//
// Pricing math rounds at every intermediate step (gross, discount, tax,
// line total), not once at the end of the pipeline. Callers must apply
// Round2 at the point a value is produced so that accumulated totals match
// the persisted breakdown to the cent.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns amount * pct/100, rounded to two decimal places.
func Percent(amount decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(pct).Div(decimal.NewFromInt(100)))
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// ClampNonNegative returns d, or zero when d is negative.
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

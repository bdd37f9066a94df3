package pricing

import "math"

// Money represents a monetary value stored in minor units (cents).
type Money = int64

// TaxRateBps is the fixed sales tax applied to every sale, in basis points.
const TaxRateBps = 1500

// Line describes a cart line used for summary calculation.
type Line struct {
	Quantity  float64
	UnitPrice Money
	LineTotal Money
}

// Summary aggregates computed cart totals.
type Summary struct {
	Subtotal Money `json:"subtotal"`
	Tax      Money `json:"tax"`
	Total    Money `json:"total"`
}

// LineTotal computes quantity times unit price rounded to the nearest cent.
// Quantity may be fractional for products that allow it; money never is.
func LineTotal(quantity float64, unitPrice Money) Money {
	return RoundCents(quantity * float64(unitPrice))
}

// Tax computes the tax owed on an amount, rounded to the nearest cent.
func Tax(amount Money) Money {
	return roundHalfAway(amount * TaxRateBps)
}

// Compute calculates cart totals from the provided lines.
func Compute(lines []Line) Summary {
	var subtotal Money
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		subtotal += l.LineTotal
	}
	tax := Tax(subtotal)
	return Summary{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}

// RoundCents rounds a fractional cent amount half away from zero.
func RoundCents(v float64) Money {
	return Money(math.Round(v))
}

func roundHalfAway(bps Money) Money {
	if bps >= 0 {
		return (bps + 5000) / 10000
	}
	return -((-bps + 5000) / 10000)
}

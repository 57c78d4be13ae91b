package domain

import "math"

// DefaultTaxRate is the flat sales tax applied to the merchandise subtotal.
const DefaultTaxRate = 0.08

// MaxOrderAmount bounds any whole-currency order amount so that tax math and the
// conversion to minor units cannot overflow.
const MaxOrderAmount int64 = math.MaxInt64 / 1000

// RoundAmount rounds half away from zero to a whole currency amount.
func RoundAmount(v float64) int64 {
	return int64(math.Round(v))
}

// TaxFor returns round(subtotal * rate). Shipping is never taxed.
func TaxFor(subtotal int64, rate float64) int64 {
	return RoundAmount(float64(subtotal) * rate)
}

// NewPricingBreakdown assembles a breakdown so that Total always equals
// Subtotal + Shipping + Tax.
func NewPricingBreakdown(subtotal int64, rate ShippingRate, taxRate float64) PricingBreakdown {
	tax := TaxFor(subtotal, taxRate)
	return PricingBreakdown{
		Subtotal:       subtotal,
		Shipping:       rate.Price,
		ShippingMethod: rate.MailClassName,
		Tax:            tax,
		Total:          subtotal + rate.Price + tax,
	}
}

// Consistent reports whether the breakdown satisfies the total identity.
func (b PricingBreakdown) Consistent() bool {
	return b.Total == b.Subtotal+b.Shipping+b.Tax
}

package domain

import "strings"

const (
	// ItemWeightOunces is the shipping allowance for a single framed or rolled piece.
	ItemWeightOunces = 32
	// PackagingWeightOunces is added once per shipment.
	PackagingWeightOunces = 16

	fallbackBaseRate  = 8.0
	fallbackPerLbRate = 1.0
)

// Mail classes returned by the fallback estimator.
const (
	MailClassGroundAdvantage = "USPS_GROUND_ADVANTAGE"
	MailClassPriority        = "PRIORITY_MAIL"
	MailClassPriorityExpress = "PRIORITY_MAIL_EXPRESS"
)

var mailClassNames = map[string]string{
	"PRIORITY_MAIL_EXPRESS": "Priority Mail Express",
	"PRIORITY_MAIL":         "Priority Mail",
	"USPS_GROUND_ADVANTAGE": "USPS Ground Advantage",
	"GROUND_ADVANTAGE":      "USPS Ground Advantage",
	"PARCEL_SELECT":         "Parcel Select",
	"FIRST_CLASS_MAIL":      "First-Class Mail",
	"MEDIA_MAIL":            "Media Mail",
	"LIBRARY_MAIL":          "Library Mail",
}

// PackageWeightOunces returns the shipment weight for the given quantities.
func PackageWeightOunces(quantities ...int) int {
	total := 0
	for _, q := range quantities {
		if q > 0 {
			total += q
		}
	}
	return total*ItemWeightOunces + PackagingWeightOunces
}

// CartWeightOunces is PackageWeightOunces over cart lines.
func CartWeightOunces(lines []CartLine) int {
	quantities := make([]int, 0, len(lines))
	for _, line := range lines {
		quantities = append(quantities, line.Quantity)
	}
	return PackageWeightOunces(quantities...)
}

// MailClassName maps a carrier class identifier to its display name.
func MailClassName(mailClass string) string {
	mailClass = strings.TrimSpace(mailClass)
	if name, ok := mailClassNames[mailClass]; ok {
		return name
	}
	if mailClass == "" {
		return "Standard Shipping"
	}
	return strings.ReplaceAll(mailClass, "_", " ")
}

// FallbackRates is the deterministic three-tier estimate used whenever the carrier cannot
// be reached.
func FallbackRates(weightOunces int) []ShippingRate {
	lbs := float64(weightOunces) / 16
	ground := RoundAmount(fallbackBaseRate + lbs*fallbackPerLbRate)
	priority := RoundAmount(float64(ground) * 1.5)
	express := RoundAmount(float64(ground) * 2.5)

	return []ShippingRate{
		{MailClass: MailClassGroundAdvantage, MailClassName: MailClassName(MailClassGroundAdvantage), Price: ground, DeliveryDays: intPtr(5)},
		{MailClass: MailClassPriority, MailClassName: MailClassName(MailClassPriority), Price: priority, DeliveryDays: intPtr(3)},
		{MailClass: MailClassPriorityExpress, MailClassName: MailClassName(MailClassPriorityExpress), Price: express, DeliveryDays: intPtr(1)},
	}
}

// FindRate returns the rate with the given class identifier.
func FindRate(rates []ShippingRate, mailClass string) (ShippingRate, bool) {
	for _, rate := range rates {
		if rate.MailClass == mailClass {
			return rate, true
		}
	}
	return ShippingRate{}, false
}

func intPtr(v int) *int {
	return &v
}

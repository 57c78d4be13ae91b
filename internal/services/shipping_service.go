package services

import (
	"context"
	"errors"
	"slices"
	"strings"

	domain "github.com/editionhouse/api/internal/domain"
)

const (
	// RateSourceCarrier marks quotes that came from the live carrier API.
	RateSourceCarrier = "usps"
	// RateSourceFallback marks quotes computed from the fallback table.
	RateSourceFallback = "fallback"

	maxQuotedRates = 5
	unknownClass   = "UNKNOWN"
)

var errNoUsableRates = errors.New("shipping: carrier returned no usable rates")

// ShippingServiceDeps bundles collaborators required to construct the shipping service.
type ShippingServiceDeps struct {
	Source RateSource
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type shippingService struct {
	source RateSource
	logger func(context.Context, string, map[string]any)
}

// NewShippingService constructs a ShippingService. A nil Source always quotes the fallback table.
func NewShippingService(deps ShippingServiceDeps) (ShippingService, error) {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &shippingService{source: deps.Source, logger: logger}, nil
}

func (s *shippingService) Quote(ctx context.Context, req QuoteRequest) RateQuote {
	weight := req.WeightOunces
	if weight <= 0 {
		weight = domain.PackagingWeightOunces
	}

	if s.source == nil {
		return fallbackQuote(weight, "carrier not configured")
	}

	rows, err := s.source.FetchRates(ctx, RateSourceRequest{
		OriginZip:      strings.TrimSpace(req.OriginZip),
		DestinationZip: strings.TrimSpace(req.DestinationZip),
		WeightOunces:   weight,
	})
	if err == nil {
		rates := normaliseCarrierRates(rows)
		if len(rates) > 0 {
			return RateQuote{Rates: rates, Source: RateSourceCarrier}
		}
		err = errNoUsableRates
	}

	s.logger(ctx, "shipping.rates.fallback", map[string]any{
		"destinationZip": req.DestinationZip,
		"weightOunces":   weight,
		"error":          err.Error(),
	})
	return fallbackQuote(weight, err.Error())
}

func fallbackQuote(weight int, reason string) RateQuote {
	return RateQuote{
		Rates:  domain.FallbackRates(weight),
		Source: RateSourceFallback,
		Error:  reason,
	}
}

// normaliseCarrierRates rounds prices, names classes, keeps the cheapest row per class and
// returns at most maxQuotedRates rates ordered by price.
func normaliseCarrierRates(rows []CarrierRate) []ShippingRate {
	byClass := make(map[string]int, len(rows))
	rates := make([]ShippingRate, 0, len(rows))
	for _, row := range rows {
		if row.Price < 0 {
			continue
		}
		class := strings.TrimSpace(row.MailClass)
		if class == "" {
			class = unknownClass
		}
		name := domain.MailClassName(class)
		if class == unknownClass && strings.TrimSpace(row.Description) != "" {
			name = strings.TrimSpace(row.Description)
		}
		rate := ShippingRate{
			MailClass:     class,
			MailClassName: name,
			Price:         domain.RoundAmount(row.Price),
			DeliveryDays:  row.DeliveryDays,
			DeliveryDate:  row.DeliveryDate,
		}
		if idx, ok := byClass[class]; ok {
			if rate.Price < rates[idx].Price {
				rates[idx] = rate
			}
			continue
		}
		byClass[class] = len(rates)
		rates = append(rates, rate)
	}

	slices.SortStableFunc(rates, func(a, b ShippingRate) int {
		switch {
		case a.Price < b.Price:
			return -1
		case a.Price > b.Price:
			return 1
		default:
			return 0
		}
	})
	if len(rates) > maxQuotedRates {
		rates = rates[:maxQuotedRates]
	}
	return rates
}

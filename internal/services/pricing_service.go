package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/repositories"
)

var (
	// ErrPricingInvalidInput signals malformed pricing lines.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrPricingArtworkNotFound indicates a line references an unknown artwork.
	ErrPricingArtworkNotFound = errors.New("pricing: artwork not found")
	// ErrPricingArtworkSoldOut indicates a line references a sold-out artwork.
	ErrPricingArtworkSoldOut = errors.New("pricing: artwork sold out")
	// ErrPricingInvalidShippingMethod indicates the chosen mail class is not offered for the destination.
	ErrPricingInvalidShippingMethod = errors.New("pricing: invalid shipping method")
	// ErrPricingNonPositiveTotal guards against free or negative checkouts.
	ErrPricingNonPositiveTotal = errors.New("pricing: order total must be greater than 0")
)

// PricingError carries the customer-facing message for a rejected reconciliation. It unwraps to
// one of the ErrPricing* sentinels.
type PricingError struct {
	kind    error
	Message string
}

func (e *PricingError) Error() string {
	return fmt.Sprintf("%v: %s", e.kind, e.Message)
}

func (e *PricingError) Unwrap() error {
	return e.kind
}

func pricingError(kind error, format string, args ...any) error {
	return &PricingError{kind: kind, Message: fmt.Sprintf(format, args...)}
}

// PricingServiceDeps bundles collaborators required to construct the pricing service.
type PricingServiceDeps struct {
	Artworks  repositories.ArtworkRepository
	Shipping  ShippingService
	OriginZip string
	TaxRate   float64
}

type pricingService struct {
	artworks  repositories.ArtworkRepository
	shipping  ShippingService
	originZip string
	taxRate   float64
}

// NewPricingService wires dependencies into a concrete PricingService implementation.
func NewPricingService(deps PricingServiceDeps) (PricingService, error) {
	if deps.Artworks == nil {
		return nil, errors.New("pricing service: artwork repository is required")
	}
	if deps.Shipping == nil {
		return nil, errors.New("pricing service: shipping service is required")
	}
	origin := strings.TrimSpace(deps.OriginZip)
	if origin == "" {
		return nil, errors.New("pricing service: origin zip is required")
	}
	rate := deps.TaxRate
	if rate < 0 || rate >= 1 {
		return nil, fmt.Errorf("pricing service: tax rate %v out of range", rate)
	}
	return &pricingService{
		artworks:  deps.Artworks,
		shipping:  deps.Shipping,
		originZip: origin,
		taxRate:   rate,
	}, nil
}

// Reconcile ignores any client-side totals: prices come from the artwork repository and the
// shipping price from a fresh quote for the destination.
func (s *pricingService) Reconcile(ctx context.Context, req PricingRequest) (PricingResult, error) {
	if len(req.Items) == 0 {
		return PricingResult{}, fmt.Errorf("%w: at least one item is required", ErrPricingInvalidInput)
	}
	mailClass := strings.TrimSpace(req.ShippingMailClass)
	if mailClass == "" {
		return PricingResult{}, fmt.Errorf("%w: shipping mail class is required", ErrPricingInvalidInput)
	}

	lines := make([]PricedLine, 0, len(req.Items))
	quantities := make([]int, 0, len(req.Items))
	var subtotal int64
	for _, item := range req.Items {
		id := strings.TrimSpace(item.ArtworkID)
		if id == "" || item.Quantity <= 0 {
			return PricingResult{}, fmt.Errorf("%w: item requires artwork id and positive quantity", ErrPricingInvalidInput)
		}
		if item.Quantity > domain.UnboundedQuantity {
			return PricingResult{}, fmt.Errorf("%w: quantity %d exceeds %d", ErrPricingInvalidInput, item.Quantity, domain.UnboundedQuantity)
		}
		artwork, err := s.artworks.Get(ctx, id)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return PricingResult{}, pricingError(ErrPricingArtworkNotFound, "Artwork not found: %s", id)
			}
			return PricingResult{}, fmt.Errorf("pricing: load artwork %s: %w", id, err)
		}
		if artwork.SoldOut {
			return PricingResult{}, pricingError(ErrPricingArtworkSoldOut, "Artwork sold out: %s", artwork.Title)
		}
		if artwork.Price < 0 {
			return PricingResult{}, fmt.Errorf("pricing: artwork %s has negative price", id)
		}
		if artwork.Price > 0 && int64(item.Quantity) > (domain.MaxOrderAmount-subtotal)/artwork.Price {
			return PricingResult{}, fmt.Errorf("%w: order amount out of range", ErrPricingInvalidInput)
		}
		subtotal += artwork.Price * int64(item.Quantity)
		quantities = append(quantities, item.Quantity)
		lines = append(lines, PricedLine{Artwork: artwork, Quantity: item.Quantity})
	}

	quote := s.shipping.Quote(ctx, QuoteRequest{
		OriginZip:      s.originZip,
		DestinationZip: req.DestinationZip,
		WeightOunces:   domain.PackageWeightOunces(quantities...),
	})
	rate, ok := domain.FindRate(quote.Rates, mailClass)
	if !ok {
		return PricingResult{}, pricingError(ErrPricingInvalidShippingMethod, "Invalid shipping method: %s", mailClass)
	}

	breakdown := domain.NewPricingBreakdown(subtotal, rate, s.taxRate)
	if breakdown.Total > domain.MaxOrderAmount {
		return PricingResult{}, fmt.Errorf("%w: order amount out of range", ErrPricingInvalidInput)
	}
	if breakdown.Total <= 0 {
		return PricingResult{}, pricingError(ErrPricingNonPositiveTotal, "Order total must be greater than 0")
	}

	return PricingResult{Breakdown: breakdown, Rate: rate, Lines: lines}, nil
}

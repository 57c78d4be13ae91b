package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/editionhouse/api/internal/payments"
)

// ErrPaymentIntentProvider wraps payment provider failures. Handlers surface it as a generic 500.
var ErrPaymentIntentProvider = errors.New("payment intent: provider error")

// PaymentIntentServiceDeps bundles collaborators required to construct the payment intent service.
type PaymentIntentServiceDeps struct {
	Pricing  PricingService
	Provider payments.Provider
	Currency string
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type paymentIntentService struct {
	pricing  PricingService
	provider payments.Provider
	currency string
	logger   func(context.Context, string, map[string]any)
}

type intentItemMetadata struct {
	ID  string `json:"id"`
	Qty int    `json:"qty"`
}

// NewPaymentIntentService wires dependencies into a concrete PaymentIntentService implementation.
func NewPaymentIntentService(deps PaymentIntentServiceDeps) (PaymentIntentService, error) {
	if deps.Pricing == nil {
		return nil, errors.New("payment intent service: pricing service is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("payment intent service: payment provider is required")
	}
	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "usd"
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &paymentIntentService{
		pricing:  deps.Pricing,
		provider: deps.Provider,
		currency: currency,
		logger:   logger,
	}, nil
}

// CreatePaymentIntent re-prices the cart and opens a fresh intent for the reconciled total. Every
// call creates a new intent unless the caller supplies an idempotency key.
func (s *paymentIntentService) CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntent, error) {
	priced, err := s.pricing.Reconcile(ctx, PricingRequest{
		Items:             cmd.Items,
		ShippingMailClass: cmd.ShippingMailClass,
		DestinationZip:    cmd.DestinationZip,
	})
	if err != nil {
		return PaymentIntent{}, err
	}

	items := make([]intentItemMetadata, 0, len(priced.Lines))
	for _, line := range priced.Lines {
		items = append(items, intentItemMetadata{ID: line.Artwork.ID, Qty: line.Quantity})
	}
	encodedItems, err := json.Marshal(items)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("payment intent: encode items: %w", err)
	}

	breakdown := priced.Breakdown
	metadata := map[string]string{
		"customerId":        strings.TrimSpace(cmd.CustomerID),
		"items":             string(encodedItems),
		"subtotal":          strconv.FormatInt(breakdown.Subtotal, 10),
		"shipping":          strconv.FormatInt(breakdown.Shipping, 10),
		"shippingMethod":    breakdown.ShippingMethod,
		"shippingMailClass": priced.Rate.MailClass,
		"tax":               strconv.FormatInt(breakdown.Tax, 10),
		"total":             strconv.FormatInt(breakdown.Total, 10),
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, payments.IntentRequest{
		Amount:             payments.MinorUnits(breakdown.Total),
		Currency:           s.currency,
		PaymentMethodTypes: []string{"card"},
		Metadata:           metadata,
		IdempotencyKey:     strings.TrimSpace(cmd.IdempotencyKey),
	})
	if err != nil {
		s.logger(ctx, "payment_intent.create_failed", map[string]any{
			"total": breakdown.Total,
			"error": err,
		})
		return PaymentIntent{}, fmt.Errorf("%w: %v", ErrPaymentIntentProvider, err)
	}

	s.logger(ctx, "payment_intent.created", map[string]any{
		"paymentIntent": intent.ID,
		"total":         breakdown.Total,
		"mailClass":     priced.Rate.MailClass,
	})

	return PaymentIntent{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		CalculatedTotal: breakdown.Total,
		Breakdown:       breakdown,
	}, nil
}

package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Webhook event types the storefront reacts to.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventChargeRefunded   = "charge.refunded"
)

var (
	// ErrWebhookSignature is returned when the Stripe-Signature header does not verify.
	ErrWebhookSignature = errors.New("payments: invalid webhook signature")
	// ErrWebhookPayload is returned when a verified event cannot be decoded.
	ErrWebhookPayload = errors.New("payments: invalid webhook payload")
)

// WebhookEvent is the provider-neutral view of a verified webhook. Amounts are minor units.
type WebhookEvent struct {
	ID             string
	Type           string
	IntentID       string
	Amount         int64
	AmountRefunded int64
	Status         Status
}

// StripeWebhookVerifier validates Stripe-Signature headers and decodes supported events.
type StripeWebhookVerifier struct {
	secret string
}

// NewStripeWebhookVerifier constructs a verifier for the endpoint signing secret.
func NewStripeWebhookVerifier(secret string) (*StripeWebhookVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("stripe: webhook secret is required: %w", ErrNotConfigured)
	}
	return &StripeWebhookVerifier{secret: secret}, nil
}

// Verify checks the signature and decodes payment_intent.* and charge.* objects. Events of
// other types are returned with only ID and Type set.
func (v *StripeWebhookVerifier) Verify(payload []byte, signature string) (WebhookEvent, error) {
	if v == nil {
		return WebhookEvent{}, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	out := WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch {
	case strings.HasPrefix(out.Type, "payment_intent."):
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return WebhookEvent{}, fmt.Errorf("%w: %v", ErrWebhookPayload, err)
		}
		out.IntentID = intent.ID
		out.Amount = intent.Amount
		out.Status = intentStatus(intent.Status)
	case strings.HasPrefix(out.Type, "charge."):
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return WebhookEvent{}, fmt.Errorf("%w: %v", ErrWebhookPayload, err)
		}
		if charge.PaymentIntent != nil {
			out.IntentID = charge.PaymentIntent.ID
		}
		out.Amount = charge.Amount
		out.AmountRefunded = charge.AmountRefunded
		switch {
		case charge.Amount > 0 && charge.AmountRefunded >= charge.Amount:
			out.Status = StatusRefunded
		case charge.AmountRefunded > 0:
			out.Status = StatusPartiallyRefunded
		case charge.Paid:
			out.Status = StatusSucceeded
		default:
			out.Status = StatusPending
		}
	}
	return out, nil
}

package payments

import (
	"context"
	"errors"
	"time"
)

// Status enumerates the normalised payment states shared across providers.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or PSP confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the PSP reports the payment as successfully captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the PSP reports a failure and no further action is possible.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the payment has been refunded in full.
	StatusRefunded Status = "refunded"
	// StatusPartiallyRefunded indicates part of the captured amount was returned.
	StatusPartiallyRefunded Status = "partially_refunded"
)

var (
	// ErrNotConfigured is returned when no provider credentials are available.
	ErrNotConfigured = errors.New("payments: provider not configured")
	// ErrInvalidAmount is returned for non-positive intent or refund amounts.
	ErrInvalidAmount = errors.New("payments: amount must be greater than 0")
)

// MinorUnits converts a whole-currency amount to the provider's smallest unit (cents).
func MinorUnits(amount int64) int64 {
	return amount * 100
}

// IntentRequest captures the payload required to open a payment intent. Amount is in minor
// units.
type IntentRequest struct {
	Amount             int64
	Currency           string
	PaymentMethodTypes []string
	Metadata           map[string]string
	IdempotencyKey     string
}

// Intent is the provider intent returned to the storefront.
type Intent struct {
	ID           string
	ClientSecret string
	Status       Status
	Amount       int64
	Currency     string
}

// RefundRequest defines a PSP refund attempt. A nil Amount refunds the remaining balance.
type RefundRequest struct {
	IntentID       string
	Amount         *int64
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
}

// LookupRequest returns provider specific payment details for reconciliation.
type LookupRequest struct {
	IntentID string
}

// PaymentDetails normalises PSP specific fields for verification and refunds. Amounts are in
// minor units.
type PaymentDetails struct {
	Provider       string
	IntentID       string
	Status         Status
	Amount         int64
	AmountRefunded int64
	Currency       string
	Captured       bool
	CapturedAt     *time.Time
	RefundedAt     *time.Time
	Metadata       map[string]string
}

// Provider defines the contract for PSP adapters to implement.
type Provider interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error)
	Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error)
	LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error)
}

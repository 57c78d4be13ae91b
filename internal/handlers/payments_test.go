package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/payments"
	"github.com/editionhouse/api/internal/services"
)

const validIntentBody = `{"items":[{"artworkId":"A","quantity":2}],"shippingMailClass":"USPS_GROUND_ADVANTAGE","destinationZip":"94107","customerId":"cus_1"}`

func TestPaymentHandlersCreatePaymentIntent(t *testing.T) {
	var captured services.CreatePaymentIntentCommand
	intents := &stubPaymentIntentService{createFunc: func(_ context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntent, error) {
		captured = cmd
		return services.PaymentIntent{
			ClientSecret:    "pi_1_secret",
			PaymentIntentID: "pi_1",
			CalculatedTotal: 236,
			Breakdown: domain.PricingBreakdown{
				Subtotal: 200, Shipping: 20, ShippingMethod: "Ground Advantage", Tax: 16, Total: 236,
			},
		}, nil
	}}
	h := NewPaymentHandlers(PaymentHandlersDeps{Intents: intents})

	rr := serve(t, h.Routes, http.MethodPost, "/stripe/create-payment-intent", validIntentBody,
		withHeader("Idempotency-Key", "checkout-42"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(captured.Items) != 1 || captured.Items[0].ArtworkID != "A" || captured.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items %+v", captured.Items)
	}
	if captured.CustomerID != "cus_1" || captured.IdempotencyKey != "checkout-42" {
		t.Fatalf("unexpected command %+v", captured)
	}

	resp := decodeBody[paymentIntentResponse](t, rr)
	if resp.PaymentIntentID != "pi_1" || resp.CalculatedTotal != 236 || resp.Breakdown.Tax != 16 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestPaymentHandlersCreatePaymentIntentErrors(t *testing.T) {
	soldOut := &services.PricingError{Message: "Artwork sold out: Harbour at Dawn"}
	cases := []struct {
		name    string
		body    string
		err     error
		status  int
		message string
	}{
		{name: "malformed", body: `{"items":`, status: http.StatusBadRequest, message: invalidPaymentRequestMessage},
		{name: "no items", body: `{"items":[],"shippingMailClass":"X","destinationZip":"94107"}`, status: http.StatusBadRequest, message: invalidPaymentRequestMessage},
		{name: "bad zip", body: `{"items":[{"artworkId":"A","quantity":1}],"shippingMailClass":"X","destinationZip":"9"}`, status: http.StatusBadRequest, message: invalidPaymentRequestMessage},
		{name: "quantity ceiling", body: `{"items":[{"artworkId":"A","quantity":184467440737095517}],"shippingMailClass":"X","destinationZip":"94107"}`, status: http.StatusBadRequest, message: invalidPaymentRequestMessage},
		{name: "business rule", body: validIntentBody, err: soldOut, status: http.StatusBadRequest, message: "Artwork sold out: Harbour at Dawn"},
		{name: "invalid input", body: validIntentBody, err: fmt.Errorf("%w: bad", services.ErrPricingInvalidInput), status: http.StatusBadRequest, message: invalidPaymentRequestMessage},
		{name: "provider", body: validIntentBody, err: fmt.Errorf("%w: card declined", services.ErrPaymentIntentProvider), status: http.StatusInternalServerError, message: paymentIntentFailedMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			intents := &stubPaymentIntentService{createFunc: func(context.Context, services.CreatePaymentIntentCommand) (services.PaymentIntent, error) {
				if tc.err == nil {
					t.Fatal("service must not be called")
				}
				return services.PaymentIntent{}, tc.err
			}}
			h := NewPaymentHandlers(PaymentHandlersDeps{Intents: intents})
			rr := serve(t, h.Routes, http.MethodPost, "/stripe/create-payment-intent", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			if _, message := errorCode(t, rr); message != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, message)
			}
		})
	}
}

func TestPaymentHandlersConfig(t *testing.T) {
	h := NewPaymentHandlers(PaymentHandlersDeps{PublishableKey: "pk_test_123"})
	rr := serve(t, h.Routes, http.MethodGet, "/stripe/config", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if resp := decodeBody[paymentConfigResponse](t, rr); resp.PublishableKey != "pk_test_123" {
		t.Fatalf("unexpected key %q", resp.PublishableKey)
	}

	unconfigured := NewPaymentHandlers(PaymentHandlersDeps{})
	if rr := serve(t, unconfigured.Routes, http.MethodGet, "/stripe/config", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without key, got %d", rr.Code)
	}
}

func TestPaymentHandlersWebhook(t *testing.T) {
	var handled payments.WebhookEvent
	orders := &stubOrderService{eventFunc: func(_ context.Context, event payments.WebhookEvent) error {
		handled = event
		return nil
	}}
	verifier := &stubWebhookVerifier{event: payments.WebhookEvent{
		ID:       "evt_1",
		Type:     payments.EventPaymentSucceeded,
		IntentID: "pi_1",
		Amount:   23600,
		Status:   payments.StatusSucceeded,
	}}
	h := NewPaymentHandlers(PaymentHandlersDeps{Orders: orders, Webhooks: verifier})

	rr := serve(t, h.Routes, http.MethodPost, "/stripe/webhook", `{"id":"evt_1"}`,
		withHeader("Stripe-Signature", "t=1,v1=abc"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if verifier.seen != "t=1,v1=abc" {
		t.Fatalf("signature not forwarded, got %q", verifier.seen)
	}
	if handled.IntentID != "pi_1" {
		t.Fatalf("event not dispatched, got %+v", handled)
	}
}

func TestPaymentHandlersWebhookFailures(t *testing.T) {
	badSignature := NewPaymentHandlers(PaymentHandlersDeps{
		Orders:   &stubOrderService{},
		Webhooks: &stubWebhookVerifier{err: payments.ErrWebhookSignature},
	})
	rr := serve(t, badSignature.Routes, http.MethodPost, "/stripe/webhook", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", rr.Code)
	}
	if code, _ := errorCode(t, rr); code != "invalid_signature" {
		t.Fatalf("unexpected code %q", code)
	}

	failing := NewPaymentHandlers(PaymentHandlersDeps{
		Orders: &stubOrderService{eventFunc: func(context.Context, payments.WebhookEvent) error {
			return errors.New("store down")
		}},
		Webhooks: &stubWebhookVerifier{event: payments.WebhookEvent{ID: "evt_2"}},
	})
	if rr := serve(t, failing.Routes, http.MethodPost, "/stripe/webhook", `{}`); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the provider retries, got %d", rr.Code)
	}
}

package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/payments"
)

func TestPaymentIntentServiceCreatesIntentForReconciledTotal(t *testing.T) {
	pricing, _ := pricingFixture(t, domain.Artwork{ID: "a1", Title: "Dusk", Price: 100})
	provider := &stubPaymentProvider{}
	var logged []string
	svc, err := NewPaymentIntentService(PaymentIntentServiceDeps{
		Pricing:  pricing,
		Provider: provider,
		Logger:   func(_ context.Context, event string, _ map[string]any) { logged = append(logged, event) },
	})
	if err != nil {
		t.Fatalf("NewPaymentIntentService: %v", err)
	}

	intent, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentCommand{
		Items:             []PricingItem{{ArtworkID: "a1", Quantity: 2}},
		ShippingMailClass: domain.MailClassGroundAdvantage,
		DestinationZip:    "94103",
		IdempotencyKey:    " checkout-1 ",
	})
	if err != nil {
		t.Fatalf("CreatePaymentIntent: %v", err)
	}

	if intent.PaymentIntentID != "pi_test" || intent.ClientSecret != "pi_test_secret" || intent.CalculatedTotal != 236 {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if len(provider.created) != 1 {
		t.Fatalf("expected one provider call, got %d", len(provider.created))
	}
	req := provider.created[0]
	if req.Amount != 23600 || req.Currency != "usd" || req.IdempotencyKey != "checkout-1" {
		t.Fatalf("unexpected provider request %+v", req)
	}
	if len(req.PaymentMethodTypes) != 1 || req.PaymentMethodTypes[0] != "card" {
		t.Fatalf("expected card payment method, got %v", req.PaymentMethodTypes)
	}
	wantMeta := map[string]string{
		"customerId":        "",
		"items":             `[{"id":"a1","qty":2}]`,
		"subtotal":          "200",
		"shipping":          "20",
		"shippingMethod":    "USPS Ground Advantage",
		"shippingMailClass": domain.MailClassGroundAdvantage,
		"tax":               "16",
		"total":             "236",
	}
	for key, want := range wantMeta {
		if got, ok := req.Metadata[key]; !ok || got != want {
			t.Fatalf("metadata %s: expected %q, got %q", key, want, got)
		}
	}
	if len(logged) != 1 || logged[0] != "payment_intent.created" {
		t.Fatalf("expected created log, got %v", logged)
	}
}

func TestPaymentIntentServiceDoesNotCallProviderWhenPricingFails(t *testing.T) {
	pricing, _ := pricingFixture(t)
	provider := &stubPaymentProvider{}
	svc, _ := NewPaymentIntentService(PaymentIntentServiceDeps{Pricing: pricing, Provider: provider})

	_, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentCommand{
		Items:             []PricingItem{{ArtworkID: "missing", Quantity: 1}},
		ShippingMailClass: domain.MailClassPriority,
	})
	if !errors.Is(err, ErrPricingArtworkNotFound) {
		t.Fatalf("expected pricing error, got %v", err)
	}
	if len(provider.created) != 0 {
		t.Fatal("provider must not be called")
	}
}

func TestPaymentIntentServiceWrapsProviderErrors(t *testing.T) {
	pricing, _ := pricingFixture(t, domain.Artwork{ID: "a1", Price: 50})
	provider := &stubPaymentProvider{
		createFn: func(context.Context, payments.IntentRequest) (payments.Intent, error) {
			return payments.Intent{}, errors.New("card_declined")
		},
	}
	svc, _ := NewPaymentIntentService(PaymentIntentServiceDeps{Pricing: pricing, Provider: provider, Currency: "USD"})

	_, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentCommand{
		Items:             []PricingItem{{ArtworkID: "a1", Quantity: 1}},
		ShippingMailClass: domain.MailClassPriority,
		CustomerID:        "cust-9",
	})
	if !errors.Is(err, ErrPaymentIntentProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if provider.created[0].Metadata["customerId"] != "cust-9" || provider.created[0].Currency != "usd" {
		t.Fatalf("unexpected request %+v", provider.created[0])
	}
}

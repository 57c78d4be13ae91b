package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/editionhouse/api/internal/domain"
)

func TestShippingServiceQuoteNormalisesCarrierRates(t *testing.T) {
	source := &stubRateSource{rates: []CarrierRate{
		{MailClass: "PRIORITY_MAIL_EXPRESS", Price: 61.4},
		{MailClass: "PRIORITY_MAIL", Price: 18.6, DeliveryDays: intPtr(2)},
		{MailClass: "PRIORITY_MAIL", Price: 22.1},
		{MailClass: "USPS_GROUND_ADVANTAGE", Price: 11.49},
		{MailClass: "PARCEL_SELECT", Price: 11.2},
		{MailClass: "MEDIA_MAIL", Price: 7.5},
		{MailClass: "LIBRARY_MAIL", Price: 7.0},
		{MailClass: "", Description: "Mystery Class", Price: 99},
	}}
	svc, err := NewShippingService(ShippingServiceDeps{Source: source})
	if err != nil {
		t.Fatalf("NewShippingService: %v", err)
	}

	quote := svc.Quote(context.Background(), QuoteRequest{OriginZip: "10001", DestinationZip: "94103", WeightOunces: 80})

	if quote.Source != RateSourceCarrier || quote.Error != "" {
		t.Fatalf("expected carrier quote, got %+v", quote)
	}
	if len(quote.Rates) != 5 {
		t.Fatalf("expected 5 rates, got %d", len(quote.Rates))
	}
	wantOrder := []string{"LIBRARY_MAIL", "MEDIA_MAIL", "USPS_GROUND_ADVANTAGE", "PARCEL_SELECT", "PRIORITY_MAIL"}
	for i, class := range wantOrder {
		if quote.Rates[i].MailClass != class {
			t.Fatalf("rate %d: expected %s, got %s", i, class, quote.Rates[i].MailClass)
		}
	}
	priority := quote.Rates[4]
	if priority.Price != 19 || priority.MailClassName != "Priority Mail" || priority.DeliveryDays == nil {
		t.Fatalf("expected cheapest priority row kept, got %+v", priority)
	}
	if quote.Rates[2].Price != 11 || quote.Rates[3].Price != 11 {
		t.Fatalf("expected rounded ties kept in carrier order, got %+v", quote.Rates[2:4])
	}
	if source.calls[0].WeightOunces != 80 {
		t.Fatalf("expected weight forwarded, got %+v", source.calls[0])
	}
}

func TestShippingServiceQuoteFallsBack(t *testing.T) {
	cases := []struct {
		name   string
		source RateSource
	}{
		{name: "carrier error", source: &stubRateSource{err: errors.New("usps: status 503")}},
		{name: "no rows", source: &stubRateSource{}},
		{name: "not configured", source: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var logged []string
			svc, _ := NewShippingService(ShippingServiceDeps{
				Source: tc.source,
				Logger: func(_ context.Context, event string, _ map[string]any) { logged = append(logged, event) },
			})
			quote := svc.Quote(context.Background(), QuoteRequest{OriginZip: "10001", DestinationZip: "94103", WeightOunces: 48})
			if quote.Source != RateSourceFallback || quote.Error == "" {
				t.Fatalf("expected fallback with reason, got %+v", quote)
			}
			want := domain.FallbackRates(48)
			if len(quote.Rates) != 3 || quote.Rates[0].Price != want[0].Price || quote.Rates[2].MailClass != domain.MailClassPriorityExpress {
				t.Fatalf("unexpected fallback rates %+v", quote.Rates)
			}
			if tc.source != nil && len(logged) != 1 {
				t.Fatalf("expected fallback to be logged, got %v", logged)
			}
		})
	}
}

func TestShippingServiceQuoteDefaultsWeight(t *testing.T) {
	source := &stubRateSource{err: errors.New("down")}
	svc, _ := NewShippingService(ShippingServiceDeps{Source: source})
	svc.Quote(context.Background(), QuoteRequest{DestinationZip: "94103"})
	if source.calls[0].WeightOunces != domain.PackagingWeightOunces {
		t.Fatalf("expected packaging weight, got %d", source.calls[0].WeightOunces)
	}
}

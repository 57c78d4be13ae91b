package firestore

import (
	"testing"
	"time"

	domain "github.com/editionhouse/api/internal/domain"
)

func TestOrderDocumentRoundTripKeepsTracking(t *testing.T) {
	carrier, number := "USPS", "9400"
	created := time.Date(2025, 6, 2, 15, 0, 0, 0, time.FixedZone("EST", -5*3600))
	order := domain.Order{
		ID:              "pi_123",
		CustomerID:      "c1",
		CustomerName:    "Ada",
		Status:          domain.OrderStatusShipped,
		PaymentStatus:   domain.PaymentStatusPartiallyRefunded,
		Items:           []domain.OrderItem{{ID: "a1", Title: "Dusk", Price: 100, Quantity: 2}},
		Total:           236,
		RefundedAmount:  36,
		TrackingCarrier: &carrier,
		TrackingNumber:  &number,
		Timeline:        []domain.TimelineEntry{{Date: created, Event: "Order placed"}},
		CreatedAt:       created,
	}

	doc := newOrderDocument(order)
	if doc.CreatedAt.Location() != time.UTC || doc.Timeline[0].Date.Location() != time.UTC {
		t.Fatal("timestamps must be stored in UTC")
	}
	if doc.Status != "shipped" || doc.PaymentStatus != "partially_refunded" {
		t.Fatalf("unexpected statuses %q %q", doc.Status, doc.PaymentStatus)
	}

	back := doc.toDomain("pi_123")
	if back.ID != "pi_123" || back.Items[0].Quantity != 2 || *back.TrackingNumber != "9400" || back.TrackingURL != nil {
		t.Fatalf("unexpected order %+v", back)
	}
	if !back.CreatedAt.Equal(created) || back.RefundedAmount != 36 {
		t.Fatalf("unexpected amounts or dates %+v", back)
	}
}

func TestToStrings(t *testing.T) {
	got := toStrings([]domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusShipped})
	if len(got) != 2 || got[0] != "pending" || got[1] != "shipped" {
		t.Fatalf("unexpected %v", got)
	}
}

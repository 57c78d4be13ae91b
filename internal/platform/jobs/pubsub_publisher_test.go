package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/editionhouse/api/internal/services"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPubSubEventPublisherPublishesOrderEvent(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)

	topic, err := client.CreateTopic(ctx, "orders.events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	publisher, err := NewPubSubEventPublisher(topic, nil)
	if err != nil {
		t.Fatalf("NewPubSubEventPublisher: %v", err)
	}

	event := services.OrderEvent{
		ID:            "evt-1",
		Type:          "order.created",
		OrderID:       "pi_123",
		CurrentStatus: "processing",
		PaymentStatus: "paid",
		Total:         236,
		OccurredAt:    time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
	}
	if err := publisher.PublishOrderEvent(ctx, event); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	var payload services.OrderEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != "pi_123" || payload.Total != 236 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	attrs := messages[0].Attributes
	if attrs["orderId"] != "pi_123" || attrs["type"] != "order.created" || attrs["eventId"] != "evt-1" {
		t.Fatalf("unexpected attributes %v", attrs)
	}

	if err := publisher.PublishDropEvent(ctx, services.DropEvent{ID: "evt-2"}); err != nil {
		t.Fatalf("drop events without a topic must be ignored: %v", err)
	}
	if len(srv.Messages()) != 1 {
		t.Fatal("unexpected drop message")
	}
}

func TestPubSubEventPublisherPublishesDropEvent(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)

	topic, err := client.CreateTopic(ctx, "drops.events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	publisher, err := NewPubSubEventPublisher(nil, topic)
	if err != nil {
		t.Fatalf("NewPubSubEventPublisher: %v", err)
	}

	if err := publisher.PublishDropEvent(ctx, services.DropEvent{
		ID:            "evt-3",
		Type:          "drop.activated",
		DropID:        "summer",
		CurrentStatus: "active",
		Notify:        true,
	}); err != nil {
		t.Fatalf("PublishDropEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if attrs := messages[0].Attributes; attrs["dropId"] != "summer" || attrs["notifySubscribers"] != "true" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}

func TestNewPubSubEventPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubEventPublisher(nil, nil); err == nil {
		t.Fatal("expected error without topics")
	}
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/editionhouse/api/internal/services"
)

// PubSubEventPublisher publishes order and drop domain events to Pub/Sub topics.
type PubSubEventPublisher struct {
	orders  *pubsub.Topic
	drops   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubEventPublisher constructs a publisher. Either topic may be nil, in which case events of
// that kind are dropped silently.
func NewPubSubEventPublisher(orders, drops *pubsub.Topic) (*PubSubEventPublisher, error) {
	if orders == nil && drops == nil {
		return nil, errors.New("pubsub event publisher: at least one topic is required")
	}
	return &PubSubEventPublisher{
		orders:  orders,
		drops:   drops,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent sends an order event and waits for the server acknowledgement.
func (p *PubSubEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.orders == nil {
		return nil
	}
	attrs := make(map[string]string)
	setAttr(attrs, "eventId", event.ID)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "status", event.CurrentStatus)
	_, err := p.publish(ctx, p.orders, event, attrs)
	if err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// PublishDropEvent sends a drop lifecycle event and waits for the server acknowledgement.
func (p *PubSubEventPublisher) PublishDropEvent(ctx context.Context, event services.DropEvent) error {
	if p == nil || p.drops == nil {
		return nil
	}
	attrs := make(map[string]string)
	setAttr(attrs, "eventId", event.ID)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "dropId", event.DropID)
	if event.Notify {
		attrs["notifySubscribers"] = "true"
	}
	_, err := p.publish(ctx, p.drops, event, attrs)
	if err != nil {
		return fmt.Errorf("publish drop event: %w", err)
	}
	return nil
}

func (p *PubSubEventPublisher) publish(ctx context.Context, topic *pubsub.Topic, payload any, attrs map[string]string) (string, error) {
	data, err := p.marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	result := topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	return result.Get(ctx)
}

// Stop flushes pending messages on both topics.
func (p *PubSubEventPublisher) Stop() {
	if p == nil {
		return
	}
	if p.orders != nil {
		p.orders.Stop()
	}
	if p.drops != nil {
		p.drops.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

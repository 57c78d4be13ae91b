package services

import (
	"context"
	"time"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/payments"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination       = domain.Pagination
	Artwork          = domain.Artwork
	Drop             = domain.Drop
	DropStatus       = domain.DropStatus
	Cart             = domain.Cart
	CartLine         = domain.CartLine
	ShippingRate     = domain.ShippingRate
	PricingBreakdown = domain.PricingBreakdown
	PaymentIntent    = domain.PaymentIntent
	Order            = domain.Order
	OrderItem        = domain.OrderItem
	OrderStatus      = domain.OrderStatus
	PaymentStatus    = domain.PaymentStatus
	TimelineEntry    = domain.TimelineEntry
	Customer         = domain.Customer
)

// ShippingService quotes carrier rates. Quote never fails: carrier problems degrade to the
// deterministic fallback table.
type ShippingService interface {
	Quote(ctx context.Context, req QuoteRequest) RateQuote
}

// RateSource is a live carrier rate provider.
type RateSource interface {
	FetchRates(ctx context.Context, req RateSourceRequest) ([]CarrierRate, error)
}

// PricingService re-derives the authoritative price breakdown for a set of cart lines.
type PricingService interface {
	Reconcile(ctx context.Context, req PricingRequest) (PricingResult, error)
}

// PaymentIntentService reconciles pricing and opens a provider payment intent for the total.
type PaymentIntentService interface {
	CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntent, error)
}

// OrderService encapsulates order creation, admin transitions, refunds and webhook updates.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) (domain.CursorPage[Order], error)
	ListCustomerOrders(ctx context.Context, customerID string, pager Pagination) (domain.CursorPage[Order], error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	AddTracking(ctx context.Context, cmd AddTrackingCommand) (Order, error)
	Refund(ctx context.Context, cmd RefundOrderCommand) (Order, error)
	HandlePaymentEvent(ctx context.Context, event payments.WebhookEvent) error
}

// CatalogService serves artworks and drops with derived, time-dependent fields attached.
type CatalogService interface {
	ListArtworks(ctx context.Context, filter domain.ArtworkFilter) ([]ArtworkView, error)
	GetArtwork(ctx context.Context, artworkID string) (ArtworkView, error)
	ListDrops(ctx context.Context, filter DropListFilter) ([]DropView, error)
	GetDrop(ctx context.Context, dropID string) (DropView, error)
}

// CartService manages server-side carts for signed-in users and guests.
type CartService interface {
	Load(ctx context.Context, owner CartOwner) (CartView, error)
	Save(ctx context.Context, owner CartOwner, lines []CartLine) (CartView, error)
	AddItem(ctx context.Context, owner CartOwner, artworkID string, quantity int) (CartView, error)
	UpdateQuantity(ctx context.Context, owner CartOwner, artworkID string, quantity int) (CartView, error)
	RemoveItem(ctx context.Context, owner CartOwner, artworkID string) (CartView, error)
	Clear(ctx context.Context, owner CartOwner) error
	Merge(ctx context.Context, guest CartOwner, user CartOwner) (CartView, error)
}

// DropSyncService persists derived drop statuses and announces transitions.
type DropSyncService interface {
	SyncStatuses(ctx context.Context) (DropSyncResult, error)
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// DropEventPublisher publishes drop lifecycle events.
type DropEventPublisher interface {
	PublishDropEvent(ctx context.Context, event DropEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	OrderID        string         `json:"orderId"`
	CustomerID     string         `json:"customerId,omitempty"`
	PreviousStatus string         `json:"previousStatus,omitempty"`
	CurrentStatus  string         `json:"currentStatus"`
	PaymentStatus  string         `json:"paymentStatus"`
	Total          int64          `json:"total"`
	ActorID        string         `json:"actorId,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// DropEvent announces that a drop moved between lifecycle states.
type DropEvent struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	DropID         string    `json:"dropId"`
	Title          string    `json:"title"`
	PreviousStatus string    `json:"previousStatus"`
	CurrentStatus  string    `json:"currentStatus"`
	Notify         bool      `json:"notifySubscribers"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// QuoteRequest asks for rates between two zips for a package weight.
type QuoteRequest struct {
	OriginZip      string
	DestinationZip string
	WeightOunces   int
}

// RateQuote is the shipping service answer. Source is "usps" or "fallback"; Error carries the
// non-fatal reason a fallback was used.
type RateQuote struct {
	Rates  []ShippingRate
	Source string
	Error  string
}

// RateSourceRequest is the carrier-facing form of QuoteRequest.
type RateSourceRequest struct {
	OriginZip      string
	DestinationZip string
	WeightOunces   int
}

// CarrierRate is a raw carrier row before rounding, naming and de-duplication.
type CarrierRate struct {
	MailClass    string
	Description  string
	Price        float64
	DeliveryDays *int
	DeliveryDate *string
}

// PricingItem is an untrusted {artworkId, quantity} line from the client.
type PricingItem struct {
	ArtworkID string
	Quantity  int
}

// PricingRequest collects the inputs the reconciler trusts only after re-validation.
type PricingRequest struct {
	Items             []PricingItem
	ShippingMailClass string
	DestinationZip    string
}

// PricingResult is the authoritative breakdown plus the resolved artworks and rate.
type PricingResult struct {
	Breakdown PricingBreakdown
	Rate      ShippingRate
	Lines     []PricedLine
}

// PricedLine pairs a request line with the stored artwork it resolved to.
type PricedLine struct {
	Artwork  Artwork
	Quantity int
}

// CreatePaymentIntentCommand is the payment intent endpoint input.
type CreatePaymentIntentCommand struct {
	Items             []PricingItem
	ShippingMailClass string
	DestinationZip    string
	CustomerID        string
	IdempotencyKey    string
}

// CreateOrderCommand carries a fully assembled order from the checkout flow.
type CreateOrderCommand struct {
	ID              string
	PaymentIntentID string
	CustomerID      string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress string
	BillingAddress  string
	Items           []OrderItem
	Subtotal        int64
	Shipping        int64
	Tax             int64
	Total           int64
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	Timeline        []TimelineEntry
	Notes           string
}

// UpdateOrderStatusCommand is an admin status transition.
type UpdateOrderStatusCommand struct {
	OrderID string
	Status  OrderStatus
	Note    string
	ActorID string
}

// AddTrackingCommand attaches carrier tracking and marks the order shipped.
type AddTrackingCommand struct {
	OrderID string
	Carrier string
	Number  string
	URL     string
	ActorID string
}

// RefundOrderCommand refunds an order through the payment provider. A nil Amount refunds the
// remaining balance.
type RefundOrderCommand struct {
	OrderID string
	Amount  *int64
	Reason  string
	ActorID string
}

// ArtworkView is an artwork with its cart ceiling and resolved image URLs.
type ArtworkView struct {
	Artwork
	MaxQuantity int
}

// DropListFilter narrows drop listings. Zero value lists every non-draft drop.
type DropListFilter struct {
	Status        DropStatus
	IncludeDrafts bool
	FeaturedOnly  bool
}

// DropView is a drop with its time-derived status and schedule resolved in the store timezone.
type DropView struct {
	Drop
	DerivedStatus DropStatus
	StartsAt      *time.Time
	EndsAt        *time.Time
	Artworks      []ArtworkView
}

// CartOwner identifies a cart: "user:<uid>" or "guest:<token>".
type CartOwner string

// CartView is a cart with per-line availability and an optional notice from the last change.
type CartView struct {
	Owner     CartOwner
	Lines     []CartLineView
	ItemCount int
	Subtotal  int64
	Notice    *CartNotice
	UpdatedAt time.Time
}

// CartLineView is a cart line with the artwork snapshot used for display.
type CartLineView struct {
	ArtworkID   string
	Quantity    int
	MaxQuantity int
	Artwork     *ArtworkView
}

// CartNotice tells the customer why a change was not applied.
type CartNotice struct {
	ArtworkID   string
	Title       string
	Message     string
	MaxQuantity int
}

// DropSyncResult summarises a status sync run.
type DropSyncResult struct {
	Checked int
	Updated []DropTransition
}

// DropTransition records one drop whose stored status changed.
type DropTransition struct {
	DropID string
	From   DropStatus
	To     DropStatus
}

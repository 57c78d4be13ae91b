package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// ArtworkType classifies how many copies of an artwork exist.
type ArtworkType string

const (
	// ArtworkTypeOriginal is a one-of-a-kind piece.
	ArtworkTypeOriginal ArtworkType = "original"
	// ArtworkTypeLimited is a numbered edition with a finite print run.
	ArtworkTypeLimited ArtworkType = "limited"
	// ArtworkTypeOpen is an open edition without a fixed run.
	ArtworkTypeOpen ArtworkType = "open"
)

// Artwork is the catalog record. Price, SoldOut and EditionRemaining are the only fields the
// pricing pipeline trusts.
type Artwork struct {
	ID               string
	Title            string
	Year             int
	Type             ArtworkType
	Medium           string
	Surface          string
	Height           float64
	Width            float64
	Depth            *float64
	Unit             string
	Price            int64
	CompareAtPrice   *int64
	Currency         string
	EditionSize      *int
	EditionRemaining *int
	Image            string
	Images           []string
	Description      string
	StyleTags        []string
	Framed           bool
	FrameDetails     string
	SoldOut          bool
	Featured         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ArtworkFilter narrows catalog listings.
type ArtworkFilter struct {
	IDs          []string
	FeaturedOnly bool
	Type         ArtworkType
}

// DropStatus is the lifecycle state of a drop.
type DropStatus string

const (
	// DropStatusDraft is only ever stored; it is never derived.
	DropStatusDraft     DropStatus = "draft"
	DropStatusScheduled DropStatus = "scheduled"
	DropStatusActive    DropStatus = "active"
	DropStatusEnded     DropStatus = "ended"
)

// Drop is a scheduled release window for a curated set of artworks. Status is the stored
// administrative value; use DropStatusAt for visibility decisions.
type Drop struct {
	ID                string
	Title             string
	Subtitle          string
	Description       string
	StartDate         string
	StartTime         string
	EndDate           string
	EndTime           string
	HasEndDate        bool
	Status            DropStatus
	Featured          bool
	ArtworkIDs        []string
	HeroImage         string
	NotifySubscribers bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CartLine is a single artwork quantity held in a cart.
type CartLine struct {
	ArtworkID string
	Quantity  int
}

// Cart is the persisted cart for a user or guest.
type Cart struct {
	Owner     string
	Lines     []CartLine
	UpdatedAt time.Time
}

// ShippingRate is a single carrier option offered to the customer.
type ShippingRate struct {
	MailClass     string
	MailClassName string
	Price         int64
	DeliveryDays  *int
	DeliveryDate  *string
}

// PricingBreakdown is the server-computed price split for a checkout attempt.
type PricingBreakdown struct {
	Subtotal       int64
	Shipping       int64
	ShippingMethod string
	Tax            int64
	Total          int64
}

// PaymentIntent is returned to the client to drive the payment widget.
type PaymentIntent struct {
	ClientSecret    string
	PaymentIntentID string
	CalculatedTotal int64
	Breakdown       PricingBreakdown
}

// OrderStatus tracks fulfilment.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaymentStatus tracks money movement independently of fulfilment.
type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// OrderItem is the line snapshot captured at purchase time.
type OrderItem struct {
	ID       string
	Title    string
	Image    string
	Price    int64
	Quantity int
}

// TimelineEntry is an append-only order history record.
type TimelineEntry struct {
	Date  time.Time
	Event string
	Note  string
}

// Order is the finalized purchase record.
type Order struct {
	ID              string
	CustomerID      string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress string
	BillingAddress  string
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	PaymentIntentID string
	Items           []OrderItem
	Subtotal        int64
	Shipping        int64
	Tax             int64
	Total           int64
	RefundedAmount  int64
	TrackingCarrier *string
	TrackingNumber  *string
	TrackingURL     *string
	Timeline        []TimelineEntry
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	CustomerID    string
	Status        []OrderStatus
	PaymentStatus []PaymentStatus
	Pagination    Pagination
}

// Customer holds the aggregate purchase statistics updated with each order.
type Customer struct {
	ID            string
	Name          string
	Email         string
	Phone         string
	JoinedDate    time.Time
	TotalSpent    int64
	OrderCount    int
	LastOrderDate *time.Time
	Status        string
	Tags          []string
	Notes         string
	CreatedAt     time.Time
}

package checkout

import (
	"context"
	"fmt"
	"time"
)

// Gateway is the API surface the checkout flow drives.
type Gateway interface {
	QuoteRates(ctx context.Context, req RatesRequest) (RatesResponse, error)
	CreatePaymentIntent(ctx context.Context, req IntentRequest, idempotencyKey string) (PaymentIntent, error)
	CreateOrder(ctx context.Context, order Order) (Order, error)
}

// RatesRequest mirrors POST /api/shipping/rates.
type RatesRequest struct {
	OriginZip      string         `json:"originZip"`
	DestinationZip string         `json:"destinationZip"`
	Items          []QuantityLine `json:"items"`
}

// QuantityLine is the weight-only form of a cart line.
type QuantityLine struct {
	Quantity int `json:"quantity"`
}

// RatesResponse carries the quote and the non-fatal fallback reason, if any.
type RatesResponse struct {
	Rates []ShippingRate `json:"rates"`
	Error string         `json:"error,omitempty"`
}

// ShippingRate is one delivery option.
type ShippingRate struct {
	MailClass     string  `json:"mailClass"`
	MailClassName string  `json:"mailClassName"`
	Price         int64   `json:"price"`
	DeliveryDays  *int    `json:"deliveryDays"`
	DeliveryDate  *string `json:"deliveryDate"`
}

// IntentRequest mirrors POST /api/stripe/create-payment-intent.
type IntentRequest struct {
	Items             []IntentLine `json:"items"`
	ShippingMailClass string       `json:"shippingMailClass"`
	DestinationZip    string       `json:"destinationZip"`
	CustomerID        string       `json:"customerId,omitempty"`
}

// IntentLine is an {artworkId, quantity} pair.
type IntentLine struct {
	ArtworkID string `json:"artworkId"`
	Quantity  int    `json:"quantity"`
}

// Breakdown is the server-computed price split.
type Breakdown struct {
	Subtotal       int64  `json:"subtotal"`
	Shipping       int64  `json:"shipping"`
	ShippingMethod string `json:"shippingMethod"`
	Tax            int64  `json:"tax"`
	Total          int64  `json:"total"`
}

// PaymentIntent is the gateway answer used to drive the payment widget.
type PaymentIntent struct {
	ClientSecret    string    `json:"clientSecret"`
	PaymentIntentID string    `json:"paymentIntentId"`
	CalculatedTotal int64     `json:"calculatedTotal"`
	Breakdown       Breakdown `json:"breakdown"`
}

// OrderItem is the purchase-time line snapshot.
type OrderItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Image    string `json:"image,omitempty"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// TimelineEntry is one order history record.
type TimelineEntry struct {
	Date  time.Time `json:"date"`
	Event string    `json:"event"`
	Note  string    `json:"note,omitempty"`
}

// Order is the body of POST /api/orders and its response.
type Order struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customerId"`
	CustomerName    string          `json:"customerName"`
	CustomerEmail   string          `json:"customerEmail"`
	CustomerPhone   string          `json:"customerPhone"`
	ShippingAddress string          `json:"shippingAddress"`
	BillingAddress  string          `json:"billingAddress"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"paymentStatus"`
	Items           []OrderItem     `json:"items"`
	Subtotal        int64           `json:"subtotal"`
	Shipping        int64           `json:"shipping"`
	Tax             int64           `json:"tax"`
	Total           int64           `json:"total"`
	Timeline        []TimelineEntry `json:"timeline"`
}

// APIError is a non-2xx answer decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

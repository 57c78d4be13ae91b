package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Step is a stage of the checkout sequence.
type Step string

const (
	StepShipping Step = "shipping"
	StepDelivery Step = "delivery"
	StepPayment  Step = "payment"
	StepReview   Step = "review"
)

var stepOrder = []Step{StepShipping, StepDelivery, StepPayment, StepReview}

const defaultOriginZip = "10001"

var (
	ErrEmptyCart                 = errors.New("Your cart is empty")
	ErrShippingIncomplete        = errors.New("Please fill in all required fields")
	ErrRatesUnavailable          = errors.New("Could not fetch shipping rates")
	ErrNoRateSelected            = errors.New("Please select a shipping method")
	ErrUnknownRate               = errors.New("Selected shipping method is not available")
	ErrWrongStep                 = errors.New("checkout: action not allowed on the current step")
	ErrPaymentNotReady           = errors.New("Payment is not ready yet")
	ErrPaymentFailed             = errors.New("Payment failed")
	ErrOrderCreationAfterPayment = errors.New("Payment successful but order creation failed. Please contact support.")
)

// ShippingInfo is the customer's contact and delivery address.
type ShippingInfo struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	Apartment string `json:"apartment"`
	City      string `json:"city"`
	Country   string `json:"country"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Phone     string `json:"phone"`
}

// Validate returns a field to message map; it is empty when the form is complete.
func (s ShippingInfo) Validate() map[string]string {
	errs := map[string]string{}
	required := []struct{ field, value, message string }{
		{"email", s.Email, "Email is required"},
		{"firstName", s.FirstName, "First name is required"},
		{"lastName", s.LastName, "Last name is required"},
		{"address", s.Address, "Address is required"},
		{"city", s.City, "City is required"},
		{"state", s.State, "State is required"},
		{"zip", s.Zip, "ZIP code is required"},
		{"phone", s.Phone, "Phone is required"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs[r.field] = r.message
		}
	}
	if _, ok := errs["email"]; !ok {
		if _, err := mail.ParseAddress(strings.TrimSpace(s.Email)); err != nil {
			errs["email"] = "Email is invalid"
		}
	}
	return errs
}

// Item is a cart line with the display fields captured on the order.
type Item struct {
	ArtworkID string
	Title     string
	Image     string
	Price     int64
	Quantity  int
}

// PaymentResult is what the payment widget reports after confirmation.
type PaymentResult struct {
	Succeeded bool
	Message   string
}

// FlowConfig configures a checkout Flow.
type FlowConfig struct {
	Gateway    Gateway
	Items      []Item
	CustomerID string
	OriginZip  string
	Clock      func() time.Time
	NewKey     func() string
}

// Flow walks one customer through shipping, delivery, payment and review. It is not safe for
// concurrent use; each step blocks on one round trip and failures never advance the step.
type Flow struct {
	gateway    Gateway
	items      []Item
	customerID string
	originZip  string
	clock      func() time.Time
	newKey     func() string

	step        Step
	shipping    ShippingInfo
	fieldErrors map[string]string
	rates       []ShippingRate
	selected    *ShippingRate
	intent      *PaymentIntent
	order       *Order
	lastErr     error
}

// NewFlow starts a flow on the shipping step.
func NewFlow(cfg FlowConfig) (*Flow, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("checkout: gateway is required")
	}
	if len(cfg.Items) == 0 {
		return nil, ErrEmptyCart
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newKey := cfg.NewKey
	if newKey == nil {
		newKey = func() string { return ulid.Make().String() }
	}
	origin := strings.TrimSpace(cfg.OriginZip)
	if origin == "" {
		origin = defaultOriginZip
	}
	return &Flow{
		gateway:    cfg.Gateway,
		items:      slices.Clone(cfg.Items),
		customerID: strings.TrimSpace(cfg.CustomerID),
		originZip:  origin,
		clock:      func() time.Time { return clock().UTC() },
		newKey:     newKey,
		step:       StepShipping,
	}, nil
}

func (f *Flow) Step() Step                     { return f.step }
func (f *Flow) LastError() error               { return f.lastErr }
func (f *Flow) FieldErrors() map[string]string { return f.fieldErrors }
func (f *Flow) Rates() []ShippingRate          { return slices.Clone(f.rates) }
func (f *Flow) SelectedRate() *ShippingRate    { return f.selected }
func (f *Flow) Intent() *PaymentIntent         { return f.intent }
func (f *Flow) Order() *Order                  { return f.order }

// GoTo rewinds to an earlier step. Moving forward, or staying put, is refused.
func (f *Flow) GoTo(target Step) bool {
	targetIdx := slices.Index(stepOrder, target)
	if targetIdx < 0 || targetIdx >= slices.Index(stepOrder, f.step) || f.step == StepReview {
		return false
	}
	f.step = target
	f.lastErr = nil
	return true
}

// SubmitShipping validates the form, quotes rates and preselects the cheapest one.
func (f *Flow) SubmitShipping(ctx context.Context, info ShippingInfo) error {
	if f.step != StepShipping {
		return f.fail(ErrWrongStep)
	}
	f.fieldErrors = info.Validate()
	if len(f.fieldErrors) > 0 {
		return f.fail(ErrShippingIncomplete)
	}
	f.shipping = info

	lines := make([]QuantityLine, 0, len(f.items))
	for _, item := range f.items {
		lines = append(lines, QuantityLine{Quantity: item.Quantity})
	}
	resp, err := f.gateway.QuoteRates(ctx, RatesRequest{
		OriginZip:      f.originZip,
		DestinationZip: strings.TrimSpace(info.Zip),
		Items:          lines,
	})
	if err != nil {
		return f.fail(fmt.Errorf("%w: %v", ErrRatesUnavailable, err))
	}
	if len(resp.Rates) == 0 {
		return f.fail(ErrRatesUnavailable)
	}

	f.rates = slices.Clone(resp.Rates)
	cheapest := slices.MinFunc(f.rates, func(a, b ShippingRate) int {
		switch {
		case a.Price < b.Price:
			return -1
		case a.Price > b.Price:
			return 1
		}
		return 0
	})
	f.selected = &cheapest
	f.intent = nil
	f.step = StepDelivery
	f.lastErr = nil
	return nil
}

// SelectRate picks one of the quoted rates.
func (f *Flow) SelectRate(mailClass string) error {
	if f.step != StepDelivery {
		return f.fail(ErrWrongStep)
	}
	idx := slices.IndexFunc(f.rates, func(r ShippingRate) bool { return r.MailClass == mailClass })
	if idx < 0 {
		return f.fail(ErrUnknownRate)
	}
	rate := f.rates[idx]
	f.selected = &rate
	f.lastErr = nil
	return nil
}

// ContinueToPayment reconciles the cart on the server and opens a new payment intent. Prices are
// never carried over from an earlier attempt.
func (f *Flow) ContinueToPayment(ctx context.Context) error {
	if f.step != StepDelivery && f.step != StepPayment {
		return f.fail(ErrWrongStep)
	}
	if f.selected == nil {
		return f.fail(ErrNoRateSelected)
	}
	f.step = StepPayment
	f.intent = nil

	lines := make([]IntentLine, 0, len(f.items))
	for _, item := range f.items {
		lines = append(lines, IntentLine{ArtworkID: item.ArtworkID, Quantity: item.Quantity})
	}
	intent, err := f.gateway.CreatePaymentIntent(ctx, IntentRequest{
		Items:             lines,
		ShippingMailClass: f.selected.MailClass,
		DestinationZip:    strings.TrimSpace(f.shipping.Zip),
		CustomerID:        f.customerID,
	}, f.newKey())
	if err != nil {
		return f.fail(err)
	}
	if intent.ClientSecret == "" {
		return f.fail(errors.New("No client secret returned"))
	}
	f.intent = &intent
	f.lastErr = nil
	return nil
}

// CompletePayment records the widget outcome. On success the order is submitted exactly once;
// a failed submission is surfaced as ErrOrderCreationAfterPayment and not retried.
func (f *Flow) CompletePayment(ctx context.Context, result PaymentResult) error {
	if f.step != StepPayment {
		return f.fail(ErrWrongStep)
	}
	if f.intent == nil {
		return f.fail(ErrPaymentNotReady)
	}
	if !result.Succeeded {
		if msg := strings.TrimSpace(result.Message); msg != "" {
			return f.fail(fmt.Errorf("%w: %s", ErrPaymentFailed, msg))
		}
		return f.fail(ErrPaymentFailed)
	}

	order, err := f.assembleOrder()
	if err != nil {
		return f.fail(err)
	}
	created, err := f.gateway.CreateOrder(ctx, order)
	if err != nil {
		f.order = &order
		return f.fail(fmt.Errorf("%w (%v)", ErrOrderCreationAfterPayment, err))
	}
	f.order = &created
	f.step = StepReview
	f.lastErr = nil
	return nil
}

func (f *Flow) assembleOrder() (Order, error) {
	now := f.clock()
	id := f.intent.PaymentIntentID
	if id == "" {
		id = fmt.Sprintf("order_%d", now.UnixMilli())
	}
	address, err := json.Marshal(f.shipping)
	if err != nil {
		return Order{}, fmt.Errorf("checkout: encode address: %w", err)
	}

	items := make([]OrderItem, 0, len(f.items))
	for _, item := range f.items {
		items = append(items, OrderItem{
			ID:       item.ArtworkID,
			Title:    item.Title,
			Image:    item.Image,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}
	breakdown := f.intent.Breakdown
	return Order{
		ID:              id,
		CustomerID:      f.customerID,
		CustomerName:    strings.TrimSpace(f.shipping.FirstName + " " + f.shipping.LastName),
		CustomerEmail:   strings.TrimSpace(f.shipping.Email),
		CustomerPhone:   strings.TrimSpace(f.shipping.Phone),
		ShippingAddress: string(address),
		BillingAddress:  string(address),
		Status:          "processing",
		PaymentStatus:   "paid",
		Items:           items,
		Subtotal:        breakdown.Subtotal,
		Shipping:        breakdown.Shipping,
		Tax:             breakdown.Tax,
		Total:           breakdown.Total,
		Timeline: []TimelineEntry{{
			Date:  now,
			Event: "Order placed",
			Note:  "Payment confirmed via Stripe",
		}},
	}, nil
}

func (f *Flow) fail(err error) error {
	f.lastErr = err
	return err
}

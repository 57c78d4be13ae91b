package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/payments"
	"github.com/editionhouse/api/internal/platform/pagination"
	"github.com/editionhouse/api/internal/platform/textutil"
	"github.com/editionhouse/api/internal/repositories"
)

const (
	orderEventCreated          = "order.created"
	orderEventStatusChanged    = "order.status_changed"
	orderEventTrackingAdded    = "order.tracking_added"
	orderEventRefunded         = "order.refunded"
	orderEventPaymentConfirmed = "order.payment_confirmed"

	maxNameLength    = 200
	maxAddressLength = 2000
	maxNoteLength    = 2000
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates a duplicate order id.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderPaymentNotConfirmed indicates the provider does not report the intent as paid for the order total.
	ErrOrderPaymentNotConfirmed = errors.New("order: payment not confirmed")
	// ErrOrderPaymentProvider wraps provider failures during verification or refunds.
	ErrOrderPaymentProvider = errors.New("order: payment provider unavailable")

	errOrderRefundUnavailable = errors.New("order: order has no refundable payment")
)

// Orders in these statuses no longer leave the warehouse, so tracking cannot ship them.
var unshippableOrderStatuses = []OrderStatus{
	domain.OrderStatusDelivered,
	domain.OrderStatusCancelled,
	domain.OrderStatusRefunded,
}

var knownOrderStatuses = []OrderStatus{
	domain.OrderStatusPending,
	domain.OrderStatusProcessing,
	domain.OrderStatusShipped,
	domain.OrderStatusDelivered,
	domain.OrderStatusCancelled,
	domain.OrderStatusRefunded,
}

var knownPaymentStatuses = []PaymentStatus{
	domain.PaymentStatusPending,
	domain.PaymentStatusPaid,
	domain.PaymentStatusRefunded,
	domain.PaymentStatusPartiallyRefunded,
}

var trackingURLTemplates = map[string]string{
	"usps":  "https://tools.usps.com/go/TrackConfirmAction?tLabels=%s",
	"ups":   "https://www.ups.com/track?tracknum=%s",
	"fedex": "https://www.fedex.com/fedextrack/?trknbr=%s",
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Payments      payments.Provider
	Events        OrderEventPublisher
	VerifyPayment bool
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	payments payments.Provider
	events   OrderEventPublisher
	verify   bool
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.VerifyPayment && deps.Payments == nil {
		return nil, errors.New("order service: payment provider is required when verification is enabled")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:   deps.Orders,
		payments: deps.Payments,
		events:   deps.Events,
		verify:   deps.VerifyPayment,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	order, err := s.buildOrder(cmd)
	if err != nil {
		return Order{}, err
	}

	if s.verify {
		if err := s.verifyPayment(ctx, &order); err != nil {
			return Order{}, err
		}
	}

	now := s.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	if len(order.Timeline) == 0 {
		order.Timeline = []TimelineEntry{{Date: now, Event: "Order placed"}}
	}

	if err := s.orders.CreateWithCustomerStats(ctx, order, now); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, order, orderEventCreated, "", "", nil)
	return order, nil
}

func (s *orderService) buildOrder(cmd CreateOrderCommand) (Order, error) {
	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	intentID := strings.TrimSpace(cmd.PaymentIntentID)
	if intentID != "" && intentID != id {
		return Order{}, fmt.Errorf("%w: payment intent %s must be the order id", ErrOrderInvalidInput, intentID)
	}
	name := textutil.CleanText(cmd.CustomerName, maxNameLength)
	if name == "" {
		return Order{}, fmt.Errorf("%w: customer name is required", ErrOrderInvalidInput)
	}
	email := textutil.NormalizeEmail(cmd.CustomerEmail)
	if !strings.Contains(email, "@") {
		return Order{}, fmt.Errorf("%w: customer email is invalid", ErrOrderInvalidInput)
	}
	shipping := textutil.CleanMultiline(cmd.ShippingAddress, maxAddressLength)
	if shipping == "" {
		return Order{}, fmt.Errorf("%w: shipping address is required", ErrOrderInvalidInput)
	}
	billing := textutil.CleanMultiline(cmd.BillingAddress, maxAddressLength)
	if billing == "" {
		billing = shipping
	}

	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	items := make([]OrderItem, 0, len(cmd.Items))
	for i, item := range cmd.Items {
		if strings.TrimSpace(item.ID) == "" {
			return Order{}, fmt.Errorf("%w: item %d requires an artwork id", ErrOrderInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: item %d quantity must be positive", ErrOrderInvalidInput, i)
		}
		if item.Price < 0 {
			return Order{}, fmt.Errorf("%w: item %d price must not be negative", ErrOrderInvalidInput, i)
		}
		items = append(items, OrderItem{
			ID:       strings.TrimSpace(item.ID),
			Title:    textutil.CleanText(item.Title, maxNameLength),
			Image:    strings.TrimSpace(item.Image),
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}

	if cmd.Subtotal < 0 || cmd.Shipping < 0 || cmd.Tax < 0 {
		return Order{}, fmt.Errorf("%w: amounts must not be negative", ErrOrderInvalidInput)
	}
	if cmd.Subtotal > domain.MaxOrderAmount || cmd.Shipping > domain.MaxOrderAmount ||
		cmd.Tax > domain.MaxOrderAmount || cmd.Total > domain.MaxOrderAmount {
		return Order{}, fmt.Errorf("%w: amounts out of range", ErrOrderInvalidInput)
	}
	if cmd.Total != cmd.Subtotal+cmd.Shipping+cmd.Tax {
		return Order{}, fmt.Errorf("%w: total must equal subtotal + shipping + tax", ErrOrderInvalidInput)
	}

	status := cmd.Status
	if status == "" {
		status = domain.OrderStatusPending
	}
	if !slices.Contains(knownOrderStatuses, status) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
	}
	paymentStatus := cmd.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = domain.PaymentStatusPending
	}
	if !slices.Contains(knownPaymentStatuses, paymentStatus) {
		return Order{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, paymentStatus)
	}

	timeline := make([]TimelineEntry, 0, len(cmd.Timeline))
	for _, entry := range cmd.Timeline {
		event := textutil.CleanText(entry.Event, maxNameLength)
		if event == "" {
			continue
		}
		timeline = append(timeline, TimelineEntry{
			Date:  entry.Date.UTC(),
			Event: event,
			Note:  textutil.CleanText(entry.Note, maxNoteLength),
		})
	}

	return Order{
		ID:              id,
		CustomerID:      strings.TrimSpace(cmd.CustomerID),
		CustomerName:    name,
		CustomerEmail:   email,
		CustomerPhone:   textutil.CleanText(cmd.CustomerPhone, 40),
		ShippingAddress: shipping,
		BillingAddress:  billing,
		Status:          status,
		PaymentStatus:   paymentStatus,
		PaymentIntentID: intentID,
		Items:           items,
		Subtotal:        cmd.Subtotal,
		Shipping:        cmd.Shipping,
		Tax:             cmd.Tax,
		Total:           cmd.Total,
		Timeline:        timeline,
		Notes:           textutil.CleanMultiline(cmd.Notes, maxNoteLength),
	}, nil
}

// verifyPayment confirms with the provider that the intent behind the order succeeded for
// exactly the order total. Orders without a provider intent cannot claim to be paid.
func (s *orderService) verifyPayment(ctx context.Context, order *Order) error {
	intentID := order.PaymentIntentID
	if intentID == "" && payments.IsIntentID(order.ID) {
		intentID = order.ID
	}
	if intentID == "" {
		order.PaymentStatus = domain.PaymentStatusPending
		return nil
	}

	details, err := s.payments.LookupPayment(ctx, payments.LookupRequest{IntentID: intentID})
	if err != nil {
		s.logger(ctx, "order.payment_verification_failed", map[string]any{
			"order": order.ID,
			"error": err,
		})
		return fmt.Errorf("%w: %v", ErrOrderPaymentProvider, err)
	}
	if details.Status != payments.StatusSucceeded {
		return fmt.Errorf("%w: payment intent %s is %s", ErrOrderPaymentNotConfirmed, intentID, details.Status)
	}
	if details.Amount != payments.MinorUnits(order.Total) {
		return fmt.Errorf("%w: payment intent amount %d does not match order total %d", ErrOrderPaymentNotConfirmed, details.Amount, order.Total)
	}
	order.PaymentIntentID = intentID
	order.PaymentStatus = domain.PaymentStatusPaid
	return nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter domain.OrderFilter) (domain.CursorPage[Order], error) {
	for _, status := range filter.Status {
		if !slices.Contains(knownOrderStatuses, status) {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
		}
	}
	for _, status := range filter.PaymentStatus {
		if !slices.Contains(knownPaymentStatuses, status) {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, status)
		}
	}
	page, err := s.orders.List(ctx, filter)
	if errors.Is(err, pagination.ErrInvalidPageToken) {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) ListCustomerOrders(ctx context.Context, customerID string, pager Pagination) (domain.CursorPage[Order], error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	return s.ListOrders(ctx, domain.OrderFilter{CustomerID: customerID, Pagination: pager})
}

func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	if cmd.Status == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}
	if !slices.Contains(knownOrderStatuses, cmd.Status) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}
	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}

	prev := order.Status
	if prev == cmd.Status {
		return Order{}, fmt.Errorf("%w: order is already %s", ErrOrderInvalidState, prev)
	}

	now := s.now()
	order.Status = cmd.Status
	order.UpdatedAt = now
	order.Timeline = append(order.Timeline, TimelineEntry{
		Date:  now,
		Event: "Status changed to " + string(cmd.Status),
		Note:  textutil.CleanText(cmd.Note, maxNoteLength),
	})

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	s.publishEvent(ctx, order, orderEventStatusChanged, prev, cmd.ActorID, nil)
	return order, nil
}

func (s *orderService) AddTracking(ctx context.Context, cmd AddTrackingCommand) (Order, error) {
	carrier := strings.TrimSpace(cmd.Carrier)
	number := strings.TrimSpace(cmd.Number)
	if carrier == "" || number == "" {
		return Order{}, fmt.Errorf("%w: carrier and tracking number are required", ErrOrderInvalidInput)
	}
	trackingURL := strings.TrimSpace(cmd.URL)
	if trackingURL == "" {
		if template, ok := trackingURLTemplates[strings.ToLower(carrier)]; ok {
			trackingURL = fmt.Sprintf(template, url.QueryEscape(number))
		}
	} else if parsed, err := url.Parse(trackingURL); err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return Order{}, fmt.Errorf("%w: tracking url must be http(s)", ErrOrderInvalidInput)
	}

	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	prev := order.Status
	if slices.Contains(unshippableOrderStatuses, prev) {
		return Order{}, fmt.Errorf("%w: cannot ship order in status %s", ErrOrderInvalidState, prev)
	}

	now := s.now()
	order.TrackingCarrier = valuePtr(carrier)
	order.TrackingNumber = valuePtr(number)
	order.TrackingURL = optionalString(trackingURL)
	order.Status = domain.OrderStatusShipped
	order.UpdatedAt = now
	order.Timeline = append(order.Timeline, TimelineEntry{
		Date:  now,
		Event: "Shipped",
		Note:  fmt.Sprintf("%s tracking %s", carrier, number),
	})

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	s.publishEvent(ctx, order, orderEventTrackingAdded, prev, cmd.ActorID, map[string]any{
		"carrier":        carrier,
		"trackingNumber": number,
	})
	return order, nil
}

func (s *orderService) Refund(ctx context.Context, cmd RefundOrderCommand) (Order, error) {
	if s.payments == nil {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderPaymentProvider, payments.ErrNotConfigured)
	}
	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}

	intentID := order.PaymentIntentID
	if intentID == "" && payments.IsIntentID(order.ID) {
		intentID = order.ID
	}
	if intentID == "" || (order.PaymentStatus != domain.PaymentStatusPaid && order.PaymentStatus != domain.PaymentStatusPartiallyRefunded) {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidState, errOrderRefundUnavailable)
	}

	remaining := order.Total - order.RefundedAmount
	amount := remaining
	if cmd.Amount != nil {
		if *cmd.Amount <= 0 {
			return Order{}, fmt.Errorf("%w: refund amount must be positive", ErrOrderInvalidInput)
		}
		amount = min(*cmd.Amount, remaining)
	}
	if amount <= 0 {
		return Order{}, fmt.Errorf("%w: nothing left to refund", ErrOrderInvalidState)
	}

	minor := payments.MinorUnits(amount)
	reason := textutil.CleanText(cmd.Reason, maxNoteLength)
	if _, err := s.payments.Refund(ctx, payments.RefundRequest{
		IntentID:       intentID,
		Amount:         &minor,
		Reason:         reason,
		IdempotencyKey: fmt.Sprintf("refund-%s-%d", order.ID, order.RefundedAmount+amount),
		Metadata:       map[string]string{"orderId": order.ID},
	}); err != nil {
		s.logger(ctx, "order.refund_failed", map[string]any{
			"order": order.ID,
			"error": err,
		})
		return Order{}, fmt.Errorf("%w: %v", ErrOrderPaymentProvider, err)
	}

	now := s.now()
	prev := order.Status
	s.applyRefund(&order, order.RefundedAmount+amount)
	order.UpdatedAt = now
	order.Timeline = append(order.Timeline, TimelineEntry{
		Date:  now,
		Event: fmt.Sprintf("Refunded $%d", amount),
		Note:  reason,
	})

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	s.publishEvent(ctx, order, orderEventRefunded, prev, cmd.ActorID, map[string]any{
		"amount": amount,
	})
	return order, nil
}

// HandlePaymentEvent applies verified provider webhooks. Events for unknown orders are ignored
// because the webhook can arrive before the checkout flow submits the order.
func (s *orderService) HandlePaymentEvent(ctx context.Context, event payments.WebhookEvent) error {
	if event.IntentID == "" {
		return nil
	}
	switch event.Type {
	case payments.EventPaymentSucceeded, payments.EventChargeRefunded:
	default:
		return nil
	}

	order, err := s.orders.FindByID(ctx, event.IntentID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			s.logger(ctx, "order.webhook.unmatched", map[string]any{
				"type":          event.Type,
				"paymentIntent": event.IntentID,
			})
			return nil
		}
		return s.mapRepositoryError(err)
	}

	now := s.now()
	prev := order.Status
	eventType := ""
	switch event.Type {
	case payments.EventPaymentSucceeded:
		if order.PaymentStatus != domain.PaymentStatusPending {
			return nil
		}
		if event.Amount != payments.MinorUnits(order.Total) {
			s.logger(ctx, "order.webhook.amount_mismatch", map[string]any{
				"order":  order.ID,
				"amount": event.Amount,
				"total":  order.Total,
			})
			return nil
		}
		order.PaymentStatus = domain.PaymentStatusPaid
		order.PaymentIntentID = event.IntentID
		order.Timeline = append(order.Timeline, TimelineEntry{Date: now, Event: "Payment confirmed", Note: "Stripe webhook"})
		eventType = orderEventPaymentConfirmed
	case payments.EventChargeRefunded:
		refunded := event.AmountRefunded / 100
		if refunded <= order.RefundedAmount {
			return nil
		}
		s.applyRefund(&order, refunded)
		order.Timeline = append(order.Timeline, TimelineEntry{Date: now, Event: fmt.Sprintf("Refunded $%d", refunded), Note: "Stripe webhook"})
		eventType = orderEventRefunded
	}
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return s.mapRepositoryError(err)
	}
	s.publishEvent(ctx, order, eventType, prev, "stripe", nil)
	return nil
}

func (s *orderService) applyRefund(order *Order, refunded int64) {
	order.RefundedAmount = min(refunded, order.Total)
	if order.RefundedAmount >= order.Total {
		order.PaymentStatus = domain.PaymentStatusRefunded
		order.Status = domain.OrderStatusRefunded
		return
	}
	order.PaymentStatus = domain.PaymentStatusPartiallyRefunded
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, order Order, eventType string, prevStatus OrderStatus, actor string, metadata map[string]any) {
	if s.events == nil {
		return
	}
	event := OrderEvent{
		ID:             s.newID(),
		Type:           eventType,
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		Total:          order.Total,
		ActorID:        strings.TrimSpace(actor),
		OccurredAt:     s.now(),
		Metadata:       metadata,
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish_failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

func valuePtr[T any](v T) *T {
	return &v
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

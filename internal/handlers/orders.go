package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/platform/auth"
	"github.com/editionhouse/api/internal/platform/httpx"
	"github.com/editionhouse/api/internal/platform/pagination"
	"github.com/editionhouse/api/internal/platform/requestctx"
	"github.com/editionhouse/api/internal/services"
)

const (
	maxOrderBodySize = 128 * 1024

	invalidOrderMessage = "Invalid order data"
)

type createOrderRequest struct {
	ID              string                `json:"id"`
	PaymentIntentID string                `json:"paymentIntentId"`
	CustomerID      string                `json:"customerId"`
	CustomerName    string                `json:"customerName"`
	CustomerEmail   string                `json:"customerEmail"`
	CustomerPhone   string                `json:"customerPhone"`
	ShippingAddress string                `json:"shippingAddress"`
	BillingAddress  string                `json:"billingAddress"`
	Status          string                `json:"status"`
	PaymentStatus   string                `json:"paymentStatus"`
	Items           []orderItemRequest    `json:"items"`
	Subtotal        int64                 `json:"subtotal"`
	Shipping        int64                 `json:"shipping"`
	Tax             int64                 `json:"tax"`
	Total           int64                 `json:"total"`
	Timeline        []timelineItemRequest `json:"timeline"`
	Notes           string                `json:"notes"`
}

type orderItemRequest struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Image    string `json:"image"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type timelineItemRequest struct {
	Date  time.Time `json:"date"`
	Event string    `json:"event"`
	Note  string    `json:"note"`
}

// OrderHandlers exposes order intake and customer order history.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /orders and /customers/{customerId}/orders endpoints. Reading a single
// order needs no session; without one the response omits customer contact details.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders", h.createOrder)
	single := r.With()
	if h.authn != nil {
		single = r.With(h.authn.OptionalFirebaseAuth())
	}
	single.Get("/orders/{orderID}", h.getOrder)

	customers := r.With()
	if h.authn != nil {
		customers = r.With(h.authn.RequireFirebaseAuth())
	}
	customers.Get("/customers/{customerID}/orders", h.listCustomerOrders)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", invalidOrderMessage, http.StatusBadRequest))
		return
	}

	order, err := h.orders.CreateOrder(ctx, req.toCommand())
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (req createOrderRequest) toCommand() services.CreateOrderCommand {
	items := make([]services.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderItem{
			ID:       item.ID,
			Title:    item.Title,
			Image:    item.Image,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}
	timeline := make([]services.TimelineEntry, 0, len(req.Timeline))
	for _, entry := range req.Timeline {
		timeline = append(timeline, services.TimelineEntry{Date: entry.Date, Event: entry.Event, Note: entry.Note})
	}
	return services.CreateOrderCommand{
		ID:              req.ID,
		PaymentIntentID: req.PaymentIntentID,
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Items:           items,
		Subtotal:        req.Subtotal,
		Shipping:        req.Shipping,
		Tax:             req.Tax,
		Total:           req.Total,
		Status:          domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		PaymentStatus:   domain.PaymentStatus(strings.ToLower(strings.TrimSpace(req.PaymentStatus))),
		Timeline:        timeline,
		Notes:           req.Notes,
	}
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	if !canViewCustomerDetails(ctx, order) {
		writeJSONResponse(w, http.StatusOK, buildPublicOrderPayload(order))
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func canViewCustomerDetails(ctx context.Context, order services.Order) bool {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || identity.UID == "" {
		return false
	}
	if order.CustomerID != "" && identity.UID == order.CustomerID {
		return true
	}
	return identity.HasAnyRole(auth.RoleAdmin, auth.RoleStaff)
}

func (h *OrderHandlers) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	customerID := strings.TrimSpace(chi.URLParam(r, "customerID"))
	if customerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "customer id is required", http.StatusBadRequest))
		return
	}
	if customerID != identity.UID && !identity.HasAnyRole(auth.RoleAdmin, auth.RoleStaff) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "cannot read another customer's orders", http.StatusForbidden))
		return
	}

	params, err := pagination.FromRequest(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListCustomerOrders(ctx, customerID, services.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", invalidOrderMessage, http.StatusBadRequest).
			WithDetails(map[string]any{"detail": strings.TrimPrefix(err.Error(), services.ErrOrderInvalidInput.Error()+": ")}))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "Order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_exists", "Order already exists", http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderPaymentNotConfirmed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_confirmed", "Payment has not been confirmed for this order", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrOrderPaymentProvider):
		httpx.WriteError(ctx, w, httpx.NewError("payment_provider_unavailable", "Payment provider unavailable, please retry", http.StatusServiceUnavailable))
	default:
		requestctx.Logger(ctx).Error("order request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/platform/auth"
	"github.com/editionhouse/api/internal/platform/httpx"
	"github.com/editionhouse/api/internal/platform/pagination"
	"github.com/editionhouse/api/internal/services"
)

const maxAdminOrderBodySize = 8 * 1024

// AdminOrderHandlers exposes fulfilment operations to staff.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewAdminOrderHandlers constructs admin order handlers.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *AdminOrderHandlers {
	return &AdminOrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /admin/orders endpoints. Every route requires the admin or staff role.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin, auth.RoleStaff))
	}
	r.Get("/orders", h.listOrders)
	r.Patch("/orders/{orderID}/status", h.updateStatus)
	r.Post("/orders/{orderID}/tracking", h.addTracking)
	r.Post("/orders/{orderID}:refund", h.refund)
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type addTrackingRequest struct {
	Carrier string `json:"carrier"`
	Number  string `json:"trackingNumber"`
	URL     string `json:"trackingUrl"`
}

type refundOrderRequest struct {
	Amount *int64 `json:"amount"`
	Reason string `json:"reason"`
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}

	params, err := pagination.FromRequest(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	query := r.URL.Query()
	filter := domain.OrderFilter{
		CustomerID: strings.TrimSpace(query.Get("customerId")),
		Pagination: services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken},
	}
	for _, status := range splitQueryValues(query["status"]) {
		filter.Status = append(filter.Status, domain.OrderStatus(status))
	}
	for _, status := range splitQueryValues(query["paymentStatus"]) {
		filter.PaymentStatus = append(filter.PaymentStatus, domain.PaymentStatus(status))
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}
	var req updateOrderStatusRequest
	if !decodeAdminBody(w, r, &req) {
		return
	}
	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Status:  domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Note:    req.Note,
		ActorID: actorID(r),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) addTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}
	var req addTrackingRequest
	if !decodeAdminBody(w, r, &req) {
		return
	}
	order, err := h.orders.AddTracking(ctx, services.AddTrackingCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Carrier: req.Carrier,
		Number:  req.Number,
		URL:     req.URL,
		ActorID: actorID(r),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) refund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}
	var req refundOrderRequest
	if err := decodeJSONBody(r, maxAdminOrderBodySize, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeAdminBodyError(w, r, err)
		return
	}
	if req.Amount != nil && *req.Amount <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "refund amount must be greater than 0", http.StatusBadRequest))
		return
	}
	order, err := h.orders.Refund(ctx, services.RefundOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Amount:  req.Amount,
		Reason:  req.Reason,
		ActorID: actorID(r),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) ready(w http.ResponseWriter, r *http.Request) bool {
	if h.orders == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func decodeAdminBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSONBody(r, maxAdminOrderBodySize, dst); err != nil {
		writeAdminBodyError(w, r, err)
		return false
	}
	return true
}

func writeAdminBodyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(r.Context(), w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
		return
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "invalid request body", http.StatusBadRequest))
}

func actorID(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.UID
	}
	return ""
}

func splitQueryValues(values []string) []string {
	var out []string
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

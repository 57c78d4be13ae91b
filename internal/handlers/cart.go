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
	"github.com/editionhouse/api/internal/platform/requestctx"
	"github.com/editionhouse/api/internal/services"
)

const (
	maxCartBodySize = 32 * 1024
	cartTokenHeader = "X-Cart-Token"
)

// CartHandlers exposes the server-side cart for signed-in customers and guests.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs a new CartHandlers instance.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes registers the /cart endpoints. A bearer token selects the customer's cart; otherwise
// the X-Cart-Token header names a guest cart.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.OptionalFirebaseAuth())
	}
	r.Get("/cart", h.getCart)
	r.Put("/cart", h.replaceCart)
	r.Delete("/cart", h.clearCart)
	r.Post("/cart/items", h.addItem)
	r.Patch("/cart/items/{artworkID}", h.updateItem)
	r.Delete("/cart/items/{artworkID}", h.removeItem)
	r.Post("/cart:merge", h.mergeCart)
}

type cartLineRequest struct {
	ArtworkID string `json:"artworkId"`
	Quantity  int    `json:"quantity"`
}

type replaceCartRequest struct {
	Items []cartLineRequest `json:"items"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type mergeCartRequest struct {
	GuestToken string `json:"guestToken"`
}

type cartLinePayload struct {
	ArtworkID   string          `json:"artworkId"`
	Quantity    int             `json:"quantity"`
	MaxQuantity int             `json:"maxQuantity"`
	Artwork     *artworkPayload `json:"artwork,omitempty"`
}

type cartNoticePayload struct {
	ArtworkID   string `json:"artworkId"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	MaxQuantity int    `json:"maxQuantity"`
}

type cartPayload struct {
	Items     []cartLinePayload  `json:"items"`
	ItemCount int                `json:"itemCount"`
	Subtotal  int64              `json:"subtotal"`
	Notice    *cartNoticePayload `json:"notice,omitempty"`
	UpdatedAt *time.Time         `json:"updatedAt,omitempty"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.resolveOwner(w, r)
	if !ok {
		return
	}
	view, err := h.carts.Load(ctx, owner)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(view))
}

func (h *CartHandlers) replaceCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.resolveOwner(w, r)
	if !ok {
		return
	}
	var req replaceCartRequest
	if !decodeCartBody(w, r, &req) {
		return
	}
	lines := make([]services.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity > domain.UnboundedQuantity {
			writeCartQuantityError(ctx, w)
			return
		}
		lines = append(lines, services.CartLine{ArtworkID: strings.TrimSpace(item.ArtworkID), Quantity: item.Quantity})
	}
	view, err := h.carts.Save(ctx, owner, lines)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(view))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.resolveOwner(w, r)
	if !ok {
		return
	}
	if err := h.carts.Clear(ctx, owner); err != nil {
		writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.resolveOwner(w, r)
	if !ok {
		return
	}
	var req cartLineRequest
	if !decodeCartBody(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity > domain.UnboundedQuantity {
		writeCartQuantityError(ctx, w)
		return
	}
	view, err := h.carts.AddItem(ctx, owner, strings.TrimSpace(req.ArtworkID), req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(view))
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.resolveOwner(w, r)
	if !ok {
		return
	}
	var req updateCartItemRequest
	if !decodeCartBody(w, r, &req) {
		return
	}
	if req.Quantity > domain.UnboundedQuantity {
		writeCartQuantityError(ctx, w)
		return
	}
	view, err := h.carts.UpdateQuantity(ctx, owner, strings.TrimSpace(chi.URLParam(r, "artworkID")), req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(view))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.resolveOwner(w, r)
	if !ok {
		return
	}
	view, err := h.carts.RemoveItem(ctx, owner, strings.TrimSpace(chi.URLParam(r, "artworkID")))
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(view))
}

// mergeCart folds the guest cart named by X-Cart-Token (or guestToken in the body) into the
// signed-in customer's cart.
func (h *CartHandlers) mergeCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	token := strings.TrimSpace(r.Header.Get(cartTokenHeader))
	if token == "" {
		var req mergeCartRequest
		if !decodeCartBody(w, r, &req) {
			return
		}
		token = strings.TrimSpace(req.GuestToken)
	}
	if token == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "guest cart token is required", http.StatusBadRequest))
		return
	}

	view, err := h.carts.Merge(ctx, services.GuestCartOwner(token), services.UserCartOwner(identity.UID))
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(view))
}

func (h *CartHandlers) resolveOwner(w http.ResponseWriter, r *http.Request) (services.CartOwner, bool) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok && strings.TrimSpace(identity.UID) != "" {
		return services.UserCartOwner(identity.UID), true
	}
	token := strings.TrimSpace(r.Header.Get(cartTokenHeader))
	if token == "" {
		httpx.WriteError(ctx, w, httpx.NewError("cart_token_required", "sign in or provide a cart token", http.StatusUnauthorized))
		return "", false
	}
	owner := services.GuestCartOwner(token)
	if err := owner.Validate(); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid cart token", http.StatusBadRequest))
		return "", false
	}
	return owner, true
}

func writeCartQuantityError(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("invalid_quantity", "quantity exceeds the per-line maximum", http.StatusBadRequest).
		WithDetails(map[string]any{"max": domain.UnboundedQuantity}))
}

func decodeCartBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSONBody(r, maxCartBodySize, dst); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(r.Context(), w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
			return false
		}
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "invalid cart request", http.StatusBadRequest))
		return false
	}
	return true
}

func buildCartPayload(view services.CartView) cartPayload {
	items := make([]cartLinePayload, 0, len(view.Lines))
	for _, line := range view.Lines {
		payload := cartLinePayload{
			ArtworkID:   line.ArtworkID,
			Quantity:    line.Quantity,
			MaxQuantity: line.MaxQuantity,
		}
		if line.Artwork != nil {
			artwork := buildArtworkPayload(*line.Artwork)
			payload.Artwork = &artwork
		}
		items = append(items, payload)
	}
	out := cartPayload{
		Items:     items,
		ItemCount: view.ItemCount,
		Subtotal:  view.Subtotal,
	}
	if view.Notice != nil {
		out.Notice = &cartNoticePayload{
			ArtworkID:   view.Notice.ArtworkID,
			Title:       view.Notice.Title,
			Message:     view.Notice.Message,
			MaxQuantity: view.Notice.MaxQuantity,
		}
	}
	if !view.UpdatedAt.IsZero() {
		updated := view.UpdatedAt.UTC()
		out.UpdatedAt = &updated
	}
	return out
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid cart request", http.StatusBadRequest))
	case errors.Is(err, services.ErrCartArtworkNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("artwork_not_found", "Artwork not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "Item is not in the cart", http.StatusNotFound))
	default:
		requestctx.Logger(ctx).Error("cart request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to update cart", http.StatusInternalServerError))
	}
}

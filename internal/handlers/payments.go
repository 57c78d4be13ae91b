package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/payments"
	"github.com/editionhouse/api/internal/platform/httpx"
	"github.com/editionhouse/api/internal/platform/requestctx"
	"github.com/editionhouse/api/internal/services"
)

const (
	maxPaymentIntentBodySize = 32 * 1024
	maxWebhookBodySize       = 256 * 1024
	defaultIdempotencyHeader = "Idempotency-Key"

	invalidPaymentRequestMessage = "Invalid payment request data"
	paymentIntentFailedMessage   = "Failed to create payment intent"
)

// WebhookVerifier authenticates and decodes provider webhooks.
type WebhookVerifier interface {
	Verify(payload []byte, signature string) (payments.WebhookEvent, error)
}

// PaymentHandlersDeps bundles the collaborators of the /stripe endpoints.
type PaymentHandlersDeps struct {
	Intents           services.PaymentIntentService
	Orders            services.OrderService
	Webhooks          WebhookVerifier
	PublishableKey    string
	IdempotencyHeader string
}

// PaymentHandlers exposes payment intent creation, client config and the provider webhook.
type PaymentHandlers struct {
	intents        services.PaymentIntentService
	orders         services.OrderService
	webhooks       WebhookVerifier
	publishableKey string
	keyHeader      string
}

// NewPaymentHandlers constructs payment handlers.
func NewPaymentHandlers(deps PaymentHandlersDeps) *PaymentHandlers {
	header := strings.TrimSpace(deps.IdempotencyHeader)
	if header == "" {
		header = defaultIdempotencyHeader
	}
	return &PaymentHandlers{
		intents:        deps.Intents,
		orders:         deps.Orders,
		webhooks:       deps.Webhooks,
		publishableKey: strings.TrimSpace(deps.PublishableKey),
		keyHeader:      header,
	}
}

// Routes registers the /stripe endpoints.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe/create-payment-intent", h.createPaymentIntent)
	r.Get("/stripe/config", h.config)
	r.Post("/stripe/webhook", h.webhook)
}

type paymentIntentRequest struct {
	Items             []paymentIntentItem `json:"items"`
	ShippingMailClass string              `json:"shippingMailClass"`
	DestinationZip    string              `json:"destinationZip"`
	CustomerID        string              `json:"customerId"`
}

type paymentIntentItem struct {
	ArtworkID string `json:"artworkId"`
	Quantity  int    `json:"quantity"`
}

type paymentIntentResponse struct {
	ClientSecret    string           `json:"clientSecret"`
	PaymentIntentID string           `json:"paymentIntentId"`
	CalculatedTotal int64            `json:"calculatedTotal"`
	Breakdown       breakdownPayload `json:"breakdown"`
}

type paymentConfigResponse struct {
	PublishableKey string `json:"publishableKey"`
}

type webhookResponse struct {
	Received bool `json:"received"`
}

func (h *PaymentHandlers) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.intents == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req paymentIntentRequest
	if err := decodeJSONBody(r, maxPaymentIntentBodySize, &req); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", invalidPaymentRequestMessage, http.StatusBadRequest))
		return
	}
	if !validPaymentIntentRequest(req) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", invalidPaymentRequestMessage, http.StatusBadRequest))
		return
	}

	items := make([]services.PricingItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.PricingItem{ArtworkID: strings.TrimSpace(item.ArtworkID), Quantity: item.Quantity})
	}

	intent, err := h.intents.CreatePaymentIntent(ctx, services.CreatePaymentIntentCommand{
		Items:             items,
		ShippingMailClass: strings.TrimSpace(req.ShippingMailClass),
		DestinationZip:    strings.TrimSpace(req.DestinationZip),
		CustomerID:        strings.TrimSpace(req.CustomerID),
		IdempotencyKey:    strings.TrimSpace(r.Header.Get(h.keyHeader)),
	})
	if err != nil {
		writePaymentIntentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, paymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.PaymentIntentID,
		CalculatedTotal: intent.CalculatedTotal,
		Breakdown:       buildBreakdownPayload(intent.Breakdown),
	})
}

func validPaymentIntentRequest(req paymentIntentRequest) bool {
	if len(req.Items) == 0 || strings.TrimSpace(req.ShippingMailClass) == "" {
		return false
	}
	if !validZip(strings.TrimSpace(req.DestinationZip)) {
		return false
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.ArtworkID) == "" || item.Quantity < 1 || item.Quantity > domain.UnboundedQuantity {
			return false
		}
	}
	return true
}

func writePaymentIntentError(ctx context.Context, w http.ResponseWriter, err error) {
	var pricingErr *services.PricingError
	switch {
	case errors.As(err, &pricingErr):
		httpx.WriteError(ctx, w, httpx.NewError(pricingErrorCode(err), pricingErr.Message, http.StatusBadRequest))
	case errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", invalidPaymentRequestMessage, http.StatusBadRequest))
	default:
		requestctx.Logger(ctx).Error("create payment intent failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("payment_intent_failed", paymentIntentFailedMessage, http.StatusInternalServerError))
	}
}

func pricingErrorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrPricingArtworkNotFound):
		return "artwork_not_found"
	case errors.Is(err, services.ErrPricingArtworkSoldOut):
		return "artwork_sold_out"
	case errors.Is(err, services.ErrPricingInvalidShippingMethod):
		return "invalid_shipping_method"
	case errors.Is(err, services.ErrPricingNonPositiveTotal):
		return "invalid_total"
	default:
		return "pricing_rejected"
	}
}

func (h *PaymentHandlers) config(w http.ResponseWriter, r *http.Request) {
	if h.publishableKey == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("payments_unavailable", "payments are not configured", http.StatusServiceUnavailable))
		return
	}
	writeJSONResponse(w, http.StatusOK, paymentConfigResponse{PublishableKey: h.publishableKey})
}

func (h *PaymentHandlers) webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.webhooks == nil || h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhooks_unavailable", "webhooks are not configured", http.StatusServiceUnavailable))
		return
	}

	payload, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid webhook payload", http.StatusBadRequest))
		return
	}

	event, err := h.webhooks.Verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrWebhookSignature) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "invalid webhook signature", http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid webhook payload", http.StatusBadRequest))
		return
	}

	if err := h.orders.HandlePaymentEvent(ctx, event); err != nil {
		requestctx.Logger(ctx).Error("payment webhook failed",
			zap.String("event", event.ID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		httpx.WriteError(ctx, w, httpx.NewError("webhook_failed", "failed to process webhook", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, webhookResponse{Received: true})
}

package handlers

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/platform/httpx"
	"github.com/editionhouse/api/internal/services"
)

const (
	maxShippingBodySize = 16 * 1024
	minZipLength        = 5
	maxZipLength        = 10

	invalidShippingRequestMessage = "Invalid shipping request data"
)

type shippingRatesRequest struct {
	OriginZip      string                `json:"originZip"`
	DestinationZip string                `json:"destinationZip"`
	Items          []shippingItemRequest `json:"items"`
}

type shippingItemRequest struct {
	Quantity *float64 `json:"quantity"`
}

type shippingRatesResponse struct {
	Rates  []shippingRatePayload `json:"rates"`
	Source string                `json:"source,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// ShippingHandlers serves rate quotes for the delivery step.
type ShippingHandlers struct {
	shipping services.ShippingService
	limiter  rateLimiter
}

// NewShippingHandlers constructs shipping handlers. perMinute caps quote requests per client IP;
// zero disables the limit.
func NewShippingHandlers(shipping services.ShippingService, perMinute int) *ShippingHandlers {
	return &ShippingHandlers{
		shipping: shipping,
		limiter:  newPerMinuteRateLimiter(perMinute, time.Now),
	}
}

// Routes registers POST /shipping/rates.
func (h *ShippingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(rateLimitMiddleware(h.limiter)).Post("/shipping/rates", h.quoteRates)
}

func (h *ShippingHandlers) quoteRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipping == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipping_unavailable", "shipping service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req shippingRatesRequest
	if err := decodeJSONBody(r, maxShippingBodySize, &req); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", invalidShippingRequestMessage, http.StatusBadRequest))
		return
	}

	quantities, ok := validateShippingRequest(&req)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", invalidShippingRequestMessage, http.StatusBadRequest))
		return
	}

	quote := h.shipping.Quote(ctx, services.QuoteRequest{
		OriginZip:      req.OriginZip,
		DestinationZip: req.DestinationZip,
		WeightOunces:   domain.PackageWeightOunces(quantities...),
	})
	writeJSONResponse(w, http.StatusOK, shippingRatesResponse{
		Rates:  buildShippingRatePayloads(quote.Rates),
		Source: quote.Source,
		Error:  quote.Error,
	})
}

func validateShippingRequest(req *shippingRatesRequest) ([]int, bool) {
	req.OriginZip = strings.TrimSpace(req.OriginZip)
	req.DestinationZip = strings.TrimSpace(req.DestinationZip)
	if !validZip(req.OriginZip) || !validZip(req.DestinationZip) {
		return nil, false
	}
	if len(req.Items) == 0 {
		return nil, false
	}
	quantities := make([]int, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity == nil {
			return nil, false
		}
		q := *item.Quantity
		if q < 1 || q != math.Trunc(q) || q > math.MaxInt32 {
			return nil, false
		}
		quantities = append(quantities, int(q))
	}
	return quantities, true
}

func validZip(zip string) bool {
	n := len(zip)
	return n >= minZipLength && n <= maxZipLength
}

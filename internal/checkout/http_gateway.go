package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultGatewayTimeout = 15 * time.Second
	maxResponseBytes      = 1 << 20
)

// HTTPGateway calls the storefront API over HTTP.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	token   func(ctx context.Context) (string, error)
}

var _ Gateway = (*HTTPGateway)(nil)

// HTTPGatewayOption customises the gateway.
type HTTPGatewayOption func(*HTTPGateway)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(client *http.Client) HTTPGatewayOption {
	return func(g *HTTPGateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithBearerToken attaches an ID token (for example a Firebase session) to every request.
func WithBearerToken(token func(ctx context.Context) (string, error)) HTTPGatewayOption {
	return func(g *HTTPGateway) {
		g.token = token
	}
}

// NewHTTPGateway targets the API rooted at baseURL, for example https://shop.example.com.
func NewHTTPGateway(baseURL string, opts ...HTTPGatewayOption) (*HTTPGateway, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("checkout: base url is required")
	}
	gw := &HTTPGateway{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   defaultGatewayTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(gw)
		}
	}
	return gw, nil
}

func (g *HTTPGateway) QuoteRates(ctx context.Context, req RatesRequest) (RatesResponse, error) {
	var out RatesResponse
	err := g.do(ctx, http.MethodPost, "/api/shipping/rates", req, nil, &out)
	return out, err
}

func (g *HTTPGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest, idempotencyKey string) (PaymentIntent, error) {
	var out PaymentIntent
	headers := map[string]string{}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		headers["Idempotency-Key"] = key
	}
	err := g.do(ctx, http.MethodPost, "/api/stripe/create-payment-intent", req, headers, &out)
	return out, err
}

func (g *HTTPGateway) CreateOrder(ctx context.Context, order Order) (Order, error) {
	var out Order
	err := g.do(ctx, http.MethodPost, "/api/orders", order, nil, &out)
	return out, err
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("checkout: encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("checkout: build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if g.token != nil {
		token, err := g.token(ctx)
		if err != nil {
			return fmt.Errorf("checkout: token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("checkout: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("checkout: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("checkout: decode %s: %w", path, err)
	}
	return nil
}

func decodeAPIError(status int, data []byte) error {
	var envelope struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}
	if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
		apiErr.Message = envelope.Error
		apiErr.Code = envelope.Code
	}
	return apiErr
}

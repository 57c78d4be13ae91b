package carriers

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
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/editionhouse/api/internal/platform/config"
	"github.com/editionhouse/api/internal/services"
)

const (
	tokenPath     = "/oauth2/v3/token"
	baseRatesPath = "/prices/v3/base-rates/search"

	defaultTimeout = 8 * time.Second

	parcelLength = 12
	parcelWidth  = 12
	parcelHeight = 6

	maxErrorBody = 512
)

var (
	// ErrCarrierNotConfigured indicates the USPS credentials are missing.
	ErrCarrierNotConfigured = errors.New("usps: client credentials are not configured")
	// ErrCarrierRequestFailed wraps non-2xx carrier responses.
	ErrCarrierRequestFailed = errors.New("usps: request failed")
)

// USPSClient fetches retail base rates from the USPS Prices API. Access tokens come from the
// client-credentials grant and are reused until shortly before they expire.
type USPSClient struct {
	baseURL string
	client  *http.Client
	tokens  oauth2.TokenSource
}

var _ services.RateSource = (*USPSClient)(nil)

// USPSOption customises the client.
type USPSOption func(*uspsOptions)

type uspsOptions struct {
	transport http.RoundTripper
}

// WithTransport replaces the base transport. The otelhttp wrapper is still applied.
func WithTransport(rt http.RoundTripper) USPSOption {
	return func(o *uspsOptions) {
		if rt != nil {
			o.transport = rt
		}
	}
}

// NewUSPSClient builds a client from cfg. Missing credentials yield ErrCarrierNotConfigured so
// callers can fall back to table rates.
func NewUSPSClient(cfg config.USPSConfig, opts ...USPSOption) (*USPSClient, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, ErrCarrierNotConfigured
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("usps: base url is required")
	}

	options := uspsOptions{transport: http.DefaultTransport}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(options.transport),
	}

	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	return &USPSClient{
		baseURL: baseURL,
		client:  httpClient,
		tokens:  creds.TokenSource(tokenCtx),
	}, nil
}

type baseRatesRequest struct {
	OriginZIPCode                string  `json:"originZIPCode"`
	DestinationZIPCode           string  `json:"destinationZIPCode"`
	Weight                       float64 `json:"weight"`
	Length                       float64 `json:"length"`
	Width                        float64 `json:"width"`
	Height                       float64 `json:"height"`
	MailClass                    string  `json:"mailClass"`
	ProcessingCategory           string  `json:"processingCategory"`
	RateIndicator                string  `json:"rateIndicator"`
	DestinationEntryFacilityType string  `json:"destinationEntryFacilityType"`
	PriceType                    string  `json:"priceType"`
}

type baseRatesResponse struct {
	Rates []struct {
		MailClass   string  `json:"mailClass"`
		RateClass   string  `json:"rateClass"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		TotalPrice  float64 `json:"totalPrice"`
		Commitment  *struct {
			DeliveryDays *int    `json:"deliveryDays"`
			DeliveryDate *string `json:"deliveryDate"`
		} `json:"commitment"`
	} `json:"rates"`
}

// FetchRates requests retail rates for a standard 12x12x6 parcel.
func (c *USPSClient) FetchRates(ctx context.Context, req services.RateSourceRequest) ([]services.CarrierRate, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("usps: access token: %w", err)
	}

	body, err := json.Marshal(baseRatesRequest{
		OriginZIPCode:                req.OriginZip,
		DestinationZIPCode:           req.DestinationZip,
		Weight:                       float64(req.WeightOunces) / 16,
		Length:                       parcelLength,
		Width:                        parcelWidth,
		Height:                       parcelHeight,
		MailClass:                    "ALL",
		ProcessingCategory:           "MACHINABLE",
		RateIndicator:                "DR",
		DestinationEntryFacilityType: "NONE",
		PriceType:                    "RETAIL",
	})
	if err != nil {
		return nil, fmt.Errorf("usps: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+baseRatesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("usps: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	token.SetAuthHeader(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("usps: rates request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", ErrCarrierRequestFailed, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded baseRatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("usps: decode rates: %w", err)
	}

	rates := make([]services.CarrierRate, 0, len(decoded.Rates))
	for _, row := range decoded.Rates {
		rate := services.CarrierRate{
			MailClass:   firstNonEmpty(row.MailClass, row.RateClass),
			Description: row.Description,
			Price:       row.Price,
		}
		if rate.Price == 0 {
			rate.Price = row.TotalPrice
		}
		if row.Commitment != nil {
			rate.DeliveryDays = row.Commitment.DeliveryDays
			rate.DeliveryDate = row.Commitment.DeliveryDate
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

// Ping confirms the token endpoint accepts the configured credentials.
func (c *USPSClient) Ping(context.Context) error {
	_, err := c.tokens.Token()
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/payments"
	"github.com/editionhouse/api/internal/platform/auth"
	"github.com/editionhouse/api/internal/services"
)

type stubShippingService struct {
	quoteFunc func(ctx context.Context, req services.QuoteRequest) services.RateQuote
}

func (s *stubShippingService) Quote(ctx context.Context, req services.QuoteRequest) services.RateQuote {
	return s.quoteFunc(ctx, req)
}

type stubPaymentIntentService struct {
	createFunc func(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntent, error)
}

func (s *stubPaymentIntentService) CreatePaymentIntent(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntent, error) {
	return s.createFunc(ctx, cmd)
}

type stubOrderService struct {
	createFunc  func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	getFunc     func(ctx context.Context, orderID string) (services.Order, error)
	listFunc    func(ctx context.Context, filter domain.OrderFilter) (domain.CursorPage[services.Order], error)
	listForFunc func(ctx context.Context, customerID string, pager services.Pagination) (domain.CursorPage[services.Order], error)
	statusFunc  func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error)
	trackFunc   func(ctx context.Context, cmd services.AddTrackingCommand) (services.Order, error)
	refundFunc  func(ctx context.Context, cmd services.RefundOrderCommand) (services.Order, error)
	eventFunc   func(ctx context.Context, event payments.WebhookEvent) error
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	return s.createFunc(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	return s.getFunc(ctx, orderID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) (domain.CursorPage[services.Order], error) {
	return s.listFunc(ctx, filter)
}

func (s *stubOrderService) ListCustomerOrders(ctx context.Context, customerID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	return s.listForFunc(ctx, customerID, pager)
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	return s.statusFunc(ctx, cmd)
}

func (s *stubOrderService) AddTracking(ctx context.Context, cmd services.AddTrackingCommand) (services.Order, error) {
	return s.trackFunc(ctx, cmd)
}

func (s *stubOrderService) Refund(ctx context.Context, cmd services.RefundOrderCommand) (services.Order, error) {
	return s.refundFunc(ctx, cmd)
}

func (s *stubOrderService) HandlePaymentEvent(ctx context.Context, event payments.WebhookEvent) error {
	return s.eventFunc(ctx, event)
}

type stubCatalogService struct {
	artworks []services.ArtworkView
	drops    []services.DropView
	err      error

	lastArtworkFilter domain.ArtworkFilter
	lastDropFilter    services.DropListFilter
}

func (s *stubCatalogService) ListArtworks(_ context.Context, filter domain.ArtworkFilter) ([]services.ArtworkView, error) {
	s.lastArtworkFilter = filter
	return s.artworks, s.err
}

func (s *stubCatalogService) GetArtwork(_ context.Context, id string) (services.ArtworkView, error) {
	if s.err != nil {
		return services.ArtworkView{}, s.err
	}
	for _, view := range s.artworks {
		if view.ID == id {
			return view, nil
		}
	}
	return services.ArtworkView{}, services.ErrCatalogNotFound
}

func (s *stubCatalogService) ListDrops(_ context.Context, filter services.DropListFilter) ([]services.DropView, error) {
	s.lastDropFilter = filter
	return s.drops, s.err
}

func (s *stubCatalogService) GetDrop(_ context.Context, id string) (services.DropView, error) {
	if s.err != nil {
		return services.DropView{}, s.err
	}
	for _, view := range s.drops {
		if view.ID == id {
			return view, nil
		}
	}
	return services.DropView{}, services.ErrCatalogNotFound
}

// recordingCartService captures the owner of each call and answers with a fixed view.
type recordingCartService struct {
	view   services.CartView
	err    error
	owners []services.CartOwner
	calls  []string
	lines  []services.CartLine
	qty    int
	merged [2]services.CartOwner
}

func (s *recordingCartService) record(call string, owner services.CartOwner) {
	s.calls = append(s.calls, call)
	s.owners = append(s.owners, owner)
}

func (s *recordingCartService) Load(_ context.Context, owner services.CartOwner) (services.CartView, error) {
	s.record("load", owner)
	return s.view, s.err
}

func (s *recordingCartService) Save(_ context.Context, owner services.CartOwner, lines []services.CartLine) (services.CartView, error) {
	s.record("save", owner)
	s.lines = lines
	return s.view, s.err
}

func (s *recordingCartService) AddItem(_ context.Context, owner services.CartOwner, artworkID string, quantity int) (services.CartView, error) {
	s.record("add:"+artworkID, owner)
	s.qty = quantity
	return s.view, s.err
}

func (s *recordingCartService) UpdateQuantity(_ context.Context, owner services.CartOwner, artworkID string, quantity int) (services.CartView, error) {
	s.record("update:"+artworkID, owner)
	s.qty = quantity
	return s.view, s.err
}

func (s *recordingCartService) RemoveItem(_ context.Context, owner services.CartOwner, artworkID string) (services.CartView, error) {
	s.record("remove:"+artworkID, owner)
	return s.view, s.err
}

func (s *recordingCartService) Clear(_ context.Context, owner services.CartOwner) error {
	s.record("clear", owner)
	return s.err
}

func (s *recordingCartService) Merge(_ context.Context, guest services.CartOwner, user services.CartOwner) (services.CartView, error) {
	s.record("merge", user)
	s.merged = [2]services.CartOwner{guest, user}
	return s.view, s.err
}

type stubDropSyncService struct {
	result services.DropSyncResult
	err    error
}

func (s *stubDropSyncService) SyncStatuses(context.Context) (services.DropSyncResult, error) {
	return s.result, s.err
}

type stubWebhookVerifier struct {
	event payments.WebhookEvent
	err   error
	seen  string
}

func (s *stubWebhookVerifier) Verify(_ []byte, signature string) (payments.WebhookEvent, error) {
	s.seen = signature
	return s.event, s.err
}

func serve(t *testing.T, routes RouteRegistrar, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	routes(router)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for _, fn := range mutate {
		fn(req)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func withIdentity(identity *auth.Identity) func(*http.Request) {
	return func(req *http.Request) {
		*req = *req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
}

func withHeader(name, value string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set(name, value)
	}
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	body := decodeBody[map[string]any](t, rr)
	code, _ := body["code"].(string)
	message, _ := body["error"].(string)
	return code, message
}

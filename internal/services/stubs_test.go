package services

import (
	"context"
	"errors"
	"slices"
	"time"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/payments"
)

type stubRepoError struct {
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return e.err.Error() }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr() error {
	return stubRepoError{err: errors.New("missing"), notFound: true}
}

type stubArtworkRepo struct {
	artworks map[string]domain.Artwork
	getErr   error
	gets     int
}

func newStubArtworkRepo(artworks ...domain.Artwork) *stubArtworkRepo {
	repo := &stubArtworkRepo{artworks: map[string]domain.Artwork{}}
	for _, artwork := range artworks {
		repo.artworks[artwork.ID] = artwork
	}
	return repo
}

func (s *stubArtworkRepo) Get(_ context.Context, artworkID string) (domain.Artwork, error) {
	s.gets++
	if s.getErr != nil {
		return domain.Artwork{}, s.getErr
	}
	artwork, ok := s.artworks[artworkID]
	if !ok {
		return domain.Artwork{}, notFoundErr()
	}
	return artwork, nil
}

func (s *stubArtworkRepo) List(_ context.Context, filter domain.ArtworkFilter) ([]domain.Artwork, error) {
	var out []domain.Artwork
	for _, id := range sortedKeys(s.artworks) {
		artwork := s.artworks[id]
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, id) {
			continue
		}
		if filter.FeaturedOnly && !artwork.Featured {
			continue
		}
		out = append(out, artwork)
	}
	return out, nil
}

type stubDropRepo struct {
	drops     []domain.Drop
	updates   map[string]domain.DropStatus
	updateErr map[string]error
}

func (s *stubDropRepo) Get(_ context.Context, dropID string) (domain.Drop, error) {
	for _, drop := range s.drops {
		if drop.ID == dropID {
			return drop, nil
		}
	}
	return domain.Drop{}, notFoundErr()
}

func (s *stubDropRepo) List(context.Context) ([]domain.Drop, error) {
	return slices.Clone(s.drops), nil
}

func (s *stubDropRepo) UpdateStatus(_ context.Context, dropID string, status domain.DropStatus, _ time.Time) error {
	if err := s.updateErr[dropID]; err != nil {
		return err
	}
	if s.updates == nil {
		s.updates = map[string]domain.DropStatus{}
	}
	s.updates[dropID] = status
	return nil
}

type stubOrderRepo struct {
	createFn func(context.Context, domain.Order, time.Time) error
	updateFn func(context.Context, domain.Order) error
	findFn   func(context.Context, string) (domain.Order, error)
	listFn   func(context.Context, domain.OrderFilter) (domain.CursorPage[domain.Order], error)
}

func (s *stubOrderRepo) CreateWithCustomerStats(ctx context.Context, order domain.Order, now time.Time) error {
	if s.createFn != nil {
		return s.createFn(ctx, order, now)
	}
	return nil
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, notFoundErr()
}

func (s *stubOrderRepo) List(ctx context.Context, filter domain.OrderFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

type memoryCartRepo struct {
	carts   map[string]domain.Cart
	deleted []string
}

func newMemoryCartRepo() *memoryCartRepo {
	return &memoryCartRepo{carts: map[string]domain.Cart{}}
}

func (m *memoryCartRepo) Load(_ context.Context, owner string) (domain.Cart, error) {
	cart, ok := m.carts[owner]
	if !ok {
		return domain.Cart{}, notFoundErr()
	}
	cart.Lines = slices.Clone(cart.Lines)
	return cart, nil
}

func (m *memoryCartRepo) Save(_ context.Context, cart domain.Cart) error {
	cart.Lines = slices.Clone(cart.Lines)
	m.carts[cart.Owner] = cart
	return nil
}

func (m *memoryCartRepo) Delete(_ context.Context, owner string) error {
	m.deleted = append(m.deleted, owner)
	delete(m.carts, owner)
	return nil
}

type stubPaymentProvider struct {
	createFn func(context.Context, payments.IntentRequest) (payments.Intent, error)
	refundFn func(context.Context, payments.RefundRequest) (payments.PaymentDetails, error)
	lookupFn func(context.Context, payments.LookupRequest) (payments.PaymentDetails, error)
	created  []payments.IntentRequest
	refunds  []payments.RefundRequest
}

func (s *stubPaymentProvider) CreatePaymentIntent(ctx context.Context, req payments.IntentRequest) (payments.Intent, error) {
	s.created = append(s.created, req)
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return payments.Intent{ID: "pi_test", ClientSecret: "pi_test_secret", Amount: req.Amount}, nil
}

func (s *stubPaymentProvider) Refund(ctx context.Context, req payments.RefundRequest) (payments.PaymentDetails, error) {
	s.refunds = append(s.refunds, req)
	if s.refundFn != nil {
		return s.refundFn(ctx, req)
	}
	return payments.PaymentDetails{IntentID: req.IntentID}, nil
}

func (s *stubPaymentProvider) LookupPayment(ctx context.Context, req payments.LookupRequest) (payments.PaymentDetails, error) {
	if s.lookupFn != nil {
		return s.lookupFn(ctx, req)
	}
	return payments.PaymentDetails{}, errors.New("not implemented")
}

type stubRateSource struct {
	rates []CarrierRate
	err   error
	calls []RateSourceRequest
}

func (s *stubRateSource) FetchRates(_ context.Context, req RateSourceRequest) ([]CarrierRate, error) {
	s.calls = append(s.calls, req)
	return s.rates, s.err
}

type stubShippingService struct {
	quote RateQuote
	reqs  []QuoteRequest
}

func (s *stubShippingService) Quote(_ context.Context, req QuoteRequest) RateQuote {
	s.reqs = append(s.reqs, req)
	return s.quote
}

type captureOrderEvents struct {
	events []OrderEvent
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	c.events = append(c.events, event)
	return nil
}

type captureDropEvents struct {
	events []DropEvent
}

func (c *captureDropEvents) PublishDropEvent(_ context.Context, event DropEvent) error {
	c.events = append(c.events, event)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func intPtr(v int) *int {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}

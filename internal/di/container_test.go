package di

import (
	"context"
	"testing"
	"time"

	"github.com/editionhouse/api/internal/payments"
	"github.com/editionhouse/api/internal/platform/config"
	"github.com/editionhouse/api/internal/repositories"
	"github.com/editionhouse/api/internal/repositories/memory"
)

type stubRegistry struct {
	repositories.ArtworkRepository
	repositories.DropRepository
	repositories.OrderRepository
	repositories.CustomerRepository
	closed bool
}

func (r *stubRegistry) Close(context.Context) error { r.closed = true; return nil }
func (r *stubRegistry) Ping(context.Context) error  { return nil }

func (r *stubRegistry) Artworks() repositories.ArtworkRepository   { return r.ArtworkRepository }
func (r *stubRegistry) Drops() repositories.DropRepository         { return r.DropRepository }
func (r *stubRegistry) Orders() repositories.OrderRepository       { return r.OrderRepository }
func (r *stubRegistry) Customers() repositories.CustomerRepository { return r.CustomerRepository }

type noopArtworks struct{ repositories.ArtworkRepository }
type noopDrops struct{ repositories.DropRepository }
type noopOrders struct{ repositories.OrderRepository }

type noopProvider struct{ payments.Provider }

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		ArtworkRepository: noopArtworks{},
		DropRepository:    noopDrops{},
		OrderRepository:   noopOrders{},
	}
}

func testConfig() config.Config {
	return config.Config{
		Store: config.StoreConfig{
			OriginZip: "10001",
			TaxRate:   0.08,
			Currency:  "usd",
			Timezone:  "America/New_York",
		},
	}
}

func TestNewContainerRequiresRegistryAndCarts(t *testing.T) {
	ctx := context.Background()
	if _, err := NewContainer(ctx, testConfig(), Dependencies{Carts: memory.NewCartRepository(time.Hour)}); err == nil {
		t.Fatal("expected error without registry")
	}
	if _, err := NewContainer(ctx, testConfig(), Dependencies{Registry: newStubRegistry()}); err == nil {
		t.Fatal("expected error without cart repository")
	}
}

func TestNewContainerBuildsServices(t *testing.T) {
	reg := newStubRegistry()
	container, err := NewContainer(context.Background(), testConfig(), Dependencies{
		Registry: reg,
		Carts:    memory.NewCartRepository(time.Hour),
		Payments: noopProvider{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := container.Services
	if svc.Shipping == nil || svc.Pricing == nil || svc.PaymentIntents == nil || svc.Orders == nil ||
		svc.Catalog == nil || svc.Cart == nil || svc.DropSync == nil {
		t.Fatalf("expected every service to be wired, got %+v", svc)
	}

	if err := container.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !reg.closed {
		t.Fatal("expected registry to be closed")
	}
}

func TestNewContainerWithoutPaymentProvider(t *testing.T) {
	cfg := testConfig()
	deps := Dependencies{Registry: newStubRegistry(), Carts: memory.NewCartRepository(time.Hour)}

	container, err := NewContainer(context.Background(), cfg, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if container.Services.PaymentIntents != nil {
		t.Fatal("payment intents must be disabled without a provider")
	}

	cfg.Orders.VerifyPayment = true
	if _, err := NewContainer(context.Background(), cfg, deps); err == nil {
		t.Fatal("payment verification requires a provider")
	}
}

func TestNewContainerRejectsInvalidStoreConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Store.OriginZip = ""
	_, err := NewContainer(context.Background(), cfg, Dependencies{
		Registry: newStubRegistry(),
		Carts:    memory.NewCartRepository(time.Hour),
	})
	if err == nil {
		t.Fatal("expected pricing configuration error")
	}
}

package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/editionhouse/api/internal/payments"
	"github.com/editionhouse/api/internal/platform/config"
	"github.com/editionhouse/api/internal/platform/observability"
	"github.com/editionhouse/api/internal/repositories"
	"github.com/editionhouse/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. PaymentIntents is nil
// when no payment provider is configured.
type Services struct {
	Shipping       services.ShippingService
	Pricing        services.PricingService
	PaymentIntents services.PaymentIntentService
	Orders         services.OrderService
	Catalog        services.CatalogService
	Cart           services.CartService
	DropSync       services.DropSyncService
}

// Dependencies are the infrastructure adapters assembled by main. Only Registry and Carts are
// mandatory; the rest degrade the features that use them.
type Dependencies struct {
	Registry    repositories.Registry
	Carts       repositories.CartRepository
	RateSource  services.RateSource
	Payments    payments.Provider
	OrderEvents services.OrderEventPublisher
	DropEvents  services.DropEventPublisher
	Images      services.ImageResolver
	Logger      *zap.Logger
	Clock       func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, deps Dependencies) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("cart repository is required")
	}

	svc, err := buildServices(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, cfg config.Config, deps Dependencies) (Services, error) {
	var svc Services
	reg := deps.Registry

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	loc := cfg.Store.Location()

	shippingSvc, err := services.NewShippingService(services.ShippingServiceDeps{
		Source: deps.RateSource,
		Logger: observability.NewEventLogger(logger, "shipping"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build shipping service: %w", err)
	}
	svc.Shipping = shippingSvc

	pricingSvc, err := services.NewPricingService(services.PricingServiceDeps{
		Artworks:  reg.Artworks(),
		Shipping:  shippingSvc,
		OriginZip: cfg.Store.OriginZip,
		TaxRate:   cfg.Store.TaxRate,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing service: %w", err)
	}
	svc.Pricing = pricingSvc

	if deps.Payments != nil {
		intentSvc, err := services.NewPaymentIntentService(services.PaymentIntentServiceDeps{
			Pricing:  pricingSvc,
			Provider: deps.Payments,
			Currency: cfg.Store.Currency,
			Logger:   observability.NewEventLogger(logger, "payments"),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build payment intent service: %w", err)
		}
		svc.PaymentIntents = intentSvc
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:        reg.Orders(),
		Payments:      deps.Payments,
		Events:        deps.OrderEvents,
		VerifyPayment: cfg.Orders.VerifyPayment,
		Clock:         clock,
		Logger:        observability.NewEventLogger(logger, "orders"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Artworks: reg.Artworks(),
		Drops:    reg.Drops(),
		Images:   deps.Images,
		Location: loc,
		Clock:    clock,
		Logger:   observability.NewEventLogger(logger, "catalog"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:    deps.Carts,
		Artworks: reg.Artworks(),
		Clock:    clock,
		Logger:   observability.NewEventLogger(logger, "cart"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	dropSyncSvc, err := services.NewDropSyncService(services.DropSyncServiceDeps{
		Drops:    reg.Drops(),
		Events:   deps.DropEvents,
		Location: loc,
		Clock:    clock,
		Logger:   observability.NewEventLogger(logger, "drops"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build drop sync service: %w", err)
	}
	svc.DropSync = dropSyncSvc

	return svc, nil
}

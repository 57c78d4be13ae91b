package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/editionhouse/api/internal/carriers"
	"github.com/editionhouse/api/internal/di"
	"github.com/editionhouse/api/internal/handlers"
	"github.com/editionhouse/api/internal/payments"
	"github.com/editionhouse/api/internal/platform/auth"
	"github.com/editionhouse/api/internal/platform/config"
	pfirestore "github.com/editionhouse/api/internal/platform/firestore"
	"github.com/editionhouse/api/internal/platform/idempotency"
	"github.com/editionhouse/api/internal/platform/jobs"
	"github.com/editionhouse/api/internal/platform/observability"
	"github.com/editionhouse/api/internal/platform/postgres"
	platformredis "github.com/editionhouse/api/internal/platform/redis"
	"github.com/editionhouse/api/internal/platform/secrets"
	platformstorage "github.com/editionhouse/api/internal/platform/storage"
	"github.com/editionhouse/api/internal/repositories"
	firestoreRepo "github.com/editionhouse/api/internal/repositories/firestore"
	"github.com/editionhouse/api/internal/repositories/memory"
	postgresRepo "github.com/editionhouse/api/internal/repositories/postgres"
	redisRepo "github.com/editionhouse/api/internal/repositories/redis"
	"github.com/editionhouse/api/internal/services"
)

const (
	idempotencyKeyPrefix       = "idem:"
	idempotencyCleanupInterval = 10 * time.Minute
	idempotencyCleanupBatch    = 500
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	registry, err := openRegistry(ctx, logger.Named("store"), cfg)
	if err != nil {
		logger.Fatal("failed to initialise store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("store close error", zap.Error(err))
		}
	}()

	checks := []repositories.DependencyCheck{{
		Name:    cfg.Store.Driver,
		Timeout: 1500 * time.Millisecond,
		Check:   registry.Ping,
	}}

	var (
		cartRepo         repositories.CartRepository
		idempotencyStore idempotency.Store
	)
	redisClient, err := platformredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable; carts and idempotency keys are kept in memory", zap.Error(err))
		cartRepo = memory.NewCartRepository(cfg.Redis.CartTTL)
		idempotencyStore = idempotency.NewMemoryStore()
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
		redisCarts, err := redisRepo.NewCartRepository(redisClient, cfg.Redis.CartTTL)
		if err != nil {
			logger.Fatal("failed to initialise cart repository", zap.Error(err))
		}
		cartRepo = redisCarts
		redisStore, err := idempotency.NewRedisStore(redisClient, idempotencyKeyPrefix)
		if err != nil {
			logger.Fatal("failed to initialise idempotency store", zap.Error(err))
		}
		idempotencyStore = redisStore
		checks = append(checks, repositories.DependencyCheck{
			Name:    "redis",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				return platformredis.Ping(ctx, goredis.UniversalClient(redisClient))
			},
		})
	}

	var rateSource services.RateSource
	usps, err := carriers.NewUSPSClient(cfg.USPS)
	switch {
	case errors.Is(err, carriers.ErrCarrierNotConfigured):
		logger.Warn("usps credentials not configured; quoting fallback rates")
	case err != nil:
		logger.Fatal("failed to initialise usps client", zap.Error(err))
	default:
		rateSource = usps
		checks = append(checks, repositories.DependencyCheck{
			Name:     "usps",
			Timeout:  3 * time.Second,
			Optional: true,
			Check:    usps.Ping,
		})
	}

	var paymentProvider payments.Provider
	if strings.TrimSpace(cfg.Stripe.SecretKey) == "" {
		logger.Warn("stripe secret key not configured; payment intents are disabled")
	} else {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:   cfg.Stripe.SecretKey,
			Currency: cfg.Store.Currency,
			Logger:   payments.StripeLogger(observability.NewEventLogger(logger.Named("payments"), "stripe")),
			Clock:    time.Now,
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe payment provider", zap.Error(err))
		}
		paymentProvider = stripeProvider
	}

	var webhookVerifier handlers.WebhookVerifier
	if strings.TrimSpace(cfg.Stripe.WebhookSecret) != "" {
		verifier, err := payments.NewStripeWebhookVerifier(cfg.Stripe.WebhookSecret)
		if err != nil {
			logger.Fatal("failed to initialise stripe webhook verifier", zap.Error(err))
		}
		webhookVerifier = verifier
	}

	var (
		orderEvents services.OrderEventPublisher
		dropEvents  services.DropEventPublisher
	)
	if projectID := strings.TrimSpace(cfg.PubSub.ProjectID); projectID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, projectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		publisher, err := jobs.NewPubSubEventPublisher(
			optionalTopic(pubsubClient, cfg.PubSub.OrderTopic),
			optionalTopic(pubsubClient, cfg.PubSub.DropTopic),
		)
		if err != nil {
			logger.Fatal("failed to initialise event publisher", zap.Error(err))
		}
		defer publisher.Stop()
		orderEvents = publisher
		dropEvents = publisher
	} else {
		logger.Warn("pubsub project not configured; domain events are not published")
	}

	var images services.ImageResolver
	if bucket := strings.TrimSpace(cfg.Storage.ImagesBucket); bucket != "" {
		signer, err := platformstorage.NewSignerFromKey(cfg.Storage.SignerKey)
		if err != nil {
			logger.Fatal("failed to initialise storage signer", zap.Error(err))
		}
		imageURLs, err := platformstorage.NewImageURLs(signer, bucket, platformstorage.WithTTL(cfg.Storage.SignedURLTTL))
		if err != nil {
			logger.Fatal("failed to initialise image urls", zap.Error(err))
		}
		images = imageURLs
	}

	container, err := di.NewContainer(ctx, cfg, di.Dependencies{
		Registry:    registry,
		Carts:       cartRepo,
		RateSource:  rateSource,
		Payments:    paymentProvider,
		OrderEvents: orderEvents,
		DropEvents:  dropEvents,
		Images:      images,
		Logger:      logger.Named("services"),
		Clock:       time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise services", zap.Error(err))
	}
	svc := container.Services

	var authenticator *auth.Authenticator
	if strings.TrimSpace(cfg.Firebase.ProjectID) != "" {
		firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
		}
		authenticator = auth.NewAuthenticator(firebaseVerifier)
	} else {
		logger.Warn("firebase project not configured; admin routes are disabled")
	}

	if fetcher != nil {
		const secretHealthReference = "secret://system-healthz"
		checks = append(checks, repositories.DependencyCheck{
			Name:     "secretManager",
			Timeout:  time.Second,
			Optional: true,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	prober, err := repositories.NewHealthProber(checks)
	if err != nil {
		logger.Fatal("failed to initialise health prober", zap.Error(err))
	}

	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupTicker := time.NewTicker(idempotencyCleanupInterval)
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		cleanupLogger := logger.Named("idempotency")
		for {
			select {
			case <-cleanupTicker.C:
				runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
				removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), idempotencyCleanupBatch)
				cancel()
				if err != nil {
					cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg)

	shippingHandlers := handlers.NewShippingHandlers(svc.Shipping, cfg.RateLimits.ShippingPerMinute)
	catalogHandlers := handlers.NewCatalogHandlers(svc.Catalog)
	paymentHandlers := handlers.NewPaymentHandlers(handlers.PaymentHandlersDeps{
		Intents:           svc.PaymentIntents,
		Orders:            svc.Orders,
		Webhooks:          webhookVerifier,
		PublishableKey:    cfg.Stripe.PublishableKey,
		IdempotencyHeader: cfg.Idempotency.Header,
	})
	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Orders)
	cartHandlers := handlers.NewCartHandlers(authenticator, svc.Cart)
	adminHandlers := handlers.NewAdminOrderHandlers(authenticator, svc.Orders)
	internalHandlers := handlers.NewInternalHandlers(svc.DropSync)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
		idempotencyMiddleware,
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthProbe(prober),
	)

	var opts []handlers.Option
	opts = append(opts, handlers.WithMiddlewares(middlewares...))
	opts = append(opts, handlers.WithHealthHandlers(healthHandlers))
	opts = append(opts, handlers.WithPublicRoutes(shippingHandlers.Routes))
	opts = append(opts, handlers.WithPublicRoutes(catalogHandlers.Routes))
	opts = append(opts, handlers.WithPaymentRoutes(paymentHandlers.Routes))
	opts = append(opts, handlers.WithOrderRoutes(orderHandlers.Routes))
	opts = append(opts, handlers.WithCartRoutes(cartHandlers.Routes))
	if authenticator != nil {
		opts = append(opts, handlers.WithAdminRoutes(adminHandlers.Routes))
	}
	if oidcMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidcMiddleware))
		opts = append(opts, handlers.WithInternalRoutes(internalHandlers.Routes))
	} else {
		logger.Warn("oidc not configured; internal routes are disabled")
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      otelhttp.NewHandler(router, "editionhouse-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("edition house api listening",
			zap.String("store", cfg.Store.Driver),
			zap.String("version", buildInfo.Version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupTicker.Stop()
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openRegistry connects the configured document or relational store.
func openRegistry(ctx context.Context, logger *zap.Logger, cfg config.Config) (repositories.Registry, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		if cfg.Postgres.MigrationsEnabled {
			if err := postgres.Migrate(cfg.Postgres.DSN, postgresRepo.Migrations, postgresRepo.MigrationsDir); err != nil {
				return nil, err
			}
			logger.Info("postgres migrations applied")
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		registry, err := postgresRepo.NewRegistry(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return registry, nil
	default:
		provider := pfirestore.NewProvider(cfg.Firestore)
		if _, err := provider.Client(ctx); err != nil {
			return nil, err
		}
		registry, err := firestoreRepo.NewRegistry(provider)
		if err != nil {
			_ = provider.Close(ctx)
			return nil, err
		}
		return registry, nil
	}
}

func optionalTopic(client *pubsub.Client, name string) *pubsub.Topic {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return client.Topic(name)
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	adapter := observability.NewPrintfAdapter(logger)
	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, nil, time.Now)
	validator := auth.NewOIDCValidator(cache, adapter)

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	return validator.RequireOIDC(audience, cfg.Security.OIDC.Issuers)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	project := lookup("API_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the secrets a deployed environment cannot start without. Local runs
// may omit them and fall back to degraded features.
func requiredSecretNames(env map[string]string) []string {
	environment := "local"
	if env != nil {
		if value := strings.ToLower(strings.TrimSpace(env["API_SECURITY_ENVIRONMENT"])); value != "" {
			environment = value
		}
	}
	if environment == "local" || environment == "test" {
		return nil
	}

	required := []string{
		"Stripe.SecretKey",
		"Stripe.WebhookSecret",
	}
	if env != nil {
		if strings.EqualFold(strings.TrimSpace(env["API_STORE_DRIVER"]), config.DriverPostgres) {
			required = append(required, "Postgres.DSN")
		}
		if strings.TrimSpace(env["API_STORAGE_IMAGES_BUCKET"]) != "" {
			required = append(required, "Storage.SignerKey")
		}
		if strings.TrimSpace(env["API_USPS_CLIENT_ID"]) != "" {
			required = append(required, "USPS.ClientSecret")
		}
	}
	return uniqueStrings(required)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}

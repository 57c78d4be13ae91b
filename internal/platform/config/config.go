package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultBodyLimit           = 64 * 1024
	defaultStoreName           = "Edition House"
	defaultOriginZip           = "10001"
	defaultTaxRate             = 0.08
	defaultCurrency            = "usd"
	defaultTimezone            = "America/New_York"
	defaultStoreDriver         = DriverFirestore
	defaultPostgresMaxConns    = 10
	defaultRedisAddr           = "localhost:6379"
	defaultCartTTL             = 30 * 24 * time.Hour
	defaultUSPSBaseURL         = "https://apis.usps.com"
	defaultUSPSTimeout         = 8 * time.Second
	defaultOrderTopic          = "orders.events"
	defaultDropTopic           = "drops.events"
	defaultSecurityEnvironment = "local"
	defaultOIDCJWKSURL         = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSecurityIssuer      = "https://accounts.google.com"
	defaultSignedURLTTL        = 15 * time.Minute
	defaultIdempotencyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultShippingPerMinute   = 30
)

// Store drivers accepted by API_STORE_DRIVER.
const (
	DriverFirestore = "firestore"
	DriverPostgres  = "postgres"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Store       StoreConfig
	Firestore   FirestoreConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Stripe      StripeConfig
	USPS        USPSConfig
	PubSub      PubSubConfig
	Firebase    FirebaseConfig
	Security    SecurityConfig
	Storage     StorageConfig
	Idempotency IdempotencyConfig
	Orders      OrdersConfig
	RateLimits  RateLimitConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	BodyLimit    int64
}

// StoreConfig holds the business settings shared by pricing, shipping and drops.
type StoreConfig struct {
	Name      string
	OriginZip string
	TaxRate   float64
	Currency  string
	Timezone  string
	Driver    string
}

// Location resolves the configured timezone, falling back to UTC.
func (c StoreConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PostgresConfig configures the relational store used when Store.Driver is postgres.
type PostgresConfig struct {
	DSN               string
	MaxConns          int
	MigrationsEnabled bool
}

// RedisConfig configures the cart and idempotency cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CartTTL  time.Duration
}

// StripeConfig collects Stripe credentials.
type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
}

// USPSConfig configures the carrier rate API.
type USPSConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// PubSubConfig names the event topics.
type PubSubConfig struct {
	ProjectID  string
	OrderTopic string
	DropTopic  string
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
}

// OIDCConfig controls Google-signed token verification.
type OIDCConfig struct {
	JWKSURL  string
	Audience string
	Issuers  []string
}

// StorageConfig configures artwork image delivery.
type StorageConfig struct {
	ImagesBucket string
	SignerKey    string
	SignedURLTTL time.Duration
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header string
	TTL    time.Duration
}

// OrdersConfig toggles order intake checks.
type OrdersConfig struct {
	VerifyPayment bool
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	ShippingPerMinute int
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets resolved to nothing.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.names) == 0 {
		return "missing required secrets"
	}
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// RedactedNames returns hashed identifiers safe for logs.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		out = append(out, redactSecretName(name))
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil {
		return nil
	}
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects an explicit key/value map that takes precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks config fields (e.g. "Stripe.SecretKey") as mandatory.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// WithPanicOnMissingSecrets causes Load to panic when required secrets are missing.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) { o.panicOnMissingSecrets = true }
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	src, err := newSource(options)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         src.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:  src.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: src.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  src.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			BodyLimit:    int64(src.integer("API_SERVER_BODY_LIMIT", defaultBodyLimit)),
		},
		Store: StoreConfig{
			Name:      src.str("API_STORE_NAME", defaultStoreName),
			OriginZip: src.str("API_STORE_ORIGIN_ZIP", defaultOriginZip),
			TaxRate:   src.float("API_STORE_TAX_RATE", defaultTaxRate),
			Currency:  strings.ToLower(src.str("API_STORE_CURRENCY", defaultCurrency)),
			Timezone:  src.str("API_STORE_TIMEZONE", defaultTimezone),
			Driver:    strings.ToLower(src.str("API_STORE_DRIVER", defaultStoreDriver)),
		},
		Firestore: FirestoreConfig{
			ProjectID:    src.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: src.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Postgres: PostgresConfig{
			DSN:               src.str("API_POSTGRES_DSN", ""),
			MaxConns:          src.integer("API_POSTGRES_MAX_CONNS", defaultPostgresMaxConns),
			MigrationsEnabled: src.boolean("API_POSTGRES_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     src.str("API_REDIS_ADDR", defaultRedisAddr),
			Password: src.str("API_REDIS_PASSWORD", ""),
			DB:       src.integer("API_REDIS_DB", 0),
			CartTTL:  src.duration("API_REDIS_CART_TTL", defaultCartTTL),
		},
		Stripe: StripeConfig{
			SecretKey:      src.str("API_STRIPE_SECRET_KEY", ""),
			PublishableKey: src.str("API_STRIPE_PUBLISHABLE_KEY", ""),
			WebhookSecret:  src.str("API_STRIPE_WEBHOOK_SECRET", ""),
		},
		USPS: USPSConfig{
			BaseURL:      strings.TrimRight(src.str("API_USPS_BASE_URL", defaultUSPSBaseURL), "/"),
			ClientID:     src.str("API_USPS_CLIENT_ID", ""),
			ClientSecret: src.str("API_USPS_CLIENT_SECRET", ""),
			Timeout:      src.duration("API_USPS_TIMEOUT", defaultUSPSTimeout),
		},
		PubSub: PubSubConfig{
			ProjectID:  src.str("API_PUBSUB_PROJECT_ID", ""),
			OrderTopic: src.str("API_PUBSUB_ORDER_TOPIC", defaultOrderTopic),
			DropTopic:  src.str("API_PUBSUB_DROP_TOPIC", defaultDropTopic),
		},
		Firebase: FirebaseConfig{
			ProjectID:       src.str("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: src.str("API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(src.str("API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:  src.str("API_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience: src.str("API_SECURITY_OIDC_AUDIENCE", ""),
				Issuers:  src.list("API_SECURITY_OIDC_ISSUERS"),
			},
		},
		Storage: StorageConfig{
			ImagesBucket: src.str("API_STORAGE_IMAGES_BUCKET", ""),
			SignerKey:    src.str("API_STORAGE_SIGNER_KEY", ""),
			SignedURLTTL: src.duration("API_STORAGE_SIGNED_URL_TTL", defaultSignedURLTTL),
		},
		Idempotency: IdempotencyConfig{
			Header: src.str("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:    src.duration("API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		},
		Orders: OrdersConfig{
			VerifyPayment: src.boolean("API_ORDERS_VERIFY_PAYMENT", true),
		},
		RateLimits: RateLimitConfig{
			ShippingPerMinute: src.integer("API_RATELIMIT_SHIPPING_PER_MIN", defaultShippingPerMinute),
		},
	}

	// Firestore and Pub/Sub default to the Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}
	if len(cfg.Security.OIDC.Issuers) == 0 {
		cfg.Security.OIDC.Issuers = []string{defaultSecurityIssuer}
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Stripe.SecretKey", &cfg.Stripe.SecretKey},
		{"Stripe.WebhookSecret", &cfg.Stripe.WebhookSecret},
		{"USPS.ClientSecret", &cfg.USPS.ClientSecret},
		{"Postgres.DSN", &cfg.Postgres.DSN},
		{"Redis.Password", &cfg.Redis.Password},
		{"Storage.SignerKey", &cfg.Storage.SignerKey},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Server.BodyLimit <= 0 {
		missing = append(missing, "Server.BodyLimit")
	}
	if len(cfg.Store.OriginZip) < 5 || len(cfg.Store.OriginZip) > 10 {
		missing = append(missing, "Store.OriginZip")
	}
	if cfg.Store.TaxRate < 0 || cfg.Store.TaxRate >= 1 {
		missing = append(missing, "Store.TaxRate")
	}
	if _, err := time.LoadLocation(cfg.Store.Timezone); err != nil {
		missing = append(missing, "Store.Timezone")
	}
	switch cfg.Store.Driver {
	case DriverFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	case DriverPostgres:
		if cfg.Postgres.DSN == "" {
			missing = append(missing, "Postgres.DSN")
		}
		if cfg.Postgres.MaxConns <= 0 {
			missing = append(missing, "Postgres.MaxConns")
		}
	default:
		missing = append(missing, "Store.Driver")
	}
	if cfg.USPS.Timeout <= 0 {
		missing = append(missing, "USPS.Timeout")
	}
	if cfg.Redis.CartTTL <= 0 {
		missing = append(missing, "Redis.CartTTL")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.RateLimits.ShippingPerMinute <= 0 {
		missing = append(missing, "RateLimits.ShippingPerMinute")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	seen := make(map[string]struct{})
	var names []string
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if resolved[name] == "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return &MissingSecretsError{names: names}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

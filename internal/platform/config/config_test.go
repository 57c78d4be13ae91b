package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_FIREBASE_PROJECT_ID": "edition-dev",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "edition-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "edition-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Store.OriginZip != "10001" {
		t.Errorf("unexpected origin zip %s", cfg.Store.OriginZip)
	}
	if cfg.Store.TaxRate != 0.08 {
		t.Errorf("unexpected tax rate %v", cfg.Store.TaxRate)
	}
	if cfg.Store.Driver != DriverFirestore {
		t.Errorf("unexpected driver %s", cfg.Store.Driver)
	}
	if cfg.Store.Location().String() != "America/New_York" {
		t.Errorf("unexpected store location %s", cfg.Store.Location())
	}
	if cfg.USPS.BaseURL != defaultUSPSBaseURL || cfg.USPS.Timeout != 8*time.Second {
		t.Errorf("unexpected usps defaults %+v", cfg.USPS)
	}
	if cfg.Redis.CartTTL != 30*24*time.Hour {
		t.Errorf("unexpected cart ttl %s", cfg.Redis.CartTTL)
	}
	if !cfg.Orders.VerifyPayment {
		t.Error("expected payment verification enabled by default")
	}
	if len(cfg.Security.OIDC.Issuers) != 1 || cfg.Security.OIDC.Issuers[0] != defaultSecurityIssuer {
		t.Errorf("expected default issuers, got %v", cfg.Security.OIDC.Issuers)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                "9090",
		"API_SERVER_BODY_LIMIT":          "1024",
		"API_STORE_ORIGIN_ZIP":           "94107",
		"API_STORE_TAX_RATE":             "0.0725",
		"API_STORE_TIMEZONE":             "America/Los_Angeles",
		"API_STORE_DRIVER":               "Postgres",
		"API_POSTGRES_DSN":               "secret://postgres/dsn",
		"API_POSTGRES_MIGRATE":           "false",
		"API_STRIPE_SECRET_KEY":          "secret://stripe/api",
		"API_STRIPE_WEBHOOK_SECRET":      "sm://stripe/webhook",
		"API_STRIPE_PUBLISHABLE_KEY":     "pk_test_123",
		"API_USPS_BASE_URL":              "https://apis-tem.usps.com/",
		"API_USPS_CLIENT_ID":             "usps-client",
		"API_USPS_CLIENT_SECRET":         "secret://usps/secret",
		"API_USPS_TIMEOUT":               "3s",
		"API_ORDERS_VERIFY_PAYMENT":      "off",
		"API_SECURITY_OIDC_ISSUERS":      "https://accounts.google.com, https://cloud.google.com/iap",
		"API_RATELIMIT_SHIPPING_PER_MIN": "5",
	}
	secrets := map[string]string{
		"secret://postgres/dsn":   "postgres://localhost/editions",
		"secret://stripe/api":     "sk_test_123",
		"secret://stripe/webhook": "whsec_123",
		"secret://usps/secret":    "usps-secret",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("not found")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver),
		WithRequiredSecrets("Stripe.SecretKey", "Stripe.WebhookSecret"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.BodyLimit != 1024 {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Store.Driver != DriverPostgres {
		t.Errorf("expected driver to be lower-cased, got %s", cfg.Store.Driver)
	}
	if cfg.Store.TaxRate != 0.0725 || cfg.Store.OriginZip != "94107" {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Postgres.DSN != "postgres://localhost/editions" || cfg.Postgres.MigrationsEnabled {
		t.Errorf("unexpected postgres config %+v", cfg.Postgres)
	}
	if cfg.Stripe.SecretKey != "sk_test_123" || cfg.Stripe.WebhookSecret != "whsec_123" {
		t.Errorf("unexpected stripe secrets %+v", cfg.Stripe)
	}
	if cfg.USPS.BaseURL != "https://apis-tem.usps.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.USPS.BaseURL)
	}
	if cfg.USPS.ClientSecret != "usps-secret" || cfg.USPS.Timeout != 3*time.Second {
		t.Errorf("unexpected usps config %+v", cfg.USPS)
	}
	if cfg.Orders.VerifyPayment {
		t.Error("expected payment verification disabled")
	}
	if len(cfg.Security.OIDC.Issuers) != 2 {
		t.Errorf("unexpected issuers %v", cfg.Security.OIDC.Issuers)
	}
	if cfg.RateLimits.ShippingPerMinute != 5 {
		t.Errorf("unexpected shipping rate limit %d", cfg.RateLimits.ShippingPerMinute)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := validation.Fields()
	if len(fields) != 1 || fields[0] != "Firestore.ProjectID" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestLoadRejectsInvalidStoreSettings(t *testing.T) {
	env := baseEnv()
	env["API_STORE_TAX_RATE"] = "1.5"
	env["API_STORE_TIMEZONE"] = "Mars/Olympus"
	env["API_STORE_DRIVER"] = "sqlite"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]bool{"Store.TaxRate": true, "Store.Timezone": true, "Store.Driver": true}
	for _, field := range validation.Fields() {
		delete(want, field)
	}
	if len(want) != 0 {
		t.Fatalf("expected fields %v to be reported, got %v", want, validation.Fields())
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := baseEnv()
	env["API_STRIPE_SECRET_KEY"] = "secret://missing"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Errorf("expected resolver not configured, got %v", err)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Stripe.SecretKey", "Stripe.SecretKey", " "),
	)
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != redactSecretName("Stripe.SecretKey") {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	defer func() {
		rec := recover()
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if names := missing.Names(); len(names) != 1 || names[0] != "USPS.ClientSecret" {
			t.Fatalf("unexpected missing secrets %v", names)
		}
	}()

	_, _ = Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("USPS.ClientSecret"),
		WithPanicOnMissingSecrets(),
	)
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "# local\nexport API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=\".dot.local\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
	}))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("API_FIREBASE_PROJECT_ID=dot-project\nAPI_STORE_NAME='Gallery'\n"), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(envPath))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firestore.ProjectID != "dot-project" || cfg.Store.Name != "Gallery" {
		t.Fatalf("unexpected config %+v %+v", cfg.Firestore, cfg.Store)
	}
}

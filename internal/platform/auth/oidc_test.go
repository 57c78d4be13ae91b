package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
)

type oidcFixture struct {
	validator *OIDCValidator
	token     string
	fetches   *atomic.Int32
	server    *httptest.Server
}

func newOIDCFixture(t *testing.T, mutate func(jwt.MapClaims)) oidcFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwk := jose.JSONWebKey{Key: &key.PublicKey, KeyID: "svc-key", Algorithm: "RS256", Use: "sig"}

	fetches := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Header().Set("Cache-Control", "public, max-age=600")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	}))
	t.Cleanup(server.Close)

	now := time.Unix(1_700_000_000, 0)
	original := jwt.TimeFunc
	jwt.TimeFunc = func() time.Time { return now }
	t.Cleanup(func() { jwt.TimeFunc = original })

	claims := jwt.MapClaims{
		"aud":   "https://api.editionhouse.example",
		"iss":   "https://accounts.google.com",
		"sub":   "1234567890",
		"email": "scheduler@edition-prod.iam.gserviceaccount.com",
		"exp":   float64(now.Add(time.Hour).Unix()),
		"iat":   float64(now.Unix()),
	}
	if mutate != nil {
		mutate(claims)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "svc-key"
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	cache := NewJWKSCache(server.URL, server.Client(), func() time.Time { return now })
	return oidcFixture{validator: NewOIDCValidator(cache, nil), token: signed, fetches: fetches, server: server}
}

func TestJWKSCacheCachesKeys(t *testing.T) {
	fx := newOIDCFixture(t, nil)
	ctx := context.Background()

	got, err := fx.validator.keys.Key(ctx, "svc-key")
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if _, ok := got.(*rsa.PublicKey); !ok {
		t.Fatalf("expected *rsa.PublicKey, got %T", got)
	}
	if _, err := fx.validator.keys.Key(ctx, "svc-key"); err != nil {
		t.Fatalf("Key second call: %v", err)
	}
	if fx.fetches.Load() != 1 {
		t.Fatalf("expected single fetch, got %d", fx.fetches.Load())
	}

	if _, err := fx.validator.keys.Key(ctx, "rotated"); !errors.Is(err, ErrJWKSKeyNotFound) {
		t.Fatalf("expected ErrJWKSKeyNotFound, got %v", err)
	}
	if fx.fetches.Load() != 2 {
		t.Fatalf("expected unknown kid to force a refresh, got %d fetches", fx.fetches.Load())
	}
}

func TestRequireOIDCAcceptsValidToken(t *testing.T) {
	fx := newOIDCFixture(t, nil)
	handler := fx.validator.RequireOIDC("https://api.editionhouse.example", []string{"https://accounts.google.com"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := ServiceIdentityFromContext(r.Context())
			if !ok || identity.Email != "scheduler@edition-prod.iam.gserviceaccount.com" {
				t.Fatalf("unexpected service identity %+v", identity)
			}
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest(http.MethodPost, "/internal/drops:sync-status", nil)
	req.Header.Set("Authorization", "Bearer "+fx.token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRequireOIDCRejections(t *testing.T) {
	cases := []struct {
		name     string
		audience string
		mutate   func(jwt.MapClaims)
		header   bool
		want     int
	}{
		{name: "audience mismatch", audience: "https://other.example", header: true, want: http.StatusUnauthorized},
		{name: "issuer mismatch", audience: "https://api.editionhouse.example", header: true, want: http.StatusUnauthorized,
			mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil.example" }},
		{name: "expired", audience: "https://api.editionhouse.example", header: true, want: http.StatusUnauthorized,
			mutate: func(c jwt.MapClaims) { c["exp"] = float64(time.Unix(1_600_000_000, 0).Unix()) }},
		{name: "missing token", audience: "https://api.editionhouse.example", want: http.StatusUnauthorized},
		{name: "audience not configured", audience: "", header: true, want: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newOIDCFixture(t, tc.mutate)
			handler := fx.validator.RequireOIDC(tc.audience, []string{"https://accounts.google.com"})(
				http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
					t.Fatal("handler should not be called")
				}))
			req := httptest.NewRequest(http.MethodPost, "/internal/drops:sync-status", nil)
			if tc.header {
				req.Header.Set("Authorization", "Bearer "+fx.token)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestRequireOIDCJWKSUnavailable(t *testing.T) {
	fx := newOIDCFixture(t, nil)
	fx.server.Close()

	handler := fx.validator.RequireOIDC("https://api.editionhouse.example", nil)(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler should not be called")
		}))
	req := httptest.NewRequest(http.MethodPost, "/internal/drops:sync-status", nil)
	req.Header.Set("Authorization", "Bearer "+fx.token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

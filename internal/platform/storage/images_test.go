package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

type fakeSigner struct {
	email    string
	payloads [][]byte
	err      error
}

func (f *fakeSigner) Email() string {
	return f.email
}

func (f *fakeSigner) SignBytes(_ context.Context, payload []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return []byte("signed"), nil
}

func newTestImageURLs(t *testing.T, signer *fakeSigner) *ImageURLs {
	t.Helper()
	urls, err := NewImageURLs(signer, "edition-images", WithTTL(10*time.Minute), WithClock(time.Now))
	if err != nil {
		t.Fatalf("NewImageURLs: %v", err)
	}
	return urls
}

func TestImageURLSignsObjectPath(t *testing.T) {
	signer := &fakeSigner{email: "images@edition-prod.iam.gserviceaccount.com"}
	urls := newTestImageURLs(t, signer)

	got, err := urls.URL(context.Background(), "artworks/aw-1/hero.jpg")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(parsed.Path, "edition-images/artworks/aw-1/hero.jpg") {
		t.Fatalf("unexpected path %s", parsed.Path)
	}
	query := parsed.Query()
	if query.Get("X-Goog-Expires") == "" || query.Get("X-Goog-Credential") == "" {
		t.Fatalf("expected V4 query parameters, got %v", query)
	}
	if query.Get("X-Goog-Signature") == "" {
		t.Fatal("expected signature in query")
	}
	if len(signer.payloads) != 1 {
		t.Fatalf("expected one signing call, got %d", len(signer.payloads))
	}
}

func TestImageURLHonoursGSBucket(t *testing.T) {
	urls := newTestImageURLs(t, &fakeSigner{email: "images@example.iam.gserviceaccount.com"})

	got, err := urls.URL(context.Background(), "gs://archive-bucket/scans/piece.tif")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if !strings.Contains(got, "archive-bucket/scans/piece.tif") {
		t.Fatalf("expected archive bucket in %s", got)
	}
}

func TestImageURLPassthrough(t *testing.T) {
	signer := &fakeSigner{email: "images@example.iam.gserviceaccount.com"}
	urls := newTestImageURLs(t, signer)

	for _, ref := range []string{"", "https://cdn.example.com/a.jpg", "/images/local.png"} {
		got, err := urls.URL(context.Background(), ref)
		if err != nil || got != ref {
			t.Fatalf("URL(%q) = %q, %v", ref, got, err)
		}
	}
	if len(signer.payloads) != 0 {
		t.Fatal("passthrough refs must not be signed")
	}

	var disabled *ImageURLs
	if got, _ := disabled.URL(context.Background(), "artworks/x.jpg"); got != "artworks/x.jpg" {
		t.Fatalf("nil resolver should pass through, got %q", got)
	}
}

func TestImageURLsPropagatesSignerError(t *testing.T) {
	boom := errors.New("kms down")
	urls := newTestImageURLs(t, &fakeSigner{email: "images@example.iam.gserviceaccount.com", err: boom})

	if _, err := urls.URLs(context.Background(), []string{"https://ok.example/a.jpg", "artworks/b.jpg"}); !errors.Is(err, boom) {
		t.Fatalf("expected signer error, got %v", err)
	}
}

func TestNewImageURLsValidation(t *testing.T) {
	if _, err := NewImageURLs(nil, "bucket"); !errors.Is(err, errNoSigner) {
		t.Fatalf("expected errNoSigner, got %v", err)
	}
	if _, err := NewImageURLs(&fakeSigner{email: "a@b"}, " "); !errors.Is(err, errInvalidBucket) {
		t.Fatalf("expected errInvalidBucket, got %v", err)
	}
	if _, err := NewSignerFromKey(""); !errors.Is(err, errNoSigner) {
		t.Fatalf("expected errNoSigner for empty key, got %v", err)
	}
}

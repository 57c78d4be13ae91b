package idempotency

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/editionhouse/api/internal/platform/auth"
	"github.com/editionhouse/api/internal/platform/httpx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
	cartTokenHeader   = "X-Cart-Token"
	maxKeyLength      = 255
)

type guard struct {
	store  Store
	header string
	ttl    time.Duration
	clock  func() time.Time
	logger *zap.Logger
}

// MiddlewareOption customises the checkout guard.
type MiddlewareOption func(*guard)

// WithHeader overrides the request header carrying the client key.
func WithHeader(name string) MiddlewareOption {
	return func(g *guard) {
		if name = strings.TrimSpace(name); name != "" {
			g.header = name
		}
	}
}

// WithTTL sets how long a completed response stays replayable.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

func WithLogger(logger *zap.Logger) MiddlewareOption {
	return func(g *guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) MiddlewareOption {
	return func(g *guard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// Middleware replays the stored response when a POST is retried with the same key. Requests
// without a key, and every other method, reach the handler untouched.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	g := &guard{
		store:  store,
		header: defaultHeaderName,
		ttl:    DefaultTTL,
		clock:  time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(g.header))
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			g.serve(w, r, key, next)
		})
	}
}

func (g *guard) serve(w http.ResponseWriter, r *http.Request, key string, next http.Handler) {
	if len(key) > maxKeyLength {
		respondError(w, r, http.StatusBadRequest, "idempotency_key_invalid", "idempotency key too long")
		return
	}
	body, err := bufferBody(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "idempotency_read_body_failed", "unable to read request body")
		return
	}

	requester := requesterOf(r)
	slot := key + "|" + requester
	fingerprint := requestFingerprint(r, body, requester)
	logger := g.logger.With(zap.String("key", key), zap.String("requester", requester))

	reservation, err := g.store.Reserve(r.Context(), slot, fingerprint, g.clock().UTC(), g.ttl)
	switch {
	case errors.Is(err, ErrFingerprintMismatch):
		respondError(w, r, http.StatusConflict, "idempotency_key_conflict", "idempotency key already used for a different request")
		return
	case err != nil:
		logger.Error("reserve idempotency key", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "idempotency_store_error", "unable to process idempotency key")
		return
	}

	switch reservation.State {
	case ReservationStateCompleted:
		replay(w, reservation.Record)
		return
	case ReservationStatePending:
		respondError(w, r, http.StatusConflict, "idempotency_in_progress", "another request is processing this idempotency key")
		return
	}

	rec := &bufferedResponse{header: make(http.Header)}
	next.ServeHTTP(rec, r)

	resp := Response{Status: rec.statusCode(), Headers: rec.header.Clone(), Body: rec.body.Bytes()}
	if err := g.store.SaveResponse(r.Context(), slot, fingerprint, resp, g.clock().UTC(), g.ttl); err != nil {
		logger.Error("persist idempotent response", zap.Error(err))
		if err := g.store.Release(r.Context(), slot, fingerprint); err != nil {
			logger.Warn("release idempotency key", zap.Error(err))
		}
		respondError(w, r, http.StatusInternalServerError, "idempotency_store_error", "unable to persist idempotency state")
		return
	}
	if err := rec.flushTo(w); err != nil {
		logger.Warn("flush idempotent response", zap.Error(err))
	}
}

func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// requesterOf scopes keys to the signed-in customer, else to the guest cart, so two shoppers
// choosing the same key never see each other's checkout.
func requesterOf(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity != nil && identity.UID != "" {
		return "uid:" + identity.UID
	}
	if token := strings.TrimSpace(r.Header.Get(cartTokenHeader)); token != "" {
		return "cart:" + token
	}
	return "anonymous"
}

func requestFingerprint(r *http.Request, body []byte, requester string) string {
	parts := []string{r.Method, r.URL.Path, r.URL.RawQuery, requester, sha256Hex(body)}
	return sha256Hex([]byte(strings.Join(parts, "|")))
}

func replay(w http.ResponseWriter, record Record) {
	dst := w.Header()
	for name, values := range headersFromRecord(record.ResponseHeaders) {
		dst[name] = values
	}
	dst.Set(replayHeaderName, "true")
	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	httpx.WriteError(r.Context(), w, httpx.NewError(code, message, status))
}

// bufferedResponse holds the handler's output until it has been stored.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

func (b *bufferedResponse) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *bufferedResponse) flushTo(w http.ResponseWriter) error {
	dst := w.Header()
	for name, values := range b.header {
		dst[name] = values
	}
	w.WriteHeader(b.statusCode())
	_, err := w.Write(b.body.Bytes())
	return err
}

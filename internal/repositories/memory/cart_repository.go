package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/repositories"
)

// CartRepository keeps carts in process memory. It is used when no Redis address is configured,
// typically in local development, and entries expire after ttl.
type CartRepository struct {
	mu    sync.Mutex
	carts map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

type entry struct {
	cart      domain.Cart
	expiresAt time.Time
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs an in-memory cart store. A non-positive ttl disables expiry.
func NewCartRepository(ttl time.Duration) *CartRepository {
	return &CartRepository{carts: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (r *CartRepository) Load(_ context.Context, owner string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.carts[owner]
	if !ok || r.expired(e) {
		delete(r.carts, owner)
		return domain.Cart{}, notFoundError{owner: owner}
	}
	cart := e.cart
	cart.Lines = slices.Clone(cart.Lines)
	return cart, nil
}

func (r *CartRepository) Save(_ context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart.Lines = slices.Clone(cart.Lines)
	e := entry{cart: cart}
	if r.ttl > 0 {
		e.expiresAt = r.now().Add(r.ttl)
	}
	r.carts[cart.Owner] = e
	return nil
}

func (r *CartRepository) Delete(_ context.Context, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, owner)
	return nil
}

func (r *CartRepository) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !r.now().Before(e.expiresAt)
}

type notFoundError struct{ owner string }

func (e notFoundError) Error() string       { return fmt.Sprintf("cart %q not found", e.owner) }
func (e notFoundError) IsNotFound() bool    { return true }
func (e notFoundError) IsConflict() bool    { return false }
func (e notFoundError) IsUnavailable() bool { return false }

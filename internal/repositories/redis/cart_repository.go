package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/repositories"
)

const (
	defaultCartPrefix = "cart:"
	defaultCartTTL    = 30 * 24 * time.Hour
)

// CartRepository stores carts as JSON documents under cart:<owner>. Every save refreshes the TTL
// so abandoned guest carts expire on their own.
type CartRepository struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a Redis-backed cart repository.
func NewCartRepository(client goredis.UniversalClient, ttl time.Duration) (*CartRepository, error) {
	if client == nil {
		return nil, errors.New("cart repository requires redis client")
	}
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	return &CartRepository{client: client, prefix: defaultCartPrefix, ttl: ttl}, nil
}

type cartPayload struct {
	Owner     string        `json:"owner"`
	Lines     []linePayload `json:"lines"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type linePayload struct {
	ArtworkID string `json:"artworkId"`
	Quantity  int    `json:"quantity"`
}

func (r *CartRepository) Load(ctx context.Context, owner string) (domain.Cart, error) {
	data, err := r.client.Get(ctx, r.key(owner)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Cart{}, &Error{op: "carts.load", err: err, notFound: true}
	}
	if err != nil {
		return domain.Cart{}, wrap("carts.load", err)
	}

	var payload cartPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.Cart{}, fmt.Errorf("carts.load: decode %s: %w", owner, err)
	}
	cart := domain.Cart{Owner: owner, UpdatedAt: payload.UpdatedAt}
	for _, line := range payload.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine(line))
	}
	return cart, nil
}

func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	payload := cartPayload{Owner: cart.Owner, Lines: make([]linePayload, 0, len(cart.Lines)), UpdatedAt: cart.UpdatedAt.UTC()}
	for _, line := range cart.Lines {
		payload.Lines = append(payload.Lines, linePayload(line))
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("carts.save: encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key(cart.Owner), data, r.ttl).Err(); err != nil {
		return wrap("carts.save", err)
	}
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, owner string) error {
	if err := r.client.Del(ctx, r.key(owner)).Err(); err != nil {
		return wrap("carts.delete", err)
	}
	return nil
}

func (r *CartRepository) key(owner string) string {
	return r.prefix + strings.TrimSpace(owner)
}

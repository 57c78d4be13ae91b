package repositories

import (
	"context"
	"time"

	domain "github.com/editionhouse/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error
	Ping(ctx context.Context) error

	Artworks() ArtworkRepository
	Drops() DropRepository
	Orders() OrderRepository
	Customers() CustomerRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ArtworkRepository is the authoritative source of artwork prices and availability.
type ArtworkRepository interface {
	Get(ctx context.Context, artworkID string) (domain.Artwork, error)
	List(ctx context.Context, filter domain.ArtworkFilter) ([]domain.Artwork, error)
}

// DropRepository reads drops and persists the administrative status field.
type DropRepository interface {
	Get(ctx context.Context, dropID string) (domain.Drop, error)
	List(ctx context.Context) ([]domain.Drop, error)
	UpdateStatus(ctx context.Context, dropID string, status domain.DropStatus, updatedAt time.Time) error
}

// OrderRepository persists orders. CreateWithCustomerStats must insert the order and bump the
// owning customer's aggregates in a single transaction; a missing customer is not an error.
type OrderRepository interface {
	CreateWithCustomerStats(ctx context.Context, order domain.Order, now time.Time) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) (domain.CursorPage[domain.Order], error)
}

// CustomerRepository reads customer aggregates.
type CustomerRepository interface {
	Get(ctx context.Context, customerID string) (domain.Customer, error)
}

// CartRepository loads and saves carts keyed by owner (user or guest).
type CartRepository interface {
	Load(ctx context.Context, owner string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
	Delete(ctx context.Context, owner string) error
}

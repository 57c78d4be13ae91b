package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/editionhouse/api/internal/repositories"
)

// Registry groups the Postgres repositories around one pool.
type Registry struct {
	pool      *pgxpool.Pool
	artworks  *ArtworkRepository
	drops     *DropRepository
	orders    *OrderRepository
	customers *CustomerRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every repository to pool.
func NewRegistry(pool *pgxpool.Pool) (*Registry, error) {
	if pool == nil {
		return nil, errors.New("postgres registry requires pool")
	}
	return &Registry{
		pool:      pool,
		artworks:  &ArtworkRepository{db: pool},
		drops:     &DropRepository{db: pool},
		orders:    &OrderRepository{db: pool},
		customers: &CustomerRepository{db: pool},
	}, nil
}

func (r *Registry) Close(context.Context) error {
	r.pool.Close()
	return nil
}

func (r *Registry) Ping(ctx context.Context) error { return r.pool.Ping(ctx) }

func (r *Registry) Artworks() repositories.ArtworkRepository   { return r.artworks }
func (r *Registry) Drops() repositories.DropRepository         { return r.drops }
func (r *Registry) Orders() repositories.OrderRepository       { return r.orders }
func (r *Registry) Customers() repositories.CustomerRepository { return r.customers }

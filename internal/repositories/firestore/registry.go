package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/editionhouse/api/internal/platform/firestore"
	"github.com/editionhouse/api/internal/repositories"
)

// Registry groups the Firestore repositories behind one provider.
type Registry struct {
	provider  *pfirestore.Provider
	artworks  *ArtworkRepository
	drops     *DropRepository
	orders    *OrderRepository
	customers *CustomerRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every repository to provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	artworks, err := NewArtworkRepository(provider)
	if err != nil {
		return nil, err
	}
	drops, err := NewDropRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	customers, err := NewCustomerRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider:  provider,
		artworks:  artworks,
		drops:     drops,
		orders:    orders,
		customers: customers,
	}, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }
func (r *Registry) Ping(ctx context.Context) error  { return r.provider.Ping(ctx) }

func (r *Registry) Artworks() repositories.ArtworkRepository   { return r.artworks }
func (r *Registry) Drops() repositories.DropRepository         { return r.drops }
func (r *Registry) Orders() repositories.OrderRepository       { return r.orders }
func (r *Registry) Customers() repositories.CustomerRepository { return r.customers }

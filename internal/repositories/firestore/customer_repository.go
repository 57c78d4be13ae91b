package firestore

import (
	"context"
	"errors"

	domain "github.com/editionhouse/api/internal/domain"
	pfirestore "github.com/editionhouse/api/internal/platform/firestore"
	"github.com/editionhouse/api/internal/repositories"
)

// CustomerRepository reads customer aggregates.
type CustomerRepository struct {
	coll *pfirestore.Collection[customerDocument]
}

var _ repositories.CustomerRepository = (*CustomerRepository)(nil)

// NewCustomerRepository constructs a Firestore-backed customer repository.
func NewCustomerRepository(provider *pfirestore.Provider) (*CustomerRepository, error) {
	if provider == nil {
		return nil, errors.New("customer repository requires firestore provider")
	}
	return &CustomerRepository{coll: pfirestore.NewCollection[customerDocument](provider, customersCollection)}, nil
}

func (r *CustomerRepository) Get(ctx context.Context, customerID string) (domain.Customer, error) {
	doc, err := r.coll.Get(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return doc.toDomain(customerID), nil
}

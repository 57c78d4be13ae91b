package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	domain "github.com/editionhouse/api/internal/domain"
	ppostgres "github.com/editionhouse/api/internal/platform/postgres"
	"github.com/editionhouse/api/internal/repositories"
)

// CustomerRepository reads customer aggregates.
type CustomerRepository struct {
	db DB
}

var _ repositories.CustomerRepository = (*CustomerRepository)(nil)

// NewCustomerRepository constructs a Postgres-backed customer repository.
func NewCustomerRepository(db DB) (*CustomerRepository, error) {
	if db == nil {
		return nil, errors.New("customer repository requires database")
	}
	return &CustomerRepository{db: db}, nil
}

func (r *CustomerRepository) Get(ctx context.Context, customerID string) (domain.Customer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, customerID)
	if err != nil {
		return domain.Customer{}, ppostgres.WrapError("customers.get", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[customerRow])
	if err != nil {
		return domain.Customer{}, ppostgres.WrapError("customers.get", err)
	}
	return row.toDomain(), nil
}

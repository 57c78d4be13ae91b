package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/editionhouse/api/internal/domain"
	pfirestore "github.com/editionhouse/api/internal/platform/firestore"
	"github.com/editionhouse/api/internal/platform/pagination"
	"github.com/editionhouse/api/internal/repositories"
)

const (
	orderCreateTxAttempts = 3
	orderUpdateTxTimeout  = 5 * time.Second
)

// OrderRepository persists orders keyed by payment intent id.
type OrderRepository struct {
	provider  *pfirestore.Provider
	orders    *pfirestore.Collection[orderDocument]
	customers *pfirestore.Collection[customerDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider:  provider,
		orders:    pfirestore.NewCollection[orderDocument](provider, ordersCollection),
		customers: pfirestore.NewCollection[customerDocument](provider, customersCollection),
	}, nil
}

// CreateWithCustomerStats creates the order document and folds its total into the customer's
// aggregates. Reads happen before writes as Firestore transactions require.
func (r *OrderRepository) CreateWithCustomerStats(ctx context.Context, order domain.Order, now time.Time) error {
	orderRef, err := r.orders.Doc(ctx, order.ID)
	if err != nil {
		return err
	}
	var customerRef *firestore.DocumentRef
	if id := strings.TrimSpace(order.CustomerID); id != "" {
		if customerRef, err = r.customers.Doc(ctx, id); err != nil {
			return err
		}
	}

	doc := newOrderDocument(order)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var customer *customerDocument
		if customerRef != nil {
			snap, err := tx.Get(customerRef)
			switch {
			case err == nil:
				decoded, err := pfirestore.Decode[customerDocument](snap)
				if err != nil {
					return err
				}
				customer = &decoded
			case !pfirestore.IsNotFound(err):
				return err
			}
		}

		if err := tx.Create(orderRef, doc); err != nil {
			return err
		}
		if customer == nil {
			return nil
		}
		lastOrder := now.UTC()
		customer.TotalSpent += order.Total
		customer.OrderCount++
		customer.LastOrderDate = &lastOrder
		return tx.Set(customerRef, *customer)
	}, pfirestore.WithTxAttempts(orderCreateTxAttempts))
	if err != nil {
		return pfirestore.WrapError("orders.create", err)
	}
	return nil
}

// Update replaces an existing order. Missing orders yield a not-found error.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	ref, err := r.orders.Doc(ctx, order.ID)
	if err != nil {
		return err
	}
	doc := newOrderDocument(order)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		return tx.Set(ref, doc)
	}, pfirestore.WithTxTimeout(orderUpdateTxTimeout))
	if err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.toDomain(orderID), nil
}

// List returns orders newest first, paging on (createdAt, document id).
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, fmt.Errorf("orders.list: %w", err)
	}
	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}

	snaps, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if id := strings.TrimSpace(filter.CustomerID); id != "" {
			q = q.Where("customerId", "==", id)
		}
		if len(filter.Status) > 0 {
			q = q.Where("status", "in", toStrings(filter.Status))
		}
		if len(filter.PaymentStatus) > 0 {
			q = q.Where("paymentStatus", "in", toStrings(filter.PaymentStatus))
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.IsZero() {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return q.Limit(limit + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	var next string
	if len(snaps) > limit {
		snaps = snaps[:limit]
		last := snaps[len(snaps)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.Data.CreatedAt, ID: last.ID})
	}

	items := make([]domain.Order, 0, len(snaps))
	for _, snap := range snaps {
		items = append(items, snap.Data.toDomain(snap.ID))
	}
	return domain.CursorPage[domain.Order]{Items: items, NextPageToken: next}, nil
}

func toStrings[S ~string](values []S) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

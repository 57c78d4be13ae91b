package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/platform/pagination"
	ppostgres "github.com/editionhouse/api/internal/platform/postgres"
	"github.com/editionhouse/api/internal/repositories"
)

// OrderRepository persists orders in Postgres.
type OrderRepository struct {
	db DB
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Postgres-backed order repository.
func NewOrderRepository(db DB) (*OrderRepository, error) {
	if db == nil {
		return nil, errors.New("order repository requires database")
	}
	return &OrderRepository{db: db}, nil
}

const (
	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `) VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`

	bumpCustomerStatsSQL = `UPDATE customers
	SET total_spent = total_spent + $2, order_count = order_count + 1, last_order_date = $3
	WHERE id = $1`

	updateOrderSQL = `UPDATE orders SET
	customer_id = $2, customer_name = $3, customer_email = $4, customer_phone = $5, shipping_address = $6,
	billing_address = $7, status = $8, payment_status = $9, payment_intent_id = $10, items = $11,
	subtotal = $12, shipping = $13, tax = $14, total = $15, refunded_amount = $16, tracking_carrier = $17,
	tracking_number = $18, tracking_url = $19, timeline = $20, notes = $21, created_at = $22, updated_at = $23
	WHERE id = $1`
)

// CreateWithCustomerStats inserts the order and bumps the owning customer's aggregates in one
// transaction. An unknown customer updates zero rows and is not an error.
func (r *OrderRepository) CreateWithCustomerStats(ctx context.Context, order domain.Order, now time.Time) error {
	row := newOrderRow(order)
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertOrderSQL, row.args()...); err != nil {
			return err
		}
		if strings.TrimSpace(order.CustomerID) == "" {
			return nil
		}
		_, err := tx.Exec(ctx, bumpCustomerStatsSQL, order.CustomerID, order.Total, now.UTC())
		return err
	})
	if err != nil {
		return ppostgres.WrapError("orders.create", err)
	}
	return nil
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	tag, err := r.db.Exec(ctx, updateOrderSQL, newOrderRow(order).args()...)
	if err != nil {
		return ppostgres.WrapError("orders.update", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NotFound("orders.update")
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	rows, err := r.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.get", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[orderRow])
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.get", err)
	}
	return row.toDomain(), nil
}

// List pages newest first using a keyset on (created_at, id).
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, fmt.Errorf("orders.list: %w", err)
	}
	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}

	query, args := buildOrderListQuery(filter, cursor, limit)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, ppostgres.WrapError("orders.list", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[orderRow])
	if err != nil {
		return domain.CursorPage[domain.Order]{}, ppostgres.WrapError("orders.list", err)
	}

	var next string
	if len(list) > limit {
		list = list[:limit]
		last := list[len(list)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	items := make([]domain.Order, 0, len(list))
	for _, row := range list {
		items = append(items, row.toDomain())
	}
	return domain.CursorPage[domain.Order]{Items: items, NextPageToken: next}, nil
}

func buildOrderListQuery(filter domain.OrderFilter, cursor pagination.Cursor, limit int) (string, []any) {
	var w where
	if id := strings.TrimSpace(filter.CustomerID); id != "" {
		w.add("customer_id = %s", id)
	}
	if len(filter.Status) > 0 {
		w.add("status = ANY(%s)", toStrings(filter.Status))
	}
	if len(filter.PaymentStatus) > 0 {
		w.add("payment_status = ANY(%s)", toStrings(filter.PaymentStatus))
	}
	if !cursor.IsZero() {
		w.add("(created_at, id) < (%s, %s)", cursor.CreatedAt.UTC(), cursor.ID)
	}
	query := `SELECT ` + orderColumns + ` FROM orders` + w.String() +
		` ORDER BY created_at DESC, id DESC LIMIT ` + w.bind(limit+1)
	return query, w.args
}

func toStrings[S ~string](values []S) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

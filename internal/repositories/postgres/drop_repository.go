package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/editionhouse/api/internal/domain"
	ppostgres "github.com/editionhouse/api/internal/platform/postgres"
	"github.com/editionhouse/api/internal/repositories"
)

// DropRepository reads drops and persists their administrative status.
type DropRepository struct {
	db DB
}

var _ repositories.DropRepository = (*DropRepository)(nil)

// NewDropRepository constructs a Postgres-backed drop repository.
func NewDropRepository(db DB) (*DropRepository, error) {
	if db == nil {
		return nil, errors.New("drop repository requires database")
	}
	return &DropRepository{db: db}, nil
}

func (r *DropRepository) Get(ctx context.Context, dropID string) (domain.Drop, error) {
	rows, err := r.db.Query(ctx, `SELECT `+dropColumns+` FROM drops WHERE id = $1`, dropID)
	if err != nil {
		return domain.Drop{}, ppostgres.WrapError("drops.get", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[dropRow])
	if err != nil {
		return domain.Drop{}, ppostgres.WrapError("drops.get", err)
	}
	return row.toDomain(), nil
}

func (r *DropRepository) List(ctx context.Context) ([]domain.Drop, error) {
	rows, err := r.db.Query(ctx, `SELECT `+dropColumns+` FROM drops ORDER BY start_date, start_time, id`)
	if err != nil {
		return nil, ppostgres.WrapError("drops.list", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[dropRow])
	if err != nil {
		return nil, ppostgres.WrapError("drops.list", err)
	}
	out := make([]domain.Drop, 0, len(list))
	for _, row := range list {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *DropRepository) UpdateStatus(ctx context.Context, dropID string, status domain.DropStatus, updatedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE drops SET status = $2, updated_at = $3 WHERE id = $1`, dropID, string(status), updatedAt.UTC())
	if err != nil {
		return ppostgres.WrapError("drops.update_status", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NotFound("drops.update_status")
	}
	return nil
}

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	domain "github.com/editionhouse/api/internal/domain"
	ppostgres "github.com/editionhouse/api/internal/platform/postgres"
	"github.com/editionhouse/api/internal/repositories"
)

// ArtworkRepository reads the artwork catalog from Postgres.
type ArtworkRepository struct {
	db DB
}

var _ repositories.ArtworkRepository = (*ArtworkRepository)(nil)

// NewArtworkRepository constructs a Postgres-backed artwork repository.
func NewArtworkRepository(db DB) (*ArtworkRepository, error) {
	if db == nil {
		return nil, errors.New("artwork repository requires database")
	}
	return &ArtworkRepository{db: db}, nil
}

func (r *ArtworkRepository) Get(ctx context.Context, artworkID string) (domain.Artwork, error) {
	rows, err := r.db.Query(ctx, `SELECT `+artworkColumns+` FROM artworks WHERE id = $1`, artworkID)
	if err != nil {
		return domain.Artwork{}, ppostgres.WrapError("artworks.get", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[artworkRow])
	if err != nil {
		return domain.Artwork{}, ppostgres.WrapError("artworks.get", err)
	}
	return row.toDomain(), nil
}

// List keeps the caller's id order when IDs is set; otherwise artworks come newest first.
func (r *ArtworkRepository) List(ctx context.Context, filter domain.ArtworkFilter) ([]domain.Artwork, error) {
	query, args := buildArtworkListQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, ppostgres.WrapError("artworks.list", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[artworkRow])
	if err != nil {
		return nil, ppostgres.WrapError("artworks.list", err)
	}
	out := make([]domain.Artwork, 0, len(list))
	for _, row := range list {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func buildArtworkListQuery(filter domain.ArtworkFilter) (string, []any) {
	var w where
	if len(filter.IDs) > 0 {
		w.add("id = ANY(%s)", filter.IDs)
	}
	if filter.FeaturedOnly {
		w.add("featured = %s", true)
	}
	if filter.Type != "" {
		w.add("type = %s", string(filter.Type))
	}
	order := " ORDER BY created_at DESC, id"
	if len(filter.IDs) > 0 {
		order = " ORDER BY array_position(" + w.bind(filter.IDs) + "::text[], id)"
	}
	return `SELECT ` + artworkColumns + ` FROM artworks` + w.String() + order, w.args
}

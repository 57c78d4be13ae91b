package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/editionhouse/api/internal/domain"
	pfirestore "github.com/editionhouse/api/internal/platform/firestore"
	"github.com/editionhouse/api/internal/repositories"
)

// DropRepository reads drops and persists their administrative status.
type DropRepository struct {
	coll *pfirestore.Collection[dropDocument]
}

var _ repositories.DropRepository = (*DropRepository)(nil)

// NewDropRepository constructs a Firestore-backed drop repository.
func NewDropRepository(provider *pfirestore.Provider) (*DropRepository, error) {
	if provider == nil {
		return nil, errors.New("drop repository requires firestore provider")
	}
	return &DropRepository{coll: pfirestore.NewCollection[dropDocument](provider, dropsCollection)}, nil
}

func (r *DropRepository) Get(ctx context.Context, dropID string) (domain.Drop, error) {
	doc, err := r.coll.Get(ctx, dropID)
	if err != nil {
		return domain.Drop{}, err
	}
	return doc.toDomain(dropID), nil
}

// List returns every drop ordered by start date.
func (r *DropRepository) List(ctx context.Context) ([]domain.Drop, error) {
	snaps, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("startDate", firestore.Asc).OrderBy("startTime", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Drop, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snap.Data.toDomain(snap.ID))
	}
	return out, nil
}

func (r *DropRepository) UpdateStatus(ctx context.Context, dropID string, status domain.DropStatus, updatedAt time.Time) error {
	return r.coll.Update(ctx, dropID, []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	})
}

package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/editionhouse/api/internal/domain"
	pfirestore "github.com/editionhouse/api/internal/platform/firestore"
	"github.com/editionhouse/api/internal/repositories"
)

// ArtworkRepository reads the artwork catalog.
type ArtworkRepository struct {
	coll *pfirestore.Collection[artworkDocument]
}

var _ repositories.ArtworkRepository = (*ArtworkRepository)(nil)

// NewArtworkRepository constructs a Firestore-backed artwork repository.
func NewArtworkRepository(provider *pfirestore.Provider) (*ArtworkRepository, error) {
	if provider == nil {
		return nil, errors.New("artwork repository requires firestore provider")
	}
	return &ArtworkRepository{coll: pfirestore.NewCollection[artworkDocument](provider, artworksCollection)}, nil
}

// Get loads a single artwork.
func (r *ArtworkRepository) Get(ctx context.Context, artworkID string) (domain.Artwork, error) {
	doc, err := r.coll.Get(ctx, artworkID)
	if err != nil {
		return domain.Artwork{}, err
	}
	return doc.toDomain(artworkID), nil
}

// List returns artworks matching filter. An id filter is served by a batched read that keeps
// the requested order; other listings are newest first.
func (r *ArtworkRepository) List(ctx context.Context, filter domain.ArtworkFilter) ([]domain.Artwork, error) {
	var (
		snaps []pfirestore.Snapshot[artworkDocument]
		err   error
	)
	if len(filter.IDs) > 0 {
		snaps, err = r.coll.GetAll(ctx, filter.IDs)
	} else {
		snaps, err = r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
			if filter.FeaturedOnly {
				q = q.Where("featured", "==", true)
			}
			if filter.Type != "" {
				q = q.Where("type", "==", string(filter.Type))
			}
			return q.OrderBy("createdAt", firestore.Desc)
		})
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.Artwork, 0, len(snaps))
	for _, snap := range snaps {
		if len(filter.IDs) > 0 {
			if filter.FeaturedOnly && !snap.Data.Featured {
				continue
			}
			if filter.Type != "" && domain.ArtworkType(snap.Data.Type) != filter.Type {
				continue
			}
		}
		out = append(out, snap.Data.toDomain(snap.ID))
	}
	return out, nil
}

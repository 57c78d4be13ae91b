package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/repositories"
)

var (
	// ErrCatalogNotFound indicates the artwork or drop does not exist or is not public.
	ErrCatalogNotFound = errors.New("catalog: not found")
	// ErrCatalogInvalidInput signals malformed identifiers or filters.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
)

// ImageResolver turns stored image references into URLs a browser can load.
type ImageResolver interface {
	URL(ctx context.Context, ref string) (string, error)
}

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Artworks repositories.ArtworkRepository
	Drops    repositories.DropRepository
	Images   ImageResolver
	Location *time.Location
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	artworks repositories.ArtworkRepository
	drops    repositories.DropRepository
	images   ImageResolver
	loc      *time.Location
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Artworks == nil {
		return nil, errors.New("catalog service: artwork repository is required")
	}
	if deps.Drops == nil {
		return nil, errors.New("catalog service: drop repository is required")
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{
		artworks: deps.Artworks,
		drops:    deps.Drops,
		images:   deps.Images,
		loc:      loc,
		clock:    clock,
		logger:   logger,
	}, nil
}

func (s *catalogService) ListArtworks(ctx context.Context, filter domain.ArtworkFilter) ([]ArtworkView, error) {
	artworks, err := s.artworks.List(ctx, filter)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	views := make([]ArtworkView, 0, len(artworks))
	for _, artwork := range artworks {
		views = append(views, s.artworkView(ctx, artwork))
	}
	return views, nil
}

func (s *catalogService) GetArtwork(ctx context.Context, artworkID string) (ArtworkView, error) {
	artworkID = strings.TrimSpace(artworkID)
	if artworkID == "" {
		return ArtworkView{}, fmt.Errorf("%w: artwork id is required", ErrCatalogInvalidInput)
	}
	artwork, err := s.artworks.Get(ctx, artworkID)
	if err != nil {
		return ArtworkView{}, s.mapRepositoryError(err)
	}
	return s.artworkView(ctx, artwork), nil
}

func (s *catalogService) ListDrops(ctx context.Context, filter DropListFilter) ([]DropView, error) {
	drops, err := s.drops.List(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	now := s.clock()
	views := make([]DropView, 0, len(drops))
	for _, drop := range drops {
		if drop.Status == domain.DropStatusDraft && !filter.IncludeDrafts {
			continue
		}
		if filter.FeaturedOnly && !drop.Featured {
			continue
		}
		view := s.dropView(drop, now)
		if filter.Status != "" && view.DerivedStatus != filter.Status {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *catalogService) GetDrop(ctx context.Context, dropID string) (DropView, error) {
	dropID = strings.TrimSpace(dropID)
	if dropID == "" {
		return DropView{}, fmt.Errorf("%w: drop id is required", ErrCatalogInvalidInput)
	}
	drop, err := s.drops.Get(ctx, dropID)
	if err != nil {
		return DropView{}, s.mapRepositoryError(err)
	}
	if drop.Status == domain.DropStatusDraft {
		return DropView{}, fmt.Errorf("%w: drop %s", ErrCatalogNotFound, dropID)
	}

	view := s.dropView(drop, s.clock())
	if len(drop.ArtworkIDs) > 0 {
		artworks, err := s.artworks.List(ctx, domain.ArtworkFilter{IDs: drop.ArtworkIDs})
		if err != nil {
			return DropView{}, s.mapRepositoryError(err)
		}
		view.Artworks = make([]ArtworkView, 0, len(artworks))
		for _, artwork := range artworks {
			view.Artworks = append(view.Artworks, s.artworkView(ctx, artwork))
		}
	}
	if hero, err := s.resolveImage(ctx, drop.HeroImage); err == nil {
		view.HeroImage = hero
	}
	return view, nil
}

// dropView attaches the status derived from the schedule. Drafts keep their stored status.
func (s *catalogService) dropView(drop Drop, now time.Time) DropView {
	view := DropView{Drop: drop, DerivedStatus: domain.DropStatusDraft}
	if drop.Status != domain.DropStatusDraft {
		view.DerivedStatus = domain.DropStatusAt(drop, now, s.loc)
	}
	if start, ok := domain.DropStart(drop, s.loc); ok {
		view.StartsAt = &start
	}
	if end, ok := domain.DropEnd(drop, s.loc); ok {
		view.EndsAt = &end
	}
	return view
}

func (s *catalogService) artworkView(ctx context.Context, artwork Artwork) ArtworkView {
	view := ArtworkView{Artwork: artwork, MaxQuantity: domain.MaxQuantity(artwork)}
	if image, err := s.resolveImage(ctx, artwork.Image); err == nil {
		view.Image = image
	}
	if len(artwork.Images) > 0 {
		images := make([]string, 0, len(artwork.Images))
		for _, ref := range artwork.Images {
			resolved, err := s.resolveImage(ctx, ref)
			if err != nil {
				resolved = ref
			}
			images = append(images, resolved)
		}
		view.Images = images
	}
	return view
}

func (s *catalogService) resolveImage(ctx context.Context, ref string) (string, error) {
	if s.images == nil || ref == "" {
		return ref, nil
	}
	resolved, err := s.images.URL(ctx, ref)
	if err != nil {
		s.logger(ctx, "catalog.image_sign_failed", map[string]any{
			"ref":   ref,
			"error": err,
		})
		return ref, err
	}
	return resolved, nil
}

func (s *catalogService) mapRepositoryError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCatalogNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("catalog: repository unavailable: %w", err)
		}
	}
	return err
}

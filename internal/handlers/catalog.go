package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/platform/httpx"
	"github.com/editionhouse/api/internal/platform/requestctx"
	"github.com/editionhouse/api/internal/services"
)

const maxArtworkIDsFilter = 100

// CatalogHandlers serves the public artwork and drop listings.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs catalog handlers.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes registers the /artworks and /drops endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/artworks", h.listArtworks)
	r.Get("/artworks/{artworkID}", h.getArtwork)
	r.Get("/drops", h.listDrops)
	r.Get("/drops/{dropID}", h.getDrop)
}

type artworkListResponse struct {
	Items []artworkPayload `json:"items"`
}

type dropListResponse struct {
	Items []dropPayload `json:"items"`
}

func (h *CatalogHandlers) listArtworks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	filter := domain.ArtworkFilter{}
	for _, raw := range query["ids"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				filter.IDs = append(filter.IDs, id)
			}
		}
	}
	if len(filter.IDs) > maxArtworkIDsFilter {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "too many artwork ids", http.StatusBadRequest))
		return
	}
	featured, err := parseOptionalBool(query.Get("featured"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "featured must be a boolean", http.StatusBadRequest))
		return
	}
	filter.FeaturedOnly = featured
	if raw := strings.ToLower(strings.TrimSpace(query.Get("type"))); raw != "" {
		switch t := domain.ArtworkType(raw); t {
		case domain.ArtworkTypeOriginal, domain.ArtworkTypeLimited, domain.ArtworkTypeOpen:
			filter.Type = t
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "type must be original, limited or open", http.StatusBadRequest))
			return
		}
	}

	views, err := h.catalog.ListArtworks(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, artworkListResponse{Items: buildArtworkPayloads(views)})
}

func (h *CatalogHandlers) getArtwork(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	view, err := h.catalog.GetArtwork(ctx, chi.URLParam(r, "artworkID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildArtworkPayload(view))
}

func (h *CatalogHandlers) listDrops(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	filter := services.DropListFilter{}
	if raw := strings.ToLower(strings.TrimSpace(query.Get("status"))); raw != "" {
		switch s := domain.DropStatus(raw); s {
		case domain.DropStatusScheduled, domain.DropStatusActive, domain.DropStatusEnded:
			filter.Status = s
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be scheduled, active or ended", http.StatusBadRequest))
			return
		}
	}
	featured, err := parseOptionalBool(query.Get("featured"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "featured must be a boolean", http.StatusBadRequest))
		return
	}
	filter.FeaturedOnly = featured

	views, err := h.catalog.ListDrops(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	items := make([]dropPayload, 0, len(views))
	for _, view := range views {
		items = append(items, buildDropPayload(view))
	}
	writeJSONResponse(w, http.StatusOK, dropListResponse{Items: items})
}

func (h *CatalogHandlers) getDrop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	view, err := h.catalog.GetDrop(ctx, chi.URLParam(r, "dropID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDropPayload(view))
}

func parseOptionalBool(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid catalog request", http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "Not found", http.StatusNotFound))
	default:
		requestctx.Logger(ctx).Error("catalog request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to load catalog", http.StatusInternalServerError))
	}
}

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/services"
)

func TestCatalogHandlersListArtworks(t *testing.T) {
	catalog := &stubCatalogService{artworks: []services.ArtworkView{
		{Artwork: domain.Artwork{ID: "A", Title: "Harbour at Dawn", Type: domain.ArtworkTypeOriginal, Price: 1200}, MaxQuantity: 1},
	}}
	h := NewCatalogHandlers(catalog)

	rr := serve(t, h.Routes, http.MethodGet, "/artworks?ids=A,B&ids=C&featured=true&type=Limited", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	filter := catalog.lastArtworkFilter
	if strings.Join(filter.IDs, ",") != "A,B,C" || !filter.FeaturedOnly || filter.Type != domain.ArtworkTypeLimited {
		t.Fatalf("unexpected filter %+v", filter)
	}

	resp := decodeBody[artworkListResponse](t, rr)
	if len(resp.Items) != 1 || resp.Items[0].MaxQuantity != 1 || resp.Items[0].Type != "original" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCatalogHandlersRejectsBadArtworkFilters(t *testing.T) {
	h := NewCatalogHandlers(&stubCatalogService{})
	ids := make([]string, maxArtworkIDsFilter+1)
	for i := range ids {
		ids[i] = "id"
	}

	for name, path := range map[string]string{
		"bad featured": "/artworks?featured=maybe",
		"bad type":     "/artworks?type=poster",
		"too many ids": "/artworks?ids=" + strings.Join(ids, ","),
	} {
		t.Run(name, func(t *testing.T) {
			if rr := serve(t, h.Routes, http.MethodGet, path, ""); rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestCatalogHandlersGetArtwork(t *testing.T) {
	h := NewCatalogHandlers(&stubCatalogService{artworks: []services.ArtworkView{
		{Artwork: domain.Artwork{ID: "A", Title: "Harbour at Dawn"}},
	}})

	if rr := serve(t, h.Routes, http.MethodGet, "/artworks/A", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	rr := serve(t, h.Routes, http.MethodGet, "/artworks/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	if code, _ := errorCode(t, rr); code != "not_found" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestCatalogHandlersListDrops(t *testing.T) {
	starts := time.Date(2025, 6, 1, 16, 0, 0, 0, time.UTC)
	catalog := &stubCatalogService{drops: []services.DropView{{
		Drop: domain.Drop{
			ID:         "spring",
			Title:      "Spring Editions",
			StartDate:  "2025-06-01",
			StartTime:  "09:00",
			Status:     domain.DropStatusScheduled,
			ArtworkIDs: []string{"A"},
		},
		DerivedStatus: domain.DropStatusActive,
		StartsAt:      &starts,
		Artworks:      []services.ArtworkView{{Artwork: domain.Artwork{ID: "A"}, MaxQuantity: 1}},
	}}}
	h := NewCatalogHandlers(catalog)

	rr := serve(t, h.Routes, http.MethodGet, "/drops?status=active", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if catalog.lastDropFilter.Status != domain.DropStatusActive || catalog.lastDropFilter.IncludeDrafts {
		t.Fatalf("unexpected filter %+v", catalog.lastDropFilter)
	}
	resp := decodeBody[dropListResponse](t, rr)
	if len(resp.Items) != 1 {
		t.Fatalf("expected one drop, got %d", len(resp.Items))
	}
	drop := resp.Items[0]
	if drop.Status != "scheduled" || drop.DerivedStatus != "active" || len(drop.Artworks) != 1 {
		t.Fatalf("unexpected drop %+v", drop)
	}
	if drop.StartsAt == nil || !drop.StartsAt.Equal(starts) {
		t.Fatalf("unexpected startsAt %v", drop.StartsAt)
	}

	if rr := serve(t, h.Routes, http.MethodGet, "/drops?status=draft", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("draft filter must be rejected publicly, got %d", rr.Code)
	}
}

func TestCatalogHandlersServiceFailure(t *testing.T) {
	h := NewCatalogHandlers(&stubCatalogService{err: errors.New("firestore unavailable")})
	rr := serve(t, h.Routes, http.MethodGet, "/drops", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	if _, message := errorCode(t, rr); strings.Contains(message, "firestore") {
		t.Fatalf("internal error leaked to client: %q", message)
	}
}

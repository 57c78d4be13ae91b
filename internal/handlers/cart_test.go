package handlers

import (
	"net/http"
	"testing"
	"time"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/platform/auth"
	"github.com/editionhouse/api/internal/services"
)

func sampleCartView() services.CartView {
	return services.CartView{
		Lines: []services.CartLineView{{
			ArtworkID:   "A",
			Quantity:    2,
			MaxQuantity: 5,
			Artwork:     &services.ArtworkView{Artwork: domain.Artwork{ID: "A", Title: "Harbour at Dawn", Price: 100}, MaxQuantity: 5},
		}},
		ItemCount: 2,
		Subtotal:  200,
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCartHandlersOwnerResolution(t *testing.T) {
	carts := &recordingCartService{view: sampleCartView()}
	h := NewCartHandlers(nil, carts)

	rr := serve(t, h.Routes, http.MethodGet, "/cart", "", withHeader(cartTokenHeader, "tok_guest"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = serve(t, h.Routes, http.MethodGet, "/cart", "",
		withHeader(cartTokenHeader, "tok_guest"),
		withIdentity(&auth.Identity{UID: "user_1"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	if len(carts.owners) != 2 {
		t.Fatalf("expected two calls, got %v", carts.calls)
	}
	if carts.owners[0] != services.GuestCartOwner("tok_guest") {
		t.Fatalf("expected guest owner, got %q", carts.owners[0])
	}
	if carts.owners[1] != services.UserCartOwner("user_1") {
		t.Fatalf("identity must win over the cart token, got %q", carts.owners[1])
	}

	resp := decodeBody[cartPayload](t, rr)
	if resp.ItemCount != 2 || resp.Subtotal != 200 || len(resp.Items) != 1 || resp.Items[0].Artwork == nil {
		t.Fatalf("unexpected cart %+v", resp)
	}
	if resp.UpdatedAt == nil {
		t.Fatal("expected updatedAt")
	}
}

func TestCartHandlersRequireOwner(t *testing.T) {
	carts := &recordingCartService{}
	h := NewCartHandlers(nil, carts)

	rr := serve(t, h.Routes, http.MethodGet, "/cart", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	if code, _ := errorCode(t, rr); code != "cart_token_required" {
		t.Fatalf("unexpected code %q", code)
	}
	if len(carts.calls) != 0 {
		t.Fatalf("service must not be called, got %v", carts.calls)
	}
}

func TestCartHandlersItemOperations(t *testing.T) {
	carts := &recordingCartService{view: sampleCartView()}
	h := NewCartHandlers(nil, carts)
	guest := withHeader(cartTokenHeader, "tok_guest")

	if rr := serve(t, h.Routes, http.MethodPost, "/cart/items", `{"artworkId":"A"}`, guest); rr.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d", rr.Code)
	}
	if carts.qty != 1 {
		t.Fatalf("add without quantity should default to 1, got %d", carts.qty)
	}

	if rr := serve(t, h.Routes, http.MethodPatch, "/cart/items/A", `{"quantity":4}`, guest); rr.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", rr.Code)
	}
	if carts.qty != 4 {
		t.Fatalf("expected quantity 4, got %d", carts.qty)
	}

	if rr := serve(t, h.Routes, http.MethodDelete, "/cart/items/A", "", guest); rr.Code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", rr.Code)
	}
	if rr := serve(t, h.Routes, http.MethodPut, "/cart", `{"items":[{"artworkId":"B","quantity":3}]}`, guest); rr.Code != http.StatusOK {
		t.Fatalf("replace: expected 200, got %d", rr.Code)
	}
	if len(carts.lines) != 1 || carts.lines[0].ArtworkID != "B" || carts.lines[0].Quantity != 3 {
		t.Fatalf("unexpected lines %+v", carts.lines)
	}
	if rr := serve(t, h.Routes, http.MethodDelete, "/cart", "", guest); rr.Code != http.StatusNoContent {
		t.Fatalf("clear: expected 204, got %d", rr.Code)
	}

	want := []string{"add:A", "update:A", "remove:A", "save", "clear"}
	if len(carts.calls) != len(want) {
		t.Fatalf("unexpected calls %v", carts.calls)
	}
	for i, call := range want {
		if carts.calls[i] != call {
			t.Fatalf("call %d: expected %q, got %q", i, call, carts.calls[i])
		}
	}
}

func TestCartHandlersNotice(t *testing.T) {
	view := sampleCartView()
	view.Notice = &services.CartNotice{ArtworkID: "A", Title: "Harbour at Dawn", Message: "Only 5 available", MaxQuantity: 5}
	h := NewCartHandlers(nil, &recordingCartService{view: view})

	rr := serve(t, h.Routes, http.MethodPatch, "/cart/items/A", `{"quantity":9}`, withHeader(cartTokenHeader, "tok"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decodeBody[cartPayload](t, rr)
	if resp.Notice == nil || resp.Notice.MaxQuantity != 5 {
		t.Fatalf("expected notice, got %+v", resp.Notice)
	}
}

func TestCartHandlersErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "invalid", err: services.ErrCartInvalidInput, status: http.StatusBadRequest},
		{name: "unknown artwork", err: services.ErrCartArtworkNotFound, status: http.StatusNotFound},
		{name: "missing line", err: services.ErrCartItemNotFound, status: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewCartHandlers(nil, &recordingCartService{err: tc.err})
			rr := serve(t, h.Routes, http.MethodPatch, "/cart/items/A", `{"quantity":2}`, withHeader(cartTokenHeader, "tok"))
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestCartHandlersRejectQuantitiesAboveCeiling(t *testing.T) {
	requests := []struct {
		method string
		path   string
		body   string
	}{
		{method: http.MethodPost, path: "/cart/items", body: `{"artworkId":"A","quantity":9223372036854775807}`},
		{method: http.MethodPatch, path: "/cart/items/A", body: `{"quantity":1000}`},
		{method: http.MethodPut, path: "/cart", body: `{"items":[{"artworkId":"A","quantity":1000}]}`},
	}
	for _, req := range requests {
		carts := &recordingCartService{view: sampleCartView()}
		h := NewCartHandlers(nil, carts)
		rr := serve(t, h.Routes, req.method, req.path, req.body, withHeader(cartTokenHeader, "tok"))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s %s: expected 400, got %d", req.method, req.path, rr.Code)
		}
		if code, _ := errorCode(t, rr); code != "invalid_quantity" {
			t.Fatalf("%s %s: unexpected code %q", req.method, req.path, code)
		}
		if len(carts.calls) != 0 {
			t.Fatalf("%s %s: service must not be called, got %v", req.method, req.path, carts.calls)
		}
	}
}

func TestCartHandlersMerge(t *testing.T) {
	carts := &recordingCartService{view: sampleCartView()}
	h := NewCartHandlers(nil, carts)

	if rr := serve(t, h.Routes, http.MethodPost, "/cart:merge", `{"guestToken":"tok_guest"}`); rr.Code != http.StatusUnauthorized {
		t.Fatalf("merge without identity: expected 401, got %d", rr.Code)
	}

	rr := serve(t, h.Routes, http.MethodPost, "/cart:merge", `{"guestToken":"tok_guest"}`,
		withIdentity(&auth.Identity{UID: "user_1"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if carts.merged[0] != services.GuestCartOwner("tok_guest") || carts.merged[1] != services.UserCartOwner("user_1") {
		t.Fatalf("unexpected merge owners %v", carts.merged)
	}

	rr = serve(t, h.Routes, http.MethodPost, "/cart:merge", "",
		withHeader(cartTokenHeader, "tok_header"),
		withIdentity(&auth.Identity{UID: "user_1"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if carts.merged[0] != services.GuestCartOwner("tok_header") {
		t.Fatalf("expected header token, got %q", carts.merged[0])
	}

	rr = serve(t, h.Routes, http.MethodPost, "/cart:merge", `{}`, withIdentity(&auth.Identity{UID: "user_1"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("merge without a guest token: expected 400, got %d", rr.Code)
	}
}

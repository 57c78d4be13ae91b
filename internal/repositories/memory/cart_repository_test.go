package memory

import (
	"context"
	"testing"
	"time"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/repositories"
)

func TestCartRepositoryLifecycle(t *testing.T) {
	repo := NewCartRepository(time.Hour)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := repo.Load(ctx, "user:u1"); !err.(repositories.RepositoryError).IsNotFound() {
		t.Fatalf("expected not found, got %v", err)
	}

	lines := []domain.CartLine{{ArtworkID: "a1", Quantity: 1}}
	if err := repo.Save(ctx, domain.Cart{Owner: "user:u1", Lines: lines}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	lines[0].Quantity = 9

	cart, err := repo.Load(ctx, "user:u1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cart.Lines[0].Quantity != 1 {
		t.Fatal("stored lines must not alias the caller's slice")
	}

	now = now.Add(2 * time.Hour)
	if _, err := repo.Load(ctx, "user:u1"); err == nil {
		t.Fatal("expected cart to expire")
	}

	_ = repo.Save(ctx, domain.Cart{Owner: "guest:g"})
	_ = repo.Delete(ctx, "guest:g")
	if _, err := repo.Load(ctx, "guest:g"); err == nil {
		t.Fatal("expected deleted cart to be gone")
	}
}

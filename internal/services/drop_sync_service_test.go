package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/editionhouse/api/internal/domain"
)

func TestDropSyncServiceUpdatesLaggingDrops(t *testing.T) {
	repo := &stubDropRepo{drops: catalogDrops()}
	events := &captureDropEvents{}
	svc, err := NewDropSyncService(DropSyncServiceDeps{
		Drops:       repo,
		Events:      events,
		Location:    time.UTC,
		Clock:       func() time.Time { return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) },
		IDGenerator: func() string { return "evt" },
	})
	if err != nil {
		t.Fatalf("NewDropSyncService: %v", err)
	}

	result, err := svc.SyncStatuses(context.Background())
	if err != nil {
		t.Fatalf("SyncStatuses: %v", err)
	}
	if result.Checked != 3 {
		t.Fatalf("expected drafts skipped, checked %d", result.Checked)
	}
	if len(result.Updated) != 2 {
		t.Fatalf("expected two transitions, got %+v", result.Updated)
	}
	if repo.updates["live"] != domain.DropStatusActive || repo.updates["past"] != domain.DropStatusEnded {
		t.Fatalf("unexpected updates %v", repo.updates)
	}
	if _, ok := repo.updates["soon"]; ok {
		t.Fatal("drop already in sync must not be written")
	}
	if _, ok := repo.updates["wip"]; ok {
		t.Fatal("draft must not be written")
	}

	types := map[string]string{}
	for _, event := range events.events {
		types[event.DropID] = event.Type
	}
	if types["live"] != dropEventActivated || types["past"] != dropEventEnded {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestDropSyncServiceContinuesAfterFailure(t *testing.T) {
	repo := &stubDropRepo{
		drops:     catalogDrops(),
		updateErr: map[string]error{"live": errors.New("write failed")},
	}
	svc, _ := NewDropSyncService(DropSyncServiceDeps{
		Drops:    repo,
		Location: time.UTC,
		Clock:    func() time.Time { return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) },
	})

	result, err := svc.SyncStatuses(context.Background())
	if err == nil {
		t.Fatal("expected first error to be returned")
	}
	if len(result.Updated) != 1 || result.Updated[0].DropID != "past" {
		t.Fatalf("expected remaining drops synced, got %+v", result.Updated)
	}
}

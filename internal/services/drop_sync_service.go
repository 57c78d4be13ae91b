package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/editionhouse/api/internal/domain"
	"github.com/editionhouse/api/internal/repositories"
)

const (
	dropEventActivated = "drop.activated"
	dropEventEnded     = "drop.ended"
	dropEventScheduled = "drop.scheduled"
)

// DropSyncServiceDeps bundles collaborators required to construct the drop sync service.
type DropSyncServiceDeps struct {
	Drops       repositories.DropRepository
	Events      DropEventPublisher
	Location    *time.Location
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type dropSyncService struct {
	drops  repositories.DropRepository
	events DropEventPublisher
	loc    *time.Location
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewDropSyncService wires dependencies into a concrete DropSyncService implementation.
func NewDropSyncService(deps DropSyncServiceDeps) (DropSyncService, error) {
	if deps.Drops == nil {
		return nil, errors.New("drop sync service: drop repository is required")
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &dropSyncService{
		drops:  deps.Drops,
		events: deps.Events,
		loc:    loc,
		clock:  clock,
		newID:  idGen,
		logger: logger,
	}, nil
}

// SyncStatuses stores the derived status for every non-draft drop whose stored status lags the
// schedule. Failures on one drop do not stop the run; the first error is returned at the end.
func (s *dropSyncService) SyncStatuses(ctx context.Context) (DropSyncResult, error) {
	drops, err := s.drops.List(ctx)
	if err != nil {
		return DropSyncResult{}, fmt.Errorf("drop sync: list drops: %w", err)
	}

	now := s.clock()
	result := DropSyncResult{}
	var firstErr error
	for _, drop := range drops {
		if drop.Status == domain.DropStatusDraft {
			continue
		}
		result.Checked++
		derived := domain.DropStatusAt(drop, now, s.loc)
		if derived == drop.Status {
			continue
		}
		if err := s.drops.UpdateStatus(ctx, drop.ID, derived, now.UTC()); err != nil {
			s.logger(ctx, "drop.sync.update_failed", map[string]any{
				"drop":  drop.ID,
				"error": err,
			})
			if firstErr == nil {
				firstErr = fmt.Errorf("drop sync: update %s: %w", drop.ID, err)
			}
			continue
		}
		result.Updated = append(result.Updated, DropTransition{DropID: drop.ID, From: drop.Status, To: derived})
		s.publish(ctx, drop, derived, now)
	}

	s.logger(ctx, "drop.sync.completed", map[string]any{
		"checked": result.Checked,
		"updated": len(result.Updated),
	})
	return result, firstErr
}

func (s *dropSyncService) publish(ctx context.Context, drop Drop, status DropStatus, now time.Time) {
	if s.events == nil {
		return
	}
	eventType := dropEventScheduled
	switch status {
	case domain.DropStatusActive:
		eventType = dropEventActivated
	case domain.DropStatusEnded:
		eventType = dropEventEnded
	}
	event := DropEvent{
		ID:             s.newID(),
		Type:           eventType,
		DropID:         drop.ID,
		Title:          drop.Title,
		PreviousStatus: string(drop.Status),
		CurrentStatus:  string(status),
		Notify:         drop.NotifySubscribers,
		OccurredAt:     now.UTC(),
	}
	if err := s.events.PublishDropEvent(ctx, event); err != nil {
		s.logger(ctx, "drop.event.publish_failed", map[string]any{
			"drop":  drop.ID,
			"type":  eventType,
			"error": err,
		})
	}
}

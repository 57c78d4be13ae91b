package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/editionhouse/api/internal/platform/httpx"
	"github.com/editionhouse/api/internal/platform/requestctx"
	"github.com/editionhouse/api/internal/services"
)

// InternalHandlers serves scheduler-triggered maintenance endpoints.
type InternalHandlers struct {
	drops services.DropSyncService
}

// NewInternalHandlers constructs internal handlers.
func NewInternalHandlers(drops services.DropSyncService) *InternalHandlers {
	return &InternalHandlers{drops: drops}
}

// Routes registers the /internal endpoints. Authentication is applied by the router group.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/drops:sync-status", h.syncDropStatuses)
}

type dropTransitionPayload struct {
	DropID string `json:"dropId"`
	From   string `json:"from"`
	To     string `json:"to"`
}

type dropSyncResponse struct {
	Checked int                     `json:"checked"`
	Updated []dropTransitionPayload `json:"updated"`
	Error   string                  `json:"error,omitempty"`
}

func (h *InternalHandlers) syncDropStatuses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.drops == nil {
		httpx.WriteError(ctx, w, httpx.NewError("drop_sync_unavailable", "drop sync unavailable", http.StatusServiceUnavailable))
		return
	}

	result, err := h.drops.SyncStatuses(ctx)
	resp := dropSyncResponse{
		Checked: result.Checked,
		Updated: make([]dropTransitionPayload, 0, len(result.Updated)),
	}
	for _, transition := range result.Updated {
		resp.Updated = append(resp.Updated, dropTransitionPayload{
			DropID: transition.DropID,
			From:   string(transition.From),
			To:     string(transition.To),
		})
	}
	if err != nil {
		requestctx.Logger(ctx).Error("drop status sync failed", zap.Error(err), zap.Int("updated", len(resp.Updated)))
		if result.Checked == 0 {
			httpx.WriteError(ctx, w, httpx.NewError("drop_sync_failed", "failed to sync drop statuses", http.StatusInternalServerError))
			return
		}
		// Partial runs still report the transitions that were applied.
		resp.Error = "some drops could not be updated"
		writeJSONResponse(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

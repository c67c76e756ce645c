package v0

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/inkwell-sh/inkwell/internal/status"
)

// OwnerStatusResponse is the full status view served to the site owner.
type OwnerStatusResponse struct {
	Status   status.SyncPhase    `json:"status"`
	SyncedAt *time.Time          `json:"synced_at,omitempty"`
	Message  string              `json:"message,omitempty"`
	Overall  status.Overall      `json:"overall"`
	Counts   status.Counts       `json:"counts"`
	Items    []status.ItemStatus `json:"items"`
}

// PublicStatusResponse is the redacted view served without credentials:
// enough for a polling deploy widget, nothing else.
type PublicStatusResponse struct {
	Ready   bool                `json:"ready"`
	Overall status.Overall      `json:"status"`
	Counts  status.Counts       `json:"counts"`
	Failed  []status.FailedItem `json:"failed,omitempty"`
}

// getStatus handles GET /api/v0/sites/{siteID}/status. Owners get the full
// per-item view; everyone else gets the redacted aggregate.
func (rr *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	site, err := rr.siteFromRequest(r)
	if err != nil {
		rr.writeSiteError(w, err)
		return
	}

	items, err := rr.deps.Store.ListItems(r.Context(), site.ID)
	if err != nil {
		slog.Error("Failed to list items", "siteId", site.ID, "error", err)
		rr.writeErrorResponse(w, "Failed to load status", http.StatusInternalServerError)
		return
	}

	itemStatuses := make([]status.ItemStatus, 0, len(items))
	for i := range items {
		itemStatuses = append(itemStatuses, items[i].ItemStatus())
	}
	summary := status.Aggregate(itemStatuses)

	// Callers without owner credentials fall through to the public view.
	caller, err := rr.deps.Authenticator.Authenticate(r)
	isOwner := err == nil && caller.UserID == site.OwnerID.String()

	if isOwner {
		rr.writeJSONResponse(w, OwnerStatusResponse{
			Status:   site.SyncStatus,
			SyncedAt: site.SyncedAt,
			Message:  site.SyncError,
			Overall:  summary.Overall,
			Counts:   summary.Counts,
			Items:    itemStatuses,
		})
		return
	}

	rr.writeJSONResponse(w, PublicStatusResponse{
		Ready:   summary.Ready(),
		Overall: summary.Overall,
		Counts:  summary.Counts,
		Failed:  status.FailedItems(itemStatuses),
	})
}

package v0

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-sh/inkwell/internal/ledger"
	"github.com/inkwell-sh/inkwell/internal/status"
	"github.com/inkwell-sh/inkwell/internal/storage"
)

// CreateSiteRequest is the body for connecting a new site.
type CreateSiteRequest struct {
	Repository    string `json:"repository"`
	Branch        string `json:"branch"`
	RootDir       string `json:"root_dir,omitempty"`
	WebhookSecret string `json:"webhook_secret"`
}

// SiteResponse is the public view of a site. The webhook secret never
// leaves the server.
type SiteResponse struct {
	ID         uuid.UUID        `json:"id"`
	Repository string           `json:"repository"`
	Branch     string           `json:"branch"`
	RootDir    string           `json:"root_dir,omitempty"`
	SyncStatus status.SyncPhase `json:"sync_status"`
	SyncedAt   *time.Time       `json:"synced_at,omitempty"`
	SyncError  string           `json:"sync_error,omitempty"`
	ItemCount  int              `json:"item_count"`
}

func siteResponse(site *ledger.Site) SiteResponse {
	return SiteResponse{
		ID:         site.ID,
		Repository: site.Repository,
		Branch:     site.Branch,
		RootDir:    site.RootDir,
		SyncStatus: site.SyncStatus,
		SyncedAt:   site.SyncedAt,
		SyncError:  site.SyncError,
		ItemCount:  len(site.Manifest),
	}
}

// createSite handles POST /api/v0/sites
func (rr *Routes) createSite(w http.ResponseWriter, r *http.Request) {
	caller, err := rr.deps.Authenticator.Authenticate(r)
	if err != nil {
		rr.writeErrorResponse(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req CreateSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rr.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Repository == "" || req.Branch == "" || req.WebhookSecret == "" {
		rr.writeErrorResponse(w, "repository, branch, and webhook_secret are required", http.StatusBadRequest)
		return
	}

	ownerID, err := uuid.Parse(caller.UserID)
	if err != nil {
		rr.writeErrorResponse(w, "Caller has no site namespace", http.StatusForbidden)
		return
	}

	site, err := rr.deps.Store.CreateSite(r.Context(), ledger.NewSite{
		OwnerID:       ownerID,
		Repository:    req.Repository,
		Branch:        req.Branch,
		RootDir:       req.RootDir,
		WebhookSecret: req.WebhookSecret,
	})
	if err != nil {
		slog.Error("Failed to create site", "error", err)
		rr.writeErrorResponse(w, "Failed to create site", http.StatusInternalServerError)
		return
	}

	slog.Info("Site created",
		"siteId", site.ID,
		"repository", site.Repository,
		"branch", site.Branch)
	rr.writeJSONStatus(w, siteResponse(site), http.StatusCreated)
}

// getSite handles GET /api/v0/sites/{siteID}
func (rr *Routes) getSite(w http.ResponseWriter, r *http.Request) {
	site, err := rr.siteFromRequest(r)
	if err != nil {
		rr.writeSiteError(w, err)
		return
	}
	if !rr.requireOwner(w, r, site) {
		return
	}
	rr.writeJSONResponse(w, siteResponse(site))
}

// deleteSite handles DELETE /api/v0/sites/{siteID}
func (rr *Routes) deleteSite(w http.ResponseWriter, r *http.Request) {
	site, err := rr.siteFromRequest(r)
	if err != nil {
		rr.writeSiteError(w, err)
		return
	}
	if !rr.requireOwner(w, r, site) {
		return
	}

	if err := rr.deps.Store.DeleteSite(r.Context(), site.ID); err != nil {
		slog.Error("Failed to delete site", "siteId", site.ID, "error", err)
		rr.writeErrorResponse(w, "Failed to delete site", http.StatusInternalServerError)
		return
	}

	// Object cleanup is best effort; the ledger rows are already gone.
	go rr.cleanupObjects(site.ID, site.Branch)

	slog.Info("Site deleted", "siteId", site.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (rr *Routes) cleanupObjects(siteID uuid.UUID, branch string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	prefix := storage.BranchPrefix(siteID, branch)
	keys, err := rr.deps.Backend.ListObjects(ctx, prefix)
	if err != nil {
		slog.Warn("Failed to list objects for cleanup", "siteId", siteID, "error", err)
		return
	}
	for _, key := range keys {
		if err := rr.deps.Backend.DeleteObject(ctx, key); err != nil {
			slog.Warn("Failed to delete object", "key", key, "error", err)
		}
	}
}

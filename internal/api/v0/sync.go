package v0

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-sh/inkwell/internal/sync"
)

// Webhook deliveries carry the event name and HMAC signature in these
// headers, matching the common git-hosting convention.
const (
	headerWebhookEvent     = "X-GitHub-Event"
	headerWebhookSignature = "X-Hub-Signature-256"

	// maxWebhookBody caps how much of a delivery is read.
	maxWebhookBody = 1 << 20
)

// TriggerSyncRequest is the body for POST /sync. Both fields are optional.
type TriggerSyncRequest struct {
	Ref   string `json:"ref,omitempty"`
	Force bool   `json:"force,omitempty"`
}

// SyncAcceptedResponse reports the queued job.
type SyncAcceptedResponse struct {
	JobID      uuid.UUID `json:"job_id"`
	SiteID     uuid.UUID `json:"site_id"`
	Ref        string    `json:"ref"`
	Force      bool      `json:"force,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// WebhookResponse reports how a verified delivery was handled.
type WebhookResponse struct {
	Result string     `json:"result"`
	JobID  *uuid.UUID `json:"job_id,omitempty"`
}

// handleWebhook handles POST /api/v0/sites/{siteID}/webhook
func (rr *Routes) handleWebhook(w http.ResponseWriter, r *http.Request) {
	site, err := rr.siteFromRequest(r)
	if err != nil {
		rr.writeSiteError(w, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		rr.writeErrorResponse(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	outcome, job, err := rr.deps.Dispatcher.HandleWebhook(r.Context(), site,
		r.Header.Get(headerWebhookEvent),
		r.Header.Get(headerWebhookSignature),
		body)
	switch {
	case errors.Is(err, sync.ErrInvalidSignature):
		rr.writeErrorResponse(w, "Invalid signature", http.StatusUnauthorized)
		return
	case errors.Is(err, sync.ErrSyncInProgress):
		rr.writeErrorResponse(w, "Sync already in progress", http.StatusConflict)
		return
	case err != nil:
		slog.Error("Webhook dispatch failed", "siteId", site.ID, "error", err)
		rr.writeErrorResponse(w, "Failed to process webhook", http.StatusInternalServerError)
		return
	}

	if outcome == sync.OutcomeIgnored {
		rr.writeJSONResponse(w, WebhookResponse{Result: string(outcome)})
		return
	}
	rr.writeJSONStatus(w, WebhookResponse{Result: string(outcome), JobID: &job.ID},
		http.StatusAccepted)
}

// triggerSync handles POST /api/v0/sites/{siteID}/sync
func (rr *Routes) triggerSync(w http.ResponseWriter, r *http.Request) {
	site, err := rr.siteFromRequest(r)
	if err != nil {
		rr.writeSiteError(w, err)
		return
	}
	if !rr.requireOwner(w, r, site) {
		return
	}

	var req TriggerSyncRequest
	if r.Body != nil {
		// An empty body means default trigger semantics.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			rr.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	ref := req.Ref
	if ref == "" {
		ref = site.Branch
	}

	job, err := rr.deps.Dispatcher.Trigger(r.Context(), site, ref, req.Force)
	if err != nil {
		if errors.Is(err, sync.ErrSyncInProgress) {
			rr.writeErrorResponse(w, "Sync already in progress", http.StatusConflict)
			return
		}
		slog.Error("Failed to trigger sync", "siteId", site.ID, "error", err)
		rr.writeErrorResponse(w, "Failed to trigger sync", http.StatusInternalServerError)
		return
	}

	rr.writeJSONStatus(w, SyncAcceptedResponse{
		JobID:      job.ID,
		SiteID:     job.SiteID,
		Ref:        job.Ref,
		Force:      job.Force,
		EnqueuedAt: job.EnqueuedAt,
	}, http.StatusAccepted)
}

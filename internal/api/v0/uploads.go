package v0

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/inkwell-sh/inkwell/internal/upload"
)

// issueUploadBatch handles POST /api/v0/sites/{siteID}/uploads
func (rr *Routes) issueUploadBatch(w http.ResponseWriter, r *http.Request) {
	site, err := rr.siteFromRequest(r)
	if err != nil {
		rr.writeSiteError(w, err)
		return
	}
	if !rr.requireOwner(w, r, site) {
		return
	}

	var req upload.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rr.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := rr.deps.Orchestrator.IssueBatch(r.Context(), site, req)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrTooManyFiles),
			errors.Is(err, upload.ErrFileTooLarge),
			errors.Is(err, upload.ErrBatchTooLarge):
			rr.writeErrorResponse(w, err.Error(), http.StatusRequestEntityTooLarge)
		case errors.Is(err, upload.ErrInvalidPath):
			rr.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		default:
			slog.Error("Failed to issue upload batch", "siteId", site.ID, "error", err)
			rr.writeErrorResponse(w, "Failed to issue upload batch", http.StatusInternalServerError)
		}
		return
	}

	rr.writeJSONResponse(w, resp)
}

// Package v0 provides the REST API handlers for the publishing service.
package v0

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inkwell-sh/inkwell/internal/auth"
	"github.com/inkwell-sh/inkwell/internal/ledger"
	"github.com/inkwell-sh/inkwell/internal/storage"
	"github.com/inkwell-sh/inkwell/internal/sync"
	"github.com/inkwell-sh/inkwell/internal/upload"
)

// Deps carries the collaborators the handlers dispatch into.
type Deps struct {
	Store         ledger.Store
	Backend       storage.Backend
	Dispatcher    *sync.Dispatcher
	Orchestrator  *upload.Orchestrator
	Authenticator auth.Authenticator

	// Version is reported by the version endpoint.
	Version string

	// Ready reports backend reachability for the readiness endpoint.
	// A nil check means always ready.
	Ready func(ctx context.Context) error
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Routes defines the routes for the publishing API with dependency
// injection
type Routes struct {
	deps *Deps
}

// NewRoutes creates a new Routes instance with the provided dependencies
func NewRoutes(deps *Deps) *Routes {
	return &Routes{deps: deps}
}

// Router creates a new router for the publishing API
func Router(deps *Deps) http.Handler {
	routes := NewRoutes(deps)

	r := chi.NewRouter()

	r.Post("/sites", routes.createSite)
	r.Route("/sites/{siteID}", func(r chi.Router) {
		r.Get("/", routes.getSite)
		r.Delete("/", routes.deleteSite)

		r.Post("/webhook", routes.handleWebhook)
		r.Post("/sync", routes.triggerSync)
		r.Post("/uploads", routes.issueUploadBatch)
		r.Get("/status", routes.getStatus)
	})

	return r
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(deps *Deps) http.Handler {
	routes := NewRoutes(deps)

	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", routes.readinessHandler)
	r.Get("/version", routes.versionHandler)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (rr *Routes) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if rr.deps.Ready != nil {
		if err := rr.deps.Ready(r.Context()); err != nil {
			slog.Error("Readiness check failed", "error", err)
			rr.writeErrorResponse(w, "Service not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

func (rr *Routes) versionHandler(w http.ResponseWriter, _ *http.Request) {
	rr.writeJSONResponse(w, map[string]string{"version": rr.deps.Version})
}

// siteFromRequest loads the site addressed by the URL.
func (rr *Routes) siteFromRequest(r *http.Request) (*ledger.Site, error) {
	siteID, err := uuid.Parse(chi.URLParam(r, "siteID"))
	if err != nil {
		return nil, ledger.ErrSiteNotFound
	}
	return rr.deps.Store.GetSite(r.Context(), siteID)
}

// requireOwner resolves the caller and checks they own the site. It writes
// the failure response itself and reports success through the boolean.
func (rr *Routes) requireOwner(w http.ResponseWriter, r *http.Request, site *ledger.Site) bool {
	caller, err := rr.deps.Authenticator.Authenticate(r)
	if err != nil {
		rr.writeErrorResponse(w, "Authentication required", http.StatusUnauthorized)
		return false
	}
	if caller.UserID != site.OwnerID.String() {
		rr.writeErrorResponse(w, "Not the site owner", http.StatusForbidden)
		return false
	}
	return true
}

func (rr *Routes) writeJSONResponse(w http.ResponseWriter, v any) {
	rr.writeJSONStatus(w, v, http.StatusOK)
}

func (rr *Routes) writeJSONStatus(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (rr *Routes) writeErrorResponse(w http.ResponseWriter, message string, code int) {
	rr.writeJSONStatus(w, ErrorResponse{Error: message}, code)
}

// writeSiteError maps store lookup failures to responses.
func (rr *Routes) writeSiteError(w http.ResponseWriter, err error) {
	if errors.Is(err, ledger.ErrSiteNotFound) {
		rr.writeErrorResponse(w, "Site not found", http.StatusNotFound)
		return
	}
	slog.Error("Failed to load site", "error", err)
	rr.writeErrorResponse(w, "Internal error", http.StatusInternalServerError)
}

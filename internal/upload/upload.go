// Package upload orchestrates how content enters a site: capability-URL
// batches declared by a client, and diff-driven application of upstream
// changes during reconciliation.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-sh/inkwell/internal/config"
	"github.com/inkwell-sh/inkwell/internal/ledger"
	"github.com/inkwell-sh/inkwell/internal/page"
	"github.com/inkwell-sh/inkwell/internal/status"
	"github.com/inkwell-sh/inkwell/internal/storage"
	"github.com/inkwell-sh/inkwell/internal/tree"
)

var (
	// ErrTooManyFiles is returned when a batch exceeds the file-count
	// ceiling.
	ErrTooManyFiles = errors.New("too many files in batch")

	// ErrFileTooLarge is returned when a declared file size exceeds the
	// per-file ceiling.
	ErrFileTooLarge = errors.New("file exceeds size limit")

	// ErrBatchTooLarge is returned when the summed declared sizes exceed
	// the aggregate ceiling.
	ErrBatchTooLarge = errors.New("batch exceeds total size limit")

	// ErrInvalidPath is returned for empty, escaping, or duplicate paths.
	ErrInvalidPath = errors.New("invalid file path")
)

// FileDecl is one file a client declares in a batch request. The content
// hash is client-declared and opaque; it is only ever compared against
// other client-declared hashes.
type FileDecl struct {
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ContentHash string `json:"content_hash"`
}

// BatchRequest declares the files of one direct-publish batch.
type BatchRequest struct {
	Files []FileDecl `json:"files"`
}

// IssuedUpload pairs a declared file with its ledger item and the
// capability URL granted for it.
type IssuedUpload struct {
	ItemID uuid.UUID          `json:"item_id"`
	Path   string             `json:"path"`
	Upload storage.Capability `json:"upload"`
}

// BatchResponse answers a batch request with one grant per declared file.
type BatchResponse struct {
	SiteID    uuid.UUID      `json:"site_id"`
	Items     []IssuedUpload `json:"items"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Orchestrator validates batches, registers ledger items, and issues
// capability URLs.
type Orchestrator struct {
	store   ledger.Store
	backend storage.Backend
	limits  config.UploadConfig
}

// NewOrchestrator creates an Orchestrator enforcing the given limits.
func NewOrchestrator(store ledger.Store, backend storage.Backend, limits config.UploadConfig) *Orchestrator {
	return &Orchestrator{store: store, backend: backend, limits: limits}
}

// IssueBatch validates the whole batch, then registers each file as an
// UPLOADING item and issues its presigned PUT. Validation is complete
// before the first side effect, so a rejected batch leaves no trace.
func (o *Orchestrator) IssueBatch(ctx context.Context, site *ledger.Site, req BatchRequest) (*BatchResponse, error) {
	normalized, err := o.validateBatch(req)
	if err != nil {
		return nil, err
	}

	slog.Info("Issuing upload batch",
		"siteId", site.ID,
		"fileCount", len(normalized))

	resp := &BatchResponse{
		SiteID:    site.ID,
		Items:     make([]IssuedUpload, 0, len(normalized)),
		ExpiresAt: time.Now().Add(o.limits.URLTTL),
	}

	for _, decl := range normalized {
		// Page-like files wait for the background parse; raw assets have
		// no processing step and are terminal as soon as they exist.
		initial := status.ItemStateUploading
		if !page.IsPage(decl.Path) {
			initial = status.ItemStateSuccess
		}

		item, err := o.store.UpsertItem(ctx, ledger.UpsertItem{
			SiteID:      site.ID,
			Path:        decl.Path,
			AppPath:     page.AppPath(decl.Path),
			Size:        decl.Size,
			ContentHash: decl.ContentHash,
			Extension:   page.Extension(decl.Path),
			Status:      initial,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register item %s: %w", decl.Path, err)
		}

		key := storage.RawKey(site.ID, site.Branch, decl.Path)
		capability, err := o.backend.IssuePresignedPut(ctx, key, o.limits.URLTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to issue upload grant for %s: %w", decl.Path, err)
		}
		capability.Path = decl.Path

		resp.Items = append(resp.Items, IssuedUpload{
			ItemID: item.ID,
			Path:   decl.Path,
			Upload: *capability,
		})
	}

	return resp, nil
}

// validateBatch checks every ceiling and normalizes paths. It returns the
// normalized declarations or the first violation found.
func (o *Orchestrator) validateBatch(req BatchRequest) ([]FileDecl, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("%w: batch is empty", ErrInvalidPath)
	}
	if len(req.Files) > o.limits.MaxFiles {
		return nil, fmt.Errorf("%w: %d files, limit %d",
			ErrTooManyFiles, len(req.Files), o.limits.MaxFiles)
	}

	normalized := make([]FileDecl, 0, len(req.Files))
	seen := make(map[string]struct{}, len(req.Files))
	var total int64

	for _, decl := range req.Files {
		path := tree.NormalizePath(decl.Path)
		if path == "" || !isLocalPath(path) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, decl.Path)
		}
		if _, dup := seen[path]; dup {
			return nil, fmt.Errorf("%w: duplicate path %q", ErrInvalidPath, path)
		}
		seen[path] = struct{}{}

		if decl.Size < 0 {
			return nil, fmt.Errorf("%w: negative size for %q", ErrInvalidPath, path)
		}
		if decl.Size > o.limits.MaxFileSize {
			return nil, fmt.Errorf("%w: %q is %d bytes, limit %d",
				ErrFileTooLarge, path, decl.Size, o.limits.MaxFileSize)
		}
		total += decl.Size
		if total > o.limits.MaxTotalSize {
			return nil, fmt.Errorf("%w: %d bytes declared, limit %d",
				ErrBatchTooLarge, total, o.limits.MaxTotalSize)
		}

		decl.Path = path
		normalized = append(normalized, decl)
	}

	return normalized, nil
}

// isLocalPath rejects traversal and empty segments after normalization.
func isLocalPath(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return false
		}
	}
	return true
}

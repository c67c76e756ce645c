package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/inkwell-sh/inkwell/internal/ledger"
	"github.com/inkwell-sh/inkwell/internal/page"
	"github.com/inkwell-sh/inkwell/internal/source"
	"github.com/inkwell-sh/inkwell/internal/status"
	"github.com/inkwell-sh/inkwell/internal/storage"
)

const (
	contentFetchMaxTries = 3
	contentFetchMaxWait  = 30 * time.Second
)

// Result is the per-item outcome of a diff-driven apply. Failed results
// carry the recorded error; the reconciliation continues past them.
type Result struct {
	Path   string
	Entry  ledger.ManifestEntry
	Failed bool
	Error  string
}

// Applier moves one upstream file through the item pipeline during a
// reconciliation: register, fetch, store, parse, resolve.
type Applier struct {
	store   ledger.Store
	backend storage.Backend
}

// NewApplier creates an Applier over the given collaborators.
func NewApplier(store ledger.Store, backend storage.Backend) *Applier {
	return &Applier{store: store, backend: backend}
}

// ApplyChange processes one added or modified path. Item failures are
// isolated: the returned Result reports them and the error return is
// reserved for infrastructure faults that should abort the whole
// reconciliation (context cancellation, ledger unavailable).
func (a *Applier) ApplyChange(ctx context.Context, site *ledger.Site, checkout source.Checkout, path string) (*Result, error) {
	hash := checkout.Manifest()[path]

	content, err := a.fetchContent(ctx, checkout, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Upstream would not yield the file; record it and move on.
		return a.registerFailure(ctx, site, path, hash,
			fmt.Sprintf("failed to fetch content: %v", err))
	}

	item, err := a.store.UpsertItem(ctx, ledger.UpsertItem{
		SiteID:      site.ID,
		Path:        path,
		AppPath:     page.AppPath(path),
		Size:        int64(len(content)),
		ContentHash: hash,
		Extension:   page.Extension(path),
		Status:      status.ItemStatePending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register item %s: %w", path, err)
	}

	if err := a.store.ResolveItem(ctx, item.ID, status.ItemStateProcessing, "", nil); err != nil {
		return nil, fmt.Errorf("failed to start processing %s: %w", path, err)
	}

	key := storage.RawKey(site.ID, site.Branch, path)
	if err := a.backend.PutObject(ctx, key, content); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return a.resolveFailure(ctx, item.ID, path,
			fmt.Sprintf("failed to store content: %v", err))
	}

	var meta *page.Metadata
	if page.IsPage(path) {
		meta, err = page.Parse(content)
		if err != nil {
			return a.resolveFailure(ctx, item.ID, path,
				fmt.Sprintf("failed to parse page: %v", err))
		}
	}

	if err := a.store.ResolveItem(ctx, item.ID, status.ItemStateSuccess, "", meta); err != nil {
		return nil, fmt.Errorf("failed to resolve item %s: %w", path, err)
	}

	entry := ledger.ManifestEntry{
		AppPath:     page.AppPath(path),
		Extension:   page.Extension(path),
		ContentHash: hash,
		Size:        int64(len(content)),
		Metadata:    meta,
	}
	if meta != nil {
		entry.Title = meta.Title
	}
	return &Result{Path: path, Entry: entry}, nil
}

// RemovePath deletes an item and its stored object for a path that left
// the upstream tree. Object deletion is best effort; the ledger row is the
// authority.
func (a *Applier) RemovePath(ctx context.Context, site *ledger.Site, path string) error {
	if err := a.store.DeleteItem(ctx, site.ID, path); err != nil && !errors.Is(err, ledger.ErrItemNotFound) {
		return fmt.Errorf("failed to delete item %s: %w", path, err)
	}

	key := storage.RawKey(site.ID, site.Branch, path)
	if err := a.backend.DeleteObject(ctx, key); err != nil {
		slog.Warn("Failed to delete stored object",
			"siteId", site.ID,
			"path", path,
			"error", err)
	}
	return nil
}

// ProcessUploaded resolves a direct-upload item after the client has PUT
// its bytes: reads the object back, parses page content, and lands the
// item in a terminal state.
func (a *Applier) ProcessUploaded(ctx context.Context, site *ledger.Site, itemID uuid.UUID) error {
	item, err := a.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status != status.ItemStateUploading {
		return fmt.Errorf("%w: item %s is %s", ledger.ErrInvalidTransition, itemID, item.Status)
	}

	if err := a.store.ResolveItem(ctx, itemID, status.ItemStateProcessing, "", nil); err != nil {
		return err
	}

	key := storage.RawKey(site.ID, site.Branch, item.Path)
	content, err := a.backend.GetObject(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return a.store.ResolveItem(ctx, itemID, status.ItemStateError,
				"content was never uploaded", nil)
		}
		return fmt.Errorf("failed to read uploaded content: %w", err)
	}

	var meta *page.Metadata
	if page.IsPage(item.Path) {
		meta, err = page.Parse(content)
		if err != nil {
			return a.store.ResolveItem(ctx, itemID, status.ItemStateError,
				fmt.Sprintf("failed to parse page: %v", err), nil)
		}
	}

	return a.store.ResolveItem(ctx, itemID, status.ItemStateSuccess, "", meta)
}

// fetchContent reads a file from the checkout, retrying transient faults
// with exponential backoff.
func (a *Applier) fetchContent(ctx context.Context, checkout source.Checkout, path string) ([]byte, error) {
	return backoff.Retry(ctx, func() ([]byte, error) {
		return checkout.Content(path)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(contentFetchMaxTries),
		backoff.WithMaxElapsedTime(contentFetchMaxWait),
	)
}

// registerFailure creates the item straight into ERROR when content could
// not even be fetched.
func (a *Applier) registerFailure(ctx context.Context, site *ledger.Site, path, hash, msg string) (*Result, error) {
	item, err := a.store.UpsertItem(ctx, ledger.UpsertItem{
		SiteID:      site.ID,
		Path:        path,
		AppPath:     page.AppPath(path),
		ContentHash: hash,
		Extension:   page.Extension(path),
		Status:      status.ItemStatePending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register item %s: %w", path, err)
	}
	if err := a.store.ResolveItem(ctx, item.ID, status.ItemStateError, msg, nil); err != nil {
		return nil, fmt.Errorf("failed to record item failure %s: %w", path, err)
	}
	return &Result{Path: path, Failed: true, Error: msg}, nil
}

// resolveFailure lands an already-processing item in ERROR.
func (a *Applier) resolveFailure(ctx context.Context, itemID uuid.UUID, path, msg string) (*Result, error) {
	if err := a.store.ResolveItem(ctx, itemID, status.ItemStateError, msg, nil); err != nil {
		return nil, fmt.Errorf("failed to record item failure %s: %w", path, err)
	}
	return &Result{Path: path, Failed: true, Error: msg}, nil
}

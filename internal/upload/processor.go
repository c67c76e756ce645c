package upload

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/inkwell-sh/inkwell/internal/ledger"
	"github.com/inkwell-sh/inkwell/internal/status"
	"github.com/inkwell-sh/inkwell/internal/storage"
)

const processorBatchSize = 100

// Processor is the background sweep that resolves direct uploads. Items
// issued an upload grant sit in UPLOADING until the client has PUT the
// bytes; the sweep picks them up once the object exists, or fails them
// after the grant window has passed with nothing uploaded.
type Processor struct {
	store    ledger.Store
	backend  storage.Backend
	applier  *Applier
	grace    time.Duration
	interval time.Duration
}

// NewProcessor creates a Processor. grace should match the upload URL
// TTL: an item younger than grace with no object is still waiting.
func NewProcessor(store ledger.Store, backend storage.Backend, applier *Applier, grace, interval time.Duration) *Processor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Processor{
		store:    store,
		backend:  backend,
		applier:  applier,
		grace:    grace,
		interval: interval,
	}
}

// Run sweeps until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("Upload sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass over items awaiting resolution.
func (p *Processor) Sweep(ctx context.Context) error {
	items, err := p.store.ListItemsInState(ctx, status.ItemStateUploading, processorBatchSize)
	if err != nil {
		return err
	}

	sites := make(map[string]*ledger.Site)
	for i := range items {
		item := &items[i]

		site, ok := sites[item.SiteID.String()]
		if !ok {
			site, err = p.store.GetSite(ctx, item.SiteID)
			if err != nil {
				if errors.Is(err, ledger.ErrSiteNotFound) {
					continue // site deleted while the grant was out
				}
				return err
			}
			sites[item.SiteID.String()] = site
		}

		if err := p.processItem(ctx, site, item); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Failed to process uploaded item",
				"siteId", site.ID, "path", item.Path, "error", err)
		}
	}
	return nil
}

func (p *Processor) processItem(ctx context.Context, site *ledger.Site, item *ledger.Item) error {
	key := storage.RawKey(site.ID, site.Branch, item.Path)

	_, err := p.backend.GetObject(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) && time.Since(item.UpdatedAt) < p.grace {
		// Grant still valid, bytes not in yet. Leave it for a later pass.
		return nil
	}
	// Past the grace window ProcessUploaded resolves the missing object
	// to a terminal ERROR itself.
	return p.applier.ProcessUploaded(ctx, site, item.ID)
}

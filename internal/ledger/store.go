package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-sh/inkwell/internal/page"
	"github.com/inkwell-sh/inkwell/internal/status"
	"github.com/inkwell-sh/inkwell/internal/tree"
)

var (
	// ErrSiteNotFound is returned when a site can't be found.
	ErrSiteNotFound = errors.New("site not found")

	// ErrItemNotFound is returned when an item can't be found.
	ErrItemNotFound = errors.New("item not found")

	// ErrInvalidTransition is returned when a state change would regress
	// or skip the item pipeline.
	ErrInvalidTransition = errors.New("invalid item state transition")

	// ErrLeaseNotHeld is returned when a commit arrives without the
	// caller holding the site's sync lease.
	ErrLeaseNotHeld = errors.New("sync lease not held")
)

// Store is the persistence boundary of the reconciliation engine.
type Store interface {
	// CreateSite connects a new site.
	CreateSite(ctx context.Context, site NewSite) (*Site, error)

	// GetSite fetches a site by id; ErrSiteNotFound when absent.
	GetSite(ctx context.Context, id uuid.UUID) (*Site, error)

	// DeleteSite removes the site and, via cascade, its items, snapshots,
	// and queued jobs.
	DeleteSite(ctx context.Context, id uuid.UUID) error

	// UpsertItem creates or replaces the item at (siteID, path), restarting
	// its pipeline at the given initial status.
	UpsertItem(ctx context.Context, item UpsertItem) (*Item, error)

	// GetItem fetches an item by id; ErrItemNotFound when absent.
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)

	// ListItems returns all items of a site ordered by path.
	ListItems(ctx context.Context, siteID uuid.UUID) ([]Item, error)

	// ListItemsInState returns up to limit items across all sites in the
	// given state, oldest update first. Used by the background processor
	// to sweep direct uploads awaiting resolution.
	ListItemsInState(ctx context.Context, state status.ItemState, limit int) ([]Item, error)

	// ResolveItem applies a state transition, recording an error message
	// and parsed metadata as appropriate. ErrInvalidTransition when the
	// state machine forbids the move.
	ResolveItem(ctx context.Context, id uuid.UUID, to status.ItemState, errMsg string, meta *page.Metadata) error

	// DeleteItem removes the item at (siteID, path).
	DeleteItem(ctx context.Context, siteID uuid.UUID, path string) error

	// GetSnapshot returns the last reconciled manifest for site+branch, or
	// an empty manifest when the site has never been synced.
	GetSnapshot(ctx context.Context, siteID uuid.UUID, branch string) (tree.Manifest, error)

	// AcquireSyncLease atomically flips the site's sync status to PENDING
	// and records the lease owner with an expiry. Returns false when
	// another reconciliation holds an unexpired lease: the single-flight
	// conflict.
	AcquireSyncLease(ctx context.Context, siteID, owner uuid.UUID, ttl time.Duration) (bool, error)

	// CommitSync finishes a reconciliation under the given lease: in one
	// atomic step it replaces the snapshot and site manifest, sets the
	// final phase and synced-at, and releases the lease. phase is SUCCESS
	// or ERROR ("all processed, not all clean").
	CommitSync(ctx context.Context, commit SyncCommit) error

	// FailSync aborts a reconciliation under the given lease: marks the
	// site ERROR and releases the lease, leaving snapshot and manifest at
	// their last-known-good values.
	FailSync(ctx context.Context, siteID, owner uuid.UUID, errMsg string) error

	// EnqueueJob appends a reconciliation job to the durable queue. The
	// owner is the sync lease token the triggering side already acquired.
	EnqueueJob(ctx context.Context, siteID, owner uuid.UUID, ref string, force bool) (*Job, error)

	// ClaimNextJob pops the oldest unclaimed job, or returns nil when the
	// queue is empty. Safe for concurrent workers.
	ClaimNextJob(ctx context.Context) (*Job, error)

	// FinishJob marks a claimed job done.
	FinishJob(ctx context.Context, jobID uuid.UUID) error
}

// SyncCommit carries the atomic commit of a completed reconciliation.
type SyncCommit struct {
	SiteID   uuid.UUID
	Owner    uuid.UUID
	Branch   string
	Phase    status.SyncPhase
	Error    string
	Manifest SiteManifest
	Snapshot tree.Manifest
}

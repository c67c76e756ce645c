// Package ledger persists sites, per-item processing state, snapshots,
// and the sync job queue. It owns the item state machine and the
// single-flight sync lease.
package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-sh/inkwell/internal/page"
	"github.com/inkwell-sh/inkwell/internal/status"
)

// Site is a publishing target: one source repository+branch synced to one
// hosted copy.
type Site struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	Repository    string
	Branch        string
	RootDir       string
	WebhookSecret string

	SyncStatus status.SyncPhase
	SyncedAt   *time.Time
	SyncError  string

	// Manifest is the authoritative path-to-page-metadata map used for
	// rendering and navigation. Mutated only by a completed
	// reconciliation, always replaced whole.
	Manifest SiteManifest
}

// NewSite carries the fields needed to connect a site.
type NewSite struct {
	OwnerID       uuid.UUID
	Repository    string
	Branch        string
	RootDir       string
	WebhookSecret string
}

// SiteManifest maps item paths to their rendered view of metadata.
type SiteManifest map[string]ManifestEntry

// ManifestEntry is one manifest row: where the item is served and what the
// renderer needs to know about it.
type ManifestEntry struct {
	AppPath     string         `json:"appPath,omitempty"`
	Title       string         `json:"title,omitempty"`
	Extension   string         `json:"extension,omitempty"`
	ContentHash string         `json:"contentHash"`
	Size        int64          `json:"size"`
	Metadata    *page.Metadata `json:"metadata,omitempty"`
}

// Item is one synchronized file and its processing state.
type Item struct {
	ID          uuid.UUID
	SiteID      uuid.UUID
	Path        string
	AppPath     string // empty for raw assets
	Size        int64
	ContentHash string
	Extension   string
	Status      status.ItemState
	Error       string
	Metadata    *page.Metadata // nil until parsed; always nil for assets
	UpdatedAt   time.Time
}

// ItemStatus projects the item into its status API view.
func (i *Item) ItemStatus() status.ItemStatus {
	return status.ItemStatus{
		ID:    i.ID,
		Path:  i.Path,
		State: i.Status,
		Error: i.Error,
	}
}

// UpsertItem carries the fields of an item create-or-replace. The initial
// status encodes the entry point: PENDING for diff-driven pages, UPLOADING
// for direct-upload pages, SUCCESS for raw assets.
type UpsertItem struct {
	SiteID      uuid.UUID
	Path        string
	AppPath     string
	Size        int64
	ContentHash string
	Extension   string
	Status      status.ItemState
	Metadata    *page.Metadata
}

// Job is one queued reconciliation request. Owner is the sync lease token
// acquired at trigger time; the worker commits under it.
type Job struct {
	ID         uuid.UUID
	SiteID     uuid.UUID
	Owner      uuid.UUID
	Ref        string
	Force      bool
	EnqueuedAt time.Time
}

// CanTransition reports whether an item may move from one state to the
// other. Transitions are one-directional; terminal states admit nothing.
// A fresh add/modify cycle re-creates the item via upsert instead of
// regressing it.
func CanTransition(from, to status.ItemState) bool {
	switch from {
	case status.ItemStateUploading:
		return to == status.ItemStateProcessing || to == status.ItemStateError
	case status.ItemStatePending:
		return to == status.ItemStateProcessing || to == status.ItemStateError
	case status.ItemStateProcessing:
		return to == status.ItemStateSuccess || to == status.ItemStateError
	default:
		return false
	}
}

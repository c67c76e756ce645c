// Package status defines sync and item state types and computes the
// aggregate view served to polling clients.
package status

import (
	"time"

	"github.com/google/uuid"
)

// SyncPhase represents the site-level phase of synchronization.
type SyncPhase string

const (
	// SyncPhaseNone means the site has never been synced.
	SyncPhaseNone SyncPhase = "NONE"

	// SyncPhasePending means a reconciliation is queued or in progress.
	SyncPhasePending SyncPhase = "PENDING"

	// SyncPhaseSuccess means the last reconciliation completed with every
	// item clean.
	SyncPhaseSuccess SyncPhase = "SUCCESS"

	// SyncPhaseError means the last reconciliation failed outright, or
	// completed with at least one item in error.
	SyncPhaseError SyncPhase = "ERROR"
)

// ItemState represents the processing state of a single synced file.
// Transitions are one-directional; a fresh add/modify cycle re-creates the
// item at its initial state rather than regressing an existing one.
type ItemState string

const (
	// ItemStateUploading means a capability URL was issued and the client
	// has not finished transferring bytes.
	ItemStateUploading ItemState = "UPLOADING"

	// ItemStatePending means content is available from the source and the
	// item awaits parsing.
	ItemStatePending ItemState = "PENDING"

	// ItemStateProcessing means metadata extraction is in flight.
	ItemStateProcessing ItemState = "PROCESSING"

	// ItemStateSuccess is terminal: parsed, or a raw asset that skips
	// parsing entirely.
	ItemStateSuccess ItemState = "SUCCESS"

	// ItemStateError is terminal: parse or upload failed.
	ItemStateError ItemState = "ERROR"
)

// Terminal reports whether the state admits no further transitions.
func (s ItemState) Terminal() bool {
	return s == ItemStateSuccess || s == ItemStateError
}

// InFlight reports whether the state counts as pending work in the
// aggregate view. UPLOADING, PENDING, and PROCESSING all merge into the
// pending bucket.
func (s ItemState) InFlight() bool {
	return !s.Terminal()
}

// ItemStatus is the per-item view exposed to the status API.
type ItemStatus struct {
	ID    uuid.UUID `json:"id"`
	Path  string    `json:"path"`
	State ItemState `json:"status"`
	Error string    `json:"error,omitempty"`
}

// SiteStatus is the site-level sync record.
type SiteStatus struct {
	Phase    SyncPhase  `json:"status"`
	SyncedAt *time.Time `json:"syncedAt,omitempty"`
	Message  string     `json:"message,omitempty"`
}

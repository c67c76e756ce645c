package sync

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-sh/inkwell/internal/ledger"
)

// WebhookOutcome tells the HTTP layer how a verified delivery was handled.
type WebhookOutcome string

const (
	// OutcomeAccepted means a reconciliation job was enqueued.
	OutcomeAccepted WebhookOutcome = "accepted"

	// OutcomeIgnored means the delivery verified but requires no work:
	// a ping event or a push to a branch the site does not track.
	OutcomeIgnored WebhookOutcome = "ignored"
)

// pushEvent is the subset of a provider push payload the dispatcher reads.
type pushEvent struct {
	Ref string `json:"ref"`
}

// Dispatcher turns triggers (webhooks, API calls, CLI) into queued
// reconciliation jobs. It owns the single-flight guard: the sync lease is
// taken at trigger time and travels with the job.
type Dispatcher struct {
	store    ledger.Store
	leaseTTL time.Duration
}

// NewDispatcher creates a Dispatcher acquiring leases with the given TTL.
func NewDispatcher(store ledger.Store, leaseTTL time.Duration) *Dispatcher {
	return &Dispatcher{store: store, leaseTTL: leaseTTL}
}

// Trigger acquires the site's sync lease and enqueues a job under it.
// Returns ErrSyncInProgress when an unexpired lease is already held: the
// caller maps that to a conflict response, never to a retry.
func (d *Dispatcher) Trigger(ctx context.Context, site *ledger.Site, ref string, force bool) (*ledger.Job, error) {
	owner := uuid.New()

	acquired, err := d.store.AcquireSyncLease(ctx, site.ID, owner, d.leaseTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lease: %w", err)
	}
	if !acquired {
		return nil, ErrSyncInProgress
	}

	job, err := d.store.EnqueueJob(ctx, site.ID, owner, ref, force)
	if err != nil {
		// Release the lease we just took so the site is not stuck
		// PENDING until the TTL expires.
		if ferr := d.store.FailSync(ctx, site.ID, owner, "failed to enqueue sync job"); ferr != nil {
			slog.Error("Failed to release sync lease after enqueue failure",
				"siteId", site.ID,
				"error", ferr)
		}
		return nil, fmt.Errorf("failed to enqueue sync job: %w", err)
	}

	slog.Info("Sync job enqueued",
		"siteId", site.ID,
		"jobId", job.ID,
		"ref", ref,
		"force", force)
	return job, nil
}

// HandleWebhook verifies and dispatches one webhook delivery. Signature
// failures return ErrInvalidSignature; a held lease surfaces as
// ErrSyncInProgress; non-push events and pushes to other branches return
// OutcomeIgnored.
func (d *Dispatcher) HandleWebhook(ctx context.Context, site *ledger.Site, event string, signature string, body []byte) (WebhookOutcome, *ledger.Job, error) {
	if !VerifySignature(site.WebhookSecret, body, signature) {
		return "", nil, ErrInvalidSignature
	}

	// Only pushes move content. Pings and every other event type
	// (issues, releases, ...) are acknowledged and dropped.
	if event != "push" {
		slog.Debug("Ignoring webhook event", "siteId", site.ID, "event", event)
		return OutcomeIgnored, nil, nil
	}

	var push pushEvent
	if err := json.Unmarshal(body, &push); err != nil {
		return "", nil, fmt.Errorf("failed to parse push payload: %w", err)
	}

	branch := strings.TrimPrefix(push.Ref, "refs/heads/")
	if branch != site.Branch {
		slog.Debug("Ignoring push to untracked branch",
			"siteId", site.ID,
			"pushedBranch", branch,
			"trackedBranch", site.Branch)
		return OutcomeIgnored, nil, nil
	}

	job, err := d.Trigger(ctx, site, push.Ref, false)
	if err != nil {
		return "", nil, err
	}
	return OutcomeAccepted, job, nil
}

// VerifySignature checks a hex HMAC-SHA256 delivery signature in constant
// time. The "sha256=" prefix is optional.
func VerifySignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimPrefix(signature, "sha256=")

	received, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(received, mac.Sum(nil))
}

// SignPayload computes the delivery signature a sender would attach, used
// by tests and the CLI webhook simulator.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

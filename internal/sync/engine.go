package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkwell-sh/inkwell/internal/ledger"
	"github.com/inkwell-sh/inkwell/internal/source"
	"github.com/inkwell-sh/inkwell/internal/status"
	"github.com/inkwell-sh/inkwell/internal/telemetry"
	"github.com/inkwell-sh/inkwell/internal/tree"
	"github.com/inkwell-sh/inkwell/internal/upload"
)

// Result summarizes one reconciliation run.
type Result struct {
	Phase     status.SyncPhase
	Added     int
	Modified  int
	Removed   int
	Unchanged int
	Failed    int
}

// Engine executes reconciliation jobs: fetch the upstream tree, diff it
// against the last snapshot, apply the changeset, and commit atomically
// under the job's sync lease.
type Engine struct {
	store    ledger.Store
	provider source.Provider
	applier  *upload.Applier
	metrics  *telemetry.SyncMetrics
}

// NewEngine creates an Engine. metrics may be nil.
func NewEngine(store ledger.Store, provider source.Provider, applier *upload.Applier, metrics *telemetry.SyncMetrics) *Engine {
	return &Engine{
		store:    store,
		provider: provider,
		applier:  applier,
		metrics:  metrics,
	}
}

// Reconcile runs one job to completion. The job's owner token must hold
// the site's sync lease; the engine releases it through CommitSync or
// FailSync. Item-level failures do not abort the run, they land the site
// in phase ERROR with every other item still processed.
func (e *Engine) Reconcile(ctx context.Context, job *ledger.Job) (*Result, error) {
	start := time.Now()

	site, err := e.store.GetSite(ctx, job.SiteID)
	if err != nil {
		return nil, err
	}

	slog.Info("Starting reconciliation",
		"siteId", site.ID,
		"repository", site.Repository,
		"branch", site.Branch,
		"ref", job.Ref,
		"force", job.Force)

	result, rerr := e.reconcile(ctx, site, job)
	success := rerr == nil && result != nil && result.Phase == status.SyncPhaseSuccess

	e.metrics.RecordSyncDuration(ctx, site.ID.String(), time.Since(start), success)
	if result != nil {
		e.metrics.RecordItemsSynced(ctx, site.ID.String(), "applied",
			int64(result.Added+result.Modified-result.Failed))
		e.metrics.RecordItemsSynced(ctx, site.ID.String(), "failed", int64(result.Failed))
	}

	if rerr != nil {
		return nil, rerr
	}

	slog.Info("Reconciliation finished",
		"siteId", site.ID,
		"phase", result.Phase,
		"added", result.Added,
		"modified", result.Modified,
		"removed", result.Removed,
		"failed", result.Failed,
		"duration", time.Since(start))
	return result, nil
}

func (e *Engine) reconcile(ctx context.Context, site *ledger.Site, job *ledger.Job) (*Result, *Error) {
	checkout, err := e.provider.Fetch(ctx, source.Locator{
		Repository: site.Repository,
		Branch:     site.Branch,
		RootDir:    site.RootDir,
	})
	if err != nil {
		msg := fmt.Sprintf("failed to fetch source tree: %v", err)
		e.fail(ctx, site, job, msg)
		return nil, stageError(StageFetch, msg, err)
	}
	defer checkout.Close()

	previous, err := e.store.GetSnapshot(ctx, site.ID, site.Branch)
	if err != nil {
		msg := fmt.Sprintf("failed to load snapshot: %v", err)
		e.fail(ctx, site, job, msg)
		return nil, stageError(StageDiff, msg, err)
	}

	upstream := checkout.Manifest()
	changes := tree.Diff(previous, upstream)
	if job.Force {
		// Reprocess every surviving upstream path, unchanged hashes
		// included.
		changes.Modified = append(changes.Modified, changes.Unchanged...)
		changes.Unchanged = nil
	}

	result := &Result{
		Added:     len(changes.Added),
		Modified:  len(changes.Modified),
		Removed:   len(changes.Removed),
		Unchanged: len(changes.Unchanged),
	}

	manifest := make(ledger.SiteManifest, len(upstream))
	for path, entry := range site.Manifest {
		manifest[path] = entry
	}
	snapshot := make(tree.Manifest, len(upstream))
	for path, hash := range upstream {
		snapshot[path] = hash
	}

	var itemErr string
	for _, path := range append(changes.Added, changes.Modified...) {
		applied, err := e.applier.ApplyChange(ctx, site, checkout, path)
		if err != nil {
			msg := fmt.Sprintf("reconciliation aborted at %s: %v", path, err)
			e.fail(ctx, site, job, msg)
			return nil, stageError(StageApply, msg, err)
		}
		if applied.Failed {
			result.Failed++
			if itemErr == "" {
				itemErr = fmt.Sprintf("%s: %s", applied.Path, applied.Error)
			}
			// Drop the failed path from the snapshot so the next run
			// retries it. A previous manifest entry keeps serving the
			// last good content in the meantime.
			delete(snapshot, path)
			continue
		}
		manifest[path] = applied.Entry
	}

	for _, path := range changes.Removed {
		if err := e.applier.RemovePath(ctx, site, path); err != nil {
			msg := fmt.Sprintf("reconciliation aborted removing %s: %v", path, err)
			e.fail(ctx, site, job, msg)
			return nil, stageError(StageApply, msg, err)
		}
		delete(manifest, path)
	}

	phase := status.SyncPhaseSuccess
	var syncErr string
	if result.Failed > 0 {
		phase = status.SyncPhaseError
		syncErr = fmt.Sprintf("%d of %d changed items failed, first: %s",
			result.Failed, result.Added+result.Modified, itemErr)
	}
	result.Phase = phase

	if err := e.store.CommitSync(ctx, ledger.SyncCommit{
		SiteID:   site.ID,
		Owner:    job.Owner,
		Branch:   site.Branch,
		Phase:    phase,
		Error:    syncErr,
		Manifest: manifest,
		Snapshot: snapshot,
	}); err != nil {
		return nil, stageError(StageCommit,
			fmt.Sprintf("failed to commit reconciliation: %v", err), err)
	}

	e.metrics.RecordSiteItems(ctx, site.ID.String(), int64(len(manifest)))
	return result, nil
}

// fail aborts the run under the job's lease, leaving the last-known-good
// snapshot and manifest untouched.
func (e *Engine) fail(ctx context.Context, site *ledger.Site, job *ledger.Job, msg string) {
	if err := e.store.FailSync(ctx, site.ID, job.Owner, msg); err != nil {
		slog.Error("Failed to record sync failure",
			"siteId", site.ID,
			"error", err)
	}
}

package sync

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/inkwell-sh/inkwell/internal/ledger"
)

// Pool drains the reconciliation job queue with a fixed set of workers.
// Per-site ordering needs no coordination here: the queue holds at most one
// unfinished job per site, and the sync lease guards execution.
type Pool struct {
	store        ledger.Store
	engine       *Engine
	workers      int
	pollInterval time.Duration
}

// NewPool creates a worker pool over the given engine.
func NewPool(store ledger.Store, engine *Engine, workers int, pollInterval time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		store:        store,
		engine:       engine,
		workers:      workers,
		pollInterval: pollInterval,
	}
}

// Run blocks until the context is cancelled, polling the queue and running
// claimed jobs. Job failures are logged and recorded on the site; they
// never stop the pool.
func (p *Pool) Run(ctx context.Context) error {
	slog.Info("Starting sync worker pool",
		"workers", p.workers,
		"pollInterval", p.pollInterval)

	group, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i
		group.Go(func() error {
			return p.runWorker(ctx, worker)
		})
	}
	return group.Wait()
}

func (p *Pool) runWorker(ctx context.Context, worker int) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		// Drain everything available before going back to sleep.
		for {
			job, err := p.store.ClaimNextJob(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("Failed to claim sync job", "worker", worker, "error", err)
				break
			}
			if job == nil {
				break
			}
			p.runJob(ctx, worker, job)
			if ctx.Err() != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Pool) runJob(ctx context.Context, worker int, job *ledger.Job) {
	slog.Debug("Claimed sync job",
		"worker", worker,
		"jobId", job.ID,
		"siteId", job.SiteID)

	if _, err := p.engine.Reconcile(ctx, job); err != nil {
		slog.Error("Reconciliation failed",
			"worker", worker,
			"jobId", job.ID,
			"siteId", job.SiteID,
			"error", err)
	}

	if err := p.store.FinishJob(ctx, job.ID); err != nil {
		slog.Error("Failed to finish sync job",
			"worker", worker,
			"jobId", job.ID,
			"error", err)
	}
}

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell-sh/inkwell/internal/db/sqlc"
	"github.com/inkwell-sh/inkwell/internal/page"
	"github.com/inkwell-sh/inkwell/internal/status"
	"github.com/inkwell-sh/inkwell/internal/tree"
)

// dbStore is the PostgreSQL-backed Store implementation.
type dbStore struct {
	pool *pgxpool.Pool
}

// NewDBStore creates a database-backed ledger store. The caller is
// responsible for closing the pool when done.
func NewDBStore(pool *pgxpool.Pool) (Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	return &dbStore{pool: pool}, nil
}

func (d *dbStore) CreateSite(ctx context.Context, site NewSite) (*Site, error) {
	queries := sqlc.New(d.pool)

	row, err := queries.CreateSite(ctx, sqlc.CreateSiteParams{
		OwnerID:       site.OwnerID,
		Repository:    site.Repository,
		Branch:        site.Branch,
		RootDir:       site.RootDir,
		WebhookSecret: site.WebhookSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create site: %w", err)
	}

	return dbSiteToSite(row)
}

func (d *dbStore) GetSite(ctx context.Context, id uuid.UUID) (*Site, error) {
	queries := sqlc.New(d.pool)

	row, err := queries.GetSite(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSiteNotFound
		}
		return nil, err
	}

	return dbSiteToSite(row)
}

func (d *dbStore) DeleteSite(ctx context.Context, id uuid.UUID) error {
	queries := sqlc.New(d.pool)

	affected, err := queries.DeleteSite(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSiteNotFound
	}
	return nil
}

func (d *dbStore) UpsertItem(ctx context.Context, item UpsertItem) (*Item, error) {
	queries := sqlc.New(d.pool)

	var appPath *string
	if item.AppPath != "" {
		appPath = &item.AppPath
	}

	var metadata []byte
	if item.Metadata != nil {
		data, err := json.Marshal(item.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal item metadata: %w", err)
		}
		metadata = data
	}

	row, err := queries.UpsertItem(ctx, sqlc.UpsertItemParams{
		SiteID:      item.SiteID,
		Path:        item.Path,
		AppPath:     appPath,
		Size:        item.Size,
		ContentHash: item.ContentHash,
		Extension:   item.Extension,
		Status:      sqlc.ItemStatus(item.Status),
		Metadata:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert item: %w", err)
	}

	return dbItemToItem(row)
}

func (d *dbStore) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	queries := sqlc.New(d.pool)

	row, err := queries.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	return dbItemToItem(row)
}

func (d *dbStore) ListItems(ctx context.Context, siteID uuid.UUID) ([]Item, error) {
	queries := sqlc.New(d.pool)

	rows, err := queries.ListItems(ctx, siteID)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		item, err := dbItemToItem(row)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

func (d *dbStore) ListItemsInState(ctx context.Context, state status.ItemState, limit int) ([]Item, error) {
	queries := sqlc.New(d.pool)

	rows, err := queries.ListItemsInState(ctx, sqlc.ListItemsInStateParams{
		Status: sqlc.ItemStatus(state),
		Limit:  int32(limit), //nolint:gosec // limit is a small batch size
	})
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		item, err := dbItemToItem(row)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

func (d *dbStore) ResolveItem(
	ctx context.Context, id uuid.UUID, to status.ItemState, errMsg string, meta *page.Metadata,
) error {
	// Transaction so the transition check and the update see the same row.
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	queries := sqlc.New(d.pool).WithTx(tx)

	row, err := queries.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrItemNotFound
		}
		return err
	}

	if !CanTransition(status.ItemState(row.Status), to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.Status, to)
	}

	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	var metadata []byte
	if meta != nil {
		metadata, err = json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to marshal item metadata: %w", err)
		}
	}

	if _, err := queries.UpdateItemStatus(ctx, sqlc.UpdateItemStatusParams{
		ID:       id,
		Status:   sqlc.ItemStatus(to),
		ErrorMsg: errPtr,
		Metadata: metadata,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (d *dbStore) DeleteItem(ctx context.Context, siteID uuid.UUID, path string) error {
	queries := sqlc.New(d.pool)

	affected, err := queries.DeleteItemByPath(ctx, sqlc.DeleteItemByPathParams{
		SiteID: siteID,
		Path:   path,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (d *dbStore) GetSnapshot(ctx context.Context, siteID uuid.UUID, branch string) (tree.Manifest, error) {
	queries := sqlc.New(d.pool)

	row, err := queries.GetSnapshot(ctx, sqlc.GetSnapshotParams{SiteID: siteID, Branch: branch})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Never synced: the previous side of the first diff is empty.
			return tree.Manifest{}, nil
		}
		return nil, err
	}

	var manifest tree.Manifest
	if err := json.Unmarshal(row.Manifest, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot manifest: %w", err)
	}
	return manifest, nil
}

func (d *dbStore) AcquireSyncLease(
	ctx context.Context, siteID, owner uuid.UUID, ttl time.Duration,
) (bool, error) {
	queries := sqlc.New(d.pool)

	expires := time.Now().Add(ttl)
	affected, err := queries.AcquireSyncLease(ctx, sqlc.AcquireSyncLeaseParams{
		ID:             siteID,
		LeaseOwner:     &owner,
		LeaseExpiresAt: &expires,
	})
	if err != nil {
		return false, err
	}
	if affected == 0 {
		// Either the site is gone or another run holds the lease.
		if _, err := queries.GetSite(ctx, siteID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return false, ErrSiteNotFound
			}
			return false, err
		}
		return false, nil
	}

	// Holding the lease means no live run exists for this site, so any
	// unfinished job row belongs to a crashed worker. Close such rows out
	// or they block every future enqueue on the in-flight unique index.
	if _, err := queries.FinishStaleSyncJobs(ctx, siteID); err != nil {
		return false, fmt.Errorf("failed to clear stale sync jobs: %w", err)
	}
	return true, nil
}

func (d *dbStore) CommitSync(ctx context.Context, commit SyncCommit) error {
	manifest, err := json.Marshal(commit.Manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal site manifest: %w", err)
	}
	snapshot, err := json.Marshal(commit.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Snapshot and site manifest move together or not at all.
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	queries := sqlc.New(d.pool).WithTx(tx)

	var errPtr *string
	if commit.Error != "" {
		msg := commit.Error
		errPtr = &msg
	}

	now := time.Now()
	affected, err := queries.CompleteSyncSuccess(ctx, sqlc.CompleteSyncSuccessParams{
		ID:         commit.SiteID,
		LeaseOwner: &commit.Owner,
		SyncedAt:   &now,
		SyncStatus: sqlc.SyncStatus(commit.Phase),
		SyncError:  errPtr,
		Manifest:   manifest,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrLeaseNotHeld
	}

	if err := queries.ReplaceSnapshot(ctx, sqlc.ReplaceSnapshotParams{
		SiteID:   commit.SiteID,
		Branch:   commit.Branch,
		Manifest: snapshot,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (d *dbStore) FailSync(ctx context.Context, siteID, owner uuid.UUID, errMsg string) error {
	queries := sqlc.New(d.pool)

	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	affected, err := queries.CompleteSyncFailure(ctx, sqlc.CompleteSyncFailureParams{
		ID:         siteID,
		LeaseOwner: &owner,
		SyncError:  errPtr,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrLeaseNotHeld
	}
	return nil
}

func (d *dbStore) EnqueueJob(ctx context.Context, siteID, owner uuid.UUID, ref string, force bool) (*Job, error) {
	queries := sqlc.New(d.pool)

	row, err := queries.EnqueueSyncJob(ctx, sqlc.EnqueueSyncJobParams{
		SiteID:     siteID,
		LeaseOwner: owner,
		Ref:        ref,
		ForceSync:  force,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue sync job: %w", err)
	}

	return &Job{
		ID:         row.ID,
		SiteID:     row.SiteID,
		Owner:      row.LeaseOwner,
		Ref:        row.Ref,
		Force:      row.ForceSync,
		EnqueuedAt: row.EnqueuedAt,
	}, nil
}

func (d *dbStore) ClaimNextJob(ctx context.Context) (*Job, error) {
	queries := sqlc.New(d.pool)

	row, err := queries.ClaimNextSyncJob(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &Job{
		ID:         row.ID,
		SiteID:     row.SiteID,
		Owner:      row.LeaseOwner,
		Ref:        row.Ref,
		Force:      row.ForceSync,
		EnqueuedAt: row.EnqueuedAt,
	}, nil
}

func (d *dbStore) FinishJob(ctx context.Context, jobID uuid.UUID) error {
	queries := sqlc.New(d.pool)
	return queries.FinishSyncJob(ctx, jobID)
}

func dbSiteToSite(row sqlc.Site) (*Site, error) {
	site := &Site{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		Repository:    row.Repository,
		Branch:        row.Branch,
		RootDir:       row.RootDir,
		WebhookSecret: row.WebhookSecret,
		SyncStatus:    status.SyncPhase(row.SyncStatus),
		SyncedAt:      row.SyncedAt,
	}
	if row.SyncError != nil {
		site.SyncError = *row.SyncError
	}
	if len(row.Manifest) > 0 {
		if err := json.Unmarshal(row.Manifest, &site.Manifest); err != nil {
			return nil, fmt.Errorf("failed to unmarshal site manifest: %w", err)
		}
	}
	if site.Manifest == nil {
		site.Manifest = SiteManifest{}
	}
	return site, nil
}

func dbItemToItem(row sqlc.Item) (*Item, error) {
	item := &Item{
		ID:          row.ID,
		SiteID:      row.SiteID,
		Path:        row.Path,
		Size:        row.Size,
		ContentHash: row.ContentHash,
		Extension:   row.Extension,
		Status:      status.ItemState(row.Status),
		UpdatedAt:   row.UpdatedAt,
	}
	if row.AppPath != nil {
		item.AppPath = *row.AppPath
	}
	if row.ErrorMsg != nil {
		item.Error = *row.ErrorMsg
	}
	if len(row.Metadata) > 0 {
		var meta page.Metadata
		if err := json.Unmarshal(row.Metadata, &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item metadata: %w", err)
		}
		item.Metadata = &meta
	}
	return item, nil
}

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-sh/inkwell/internal/page"
	"github.com/inkwell-sh/inkwell/internal/status"
	"github.com/inkwell-sh/inkwell/internal/tree"
)

func newTestSite(t *testing.T, store *MemoryStore) *Site {
	t.Helper()
	site, err := store.CreateSite(context.Background(), NewSite{
		OwnerID:       uuid.New(),
		Repository:    "github.com/acme/docs",
		Branch:        "main",
		WebhookSecret: "s3cret",
	})
	require.NoError(t, err)
	return site
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from status.ItemState
		to   status.ItemState
		want bool
	}{
		{status.ItemStateUploading, status.ItemStateProcessing, true},
		{status.ItemStateUploading, status.ItemStateError, true},
		{status.ItemStateUploading, status.ItemStateSuccess, false},
		{status.ItemStatePending, status.ItemStateProcessing, true},
		{status.ItemStatePending, status.ItemStateError, true},
		{status.ItemStatePending, status.ItemStateSuccess, false},
		{status.ItemStateProcessing, status.ItemStateSuccess, true},
		{status.ItemStateProcessing, status.ItemStateError, true},
		{status.ItemStateProcessing, status.ItemStatePending, false},
		{status.ItemStateSuccess, status.ItemStateProcessing, false},
		{status.ItemStateSuccess, status.ItemStateError, false},
		{status.ItemStateError, status.ItemStateProcessing, false},
		{status.ItemStateError, status.ItemStateSuccess, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestUpsertItemNeverDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	site := newTestSite(t, store)

	first, err := store.UpsertItem(ctx, UpsertItem{
		SiteID: site.ID, Path: "about.md", ContentHash: "h1",
		Extension: "md", AppPath: "/about", Status: status.ItemStatePending,
	})
	require.NoError(t, err)

	second, err := store.UpsertItem(ctx, UpsertItem{
		SiteID: site.ID, Path: "about.md", ContentHash: "h2",
		Extension: "md", AppPath: "/about", Status: status.ItemStatePending,
	})
	require.NoError(t, err)

	// Same row, restarted pipeline
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "h2", second.ContentHash)

	items, err := store.ListItems(ctx, site.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestListItemsInStateSpansSites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	siteA := newTestSite(t, store)
	siteB := newTestSite(t, store)

	for _, site := range []*Site{siteA, siteB} {
		_, err := store.UpsertItem(ctx, UpsertItem{
			SiteID: site.ID, Path: "draft.md", ContentHash: "h",
			Extension: "md", Status: status.ItemStateUploading,
		})
		require.NoError(t, err)
		_, err = store.UpsertItem(ctx, UpsertItem{
			SiteID: site.ID, Path: "done.png", ContentHash: "h",
			Extension: "png", Status: status.ItemStateSuccess,
		})
		require.NoError(t, err)
	}

	uploading, err := store.ListItemsInState(ctx, status.ItemStateUploading, 10)
	require.NoError(t, err)
	assert.Len(t, uploading, 2)
	for _, item := range uploading {
		assert.Equal(t, "draft.md", item.Path)
	}

	// limit caps the batch
	capped, err := store.ListItemsInState(ctx, status.ItemStateUploading, 1)
	require.NoError(t, err)
	assert.Len(t, capped, 1)
}

func TestResolveItemEnforcesStateMachine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	site := newTestSite(t, store)

	item, err := store.UpsertItem(ctx, UpsertItem{
		SiteID: site.ID, Path: "index.md", ContentHash: "h1",
		Extension: "md", AppPath: "/", Status: status.ItemStatePending,
	})
	require.NoError(t, err)

	// PENDING -> SUCCESS skips PROCESSING and must be rejected
	err = store.ResolveItem(ctx, item.ID, status.ItemStateSuccess, "", nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, store.ResolveItem(ctx, item.ID, status.ItemStateProcessing, "", nil))

	meta := &page.Metadata{Title: "Home"}
	require.NoError(t, store.ResolveItem(ctx, item.ID, status.ItemStateSuccess, "", meta))

	// Terminal states admit nothing
	err = store.ResolveItem(ctx, item.ID, status.ItemStateError, "late fail", nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, status.ItemStateSuccess, got.Status)
	assert.Equal(t, "Home", got.Metadata.Title)
}

func TestSyncLeaseSingleFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	site := newTestSite(t, store)

	ownerA := uuid.New()
	ownerB := uuid.New()

	acquired, err := store.AcquireSyncLease(ctx, site.ID, ownerA, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second concurrent trigger conflicts
	acquired, err = store.AcquireSyncLease(ctx, site.ID, ownerB, time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	got, err := store.GetSite(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, status.SyncPhasePending, got.SyncStatus)

	// Commit releases the lease; next trigger may proceed
	require.NoError(t, store.CommitSync(ctx, SyncCommit{
		SiteID: site.ID, Owner: ownerA, Branch: "main",
		Phase:    status.SyncPhaseSuccess,
		Manifest: SiteManifest{},
		Snapshot: tree.Manifest{"index.md": "h1"},
	}))

	acquired, err = store.AcquireSyncLease(ctx, site.ID, ownerB, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestSyncLeaseExpiryReclaimable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	site := newTestSite(t, store)

	// Simulated crashed worker: lease with a tiny TTL, never released
	acquired, err := store.AcquireSyncLease(ctx, site.ID, uuid.New(), time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(5 * time.Millisecond)

	acquired, err = store.AcquireSyncLease(ctx, site.ID, uuid.New(), time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestCommitSyncRequiresLease(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	site := newTestSite(t, store)

	err := store.CommitSync(ctx, SyncCommit{
		SiteID: site.ID, Owner: uuid.New(), Branch: "main",
		Phase: status.SyncPhaseSuccess, Manifest: SiteManifest{}, Snapshot: tree.Manifest{},
	})
	assert.ErrorIs(t, err, ErrLeaseNotHeld)
}

func TestFailSyncPreservesSnapshotAndManifest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	site := newTestSite(t, store)

	// First reconciliation succeeds
	owner := uuid.New()
	acquired, err := store.AcquireSyncLease(ctx, site.ID, owner, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	goodManifest := SiteManifest{"index.md": {AppPath: "/", ContentHash: "h1"}}
	goodSnapshot := tree.Manifest{"index.md": "h1"}
	require.NoError(t, store.CommitSync(ctx, SyncCommit{
		SiteID: site.ID, Owner: owner, Branch: "main",
		Phase: status.SyncPhaseSuccess, Manifest: goodManifest, Snapshot: goodSnapshot,
	}))

	// Second run fails before commit
	owner = uuid.New()
	acquired, err = store.AcquireSyncLease(ctx, site.ID, owner, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, store.FailSync(ctx, site.ID, owner, "upstream unreachable"))

	got, err := store.GetSite(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, status.SyncPhaseError, got.SyncStatus)
	assert.Equal(t, "upstream unreachable", got.SyncError)

	// Last-known-good untouched
	assert.Equal(t, goodManifest, got.Manifest)
	snapshot, err := store.GetSnapshot(ctx, site.ID, "main")
	require.NoError(t, err)
	assert.Equal(t, goodSnapshot, snapshot)
}

func TestSnapshotEmptyBeforeFirstSync(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	site := newTestSite(t, store)

	snapshot, err := store.GetSnapshot(ctx, site.ID, "main")
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestJobQueueFIFO(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	siteA := newTestSite(t, store)
	siteB := newTestSite(t, store)

	jobA, err := store.EnqueueJob(ctx, siteA.ID, uuid.New(), "main", false)
	require.NoError(t, err)
	jobB, err := store.EnqueueJob(ctx, siteB.ID, uuid.New(), "main", true)
	require.NoError(t, err)

	claimed, err := store.ClaimNextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, jobA.ID, claimed.ID)
	assert.False(t, claimed.Force)

	claimed, err = store.ClaimNextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, jobB.ID, claimed.ID)
	assert.True(t, claimed.Force)

	claimed, err = store.ClaimNextJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed)

	require.NoError(t, store.FinishJob(ctx, jobA.ID))
	require.NoError(t, store.FinishJob(ctx, jobB.ID))
}

func TestDeleteSiteCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	site := newTestSite(t, store)

	_, err := store.UpsertItem(ctx, UpsertItem{
		SiteID: site.ID, Path: "index.md", ContentHash: "h1",
		Extension: "md", Status: status.ItemStatePending,
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteSite(ctx, site.ID))

	_, err = store.GetSite(ctx, site.ID)
	assert.ErrorIs(t, err, ErrSiteNotFound)
	_, err = store.ListItems(ctx, site.ID)
	assert.ErrorIs(t, err, ErrSiteNotFound)
}

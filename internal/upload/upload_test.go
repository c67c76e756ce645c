package upload

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-sh/inkwell/internal/config"
	"github.com/inkwell-sh/inkwell/internal/ledger"
	"github.com/inkwell-sh/inkwell/internal/page"
	"github.com/inkwell-sh/inkwell/internal/status"
	"github.com/inkwell-sh/inkwell/internal/storage"
	"github.com/inkwell-sh/inkwell/internal/tree"
)

func testLimits() config.UploadConfig {
	return config.UploadConfig{
		MaxFiles:     1000,
		MaxFileSize:  100 << 20,
		MaxTotalSize: 500 << 20,
		URLTTL:       time.Hour,
	}
}

func newTestSite(t *testing.T, store ledger.Store) *ledger.Site {
	t.Helper()
	site, err := store.CreateSite(context.Background(), ledger.NewSite{
		OwnerID:    uuid.New(),
		Repository: "https://example.com/org/repo.git",
		Branch:     "main",
	})
	require.NoError(t, err)
	return site
}

func TestOrchestrator_IssueBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ledger.NewMemoryStore()
	backend := storage.NewMemoryBackend()
	orch := NewOrchestrator(store, backend, testLimits())
	site := newTestSite(t, store)

	resp, err := orch.IssueBatch(ctx, site, BatchRequest{Files: []FileDecl{
		{Path: "index.md", Size: 128, ContentHash: "h1"},
		{Path: "./docs/guide.md", Size: 256, ContentHash: "h2"},
		{Path: "assets/logo.png", Size: 1024, ContentHash: "h3"},
	}})
	require.NoError(t, err)
	require.Len(t, resp.Items, 3)

	// paths come back normalized and each grant is a PUT
	assert.Equal(t, "docs/guide.md", resp.Items[1].Path)
	for _, issued := range resp.Items {
		assert.Equal(t, "PUT", issued.Upload.Method)
		assert.NotEmpty(t, issued.Upload.URL)
	}

	// pages wait in UPLOADING for the parse step; the raw asset has no
	// processing step and is terminal immediately
	items, err := store.ListItems(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, item := range items {
		if page.IsPage(item.Path) {
			assert.Equal(t, status.ItemStateUploading, item.Status, item.Path)
		} else {
			assert.Equal(t, status.ItemStateSuccess, item.Status, item.Path)
		}
	}
}

func TestOrchestrator_IssueBatch_Validation(t *testing.T) {
	t.Parallel()

	limits := config.UploadConfig{
		MaxFiles:     3,
		MaxFileSize:  100,
		MaxTotalSize: 250,
		URLTTL:       time.Hour,
	}

	tests := []struct {
		name    string
		files   []FileDecl
		wantErr error
	}{
		{
			name:    "empty batch",
			files:   nil,
			wantErr: ErrInvalidPath,
		},
		{
			name: "too many files",
			files: []FileDecl{
				{Path: "a.md", Size: 1}, {Path: "b.md", Size: 1},
				{Path: "c.md", Size: 1}, {Path: "d.md", Size: 1},
			},
			wantErr: ErrTooManyFiles,
		},
		{
			name:    "file too large",
			files:   []FileDecl{{Path: "a.md", Size: 101}},
			wantErr: ErrFileTooLarge,
		},
		{
			name: "aggregate too large",
			files: []FileDecl{
				{Path: "a.md", Size: 100},
				{Path: "b.md", Size: 100},
				{Path: "c.md", Size: 100},
			},
			wantErr: ErrBatchTooLarge,
		},
		{
			name: "duplicate path after normalization",
			files: []FileDecl{
				{Path: "docs/a.md", Size: 1},
				{Path: "./docs/a.md", Size: 1},
			},
			wantErr: ErrInvalidPath,
		},
		{
			name:    "traversal path",
			files:   []FileDecl{{Path: "../escape.md", Size: 1}},
			wantErr: ErrInvalidPath,
		},
		{
			name:    "negative size",
			files:   []FileDecl{{Path: "a.md", Size: -1}},
			wantErr: ErrInvalidPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := ledger.NewMemoryStore()
			orch := NewOrchestrator(store, storage.NewMemoryBackend(), limits)
			site := newTestSite(t, store)

			_, err := orch.IssueBatch(context.Background(), site, BatchRequest{Files: tt.files})
			assert.ErrorIs(t, err, tt.wantErr)

			// a rejected batch must leave no trace
			items, lerr := store.ListItems(context.Background(), site.ID)
			require.NoError(t, lerr)
			assert.Empty(t, items)
		})
	}
}

func TestOrchestrator_IssueBatch_AtCeilings(t *testing.T) {
	t.Parallel()

	limits := config.UploadConfig{
		MaxFiles:     2,
		MaxFileSize:  100,
		MaxTotalSize: 200,
		URLTTL:       time.Hour,
	}
	store := ledger.NewMemoryStore()
	orch := NewOrchestrator(store, storage.NewMemoryBackend(), limits)
	site := newTestSite(t, store)

	// exactly at every limit is accepted
	resp, err := orch.IssueBatch(context.Background(), site, BatchRequest{Files: []FileDecl{
		{Path: "a.md", Size: 100},
		{Path: "b.md", Size: 100},
	}})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 2)
}

func TestApplier_ProcessUploaded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ledger.NewMemoryStore()
	backend := storage.NewMemoryBackend()
	orch := NewOrchestrator(store, backend, testLimits())
	applier := NewApplier(store, backend)
	site := newTestSite(t, store)

	content := []byte("---\ntitle: Guide\n---\n\n# Guide\n")
	resp, err := orch.IssueBatch(ctx, site, BatchRequest{Files: []FileDecl{
		{Path: "docs/guide.md", Size: int64(len(content)), ContentHash: "h1"},
		{Path: "missing.md", Size: 10, ContentHash: "h2"},
		{Path: "broken.md", Size: 10, ContentHash: "h3"},
	}})
	require.NoError(t, err)

	// simulate the client PUTs
	require.NoError(t, backend.PutObject(ctx, storage.RawKey(site.ID, "main", "docs/guide.md"), content))
	require.NoError(t, backend.PutObject(ctx, storage.RawKey(site.ID, "main", "broken.md"), []byte("---\ntitle: [\n")))

	byPath := map[string]uuid.UUID{}
	for _, issued := range resp.Items {
		byPath[issued.Path] = issued.ItemID
	}

	require.NoError(t, applier.ProcessUploaded(ctx, site, byPath["docs/guide.md"]))
	require.NoError(t, applier.ProcessUploaded(ctx, site, byPath["missing.md"]))
	require.NoError(t, applier.ProcessUploaded(ctx, site, byPath["broken.md"]))

	good, err := store.GetItem(ctx, byPath["docs/guide.md"])
	require.NoError(t, err)
	assert.Equal(t, status.ItemStateSuccess, good.Status)
	require.NotNil(t, good.Metadata)
	assert.Equal(t, "Guide", good.Metadata.Title)

	missing, err := store.GetItem(ctx, byPath["missing.md"])
	require.NoError(t, err)
	assert.Equal(t, status.ItemStateError, missing.Status)
	assert.Contains(t, missing.Error, "never uploaded")

	broken, err := store.GetItem(ctx, byPath["broken.md"])
	require.NoError(t, err)
	assert.Equal(t, status.ItemStateError, broken.Status)
	assert.Contains(t, broken.Error, "parse")

	// a terminal item cannot be processed again
	err = applier.ProcessUploaded(ctx, site, byPath["docs/guide.md"])
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
}

func TestIssueBatch_AssetIsTerminalImmediately(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ledger.NewMemoryStore()
	backend := storage.NewMemoryBackend()
	orch := NewOrchestrator(store, backend, testLimits())
	site := newTestSite(t, store)

	resp, err := orch.IssueBatch(ctx, site, BatchRequest{Files: []FileDecl{
		{Path: "assets/logo.png", Size: 4, ContentHash: "h1"},
	}})
	require.NoError(t, err)

	// No parse step for raw assets: SUCCESS before any bytes arrive.
	item, err := store.GetItem(ctx, resp.Items[0].ItemID)
	require.NoError(t, err)
	assert.Equal(t, status.ItemStateSuccess, item.Status)
	assert.Nil(t, item.Metadata)
	assert.Empty(t, item.AppPath)

	// The grant itself still works for transferring the bytes.
	assert.Equal(t, "PUT", resp.Items[0].Upload.Method)
}

func TestApplier_ApplyChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ledger.NewMemoryStore()
	backend := storage.NewMemoryBackend()
	applier := NewApplier(store, backend)
	site := newTestSite(t, store)

	checkout := &fakeCheckout{
		manifest: map[string]string{
			"index.md":   "hash-index",
			"flaky.md":   "hash-flaky",
			"gone.md":    "hash-gone",
			"mangled.md": "hash-mangled",
		},
		content: map[string][]byte{
			"index.md":   []byte("# Welcome\n"),
			"flaky.md":   []byte("# Eventually\n"),
			"mangled.md": []byte("---\ntitle: [\n"),
		},
		failures: map[string]int{
			"flaky.md": 2, // succeeds on the third try
		},
	}

	t.Run("success with stored object and manifest entry", func(t *testing.T) {
		result, err := applier.ApplyChange(ctx, site, checkout, "index.md")
		require.NoError(t, err)
		assert.False(t, result.Failed)
		assert.Equal(t, "hash-index", result.Entry.ContentHash)
		assert.Equal(t, "/", result.Entry.AppPath)
		assert.Equal(t, "Welcome", result.Entry.Title)

		stored, err := backend.GetObject(ctx, storage.RawKey(site.ID, "main", "index.md"))
		require.NoError(t, err)
		assert.Equal(t, []byte("# Welcome\n"), stored)
	})

	t.Run("transient fetch failures are retried", func(t *testing.T) {
		result, err := applier.ApplyChange(ctx, site, checkout, "flaky.md")
		require.NoError(t, err)
		assert.False(t, result.Failed)
	})

	t.Run("permanent fetch failure is recorded on the item", func(t *testing.T) {
		result, err := applier.ApplyChange(ctx, site, checkout, "gone.md")
		require.NoError(t, err)
		assert.True(t, result.Failed)
		assert.Contains(t, result.Error, "fetch")

		items, err := store.ListItems(ctx, site.ID)
		require.NoError(t, err)
		var found bool
		for _, item := range items {
			if item.Path == "gone.md" {
				found = true
				assert.Equal(t, status.ItemStateError, item.Status)
			}
		}
		assert.True(t, found)
	})

	t.Run("parse failure is recorded on the item", func(t *testing.T) {
		result, err := applier.ApplyChange(ctx, site, checkout, "mangled.md")
		require.NoError(t, err)
		assert.True(t, result.Failed)
		assert.Contains(t, result.Error, "parse")
	})
}

func TestApplier_RemovePath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := ledger.NewMemoryStore()
	backend := storage.NewMemoryBackend()
	applier := NewApplier(store, backend)
	site := newTestSite(t, store)

	checkout := &fakeCheckout{
		manifest: map[string]string{"old.md": "hash-old"},
		content:  map[string][]byte{"old.md": []byte("# Old\n")},
	}
	_, err := applier.ApplyChange(ctx, site, checkout, "old.md")
	require.NoError(t, err)

	require.NoError(t, applier.RemovePath(ctx, site, "old.md"))

	items, err := store.ListItems(ctx, site.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = backend.GetObject(ctx, storage.RawKey(site.ID, "main", "old.md"))
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	// deleting a path that never existed is fine
	require.NoError(t, applier.RemovePath(ctx, site, "never.md"))
}

// fakeCheckout serves canned content and can fail the first N reads of a
// path to exercise fetch retries.
type fakeCheckout struct {
	manifest tree.Manifest
	content  map[string][]byte
	failures map[string]int
}

func (c *fakeCheckout) Manifest() tree.Manifest {
	return c.manifest
}

func (c *fakeCheckout) Content(path string) ([]byte, error) {
	if c.failures[path] > 0 {
		c.failures[path]--
		return nil, fmt.Errorf("transient read failure")
	}
	data, ok := c.content[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return data, nil
}

func (c *fakeCheckout) Close() error { return nil }

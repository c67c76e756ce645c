package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProvider_Fetch(t *testing.T) {
	t.Parallel()

	provider := NewMemoryProvider()
	provider.SetFile("repo", "main", "docs/index.md", []byte("# Home"))
	provider.SetFile("repo", "main", "docs/guide.md", []byte("# Guide"))
	provider.SetFile("repo", "main", "README.md", []byte("readme"))

	t.Run("whole tree", func(t *testing.T) {
		t.Parallel()

		checkout, err := provider.Fetch(context.Background(), Locator{
			Repository: "repo",
			Branch:     "main",
		})
		require.NoError(t, err)
		defer checkout.Close()

		manifest := checkout.Manifest()
		assert.Len(t, manifest, 3)
		assert.Contains(t, manifest, "docs/index.md")
		assert.Contains(t, manifest, "README.md")

		content, err := checkout.Content("docs/guide.md")
		require.NoError(t, err)
		assert.Equal(t, []byte("# Guide"), content)
	})

	t.Run("re-rooted tree", func(t *testing.T) {
		t.Parallel()

		checkout, err := provider.Fetch(context.Background(), Locator{
			Repository: "repo",
			Branch:     "main",
			RootDir:    "docs",
		})
		require.NoError(t, err)
		defer checkout.Close()

		manifest := checkout.Manifest()
		assert.Len(t, manifest, 2)
		assert.Contains(t, manifest, "index.md")
		assert.Contains(t, manifest, "guide.md")
		assert.NotContains(t, manifest, "README.md")
	})

	t.Run("unknown branch", func(t *testing.T) {
		t.Parallel()

		_, err := provider.Fetch(context.Background(), Locator{
			Repository: "repo",
			Branch:     "develop",
		})
		assert.ErrorIs(t, err, ErrBranchNotFound)
	})

	t.Run("unknown repository", func(t *testing.T) {
		t.Parallel()

		_, err := provider.Fetch(context.Background(), Locator{
			Repository: "missing",
			Branch:     "main",
		})
		assert.Error(t, err)
	})
}

func TestMemoryProvider_HashTracksContent(t *testing.T) {
	t.Parallel()

	provider := NewMemoryProvider()
	provider.SetFile("repo", "main", "page.md", []byte("v1"))

	first, err := provider.Fetch(context.Background(), Locator{Repository: "repo", Branch: "main"})
	require.NoError(t, err)

	provider.SetFile("repo", "main", "page.md", []byte("v2"))

	second, err := provider.Fetch(context.Background(), Locator{Repository: "repo", Branch: "main"})
	require.NoError(t, err)

	assert.NotEqual(t, first.Manifest()["page.md"], second.Manifest()["page.md"])

	// the earlier checkout is a snapshot, edits after Fetch do not leak in
	content, err := first.Content("page.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), content)
}

func TestMemoryProvider_BranchExists(t *testing.T) {
	t.Parallel()

	provider := NewMemoryProvider()
	provider.SetFile("repo", "main", "page.md", []byte("x"))

	exists, err := provider.BranchExists(context.Background(), Locator{Repository: "repo", Branch: "main"})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = provider.BranchExists(context.Background(), Locator{Repository: "repo", Branch: "develop"})
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = provider.BranchExists(context.Background(), Locator{Repository: "other", Branch: "main"})
	require.NoError(t, err)
	assert.False(t, exists)
}

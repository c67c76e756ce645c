package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawKey(t *testing.T) {
	t.Parallel()

	siteID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t,
		"11111111-2222-3333-4444-555555555555/main/raw/docs/index.md",
		RawKey(siteID, "main", "docs/index.md"))
	assert.Equal(t,
		"11111111-2222-3333-4444-555555555555/main/",
		BranchPrefix(siteID, "main"))
}

func TestMemoryBackend_Objects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemoryBackend()

	require.NoError(t, backend.PutObject(ctx, "a/main/raw/index.md", []byte("home")))
	require.NoError(t, backend.PutObject(ctx, "a/main/raw/guide.md", []byte("guide")))
	require.NoError(t, backend.PutObject(ctx, "b/main/raw/index.md", []byte("other")))

	data, err := backend.GetObject(ctx, "a/main/raw/index.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("home"), data)

	_, err = backend.GetObject(ctx, "a/main/raw/missing.md")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	keys, err := backend.ListObjects(ctx, "a/main/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/main/raw/guide.md", "a/main/raw/index.md"}, keys)

	require.NoError(t, backend.DeleteObject(ctx, "a/main/raw/guide.md"))
	require.NoError(t, backend.DeleteObject(ctx, "a/main/raw/guide.md")) // idempotent

	keys, err = backend.ListObjects(ctx, "a/main/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/main/raw/index.md"}, keys)
}

func TestMemoryBackend_PresignedPut(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemoryBackend()

	cap1, err := backend.IssuePresignedPut(ctx, "site/main/raw/a.md", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "PUT", cap1.Method)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cap1.ExpiresAt, time.Minute)

	token := tokenFromURL(t, cap1.URL)

	// a grant is scoped to its key
	err = backend.RedeemPut(token, "site/main/raw/other.md", []byte("x"))
	assert.Error(t, err)
	_, err = backend.GetObject(ctx, "site/main/raw/other.md")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, backend.RedeemPut(token, "site/main/raw/a.md", []byte("content")))
	data, err := backend.GetObject(ctx, "site/main/raw/a.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)

	// unknown tokens are rejected
	err = backend.RedeemPut(uuid.New().String(), "site/main/raw/a.md", []byte("y"))
	assert.Error(t, err)
}

func TestMemoryBackend_PresignedPutExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemoryBackend()

	capability, err := backend.IssuePresignedPut(ctx, "site/main/raw/a.md", -time.Second)
	require.NoError(t, err)

	err = backend.RedeemPut(tokenFromURL(t, capability.URL), "site/main/raw/a.md", []byte("late"))
	assert.ErrorContains(t, err, "expired")
}

func tokenFromURL(t *testing.T, rawURL string) string {
	t.Helper()
	idx := len(rawURL) - 36 // uuid token is the url suffix
	require.Greater(t, idx, 0)
	return rawURL[idx:]
}

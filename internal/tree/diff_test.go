package tree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		previous      Manifest
		upstream      Manifest
		wantAdded     []string
		wantModified  []string
		wantRemoved   []string
		wantUnchanged []string
	}{
		{
			name:          "first publish against empty snapshot",
			previous:      Manifest{},
			upstream:      Manifest{"index.md": "h1", "about.md": "h2", "logo.png": "h3"},
			wantAdded:     []string{"about.md", "index.md", "logo.png"},
			wantModified:  nil,
			wantRemoved:   nil,
			wantUnchanged: nil,
		},
		{
			name:          "added and removed with one unchanged",
			previous:      Manifest{"a": "h1", "b": "h2"},
			upstream:      Manifest{"a": "h1", "c": "h3"},
			wantAdded:     []string{"c"},
			wantModified:  nil,
			wantRemoved:   []string{"b"},
			wantUnchanged: []string{"a"},
		},
		{
			name:          "incremental edit touches only the changed path",
			previous:      Manifest{"index.md": "h1", "about.md": "h2"},
			upstream:      Manifest{"index.md": "h1", "about.md": "h2-new"},
			wantAdded:     nil,
			wantModified:  []string{"about.md"},
			wantRemoved:   nil,
			wantUnchanged: []string{"index.md"},
		},
		{
			name:          "identical trees produce an empty changeset",
			previous:      Manifest{"a": "h1", "b": "h2"},
			upstream:      Manifest{"a": "h1", "b": "h2"},
			wantAdded:     nil,
			wantModified:  nil,
			wantRemoved:   nil,
			wantUnchanged: []string{"a", "b"},
		},
		{
			name:          "rename observed as remove plus add",
			previous:      Manifest{"old.md": "h1"},
			upstream:      Manifest{"new.md": "h1"},
			wantAdded:     []string{"new.md"},
			wantRemoved:   []string{"old.md"},
			wantUnchanged: nil,
		},
		{
			name:          "case sensitive paths are distinct",
			previous:      Manifest{"Readme.md": "h1"},
			upstream:      Manifest{"readme.md": "h1"},
			wantAdded:     []string{"readme.md"},
			wantRemoved:   []string{"Readme.md"},
			wantUnchanged: nil,
		},
		{
			name:          "everything deleted upstream",
			previous:      Manifest{"a": "h1", "b": "h2"},
			upstream:      Manifest{},
			wantAdded:     nil,
			wantRemoved:   []string{"a", "b"},
			wantUnchanged: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cs := Diff(tt.previous, tt.upstream)
			assert.Equal(t, tt.wantAdded, cs.Added)
			assert.Equal(t, tt.wantModified, cs.Modified)
			assert.Equal(t, tt.wantRemoved, cs.Removed)
			assert.Equal(t, tt.wantUnchanged, cs.Unchanged)
		})
	}
}

func TestDiffSetsAreDisjoint(t *testing.T) {
	t.Parallel()

	previous := Manifest{}
	upstream := Manifest{}
	for i := 0; i < 50; i++ {
		previous[fmt.Sprintf("keep-%02d.md", i)] = "same"
		upstream[fmt.Sprintf("keep-%02d.md", i)] = "same"
		previous[fmt.Sprintf("gone-%02d.md", i)] = "old"
		upstream[fmt.Sprintf("new-%02d.md", i)] = "new"
	}

	cs := Diff(previous, upstream)
	assert.Len(t, cs.Added, 50)
	assert.Len(t, cs.Removed, 50)
	assert.Len(t, cs.Unchanged, 50)
	assert.Empty(t, cs.Modified)
	assert.Equal(t, 100, cs.ChangedCount())

	seen := make(map[string]int)
	for _, set := range [][]string{cs.Added, cs.Modified, cs.Removed, cs.Unchanged} {
		for _, p := range set {
			seen[p]++
		}
	}
	for p, n := range seen {
		assert.Equal(t, 1, n, "path %s appears in more than one set", p)
	}
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"docs/index.md", "docs/index.md"},
		{"./docs/index.md", "docs/index.md"},
		{"/docs/index.md", "docs/index.md"},
		{"docs/index.md/", "docs/index.md"},
		{"docs\\sub\\page.md", "docs/sub/page.md"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePath(tt.in), "input %q", tt.in)
	}
}

func TestRebase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		root   string
		want   string
		wantOK bool
	}{
		{"docs/index.md", "docs", "index.md", true},
		{"docs/sub/page.md", "docs", "sub/page.md", true},
		{"other/index.md", "docs", "", false},
		{"docs", "docs", "", false},
		{"index.md", "", "index.md", true},
		{"docsextra/file.md", "docs", "", false},
	}

	for _, tt := range tests {
		got, ok := Rebase(tt.path, tt.root)
		assert.Equal(t, tt.wantOK, ok, "path %q root %q", tt.path, tt.root)
		assert.Equal(t, tt.want, got, "path %q root %q", tt.path, tt.root)
	}
}

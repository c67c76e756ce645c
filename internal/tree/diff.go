// Package tree computes changesets between two path-to-hash manifests.
package tree

import (
	"sort"
	"strings"
)

// Manifest maps normalized source-relative paths to content hashes.
type Manifest map[string]string

// Changeset is the result of diffing an upstream manifest against the
// previously synced one. The four sets are disjoint.
type Changeset struct {
	Added     []string
	Modified  []string
	Removed   []string
	Unchanged []string
}

// IsEmpty reports whether the changeset contains no additions,
// modifications, or removals.
func (c *Changeset) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// ChangedCount returns the number of paths that need work.
func (c *Changeset) ChangedCount() int {
	return len(c.Added) + len(c.Modified) + len(c.Removed)
}

// Diff compares the previous manifest against the upstream manifest and
// returns the changeset. Comparison is exact string equality on normalized
// paths; a rename shows up as one removal plus one addition. The content
// hash is the sole change signal, so equal hashes always land in Unchanged.
func Diff(previous, upstream Manifest) *Changeset {
	cs := &Changeset{}

	for path, hash := range upstream {
		prevHash, ok := previous[path]
		switch {
		case !ok:
			cs.Added = append(cs.Added, path)
		case prevHash != hash:
			cs.Modified = append(cs.Modified, path)
		default:
			cs.Unchanged = append(cs.Unchanged, path)
		}
	}

	for path := range previous {
		if _, ok := upstream[path]; !ok {
			cs.Removed = append(cs.Removed, path)
		}
	}

	// Deterministic ordering for logging and tests
	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Removed)
	sort.Strings(cs.Unchanged)

	return cs
}

// NormalizePath canonicalizes a source path for manifest keys:
// forward slashes, no leading "./", no leading or trailing slash.
// Case is preserved; path comparison is case-sensitive.
func NormalizePath(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.Trim(p, "/")
	return p
}

// Rebase strips the root directory prefix from path and reports whether the
// path was under the root. An empty root leaves paths untouched.
func Rebase(path, root string) (string, bool) {
	if root == "" {
		return path, true
	}
	root = NormalizePath(root)
	if path == root {
		// The root itself is a directory, not a file under it.
		return "", false
	}
	if rest, ok := strings.CutPrefix(path, root+"/"); ok {
		return rest, true
	}
	return "", false
}

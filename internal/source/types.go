// Package source fetches content trees from external version-controlled
// repositories.
package source

import (
	"context"
	"errors"

	"github.com/inkwell-sh/inkwell/internal/tree"
)

// ErrBranchNotFound is returned when the requested ref does not exist.
var ErrBranchNotFound = errors.New("branch not found")

// Locator identifies a source tree: repository, branch, and the optional
// subdirectory the site is rooted at.
type Locator struct {
	Repository string
	Branch     string
	RootDir    string
}

// Provider produces checkouts of a source tree. Failures propagate to the
// caller as reconciliation failures.
type Provider interface {
	// Fetch retrieves the tree at the locator's branch head. The caller
	// must Close the checkout when done.
	Fetch(ctx context.Context, loc Locator) (Checkout, error)

	// BranchExists reports whether the locator's branch exists.
	BranchExists(ctx context.Context, loc Locator) (bool, error)
}

// Checkout is one fetched source tree, already filtered to the locator's
// root directory and re-rooted to relative paths.
type Checkout interface {
	// Manifest returns the path-to-hash map of the checkout.
	Manifest() tree.Manifest

	// Content returns the bytes of one file by its re-rooted path.
	Content(path string) ([]byte, error)

	// Close releases checkout resources.
	Close() error
}

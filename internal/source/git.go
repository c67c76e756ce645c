package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/inkwell-sh/inkwell/internal/tree"
)

// gitProvider fetches source trees with go-git, cloning shallow and fully
// in memory.
type gitProvider struct{}

// NewGitProvider creates a Provider backed by go-git.
func NewGitProvider() Provider {
	return &gitProvider{}
}

// Fetch clones the branch head into memory and builds the re-rooted
// manifest from the commit tree's blob hashes. The blob hash is the change
// signal; file bytes are only read for paths the differ selects.
func (*gitProvider) Fetch(ctx context.Context, loc Locator) (Checkout, error) {
	start := time.Now()
	slog.Info("Fetching source tree",
		"repository", loc.Repository,
		"branch", loc.Branch,
		"rootDir", loc.RootDir)

	// go-git wants separate filesystems for the storer and the checked
	// out files.
	worktreeFS := memfs.New()
	storerFS := memfs.New()
	storerCache := cache.NewObjectLRUDefault()
	storer := filesystem.NewStorage(storerFS, storerCache)

	repo, err := git.CloneContext(ctx, storer, worktreeFS, &git.CloneOptions{
		URL:           loc.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(loc.Branch),
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, loc.Branch)
		}
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object: %w", err)
	}
	commitTree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get commit tree: %w", err)
	}

	manifest := tree.Manifest{}
	err = commitTree.Files().ForEach(func(f *object.File) error {
		rel, ok := tree.Rebase(tree.NormalizePath(f.Name), loc.RootDir)
		if !ok {
			return nil
		}
		manifest[rel] = f.Hash.String()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk commit tree: %w", err)
	}

	slog.Info("Source tree fetched",
		"repository", loc.Repository,
		"branch", loc.Branch,
		"fileCount", len(manifest),
		"duration", time.Since(start))

	return &gitCheckout{
		loc:        loc,
		tree:       commitTree,
		manifest:   manifest,
		storerFS:   storerFS,
		worktreeFS: worktreeFS,
		cache:      storerCache,
	}, nil
}

// BranchExists checks the remote's advertised refs without cloning.
func (*gitProvider) BranchExists(_ context.Context, loc Locator) (bool, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{loc.Repository},
	})

	refs, err := remote.List(&git.ListOptions{})
	if err != nil {
		if errors.Is(err, transport.ErrRepositoryNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to list remote refs: %w", err)
	}

	want := plumbing.NewBranchReferenceName(loc.Branch)
	for _, ref := range refs {
		if ref.Name() == want {
			return true, nil
		}
	}
	return false, nil
}

type gitCheckout struct {
	loc        Locator
	tree       *object.Tree
	manifest   tree.Manifest
	storerFS   billy.Filesystem
	worktreeFS billy.Filesystem
	cache      cache.Object
}

func (c *gitCheckout) Manifest() tree.Manifest {
	return c.manifest
}

func (c *gitCheckout) Content(path string) ([]byte, error) {
	full := path
	if c.loc.RootDir != "" {
		full = tree.NormalizePath(c.loc.RootDir) + "/" + path
	}

	file, err := c.tree.File(full)
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", full, err)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	return []byte(content), nil
}

// Close clears the in-memory clone so the object cache and filesystems can
// be reclaimed between reconciliations.
func (c *gitCheckout) Close() error {
	if c.cache != nil {
		c.cache.Clear()
	}
	if c.worktreeFS != nil {
		_ = util.RemoveAll(c.worktreeFS, "/")
	}
	if c.storerFS != nil {
		_ = util.RemoveAll(c.storerFS, "/")
	}
	c.tree = nil
	c.cache = nil
	c.storerFS = nil
	c.worktreeFS = nil
	return nil
}

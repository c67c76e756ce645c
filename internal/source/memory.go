package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/inkwell-sh/inkwell/internal/tree"
)

// MemoryProvider serves source trees from maps, for tests and local
// development. Content hashes are sha256 of the file bytes so the differ
// sees edits the same way the git provider does.
type MemoryProvider struct {
	mu    sync.RWMutex
	repos map[string]map[string]map[string][]byte // repository -> branch -> path -> content
}

// NewMemoryProvider creates an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		repos: make(map[string]map[string]map[string][]byte),
	}
}

// SetFile adds or replaces a file on a branch, creating the repository and
// branch as needed.
func (p *MemoryProvider) SetFile(repository, branch, path string, content []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	branches, ok := p.repos[repository]
	if !ok {
		branches = make(map[string]map[string][]byte)
		p.repos[repository] = branches
	}
	files, ok := branches[branch]
	if !ok {
		files = make(map[string][]byte)
		branches[branch] = files
	}
	files[tree.NormalizePath(path)] = append([]byte(nil), content...)
}

// RemoveFile deletes a file from a branch. Missing files are ignored.
func (p *MemoryProvider) RemoveFile(repository, branch, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if branches, ok := p.repos[repository]; ok {
		if files, ok := branches[branch]; ok {
			delete(files, tree.NormalizePath(path))
		}
	}
}

// Fetch snapshots the branch contents at call time. Later SetFile calls do
// not affect an already returned Checkout.
func (p *MemoryProvider) Fetch(_ context.Context, loc Locator) (Checkout, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	branches, ok := p.repos[loc.Repository]
	if !ok {
		return nil, fmt.Errorf("repository not found: %s", loc.Repository)
	}
	files, ok := branches[loc.Branch]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, loc.Branch)
	}

	manifest := tree.Manifest{}
	content := make(map[string][]byte, len(files))
	for path, data := range files {
		rel, ok := tree.Rebase(path, loc.RootDir)
		if !ok {
			continue
		}
		sum := sha256.Sum256(data)
		manifest[rel] = hex.EncodeToString(sum[:])
		content[rel] = append([]byte(nil), data...)
	}

	return &memoryCheckout{manifest: manifest, content: content}, nil
}

// BranchExists reports whether the branch has been created with SetFile.
func (p *MemoryProvider) BranchExists(_ context.Context, loc Locator) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	branches, ok := p.repos[loc.Repository]
	if !ok {
		return false, nil
	}
	_, ok = branches[loc.Branch]
	return ok, nil
}

type memoryCheckout struct {
	manifest tree.Manifest
	content  map[string][]byte
}

func (c *memoryCheckout) Manifest() tree.Manifest {
	return c.manifest
}

func (c *memoryCheckout) Content(path string) ([]byte, error) {
	data, ok := c.content[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return data, nil
}

func (c *memoryCheckout) Close() error {
	return nil
}

package storage

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend keeps objects in a map, for tests and local development.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string][]byte
	grants  map[string]memoryGrant // token -> grant
}

type memoryGrant struct {
	key     string
	expires time.Time
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		objects: make(map[string][]byte),
		grants:  make(map[string]memoryGrant),
	}
}

func (b *MemoryBackend) PutObject(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), data...)
	return nil
}

func (b *MemoryBackend) GetObject(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

func (b *MemoryBackend) DeleteObject(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *MemoryBackend) ListObjects(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys []string
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// IssuePresignedPut mints an opaque token scoped to exactly one key. The
// returned URL carries the token; RedeemPut enforces the scope and expiry
// the way a real presigned URL would.
func (b *MemoryBackend) IssuePresignedPut(_ context.Context, key string, ttl time.Duration) (*Capability, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	token := uuid.New().String()
	expires := time.Now().Add(ttl)
	b.grants[token] = memoryGrant{key: key, expires: expires}

	return &Capability{
		URL:       fmt.Sprintf("memory://upload/%s?token=%s", url.PathEscape(key), token),
		Method:    "PUT",
		ExpiresAt: expires,
	}, nil
}

// RedeemPut writes through a previously issued grant. It rejects unknown
// or expired tokens and tokens presented for a different key.
func (b *MemoryBackend) RedeemPut(token, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	grant, ok := b.grants[token]
	if !ok {
		return fmt.Errorf("unknown upload token")
	}
	if time.Now().After(grant.expires) {
		return fmt.Errorf("upload token expired")
	}
	if grant.key != key {
		return fmt.Errorf("upload token not valid for key %s", key)
	}

	b.objects[key] = append([]byte(nil), data...)
	return nil
}

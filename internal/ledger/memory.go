package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-sh/inkwell/internal/page"
	"github.com/inkwell-sh/inkwell/internal/status"
	"github.com/inkwell-sh/inkwell/internal/tree"
)

// MemoryStore is an in-memory Store implementation. It mirrors the
// database semantics, including lease expiry and atomic commit, and is
// safe for concurrent use. Useful for tests and local development.
type MemoryStore struct {
	mu        sync.Mutex
	sites     map[uuid.UUID]*Site
	items     map[uuid.UUID]map[string]*Item // siteID -> path -> item
	snapshots map[snapshotKey]tree.Manifest
	leases    map[uuid.UUID]memoryLease
	jobs      []*memoryJob
}

type snapshotKey struct {
	siteID uuid.UUID
	branch string
}

type memoryLease struct {
	owner   uuid.UUID
	expires time.Time
}

type memoryJob struct {
	job      Job
	claimed  bool
	finished bool
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sites:     make(map[uuid.UUID]*Site),
		items:     make(map[uuid.UUID]map[string]*Item),
		snapshots: make(map[snapshotKey]tree.Manifest),
		leases:    make(map[uuid.UUID]memoryLease),
	}
}

func (m *MemoryStore) CreateSite(_ context.Context, site NewSite) (*Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Site{
		ID:            uuid.New(),
		OwnerID:       site.OwnerID,
		Repository:    site.Repository,
		Branch:        site.Branch,
		RootDir:       site.RootDir,
		WebhookSecret: site.WebhookSecret,
		SyncStatus:    status.SyncPhaseNone,
		Manifest:      SiteManifest{},
	}
	m.sites[s.ID] = s
	m.items[s.ID] = make(map[string]*Item)
	return copySite(s), nil
}

func (m *MemoryStore) GetSite(_ context.Context, id uuid.UUID) (*Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sites[id]
	if !ok {
		return nil, ErrSiteNotFound
	}
	return copySite(s), nil
}

func (m *MemoryStore) DeleteSite(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sites[id]; !ok {
		return ErrSiteNotFound
	}
	delete(m.sites, id)
	delete(m.items, id)
	delete(m.leases, id)
	for key := range m.snapshots {
		if key.siteID == id {
			delete(m.snapshots, key)
		}
	}
	return nil
}

func (m *MemoryStore) UpsertItem(_ context.Context, item UpsertItem) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	siteItems, ok := m.items[item.SiteID]
	if !ok {
		return nil, ErrSiteNotFound
	}

	id := uuid.New()
	if existing, ok := siteItems[item.Path]; ok {
		id = existing.ID
	}

	stored := &Item{
		ID:          id,
		SiteID:      item.SiteID,
		Path:        item.Path,
		AppPath:     item.AppPath,
		Size:        item.Size,
		ContentHash: item.ContentHash,
		Extension:   item.Extension,
		Status:      item.Status,
		Metadata:    item.Metadata,
		UpdatedAt:   time.Now(),
	}
	siteItems[item.Path] = stored
	return copyItem(stored), nil
}

func (m *MemoryStore) GetItem(_ context.Context, id uuid.UUID) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.findItem(id)
	if item == nil {
		return nil, ErrItemNotFound
	}
	return copyItem(item), nil
}

func (m *MemoryStore) ListItems(_ context.Context, siteID uuid.UUID) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	siteItems, ok := m.items[siteID]
	if !ok {
		return nil, ErrSiteNotFound
	}

	items := make([]Item, 0, len(siteItems))
	for _, item := range siteItems {
		items = append(items, *copyItem(item))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items, nil
}

func (m *MemoryStore) ListItemsInState(_ context.Context, state status.ItemState, limit int) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []Item
	for _, siteItems := range m.items {
		for _, item := range siteItems {
			if item.Status == state {
				items = append(items, *copyItem(item))
			}
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.Before(items[j].UpdatedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemoryStore) ResolveItem(
	_ context.Context, id uuid.UUID, to status.ItemState, errMsg string, meta *page.Metadata,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.findItem(id)
	if item == nil {
		return ErrItemNotFound
	}
	if !CanTransition(item.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, item.Status, to)
	}

	item.Status = to
	item.Error = errMsg
	if meta != nil {
		item.Metadata = meta
	}
	item.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) DeleteItem(_ context.Context, siteID uuid.UUID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	siteItems, ok := m.items[siteID]
	if !ok {
		return ErrSiteNotFound
	}
	if _, ok := siteItems[path]; !ok {
		return ErrItemNotFound
	}
	delete(siteItems, path)
	return nil
}

func (m *MemoryStore) GetSnapshot(_ context.Context, siteID uuid.UUID, branch string) (tree.Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, ok := m.snapshots[snapshotKey{siteID: siteID, branch: branch}]
	if !ok {
		return tree.Manifest{}, nil
	}
	out := make(tree.Manifest, len(snapshot))
	for k, v := range snapshot {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) AcquireSyncLease(
	_ context.Context, siteID, owner uuid.UUID, ttl time.Duration,
) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	site, ok := m.sites[siteID]
	if !ok {
		return false, ErrSiteNotFound
	}

	if lease, held := m.leases[siteID]; held && time.Now().Before(lease.expires) {
		return false, nil
	}

	// Any unfinished job left behind at this point belongs to a dead run;
	// close it out so the in-flight limit does not block the new enqueue.
	for _, j := range m.jobs {
		if j.job.SiteID == siteID && !j.finished {
			j.finished = true
		}
	}

	m.leases[siteID] = memoryLease{owner: owner, expires: time.Now().Add(ttl)}
	site.SyncStatus = status.SyncPhasePending
	site.SyncError = ""
	return true, nil
}

func (m *MemoryStore) CommitSync(_ context.Context, commit SyncCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	site, ok := m.sites[commit.SiteID]
	if !ok {
		return ErrSiteNotFound
	}
	lease, held := m.leases[commit.SiteID]
	if !held || lease.owner != commit.Owner {
		return ErrLeaseNotHeld
	}

	now := time.Now()
	site.SyncStatus = commit.Phase
	site.SyncError = commit.Error
	site.SyncedAt = &now
	site.Manifest = commit.Manifest

	snapshot := make(tree.Manifest, len(commit.Snapshot))
	for k, v := range commit.Snapshot {
		snapshot[k] = v
	}
	m.snapshots[snapshotKey{siteID: commit.SiteID, branch: commit.Branch}] = snapshot

	delete(m.leases, commit.SiteID)
	return nil
}

func (m *MemoryStore) FailSync(_ context.Context, siteID, owner uuid.UUID, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	site, ok := m.sites[siteID]
	if !ok {
		return ErrSiteNotFound
	}
	lease, held := m.leases[siteID]
	if !held || lease.owner != owner {
		return ErrLeaseNotHeld
	}

	site.SyncStatus = status.SyncPhaseError
	site.SyncError = errMsg
	delete(m.leases, siteID)
	return nil
}

func (m *MemoryStore) EnqueueJob(_ context.Context, siteID, owner uuid.UUID, ref string, force bool) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sites[siteID]; !ok {
		return nil, ErrSiteNotFound
	}

	// Mirrors the database's partial unique index: one unfinished job per
	// site at a time.
	for _, j := range m.jobs {
		if j.job.SiteID == siteID && !j.finished {
			return nil, fmt.Errorf("sync job already in flight for site %s", siteID)
		}
	}

	job := Job{
		ID:         uuid.New(),
		SiteID:     siteID,
		Owner:      owner,
		Ref:        ref,
		Force:      force,
		EnqueuedAt: time.Now(),
	}
	m.jobs = append(m.jobs, &memoryJob{job: job})
	return &job, nil
}

func (m *MemoryStore) ClaimNextJob(_ context.Context) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if !j.claimed {
			j.claimed = true
			job := j.job
			return &job, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FinishJob(_ context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.job.ID == jobID {
			j.finished = true
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) findItem(id uuid.UUID) *Item {
	for _, siteItems := range m.items {
		for _, item := range siteItems {
			if item.ID == id {
				return item
			}
		}
	}
	return nil
}

func copySite(s *Site) *Site {
	out := *s
	out.Manifest = make(SiteManifest, len(s.Manifest))
	for k, v := range s.Manifest {
		out.Manifest[k] = v
	}
	return &out
}

func copyItem(i *Item) *Item {
	out := *i
	return &out
}

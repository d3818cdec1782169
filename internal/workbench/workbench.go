// Package workbench implements the process-wide set of repositories
// and the five RPC operations that sit above the store layer: pull,
// push, fetch_blobs, put_blobs, and checkout (spec §4.5).
package workbench

import (
	"context"
	"fmt"
	"sync"

	"github.com/oceanobs/objstore/internal/blobstore"
	"github.com/oceanobs/objstore/internal/commitstore"
	"github.com/oceanobs/objstore/internal/notify"
	"github.com/oceanobs/objstore/internal/objrepo"
)

// BlobFetcher is the reverse-RPC channel op_push uses to ask the
// pusher for blobs the server doesn't yet have. In a real deployment
// this is implemented by the dispatcher calling fetch_blobs back over
// the same connection the push arrived on.
type BlobFetcher interface {
	FetchBlobs(ctx context.Context, keys []string) (map[string][]byte, error)
}

// Manager holds every repository currently in use by this process,
// plus the shared blob-level cache. repos is owned exclusively by
// Manager's methods, guarded the way the teacher's PoolManager guards
// its tenant pool map.
type Manager struct {
	mu    sync.Mutex
	repos map[string]*objrepo.Repository

	blobs   blobstore.Store
	commits commitstore.Store
	cache   *blobCache

	verifyAfterPut bool

	// events is optional: a nil value means commits land without a
	// subscribeCommits notification, which is fine for preload and for
	// tests that don't care about the feed.
	events *notify.Manager
}

// NewManager creates a workbench over the given store backends.
// cacheSizeBytes is the workbench_cache's approximate byte budget
// (config's cache_size, default 10^8).
func NewManager(blobs blobstore.Store, commits commitstore.Store, cacheSizeBytes int64, verifyAfterPut bool) *Manager {
	return &Manager{
		repos:          make(map[string]*objrepo.Repository),
		blobs:          newInstrumentedBlobs(blobs, backendLabel(blobs)),
		commits:        newInstrumentedCommits(commits, backendLabel(commits)),
		cache:          newBlobCache(cacheSizeBytes),
		verifyAfterPut: verifyAfterPut,
	}
}

// SetEvents attaches a notify.Manager so every successful push emits a
// subscribeCommits frame. Called once during wiring in cmd/objstored,
// before the preloader runs, so preload pushes emit frames too; left
// nil in tests.
func (m *Manager) SetEvents(events *notify.Manager) {
	m.events = events
}

// repoFor returns the in-process repository for key, allocating a
// fresh one on first use.
func (m *Manager) repoFor(key string) *objrepo.Repository {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[key]
	if !ok {
		r = objrepo.New(key, true)
		m.repos[key] = r
	}
	return r
}

// reconstructHead queries the commit store for repositoryKey, installs
// every returned row into repo's commit index and cache, and merges
// the branch_name columns into an objrepo.Head. This is the "pull out
// the commit rows and reconstruct the head" path shared by pull, push
// and checkout. The returned int is the row count, which callers use
// to decide whether the repository_key is known at all.
func (m *Manager) reconstructHead(ctx context.Context, repo *objrepo.Repository, repositoryKey string) (objrepo.Head, int, error) {
	rows, err := m.commits.Query(ctx, []commitstore.Predicate{
		{Column: "repository_key", Value: repositoryKey, Op: commitstore.EQ},
	}, 0)
	if err != nil {
		return objrepo.Head{}, 0, fmt.Errorf("workbench: query commits for %s: %w", repositoryKey, err)
	}

	head := objrepo.NewHead()
	for key, row := range rows {
		if _, ok := repo.CommitIndex[key]; !ok {
			if _, err := repo.LoadElement(row.Value); err != nil {
				return objrepo.Head{}, 0, fmt.Errorf("workbench: load commit %s: %w", key, err)
			}
		}
		if branches := row.Attributes["branch_name"]; branches != "" {
			for _, b := range splitBranches(branches) {
				head.Branches[b] = appendUnique(head.Branches[b], key)
			}
		}
	}
	return head, len(rows), nil
}

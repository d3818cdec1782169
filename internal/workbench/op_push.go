package workbench

import (
	"context"
	"fmt"

	"github.com/oceanobs/objstore/internal/commitstore"
	"github.com/oceanobs/objstore/internal/element"
	"github.com/oceanobs/objstore/internal/notify"
	"github.com/oceanobs/objstore/internal/objrepo"
)

// PushRepoState mirrors one element of spec §6's push request list.
type PushRepoState struct {
	RepositoryKey   string
	BlobKeys        map[string]bool
	RepoHeadElement []byte
}

// PushRequest mirrors spec §6's push request fields.
type PushRequest struct {
	Repositories []PushRepoState
}

// OpPush implements spec §4.5.2. fetcher is the reverse-RPC channel
// used to request blobs the server doesn't yet have from the pusher.
func (m *Manager) OpPush(ctx context.Context, req PushRequest, fetcher BlobFetcher) error {
	for _, rs := range req.Repositories {
		if err := m.pushOne(ctx, rs, fetcher); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) pushOne(ctx context.Context, rs PushRepoState, fetcher BlobFetcher) error {
	repo := m.repoFor(rs.RepositoryKey)
	if repo.Status == objrepo.Modified {
		return fmt.Errorf("%w: repository %s has uncommitted server-side work", ErrBadRequest, rs.RepositoryKey)
	}

	existingHead, _, err := m.reconstructHead(ctx, repo, rs.RepositoryKey)
	if err != nil {
		return err
	}
	repo.MergeHead(existingHead)

	needKeys := make(map[string]bool)
	for key := range rs.BlobKeys {
		if _, ok := repo.IndexHash[key]; ok {
			continue
		}
		if _, ok := m.cache.get(key); ok {
			continue
		}
		has, err := m.blobs.Has(ctx, key)
		if err != nil {
			return fmt.Errorf("workbench: push has-check %s: %w", key, err)
		}
		if has {
			continue
		}
		needKeys[key] = true
	}

	var newBlobs []blobEntry
	var newCommitKeys []string

	if len(needKeys) > 0 {
		keys := make([]string, 0, len(needKeys))
		for k := range needKeys {
			keys = append(keys, k)
		}
		fetched, err := fetcher.FetchBlobs(ctx, keys)
		if err != nil {
			return fmt.Errorf("workbench: reverse fetch_blobs: %w", err)
		}
		for key, raw := range fetched {
			e, err := element.Decode(raw)
			if err != nil {
				return fmt.Errorf("%w: decode pushed blob %s: %v", ErrBadRequest, key, err)
			}
			repo.IndexHash[key] = e
			if e.Type == objrepo.ElementCommitType {
				if _, err := repo.LoadElement(raw); err != nil {
					return fmt.Errorf("workbench: load pushed commit %s: %w", key, err)
				}
				newCommitKeys = append(newCommitKeys, key)
			} else {
				newBlobs = append(newBlobs, blobEntry{key: key, raw: raw})
			}
		}
	}

	_, pushedHead, err := decodeHead(rs.RepoHeadElement)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	repo.MergeHead(pushedHead)

	// Blob writes complete before new commit writes, which complete
	// before head reconciliation (spec §5's ordering guarantee).
	if err := m.persistBlobs(ctx, newBlobs); err != nil {
		return err
	}
	if err := m.persistNewCommits(ctx, repo, newCommitKeys); err != nil {
		return err
	}
	if err := m.reconcileHeads(ctx, repo); err != nil {
		return err
	}

	repo.Status = objrepo.UpToDate
	return nil
}

type blobEntry struct {
	key string
	raw []byte
}

func (m *Manager) persistBlobs(ctx context.Context, blobs []blobEntry) error {
	errs := make(chan error, len(blobs))
	for _, b := range blobs {
		b := b
		go func() {
			errs <- m.blobs.Put(ctx, b.key, b.raw)
		}()
	}
	var firstErr error
	for range blobs {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// persistNewCommits writes each newly observed commit's value and
// attribute row, computing branch_name from the repository's
// now-merged head.
func (m *Manager) persistNewCommits(ctx context.Context, repo *objrepo.Repository, keys []string) error {
	currentHeadBranches := headBranchesByCommit(repo)

	for _, key := range keys {
		e, ok := repo.IndexHash[key]
		if !ok {
			continue
		}
		raw, ok := repo.RawElement(key)
		if !ok {
			var err error
			raw, err = element.Encode(e)
			if err != nil {
				return fmt.Errorf("workbench: encode new commit %s: %w", key, err)
			}
		}

		commit, ok := repo.CommitIndex[key]
		if !ok {
			return fmt.Errorf("workbench: new commit %s missing from commit index", key)
		}
		objectRoot, _, err := m.loadElement(ctx, repo, commit.ObjectRoot.String())
		if err != nil {
			return fmt.Errorf("workbench: load object root for commit %s: %w", key, err)
		}

		attrs := attributesForCommit(repo.RepositoryKey, objectRoot)
		branchName := joinBranches(currentHeadBranches[key])
		attrs["branch_name"] = branchName

		if err := m.commits.Put(ctx, key, raw, attrs); err != nil {
			return fmt.Errorf("workbench: put commit %s: %w", key, err)
		}

		if m.events != nil {
			for _, branch := range currentHeadBranches[key] {
				ev := notify.CommitEvent{
					RepositoryKey: repo.RepositoryKey,
					Branch:        branch,
					CommitKey:     key,
					ObjectRoot:    commit.ObjectRoot.String(),
					Author:        commit.Author,
					Message:       commit.Message,
					Time:          commit.Timestamp,
				}
				if err := m.events.Emit(ctx, ev); err != nil {
					return fmt.Errorf("workbench: emit commit event %s: %w", key, err)
				}
			}
		}
	}
	return nil
}

// reconcileHeads makes the store's branch_name columns match
// repo.Head exactly (spec §4.5.2 step 8, spec §8 invariant 3: "the set
// of commit rows with non-empty branch_name equals the set of head
// commits across all branches"). This covers both directions: a
// commit that is a head now — whether freshly pushed or an older
// commit a new branch just pointed back at (spec §8 scenario S3) —
// gets its branch_name (re)written, and a commit that was a head but
// no longer is gets it cleared.
func (m *Manager) reconcileHeads(ctx context.Context, repo *objrepo.Repository) error {
	currentBranches := headBranchesByCommit(repo)

	for key, branches := range currentBranches {
		branchName := joinBranches(branches)
		if err := m.commits.UpdateIndex(ctx, key, map[string]string{"branch_name": branchName}); err != nil {
			return fmt.Errorf("workbench: promote head %s: %w", key, err)
		}
	}

	rows, err := m.commits.Query(ctx, []commitstore.Predicate{
		eqPredicate("repository_key", repo.RepositoryKey),
		{Column: "branch_name", Value: "", Op: commitstore.GT},
	}, 0)
	if err != nil {
		return fmt.Errorf("workbench: query former heads: %w", err)
	}

	for key := range rows {
		if _, isHead := currentBranches[key]; isHead {
			continue
		}
		if err := m.commits.UpdateIndex(ctx, key, map[string]string{"branch_name": ""}); err != nil {
			return fmt.Errorf("workbench: demote former head %s: %w", key, err)
		}
	}
	return nil
}

// headBranchesByCommit inverts repo.Head into commit key → branch
// names, used to compute each new commit's branch_name column.
func headBranchesByCommit(repo *objrepo.Repository) map[string][]string {
	out := make(map[string][]string)
	for _, ref := range repo.CurrentHeads() {
		out[ref.Key] = appendUnique(out[ref.Key], ref.Branch)
	}
	return out
}

package workbench

import (
	"context"
	"errors"
	"fmt"

	"github.com/oceanobs/objstore/internal/blobstore"
	"github.com/oceanobs/objstore/internal/element"
	"github.com/oceanobs/objstore/internal/objrepo"
)

// loadElement returns the decoded element and its raw bytes for key,
// checking repo's local index, then the workbench cache, then the
// blob store, in that order — the same fallback chain spec §4.5.1
// describes for the transitive blob fetch.
func (m *Manager) loadElement(ctx context.Context, repo *objrepo.Repository, key string) (*element.Element, []byte, error) {
	if e, ok := repo.IndexHash[key]; ok {
		raw, err := element.Encode(e)
		if err != nil {
			return nil, nil, fmt.Errorf("workbench: re-encode cached element %s: %w", key, err)
		}
		return e, raw, nil
	}
	if e, ok := m.cache.get(key); ok {
		raw, err := element.Encode(e)
		if err != nil {
			return nil, nil, fmt.Errorf("workbench: re-encode cached element %s: %w", key, err)
		}
		return e, raw, nil
	}
	raw, err := m.blobs.Get(ctx, key)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("workbench: fetch blob %s: %w", key, err)
	}
	e, err := element.Decode(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("workbench: decode blob %s: %w", key, err)
	}
	m.cache.put(key, e, len(raw))
	return e, raw, nil
}

// collectHeadBlobs performs the transitive fetch of every blob
// reachable from the current heads' object roots, excluding any
// subtree entered through a link whose target type is in
// excludedTypes. This is the bandwidth-aware path get_head_content
// uses.
func (m *Manager) collectHeadBlobs(ctx context.Context, repo *objrepo.Repository, excludedTypes map[string]bool) ([][]byte, error) {
	var roots []string
	for _, ref := range repo.CurrentHeads() {
		c, ok := repo.CommitIndex[ref.Key]
		if !ok {
			continue
		}
		roots = append(roots, c.ObjectRoot.String())
	}
	return m.collectBlobsFrom(ctx, repo, roots, excludedTypes)
}

// collectBlobsFrom is the same transitive-fetch worklist algorithm,
// starting from an explicit set of root keys instead of every current
// head — used by checkout to fetch a single commit's subtree.
func (m *Manager) collectBlobsFrom(ctx context.Context, repo *objrepo.Repository, roots []string, excludedTypes map[string]bool) ([][]byte, error) {
	seen := make(map[string]bool)
	worklist := append([]string{}, roots...)

	var result [][]byte
	for len(worklist) > 0 {
		key := worklist[0]
		worklist = worklist[1:]
		if seen[key] {
			continue
		}
		seen[key] = true

		e, raw, err := m.loadElement(ctx, repo, key)
		if err != nil {
			return nil, fmt.Errorf("workbench: collect blobs: %w", err)
		}
		if excludedTypes[e.Type] {
			continue
		}
		result = append(result, raw)

		for _, l := range e.Links {
			if excludedTypes[l.TargetType] {
				continue
			}
			target := l.Target.String()
			if !seen[target] {
				worklist = append(worklist, target)
			}
		}
	}
	return result, nil
}

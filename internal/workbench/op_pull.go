package workbench

import (
	"context"
	"fmt"

	"github.com/oceanobs/objstore/internal/element"
)

// PullRequest mirrors spec §6's pull request fields.
type PullRequest struct {
	RepositoryKey       string
	CommitKeysPullerHas map[string]bool
	GetHeadContent      bool
	ExcludedTypes       map[string]bool
}

// PullReply mirrors spec §6's pull reply fields.
type PullReply struct {
	RepoHeadElement []byte
	CommitElements  [][]byte
	BlobElements    [][]byte
}

// OpPull implements spec §4.5.1.
func (m *Manager) OpPull(ctx context.Context, req PullRequest) (*PullReply, error) {
	repo := m.repoFor(req.RepositoryKey)

	incoming, rowCount, err := m.reconstructHead(ctx, repo, req.RepositoryKey)
	if err != nil {
		return nil, err
	}
	if rowCount == 0 {
		return nil, ErrNotFound
	}
	repo.MergeHead(incoming)

	needs := make([]string, 0)
	for key := range repo.CommitIndex {
		if !req.CommitKeysPullerHas[key] {
			needs = append(needs, key)
		}
	}

	headBytes, err := encodeHead(repo.RepositoryKey, repo.Head)
	if err != nil {
		return nil, err
	}

	reply := &PullReply{RepoHeadElement: headBytes}
	for _, key := range needs {
		e, ok := repo.IndexHash[key]
		if !ok {
			continue
		}
		raw, err := element.Encode(e)
		if err != nil {
			return nil, fmt.Errorf("workbench: encode commit %s: %w", key, err)
		}
		reply.CommitElements = append(reply.CommitElements, raw)
	}

	if req.GetHeadContent {
		blobs, err := m.collectHeadBlobs(ctx, repo, req.ExcludedTypes)
		if err != nil {
			return nil, err
		}
		reply.BlobElements = blobs
	}

	return reply, nil
}

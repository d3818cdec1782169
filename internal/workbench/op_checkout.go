package workbench

import (
	"context"
)

// CheckoutRequest mirrors spec §6's checkout request fields.
type CheckoutRequest struct {
	RepositoryKey     string
	CommitKeyOrBranch string
}

// CheckoutReply is the blob set for the resolved commit's object-root
// subtree (spec §6's "blob set" reply).
type CheckoutReply struct {
	CommitElement []byte
	BlobElements  [][]byte
}

// OpCheckout implements spec §4.5.4: it delegates to the same
// head-reconstruction path as pull, but returns a specific commit
// rather than the whole repository.
func (m *Manager) OpCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutReply, error) {
	repo := m.repoFor(req.RepositoryKey)

	incoming, rowCount, err := m.reconstructHead(ctx, repo, req.RepositoryKey)
	if err != nil {
		return nil, err
	}
	if rowCount == 0 {
		return nil, ErrNotFound
	}
	repo.MergeHead(incoming)

	commit, err := repo.Checkout(req.CommitKeyOrBranch)
	if err != nil {
		return nil, ErrNotFound
	}

	_, raw, err := m.loadElement(ctx, repo, commit.Key)
	if err != nil {
		return nil, err
	}

	blobs, err := m.collectBlobsFrom(ctx, repo, []string{commit.ObjectRoot.String()}, nil)
	if err != nil {
		return nil, err
	}

	return &CheckoutReply{CommitElement: raw, BlobElements: blobs}, nil
}

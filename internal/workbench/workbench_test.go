package workbench

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/oceanobs/objstore/internal/blobstore"
	"github.com/oceanobs/objstore/internal/commitstore"
	"github.com/oceanobs/objstore/internal/element"
	"github.com/oceanobs/objstore/internal/objrepo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher answers the reverse fetch_blobs RPC from a canned set
// of elements, standing in for a real client connection.
type fakeFetcher struct {
	elements map[string][]byte
}

func (f *fakeFetcher) FetchBlobs(_ context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if raw, ok := f.elements[k]; ok {
			out[k] = raw
		}
	}
	return out, nil
}

// buildResourceCommit builds a client-side commit referencing a
// resource object root and returns everything needed to call OpPush:
// the client repository (whose index a fetcher can serve), the commit
// key, and the object-root key.
func buildResourceCommit(t *testing.T, repoKey, resourceType, lifecycleState string, parentCommit *objrepo.Commit) (*objrepo.Repository, string, string) {
	t.Helper()

	client := objrepo.New(repoKey, false)
	if parentCommit != nil {
		client.Head.Branches["master"] = []string{parentCommit.Key}
		client.CommitIndex[parentCommit.Key] = parentCommit
	}

	root := &element.Element{
		Type: ResourceType,
		Payload: map[string]any{
			"resource_type":   resourceType,
			"lifecycle_state": lifecycleState,
		},
	}
	rootRaw, err := element.Encode(root)
	require.NoError(t, err)
	rootKey, err := element.Key(rootRaw)
	require.NoError(t, err)

	client.SetWorkingObject(rootKey)
	commitKey, err := client.Commit("alice", "initial")
	require.NoError(t, err)

	client.IndexHash[rootKey.String()] = root
	return client, commitKey, rootKey.String()
}

func newTestManager() *Manager {
	return NewManager(blobstore.NewMemory(), commitstore.NewMemory(), 1<<20, false)
}

func elementsFetcher(client *objrepo.Repository, extraKeys ...string) *fakeFetcher {
	f := &fakeFetcher{elements: make(map[string][]byte)}
	for key, e := range client.IndexHash {
		raw, _ := element.Encode(e)
		f.elements[key] = raw
	}
	return f
}

func TestScenarioS1PushAndQueryResource(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	client, commitKey, rootKey := buildResourceCommit(t, "R1", "RT", "Active", nil)
	headBytes, err := encodeHead("R1", client.Head)
	require.NoError(t, err)

	err = m.OpPush(ctx, PushRequest{Repositories: []PushRepoState{{
		RepositoryKey:   "R1",
		BlobKeys:        map[string]bool{rootKey: true, commitKey: true},
		RepoHeadElement: headBytes,
	}}}, elementsFetcher(client))
	require.NoError(t, err)

	rows, err := m.commits.Query(ctx, []commitstore.Predicate{
		eqPredicate("repository_key", "R1"),
		eqPredicate("resource_life_cycle_state", "Active"),
	}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Contains(t, rows, commitKey)
	assert.Equal(t, "master", rows[commitKey].Attributes["branch_name"])
}

func TestScenarioS2SecondCommitDemotesFirst(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	client1, c1, root1 := buildResourceCommit(t, "R1", "RT", "Active", nil)
	head1, err := encodeHead("R1", client1.Head)
	require.NoError(t, err)
	require.NoError(t, m.OpPush(ctx, PushRequest{Repositories: []PushRepoState{{
		RepositoryKey:   "R1",
		BlobKeys:        map[string]bool{root1: true, c1: true},
		RepoHeadElement: head1,
	}}}, elementsFetcher(client1)))

	commit1 := client1.CommitIndex[c1]
	client2, c2, root2 := buildResourceCommit(t, "R1", "RT", "Active", commit1)
	head2, err := encodeHead("R1", client2.Head)
	require.NoError(t, err)
	require.NoError(t, m.OpPush(ctx, PushRequest{Repositories: []PushRepoState{{
		RepositoryKey:   "R1",
		BlobKeys:        map[string]bool{root2: true, c2: true},
		RepoHeadElement: head2,
	}}}, elementsFetcher(client2)))

	rows, err := m.commits.Query(ctx, []commitstore.Predicate{
		eqPredicate("repository_key", "R1"),
		eqPredicate("branch_name", "master"),
	}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, rows, c2)

	allRows, err := m.commits.Query(ctx, []commitstore.Predicate{eqPredicate("repository_key", "R1")}, 0)
	require.NoError(t, err)
	assert.Len(t, allRows, 2)
	assert.Equal(t, "", allRows[c1].Attributes["branch_name"])
}

func TestScenarioS3BranchAtOlderCommitRepromotesIt(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	client1, c1, root1 := buildResourceCommit(t, "R1", "RT", "Active", nil)
	head1, err := encodeHead("R1", client1.Head)
	require.NoError(t, err)
	require.NoError(t, m.OpPush(ctx, PushRequest{Repositories: []PushRepoState{{
		RepositoryKey:   "R1",
		BlobKeys:        map[string]bool{root1: true, c1: true},
		RepoHeadElement: head1,
	}}}, elementsFetcher(client1)))

	commit1 := client1.CommitIndex[c1]
	client2, c2, root2 := buildResourceCommit(t, "R1", "RT", "Active", commit1)
	head2, err := encodeHead("R1", client2.Head)
	require.NoError(t, err)
	require.NoError(t, m.OpPush(ctx, PushRequest{Repositories: []PushRepoState{{
		RepositoryKey:   "R1",
		BlobKeys:        map[string]bool{root2: true, c2: true},
		RepoHeadElement: head2,
	}}}, elementsFetcher(client2)))

	// Branch "dev" is created pointing back at C1, alongside "master"
	// still pointing at C2, and pushed.
	devHead := objrepo.NewHead()
	devHead.Branches["master"] = []string{c2}
	devHead.Branches["dev"] = []string{c1}
	devHeadBytes, err := encodeHead("R1", devHead)
	require.NoError(t, err)
	require.NoError(t, m.OpPush(ctx, PushRequest{Repositories: []PushRepoState{{
		RepositoryKey:   "R1",
		BlobKeys:        map[string]bool{},
		RepoHeadElement: devHeadBytes,
	}}}, elementsFetcher(client2)))

	rows, err := m.commits.Query(ctx, []commitstore.Predicate{eqPredicate("repository_key", "R1")}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "dev", rows[c1].Attributes["branch_name"])
	assert.Equal(t, "master", rows[c2].Attributes["branch_name"])
}

func TestScenarioS4AssociationPushAndQuery(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	client, ck, rk := buildResourceCommit(t, "R1", "RT", "Active", nil)
	head, err := encodeHead("R1", client.Head)
	require.NoError(t, err)
	require.NoError(t, m.OpPush(ctx, PushRequest{Repositories: []PushRepoState{{
		RepositoryKey:   "R1",
		BlobKeys:        map[string]bool{rk: true, ck: true},
		RepoHeadElement: head,
	}}}, elementsFetcher(client)))

	assocClient := objrepo.New("A1", false)
	assocRoot := &element.Element{
		Type: AssociationType,
		Payload: map[string]any{
			"subject":   map[string]any{"key": "R1", "branch": "master", "commit": ck},
			"predicate": "owned_by",
			"object":    map[string]any{"key": "U1", "branch": "master", "commit": "U1_HEAD"},
		},
	}
	assocRaw, err := element.Encode(assocRoot)
	require.NoError(t, err)
	assocKey, err := element.Key(assocRaw)
	require.NoError(t, err)
	assocClient.IndexHash[assocKey.String()] = assocRoot
	assocClient.SetWorkingObject(assocKey)
	assocCommitKey, err := assocClient.Commit("alice", "owned_by")
	require.NoError(t, err)

	assocHead, err := encodeHead("A1", assocClient.Head)
	require.NoError(t, err)
	require.NoError(t, m.OpPush(ctx, PushRequest{Repositories: []PushRepoState{{
		RepositoryKey:   "A1",
		BlobKeys:        map[string]bool{assocKey.String(): true, assocCommitKey: true},
		RepoHeadElement: assocHead,
	}}}, elementsFetcher(assocClient)))

	rows, err := m.commits.Query(ctx, []commitstore.Predicate{
		eqPredicate("subject_key", "R1"),
		eqPredicate("predicate_key", "owned_by"),
	}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, rows, assocCommitKey)
}

func TestScenarioS5PullIdempotence(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	client, ck, rk := buildResourceCommit(t, "R1", "RT", "Active", nil)
	head, err := encodeHead("R1", client.Head)
	require.NoError(t, err)
	require.NoError(t, m.OpPush(ctx, PushRequest{Repositories: []PushRepoState{{
		RepositoryKey:   "R1",
		BlobKeys:        map[string]bool{rk: true, ck: true},
		RepoHeadElement: head,
	}}}, elementsFetcher(client)))

	reply1, err := m.OpPull(ctx, PullRequest{RepositoryKey: "R1", CommitKeysPullerHas: map[string]bool{}})
	require.NoError(t, err)
	require.Len(t, reply1.CommitElements, 1)

	has := map[string]bool{ck: true}
	reply2, err := m.OpPull(ctx, PullRequest{RepositoryKey: "R1", CommitKeysPullerHas: has})
	require.NoError(t, err)
	assert.Empty(t, reply2.CommitElements)
	assert.Equal(t, reply1.RepoHeadElement, reply2.RepoHeadElement)
}

func TestScenarioS6PartialPullExcludesType(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	client, ck, rk := buildResourceCommit(t, "R1", "RT", "Active", nil)
	head, err := encodeHead("R1", client.Head)
	require.NoError(t, err)
	require.NoError(t, m.OpPush(ctx, PushRequest{Repositories: []PushRepoState{{
		RepositoryKey:   "R1",
		BlobKeys:        map[string]bool{rk: true, ck: true},
		RepoHeadElement: head,
	}}}, elementsFetcher(client)))

	reply, err := m.OpPull(ctx, PullRequest{
		RepositoryKey:       "R1",
		CommitKeysPullerHas: map[string]bool{ck: true},
		GetHeadContent:      true,
		ExcludedTypes:       map[string]bool{ResourceType: true},
	})
	require.NoError(t, err)
	for _, raw := range reply.BlobElements {
		e, err := element.Decode(raw)
		require.NoError(t, err)
		assert.NotEqual(t, ResourceType, e.Type)
	}
}

func TestOpPullUnknownRepository(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	_, err := m.OpPull(ctx, PullRequest{RepositoryKey: "nope", CommitKeysPullerHas: map[string]bool{}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpPushToModifiedRepoIsBadRequest(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	repo := m.repoFor("R1")
	repo.SetWorkingObject(mustTestKey(t, "x"))

	err := m.OpPush(ctx, PushRequest{Repositories: []PushRepoState{{
		RepositoryKey:   "R1",
		BlobKeys:        map[string]bool{},
		RepoHeadElement: mustHead(t, "R1"),
	}}}, &fakeFetcher{})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestOpPutBlobsAndFetchBlobs(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	e := &element.Element{Type: "terminology", Payload: map[string]any{"keyword": "salinity"}}
	raw, err := element.Encode(e)
	require.NoError(t, err)
	key, err := element.Key(raw)
	require.NoError(t, err)

	require.NoError(t, m.OpPutBlobs(ctx, PutBlobsRequest{BlobElements: [][]byte{raw}}))

	reply, err := m.OpFetchBlobs(ctx, FetchBlobsRequest{BlobKeys: []string{key.String()}})
	require.NoError(t, err)
	require.Len(t, reply.BlobElements, 1)
	assert.Equal(t, raw, reply.BlobElements[0])
}

func TestOpFetchBlobsMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	_, err := m.OpFetchBlobs(ctx, FetchBlobsRequest{BlobKeys: []string{"bafkreimissing"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func mustTestKey(t *testing.T, s string) cid.Cid {
	t.Helper()
	k, err := element.Key([]byte(s))
	require.NoError(t, err)
	return k
}

func mustHead(t *testing.T, repoKey string) []byte {
	t.Helper()
	b, err := encodeHead(repoKey, objrepo.NewHead())
	require.NoError(t, err)
	return b
}

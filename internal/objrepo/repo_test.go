package objrepo

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/oceanobs/objstore/internal/element"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoot(t *testing.T, payload string) cid.Cid {
	t.Helper()
	c, err := element.Key([]byte(payload))
	require.NoError(t, err)
	return c
}

func TestCommitRequiresModified(t *testing.T) {
	r := New("R1", true)
	_, err := r.Commit("alice", "initial")
	assert.Error(t, err)
}

func TestCommitAdvancesHead(t *testing.T) {
	r := New("R1", true)
	r.SetWorkingObject(testRoot(t, "root-1"))

	key, err := r.Commit("alice", "initial")
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, UpToDate, r.Status)

	heads := r.Head.Branches["master"]
	require.Len(t, heads, 1)
	assert.Equal(t, key, heads[0])
}

func TestSecondCommitParentsFirst(t *testing.T) {
	r := New("R1", true)
	r.SetWorkingObject(testRoot(t, "root-1"))
	c1, err := r.Commit("alice", "first")
	require.NoError(t, err)

	r.SetWorkingObject(testRoot(t, "root-2"))
	c2, err := r.Commit("alice", "second")
	require.NoError(t, err)

	commit2 := r.CommitIndex[c2]
	require.Len(t, commit2.Parents, 1)
	assert.Equal(t, c1, commit2.Parents[0].String())
}

func TestBranchForksHead(t *testing.T) {
	r := New("R1", true)
	r.SetWorkingObject(testRoot(t, "root-1"))
	c1, err := r.Commit("alice", "first")
	require.NoError(t, err)

	require.NoError(t, r.Branch("dev"))
	assert.Equal(t, []string{c1}, r.Head.Branches["dev"])
}

func TestCheckoutBranch(t *testing.T) {
	r := New("R1", true)
	r.SetWorkingObject(testRoot(t, "root-1"))
	_, err := r.Commit("alice", "first")
	require.NoError(t, err)

	require.NoError(t, r.Branch("dev"))
	commit, err := r.Checkout("dev")
	require.NoError(t, err)
	assert.Equal(t, "dev", r.ActiveBranch)
	assert.Equal(t, commit.ObjectRoot, r.WorkingObject)
}

func TestCheckoutUnmergedForkFails(t *testing.T) {
	r := New("R1", true)
	r.SetWorkingObject(testRoot(t, "root-1"))
	c1, err := r.Commit("alice", "first")
	require.NoError(t, err)

	// Manufacture a fork: two distinct head keys on the same branch,
	// as pull's merge rules would leave after two concurrent writers.
	r.Head.Branches["master"] = []string{c1, "bafkreifork0000000000000000000000000000000000000000000000"}

	_, err = r.Checkout("master")
	assert.Error(t, err)
}

func TestMergeWithCombinesParents(t *testing.T) {
	r := New("R1", true)
	r.SetWorkingObject(testRoot(t, "root-1"))
	base, err := r.Commit("alice", "base")
	require.NoError(t, err)

	require.NoError(t, r.Branch("dev"))
	r.ActiveBranch = "dev"
	r.SetWorkingObject(testRoot(t, "root-2"))
	devHead, err := r.Commit("alice", "dev change")
	require.NoError(t, err)

	mergeKey, err := r.MergeWith("dev", "master", "alice", "merge dev into master")
	require.NoError(t, err)

	merged := r.CommitIndex[mergeKey]
	parentStrs := make([]string, len(merged.Parents))
	for i, p := range merged.Parents {
		parentStrs[i] = p.String()
	}
	assert.ElementsMatch(t, []string{base, devHead}, parentStrs)
	assert.Equal(t, []string{mergeKey}, r.Head.Branches["master"])

	r.RemoveBranch("dev")
	_, ok := r.Head.Branches["dev"]
	assert.False(t, ok)
}

func TestCurrentHeads(t *testing.T) {
	r := New("R1", true)
	r.SetWorkingObject(testRoot(t, "root-1"))
	c1, err := r.Commit("alice", "first")
	require.NoError(t, err)

	heads := r.CurrentHeads()
	require.Len(t, heads, 1)
	assert.Equal(t, CommitRef{Branch: "master", Key: c1}, heads[0])
}

func TestLoadElementRegistersCommit(t *testing.T) {
	src := New("R1", true)
	src.SetWorkingObject(testRoot(t, "root-1"))
	key, err := src.Commit("alice", "first")
	require.NoError(t, err)

	raw, err := elementBytes(src, key)
	require.NoError(t, err)

	dst := New("R1", true)
	e, err := dst.LoadElement(raw)
	require.NoError(t, err)
	assert.Equal(t, ElementCommitType, e.Type)
	assert.Contains(t, dst.CommitIndex, key)
}

func TestSetRepositoryReference(t *testing.T) {
	r := New("R1", true)
	r.SetWorkingObject(testRoot(t, "root-1"))
	key, err := r.Commit("alice", "first")
	require.NoError(t, err)

	var ref IDRef
	require.NoError(t, r.SetRepositoryReference(&ref, true))
	assert.Equal(t, "R1", ref.RepositoryKey)
	assert.Equal(t, "master", ref.Branch)
	assert.Equal(t, key, ref.Commit)

	var refNoState IDRef
	require.NoError(t, r.SetRepositoryReference(&refNoState, false))
	assert.Equal(t, "R1", refNoState.RepositoryKey)
	assert.Empty(t, refNoState.Branch)
}

func TestMergeHeadUnionsAndDedupes(t *testing.T) {
	r := New("R1", true)
	r.Head.Branches["master"] = []string{"a", "b"}

	r.MergeHead(Head{Branches: map[string][]string{
		"master": {"b", "c"},
		"dev":    {"d"},
	}})

	assert.ElementsMatch(t, []string{"a", "b", "c"}, r.Head.Branches["master"])
	assert.Equal(t, []string{"d"}, r.Head.Branches["dev"])
}

func elementBytes(r *Repository, key string) ([]byte, error) {
	return element.Encode(r.IndexHash[key])
}

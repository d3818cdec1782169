// Package objrepo implements the in-memory working set for one
// repository_key: its commit index, local blob cache, and the mutable
// head (branches → commit refs). This is the "Repository" of spec
// §4.4 — one instance lives in the workbench per repository_key
// currently in use.
package objrepo

import (
	"fmt"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	"github.com/oceanobs/objstore/internal/element"
)

// Status reports whether a repository's working object has been
// committed yet.
type Status int

const (
	UpToDate Status = iota
	Modified
)

// ElementCommitType is the structure-element type tag reserved for
// commit objects; load_element uses it to decide whether a decoded
// element should also be registered as a commit.
const ElementCommitType = "commit"

// Commit is a decoded commit object: an object root plus zero or more
// parents and author/message/timestamp/rev metadata. Commits carry no
// signature — content-addressing already provides the identity
// guarantee this system needs, and cryptographic integrity beyond
// that is out of scope.
type Commit struct {
	Key        string
	ObjectRoot cid.Cid
	Parents    []cid.Cid
	Author     string
	Message    string
	Timestamp  time.Time
	Rev        string
}

// Encode serializes a commit as a structure element so it can be
// content-addressed and stored like any other blob.
func (c *Commit) Encode() (*element.Element, error) {
	links := make([]element.Link, 0, 1+len(c.Parents))
	links = append(links, element.Link{Name: "objectroot", TargetType: "", Target: c.ObjectRoot})
	for i, p := range c.Parents {
		links = append(links, element.Link{Name: fmt.Sprintf("parent%d", i), TargetType: ElementCommitType, Target: p})
	}
	return &element.Element{
		Type: ElementCommitType,
		Payload: map[string]any{
			"author":    c.Author,
			"message":   c.Message,
			"timestamp": c.Timestamp.UTC().Format(time.RFC3339Nano),
			"rev":       c.Rev,
		},
		Links: links,
	}, nil
}

// decodeCommit reconstructs a Commit from its decoded structure
// element. Called by load_element when the element's type tag is
// ElementCommitType.
func decodeCommit(key string, e *element.Element) (*Commit, error) {
	c := &Commit{Key: key}
	for _, l := range e.Links {
		switch {
		case l.Name == "objectroot":
			c.ObjectRoot = l.Target
		default:
			c.Parents = append(c.Parents, l.Target)
		}
	}
	if v, ok := e.Payload["author"].(string); ok {
		c.Author = v
	}
	if v, ok := e.Payload["message"].(string); ok {
		c.Message = v
	}
	if v, ok := e.Payload["rev"].(string); ok {
		c.Rev = v
	}
	if v, ok := e.Payload["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			c.Timestamp = ts
		}
	}
	return c, nil
}

// Head is the mutable repository descriptor: branch name → the set of
// commit keys that are its current heads. More than one key under a
// branch means an unmerged fork.
type Head struct {
	Branches map[string][]string
}

// NewHead returns an empty head.
func NewHead() Head {
	return Head{Branches: make(map[string][]string)}
}

// CommitRef names one head commit on one branch.
type CommitRef struct {
	Branch string
	Key    string
}

// Repository is the in-memory working set for one repository_key.
type Repository struct {
	RepositoryKey string
	CommitIndex   map[string]*Commit
	IndexHash     map[string]*element.Element
	Head          Head
	ActiveBranch  string
	WorkingObject cid.Cid
	Status        Status
	Cached        bool

	// blocks holds the raw, content-addressed bytes behind every
	// element this repository has seen, wrapped as ipfs/go-block-format
	// blocks the way teacher's repo.go holds MST nodes in a blockstore.
	// IndexHash/CommitIndex carry the decoded view; blocks lets a caller
	// that already has the bytes (LoadElement, Commit, MergeWith) skip a
	// redundant re-encode.
	blocks map[string]blocks.Block

	clock *syntax.TIDClock
}

// New creates an empty repository for repositoryKey. cached marks
// whether this instance may be evicted and rehydrated from the
// stores (true for every server-side repository; client-side
// repositories set it false).
func New(repositoryKey string, cached bool) *Repository {
	clock := syntax.NewTIDClock(0)
	return &Repository{
		RepositoryKey: repositoryKey,
		CommitIndex:   make(map[string]*Commit),
		IndexHash:     make(map[string]*element.Element),
		Head:          NewHead(),
		ActiveBranch:  "master",
		Status:        UpToDate,
		Cached:        cached,
		blocks:        make(map[string]blocks.Block),
		clock:         &clock,
	}
}

// putBlock wraps raw as a block.Block keyed by its CID and caches it.
func (r *Repository) putBlock(key cid.Cid, raw []byte) error {
	blk, err := blocks.NewBlockWithCid(raw, key)
	if err != nil {
		return fmt.Errorf("objrepo: wrap block %s: %w", key, err)
	}
	r.blocks[key.String()] = blk
	return nil
}

// RawElement returns the raw encoded bytes for key if this repository
// already holds them in its block cache, avoiding a redundant
// element.Encode of an already-decoded element.
func (r *Repository) RawElement(key string) ([]byte, bool) {
	blk, ok := r.blocks[key]
	if !ok {
		return nil, false
	}
	return blk.RawData(), true
}

// SetWorkingObject stages a new object root for the active branch,
// marking the repository MODIFIED. Commit() snapshots whatever was
// staged here.
func (r *Repository) SetWorkingObject(root cid.Cid) {
	r.WorkingObject = root
	r.Status = Modified
}

// Commit snapshots the current working object, writes a new commit
// referencing the active branch's current head(s) as parents, and
// advances the head. Requires Status == Modified.
func (r *Repository) Commit(author, message string) (string, error) {
	if r.Status != Modified {
		return "", fmt.Errorf("objrepo: commit requires status=MODIFIED, got %v", r.Status)
	}

	parents := make([]cid.Cid, 0, len(r.Head.Branches[r.ActiveBranch]))
	for _, k := range r.Head.Branches[r.ActiveBranch] {
		c, err := cid.Decode(k)
		if err != nil {
			return "", fmt.Errorf("objrepo: decode parent key %q: %w", k, err)
		}
		parents = append(parents, c)
	}

	commit := &Commit{
		ObjectRoot: r.WorkingObject,
		Parents:    parents,
		Author:     author,
		Message:    message,
		Timestamp:  time.Now(),
		Rev:        r.clock.Next().String(),
	}

	e, err := commit.Encode()
	if err != nil {
		return "", fmt.Errorf("objrepo: encode commit: %w", err)
	}
	raw, err := element.Encode(e)
	if err != nil {
		return "", fmt.Errorf("objrepo: serialize commit: %w", err)
	}
	key, err := element.Key(raw)
	if err != nil {
		return "", fmt.Errorf("objrepo: key commit: %w", err)
	}
	commit.Key = key.String()

	r.CommitIndex[commit.Key] = commit
	r.IndexHash[commit.Key] = e
	if err := r.putBlock(key, raw); err != nil {
		return "", err
	}
	r.Head.Branches[r.ActiveBranch] = []string{commit.Key}
	r.Status = UpToDate

	return commit.Key, nil
}

// Branch forks the current head under a new branch name.
func (r *Repository) Branch(name string) error {
	if _, exists := r.Head.Branches[name]; exists {
		return fmt.Errorf("objrepo: branch %q already exists", name)
	}
	heads := r.Head.Branches[r.ActiveBranch]
	cp := make([]string, len(heads))
	copy(cp, heads)
	r.Head.Branches[name] = cp
	return nil
}

// RemoveBranch deletes a branch entry. Callers are expected to call
// this only after MergeWith has folded the branch's commits into
// another branch.
func (r *Repository) RemoveBranch(name string) {
	delete(r.Head.Branches, name)
}

// Checkout loads the named branch's head commit (or a specific commit
// key) as the working object and, for a branch name, makes it the
// active branch. Fails if the branch has more than one unmerged head
// commit, since there is then no single working object to load.
func (r *Repository) Checkout(branchOrCommit string) (*Commit, error) {
	if keys, ok := r.Head.Branches[branchOrCommit]; ok {
		if len(keys) != 1 {
			return nil, fmt.Errorf("objrepo: branch %q has %d unmerged heads, checkout requires exactly one", branchOrCommit, len(keys))
		}
		c, ok := r.CommitIndex[keys[0]]
		if !ok {
			return nil, fmt.Errorf("objrepo: head commit %q not loaded", keys[0])
		}
		r.ActiveBranch = branchOrCommit
		r.WorkingObject = c.ObjectRoot
		r.Status = UpToDate
		return c, nil
	}

	c, ok := r.CommitIndex[branchOrCommit]
	if !ok {
		return nil, fmt.Errorf("objrepo: unknown branch or commit %q", branchOrCommit)
	}
	r.WorkingObject = c.ObjectRoot
	r.Status = UpToDate
	return c, nil
}

// MergeWith produces a merge commit whose parents are the heads of
// both branch and parentBranch, and installs it as parentBranch's new
// single head. The caller is then responsible for RemoveBranch(branch)
// if branch is no longer needed.
func (r *Repository) MergeWith(branch, parentBranch, author, message string) (string, error) {
	branchHeads, ok := r.Head.Branches[branch]
	if !ok {
		return "", fmt.Errorf("objrepo: unknown branch %q", branch)
	}
	parentHeads, ok := r.Head.Branches[parentBranch]
	if !ok {
		return "", fmt.Errorf("objrepo: unknown branch %q", parentBranch)
	}

	seen := make(map[string]bool)
	var parents []cid.Cid
	for _, k := range append(append([]string{}, parentHeads...), branchHeads...) {
		if seen[k] {
			continue
		}
		seen[k] = true
		c, err := cid.Decode(k)
		if err != nil {
			return "", fmt.Errorf("objrepo: decode head key %q: %w", k, err)
		}
		parents = append(parents, c)
	}

	// The merge commit's object root is the object root of the parent
	// branch's first head commit — the branch being merged in
	// contributes only its commit-graph ancestry, not a new
	// working-object snapshot.
	headCommit, ok := r.CommitIndex[parentHeads[0]]
	if !ok {
		return "", fmt.Errorf("objrepo: head commit %q not loaded", parentHeads[0])
	}

	commit := &Commit{
		ObjectRoot: headCommit.ObjectRoot,
		Parents:    parents,
		Author:     author,
		Message:    message,
		Timestamp:  time.Now(),
		Rev:        r.clock.Next().String(),
	}
	e, err := commit.Encode()
	if err != nil {
		return "", fmt.Errorf("objrepo: encode merge commit: %w", err)
	}
	raw, err := element.Encode(e)
	if err != nil {
		return "", fmt.Errorf("objrepo: serialize merge commit: %w", err)
	}
	key, err := element.Key(raw)
	if err != nil {
		return "", fmt.Errorf("objrepo: key merge commit: %w", err)
	}
	commit.Key = key.String()

	r.CommitIndex[commit.Key] = commit
	r.IndexHash[commit.Key] = e
	if err := r.putBlock(key, raw); err != nil {
		return "", err
	}
	r.Head.Branches[parentBranch] = []string{commit.Key}

	return commit.Key, nil
}

// CurrentHeads lists every commit ref across every branch.
func (r *Repository) CurrentHeads() []CommitRef {
	var refs []CommitRef
	for branch, keys := range r.Head.Branches {
		for _, k := range keys {
			refs = append(refs, CommitRef{Branch: branch, Key: k})
		}
	}
	return refs
}

// LoadElement decodes raw bytes into a structure element, registers
// it in IndexHash, and — if its type tag is ElementCommitType — also
// decodes and registers it in CommitIndex.
func (r *Repository) LoadElement(raw []byte) (*element.Element, error) {
	e, err := element.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("objrepo: load element: %w", err)
	}
	key, err := element.Key(raw)
	if err != nil {
		return nil, fmt.Errorf("objrepo: key element: %w", err)
	}
	keyStr := key.String()
	r.IndexHash[keyStr] = e
	if err := r.putBlock(key, raw); err != nil {
		return nil, err
	}

	if e.Type == ElementCommitType {
		c, err := decodeCommit(keyStr, e)
		if err != nil {
			return nil, fmt.Errorf("objrepo: decode commit %s: %w", keyStr, err)
		}
		r.CommitIndex[keyStr] = c
	}
	return e, nil
}

// IDRef is a reference to a specific (or branch-current) commit of
// some repository, the shape association subject/predicate/object
// fields and checkout targets are built from.
type IDRef struct {
	RepositoryKey string
	Branch        string
	Commit        string
}

// SetRepositoryReference fills idref with this repository's key and,
// if currentState is true, its active branch and that branch's single
// current head commit.
func (r *Repository) SetRepositoryReference(idref *IDRef, currentState bool) error {
	idref.RepositoryKey = r.RepositoryKey
	if !currentState {
		return nil
	}
	heads := r.Head.Branches[r.ActiveBranch]
	if len(heads) != 1 {
		return fmt.Errorf("objrepo: active branch %q has %d heads, need exactly one for a current-state reference", r.ActiveBranch, len(heads))
	}
	idref.Branch = r.ActiveBranch
	idref.Commit = heads[0]
	return nil
}

// MergeHead folds an incoming head (e.g. reconstructed from commit
// store rows, or pushed by a client) into r.Head following the
// _update_repo_to_head merge rules: for each incoming branch, the
// union of existing and incoming commit refs becomes the new ref
// list; refs pointing at the same commit dedupe. Before taking the
// union, any existing ref that the incoming side's commit-graph
// ancestry already supersedes is dropped — a fast-forward push (the
// new commit's parent chain includes the old head) replaces the old
// head instead of forking against it; only a genuinely concurrent
// commit that does not descend from the current head produces an
// unmerged fork.
func (r *Repository) MergeHead(incoming Head) {
	for branch, keys := range incoming.Branches {
		existing := r.Head.Branches[branch]

		kept := existing[:0:0]
		for _, e := range existing {
			superseded := false
			for _, k := range keys {
				if e != k && r.isAncestor(e, k) {
					superseded = true
					break
				}
			}
			if !superseded {
				kept = append(kept, e)
			}
		}

		seen := make(map[string]bool, len(kept)+len(keys))
		merged := make([]string, 0, len(kept)+len(keys))
		for _, k := range kept {
			if !seen[k] {
				seen[k] = true
				merged = append(merged, k)
			}
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				merged = append(merged, k)
			}
		}
		r.Head.Branches[branch] = merged
	}
}

// isAncestor reports whether ancestorKey is reachable by walking
// parent links from descendantKey. Unknown commits along the way stop
// that path without error — an ancestry that can't be verified is
// treated as "not an ancestor" so merges never silently drop a head
// they can't prove is superseded.
func (r *Repository) isAncestor(ancestorKey, descendantKey string) bool {
	visited := make(map[string]bool)
	queue := []string{descendantKey}
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if visited[key] {
			continue
		}
		visited[key] = true

		c, ok := r.CommitIndex[key]
		if !ok {
			continue
		}
		for _, p := range c.Parents {
			pk := p.String()
			if pk == ancestorKey {
				return true
			}
			queue = append(queue, pk)
		}
	}
	return false
}

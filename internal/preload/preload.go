// Package preload seeds the fixed bootstrap catalog — predicates, the
// root identity, resource types, and a handful of well-known
// identities — idempotently on startup, grounded in the original
// datastore's initialize_datastore/_create_predicate/_create_resource/
// _create_ownership_association.
package preload

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oceanobs/objstore/internal/config"
	"github.com/oceanobs/objstore/internal/element"
	"github.com/oceanobs/objstore/internal/objrepo"
	"github.com/oceanobs/objstore/internal/workbench"
)

// predicateType has no counterpart in workbench.attrs's switch — the
// attribute extractor only special-cases association/resource/
// terminology roots, so a predicate repository carries no indexed
// attributes beyond repository_key.
const predicateType = "predicate"

// Preloader seeds catalog entries into a workbench.Manager.
type Preloader struct {
	wb     *workbench.Manager
	logger *zap.Logger
}

// New creates a Preloader over wb. The logger defaults to a no-op one;
// call SetLogger to attach the process logger built in cmd/objstored.
func New(wb *workbench.Manager) *Preloader {
	return &Preloader{wb: wb, logger: zap.NewNop()}
}

// SetLogger attaches the structured logger used for startup progress.
func (p *Preloader) SetLogger(logger *zap.Logger) {
	p.logger = logger
}

// Run seeds every catalog selected by cfg, skipping entries that
// already exist (idempotent — safe to call on every startup).
func (p *Preloader) Run(ctx context.Context, cfg config.Preload) error {
	if cfg.Predicates {
		p.logger.Info("seeding predicates")
		for _, spec := range Predicates {
			if err := p.ensurePredicate(ctx, spec); err != nil {
				return fmt.Errorf("preload: predicate %s: %w", spec.Key, err)
			}
		}
	}

	if cfg.Identities {
		p.logger.Info("seeding root identity")
		if err := p.ensureResource(ctx, RootIdentity, RootIdentity.Key); err != nil {
			return fmt.Errorf("preload: root identity: %w", err)
		}
	}

	if cfg.ResourceTypes {
		p.logger.Info("seeding resource types")
		for _, spec := range ResourceTypes {
			if err := p.ensureResource(ctx, spec, spec.Owner); err != nil {
				return fmt.Errorf("preload: resource type %s: %w", spec.Key, err)
			}
		}
	}

	if cfg.Identities {
		p.logger.Info("seeding identities")
		for _, spec := range Identities {
			if err := p.ensureResource(ctx, spec, spec.Key); err != nil {
				return fmt.Errorf("preload: identity %s: %w", spec.Key, err)
			}
		}
	}

	// Datasets and AIS resources require external content to populate
	// (spec's config.Preload.Datasets/AISResources) and are off by
	// default; nothing in the retrieved catalog names concrete entries
	// for them, so there is no static seed list to preload here.
	return nil
}

// ensurePredicate seeds one predicate repository if it doesn't already
// exist, mirroring _create_predicate: a standalone object-root of type
// "predicate" holding a single word, committed once.
func (p *Preloader) ensurePredicate(ctx context.Context, spec PredicateSpec) error {
	exists, err := p.wb.RepositoryExists(ctx, spec.Key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	client := objrepo.New(spec.Key, false)
	root := &element.Element{
		Type:    predicateType,
		Payload: map[string]any{"word": spec.Word},
	}
	if err := commitObjectRoot(client, root); err != nil {
		return err
	}
	return pushClient(ctx, p.wb, spec.Key, client)
}

// ensureResource seeds one resource repository if it doesn't already
// exist, then records an owned_by association to ownerKey (self-owned
// if ownerKey == spec.Key or empty), mirroring _create_resource plus
// _create_ownership_association.
func (p *Preloader) ensureResource(ctx context.Context, spec ResourceSpec, ownerKey string) error {
	exists, err := p.wb.RepositoryExists(ctx, spec.Key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	client := objrepo.New(spec.Key, false)
	root := &element.Element{
		Type: workbench.ResourceType,
		Payload: map[string]any{
			"name":            spec.Name,
			"description":     spec.Description,
			"resource_type":   spec.ResourceType,
			"lifecycle_state": spec.LifecycleState,
		},
	}
	if err := commitObjectRoot(client, root); err != nil {
		return err
	}
	if err := pushClient(ctx, p.wb, spec.Key, client); err != nil {
		return err
	}

	if ownerKey == "" {
		ownerKey = spec.Key
	}
	return p.ensureOwnership(ctx, spec.Key, ownerKey)
}

// ensureOwnership creates and pushes a fresh owned_by association
// repository linking subjectKey to ownerKey, mirroring
// _create_ownership_association. Associations aren't deduplicated by
// key the way resources are (each is its own fresh repository), so
// this is only called once per freshly-created resource above.
func (p *Preloader) ensureOwnership(ctx context.Context, subjectKey, ownerKey string) error {
	client := objrepo.New(subjectKey+":owned_by", false)
	root := &element.Element{
		Type: workbench.AssociationType,
		Payload: map[string]any{
			"subject":   map[string]any{"key": subjectKey, "branch": "master", "commit": ""},
			"predicate": OwnedByPredicate,
			"object":    map[string]any{"key": ownerKey, "branch": "master", "commit": ""},
		},
	}
	if err := commitObjectRoot(client, root); err != nil {
		return err
	}
	return pushClient(ctx, p.wb, subjectKey+":owned_by", client)
}

// commitObjectRoot encodes root, sets it as the client's working
// object, and commits it on master.
func commitObjectRoot(client *objrepo.Repository, root *element.Element) error {
	raw, err := element.Encode(root)
	if err != nil {
		return fmt.Errorf("encode object root: %w", err)
	}
	key, err := element.Key(raw)
	if err != nil {
		return fmt.Errorf("key object root: %w", err)
	}
	client.IndexHash[key.String()] = root
	client.SetWorkingObject(key)
	if _, err := client.Commit("preload", "bootstrap catalog entry"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// localFetcher answers the workbench's reverse fetch_blobs RPC
// directly from a client repository's in-memory index — preload runs
// in the same process as the workbench, so there is no real network
// round trip to make.
type localFetcher struct {
	client *objrepo.Repository
}

func (f *localFetcher) FetchBlobs(_ context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		e, ok := f.client.IndexHash[k]
		if !ok {
			continue
		}
		raw, err := element.Encode(e)
		if err != nil {
			return nil, err
		}
		out[k] = raw
	}
	return out, nil
}

// pushClient pushes every element in client's index (object root plus
// its single commit) into the workbench under repositoryKey.
func pushClient(ctx context.Context, wb *workbench.Manager, repositoryKey string, client *objrepo.Repository) error {
	headBytes, err := workbench.EncodeHeadForPush(repositoryKey, client.Head)
	if err != nil {
		return err
	}

	blobKeys := make(map[string]bool, len(client.IndexHash))
	for k := range client.IndexHash {
		blobKeys[k] = true
	}

	return wb.OpPush(ctx, workbench.PushRequest{Repositories: []workbench.PushRepoState{{
		RepositoryKey:   repositoryKey,
		BlobKeys:        blobKeys,
		RepoHeadElement: headBytes,
	}}}, &localFetcher{client: client})
}

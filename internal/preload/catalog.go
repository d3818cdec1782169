package preload

// Catalog constants grounded in the original datastore's bootstrap
// config (ion_preload_config): a handful of well-known repository_keys
// that must exist before any client can reference them by key. The
// original's actual config data file (ion_preload_config.py) wasn't
// part of the retrieved source, so the entries below are a minimal
// equivalent for an ocean-observing catalog rather than a translation.
const (
	RootUserKey      = "ION_GOVERNANCE_ROOT_USER"
	AnonymousUserKey = "ION_ANONYMOUS_USER"
	OwnedByPredicate = "HAS_OWNED_BY_ID"
	HasAPredicate    = "HAS_A_ID"
)

// PredicateSpec describes one predicate catalog entry. Grounded in
// _create_predicate: a predicate is its own object-root type, holding
// only a single word.
type PredicateSpec struct {
	Key  string
	Word string
}

// ResourceSpec describes a resource catalog entry, used for identities
// and resource types alike. Grounded in _create_resource: a resource repository key, a
// human name/description, and the resource_type/lifecycle_state
// attributes attrs.go extracts on commit.
type ResourceSpec struct {
	Key            string
	Name           string
	Description    string
	ResourceType   string
	LifecycleState string
	// Owner is the repository_key of the identity that owns this
	// resource. Empty means self-owned (the resource owns itself, as
	// the original bootstrap does for the root user and for every
	// identity it preloads).
	Owner string
}

// Predicates is the fixed predicate catalog preloaded when
// config.Preload.Predicates is set.
var Predicates = []PredicateSpec{
	{Key: OwnedByPredicate, Word: "owned_by"},
	{Key: HasAPredicate, Word: "has_a"},
}

// RootIdentity is preloaded first, self-owned, whenever
// config.Preload.Identities is set — every other ownership association
// in the catalog chains back to it.
var RootIdentity = ResourceSpec{
	Key:            RootUserKey,
	Name:           "ION Governance Root",
	Description:    "Root identity that owns the preloaded catalog",
	ResourceType:   "identity",
	LifecycleState: "Active",
}

// ResourceTypes is the fixed resource-type catalog preloaded when
// config.Preload.ResourceTypes is set, owned by the root identity.
var ResourceTypes = []ResourceSpec{
	{Key: "RT_DATASET", Name: "Dataset", Description: "Ocean-observing dataset resource type", ResourceType: "resource_type", LifecycleState: "Active", Owner: RootUserKey},
	{Key: "RT_DATASOURCE", Name: "DataSource", Description: "Ocean-observing data source resource type", ResourceType: "resource_type", LifecycleState: "Active", Owner: RootUserKey},
	{Key: "RT_INSTRUMENT", Name: "Instrument", Description: "Instrument/platform resource type", ResourceType: "resource_type", LifecycleState: "Active", Owner: RootUserKey},
}

// Identities is the fixed identity catalog preloaded (besides the root
// identity) when config.Preload.Identities is set. Each is self-owned,
// matching the original's _create_ownership_association(..., value[ID_CFG]).
var Identities = []ResourceSpec{
	{Key: AnonymousUserKey, Name: "Anonymous User", Description: "Fallback owner for unattributed resources", ResourceType: "identity", LifecycleState: "Active"},
}

// Package commitstore implements the indexed commit store: a
// key/value table with a fixed set of queryable secondary-index
// columns, the query substrate associations and resources are built
// on (spec §4.2, grounded in the original datastore's Cassandra-backed
// IndexStore).
package commitstore

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Columns is the fixed, ordered set of indexable attribute names. Any
// attribute name outside this set is rejected by Put/UpdateIndex/Query
// with ErrInvalidIndex.
var Columns = []string{
	"repository_key",
	"branch_name",
	"subject_key", "subject_branch", "subject_commit",
	"predicate_key", "predicate_branch", "predicate_commit",
	"object_key", "object_branch", "object_commit",
	"resource_object_type",
	"resource_life_cycle_state",
	"keyword",
}

var columnSet = func() map[string]bool {
	m := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		m[c] = true
	}
	return m
}()

var (
	// ErrNotFound is returned by Get/Has for a missing key.
	ErrNotFound = errors.New("commitstore: not found")
	// ErrInvalidIndex is returned when a caller names an attribute
	// outside the fixed Columns set.
	ErrInvalidIndex = errors.New("commitstore: invalid index attribute")
	// ErrInvalidValueType is returned when an attribute value is not
	// a UTF-8 string; callers must stringify non-strings themselves.
	ErrInvalidValueType = errors.New("commitstore: attribute value must be a string")
)

// Op is a query predicate operator.
type Op int

const (
	EQ Op = iota
	GT
)

// Predicate is one term of a query's conjunction: column_name OP value.
type Predicate struct {
	Column string
	Value  string
	Op     Op
}

// Row is a query result row: the value bytes plus its full attribute
// map (including columns the caller didn't query on).
type Row struct {
	Value      []byte
	Attributes map[string]string
}

// Store is the contract every commit-store backend implements.
type Store interface {
	Put(ctx context.Context, key string, value []byte, attributes map[string]string) error
	UpdateIndex(ctx context.Context, key string, attributes map[string]string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Multiget(ctx context.Context, keys []string) (map[string][]byte, error)
	HasKey(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) error
	Query(ctx context.Context, predicates []Predicate, maxRows int) (map[string]Row, error)
}

// validateAttributes enforces index discipline: every key must be a
// known column, every value must already be a string (Go's type
// system rules out non-string map values by construction, but an
// empty column name or one with embedded NUL is still rejected here
// as a defensive check against malformed callers).
func validateAttributes(attrs map[string]string) error {
	for col, v := range attrs {
		if !columnSet[col] {
			return fmt.Errorf("%w: %q", ErrInvalidIndex, col)
		}
		if !utf8.ValidString(v) {
			return fmt.Errorf("%w: %q", ErrInvalidValueType, col)
		}
	}
	return nil
}

// Open selects and constructs a backend by name, the explicit factory
// asked for by the design notes in place of reflection-based lookup.
func Open(kind string, deps Deps) (Store, error) {
	switch kind {
	case "memory":
		return NewMemory(), nil
	case "postgres":
		if deps.DB == nil {
			return nil, fmt.Errorf("commitstore: postgres backend requires a *store.DB")
		}
		return NewPostgres(deps.DB), nil
	default:
		return nil, fmt.Errorf("commitstore: unknown backend %q", kind)
	}
}

// Package blobstore implements the blob key/value tier: a flat
// content-addressed map from key to immutable bytes. The store never
// interprets the bytes it holds — that is the structure element
// codec's job.
package blobstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/oceanobs/objstore/internal/store"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("blobstore: not found")

// Store is the contract every backend implements: put, get, has,
// remove, all idempotent. Put of an existing key with identical bytes
// is a no-op; callers never put different bytes under the same key
// because keys are content hashes of those bytes.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Has(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) error
}

// Open selects and constructs a backend by name. This is the explicit
// factory called for by the design notes' "reflection-based class
// lookup" flag — callers name a backend string, Open returns the
// concrete Store, no type registry involved.
func Open(kind string, deps Deps) (Store, error) {
	switch kind {
	case "memory":
		return NewMemory(), nil
	case "postgres":
		if deps.DB == nil {
			return nil, fmt.Errorf("blobstore: postgres backend requires a *store.DB")
		}
		return NewPostgres(deps.DB), nil
	case "redis":
		if deps.RedisAddr == "" {
			return nil, fmt.Errorf("blobstore: redis backend requires redisAddr")
		}
		return NewRedis(deps.RedisAddr), nil
	default:
		return nil, fmt.Errorf("blobstore: unknown backend %q", kind)
	}
}

// Deps bundles everything a backend constructor might need; unused
// fields for a given backend are ignored.
type Deps struct {
	DB        *store.DB
	RedisAddr string
}

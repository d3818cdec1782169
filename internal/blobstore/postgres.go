package blobstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/oceanobs/objstore/internal/store"
)

// Postgres is the durable blob store backend, modeled on the teacher's
// MemBlockstore.PersistAll/LoadBlocks pair but operating row-by-row
// against the shared blobs table instead of loading a whole
// repository's blocks into memory at once.
type Postgres struct {
	db *store.DB
}

// NewPostgres wraps an open connection pool as a blob Store.
func NewPostgres(db *store.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Put(ctx context.Context, key string, data []byte) error {
	_, err := p.db.Pool.Exec(ctx,
		`INSERT INTO blobs (key, data) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("blobstore: put %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := p.db.Pool.QueryRow(ctx, `SELECT data FROM blobs WHERE key = $1`, key).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %s: %w", key, err)
	}
	return data, nil
}

func (p *Postgres) Has(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := p.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM blobs WHERE key = $1)`, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("blobstore: has %s: %w", key, err)
	}
	return exists, nil
}

func (p *Postgres) Remove(ctx context.Context, key string) error {
	_, err := p.db.Pool.Exec(ctx, `DELETE FROM blobs WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("blobstore: remove %s: %w", key, err)
	}
	return nil
}

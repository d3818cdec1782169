package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oceanobs/objstore/internal/store"
)

// Persister stores commit events in commit_events and assigns each one
// a monotonic sequence number via the table's BIGSERIAL seq column.
type Persister struct {
	db *store.DB
}

// NewPersister creates a Persister backed by db.
func NewPersister(db *store.DB) *Persister {
	return &Persister{db: db}
}

// Persist inserts ev and returns the assigned sequence number.
func (p *Persister) Persist(ctx context.Context, ev CommitEvent) (int64, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("notify: marshal event: %w", err)
	}

	var seq int64
	err = p.db.Pool.QueryRow(ctx,
		`INSERT INTO commit_events (repository_key, payload)
		 VALUES ($1, $2)
		 RETURNING seq`,
		ev.RepositoryKey, payload,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("notify: insert event: %w", err)
	}
	return seq, nil
}

// Replay reads every event with seq > since in ascending order,
// re-stamps its Seq (the column is authoritative over whatever the
// stored payload happened to carry), and calls fn with the re-encoded
// frame for each one. Used for cursor-based replay on subscribe.
func (p *Persister) Replay(ctx context.Context, since int64, fn func(frame []byte) error) error {
	rows, err := p.db.Pool.Query(ctx,
		`SELECT seq, payload FROM commit_events WHERE seq > $1 ORDER BY seq ASC`, since)
	if err != nil {
		return fmt.Errorf("notify: replay query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		var payload []byte
		if err := rows.Scan(&seq, &payload); err != nil {
			return fmt.Errorf("notify: replay scan: %w", err)
		}

		var ev CommitEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("notify: replay unmarshal seq %d: %w", seq, err)
		}
		ev.Seq = seq

		frame, err := encodeFrame(ev)
		if err != nil {
			return fmt.Errorf("notify: replay encode seq %d: %w", seq, err)
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Package notify implements the subscribeCommits change feed: a
// sequenced, replay-capable notification per successful push, fanned
// out to WebSocket subscribers. This mirrors the original datastore's
// change-notification consumers (ion.services.dm.ingestion and the AIS
// layer) without being part of push/pull/checkout's own correctness —
// a subscriber that never connects, or whose buffer overflows, cannot
// affect a single repository operation.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CommitEvent describes one successful commit landing on a branch,
// the payload handed to subscribeCommits subscribers.
type CommitEvent struct {
	Seq           int64     `json:"seq"`
	RepositoryKey string    `json:"repositoryKey"`
	Branch        string    `json:"branch"`
	CommitKey     string    `json:"commitKey"`
	ObjectRoot    string    `json:"objectRoot"`
	Author        string    `json:"author"`
	Message       string    `json:"message"`
	Time          time.Time `json:"time"`
}

type subscriber struct {
	ch   chan []byte
	done chan struct{}
}

// Manager sequences commit events through Persister and fans the wire
// frame out to every connected WebSocket subscriber. Guarded the same
// way the teacher's events.Manager guards its subscriber set.
type Manager struct {
	persister *Persister
	logger    *zap.Logger

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewManager creates a Manager backed by persister. A nil persister is
// valid and means events are fanned out live but never replayable —
// used when neither store backend is "postgres" and so there is no
// Postgres pool to sequence against. The logger defaults to a no-op one; call SetLogger
// to attach the process logger built in cmd/objstored.
func NewManager(persister *Persister) *Manager {
	return &Manager{
		persister: persister,
		subs:      make(map[*subscriber]struct{}),
		logger:    zap.NewNop(),
	}
}

// SetLogger attaches the structured logger used for replay failures.
func (m *Manager) SetLogger(logger *zap.Logger) {
	m.logger = logger
}

// Emit persists ev (assigning its Seq) and broadcasts the resulting
// frame to all subscribers. Returns error only if persistence fails;
// a slow or disconnected subscriber never blocks or fails a push.
func (m *Manager) Emit(ctx context.Context, ev CommitEvent) error {
	if m.persister != nil {
		seq, err := m.persister.Persist(ctx, ev)
		if err != nil {
			return fmt.Errorf("notify: persist: %w", err)
		}
		ev.Seq = seq
	}

	frame, err := encodeFrame(ev)
	if err != nil {
		return fmt.Errorf("notify: encode frame: %w", err)
	}
	m.broadcast(frame)
	return nil
}

// Subscribe returns a channel of pre-serialized JSON frames. If since
// is non-nil, events with seq > *since are replayed before live frames
// arrive. The returned cancel func must be called when the subscriber
// disconnects.
func (m *Manager) Subscribe(ctx context.Context, since *int64) (<-chan []byte, func(), error) {
	sub := &subscriber{
		ch:   make(chan []byte, 256),
		done: make(chan struct{}),
	}

	// Register before replay so no event lands in the gap between
	// replay's last row and the first live broadcast.
	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subs[sub]; ok {
			delete(m.subs, sub)
			close(sub.done)
		}
		m.mu.Unlock()
	}

	if since != nil && m.persister != nil {
		go func() {
			err := m.persister.Replay(ctx, *since, func(frame []byte) error {
				select {
				case sub.ch <- frame:
					return nil
				case <-sub.done:
					return fmt.Errorf("notify: subscriber cancelled mid-replay")
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			if err != nil {
				m.logger.Warn("replay error", zap.Error(err))
			}
		}()
	}

	return sub.ch, cancel, nil
}

// Shutdown closes every subscriber channel. Call once, at process
// shutdown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range m.subs {
		close(sub.ch)
		close(sub.done)
		delete(m.subs, sub)
	}
}

// broadcast sends frame to every subscriber. A subscriber whose buffer
// is full is dropped rather than blocking the emitting push — it must
// reconnect and replay from its last known cursor.
func (m *Manager) broadcast(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range m.subs {
		select {
		case sub.ch <- frame:
		default:
			close(sub.ch)
			delete(m.subs, sub)
		}
	}
}

func encodeFrame(ev CommitEvent) ([]byte, error) {
	return json.Marshal(ev)
}

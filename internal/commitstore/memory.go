package commitstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Memory is an in-memory commit store, used for unit tests and as a
// lightweight commitCache="memory" deployment option.
type Memory struct {
	mu   sync.RWMutex
	rows map[string]Row
}

// NewMemory creates an empty in-memory commit store.
func NewMemory() *Memory {
	return &Memory{rows: make(map[string]Row, 64)}
}

func (m *Memory) Put(_ context.Context, key string, value []byte, attributes map[string]string) error {
	if err := validateAttributes(attributes); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	attrs := make(map[string]string, len(attributes))
	for k, v := range attributes {
		attrs[k] = v
	}
	m.rows[key] = Row{Value: value, Attributes: attrs}
	return nil
}

func (m *Memory) UpdateIndex(_ context.Context, key string, attributes map[string]string) error {
	if err := validateAttributes(attributes); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	for k, v := range attributes {
		row.Attributes[k] = v
	}
	m.rows[key] = row
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[key]
	if !ok {
		return nil, ErrNotFound
	}
	return row.Value, nil
}

func (m *Memory) Multiget(_ context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if row, ok := m.rows[k]; ok {
			out[k] = row.Value
		}
	}
	return out, nil
}

func (m *Memory) HasKey(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rows[key]
	return ok, nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, key)
	return nil
}

func (m *Memory) Query(_ context.Context, predicates []Predicate, maxRows int) (map[string]Row, error) {
	for _, p := range predicates {
		if !columnSet[p.Column] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIndex, p.Column)
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Row)
	for key, row := range m.rows {
		if matchesAll(row, predicates) {
			cp := make(map[string]string, len(row.Attributes))
			for k, v := range row.Attributes {
				cp[k] = v
			}
			out[key] = Row{Value: row.Value, Attributes: cp}
			if maxRows > 0 && len(out) >= maxRows {
				break
			}
		}
	}
	return out, nil
}

func matchesAll(row Row, predicates []Predicate) bool {
	for _, p := range predicates {
		actual := row.Attributes[p.Column]
		switch p.Op {
		case EQ:
			if actual != p.Value {
				return false
			}
		case GT:
			if !greaterThan(actual, p.Value) {
				return false
			}
		}
	}
	return true
}

// greaterThan compares two attribute values numerically when both
// parse as numbers (resource lifecycle ordinals, sequence numbers),
// falling back to lexicographic comparison for free-text columns like
// keyword.
func greaterThan(a, b string) bool {
	an, aerr := strconv.ParseFloat(a, 64)
	bn, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil {
		return an > bn
	}
	return a > b
}

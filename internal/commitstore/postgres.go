package commitstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/oceanobs/objstore/internal/store"
)

// Postgres is the durable commit store backend: one physical column
// per fixed indexed attribute, plus key/value. Query compiles the
// predicate list into a parameterized WHERE clause over those
// columns — the Go-native answer to the original datastore's
// IndexExpression/IndexOperator query construction.
type Postgres struct {
	db *store.DB
}

// NewPostgres wraps an open connection pool as a commit Store.
func NewPostgres(db *store.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Put(ctx context.Context, key string, value []byte, attributes map[string]string) error {
	if err := validateAttributes(attributes); err != nil {
		return err
	}

	cols := []string{"key", "value"}
	placeholders := []string{"$1", "$2"}
	args := []any{key, value}
	updates := []string{"value = EXCLUDED.value"}

	i := 3
	for _, col := range Columns {
		v, ok := attributes[col]
		if !ok {
			continue
		}
		cols = append(cols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
		args = append(args, v)
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		i++
	}
	for _, col := range Columns {
		if _, ok := attributes[col]; ok {
			continue
		}
		cols = append(cols, col)
		placeholders = append(placeholders, "''")
		updates = append(updates, fmt.Sprintf("%s = ''", col))
	}

	sql := fmt.Sprintf(
		`INSERT INTO commits (%s) VALUES (%s) ON CONFLICT (key) DO UPDATE SET %s`,
		strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "),
	)

	if _, err := p.db.Pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("commitstore: put %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) UpdateIndex(ctx context.Context, key string, attributes map[string]string) error {
	if err := validateAttributes(attributes); err != nil {
		return err
	}
	if len(attributes) == 0 {
		return nil
	}

	sets := make([]string, 0, len(attributes))
	args := make([]any, 0, len(attributes)+1)
	i := 1
	for col, v := range attributes {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, v)
		i++
	}
	args = append(args, key)

	sql := fmt.Sprintf(`UPDATE commits SET %s WHERE key = $%d`, strings.Join(sets, ", "), i)
	tag, err := p.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("commitstore: update_index %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.Pool.QueryRow(ctx, `SELECT value FROM commits WHERE key = $1`, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("commitstore: get %s: %w", key, err)
	}
	return value, nil
}

func (p *Postgres) Multiget(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	rows, err := p.db.Pool.Query(ctx, `SELECT key, value FROM commits WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("commitstore: multiget: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte, len(keys))
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("commitstore: multiget scan: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (p *Postgres) HasKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := p.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM commits WHERE key = $1)`, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("commitstore: has_key %s: %w", key, err)
	}
	return exists, nil
}

func (p *Postgres) Remove(ctx context.Context, key string) error {
	_, err := p.db.Pool.Exec(ctx, `DELETE FROM commits WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("commitstore: remove %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, predicates []Predicate, maxRows int) (map[string]Row, error) {
	for _, pr := range predicates {
		if !columnSet[pr.Column] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIndex, pr.Column)
		}
	}
	if maxRows <= 0 {
		maxRows = 10_000_000
	}

	clauses := make([]string, 0, len(predicates))
	args := make([]any, 0, len(predicates)+1)
	i := 1
	for _, pr := range predicates {
		op := "="
		if pr.Op == GT {
			op = ">"
		}
		clauses = append(clauses, fmt.Sprintf("%s %s $%d", pr.Column, op, i))
		args = append(args, pr.Value)
		i++
	}

	sql := fmt.Sprintf(`SELECT key, value, %s FROM commits`, strings.Join(Columns, ", "))
	if len(clauses) > 0 {
		sql += " WHERE " + strings.Join(clauses, " AND ")
	}
	sql += fmt.Sprintf(" LIMIT $%d", i)
	args = append(args, maxRows)

	rows, err := p.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("commitstore: query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Row)
	for rows.Next() {
		var key string
		var value []byte
		vals := make([]string, len(Columns))
		scanDest := make([]any, 0, len(Columns)+2)
		scanDest = append(scanDest, &key, &value)
		for i := range vals {
			scanDest = append(scanDest, &vals[i])
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("commitstore: query scan: %w", err)
		}
		attrs := make(map[string]string, len(Columns))
		for i, col := range Columns {
			attrs[col] = vals[i]
		}
		out[key] = Row{Value: value, Attributes: attrs}
	}
	return out, rows.Err()
}

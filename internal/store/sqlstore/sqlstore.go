// Package sqlstore keeps ledger documents in one SQL table per collection.
// SQLite and PostgreSQL share it through a Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/HAB39/3laNota/internal/store"
)

type Dialect struct {
	Name string
	// DocType is the column type of the document column.
	DocType string
	// Numbered selects $1-style placeholders instead of ?.
	Numbered bool
	// DocCast is appended to the document placeholder, e.g. "::jsonb".
	DocCast   string
	Isolation sql.IsolationLevel
	// Retryable reports whether an atomic unit failed only because it lost
	// a race with another one and may simply be run again.
	Retryable func(error) bool
	Attempts  int
}

var tables = map[string]string{
	store.Clients:       "clients",
	store.Products:      "products",
	store.Transactions:  "transactions",
	store.DailyCounters: "daily_counters",
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	kv
}

func New(db *sql.DB, dialect Dialect) *Store {
	if dialect.Attempts < 1 {
		dialect.Attempts = 1
	}
	return &Store{db: db, dialect: dialect, kv: kv{q: db, dialect: dialect}}
}

// Migrate creates the collection tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, name := range store.Collections {
		table := tables[name]
		_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				doc %s NOT NULL,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
		`, table, s.dialect.DocType))
		if err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Atomic(ctx context.Context, fn func(store.KV) error) error {
	var err error
	for attempt := 1; attempt <= s.dialect.Attempts; attempt++ {
		err = s.atomicOnce(ctx, fn)
		if err == nil || s.dialect.Retryable == nil || !s.dialect.Retryable(err) {
			return err
		}
		log.Printf("[store] WARN: %s atomic unit conflicted (attempt %d/%d): %v", s.dialect.Name, attempt, s.dialect.Attempts, err)
	}
	return err
}

func (s *Store) atomicOnce(ctx context.Context, fn func(store.KV) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: s.dialect.Isolation})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(kv{q: tx, dialect: s.dialect}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type kv struct {
	q       querier
	dialect Dialect
}

func (k kv) bind(n int) string {
	if k.dialect.Numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func table(collection string) (string, error) {
	name, ok := tables[collection]
	if !ok {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	return name, nil
}

func (k kv) Put(ctx context.Context, collection string, id string, doc []byte) error {
	t, err := table(collection)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, doc, updated_at)
		VALUES (%s, %s%s, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
	`, t, k.bind(1), k.bind(2), k.dialect.DocCast)
	_, err = k.q.ExecContext(ctx, query, id, string(doc))
	return err
}

func (k kv) Get(ctx context.Context, collection string, id string) ([]byte, error) {
	t, err := table(collection)
	if err != nil {
		return nil, err
	}
	var doc string
	err = k.q.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = %s`, t, k.bind(1)), id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return []byte(doc), nil
}

func (k kv) List(ctx context.Context, collection string) ([][]byte, error) {
	t, err := table(collection)
	if err != nil {
		return nil, err
	}
	rows, err := k.q.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM %s ORDER BY id`, t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([][]byte, 0, 64)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, []byte(doc))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (k kv) Delete(ctx context.Context, collection string, id string) error {
	t, err := table(collection)
	if err != nil {
		return err
	}
	_, err = k.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, t, k.bind(1)), id)
	return err
}

func (k kv) Clear(ctx context.Context, collection string) error {
	t, err := table(collection)
	if err != nil {
		return err
	}
	_, err = k.q.ExecContext(ctx, "DELETE FROM "+t)
	return err
}

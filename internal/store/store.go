package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/HAB39/3laNota/internal/domain"
)

const (
	Clients       = "clients"
	Products      = "products"
	Transactions  = "transactions"
	DailyCounters = "dailyCounters"
)

// Collections lists every ledger collection in a stable order.
var Collections = []string{Clients, Products, Transactions, DailyCounters}

var ErrNotFound = errors.New("not found")

// KV is the document-level contract every backend implements: JSON
// documents keyed by id inside a named collection.
type KV interface {
	Put(ctx context.Context, collection string, id string, doc []byte) error
	Get(ctx context.Context, collection string, id string) ([]byte, error)
	List(ctx context.Context, collection string) ([][]byte, error)
	Delete(ctx context.Context, collection string, id string) error
	Clear(ctx context.Context, collection string) error
}

// Backend is a KV that can also run a group of operations as one atomic
// unit. Atomic units are serialized with every other write; if fn returns
// an error nothing it wrote is kept.
type Backend interface {
	KV
	Atomic(ctx context.Context, fn func(KV) error) error
	Ping(ctx context.Context) error
	Close() error
}

type Record interface {
	RecordID() string
}

// Collection is a typed view over one KV collection.
type Collection[T Record] struct {
	kv   KV
	name string
}

func NewCollection[T Record](kv KV, name string) Collection[T] {
	return Collection[T]{kv: kv, name: name}
}

func (c Collection[T]) Name() string {
	return c.name
}

// Put inserts or replaces the record with the same id and returns what was
// stored.
func (c Collection[T]) Put(ctx context.Context, rec T) (T, error) {
	id := rec.RecordID()
	if id == "" {
		var zero T
		return zero, fmt.Errorf("put %s: record has no id", c.name)
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("encode %s %s: %w", c.name, id, err)
	}
	if err := c.kv.Put(ctx, c.name, id, doc); err != nil {
		var zero T
		return zero, err
	}
	return rec, nil
}

func (c Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var rec T
	doc, err := c.kv.Get(ctx, c.name, id)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(doc, &rec); err != nil {
		return rec, &StorageError{Op: "decode", Collection: c.name, Err: err}
	}
	return rec, nil
}

// List returns every record in the collection. Order is not guaranteed.
func (c Collection[T]) List(ctx context.Context) ([]T, error) {
	docs, err := c.kv.List(ctx, c.name)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var rec T
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, &StorageError{Op: "decode", Collection: c.name, Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c Collection[T]) Delete(ctx context.Context, id string) error {
	return c.kv.Delete(ctx, c.name, id)
}

func (c Collection[T]) Clear(ctx context.Context) error {
	return c.kv.Clear(ctx, c.name)
}

// Tx exposes the typed collections inside an atomic unit.
type Tx struct {
	kv KV
}

func (tx *Tx) Clients() Collection[domain.Client] {
	return NewCollection[domain.Client](tx.kv, Clients)
}

func (tx *Tx) Products() Collection[domain.Product] {
	return NewCollection[domain.Product](tx.kv, Products)
}

func (tx *Tx) Transactions() Collection[domain.Transaction] {
	return NewCollection[domain.Transaction](tx.kv, Transactions)
}

func (tx *Tx) DailyCounters() Collection[domain.DailyCounter] {
	return NewCollection[domain.DailyCounter](tx.kv, DailyCounters)
}

// Ledger is the typed entry point to the four ledger collections.
type Ledger struct {
	backend Backend
	Tx
}

func NewLedger(backend Backend) *Ledger {
	return &Ledger{backend: backend, Tx: Tx{kv: backend}}
}

// Atomic runs fn as one all-or-nothing unit. Collections reached through
// the Tx argument are the only ones fn may use; going back to the Ledger
// from inside fn bypasses the unit.
func (l *Ledger) Atomic(ctx context.Context, fn func(tx *Tx) error) error {
	return l.backend.Atomic(ctx, func(kv KV) error {
		return fn(&Tx{kv: kv})
	})
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.backend.Ping(ctx)
}

func (l *Ledger) Close() error {
	return l.backend.Close()
}

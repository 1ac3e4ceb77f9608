package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/HAB39/3laNota/internal/store"
)

type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func New() *Store {
	return &Store{data: emptyData()}
}

func emptyData() map[string]map[string][]byte {
	data := make(map[string]map[string][]byte, len(store.Collections))
	for _, name := range store.Collections {
		data[name] = make(map[string][]byte)
	}
	return data
}

func (s *Store) Put(_ context.Context, collection string, id string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{data: s.data}.put(collection, id, doc)
}

func (s *Store) Get(_ context.Context, collection string, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{data: s.data}.get(collection, id)
}

func (s *Store) List(_ context.Context, collection string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{data: s.data}.list(collection)
}

func (s *Store) Delete(_ context.Context, collection string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{data: s.data}.delete(collection, id)
}

func (s *Store) Clear(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{data: s.data}.clear(collection)
}

// Atomic holds the write lock for the whole unit and applies fn to a staged
// copy, which replaces the live data only when fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(store.KV) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]map[string][]byte, len(s.data))
	for name, docs := range s.data {
		copied := make(map[string][]byte, len(docs))
		for id, doc := range docs {
			copied[id] = doc
		}
		staged[name] = copied
	}

	if err := fn(view{data: staged}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = staged
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

// view runs the KV operations on a data map without locking. Stored byte
// slices are never mutated in place, so staged copies may share them.
type view struct {
	data map[string]map[string][]byte
}

func (v view) bucket(collection string) (map[string][]byte, error) {
	docs, ok := v.data[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	return docs, nil
}

func (v view) put(collection string, id string, doc []byte) error {
	docs, err := v.bucket(collection)
	if err != nil {
		return err
	}
	docs[id] = slices.Clone(doc)
	return nil
}

func (v view) get(collection string, id string) ([]byte, error) {
	docs, err := v.bucket(collection)
	if err != nil {
		return nil, err
	}
	doc, ok := docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(doc), nil
}

func (v view) list(collection string) ([][]byte, error) {
	docs, err := v.bucket(collection)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, slices.Clone(docs[id]))
	}
	return out, nil
}

func (v view) delete(collection string, id string) error {
	docs, err := v.bucket(collection)
	if err != nil {
		return err
	}
	delete(docs, id)
	return nil
}

func (v view) clear(collection string) error {
	if _, err := v.bucket(collection); err != nil {
		return err
	}
	v.data[collection] = make(map[string][]byte)
	return nil
}

func (v view) Put(_ context.Context, collection string, id string, doc []byte) error {
	return v.put(collection, id, doc)
}

func (v view) Get(_ context.Context, collection string, id string) ([]byte, error) {
	return v.get(collection, id)
}

func (v view) List(_ context.Context, collection string) ([][]byte, error) {
	return v.list(collection)
}

func (v view) Delete(_ context.Context, collection string, id string) error {
	return v.delete(collection, id)
}

func (v view) Clear(_ context.Context, collection string) error {
	return v.clear(collection)
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const DefaultTimeout = 5 * time.Second

// StorageError reports a failed or timed out backend operation. The user
// action that triggered it should be abandoned, not retried.
type StorageError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StorageError) Error() string {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return fmt.Sprintf("storage %s %s: timed out", e.Op, e.Collection)
	}
	if e.Collection == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Guard bounds every operation on next by timeout and reports backend
// failures as *StorageError. ErrNotFound is passed through so callers can
// still test for it, and so is any error returned by an atomic callback.
func Guard(next Backend, timeout time.Duration) Backend {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &guarded{next: next, timeout: timeout}
}

type guarded struct {
	next    Backend
	timeout time.Duration
}

func (g *guarded) Put(ctx context.Context, collection string, id string, doc []byte) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return wrap("put", collection, g.next.Put(ctx, collection, id, doc))
}

func (g *guarded) Get(ctx context.Context, collection string, id string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	doc, err := g.next.Get(ctx, collection, id)
	return doc, wrap("get", collection, err)
}

func (g *guarded) List(ctx context.Context, collection string) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	docs, err := g.next.List(ctx, collection)
	return docs, wrap("list", collection, err)
}

func (g *guarded) Delete(ctx context.Context, collection string, id string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return wrap("delete", collection, g.next.Delete(ctx, collection, id))
}

func (g *guarded) Clear(ctx context.Context, collection string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return wrap("clear", collection, g.next.Clear(ctx, collection))
}

func (g *guarded) Atomic(ctx context.Context, fn func(KV) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var fnErr error
	err := g.next.Atomic(ctx, func(kv KV) error {
		fnErr = fn(unitKV{next: kv})
		return fnErr
	})
	if err == nil {
		return nil
	}
	if fnErr != nil && errors.Is(err, fnErr) {
		return err
	}
	return wrap("atomic", "", err)
}

func (g *guarded) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return wrap("ping", "", g.next.Ping(ctx))
}

func (g *guarded) Close() error {
	return g.next.Close()
}

// unitKV wraps errors inside an atomic unit. The unit's own deadline bounds
// the individual operations.
type unitKV struct {
	next KV
}

func (u unitKV) Put(ctx context.Context, collection string, id string, doc []byte) error {
	return wrap("put", collection, u.next.Put(ctx, collection, id, doc))
}

func (u unitKV) Get(ctx context.Context, collection string, id string) ([]byte, error) {
	doc, err := u.next.Get(ctx, collection, id)
	return doc, wrap("get", collection, err)
}

func (u unitKV) List(ctx context.Context, collection string) ([][]byte, error) {
	docs, err := u.next.List(ctx, collection)
	return docs, wrap("list", collection, err)
}

func (u unitKV) Delete(ctx context.Context, collection string, id string) error {
	return wrap("delete", collection, u.next.Delete(ctx, collection, id))
}

func (u unitKV) Clear(ctx context.Context, collection string) error {
	return wrap("clear", collection, u.next.Clear(ctx, collection))
}

func wrap(op string, collection string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Collection: collection, Err: err}
}

package testutil

import (
	"context"
	"sync"
)

// snapshotter is implemented by every in-memory store so a transaction can
// capture and roll back state.
type snapshotter interface {
	snapshotAny() any
	restoreAny(snap any)
}

func (s *InMemoryStore[T]) snapshotAny() any {
	return s.Snapshot()
}

func (s *InMemoryStore[T]) restoreAny(snap any) {
	s.Restore(snap.(map[string]T))
}

// InMemoryTxClient implements postgres.IClient against in-memory stores. On
// transaction failure it restores every registered store to its state at the
// start of the outermost transaction, which makes rollback behavior real in
// service tests.
type InMemoryTxClient struct {
	mu     sync.Mutex
	stores []snapshotter

	// LockedKeys records every key passed to LockKey, in order.
	LockedKeys []string

	depth int
}

// NewInMemoryTxClient creates a transaction client over the given stores.
func NewInMemoryTxClient(stores ...snapshotter) *InMemoryTxClient {
	return &InMemoryTxClient{stores: stores}
}

// Register adds stores to the transactional scope.
func (c *InMemoryTxClient) Register(stores ...snapshotter) {
	c.stores = append(c.stores, stores...)
}

// WithTx runs fn with rollback-on-error semantics. Nested calls join the
// outer transaction, matching the SQL client.
func (c *InMemoryTxClient) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	c.mu.Lock()
	c.depth++
	outermost := c.depth == 1

	var snaps []any
	if outermost {
		snaps = make([]any, len(c.stores))
		for i, s := range c.stores {
			snaps[i] = s.snapshotAny()
		}
	}
	c.mu.Unlock()

	err := fn(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.depth--

	if err != nil && outermost {
		for i, s := range c.stores {
			s.restoreAny(snaps[i])
		}
	}
	return err
}

// LockKey records the key; in-memory tests run single-threaded so no actual
// locking is needed.
func (c *InMemoryTxClient) LockKey(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LockedKeys = append(c.LockedKeys, key)
	return nil
}

package memstore

import (
	"context"
	"sync"
)

// lockTable hands out exclusive per-key locks. A waiter gives up when its
// context ends.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]chan struct{})}
}

func (lt *lockTable) acquire(ctx context.Context, key string) error {
	for {
		lt.mu.Lock()
		released, held := lt.locks[key]
		if !held {
			lt.locks[key] = make(chan struct{})
			lt.mu.Unlock()
			return nil
		}
		lt.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (lt *lockTable) release(key string) {
	lt.mu.Lock()
	released, held := lt.locks[key]
	delete(lt.locks, key)
	lt.mu.Unlock()
	if held {
		close(released)
	}
}

package syncer

import (
	"context"
	"sync"
)

// keyLock is a per-id mutex whose waiters can give up when their context ends.
type keyLock struct {
	mu      sync.Mutex
	entries map[int]*keyEntry
}

type keyEntry struct {
	ch   chan struct{}
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{entries: make(map[int]*keyEntry)}
}

func (k *keyLock) ref(id int) *keyEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.entries[id]
	if e == nil {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		k.entries[id] = e
	}
	e.refs++
	return e
}

func (k *keyLock) unref(id int, e *keyEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, id)
	}
}

// Lock blocks until id is free or ctx is done.
func (k *keyLock) Lock(ctx context.Context, id int) (func(), error) {
	e := k.ref(id)
	select {
	case e.ch <- struct{}{}:
		return k.unlocker(id, e), nil
	case <-ctx.Done():
		k.unref(id, e)
		return nil, ctx.Err()
	}
}

// TryLock takes id only if nobody holds it.
func (k *keyLock) TryLock(id int) (func(), bool) {
	e := k.ref(id)
	select {
	case e.ch <- struct{}{}:
		return k.unlocker(id, e), true
	default:
		k.unref(id, e)
		return nil, false
	}
}

func (k *keyLock) unlocker(id int, e *keyEntry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.unref(id, e)
		})
	}
}

package cache

import "sync"

// keyLocker hands out one mutex per CacheKey so sibling goroutines filling
// the same key serialize instead of issuing duplicate provider calls
// (spec.md §4.2 "cache-stampede control"). Locks are reference-counted and
// removed once nobody holds them, so the map doesn't grow unbounded.
type keyLocker struct {
	mu    sync.Mutex
	locks map[string]*refCountedMutex
}

type refCountedMutex struct {
	mu  sync.Mutex
	ref int
}

func newKeyLocker() *keyLocker {
	return &keyLocker{locks: make(map[string]*refCountedMutex)}
}

// Lock blocks until the caller holds the lock for key, and returns an
// unlock function the caller must invoke exactly once.
func (k *keyLocker) Lock(key string) func() {
	k.mu.Lock()
	rcm, ok := k.locks[key]
	if !ok {
		rcm = &refCountedMutex{}
		k.locks[key] = rcm
	}
	rcm.ref++
	k.mu.Unlock()

	rcm.mu.Lock()

	return func() {
		rcm.mu.Unlock()

		k.mu.Lock()
		rcm.ref--
		if rcm.ref == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

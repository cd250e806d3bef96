// Package lock provides keyed mutexes that serialize state changes per
// player and per sect.
package lock

import (
	"cmp"
	"slices"
	"sync"
)

// entry is a one-slot channel used as a mutex; draining an empty slot is
// what makes Unlock of a free key a no-op.
type entry struct {
	ch chan struct{}
}

func newEntry() *entry {
	return &entry{ch: make(chan struct{}, 1)}
}

// KeyLock hands out one mutex per key. Entries are never evicted; the key
// space (player ids, sect ids) is bounded by the player base.
type KeyLock[K cmp.Ordered] struct {
	locks sync.Map // map[K]*entry
}

// New creates an empty KeyLock.
func New[K cmp.Ordered]() *KeyLock[K] {
	return &KeyLock[K]{}
}

func (l *KeyLock[K]) get(key K) *entry {
	if v, ok := l.locks.Load(key); ok {
		return v.(*entry)
	}
	actual, _ := l.locks.LoadOrStore(key, newEntry())
	return actual.(*entry)
}

// Lock blocks until the key is held.
func (l *KeyLock[K]) Lock(key K) {
	l.get(key).ch <- struct{}{}
}

// Unlock releases the key. Unlocking a key that is not held is a no-op.
func (l *KeyLock[K]) Unlock(key K) {
	select {
	case <-l.get(key).ch:
	default:
	}
}

// LockMany acquires several keys in ascending order and returns the
// function that releases them. Duplicate keys are locked once.
func (l *KeyLock[K]) LockMany(keys ...K) (unlock func()) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for _, k := range sorted {
		l.Lock(k)
	}
	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			l.Unlock(sorted[i])
		}
	}
}

// Package replacer implements the buffer pool's replacement policy: a
// candidate pool of evictable values (frame indices in practice) with
// strict least-recently-inserted victim order. Re-inserting a value
// moves it to the front; the victim is always the value at the back.
package replacer

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU tracks candidate values for eviction in strict
// least-recently-inserted order. It is safe for concurrent use: the
// underlying cache keeps its own internal mutex, so when called under
// an outer latch (the buffer pool's) that lock is always uncontended.
type LRU[T comparable] struct {
	cache *lru.Cache[T, struct{}]
}

// New builds an LRU replacer bounded to capacity values. capacity
// should be the pool size: a replacer never holds more values than
// there are frames, so this bound is never hit in normal operation.
// Re-inserting a value that is already present does not count against
// it; if more than capacity distinct values are inserted, the least
// recently inserted one is dropped without being returned by Victim.
func New[T comparable](capacity int) *LRU[T] {
	c, err := lru.New[T, struct{}](capacity)
	if err != nil {
		panic(err)
	}
	return &LRU[T]{cache: c}
}

// Insert pushes v to the front (most recent). If v is already
// present it is moved, not duplicated.
func (r *LRU[T]) Insert(v T) {
	r.cache.Add(v, struct{}{})
}

// Victim removes and returns the value at the back (least recently
// inserted), or the zero value and false if the replacer is empty.
func (r *LRU[T]) Victim() (T, bool) {
	v, _, ok := r.cache.RemoveOldest()
	return v, ok
}

// Erase removes v if present, reporting whether it was.
func (r *LRU[T]) Erase(v T) bool {
	return r.cache.Remove(v)
}

// Size returns the current number of candidate values.
func (r *LRU[T]) Size() int {
	return r.cache.Len()
}

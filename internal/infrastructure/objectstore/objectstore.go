package objectstore

import (
	"sync"
)

// ObjectStore is a concurrent, in-memory KV indexed by string IDs.
//
// Data structures:
//   - Mutable state (ids + vals + pos) guarded by RWMutex
//
// Iteration is deterministic (insertion order). Overwriting an existing id
// keeps its original position, so a listing replayed into the store keeps
// its order.
//
// Typical costs:
//   - Upsert: O(1) for overwrite/append
//   - Delete: O(n) for slice compaction
//   - Reads: O(1)/O(k)/O(n)
//
// Semantics:
//   - Values are stored *as provided*, without deep copying.
//   - Pointer values are shared with the caller; callers must not mutate
//     them after insertion.
type ObjectStore[V any] struct {
	mu sync.RWMutex // guards st
	st storeState[V]
}

type storeState[V any] struct {
	ids  []string
	vals []V
	pos  map[string]int
}

// New constructs a ready-to-use ObjectStore.
func New[V any]() *ObjectStore[V] {
	return &ObjectStore[V]{
		st: storeState[V]{
			ids:  make([]string, 0),
			vals: make([]V, 0),
			pos:  make(map[string]int),
		},
	}
}

// Upsert inserts value at the end or overwrites it in place.
func (s *ObjectStore[V]) Upsert(id string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, exists := s.st.pos[id]; exists {
		s.st.vals[idx] = value
		return
	}

	s.st.ids = append(s.st.ids, id)
	s.st.vals = append(s.st.vals, value)
	s.st.pos[id] = len(s.st.ids) - 1
}

// Delete removes id if present; idempotent.
func (s *ObjectStore[V]) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.st.pos[id]
	if !ok {
		return
	}
	delete(s.st.pos, id)

	copy(s.st.ids[idx:], s.st.ids[idx+1:])
	s.st.ids = s.st.ids[:len(s.st.ids)-1]

	copy(s.st.vals[idx:], s.st.vals[idx+1:])
	var zero V
	s.st.vals[len(s.st.vals)-1] = zero
	s.st.vals = s.st.vals[:len(s.st.vals)-1]

	// Update positions for shifted tail.
	for i := idx; i < len(s.st.ids); i++ {
		s.st.pos[s.st.ids[i]] = i
	}
}

// GetOne returns (value, ok).
func (s *ObjectStore[V]) GetOne(id string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.st.pos[id]
	if !ok {
		var zero V
		return zero, false
	}
	return s.st.vals[idx], true
}

// GetList returns a copy of all values in insertion order.
func (s *ObjectStore[V]) GetList() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]V, len(s.st.vals))
	copy(out, s.st.vals)
	return out
}

// Len returns the number of stored values.
func (s *ObjectStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.ids)
}

// Reset drops every entry.
func (s *ObjectStore[V]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = storeState[V]{
		ids:  make([]string, 0),
		vals: make([]V, 0),
		pos:  make(map[string]int),
	}
}

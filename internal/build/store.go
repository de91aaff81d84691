package build

import "sync/atomic"

// Store holds the current generation. Readers always see a complete
// generation; publishing never blocks them.
type Store struct {
	current atomic.Pointer[Generation]
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the latest published generation, or nil before the
// first one.
func (s *Store) Current() *Generation {
	return s.current.Load()
}

// Publish makes g current unless a generation with the same or a later ID
// is already published. It reports whether g was accepted.
func (s *Store) Publish(g *Generation) bool {
	if g == nil {
		return false
	}
	for {
		cur := s.current.Load()
		if cur != nil && cur.ID >= g.ID {
			return false
		}
		if s.current.CompareAndSwap(cur, g) {
			return true
		}
	}
}

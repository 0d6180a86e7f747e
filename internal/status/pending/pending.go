// Package pending tracks clients whose fetch is currently in flight, so the
// coordinator never dispatches two concurrent fetches for the same client.
package pending

import (
	"sync"

	"veristat/pkg/domain"
)

// Set is a mutex-guarded membership set. An ID is in at most one in-flight
// fetch at a time: marked when the fetch is dispatched, cleared when it
// settles, success or failure.
type Set struct {
	mu  sync.Mutex
	ids map[domain.ClientID]struct{}
}

// New constructs an empty pending set.
func New() *Set {
	return &Set{ids: make(map[domain.ClientID]struct{})}
}

// IsPending reports whether a fetch for id is in flight.
func (s *Set) IsPending(id domain.ClientID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// MarkPending records that a fetch for id has been dispatched.
func (s *Set) MarkPending(id domain.ClientID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

// ClearPending records that the fetch for id has settled.
func (s *Set) ClearPending(id domain.ClientID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

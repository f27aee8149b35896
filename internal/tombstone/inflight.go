package tombstone

import (
	"sync"

	"github.com/google/uuid"
)

// InFlightSet tracks record identifiers with a locally outstanding write.
// External change notifications for a tracked identifier are ignored until
// the write settles, which breaks the overwrite loop between the local write
// and its own echo.
type InFlightSet struct {
	mu  sync.Mutex
	ids map[uuid.UUID]int
}

// NewInFlightSet creates an empty set.
func NewInFlightSet() *InFlightSet {
	return &InFlightSet{ids: make(map[uuid.UUID]int)}
}

// Track marks id as in flight and returns a release function. Callers defer
// the release immediately so the id is removed on every exit path, success or
// failure. The count tolerates overlapping writes to the same id.
func (s *InFlightSet) Track(id uuid.UUID) func() {
	s.mu.Lock()
	s.ids[id]++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.ids[id] <= 1 {
				delete(s.ids, id)
			} else {
				s.ids[id]--
			}
		})
	}
}

// Contains reports whether id has an outstanding local write.
func (s *InFlightSet) Contains(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

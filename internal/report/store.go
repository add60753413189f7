package report

import "sync"

// Store is an in-memory projection of report state keyed by correlation
// id. It is safe for unbounded concurrent callers: ingress writers, the
// worker, and status readers. Writes are unconditional last-write-wins
// overwrites, which is what makes pipeline re-runs after broker
// redelivery idempotent.
//
// Entries are never deleted and live for the process lifetime only;
// state is lost on restart.
type Store struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewStore creates an empty report state store.
func NewStore() *Store {
	return &Store{states: make(map[string]State)}
}

// Set records the state for a correlation id, overwriting any previous
// value. The latest write always wins regardless of arrival order.
func (s *Store) Set(correlationID string, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[correlationID] = state
}

// Get returns the state for a correlation id and whether it exists.
func (s *Store) Get(correlationID string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[correlationID]
	return state, ok
}

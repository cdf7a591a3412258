package store

import (
	"sync"

	"github.com/technicia/chat-bfa/internal/chat/domain"
)

// Store owns the state of one chat session.
type Store struct {
	id    string
	mu    sync.Mutex
	state domain.SessionState
}

// New creates an empty session store.
func New(id string) *Store {
	return &Store{id: id, state: domain.SessionState{ID: id, Messages: []domain.Message{}}}
}

// ID returns the session id.
func (s *Store) ID() string {
	return s.id
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Dispatch applies actions in order and returns the resulting state.
func (s *Store) Dispatch(actions ...Action) domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range actions {
		s.state = Reduce(s.state, a)
	}
	return s.state.Clone()
}

// Update runs decide against the current state and applies the actions it
// returns, atomically. When decide fails nothing is applied.
// It is how callers check a flag and set it without a race.
func (s *Store) Update(decide func(domain.SessionState) ([]Action, error)) (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions, err := decide(s.state)
	if err != nil {
		return s.state.Clone(), err
	}
	for _, a := range actions {
		s.state = Reduce(s.state, a)
	}
	return s.state.Clone(), nil
}

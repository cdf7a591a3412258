package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/technicia/chat-bfa/internal/domain"
	"github.com/technicia/chat-bfa/internal/infra/cache"
)

// Registry keeps the live sessions. Sessions that go unused for the TTL are
// dropped; there is no persistence.
type Registry struct {
	mu       sync.Mutex
	sessions *cache.InMemory[*Store]
}

// NewRegistry creates a registry whose sessions expire after ttl of inactivity.
// onExpire, when non-nil, runs for every dropped session.
func NewRegistry(ttl time.Duration, onExpire func(id string)) *Registry {
	var opts []cache.Option[*Store]
	if onExpire != nil {
		opts = append(opts, cache.WithEvictHook(func(id string, _ *Store) { onExpire(id) }))
	}
	return &Registry{sessions: cache.New[*Store](ttl, opts...)}
}

// Create starts a new empty session.
func (r *Registry) Create() *Store {
	s := New(uuid.NewString())
	r.sessions.Set(s.ID(), s)
	return s
}

// Put registers a session under a fixed id, replacing any previous one.
// Internal sessions such as the folder watcher's use fixed ids.
func (r *Registry) Put(id string) *Store {
	s := New(id)
	r.sessions.Set(id, s)
	return s
}

// Ensure returns the session with the given id, starting it when absent.
// created reports whether a new session was started.
func (r *Registry) Ensure(id string) (s *Store, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions.Get(id); ok {
		return s, false
	}
	return r.Put(id), true
}

// Get returns a live session.
func (r *Registry) Get(id string) (*Store, error) {
	s, ok := r.sessions.Get(id)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "session", ID: id}
	}
	return s, nil
}

// Delete ends a session.
func (r *Registry) Delete(id string) {
	r.sessions.Delete(id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Close stops background expiry.
func (r *Registry) Close() {
	r.sessions.Close()
}

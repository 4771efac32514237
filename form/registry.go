package form

import (
	"sync"
	"time"
)

// Registry holds the open sessions of the admin dashboard.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]Controller
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry creates a Registry whose sessions expire after ttl of inactivity.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]Controller),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Add registers c under its ID.
func (r *Registry) Add(c Controller) {
	r.mu.Lock()
	r.sessions[c.ID()] = c
	r.mu.Unlock()
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[id]
	return c, ok
}

// Remove forgets the session with the given id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Expire removes and returns sessions idle for longer than the TTL, and
// sessions that are already closed. The caller cancels the open ones.
func (r *Registry) Expire() []Controller {
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []Controller
	for id, c := range r.sessions {
		if c.State().Closed || c.Touched().Before(cutoff) {
			expired = append(expired, c)
			delete(r.sessions, id)
		}
	}
	return expired
}

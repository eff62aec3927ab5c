package session

import "sync"

// registry maps identifiers to started sessions. It has its own lock,
// independent of any session's lock, so insert and remove from one
// session's transitions never order against another session's internals.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*Session)}
}

// insert registers a session under id, reporting false when another
// session already holds it. Started identifiers are unique; the caller
// rejects the duplicate start rather than overwrite.
func (r *registry) insert(id string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[id]; exists {
		return false
	}
	r.sessions[id] = s
	return true
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *registry) lookup(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

func (r *registry) identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

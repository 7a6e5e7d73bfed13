package session

import (
	"sync"
)

// maxSessions bounds how many concurrent sessions one process keeps; the
// oldest idle session is evicted when the cap is hit.
const maxSessions = 100

// Store holds the live sessions, keyed by session ID.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore constructs an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a fresh empty session.
func (st *Store) Create() *Session {
	s := newSession()

	st.mu.Lock()
	if len(st.sessions) >= maxSessions {
		st.evictOldestLocked()
	}
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session with the given ID.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Delete drops a session from the store.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *Store) evictOldestLocked() {
	var oldest *Session
	for _, s := range st.sessions {
		if s.Busy() {
			continue
		}
		if oldest == nil || s.CreatedAt.Before(oldest.CreatedAt) {
			oldest = s
		}
	}
	if oldest != nil {
		delete(st.sessions, oldest.ID)
	}
}

package session

import (
	"sync"
	"time"
)

// Store keeps live sessions keyed by ID. Sessions are created on first use
// and reaped when their TTL passes.
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// EnsureSession returns the session for id, creating it when absent. An
// empty id always yields a fresh session with a generated ID. Existing
// sessions have their TTL renewed.
func (store *Store) EnsureSession(id string, ttl time.Duration) (*Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if id != "" {
		if sess, ok := store.sessions[id]; ok {
			sess.Expire(ttl)
			return sess, nil
		}
	}
	sess, err := NewSession(id, ttl)
	if err != nil {
		return nil, err
	}
	store.sessions[sess.ID()] = sess
	return sess, nil
}

// GetSession returns the session for id, or nil when it does not exist.
func (store *Store) GetSession(id string) *Session {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.sessions[id]
}

// Drop removes a session from the store.
func (store *Store) Drop(id string) {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.sessions, id)
}

// Reap removes expired sessions and reports how many were dropped.
func (store *Store) Reap() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	n := 0
	for id, sess := range store.sessions {
		if sess.Expired() {
			delete(store.sessions, id)
			n++
		}
	}
	return n
}

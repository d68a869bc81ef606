package engine

import (
	"sync"
	"time"

	"github.com/labyrinthia/engine/internal/locks"
)

// registry is the mutex-guarded map of live games.
type registry struct {
	mu    sync.Mutex
	games map[locks.Key]*session
}

// add registers a session, reporting false when the key is already live.
func (r *registry) add(key locks.Key, sess *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.games[key]; exists {
		return false
	}
	r.games[key] = sess
	return true
}

func (r *registry) get(key locks.Key) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.games[key]
}

// touch returns the session and bumps its last-access time.
func (r *registry) touch(key locks.Key, now time.Time) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess := r.games[key]
	if sess != nil {
		sess.lastAccess = now
	}
	return sess
}

// remove unregisters and returns the session, nil when absent.
func (r *registry) remove(key locks.Key) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess := r.games[key]
	delete(r.games, key)
	return sess
}

func (r *registry) keys() []locks.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]locks.Key, 0, len(r.games))
	for key := range r.games {
		keys = append(keys, key)
	}
	return keys
}

// staleKeys lists games whose last access predates the cutoff.
func (r *registry) staleKeys(cutoff time.Time) []locks.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []locks.Key
	for key, sess := range r.games {
		if sess.lastAccess.Before(cutoff) {
			stale = append(stale, key)
		}
	}
	return stale
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games)
}

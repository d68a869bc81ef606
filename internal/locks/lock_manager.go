package locks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Acquisitions that wait longer than this are logged as warnings; in
// steady state per-game locks are uncontested.
const slowAcquireThreshold = 100 * time.Millisecond

// Key identifies one game's lock.
type Key struct {
	UserID string
	GameID string
}

// Info is a point-in-time view of one lock's bookkeeping.
type Info struct {
	LastAccess        time.Time
	AccessCount       int64
	CurrentOperation  string
	CurrentAcquiredAt time.Time
	LastWaitMs        float64
	LastHoldMs        float64
	Held              bool
}

// Release ends a scoped acquisition. Calling it more than once is safe.
type Release func()

type gameLock struct {
	sem chan struct{} // capacity 1

	mu                sync.Mutex
	lastAccess        time.Time
	accessCount       int64
	currentOperation  string
	currentAcquiredAt time.Time
	lastWaitMs        float64
	lastHoldMs        float64
	held              bool
}

// Manager hands out one mutex per (userID, gameID) pair and keeps
// wait/hold accounting for each. Every state mutation in the engine
// happens under one of these locks.
type Manager struct {
	log   *zap.Logger
	clock func() time.Time

	mu    sync.Mutex
	locks map[Key]*gameLock
}

// ManagerConfig holds configuration for the lock manager.
type ManagerConfig struct {
	Logger *zap.Logger
	// Now is optional and defaults to time.Now.
	Now func() time.Time
}

// NewManager creates a lock manager.
func NewManager(cfg *ManagerConfig) *Manager {
	m := &Manager{locks: make(map[Key]*gameLock)}
	if cfg != nil {
		m.log = cfg.Logger
		m.clock = cfg.Now
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	return m
}

// Lock acquires the game's mutex, blocking until it is free or ctx is
// done. The returned release must be called on every exit path;
// deferring it immediately is the expected usage.
func (m *Manager) Lock(ctx context.Context, userID, gameID, operation string) (Release, error) {
	lock := m.lockFor(userID, gameID)

	start := m.clock()
	select {
	case lock.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	acquiredAt := m.clock()
	wait := acquiredAt.Sub(start)

	lock.mu.Lock()
	lock.lastAccess = acquiredAt
	lock.accessCount++
	lock.currentOperation = operation
	lock.currentAcquiredAt = acquiredAt
	lock.lastWaitMs = durationMs(wait)
	lock.held = true
	lock.mu.Unlock()

	if wait > slowAcquireThreshold {
		m.log.Warn("slow game lock acquisition",
			zap.String("user_id", userID),
			zap.String("game_id", gameID),
			zap.String("operation", operation),
			zap.Duration("waited", wait))
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			now := m.clock()
			lock.mu.Lock()
			lock.lastHoldMs = durationMs(now.Sub(lock.currentAcquiredAt))
			lock.currentOperation = ""
			lock.currentAcquiredAt = time.Time{}
			lock.lastAccess = now
			lock.held = false
			lock.mu.Unlock()
			<-lock.sem
		})
	}
	return release, nil
}

// Info returns the bookkeeping view for one lock. ok is false when no
// lock exists for the pair.
func (m *Manager) Info(userID, gameID string) (Info, bool) {
	m.mu.Lock()
	lock, ok := m.locks[Key{UserID: userID, GameID: gameID}]
	m.mu.Unlock()
	if !ok {
		return Info{}, false
	}

	lock.mu.Lock()
	defer lock.mu.Unlock()
	return Info{
		LastAccess:        lock.lastAccess,
		AccessCount:       lock.accessCount,
		CurrentOperation:  lock.currentOperation,
		CurrentAcquiredAt: lock.currentAcquiredAt,
		LastWaitMs:        lock.lastWaitMs,
		LastHoldMs:        lock.lastHoldMs,
		Held:              lock.held,
	}, true
}

// Remove drops a lock outright. Used when a game is closed; the caller
// must not hold the lock it removes.
func (m *Manager) Remove(userID, gameID string) {
	m.mu.Lock()
	delete(m.locks, Key{UserID: userID, GameID: gameID})
	m.mu.Unlock()
}

// CleanupUnusedLocks removes locks that are not held and whose last
// access is older than timeout. Returns the number removed.
func (m *Manager) CleanupUnusedLocks(timeout time.Duration) int {
	cutoff := m.clock().Add(-timeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, lock := range m.locks {
		lock.mu.Lock()
		idle := !lock.held && lock.lastAccess.Before(cutoff)
		lock.mu.Unlock()
		if idle {
			delete(m.locks, key)
			removed++
		}
	}
	if removed > 0 {
		m.log.Debug("cleaned up idle game locks", zap.Int("removed", removed))
	}
	return removed
}

// Len returns the number of tracked locks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *Manager) lockFor(userID, gameID string) *gameLock {
	key := Key{UserID: userID, GameID: gameID}

	m.mu.Lock()
	defer m.mu.Unlock()
	if lock, ok := m.locks[key]; ok {
		return lock
	}
	lock := &gameLock{
		sem:        make(chan struct{}, 1),
		lastAccess: m.clock(),
	}
	m.locks[key] = lock
	return lock
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// Package lock provides per-player locking for balance and prestige mutations.
// Profile records have no concurrent writers under single-threaded dispatch, but
// the repository is shared with the leaderboard ticker, so every mutation path
// serializes on the owning player's name.
package lock

import (
	"strings"
	"sync"
)

// playerMutex wraps a mutex stored per player name.
type playerMutex struct {
	mu sync.Mutex
}

// PlayerLock provides per-player locking keyed by player name
// (case-insensitive, matching session lookup).
type PlayerLock struct {
	locks sync.Map // map[string]*playerMutex
	pool  sync.Pool
}

// NewPlayerLock creates a new PlayerLock instance.
func NewPlayerLock() *PlayerLock {
	return &PlayerLock{
		pool: sync.Pool{
			New: func() any {
				return &playerMutex{}
			},
		},
	}
}

// getLock retrieves or creates a mutex for the given player.
func (pl *PlayerLock) getLock(name string) *playerMutex {
	key := strings.ToLower(name)

	if v, ok := pl.locks.Load(key); ok {
		return v.(*playerMutex)
	}

	newLock := pl.pool.Get().(*playerMutex)

	// Store or load existing (handles race condition)
	actual, loaded := pl.locks.LoadOrStore(key, newLock)
	if loaded {
		// Another goroutine created the lock first, return ours to pool
		pl.pool.Put(newLock)
	}
	return actual.(*playerMutex)
}

// Lock acquires the lock for a player.
// This should be called before any profile-modifying operation.
func (pl *PlayerLock) Lock(name string) {
	pl.getLock(name).mu.Lock()
}

// Unlock releases the lock for a player.
func (pl *PlayerLock) Unlock(name string) {
	if v, ok := pl.locks.Load(strings.ToLower(name)); ok {
		v.(*playerMutex).mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (pl *PlayerLock) TryLock(name string) bool {
	return pl.getLock(name).mu.TryLock()
}

// WithLock executes a function while holding the player's lock.
func (pl *PlayerLock) WithLock(name string, fn func() error) error {
	pl.Lock(name)
	defer pl.Unlock(name)
	return fn()
}

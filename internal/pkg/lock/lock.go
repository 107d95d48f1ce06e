// Package lock provides per-player locking for concurrent coin and
// inventory operations.
package lock

import (
	"context"
	"sync"
	"time"
)

// PlayerLock provides per-player mutual exclusion to prevent race
// conditions during balance and inventory mutations. A zero number of
// players never blocks another: locks are independent per player ID.
type PlayerLock struct {
	locks sync.Map // map[int64]*sync.Mutex
}

// NewPlayerLock creates a new PlayerLock instance.
func NewPlayerLock() *PlayerLock {
	return &PlayerLock{}
}

// getLock retrieves or creates the mutex for the given player ID.
func (pl *PlayerLock) getLock(playerID int64) *sync.Mutex {
	if v, ok := pl.locks.Load(playerID); ok {
		return v.(*sync.Mutex)
	}
	actual, _ := pl.locks.LoadOrStore(playerID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// Lock acquires the lock for a player. Call before any balance or
// inventory mutating operation.
func (pl *PlayerLock) Lock(playerID int64) {
	pl.getLock(playerID).Lock()
}

// Unlock releases the lock for a player.
func (pl *PlayerLock) Unlock(playerID int64) {
	if v, ok := pl.locks.Load(playerID); ok {
		v.(*sync.Mutex).Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired.
func (pl *PlayerLock) TryLock(playerID int64) bool {
	return pl.getLock(playerID).TryLock()
}

// LockWithTimeout attempts to acquire the lock, giving up after the
// timeout. Returns true if the lock was acquired.
func (pl *PlayerLock) LockWithTimeout(ctx context.Context, playerID int64, timeout time.Duration) bool {
	mu := pl.getLock(playerID)

	done := make(chan struct{})
	go func() {
		mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		return true
	case <-timeoutCtx.Done():
		// The waiting goroutine will eventually acquire the mutex;
		// release it immediately so nothing stays held.
		go func() {
			<-done
			mu.Unlock()
		}()
		return false
	}
}

// WithLock executes fn while holding the player's lock.
func (pl *PlayerLock) WithLock(playerID int64, fn func() error) error {
	pl.Lock(playerID)
	defer pl.Unlock(playerID)
	return fn()
}

// WithLockContext executes fn while holding the player's lock, giving up
// if the lock cannot be acquired within the timeout or the context is
// cancelled while waiting.
func (pl *PlayerLock) WithLockContext(ctx context.Context, playerID int64, timeout time.Duration, fn func() error) error {
	if !pl.LockWithTimeout(ctx, playerID, timeout) {
		return ErrLockTimeout
	}
	defer pl.Unlock(playerID)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}

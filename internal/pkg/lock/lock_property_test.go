// Property-based tests for concurrent coin balance safety under
// per-player locking.
package lock

import (
	"sync"
	"sync/atomic"
	"testing"

	"pgregory.net/rapid"
)

// TestConcurrentBalanceSafetyProperty checks that for any set of concurrent
// balance mutations on the same player, the final balance is consistent
// with sequential execution of all operations.
func TestConcurrentBalanceSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expected := initialBalance
		for i := 0; i < numOps; i++ {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expected += amounts[i]
		}

		playerID := rapid.Int64Range(1, 1000000).Draw(t, "playerID")

		pl := NewPlayerLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				pl.Lock(playerID)
				defer pl.Unlock(playerID)
				balance += amount
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch: expected %d, got %d (initial=%d, numOps=%d)",
				expected, balance, initialBalance, numOps)
		}
	})
}

// TestWithLockSerializesOperations checks that WithLock serializes
// read-modify-write cycles.
func TestWithLockSerializesOperations(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")
		amountPerOp := rapid.Int64Range(1, 100).Draw(t, "amountPerOp")
		playerID := rapid.Int64Range(1, 1000000).Draw(t, "playerID")

		expected := initialBalance + int64(numOps)*amountPerOp

		pl := NewPlayerLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = pl.WithLock(playerID, func() error {
					balance += amountPerOp
					return nil
				})
			}()
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch with WithLock: expected %d, got %d", expected, balance)
		}
	})
}

// TestIndependentPlayerLocks checks that locks for different players do
// not interfere with each other.
func TestIndependentPlayerLocks(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numPlayers := rapid.IntRange(2, 10).Draw(t, "numPlayers")
		opsPerPlayer := rapid.IntRange(5, 20).Draw(t, "opsPerPlayer")

		balances := make(map[int64]*int64)
		expected := make(map[int64]int64)
		for i := 0; i < numPlayers; i++ {
			playerID := int64(i + 1)
			b := rapid.Int64Range(1000, 10000).Draw(t, "initialBalance")
			balances[playerID] = &b
			expected[playerID] = b + int64(opsPerPlayer)*10
		}

		pl := NewPlayerLock()

		var wg sync.WaitGroup
		wg.Add(numPlayers * opsPerPlayer)
		for playerID := int64(1); playerID <= int64(numPlayers); playerID++ {
			for j := 0; j < opsPerPlayer; j++ {
				go func(pid int64) {
					defer wg.Done()
					pl.Lock(pid)
					defer pl.Unlock(pid)
					*balances[pid] += 10
				}(playerID)
			}
		}
		wg.Wait()

		for playerID := int64(1); playerID <= int64(numPlayers); playerID++ {
			if *balances[playerID] != expected[playerID] {
				t.Fatalf("player %d balance mismatch: expected %d, got %d",
					playerID, expected[playerID], *balances[playerID])
			}
		}
	})
}

// TestTryLockMutualExclusion checks that racing TryLock calls admit at
// least one winner and leave the lock free afterwards.
func TestTryLockMutualExclusion(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		playerID := rapid.Int64Range(1, 1000000).Draw(t, "playerID")
		numAttempts := rapid.IntRange(5, 20).Draw(t, "numAttempts")

		pl := NewPlayerLock()

		var successCount atomic.Int32
		var wg sync.WaitGroup
		wg.Add(numAttempts)
		startCh := make(chan struct{})

		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				<-startCh
				if pl.TryLock(playerID) {
					successCount.Add(1)
					pl.Unlock(playerID)
				}
			}()
		}

		close(startCh)
		wg.Wait()

		if successCount.Load() < 1 {
			t.Fatalf("at least one TryLock should succeed, got %d", successCount.Load())
		}

		if !pl.TryLock(playerID) {
			t.Fatal("lock should be available after all attempts complete")
		}
		pl.Unlock(playerID)
	})
}

// TestLockUnlockSymmetry checks that lock/unlock cycles leave the lock free.
func TestLockUnlockSymmetry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		playerID := rapid.Int64Range(1, 1000000).Draw(t, "playerID")
		numCycles := rapid.IntRange(1, 50).Draw(t, "numCycles")

		pl := NewPlayerLock()
		for i := 0; i < numCycles; i++ {
			pl.Lock(playerID)
			pl.Unlock(playerID)
		}

		if !pl.TryLock(playerID) {
			t.Fatal("lock should be available after symmetric lock/unlock cycles")
		}
		pl.Unlock(playerID)
	})
}

package bet

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	resolver := NewEngineWithCoin(newFakeStore(), nil, func() bool { return true })
	return NewRegistry(&fakeRenderer{}, resolver, Config{})
}

func TestRegistryBeginAndFind(t *testing.T) {
	r := newTestRegistry()
	key := ChannelKey{ChatID: 10}

	s, err := r.Begin(context.Background(), key, partyA, partyB)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 1, r.Len())

	found, err := r.Find(key, partyA.TelegramID)
	require.NoError(t, err)
	assert.Same(t, s, found)

	found, err = r.Find(key, partyB.TelegramID)
	require.NoError(t, err)
	assert.Same(t, s, found)

	_, err = r.Find(key, 999)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	_, err = r.Find(ChannelKey{ChatID: 11}, partyA.TelegramID)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestRegistryRejectsSelfBet(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Begin(context.Background(), ChannelKey{ChatID: 10}, partyA, partyA)
	assert.ErrorIs(t, err, ErrSelfBet)
	assert.Zero(t, r.Len())
}

func TestRegistryOneSessionPerParty(t *testing.T) {
	r := newTestRegistry()
	key := ChannelKey{ChatID: 10}
	carol := Party{TelegramID: 303, PlayerID: 3, Name: "carol"}
	dave := Party{TelegramID: 404, PlayerID: 4, Name: "dave"}

	_, err := r.Begin(context.Background(), key, partyA, partyB)
	require.NoError(t, err)

	// Either participant blocks a second bet, even in another channel.
	_, err = r.Begin(context.Background(), key, partyA, carol)
	assert.ErrorIs(t, err, ErrAlreadyNegotiating)
	_, err = r.Begin(context.Background(), ChannelKey{ChatID: 11}, carol, partyB)
	assert.ErrorIs(t, err, ErrAlreadyNegotiating)

	// Unrelated parties are free to bet.
	_, err = r.Begin(context.Background(), key, carol, dave)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryFreesPartiesOnTerminalSession(t *testing.T) {
	r := newTestRegistry()
	key := ChannelKey{ChatID: 10}

	s, err := r.Begin(context.Background(), key, partyA, partyB)
	require.NoError(t, err)
	require.NoError(t, s.Cancel(partyA.TelegramID, ""))

	// The cancelled session is pruned lazily and no longer findable.
	_, err = r.Find(key, partyA.TelegramID)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	// Both parties may start over immediately.
	_, err = r.Begin(context.Background(), key, partyA, partyB)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryPrune(t *testing.T) {
	r := newTestRegistry()

	s1, err := r.Begin(context.Background(), ChannelKey{ChatID: 10}, partyA, partyB)
	require.NoError(t, err)
	carol := Party{TelegramID: 303, PlayerID: 3, Name: "carol"}
	dave := Party{TelegramID: 404, PlayerID: 4, Name: "dave"}
	_, err = r.Begin(context.Background(), ChannelKey{ChatID: 11}, carol, dave)
	require.NoError(t, err)

	require.NoError(t, s1.Cancel(partyA.TelegramID, ""))
	r.Prune()
	assert.Equal(t, 1, r.Len())
}

func TestRegistryClose(t *testing.T) {
	r := newTestRegistry()

	s1, err := r.Begin(context.Background(), ChannelKey{ChatID: 10}, partyA, partyB)
	require.NoError(t, err)
	carol := Party{TelegramID: 303, PlayerID: 3, Name: "carol"}
	dave := Party{TelegramID: 404, PlayerID: 4, Name: "dave"}
	s2, err := r.Begin(context.Background(), ChannelKey{ChatID: 11}, carol, dave)
	require.NoError(t, err)

	r.Close()

	assert.Equal(t, PhaseCancelled, s1.Phase())
	assert.Equal(t, "The bet was interrupted by a restart.", s1.Reason())
	assert.Equal(t, PhaseCancelled, s2.Phase())
}

func TestRegistryConcurrentBeginSingleWinner(t *testing.T) {
	r := newTestRegistry()
	key := ChannelKey{ChatID: 10}

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Begin(context.Background(), key, partyA, partyB)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	created := 0
	for err := range results {
		if err == nil {
			created++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyNegotiating)
		}
	}
	assert.Equal(t, 1, created, "exactly one concurrent begin may win")
	assert.Equal(t, 1, r.Len())
}

package bet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRemoveItem(t *testing.T) {
	renderer := &fakeRenderer{}
	s := newTestSession(renderer, newFakeStore())

	require.NoError(t, s.AddItem(partyA.TelegramID, 11))
	require.NoError(t, s.AddItem(partyA.TelegramID, 12))
	require.NoError(t, s.AddItem(partyB.TelegramID, 21))

	snap := s.Snapshot()
	assert.Equal(t, []int64{11, 12}, snap.A.Items)
	assert.Equal(t, []int64{21}, snap.B.Items)

	require.NoError(t, s.RemoveItem(partyA.TelegramID, 11))
	snap = s.Snapshot()
	assert.Equal(t, []int64{12}, snap.A.Items)
}

func TestAddItemDuplicate(t *testing.T) {
	s := newTestSession(&fakeRenderer{}, newFakeStore())

	require.NoError(t, s.AddItem(partyA.TelegramID, 11))
	assert.ErrorIs(t, s.AddItem(partyA.TelegramID, 11), ErrDuplicateItem)

	// The same instance on the other side is fine; ownership checks live
	// in the handler layer.
	assert.NoError(t, s.AddItem(partyB.TelegramID, 11))
}

func TestRemoveItemNotFound(t *testing.T) {
	s := newTestSession(&fakeRenderer{}, newFakeStore())
	assert.ErrorIs(t, s.RemoveItem(partyA.TelegramID, 99), ErrItemNotFound)
}

func TestNonParticipantRejected(t *testing.T) {
	s := newTestSession(&fakeRenderer{}, newFakeStore())

	assert.ErrorIs(t, s.AddItem(999, 11), ErrNotParticipant)
	assert.ErrorIs(t, s.RemoveItem(999, 11), ErrNotParticipant)
	assert.ErrorIs(t, s.Lock(999), ErrNotParticipant)
	assert.ErrorIs(t, s.Cancel(999, ""), ErrNotParticipant)
}

func TestLockedProposalIsImmutable(t *testing.T) {
	s := newTestSession(&fakeRenderer{}, newFakeStore())

	require.NoError(t, s.AddItem(partyA.TelegramID, 11))
	require.NoError(t, s.Lock(partyA.TelegramID))

	assert.ErrorIs(t, s.AddItem(partyA.TelegramID, 12), ErrProposalLocked)
	assert.ErrorIs(t, s.RemoveItem(partyA.TelegramID, 11), ErrProposalLocked)
	assert.ErrorIs(t, s.Lock(partyA.TelegramID), ErrAlreadyLocked)

	// The other side keeps editing until it locks itself.
	assert.NoError(t, s.AddItem(partyB.TelegramID, 21))

	snap := s.Snapshot()
	assert.Equal(t, []int64{11}, snap.A.Items)
	assert.True(t, snap.A.Locked)
	assert.False(t, snap.B.Locked)
	assert.Equal(t, PhaseBuilding, snap.Phase)
}

func TestBothLockedAdvancesToLockedPhase(t *testing.T) {
	s := newTestSession(&fakeRenderer{}, newFakeStore())

	require.NoError(t, s.AddItem(partyA.TelegramID, 11))
	require.NoError(t, s.Lock(partyA.TelegramID))
	require.NoError(t, s.Lock(partyB.TelegramID))

	assert.Equal(t, PhaseLocked, s.Phase())
}

func TestBothEmptyProposalsAutoCancel(t *testing.T) {
	s := newTestSession(&fakeRenderer{}, newFakeStore())

	require.NoError(t, s.Lock(partyA.TelegramID))
	require.NoError(t, s.Lock(partyB.TelegramID))

	assert.Equal(t, PhaseCancelled, s.Phase())
	assert.Equal(t, "Nothing has been proposed in the bet, it has been cancelled.", s.Reason())
}

func TestOneEmptyProposalStillLocks(t *testing.T) {
	s := newTestSession(&fakeRenderer{}, newFakeStore())

	require.NoError(t, s.AddItem(partyA.TelegramID, 11))
	require.NoError(t, s.Lock(partyA.TelegramID))
	require.NoError(t, s.Lock(partyB.TelegramID))

	assert.Equal(t, PhaseLocked, s.Phase())
}

func TestConfirmRequiresLockedPhase(t *testing.T) {
	s := newTestSession(&fakeRenderer{}, newFakeStore())

	_, err := s.Confirm(context.Background(), partyA.TelegramID)
	assert.ErrorIs(t, err, ErrNotLocked)
}

func TestConfirmResolvesOnce(t *testing.T) {
	store := newFakeStore()
	store.own(11, partyA.PlayerID)
	store.own(21, partyB.PlayerID)
	store.own(22, partyB.PlayerID)

	// Coin always picks party A, so B's items move to A.
	s := newTestSession(&fakeRenderer{}, store)

	require.NoError(t, s.AddItem(partyA.TelegramID, 11))
	require.NoError(t, s.AddItem(partyB.TelegramID, 21))
	require.NoError(t, s.AddItem(partyB.TelegramID, 22))
	require.NoError(t, s.Lock(partyA.TelegramID))
	require.NoError(t, s.Lock(partyB.TelegramID))

	out, err := s.Confirm(context.Background(), partyA.TelegramID)
	require.NoError(t, err)
	assert.Nil(t, out, "single confirm must not resolve")
	assert.Equal(t, PhaseLocked, s.Phase())

	out, err = s.Confirm(context.Background(), partyB.TelegramID)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, PhaseResolved, s.Phase())
	assert.Equal(t, partyA, out.Winner)
	assert.Equal(t, partyB, out.Loser)
	assert.Equal(t, 2, out.Moved)
	assert.True(t, out.Succeeded)

	assert.Equal(t, partyA.PlayerID, store.ownerOf(21))
	assert.Equal(t, partyA.PlayerID, store.ownerOf(22))
	assert.Equal(t, partyA.PlayerID, store.ownerOf(11))
	assert.Equal(t, 1, store.calls, "resolution runs exactly once")
}

func TestConfirmIdempotent(t *testing.T) {
	s := newTestSession(&fakeRenderer{}, newFakeStore())

	require.NoError(t, s.AddItem(partyA.TelegramID, 11))
	require.NoError(t, s.Lock(partyA.TelegramID))
	require.NoError(t, s.Lock(partyB.TelegramID))

	for i := 0; i < 3; i++ {
		out, err := s.Confirm(context.Background(), partyA.TelegramID)
		require.NoError(t, err)
		assert.Nil(t, out)
	}
	assert.Equal(t, PhaseLocked, s.Phase())
}

func TestConfirmAfterResolvedIsTerminal(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(&fakeRenderer{}, store)

	require.NoError(t, s.AddItem(partyA.TelegramID, 11))
	require.NoError(t, s.AddItem(partyB.TelegramID, 21))
	require.NoError(t, s.Lock(partyA.TelegramID))
	require.NoError(t, s.Lock(partyB.TelegramID))
	_, err := s.Confirm(context.Background(), partyA.TelegramID)
	require.NoError(t, err)
	_, err = s.Confirm(context.Background(), partyB.TelegramID)
	require.NoError(t, err)

	_, err = s.Confirm(context.Background(), partyA.TelegramID)
	assert.ErrorIs(t, err, ErrSessionTerminal)
	assert.Equal(t, 1, store.calls)
}

func TestCancelBeforeLock(t *testing.T) {
	s := newTestSession(&fakeRenderer{}, newFakeStore())

	require.NoError(t, s.AddItem(partyA.TelegramID, 11))
	require.NoError(t, s.Cancel(partyB.TelegramID, ""))

	assert.Equal(t, PhaseCancelled, s.Phase())
	assert.Equal(t, "The bet has been cancelled.", s.Reason())

	assert.ErrorIs(t, s.AddItem(partyA.TelegramID, 12), ErrSessionTerminal)
	assert.ErrorIs(t, s.Lock(partyA.TelegramID), ErrSessionTerminal)
	_, err := s.Confirm(context.Background(), partyA.TelegramID)
	assert.ErrorIs(t, err, ErrSessionTerminal)
	assert.ErrorIs(t, s.Cancel(partyA.TelegramID, ""), ErrSessionTerminal)
}

func TestCancelDuringLockedPhase(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(&fakeRenderer{}, store)

	require.NoError(t, s.AddItem(partyA.TelegramID, 11))
	require.NoError(t, s.Lock(partyA.TelegramID))
	require.NoError(t, s.Lock(partyB.TelegramID))
	_, err := s.Confirm(context.Background(), partyA.TelegramID)
	require.NoError(t, err)

	// One side accepted; the other backs out instead.
	require.NoError(t, s.Cancel(partyB.TelegramID, ""))
	assert.Equal(t, PhaseCancelled, s.Phase())
	assert.Zero(t, store.calls, "no resolution on cancel")
}

func TestNegotiationTimeout(t *testing.T) {
	renderer := &fakeRenderer{}
	resolver := NewEngineWithCoin(newFakeStore(), nil, func() bool { return true })
	s := NewSession(10, 0, partyA, partyB, renderer, resolver, Config{
		NegotiationTimeout: 20 * time.Millisecond,
		RefreshInterval:    5 * time.Millisecond,
	})
	s.Start(context.Background())

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("refresh task did not exit")
	}

	assert.Equal(t, PhaseCancelled, s.Phase())
	assert.Equal(t, "The bet timed out.", s.Reason())
}

func TestConfirmTimeout(t *testing.T) {
	resolver := NewEngineWithCoin(newFakeStore(), nil, func() bool { return true })
	s := NewSession(10, 0, partyA, partyB, &fakeRenderer{}, resolver, Config{
		ConfirmTimeout:  20 * time.Millisecond,
		RefreshInterval: 5 * time.Millisecond,
	})
	s.Start(context.Background())

	require.NoError(t, s.AddItem(partyA.TelegramID, 11))
	require.NoError(t, s.Lock(partyA.TelegramID))
	require.NoError(t, s.Lock(partyB.TelegramID))

	assert.Eventually(t, func() bool {
		return s.Phase() == PhaseCancelled
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "The bet timed out.", s.Reason())

	_, err := s.Confirm(context.Background(), partyA.TelegramID)
	assert.ErrorIs(t, err, ErrSessionTerminal)
}

func TestRefreshStopsOncePhaseLeavesBuilding(t *testing.T) {
	resolver := NewEngineWithCoin(newFakeStore(), nil, func() bool { return true })
	s := NewSession(10, 0, partyA, partyB, &fakeRenderer{}, resolver, Config{
		RefreshInterval: 5 * time.Millisecond,
	})
	s.Start(context.Background())

	require.NoError(t, s.AddItem(partyA.TelegramID, 11))
	require.NoError(t, s.Lock(partyA.TelegramID))
	require.NoError(t, s.Lock(partyB.TelegramID))

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("refresh task kept running after the lock transition")
	}
	assert.Equal(t, PhaseLocked, s.Phase())
}

func TestRefreshRenderFailureCancels(t *testing.T) {
	renderer := &fakeRenderer{}
	resolver := NewEngineWithCoin(newFakeStore(), nil, func() bool { return true })
	s := NewSession(10, 0, partyA, partyB, renderer, resolver, Config{
		RefreshInterval: 5 * time.Millisecond,
	})
	s.Start(context.Background())
	renderer.fail(errRenderBroken)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("refresh task did not exit on render failure")
	}
	assert.Equal(t, PhaseCancelled, s.Phase())
	assert.Equal(t, "The bet errored.", s.Reason())
}

func TestShutdownCancelsNonTerminal(t *testing.T) {
	s := newTestSession(&fakeRenderer{}, newFakeStore())
	s.Start(context.Background())

	s.Shutdown()
	assert.Equal(t, PhaseCancelled, s.Phase())
	assert.Equal(t, "The bet was interrupted by a restart.", s.Reason())

	// Shutdown on a terminal session leaves it untouched.
	s.Shutdown()
	assert.Equal(t, "The bet was interrupted by a restart.", s.Reason())
}

func TestSnapshotCarriesWinner(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(&fakeRenderer{}, store)

	require.NoError(t, s.AddItem(partyB.TelegramID, 21))
	require.NoError(t, s.Lock(partyA.TelegramID))
	require.NoError(t, s.Lock(partyB.TelegramID))
	_, err := s.Confirm(context.Background(), partyA.TelegramID)
	require.NoError(t, err)
	_, err = s.Confirm(context.Background(), partyB.TelegramID)
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.True(t, snap.Finished())
	require.NotNil(t, snap.Winner)
	assert.Equal(t, partyA, *snap.Winner)
	assert.True(t, snap.Succeeded)
}

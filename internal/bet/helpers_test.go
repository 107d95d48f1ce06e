package bet

import (
	"context"
	"errors"
	"sync"
)

// fakeRenderer records snapshots and can be made to fail.
type fakeRenderer struct {
	mu        sync.Mutex
	snapshots []Snapshot
	failWith  error
}

func (r *fakeRenderer) Render(s Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.snapshots = append(r.snapshots, s)
	return nil
}

func (r *fakeRenderer) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

func (r *fakeRenderer) last() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return Snapshot{}, false
	}
	return r.snapshots[len(r.snapshots)-1], true
}

// fakeStore is an in-memory ownership table implementing ItemTransferrer.
type fakeStore struct {
	mu       sync.Mutex
	owners   map[int64]int64 // instanceID -> playerID
	failWith error
	calls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{owners: make(map[int64]int64)}
}

func (s *fakeStore) own(instanceID, playerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[instanceID] = playerID
}

func (s *fakeStore) ownerOf(instanceID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owners[instanceID]
}

func (s *fakeStore) TransferOwnershipBatch(ctx context.Context, instanceIDs []int64, toPlayerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failWith != nil {
		return s.failWith
	}
	for _, id := range instanceIDs {
		s.owners[id] = toPlayerID
	}
	return nil
}

// fakeRecorder captures recorded outcomes.
type fakeRecorder struct {
	mu      sync.Mutex
	records []recordedOutcome
}

type recordedOutcome struct {
	sessionID        string
	playerA, playerB int64
	winnerID         int64
	itemsMoved       int
	succeeded        bool
}

func (r *fakeRecorder) RecordOutcome(ctx context.Context, sessionID string, playerA, playerB, winnerID int64, itemsMoved int, succeeded bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, recordedOutcome{sessionID, playerA, playerB, winnerID, itemsMoved, succeeded})
	return nil
}

var errRenderBroken = errors.New("render broken")

var (
	partyA = Party{TelegramID: 101, PlayerID: 1, Name: "alice"}
	partyB = Party{TelegramID: 202, PlayerID: 2, Name: "bob"}
)

// newTestSession builds a session with an always-a-wins resolver and the
// default config, without starting the background task.
func newTestSession(renderer Renderer, store *fakeStore) *Session {
	resolver := NewEngineWithCoin(store, nil, func() bool { return true })
	return NewSession(10, 0, partyA, partyB, renderer, resolver, Config{})
}

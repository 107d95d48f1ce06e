package bet

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"
)

// Outcome is the result of a bet resolution.
type Outcome struct {
	Winner Party
	Loser  Party
	// Moved is how many instances changed ownership.
	Moved int
	// Succeeded reports whether the transfer fully applied.
	Succeeded bool
}

// Resolver executes the irreversible outcome of a bet.
type Resolver interface {
	Resolve(ctx context.Context, sessionID string, a, b PartyView) (Outcome, error)
}

// ItemTransferrer is the slice of the collectible store the resolution
// step needs: an all-or-nothing batch ownership transfer.
type ItemTransferrer interface {
	TransferOwnershipBatch(ctx context.Context, instanceIDs []int64, toPlayerID int64) error
}

// OutcomeRecorder persists resolved bet outcomes. Recording failures are
// logged, never fatal to the resolution.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, sessionID string, playerA, playerB, winnerID int64, itemsMoved int, succeeded bool) error
}

// Engine performs the irreversible outcome of a bet: it picks a winner
// uniformly at random and moves every staked item of the loser to the
// winner in a single atomic batch. The winner's own stake never moves.
type Engine struct {
	store    ItemTransferrer
	recorder OutcomeRecorder
	coin     func() bool
}

// NewEngine creates a resolution engine using a fair random coin.
func NewEngine(store ItemTransferrer, recorder OutcomeRecorder) *Engine {
	return &Engine{
		store:    store,
		recorder: recorder,
		coin:     func() bool { return rand.Intn(2) == 0 },
	}
}

// NewEngineWithCoin creates an engine with a fixed coin function, for tests.
func NewEngineWithCoin(store ItemTransferrer, recorder OutcomeRecorder, coin func() bool) *Engine {
	return &Engine{store: store, recorder: recorder, coin: coin}
}

// Resolve picks the winner between a and b (a wins the true side of the
// coin) and transfers the loser's staked items to the winner. The
// transfer is all-or-nothing: on failure no item has moved and the
// outcome carries Succeeded=false together with ErrResolutionFailed.
func (e *Engine) Resolve(ctx context.Context, sessionID string, a, b PartyView) (Outcome, error) {
	var out Outcome
	var loserItems []int64
	if e.coin() {
		out.Winner, out.Loser = a.Party, b.Party
		loserItems = b.Items
	} else {
		out.Winner, out.Loser = b.Party, a.Party
		loserItems = a.Items
	}
	out.Moved = len(loserItems)

	var err error
	if len(loserItems) > 0 {
		err = e.store.TransferOwnershipBatch(ctx, loserItems, out.Winner.PlayerID)
	}
	out.Succeeded = err == nil
	if err != nil {
		out.Moved = 0
		log.Error().
			Err(err).
			Str("session_id", sessionID).
			Int64("winner", out.Winner.PlayerID).
			Int64("loser", out.Loser.PlayerID).
			Int("items", len(loserItems)).
			Msg("Bet resolution transfer failed")
	}

	if e.recorder != nil {
		recErr := e.recorder.RecordOutcome(ctx, sessionID, a.Party.PlayerID, b.Party.PlayerID,
			out.Winner.PlayerID, out.Moved, out.Succeeded)
		if recErr != nil {
			log.Error().Err(recErr).Str("session_id", sessionID).Msg("Failed to record bet outcome")
		}
	}

	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}
	return out, nil
}

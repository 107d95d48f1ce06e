package bet

import "errors"

// Errors for bet negotiation. These are expected business conditions
// surfaced to the command layer, never panics.
var (
	// ErrAlreadyNegotiating is returned when a party already has a
	// non-terminal negotiation.
	ErrAlreadyNegotiating = errors.New("party already has an ongoing bet")

	// ErrNoActiveSession is returned when no non-terminal negotiation
	// exists for the party in the channel.
	ErrNoActiveSession = errors.New("no active bet in this channel")

	// ErrSessionTerminal is returned for operations on a resolved or
	// cancelled session.
	ErrSessionTerminal = errors.New("bet has already ended")

	// ErrNotParticipant is returned when a user is not one of the two
	// negotiating parties.
	ErrNotParticipant = errors.New("user is not part of this bet")

	// ErrProposalLocked is returned for item mutations after the party
	// locked their proposal.
	ErrProposalLocked = errors.New("proposal is locked and cannot be edited")

	// ErrAlreadyLocked is returned for a repeated lock call.
	ErrAlreadyLocked = errors.New("proposal is already locked")

	// ErrNotLocked is returned for a confirm before both parties locked.
	ErrNotLocked = errors.New("bet is not in the confirmation phase")

	// ErrDuplicateItem is returned when adding an item already proposed.
	ErrDuplicateItem = errors.New("item is already in the proposal")

	// ErrItemNotFound is returned when removing an item that is not proposed.
	ErrItemNotFound = errors.New("item is not in the proposal")

	// ErrSelfBet is returned when a user tries to open a bet with themselves.
	ErrSelfBet = errors.New("cannot bet with yourself")

	// ErrResolutionFailed is returned when the ownership transfer of the
	// resolution step could not be applied.
	ErrResolutionFailed = errors.New("bet resolution failed")
)

package bet

import "time"

// PartyView is a read-only projection of one party's proposal.
type PartyView struct {
	Party     Party
	Items     []int64
	Locked    bool
	Accepted  bool
	Cancelled bool
}

// Snapshot is a read-only projection of a session handed to the
// presentation layer. It never aliases session-owned state.
type Snapshot struct {
	SessionID string
	ChatID    int64
	ThreadID  int64
	Phase     Phase
	A         PartyView
	B         PartyView
	// Deadline is when the current phase times out.
	Deadline time.Time
	// Reason is the human-readable cancellation reason, empty otherwise.
	Reason string
	// Winner is set once the session is resolved.
	Winner *Party
	// Succeeded reports whether the resolution transfer fully applied.
	Succeeded bool
}

// Finished reports whether the snapshot describes a terminal session.
func (s Snapshot) Finished() bool {
	return s.Phase == PhaseResolved || s.Phase == PhaseCancelled
}

// Renderer presents a session snapshot to the two parties. It is invoked
// after every state mutation and on each background refresh tick.
type Renderer interface {
	Render(s Snapshot) error
}

// RenderFunc adapts a function to the Renderer interface.
type RenderFunc func(s Snapshot) error

// Render implements Renderer.
func (f RenderFunc) Render(s Snapshot) error { return f(s) }

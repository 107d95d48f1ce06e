package bet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Default timing for a negotiation.
const (
	DefaultNegotiationTimeout = 30 * time.Minute
	DefaultConfirmTimeout     = 15 * time.Minute
	DefaultRefreshInterval    = 15 * time.Second
)

// Phase is the lifecycle state of a negotiation session.
type Phase int

const (
	// PhaseBuilding is the initial phase: both parties edit their proposals.
	PhaseBuilding Phase = iota
	// PhaseLocked means both proposals are final, awaiting confirmation.
	PhaseLocked
	// PhaseResolved is terminal: the bet went through.
	PhaseResolved
	// PhaseCancelled is terminal: the bet was cancelled or timed out.
	PhaseCancelled
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseBuilding:
		return "building"
	case PhaseLocked:
		return "locked"
	case PhaseResolved:
		return "resolved"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase admits no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseResolved || p == PhaseCancelled
}

// Config holds the timing knobs of a negotiation session.
type Config struct {
	// NegotiationTimeout is the overall ceiling while building.
	NegotiationTimeout time.Duration
	// ConfirmTimeout is the ceiling of the confirmation phase.
	ConfirmTimeout time.Duration
	// RefreshInterval is the period of the background re-render task.
	RefreshInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.NegotiationTimeout <= 0 {
		c.NegotiationTimeout = DefaultNegotiationTimeout
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = DefaultConfirmTimeout
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	return c
}

// Session is one full negotiation between exactly two parties in one
// channel. It exclusively owns both proposals and the background refresh
// task; all state transitions happen under its mutex, so the "both
// locked" and "both accepted" checks always see the latest state.
type Session struct {
	id       string
	chatID   int64
	threadID int64

	cfg      Config
	renderer Renderer
	resolver Resolver

	mu       sync.Mutex
	phase    Phase
	a, b     bettor
	reason   string
	outcome  *Outcome
	deadline time.Time

	refreshCancel context.CancelFunc
	refreshDone   chan struct{}
	confirmTimer  *time.Timer
}

// NewSession creates a session in the Building phase. Begin on the
// registry is the normal entry point; NewSession does not register.
func NewSession(chatID, threadID int64, a, b Party, renderer Renderer, resolver Resolver, cfg Config) *Session {
	return &Session{
		id:          uuid.NewString(),
		chatID:      chatID,
		threadID:    threadID,
		cfg:         cfg.withDefaults(),
		renderer:    renderer,
		resolver:    resolver,
		phase:       PhaseBuilding,
		a:           bettor{party: a},
		b:           bettor{party: b},
		refreshDone: make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// ChatID returns the chat the session lives in.
func (s *Session) ChatID() int64 { return s.chatID }

// ThreadID returns the message thread the session lives in.
func (s *Session) ThreadID() int64 { return s.threadID }

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Reason returns the cancellation reason, empty while non-terminal.
func (s *Session) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Outcome returns the resolution outcome, nil until resolved.
func (s *Session) Outcome() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// HasParty reports whether the Telegram user is one of the two parties.
func (s *Session) HasParty(telegramID int64) bool {
	return s.a.party.TelegramID == telegramID || s.b.party.TelegramID == telegramID
}

// Parties returns both parties.
func (s *Session) Parties() (Party, Party) {
	return s.a.party, s.b.party
}

// Done is closed once the background refresh task has exited. Useful for
// joining the task during shutdown and in tests.
func (s *Session) Done() <-chan struct{} { return s.refreshDone }

// Start renders the initial view and launches the background refresh
// task. The task re-renders every RefreshInterval while Building, cancels
// the session once the negotiation ceiling is exceeded, and stops on any
// transition away from Building.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.deadline = time.Now().Add(s.cfg.NegotiationTimeout)
	refreshCtx, cancel := context.WithCancel(ctx)
	s.refreshCancel = cancel
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.render(snap)
	go s.refreshLoop(refreshCtx)
}

func (s *Session) refreshLoop(ctx context.Context) {
	defer close(s.refreshDone)
	defer func() {
		// A panic in the refresh task is fatal to this session only.
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("session_id", s.id).
				Msg("Bet refresh task panicked")
			s.forceCancel("The bet errored.")
		}
	}()

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.phase != PhaseBuilding {
				s.mu.Unlock()
				return
			}
			expired := time.Now().After(s.deadline)
			snap := s.snapshotLocked()
			s.mu.Unlock()

			if expired {
				s.forceCancel("The bet timed out.")
				return
			}
			if err := s.renderer.Render(snap); err != nil {
				log.Error().
					Err(err).
					Str("session_id", s.id).
					Int64("chat_id", s.chatID).
					Msg("Failed to refresh bet view")
				s.forceCancel("The bet errored.")
				return
			}
		}
	}
}

func (s *Session) bettorFor(telegramID int64) (*bettor, error) {
	switch telegramID {
	case s.a.party.TelegramID:
		return &s.a, nil
	case s.b.party.TelegramID:
		return &s.b, nil
	default:
		return nil, ErrNotParticipant
	}
}

// AddItem appends an instance to the party's proposal. Fails with
// ErrProposalLocked once the party locked and ErrDuplicateItem when the
// instance is already staked.
func (s *Session) AddItem(telegramID, itemID int64) error {
	s.mu.Lock()
	if s.phase.Terminal() {
		s.mu.Unlock()
		return ErrSessionTerminal
	}
	bt, err := s.bettorFor(telegramID)
	if err == nil {
		err = bt.proposal.add(itemID)
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.render(snap)
	return nil
}

// RemoveItem removes an instance from the party's proposal. Fails with
// ErrProposalLocked once the party locked and ErrItemNotFound when the
// instance is not staked.
func (s *Session) RemoveItem(telegramID, itemID int64) error {
	s.mu.Lock()
	if s.phase.Terminal() {
		s.mu.Unlock()
		return ErrSessionTerminal
	}
	bt, err := s.bettorFor(telegramID)
	if err == nil {
		err = bt.proposal.remove(itemID)
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.render(snap)
	return nil
}

// Lock marks the party's proposal as final. When both parties are locked
// the session advances to the confirmation phase, unless both proposals
// are empty, in which case the bet auto-cancels.
func (s *Session) Lock(telegramID int64) error {
	s.mu.Lock()
	if s.phase.Terminal() {
		s.mu.Unlock()
		return ErrSessionTerminal
	}
	bt, err := s.bettorFor(telegramID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if bt.proposal.locked {
		s.mu.Unlock()
		return ErrAlreadyLocked
	}
	bt.proposal.locked = true

	if s.a.proposal.locked && s.b.proposal.locked {
		if len(s.a.proposal.items) == 0 && len(s.b.proposal.items) == 0 {
			snap := s.cancelLocked("Nothing has been proposed in the bet, it has been cancelled.")
			s.mu.Unlock()
			s.render(snap)
			return nil
		}
		s.phase = PhaseLocked
		s.deadline = time.Now().Add(s.cfg.ConfirmTimeout)
		s.stopRefreshLocked()
		s.confirmTimer = time.AfterFunc(s.cfg.ConfirmTimeout, s.confirmTimeout)
	}

	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.render(snap)
	return nil
}

// Cancel registers a party's request to end the bet. Always succeeds on a
// non-terminal session.
func (s *Session) Cancel(telegramID int64, reason string) error {
	s.mu.Lock()
	if s.phase.Terminal() {
		s.mu.Unlock()
		return ErrSessionTerminal
	}
	bt, err := s.bettorFor(telegramID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	bt.proposal.cancelled = true
	if reason == "" {
		reason = "The bet has been cancelled."
	}
	snap := s.cancelLocked(reason)
	s.mu.Unlock()

	s.render(snap)
	return nil
}

// Confirm marks the party's proposal as accepted. Repeat confirms are a
// no-op. Once both parties accept, the resolution engine runs exactly
// once; its outcome is returned with ErrResolutionFailed when the item
// transfer could not be applied (the session still ends Resolved).
func (s *Session) Confirm(ctx context.Context, telegramID int64) (*Outcome, error) {
	s.mu.Lock()
	if s.phase.Terminal() {
		s.mu.Unlock()
		return nil, ErrSessionTerminal
	}
	if s.phase != PhaseLocked {
		s.mu.Unlock()
		return nil, ErrNotLocked
	}
	bt, err := s.bettorFor(telegramID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if bt.proposal.accepted {
		s.mu.Unlock()
		return nil, nil
	}
	bt.proposal.accepted = true

	if !(s.a.proposal.accepted && s.b.proposal.accepted) {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.render(snap)
		return nil, nil
	}

	// Both accepted: resolve under the session mutex so the resolution
	// runs at most once, then transition to the terminal phase.
	s.stopTimersLocked()
	outcome, resolveErr := s.resolver.Resolve(ctx, s.id, s.a.view(), s.b.view())
	s.outcome = &outcome
	s.phase = PhaseResolved
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.render(snap)
	return &outcome, resolveErr
}

// Shutdown force-cancels a non-terminal session, used when the service
// stops. Terminal sessions are left untouched.
func (s *Session) Shutdown() {
	s.forceCancel("The bet was interrupted by a restart.")
}

// forceCancel ends the session regardless of party input. No-op when
// already terminal.
func (s *Session) forceCancel(reason string) {
	s.mu.Lock()
	if s.phase.Terminal() {
		s.mu.Unlock()
		return
	}
	snap := s.cancelLocked(reason)
	s.mu.Unlock()

	s.render(snap)
}

// confirmTimeout fires when the confirmation phase deadline elapses
// without both parties accepting.
func (s *Session) confirmTimeout() {
	s.mu.Lock()
	if s.phase != PhaseLocked {
		s.mu.Unlock()
		return
	}
	snap := s.cancelLocked("The bet timed out.")
	s.mu.Unlock()

	s.render(snap)
}

// cancelLocked performs the terminal Cancelled transition. Caller holds mu.
func (s *Session) cancelLocked(reason string) Snapshot {
	s.phase = PhaseCancelled
	s.reason = reason
	s.stopTimersLocked()
	return s.snapshotLocked()
}

// stopTimersLocked stops the refresh task and the confirmation timer.
// Caller holds mu. Safe to call on every terminal transition.
func (s *Session) stopTimersLocked() {
	s.stopRefreshLocked()
	if s.confirmTimer != nil {
		s.confirmTimer.Stop()
		s.confirmTimer = nil
	}
}

func (s *Session) stopRefreshLocked() {
	if s.refreshCancel != nil {
		s.refreshCancel()
		s.refreshCancel = nil
	}
}

// Snapshot returns a read-only projection of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		ChatID:    s.chatID,
		ThreadID:  s.threadID,
		Phase:     s.phase,
		A:         s.a.view(),
		B:         s.b.view(),
		Deadline:  s.deadline,
		Reason:    s.reason,
	}
	if s.outcome != nil {
		winner := s.outcome.Winner
		snap.Winner = &winner
		snap.Succeeded = s.outcome.Succeeded
	}
	return snap
}

// render delivers a snapshot to the presentation layer outside the
// session mutex. Render failures here are logged only; the defensive
// cancellation path lives in the refresh loop.
func (s *Session) render(snap Snapshot) {
	if err := s.renderer.Render(snap); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", s.id).
			Int64("chat_id", s.chatID).
			Msg("Failed to render bet view")
	}
}

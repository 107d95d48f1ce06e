package bet

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// ChannelKey identifies one conversation scope: a chat and, in forum
// chats, a message thread within it.
type ChannelKey struct {
	ChatID   int64
	ThreadID int64
}

// Registry is the process-wide lookup of active negotiations. It is an
// injected instance with an explicit lifecycle: created at service start,
// closed at shutdown. Check-then-insert sequences run under one mutex so
// concurrent Begin calls for the same party cannot both succeed.
type Registry struct {
	renderer Renderer
	resolver Resolver
	cfg      Config

	mu       sync.Mutex
	sessions map[ChannelKey][]*Session
}

// NewRegistry creates an empty registry. Sessions it creates use the
// given renderer, resolver and timing config.
func NewRegistry(renderer Renderer, resolver Resolver, cfg Config) *Registry {
	return &Registry{
		renderer: renderer,
		resolver: resolver,
		cfg:      cfg,
		sessions: make(map[ChannelKey][]*Session),
	}
}

// Begin creates, registers and starts a new negotiation between the two
// parties in the channel. Fails with ErrSelfBet for a single-party bet
// and with ErrAlreadyNegotiating when either party already has a
// non-terminal session anywhere.
func (r *Registry) Begin(ctx context.Context, key ChannelKey, a, b Party) (*Session, error) {
	if a.TelegramID == b.TelegramID {
		return nil, ErrSelfBet
	}

	r.mu.Lock()
	r.pruneLocked()

	for _, list := range r.sessions {
		for _, s := range list {
			if s.Phase().Terminal() {
				continue
			}
			if s.HasParty(a.TelegramID) || s.HasParty(b.TelegramID) {
				r.mu.Unlock()
				return nil, ErrAlreadyNegotiating
			}
		}
	}

	s := NewSession(key.ChatID, key.ThreadID, a, b, r.renderer, r.resolver, r.cfg)
	r.sessions[key] = append(r.sessions[key], s)
	r.mu.Unlock()

	// The initial render and refresh task start outside the registry
	// mutex; the session is already visible to Find, which is harmless
	// while it is still in Building.
	s.Start(ctx)

	log.Info().
		Str("session_id", s.ID()).
		Int64("chat_id", key.ChatID).
		Int64("party_a", a.TelegramID).
		Int64("party_b", b.TelegramID).
		Msg("Bet negotiation started")

	return s, nil
}

// Find returns the first non-terminal session in the channel that the
// user is a party of, or ErrNoActiveSession. As a side effect, finished
// sessions in the channel are discarded whether or not a match is found.
func (r *Registry) Find(key ChannelKey, telegramID int64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneChannelLocked(key)

	for _, s := range r.sessions[key] {
		if s.HasParty(telegramID) {
			return s, nil
		}
	}
	return nil, ErrNoActiveSession
}

// Prune discards every finished session. The same cleanup happens lazily
// on Begin and Find; Prune makes it callable on its own.
func (r *Registry) Prune() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
}

// Len returns the number of registered sessions, finished ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, list := range r.sessions {
		n += len(list)
	}
	return n
}

// Close force-cancels all non-terminal sessions and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	var all []*Session
	for _, list := range r.sessions {
		all = append(all, list...)
	}
	r.sessions = make(map[ChannelKey][]*Session)
	r.mu.Unlock()

	for _, s := range all {
		if !s.Phase().Terminal() {
			s.Shutdown()
		}
	}
}

func (r *Registry) pruneLocked() {
	for key := range r.sessions {
		r.pruneChannelLocked(key)
	}
}

// pruneChannelLocked drops terminal sessions from one channel's list.
// A session whose proposal was cancelled is terminal by construction, so
// checking the phase covers both conditions. Caller holds mu.
func (r *Registry) pruneChannelLocked(key ChannelKey) {
	list := r.sessions[key]
	if len(list) == 0 {
		return
	}

	kept := list[:0]
	for _, s := range list {
		if s.Phase().Terminal() {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		delete(r.sessions, key)
		return
	}
	r.sessions[key] = kept
}

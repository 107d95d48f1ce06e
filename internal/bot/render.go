package bot

import (
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-collect-bot/internal/bet"
	"telegram-collect-bot/internal/handler"
)

// messenger is the slice of the telebot API the renderer needs.
type messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// BetRenderer keeps one live chat message per bet session: the first
// snapshot sends it, later snapshots edit it in place. Once a session
// finishes its message is edited a last time and forgotten.
type BetRenderer struct {
	bot messenger

	mu       sync.Mutex
	messages map[string]*tele.Message
}

// NewBetRenderer creates a BetRenderer on top of a telebot instance.
func NewBetRenderer(b messenger) *BetRenderer {
	return &BetRenderer{
		bot:      b,
		messages: make(map[string]*tele.Message),
	}
}

// Render implements bet.Renderer.
func (r *BetRenderer) Render(snap bet.Snapshot) error {
	text := handler.FormatBet(snap)

	r.mu.Lock()
	msg, ok := r.messages[snap.SessionID]
	r.mu.Unlock()

	if !ok {
		opts := &tele.SendOptions{ThreadID: int(snap.ThreadID)}
		sent, err := r.bot.Send(tele.ChatID(snap.ChatID), text, opts)
		if err != nil {
			return err
		}
		if !snap.Finished() {
			r.mu.Lock()
			r.messages[snap.SessionID] = sent
			r.mu.Unlock()
		}
		return nil
	}

	edited, err := r.bot.Edit(msg, text)
	if err != nil {
		// Telegram rejects edits with identical content; that is not a
		// failure of the view.
		if err == tele.ErrSameMessageContent || err == tele.ErrTrueResult {
			err = nil
		} else {
			if snap.Finished() {
				// No refresh loop remains to retry a terminal edit, so
				// the tracked message must go regardless.
				r.mu.Lock()
				delete(r.messages, snap.SessionID)
				r.mu.Unlock()
			}
			return err
		}
	}
	if edited != nil {
		msg = edited
	}

	r.mu.Lock()
	if snap.Finished() {
		delete(r.messages, snap.SessionID)
	} else {
		r.messages[snap.SessionID] = msg
	}
	r.mu.Unlock()

	if snap.Finished() {
		log.Debug().
			Str("session_id", snap.SessionID).
			Str("phase", snap.Phase.String()).
			Msg("Bet view finalized")
	}
	return nil
}

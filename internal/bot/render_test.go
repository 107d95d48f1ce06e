package bot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"telegram-collect-bot/internal/bet"
)

// fakeMessenger stands in for the telebot API so renders run without a
// network.
type fakeMessenger struct {
	sends    int
	edits    int
	editErr  error
	lastText string
}

func (f *fakeMessenger) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.sends++
	f.lastText, _ = what.(string)
	return &tele.Message{ID: f.sends, Chat: &tele.Chat{ID: 1}}, nil
}

func (f *fakeMessenger) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.edits++
	f.lastText, _ = what.(string)
	if f.editErr != nil {
		return nil, f.editErr
	}
	return msg.(*tele.Message), nil
}

func buildingSnapshot(id string) bet.Snapshot {
	return bet.Snapshot{
		SessionID: id,
		ChatID:    1,
		Phase:     bet.PhaseBuilding,
		A:         bet.PartyView{Party: bet.Party{TelegramID: 101, PlayerID: 1, Name: "alice"}},
		B:         bet.PartyView{Party: bet.Party{TelegramID: 202, PlayerID: 2, Name: "bob"}},
	}
}

func TestBetRendererSendsThenEdits(t *testing.T) {
	m := &fakeMessenger{}
	r := NewBetRenderer(m)

	snap := buildingSnapshot("s1")
	require.NoError(t, r.Render(snap))
	require.NoError(t, r.Render(snap))

	assert.Equal(t, 1, m.sends)
	assert.Equal(t, 1, m.edits)
	assert.Len(t, r.messages, 1)
}

func TestBetRendererForgetsFinishedSessions(t *testing.T) {
	m := &fakeMessenger{}
	r := NewBetRenderer(m)

	snap := buildingSnapshot("s1")
	require.NoError(t, r.Render(snap))

	snap.Phase = bet.PhaseCancelled
	snap.Reason = "The bet has been cancelled."
	require.NoError(t, r.Render(snap))

	assert.Empty(t, r.messages)
}

func TestBetRendererToleratesSameContentEdit(t *testing.T) {
	m := &fakeMessenger{editErr: tele.ErrSameMessageContent}
	r := NewBetRenderer(m)

	snap := buildingSnapshot("s1")
	require.NoError(t, r.Render(snap))
	assert.NoError(t, r.Render(snap))
	assert.Len(t, r.messages, 1)
}

func TestBetRendererDropsEntryOnFailedTerminalEdit(t *testing.T) {
	m := &fakeMessenger{}
	r := NewBetRenderer(m)

	snap := buildingSnapshot("s1")
	require.NoError(t, r.Render(snap))
	require.Len(t, r.messages, 1)

	// The terminal render is the last one a session issues; a failed
	// edit must not strand the tracked message.
	m.editErr = errors.New("telegram: message to edit not found")
	snap.Phase = bet.PhaseResolved
	assert.Error(t, r.Render(snap))
	assert.Empty(t, r.messages)
}

func TestBetRendererFinishedFirstRenderIsNotTracked(t *testing.T) {
	m := &fakeMessenger{}
	r := NewBetRenderer(m)

	snap := buildingSnapshot("s1")
	snap.Phase = bet.PhaseCancelled
	require.NoError(t, r.Render(snap))

	assert.Equal(t, 1, m.sends)
	assert.Empty(t, r.messages)
}

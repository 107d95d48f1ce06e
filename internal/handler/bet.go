package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-collect-bot/internal/bet"
	"telegram-collect-bot/internal/repository"
	"telegram-collect-bot/internal/service"
)

// BetHandler handles the /bet command family: two players negotiate over
// collectible stakes, lock in, confirm and let the coin flip decide.
type BetHandler struct {
	registry *bet.Registry
	ledger   *service.LedgerService
	itemRepo *repository.CollectibleRepository
}

// NewBetHandler creates a new BetHandler.
func NewBetHandler(registry *bet.Registry, ledger *service.LedgerService, itemRepo *repository.CollectibleRepository) *BetHandler {
	return &BetHandler{registry: registry, ledger: ledger, itemRepo: itemRepo}
}

// HandleBet dispatches the /bet subcommands.
// Format: /bet begin (as a reply) | add <id> | remove <id> | lock |
// confirm | cancel | view
func (h *BetHandler) HandleBet(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return c.Reply(
			"🎲 Bet commands:\n" +
				"/bet begin - reply to your opponent to start\n" +
				"/bet add <collectible_id> - stake a collectible\n" +
				"/bet remove <collectible_id> - unstake it\n" +
				"/bet lock - finalize your proposal\n" +
				"/bet confirm - accept the locked bet\n" +
				"/bet cancel - call the bet off\n" +
				"/bet view - show the current bet")
	}

	switch args[0] {
	case "begin", "start":
		return h.handleBegin(c)
	case "add":
		return h.handleAdd(c, args[1:])
	case "remove":
		return h.handleRemove(c, args[1:])
	case "lock":
		return h.handleLock(c)
	case "confirm", "accept":
		return h.handleConfirm(c)
	case "cancel":
		return h.handleCancel(c)
	case "view":
		return h.handleView(c)
	default:
		return c.Reply("❌ Unknown bet command, try /bet")
	}
}

func channelKey(c tele.Context) bet.ChannelKey {
	key := bet.ChannelKey{ChatID: c.Chat().ID}
	if msg := c.Message(); msg != nil {
		key.ThreadID = int64(msg.ThreadID)
	}
	return key
}

func (h *BetHandler) handleBegin(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	msg := c.Message()
	if msg == nil || msg.ReplyTo == nil || msg.ReplyTo.Sender == nil {
		return c.Reply("❌ Reply to your opponent's message with /bet begin")
	}
	opponent := msg.ReplyTo.Sender
	if opponent.IsBot {
		return c.Reply("❌ Bots do not gamble")
	}

	me, _, err := h.ledger.EnsurePlayer(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply("❌ Something went wrong, try again later")
	}
	them, _, err := h.ledger.EnsurePlayer(ctx, opponent.ID, displayName(opponent))
	if err != nil {
		return c.Reply("❌ Something went wrong, try again later")
	}

	a := bet.Party{TelegramID: sender.ID, PlayerID: me.ID, Name: me.Username}
	b := bet.Party{TelegramID: opponent.ID, PlayerID: them.ID, Name: them.Username}

	_, err = h.registry.Begin(ctx, channelKey(c), a, b)
	switch {
	case errors.Is(err, bet.ErrSelfBet):
		return c.Reply("❌ You cannot bet against yourself")
	case errors.Is(err, bet.ErrAlreadyNegotiating):
		return c.Reply("❌ One of you is already in an active bet")
	case err != nil:
		return c.Reply("❌ Could not start the bet, try again later")
	}
	return nil
}

// findSession resolves the sender's active session in this channel.
func (h *BetHandler) findSession(c tele.Context) (*bet.Session, error) {
	sender := c.Sender()
	if sender == nil {
		return nil, bet.ErrNoActiveSession
	}
	return h.registry.Find(channelKey(c), sender.ID)
}

func (h *BetHandler) handleAdd(c tele.Context, args []string) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if len(args) < 1 {
		return c.Reply("❌ Usage: /bet add <collectible_id>")
	}
	instanceID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ The collectible id must be a number")
	}

	session, err := h.findSession(c)
	if err != nil {
		return c.Reply("❌ You have no active bet in this channel")
	}

	player, err := h.ledger.GetPlayer(ctx, sender.ID)
	if err != nil {
		return c.Reply("❌ Something went wrong, try again later")
	}

	instance, err := h.itemRepo.GetInstance(ctx, instanceID)
	if err != nil || instance.PlayerID != player.ID || instance.Deleted {
		return c.Reply("❌ You do not own that collectible")
	}
	if instance.Favorite || instance.TradeLocked {
		return c.Reply("❌ That collectible is favorited or locked and cannot be staked")
	}

	err = session.AddItem(sender.ID, instanceID)
	switch {
	case errors.Is(err, bet.ErrProposalLocked):
		return c.Reply("🔒 Your proposal is locked, you cannot change it anymore")
	case errors.Is(err, bet.ErrDuplicateItem):
		return c.Reply("❌ That collectible is already staked")
	case errors.Is(err, bet.ErrSessionTerminal):
		return c.Reply("❌ This bet has already ended")
	case err != nil:
		return c.Reply("❌ Could not stake the collectible")
	}
	return nil
}

func (h *BetHandler) handleRemove(c tele.Context, args []string) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if len(args) < 1 {
		return c.Reply("❌ Usage: /bet remove <collectible_id>")
	}
	instanceID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ The collectible id must be a number")
	}

	session, err := h.findSession(c)
	if err != nil {
		return c.Reply("❌ You have no active bet in this channel")
	}

	err = session.RemoveItem(sender.ID, instanceID)
	switch {
	case errors.Is(err, bet.ErrProposalLocked):
		return c.Reply("🔒 Your proposal is locked, you cannot change it anymore")
	case errors.Is(err, bet.ErrItemNotFound):
		return c.Reply("❌ That collectible is not staked")
	case errors.Is(err, bet.ErrSessionTerminal):
		return c.Reply("❌ This bet has already ended")
	case err != nil:
		return c.Reply("❌ Could not unstake the collectible")
	}
	return nil
}

func (h *BetHandler) handleLock(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	session, err := h.findSession(c)
	if err != nil {
		return c.Reply("❌ You have no active bet in this channel")
	}

	err = session.Lock(sender.ID)
	switch {
	case errors.Is(err, bet.ErrAlreadyLocked):
		return c.Reply("🔒 You already locked your proposal")
	case errors.Is(err, bet.ErrSessionTerminal):
		return c.Reply("❌ This bet has already ended")
	case err != nil:
		return c.Reply("❌ Could not lock your proposal")
	}

	if session.Phase() == bet.PhaseLocked {
		return c.Reply("🔒 Both proposals are locked! Seal your fate with /bet confirm")
	}
	return c.Reply("🔒 Proposal locked, waiting for your opponent")
}

func (h *BetHandler) handleConfirm(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	session, err := h.findSession(c)
	if err != nil {
		return c.Reply("❌ You have no active bet in this channel")
	}

	outcome, err := session.Confirm(ctx, sender.ID)
	switch {
	case errors.Is(err, bet.ErrNotLocked):
		return c.Reply("❌ Both proposals must be locked before confirming")
	case errors.Is(err, bet.ErrSessionTerminal):
		return c.Reply("❌ This bet has already ended")
	case errors.Is(err, bet.ErrResolutionFailed):
		return c.Reply("⚠️ The bet errored and no collectibles were moved. Contact an admin.")
	case err != nil:
		return c.Reply("❌ Could not confirm the bet")
	}

	if outcome == nil {
		return c.Reply("✅ Confirmed, waiting for your opponent")
	}
	return c.Reply(fmt.Sprintf("🎲 The coin has spoken: @%s wins %d collectible(s)!",
		outcome.Winner.Name, outcome.Moved))
}

func (h *BetHandler) handleCancel(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	session, err := h.findSession(c)
	if err != nil {
		return c.Reply("❌ You have no active bet in this channel")
	}

	name := displayName(sender)
	err = session.Cancel(sender.ID, fmt.Sprintf("@%s cancelled the bet.", name))
	if errors.Is(err, bet.ErrSessionTerminal) {
		return c.Reply("❌ This bet has already ended")
	}
	if err != nil {
		return c.Reply("❌ Could not cancel the bet")
	}
	return nil
}

func (h *BetHandler) handleView(c tele.Context) error {
	session, err := h.findSession(c)
	if err != nil {
		return c.Reply("❌ You have no active bet in this channel")
	}
	return c.Reply(FormatBet(session.Snapshot()))
}

// FormatBet renders a bet snapshot as the chat message body. The same
// text is used for the pinned live view and for /bet view.
func FormatBet(snap bet.Snapshot) string {
	var b strings.Builder
	b.WriteString("🎲 Collectible bet\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	formatSide(&b, snap.A)
	b.WriteString("\n")
	formatSide(&b, snap.B)
	b.WriteString("━━━━━━━━━━━━━━━\n")

	switch snap.Phase {
	case bet.PhaseBuilding:
		fmt.Fprintf(&b, "⏳ Building, closes %s\n", snap.Deadline.Format("15:04"))
	case bet.PhaseLocked:
		fmt.Fprintf(&b, "🔒 Locked, confirm before %s\n", snap.Deadline.Format("15:04"))
	case bet.PhaseCancelled:
		fmt.Fprintf(&b, "🚫 %s\n", snap.Reason)
	case bet.PhaseResolved:
		if snap.Winner != nil && snap.Succeeded {
			fmt.Fprintf(&b, "🏆 @%s wins the bet!\n", snap.Winner.Name)
		} else {
			b.WriteString("⚠️ The bet errored and no collectibles were moved.\n")
		}
	}
	return b.String()
}

func formatSide(b *strings.Builder, side bet.PartyView) {
	status := ""
	if side.Cancelled {
		status = " 🚫"
	} else if side.Accepted {
		status = " ✅"
	} else if side.Locked {
		status = " 🔒"
	}
	fmt.Fprintf(b, "@%s%s\n", side.Party.Name, status)
	if len(side.Items) == 0 {
		b.WriteString("  (nothing staked)\n")
		return
	}
	for _, id := range side.Items {
		fmt.Fprintf(b, "  • #%d\n", id)
	}
}

// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-collect-bot/internal/service"
)

// CoinsHandler handles account and coins commands.
type CoinsHandler struct {
	ledger *service.LedgerService
}

// NewCoinsHandler creates a new CoinsHandler.
func NewCoinsHandler(ledger *service.LedgerService) *CoinsHandler {
	return &CoinsHandler{ledger: ledger}
}

func displayName(u *tele.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// HandleStart handles the /start command, creating the account with the
// welcome bonus on first contact.
func (h *CoinsHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	player, created, err := h.ledger.EnsurePlayer(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply("❌ Could not set up your account, try again later")
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 Welcome @%s!\n\n"+
				"Your account is ready with %d coins.\n\n"+
				"Commands:\n"+
				"/balance - your coins\n"+
				"/daily - daily reward\n"+
				"/collection - your collectibles\n"+
				"/packs - packs for sale\n"+
				"/bet - bet collectibles against another player\n"+
				"/leaderboard - richest players",
			player.Username, player.Coins,
		))
	}

	return c.Reply(fmt.Sprintf("👋 Welcome back @%s! You have %d coins.", player.Username, player.Coins))
}

// HandleBalance handles the /balance command.
func (h *CoinsHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	player, _, err := h.ledger.EnsurePlayer(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply("❌ Could not fetch your balance, try again later")
	}
	return c.Reply(fmt.Sprintf("💰 You have %d coins", player.Coins))
}

// HandleDaily handles the /daily command.
func (h *CoinsHandler) HandleDaily(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	player, _, err := h.ledger.EnsurePlayer(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply("❌ Something went wrong, try again later")
	}

	reward, remaining, err := h.ledger.ClaimDaily(ctx, player.ID)
	if errors.Is(err, service.ErrDailyAlreadyClaimed) {
		hours := int(remaining.Hours())
		minutes := int(remaining.Minutes()) % 60
		return c.Reply(fmt.Sprintf("⏰ Already claimed, come back in %dh%02dm", hours, minutes))
	}
	if err != nil {
		return c.Reply("❌ Could not claim the daily reward, try again later")
	}
	return c.Reply(fmt.Sprintf("✅ Daily reward claimed: +%d coins", reward))
}

// HandleGive handles the /give command.
// Format: /give <amount> as a reply, or /give <telegram_id> <amount>.
func (h *CoinsHandler) HandleGive(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	target, amount, err := h.parseGiveArgs(c)
	if err != nil {
		return c.Reply(err.Error())
	}

	from, _, err := h.ledger.EnsurePlayer(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply("❌ Something went wrong, try again later")
	}
	to, err := h.ledger.GetPlayer(ctx, target)
	if err != nil {
		return c.Reply("❌ That player has no account yet")
	}

	err = h.ledger.Give(ctx, from.ID, to.ID, amount)
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		return c.Reply("❌ The amount must be positive")
	case errors.Is(err, service.ErrSelfGive):
		return c.Reply("❌ You cannot give coins to yourself")
	case errors.Is(err, service.ErrInsufficientCoins):
		return c.Reply("❌ You do not have that many coins")
	case err != nil:
		return c.Reply("❌ Could not complete the gift, try again later")
	}

	return c.Reply(fmt.Sprintf("✅ Gave %d coins to @%s", amount, to.Username))
}

// parseGiveArgs resolves the gift target and amount. A reply names the
// target implicitly; otherwise the first argument is the Telegram id.
func (h *CoinsHandler) parseGiveArgs(c tele.Context) (int64, int64, error) {
	args := c.Args()

	if msg := c.Message(); msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		if len(args) < 1 {
			return 0, 0, fmt.Errorf("❌ Usage: reply with /give <amount>")
		}
		amount, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("❌ The amount must be a number")
		}
		return msg.ReplyTo.Sender.ID, amount, nil
	}

	if len(args) < 2 {
		return 0, 0, fmt.Errorf("❌ Usage: /give <telegram_id> <amount>, or reply with /give <amount>")
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("❌ The target id must be a number")
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("❌ The amount must be a number")
	}
	return target, amount, nil
}

// HandleSell handles the /sell command.
// Format: /sell <instance_id>
func (h *CoinsHandler) HandleSell(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /sell <collectible_id> (see /collection for ids)")
	}
	instanceID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ The collectible id must be a number")
	}

	player, _, err := h.ledger.EnsurePlayer(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply("❌ Something went wrong, try again later")
	}

	value, err := h.ledger.Quicksell(ctx, player.ID, instanceID)
	switch {
	case errors.Is(err, service.ErrInstanceNotOwned):
		return c.Reply("❌ You do not own that collectible")
	case errors.Is(err, service.ErrInstanceProtected):
		return c.Reply("❌ That collectible is favorited or locked and cannot be sold")
	case err != nil:
		return c.Reply("❌ Could not sell the collectible, try again later")
	}

	return c.Reply(fmt.Sprintf("✅ Sold for %d coins", value))
}

// HandleCollection handles the /collection command.
func (h *CoinsHandler) HandleCollection(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	player, _, err := h.ledger.EnsurePlayer(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply("❌ Something went wrong, try again later")
	}

	instances, err := h.ledger.ListCollection(ctx, player.ID, 25)
	if err != nil {
		return c.Reply("❌ Could not fetch your collection, try again later")
	}
	if len(instances) == 0 {
		return c.Reply("📦 Your collection is empty. Open a pack with /openpack!")
	}

	var b strings.Builder
	b.WriteString("📦 Your collection\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	for _, inst := range instances {
		fmt.Fprintf(&b, "#%d (ATK %+d / HP %+d)", inst.ID, inst.AttackBonus, inst.HealthBonus)
		if inst.Favorite {
			b.WriteString(" ⭐")
		}
		b.WriteString("\n")
	}
	return c.Reply(b.String())
}

// HandleLeaderboard handles the /leaderboard command.
func (h *CoinsHandler) HandleLeaderboard(c tele.Context) error {
	ctx := context.Background()

	players, err := h.ledger.GetTopPlayers(ctx, 10)
	if err != nil {
		return c.Reply("❌ Could not fetch the leaderboard, try again later")
	}
	if len(players) == 0 {
		return c.Reply("📊 No players yet")
	}

	msg := "🏆 Richest players\n"
	msg += "━━━━━━━━━━━━━━━\n"
	medals := []string{"🥇", "🥈", "🥉"}
	for i, player := range players {
		rank := fmt.Sprintf("%d.", i+1)
		if i < 3 {
			rank = medals[i]
		}
		name := player.Username
		if name == "" {
			name = fmt.Sprintf("Player%d", player.TelegramID)
		}
		msg += fmt.Sprintf("%s @%s: %d\n", rank, name, player.Coins)
	}
	return c.Reply(msg)
}

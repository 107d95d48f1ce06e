package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-collect-bot/internal/model"
	"telegram-collect-bot/internal/service"
)

// AdminHandler handles admin-only commands.
type AdminHandler struct {
	ledger *service.LedgerService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ledger *service.LedgerService) *AdminHandler {
	return &AdminHandler{ledger: ledger}
}

// HandleAdminAdd handles the /admin_add command.
// Format: /admin_add <telegram_id> <amount>
func (h *AdminHandler) HandleAdminAdd(c tele.Context) error {
	return h.adjust(c, model.TxTypeAdminAdd)
}

// HandleAdminSub handles the /admin_sub command.
// Format: /admin_sub <telegram_id> <amount>
func (h *AdminHandler) HandleAdminSub(c tele.Context) error {
	return h.adjust(c, model.TxTypeAdminSub)
}

func (h *AdminHandler) adjust(c tele.Context, txType string) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	targetID, amount, err := parseAdminArgs(c)
	if err != nil {
		return c.Reply(err.Error())
	}
	if amount <= 0 {
		return c.Reply("❌ The amount must be positive")
	}
	if txType == model.TxTypeAdminSub {
		amount = -amount
	}

	target, err := h.ledger.GetPlayer(ctx, targetID)
	if err != nil {
		return c.Reply("❌ That player has no account")
	}

	desc := fmt.Sprintf("adjustment by admin %d", sender.ID)
	player, err := h.ledger.AdjustCoins(ctx, target.ID, amount, txType, desc)
	if errors.Is(err, service.ErrInsufficientCoins) {
		return c.Reply("❌ The player does not have that many coins")
	}
	if err != nil {
		return c.Reply("❌ Operation failed, try again later")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Int64("amount", amount).
		Str("operation", txType).
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ Done\n\n👤 Player: @%s\n💰 New balance: %d coins",
		player.Username, player.Coins,
	))
}

// HandleAdminSet handles the /admin_set command.
// Format: /admin_set <telegram_id> <amount>
func (h *AdminHandler) HandleAdminSet(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	targetID, coins, err := parseAdminArgs(c)
	if err != nil {
		return c.Reply(err.Error())
	}
	if coins < 0 {
		return c.Reply("❌ The balance cannot be negative")
	}

	target, err := h.ledger.GetPlayer(ctx, targetID)
	if err != nil {
		return c.Reply("❌ That player has no account")
	}

	desc := fmt.Sprintf("balance set by admin %d", sender.ID)
	player, err := h.ledger.SetCoins(ctx, target.ID, coins, desc)
	if err != nil {
		return c.Reply("❌ Operation failed, try again later")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Int64("new_balance", coins).
		Str("operation", model.TxTypeAdminSet).
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ Done\n\n👤 Player: @%s\n💰 New balance: %d coins",
		player.Username, player.Coins,
	))
}

// parseAdminArgs parses "<telegram_id> <amount>" command arguments.
func parseAdminArgs(c tele.Context) (int64, int64, error) {
	args := c.Args()
	if len(args) < 2 {
		return 0, 0, fmt.Errorf("❌ Usage: <telegram_id> <amount>\nExample: /admin_add 123456789 100")
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("❌ The telegram id must be a number")
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("❌ The amount must be a number")
	}
	return targetID, amount, nil
}

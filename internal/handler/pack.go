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

// PackHandler handles pack shop commands.
type PackHandler struct {
	ledger *service.LedgerService
	packs  *service.PackService
}

// NewPackHandler creates a new PackHandler.
func NewPackHandler(ledger *service.LedgerService, packs *service.PackService) *PackHandler {
	return &PackHandler{ledger: ledger, packs: packs}
}

// HandlePacks handles the /packs command, listing packs for sale.
func (h *PackHandler) HandlePacks(c tele.Context) error {
	ctx := context.Background()

	packs, err := h.packs.ListPacks(ctx)
	if err != nil {
		return c.Reply("❌ Could not fetch the pack shop, try again later")
	}
	if len(packs) == 0 {
		return c.Reply("🛒 No packs for sale right now")
	}

	var b strings.Builder
	b.WriteString("🛒 Pack shop\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	for _, p := range packs {
		fmt.Fprintf(&b, "#%d %s: %d coins, %d cards", p.ID, p.Name, p.Price, p.CardsCount)
		if p.DailyLimit > 0 {
			fmt.Fprintf(&b, " (max %d/day)", p.DailyLimit)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nBuy with /buypack <pack_id> [count]")
	return c.Reply(b.String())
}

// HandleMyPacks handles the /mypacks command.
func (h *PackHandler) HandleMyPacks(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	player, _, err := h.ledger.EnsurePlayer(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply("❌ Something went wrong, try again later")
	}

	owned, err := h.packs.ListOwned(ctx, player.ID)
	if err != nil {
		return c.Reply("❌ Could not fetch your packs, try again later")
	}
	if len(owned) == 0 {
		return c.Reply("🎁 You have no unopened packs. Browse /packs!")
	}

	var b strings.Builder
	b.WriteString("🎁 Your unopened packs\n")
	for _, pp := range owned {
		fmt.Fprintf(&b, "pack #%d × %d\n", pp.PackID, pp.Quantity)
	}
	b.WriteString("\nOpen with /openpack <pack_id> [count]")
	return c.Reply(b.String())
}

// HandleBuyPack handles the /buypack command.
// Format: /buypack <pack_id> [count]
func (h *PackHandler) HandleBuyPack(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	packID, count, err := parsePackArgs(c, "/buypack")
	if err != nil {
		return c.Reply(err.Error())
	}

	player, _, err := h.ledger.EnsurePlayer(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply("❌ Something went wrong, try again later")
	}

	pack, err := h.packs.Buy(ctx, player.ID, packID, count)
	switch {
	case errors.Is(err, service.ErrPackNotFound), errors.Is(err, service.ErrPackDisabled):
		return c.Reply("❌ That pack is not for sale")
	case errors.Is(err, service.ErrInsufficientCoins):
		return c.Reply("❌ You do not have enough coins")
	case errors.Is(err, service.ErrTooMany):
		return c.Reply("❌ That is too many packs at once")
	case errors.Is(err, service.ErrInvalidAmount):
		return c.Reply("❌ The count must be positive")
	case err != nil:
		return c.Reply("❌ Could not buy the pack, try again later")
	}

	return c.Reply(fmt.Sprintf("✅ Bought %d× %s for %d coins. Open with /openpack %d",
		count, pack.Name, pack.Price*int64(count), pack.ID))
}

// HandleGivePack handles the /givepack command.
// Format: /givepack <pack_id> [count] as a reply, or
// /givepack <telegram_id> <pack_id> [count].
func (h *PackHandler) HandleGivePack(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	target, packID, count, err := parseGivePackArgs(c)
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

	pack, err := h.packs.Give(ctx, from.ID, to.ID, packID, count)
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		return c.Reply("❌ The count must be positive")
	case errors.Is(err, service.ErrSelfGive):
		return c.Reply("❌ You cannot give packs to yourself")
	case errors.Is(err, service.ErrPackNotFound):
		return c.Reply("❌ No such pack")
	case errors.Is(err, service.ErrNoPacksOwned):
		return c.Reply("❌ You do not own enough unopened packs of that kind")
	case err != nil:
		return c.Reply("❌ Could not complete the gift, try again later")
	}

	return c.Reply(fmt.Sprintf("✅ Gave %d× %s to @%s", count, pack.Name, to.Username))
}

// parseGivePackArgs resolves the gift target, pack and count. A reply
// names the target implicitly; otherwise the first argument is the
// Telegram id.
func parseGivePackArgs(c tele.Context) (int64, int64, int, error) {
	args := c.Args()

	if msg := c.Message(); msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		if msg.ReplyTo.Sender.IsBot {
			return 0, 0, 0, fmt.Errorf("❌ You cannot give packs to bots")
		}
		if len(args) < 1 {
			return 0, 0, 0, fmt.Errorf("❌ Usage: reply with /givepack <pack_id> [count]")
		}
		packID, count, err := parsePackIDCount(args)
		if err != nil {
			return 0, 0, 0, err
		}
		return msg.ReplyTo.Sender.ID, packID, count, nil
	}

	if len(args) < 2 {
		return 0, 0, 0, fmt.Errorf("❌ Usage: /givepack <telegram_id> <pack_id> [count], or reply with /givepack <pack_id> [count]")
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("❌ The target id must be a number")
	}
	packID, count, err := parsePackIDCount(args[1:])
	if err != nil {
		return 0, 0, 0, err
	}
	return target, packID, count, nil
}

func parsePackIDCount(args []string) (int64, int, error) {
	packID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("❌ The pack id must be a number")
	}
	count := 1
	if len(args) >= 2 {
		count, err = strconv.Atoi(args[1])
		if err != nil {
			return 0, 0, fmt.Errorf("❌ The count must be a number")
		}
	}
	return packID, count, nil
}

// HandleOpenPack handles the /openpack command.
// Format: /openpack <pack_id> [count]
func (h *PackHandler) HandleOpenPack(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	packID, count, err := parsePackArgs(c, "/openpack")
	if err != nil {
		return c.Reply(err.Error())
	}

	player, _, err := h.ledger.EnsurePlayer(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply("❌ Something went wrong, try again later")
	}

	minted, err := h.packs.Open(ctx, player.ID, packID, count)
	switch {
	case errors.Is(err, service.ErrPackNotFound):
		return c.Reply("❌ No such pack")
	case errors.Is(err, service.ErrNoPacksOwned):
		return c.Reply("❌ You do not own enough unopened packs of that kind")
	case errors.Is(err, service.ErrDailyLimitReached):
		return c.Reply("⏰ Daily open limit reached for that pack, come back tomorrow")
	case errors.Is(err, service.ErrTooMany):
		return c.Reply("❌ That is too many packs at once")
	case errors.Is(err, service.ErrInvalidAmount):
		return c.Reply("❌ The count must be positive")
	case errors.Is(err, service.ErrNothingToMint):
		return c.Reply("❌ That pack has nothing to mint right now")
	case err != nil:
		return c.Reply("❌ Could not open the pack, try again later")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎉 You opened %d pack(s) and got:\n", count)
	for _, inst := range minted {
		fmt.Fprintf(&b, "• #%d (ATK %+d / HP %+d)\n", inst.ID, inst.AttackBonus, inst.HealthBonus)
	}
	return c.Reply(b.String())
}

func parsePackArgs(c tele.Context, usage string) (int64, int, error) {
	args := c.Args()
	if len(args) < 1 {
		return 0, 0, fmt.Errorf("❌ Usage: %s <pack_id> [count]", usage)
	}
	packID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("❌ The pack id must be a number")
	}
	count := 1
	if len(args) >= 2 {
		count, err = strconv.Atoi(args[1])
		if err != nil {
			return 0, 0, fmt.Errorf("❌ The count must be a number")
		}
	}
	return packID, count, nil
}

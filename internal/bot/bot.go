package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-collect-bot/internal/bet"
	"telegram-collect-bot/internal/config"
	"telegram-collect-bot/internal/handler"
	"telegram-collect-bot/internal/repository"
	"telegram-collect-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot      *tele.Bot
	cfg      *config.Config
	registry *bet.Registry

	coinsHandler *handler.CoinsHandler
	packHandler  *handler.PackHandler
	betHandler   *handler.BetHandler
	adminHandler *handler.AdminHandler
}

// Dependencies holds everything the bot handlers need. The bet registry
// is created here so the renderer can edit messages through the bot.
type Dependencies struct {
	Config       *config.Config
	Ledger       *service.LedgerService
	Packs        *service.PackService
	Items        *repository.CollectibleRepository
	Bets         *repository.BetRepository
	NewBetEngine func(store bet.ItemTransferrer, recorder bet.OutcomeRecorder) bet.Resolver
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	newEngine := deps.NewBetEngine
	if newEngine == nil {
		newEngine = func(store bet.ItemTransferrer, recorder bet.OutcomeRecorder) bet.Resolver {
			return bet.NewEngine(store, recorder)
		}
	}

	registry := bet.NewRegistry(
		NewBetRenderer(teleBot),
		newEngine(deps.Items, deps.Bets),
		bet.Config{
			NegotiationTimeout: deps.Config.Betting.NegotiationTimeout,
			ConfirmTimeout:     deps.Config.Betting.ConfirmTimeout,
			RefreshInterval:    deps.Config.Betting.RefreshInterval,
		},
	)

	b := &Bot{
		bot:      teleBot,
		cfg:      deps.Config,
		registry: registry,

		coinsHandler: handler.NewCoinsHandler(deps.Ledger),
		packHandler:  handler.NewPackHandler(deps.Ledger, deps.Packs),
		betHandler:   handler.NewBetHandler(registry, deps.Ledger, deps.Items),
		adminHandler: handler.NewAdminHandler(deps.Ledger),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	// Account and coins
	b.bot.Handle("/start", b.coinsHandler.HandleStart)
	b.bot.Handle("/balance", b.coinsHandler.HandleBalance)
	b.bot.Handle("/daily", b.coinsHandler.HandleDaily)
	b.bot.Handle("/give", b.coinsHandler.HandleGive)
	b.bot.Handle("/sell", b.coinsHandler.HandleSell)
	b.bot.Handle("/collection", b.coinsHandler.HandleCollection)
	b.bot.Handle("/leaderboard", b.coinsHandler.HandleLeaderboard)

	// Pack shop
	b.bot.Handle("/packs", b.packHandler.HandlePacks)
	b.bot.Handle("/mypacks", b.packHandler.HandleMyPacks)
	b.bot.Handle("/buypack", b.packHandler.HandleBuyPack)
	b.bot.Handle("/openpack", b.packHandler.HandleOpenPack)
	b.bot.Handle("/givepack", b.packHandler.HandleGivePack)

	// Betting
	b.bot.Handle("/bet", b.betHandler.HandleBet)

	// Admin commands
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/admin_add", b.adminHandler.HandleAdminAdd)
	adminGroup.Handle("/admin_sub", b.adminHandler.HandleAdminSub)
	adminGroup.Handle("/admin_set", b.adminHandler.HandleAdminSet)
}

// Start starts the bot polling.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully, cancelling every active bet so no
// session survives into a stale state after restart.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.registry.Close()
	b.bot.Stop()
}

// Registry exposes the bet registry, used by periodic pruning.
func (b *Bot) Registry() *bet.Registry {
	return b.registry
}

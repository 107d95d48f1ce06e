// Package main is the entry point for the Telegram collectible bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"telegram-collect-bot/internal/bot"
	"telegram-collect-bot/internal/config"
	"telegram-collect-bot/internal/pkg/db"
	"telegram-collect-bot/internal/pkg/lock"
	"telegram-collect-bot/internal/repository"
	"telegram-collect-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	playerRepo := repository.NewPlayerRepository(dbPool.Pool)
	txRepo := repository.NewTransactionRepository(dbPool.Pool)
	itemRepo := repository.NewCollectibleRepository(dbPool.Pool)
	packRepo := repository.NewPackRepository(dbPool.Pool)
	betRepo := repository.NewBetRepository(dbPool.Pool)

	// Initialize per-player locks and services
	playerLock := lock.NewPlayerLock()

	ledger := service.NewLedgerService(
		playerRepo,
		txRepo,
		itemRepo,
		playerLock,
		cfg.Daily.Reward,
		cfg.Daily.CooldownHours,
	)

	packs := service.NewPackService(
		packRepo,
		itemRepo,
		playerRepo,
		txRepo,
		playerLock,
		cfg.Packs.MaxBuyPerCommand,
		cfg.Packs.MaxOpenPerCommand,
		cfg.Packs.MaxAttackBonus,
		cfg.Packs.MaxHealthBonus,
	)

	// Initialize bot
	telegramBot, err := bot.New(&bot.Dependencies{
		Config: cfg,
		Ledger: ledger,
		Packs:  packs,
		Items:  itemRepo,
		Bets:   betRepo,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Stop cancels every active bet before the poller shuts down.
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: players
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			telegram_id BIGINT NOT NULL UNIQUE,
			username VARCHAR(255) NOT NULL,
			coins BIGINT NOT NULL DEFAULT 1000,
			last_daily BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_players_coins ON players(coins DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: players table created")

	// Migration 2: collectible catalog and instances
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS collectibles (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			rarity DOUBLE PRECISION NOT NULL,
			quicksell_value BIGINT NOT NULL DEFAULT 0,
			enabled BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE TABLE IF NOT EXISTS collectible_instances (
			id BIGSERIAL PRIMARY KEY,
			collectible_id BIGINT NOT NULL REFERENCES collectibles(id),
			player_id BIGINT NOT NULL REFERENCES players(id),
			attack_bonus INT NOT NULL DEFAULT 0,
			health_bonus INT NOT NULL DEFAULT 0,
			favorite BOOLEAN NOT NULL DEFAULT FALSE,
			trade_locked BOOLEAN NOT NULL DEFAULT FALSE,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			caught_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_instances_player ON collectible_instances(player_id) WHERE NOT deleted;
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: collectibles tables created")

	// Migration 3: coin transactions
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS coin_transactions (
			id BIGSERIAL PRIMARY KEY,
			player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_coin_tx_player_time ON coin_transactions(player_id, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: coin_transactions table created")

	// Migration 4: pack shop
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS packs (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			price BIGINT NOT NULL,
			cards_count INT NOT NULL DEFAULT 1,
			min_rarity DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_rarity DOUBLE PRECISION NOT NULL DEFAULT 1,
			daily_limit INT NOT NULL DEFAULT 0,
			enabled BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE TABLE IF NOT EXISTS player_packs (
			id BIGSERIAL PRIMARY KEY,
			player_id BIGINT NOT NULL REFERENCES players(id),
			pack_id BIGINT NOT NULL REFERENCES packs(id),
			quantity INT NOT NULL DEFAULT 0,
			UNIQUE (player_id, pack_id)
		);
		CREATE TABLE IF NOT EXISTS pack_opens (
			id BIGSERIAL PRIMARY KEY,
			player_id BIGINT NOT NULL REFERENCES players(id),
			pack_id BIGINT NOT NULL REFERENCES packs(id),
			opened_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_pack_opens_player_time ON pack_opens(player_id, pack_id, opened_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: pack tables created")

	// Migration 5: bet history
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bet_records (
			id BIGSERIAL PRIMARY KEY,
			session_id UUID NOT NULL,
			player_a BIGINT NOT NULL,
			player_b BIGINT NOT NULL,
			winner_id BIGINT NOT NULL,
			items_moved INT NOT NULL DEFAULT 0,
			succeeded BOOLEAN NOT NULL,
			resolved_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_bet_records_players ON bet_records(player_a, player_b);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: bet_records table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}

// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-collect-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrPlayerNotFound    = errors.New("player not found")
	ErrInsufficientCoins = errors.New("insufficient coins")
)

const playerColumns = "id, telegram_id, username, coins, last_daily, created_at, updated_at"

// PlayerRepository handles player account persistence.
type PlayerRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerRepository creates a new PlayerRepository instance.
func NewPlayerRepository(pool *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

func scanPlayer(row pgx.Row) (*model.Player, error) {
	var p model.Player
	err := row.Scan(
		&p.ID,
		&p.TelegramID,
		&p.Username,
		&p.Coins,
		&p.LastDaily,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create creates a new player with the given Telegram ID and username.
// Players start with the default initial balance of 1000 coins.
func (r *PlayerRepository) Create(ctx context.Context, telegramID int64, username string) (*model.Player, error) {
	const query = `
		INSERT INTO players (telegram_id, username, coins, last_daily, created_at, updated_at)
		VALUES ($1, $2, 1000, 0, NOW(), NOW())
		RETURNING ` + playerColumns

	p, err := scanPlayer(r.pool.QueryRow(ctx, query, telegramID, username))
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return p, nil
}

// GetByTelegramID retrieves a player by their Telegram ID.
// Returns ErrPlayerNotFound if the player does not exist.
func (r *PlayerRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.Player, error) {
	const query = `SELECT ` + playerColumns + ` FROM players WHERE telegram_id = $1`

	p, err := scanPlayer(r.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

// GetByID retrieves a player by their internal ID.
func (r *PlayerRepository) GetByID(ctx context.Context, playerID int64) (*model.Player, error) {
	const query = `SELECT ` + playerColumns + ` FROM players WHERE id = $1`

	p, err := scanPlayer(r.pool.QueryRow(ctx, query, playerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

// GetOrCreate retrieves a player by Telegram ID, creating the account if it
// does not exist. Returns the player and whether it was newly created.
func (r *PlayerRepository) GetOrCreate(ctx context.Context, telegramID int64, username string) (*model.Player, bool, error) {
	p, err := r.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, ErrPlayerNotFound) {
		return nil, false, err
	}

	p, err = r.Create(ctx, telegramID, username)
	if err != nil {
		// Another request may have created the player concurrently.
		p, err = r.GetByTelegramID(ctx, telegramID)
		if err != nil {
			return nil, false, err
		}
		return p, false, nil
	}

	return p, true, nil
}

// AddCoins adjusts a player's balance by the given amount (negative to
// debit). Debits that would take the balance below zero fail with
// ErrInsufficientCoins and leave the balance unchanged.
func (r *PlayerRepository) AddCoins(ctx context.Context, playerID int64, amount int64) (*model.Player, error) {
	const query = `
		UPDATE players
		SET coins = coins + $2, updated_at = NOW()
		WHERE id = $1 AND coins + $2 >= 0
		RETURNING ` + playerColumns

	p, err := scanPlayer(r.pool.QueryRow(ctx, query, playerID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the player is missing or the debit would overdraw.
			if _, getErr := r.GetByID(ctx, playerID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrInsufficientCoins
		}
		return nil, fmt.Errorf("failed to update coins: %w", err)
	}
	return p, nil
}

// SetCoins sets a player's balance to an exact value. Admin use only.
func (r *PlayerRepository) SetCoins(ctx context.Context, playerID int64, coins int64) (*model.Player, error) {
	const query = `
		UPDATE players
		SET coins = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + playerColumns

	p, err := scanPlayer(r.pool.QueryRow(ctx, query, playerID, coins))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to set coins: %w", err)
	}
	return p, nil
}

// GetTopByCoins retrieves the top N players by balance for the leaderboard.
func (r *PlayerRepository) GetTopByCoins(ctx context.Context, limit int) ([]*model.Player, error) {
	const query = `
		SELECT ` + playerColumns + `
		FROM players
		WHERE coins > 0
		ORDER BY coins DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top players: %w", err)
	}
	defer rows.Close()

	var players []*model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating players: %w", err)
	}

	return players, nil
}

// UpdateDailyClaim records the timestamp of a daily reward claim.
func (r *PlayerRepository) UpdateDailyClaim(ctx context.Context, playerID int64, claimTime int64) error {
	const query = `
		UPDATE players
		SET last_daily = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, playerID, claimTime)
	if err != nil {
		return fmt.Errorf("failed to update daily claim: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// CanClaimDaily checks whether the cooldown since the last daily claim has
// elapsed. Returns the remaining wait when not yet eligible.
func (r *PlayerRepository) CanClaimDaily(ctx context.Context, playerID int64, cooldownHours int) (bool, time.Duration, error) {
	p, err := r.GetByID(ctx, playerID)
	if err != nil {
		return false, 0, err
	}

	if p.LastDaily == 0 {
		return true, 0, nil
	}

	nextClaim := time.Unix(p.LastDaily, 0).Add(time.Duration(cooldownHours) * time.Hour)
	now := time.Now()
	if !now.Before(nextClaim) {
		return true, 0, nil
	}
	return false, nextClaim.Sub(now), nil
}

// UpdateUsername refreshes a player's stored username.
func (r *PlayerRepository) UpdateUsername(ctx context.Context, playerID int64, username string) error {
	const query = `
		UPDATE players
		SET username = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, playerID, username)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

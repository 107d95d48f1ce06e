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

// Pack store errors.
var (
	ErrPackNotFound = errors.New("pack not found")
	ErrNoPacksOwned = errors.New("no packs of this kind owned")
)

// PackRepository handles packs, pack ownership, and open history.
type PackRepository struct {
	pool *pgxpool.Pool
}

// NewPackRepository creates a new PackRepository instance.
func NewPackRepository(pool *pgxpool.Pool) *PackRepository {
	return &PackRepository{pool: pool}
}

const packColumns = "id, name, price, cards_count, min_rarity, max_rarity, daily_limit, enabled"

func scanPack(row pgx.Row) (*model.Pack, error) {
	var p model.Pack
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.CardsCount,
		&p.MinRarity, &p.MaxRarity, &p.DailyLimit, &p.Enabled,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPack retrieves a pack by ID.
func (r *PackRepository) GetPack(ctx context.Context, packID int64) (*model.Pack, error) {
	const query = `SELECT ` + packColumns + ` FROM packs WHERE id = $1`

	p, err := scanPack(r.pool.QueryRow(ctx, query, packID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackNotFound
		}
		return nil, fmt.Errorf("failed to get pack: %w", err)
	}
	return p, nil
}

// ListEnabled retrieves all purchasable packs ordered by price.
func (r *PackRepository) ListEnabled(ctx context.Context) ([]*model.Pack, error) {
	const query = `SELECT ` + packColumns + ` FROM packs WHERE enabled ORDER BY price`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}
	defer rows.Close()

	var packs []*model.Pack
	for rows.Next() {
		p, err := scanPack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pack: %w", err)
		}
		packs = append(packs, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packs: %w", err)
	}

	return packs, nil
}

// AddOwned increments a player's owned quantity of a pack.
func (r *PackRepository) AddOwned(ctx context.Context, playerID, packID int64, quantity int) error {
	const query = `
		INSERT INTO player_packs (player_id, pack_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id, pack_id)
		DO UPDATE SET quantity = player_packs.quantity + $3
	`

	if _, err := r.pool.Exec(ctx, query, playerID, packID, quantity); err != nil {
		return fmt.Errorf("failed to add owned packs: %w", err)
	}
	return nil
}

// GetOwnedQuantity returns how many unopened packs of one kind the player has.
func (r *PackRepository) GetOwnedQuantity(ctx context.Context, playerID, packID int64) (int, error) {
	const query = `SELECT quantity FROM player_packs WHERE player_id = $1 AND pack_id = $2`

	var quantity int
	err := r.pool.QueryRow(ctx, query, playerID, packID).Scan(&quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get owned quantity: %w", err)
	}
	return quantity, nil
}

// ConsumeOwned decrements a player's owned quantity, failing with
// ErrNoPacksOwned when fewer than the requested amount are held.
func (r *PackRepository) ConsumeOwned(ctx context.Context, playerID, packID int64, quantity int) error {
	const query = `
		UPDATE player_packs
		SET quantity = quantity - $3
		WHERE player_id = $1 AND pack_id = $2 AND quantity >= $3
	`

	result, err := r.pool.Exec(ctx, query, playerID, packID, quantity)
	if err != nil {
		return fmt.Errorf("failed to consume packs: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNoPacksOwned
	}
	return nil
}

// ListOwned retrieves all pack kinds a player holds at least one of.
func (r *PackRepository) ListOwned(ctx context.Context, playerID int64) ([]*model.PlayerPack, error) {
	const query = `
		SELECT id, player_id, pack_id, quantity
		FROM player_packs
		WHERE player_id = $1 AND quantity > 0
		ORDER BY pack_id
	`

	rows, err := r.pool.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned packs: %w", err)
	}
	defer rows.Close()

	var owned []*model.PlayerPack
	for rows.Next() {
		var pp model.PlayerPack
		if err := rows.Scan(&pp.ID, &pp.PlayerID, &pp.PackID, &pp.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan owned pack: %w", err)
		}
		owned = append(owned, &pp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating owned packs: %w", err)
	}

	return owned, nil
}

// RecordOpen stores one pack opening for daily limit enforcement.
func (r *PackRepository) RecordOpen(ctx context.Context, playerID, packID int64) error {
	const query = `
		INSERT INTO pack_opens (player_id, pack_id, opened_at)
		VALUES ($1, $2, NOW())
	`

	if _, err := r.pool.Exec(ctx, query, playerID, packID); err != nil {
		return fmt.Errorf("failed to record pack open: %w", err)
	}
	return nil
}

// CountOpensSince counts a player's openings of one pack since the given time.
func (r *PackRepository) CountOpensSince(ctx context.Context, playerID, packID int64, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM pack_opens
		WHERE player_id = $1 AND pack_id = $2 AND opened_at >= $3
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, playerID, packID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pack opens: %w", err)
	}
	return count, nil
}

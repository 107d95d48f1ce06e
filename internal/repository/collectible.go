package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-collect-bot/internal/model"
)

// Collectible store errors.
var (
	ErrInstanceNotFound = errors.New("collectible instance not found")
	ErrInstanceLocked   = errors.New("collectible instance is locked")
)

const instanceColumns = "id, collectible_id, player_id, attack_bonus, health_bonus, favorite, trade_locked, deleted, caught_at"

// CollectibleRepository handles the collectible catalog and owned instances.
// It is the ownership store consumed by the bet resolution step.
type CollectibleRepository struct {
	pool *pgxpool.Pool
}

// NewCollectibleRepository creates a new CollectibleRepository instance.
func NewCollectibleRepository(pool *pgxpool.Pool) *CollectibleRepository {
	return &CollectibleRepository{pool: pool}
}

func scanInstance(row pgx.Row) (*model.CollectibleInstance, error) {
	var inst model.CollectibleInstance
	err := row.Scan(
		&inst.ID,
		&inst.CollectibleID,
		&inst.PlayerID,
		&inst.AttackBonus,
		&inst.HealthBonus,
		&inst.Favorite,
		&inst.TradeLocked,
		&inst.Deleted,
		&inst.CaughtAt,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// GetInstance retrieves a single owned instance by ID.
func (r *CollectibleRepository) GetInstance(ctx context.Context, instanceID int64) (*model.CollectibleInstance, error) {
	const query = `SELECT ` + instanceColumns + ` FROM collectible_instances WHERE id = $1 AND NOT deleted`

	inst, err := scanInstance(r.pool.QueryRow(ctx, query, instanceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return inst, nil
}

// IsOwnedBy reports whether the instance exists and belongs to the player.
func (r *CollectibleRepository) IsOwnedBy(ctx context.Context, instanceID, playerID int64) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM collectible_instances
			WHERE id = $1 AND player_id = $2 AND NOT deleted
		)
	`

	var owned bool
	if err := r.pool.QueryRow(ctx, query, instanceID, playerID).Scan(&owned); err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return owned, nil
}

// Lock marks an instance as trade-locked so no concurrent operation can
// move or sell it. Fails with ErrInstanceLocked if already locked.
func (r *CollectibleRepository) Lock(ctx context.Context, instanceID int64) error {
	const query = `
		UPDATE collectible_instances
		SET trade_locked = TRUE
		WHERE id = $1 AND NOT trade_locked AND NOT deleted
	`

	result, err := r.pool.Exec(ctx, query, instanceID)
	if err != nil {
		return fmt.Errorf("failed to lock instance: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, getErr := r.GetInstance(ctx, instanceID); getErr != nil {
			return getErr
		}
		return ErrInstanceLocked
	}
	return nil
}

// Unlock clears an instance's trade lock.
func (r *CollectibleRepository) Unlock(ctx context.Context, instanceID int64) error {
	const query = `UPDATE collectible_instances SET trade_locked = FALSE WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, instanceID); err != nil {
		return fmt.Errorf("failed to unlock instance: %w", err)
	}
	return nil
}

// TransferOwnership reassigns a single instance to another player.
func (r *CollectibleRepository) TransferOwnership(ctx context.Context, instanceID, toPlayerID int64) error {
	const query = `
		UPDATE collectible_instances
		SET player_id = $2
		WHERE id = $1 AND NOT deleted
	`

	result, err := r.pool.Exec(ctx, query, instanceID, toPlayerID)
	if err != nil {
		return fmt.Errorf("failed to transfer instance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInstanceNotFound
	}
	return nil
}

// TransferOwnershipBatch reassigns all given instances to another player in
// one database transaction. Either every instance moves or none do.
func (r *CollectibleRepository) TransferOwnershipBatch(ctx context.Context, instanceIDs []int64, toPlayerID int64) error {
	if len(instanceIDs) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		UPDATE collectible_instances
		SET player_id = $2, trade_locked = FALSE
		WHERE id = ANY($1) AND NOT deleted
	`

	result, err := tx.Exec(ctx, query, instanceIDs, toPlayerID)
	if err != nil {
		return fmt.Errorf("failed to transfer instances: %w", err)
	}
	if result.RowsAffected() != int64(len(instanceIDs)) {
		// A staked instance disappeared since the proposal was built.
		return ErrInstanceNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

// Mint creates a new owned instance of a catalog collectible.
func (r *CollectibleRepository) Mint(ctx context.Context, collectibleID, playerID int64, attackBonus, healthBonus int) (*model.CollectibleInstance, error) {
	const query = `
		INSERT INTO collectible_instances (collectible_id, player_id, attack_bonus, health_bonus, caught_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING ` + instanceColumns

	inst, err := scanInstance(r.pool.QueryRow(ctx, query, collectibleID, playerID, attackBonus, healthBonus))
	if err != nil {
		return nil, fmt.Errorf("failed to mint instance: %w", err)
	}
	return inst, nil
}

// MarkDeleted soft-deletes an instance, used by quicksell. Returns
// ErrInstanceNotFound if the instance does not belong to the player or was
// already deleted.
func (r *CollectibleRepository) MarkDeleted(ctx context.Context, instanceID, playerID int64) error {
	const query = `
		UPDATE collectible_instances
		SET deleted = TRUE
		WHERE id = $1 AND player_id = $2 AND NOT deleted AND NOT trade_locked
	`

	result, err := r.pool.Exec(ctx, query, instanceID, playerID)
	if err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInstanceNotFound
	}
	return nil
}

// ListOwned retrieves a player's instances, oldest first.
func (r *CollectibleRepository) ListOwned(ctx context.Context, playerID int64, limit int) ([]*model.CollectibleInstance, error) {
	const query = `
		SELECT ` + instanceColumns + `
		FROM collectible_instances
		WHERE player_id = $1 AND NOT deleted
		ORDER BY caught_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*model.CollectibleInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return instances, nil
}

// GetCollectible retrieves a catalog entry.
func (r *CollectibleRepository) GetCollectible(ctx context.Context, collectibleID int64) (*model.Collectible, error) {
	const query = `SELECT id, name, rarity, quicksell_value, enabled FROM collectibles WHERE id = $1`

	var c model.Collectible
	err := r.pool.QueryRow(ctx, query, collectibleID).Scan(
		&c.ID, &c.Name, &c.Rarity, &c.QuicksellValue, &c.Enabled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to get collectible: %w", err)
	}
	return &c, nil
}

// ListEnabledByRarity retrieves enabled catalog entries inside a rarity
// window, used by the pack roll.
func (r *CollectibleRepository) ListEnabledByRarity(ctx context.Context, minRarity, maxRarity float64) ([]*model.Collectible, error) {
	const query = `
		SELECT id, name, rarity, quicksell_value, enabled
		FROM collectibles
		WHERE enabled AND rarity >= $1 AND rarity <= $2
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, minRarity, maxRarity)
	if err != nil {
		return nil, fmt.Errorf("failed to list collectibles: %w", err)
	}
	defer rows.Close()

	var collectibles []*model.Collectible
	for rows.Next() {
		var c model.Collectible
		if err := rows.Scan(&c.ID, &c.Name, &c.Rarity, &c.QuicksellValue, &c.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan collectible: %w", err)
		}
		collectibles = append(collectibles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collectibles: %w", err)
	}

	return collectibles, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-collect-bot/internal/model"
)

// BetRepository persists resolved bet outcomes.
type BetRepository struct {
	pool *pgxpool.Pool
}

// NewBetRepository creates a new BetRepository instance.
func NewBetRepository(pool *pgxpool.Pool) *BetRepository {
	return &BetRepository{pool: pool}
}

// Record stores the outcome of a resolved bet.
func (r *BetRepository) Record(ctx context.Context, rec *model.BetRecord) error {
	const query = `
		INSERT INTO bet_records (session_id, player_a, player_b, winner_id, items_moved, succeeded, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	_, err := r.pool.Exec(ctx, query,
		rec.SessionID, rec.PlayerA, rec.PlayerB, rec.WinnerID, rec.ItemsMoved, rec.Succeeded,
	)
	if err != nil {
		return fmt.Errorf("failed to record bet: %w", err)
	}
	return nil
}

// RecordOutcome adapts Record to the resolution engine's recorder
// interface.
func (r *BetRepository) RecordOutcome(ctx context.Context, sessionID string, playerA, playerB, winnerID int64, itemsMoved int, succeeded bool) error {
	return r.Record(ctx, &model.BetRecord{
		SessionID:  sessionID,
		PlayerA:    playerA,
		PlayerB:    playerB,
		WinnerID:   winnerID,
		ItemsMoved: itemsMoved,
		Succeeded:  succeeded,
	})
}

// ListByPlayer retrieves a player's resolved bets, newest first.
func (r *BetRepository) ListByPlayer(ctx context.Context, playerID int64, limit int) ([]*model.BetRecord, error) {
	const query = `
		SELECT id, session_id, player_a, player_b, winner_id, items_moved, succeeded, resolved_at
		FROM bet_records
		WHERE player_a = $1 OR player_b = $1
		ORDER BY resolved_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bet records: %w", err)
	}
	defer rows.Close()

	var records []*model.BetRecord
	for rows.Next() {
		var rec model.BetRecord
		err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.PlayerA, &rec.PlayerB,
			&rec.WinnerID, &rec.ItemsMoved, &rec.Succeeded, &rec.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bet records: %w", err)
	}

	return records, nil
}

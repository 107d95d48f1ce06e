// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-collect-bot/internal/model"
	"telegram-collect-bot/internal/pkg/lock"
	"telegram-collect-bot/internal/repository"
)

// Common errors for ledger operations.
var (
	ErrDailyAlreadyClaimed = errors.New("daily reward already claimed")
	ErrInsufficientCoins   = errors.New("insufficient coins")
	ErrInvalidAmount       = errors.New("invalid amount: must be positive")
	ErrSelfGive            = errors.New("cannot give coins to yourself")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrInstanceNotOwned    = errors.New("collectible instance not owned")
	ErrInstanceProtected   = errors.New("collectible instance is favorited or locked")
)

// LedgerService handles player accounts and every coins movement: daily
// rewards, player-to-player gifts, quickselling collectibles and the
// leaderboard.
type LedgerService struct {
	playerRepo *repository.PlayerRepository
	txRepo     *repository.TransactionRepository
	itemRepo   *repository.CollectibleRepository
	locks      *lock.PlayerLock

	dailyReward int64
	cooldownHrs int
}

// NewLedgerService creates a new LedgerService instance.
func NewLedgerService(
	playerRepo *repository.PlayerRepository,
	txRepo *repository.TransactionRepository,
	itemRepo *repository.CollectibleRepository,
	locks *lock.PlayerLock,
	dailyReward int64,
	cooldownHours int,
) *LedgerService {
	return &LedgerService{
		playerRepo:  playerRepo,
		txRepo:      txRepo,
		itemRepo:    itemRepo,
		locks:       locks,
		dailyReward: dailyReward,
		cooldownHrs: cooldownHours,
	}
}

// EnsurePlayer ensures a player account exists, creating one with the
// initial balance if necessary. Returns the player and whether it was
// newly created.
func (s *LedgerService) EnsurePlayer(ctx context.Context, telegramID int64, username string) (*model.Player, bool, error) {
	player, created, err := s.playerRepo.GetOrCreate(ctx, telegramID, username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure player: %w", err)
	}

	if created {
		desc := "welcome bonus"
		_, _ = s.txRepo.Create(ctx, player.ID, player.Coins, model.TxTypeInitial, &desc)
		return player, true, nil
	}

	if player.Username != username && username != "" {
		if err := s.playerRepo.UpdateUsername(ctx, player.ID, username); err == nil {
			player.Username = username
		}
	}
	return player, false, nil
}

// GetPlayer retrieves a player by their Telegram ID.
func (s *LedgerService) GetPlayer(ctx context.Context, telegramID int64) (*model.Player, error) {
	player, err := s.playerRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return player, nil
}

// GetBalance retrieves a player's current coins balance.
func (s *LedgerService) GetBalance(ctx context.Context, telegramID int64) (int64, error) {
	player, err := s.GetPlayer(ctx, telegramID)
	if err != nil {
		return 0, err
	}
	return player.Coins, nil
}

// ClaimDaily attempts to claim the daily reward. On cooldown it returns
// ErrDailyAlreadyClaimed together with the remaining wait.
func (s *LedgerService) ClaimDaily(ctx context.Context, playerID int64) (int64, time.Duration, error) {
	var remaining time.Duration
	err := s.locks.WithLock(playerID, func() error {
		canClaim, rem, err := s.playerRepo.CanClaimDaily(ctx, playerID, s.cooldownHrs)
		if err != nil {
			return fmt.Errorf("failed to check daily claim eligibility: %w", err)
		}
		if !canClaim {
			remaining = rem
			return ErrDailyAlreadyClaimed
		}

		if _, err := s.playerRepo.AddCoins(ctx, playerID, s.dailyReward); err != nil {
			return fmt.Errorf("failed to add daily reward: %w", err)
		}
		if err := s.playerRepo.UpdateDailyClaim(ctx, playerID, time.Now().Unix()); err != nil {
			return fmt.Errorf("failed to update daily claim time: %w", err)
		}

		desc := "daily reward"
		_, _ = s.txRepo.Create(ctx, playerID, s.dailyReward, model.TxTypeDaily, &desc)
		return nil
	})
	if err != nil {
		return 0, remaining, err
	}
	return s.dailyReward, 0, nil
}

// Give moves coins from one player to another. The amount must be
// positive and the sender must cover it. Both player locks are taken in
// id order so concurrent gives cannot deadlock.
func (s *LedgerService) Give(ctx context.Context, fromPlayerID, toPlayerID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if fromPlayerID == toPlayerID {
		return ErrSelfGive
	}

	first, second := fromPlayerID, toPlayerID
	if second < first {
		first, second = second, first
	}

	return s.locks.WithLock(first, func() error {
		return s.locks.WithLock(second, func() error {
			if _, err := s.playerRepo.GetByID(ctx, toPlayerID); err != nil {
				if errors.Is(err, repository.ErrPlayerNotFound) {
					return ErrPlayerNotFound
				}
				return fmt.Errorf("failed to get receiver: %w", err)
			}

			if _, err := s.playerRepo.AddCoins(ctx, fromPlayerID, -amount); err != nil {
				if errors.Is(err, repository.ErrInsufficientCoins) {
					return ErrInsufficientCoins
				}
				return fmt.Errorf("failed to deduct from sender: %w", err)
			}
			if _, err := s.playerRepo.AddCoins(ctx, toPlayerID, amount); err != nil {
				// Roll the sender back; both players are locked so no
				// interleaved movement can happen in between.
				_, _ = s.playerRepo.AddCoins(ctx, fromPlayerID, amount)
				return fmt.Errorf("failed to add to receiver: %w", err)
			}

			senderDesc := fmt.Sprintf("gift to player %d", toPlayerID)
			receiverDesc := fmt.Sprintf("gift from player %d", fromPlayerID)
			_, _ = s.txRepo.Create(ctx, fromPlayerID, -amount, model.TxTypeGive, &senderDesc)
			_, _ = s.txRepo.Create(ctx, toPlayerID, amount, model.TxTypeGive, &receiverDesc)
			return nil
		})
	})
}

// Quicksell removes an owned collectible instance from the player's
// collection and credits its catalog quicksell value. Favorited and
// trade-locked instances are protected.
func (s *LedgerService) Quicksell(ctx context.Context, playerID, instanceID int64) (int64, error) {
	var value int64
	err := s.locks.WithLock(playerID, func() error {
		instance, err := s.itemRepo.GetInstance(ctx, instanceID)
		if err != nil {
			if errors.Is(err, repository.ErrInstanceNotFound) {
				return ErrInstanceNotOwned
			}
			return fmt.Errorf("failed to get instance: %w", err)
		}
		if instance.PlayerID != playerID || instance.Deleted {
			return ErrInstanceNotOwned
		}
		if instance.Favorite || instance.TradeLocked {
			return ErrInstanceProtected
		}

		collectible, err := s.itemRepo.GetCollectible(ctx, instance.CollectibleID)
		if err != nil {
			return fmt.Errorf("failed to get collectible: %w", err)
		}
		value = collectible.QuicksellValue

		if err := s.itemRepo.MarkDeleted(ctx, instanceID, playerID); err != nil {
			return fmt.Errorf("failed to remove instance: %w", err)
		}
		if _, err := s.playerRepo.AddCoins(ctx, playerID, value); err != nil {
			return fmt.Errorf("failed to credit quicksell: %w", err)
		}

		desc := fmt.Sprintf("quicksold %s", collectible.Name)
		_, _ = s.txRepo.Create(ctx, playerID, value, model.TxTypeQuicksell, &desc)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// AdjustCoins applies an admin-initiated balance change and records it.
// The amount may be negative; the balance never goes below zero.
func (s *LedgerService) AdjustCoins(ctx context.Context, playerID, amount int64, txType string, description string) (*model.Player, error) {
	var player *model.Player
	err := s.locks.WithLock(playerID, func() error {
		var err error
		player, err = s.playerRepo.AddCoins(ctx, playerID, amount)
		if err != nil {
			if errors.Is(err, repository.ErrPlayerNotFound) {
				return ErrPlayerNotFound
			}
			if errors.Is(err, repository.ErrInsufficientCoins) {
				return ErrInsufficientCoins
			}
			return fmt.Errorf("failed to adjust coins: %w", err)
		}
		_, _ = s.txRepo.Create(ctx, playerID, amount, txType, &description)
		return nil
	})
	return player, err
}

// SetCoins overwrites a player's balance and records the delta.
func (s *LedgerService) SetCoins(ctx context.Context, playerID, coins int64, description string) (*model.Player, error) {
	if coins < 0 {
		return nil, ErrInvalidAmount
	}
	var player *model.Player
	err := s.locks.WithLock(playerID, func() error {
		before, err := s.playerRepo.GetByID(ctx, playerID)
		if err != nil {
			if errors.Is(err, repository.ErrPlayerNotFound) {
				return ErrPlayerNotFound
			}
			return fmt.Errorf("failed to get player: %w", err)
		}
		player, err = s.playerRepo.SetCoins(ctx, playerID, coins)
		if err != nil {
			return fmt.Errorf("failed to set coins: %w", err)
		}
		_, _ = s.txRepo.Create(ctx, playerID, coins-before.Coins, model.TxTypeAdminSet, &description)
		return nil
	})
	return player, err
}

// ListCollection retrieves a player's owned collectible instances.
func (s *LedgerService) ListCollection(ctx context.Context, playerID int64, limit int) ([]*model.CollectibleInstance, error) {
	return s.itemRepo.ListOwned(ctx, playerID, limit)
}

// GetTopPlayers retrieves the leaderboard by coins balance.
func (s *LedgerService) GetTopPlayers(ctx context.Context, limit int) ([]*model.Player, error) {
	return s.playerRepo.GetTopByCoins(ctx, limit)
}

// GetHistory retrieves a player's recent coin transactions.
func (s *LedgerService) GetHistory(ctx context.Context, playerID int64, limit int) ([]*model.CoinTransaction, error) {
	return s.txRepo.GetByPlayerID(ctx, playerID, limit)
}

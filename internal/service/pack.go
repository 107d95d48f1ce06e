package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"telegram-collect-bot/internal/model"
	"telegram-collect-bot/internal/pkg/lock"
	"telegram-collect-bot/internal/repository"
)

// Common errors for pack operations.
var (
	ErrPackNotFound      = errors.New("pack not found")
	ErrPackDisabled      = errors.New("pack is not for sale")
	ErrNoPacksOwned      = errors.New("no unopened packs of this kind")
	ErrDailyLimitReached = errors.New("daily pack open limit reached")
	ErrNothingToMint     = errors.New("no collectibles in the pack's rarity window")
	ErrTooMany           = errors.New("count exceeds the per-command limit")
)

// PackService sells and opens collectible packs. Opening rolls each card
// over the enabled catalog, weighted by rarity within the pack's window.
type PackService struct {
	packRepo   *repository.PackRepository
	itemRepo   *repository.CollectibleRepository
	playerRepo *repository.PlayerRepository
	txRepo     *repository.TransactionRepository
	locks      *lock.PlayerLock

	maxBuy    int
	maxOpen   int
	maxAttack int
	maxHealth int

	// roll returns a value in [0, max); replaced in tests.
	roll func(max float64) float64
	// bonus returns a value in [-max, max]; replaced in tests.
	bonus func(max int) int
}

// NewPackService creates a new PackService instance.
func NewPackService(
	packRepo *repository.PackRepository,
	itemRepo *repository.CollectibleRepository,
	playerRepo *repository.PlayerRepository,
	txRepo *repository.TransactionRepository,
	locks *lock.PlayerLock,
	maxBuy, maxOpen, maxAttack, maxHealth int,
) *PackService {
	return &PackService{
		packRepo:   packRepo,
		itemRepo:   itemRepo,
		playerRepo: playerRepo,
		txRepo:     txRepo,
		locks:      locks,
		maxBuy:     maxBuy,
		maxOpen:    maxOpen,
		maxAttack:  maxAttack,
		maxHealth:  maxHealth,
		roll: func(max float64) float64 {
			return rand.Float64() * max
		},
		bonus: func(max int) int {
			if max <= 0 {
				return 0
			}
			return rand.Intn(2*max+1) - max
		},
	}
}

// ListPacks retrieves all packs currently for sale.
func (s *PackService) ListPacks(ctx context.Context) ([]*model.Pack, error) {
	return s.packRepo.ListEnabled(ctx)
}

// ListOwned retrieves the player's unopened packs.
func (s *PackService) ListOwned(ctx context.Context, playerID int64) ([]*model.PlayerPack, error) {
	return s.packRepo.ListOwned(ctx, playerID)
}

// Buy purchases count packs of one kind, deducting the total price and
// crediting the unopened pack inventory.
func (s *PackService) Buy(ctx context.Context, playerID, packID int64, count int) (*model.Pack, error) {
	if count <= 0 {
		return nil, ErrInvalidAmount
	}
	if count > s.maxBuy {
		return nil, ErrTooMany
	}

	pack, err := s.packRepo.GetPack(ctx, packID)
	if err != nil {
		if errors.Is(err, repository.ErrPackNotFound) {
			return nil, ErrPackNotFound
		}
		return nil, fmt.Errorf("failed to get pack: %w", err)
	}
	if !pack.Enabled {
		return nil, ErrPackDisabled
	}

	total := pack.Price * int64(count)
	err = s.locks.WithLock(playerID, func() error {
		if _, err := s.playerRepo.AddCoins(ctx, playerID, -total); err != nil {
			if errors.Is(err, repository.ErrInsufficientCoins) {
				return ErrInsufficientCoins
			}
			return fmt.Errorf("failed to charge pack price: %w", err)
		}
		if err := s.packRepo.AddOwned(ctx, playerID, packID, count); err != nil {
			_, _ = s.playerRepo.AddCoins(ctx, playerID, total)
			return fmt.Errorf("failed to add packs: %w", err)
		}

		desc := fmt.Sprintf("bought %dx %s", count, pack.Name)
		_, _ = s.txRepo.Create(ctx, playerID, -total, model.TxTypePackBuy, &desc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pack, nil
}

// Give moves count unopened packs of one kind from one player to
// another. Both player locks are taken in id order so concurrent gives
// cannot deadlock.
func (s *PackService) Give(ctx context.Context, fromPlayerID, toPlayerID, packID int64, count int) (*model.Pack, error) {
	if count <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromPlayerID == toPlayerID {
		return nil, ErrSelfGive
	}

	pack, err := s.packRepo.GetPack(ctx, packID)
	if err != nil {
		if errors.Is(err, repository.ErrPackNotFound) {
			return nil, ErrPackNotFound
		}
		return nil, fmt.Errorf("failed to get pack: %w", err)
	}

	first, second := fromPlayerID, toPlayerID
	if second < first {
		first, second = second, first
	}

	err = s.locks.WithLock(first, func() error {
		return s.locks.WithLock(second, func() error {
			if _, err := s.playerRepo.GetByID(ctx, toPlayerID); err != nil {
				if errors.Is(err, repository.ErrPlayerNotFound) {
					return ErrPlayerNotFound
				}
				return fmt.Errorf("failed to get receiver: %w", err)
			}

			if err := s.packRepo.ConsumeOwned(ctx, fromPlayerID, packID, count); err != nil {
				if errors.Is(err, repository.ErrNoPacksOwned) {
					return ErrNoPacksOwned
				}
				return fmt.Errorf("failed to consume sender packs: %w", err)
			}
			if err := s.packRepo.AddOwned(ctx, toPlayerID, packID, count); err != nil {
				// Roll the sender back; both players are locked so no
				// interleaved movement can happen in between.
				_ = s.packRepo.AddOwned(ctx, fromPlayerID, packID, count)
				return fmt.Errorf("failed to add receiver packs: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return pack, nil
}

// Open consumes count unopened packs and mints their cards. Each card is
// rolled independently over the enabled collectibles inside the pack's
// rarity window, weighted by rarity, with random attack and health
// bonuses.
func (s *PackService) Open(ctx context.Context, playerID, packID int64, count int) ([]*model.CollectibleInstance, error) {
	if count <= 0 {
		return nil, ErrInvalidAmount
	}
	if count > s.maxOpen {
		return nil, ErrTooMany
	}

	pack, err := s.packRepo.GetPack(ctx, packID)
	if err != nil {
		if errors.Is(err, repository.ErrPackNotFound) {
			return nil, ErrPackNotFound
		}
		return nil, fmt.Errorf("failed to get pack: %w", err)
	}

	pool, err := s.itemRepo.ListEnabledByRarity(ctx, pack.MinRarity, pack.MaxRarity)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	if len(pool) == 0 {
		return nil, ErrNothingToMint
	}

	var minted []*model.CollectibleInstance
	err = s.locks.WithLock(playerID, func() error {
		if pack.DailyLimit > 0 {
			since := time.Now().UTC().Truncate(24 * time.Hour)
			opened, err := s.packRepo.CountOpensSince(ctx, playerID, packID, since)
			if err != nil {
				return fmt.Errorf("failed to count pack opens: %w", err)
			}
			if opened+count > pack.DailyLimit {
				return ErrDailyLimitReached
			}
		}

		if err := s.packRepo.ConsumeOwned(ctx, playerID, packID, count); err != nil {
			if errors.Is(err, repository.ErrNoPacksOwned) {
				return ErrNoPacksOwned
			}
			return fmt.Errorf("failed to consume packs: %w", err)
		}

		for i := 0; i < count; i++ {
			for c := 0; c < pack.CardsCount; c++ {
				collectible := s.pick(pool)
				instance, err := s.itemRepo.Mint(ctx, collectible.ID, playerID,
					s.bonus(s.maxAttack), s.bonus(s.maxHealth))
				if err != nil {
					return fmt.Errorf("failed to mint card: %w", err)
				}
				minted = append(minted, instance)
			}
			if err := s.packRepo.RecordOpen(ctx, playerID, packID); err != nil {
				return fmt.Errorf("failed to record pack open: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// pick rolls one collectible from the pool, weighted by rarity.
func (s *PackService) pick(pool []*model.Collectible) *model.Collectible {
	var total float64
	for _, c := range pool {
		total += c.Rarity
	}
	r := s.roll(total)
	var cumulative float64
	for _, c := range pool {
		cumulative += c.Rarity
		if r <= cumulative {
			return c
		}
	}
	return pool[len(pool)-1]
}

// Package model defines the data models for the Telegram collectible bot.
package model

import "time"

// Player represents a Telegram user account in the collectible economy.
type Player struct {
	ID         int64     `db:"id"`
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	Coins      int64     `db:"coins"`
	LastDaily  int64     `db:"last_daily"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Collectible is a catalog entry: one collectible design that instances
// are minted from.
type Collectible struct {
	ID             int64   `db:"id"`
	Name           string  `db:"name"`
	Rarity         float64 `db:"rarity"`
	QuicksellValue int64   `db:"quicksell_value"`
	Enabled        bool    `db:"enabled"`
}

// CollectibleInstance is a single owned copy of a Collectible.
type CollectibleInstance struct {
	ID            int64     `db:"id"`
	CollectibleID int64     `db:"collectible_id"`
	PlayerID      int64     `db:"player_id"`
	AttackBonus   int       `db:"attack_bonus"`
	HealthBonus   int       `db:"health_bonus"`
	Favorite      bool      `db:"favorite"`
	TradeLocked   bool      `db:"trade_locked"`
	Deleted       bool      `db:"deleted"`
	CaughtAt      time.Time `db:"caught_at"`
}

// CoinTransaction represents a coins balance change record.
type CoinTransaction struct {
	ID          int64     `db:"id"`
	PlayerID    int64     `db:"player_id"`
	Amount      int64     `db:"amount"`
	Type        string    `db:"type"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Pack is a purchasable loot box yielding random collectible instances.
type Pack struct {
	ID         int64   `db:"id"`
	Name       string  `db:"name"`
	Price      int64   `db:"price"`
	CardsCount int     `db:"cards_count"`
	MinRarity  float64 `db:"min_rarity"`
	MaxRarity  float64 `db:"max_rarity"`
	DailyLimit int     `db:"daily_limit"`
	Enabled    bool    `db:"enabled"`
}

// PlayerPack tracks how many unopened packs of one kind a player owns.
type PlayerPack struct {
	ID       int64 `db:"id"`
	PlayerID int64 `db:"player_id"`
	PackID   int64 `db:"pack_id"`
	Quantity int   `db:"quantity"`
}

// PackOpen records a single pack opening, used for daily limit enforcement.
type PackOpen struct {
	ID       int64     `db:"id"`
	PlayerID int64     `db:"player_id"`
	PackID   int64     `db:"pack_id"`
	OpenedAt time.Time `db:"opened_at"`
}

// BetRecord is the persisted outcome of a resolved bet.
type BetRecord struct {
	ID         int64     `db:"id"`
	SessionID  string    `db:"session_id"`
	PlayerA    int64     `db:"player_a"`
	PlayerB    int64     `db:"player_b"`
	WinnerID   int64     `db:"winner_id"`
	ItemsMoved int       `db:"items_moved"`
	Succeeded  bool      `db:"succeeded"`
	ResolvedAt time.Time `db:"resolved_at"`
}

// Transaction types for categorizing coins balance changes.
const (
	TxTypeInitial   = "initial"   // Initial balance on account creation
	TxTypeDaily     = "daily"     // Daily reward claim
	TxTypeGive      = "give"      // Player-to-player coin gift
	TxTypeQuicksell = "quicksell" // Collectible sold back for coins
	TxTypePackBuy   = "pack_buy"  // Pack purchase
	TxTypeAdminAdd  = "admin_add" // Admin added coins
	TxTypeAdminSub  = "admin_sub" // Admin subtracted coins
	TxTypeAdminSet  = "admin_set" // Admin set balance
)

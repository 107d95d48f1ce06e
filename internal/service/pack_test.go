package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"telegram-collect-bot/internal/model"
	"telegram-collect-bot/internal/pkg/lock"
)

func testPackService() *PackService {
	return NewPackService(nil, nil, nil, nil, lock.NewPlayerLock(), 10, 10, 5, 5)
}

// Rarities sum in exactly representable halves and quarters so the
// cumulative walk hits the band edges without rounding.
func testPool() []*model.Collectible {
	return []*model.Collectible{
		{ID: 1, Name: "common", Rarity: 0.5},
		{ID: 2, Name: "uncommon", Rarity: 0.25},
		{ID: 3, Name: "rare", Rarity: 0.25},
	}
}

func TestPickRollBoundaries(t *testing.T) {
	s := testPackService()
	pool := testPool()

	tests := []struct {
		name   string
		roll   float64
		wantID int64
	}{
		{"zero lands on first", 0.0, 1},
		{"inside first band", 0.4, 1},
		{"first band edge", 0.5, 1},
		{"inside second band", 0.6, 2},
		{"second band edge", 0.75, 2},
		{"inside third band", 0.9, 3},
		{"total edge", 1.0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.roll = func(max float64) float64 { return tt.roll }
			assert.Equal(t, tt.wantID, s.pick(pool).ID)
		})
	}
}

// TestPickRarityWeightProperty checks that every roll inside a
// collectible's cumulative rarity band selects that collectible, so the
// selection probability is proportional to rarity.
func TestPickRarityWeightProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "poolSize")
		pool := make([]*model.Collectible, n)
		var total float64
		for i := range pool {
			rarity := float64(rapid.IntRange(1, 1000).Draw(t, "rarity")) / 1000
			pool[i] = &model.Collectible{ID: int64(i + 1), Rarity: rarity}
			total += rarity
		}

		r := rapid.Float64Range(0, total).Draw(t, "roll")
		s := testPackService()
		s.roll = func(max float64) float64 { return r }

		picked := s.pick(pool)

		var cumulative float64
		var wantID int64 = pool[n-1].ID
		for _, c := range pool {
			cumulative += c.Rarity
			if r <= cumulative {
				wantID = c.ID
				break
			}
		}
		if picked.ID != wantID {
			t.Fatalf("roll %v over total %v picked %d, want %d", r, total, picked.ID, wantID)
		}
	})
}

func TestGivePackGuards(t *testing.T) {
	s := testPackService()
	ctx := context.Background()

	_, err := s.Give(ctx, 1, 2, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = s.Give(ctx, 1, 2, 1, -3)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = s.Give(ctx, 7, 7, 1, 1)
	assert.ErrorIs(t, err, ErrSelfGive)
}

// simulateGivePack mirrors the validation order and inventory movement
// of PackService.Give: count check, self check, then the held-quantity
// guard the consume step enforces.
func simulateGivePack(senderHeld, receiverHeld, count int, senderID, receiverID int64) (int, int, error) {
	if count <= 0 {
		return senderHeld, receiverHeld, ErrInvalidAmount
	}
	if senderID == receiverID {
		return senderHeld, receiverHeld, ErrSelfGive
	}
	if senderHeld < count {
		return senderHeld, receiverHeld, ErrNoPacksOwned
	}
	return senderHeld - count, receiverHeld + count, nil
}

// TestGivePackConservationProperty checks that pack gifting conserves
// the total unopened quantity and never drives the sender negative.
func TestGivePackConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		senderHeld := rapid.IntRange(0, 1000).Draw(t, "senderHeld")
		receiverHeld := rapid.IntRange(0, 1000).Draw(t, "receiverHeld")
		count := rapid.IntRange(-5, 1005).Draw(t, "count")
		senderID := rapid.Int64Range(1, 1000).Draw(t, "senderID")
		receiverID := rapid.Int64Range(1, 1000).Draw(t, "receiverID")

		senderAfter, receiverAfter, err := simulateGivePack(senderHeld, receiverHeld, count, senderID, receiverID)

		var want error
		switch {
		case count <= 0:
			want = ErrInvalidAmount
		case senderID == receiverID:
			want = ErrSelfGive
		case senderHeld < count:
			want = ErrNoPacksOwned
		}

		if want != nil {
			if !errors.Is(err, want) {
				t.Fatalf("expected %v, got %v", want, err)
			}
			if senderAfter != senderHeld || receiverAfter != receiverHeld {
				t.Fatalf("inventory changed on failed give: sender %d->%d, receiver %d->%d",
					senderHeld, senderAfter, receiverHeld, receiverAfter)
			}
			return
		}
		if err != nil {
			t.Fatalf("give should succeed: held=%d, count=%d, err=%v", senderHeld, count, err)
		}
		if senderAfter < 0 {
			t.Fatalf("sender went negative: %d", senderAfter)
		}
		if senderAfter+receiverAfter != senderHeld+receiverHeld {
			t.Fatalf("pack total not conserved: before=%d, after=%d",
				senderHeld+receiverHeld, senderAfter+receiverAfter)
		}
	})
}

func TestBonusRange(t *testing.T) {
	s := testPackService()
	for i := 0; i < 1000; i++ {
		b := s.bonus(5)
		assert.GreaterOrEqual(t, b, -5)
		assert.LessOrEqual(t, b, 5)
	}
	assert.Zero(t, s.bonus(0))
}

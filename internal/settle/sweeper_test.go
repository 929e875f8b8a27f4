package settle

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/footyshares/club-engine/internal/model"
	"github.com/footyshares/club-engine/internal/store"
)

func TestSweep_AppliesOnlyFixturesWithResults(t *testing.T) {
	ms := store.NewMemoryStore()
	eng := newTestEngine(ms, 0.10)
	ctx := context.Background()

	fxID := seedFixture(t, ms, d(5000), d(3000))
	ms.RecordResult(ctx, fxID, 2, 1)

	// A second fixture with no result yet must be left alone.
	pending := &model.Fixture{
		ID:             "fx2",
		HomeClubID:     "home",
		AwayClubID:     "away",
		Status:         model.FixturePending,
		TransferAmount: decimal.Zero,
		KickoffAt:      time.Now().UTC(),
	}
	if err := ms.CreateFixture(ctx, pending); err != nil {
		t.Fatalf("failed to seed fixture: %v", err)
	}

	sweeper, err := NewSweeper(eng, "@every 1m")
	if err != nil {
		t.Fatalf("failed to create sweeper: %v", err)
	}
	sweeper.sweep()

	scored, _ := ms.GetFixture(ctx, fxID)
	if scored.Status != model.FixtureApplied {
		t.Errorf("fixture with result should be applied, got %s", scored.Status)
	}
	unscored, _ := ms.GetFixture(ctx, "fx2")
	if unscored.Status != model.FixturePending {
		t.Errorf("fixture without result should stay pending, got %s", unscored.Status)
	}
	if got := mustCap(t, ms, "home"); !got.Equal(d(5300)) {
		t.Errorf("expected home cap 5300 after sweep, got %s", got)
	}
}

func TestSweep_SkipsAppliedRace(t *testing.T) {
	// A fixture applied between the list and the apply call is not an
	// error for the sweep.
	ms := store.NewMemoryStore()
	eng := newTestEngine(ms, 0.10)
	ctx := context.Background()

	fxID := seedFixture(t, ms, d(5000), d(3000))
	ms.RecordResult(ctx, fxID, 1, 0)
	if _, err := eng.Apply(ctx, fxID); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	sweeper, err := NewSweeper(eng, "@every 1m")
	if err != nil {
		t.Fatalf("failed to create sweeper: %v", err)
	}
	sweeper.sweep()

	if got := mustCap(t, ms, "home"); !got.Equal(d(5300)) {
		t.Errorf("sweep must not re-apply: expected 5300, got %s", got)
	}
}

func TestNewSweeper_BadSpec(t *testing.T) {
	ms := store.NewMemoryStore()
	eng := newTestEngine(ms, 0.10)

	if _, err := NewSweeper(eng, "not a cron spec"); err == nil {
		t.Error("expected error for invalid cron spec")
	}
}

package settle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/footyshares/club-engine/internal/model"
	"github.com/footyshares/club-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTestEngine(st store.Store, rate float64) *Engine {
	return NewEngine(st, d(rate), d(10), 3, nil)
}

// seedFixture creates two clubs and a pending fixture between them.
func seedFixture(t *testing.T, ms *store.MemoryStore, homeCap, awayCap decimal.Decimal) string {
	t.Helper()
	ctx := context.Background()

	clubs := []*model.Club{
		{ID: "home", Name: "Home FC", MarketCap: homeCap, TotalShares: 1000, AvailableShares: 1000, Status: model.ClubOpen, CreatedAt: time.Now().UTC()},
		{ID: "away", Name: "Away FC", MarketCap: awayCap, TotalShares: 1000, AvailableShares: 1000, Status: model.ClubOpen, CreatedAt: time.Now().UTC()},
	}
	for _, c := range clubs {
		if err := ms.CreateClub(ctx, c); err != nil {
			t.Fatalf("failed to seed club %s: %v", c.ID, err)
		}
	}

	fixture := &model.Fixture{
		ID:             "fx1",
		HomeClubID:     "home",
		AwayClubID:     "away",
		Status:         model.FixturePending,
		TransferAmount: decimal.Zero,
		KickoffAt:      time.Now().UTC(),
	}
	if err := ms.CreateFixture(ctx, fixture); err != nil {
		t.Fatalf("failed to seed fixture: %v", err)
	}
	return fixture.ID
}

func mustCap(t *testing.T, ms *store.MemoryStore, clubID string) decimal.Decimal {
	t.Helper()
	club, err := ms.GetClub(context.Background(), clubID)
	if err != nil {
		t.Fatalf("failed to get club %s: %v", clubID, err)
	}
	return club.MarketCap
}

func TestApply_HomeWin(t *testing.T) {
	ms := store.NewMemoryStore()
	eng := newTestEngine(ms, 0.10)
	ctx := context.Background()

	fxID := seedFixture(t, ms, d(5000), d(3000))
	ms.RecordResult(ctx, fxID, 2, 1)

	res, err := eng.Apply(ctx, fxID)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if res.Outcome != OutcomeHome {
		t.Errorf("expected home outcome, got %s", res.Outcome)
	}
	// Loser gives up 10% of 3000 = 300.
	if !res.TransferAmount.Equal(d(300)) {
		t.Errorf("expected transfer 300, got %s", res.TransferAmount)
	}
	if got := mustCap(t, ms, "home"); !got.Equal(d(5300)) {
		t.Errorf("expected home cap 5300, got %s", got)
	}
	if got := mustCap(t, ms, "away"); !got.Equal(d(2700)) {
		t.Errorf("expected away cap 2700, got %s", got)
	}

	fixture, _ := ms.GetFixture(ctx, fxID)
	if fixture.Status != model.FixtureApplied {
		t.Errorf("expected fixture applied, got %s", fixture.Status)
	}
	if fixture.AppliedAt == nil {
		t.Error("expected applied_at to be set")
	}
}

func TestApply_AwayWin(t *testing.T) {
	ms := store.NewMemoryStore()
	eng := newTestEngine(ms, 0.10)
	ctx := context.Background()

	fxID := seedFixture(t, ms, d(5000), d(3000))
	ms.RecordResult(ctx, fxID, 0, 1)

	res, err := eng.Apply(ctx, fxID)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if res.Outcome != OutcomeAway {
		t.Errorf("expected away outcome, got %s", res.Outcome)
	}
	if !res.TransferAmount.Equal(d(500)) {
		t.Errorf("expected transfer 500, got %s", res.TransferAmount)
	}
	if got := mustCap(t, ms, "home"); !got.Equal(d(4500)) {
		t.Errorf("expected home cap 4500, got %s", got)
	}
	if got := mustCap(t, ms, "away"); !got.Equal(d(3500)) {
		t.Errorf("expected away cap 3500, got %s", got)
	}
	if !res.HomeNewCap.Equal(d(4500)) || !res.AwayNewCap.Equal(d(3500)) {
		t.Errorf("result caps wrong: home=%s away=%s", res.HomeNewCap, res.AwayNewCap)
	}
}

func TestApply_CapConserved(t *testing.T) {
	ms := store.NewMemoryStore()
	eng := newTestEngine(ms, 0.10)
	ctx := context.Background()

	fxID := seedFixture(t, ms, d(5000), d(3000))
	ms.RecordResult(ctx, fxID, 3, 0)

	before := d(8000)
	if _, err := eng.Apply(ctx, fxID); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	after := mustCap(t, ms, "home").Add(mustCap(t, ms, "away"))
	if !after.Equal(before) {
		t.Errorf("total cap not conserved: before=%s after=%s", before, after)
	}
}

func TestApply_Draw(t *testing.T) {
	ms := store.NewMemoryStore()
	eng := newTestEngine(ms, 0.10)
	ctx := context.Background()

	fxID := seedFixture(t, ms, d(5000), d(3000))
	ms.RecordResult(ctx, fxID, 1, 1)

	res, err := eng.Apply(ctx, fxID)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if res.Outcome != OutcomeDraw {
		t.Errorf("expected draw outcome, got %s", res.Outcome)
	}
	if !res.TransferAmount.IsZero() {
		t.Errorf("expected zero transfer on draw, got %s", res.TransferAmount)
	}
	if got := mustCap(t, ms, "home"); !got.Equal(d(5000)) {
		t.Errorf("home cap changed on draw: %s", got)
	}
	if got := mustCap(t, ms, "away"); !got.Equal(d(3000)) {
		t.Errorf("away cap changed on draw: %s", got)
	}

	// The fixture still flips to applied so the sweeper never revisits it.
	fixture, _ := ms.GetFixture(ctx, fxID)
	if fixture.Status != model.FixtureApplied {
		t.Errorf("expected fixture applied after draw, got %s", fixture.Status)
	}
}

func TestApply_FloorClampsTransfer(t *testing.T) {
	// At rate 0.5 the loser would drop from 12 to 6, below the floor of
	// 10. Only 2 actually moves and the winner receives exactly that.
	ms := store.NewMemoryStore()
	eng := newTestEngine(ms, 0.5)
	ctx := context.Background()

	fxID := seedFixture(t, ms, d(5000), d(12))
	ms.RecordResult(ctx, fxID, 1, 0)

	res, err := eng.Apply(ctx, fxID)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if !res.TransferAmount.Equal(d(2)) {
		t.Errorf("expected clamped transfer 2, got %s", res.TransferAmount)
	}
	if got := mustCap(t, ms, "home"); !got.Equal(d(5002)) {
		t.Errorf("expected home cap 5002, got %s", got)
	}
	if got := mustCap(t, ms, "away"); !got.Equal(d(10)) {
		t.Errorf("expected away cap at floor 10, got %s", got)
	}
}

func TestApply_LoserAtFloor(t *testing.T) {
	// A loser already at the floor gives up nothing, but the fixture
	// still settles.
	ms := store.NewMemoryStore()
	eng := newTestEngine(ms, 0.10)
	ctx := context.Background()

	fxID := seedFixture(t, ms, d(5000), d(10))
	ms.RecordResult(ctx, fxID, 1, 0)

	res, err := eng.Apply(ctx, fxID)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if !res.TransferAmount.IsZero() {
		t.Errorf("expected zero transfer at floor, got %s", res.TransferAmount)
	}
	if got := mustCap(t, ms, "home"); !got.Equal(d(5000)) {
		t.Errorf("winner cap should be unchanged, got %s", got)
	}

	fixture, _ := ms.GetFixture(ctx, fxID)
	if fixture.Status != model.FixtureApplied {
		t.Errorf("expected fixture applied, got %s", fixture.Status)
	}
}

func TestApply_Idempotent(t *testing.T) {
	ms := store.NewMemoryStore()
	eng := newTestEngine(ms, 0.10)
	ctx := context.Background()

	fxID := seedFixture(t, ms, d(5000), d(3000))
	ms.RecordResult(ctx, fxID, 2, 0)

	if _, err := eng.Apply(ctx, fxID); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	if _, err := eng.Apply(ctx, fxID); !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("expected ErrAlreadyApplied, got %v", err)
	}

	// The second call must not have moved caps again.
	if got := mustCap(t, ms, "home"); !got.Equal(d(5300)) {
		t.Errorf("expected home cap 5300 after double apply, got %s", got)
	}
	if got := mustCap(t, ms, "away"); !got.Equal(d(2700)) {
		t.Errorf("expected away cap 2700 after double apply, got %s", got)
	}
}

func TestApply_NoResult(t *testing.T) {
	ms := store.NewMemoryStore()
	eng := newTestEngine(ms, 0.10)
	ctx := context.Background()

	fxID := seedFixture(t, ms, d(5000), d(3000))

	if _, err := eng.Apply(ctx, fxID); !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}

	fixture, _ := ms.GetFixture(ctx, fxID)
	if fixture.Status != model.FixturePending {
		t.Errorf("fixture should remain pending, got %s", fixture.Status)
	}
}

func TestApply_FixtureNotFound(t *testing.T) {
	ms := store.NewMemoryStore()
	eng := newTestEngine(ms, 0.10)

	if _, err := eng.Apply(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

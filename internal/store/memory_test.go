package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/footyshares/club-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seedClub(t *testing.T, ms *MemoryStore, id string, marketCap float64) {
	t.Helper()
	club := &model.Club{
		ID:              id,
		Name:            id + " FC",
		MarketCap:       d(marketCap),
		TotalShares:     1000,
		AvailableShares: 1000,
		Status:          model.ClubOpen,
		CreatedAt:       time.Now().UTC(),
	}
	if err := ms.CreateClub(context.Background(), club); err != nil {
		t.Fatalf("failed to seed club: %v", err)
	}
}

func TestCreateClub_Duplicate(t *testing.T) {
	ms := NewMemoryStore()
	seedClub(t, ms, "club1", 5000)

	err := ms.CreateClub(context.Background(), &model.Club{ID: "club1", Name: "Other FC"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetClub_ReturnsCopy(t *testing.T) {
	ms := NewMemoryStore()
	seedClub(t, ms, "club1", 5000)
	ctx := context.Background()

	club, _ := ms.GetClub(ctx, "club1")
	club.MarketCap = d(1)

	again, _ := ms.GetClub(ctx, "club1")
	if !again.MarketCap.Equal(d(5000)) {
		t.Errorf("mutating a returned club leaked into the store: %s", again.MarketCap)
	}
}

func TestCreditWallet_CreatesOnFirstCredit(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	if _, err := ms.GetWallet(ctx, "user1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	wallet, err := ms.CreditWallet(ctx, "user1", d(100))
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if !wallet.Balance.Equal(d(100)) {
		t.Errorf("expected balance 100, got %s", wallet.Balance)
	}

	wallet, _ = ms.CreditWallet(ctx, "user1", d(50))
	if !wallet.Balance.Equal(d(150)) {
		t.Errorf("expected balance 150, got %s", wallet.Balance)
	}
}

func TestTx_RollbackOnError(t *testing.T) {
	ms := NewMemoryStore()
	seedClub(t, ms, "club1", 5000)
	ctx := context.Background()
	ms.CreditWallet(ctx, "user1", d(100))

	boom := errors.New("boom")
	err := ms.Tx(ctx, func(tx Tx) error {
		if err := tx.UpdateClub(ctx, "club1", d(9999), 1); err != nil {
			return err
		}
		if err := tx.UpdateWallet(ctx, "user1", d(0)); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, &model.Order{ID: "o1", UserID: "user1", ClubID: "club1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	// Nothing staged inside the failed transaction may be visible.
	club, _ := ms.GetClub(ctx, "club1")
	if !club.MarketCap.Equal(d(5000)) {
		t.Errorf("club write leaked from rolled-back tx: %s", club.MarketCap)
	}
	wallet, _ := ms.GetWallet(ctx, "user1")
	if !wallet.Balance.Equal(d(100)) {
		t.Errorf("wallet write leaked from rolled-back tx: %s", wallet.Balance)
	}
	if orders, _ := ms.GetOrdersByUser(ctx, "user1"); len(orders) != 0 {
		t.Errorf("order leaked from rolled-back tx: %d", len(orders))
	}
}

func TestTx_ReadsOwnWrites(t *testing.T) {
	ms := NewMemoryStore()
	seedClub(t, ms, "club1", 5000)
	ctx := context.Background()

	err := ms.Tx(ctx, func(tx Tx) error {
		if err := tx.UpdateClub(ctx, "club1", d(6000), 900); err != nil {
			return err
		}
		club, err := tx.LockClub(ctx, "club1")
		if err != nil {
			return err
		}
		if !club.MarketCap.Equal(d(6000)) {
			t.Errorf("tx should see its own write, got %s", club.MarketCap)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}

	club, _ := ms.GetClub(ctx, "club1")
	if !club.MarketCap.Equal(d(6000)) || club.AvailableShares != 900 {
		t.Errorf("commit not applied: cap=%s shares=%d", club.MarketCap, club.AvailableShares)
	}
}

func TestTx_LockPositionZeroValue(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	err := ms.Tx(ctx, func(tx Tx) error {
		pos, err := tx.LockPosition(ctx, "user1", "club1")
		if err != nil {
			return err
		}
		if pos.Quantity != 0 || !pos.TotalInvested.IsZero() {
			t.Errorf("expected zero-value position, got qty=%d invested=%s", pos.Quantity, pos.TotalInvested)
		}
		if pos.UserID != "user1" || pos.ClubID != "club1" {
			t.Errorf("position keys wrong: %s/%s", pos.UserID, pos.ClubID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}
}

func TestTx_MarkFixtureApplied(t *testing.T) {
	ms := NewMemoryStore()
	seedClub(t, ms, "home", 5000)
	seedClub(t, ms, "away", 3000)
	ctx := context.Background()

	fixture := &model.Fixture{
		ID:         "fx1",
		HomeClubID: "home",
		AwayClubID: "away",
		Status:     model.FixturePending,
		KickoffAt:  time.Now().UTC(),
	}
	if err := ms.CreateFixture(ctx, fixture); err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}

	now := time.Now().UTC()
	err := ms.Tx(ctx, func(tx Tx) error {
		return tx.MarkFixtureApplied(ctx, "fx1", d(300), now)
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}

	got, _ := ms.GetFixture(ctx, "fx1")
	if got.Status != model.FixtureApplied {
		t.Errorf("expected applied, got %s", got.Status)
	}
	if !got.TransferAmount.Equal(d(300)) {
		t.Errorf("expected transfer 300, got %s", got.TransferAmount)
	}
	if got.AppliedAt == nil || !got.AppliedAt.Equal(now) {
		t.Errorf("applied_at not recorded: %v", got.AppliedAt)
	}
}

func TestListFixturesByStatus(t *testing.T) {
	ms := NewMemoryStore()
	seedClub(t, ms, "home", 5000)
	seedClub(t, ms, "away", 3000)
	ctx := context.Background()

	for _, id := range []string{"fx1", "fx2"} {
		ms.CreateFixture(ctx, &model.Fixture{
			ID: id, HomeClubID: "home", AwayClubID: "away",
			Status: model.FixturePending, KickoffAt: time.Now().UTC(),
		})
	}
	ms.Tx(ctx, func(tx Tx) error {
		return tx.MarkFixtureApplied(ctx, "fx1", decimal.Zero, time.Now().UTC())
	})

	pending, _ := ms.ListFixturesByStatus(ctx, model.FixturePending)
	if len(pending) != 1 || pending[0].ID != "fx2" {
		t.Errorf("expected only fx2 pending, got %v", pending)
	}
	applied, _ := ms.ListFixturesByStatus(ctx, model.FixtureApplied)
	if len(applied) != 1 || applied[0].ID != "fx1" {
		t.Errorf("expected only fx1 applied, got %v", applied)
	}
}

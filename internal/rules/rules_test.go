package rules

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/footyshares/club-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func testClub() *model.Club {
	return &model.Club{
		ID:              "club1",
		MarketCap:       d(5000),
		TotalShares:     1000,
		AvailableShares: 1000,
		Status:          model.ClubOpen,
	}
}

func newValidator() *Validator {
	return NewValidator(10000, d(10))
}

// --- Side / quantity ---

func TestCheckSide(t *testing.T) {
	v := newValidator()
	if err := v.CheckSide(model.SideBuy); err != nil {
		t.Errorf("BUY should be valid: %v", err)
	}
	if err := v.CheckSide(model.SideSell); err != nil {
		t.Errorf("SELL should be valid: %v", err)
	}
	if err := v.CheckSide("HOLD"); !errors.Is(err, ErrInvalidSide) {
		t.Errorf("expected ErrInvalidSide, got %v", err)
	}
}

func TestCheckQuantity_Bounds(t *testing.T) {
	v := newValidator()
	for _, q := range []int64{1, 500, 10000} {
		if err := v.CheckQuantity(q); err != nil {
			t.Errorf("quantity %d should be valid: %v", q, err)
		}
	}
	for _, q := range []int64{0, -1, 10001} {
		if err := v.CheckQuantity(q); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("quantity %d: expected ErrInvalidQuantity, got %v", q, err)
		}
	}
}

// --- Window ---

func TestCheckWindow(t *testing.T) {
	v := newValidator()
	club := testClub()
	if err := v.CheckWindow(club); err != nil {
		t.Errorf("open club should pass: %v", err)
	}
	club.Status = model.ClubLocked
	if err := v.CheckWindow(club); !errors.Is(err, ErrWindowClosed) {
		t.Errorf("expected ErrWindowClosed, got %v", err)
	}
}

// --- Buy ---

func TestCheckBuy_Valid(t *testing.T) {
	v := newValidator()
	wallet := &model.Wallet{UserID: "u1", Balance: d(100)}
	if err := v.CheckBuy(testClub(), wallet, d(5), 10); err != nil {
		t.Errorf("expected valid buy, got %v", err)
	}
}

func TestCheckBuy_ExactBalanceAllowed(t *testing.T) {
	v := newValidator()
	wallet := &model.Wallet{UserID: "u1", Balance: d(50)}
	if err := v.CheckBuy(testClub(), wallet, d(5), 10); err != nil {
		t.Errorf("buy consuming the whole balance should pass, got %v", err)
	}
}

func TestCheckBuy_InsufficientFunds(t *testing.T) {
	v := newValidator()
	wallet := &model.Wallet{UserID: "u1", Balance: d(49.99)}
	if err := v.CheckBuy(testClub(), wallet, d(5), 10); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestCheckBuy_NonPositivePrice(t *testing.T) {
	v := newValidator()
	wallet := &model.Wallet{UserID: "u1", Balance: d(100)}
	if err := v.CheckBuy(testClub(), wallet, decimal.Zero, 10); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestCheckBuy_InsufficientInventory(t *testing.T) {
	v := newValidator()
	club := testClub()
	club.AvailableShares = 5
	wallet := &model.Wallet{UserID: "u1", Balance: d(1000)}
	if err := v.CheckBuy(club, wallet, d(5), 10); !errors.Is(err, ErrInsufficientInventory) {
		t.Errorf("expected ErrInsufficientInventory, got %v", err)
	}
}

// --- Sell ---

func TestCheckSell_Valid(t *testing.T) {
	v := newValidator()
	pos := &model.Position{UserID: "u1", ClubID: "club1", Quantity: 10, TotalInvested: d(50)}
	if err := v.CheckSell(testClub(), pos, d(5), 10); err != nil {
		t.Errorf("expected valid sell, got %v", err)
	}
}

func TestCheckSell_NoPosition(t *testing.T) {
	v := newValidator()
	pos := &model.Position{UserID: "u1", ClubID: "club1", Quantity: 0, TotalInvested: decimal.Zero}
	if err := v.CheckSell(testClub(), pos, d(5), 1); !errors.Is(err, ErrNoPosition) {
		t.Errorf("expected ErrNoPosition, got %v", err)
	}
	if err := v.CheckSell(testClub(), nil, d(5), 1); !errors.Is(err, ErrNoPosition) {
		t.Errorf("expected ErrNoPosition for nil position, got %v", err)
	}
}

func TestCheckSell_InsufficientShares(t *testing.T) {
	v := newValidator()
	pos := &model.Position{UserID: "u1", ClubID: "club1", Quantity: 5, TotalInvested: d(25)}
	if err := v.CheckSell(testClub(), pos, d(5), 6); !errors.Is(err, ErrInsufficientShares) {
		t.Errorf("expected ErrInsufficientShares, got %v", err)
	}
}

func TestCheckSell_FloorProtected(t *testing.T) {
	// Selling 10 at 5.00 would pull the cap from 55 to 5, below the
	// floor of 10 — rejected outright, never clamped.
	v := newValidator()
	club := testClub()
	club.MarketCap = d(55)
	pos := &model.Position{UserID: "u1", ClubID: "club1", Quantity: 10, TotalInvested: d(50)}
	if err := v.CheckSell(club, pos, d(5), 10); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Errorf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

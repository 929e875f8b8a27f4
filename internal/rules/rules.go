// Package rules implements the stateless trade validator: quantity bounds,
// price positivity, wallet and inventory sufficiency, and trading-window
// openness. Each rule has its own sentinel error so callers can report the
// specific violation rather than a generic rejection.
//
// Validation runs twice per trade: once against the caller's snapshot when
// the request arrives, and again inside the executor's transaction against
// the freshly locked rows. Only the second pass is authoritative.
package rules

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/footyshares/club-engine/internal/model"
	"github.com/footyshares/club-engine/internal/valuation"
)

var (
	// ErrInvalidSide is returned when the side is neither BUY nor SELL.
	ErrInvalidSide = errors.New("rules: side must be BUY or SELL")

	// ErrInvalidQuantity is returned for zero, negative, or oversized
	// order quantities.
	ErrInvalidQuantity = errors.New("rules: quantity out of range")

	// ErrInvalidPrice is returned when the derived share price is not
	// strictly positive.
	ErrInvalidPrice = errors.New("rules: share price must be positive")

	// ErrInsufficientFunds is returned when a buy costs more than the
	// wallet holds.
	ErrInsufficientFunds = errors.New("rules: insufficient balance")

	// ErrInsufficientShares is returned when a sell exceeds the held
	// quantity.
	ErrInsufficientShares = errors.New("rules: insufficient shares held")

	// ErrNoPosition is returned when a user sells a club they hold no
	// shares of at all.
	ErrNoPosition = errors.New("rules: no position in this club")

	// ErrInsufficientInventory is returned when a buy exceeds the shares
	// the platform still has available for this club.
	ErrInsufficientInventory = errors.New("rules: not enough shares available")

	// ErrInsufficientLiquidity is returned when a sell would pull the
	// club's market cap below the minimum floor. The sale is rejected
	// outright — never partially filled or clamped.
	ErrInsufficientLiquidity = errors.New("rules: sale exceeds club liquidity")

	// ErrWindowClosed is returned when the club's trading window is
	// locked for the current fixture cycle.
	ErrWindowClosed = errors.New("rules: trading window is closed")
)

// Validator checks proposed trades against configured bounds.
type Validator struct {
	// MaxQuantity is the largest quantity accepted in a single order.
	MaxQuantity int64

	// MinMarketCap is the floor no mutation may take a club's cap below.
	MinMarketCap decimal.Decimal
}

// NewValidator creates a validator with the given order-size cap and
// market-cap floor.
func NewValidator(maxQuantity int64, minMarketCap decimal.Decimal) *Validator {
	if maxQuantity < 1 {
		maxQuantity = 1
	}
	return &Validator{MaxQuantity: maxQuantity, MinMarketCap: minMarketCap}
}

// CheckSide validates the order side.
func (v *Validator) CheckSide(side string) error {
	if side != model.SideBuy && side != model.SideSell {
		return ErrInvalidSide
	}
	return nil
}

// CheckQuantity validates 1 <= quantity <= MaxQuantity.
func (v *Validator) CheckQuantity(quantity int64) error {
	if quantity < 1 || quantity > v.MaxQuantity {
		return ErrInvalidQuantity
	}
	return nil
}

// CheckWindow validates that the club is open for trading.
func (v *Validator) CheckWindow(club *model.Club) error {
	if club.Status != model.ClubOpen {
		return ErrWindowClosed
	}
	return nil
}

// CheckBuy validates a purchase of quantity shares at price against the
// wallet balance and the club's remaining share inventory. The amount
// compared against the wallet is the exact chargeable amount.
func (v *Validator) CheckBuy(club *model.Club, wallet *model.Wallet, price decimal.Decimal, quantity int64) error {
	if err := v.CheckQuantity(quantity); err != nil {
		return err
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidPrice
	}
	if quantity > club.AvailableShares {
		return ErrInsufficientInventory
	}
	amount := valuation.TradeAmount(price, quantity)
	if amount.GreaterThan(wallet.Balance) {
		return ErrInsufficientFunds
	}
	return nil
}

// CheckSell validates a sale of quantity shares at price against the held
// position and the club's market-cap floor.
func (v *Validator) CheckSell(club *model.Club, pos *model.Position, price decimal.Decimal, quantity int64) error {
	if err := v.CheckQuantity(quantity); err != nil {
		return err
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidPrice
	}
	if pos == nil || pos.Quantity == 0 {
		return ErrNoPosition
	}
	if quantity > pos.Quantity {
		return ErrInsufficientShares
	}
	amount := valuation.TradeAmount(price, quantity)
	if club.MarketCap.Sub(amount).LessThan(v.MinMarketCap) {
		return ErrInsufficientLiquidity
	}
	return nil
}

// Package valuation implements the fixed-shares valuation model: a club's
// share price is its market capitalization divided by a constant share
// count. Buying pushes the cap (and therefore the price) up by exactly the
// amount paid; selling pulls it down by exactly the amount returned.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Chargeable amounts are rounded to 2 decimal places at the point of
// computation, not at display time, so charged amounts are exact and
// reproducible.
package valuation

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places for all chargeable amounts.
const MoneyScale int32 = 2

var hundred = decimal.NewFromInt(100)

// SharePrice derives the per-share price from market cap and total shares,
// rounded to the cent (round half away from zero on the cent boundary).
//
// When totalShares <= 0 there is no divisor and defaultPrice is returned.
// Every call site must pass the same configured default so no two code
// paths quote different prices for the same degenerate club.
func SharePrice(marketCap decimal.Decimal, totalShares int64, defaultPrice decimal.Decimal) decimal.Decimal {
	if totalShares <= 0 {
		return defaultPrice
	}
	return marketCap.Div(decimal.NewFromInt(totalShares)).Round(MoneyScale)
}

// TradeAmount is the exact chargeable amount for quantity shares at price:
// round(price * quantity, 2). Both the wallet delta and the market-cap
// delta of a trade use this single value, so no rounding drift can
// accumulate between the two.
func TradeAmount(price decimal.Decimal, quantity int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(quantity)).Round(MoneyScale)
}

// ProfitLoss is the absolute gain or loss: current - purchase.
func ProfitLoss(current, purchase decimal.Decimal) decimal.Decimal {
	return current.Sub(purchase)
}

// PercentChange is the relative change from purchase to current, as a
// percentage. Returns zero when purchase is zero rather than dividing by it.
func PercentChange(current, purchase decimal.Decimal) decimal.Decimal {
	if purchase.IsZero() {
		return decimal.Zero
	}
	return current.Sub(purchase).Div(purchase).Mul(hundred).Round(MoneyScale)
}

// AverageCost is the average purchase price of a holding:
// totalInvested / quantity. Returns zero for an empty holding.
func AverageCost(totalInvested decimal.Decimal, quantity int64) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return totalInvested.Div(decimal.NewFromInt(quantity)).Round(MoneyScale)
}

// ReduceInvested returns the cost basis remaining after selling sold shares
// out of a holding of held shares with the given basis. The basis shrinks
// proportionally (sold × average cost), not by sale proceeds; selling the
// entire holding always leaves exactly zero.
func ReduceInvested(totalInvested decimal.Decimal, held, sold int64) decimal.Decimal {
	if sold >= held {
		return decimal.Zero
	}
	reduction := totalInvested.
		Mul(decimal.NewFromInt(sold)).
		Div(decimal.NewFromInt(held)).
		Round(MoneyScale)
	return totalInvested.Sub(reduction)
}

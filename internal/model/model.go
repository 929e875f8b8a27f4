// Package model defines the core domain types shared across the club engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Club trading-window states.
const (
	ClubOpen   = "open"
	ClubLocked = "locked"
)

// Fixture settlement states. A fixture moves pending → applied exactly once.
const (
	FixturePending = "pending"
	FixtureApplied = "applied"
)

// Club is one tradable football club. The share model is fixed-shares:
// TotalShares is constant for the season and the share price is derived as
// MarketCap / TotalShares — price is never stored.
type Club struct {
	ID              string          `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	MarketCap       decimal.Decimal `json:"market_cap" db:"market_cap"`
	TotalShares     int64           `json:"total_shares" db:"total_shares"`
	AvailableShares int64           `json:"available_shares" db:"available_shares"`
	Status          string          `json:"status" db:"status"` // "open" or "locked"
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Wallet holds one user's cash balance. Balance is never negative; a
// purchase that would overdraw is rejected, not clamped.
type Wallet struct {
	UserID    string          `json:"user_id" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Position is one user's holding in one club: quantity plus the cumulative
// cost basis of the shares currently held. A position whose quantity reaches
// zero is retained as a closed-position record, not deleted.
type Position struct {
	UserID        string          `json:"user_id" db:"user_id"`
	ClubID        string          `json:"club_id" db:"club_id"`
	Quantity      int64           `json:"quantity" db:"quantity"`
	TotalInvested decimal.Decimal `json:"total_invested" db:"total_invested"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Order is an immutable record of one filled trade. Once written, orders are
// never modified or deleted; they are the audit trail for all reporting.
// This engine does not model partial or resting orders — every accepted
// order fills immediately at the authoritative price or is rejected.
type Order struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	ClubID        string          `json:"club_id" db:"club_id"`
	Side          string          `json:"side" db:"side"` // "BUY" or "SELL"
	Quantity      int64           `json:"quantity" db:"quantity"`
	PricePerShare decimal.Decimal `json:"price_per_share" db:"price_per_share"`
	TotalAmount   decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status        string          `json:"status" db:"status"` // always "FILLED"
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Fixture is one match between two clubs. Once both scores are recorded the
// settlement engine transfers market cap from loser to winner (nothing on a
// draw) and flips Status to applied. TransferAmount records the actual
// clamped transfer for audit.
type Fixture struct {
	ID             string          `json:"id" db:"id"`
	HomeClubID     string          `json:"home_club_id" db:"home_club_id"`
	AwayClubID     string          `json:"away_club_id" db:"away_club_id"`
	HomeScore      *int            `json:"home_score,omitempty" db:"home_score"`
	AwayScore      *int            `json:"away_score,omitempty" db:"away_score"`
	Status         string          `json:"status" db:"status"` // "pending" or "applied"
	TransferAmount decimal.Decimal `json:"transfer_amount" db:"transfer_amount"`
	KickoffAt      time.Time       `json:"kickoff_at" db:"kickoff_at"`
	AppliedAt      *time.Time      `json:"applied_at,omitempty" db:"applied_at"`
}

// HasResult reports whether both scores have been recorded.
func (f *Fixture) HasResult() bool {
	return f.HomeScore != nil && f.AwayScore != nil
}

// PortfolioEntry is one position enriched with live valuation.
type PortfolioEntry struct {
	Position
	ClubName     string          `json:"club_name"`
	SharePrice   decimal.Decimal `json:"share_price"`
	CurrentValue decimal.Decimal `json:"current_value"`
	ProfitLoss   decimal.Decimal `json:"profit_loss"`
	ChangePct    decimal.Decimal `json:"change_pct"`
}

// Portfolio aggregates all of a user's positions with wallet and P&L totals.
type Portfolio struct {
	UserID        string           `json:"user_id"`
	WalletBalance decimal.Decimal  `json:"wallet_balance"`
	Positions     []PortfolioEntry `json:"positions"`
	TotalValue    decimal.Decimal  `json:"total_value"`
	TotalInvested decimal.Decimal  `json:"total_invested"`
	TotalPnL      decimal.Decimal  `json:"total_pnl"`
}

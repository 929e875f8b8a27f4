// Package settle applies match results to club market caps: on a decisive
// result a fraction of the loser's market cap moves to the winner, clamped
// so the loser never drops below the configured floor. A draw mutates
// nothing. Each fixture settles exactly once — both cap writes and the
// pending → applied status flip commit as one atomic unit.
package settle

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/footyshares/club-engine/internal/metrics"
	"github.com/footyshares/club-engine/internal/model"
	"github.com/footyshares/club-engine/internal/store"
	"github.com/footyshares/club-engine/internal/valuation"
	"github.com/footyshares/club-engine/internal/ws"
)

var (
	// ErrAlreadyApplied is returned when a fixture has already been
	// settled. The transfer is never applied twice; callers retrying
	// after a timeout whose commit actually succeeded land here.
	ErrAlreadyApplied = errors.New("settle: fixture already applied")

	// ErrNoResult is returned when a fixture has no recorded score yet.
	ErrNoResult = errors.New("settle: fixture has no recorded result")

	// ErrConflict is returned when settlement keeps losing serialization
	// races after the configured number of retries.
	ErrConflict = errors.New("settle: conflicting concurrent update, please retry")
)

// Outcomes recorded on settlement metrics and results.
const (
	OutcomeHome = "home"
	OutcomeAway = "away"
	OutcomeDraw = "draw"
)

// Result reports one applied fixture.
type Result struct {
	FixtureID      string          `json:"fixture_id"`
	Outcome        string          `json:"outcome"` // "home", "away", or "draw"
	WinnerClubID   string          `json:"winner_club_id,omitempty"`
	LoserClubID    string          `json:"loser_club_id,omitempty"`
	TransferAmount decimal.Decimal `json:"transfer_amount"`
	WinnerNewCap   decimal.Decimal `json:"winner_new_cap,omitempty"`
	LoserNewCap    decimal.Decimal `json:"loser_new_cap,omitempty"`
	HomeNewCap     decimal.Decimal `json:"home_new_cap"`
	AwayNewCap     decimal.Decimal `json:"away_new_cap"`
}

// Engine is the match settlement engine.
type Engine struct {
	store   store.Store
	rate    decimal.Decimal
	floor   decimal.Decimal
	retries int
	hub     *ws.Hub
}

// NewEngine creates a settlement engine. rate is the fraction of the
// loser's cap transferred on a decisive result; floor is the minimum cap.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewEngine(st store.Store, rate, floor decimal.Decimal, retries int, hub *ws.Hub) *Engine {
	return &Engine{store: st, rate: rate, floor: floor, retries: retries, hub: hub}
}

// Apply settles one fixture. Idempotent: a second call for the same fixture
// returns ErrAlreadyApplied without touching either club, because the
// applied check runs on the locked fixture row inside the same transaction
// that mutates the caps.
func (e *Engine) Apply(ctx context.Context, fixtureID string) (*Result, error) {
	var res *Result

	for attempt := 0; ; attempt++ {
		err := e.store.Tx(ctx, func(tx store.Tx) error {
			r, err := e.applyInTx(ctx, tx, fixtureID)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrSerialization) && attempt < e.retries {
			continue
		}
		if errors.Is(err, store.ErrSerialization) {
			return nil, ErrConflict
		}
		return nil, err
	}

	metrics.SettlementsTotal.WithLabelValues(res.Outcome).Inc()
	e.publish(res)
	return res, nil
}

func (e *Engine) applyInTx(ctx context.Context, tx store.Tx, fixtureID string) (*Result, error) {
	fixture, err := tx.LockFixture(ctx, fixtureID)
	if err != nil {
		return nil, err
	}
	if fixture.Status == model.FixtureApplied {
		return nil, ErrAlreadyApplied
	}
	if !fixture.HasResult() {
		return nil, ErrNoResult
	}

	home, away, err := tx.LockClubPair(ctx, fixture.HomeClubID, fixture.AwayClubID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	// Draw: no cap movement, but the fixture still flips to applied so it
	// is never reprocessed.
	if *fixture.HomeScore == *fixture.AwayScore {
		if err := tx.MarkFixtureApplied(ctx, fixtureID, decimal.Zero, now); err != nil {
			return nil, err
		}
		return &Result{
			FixtureID:      fixtureID,
			Outcome:        OutcomeDraw,
			TransferAmount: decimal.Zero,
			HomeNewCap:     home.MarketCap,
			AwayNewCap:     away.MarketCap,
		}, nil
	}

	outcome := OutcomeHome
	winner, loser := home, away
	if *fixture.AwayScore > *fixture.HomeScore {
		outcome = OutcomeAway
		winner, loser = away, home
	}

	// The loser gives up rate × cap, but never below the floor: the
	// winner only receives what the loser can actually give up, so total
	// system cap is conserved except at the floor boundary.
	transfer := loser.MarketCap.Mul(e.rate).Round(valuation.MoneyScale)
	loserNewCap := loser.MarketCap.Sub(transfer)
	if loserNewCap.LessThan(e.floor) {
		loserNewCap = e.floor
	}
	actual := loser.MarketCap.Sub(loserNewCap)
	winnerNewCap := winner.MarketCap.Add(actual)

	if err := tx.UpdateClub(ctx, loser.ID, loserNewCap, loser.AvailableShares); err != nil {
		return nil, err
	}
	if err := tx.UpdateClub(ctx, winner.ID, winnerNewCap, winner.AvailableShares); err != nil {
		return nil, err
	}
	if err := tx.MarkFixtureApplied(ctx, fixtureID, actual, now); err != nil {
		return nil, err
	}

	res := &Result{
		FixtureID:      fixtureID,
		Outcome:        outcome,
		WinnerClubID:   winner.ID,
		LoserClubID:    loser.ID,
		TransferAmount: actual,
		WinnerNewCap:   winnerNewCap,
		LoserNewCap:    loserNewCap,
		HomeNewCap:     winnerNewCap,
		AwayNewCap:     loserNewCap,
	}
	if outcome == OutcomeAway {
		res.HomeNewCap, res.AwayNewCap = loserNewCap, winnerNewCap
	}
	return res, nil
}

// publish broadcasts post-commit cap changes for both clubs.
func (e *Engine) publish(res *Result) {
	if e.hub == nil {
		return
	}
	e.hub.Broadcast(ws.Event{
		Type:      ws.EventFixtureApplied,
		FixtureID: res.FixtureID,
		Transfer:  res.TransferAmount.String(),
	})
	if res.Outcome == OutcomeDraw {
		return
	}
	e.hub.Broadcast(ws.Event{
		Type:      ws.EventMarketCapChanged,
		ClubID:    res.WinnerClubID,
		MarketCap: res.WinnerNewCap.String(),
	})
	e.hub.Broadcast(ws.Event{
		Type:      ws.EventMarketCapChanged,
		ClubID:    res.LoserClubID,
		MarketCap: res.LoserNewCap.String(),
	})
}

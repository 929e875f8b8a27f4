package trade

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/footyshares/club-engine/internal/metrics"
	"github.com/footyshares/club-engine/internal/model"
	"github.com/footyshares/club-engine/internal/store"
	"github.com/footyshares/club-engine/internal/valuation"
	"github.com/footyshares/club-engine/internal/ws"
)

// ErrConflict is returned when a trade keeps losing serialization races
// after the configured number of retries. The trade had no effect and the
// caller may resubmit.
var ErrConflict = errors.New("trade: conflicting concurrent update, please retry")

// TradeRequest is a trade intent: side and quantity against one club.
// No price field — the quoted price a client saw is never trusted; the
// executor always recomputes from the freshly locked market cap.
type TradeRequest struct {
	UserID   string `json:"user_id"`
	ClubID   string `json:"club_id"`
	Side     string `json:"side"` // "BUY" or "SELL"
	Quantity int64  `json:"quantity"`
}

// TradeResult reports one filled order together with the post-trade state
// the caller usually wants to render.
type TradeResult struct {
	OrderID          string          `json:"order_id"`
	Side             string          `json:"side"`
	Quantity         int64           `json:"quantity"`
	PricePerShare    decimal.Decimal `json:"price_per_share"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	NewMarketCap     decimal.Decimal `json:"new_market_cap"`
	NewSharePrice    decimal.Decimal `json:"new_share_price"`
	NewBalance       decimal.Decimal `json:"new_balance"`
	PositionQuantity int64           `json:"position_quantity"`
	PositionInvested decimal.Decimal `json:"position_invested"`
}

// Execute runs one BUY or SELL as a single all-or-nothing transition across
// wallet, position, club market cap, and the order log.
//
// The whole protocol runs inside one store transaction: lock the club row,
// recompute the authoritative price from the locked market cap, re-validate,
// apply the deltas, append the order. Two trades on the same club therefore
// serialize on the club row — neither can commit a delta computed from the
// other's pre-trade snapshot.
//
// Serialization losses are retried a bounded number of times before
// surfacing as ErrConflict; business-rule rejections are never retried.
func (s *Service) Execute(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	if err := s.validator.CheckSide(req.Side); err != nil {
		return nil, err
	}
	if err := s.validator.CheckQuantity(req.Quantity); err != nil {
		return nil, err
	}

	start := time.Now()
	var res *TradeResult

	for attempt := 0; ; attempt++ {
		err := s.store.Tx(ctx, func(tx store.Tx) error {
			r, err := s.executeInTx(ctx, tx, req)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrSerialization) && attempt < s.retries {
			metrics.TradeConflictRetries.Inc()
			continue
		}
		if errors.Is(err, store.ErrSerialization) {
			return nil, ErrConflict
		}
		return nil, err
	}

	metrics.TradesTotal.WithLabelValues(req.Side).Inc()
	metrics.TradeLatency.WithLabelValues(req.Side).Observe(time.Since(start).Seconds())

	// Events fire after commit, outside the transaction. Observers may
	// learn about the change late, but never about a partial change.
	s.publishTrade(req, res)

	return res, nil
}

// executeInTx is the body of the trade transaction. Every read here is
// authoritative: the rows are locked until commit.
func (s *Service) executeInTx(ctx context.Context, tx store.Tx, req TradeRequest) (*TradeResult, error) {
	club, err := tx.LockClub(ctx, req.ClubID)
	if err != nil {
		return nil, err
	}

	// The window check must happen on the locked row: a club locked
	// between submit and commit rejects here, not after the fact.
	if err := s.validator.CheckWindow(club); err != nil {
		return nil, err
	}

	price := valuation.SharePrice(club.MarketCap, club.TotalShares, s.defaultPrice)

	wallet, err := tx.LockWallet(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	pos, err := tx.LockPosition(ctx, req.UserID, req.ClubID)
	if err != nil {
		return nil, err
	}

	amount := valuation.TradeAmount(price, req.Quantity)
	now := time.Now().UTC()

	switch req.Side {
	case model.SideBuy:
		if err := s.validator.CheckBuy(club, wallet, price, req.Quantity); err != nil {
			return nil, err
		}
		// A purchase is new capital entering the club: the wallet debit
		// and the cap increase are the same exact amount.
		wallet.Balance = wallet.Balance.Sub(amount)
		club.MarketCap = club.MarketCap.Add(amount)
		club.AvailableShares -= req.Quantity
		pos.Quantity += req.Quantity
		pos.TotalInvested = pos.TotalInvested.Add(amount)

	case model.SideSell:
		if err := s.validator.CheckSell(club, pos, price, req.Quantity); err != nil {
			return nil, err
		}
		held := pos.Quantity
		wallet.Balance = wallet.Balance.Add(amount)
		club.MarketCap = club.MarketCap.Sub(amount)
		club.AvailableShares += req.Quantity
		pos.Quantity -= req.Quantity
		pos.TotalInvested = valuation.ReduceInvested(pos.TotalInvested, held, req.Quantity)
	}

	pos.UpdatedAt = now

	order := &model.Order{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		ClubID:        req.ClubID,
		Side:          req.Side,
		Quantity:      req.Quantity,
		PricePerShare: price,
		TotalAmount:   amount,
		Status:        "FILLED",
		CreatedAt:     now,
	}

	if err := tx.UpdateClub(ctx, club.ID, club.MarketCap, club.AvailableShares); err != nil {
		return nil, err
	}
	if err := tx.UpdateWallet(ctx, wallet.UserID, wallet.Balance); err != nil {
		return nil, err
	}
	if err := tx.UpsertPosition(ctx, pos); err != nil {
		return nil, err
	}
	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, err
	}

	return &TradeResult{
		OrderID:          order.ID,
		Side:             order.Side,
		Quantity:         order.Quantity,
		PricePerShare:    price,
		TotalAmount:      amount,
		NewMarketCap:     club.MarketCap,
		NewSharePrice:    valuation.SharePrice(club.MarketCap, club.TotalShares, s.defaultPrice),
		NewBalance:       wallet.Balance,
		PositionQuantity: pos.Quantity,
		PositionInvested: pos.TotalInvested,
	}, nil
}

// publishTrade broadcasts the post-commit events for a filled order.
func (s *Service) publishTrade(req TradeRequest, res *TradeResult) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(ws.Event{
		Type:       ws.EventMarketCapChanged,
		ClubID:     req.ClubID,
		MarketCap:  res.NewMarketCap.String(),
		SharePrice: res.NewSharePrice.String(),
	})
	s.hub.Broadcast(ws.Event{
		Type:    ws.EventOrderFilled,
		ClubID:  req.ClubID,
		UserID:  req.UserID,
		OrderID: res.OrderID,
		Side:    res.Side,
	})
	s.hub.Broadcast(ws.Event{
		Type:    ws.EventWalletChanged,
		UserID:  req.UserID,
		Balance: res.NewBalance.String(),
	})
}

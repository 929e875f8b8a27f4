// Package trade provides the HTTP handlers and business logic for managing
// clubs, executing trades, and querying wallets, orders, and portfolios.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/footyshares/club-engine/internal/config"
	"github.com/footyshares/club-engine/internal/metrics"
	"github.com/footyshares/club-engine/internal/model"
	"github.com/footyshares/club-engine/internal/rules"
	"github.com/footyshares/club-engine/internal/settle"
	"github.com/footyshares/club-engine/internal/store"
	"github.com/footyshares/club-engine/internal/valuation"
	"github.com/footyshares/club-engine/internal/ws"
)

// DefaultTotalShares is the share count assigned to clubs created without
// one. Fixed-shares model: this never changes after creation.
const DefaultTotalShares int64 = 1000

// Service handles club and trade operations. Concurrency control lives in
// the store transactions (row locks per club/wallet/fixture), so any number
// of Service instances can run against the same database.
type Service struct {
	store        store.Store
	validator    *rules.Validator
	settler      *settle.Engine
	defaultPrice decimal.Decimal
	retries      int
	hub          *ws.Hub
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, cfg *config.Config, settler *settle.Engine, hub *ws.Hub) *Service {
	return &Service{
		store:        st,
		validator:    rules.NewValidator(cfg.MaxOrderQuantity, cfg.MinMarketCap),
		settler:      settler,
		defaultPrice: cfg.DefaultSharePrice,
		retries:      cfg.TradeRetries,
		hub:          hub,
	}
}

// --- Request types ---

// CreateClubRequest is the JSON body for club creation.
type CreateClubRequest struct {
	ID              string          `json:"id"` // optional; generated if empty
	Name            string          `json:"name"`
	MarketCap       decimal.Decimal `json:"market_cap"`
	TotalShares     int64           `json:"total_shares"`     // 0 → DefaultTotalShares
	AvailableShares int64           `json:"available_shares"` // 0 → TotalShares
}

// CreditRequest is the JSON body for administrative wallet credits.
type CreditRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ResultRequest is the JSON body for recording a fixture score.
type ResultRequest struct {
	HomeScore int `json:"home_score"`
	AwayScore int `json:"away_score"`
}

// CreateFixtureRequest is the JSON body for fixture creation.
type CreateFixtureRequest struct {
	ID         string    `json:"id"` // optional; generated if empty
	HomeClubID string    `json:"home_club_id"`
	AwayClubID string    `json:"away_club_id"`
	KickoffAt  time.Time `json:"kickoff_at"`
}

// clubView is a club response enriched with the derived share price.
type clubView struct {
	model.Club
	SharePrice decimal.Decimal `json:"share_price"`
}

func (s *Service) clubView(c model.Club) clubView {
	return clubView{
		Club:       c,
		SharePrice: valuation.SharePrice(c.MarketCap, c.TotalShares, s.defaultPrice),
	}
}

// --- Club handlers ---

// CreateClub handles POST /api/v1/clubs
func (s *Service) CreateClub(w http.ResponseWriter, r *http.Request) {
	var req CreateClubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "validation", "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, "validation", "name is required", http.StatusBadRequest)
		return
	}
	if req.MarketCap.IsNegative() {
		writeError(w, "validation", "market_cap must be non-negative", http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.TotalShares <= 0 {
		req.TotalShares = DefaultTotalShares
	}
	if req.AvailableShares <= 0 || req.AvailableShares > req.TotalShares {
		req.AvailableShares = req.TotalShares
	}

	club := &model.Club{
		ID:              req.ID,
		Name:            req.Name,
		MarketCap:       req.MarketCap,
		TotalShares:     req.TotalShares,
		AvailableShares: req.AvailableShares,
		Status:          model.ClubOpen,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.store.CreateClub(r.Context(), club); err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("club created",
		"id", club.ID,
		"name", club.Name,
		"market_cap", club.MarketCap.String(),
		"total_shares", club.TotalShares,
	)

	writeJSON(w, http.StatusCreated, s.clubView(*club))
}

// ListClubs handles GET /api/v1/clubs
func (s *Service) ListClubs(w http.ResponseWriter, r *http.Request) {
	clubs, err := s.store.ListClubs(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	views := make([]clubView, 0, len(clubs))
	for _, c := range clubs {
		views = append(views, s.clubView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetClub handles GET /api/v1/clubs/{clubID}
func (s *Service) GetClub(w http.ResponseWriter, r *http.Request) {
	club, err := s.store.GetClub(r.Context(), chi.URLParam(r, "clubID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.clubView(*club))
}

// GetPrice handles GET /api/v1/clubs/{clubID}/price
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	club, err := s.store.GetClub(r.Context(), chi.URLParam(r, "clubID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{
		"share_price": valuation.SharePrice(club.MarketCap, club.TotalShares, s.defaultPrice),
		"market_cap":  club.MarketCap,
	})
}

// GetClubOrders handles GET /api/v1/clubs/{clubID}/orders
func (s *Service) GetClubOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.GetOrdersByClub(r.Context(), chi.URLParam(r, "clubID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// LockClub handles POST /api/v1/clubs/{clubID}/lock — closes the trading
// window for a fixture cycle.
func (s *Service) LockClub(w http.ResponseWriter, r *http.Request) {
	s.setClubStatus(w, r, model.ClubLocked)
}

// UnlockClub handles POST /api/v1/clubs/{clubID}/unlock
func (s *Service) UnlockClub(w http.ResponseWriter, r *http.Request) {
	s.setClubStatus(w, r, model.ClubOpen)
}

func (s *Service) setClubStatus(w http.ResponseWriter, r *http.Request, status string) {
	clubID := chi.URLParam(r, "clubID")
	if err := s.store.SetClubStatus(r.Context(), clubID, status); err != nil {
		writeEngineError(w, err)
		return
	}
	slog.Info("trading window changed", "club", clubID, "status", status)
	writeJSON(w, http.StatusOK, map[string]string{"club_id": clubID, "status": status})
}

// --- Trade handler ---

// ExecuteTrade handles POST /api/v1/trade
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "validation", "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "validation", "user_id is required", http.StatusBadRequest)
		return
	}
	if req.ClubID == "" {
		writeError(w, "validation", "club_id is required", http.StatusBadRequest)
		return
	}

	res, err := s.Execute(r.Context(), req)
	if err != nil {
		kind, _ := errorKind(err)
		if kind != "persistence" && kind != "not_found" {
			metrics.TradeRejections.WithLabelValues(kind).Inc()
		}
		writeEngineError(w, err)
		return
	}

	slog.Info("trade executed",
		"order_id", res.OrderID,
		"user", req.UserID,
		"club", req.ClubID,
		"side", req.Side,
		"qty", req.Quantity,
		"price", res.PricePerShare.String(),
		"amount", res.TotalAmount.String(),
		"new_cap", res.NewMarketCap.String(),
	)

	writeJSON(w, http.StatusOK, res)
}

// --- Wallet handlers ---

// GetWallet handles GET /api/v1/users/{userID}/wallet
func (s *Service) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.store.GetWallet(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// CreditWallet handles POST /api/v1/users/{userID}/wallet/credit
// Administrative top-up; shares the store's atomicity guarantees.
func (s *Service) CreditWallet(w http.ResponseWriter, r *http.Request) {
	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "validation", "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, "validation", "amount must be positive", http.StatusBadRequest)
		return
	}

	userID := chi.URLParam(r, "userID")
	wallet, err := s.store.CreditWallet(r.Context(), userID, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("wallet credited", "user", userID, "amount", req.Amount.String(), "balance", wallet.Balance.String())

	if s.hub != nil {
		s.hub.Broadcast(ws.Event{
			Type:    ws.EventWalletChanged,
			UserID:  userID,
			Balance: wallet.Balance.String(),
		})
	}

	writeJSON(w, http.StatusOK, wallet)
}

// --- Order / portfolio handlers ---

// GetUserOrders handles GET /api/v1/users/{userID}/orders
func (s *Service) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.GetOrdersByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetPortfolio handles GET /api/v1/portfolio/{userID}
// Positions are valued at the live derived share price; closed positions
// (quantity 0) are included as history.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	positions, err := s.store.ListPositions(ctx, userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	balance := decimal.Zero
	if wallet, err := s.store.GetWallet(ctx, userID); err == nil {
		balance = wallet.Balance
	} else if !errors.Is(err, store.ErrNotFound) {
		writeEngineError(w, err)
		return
	}

	portfolio := model.Portfolio{
		UserID:        userID,
		WalletBalance: balance,
		Positions:     []model.PortfolioEntry{},
		TotalValue:    decimal.Zero,
		TotalInvested: decimal.Zero,
		TotalPnL:      decimal.Zero,
	}

	for _, p := range positions {
		club, err := s.store.GetClub(ctx, p.ClubID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		price := valuation.SharePrice(club.MarketCap, club.TotalShares, s.defaultPrice)
		value := valuation.TradeAmount(price, p.Quantity)

		entry := model.PortfolioEntry{
			Position:     p,
			ClubName:     club.Name,
			SharePrice:   price,
			CurrentValue: value,
			ProfitLoss:   valuation.ProfitLoss(value, p.TotalInvested),
			ChangePct:    valuation.PercentChange(value, p.TotalInvested),
		}
		portfolio.Positions = append(portfolio.Positions, entry)
		portfolio.TotalValue = portfolio.TotalValue.Add(value)
		portfolio.TotalInvested = portfolio.TotalInvested.Add(p.TotalInvested)
		portfolio.TotalPnL = portfolio.TotalPnL.Add(entry.ProfitLoss)
	}

	writeJSON(w, http.StatusOK, portfolio)
}

// --- Fixture handlers ---

// CreateFixture handles POST /api/v1/fixtures
func (s *Service) CreateFixture(w http.ResponseWriter, r *http.Request) {
	var req CreateFixtureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "validation", "invalid request body", http.StatusBadRequest)
		return
	}
	if req.HomeClubID == "" || req.AwayClubID == "" {
		writeError(w, "validation", "home_club_id and away_club_id are required", http.StatusBadRequest)
		return
	}
	if req.HomeClubID == req.AwayClubID {
		writeError(w, "validation", "a club cannot play itself", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	for _, clubID := range []string{req.HomeClubID, req.AwayClubID} {
		if _, err := s.store.GetClub(ctx, clubID); err != nil {
			writeEngineError(w, err)
			return
		}
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.KickoffAt.IsZero() {
		req.KickoffAt = time.Now().UTC()
	}

	fixture := &model.Fixture{
		ID:             req.ID,
		HomeClubID:     req.HomeClubID,
		AwayClubID:     req.AwayClubID,
		Status:         model.FixturePending,
		TransferAmount: decimal.Zero,
		KickoffAt:      req.KickoffAt,
	}

	if err := s.store.CreateFixture(ctx, fixture); err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("fixture created", "id", fixture.ID, "home", fixture.HomeClubID, "away", fixture.AwayClubID)
	writeJSON(w, http.StatusCreated, fixture)
}

// ListFixtures handles GET /api/v1/fixtures?status=pending|applied
func (s *Service) ListFixtures(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = model.FixturePending
	}
	fixtures, err := s.store.ListFixturesByStatus(r.Context(), status)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if fixtures == nil {
		fixtures = []model.Fixture{}
	}
	writeJSON(w, http.StatusOK, fixtures)
}

// GetFixture handles GET /api/v1/fixtures/{fixtureID}
func (s *Service) GetFixture(w http.ResponseWriter, r *http.Request) {
	fixture, err := s.store.GetFixture(r.Context(), chi.URLParam(r, "fixtureID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fixture)
}

// RecordResult handles POST /api/v1/fixtures/{fixtureID}/result
// Records the score and immediately settles the fixture.
func (s *Service) RecordResult(w http.ResponseWriter, r *http.Request) {
	var req ResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "validation", "invalid request body", http.StatusBadRequest)
		return
	}
	if req.HomeScore < 0 || req.AwayScore < 0 {
		writeError(w, "validation", "scores must be non-negative", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	fixtureID := chi.URLParam(r, "fixtureID")

	fixture, err := s.store.GetFixture(ctx, fixtureID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if fixture.Status == model.FixtureApplied {
		writeEngineError(w, settle.ErrAlreadyApplied)
		return
	}

	if err := s.store.RecordResult(ctx, fixtureID, req.HomeScore, req.AwayScore); err != nil {
		writeEngineError(w, err)
		return
	}

	res, err := s.settler.Apply(ctx, fixtureID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("fixture settled",
		"fixture", fixtureID,
		"outcome", res.Outcome,
		"transfer", res.TransferAmount.String(),
	)
	writeJSON(w, http.StatusOK, res)
}

// ApplyFixture handles POST /api/v1/fixtures/{fixtureID}/apply
// Re-drives settlement for a fixture whose result is already recorded.
func (s *Service) ApplyFixture(w http.ResponseWriter, r *http.Request) {
	res, err := s.settler.Apply(r.Context(), chi.URLParam(r, "fixtureID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/footyshares/club-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
//
// Tx holds the store-wide mutex for the whole transaction and stages all
// writes, applying them only when the transactional function returns nil.
// Coarse, but it gives the same atomicity and serialization guarantees the
// PostgreSQL store gets from row locks.
type MemoryStore struct {
	mu        sync.Mutex
	clubs     map[string]*model.Club
	wallets   map[string]*model.Wallet
	positions map[string]*model.Position // key: userID + "/" + clubID
	fixtures  map[string]*model.Fixture
	orders    []model.Order
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clubs:     make(map[string]*model.Club),
		wallets:   make(map[string]*model.Wallet),
		positions: make(map[string]*model.Position),
		fixtures:  make(map[string]*model.Fixture),
	}
}

func posKey(userID, clubID string) string { return userID + "/" + clubID }

func (s *MemoryStore) CreateClub(_ context.Context, c *model.Club) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clubs[c.ID]; ok {
		return ErrDuplicate
	}
	cp := *c
	s.clubs[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetClub(_ context.Context, id string) (*model.Club, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clubs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) ListClubs(_ context.Context) ([]model.Club, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clubs := make([]model.Club, 0, len(s.clubs))
	for _, c := range s.clubs {
		clubs = append(clubs, *c)
	}
	return clubs, nil
}

func (s *MemoryStore) SetClubStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clubs[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	return nil
}

func (s *MemoryStore) GetWallet(_ context.Context, userID string) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) CreditWallet(_ context.Context, userID string, amount decimal.Decimal) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[userID]
	if !ok {
		w = &model.Wallet{UserID: userID, Balance: decimal.Zero}
		s.wallets[userID] = w
	}
	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = time.Now().UTC()
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, userID, clubID string) (*model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[posKey(userID, clubID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListPositions(_ context.Context, userID string) ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var positions []model.Position
	for _, p := range s.positions {
		if p.UserID == userID {
			positions = append(positions, *p)
		}
	}
	return positions, nil
}

func (s *MemoryStore) GetOrdersByUser(_ context.Context, userID string) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []model.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			result = append(result, o)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetOrdersByClub(_ context.Context, clubID string) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []model.Order
	for _, o := range s.orders {
		if o.ClubID == clubID {
			result = append(result, o)
		}
	}
	return result, nil
}

func (s *MemoryStore) CreateFixture(_ context.Context, f *model.Fixture) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.fixtures[f.ID]; ok {
		return ErrDuplicate
	}
	cp := *f
	s.fixtures[f.ID] = &cp
	return nil
}

func (s *MemoryStore) GetFixture(_ context.Context, id string) (*model.Fixture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fixtures[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) ListFixturesByStatus(_ context.Context, status string) ([]model.Fixture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []model.Fixture
	for _, f := range s.fixtures {
		if f.Status == status {
			result = append(result, *f)
		}
	}
	return result, nil
}

func (s *MemoryStore) RecordResult(_ context.Context, fixtureID string, homeScore, awayScore int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fixtures[fixtureID]
	if !ok {
		return ErrNotFound
	}
	h, a := homeScore, awayScore
	f.HomeScore = &h
	f.AwayScore = &a
	return nil
}

// Tx holds the store mutex for the duration of fn and stages writes in a
// memTx, committing them only on success.
func (s *MemoryStore) Tx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:     s,
		clubs:     make(map[string]*model.Club),
		wallets:   make(map[string]*model.Wallet),
		positions: make(map[string]*model.Position),
		fixtures:  make(map[string]*model.Fixture),
	}

	if err := fn(tx); err != nil {
		return err
	}

	tx.commit()
	return nil
}

// memTx stages all writes. Reads see staged values first so a transaction
// observes its own uncommitted writes, matching SQL transaction semantics.
type memTx struct {
	store     *MemoryStore
	clubs     map[string]*model.Club
	wallets   map[string]*model.Wallet
	positions map[string]*model.Position
	fixtures  map[string]*model.Fixture
	orders    []model.Order
}

func (tx *memTx) commit() {
	for id, c := range tx.clubs {
		tx.store.clubs[id] = c
	}
	for id, w := range tx.wallets {
		tx.store.wallets[id] = w
	}
	for key, p := range tx.positions {
		tx.store.positions[key] = p
	}
	for id, f := range tx.fixtures {
		tx.store.fixtures[id] = f
	}
	tx.store.orders = append(tx.store.orders, tx.orders...)
}

func (tx *memTx) LockClub(_ context.Context, clubID string) (*model.Club, error) {
	if c, ok := tx.clubs[clubID]; ok {
		cp := *c
		return &cp, nil
	}
	c, ok := tx.store.clubs[clubID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (tx *memTx) LockClubPair(ctx context.Context, idA, idB string) (*model.Club, *model.Club, error) {
	// Ordering is irrelevant under the store-wide mutex, but the contract
	// is shared with the PostgreSQL implementation.
	a, err := tx.LockClub(ctx, idA)
	if err != nil {
		return nil, nil, err
	}
	b, err := tx.LockClub(ctx, idB)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (tx *memTx) LockWallet(_ context.Context, userID string) (*model.Wallet, error) {
	if w, ok := tx.wallets[userID]; ok {
		cp := *w
		return &cp, nil
	}
	w, ok := tx.store.wallets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (tx *memTx) LockPosition(_ context.Context, userID, clubID string) (*model.Position, error) {
	key := posKey(userID, clubID)
	if p, ok := tx.positions[key]; ok {
		cp := *p
		return &cp, nil
	}
	if p, ok := tx.store.positions[key]; ok {
		cp := *p
		return &cp, nil
	}
	return &model.Position{
		UserID:        userID,
		ClubID:        clubID,
		TotalInvested: decimal.Zero,
	}, nil
}

func (tx *memTx) LockFixture(_ context.Context, fixtureID string) (*model.Fixture, error) {
	if f, ok := tx.fixtures[fixtureID]; ok {
		cp := *f
		return &cp, nil
	}
	f, ok := tx.store.fixtures[fixtureID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (tx *memTx) UpdateClub(ctx context.Context, clubID string, marketCap decimal.Decimal, availableShares int64) error {
	c, err := tx.LockClub(ctx, clubID)
	if err != nil {
		return err
	}
	c.MarketCap = marketCap
	c.AvailableShares = availableShares
	tx.clubs[clubID] = c
	return nil
}

func (tx *memTx) UpdateWallet(ctx context.Context, userID string, balance decimal.Decimal) error {
	w, err := tx.LockWallet(ctx, userID)
	if err != nil {
		return err
	}
	w.Balance = balance
	w.UpdatedAt = time.Now().UTC()
	tx.wallets[userID] = w
	return nil
}

func (tx *memTx) UpsertPosition(_ context.Context, pos *model.Position) error {
	cp := *pos
	tx.positions[posKey(pos.UserID, pos.ClubID)] = &cp
	return nil
}

func (tx *memTx) InsertOrder(_ context.Context, order *model.Order) error {
	tx.orders = append(tx.orders, *order)
	return nil
}

func (tx *memTx) MarkFixtureApplied(ctx context.Context, fixtureID string, transfer decimal.Decimal, appliedAt time.Time) error {
	f, err := tx.LockFixture(ctx, fixtureID)
	if err != nil {
		return err
	}
	f.Status = model.FixtureApplied
	f.TransferAmount = transfer
	f.AppliedAt = &appliedAt
	tx.fixtures[fixtureID] = f
	return nil
}

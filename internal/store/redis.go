package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/footyshares/club-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for club and wallet reads. Writes go to the primary store; the
// transaction wrapper records which rows each transaction touches and
// invalidates their cache keys after a successful commit, so no reader ever
// sees a price computed from a stale cached market cap once the commit is
// visible.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetClub(ctx context.Context, id string) (*model.Club, error) {
	data, err := s.rdb.Get(ctx, clubKey(id)).Bytes()
	if err == nil {
		var c model.Club
		if json.Unmarshal(data, &c) == nil {
			return &c, nil
		}
	}

	c, err := s.primary.GetClub(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheClub(ctx, c)
	return c, nil
}

func (s *CachedStore) GetWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	data, err := s.rdb.Get(ctx, walletKey(userID)).Bytes()
	if err == nil {
		var w model.Wallet
		if json.Unmarshal(data, &w) == nil {
			return &w, nil
		}
	}

	w, err := s.primary.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(w); err == nil {
		s.rdb.Set(ctx, walletKey(userID), data, s.ttl)
	}
	return w, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateClub(ctx context.Context, c *model.Club) error {
	if err := s.primary.CreateClub(ctx, c); err != nil {
		return err
	}
	s.cacheClub(ctx, c)
	return nil
}

func (s *CachedStore) SetClubStatus(ctx context.Context, id, status string) error {
	if err := s.primary.SetClubStatus(ctx, id, status); err != nil {
		return err
	}
	s.rdb.Del(ctx, clubKey(id))
	return nil
}

func (s *CachedStore) CreditWallet(ctx context.Context, userID string, amount decimal.Decimal) (*model.Wallet, error) {
	w, err := s.primary.CreditWallet(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	s.rdb.Del(ctx, walletKey(userID))
	return w, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListClubs(ctx context.Context) ([]model.Club, error) {
	return s.primary.ListClubs(ctx)
}

func (s *CachedStore) GetPosition(ctx context.Context, userID, clubID string) (*model.Position, error) {
	return s.primary.GetPosition(ctx, userID, clubID)
}

func (s *CachedStore) ListPositions(ctx context.Context, userID string) ([]model.Position, error) {
	return s.primary.ListPositions(ctx, userID)
}

func (s *CachedStore) GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	return s.primary.GetOrdersByUser(ctx, userID)
}

func (s *CachedStore) GetOrdersByClub(ctx context.Context, clubID string) ([]model.Order, error) {
	return s.primary.GetOrdersByClub(ctx, clubID)
}

func (s *CachedStore) CreateFixture(ctx context.Context, f *model.Fixture) error {
	return s.primary.CreateFixture(ctx, f)
}

func (s *CachedStore) GetFixture(ctx context.Context, id string) (*model.Fixture, error) {
	return s.primary.GetFixture(ctx, id)
}

func (s *CachedStore) ListFixturesByStatus(ctx context.Context, status string) ([]model.Fixture, error) {
	return s.primary.ListFixturesByStatus(ctx, status)
}

func (s *CachedStore) RecordResult(ctx context.Context, fixtureID string, homeScore, awayScore int) error {
	return s.primary.RecordResult(ctx, fixtureID, homeScore, awayScore)
}

// Tx delegates to the primary store, recording every club and wallet the
// transaction locks or writes. Their cache keys are invalidated only after
// the primary commit succeeds.
func (s *CachedStore) Tx(ctx context.Context, fn func(tx Tx) error) error {
	rec := &recordingTx{}
	err := s.primary.Tx(ctx, func(tx Tx) error {
		rec.Tx = tx
		return fn(rec)
	})
	if err != nil {
		return err
	}
	for _, id := range rec.clubIDs {
		s.rdb.Del(ctx, clubKey(id))
	}
	for _, id := range rec.userIDs {
		s.rdb.Del(ctx, walletKey(id))
	}
	return nil
}

// recordingTx passes everything through to the wrapped Tx while remembering
// which cache keys the transaction dirtied.
type recordingTx struct {
	Tx
	clubIDs []string
	userIDs []string
}

func (t *recordingTx) LockClub(ctx context.Context, clubID string) (*model.Club, error) {
	t.clubIDs = append(t.clubIDs, clubID)
	return t.Tx.LockClub(ctx, clubID)
}

func (t *recordingTx) LockClubPair(ctx context.Context, idA, idB string) (*model.Club, *model.Club, error) {
	t.clubIDs = append(t.clubIDs, idA, idB)
	return t.Tx.LockClubPair(ctx, idA, idB)
}

func (t *recordingTx) LockWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	t.userIDs = append(t.userIDs, userID)
	return t.Tx.LockWallet(ctx, userID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheClub(ctx context.Context, c *model.Club) {
	if data, err := json.Marshal(c); err == nil {
		s.rdb.Set(ctx, clubKey(c.ID), data, s.ttl)
	}
}

func clubKey(id string) string    { return fmt.Sprintf("club:%s", id) }
func walletKey(uid string) string { return fmt.Sprintf("wallet:%s", uid) }

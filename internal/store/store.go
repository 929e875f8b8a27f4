// Package store defines the persistence interface for the club engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/footyshares/club-engine/internal/model"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a create collides with an existing
	// record.
	ErrDuplicate = errors.New("store: already exists")

	// ErrSerialization is returned when a transaction loses a lock or
	// serialization race. Safe to retry: the transaction had no effect.
	ErrSerialization = errors.New("store: serialization conflict")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. All multi-record mutations go
// through Tx so wallet, position, club, and order writes commit atomically.
type Store interface {
	// --- Club operations ---

	// CreateClub persists a new club.
	CreateClub(ctx context.Context, club *model.Club) error

	// GetClub retrieves a club by ID.
	GetClub(ctx context.Context, id string) (*model.Club, error)

	// ListClubs returns all clubs.
	ListClubs(ctx context.Context) ([]model.Club, error)

	// SetClubStatus opens or locks a club's trading window.
	SetClubStatus(ctx context.Context, id, status string) error

	// --- Wallets ---

	// GetWallet retrieves a user's wallet.
	GetWallet(ctx context.Context, userID string) (*model.Wallet, error)

	// CreditWallet atomically adds amount to a wallet, creating it at
	// zero first if absent. Used by administrative top-ups.
	CreditWallet(ctx context.Context, userID string, amount decimal.Decimal) (*model.Wallet, error)

	// --- Positions ---

	// GetPosition retrieves one user×club position.
	GetPosition(ctx context.Context, userID, clubID string) (*model.Position, error)

	// ListPositions returns all positions for a user, closed ones included.
	ListPositions(ctx context.Context, userID string) ([]model.Position, error)

	// --- Immutable order log ---

	// GetOrdersByUser returns a user's order history, oldest first.
	GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error)

	// GetOrdersByClub returns a club's order history, oldest first.
	GetOrdersByClub(ctx context.Context, clubID string) ([]model.Order, error)

	// --- Fixtures ---

	// CreateFixture persists a new pending fixture.
	CreateFixture(ctx context.Context, fixture *model.Fixture) error

	// GetFixture retrieves a fixture by ID.
	GetFixture(ctx context.Context, id string) (*model.Fixture, error)

	// ListFixturesByStatus returns fixtures in the given settlement state.
	ListFixturesByStatus(ctx context.Context, status string) ([]model.Fixture, error)

	// RecordResult stores both scores on a fixture. The settlement state
	// is untouched; applying the result is the settlement engine's job.
	RecordResult(ctx context.Context, fixtureID string, homeScore, awayScore int) error

	// --- Transactions ---

	// Tx runs fn inside one atomic transaction. If fn returns an error
	// the transaction rolls back with zero partial effects. Lock methods
	// on the Tx take row locks, so concurrent transactions touching the
	// same club, wallet, or fixture serialize on those rows.
	Tx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the handle passed to a transactional function. Reads through Lock*
// are authoritative: the returned rows stay locked until commit/rollback.
//
// Lock ordering is fixed to avoid deadlocks: fixture first when present,
// then clubs (ascending ID via LockClubPair when two are involved), then
// wallet, then position.
type Tx interface {
	// LockClub reads a club under a row lock.
	LockClub(ctx context.Context, clubID string) (*model.Club, error)

	// LockClubPair locks two clubs in ascending ID order and returns them
	// in argument order.
	LockClubPair(ctx context.Context, idA, idB string) (*model.Club, *model.Club, error)

	// LockWallet reads a wallet under a row lock.
	LockWallet(ctx context.Context, userID string) (*model.Wallet, error)

	// LockPosition reads a position under a row lock. If the user has
	// never traded this club a zero-quantity position is returned.
	LockPosition(ctx context.Context, userID, clubID string) (*model.Position, error)

	// LockFixture reads a fixture under a row lock.
	LockFixture(ctx context.Context, fixtureID string) (*model.Fixture, error)

	// UpdateClub writes a club's new market cap and available shares.
	UpdateClub(ctx context.Context, clubID string, marketCap decimal.Decimal, availableShares int64) error

	// UpdateWallet writes a wallet's new balance.
	UpdateWallet(ctx context.Context, userID string, balance decimal.Decimal) error

	// UpsertPosition writes a position, inserting it on first trade.
	UpsertPosition(ctx context.Context, pos *model.Position) error

	// InsertOrder appends an immutable order record.
	InsertOrder(ctx context.Context, order *model.Order) error

	// MarkFixtureApplied flips a fixture to applied and records the
	// actual transferred amount.
	MarkFixtureApplied(ctx context.Context, fixtureID string, transfer decimal.Decimal, appliedAt time.Time) error
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/footyshares/club-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// Transactions take SELECT ... FOR UPDATE row locks so concurrent trades
// and settlements serialize per club/wallet/fixture row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// translateErr maps driver errors onto the store sentinel errors.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization, deadlock, lock timeout
			return fmt.Errorf("%w: %s", ErrSerialization, pgErr.Code)
		case "23505":
			return ErrDuplicate
		}
	}
	return err
}

const clubColumns = `id, name, market_cap::TEXT, total_shares, available_shares, status, created_at`

func scanClub(row pgx.Row) (*model.Club, error) {
	var c model.Club
	var cap string
	if err := row.Scan(&c.ID, &c.Name, &cap, &c.TotalShares, &c.AvailableShares, &c.Status, &c.CreatedAt); err != nil {
		return nil, translateErr(err)
	}
	c.MarketCap, _ = decimal.NewFromString(cap)
	return &c, nil
}

func (s *PostgresStore) CreateClub(ctx context.Context, c *model.Club) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO clubs (id, name, market_cap, total_shares, available_shares, status, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7)`,
		c.ID, c.Name, c.MarketCap.String(), c.TotalShares, c.AvailableShares, c.Status, c.CreatedAt,
	)
	return translateErr(err)
}

func (s *PostgresStore) GetClub(ctx context.Context, id string) (*model.Club, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+clubColumns+` FROM clubs WHERE id = $1`, id)
	c, err := scanClub(row)
	if err != nil {
		return nil, fmt.Errorf("get club %s: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) ListClubs(ctx context.Context) ([]model.Club, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+clubColumns+` FROM clubs ORDER BY name`)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var clubs []model.Club
	for rows.Next() {
		c, err := scanClub(rows)
		if err != nil {
			return nil, err
		}
		clubs = append(clubs, *c)
	}
	return clubs, rows.Err()
}

func (s *PostgresStore) SetClubStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE clubs SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	var w model.Wallet
	var balance string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, balance::TEXT, updated_at FROM wallets WHERE user_id = $1`, userID).
		Scan(&w.UserID, &balance, &w.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	w.Balance, _ = decimal.NewFromString(balance)
	return &w, nil
}

func (s *PostgresStore) CreditWallet(ctx context.Context, userID string, amount decimal.Decimal) (*model.Wallet, error) {
	var w model.Wallet
	var balance string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO wallets (user_id, balance, updated_at)
		 VALUES ($1, $2::NUMERIC, NOW())
		 ON CONFLICT (user_id)
		 DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = NOW()
		 RETURNING user_id, balance::TEXT, updated_at`,
		userID, amount.String()).
		Scan(&w.UserID, &balance, &w.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	w.Balance, _ = decimal.NewFromString(balance)
	return &w, nil
}

const positionColumns = `user_id, club_id, quantity, total_invested::TEXT, updated_at`

func scanPosition(row pgx.Row) (*model.Position, error) {
	var p model.Position
	var invested string
	if err := row.Scan(&p.UserID, &p.ClubID, &p.Quantity, &invested, &p.UpdatedAt); err != nil {
		return nil, translateErr(err)
	}
	p.TotalInvested, _ = decimal.NewFromString(invested)
	return &p, nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, userID, clubID string) (*model.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE user_id = $1 AND club_id = $2`,
		userID, clubID)
	return scanPosition(row)
}

func (s *PostgresStore) ListPositions(ctx context.Context, userID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE user_id = $1 ORDER BY club_id`, userID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

const orderColumns = `id, user_id, club_id, side, quantity, price_per_share::TEXT, total_amount::TEXT, status, created_at`

func scanOrders(rows pgx.Rows) ([]model.Order, error) {
	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var price, amount string
		if err := rows.Scan(&o.ID, &o.UserID, &o.ClubID, &o.Side, &o.Quantity,
			&price, &amount, &o.Status, &o.CreatedAt); err != nil {
			return nil, translateErr(err)
		}
		o.PricePerShare, _ = decimal.NewFromString(price)
		o.TotalAmount, _ = decimal.NewFromString(amount)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *PostgresStore) GetOrdersByClub(ctx context.Context, clubID string) ([]model.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE club_id = $1 ORDER BY created_at`, clubID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

const fixtureColumns = `id, home_club_id, away_club_id, home_score, away_score, status, transfer_amount::TEXT, kickoff_at, applied_at`

func scanFixture(row pgx.Row) (*model.Fixture, error) {
	var f model.Fixture
	var transfer string
	if err := row.Scan(&f.ID, &f.HomeClubID, &f.AwayClubID, &f.HomeScore, &f.AwayScore,
		&f.Status, &transfer, &f.KickoffAt, &f.AppliedAt); err != nil {
		return nil, translateErr(err)
	}
	f.TransferAmount, _ = decimal.NewFromString(transfer)
	return &f, nil
}

func (s *PostgresStore) CreateFixture(ctx context.Context, f *model.Fixture) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fixtures (id, home_club_id, away_club_id, home_score, away_score, status, transfer_amount, kickoff_at, applied_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8, $9)`,
		f.ID, f.HomeClubID, f.AwayClubID, f.HomeScore, f.AwayScore,
		f.Status, f.TransferAmount.String(), f.KickoffAt, f.AppliedAt,
	)
	return translateErr(err)
}

func (s *PostgresStore) GetFixture(ctx context.Context, id string) (*model.Fixture, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+fixtureColumns+` FROM fixtures WHERE id = $1`, id)
	f, err := scanFixture(row)
	if err != nil {
		return nil, fmt.Errorf("get fixture %s: %w", id, err)
	}
	return f, nil
}

func (s *PostgresStore) ListFixturesByStatus(ctx context.Context, status string) ([]model.Fixture, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+fixtureColumns+` FROM fixtures WHERE status = $1 ORDER BY kickoff_at`, status)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var fixtures []model.Fixture
	for rows.Next() {
		f, err := scanFixture(rows)
		if err != nil {
			return nil, err
		}
		fixtures = append(fixtures, *f)
	}
	return fixtures, rows.Err()
}

func (s *PostgresStore) RecordResult(ctx context.Context, fixtureID string, homeScore, awayScore int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fixtures SET home_score = $2, away_score = $3 WHERE id = $1`,
		fixtureID, homeScore, awayScore)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Tx runs fn inside one database transaction. A short lock timeout bounds
// how long a transaction waits on a contended row; waiters that time out
// surface as ErrSerialization and are retried by the caller.
func (s *PostgresStore) Tx(ctx context.Context, fn func(tx Tx) error) error {
	pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return translateErr(err)
	}
	defer pgtx.Rollback(ctx)

	if _, err := pgtx.Exec(ctx, `SET LOCAL lock_timeout = '3s'`); err != nil {
		return translateErr(err)
	}

	if err := fn(&pgTx{tx: pgtx}); err != nil {
		return err
	}
	return translateErr(pgtx.Commit(ctx))
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockClub(ctx context.Context, clubID string) (*model.Club, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+clubColumns+` FROM clubs WHERE id = $1 FOR UPDATE`, clubID)
	return scanClub(row)
}

// LockClubPair locks both clubs in ascending ID order so two settlements
// over the same pair can never deadlock against each other.
func (t *pgTx) LockClubPair(ctx context.Context, idA, idB string) (*model.Club, *model.Club, error) {
	first, second := idA, idB
	if second < first {
		first, second = second, first
	}
	c1, err := t.LockClub(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	c2, err := t.LockClub(ctx, second)
	if err != nil {
		return nil, nil, err
	}
	if first == idA {
		return c1, c2, nil
	}
	return c2, c1, nil
}

func (t *pgTx) LockWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	var w model.Wallet
	var balance string
	err := t.tx.QueryRow(ctx,
		`SELECT user_id, balance::TEXT, updated_at FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&w.UserID, &balance, &w.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	w.Balance, _ = decimal.NewFromString(balance)
	return &w, nil
}

func (t *pgTx) LockPosition(ctx context.Context, userID, clubID string) (*model.Position, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE user_id = $1 AND club_id = $2 FOR UPDATE`,
		userID, clubID)
	p, err := scanPosition(row)
	if errors.Is(err, ErrNotFound) {
		// First trade for this user×club: no row yet, nothing to lock.
		// The club row lock already serializes trades on this club.
		return &model.Position{UserID: userID, ClubID: clubID, TotalInvested: decimal.Zero}, nil
	}
	return p, err
}

func (t *pgTx) LockFixture(ctx context.Context, fixtureID string) (*model.Fixture, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+fixtureColumns+` FROM fixtures WHERE id = $1 FOR UPDATE`, fixtureID)
	return scanFixture(row)
}

func (t *pgTx) UpdateClub(ctx context.Context, clubID string, marketCap decimal.Decimal, availableShares int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE clubs SET market_cap = $2::NUMERIC, available_shares = $3 WHERE id = $1`,
		clubID, marketCap.String(), availableShares)
	return translateErr(err)
}

func (t *pgTx) UpdateWallet(ctx context.Context, userID string, balance decimal.Decimal) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE wallets SET balance = $2::NUMERIC, updated_at = NOW() WHERE user_id = $1`,
		userID, balance.String())
	return translateErr(err)
}

func (t *pgTx) UpsertPosition(ctx context.Context, p *model.Position) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO positions (user_id, club_id, quantity, total_invested, updated_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, NOW())
		 ON CONFLICT (user_id, club_id)
		 DO UPDATE SET quantity = EXCLUDED.quantity, total_invested = EXCLUDED.total_invested, updated_at = NOW()`,
		p.UserID, p.ClubID, p.Quantity, p.TotalInvested.String())
	return translateErr(err)
}

func (t *pgTx) InsertOrder(ctx context.Context, o *model.Order) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO orders (id, user_id, club_id, side, quantity, price_per_share, total_amount, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8, $9)`,
		o.ID, o.UserID, o.ClubID, o.Side, o.Quantity,
		o.PricePerShare.String(), o.TotalAmount.String(), o.Status, o.CreatedAt)
	return translateErr(err)
}

func (t *pgTx) MarkFixtureApplied(ctx context.Context, fixtureID string, transfer decimal.Decimal, appliedAt time.Time) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE fixtures SET status = $2, transfer_amount = $3::NUMERIC, applied_at = $4 WHERE id = $1`,
		fixtureID, model.FixtureApplied, transfer.String(), appliedAt)
	return translateErr(err)
}

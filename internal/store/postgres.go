// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package store

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// poolIface is the subset of pgxpool.Pool used by PostgresStore. It is
// satisfied by pgxmock.PgxPoolIface in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool poolIface
	now  func() time.Time
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool poolIface) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// ConnectOptions tunes Connect.
type ConnectOptions struct {
	// Timeout bounds the total time spent waiting for the database.
	Timeout time.Duration
	// InitialBackoff is the first retry delay of the Fibonacci backoff.
	InitialBackoff time.Duration
}

// Connect opens a pool for dsn and waits until the database answers a ping,
// retrying with capped Fibonacci backoff until opts.Timeout elapses.
func Connect(ctx context.Context, dsn string, opts ConnectOptions) (*PostgresStore, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	b := retry.NewFibonacci(opts.InitialBackoff)
	b = retry.WithCappedDuration(5*time.Second, b)
	b = retry.WithMaxDuration(opts.Timeout, b)

	attempt := 0
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			slog.Warn("database not ready, retrying", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("attempts", attempt).
			Hint("check store.database_url and that PostgreSQL is reachable").
			Wrap(err)
	}

	return NewPostgresStore(pool), nil
}

// Ping checks that the database answers.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("DB_UNAVAILABLE").Wrap(err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, rec Record, receipt Receipt) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").With("account", rec.AccountID).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx,
		`INSERT INTO contract_state (account_id, code, state, nonce, updated_at)
		 VALUES ($1, $2, $3, 0, $4)`,
		rec.AccountID, rec.Code, rec.State, s.now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.With("account", rec.AccountID).Wrap(ErrAlreadyExists)
		}
		return oops.With("operation", "insert contract state").With("account", rec.AccountID).Wrap(err)
	}

	if err := insertReceipt(ctx, tx, receipt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").With("account", rec.AccountID).Wrap(err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, account string) (Record, error) {
	rec := Record{AccountID: account}
	var nonce int64
	err := s.pool.QueryRow(ctx,
		`SELECT code, state, nonce, updated_at FROM contract_state WHERE account_id = $1`,
		account).Scan(&rec.Code, &rec.State, &nonce, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, oops.With("account", account).Wrap(ErrNotFound)
	}
	if err != nil {
		return Record{}, oops.With("operation", "get contract state").With("account", account).Wrap(err)
	}
	rec.Nonce = uint64(nonce)
	return rec, nil
}

// Commit implements Store.
func (s *PostgresStore) Commit(ctx context.Context, rec Record, receipt Receipt) error {
	if rec.Nonce > math.MaxInt64 {
		return oops.With("account", rec.AccountID).Errorf("nonce %d out of range", rec.Nonce)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").With("account", rec.AccountID).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	tag, err := tx.Exec(ctx,
		`UPDATE contract_state SET state = $1, nonce = nonce + 1, updated_at = $2
		 WHERE account_id = $3 AND nonce = $4`,
		rec.State, s.now(), rec.AccountID, int64(rec.Nonce))
	if err != nil {
		return oops.With("operation", "update contract state").With("account", rec.AccountID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("account", rec.AccountID).With("expected_nonce", rec.Nonce).Wrap(ErrConflict)
	}

	if err := insertReceipt(ctx, tx, receipt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").With("account", rec.AccountID).Wrap(err)
	}
	return nil
}

// AppendReceipt implements Store.
func (s *PostgresStore) AppendReceipt(ctx context.Context, receipt Receipt) error {
	return insertReceipt(ctx, s.pool, receipt)
}

// Receipts implements Store.
func (s *PostgresStore) Receipts(ctx context.Context, account string) ([]Receipt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, method, kind, logs, success, error_code, gas_burnt, created_at
		 FROM receipts WHERE account_id = $1 ORDER BY seq`,
		account)
	if err != nil {
		return nil, oops.With("operation", "list receipts").With("account", account).Wrap(err)
	}
	defer rows.Close()

	receipts := []Receipt{}
	for rows.Next() {
		r := Receipt{AccountID: account}
		var idStr string
		var gas int64
		if err := rows.Scan(&idStr, &r.Method, &r.Kind, &r.Logs, &r.Success, &r.ErrorCode, &gas, &r.CreatedAt); err != nil {
			return nil, oops.With("operation", "scan receipt row").Wrap(err)
		}
		r.ID, err = ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("STATE_CORRUPT").With("account", account).With("id", idStr).Wrap(err)
		}
		r.GasBurnt = uint64(gas)
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate receipts").Wrap(err)
	}
	return receipts, nil
}

// execer is implemented by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertReceipt(ctx context.Context, db execer, r Receipt) error {
	if r.GasBurnt > math.MaxInt64 {
		return oops.With("receipt", r.ID.String()).Errorf("gas %d out of range", r.GasBurnt)
	}
	logs := r.Logs
	if logs == nil {
		logs = []string{}
	}
	_, err := db.Exec(ctx,
		`INSERT INTO receipts (id, account_id, method, kind, logs, success, error_code, gas_burnt, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID.String(), r.AccountID, r.Method, r.Kind, logs, r.Success, r.ErrorCode, int64(r.GasBurnt), r.CreatedAt)
	if err != nil {
		return oops.With("operation", "insert receipt").
			With("account", r.AccountID).
			With("receipt", r.ID.String()).
			Wrap(err)
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrBalanceLimit  = errors.New("balance limit exceeded")
)

// Storage handles all database operations.
//
// Every balance, quota or referral mutation is a single conditional statement
// or one IMMEDIATE transaction, so callers never hold a read across a write.
type Storage struct {
	db *sql.DB
}

// New opens the database at dbPath and creates the schema.
// The caller owns the returned handle and must Close it.
func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	// sqlite has a single writer; one connection keeps transactions from
	// contending for the lock against each other.
	db.SetMaxOpenConns(1)

	s := &Storage{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			user_id INTEGER PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
			attempts INTEGER NOT NULL DEFAULT 0 CHECK (attempts >= 0),
			sub_plan TEXT,
			sub_started_at INTEGER,
			sub_expires_at INTEGER,
			quota_used INTEGER NOT NULL DEFAULT 0 CHECK (quota_used >= 0),
			quota_date TEXT NOT NULL DEFAULT '',
			quota_window_start INTEGER NOT NULL DEFAULT 0,
			referral_code TEXT NOT NULL UNIQUE,
			referred_by INTEGER,
			total_referrals INTEGER NOT NULL DEFAULT 0,
			is_admin INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			last_active_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_sub_expires_at ON accounts(sub_expires_at)`,

		`CREATE TABLE IF NOT EXISTS referrals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			referrer_id INTEGER NOT NULL REFERENCES accounts(user_id),
			referred_id INTEGER NOT NULL UNIQUE REFERENCES accounts(user_id),
			confirmed INTEGER NOT NULL DEFAULT 0,
			reward INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			confirmed_at INTEGER,
			UNIQUE (referrer_id, referred_id)
		)`,

		`CREATE TABLE IF NOT EXISTS search_transactions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			user_id INTEGER NOT NULL,
			query_fingerprint TEXT NOT NULL,
			outcome TEXT NOT NULL,
			cost INTEGER NOT NULL DEFAULT 0,
			payment_method TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_search_transactions_user_id ON search_transactions(user_id)`,

		`CREATE TABLE IF NOT EXISTS subscription_purchases (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES accounts(user_id),
			plan TEXT NOT NULL,
			price INTEGER NOT NULL,
			purchased_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscription_purchases_user_id ON subscription_purchases(user_id)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// withTx runs fn inside one transaction. fn returning false rolls back
// without an error, which is how a failed precondition is reported.
func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) (bool, error)) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ok, err := fn(tx)
	if err != nil || !ok {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

func affected(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func unixOrZero(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0)
}

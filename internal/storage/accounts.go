package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

const accountColumns = `user_id, username, first_name, last_name, balance, attempts,
	sub_plan, sub_started_at, sub_expires_at,
	quota_used, quota_date, quota_window_start,
	referral_code, referred_by, total_referrals, is_admin, created_at, last_active_at`

const referralCodeRetries = 5

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var a Account
	var plan sql.NullString
	var startedAt, expiresAt, referredBy sql.NullInt64
	var windowStart, createdAt, lastActive int64
	var isAdmin int

	err := row.Scan(
		&a.UserID, &a.Username, &a.FirstName, &a.LastName, &a.Balance, &a.Attempts,
		&plan, &startedAt, &expiresAt,
		&a.Quota.Used, &a.Quota.WindowDate, &windowStart,
		&a.ReferralCode, &referredBy, &a.TotalReferrals, &isAdmin, &createdAt, &lastActive,
	)
	if err != nil {
		return nil, err
	}

	if plan.Valid && expiresAt.Valid {
		a.Subscription = &Subscription{
			Plan:      plan.String,
			StartedAt: unixOrZero(startedAt),
			ExpiresAt: time.Unix(expiresAt.Int64, 0),
		}
	}
	if windowStart > 0 {
		a.Quota.WindowStart = time.Unix(windowStart, 0)
	}
	if referredBy.Valid {
		id := referredBy.Int64
		a.ReferredBy = &id
	}
	a.IsAdmin = isAdmin == 1
	a.CreatedAt = time.Unix(createdAt, 0)
	a.LastActiveAt = time.Unix(lastActive, 0)

	return &a, nil
}

// GetOrCreateAccount returns the account for the profile, creating it on first
// contact. Profile fields, last activity and the admin flag are refreshed on
// every call, so removing a user from the admin config revokes the flag on
// their next contact. created reports whether the row was inserted.
func (s *Storage) GetOrCreateAccount(ctx context.Context, p Profile, isAdmin bool, freeAttempts int, now time.Time) (acc *Account, created bool, err error) {
	for i := 0; i < referralCodeRetries; i++ {
		created, err = s.insertAccount(ctx, p, isAdmin, freeAttempts, now)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrAlreadyExists) {
			return nil, false, err
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("generate referral code: %w", err)
	}

	if !created {
		_, err = s.db.ExecContext(ctx,
			`UPDATE accounts SET username = ?, first_name = ?, last_name = ?, last_active_at = ?,
				is_admin = ?
			 WHERE user_id = ?`,
			p.Username, p.FirstName, p.LastName, now.Unix(), boolToInt(isAdmin), p.UserID,
		)
		if err != nil {
			return nil, false, err
		}
	}

	acc, err = s.GetAccount(ctx, p.UserID)
	if err != nil {
		return nil, false, err
	}
	return acc, created, nil
}

func (s *Storage) insertAccount(ctx context.Context, p Profile, isAdmin bool, freeAttempts int, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, username, first_name, last_name, attempts,
			referral_code, is_admin, created_at, last_active_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		p.UserID, p.Username, p.FirstName, p.LastName, freeAttempts,
		newReferralCode(), boolToInt(isAdmin), now.Unix(), now.Unix(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return false, ErrAlreadyExists
		}
		return false, err
	}
	return affected(result)
}

// GetAccount returns an account by user ID
func (s *Storage) GetAccount(ctx context.Context, userID int64) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = ?`, userID)
	acc, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return acc, err
}

// GetAccountByReferralCode resolves a referral code to its owner
func (s *Storage) GetAccountByReferralCode(ctx context.Context, code string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE referral_code = ?`, code)
	acc, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return acc, err
}

// ListAccounts returns accounts ordered by creation, newest first
func (s *Storage) ListAccounts(ctx context.Context, limit, offset int) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC, user_id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}
	return accounts, rows.Err()
}

// --- Conditional updates ---

// DebitBalance subtracts amount only if the balance covers it at commit time.
func (s *Storage) DebitBalance(ctx context.Context, userID, amount int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET balance = balance - ? WHERE user_id = ? AND balance >= ?",
		amount, userID, amount,
	)
	if err != nil {
		return false, err
	}
	return affected(result)
}

// CreditBalance adds amount to the balance. A credit that would push the
// balance past math.MaxInt64 is refused with ErrBalanceLimit.
func (s *Storage) CreditBalance(ctx context.Context, userID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET balance = balance + ? WHERE user_id = ? AND balance <= ?",
		amount, userID, math.MaxInt64-amount,
	)
	if err != nil {
		return err
	}
	ok, err := affected(result)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if _, err := s.GetAccount(ctx, userID); err != nil {
		return err
	}
	return ErrBalanceLimit
}

// DecrementAttempt consumes one free attempt if any remain.
func (s *Storage) DecrementAttempt(ctx context.Context, userID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET attempts = attempts - 1 WHERE user_id = ? AND attempts > 0",
		userID,
	)
	if err != nil {
		return false, err
	}
	return affected(result)
}

// RolloverQuota resets the daily quota if its window date is before today.
// It is a no-op when another caller already rolled the window forward.
func (s *Storage) RolloverQuota(ctx context.Context, userID int64, today string, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET quota_used = 0, quota_date = ?, quota_window_start = ?
		 WHERE user_id = ? AND quota_date < ?`,
		today, now.Unix(), userID, today,
	)
	if err != nil {
		return false, err
	}
	return affected(result)
}

// IncrementQuota consumes one unit of today's quota. The window date, the
// limit and the subscription expiry are all checked in the same statement.
func (s *Storage) IncrementQuota(ctx context.Context, userID int64, today string, limit int, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET quota_used = quota_used + 1
		 WHERE user_id = ? AND quota_date = ? AND quota_used < ?
			AND sub_expires_at IS NOT NULL AND sub_expires_at > ?`,
		userID, today, limit, now.Unix(),
	)
	if err != nil {
		return false, err
	}
	return affected(result)
}

// PurchaseParams describes a subscription purchase
type PurchaseParams struct {
	UserID    int64
	Plan      string
	Price     int64
	Now       time.Time
	ExpiresAt time.Time
	QuotaDate string
}

// PurchaseSubscription debits the price, activates the plan and resets the
// daily quota in one conditional update, then records the purchase in the
// same transaction. It returns a nil Purchase when the balance does not cover
// the price.
func (s *Storage) PurchaseSubscription(ctx context.Context, p PurchaseParams) (*Purchase, error) {
	purchase := &Purchase{
		ID:          uuid.NewString(),
		UserID:      p.UserID,
		Plan:        p.Plan,
		Price:       p.Price,
		PurchasedAt: time.Unix(p.Now.Unix(), 0),
		ExpiresAt:   time.Unix(p.ExpiresAt.Unix(), 0),
	}

	ok, err := s.withTx(ctx, func(tx *sql.Tx) (bool, error) {
		result, err := tx.ExecContext(ctx,
			`UPDATE accounts SET
				balance = balance - ?,
				sub_plan = ?, sub_started_at = ?, sub_expires_at = ?,
				quota_used = 0, quota_date = ?, quota_window_start = ?
			 WHERE user_id = ? AND balance >= ?`,
			p.Price, p.Plan, p.Now.Unix(), p.ExpiresAt.Unix(),
			p.QuotaDate, p.Now.Unix(),
			p.UserID, p.Price,
		)
		if err != nil {
			return false, err
		}
		if ok, err := affected(result); err != nil || !ok {
			return false, err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO subscription_purchases (id, user_id, plan, price, purchased_at, expires_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			purchase.ID, p.UserID, p.Plan, p.Price, p.Now.Unix(), p.ExpiresAt.Unix(),
		)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return purchase, nil
}

// ExpiredSubscription identifies a plan whose expiry has passed
type ExpiredSubscription struct {
	UserID    int64
	Plan      string
	ExpiresAt time.Time
}

// ListExpiredSubscriptions returns plans with expires_at at or before now
func (s *Storage) ListExpiredSubscriptions(ctx context.Context, now time.Time, limit int) ([]ExpiredSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, sub_plan, sub_expires_at FROM accounts
		 WHERE sub_plan IS NOT NULL AND sub_expires_at <= ?
		 ORDER BY sub_expires_at LIMIT ?`,
		now.Unix(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []ExpiredSubscription
	for rows.Next() {
		var e ExpiredSubscription
		var expiresAt int64
		if err := rows.Scan(&e.UserID, &e.Plan, &expiresAt); err != nil {
			return nil, err
		}
		e.ExpiresAt = time.Unix(expiresAt, 0)
		expired = append(expired, e)
	}
	return expired, rows.Err()
}

// ClearSubscription removes a plan only if it still has the expiry the caller
// observed, so a renewal made in between is left untouched.
func (s *Storage) ClearSubscription(ctx context.Context, userID int64, expiresAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET sub_plan = NULL, sub_started_at = NULL, sub_expires_at = NULL
		 WHERE user_id = ? AND sub_expires_at = ?`,
		userID, expiresAt.Unix(),
	)
	if err != nil {
		return false, err
	}
	return affected(result)
}

func newReferralCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

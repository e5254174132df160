package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppendTransaction appends a search transaction to the audit log.
// The ID is generated when empty.
func (s *Storage) AppendTransaction(ctx context.Context, t *SearchTransaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_transactions
			(id, user_id, query_fingerprint, outcome, cost, payment_method, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.QueryFingerprint, t.Outcome, t.Cost, t.PaymentMethod, t.Reason, t.CreatedAt.Unix(),
	)
	return err
}

// ListTransactions returns a user's transactions in append order, newest first
func (s *Storage) ListTransactions(ctx context.Context, userID int64, limit int) ([]SearchTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, query_fingerprint, outcome, cost, payment_method, reason, created_at
		 FROM search_transactions WHERE user_id = ? ORDER BY seq DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []SearchTransaction
	for rows.Next() {
		var t SearchTransaction
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.QueryFingerprint, &t.Outcome, &t.Cost, &t.PaymentMethod, &t.Reason, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt = time.Unix(createdAt, 0)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// CountUserSearches returns total and successful searches of one user
func (s *Storage) CountUserSearches(ctx context.Context, userID int64) (total, successful int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END), 0)
		 FROM search_transactions WHERE user_id = ?`,
		userID,
	).Scan(&total, &successful)
	return total, successful, err
}

// Stats aggregates accounts, searches, purchases and referrals
func (s *Storage) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	var st Stats

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(is_admin), 0),
			COALESCE(SUM(CASE WHEN sub_expires_at > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(balance), 0)
		 FROM accounts`,
		now.Unix(),
	).Scan(&st.Users, &st.Admins, &st.ActiveSubscriptions, &st.OutstandingBalances)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(cost), 0)
		 FROM search_transactions`,
	).Scan(&st.Searches, &st.SuccessfulSearches, &st.SearchRevenue)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(price), 0) FROM subscription_purchases",
	).Scan(&st.SubscriptionRevenue)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(confirmed), 0),
			COALESCE(SUM(reward), 0)
		 FROM referrals`,
	).Scan(&st.Referrals, &st.ConfirmedReferrals, &st.ReferralRewardsPaid)
	if err != nil {
		return nil, err
	}

	if st.Searches > 0 {
		st.SuccessRate = float64(st.SuccessfulSearches) / float64(st.Searches) * 100
	}

	return &st, nil
}

package storage

import (
	"context"
	"database/sql"
	"math"
	"time"
)

// RegisterReferral links referredID to referrerID. In one transaction it sets
// referred_by (only while still unset), inserts the pending referral and bumps
// the referrer's counter. It returns false when the account already has a
// referrer or the pair is a self-referral.
func (s *Storage) RegisterReferral(ctx context.Context, referrerID, referredID int64, now time.Time) (bool, error) {
	return s.withTx(ctx, func(tx *sql.Tx) (bool, error) {
		result, err := tx.ExecContext(ctx,
			`UPDATE accounts SET referred_by = ?
			 WHERE user_id = ? AND referred_by IS NULL AND user_id <> ?`,
			referrerID, referredID, referrerID,
		)
		if err != nil {
			return false, err
		}
		if ok, err := affected(result); err != nil || !ok {
			return false, err
		}

		result, err = tx.ExecContext(ctx,
			`INSERT INTO referrals (referrer_id, referred_id, created_at)
			 VALUES (?, ?, ?)
			 ON CONFLICT DO NOTHING`,
			referrerID, referredID, now.Unix(),
		)
		if err != nil {
			return false, err
		}
		if ok, err := affected(result); err != nil || !ok {
			return false, err
		}

		result, err = tx.ExecContext(ctx,
			"UPDATE accounts SET total_referrals = total_referrals + 1 WHERE user_id = ?",
			referrerID,
		)
		if err != nil {
			return false, err
		}
		ok, err := affected(result)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, ErrNotFound
		}
		return true, nil
	})
}

// ConfirmReferral flips the pending referral of referredID to confirmed and
// credits the referrer with reward, both in one transaction. The flip is
// conditioned on confirmed = 0, so only the first caller pays out.
func (s *Storage) ConfirmReferral(ctx context.Context, referredID, reward int64, now time.Time) (*Referral, error) {
	var ref Referral

	ok, err := s.withTx(ctx, func(tx *sql.Tx) (bool, error) {
		var createdAt int64
		err := tx.QueryRowContext(ctx,
			`SELECT id, referrer_id, referred_id, created_at FROM referrals
			 WHERE referred_id = ? AND confirmed = 0`,
			referredID,
		).Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &createdAt)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		ref.CreatedAt = time.Unix(createdAt, 0)

		result, err := tx.ExecContext(ctx,
			`UPDATE referrals SET confirmed = 1, reward = ?, confirmed_at = ?
			 WHERE id = ? AND confirmed = 0`,
			reward, now.Unix(), ref.ID,
		)
		if err != nil {
			return false, err
		}
		if ok, err := affected(result); err != nil || !ok {
			return false, err
		}

		if reward > 0 {
			result, err = tx.ExecContext(ctx,
				"UPDATE accounts SET balance = balance + ? WHERE user_id = ? AND balance <= ?",
				reward, ref.ReferrerID, math.MaxInt64-reward,
			)
			if err != nil {
				return false, err
			}
			if ok, err := affected(result); err != nil || !ok {
				if err == nil {
					err = ErrBalanceLimit
				}
				return false, err
			}
		}
		return true, nil
	})
	if err != nil || !ok {
		return nil, err
	}

	confirmedAt := time.Unix(now.Unix(), 0)
	ref.Confirmed = true
	ref.Reward = reward
	ref.ConfirmedAt = &confirmedAt
	return &ref, nil
}

// GetReferralByReferred returns the referral record of an invited account
func (s *Storage) GetReferralByReferred(ctx context.Context, referredID int64) (*Referral, error) {
	var ref Referral
	var confirmed int
	var createdAt int64
	var confirmedAt sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, referrer_id, referred_id, confirmed, reward, created_at, confirmed_at
		 FROM referrals WHERE referred_id = ?`,
		referredID,
	).Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &confirmed, &ref.Reward, &createdAt, &confirmedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	ref.Confirmed = confirmed == 1
	ref.CreatedAt = time.Unix(createdAt, 0)
	if confirmedAt.Valid {
		t := time.Unix(confirmedAt.Int64, 0)
		ref.ConfirmedAt = &t
	}
	return &ref, nil
}

// CountConfirmedReferrals returns how many of a referrer's invites were confirmed
func (s *Storage) CountConfirmedReferrals(ctx context.Context, referrerID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM referrals WHERE referrer_id = ? AND confirmed = 1",
		referrerID,
	).Scan(&count)
	return count, err
}

package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/suspectuso/lookup-bot/internal/metrics"
	"github.com/suspectuso/lookup-bot/internal/storage"
)

// Confirmation is the outcome of ConfirmReferral
type Confirmation struct {
	Rewarded   bool
	ReferrerID int64
	Reward     int64
}

// ReferralLedger registers invitations and pays the referrer once the
// invited account is confirmed.
type ReferralLedger struct {
	store  ReferralStore
	reward int64
	log    *slog.Logger
	now    func() time.Time
}

// NewReferralLedger creates a ledger paying reward per confirmed referral
func NewReferralLedger(store ReferralStore, reward int64, log *slog.Logger) *ReferralLedger {
	return &ReferralLedger{
		store:  store,
		reward: reward,
		log:    log,
		now:    time.Now,
	}
}

// Reward returns the amount credited per confirmed referral
func (l *ReferralLedger) Reward() int64 {
	return l.reward
}

// RegisterReferral records that acc was invited by the owner of code.
// Unknown codes, self-referrals and accounts that already have a referrer
// are ignored and reported as false; the first code an account presents wins.
func (l *ReferralLedger) RegisterReferral(ctx context.Context, acc *storage.Account, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" || acc.ReferredBy != nil {
		metrics.ReferralEvents.WithLabelValues("rejected").Inc()
		return false, nil
	}

	referrer, err := l.store.GetAccountByReferralCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		l.log.Debug("unknown referral code", "user_id", acc.UserID, "code", code)
		metrics.ReferralEvents.WithLabelValues("rejected").Inc()
		return false, nil
	}
	if err != nil {
		return false, unavailable("resolve referral code", err)
	}
	if referrer.UserID == acc.UserID {
		l.log.Debug("self referral ignored", "user_id", acc.UserID)
		metrics.ReferralEvents.WithLabelValues("rejected").Inc()
		return false, nil
	}

	ok, err := l.store.RegisterReferral(ctx, referrer.UserID, acc.UserID, l.now())
	if err != nil {
		return false, unavailable("register referral", err)
	}
	if !ok {
		metrics.ReferralEvents.WithLabelValues("rejected").Inc()
		return false, nil
	}

	referrerID := referrer.UserID
	acc.ReferredBy = &referrerID

	metrics.ReferralEvents.WithLabelValues("registered").Inc()
	l.log.Info("referral registered", "referrer_id", referrerID, "referred_id", acc.UserID)
	return true, nil
}

// ConfirmReferral confirms the pending referral of referredID and credits the
// referrer. Calling it again is a no-op: the first call leaves nothing
// unconfirmed to find.
func (l *ReferralLedger) ConfirmReferral(ctx context.Context, referredID int64) (Confirmation, error) {
	ref, err := l.store.ConfirmReferral(ctx, referredID, l.reward, l.now())
	if err != nil {
		return Confirmation{}, unavailable("confirm referral", err)
	}
	if ref == nil {
		return Confirmation{}, nil
	}

	metrics.ReferralEvents.WithLabelValues("rewarded").Inc()
	if ref.Reward > 0 {
		metrics.ChargedMinorUnits.WithLabelValues("referral_reward").Add(float64(ref.Reward))
	}
	l.log.Info("referral confirmed",
		"referrer_id", ref.ReferrerID,
		"referred_id", referredID,
		"reward", ref.Reward,
	)

	return Confirmation{Rewarded: true, ReferrerID: ref.ReferrerID, Reward: ref.Reward}, nil
}

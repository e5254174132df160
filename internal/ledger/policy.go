package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/suspectuso/lookup-bot/internal/storage"
)

// Policy decides how a non-admin search is paid for and consumes that
// payment once the search succeeded. Settle must report a lost race as
// ErrConflict and must not mutate anything for methods it does not own.
type Policy interface {
	Authorize(ctx context.Context, acc *storage.Account, now time.Time) (Decision, error)
	Settle(ctx context.Context, acc *storage.Account, method PaymentMethod, now time.Time) (Settlement, error)
}

// BalancePolicy charges an active subscription's daily quota first and the
// account balance otherwise.
type BalancePolicy struct {
	store      AccountStore
	unitPrice  int64
	dailyLimit int
	loc        *time.Location
}

// NewBalancePolicy creates the balance and subscription payment policy
func NewBalancePolicy(store AccountStore, unitPrice int64, loc *time.Location) *BalancePolicy {
	return &BalancePolicy{
		store:      store,
		unitPrice:  unitPrice,
		dailyLimit: DailyLimit,
		loc:        loc,
	}
}

// UnitPrice returns the balance price of one search
func (p *BalancePolicy) UnitPrice() int64 {
	return p.unitPrice
}

func (p *BalancePolicy) Authorize(ctx context.Context, acc *storage.Account, now time.Time) (Decision, error) {
	if SubscriptionActive(acc, now) {
		quota, rolled := RolloverQuota(acc.Quota, now, p.loc)
		if rolled {
			// false means another request rolled the window first; either way
			// the stored window is today's now.
			if _, err := p.store.RolloverQuota(ctx, acc.UserID, quota.WindowDate, now); err != nil {
				return Decision{}, unavailable("rollover quota", err)
			}
			acc.Quota = quota
		}

		if acc.Quota.Used < p.dailyLimit {
			return Decision{Allowed: true, Method: MethodSubscription}, nil
		}
		return Decision{Reason: ReasonQuotaExceeded}, nil
	}

	if acc.Balance >= p.unitPrice {
		return Decision{Allowed: true, Method: MethodBalance}, nil
	}
	return Decision{Reason: ReasonInsufficientFunds}, nil
}

func (p *BalancePolicy) Settle(ctx context.Context, acc *storage.Account, method PaymentMethod, now time.Time) (Settlement, error) {
	switch method {
	case MethodSubscription:
		ok, err := p.store.IncrementQuota(ctx, acc.UserID, DayKey(now, p.loc), p.dailyLimit, now)
		if err != nil {
			return Settlement{}, unavailable("increment quota", err)
		}
		if !ok {
			return Settlement{}, ErrConflict
		}
		return Settlement{Method: MethodSubscription}, nil

	case MethodBalance:
		ok, err := p.store.DebitBalance(ctx, acc.UserID, p.unitPrice)
		if err != nil {
			return Settlement{}, unavailable("debit balance", err)
		}
		if !ok {
			return Settlement{}, ErrConflict
		}
		return Settlement{Method: MethodBalance, Cost: p.unitPrice}, nil
	}

	return Settlement{}, fmt.Errorf("balance policy cannot settle %q", method)
}

// AttemptPolicy grants a fixed number of free attempts per account and
// consumes one per successful search.
type AttemptPolicy struct {
	store AccountStore
}

// NewAttemptPolicy creates the attempt-count payment policy
func NewAttemptPolicy(store AccountStore) *AttemptPolicy {
	return &AttemptPolicy{store: store}
}

func (p *AttemptPolicy) Authorize(ctx context.Context, acc *storage.Account, now time.Time) (Decision, error) {
	if acc.Attempts > 0 {
		return Decision{Allowed: true, Method: MethodAttempt}, nil
	}
	return Decision{Reason: ReasonNoAttempts}, nil
}

func (p *AttemptPolicy) Settle(ctx context.Context, acc *storage.Account, method PaymentMethod, now time.Time) (Settlement, error) {
	if method != MethodAttempt {
		return Settlement{}, fmt.Errorf("attempt policy cannot settle %q", method)
	}

	ok, err := p.store.DecrementAttempt(ctx, acc.UserID)
	if err != nil {
		return Settlement{}, unavailable("decrement attempt", err)
	}
	if !ok {
		return Settlement{}, ErrConflict
	}
	return Settlement{Method: MethodAttempt}, nil
}

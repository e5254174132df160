// Package ledger decides whether a paid search may run, which payment method
// covers it, and performs the race-free accounting around it: balance debits,
// daily subscription quota, plan purchases and referral rewards.
//
// The package holds no locks. Every financial mutation is delegated to a
// single conditional update in the store; a lost race surfaces as ErrConflict
// and is resolved by re-reading the account and deciding again.
package ledger

import (
	"context"
	"time"

	"github.com/suspectuso/lookup-bot/internal/storage"
)

// PaymentMethod names what covers a search
type PaymentMethod string

const (
	MethodAdmin        PaymentMethod = "admin"
	MethodSubscription PaymentMethod = "subscription"
	MethodBalance      PaymentMethod = "balance"
	MethodFree         PaymentMethod = "free"
	MethodAttempt      PaymentMethod = "attempt"
)

// Reason explains a negative result
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonQuotaExceeded     Reason = "quota_exceeded"
	ReasonInsufficientFunds Reason = "insufficient_funds"
	ReasonNoAttempts        Reason = "no_attempts"
	ReasonUnknownPlan       Reason = "unknown_plan"
	ReasonConflict          Reason = "conflict"
)

// Outcome is the result of the provider call
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Decision is the result of Authorize
type Decision struct {
	Allowed bool
	Method  PaymentMethod
	Reason  Reason
}

// Settlement describes what Settle consumed
type Settlement struct {
	Method PaymentMethod
	Cost   int64
}

// DailyLimit is the number of subscription searches per calendar day.
const DailyLimit = 12

// AccountStore is what the engine and its policies need from persistence.
type AccountStore interface {
	GetAccount(ctx context.Context, userID int64) (*storage.Account, error)
	DebitBalance(ctx context.Context, userID, amount int64) (bool, error)
	DecrementAttempt(ctx context.Context, userID int64) (bool, error)
	RolloverQuota(ctx context.Context, userID int64, today string, now time.Time) (bool, error)
	IncrementQuota(ctx context.Context, userID int64, today string, limit int, now time.Time) (bool, error)
}

// SubscriptionStore is what the subscription manager needs from persistence.
type SubscriptionStore interface {
	GetAccount(ctx context.Context, userID int64) (*storage.Account, error)
	PurchaseSubscription(ctx context.Context, p storage.PurchaseParams) (*storage.Purchase, error)
	ListExpiredSubscriptions(ctx context.Context, now time.Time, limit int) ([]storage.ExpiredSubscription, error)
	ClearSubscription(ctx context.Context, userID int64, expiresAt time.Time) (bool, error)
}

// ReferralStore is what the referral ledger needs from persistence.
type ReferralStore interface {
	GetAccountByReferralCode(ctx context.Context, code string) (*storage.Account, error)
	RegisterReferral(ctx context.Context, referrerID, referredID int64, now time.Time) (bool, error)
	ConfirmReferral(ctx context.Context, referredID, reward int64, now time.Time) (*storage.Referral, error)
}

// TransactionStore is what the recorder needs from persistence.
type TransactionStore interface {
	AppendTransaction(ctx context.Context, t *storage.SearchTransaction) error
	Stats(ctx context.Context, now time.Time) (*storage.Stats, error)
}

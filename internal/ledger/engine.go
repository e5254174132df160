package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/suspectuso/lookup-bot/internal/metrics"
	"github.com/suspectuso/lookup-bot/internal/storage"
)

// Engine is the entitlement decision point. Callers run the provider strictly
// between Authorize and Settle, and always Settle, including on failure.
type Engine struct {
	store       AccountStore
	policy      Policy
	maxAttempts int
	log         *slog.Logger
	now         func() time.Time
}

// NewEngine creates an engine using policy for non-admin accounts.
// maxAttempts bounds SettleWithRetry.
func NewEngine(store AccountStore, policy Policy, maxAttempts int, log *slog.Logger) *Engine {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Engine{
		store:       store,
		policy:      policy,
		maxAttempts: maxAttempts,
		log:         log,
		now:         time.Now,
	}
}

// Authorize decides whether acc may run one paid search and which method
// pays for it. A denial is a normal result carrying a reason, not an error.
func (e *Engine) Authorize(ctx context.Context, acc *storage.Account) (Decision, error) {
	dec, err := e.authorize(ctx, acc)
	if err != nil {
		return Decision{}, err
	}
	metrics.AuthorizeDecisions.WithLabelValues(string(dec.Method), string(dec.Reason)).Inc()
	return dec, nil
}

func (e *Engine) authorize(ctx context.Context, acc *storage.Account) (Decision, error) {
	if acc.IsAdmin {
		return Decision{Allowed: true, Method: MethodAdmin}, nil
	}
	return e.policy.Authorize(ctx, acc, e.now())
}

// Settle finalizes a search. A failed outcome consumes nothing under any
// method; admin and free searches never consume anything. A lost race is
// returned as ErrConflict and nothing was charged.
func (e *Engine) Settle(ctx context.Context, acc *storage.Account, method PaymentMethod, outcome Outcome) (Settlement, error) {
	if outcome != OutcomeSuccess {
		metrics.Settlements.WithLabelValues(string(method), string(outcome)).Inc()
		return Settlement{Method: method}, nil
	}

	switch method {
	case MethodAdmin, MethodFree:
		metrics.Settlements.WithLabelValues(string(method), string(outcome)).Inc()
		return Settlement{Method: method}, nil
	}

	s, err := e.policy.Settle(ctx, acc, method, e.now())
	if err != nil {
		if errors.Is(err, ErrConflict) {
			metrics.SettleConflicts.Inc()
		}
		return Settlement{}, err
	}

	metrics.Settlements.WithLabelValues(string(method), string(outcome)).Inc()
	if s.Cost > 0 {
		metrics.ChargedMinorUnits.WithLabelValues("search").Add(float64(s.Cost))
	}
	return s, nil
}

// SettleWithRetry settles like Settle, and on a lost race re-reads the
// account, re-authorizes and settles with the fresh decision, at most
// maxAttempts times in total. When the fresh decision is a denial it returns
// ErrUnpaid; when attempts run out it returns ErrTransient.
func (e *Engine) SettleWithRetry(ctx context.Context, acc *storage.Account, dec Decision, outcome Outcome) (Settlement, Decision, error) {
	for attempt := 1; ; attempt++ {
		s, err := e.Settle(ctx, acc, dec.Method, outcome)
		if err == nil {
			return s, dec, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Settlement{}, dec, err
		}

		e.log.Info("settle conflict, re-authorizing",
			"user_id", acc.UserID,
			"method", dec.Method,
			"attempt", attempt,
		)

		if attempt >= e.maxAttempts {
			return Settlement{}, dec, fmt.Errorf("settle user %d: %w: %w", acc.UserID, ErrTransient, ErrConflict)
		}

		fresh, err := e.store.GetAccount(ctx, acc.UserID)
		if err != nil {
			return Settlement{}, dec, unavailable("reload account", err)
		}
		acc = fresh

		dec, err = e.Authorize(ctx, acc)
		if err != nil {
			return Settlement{}, dec, err
		}
		if !dec.Allowed {
			return Settlement{}, dec, fmt.Errorf("settle user %d: %w: %s", acc.UserID, ErrUnpaid, dec.Reason)
		}
	}
}

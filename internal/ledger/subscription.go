package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/suspectuso/lookup-bot/internal/metrics"
	"github.com/suspectuso/lookup-bot/internal/storage"
)

// Plan is a purchasable subscription
type Plan struct {
	ID         string
	Title      string
	Duration   time.Duration
	Price      int64
	DailyLimit int
}

const (
	PlanDay     = "day"
	Plan3Days   = "3days"
	PlanMonth   = "month"
	expireBatch = 100
)

// Plans returns the fixed plan table with the given prices
func Plans(dayPrice, threeDaysPrice, monthPrice int64) []Plan {
	return []Plan{
		{ID: PlanDay, Title: "1 день", Duration: 24 * time.Hour, Price: dayPrice, DailyLimit: DailyLimit},
		{ID: Plan3Days, Title: "3 дня", Duration: 3 * 24 * time.Hour, Price: threeDaysPrice, DailyLimit: DailyLimit},
		{ID: PlanMonth, Title: "30 дней", Duration: 30 * 24 * time.Hour, Price: monthPrice, DailyLimit: DailyLimit},
	}
}

// PurchaseResult is the outcome of Purchase
type PurchaseResult struct {
	Committed bool
	Plan      Plan
	ExpiresAt time.Time
	Reason    Reason
	Purchase  *storage.Purchase
}

// SubscriptionManager sells plans and clears expired ones
type SubscriptionManager struct {
	store       SubscriptionStore
	plans       []Plan
	loc         *time.Location
	maxAttempts int
	log         *slog.Logger
	now         func() time.Time
}

// NewSubscriptionManager creates a manager for plans
func NewSubscriptionManager(store SubscriptionStore, plans []Plan, loc *time.Location, maxAttempts int, log *slog.Logger) *SubscriptionManager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &SubscriptionManager{
		store:       store,
		plans:       plans,
		loc:         loc,
		maxAttempts: maxAttempts,
		log:         log,
		now:         time.Now,
	}
}

// Plans returns the plan table in display order
func (m *SubscriptionManager) Plans() []Plan {
	return m.plans
}

// Plan looks up a plan by ID
func (m *SubscriptionManager) Plan(id string) (Plan, bool) {
	for _, p := range m.plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// Purchase debits the plan price and activates the plan with a fresh daily
// quota, as one conditional update. A purchase that loses a race against a
// concurrent debit is retried from freshly read state.
func (m *SubscriptionManager) Purchase(ctx context.Context, userID int64, planID string) (PurchaseResult, error) {
	plan, ok := m.Plan(planID)
	if !ok {
		metrics.SubscriptionPurchases.WithLabelValues(planID, string(ReasonUnknownPlan)).Inc()
		return PurchaseResult{Reason: ReasonUnknownPlan}, nil
	}

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		acc, err := m.store.GetAccount(ctx, userID)
		if err != nil {
			return PurchaseResult{}, unavailable("load account", err)
		}
		if acc.Balance < plan.Price {
			metrics.SubscriptionPurchases.WithLabelValues(plan.ID, string(ReasonInsufficientFunds)).Inc()
			return PurchaseResult{Plan: plan, Reason: ReasonInsufficientFunds}, nil
		}

		now := m.now()
		purchase, err := m.store.PurchaseSubscription(ctx, storage.PurchaseParams{
			UserID:    userID,
			Plan:      plan.ID,
			Price:     plan.Price,
			Now:       now,
			ExpiresAt: now.Add(plan.Duration),
			QuotaDate: DayKey(now, m.loc),
		})
		if err != nil {
			return PurchaseResult{}, unavailable("purchase subscription", err)
		}
		if purchase != nil {
			metrics.SubscriptionPurchases.WithLabelValues(plan.ID, "committed").Inc()
			metrics.ChargedMinorUnits.WithLabelValues("subscription").Add(float64(plan.Price))
			m.log.Info("subscription purchased",
				"user_id", userID,
				"plan", plan.ID,
				"price", plan.Price,
				"expires_at", purchase.ExpiresAt,
			)
			return PurchaseResult{
				Committed: true,
				Plan:      plan,
				ExpiresAt: purchase.ExpiresAt,
				Purchase:  purchase,
			}, nil
		}

		metrics.SettleConflicts.Inc()
		m.log.Info("purchase conflict, retrying", "user_id", userID, "plan", plan.ID, "attempt", attempt)
	}

	return PurchaseResult{Plan: plan}, fmt.Errorf("purchase for user %d: %w: %w", userID, ErrTransient, ErrConflict)
}

// ExpireDue clears plans whose expiry has passed and returns the ones it
// cleared. Whether a plan is active never depends on this sweep; it only
// tidies the record and tells callers whom to notify.
func (m *SubscriptionManager) ExpireDue(ctx context.Context) ([]storage.ExpiredSubscription, error) {
	now := m.now()

	due, err := m.store.ListExpiredSubscriptions(ctx, now, expireBatch)
	if err != nil {
		return nil, unavailable("list expired subscriptions", err)
	}

	var cleared []storage.ExpiredSubscription
	for _, sub := range due {
		ok, err := m.store.ClearSubscription(ctx, sub.UserID, sub.ExpiresAt)
		if err != nil {
			return cleared, unavailable("clear subscription", err)
		}
		if !ok {
			// renewed in the meantime
			continue
		}
		cleared = append(cleared, sub)
	}

	if len(cleared) > 0 {
		m.log.Info("subscriptions expired", "count", len(cleared))
	}
	return cleared, nil
}

package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/suspectuso/lookup-bot/internal/storage"
)

// Expirer clears subscriptions whose expiry has passed
type Expirer interface {
	ExpireDue(ctx context.Context) ([]storage.ExpiredSubscription, error)
}

// ExpiryChecker periodically sweeps expired subscriptions and notifies their
// owners. Entitlement never waits for it: an expired plan already stops
// authorizing at its expiry instant.
type ExpiryChecker struct {
	subs   Expirer
	notify *Notifier
	log    *slog.Logger
}

// NewExpiryChecker creates a new expiry checker
func NewExpiryChecker(subs Expirer, notify *Notifier, log *slog.Logger) *ExpiryChecker {
	return &ExpiryChecker{
		subs:   subs,
		notify: notify,
		log:    log,
	}
}

// Start starts the expiry checker loop
func (ec *ExpiryChecker) Start(ctx context.Context, interval time.Duration) {
	ec.log.Info("expiry checker started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ec.check(ctx); err != nil {
				ec.log.Error("expire subscriptions", "error", err)
			}
		}
	}
}

func (ec *ExpiryChecker) check(ctx context.Context) error {
	expired, err := ec.subs.ExpireDue(ctx)
	if len(expired) > 0 {
		ec.notify.SubscriptionsExpired(ctx, expired)
	}
	return err
}

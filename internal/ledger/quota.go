package ledger

import (
	"time"

	"github.com/suspectuso/lookup-bot/internal/storage"
)

const dayKeyLayout = "2006-01-02"

// DayKey returns the calendar date of t in loc as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayKeyLayout)
}

// RolloverQuota returns the quota as it should be at now. When now falls on a
// later calendar date than the window, the window restarts at now with
// nothing used. The comparison is by date in loc, not by elapsed time.
func RolloverQuota(q storage.DailyQuota, now time.Time, loc *time.Location) (storage.DailyQuota, bool) {
	today := DayKey(now, loc)
	if today <= q.WindowDate {
		return q, false
	}
	return storage.DailyQuota{Used: 0, WindowDate: today, WindowStart: now}, true
}

// SubscriptionActive reports whether acc has a plan that has not expired at now.
func SubscriptionActive(acc *storage.Account, now time.Time) bool {
	return acc.Subscription != nil && now.Before(acc.Subscription.ExpiresAt)
}

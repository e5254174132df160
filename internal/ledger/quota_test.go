package ledger

import (
	"testing"
	"time"

	"github.com/suspectuso/lookup-bot/internal/storage"
)

func TestRolloverQuota(t *testing.T) {
	window := storage.DailyQuota{Used: 7, WindowDate: "2026-03-10"}

	tests := []struct {
		name     string
		quota    storage.DailyQuota
		now      time.Time
		wantRoll bool
		wantDate string
	}{
		{"same day", window, time.Date(2026, 3, 10, 23, 59, 0, 0, msk), false, "2026-03-10"},
		{"midnight in reference zone", window, time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC), true, "2026-03-11"},
		{"late UTC evening is still same day", window, time.Date(2026, 3, 10, 20, 59, 0, 0, time.UTC), false, "2026-03-10"},
		{"clock behind window", window, time.Date(2026, 3, 9, 12, 0, 0, 0, msk), false, "2026-03-10"},
		{"never used", storage.DailyQuota{}, testNow, true, "2026-03-10"},
		{"several days later", window, time.Date(2026, 3, 14, 8, 0, 0, 0, msk), true, "2026-03-14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rolled := RolloverQuota(tt.quota, tt.now, msk)
			if rolled != tt.wantRoll {
				t.Fatalf("rolled = %v, want %v", rolled, tt.wantRoll)
			}
			if got.WindowDate != tt.wantDate {
				t.Fatalf("window = %q, want %q", got.WindowDate, tt.wantDate)
			}
			if rolled && (got.Used != 0 || !got.WindowStart.Equal(tt.now)) {
				t.Fatalf("expected reset window at %v, got %+v", tt.now, got)
			}
			if !rolled && got.Used != tt.quota.Used {
				t.Fatalf("used changed without rollover: %+v", got)
			}
		})
	}
}

func TestSubscriptionActive(t *testing.T) {
	acc := &storage.Account{}
	if SubscriptionActive(acc, testNow) {
		t.Fatal("no plan must not be active")
	}

	acc.Subscription = &storage.Subscription{Plan: PlanDay, ExpiresAt: testNow}
	if SubscriptionActive(acc, testNow) {
		t.Fatal("plan is inactive at its expiry instant")
	}
	if !SubscriptionActive(acc, testNow.Add(-time.Second)) {
		t.Fatal("plan must be active before expiry")
	}
}

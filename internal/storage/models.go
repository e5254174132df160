package storage

import "time"

// Account is the per-user ledger record
type Account struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string

	Balance  int64 // minor units
	Attempts int

	Subscription *Subscription
	Quota        DailyQuota

	ReferralCode   string
	ReferredBy     *int64
	TotalReferrals int

	IsAdmin      bool
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// Subscription is a time-boxed quota plan
type Subscription struct {
	Plan      string
	StartedAt time.Time
	ExpiresAt time.Time
}

// DailyQuota tracks subscription searches used in the current calendar day
type DailyQuota struct {
	Used        int
	WindowDate  string // YYYY-MM-DD in the reference timezone
	WindowStart time.Time
}

// Profile holds the chat-provided user details
type Profile struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
}

// Referral links an inviting and an invited account
type Referral struct {
	ID          int64
	ReferrerID  int64
	ReferredID  int64
	Confirmed   bool
	Reward      int64
	CreatedAt   time.Time
	ConfirmedAt *time.Time
}

// SearchTransaction is one audited search attempt
type SearchTransaction struct {
	ID               string
	UserID           int64
	QueryFingerprint string
	Outcome          string
	Cost             int64
	PaymentMethod    string
	Reason           string
	CreatedAt        time.Time
}

// Purchase records a committed subscription purchase
type Purchase struct {
	ID          string
	UserID      int64
	Plan        string
	Price       int64
	PurchasedAt time.Time
	ExpiresAt   time.Time
}

// Stats is the aggregate view served to the reporting surface
type Stats struct {
	Users               int64   `json:"total_users"`
	Admins              int64   `json:"admins"`
	ActiveSubscriptions int64   `json:"active_subscriptions"`
	Searches            int64   `json:"total_searches"`
	SuccessfulSearches  int64   `json:"successful_searches"`
	SuccessRate         float64 `json:"success_rate"`
	SearchRevenue       int64   `json:"search_revenue"`
	SubscriptionRevenue int64   `json:"subscription_revenue"`
	Referrals           int64   `json:"total_referrals"`
	ConfirmedReferrals  int64   `json:"confirmed_referrals"`
	ReferralRewardsPaid int64   `json:"referral_rewards_paid"`
	OutstandingBalances int64   `json:"outstanding_balances"`
}

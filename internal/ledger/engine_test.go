package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/suspectuso/lookup-bot/internal/storage"
)

var (
	msk     = time.FixedZone("MSK", 3*60*60)
	testNow = time.Date(2026, 3, 10, 10, 0, 0, 0, msk)
)

const unitPrice = 250

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("storage.New returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestAccount(t *testing.T, s *storage.Storage, userID int64, admin bool, balance int64) *storage.Account {
	t.Helper()
	ctx := context.Background()
	if _, _, err := s.GetOrCreateAccount(ctx, storage.Profile{UserID: userID, Username: "user"}, admin, 0, testNow); err != nil {
		t.Fatalf("GetOrCreateAccount returned error: %v", err)
	}
	if balance > 0 {
		if err := s.CreditBalance(ctx, userID, balance); err != nil {
			t.Fatalf("CreditBalance returned error: %v", err)
		}
	}
	return reload(t, s, userID)
}

func reload(t *testing.T, s *storage.Storage, userID int64) *storage.Account {
	t.Helper()
	acc, err := s.GetAccount(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetAccount returned error: %v", err)
	}
	return acc
}

func newTestEngine(s AccountStore, at time.Time) *Engine {
	e := NewEngine(s, NewBalancePolicy(s, unitPrice, msk), 3, testLogger())
	e.now = func() time.Time { return at }
	return e
}

func buyPlan(t *testing.T, s *storage.Storage, userID int64, planID string, at time.Time) {
	t.Helper()
	m := NewSubscriptionManager(s, Plans(2900, 7900, 49900), msk, 3, testLogger())
	m.now = func() time.Time { return at }
	res, err := m.Purchase(context.Background(), userID, planID)
	if err != nil {
		t.Fatalf("Purchase returned error: %v", err)
	}
	if !res.Committed {
		t.Fatalf("expected purchase to commit, got reason %q", res.Reason)
	}
}

func TestAuthorize_AdminWithoutFunds(t *testing.T) {
	s := newTestStore(t)
	acc := newTestAccount(t, s, 1, true, 0)

	dec, err := newTestEngine(s, testNow).Authorize(context.Background(), acc)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if !dec.Allowed || dec.Method != MethodAdmin {
		t.Fatalf("expected admin allowance, got %+v", dec)
	}
}

func TestAuthorize_NoFundsNoSubscription(t *testing.T) {
	s := newTestStore(t)
	acc := newTestAccount(t, s, 1, false, 0)

	dec, err := newTestEngine(s, testNow).Authorize(context.Background(), acc)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if dec.Allowed || dec.Reason != ReasonInsufficientFunds {
		t.Fatalf("expected insufficient_funds denial, got %+v", dec)
	}
}

func TestAuthorize_BalanceCoversExactlyOneSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := newTestEngine(s, testNow)
	acc := newTestAccount(t, s, 1, false, unitPrice)

	dec, err := e.Authorize(ctx, acc)
	if err != nil || !dec.Allowed || dec.Method != MethodBalance {
		t.Fatalf("expected balance allowance, got %+v err=%v", dec, err)
	}

	st, err := e.Settle(ctx, acc, dec.Method, OutcomeSuccess)
	if err != nil {
		t.Fatalf("Settle returned error: %v", err)
	}
	if st.Cost != unitPrice {
		t.Fatalf("expected cost %d, got %d", unitPrice, st.Cost)
	}

	acc = reload(t, s, 1)
	if acc.Balance != 0 {
		t.Fatalf("expected empty balance, got %d", acc.Balance)
	}
	dec, _ = e.Authorize(ctx, acc)
	if dec.Allowed {
		t.Fatal("expected denial once the balance is spent")
	}
}

func TestSettle_FailureIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	methods := []PaymentMethod{MethodAdmin, MethodSubscription, MethodBalance, MethodFree, MethodAttempt}
	for i, method := range methods {
		userID := int64(100 + i)
		newTestAccount(t, s, userID, method == MethodAdmin, 10000)
		buyPlan(t, s, userID, PlanDay, testNow)
		before := reload(t, s, userID)

		e := newTestEngine(s, testNow.Add(time.Minute))
		st, err := e.Settle(ctx, before, method, OutcomeFailure)
		if err != nil {
			t.Fatalf("%s: Settle returned error: %v", method, err)
		}
		if st.Cost != 0 {
			t.Fatalf("%s: expected no cost, got %d", method, st.Cost)
		}

		after := reload(t, s, userID)
		if after.Balance != before.Balance || after.Quota.Used != before.Quota.Used || after.Attempts != before.Attempts {
			t.Fatalf("%s: state changed from %+v to %+v", method, before, after)
		}
	}
}

func TestSettle_AdminAndFreeConsumeNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := newTestEngine(s, testNow)
	acc := newTestAccount(t, s, 1, false, 1000)

	for _, method := range []PaymentMethod{MethodAdmin, MethodFree} {
		if _, err := e.Settle(ctx, acc, method, OutcomeSuccess); err != nil {
			t.Fatalf("%s: Settle returned error: %v", method, err)
		}
	}
	if got := reload(t, s, 1).Balance; got != 1000 {
		t.Fatalf("expected balance untouched, got %d", got)
	}
}

func TestSettle_ConcurrentBalanceNeverOverspends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := newTestEngine(s, testNow)
	newTestAccount(t, s, 1, false, 1000)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		settled int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc, err := s.GetAccount(ctx, 1)
			if err != nil {
				t.Errorf("GetAccount returned error: %v", err)
				return
			}
			dec, err := e.Authorize(ctx, acc)
			if err != nil {
				t.Errorf("Authorize returned error: %v", err)
				return
			}
			if !dec.Allowed {
				return
			}
			_, _, err = e.SettleWithRetry(ctx, acc, dec, OutcomeSuccess)
			if err == nil {
				mu.Lock()
				settled++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrUnpaid) && !errors.Is(err, ErrTransient) {
				t.Errorf("unexpected settle error: %v", err)
			}
		}()
	}
	wg.Wait()

	if settled != 1000/unitPrice {
		t.Fatalf("expected %d paid searches, got %d", 1000/unitPrice, settled)
	}
	if got := reload(t, s, 1).Balance; got != 0 {
		t.Fatalf("expected balance 0, got %d", got)
	}
}

func TestSubscription_QuotaCappedAndResetsNextDay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestAccount(t, s, 1, false, 7900)
	buyPlan(t, s, 1, Plan3Days, testNow)

	e := newTestEngine(s, testNow.Add(time.Hour))
	for i := 0; i < DailyLimit; i++ {
		acc := reload(t, s, 1)
		dec, err := e.Authorize(ctx, acc)
		if err != nil || !dec.Allowed || dec.Method != MethodSubscription {
			t.Fatalf("search %d: expected subscription allowance, got %+v err=%v", i+1, dec, err)
		}
		if _, err := e.Settle(ctx, acc, dec.Method, OutcomeSuccess); err != nil {
			t.Fatalf("search %d: Settle returned error: %v", i+1, err)
		}
	}

	acc := reload(t, s, 1)
	if acc.Quota.Used != DailyLimit {
		t.Fatalf("expected %d used, got %d", DailyLimit, acc.Quota.Used)
	}
	dec, _ := e.Authorize(ctx, acc)
	if dec.Allowed || dec.Reason != ReasonQuotaExceeded {
		t.Fatalf("expected quota_exceeded, got %+v", dec)
	}
	if _, err := e.Settle(ctx, acc, MethodSubscription, OutcomeSuccess); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict past the limit, got %v", err)
	}

	// 00:05 Moscow time on the next calendar day
	nextDay := time.Date(2026, 3, 11, 0, 5, 0, 0, msk)
	e.now = func() time.Time { return nextDay }

	acc = reload(t, s, 1)
	dec, err := e.Authorize(ctx, acc)
	if err != nil || !dec.Allowed || dec.Method != MethodSubscription {
		t.Fatalf("expected allowance after rollover, got %+v err=%v", dec, err)
	}
	acc = reload(t, s, 1)
	if acc.Quota.Used != 0 || acc.Quota.WindowDate != "2026-03-11" {
		t.Fatalf("expected fresh window, got %+v", acc.Quota)
	}
}

func TestSubscription_ConcurrentQuotaNeverExceedsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestAccount(t, s, 1, false, 2900)
	buyPlan(t, s, 1, PlanDay, testNow)
	e := newTestEngine(s, testNow.Add(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc, err := s.GetAccount(ctx, 1)
			if err != nil {
				t.Errorf("GetAccount returned error: %v", err)
				return
			}
			dec, err := e.Authorize(ctx, acc)
			if err != nil || !dec.Allowed {
				return
			}
			e.SettleWithRetry(ctx, acc, dec, OutcomeSuccess)
		}()
	}
	wg.Wait()

	if used := reload(t, s, 1).Quota.Used; used != DailyLimit {
		t.Fatalf("expected exactly %d searches on quota, got %d", DailyLimit, used)
	}
}

func TestSettleWithRetry_DayBoundaryBetweenAuthorizeAndSettle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestAccount(t, s, 1, false, 2900)
	buyPlan(t, s, 1, PlanDay, testNow)

	now := time.Date(2026, 3, 10, 23, 59, 59, 0, msk)
	e := newTestEngine(s, now)
	e.now = func() time.Time { return now }

	acc := reload(t, s, 1)
	dec, err := e.Authorize(ctx, acc)
	if err != nil || !dec.Allowed || dec.Method != MethodSubscription {
		t.Fatalf("expected subscription allowance, got %+v err=%v", dec, err)
	}
	if _, err := e.Settle(ctx, acc, dec.Method, OutcomeSuccess); err != nil {
		t.Fatalf("Settle returned error: %v", err)
	}

	acc = reload(t, s, 1)
	dec, err = e.Authorize(ctx, acc)
	if err != nil || !dec.Allowed {
		t.Fatalf("expected allowance, got %+v err=%v", dec, err)
	}

	// the provider call runs past midnight
	now = now.Add(2 * time.Second)

	if _, err := e.Settle(ctx, acc, dec.Method, OutcomeSuccess); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict against yesterday's window, got %v", err)
	}

	st, fresh, err := e.SettleWithRetry(ctx, acc, dec, OutcomeSuccess)
	if err != nil {
		t.Fatalf("SettleWithRetry returned error: %v", err)
	}
	if fresh.Method != MethodSubscription || st.Cost != 0 {
		t.Fatalf("expected a subscription settlement, got %+v %+v", st, fresh)
	}

	acc = reload(t, s, 1)
	if acc.Quota.Used != 1 || acc.Quota.WindowDate != "2026-03-11" {
		t.Fatalf("expected one search in the new day's window, got %+v", acc.Quota)
	}
}

func TestSubscription_ExpiredPlanFallsBackToBalance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestAccount(t, s, 1, false, 2900+unitPrice)
	buyPlan(t, s, 1, PlanDay, testNow)

	e := newTestEngine(s, testNow.Add(25*time.Hour))
	dec, err := e.Authorize(ctx, reload(t, s, 1))
	if err != nil || !dec.Allowed || dec.Method != MethodBalance {
		t.Fatalf("expected balance allowance after expiry, got %+v err=%v", dec, err)
	}
}

func TestSettleWithRetry_DeniedAfterLostRace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := newTestEngine(s, testNow)
	acc := newTestAccount(t, s, 1, false, unitPrice)

	dec, _ := e.Authorize(ctx, acc)
	if !dec.Allowed {
		t.Fatalf("expected allowance, got %+v", dec)
	}

	// a concurrent search spends the balance first
	if ok, err := s.DebitBalance(ctx, 1, unitPrice); err != nil || !ok {
		t.Fatalf("DebitBalance ok=%v err=%v", ok, err)
	}

	_, fresh, err := e.SettleWithRetry(ctx, acc, dec, OutcomeSuccess)
	if !errors.Is(err, ErrUnpaid) {
		t.Fatalf("expected ErrUnpaid, got %v", err)
	}
	if fresh.Reason != ReasonInsufficientFunds {
		t.Fatalf("expected insufficient_funds, got %+v", fresh)
	}
	if got := reload(t, s, 1).Balance; got != 0 {
		t.Fatalf("balance must not go negative, got %d", got)
	}
}

// racingStore always loses the conditional debit while still reporting funds.
type racingStore struct {
	AccountStore
	acc *storage.Account
}

func (r *racingStore) GetAccount(ctx context.Context, userID int64) (*storage.Account, error) {
	acc := *r.acc
	return &acc, nil
}

func (r *racingStore) DebitBalance(ctx context.Context, userID, amount int64) (bool, error) {
	return false, nil
}

func TestSettleWithRetry_ExhaustedIsTransient(t *testing.T) {
	store := &racingStore{acc: &storage.Account{UserID: 7, Balance: 10000}}
	e := newTestEngine(store, testNow)

	dec, err := e.Authorize(context.Background(), store.acc)
	if err != nil || dec.Method != MethodBalance {
		t.Fatalf("expected balance decision, got %+v err=%v", dec, err)
	}

	_, _, err = e.SettleWithRetry(context.Background(), store.acc, dec, OutcomeSuccess)
	if !errors.Is(err, ErrTransient) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected transient conflict, got %v", err)
	}
}

type brokenStore struct {
	AccountStore
}

func (brokenStore) DebitBalance(ctx context.Context, userID, amount int64) (bool, error) {
	return false, errors.New("disk I/O error")
}

func TestSettle_StorageFailureIsUnavailable(t *testing.T) {
	e := newTestEngine(brokenStore{}, testNow)
	acc := &storage.Account{UserID: 1, Balance: 1000}

	_, err := e.Settle(context.Background(), acc, MethodBalance, OutcomeSuccess)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestAttemptPolicy_ConsumesOnSuccessOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, _, err := s.GetOrCreateAccount(ctx, storage.Profile{UserID: 1}, false, 2, testNow); err != nil {
		t.Fatalf("GetOrCreateAccount returned error: %v", err)
	}

	e := NewEngine(s, NewAttemptPolicy(s), 3, testLogger())
	e.now = func() time.Time { return testNow }

	acc := reload(t, s, 1)
	dec, err := e.Authorize(ctx, acc)
	if err != nil || dec.Method != MethodAttempt {
		t.Fatalf("expected attempt decision, got %+v err=%v", dec, err)
	}
	if _, err := e.Settle(ctx, acc, dec.Method, OutcomeFailure); err != nil {
		t.Fatalf("Settle returned error: %v", err)
	}
	if got := reload(t, s, 1).Attempts; got != 2 {
		t.Fatalf("failure consumed an attempt, %d left", got)
	}

	for i := 0; i < 2; i++ {
		if _, err := e.Settle(ctx, acc, MethodAttempt, OutcomeSuccess); err != nil {
			t.Fatalf("Settle returned error: %v", err)
		}
	}

	dec, _ = e.Authorize(ctx, reload(t, s, 1))
	if dec.Allowed || dec.Reason != ReasonNoAttempts {
		t.Fatalf("expected no_attempts, got %+v", dec)
	}
}

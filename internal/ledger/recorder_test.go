package ledger

import (
	"context"
	"testing"
	"time"
)

func TestFingerprint_Normalizes(t *testing.T) {
	a := Fingerprint("  Иванов   Иван ")
	b := Fingerprint("иванов иван")
	if a != b {
		t.Fatalf("expected equal fingerprints, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}
	if Fingerprint("+79990000000") == a {
		t.Fatal("different queries must not collide")
	}
}

func TestRecorder_AppendAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestAccount(t, s, 1, false, 0)

	r := NewRecorder(s, testLogger())
	r.now = func() time.Time { return testNow }

	entries := []Entry{
		{UserID: 1, Query: "+79990000000", Outcome: OutcomeSuccess, Method: MethodBalance, Cost: unitPrice},
		{UserID: 1, Query: "+79990000000", Outcome: OutcomeFailure, Method: MethodBalance},
		{UserID: 1, Query: "проверь +79990000000", Outcome: OutcomeSuccess, Method: MethodFree},
		{UserID: 1, Query: "ivanov", Outcome: OutcomeSuccess, Method: MethodBalance, Reason: ReasonInsufficientFunds},
	}
	for _, e := range entries {
		tx, err := r.Append(ctx, e)
		if err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
		if tx.QueryFingerprint == e.Query || tx.ID == "" {
			t.Fatalf("unexpected record %+v", tx)
		}
	}

	listed, err := s.ListTransactions(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListTransactions returned error: %v", err)
	}
	if len(listed) != len(entries) || listed[0].Reason != string(ReasonInsufficientFunds) {
		t.Fatalf("unexpected transactions %+v", listed)
	}

	st, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if st.Searches != 4 || st.SuccessfulSearches != 3 || st.SearchRevenue != unitPrice {
		t.Fatalf("unexpected stats %+v", st)
	}
}

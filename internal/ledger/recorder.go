package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/suspectuso/lookup-bot/internal/storage"
)

// Entry is one settled search to be recorded
type Entry struct {
	UserID  int64
	Query   string
	Outcome Outcome
	Method  PaymentMethod
	Cost    int64
	Reason  Reason
}

// Recorder appends search transactions. The raw query is never stored, only
// its fingerprint.
type Recorder struct {
	store TransactionStore
	log   *slog.Logger
	now   func() time.Time
}

// NewRecorder creates a transaction recorder
func NewRecorder(store TransactionStore, log *slog.Logger) *Recorder {
	return &Recorder{store: store, log: log, now: time.Now}
}

// Fingerprint returns a stable hash of the normalized query
func Fingerprint(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Append writes e as an immutable transaction record
func (r *Recorder) Append(ctx context.Context, e Entry) (*storage.SearchTransaction, error) {
	tx := &storage.SearchTransaction{
		UserID:           e.UserID,
		QueryFingerprint: Fingerprint(e.Query),
		Outcome:          string(e.Outcome),
		Cost:             e.Cost,
		PaymentMethod:    string(e.Method),
		Reason:           string(e.Reason),
		CreatedAt:        r.now(),
	}
	if err := r.store.AppendTransaction(ctx, tx); err != nil {
		return nil, unavailable("append transaction", err)
	}

	r.log.Debug("search recorded",
		"user_id", e.UserID,
		"outcome", e.Outcome,
		"method", e.Method,
		"cost", e.Cost,
	)
	return tx, nil
}

// Stats returns aggregate figures across all accounts
func (r *Recorder) Stats(ctx context.Context) (*storage.Stats, error) {
	st, err := r.store.Stats(ctx, r.now())
	if err != nil {
		return nil, unavailable("stats", err)
	}
	return st, nil
}

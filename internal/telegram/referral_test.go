package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/suspectuso/lookup-bot/internal/ledger"
	"github.com/suspectuso/lookup-bot/internal/storage"
)

type sentNotification struct {
	userID int64
	text   string
}

type recordingNotifier struct {
	sent []sentNotification
}

func (r *recordingNotifier) notify(ctx context.Context, userID int64, text string, keyboard *models.InlineKeyboardMarkup) error {
	r.sent = append(r.sent, sentNotification{userID: userID, text: text})
	return nil
}

type failingConfirmer struct {
	calls int
}

func (f *failingConfirmer) ConfirmReferral(ctx context.Context, referredID int64) (ledger.Confirmation, error) {
	f.calls++
	return ledger.Confirmation{}, errors.New("database is locked")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRewardReferrer_PaysOnceAndNotifies(t *testing.T) {
	ctx := context.Background()
	store, err := storage.New(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("storage.New returned error: %v", err)
	}
	defer store.Close()

	now := time.Now()
	referrer, _, err := store.GetOrCreateAccount(ctx, storage.Profile{UserID: 1, FirstName: "Anna"}, false, 0, now)
	if err != nil {
		t.Fatalf("GetOrCreateAccount returned error: %v", err)
	}
	invited, _, err := store.GetOrCreateAccount(ctx, storage.Profile{UserID: 2, FirstName: "Tom & <Jerry>"}, false, 0, now)
	if err != nil {
		t.Fatalf("GetOrCreateAccount returned error: %v", err)
	}

	referrals := ledger.NewReferralLedger(store, 500, testLogger())
	if ok, err := referrals.RegisterReferral(ctx, invited, referrer.ReferralCode); err != nil || !ok {
		t.Fatalf("expected registration, ok=%v err=%v", ok, err)
	}

	n := &recordingNotifier{}
	if !rewardReferrer(ctx, referrals, n.notify, invited, testLogger()) {
		t.Fatal("expected the first pass through the gate to reward the referrer")
	}
	if rewardReferrer(ctx, referrals, n.notify, invited, testLogger()) {
		t.Fatal("expected the second pass to find nothing to pay")
	}

	if len(n.sent) != 1 || n.sent[0].userID != 1 {
		t.Fatalf("unexpected notifications %+v", n.sent)
	}
	if !strings.Contains(n.sent[0].text, "Tom &amp; &lt;Jerry&gt;") || !strings.Contains(n.sent[0].text, "5.00 ₽") {
		t.Fatalf("unexpected notification text %q", n.sent[0].text)
	}

	acc, err := store.GetAccount(ctx, 1)
	if err != nil {
		t.Fatalf("GetAccount returned error: %v", err)
	}
	if acc.Balance != 500 {
		t.Fatalf("expected one reward of 500, balance %d", acc.Balance)
	}
}

func TestRewardReferrer_SkipsAccountsWithoutReferrer(t *testing.T) {
	confirmer := &failingConfirmer{}
	n := &recordingNotifier{}

	if rewardReferrer(context.Background(), confirmer, n.notify, &storage.Account{UserID: 3}, testLogger()) {
		t.Fatal("expected no reward without a referrer")
	}
	if confirmer.calls != 0 {
		t.Fatalf("expected no confirm call, got %d", confirmer.calls)
	}
}

func TestRewardReferrer_StorageErrorIsNotFatal(t *testing.T) {
	referrerID := int64(1)
	confirmer := &failingConfirmer{}
	n := &recordingNotifier{}

	acc := &storage.Account{UserID: 2, ReferredBy: &referrerID}
	if rewardReferrer(context.Background(), confirmer, n.notify, acc, testLogger()) {
		t.Fatal("expected no reward on storage error")
	}
	if confirmer.calls != 1 || len(n.sent) != 0 {
		t.Fatalf("unexpected calls=%d sent=%+v", confirmer.calls, n.sent)
	}
}

func TestChannelCheckAnswer(t *testing.T) {
	denied := channelCheckAnswer("cb1", false)
	if denied.CallbackQueryID != "cb1" || !denied.ShowAlert || denied.Text == "" {
		t.Fatalf("expected an alert for a non-member, got %+v", denied)
	}

	ok := channelCheckAnswer("cb2", true)
	if ok.CallbackQueryID != "cb2" || ok.ShowAlert || ok.Text != "" {
		t.Fatalf("expected a plain answer for a member, got %+v", ok)
	}
}

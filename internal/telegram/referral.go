package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot/models"
	"github.com/suspectuso/lookup-bot/internal/ledger"
	"github.com/suspectuso/lookup-bot/internal/money"
	"github.com/suspectuso/lookup-bot/internal/storage"
)

type notifyFunc func(ctx context.Context, userID int64, text string, keyboard *models.InlineKeyboardMarkup) error

type referralConfirmer interface {
	ConfirmReferral(ctx context.Context, referredID int64) (ledger.Confirmation, error)
}

// rewardReferrer confirms the pending referral of acc and tells the referrer
// about the reward. It runs every time acc passes the membership gate; after
// the first confirmation there is nothing left to pay.
func rewardReferrer(ctx context.Context, referrals referralConfirmer, notify notifyFunc, acc *storage.Account, log *slog.Logger) bool {
	if acc.ReferredBy == nil {
		return false
	}

	c, err := referrals.ConfirmReferral(ctx, acc.UserID)
	if err != nil {
		log.Error("confirm referral", "user_id", acc.UserID, "error", err)
		return false
	}
	if !c.Rewarded {
		return false
	}

	text := fmt.Sprintf(
		"🎉 <b>Новый реферал!</b>\n\n%s подписался по вашей ссылке.\nНа баланс начислено <b>%s ₽</b>",
		displayName(acc), money.Format(c.Reward),
	)
	if err := notify(ctx, c.ReferrerID, text, nil); err != nil {
		log.Warn("send referral notification", "user_id", c.ReferrerID, "error", err)
	}
	return true
}

// passesGate checks channel membership and, on success, settles any pending
// referral reward for acc.
func (b *Bot) passesGate(ctx context.Context, acc *storage.Account) bool {
	if !b.checkMembership(ctx, acc) {
		return false
	}
	rewardReferrer(ctx, b.referrals, b.SendNotification, acc, b.log)
	return true
}

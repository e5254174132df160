package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/suspectuso/lookup-bot/internal/money"
	"github.com/suspectuso/lookup-bot/internal/storage"
)

// Sender delivers a message to a Telegram user
type Sender interface {
	SendNotification(ctx context.Context, userID int64, text string, keyboard *models.InlineKeyboardMarkup) error
}

// Notifier sends best-effort notifications to users and admins
type Notifier struct {
	sender Sender
	loc    *time.Location
	log    *slog.Logger
}

// New creates a new Notifier
func New(sender Sender, loc *time.Location, log *slog.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		loc:    loc,
		log:    log,
	}
}

// SubscriptionsExpired tells each user that their plan has ended
func (n *Notifier) SubscriptionsExpired(ctx context.Context, expired []storage.ExpiredSubscription) {
	for _, sub := range expired {
		text := n.formatExpiredMessage(sub)
		if err := n.sender.SendNotification(ctx, sub.UserID, text, renewKeyboard()); err != nil {
			n.log.Error("send expiry notification", "user_id", sub.UserID, "error", err)
		}
	}
}

// DailyReport sends the stats summary to every admin
func (n *Notifier) DailyReport(ctx context.Context, adminIDs []int64, st *storage.Stats) {
	text := n.formatReport(st, time.Now())
	for _, id := range adminIDs {
		if err := n.sender.SendNotification(ctx, id, text, nil); err != nil {
			n.log.Error("send daily report", "admin_id", id, "error", err)
		}
	}
}

func (n *Notifier) formatExpiredMessage(sub storage.ExpiredSubscription) string {
	return fmt.Sprintf(
		"⌛ <b>Подписка закончилась</b>\n\n"+
			"Срок действия истёк %s.\n"+
			"Поиски снова оплачиваются с баланса. Продлите подписку, чтобы вернуть дневной лимит.",
		sub.ExpiresAt.In(n.loc).Format("02.01.2006 15:04"),
	)
}

func (n *Notifier) formatReport(st *storage.Stats, now time.Time) string {
	return fmt.Sprintf(
		"📈 <b>Отчёт за %s</b>\n\n"+
			"👥 Пользователей: <b>%d</b>\n"+
			"⭐ Активных подписок: <b>%d</b>\n"+
			"🔍 Поисков: <b>%d</b> (успешных %.1f%%)\n"+
			"💰 Выручка: <b>%s ₽</b> поиски, <b>%s ₽</b> подписки\n"+
			"🎁 Реферальных бонусов: <b>%s ₽</b>",
		now.In(n.loc).Format("02.01.2006"),
		st.Users, st.ActiveSubscriptions,
		st.Searches, st.SuccessRate,
		money.Format(st.SearchRevenue), money.Format(st.SubscriptionRevenue),
		money.Format(st.ReferralRewardsPaid),
	)
}

func renewKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "⭐ Продлить подписку", CallbackData: "menu_plans"},
			},
		},
	}
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/suspectuso/lookup-bot/internal/ledger"
	"github.com/suspectuso/lookup-bot/internal/provider"
	"github.com/suspectuso/lookup-bot/internal/storage"
)

const unavailableText = "❌ Сервис временно недоступен. Попробуйте позже."

// handleQuery runs a free check or a paid search for acc
func (b *Bot) handleQuery(ctx context.Context, chatID int64, acc *storage.Account, query string, free bool) {
	if !b.passesGate(ctx, acc) {
		b.sendMessage(ctx, chatID, "🔒 Для поиска нужна подписка на канал", SubscribeKeyboard(b.cfg.ChannelURL))
		return
	}

	if query == "" {
		b.sendMessage(ctx, chatID, "✍️ Отправьте данные для поиска, например: <code>проверь +79123456789</code>", nil)
		return
	}

	if free {
		b.freeCheck(ctx, chatID, acc, query)
		return
	}
	b.paidSearch(ctx, chatID, acc, query)
}

func (b *Bot) freeCheck(ctx context.Context, chatID int64, acc *storage.Account, query string) {
	res, perr := b.provider.Explain(ctx, query)

	outcome := ledger.OutcomeSuccess
	if perr != nil {
		outcome = ledger.OutcomeFailure
	}

	if _, err := b.engine.Settle(ctx, acc, ledger.MethodFree, outcome); err != nil {
		b.log.Error("settle free check", "user_id", acc.UserID, "error", err)
	}
	b.record(ctx, ledger.Entry{
		UserID:  acc.UserID,
		Query:   query,
		Outcome: outcome,
		Method:  ledger.MethodFree,
	})

	if perr != nil {
		b.sendMessage(ctx, chatID, providerErrorText(perr), MainKeyboard())
		return
	}
	b.sendMessage(ctx, chatID, formatExplain(res, query, b.cfg.UnitPrice), MainKeyboard())
}

// paidSearch authorizes, calls the provider and settles. The provider call
// sits strictly between Authorize and Settle, and Settle always runs once
// the provider has been called.
func (b *Bot) paidSearch(ctx context.Context, chatID int64, acc *storage.Account, query string) {
	dec, err := b.engine.Authorize(ctx, acc)
	if err != nil {
		b.log.Error("authorize search", "user_id", acc.UserID, "error", err)
		b.sendMessage(ctx, chatID, unavailableText, nil)
		return
	}
	if !dec.Allowed {
		b.log.Debug("search denied", "user_id", acc.UserID, "reason", dec.Reason)
		b.sendMessage(ctx, chatID, deniedText(dec.Reason, b.cfg.UnitPrice), DeniedKeyboard())
		return
	}

	queryType := DetectQueryType(query)
	b.sendMessage(ctx, chatID, fmt.Sprintf("🔍 <b>Выполняю поиск...</b>\n%s\n⏱️ Подождите...", queryType), nil)

	res, perr := b.provider.Search(ctx, query)
	outcome := ledger.OutcomeSuccess
	if perr != nil {
		outcome = ledger.OutcomeFailure
	}

	st, final, err := b.engine.SettleWithRetry(ctx, acc, dec, outcome)
	entry := ledger.Entry{
		UserID:  acc.UserID,
		Query:   query,
		Outcome: outcome,
		Method:  final.Method,
		Cost:    st.Cost,
	}

	switch {
	case errors.Is(err, ledger.ErrUnpaid):
		entry.Reason = final.Reason
		b.record(ctx, entry)
		b.log.Info("search not paid", "user_id", acc.UserID, "reason", final.Reason)
		b.sendMessage(ctx, chatID, deniedText(final.Reason, b.cfg.UnitPrice), DeniedKeyboard())
		return

	case errors.Is(err, ledger.ErrTransient):
		entry.Reason = ledger.ReasonConflict
		b.record(ctx, entry)
		b.log.Warn("settle retries exhausted", "user_id", acc.UserID, "error", err)
		b.sendMessage(ctx, chatID, "⏳ Слишком много одновременных запросов. Попробуйте ещё раз.", MainKeyboard())
		return

	case err != nil:
		b.log.Error("settle search", "user_id", acc.UserID, "error", err)
		b.sendMessage(ctx, chatID, unavailableText, nil)
		return
	}

	b.record(ctx, entry)

	if perr != nil {
		b.sendMessage(ctx, chatID, providerErrorText(perr), MainKeyboard())
		return
	}

	b.log.Info("search completed",
		"user_id", acc.UserID,
		"method", final.Method,
		"cost", st.Cost,
		"found", res.Count,
	)
	b.sendMessage(ctx, chatID, formatSearchResults(res, query, queryType, st.Cost), MainKeyboard())
}

func (b *Bot) record(ctx context.Context, e ledger.Entry) {
	if _, err := b.recorder.Append(ctx, e); err != nil {
		b.log.Error("record search", "user_id", e.UserID, "error", err)
	}
}

func providerErrorText(err error) string {
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return "❌ <b>Ошибка поиска:</b> " + html.EscapeString(apiErr.Message) + "\n\nСредства не списаны."
	}
	return "❌ <b>Ошибка поиска.</b> Попробуйте позже.\n\nСредства не списаны."
}

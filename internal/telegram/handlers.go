package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/suspectuso/lookup-bot/internal/config"
	"github.com/suspectuso/lookup-bot/internal/ledger"
	"github.com/suspectuso/lookup-bot/internal/money"
	"github.com/suspectuso/lookup-bot/internal/provider"
	"github.com/suspectuso/lookup-bot/internal/storage"
)

// Services are the components the bot drives
type Services struct {
	Store     *storage.Storage
	Engine    *ledger.Engine
	Subs      *ledger.SubscriptionManager
	Referrals *ledger.ReferralLedger
	Recorder  *ledger.Recorder
	Provider  *provider.Client
}

// Bot wraps the telegram bot with handlers
type Bot struct {
	bot       *bot.Bot
	cfg       *config.Config
	storage   *storage.Storage
	engine    *ledger.Engine
	subs      *ledger.SubscriptionManager
	referrals *ledger.ReferralLedger
	recorder  *ledger.Recorder
	provider  *provider.Client
	states    *StateManager
	log       *slog.Logger
}

// New creates a new telegram bot
func New(cfg *config.Config, svc Services, log *slog.Logger) (*Bot, error) {
	b := &Bot{
		cfg:       cfg,
		storage:   svc.Store,
		engine:    svc.Engine,
		subs:      svc.Subs,
		referrals: svc.Referrals,
		recorder:  svc.Recorder,
		provider:  svc.Provider,
		states:    NewStateManager(),
		log:       log,
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
		bot.WithCallbackQueryDataHandler("", bot.MatchTypePrefix, b.callbackHandler),
	}

	tgBot, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	b.bot = tgBot

	// Register command handlers
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, b.startHandler)
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/start ", bot.MatchTypePrefix, b.startHandler)
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/me", bot.MatchTypeExact, b.meHandler)
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/admin", bot.MatchTypeExact, b.adminHandler)
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/credit", bot.MatchTypePrefix, b.creditHandler)

	return b, nil
}

// Start starts the bot polling
func (b *Bot) Start(ctx context.Context) {
	b.bot.Start(ctx)
}

// StartWebhook registers the webhook with Telegram and processes updates
// delivered to WebhookHandler until ctx is done.
func (b *Bot) StartWebhook(ctx context.Context) error {
	_, err := b.bot.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:         b.cfg.WebhookURL,
		SecretToken: b.cfg.WebhookSecret,
	})
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	b.log.Info("telegram webhook registered", "url", b.cfg.WebhookURL)
	b.bot.StartWebhook(ctx)
	return nil
}

// WebhookHandler returns the HTTP handler receiving Telegram updates
func (b *Bot) WebhookHandler() http.HandlerFunc {
	return b.bot.WebhookHandler()
}

// --- Handlers ---

func (b *Bot) startHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message

	acc, created, err := b.ensureAccount(ctx, msg.From)
	if err != nil {
		b.log.Error("get or create account", "user_id", msg.From.ID, "error", err)
		b.sendMessage(ctx, msg.Chat.ID, "❌ Сервис временно недоступен. Попробуйте позже.", nil)
		return
	}
	b.states.Clear(acc.UserID)

	if created {
		b.log.Info("account created", "user_id", acc.UserID, "username", acc.Username)
	}

	if code := startPayload(msg.Text); code != "" {
		if _, err := b.referrals.RegisterReferral(ctx, acc, code); err != nil {
			b.log.Error("register referral", "user_id", acc.UserID, "error", err)
		}
	}

	if !b.passesGate(ctx, acc) {
		b.sendMessage(ctx, msg.Chat.ID,
			"🎯 <b>ДОБРО ПОЖАЛОВАТЬ!</b>\n\n🔒 Для использования сервиса подпишитесь на канал",
			SubscribeKeyboard(b.cfg.ChannelURL),
		)
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, b.mainMenuText(acc), MainKeyboard())
}

func (b *Bot) meHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	acc, _, err := b.ensureAccount(ctx, update.Message.From)
	if err != nil {
		b.log.Error("get or create account", "error", err)
		return
	}

	b.sendMessage(ctx, update.Message.Chat.ID, b.profileText(ctx, acc), MainKeyboard())
}

func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}
	msg := update.Message
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "/") {
		b.sendMessage(ctx, msg.Chat.ID, "Неизвестная команда. Нажмите /start", nil)
		return
	}

	acc, _, err := b.ensureAccount(ctx, msg.From)
	if err != nil {
		b.log.Error("get or create account", "user_id", msg.From.ID, "error", err)
		b.sendMessage(ctx, msg.Chat.ID, "❌ Сервис временно недоступен. Попробуйте позже.", nil)
		return
	}

	if state := b.states.Get(acc.UserID); state != nil {
		switch state.State {
		case StateWaitCheck:
			b.states.Clear(acc.UserID)
			b.handleQuery(ctx, msg.Chat.ID, acc, text, true)
			return
		case StateWaitCreditUser:
			b.handleWaitCreditUser(ctx, msg, acc, text)
			return
		case StateWaitCreditAmount:
			b.handleWaitCreditAmount(ctx, msg, acc, text, state)
			return
		}
	}

	if query, ok := parseFreeCheck(text); ok {
		b.handleQuery(ctx, msg.Chat.ID, acc, query, true)
		return
	}

	b.handleQuery(ctx, msg.Chat.ID, acc, text, false)
}

func (b *Bot) callbackHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}

	cb := update.CallbackQuery
	data := cb.Data

	// Answer callback to remove loading state. The channel check answers
	// itself, since a callback can only be answered once.
	if data != cbCheckChannel {
		tgBot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: cb.ID,
		})
	}

	acc, _, err := b.ensureAccount(ctx, &cb.From)
	if err != nil {
		b.log.Error("get or create account", "user_id", cb.From.ID, "error", err)
		return
	}

	switch {
	case data == cbBack:
		b.states.Clear(acc.UserID)
		b.editMessage(ctx, cb.Message, b.mainMenuText(acc), MainKeyboard())
	case data == cbSearch:
		b.showSearch(ctx, cb)
	case data == cbCheck:
		b.states.Set(acc.UserID, StateWaitCheck, nil)
		b.editMessage(ctx, cb.Message,
			"💡 <b>БЕСПЛАТНАЯ ПРОВЕРКА</b>\n\nОтправьте данные, и я покажу, в каких базах они встречаются.",
			BackKeyboard(),
		)
	case data == cbProfile:
		b.editMessage(ctx, cb.Message, b.profileText(ctx, acc), BackKeyboard())
	case data == cbPlans:
		b.showPlans(ctx, cb, acc)
	case strings.HasPrefix(data, cbBuyPrefix):
		b.handleBuy(ctx, cb, acc, strings.TrimPrefix(data, cbBuyPrefix))
	case data == cbReferral:
		b.showReferral(ctx, cb, acc)
	case data == cbSources:
		b.showSources(ctx, cb)
	case data == cbHelp:
		b.editMessage(ctx, cb.Message, b.helpText(), BackKeyboard())
	case data == cbCheckChannel:
		b.handleCheckChannel(ctx, cb, acc)
	case data == cbAdminRefresh && acc.IsAdmin:
		b.showAdmin(ctx, cb.Message, acc)
	case data == cbAdminCredit && acc.IsAdmin:
		b.states.Set(acc.UserID, StateWaitCreditUser, nil)
		b.sendMessage(ctx, acc.UserID, "🔢 Введите ID пользователя для пополнения:", BackKeyboard())
	default:
		b.log.Warn("unknown callback", "data", data, "user_id", acc.UserID)
	}
}

func (b *Bot) showSearch(ctx context.Context, cb *models.CallbackQuery) {
	text := fmt.Sprintf(
		"🔍 <b>ПОИСК ПО БАЗАМ ДАННЫХ</b>\n\n"+
			"💰 <b>Стоимость:</b> %s ₽ за запрос\n"+
			"⭐ С подпиской: до %d запросов в сутки\n\n"+
			"📝 <b>Что можно искать:</b>\n"+
			"📱 Телефон: +79123456789\n"+
			"📧 Email: user@mail.ru\n"+
			"👤 ФИО: Иван Петров\n"+
			"🚗 Авто: А123ВС777\n"+
			"🆔 Никнейм: @username\n\n"+
			"➡️ Просто отправьте данные для поиска",
		money.Format(b.cfg.UnitPrice), ledger.DailyLimit,
	)
	b.editMessage(ctx, cb.Message, text, BackKeyboard())
}

func (b *Bot) showPlans(ctx context.Context, cb *models.CallbackQuery, acc *storage.Account) {
	var sb strings.Builder
	sb.WriteString("⭐ <b>ПОДПИСКА</b>\n\n")
	fmt.Fprintf(&sb, "До <b>%d</b> поисков в сутки без списаний с баланса.\n\n", ledger.DailyLimit)
	for _, p := range b.subs.Plans() {
		fmt.Fprintf(&sb, "• %s — <b>%s ₽</b>\n", p.Title, money.Format(p.Price))
	}
	fmt.Fprintf(&sb, "\n💰 Ваш баланс: <b>%s ₽</b>", money.Format(acc.Balance))

	if ledger.SubscriptionActive(acc, time.Now()) {
		fmt.Fprintf(&sb, "\n✅ Активна до %s. Новая покупка заменит текущую подписку.",
			formatDate(acc.Subscription.ExpiresAt, b.cfg.Location))
	}

	b.editMessage(ctx, cb.Message, sb.String(), PlansKeyboard(b.subs.Plans()))
}

func (b *Bot) handleBuy(ctx context.Context, cb *models.CallbackQuery, acc *storage.Account, planID string) {
	res, err := b.subs.Purchase(ctx, acc.UserID, planID)
	if err != nil {
		b.log.Error("purchase subscription", "user_id", acc.UserID, "plan", planID, "error", err)
		b.editMessage(ctx, cb.Message, "❌ Не удалось оформить подписку. Попробуйте ещё раз.", BackKeyboard())
		return
	}

	switch res.Reason {
	case ledger.ReasonUnknownPlan:
		b.editMessage(ctx, cb.Message, "❌ Такой подписки нет.", PlansKeyboard(b.subs.Plans()))
		return
	case ledger.ReasonInsufficientFunds:
		text := fmt.Sprintf(
			"❌ <b>Недостаточно средств</b>\n\nСтоимость: <b>%s ₽</b>\nВаш баланс: <b>%s ₽</b>",
			money.Format(res.Plan.Price), money.Format(acc.Balance),
		)
		b.editMessage(ctx, cb.Message, text, PlansKeyboard(b.subs.Plans()))
		return
	}

	text := fmt.Sprintf(
		"✅ <b>Подписка «%s» активирована!</b>\n\n"+
			"Действует до: <b>%s</b>\n"+
			"Лимит: <b>%d</b> поисков в сутки",
		res.Plan.Title, formatDate(res.ExpiresAt, b.cfg.Location), res.Plan.DailyLimit,
	)
	b.editMessage(ctx, cb.Message, text, MainKeyboard())
}

func (b *Bot) showReferral(ctx context.Context, cb *models.CallbackQuery, acc *storage.Account) {
	link := referralLink(b.cfg.BotUsername, acc.ReferralCode)

	confirmed, err := b.storage.CountConfirmedReferrals(ctx, acc.UserID)
	if err != nil {
		b.log.Error("count confirmed referrals", "user_id", acc.UserID, "error", err)
	}

	text := fmt.Sprintf(
		"🔗 <b>РЕФЕРАЛЬНАЯ ПРОГРАММА</b>\n\n"+
			"🎁 За каждого друга, подписавшегося на канал: <b>+%s ₽</b> на баланс\n\n"+
			"📊 <b>ВАША СТАТИСТИКА:</b>\n"+
			"👥 Приглашено: %d\n"+
			"✅ Подтверждено: %d\n"+
			"💎 Заработано: %s ₽\n\n"+
			"🔗 <b>ВАША ССЫЛКА:</b>\n<code>%s</code>",
		money.Format(b.referrals.Reward()),
		acc.TotalReferrals, confirmed,
		money.Format(int64(confirmed)*b.referrals.Reward()),
		link,
	)
	b.editMessage(ctx, cb.Message, text, BackKeyboard())
}

func (b *Bot) showSources(ctx context.Context, cb *models.CallbackQuery) {
	res, err := b.provider.Sources(ctx)
	if err != nil {
		b.editMessage(ctx, cb.Message, "❌ Ошибка загрузки списка баз данных", BackKeyboard())
		return
	}
	b.editMessage(ctx, cb.Message, formatSources(res), BackKeyboard())
}

func (b *Bot) handleCheckChannel(ctx context.Context, cb *models.CallbackQuery, acc *storage.Account) {
	member := b.passesGate(ctx, acc)

	if _, err := b.bot.AnswerCallbackQuery(ctx, channelCheckAnswer(cb.ID, member)); err != nil {
		b.log.Warn("answer callback", "user_id", acc.UserID, "error", err)
	}
	if !member {
		return
	}

	b.editMessage(ctx, cb.Message, b.mainMenuText(acc), MainKeyboard())
}

// channelCheckAnswer is the single answer to a check_subscription callback
func channelCheckAnswer(callbackID string, member bool) *bot.AnswerCallbackQueryParams {
	params := &bot.AnswerCallbackQueryParams{CallbackQueryID: callbackID}
	if !member {
		params.Text = "Подписка на канал не найдена"
		params.ShowAlert = true
	}
	return params
}

// --- Admin ---

func (b *Bot) adminHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	acc, _, err := b.ensureAccount(ctx, update.Message.From)
	if err != nil {
		b.log.Error("get or create account", "error", err)
		return
	}
	if !acc.IsAdmin {
		return
	}

	b.showAdmin(ctx, models.MaybeInaccessibleMessage{}, acc)
}

func (b *Bot) showAdmin(ctx context.Context, msg models.MaybeInaccessibleMessage, acc *storage.Account) {
	st, err := b.recorder.Stats(ctx)
	if err != nil {
		b.log.Error("stats", "error", err)
		b.sendMessage(ctx, acc.UserID, "❌ Не удалось получить статистику.", nil)
		return
	}

	if msg.Message != nil {
		b.editMessage(ctx, msg, formatStats(st), AdminKeyboard())
		return
	}
	b.sendMessage(ctx, acc.UserID, formatStats(st), AdminKeyboard())
}

func (b *Bot) creditHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message

	acc, _, err := b.ensureAccount(ctx, msg.From)
	if err != nil || !acc.IsAdmin {
		return
	}

	userID, amount, err := parseCredit(msg.Text)
	if err != nil {
		b.sendMessage(ctx, msg.Chat.ID, "❌ "+err.Error(), nil)
		return
	}

	b.credit(ctx, msg.Chat.ID, acc, userID, amount)
}

func (b *Bot) handleWaitCreditUser(ctx context.Context, msg *models.Message, acc *storage.Account, text string) {
	if !acc.IsAdmin {
		b.states.Clear(acc.UserID)
		return
	}

	userID, err := strconv.ParseInt(text, 10, 64)
	if err != nil || userID <= 0 {
		b.sendMessage(ctx, msg.Chat.ID, "❌ Введите числовой ID пользователя.", nil)
		return
	}

	b.states.Set(acc.UserID, StateWaitCreditAmount, map[string]interface{}{
		"user_id": userID,
	})
	b.sendMessage(ctx, msg.Chat.ID,
		"💰 Введите сумму в рублях.\nНапример: <code>100</code> или <code>49.90</code>",
		nil,
	)
}

func (b *Bot) handleWaitCreditAmount(ctx context.Context, msg *models.Message, acc *storage.Account, text string, state *UserState) {
	amount, err := parseAmount(text)
	if err != nil {
		b.sendMessage(ctx, msg.Chat.ID, "❌ Введите положительную сумму. Например: <code>100</code>", nil)
		return
	}

	userID := state.Data["user_id"].(int64)
	b.states.Clear(acc.UserID)

	b.credit(ctx, msg.Chat.ID, acc, userID, amount)
}

func (b *Bot) credit(ctx context.Context, chatID int64, admin *storage.Account, userID, amount int64) {
	err := b.storage.CreditBalance(ctx, userID, amount)
	if errors.Is(err, storage.ErrNotFound) {
		b.sendMessage(ctx, chatID, fmt.Sprintf("❌ Пользователь %d не найден.", userID), nil)
		return
	}
	if errors.Is(err, storage.ErrBalanceLimit) {
		b.sendMessage(ctx, chatID, "❌ Сумма превышает допустимый баланс.", nil)
		return
	}
	if err != nil {
		b.log.Error("credit balance", "user_id", userID, "error", err)
		b.sendMessage(ctx, chatID, "❌ Ошибка при пополнении баланса.", nil)
		return
	}

	b.log.Info("balance credited",
		"admin_id", admin.UserID,
		"user_id", userID,
		"amount", amount,
	)

	b.sendMessage(ctx, chatID,
		fmt.Sprintf("✅ Баланс пользователя <code>%d</code> пополнен на <b>%s ₽</b>", userID, money.Format(amount)),
		nil,
	)

	text := fmt.Sprintf("💰 Ваш баланс пополнен на <b>%s ₽</b>", money.Format(amount))
	if err := b.SendNotification(ctx, userID, text, MainKeyboard()); err != nil {
		b.log.Warn("send credit notification", "user_id", userID, "error", err)
	}
}

// --- Texts ---

func (b *Bot) mainMenuText(acc *storage.Account) string {
	return fmt.Sprintf(
		"<a href='tg://user?id=%d'>%s</a>, добро пожаловать! 🎯\n\n"+
			"Я ищу информацию по телефону, email, ФИО, нику или номеру авто "+
			"в открытых источниках.\n\n"+
			"💰 Баланс: <b>%s ₽</b>\n\n"+
			"Выбери действие 👇",
		acc.UserID, displayName(acc), money.Format(acc.Balance),
	)
}

func (b *Bot) profileText(ctx context.Context, acc *storage.Account) string {
	now := time.Now()

	total, successful, err := b.storage.CountUserSearches(ctx, acc.UserID)
	if err != nil {
		b.log.Error("count searches", "user_id", acc.UserID, "error", err)
	}

	var sb strings.Builder
	sb.WriteString("👤 <b>ПРОФИЛЬ</b>\n\n")
	fmt.Fprintf(&sb, "🆔 ID: <code>%d</code>\n", acc.UserID)
	if acc.IsAdmin {
		sb.WriteString("👑 Статус: <b>администратор</b>\n")
	}
	fmt.Fprintf(&sb, "💰 Баланс: <b>%s ₽</b>\n", money.Format(acc.Balance))
	if b.cfg.PaymentPolicy == config.PolicyAttempts {
		fmt.Fprintf(&sb, "💎 Попыток: <b>%d</b>\n", acc.Attempts)
	}

	if ledger.SubscriptionActive(acc, now) {
		quota, _ := ledger.RolloverQuota(acc.Quota, now, b.cfg.Location)
		fmt.Fprintf(&sb, "⭐ Подписка до: <b>%s</b>\n", formatDate(acc.Subscription.ExpiresAt, b.cfg.Location))
		fmt.Fprintf(&sb, "📆 Сегодня: <b>%d/%d</b> поисков\n", quota.Used, ledger.DailyLimit)
	} else {
		sb.WriteString("⭐ Подписка: нет\n")
	}

	fmt.Fprintf(&sb, "\n🔍 Поисков: %d\n✅ Успешных: %d\n👥 Рефералов: %d", total, successful, acc.TotalReferrals)
	return sb.String()
}

func (b *Bot) helpText() string {
	var plans []string
	for _, p := range b.subs.Plans() {
		plans = append(plans, fmt.Sprintf("⭐ %s: %s ₽", p.Title, money.Format(p.Price)))
	}

	support := ""
	if b.cfg.AdminUsername != "" {
		support = fmt.Sprintf("\n\n📞 <b>ПОДДЕРЖКА:</b>\n@%s", strings.TrimPrefix(b.cfg.AdminUsername, "@"))
	}

	return fmt.Sprintf(
		"❓ <b>СПРАВКА</b>\n\n"+
			"💰 <b>ТАРИФЫ:</b>\n"+
			"🔍 Полный поиск: %s ₽\n"+
			"💡 Проверка (<code>проверь …</code>): бесплатно\n"+
			"%s\n\n"+
			"Деньги списываются только за успешный поиск.%s\n\n"+
			"⚖️ Используйте данные ответственно и соблюдайте закон.",
		money.Format(b.cfg.UnitPrice), strings.Join(plans, "\n"), support,
	)
}

// --- Helpers ---

func (b *Bot) ensureAccount(ctx context.Context, u *models.User) (*storage.Account, bool, error) {
	profile := storage.Profile{
		UserID:    u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	return b.storage.GetOrCreateAccount(ctx,
		profile,
		b.cfg.IsAdmin(u.ID, u.Username),
		b.cfg.FreeAttempts,
		time.Now(),
	)
}

// checkMembership reports whether the user may use the bot. Admins and
// deployments without a required channel always pass.
func (b *Bot) checkMembership(ctx context.Context, acc *storage.Account) bool {
	if acc.IsAdmin || b.cfg.RequiredChannel == "" {
		return true
	}

	member, err := b.bot.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: b.cfg.RequiredChannel,
		UserID: acc.UserID,
	})
	if err != nil {
		b.log.Warn("get chat member", "user_id", acc.UserID, "error", err)
		return false
	}

	return isMemberStatus(member.Type)
}

func isMemberStatus(t models.ChatMemberType) bool {
	switch t {
	case models.ChatMemberTypeMember, models.ChatMemberTypeAdministrator, models.ChatMemberTypeOwner:
		return true
	}
	return false
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := b.bot.SendMessage(ctx, params)
	if err != nil {
		b.log.Error("send message", "error", err)
	}
}

func (b *Bot) editMessage(ctx context.Context, msg models.MaybeInaccessibleMessage, text string, keyboard *models.InlineKeyboardMarkup) {
	if msg.Message == nil {
		return
	}

	params := &bot.EditMessageTextParams{
		ChatID:    msg.Message.Chat.ID,
		MessageID: msg.Message.ID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := b.bot.EditMessageText(ctx, params)
	if err != nil {
		b.log.Error("edit message", "error", err)
	}
}

// SendNotification sends a notification message to a user
func (b *Bot) SendNotification(ctx context.Context, userID int64, text string, keyboard *models.InlineKeyboardMarkup) error {
	disablePreview := true
	params := &bot.SendMessageParams{
		ChatID:    userID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &disablePreview,
		},
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := b.bot.SendMessage(ctx, params)
	return err
}

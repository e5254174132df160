package telegram

import (
	"fmt"

	"github.com/go-telegram/bot/models"
	"github.com/suspectuso/lookup-bot/internal/ledger"
	"github.com/suspectuso/lookup-bot/internal/money"
)

// Callback data
const (
	cbBack         = "back"
	cbSearch       = "menu_search"
	cbCheck        = "menu_check"
	cbProfile      = "menu_profile"
	cbPlans        = "menu_plans"
	cbReferral     = "menu_referral"
	cbSources      = "menu_sources"
	cbHelp         = "menu_help"
	cbCheckChannel = "check_subscription"
	cbBuyPrefix    = "buy:"
	cbAdminCredit  = "admin_credit"
	cbAdminRefresh = "admin_stats"
)

// MainKeyboard returns the main menu keyboard
func MainKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "🔍 Поиск", CallbackData: cbSearch},
				{Text: "💡 Проверка", CallbackData: cbCheck},
			},
			{
				{Text: "👤 Профиль", CallbackData: cbProfile},
				{Text: "⭐ Подписка", CallbackData: cbPlans},
			},
			{
				{Text: "🔗 Рефералы", CallbackData: cbReferral},
				{Text: "📊 Базы данных", CallbackData: cbSources},
			},
			{
				{Text: "❓ Помощь", CallbackData: cbHelp},
			},
		},
	}
}

// PlansKeyboard returns one purchase button per plan
func PlansKeyboard(plans []ledger.Plan) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	for _, p := range plans {
		rows = append(rows, []models.InlineKeyboardButton{
			{
				Text:         fmt.Sprintf("%s — %s ₽", p.Title, money.Format(p.Price)),
				CallbackData: cbBuyPrefix + p.ID,
			},
		})
	}

	rows = append(rows, []models.InlineKeyboardButton{
		{Text: "⬅️ Назад", CallbackData: cbBack},
	})

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// SubscribeKeyboard asks the user to join the required channel
func SubscribeKeyboard(channelURL string) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	if channelURL != "" {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: "📢 Подписаться на канал", URL: channelURL},
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: "✅ Проверить подписку", CallbackData: cbCheckChannel},
	})
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// DeniedKeyboard offers ways to pay after a denied search
func DeniedKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "⭐ Подписка", CallbackData: cbPlans},
				{Text: "🔗 Пригласить друга", CallbackData: cbReferral},
			},
			{
				{Text: "⬅️ Главное меню", CallbackData: cbBack},
			},
		},
	}
}

// AdminKeyboard returns the admin panel keyboard
func AdminKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "🔄 Обновить", CallbackData: cbAdminRefresh},
				{Text: "💰 Пополнить баланс", CallbackData: cbAdminCredit},
			},
		},
	}
}

// BackKeyboard returns a simple back button
func BackKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "⬅️ Назад", CallbackData: cbBack},
			},
		},
	}
}

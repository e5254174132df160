package telegram

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/suspectuso/lookup-bot/internal/ledger"
	"github.com/suspectuso/lookup-bot/internal/money"
	"github.com/suspectuso/lookup-bot/internal/provider"
	"github.com/suspectuso/lookup-bot/internal/storage"
)

var (
	phoneRegex    = regexp.MustCompile(`^\+?\d{10,15}$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	carPlateRegex = regexp.MustCompile(`^[АВЕКМНОРСТУХ]\d{3}[АВЕКМНОРСТУХ]{2}\d{2,3}$`)
	nicknameRegex = regexp.MustCompile(`^@?[a-zA-Z0-9_]+$`)
	ipRegex       = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
	nameWordRegex = regexp.MustCompile(`^[а-яА-ЯёЁa-zA-Z]+$`)
)

var freeCheckPrefixes = []string{"проверь", "check", "сколько", "количество"}

var addressWords = []string{"улица", "ул.", "проспект", "пр-т", "переулок", "дом", "кв."}

var databaseNames = map[string]string{
	"yandex":        "🟡 Яндекс",
	"avito":         "🟢 Авито",
	"vk":            "🔵 ВКонтакте",
	"ok":            "🟠 Одноклассники",
	"delivery_club": "🍕 Delivery Club",
	"cdek":          "📦 СДЭК",
}

const (
	maxResultSources = 5
	maxSourceRecords = 2
	maxExplainItems  = 10
	maxSourcesShown  = 10
)

// DetectQueryType guesses what kind of data the query is
func DetectQueryType(query string) string {
	q := strings.TrimSpace(query)
	compact := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(q)

	switch {
	case phoneRegex.MatchString(compact):
		return "📱 Телефон"
	case emailRegex.MatchString(q):
		return "📧 Email"
	case carPlateRegex.MatchString(strings.ToUpper(strings.ReplaceAll(q, " ", ""))):
		return "🚗 Автомобиль"
	case ipRegex.MatchString(q):
		return "🌐 IP-адрес"
	case nicknameRegex.MatchString(q):
		return "🆔 Никнейм"
	}

	lower := strings.ToLower(q)
	for _, w := range addressWords {
		if strings.Contains(lower, w) {
			return "🏠 Адрес"
		}
	}

	words := strings.Fields(q)
	if len(words) >= 2 && len(words) <= 3 {
		allNames := true
		for _, w := range words {
			if !nameWordRegex.MatchString(w) {
				allNames = false
				break
			}
		}
		if allNames {
			return "👤 ФИО"
		}
	}

	return "🔍 Общий поиск"
}

// parseFreeCheck reports whether text asks for a free check and returns the
// query that follows the keyword.
func parseFreeCheck(text string) (string, bool) {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)

	for _, prefix := range freeCheckPrefixes {
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		rest := text[len(prefix):]
		if rest != "" && rest[0] != ' ' {
			// "checkpoint" is a query, not a command
			continue
		}
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// startPayload returns the deep-link parameter of a /start command
func startPayload(text string) string {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

var errCreditUsage = errors.New("usage: /credit <user_id> <amount>")

// parseCredit parses "/credit <user_id> <amount>"
func parseCredit(text string) (int64, int64, error) {
	parts := strings.Fields(text)
	if len(parts) != 3 {
		return 0, 0, errCreditUsage
	}

	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || userID <= 0 {
		return 0, 0, fmt.Errorf("invalid user id %q: %w", parts[1], errCreditUsage)
	}

	amount, err := parseAmount(parts[2])
	if err != nil {
		return 0, 0, err
	}
	return userID, amount, nil
}

func parseAmount(s string) (int64, error) {
	amount, err := money.Parse(strings.Replace(strings.TrimSpace(s), ",", ".", 1))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %q", s)
	}
	return amount, nil
}

func referralLink(botUsername, code string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", strings.TrimPrefix(botUsername, "@"), code)
}

// displayName is safe to embed in HTML messages
func displayName(acc *storage.Account) string {
	switch {
	case acc.FirstName != "":
		return html.EscapeString(acc.FirstName)
	case acc.Username != "":
		return html.EscapeString(acc.Username)
	}
	return "друг"
}

func formatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006 15:04")
}

func formatSearchResults(res *provider.SearchResult, query, queryType string, cost int64) string {
	q := html.EscapeString(query)
	if res.Count == 0 {
		return fmt.Sprintf(
			"🔍 <b>Поиск:</b> <code>%s</code>\n%s\n\n❌ <b>Результатов не найдено</b>\n\n"+
				"💡 Попробуйте изменить формат запроса",
			q, queryType,
		)
	}

	var sb strings.Builder
	sb.WriteString("🎯 <b>РЕЗУЛЬТАТЫ ПОИСКА</b>\n\n")
	fmt.Fprintf(&sb, "🔍 <b>Запрос:</b> <code>%s</code>\n", q)
	fmt.Fprintf(&sb, "📂 <b>Тип:</b> %s\n", queryType)
	fmt.Fprintf(&sb, "📊 <b>Найдено:</b> %d записей\n\n", res.Count)

	for i, item := range res.Items {
		if i == maxResultSources {
			break
		}
		fmt.Fprintf(&sb, "<b>%d. %s</b>\n", i+1, databaseName(item.Source.Database))
		fmt.Fprintf(&sb, "📁 База: %s\n", html.EscapeString(item.Source.Collection))
		fmt.Fprintf(&sb, "🔢 Записей: %d\n", item.Hits.Total())

		for j, record := range item.Hits.Items {
			if j == maxSourceRecords {
				break
			}
			sb.WriteString(formatRecord(record))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("━━━━━━━━━━━━━━━━\n")
	sb.WriteString("🔒 Используйте данные ответственно")
	if cost > 0 {
		fmt.Fprintf(&sb, "\n💰 Списано: %s ₽", money.Format(cost))
	}
	return sb.String()
}

var recordIcons = map[string]string{
	"phone":      "📞",
	"tel":        "📞",
	"mobile":     "📞",
	"email":      "📧",
	"mail":       "📧",
	"full_name":  "👤",
	"name":       "👤",
	"first_name": "👤",
	"last_name":  "👤",
	"birth_date": "🎂",
	"birthday":   "🎂",
	"bdate":      "🎂",
	"address":    "🏠",
	"city":       "🏠",
	"sex":        "⚥",
	"gender":     "⚥",
}

func formatRecord(record map[string]any) string {
	keys := make([]string, 0, len(record))
	for k := range record {
		if strings.HasPrefix(k, "_") {
			continue
		}
		if _, ok := recordIcons[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %s\n", recordIcons[k], html.EscapeString(fmt.Sprint(record[k])))
	}
	return sb.String()
}

func databaseName(db string) string {
	if name, ok := databaseNames[db]; ok {
		return name
	}
	if db == "" {
		return "📊 N/A"
	}
	return "📊 " + html.EscapeString(db)
}

func formatExplain(res *provider.SearchResult, query string, unitPrice int64) string {
	q := html.EscapeString(query)
	if res.Count == 0 {
		return fmt.Sprintf("🔍 <b>Проверка:</b> <code>%s</code>\n\n❌ <b>Данных не найдено</b>", q)
	}

	var sb strings.Builder
	sb.WriteString("📊 <b>БЫСТРАЯ ПРОВЕРКА</b> (бесплатно)\n\n")
	fmt.Fprintf(&sb, "🔍 <b>Запрос:</b> <code>%s</code>\n", q)
	fmt.Fprintf(&sb, "📈 <b>Всего найдено:</b> %d записей\n\n", res.Count)

	for i, item := range res.Items {
		if i == maxExplainItems {
			break
		}
		fmt.Fprintf(&sb, "<b>%d.</b> %s: %d записей\n", i+1, databaseName(item.Source.Database), item.Hits.Total())
	}

	fmt.Fprintf(&sb, "\n💰 Полный поиск с данными: %s ₽", money.Format(unitPrice))
	return sb.String()
}

func formatSources(res *provider.SourcesResult) string {
	var sb strings.Builder
	sb.WriteString("📊 <b>ДОСТУПНЫЕ БАЗЫ ДАННЫХ</b>\n\n")
	fmt.Fprintf(&sb, "🗄️ <b>Всего баз:</b> %d\n\n", res.Count)

	for i, src := range res.Items {
		if i == maxSourcesShown {
			break
		}
		title := []rune(src.Title)
		if len(title) > 30 {
			title = title[:30]
		}
		fmt.Fprintf(&sb, "<b>%d.</b> %s\n📊 %d записей\n\n", i+1, html.EscapeString(string(title)), src.Count)
	}
	return sb.String()
}

func deniedText(reason ledger.Reason, unitPrice int64) string {
	switch reason {
	case ledger.ReasonQuotaExceeded:
		return fmt.Sprintf(
			"⏳ <b>Дневной лимит подписки исчерпан</b>\n\n"+
				"По подписке доступно %d поисков в сутки. Лимит обновится в полночь по московскому времени.",
			ledger.DailyLimit,
		)
	case ledger.ReasonNoAttempts:
		return "❌ <b>Попытки закончились!</b>\n\n🔗 Пригласите друзей для получения новых попыток"
	}
	return fmt.Sprintf(
		"❌ <b>Недостаточно средств</b>\n\n"+
			"Стоимость поиска: <b>%s ₽</b>\n"+
			"Оформите подписку или пригласите друга, чтобы получить бонус.",
		money.Format(unitPrice),
	)
}

func formatStats(st *storage.Stats) string {
	return fmt.Sprintf(
		"📊 <b>СТАТИСТИКА</b>\n\n"+
			"👥 Пользователей: <b>%d</b> (админов: %d)\n"+
			"⭐ Активных подписок: <b>%d</b>\n\n"+
			"🔍 Поисков: <b>%d</b>\n"+
			"✅ Успешных: <b>%d</b> (%.1f%%)\n\n"+
			"💰 Выручка с поисков: <b>%s ₽</b>\n"+
			"💳 Выручка с подписок: <b>%s ₽</b>\n"+
			"🏦 Остатки на балансах: <b>%s ₽</b>\n\n"+
			"🔗 Рефералов: <b>%d</b> (подтверждено: %d)\n"+
			"🎁 Выплачено бонусов: <b>%s ₽</b>",
		st.Users, st.Admins, st.ActiveSubscriptions,
		st.Searches, st.SuccessfulSearches, st.SuccessRate,
		money.Format(st.SearchRevenue), money.Format(st.SubscriptionRevenue), money.Format(st.OutstandingBalances),
		st.Referrals, st.ConfirmedReferrals, money.Format(st.ReferralRewardsPaid),
	)
}

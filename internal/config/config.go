package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/suspectuso/lookup-bot/internal/money"
)

// Payment policies
const (
	PolicyBalance  = "balance"
	PolicyAttempts = "attempts"
)

type Config struct {
	// Telegram
	BotToken        string
	BotUsername     string
	RequiredChannel string
	ChannelURL      string
	WebhookURL      string
	WebhookSecret   string

	// Provider
	ProviderToken   string
	ProviderBaseURL string
	ProviderTimeout time.Duration

	// Reporting HTTP
	HTTPPort int

	// Database
	DBPath string

	// Admins
	AdminUsername string
	AdminIDs      map[int64]bool

	// Pricing, minor units
	UnitPrice      int64
	PlanDayPrice   int64
	Plan3DaysPrice int64
	PlanMonthPrice int64
	ReferralReward int64

	// Entitlement
	PaymentPolicy     string
	FreeAttempts      int
	SettleMaxAttempts int
	Location          *time.Location

	// Background jobs
	ExpiryCheckInterval time.Duration
	ReportSchedule      string
}

func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		// Telegram
		BotToken:        getEnv("BOT_TOKEN", ""),
		BotUsername:     getEnv("BOT_USERNAME", "lookup_bot"),
		RequiredChannel: getEnv("REQUIRED_CHANNEL", ""),
		ChannelURL:      getEnv("CHANNEL_URL", ""),
		WebhookURL:      getEnv("WEBHOOK_URL", ""),
		WebhookSecret:   getEnv("WEBHOOK_SECRET", ""),

		// Provider
		ProviderToken:   getEnv("PROVIDER_TOKEN", ""),
		ProviderBaseURL: strings.TrimSuffix(getEnv("PROVIDER_BASE_URL", "https://api.usersbox.ru/v1"), "/"),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),

		// Reporting HTTP
		HTTPPort: getEnvInt("HTTP_PORT", 8080),

		// Database
		DBPath: getEnv("DB_PATH", "./lookup.db"),

		// Admins
		AdminUsername: strings.TrimPrefix(getEnv("ADMIN_USERNAME", ""), "@"),

		// Entitlement
		PaymentPolicy:     getEnv("PAYMENT_POLICY", PolicyBalance),
		FreeAttempts:      getEnvInt("FREE_ATTEMPTS", 0),
		SettleMaxAttempts: getEnvInt("SETTLE_MAX_ATTEMPTS", 3),

		// Background jobs
		ExpiryCheckInterval: getEnvDuration("EXPIRY_CHECK_INTERVAL", time.Minute),
		ReportSchedule:      getEnv("REPORT_SCHEDULE", "0 9 * * *"),
	}

	cfg.UnitPrice = getEnvMoney("UNIT_PRICE", "2.50", &errs)
	cfg.PlanDayPrice = getEnvMoney("PLAN_DAY_PRICE", "29.00", &errs)
	cfg.Plan3DaysPrice = getEnvMoney("PLAN_3DAYS_PRICE", "79.00", &errs)
	cfg.PlanMonthPrice = getEnvMoney("PLAN_MONTH_PRICE", "499.00", &errs)
	cfg.ReferralReward = getEnvMoney("REFERRAL_REWARD", "5.00", &errs)

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Europe/Moscow"))
	if err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
		loc = time.UTC
	}
	cfg.Location = loc

	// Parse admin IDs
	cfg.AdminIDs = make(map[int64]bool)
	for _, idStr := range strings.Split(getEnv("ADMIN_IDS", ""), ",") {
		idStr = strings.TrimSpace(idStr)
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			cfg.AdminIDs[id] = true
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the bot cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	if c.PaymentPolicy != PolicyBalance && c.PaymentPolicy != PolicyAttempts {
		errs = append(errs, fmt.Errorf("PAYMENT_POLICY must be balance or attempts, got %q", c.PaymentPolicy))
	}
	if c.UnitPrice <= 0 {
		errs = append(errs, errors.New("UNIT_PRICE must be positive"))
	}
	if c.SettleMaxAttempts < 1 {
		errs = append(errs, errors.New("SETTLE_MAX_ATTEMPTS must be at least 1"))
	}
	if c.WebhookURL != "" && c.WebhookSecret == "" {
		errs = append(errs, errors.New("WEBHOOK_SECRET is required with WEBHOOK_URL"))
	}
	return errors.Join(errs...)
}

// IsAdmin reports whether a Telegram user is configured as an admin.
func (c *Config) IsAdmin(userID int64, username string) bool {
	if c.AdminIDs[userID] {
		return true
	}
	return c.AdminUsername != "" && strings.EqualFold(c.AdminUsername, username)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvMoney(key, defaultVal string, errs *[]error) int64 {
	amount, err := money.Parse(getEnv(key, defaultVal))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return 0
	}
	if amount < 0 {
		*errs = append(*errs, fmt.Errorf("%s: must not be negative", key))
		return 0
	}
	return amount
}

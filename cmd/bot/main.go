package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/suspectuso/lookup-bot/internal/api"
	"github.com/suspectuso/lookup-bot/internal/config"
	"github.com/suspectuso/lookup-bot/internal/ledger"
	"github.com/suspectuso/lookup-bot/internal/notifier"
	"github.com/suspectuso/lookup-bot/internal/provider"
	"github.com/suspectuso/lookup-bot/internal/storage"
	"github.com/suspectuso/lookup-bot/internal/telegram"
)

func main() {
	// Setup logger
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(log)

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	store, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Error("init storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("storage initialized", "path", cfg.DBPath)

	// Initialize provider client
	lookup := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderToken, cfg.ProviderTimeout, log)
	log.Info("provider client initialized", "base_url", cfg.ProviderBaseURL)

	// Initialize ledger
	var policy ledger.Policy
	switch cfg.PaymentPolicy {
	case config.PolicyAttempts:
		policy = ledger.NewAttemptPolicy(store)
	default:
		policy = ledger.NewBalancePolicy(store, cfg.UnitPrice, cfg.Location)
	}
	engine := ledger.NewEngine(store, policy, cfg.SettleMaxAttempts, log)
	plans := ledger.Plans(cfg.PlanDayPrice, cfg.Plan3DaysPrice, cfg.PlanMonthPrice)
	subs := ledger.NewSubscriptionManager(store, plans, cfg.Location, cfg.SettleMaxAttempts, log)
	referrals := ledger.NewReferralLedger(store, cfg.ReferralReward, log)
	recorder := ledger.NewRecorder(store, log)
	log.Info("ledger initialized",
		"policy", cfg.PaymentPolicy,
		"unit_price", cfg.UnitPrice,
		"timezone", cfg.Location.String(),
	)

	// Initialize telegram bot
	bot, err := telegram.New(cfg, telegram.Services{
		Store:     store,
		Engine:    engine,
		Subs:      subs,
		Referrals: referrals,
		Recorder:  recorder,
		Provider:  lookup,
	}, log)
	if err != nil {
		log.Error("init telegram bot", "error", err)
		os.Exit(1)
	}
	log.Info("telegram bot initialized")

	// Initialize notifier
	notify := notifier.New(bot, cfg.Location, log)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start HTTP server
	var webhook http.Handler
	if cfg.WebhookURL != "" {
		webhook = bot.WebhookHandler()
	}
	server := api.NewServer(store, webhook, cfg.WebhookSecret, log)
	go func() {
		if err := server.Start(ctx, cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Error("http server", "error", err)
		}
	}()

	// Start expiry checker
	expiryChecker := notifier.NewExpiryChecker(subs, notify, log)
	go expiryChecker.Start(ctx, cfg.ExpiryCheckInterval)

	// Start daily report
	reporter := notifier.NewReporter(recorder, notify, cfg.AdminIDs, cfg.ReportSchedule, cfg.Location, log)
	go reporter.Start(ctx)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info("shutting down...")
		cancel()
	}()

	if cfg.WebhookURL != "" {
		log.Info("starting bot webhook...", "path", api.WebhookPath)
		if err := bot.StartWebhook(ctx); err != nil {
			log.Error("start webhook", "error", err)
			cancel()
		}
		return
	}

	// Start bot polling
	log.Info("starting bot polling...")
	bot.Start(ctx)
}

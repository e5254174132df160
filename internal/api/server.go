// Package api serves the read-only reporting endpoints, Prometheus metrics
// and, in webhook mode, the Telegram update endpoint.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suspectuso/lookup-bot/internal/metrics"
	"github.com/suspectuso/lookup-bot/internal/money"
	"github.com/suspectuso/lookup-bot/internal/storage"
)

const (
	defaultUsersLimit = 100
	maxUsersLimit     = 1000
)

// WebhookPath receives Telegram updates in webhook mode; WEBHOOK_URL must
// point here.
const WebhookPath = "/api/webhook"

// SecretHeader carries the secret_token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Store is what the reporting endpoints read
type Store interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context, now time.Time) (*storage.Stats, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]storage.Account, error)
}

// Server serves the reporting API
type Server struct {
	store         Store
	webhook       http.Handler
	webhookSecret string
	log           *slog.Logger

	server *http.Server
}

// NewServer creates a new reporting server. webhook may be nil when the bot
// runs by long polling; otherwise every update must carry webhookSecret in
// SecretHeader.
func NewServer(store Store, webhook http.Handler, webhookSecret string, log *slog.Logger) *Server {
	return &Server{
		store:         store,
		webhook:       webhook,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

// Routes builds the HTTP router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/", s.handleRoot)
		r.Get("/stats", s.handleStats)
		r.Get("/users", s.handleUsers)

		if s.webhook != nil {
			r.With(s.verifySecret).Post("/webhook", s.webhook.ServeHTTP)
		}
	})

	return r
}

// Start starts the HTTP server and shuts it down when ctx is done
func (s *Server) Start(ctx context.Context, port int) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
	}

	s.log.Info("starting http server", "port", port, "webhook", s.webhook != nil)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	return s.server.ListenAndServe()
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
	})
}

// verifySecret rejects updates that do not carry the configured secret token.
func (s *Server) verifySecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(SecretHeader)
		if s.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
			s.log.Warn("webhook secret mismatch", "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "invalid secret token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Error("health check", "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context(), time.Now())
	if err != nil {
		s.log.Error("stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// userView is the public shape of an account
type userView struct {
	UserID         int64      `json:"user_id"`
	Username       string     `json:"username"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Balance        string     `json:"balance"`
	BalanceMinor   int64      `json:"balance_minor"`
	Attempts       int        `json:"attempts"`
	Plan           string     `json:"plan,omitempty"`
	PlanExpiresAt  *time.Time `json:"plan_expires_at,omitempty"`
	ReferralCode   string     `json:"referral_code"`
	ReferredBy     *int64     `json:"referred_by,omitempty"`
	TotalReferrals int        `json:"total_referrals"`
	IsAdmin        bool       `json:"is_admin"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActiveAt   time.Time  `json:"last_active_at"`
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultUsersLimit)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxUsersLimit {
		limit = maxUsersLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	accounts, err := s.store.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		s.log.Error("list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	users := make([]userView, 0, len(accounts))
	for _, a := range accounts {
		v := userView{
			UserID:         a.UserID,
			Username:       a.Username,
			FirstName:      a.FirstName,
			LastName:       a.LastName,
			Balance:        money.Format(a.Balance),
			BalanceMinor:   a.Balance,
			Attempts:       a.Attempts,
			ReferralCode:   a.ReferralCode,
			ReferredBy:     a.ReferredBy,
			TotalReferrals: a.TotalReferrals,
			IsAdmin:        a.IsAdmin,
			CreatedAt:      a.CreatedAt,
			LastActiveAt:   a.LastActiveAt,
		}
		if a.Subscription != nil {
			expires := a.Subscription.ExpiresAt
			v.Plan = a.Subscription.Plan
			v.PlanExpiresAt = &expires
		}
		users = append(users, v)
	}

	writeJSON(w, http.StatusOK, users)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/infrastructure/session"
	"hardcore/internal/usecase/command"
	"hardcore/internal/usecase/lifecycle"
)

// Commands is the command surface served over HTTP and websocket.
type Commands interface {
	Execute(ctx context.Context, sender command.Sender, args []string) command.Reply
	Join(ctx context.Context, participantID uuid.UUID, name string) command.JoinResult
	Death(ctx context.Context, in command.DeathInput) (command.DeathResult, error)
	Placeholder(ctx context.Context, participantID uuid.UUID, key string) (string, bool)
	Placeholders(ctx context.Context, participantID uuid.UUID) map[string]string
}

type Inspector interface {
	Inspect(ctx context.Context, participantID uuid.UUID, groupKey string) (lifecycle.Snapshot, error)
}

// Config for the HTTP handler. Hub may be nil, which disables /ws.
type Config struct {
	Commands           Commands
	Lifecycle          Inspector
	Hub                *session.Hub
	Gatherer           prometheus.Gatherer
	AdminToken         string
	SessionPermissions []string
	// PlaceholderOnly exposes the read-only routes and nothing else.
	PlaceholderOnly bool
}

type Server struct {
	cfg Config
	ctx context.Context
}

// New returns the router. ctx carries the logger and is the parent of every
// websocket session.
func New(ctx context.Context, cfg Config) http.Handler {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &Server{
		cfg: cfg,
		ctx: logging.WithAttrs(ctx, slog.String("component", "server")),
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(s.requestLogger)

	router.Get("/healthz", s.handleHealth)
	if cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/v1/participants/{participantID}", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/placeholders", s.handlePlaceholders)
		r.Get("/placeholders/{key}", s.handlePlaceholder)
		if !cfg.PlaceholderOnly {
			r.Post("/join", s.withAdminAuth(s.handleJoin))
			r.Post("/death", s.withAdminAuth(s.handleDeath))
		}
	})
	if !cfg.PlaceholderOnly {
		router.Post("/v1/commands", s.withAdminAuth(s.handleCommand))
		if cfg.Hub != nil {
			router.Get("/ws", s.handleSession)
		}
	}

	return router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug(
			s.ctx,
			"http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) withAdminAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			next(w, r)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "admin token required")
			return
		}
		next(w, r)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

func participantParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "participantID"))
	if err != nil || id == uuid.Nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid participant id")
		return uuid.Nil, false
	}
	return id, true
}

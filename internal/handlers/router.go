package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"riddlehunt/internal/security"
)

// RouterConfig carries everything the HTTP boundary is built from
type RouterConfig struct {
	Games          *GameHandler
	Leaderboard    *LeaderboardHandler
	Verifier       *security.TokenVerifier
	Limiter        *security.AttemptLimiter
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

// NewRouter installs middleware and registers routes
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(cfg.Logger))
	r.Use(Logging)
	r.Use(chimw.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(cfg.Verifier))

		r.Post("/riddles/{riddleID}/games", cfg.Games.StartGame)
		r.Get("/riddles/{riddleID}/leaderboard/me", cfg.Leaderboard.RiddleStanding)

		r.Route("/games/{sessionID}", func(r chi.Router) {
			r.Get("/", cfg.Games.GetCurrentGame)
			r.Get("/summary", cfg.Games.GetCompletedGame)
			r.Post("/hints", cfg.Games.UnlockHint)
			r.Post("/abandon", cfg.Games.AbandonGame)

			validate := r.With()
			if cfg.Limiter != nil {
				validate = r.With(LimitAttempts(cfg.Limiter))
			}
			validate.Post("/validate", cfg.Games.ValidateStep)
		})

		r.Get("/leaderboard/{period}/me", cfg.Leaderboard.GlobalStanding)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: r.URL.Path})
	})

	return r
}

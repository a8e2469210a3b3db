package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"riddlehunt/internal/config"
	"riddlehunt/internal/database"
	"riddlehunt/internal/handlers"
	"riddlehunt/internal/logging"
	"riddlehunt/internal/security"
	"riddlehunt/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET must be set")
	}

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	logger.Info().Str("type", db.Dialect.Name()).Msg("database connection established")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run migrations
	applied, err := db.RunMigrations(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	logger.Info().Strs("applied", applied).Msg("migrations completed")

	// Initialize services
	leaderboard := service.NewLeaderboardService(db, logger)
	games := service.NewGameService(db, leaderboard, logger)

	limiter := security.NewAttemptLimiter(cfg.ValidateRateLimit, cfg.ValidateRateWindow)
	if cfg.ValidateRateLimit > 0 {
		go limiter.RunCleanup(ctx)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Games:          handlers.NewGameHandler(games),
		Leaderboard:    handlers.NewLeaderboardHandler(leaderboard),
		Verifier:       security.NewTokenVerifier(cfg.JWTSecret),
		Limiter:        limiter,
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
	})

	server := newHTTPServer(cfg, router)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("server failed")
		}
	}

	logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newHTTPServer leaves writes enough room past the router timeout to send its timeout response
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

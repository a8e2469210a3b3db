package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"riddlehunt/internal/database"
	"riddlehunt/internal/models"
	"riddlehunt/internal/repository"
)

// LeaderboardService accumulates completed-game scores per period and answers rank queries.
// Ranks are shared on ties with no gap after them: rank = 1 + number of strictly better rows.
type LeaderboardService struct {
	db     *database.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewLeaderboardService creates a leaderboard service
func NewLeaderboardService(db *database.DB, logger zerolog.Logger, opts ...Option) *LeaderboardService {
	o := newOptions(opts)
	return &LeaderboardService{
		db:     db,
		logger: logger.With().Str("component", "leaderboard").Logger(),
		now:    o.now,
	}
}

// UpdateGlobalScores adds score to the user's week, month and all-time totals in one transaction
func (s *LeaderboardService) UpdateGlobalScores(ctx context.Context, userID, score int64) error {
	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		return s.accumulate(ctx, repository.NewScoreRepository(tx), userID, score)
	})
}

// accumulate adds score to every period using the caller's repository, so the engine
// can fold it into the transaction that completes the game.
func (s *LeaderboardService) accumulate(ctx context.Context, scores *repository.ScoreRepository, userID, score int64) error {
	now := s.now().UTC()
	for _, period := range models.AllPeriods {
		if err := scores.AddGlobalScore(ctx, userID, period, score, now); err != nil {
			return err
		}
	}
	s.logger.Debug().Int64("user_id", userID).Int64("score", score).Msg("global scores updated")
	return nil
}

// GlobalStanding returns the user's score and rank for a period
func (s *LeaderboardService) GlobalStanding(ctx context.Context, userID int64, period models.Period) (*models.Standing, error) {
	if _, err := models.ParsePeriod(string(period)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	scores := repository.NewScoreRepository(s.db)
	gs, err := scores.GetGlobalScore(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	if gs == nil {
		return nil, fmt.Errorf("%w: no %s score for user %d", ErrNotFound, period, userID)
	}

	above, err := scores.CountGlobalAbove(ctx, period, gs.Score)
	if err != nil {
		return nil, err
	}
	return &models.Standing{UserID: userID, Score: gs.Score, Rank: above + 1}, nil
}

// RiddleStanding returns the user's score and rank among completed sessions of a riddle
func (s *LeaderboardService) RiddleStanding(ctx context.Context, userID, riddleID int64) (*models.Standing, error) {
	sessions := repository.NewSessionRepository(s.db)
	score, found, err := sessions.GetCompletedScore(ctx, riddleID, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: user %d has not completed riddle %d", ErrNotFound, userID, riddleID)
	}

	above, err := sessions.CountCompletedAbove(ctx, riddleID, score)
	if err != nil {
		return nil, err
	}
	return &models.Standing{UserID: userID, Score: score, Rank: above + 1}, nil
}

// ResetPeriod deletes every score of a rolling period. The all-time board is never reset.
func (s *LeaderboardService) ResetPeriod(ctx context.Context, period models.Period) (int64, error) {
	switch period {
	case models.PeriodWeek, models.PeriodMonth:
	default:
		return 0, fmt.Errorf("%w: period %q cannot be reset", ErrBadRequest, period)
	}

	removed, err := repository.NewScoreRepository(s.db).DeletePeriod(ctx, period)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Str("period", string(period)).Int64("removed", removed).Msg("leaderboard period reset")
	return removed, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"riddlehunt/internal/database"
	"riddlehunt/internal/models"
)

// ScoreRepository persists global scores and per-riddle completion statistics
type ScoreRepository struct {
	db database.Querier
}

// NewScoreRepository creates a score repository on a pool or a transaction
func NewScoreRepository(db database.Querier) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// AddGlobalScore adds score to the user's total for period, creating the row when missing
func (r *ScoreRepository) AddGlobalScore(ctx context.Context, userID int64, period models.Period, score int64, now time.Time) error {
	query := r.db.GetDialect().UpsertGlobalScoreQuery()
	if _, err := r.db.ExecContext(ctx, query, userID, period, score, now, now); err != nil {
		return fmt.Errorf("failed to add global score: %w", err)
	}
	return nil
}

// GetGlobalScore retrieves the user's total for period
func (r *ScoreRepository) GetGlobalScore(ctx context.Context, userID int64, period models.Period) (*models.GlobalScore, error) {
	query := `
		SELECT id, user_id, period, score, created_at, updated_at
		FROM global_scores
		WHERE user_id = ? AND period = ?
	`
	gs := &models.GlobalScore{}
	err := r.db.QueryRowContext(ctx, query, userID, period).Scan(
		&gs.ID,
		&gs.UserID,
		&gs.Period,
		&gs.Score,
		&gs.CreatedAt,
		&gs.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get global score: %w", err)
	}
	return gs, nil
}

// CountGlobalAbove counts rows in period with a strictly greater score
func (r *ScoreRepository) CountGlobalAbove(ctx context.Context, period models.Period, score int64) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM global_scores WHERE period = ? AND score > ?`
	if err := r.db.QueryRowContext(ctx, query, period, score).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count global scores: %w", err)
	}
	return count, nil
}

// DeletePeriod removes every row of a period and returns how many were removed
func (r *ScoreRepository) DeletePeriod(ctx context.Context, period models.Period) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM global_scores WHERE period = ?`, period)
	if err != nil {
		return 0, fmt.Errorf("failed to reset period: %w", err)
	}
	return result.RowsAffected()
}

// GetRiddleStats returns the completion aggregate of a riddle, locked for update.
// A riddle nobody completed yet gets an empty row first so that concurrent first
// completions queue on the same lock.
func (r *ScoreRepository) GetRiddleStats(ctx context.Context, riddleID int64) (*models.RiddleStats, error) {
	ensure := r.db.GetDialect().InsertMissingRiddleStatsQuery()
	if _, err := r.db.ExecContext(ctx, ensure, riddleID, time.Unix(0, 0).UTC()); err != nil {
		return nil, fmt.Errorf("failed to create riddle stats: %w", err)
	}

	query := `
		SELECT riddle_id, completions, avg_duration, updated_at
		FROM riddle_stats
		WHERE riddle_id = ?
	` + r.db.GetDialect().LockClause()

	stats := &models.RiddleStats{}
	err := r.db.QueryRowContext(ctx, query, riddleID).Scan(
		&stats.RiddleID,
		&stats.Completions,
		&stats.AvgDuration,
		&stats.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return &models.RiddleStats{RiddleID: riddleID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get riddle stats: %w", err)
	}
	return stats, nil
}

// SaveRiddleStats replaces the completion aggregate of a riddle
func (r *ScoreRepository) SaveRiddleStats(ctx context.Context, stats *models.RiddleStats) error {
	query := r.db.GetDialect().UpsertRiddleStatsQuery()
	_, err := r.db.ExecContext(ctx, query, stats.RiddleID, stats.Completions, stats.AvgDuration, stats.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save riddle stats: %w", err)
	}
	return nil
}

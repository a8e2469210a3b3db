package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"riddlehunt/internal/database"
	"riddlehunt/internal/models"
)

// BackupVersion is written into every export and checked on import
const BackupVersion = "1"

// BackupData is the export file layout. Catalog tables belong to the authoring service
// and are not part of it.
type BackupData struct {
	Version      string               `json:"version"`
	ExportID     string               `json:"export_id"`
	ExportedAt   time.Time            `json:"exported_at"`
	DatabaseType string               `json:"database_type"`
	GameSessions []GameSessionBackup  `json:"game_sessions"`
	SessionSteps []models.SessionStep `json:"session_steps"`
	GlobalScores []models.GlobalScore `json:"global_scores"`
	RiddleStats  []models.RiddleStats `json:"riddle_stats"`
}

// GameSessionBackup keeps the version column that GameSession hides from API responses
type GameSessionBackup struct {
	models.GameSession
	Version int64 `json:"version"`
}

// BackupService exports and restores game state
type BackupService struct {
	db     *database.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, logger zerolog.Logger, opts ...Option) *BackupService {
	o := newOptions(opts)
	return &BackupService{
		db:     db,
		logger: logger.With().Str("component", "backup").Logger(),
		now:    o.now,
	}
}

// Export writes a backup of the game tables to outputPath
func (s *BackupService) Export(ctx context.Context, outputPath string) (*BackupData, error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	backup, err := s.ExportToWriter(ctx, file)
	if err != nil {
		return nil, err
	}
	if err := file.Sync(); err != nil {
		return nil, fmt.Errorf("failed to flush output file: %w", err)
	}

	s.logger.Info().
		Str("export_id", backup.ExportID).
		Str("path", outputPath).
		Int("game_sessions", len(backup.GameSessions)).
		Int("session_steps", len(backup.SessionSteps)).
		Int("global_scores", len(backup.GlobalScores)).
		Int("riddle_stats", len(backup.RiddleStats)).
		Msg("database exported")
	return backup, nil
}

// ExportToWriter writes a backup of the game tables to w
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) (*BackupData, error) {
	backup := &BackupData{
		Version:      BackupVersion,
		ExportID:     uuid.NewString(),
		ExportedAt:   s.now().UTC(),
		DatabaseType: s.db.Dialect.Name(),
	}

	var err error
	if backup.GameSessions, err = s.exportGameSessions(ctx); err != nil {
		return nil, fmt.Errorf("failed to export game sessions: %w", err)
	}
	if backup.SessionSteps, err = s.exportSessionSteps(ctx); err != nil {
		return nil, fmt.Errorf("failed to export session steps: %w", err)
	}
	if backup.GlobalScores, err = s.exportGlobalScores(ctx); err != nil {
		return nil, fmt.Errorf("failed to export global scores: %w", err)
	}
	if backup.RiddleStats, err = s.exportRiddleStats(ctx); err != nil {
		return nil, fmt.Errorf("failed to export riddle stats: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return backup, nil
}

// Import restores a backup file. With clearExisting set, existing game state is removed first.
func (s *BackupService) Import(ctx context.Context, inputPath string, clearExisting bool) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file, clearExisting)
}

// ImportFromReader restores a backup read from r in a single transaction
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader, clearExisting bool) error {
	var in BackupData
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if in.Version != BackupVersion {
		return fmt.Errorf("unsupported backup version %q", in.Version)
	}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		if clearExisting {
			for _, table := range []string{"session_steps", "game_sessions", "global_scores", "riddle_stats"} {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
					return fmt.Errorf("failed to clear %s: %w", table, err)
				}
			}
		}

		if err := importGameSessions(ctx, tx, in.GameSessions); err != nil {
			return err
		}
		if err := importSessionSteps(ctx, tx, in.SessionSteps); err != nil {
			return err
		}
		if err := importGlobalScores(ctx, tx, in.GlobalScores); err != nil {
			return err
		}
		if err := importRiddleStats(ctx, tx, in.RiddleStats); err != nil {
			return err
		}

		for _, table := range []string{"game_sessions", "session_steps", "global_scores"} {
			query := tx.GetDialect().ResetSequenceQuery(table)
			if query == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, query); err != nil {
				return fmt.Errorf("failed to reset %s sequence: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("export_id", in.ExportID).
		Time("exported_at", in.ExportedAt).
		Int("game_sessions", len(in.GameSessions)).
		Int("session_steps", len(in.SessionSteps)).
		Int("global_scores", len(in.GlobalScores)).
		Int("riddle_stats", len(in.RiddleStats)).
		Msg("database imported")
	return nil
}

func (s *BackupService) exportGameSessions(ctx context.Context) ([]GameSessionBackup, error) {
	query := "SELECT id, riddle_id, user_id, status, score, current_step_id, version, created_at, updated_at FROM game_sessions ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameSessionBackup
	for rows.Next() {
		var gs GameSessionBackup
		var currentStepID sql.NullInt64
		if err := rows.Scan(&gs.ID, &gs.RiddleID, &gs.UserID, &gs.Status, &gs.Score, &currentStepID,
			&gs.Version, &gs.CreatedAt, &gs.UpdatedAt); err != nil {
			return nil, err
		}
		if currentStepID.Valid {
			gs.CurrentStepID = &currentStepID.Int64
		}
		out = append(out, gs)
	}
	return out, rows.Err()
}

func (s *BackupService) exportSessionSteps(ctx context.Context) ([]models.SessionStep, error) {
	query := "SELECT id, game_session_id, step_id, status, start_time, end_time, extra_hints, created_at, updated_at FROM session_steps ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SessionStep
	for rows.Next() {
		var ss models.SessionStep
		var endTime sql.NullTime
		if err := rows.Scan(&ss.ID, &ss.GameSessionID, &ss.StepID, &ss.Status, &ss.StartTime, &endTime,
			&ss.ExtraHints, &ss.CreatedAt, &ss.UpdatedAt); err != nil {
			return nil, err
		}
		if endTime.Valid {
			ss.EndTime = &endTime.Time
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

func (s *BackupService) exportGlobalScores(ctx context.Context) ([]models.GlobalScore, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, user_id, period, score, created_at, updated_at FROM global_scores ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GlobalScore
	for rows.Next() {
		var gs models.GlobalScore
		if err := rows.Scan(&gs.ID, &gs.UserID, &gs.Period, &gs.Score, &gs.CreatedAt, &gs.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, gs)
	}
	return out, rows.Err()
}

func (s *BackupService) exportRiddleStats(ctx context.Context) ([]models.RiddleStats, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT riddle_id, completions, avg_duration, updated_at FROM riddle_stats ORDER BY riddle_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RiddleStats
	for rows.Next() {
		var rs models.RiddleStats
		if err := rows.Scan(&rs.RiddleID, &rs.Completions, &rs.AvgDuration, &rs.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

func importGameSessions(ctx context.Context, tx *database.Tx, sessions []GameSessionBackup) error {
	query := "INSERT INTO game_sessions (id, riddle_id, user_id, status, score, current_step_id, version, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	for _, gs := range sessions {
		version := gs.Version
		if version <= 0 {
			version = 1
		}
		if _, err := tx.ExecContext(ctx, query, gs.ID, gs.RiddleID, gs.UserID, gs.Status, gs.Score,
			gs.CurrentStepID, version, gs.CreatedAt, gs.UpdatedAt); err != nil {
			return fmt.Errorf("failed to import game session %d: %w", gs.ID, err)
		}
	}
	return nil
}

func importSessionSteps(ctx context.Context, tx *database.Tx, steps []models.SessionStep) error {
	query := "INSERT INTO session_steps (id, game_session_id, step_id, status, start_time, end_time, extra_hints, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	for _, ss := range steps {
		if _, err := tx.ExecContext(ctx, query, ss.ID, ss.GameSessionID, ss.StepID, ss.Status, ss.StartTime,
			ss.EndTime, ss.ExtraHints, ss.CreatedAt, ss.UpdatedAt); err != nil {
			return fmt.Errorf("failed to import session step %d: %w", ss.ID, err)
		}
	}
	return nil
}

func importGlobalScores(ctx context.Context, tx *database.Tx, scores []models.GlobalScore) error {
	query := "INSERT INTO global_scores (id, user_id, period, score, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"
	for _, gs := range scores {
		if _, err := tx.ExecContext(ctx, query, gs.ID, gs.UserID, gs.Period, gs.Score, gs.CreatedAt, gs.UpdatedAt); err != nil {
			return fmt.Errorf("failed to import global score %d: %w", gs.ID, err)
		}
	}
	return nil
}

func importRiddleStats(ctx context.Context, tx *database.Tx, stats []models.RiddleStats) error {
	query := tx.GetDialect().UpsertRiddleStatsQuery()
	for _, rs := range stats {
		if _, err := tx.ExecContext(ctx, query, rs.RiddleID, rs.Completions, rs.AvgDuration, rs.UpdatedAt); err != nil {
			return fmt.Errorf("failed to import stats for riddle %d: %w", rs.RiddleID, err)
		}
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"riddlehunt/internal/database"
	"riddlehunt/internal/models"
)

// ErrConcurrentUpdate is returned when a write lost a race: the row changed since it was
// read, or the write would break the one-active-session or one-active-step rule.
var ErrConcurrentUpdate = errors.New("concurrent update")

// SessionRepository persists game sessions and their steps
type SessionRepository struct {
	db database.Querier
}

// NewSessionRepository creates a session repository on a pool or a transaction
func NewSessionRepository(db database.Querier) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) conflictOr(err error, format string) error {
	if r.db.GetDialect().IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	}
	return fmt.Errorf(format, err)
}

const sessionColumns = `id, riddle_id, user_id, status, score, current_step_id, version, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*models.GameSession, error) {
	session := &models.GameSession{}
	var currentStepID sql.NullInt64
	err := row.Scan(
		&session.ID,
		&session.RiddleID,
		&session.UserID,
		&session.Status,
		&session.Score,
		&currentStepID,
		&session.Version,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if currentStepID.Valid {
		session.CurrentStepID = &currentStepID.Int64
	}
	return session, nil
}

func (r *SessionRepository) getSession(ctx context.Context, query string, args ...any) (*models.GameSession, error) {
	session, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game session: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) listSessions(ctx context.Context, query string, args ...any) ([]models.GameSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query game sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.GameSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// GetSession retrieves a game session by ID
func (r *SessionRepository) GetSession(ctx context.Context, id int64) (*models.GameSession, error) {
	return r.getSession(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = ?`, id)
}

// GetSessionForUpdate retrieves a game session and locks its row until the transaction ends
func (r *SessionRepository) GetSessionForUpdate(ctx context.Context, id int64) (*models.GameSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM game_sessions WHERE id = ?` + r.db.GetDialect().LockClause()
	return r.getSession(ctx, query, id)
}

// FindActiveForRiddle returns the user's active session on a riddle, if any
func (r *SessionRepository) FindActiveForRiddle(ctx context.Context, riddleID, userID int64) (*models.GameSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM game_sessions
		WHERE riddle_id = ? AND user_id = ? AND status = ?
	` + r.db.GetDialect().LockClause()
	return r.getSession(ctx, query, riddleID, userID, models.StatusActive)
}

// ListActiveForUser returns every active session of a user, locked for update
func (r *SessionRepository) ListActiveForUser(ctx context.Context, userID int64) ([]models.GameSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM game_sessions WHERE user_id = ? AND status = ?` +
		r.db.GetDialect().LockClause()
	return r.listSessions(ctx, query, userID, models.StatusActive)
}

// ListInactiveForRiddle returns the user's completed or abandoned sessions on a riddle
func (r *SessionRepository) ListInactiveForRiddle(ctx context.Context, riddleID, userID int64) ([]models.GameSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM game_sessions
		WHERE riddle_id = ? AND user_id = ? AND status <> ?
	` + r.db.GetDialect().LockClause()
	return r.listSessions(ctx, query, riddleID, userID, models.StatusActive)
}

// CreateSession inserts a session and sets its ID and version
func (r *SessionRepository) CreateSession(ctx context.Context, session *models.GameSession) error {
	query := `
		INSERT INTO game_sessions (riddle_id, user_id, status, score, current_step_id, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		session.RiddleID, session.UserID, session.Status, session.Score, session.CurrentStepID,
		session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return r.conflictOr(err, "failed to create game session: %w")
	}
	session.ID = id
	session.Version = 1
	return nil
}

// UpdateSession writes status, score and current step if the row still has session.Version.
// On success the version is bumped. A stale version yields ErrConcurrentUpdate.
func (r *SessionRepository) UpdateSession(ctx context.Context, session *models.GameSession) error {
	query := `
		UPDATE game_sessions
		SET status = ?, score = ?, current_step_id = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		session.Status, session.Score, session.CurrentStepID, session.UpdatedAt, session.ID, session.Version)
	if err != nil {
		return r.conflictOr(err, "failed to update game session: %w")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update game session: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: game session %d is no longer at version %d", ErrConcurrentUpdate, session.ID, session.Version)
	}
	session.Version++
	return nil
}

// DeleteSession removes a session together with its steps
func (r *SessionRepository) DeleteSession(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_steps WHERE game_session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session steps: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM game_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete game session: %w", err)
	}
	return nil
}

const sessionStepColumns = `id, game_session_id, step_id, status, start_time, end_time, extra_hints, created_at, updated_at`

func scanSessionStep(row interface{ Scan(...any) error }) (*models.SessionStep, error) {
	step := &models.SessionStep{}
	var endTime sql.NullTime
	err := row.Scan(
		&step.ID,
		&step.GameSessionID,
		&step.StepID,
		&step.Status,
		&step.StartTime,
		&endTime,
		&step.ExtraHints,
		&step.CreatedAt,
		&step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		step.EndTime = &endTime.Time
	}
	return step, nil
}

// GetSessionStep retrieves a session step by ID, locked for update
func (r *SessionRepository) GetSessionStep(ctx context.Context, id int64) (*models.SessionStep, error) {
	query := `SELECT ` + sessionStepColumns + ` FROM session_steps WHERE id = ?` + r.db.GetDialect().LockClause()
	step, err := scanSessionStep(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session step: %w", err)
	}
	return step, nil
}

// CreateSessionStep inserts a session step and sets its ID
func (r *SessionRepository) CreateSessionStep(ctx context.Context, step *models.SessionStep) error {
	query := `
		INSERT INTO session_steps (game_session_id, step_id, status, start_time, end_time, extra_hints, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		step.GameSessionID, step.StepID, step.Status, step.StartTime, step.EndTime, step.ExtraHints,
		step.CreatedAt, step.UpdatedAt)
	if err != nil {
		return r.conflictOr(err, "failed to create session step: %w")
	}
	step.ID = id
	return nil
}

// UpdateSessionStep writes an active step's status, end time and hint count.
// Steps that already left the active state are immutable and yield ErrConcurrentUpdate.
func (r *SessionRepository) UpdateSessionStep(ctx context.Context, step *models.SessionStep) error {
	query := `
		UPDATE session_steps
		SET status = ?, end_time = ?, extra_hints = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		step.Status, step.EndTime, step.ExtraHints, step.UpdatedAt, step.ID, models.StatusActive)
	if err != nil {
		return r.conflictOr(err, "failed to update session step: %w")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update session step: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: session step %d is no longer active", ErrConcurrentUpdate, step.ID)
	}
	return nil
}

// ListSessionSteps returns a session's steps in riddle order
func (r *SessionRepository) ListSessionSteps(ctx context.Context, sessionID int64) ([]models.SessionStep, error) {
	query := `
		SELECT ss.id, ss.game_session_id, ss.step_id, ss.status, ss.start_time, ss.end_time,
		       ss.extra_hints, ss.created_at, ss.updated_at
		FROM session_steps ss
		JOIN steps s ON s.id = ss.step_id
		WHERE ss.game_session_id = ?
		ORDER BY s.order_number ASC, ss.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session steps: %w", err)
	}
	defer rows.Close()

	var steps []models.SessionStep
	for rows.Next() {
		step, err := scanSessionStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session step: %w", err)
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}

// GetCompletedScore returns the score of the user's completed session on a riddle.
// found is false when the user has not completed it.
func (r *SessionRepository) GetCompletedScore(ctx context.Context, riddleID, userID int64) (score int64, found bool, err error) {
	query := `SELECT score FROM game_sessions WHERE riddle_id = ? AND user_id = ? AND status = ? ORDER BY id DESC LIMIT 1`
	err = r.db.QueryRowContext(ctx, query, riddleID, userID, models.StatusCompleted).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get riddle score: %w", err)
	}
	return score, true, nil
}

// CountCompletedAbove counts completed sessions on a riddle with a strictly greater score
func (r *SessionRepository) CountCompletedAbove(ctx context.Context, riddleID, score int64) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM game_sessions WHERE riddle_id = ? AND status = ? AND score > ?`
	if err := r.db.QueryRowContext(ctx, query, riddleID, models.StatusCompleted, score).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count riddle scores: %w", err)
	}
	return count, nil
}

package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"riddlehunt/internal/database"
	"riddlehunt/internal/models"
	"riddlehunt/internal/repository"
	"riddlehunt/internal/security"
)

// GameService runs the game session state machine: starting, progressing, unlocking
// hints, abandoning and completing a player's attempt at a riddle.
//
// Every mutation runs in a single transaction. The session row is read with the dialect
// lock clause and written back with a version check, and the database rejects a second
// active session per user or active step per session. Losing any of these races
// surfaces as ErrConflict.
type GameService struct {
	db          *database.DB
	leaderboard *LeaderboardService
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGameService creates a game service
func NewGameService(db *database.DB, leaderboard *LeaderboardService, logger zerolog.Logger, opts ...Option) *GameService {
	o := newOptions(opts)
	return &GameService{
		db:          db,
		leaderboard: leaderboard,
		logger:      logger.With().Str("component", "game").Logger(),
		now:         o.now,
	}
}

// store groups the repositories bound to one pool or transaction
type store struct {
	catalog  *repository.CatalogRepository
	sessions *repository.SessionRepository
	scores   *repository.ScoreRepository
}

func newStore(q database.Querier) store {
	return store{
		catalog:  repository.NewCatalogRepository(q),
		sessions: repository.NewSessionRepository(q),
		scores:   repository.NewScoreRepository(q),
	}
}

func (s *GameService) inTx(ctx context.Context, fn func(st store) error) error {
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		return fn(newStore(tx))
	})
	return translate(err)
}

func (s *GameService) timestamp() time.Time {
	return s.now().UTC()
}

// StartGame resumes the user's active session on the riddle or starts a fresh one.
// A fresh start discards the user's previous attempt at the riddle and abandons any
// session they have running on another riddle.
func (s *GameService) StartGame(ctx context.Context, cmd StartGameCommand) (*models.GameSession, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var session *models.GameSession
	resumed := false
	err := s.inTx(ctx, func(st store) error {
		riddle, err := st.catalog.GetRiddle(ctx, cmd.RiddleID)
		if err != nil {
			return err
		}
		if riddle == nil {
			return fmt.Errorf("%w: riddle %d", ErrNotFound, cmd.RiddleID)
		}

		active, err := st.sessions.FindActiveForRiddle(ctx, riddle.ID, cmd.UserID)
		if err != nil {
			return err
		}
		if active != nil {
			session, resumed = active, true
			return nil
		}

		if riddle.IsPrivate && !security.CheckRiddlePassword(riddle.Password, cmd.Password) {
			return fmt.Errorf("%w: wrong riddle password", ErrForbidden)
		}

		first, err := st.catalog.FirstStep(ctx, riddle.ID)
		if err != nil {
			return err
		}
		if first == nil {
			return fmt.Errorf("%w: riddle has no steps", ErrUnprocessable)
		}

		now := s.timestamp()
		if err := s.discardPreviousAttempts(ctx, st, riddle.ID, cmd.UserID, now); err != nil {
			return err
		}

		others, err := st.sessions.ListActiveForUser(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		for i := range others {
			if err := abandonSession(ctx, st, &others[i], now); err != nil {
				return err
			}
			s.logger.Info().
				Int64("session_id", others[i].ID).
				Int64("riddle_id", others[i].RiddleID).
				Int64("user_id", cmd.UserID).
				Msg("game abandoned by new start")
		}

		session = &models.GameSession{
			RiddleID:  riddle.ID,
			UserID:    cmd.UserID,
			Status:    models.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := st.sessions.CreateSession(ctx, session); err != nil {
			return err
		}
		return advanceTo(ctx, st, session, first, now)
	})
	if err != nil {
		return nil, err
	}

	if !resumed {
		s.logger.Info().
			Int64("session_id", session.ID).
			Int64("riddle_id", session.RiddleID).
			Int64("user_id", session.UserID).
			Msg("game started")
	}
	return session, nil
}

// discardPreviousAttempts deletes the user's finished or abandoned sessions on a riddle.
// A discarded completion is also taken back out of the riddle's duration statistics.
func (s *GameService) discardPreviousAttempts(ctx context.Context, st store, riddleID, userID int64, now time.Time) error {
	previous, err := st.sessions.ListInactiveForRiddle(ctx, riddleID, userID)
	if err != nil {
		return err
	}

	for _, old := range previous {
		if old.Status == models.StatusCompleted {
			steps, err := st.sessions.ListSessionSteps(ctx, old.ID)
			if err != nil {
				return err
			}
			stats, err := st.scores.GetRiddleStats(ctx, riddleID)
			if err != nil {
				return err
			}
			stats.Remove(models.TotalDurationSeconds(steps))
			stats.UpdatedAt = now
			if err := st.scores.SaveRiddleStats(ctx, stats); err != nil {
				return err
			}
		}
		if err := st.sessions.DeleteSession(ctx, old.ID); err != nil {
			return err
		}
	}
	return nil
}

// advanceTo opens a session step for step and points the session at it
func advanceTo(ctx context.Context, st store, session *models.GameSession, step *models.Step, now time.Time) error {
	ss := &models.SessionStep{
		GameSessionID: session.ID,
		StepID:        step.ID,
		Status:        models.StatusActive,
		StartTime:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := st.sessions.CreateSessionStep(ctx, ss); err != nil {
		return err
	}

	session.CurrentStepID = &ss.ID
	session.UpdatedAt = now
	return st.sessions.UpdateSession(ctx, session)
}

// abandonSession closes the active step, if any, and marks the session abandoned
func abandonSession(ctx context.Context, st store, session *models.GameSession, now time.Time) error {
	if session.CurrentStepID != nil {
		step, err := st.sessions.GetSessionStep(ctx, *session.CurrentStepID)
		if err != nil {
			return err
		}
		if step != nil && step.Status == models.StatusActive {
			step.Status = models.StatusAbandoned
			step.EndTime = &now
			step.UpdatedAt = now
			if err := st.sessions.UpdateSessionStep(ctx, step); err != nil {
				return err
			}
		}
	}

	session.Status = models.StatusAbandoned
	session.CurrentStepID = nil
	session.UpdatedAt = now
	return st.sessions.UpdateSession(ctx, session)
}

func loadOwnedSession(ctx context.Context, sessions *repository.SessionRepository, cmd SessionCommand, lock bool) (*models.GameSession, error) {
	get := sessions.GetSession
	if lock {
		get = sessions.GetSessionForUpdate
	}
	session, err := get(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: game session %d", ErrNotFound, cmd.SessionID)
	}
	if !session.OwnedBy(cmd.UserID) {
		return nil, fmt.Errorf("%w: game session %d belongs to another user", ErrForbidden, cmd.SessionID)
	}
	return session, nil
}

func requireActive(session *models.GameSession) error {
	if !session.IsActive() {
		return fmt.Errorf("%w: game session is %s", ErrUnprocessable, session.Status)
	}
	return nil
}

func currentStep(ctx context.Context, sessions *repository.SessionRepository, session *models.GameSession) (*models.SessionStep, error) {
	if session.CurrentStepID == nil {
		return nil, fmt.Errorf("%w: no active step", ErrUnprocessable)
	}
	step, err := sessions.GetSessionStep(ctx, *session.CurrentStepID)
	if err != nil {
		return nil, err
	}
	if step == nil || step.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: no active step", ErrUnprocessable)
	}
	return step, nil
}

// AbandonGame gives up an active session
func (s *GameService) AbandonGame(ctx context.Context, cmd SessionCommand) (*models.GameSession, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var session *models.GameSession
	err := s.inTx(ctx, func(st store) error {
		var err error
		session, err = loadOwnedSession(ctx, st.sessions, cmd, true)
		if err != nil {
			return err
		}
		if err := requireActive(session); err != nil {
			return err
		}
		return abandonSession(ctx, st, session, s.timestamp())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("session_id", session.ID).
		Int64("riddle_id", session.RiddleID).
		Int64("user_id", session.UserID).
		Msg("game abandoned")
	return session, nil
}

// UnlockHint unlocks the next hint of the current step and returns the refreshed game view.
// Hints unlock strictly in order: the first is always visible, and only the one right
// after the last unlocked hint may be requested.
func (s *GameService) UnlockHint(ctx context.Context, cmd UnlockHintCommand) (*models.CurrentGameView, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	err := s.inTx(ctx, func(st store) error {
		session, err := loadOwnedSession(ctx, st.sessions, cmd.session(), true)
		if err != nil {
			return err
		}
		if err := requireActive(session); err != nil {
			return err
		}
		step, err := currentStep(ctx, st.sessions, session)
		if err != nil {
			return err
		}

		if models.HintUnlocked(cmd.HintOrder, step.ExtraHints) {
			return fmt.Errorf("%w: hint %d is already unlocked", ErrBadRequest, cmd.HintOrder)
		}
		if cmd.HintOrder > step.ExtraHints+2 {
			return fmt.Errorf("%w: unlock the previous hint first", ErrForbidden)
		}

		exists, err := st.catalog.HintExists(ctx, step.StepID, cmd.HintOrder)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: step has no hint %d", ErrNotFound, cmd.HintOrder)
		}

		now := s.timestamp()
		step.ExtraHints++
		step.UpdatedAt = now
		if err := st.sessions.UpdateSessionStep(ctx, step); err != nil {
			return err
		}

		// Bumping the session version serialises concurrent unlocks on the same step.
		session.UpdatedAt = now
		return st.sessions.UpdateSession(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	return s.GetCurrentGame(ctx, cmd.session())
}

// ValidateStep checks the code scanned at the current step. A match completes the step and
// either opens the next one or, after the last step, scores and completes the session.
func (s *GameService) ValidateStep(ctx context.Context, cmd ValidateStepCommand) (*models.ValidationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &models.ValidationResult{}
	err := s.inTx(ctx, func(st store) error {
		session, err := loadOwnedSession(ctx, st.sessions, cmd.session(), true)
		if err != nil {
			return err
		}
		if err := requireActive(session); err != nil {
			return err
		}
		ss, err := currentStep(ctx, st.sessions, session)
		if err != nil {
			return err
		}

		step, err := st.catalog.GetStep(ctx, ss.StepID)
		if err != nil {
			return err
		}
		if step == nil || subtle.ConstantTimeCompare([]byte(step.Code), []byte(cmd.Code)) != 1 {
			return fmt.Errorf("%w: invalid code", ErrUnprocessable)
		}

		now := s.timestamp()
		ss.Status = models.StatusCompleted
		ss.EndTime = &now
		ss.UpdatedAt = now
		if err := st.sessions.UpdateSessionStep(ctx, ss); err != nil {
			return err
		}

		next, err := st.catalog.NextStep(ctx, session.RiddleID, step.OrderNumber)
		if err != nil {
			return err
		}
		result.Session = session
		if next != nil {
			return advanceTo(ctx, st, session, next, now)
		}

		result.Completed = true
		return s.completeSession(ctx, st, session, now)
	})
	if err != nil {
		return nil, err
	}

	if result.Completed {
		s.logger.Info().
			Int64("session_id", result.Session.ID).
			Int64("riddle_id", result.Session.RiddleID).
			Int64("user_id", result.Session.UserID).
			Int("score", result.Session.Score).
			Msg("game completed")
	}
	return result, nil
}

// completeSession scores the session, marks it completed, folds its duration into the
// riddle statistics and adds the score to the user's leaderboard totals.
func (s *GameService) completeSession(ctx context.Context, st store, session *models.GameSession, now time.Time) error {
	steps, err := st.sessions.ListSessionSteps(ctx, session.ID)
	if err != nil {
		return err
	}
	avgDifficulty, _, err := st.catalog.AverageDifficulty(ctx, session.RiddleID)
	if err != nil {
		return err
	}
	stats, err := st.scores.GetRiddleStats(ctx, session.RiddleID)
	if err != nil {
		return err
	}

	input := ScoreInput{AvgDifficulty: avgDifficulty}
	for i := range steps {
		input.Steps = append(input.Steps, StepResult{
			DurationSeconds: steps[i].DurationSeconds(),
			ExtraHints:      steps[i].ExtraHints,
		})
	}
	if stats.Completions > 0 {
		input.PeerAvgDuration = stats.AvgDuration
	}

	session.Score = CalculateFinalScore(input)
	session.Status = models.StatusCompleted
	session.CurrentStepID = nil
	session.UpdatedAt = now
	if err := st.sessions.UpdateSession(ctx, session); err != nil {
		return err
	}

	stats.Add(models.TotalDurationSeconds(steps))
	stats.UpdatedAt = now
	if err := st.scores.SaveRiddleStats(ctx, stats); err != nil {
		return err
	}

	return s.leaderboard.accumulate(ctx, st.scores, session.UserID, int64(session.Score))
}

// GetCurrentGame returns the current step of an active session with its hints.
// Locked hints carry their order only.
func (s *GameService) GetCurrentGame(ctx context.Context, cmd SessionCommand) (*models.CurrentGameView, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	st := newStore(s.db)
	session, err := loadOwnedSession(ctx, st.sessions, cmd, false)
	if err != nil {
		return nil, err
	}
	if err := requireActive(session); err != nil {
		return nil, err
	}
	ss, err := currentStep(ctx, st.sessions, session)
	if err != nil {
		return nil, err
	}

	step, err := st.catalog.GetStep(ctx, ss.StepID)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, fmt.Errorf("%w: step %d", ErrNotFound, ss.StepID)
	}
	total, err := st.catalog.CountSteps(ctx, session.RiddleID)
	if err != nil {
		return nil, err
	}
	hints, err := st.catalog.ListHints(ctx, step.ID)
	if err != nil {
		return nil, err
	}

	view := &models.CurrentGameView{
		SessionID: session.ID,
		RiddleID:  session.RiddleID,
		SessionStep: models.CurrentStepView{
			ID:         ss.ID,
			ExtraHints: ss.ExtraHints,
			StartTime:  ss.StartTime,
		},
		Step:       models.StepRef{ID: step.ID, OrderNumber: step.OrderNumber},
		TotalSteps: total,
		Hints:      make([]models.HintView, 0, len(hints)),
	}
	for _, hint := range hints {
		hv := models.HintView{
			ID:          hint.ID,
			OrderNumber: hint.OrderNumber,
			Unlocked:    models.HintUnlocked(hint.OrderNumber, ss.ExtraHints),
		}
		if hv.Unlocked {
			hv.Content = hint.Content
		}
		view.Hints = append(view.Hints, hv)
	}
	return view, nil
}

// GetCompletedGame summarises a completed session
func (s *GameService) GetCompletedGame(ctx context.Context, cmd SessionCommand) (*models.CompletedGameView, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	st := newStore(s.db)
	session, err := loadOwnedSession(ctx, st.sessions, cmd, false)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: game session is %s", ErrUnprocessable, session.Status)
	}

	steps, err := st.sessions.ListSessionSteps(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	reviewed, err := st.catalog.HasReviewed(ctx, session.RiddleID, session.UserID)
	if err != nil {
		return nil, err
	}

	return &models.CompletedGameView{
		ID:              session.ID,
		RiddleID:        session.RiddleID,
		Score:           session.Score,
		DurationSeconds: models.TotalDurationSeconds(steps),
		HasReviewed:     reviewed,
		Steps:           steps,
	}, nil
}

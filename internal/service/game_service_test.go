package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riddlehunt/internal/models"
)

func TestTwoStepRiddlePlaythrough(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	riddle, steps := env.seedRiddle(t, "", stepFixture{"Q1", 3}, stepFixture{"Q2", 2})

	session := env.start(t, riddle.ID, 1)
	assert.Equal(t, models.StatusActive, session.Status)
	assert.Zero(t, session.Score)

	cmd := SessionCommand{SessionID: session.ID, UserID: 1}
	view, err := env.game.GetCurrentGame(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, steps[0].ID, view.Step.ID)
	assert.Equal(t, 1, view.Step.OrderNumber)
	assert.Equal(t, 2, view.TotalSteps)
	assert.Zero(t, view.SessionStep.ExtraHints)
	require.Len(t, view.Hints, 3)
	assert.True(t, view.Hints[0].Unlocked)
	assert.Equal(t, "Q1 hint", view.Hints[0].Content)
	for _, hint := range view.Hints[1:] {
		assert.False(t, hint.Unlocked)
		assert.Empty(t, hint.Content)
	}

	env.clock.Advance(60 * time.Second)
	result := env.validate(t, session, "Q1")
	assert.False(t, result.Completed)
	assert.Equal(t, models.StatusActive, result.Session.Status)

	view, err = env.game.GetCurrentGame(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, steps[1].ID, view.Step.ID)
	assert.Equal(t, 2, view.Step.OrderNumber)

	view, err = env.game.UnlockHint(ctx, UnlockHintCommand{SessionID: session.ID, UserID: 1, HintOrder: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, view.SessionStep.ExtraHints)
	assert.True(t, view.Hints[1].Unlocked)
	assert.Equal(t, "Q2 hint", view.Hints[1].Content)

	env.clock.Advance(120 * time.Second)
	result = env.validate(t, session, "Q2")
	assert.True(t, result.Completed)
	// (20 + 17) * 1.2 with no reviews and no peers
	assert.Equal(t, 44, result.Session.Score)

	stored := env.reload(t, session.ID)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, 44, stored.Score)
	assert.Nil(t, stored.CurrentStepID)

	for _, ss := range env.sessionSteps(t, session.ID) {
		assert.Equal(t, models.StatusCompleted, ss.Status)
		assert.NotNil(t, ss.EndTime)
	}

	for _, period := range models.AllPeriods {
		standing, err := env.leaderboard.GlobalStanding(ctx, 1, period)
		require.NoError(t, err)
		assert.Equal(t, int64(44), standing.Score)
		assert.Equal(t, int64(1), standing.Rank)
	}

	stats, err := env.scores.GetRiddleStats(ctx, riddle.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completions)
	assert.InDelta(t, 180.0, stats.AvgDuration, 1e-9)

	summary, err := env.game.GetCompletedGame(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, session.ID, summary.ID)
	assert.Equal(t, riddle.ID, summary.RiddleID)
	assert.Equal(t, 44, summary.Score)
	assert.Equal(t, int64(180), summary.DurationSeconds)
	assert.False(t, summary.HasReviewed)
	require.Len(t, summary.Steps, 2)
	assert.Equal(t, steps[0].ID, summary.Steps[0].StepID)
	assert.Equal(t, 1, summary.Steps[1].ExtraHints)
}

func TestPrivateRiddleRequiresPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	riddle, _ := env.seedRiddle(t, "secret123", stepFixture{"Q1", 1})

	_, err := env.game.StartGame(ctx, StartGameCommand{RiddleID: riddle.ID, UserID: 1})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.game.StartGame(ctx, StartGameCommand{RiddleID: riddle.ID, UserID: 1, Password: "wrong"})
	assert.ErrorIs(t, err, ErrForbidden)

	session, err := env.game.StartGame(ctx, StartGameCommand{RiddleID: riddle.ID, UserID: 1, Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, session.Status)

	// Resuming an active session does not check the password again.
	resumed, err := env.game.StartGame(ctx, StartGameCommand{RiddleID: riddle.ID, UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, session.ID, resumed.ID)
}

func TestPrivateRiddleWithEmptyPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	riddle := &models.Riddle{Title: "Unlisted", IsPrivate: true}
	require.NoError(t, env.catalog.CreateRiddle(ctx, riddle))
	require.NoError(t, env.catalog.CreateStep(ctx, &models.Step{RiddleID: riddle.ID, OrderNumber: 1, Code: "Q1"}))

	_, err := env.game.StartGame(ctx, StartGameCommand{RiddleID: riddle.ID, UserID: 1, Password: "guess"})
	assert.ErrorIs(t, err, ErrForbidden)

	session, err := env.game.StartGame(ctx, StartGameCommand{RiddleID: riddle.ID, UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, session.Status)
}

func TestStartRiddleWithoutSteps(t *testing.T) {
	env := newTestEnv(t)
	riddle, _ := env.seedRiddle(t, "")

	_, err := env.game.StartGame(context.Background(), StartGameCommand{RiddleID: riddle.ID, UserID: 1})
	assert.ErrorIs(t, err, ErrUnprocessable)
}

func TestStartUnknownRiddle(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.game.StartGame(context.Background(), StartGameCommand{RiddleID: 999, UserID: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartingAnotherRiddleAbandonsTheFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first, _ := env.seedRiddle(t, "", stepFixture{"A1", 1}, stepFixture{"A2", 1})
	second, _ := env.seedRiddle(t, "", stepFixture{"B1", 1})

	s1 := env.start(t, first.ID, 5)
	env.clock.Advance(5 * time.Minute)
	s2 := env.start(t, second.ID, 5)
	assert.NotEqual(t, s1.ID, s2.ID)

	abandoned := env.reload(t, s1.ID)
	assert.Equal(t, models.StatusAbandoned, abandoned.Status)
	assert.Nil(t, abandoned.CurrentStepID)

	steps := env.sessionSteps(t, s1.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StatusAbandoned, steps[0].Status)
	require.NotNil(t, steps[0].EndTime)
	assert.True(t, steps[0].EndTime.Equal(env.clock.now))

	active, err := env.sessions.ListActiveForUser(ctx, 5)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, s2.ID, active[0].ID)
}

func TestStartGameIsIdempotentWhileActive(t *testing.T) {
	env := newTestEnv(t)
	riddle, _ := env.seedRiddle(t, "", stepFixture{"Q1", 1}, stepFixture{"Q2", 1})

	first := env.start(t, riddle.ID, 2)
	env.clock.Advance(time.Minute)
	second := env.start(t, riddle.ID, 2)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, env.sessionSteps(t, first.ID), 1)
}

func TestHintUnlockSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	riddle, _ := env.seedRiddle(t, "", stepFixture{"Q1", 3})
	session := env.start(t, riddle.ID, 1)

	unlock := func(order int) error {
		_, err := env.game.UnlockHint(ctx, UnlockHintCommand{SessionID: session.ID, UserID: 1, HintOrder: order})
		return err
	}

	assert.ErrorIs(t, unlock(1), ErrBadRequest, "first hint is always unlocked")
	assert.ErrorIs(t, unlock(3), ErrForbidden, "cannot skip hint 2")
	require.NoError(t, unlock(2))
	assert.ErrorIs(t, unlock(2), ErrBadRequest, "hint 2 already unlocked")
	require.NoError(t, unlock(3))
	assert.ErrorIs(t, unlock(4), ErrNotFound, "step has only three hints")
	assert.ErrorIs(t, unlock(0), ErrBadRequest)

	view, err := env.game.GetCurrentGame(ctx, SessionCommand{SessionID: session.ID, UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, view.SessionStep.ExtraHints)
	for _, hint := range view.Hints {
		assert.True(t, hint.Unlocked)
	}
}

func TestExtraHintsResetOnNextStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	riddle, _ := env.seedRiddle(t, "", stepFixture{"Q1", 2}, stepFixture{"Q2", 2})
	session := env.start(t, riddle.ID, 1)

	_, err := env.game.UnlockHint(ctx, UnlockHintCommand{SessionID: session.ID, UserID: 1, HintOrder: 2})
	require.NoError(t, err)
	env.validate(t, session, "Q1")

	view, err := env.game.GetCurrentGame(ctx, SessionCommand{SessionID: session.ID, UserID: 1})
	require.NoError(t, err)
	assert.Zero(t, view.SessionStep.ExtraHints)

	steps := env.sessionSteps(t, session.ID)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].ExtraHints)

	var active int
	for _, ss := range steps {
		if ss.Status == models.StatusActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestValidateStepRejectsWrongCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	riddle, _ := env.seedRiddle(t, "", stepFixture{"Q1", 1})
	session := env.start(t, riddle.ID, 1)

	tests := []string{"q1", "Q1 ", "Q2"}
	for _, code := range tests {
		_, err := env.game.ValidateStep(ctx, ValidateStepCommand{SessionID: session.ID, UserID: 1, Code: code})
		assert.ErrorIs(t, err, ErrUnprocessable, "code %q", code)
	}

	_, err := env.game.ValidateStep(ctx, ValidateStepCommand{SessionID: session.ID, UserID: 1, Code: ""})
	assert.ErrorIs(t, err, ErrBadRequest)

	steps := env.sessionSteps(t, session.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StatusActive, steps[0].Status)
}

func TestSessionOwnershipAndState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	riddle, _ := env.seedRiddle(t, "", stepFixture{"Q1", 2})
	session := env.start(t, riddle.ID, 1)

	intruder := SessionCommand{SessionID: session.ID, UserID: 2}
	_, err := env.game.GetCurrentGame(ctx, intruder)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.game.AbandonGame(ctx, intruder)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.game.ValidateStep(ctx, ValidateStepCommand{SessionID: session.ID, UserID: 2, Code: "Q1"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.game.UnlockHint(ctx, UnlockHintCommand{SessionID: session.ID, UserID: 2, HintOrder: 2})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.game.GetCurrentGame(ctx, SessionCommand{SessionID: session.ID + 100, UserID: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	owner := SessionCommand{SessionID: session.ID, UserID: 1}
	_, err = env.game.GetCompletedGame(ctx, owner)
	assert.ErrorIs(t, err, ErrUnprocessable, "summary of an active game")

	env.clock.Advance(30 * time.Second)
	abandoned, err := env.game.AbandonGame(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAbandoned, abandoned.Status)

	steps := env.sessionSteps(t, session.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StatusAbandoned, steps[0].Status)
	assert.Equal(t, int64(30), steps[0].DurationSeconds())

	_, err = env.game.AbandonGame(ctx, owner)
	assert.ErrorIs(t, err, ErrUnprocessable)
	_, err = env.game.GetCurrentGame(ctx, owner)
	assert.ErrorIs(t, err, ErrUnprocessable)
	_, err = env.game.UnlockHint(ctx, UnlockHintCommand{SessionID: session.ID, UserID: 1, HintOrder: 2})
	assert.ErrorIs(t, err, ErrUnprocessable)
	_, err = env.game.ValidateStep(ctx, ValidateStepCommand{SessionID: session.ID, UserID: 1, Code: "Q1"})
	assert.ErrorIs(t, err, ErrUnprocessable)
}

func TestReplayDiscardsPreviousAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	riddle, _ := env.seedRiddle(t, "", stepFixture{"Q1", 1})

	first := env.start(t, riddle.ID, 1)
	env.clock.Advance(100 * time.Second)
	result := env.validate(t, first, "Q1")
	require.True(t, result.Completed)
	assert.Equal(t, 24, result.Session.Score) // 20 * 1.2

	second := env.start(t, riddle.ID, 1)
	assert.NotEqual(t, first.ID, second.ID)

	gone, err := env.sessions.GetSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Empty(t, env.sessionSteps(t, first.ID))

	stats, err := env.scores.GetRiddleStats(ctx, riddle.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Completions)

	env.clock.Advance(50 * time.Second)
	result = env.validate(t, second, "Q1")
	require.True(t, result.Completed)
	assert.Equal(t, 24, result.Session.Score)

	// Accumulated totals keep both completions.
	standing, err := env.leaderboard.GlobalStanding(ctx, 1, models.PeriodAll)
	require.NoError(t, err)
	assert.Equal(t, int64(48), standing.Score)
}

func TestFailedRestartKeepsPreviousAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	riddle, _ := env.seedRiddle(t, "", stepFixture{"Q1", 1})
	other, _ := env.seedRiddle(t, "", stepFixture{"R1", 0})

	first := env.start(t, riddle.ID, 1)
	env.clock.Advance(100 * time.Second)
	require.True(t, env.validate(t, first, "Q1").Completed)
	elsewhere := env.start(t, other.ID, 1)

	// Make the new session insert fail after earlier writes in the same transaction.
	_, err := env.db.ExecContext(ctx, `
		CREATE TRIGGER block_new_sessions BEFORE INSERT ON game_sessions
		BEGIN SELECT RAISE(ABORT, 'sessions blocked'); END`)
	require.NoError(t, err)

	_, err = env.game.StartGame(ctx, StartGameCommand{RiddleID: riddle.ID, UserID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sessions blocked")

	kept := env.reload(t, first.ID)
	assert.Equal(t, models.StatusCompleted, kept.Status)
	assert.Len(t, env.sessionSteps(t, first.ID), 1)

	stats, err := env.scores.GetRiddleStats(ctx, riddle.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completions)
	assert.InDelta(t, 100.0, stats.AvgDuration, 1e-9)

	stillActive := env.reload(t, elsewhere.ID)
	assert.Equal(t, models.StatusActive, stillActive.Status)
	require.NotNil(t, stillActive.CurrentStepID)
}

func TestPeerAverageAndDifficultyShapeScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	riddle, _ := env.seedRiddle(t, "", stepFixture{"Q1", 1}, stepFixture{"Q2", 1})

	play := func(userID int64, perStep time.Duration) *models.GameSession {
		session := env.start(t, riddle.ID, userID)
		env.clock.Advance(perStep)
		env.validate(t, session, "Q1")
		env.clock.Advance(perStep)
		result := env.validate(t, session, "Q2")
		require.True(t, result.Completed)
		return result.Session
	}

	// First finisher has no peers: 40 * 1.2.
	slow := play(1, 300*time.Second)
	assert.Equal(t, 48, slow.Score)

	require.NoError(t, env.catalog.CreateReview(ctx, &models.Review{RiddleID: riddle.ID, UserID: 1, Difficulty: 5}))

	// 600s peer average against 200s clamps to 1.5: 40 * 1.4 * 1.5.
	fast := play(2, 100*time.Second)
	assert.Equal(t, 84, fast.Score)

	// Peer average is now 400s against 1600s: clamps to 0.5, 40 * 1.4 * 0.5.
	slowest := play(3, 800*time.Second)
	assert.Equal(t, 28, slowest.Score)

	standing, err := env.leaderboard.RiddleStanding(ctx, 3, riddle.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), standing.Rank)

	summary, err := env.game.GetCompletedGame(ctx, SessionCommand{SessionID: slow.ID, UserID: 1})
	require.NoError(t, err)
	assert.True(t, summary.HasReviewed)
}

func TestCommandValidation(t *testing.T) {
	tests := []struct {
		name string
		cmd  interface{ Validate() error }
	}{
		{"start without riddle", StartGameCommand{UserID: 1}},
		{"start without user", StartGameCommand{RiddleID: 1}},
		{"session without id", SessionCommand{UserID: 1}},
		{"hint order zero", UnlockHintCommand{SessionID: 1, UserID: 1}},
		{"negative hint order", UnlockHintCommand{SessionID: 1, UserID: 1, HintOrder: -2}},
		{"empty code", ValidateStepCommand{SessionID: 1, UserID: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cmd.Validate(), ErrBadRequest)
		})
	}

	assert.NoError(t, UnlockHintCommand{SessionID: 1, UserID: 1, HintOrder: 2}.Validate())
	assert.NoError(t, StartGameCommand{RiddleID: 1, UserID: 1}.Validate())
}

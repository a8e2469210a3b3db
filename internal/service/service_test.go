package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"riddlehunt/internal/database"
	"riddlehunt/internal/models"
	"riddlehunt/internal/repository"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	db          *database.DB
	clock       *fakeClock
	catalog     *repository.CatalogRepository
	sessions    *repository.SessionRepository
	scores      *repository.ScoreRepository
	game        *GameService
	leaderboard *LeaderboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.RunMigrations(context.Background())
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
	leaderboard := NewLeaderboardService(db, zerolog.Nop(), WithClock(clock.Now))
	return &testEnv{
		db:          db,
		clock:       clock,
		catalog:     repository.NewCatalogRepository(db),
		sessions:    repository.NewSessionRepository(db),
		scores:      repository.NewScoreRepository(db),
		game:        NewGameService(db, leaderboard, zerolog.Nop(), WithClock(clock.Now)),
		leaderboard: leaderboard,
	}
}

type stepFixture struct {
	code  string
	hints int
}

// seedRiddle creates a riddle whose steps carry the given codes and hint counts
func (e *testEnv) seedRiddle(t *testing.T, password string, steps ...stepFixture) (*models.Riddle, []*models.Step) {
	t.Helper()
	ctx := context.Background()

	riddle := &models.Riddle{Title: "Old Town", IsPrivate: password != "", Password: password}
	require.NoError(t, e.catalog.CreateRiddle(ctx, riddle))

	var created []*models.Step
	for i, fx := range steps {
		step := &models.Step{RiddleID: riddle.ID, OrderNumber: i + 1, Code: fx.code}
		require.NoError(t, e.catalog.CreateStep(ctx, step))
		for order := 1; order <= fx.hints; order++ {
			hint := &models.Hint{StepID: step.ID, OrderNumber: order, Content: fx.code + " hint"}
			require.NoError(t, e.catalog.CreateHint(ctx, hint))
		}
		created = append(created, step)
	}
	return riddle, created
}

func (e *testEnv) start(t *testing.T, riddleID, userID int64) *models.GameSession {
	t.Helper()
	session, err := e.game.StartGame(context.Background(), StartGameCommand{RiddleID: riddleID, UserID: userID})
	require.NoError(t, err)
	return session
}

func (e *testEnv) validate(t *testing.T, session *models.GameSession, code string) *models.ValidationResult {
	t.Helper()
	result, err := e.game.ValidateStep(context.Background(), ValidateStepCommand{
		SessionID: session.ID,
		UserID:    session.UserID,
		Code:      code,
	})
	require.NoError(t, err)
	return result
}

func (e *testEnv) sessionSteps(t *testing.T, sessionID int64) []models.SessionStep {
	t.Helper()
	steps, err := e.sessions.ListSessionSteps(context.Background(), sessionID)
	require.NoError(t, err)
	return steps
}

func (e *testEnv) reload(t *testing.T, sessionID int64) *models.GameSession {
	t.Helper()
	session, err := e.sessions.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	return session
}

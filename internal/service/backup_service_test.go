package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riddlehunt/internal/models"
)

func TestBackupRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	riddle, _ := env.seedRiddle(t, "", stepFixture{"Q1", 1}, stepFixture{"Q2", 1})

	done := env.start(t, riddle.ID, 1)
	env.clock.Advance(time.Minute)
	env.validate(t, done, "Q1")
	env.clock.Advance(time.Minute)
	final := env.validate(t, done, "Q2")
	require.True(t, final.Completed)
	running := env.start(t, riddle.ID, 2)

	backups := NewBackupService(env.db, zerolog.Nop(), WithClock(env.clock.Now))
	path := filepath.Join(t.TempDir(), "backup.json")
	exported, err := backups.Export(ctx, path)
	require.NoError(t, err)
	assert.NotEmpty(t, exported.ExportID)
	assert.Equal(t, "sqlite", exported.DatabaseType)
	assert.Len(t, exported.GameSessions, 2)
	assert.Len(t, exported.SessionSteps, 3)
	assert.Len(t, exported.GlobalScores, 3)
	assert.Len(t, exported.RiddleStats, 1)

	require.NoError(t, backups.Import(ctx, path, true))

	restored := env.reload(t, running.ID)
	assert.Equal(t, models.StatusActive, restored.Status)
	require.NotNil(t, restored.CurrentStepID)
	assert.Equal(t, *running.CurrentStepID, *restored.CurrentStepID)
	assert.Equal(t, running.Version, restored.Version)

	// The restored game keeps playing.
	env.clock.Advance(time.Minute)
	env.validate(t, restored, "Q1")

	standing, err := env.leaderboard.GlobalStanding(ctx, 1, models.PeriodAll)
	require.NoError(t, err)
	assert.Equal(t, int64(final.Session.Score), standing.Score)
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	env := newTestEnv(t)
	backups := NewBackupService(env.db, zerolog.Nop())

	err := backups.ImportFromReader(context.Background(), bytes.NewBufferString(`{"version":"99"}`), false)
	assert.Error(t, err)
}

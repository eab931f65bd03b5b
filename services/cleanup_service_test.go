package services

import (
	"testing"
	"time"

	"game-session-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedOrphanSession writes a waiting session with no membership, backdated
// to createdAt.
func seedOrphanSession(t *testing.T, env *testEnv, createdAt time.Time) *models.GameSession {
	t.Helper()

	session := models.GameSession{
		ID:        uuid.NewString(),
		GameType:  models.GameTypeTicTacToe,
		CreatorID: uuid.NewString(),
	}
	session.JoinCode = session.ID[:8]
	session.SetDefaults()
	require.NoError(t, env.db.Create(&session).Error)
	require.NoError(t, env.db.Model(&models.GameSession{}).
		Where("id = ?", session.ID).
		Update("created_at", createdAt).Error)
	return &session
}

func TestCleanupStale_DeletesOnlyMatchingSessions(t *testing.T) {
	env := newTestEnv(t)
	cutoff := time.Now().Add(-1 * time.Hour)
	old := cutoff.Add(-24 * time.Hour)

	// stale: waiting, zero players, old
	stale := seedOrphanSession(t, env, old)

	// too recent to collect
	fresh := seedOrphanSession(t, env, time.Now())

	// old and waiting but joined: kept
	creator := seedPlayer(t, env.db, "Player 1", "user-1")
	joined := env.seedSession(t, creator, "user-1", 2, 4)
	require.NoError(t, env.db.Model(&models.GameSession{}).
		Where("id = ?", joined.ID).
		Update("created_at", old).Error)

	deleted, err := env.sessions.cleanupStale(cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, err = loadSession(env.db, stale.ID)
	var ne *NotFoundError
	assert.ErrorAs(t, err, &ne)

	_, err = loadSession(env.db, fresh.ID)
	assert.NoError(t, err)
	_, err = loadSession(env.db, joined.ID)
	assert.NoError(t, err)
}

func TestCleanupStale_IgnoresNonWaitingSessions(t *testing.T) {
	env := newTestEnv(t)
	cutoff := time.Now().Add(-1 * time.Hour)
	old := cutoff.Add(-24 * time.Hour)

	active := seedOrphanSession(t, env, old)
	require.NoError(t, env.db.Model(&models.GameSession{}).
		Where("id = ?", active.ID).
		Update("status", models.StatusActive).Error)

	deleted, err := env.sessions.cleanupStale(cutoff)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestCleanupStale_EmptyTable(t *testing.T) {
	env := newTestEnv(t)

	deleted, err := env.sessions.cleanupStale(time.Now())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

package services

import (
	"testing"

	"game-session-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startedSession seeds a 2-player active session started by the creator,
// so the turn index begins at 0.
func startedSession(t *testing.T, env *testEnv) (*models.GameSession, *models.Player, *models.Player) {
	t.Helper()

	creator := seedPlayer(t, env.db, "Player 1", "user-1")
	second := seedPlayer(t, env.db, "Player 2", "user-2")
	session := env.seedSession(t, creator, "user-1", 2, 4)

	_, err := env.lifecycle.addPlayer(session.ID, "user-2")
	require.NoError(t, err)
	require.NoError(t, env.lifecycle.start(session.ID, creator.ID))
	return session, creator, second
}

func TestAdvanceTurn_WrapsOverJoinOrder(t *testing.T) {
	env := newTestEnv(t)
	session, creator, second := startedSession(t, env)

	current, err := env.turns.currentPlayer(session.ID)
	require.NoError(t, err)
	assert.Equal(t, creator.ID, current.ID)

	// 0 -> 1
	require.NoError(t, env.turns.advanceTurn(session.ID))
	loaded, err := loadSession(env.db, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.CurrentPlayerIndex)
	assert.EqualValues(t, 1, loaded.State["current_player_index"])

	current, err = env.turns.currentPlayer(session.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	// 1 -> 0 wraps
	require.NoError(t, env.turns.advanceTurn(session.ID))
	loaded, err = loadSession(env.db, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.CurrentPlayerIndex)
	assert.EqualValues(t, 0, loaded.State["current_player_index"])
}

func TestAdvanceTurn_RejectsWaitingSession(t *testing.T) {
	env := newTestEnv(t)
	creator := seedPlayer(t, env.db, "Player 1", "user-1")
	session := env.seedSession(t, creator, "user-1", 2, 4)

	err := env.turns.advanceTurn(session.ID)
	var se *IllegalStateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.StatusWaiting, se.Status)

	// index left unchanged
	loaded, err := loadSession(env.db, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.CurrentPlayerIndex)
}

func TestAdvanceTurn_RejectsFinishedSession(t *testing.T) {
	env := newTestEnv(t)
	session, _, _ := startedSession(t, env)
	require.NoError(t, env.lifecycle.finish(session.ID))

	var se *IllegalStateError
	assert.ErrorAs(t, env.turns.advanceTurn(session.ID), &se)
}

func TestAdvanceTurn_PreservesOpaqueState(t *testing.T) {
	env := newTestEnv(t)
	session, _, _ := startedSession(t, env)

	_, err := env.lifecycle.mergeState(session.ID, map[string]interface{}{"board": "X--------"})
	require.NoError(t, err)
	require.NoError(t, env.turns.advanceTurn(session.ID))

	loaded, err := loadSession(env.db, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "X--------", loaded.State["board"])
	assert.EqualValues(t, 1, loaded.State["current_player_index"])
}

func TestCurrentPlayer_NoPlayers(t *testing.T) {
	env := newTestEnv(t)

	// membershipless session written directly, bypassing creator auto-join
	orphan := models.GameSession{
		ID:        uuid.NewString(),
		GameType:  models.GameTypeTicTacToe,
		CreatorID: uuid.NewString(),
	}
	orphan.JoinCode = orphan.ID[:8]
	orphan.SetDefaults()
	require.NoError(t, env.db.Create(&orphan).Error)

	player, err := env.turns.currentPlayer(orphan.ID)
	require.NoError(t, err)
	assert.Nil(t, player)
}

func TestCurrentPlayer_UnknownSession(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.turns.currentPlayer("missing")
	var ne *NotFoundError
	assert.ErrorAs(t, err, &ne)
}

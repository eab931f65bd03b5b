package services

import (
	"fmt"
	"testing"

	"game-session-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a per-test in-memory database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Player{},
		&models.GameSession{},
		&models.GamePlayer{},
	))
	return db
}

// seedPlayer mirrors a player owned by the given user.
func seedPlayer(t *testing.T, db *gorm.DB, name, externalUserID string) *models.Player {
	t.Helper()

	player := &models.Player{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		Name:           name,
	}
	require.NoError(t, db.Create(player).Error)
	return player
}

type testEnv struct {
	db        *gorm.DB
	players   *PlayerService
	sessions  *SessionService
	lifecycle *LifecycleService
	turns     *TurnService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	players := NewPlayerService(db)
	return &testEnv{
		db:        db,
		players:   players,
		sessions:  NewSessionService(db, players),
		lifecycle: NewLifecycleService(db, players, NewArchiveService(false)),
		turns:     NewTurnService(db),
	}
}

// seedSession creates a session through the service, so the creator is
// enrolled at turn order 0.
func (env *testEnv) seedSession(t *testing.T, creator *models.Player, userID string, min, max int) *models.GameSession {
	t.Helper()

	session, err := env.sessions.create(CreateSessionParams{
		Name:            "Friday Night Game",
		GameType:        models.GameTypeTicTacToe,
		MinPlayers:      min,
		MaxPlayers:      max,
		CreatorPlayerID: creator.ID,
	}, userID)
	require.NoError(t, err)
	return session
}

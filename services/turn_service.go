package services

import (
	"log"

	"game-session-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// TurnService is the turn engine: it computes whose turn it is and advances
// the turn index over the join-ordered player list. Join order is turn order;
// skip/reorder semantics belong to game-specific layers, not here.
type TurnService struct {
	DB *gorm.DB
}

func NewTurnService(db *gorm.DB) *TurnService {
	return &TurnService{DB: db}
}

// currentPlayer returns the player holding the turn, or nil when the session
// has no joined players.
func (s *TurnService) currentPlayer(sessionID string) (*models.Player, error) {
	session, err := loadSession(s.DB, sessionID)
	if err != nil {
		return nil, err
	}
	if len(session.Players) == 0 {
		return nil, nil
	}
	idx := session.CurrentPlayerIndex
	if idx < 0 || idx >= len(session.Players) {
		return nil, nil
	}
	player := session.Players[idx].Player
	return &player, nil
}

// advanceTurn moves the turn to the next player in join order, wrapping at
// the end. Only active sessions advance; the index and its mirror in the
// state payload update together or not at all.
func (s *TurnService) advanceTurn(sessionID string) error {
	return withConflictRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			session, err := loadSession(tx, sessionID)
			if err != nil {
				return err
			}
			if !session.Active() {
				return &IllegalStateError{Op: "advance the turn of", Status: session.Status}
			}

			next := (session.CurrentPlayerIndex + 1) % len(session.Players)
			log.Printf("[TURN] session %s advancing turn %d -> %d", session.ID, session.CurrentPlayerIndex, next)

			state := session.State.Merge(map[string]interface{}{
				"current_player_index": next,
			})
			return casUpdate(tx, session, map[string]interface{}{
				"current_player_index": next,
				"state":                state,
			})
		})
	})
}

// AdvanceTurn handles POST /sessions/:id/advance.
func (s *TurnService) AdvanceTurn(c *fiber.Ctx) error {
	if err := s.advanceTurn(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	session, err := loadSession(s.DB, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(serializeSession(session))
}

// GetCurrentPlayer handles GET /sessions/:id/current-player.
func (s *TurnService) GetCurrentPlayer(c *fiber.Ctx) error {
	player, err := s.currentPlayer(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if player == nil {
		return c.JSON(fiber.Map{"player": nil})
	}
	return c.JSON(fiber.Map{"player": PlayerSummary{ID: player.ID, Name: player.Name}})
}

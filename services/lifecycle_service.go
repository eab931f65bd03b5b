package services

import (
	"errors"
	"log"

	"game-session-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LifecycleService owns the mutating session operations: join, start,
// advance-adjacent state merges, finish and requeue. Every operation is one
// atomic read-modify-write guarded by the session revision; a lost race is
// retried once before surfacing as a conflict.
type LifecycleService struct {
	DB       *gorm.DB
	Registry PlayerRegistry
	Archive  *ArchiveService
}

func NewLifecycleService(db *gorm.DB, registry PlayerRegistry, archive *ArchiveService) *LifecycleService {
	return &LifecycleService{DB: db, Registry: registry, Archive: archive}
}

// casUpdate applies updates to the session iff its revision is unchanged
// since it was read, bumping the revision in the same statement. Zero rows
// affected means the race was lost and the surrounding transaction rolls back.
func casUpdate(tx *gorm.DB, session *models.GameSession, updates map[string]interface{}) error {
	updates["revision"] = session.Revision + 1
	res := tx.Model(&models.GameSession{}).
		Where("id = ? AND revision = ?", session.ID, session.Revision).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// withConflictRetry runs fn, retrying exactly once if it lost a revision race.
func withConflictRetry(fn func() error) error {
	err := fn()
	if errors.Is(err, ErrConflict) {
		err = fn()
	}
	return err
}

// addPlayer enrolls the acting user's player into a waiting session.
// The capacity check and the membership insert commit or roll back together.
func (s *LifecycleService) addPlayer(sessionID, actingUserID string) (*models.GamePlayer, error) {
	player, err := s.Registry.FindPlayerByUser(actingUserID)
	if err != nil {
		return nil, err
	}

	var membership *models.GamePlayer
	err = withConflictRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			session, err := loadSession(tx, sessionID)
			if err != nil {
				return err
			}
			if !session.Waiting() {
				return &IllegalStateError{Op: "join", Status: session.Status}
			}
			if len(session.Players) >= session.MaxPlayers {
				return &CapacityError{Max: session.MaxPlayers}
			}
			for _, gp := range session.Players {
				if gp.PlayerID == player.ID {
					return ErrAlreadyJoined
				}
			}

			membership = &models.GamePlayer{
				ID:            uuid.NewString(),
				GameSessionID: session.ID,
				PlayerID:      player.ID,
				TurnOrder:     len(session.Players),
			}
			if err := tx.Create(membership).Error; err != nil {
				return err
			}
			// Revision bump makes the capacity check part of the same race:
			// a concurrent join invalidates this one and rolls the insert back.
			return casUpdate(tx, session, map[string]interface{}{})
		})
	})
	if err != nil {
		return nil, err
	}
	membership.Player = *player
	return membership, nil
}

// start moves a waiting session to active, once quorum is met and the
// starting player holds a membership. The starter moves first: the turn index
// is set to the starter's join position and play proceeds in join order.
func (s *LifecycleService) start(sessionID, playerID string) error {
	return withConflictRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			session, err := loadSession(tx, sessionID)
			if err != nil {
				return err
			}
			log.Printf("[LIFECYCLE] starting session %s with player %s (status=%s players=%d min=%d max=%d)",
				session.ID, playerID, session.Status, len(session.Players), session.MinPlayers, session.MaxPlayers)

			if !session.Waiting() {
				return &IllegalStateError{Op: "start", Status: session.Status}
			}
			var starter *models.GamePlayer
			for i := range session.Players {
				if session.Players[i].PlayerID == playerID {
					starter = &session.Players[i]
					break
				}
			}
			if starter == nil {
				return &NotFoundError{Resource: "joined player", ID: playerID}
			}

			prev := session.Status
			session.Status = models.StatusActive
			session.CurrentPlayerIndex = starter.TurnOrder
			if fieldErrs := session.Validate(prev); len(fieldErrs) > 0 {
				return &ValidationError{Fields: fieldErrs}
			}

			state := session.State.Merge(map[string]interface{}{
				"current_player_index": session.CurrentPlayerIndex,
			})
			return casUpdate(tx, session, map[string]interface{}{
				"status":               models.StatusActive,
				"current_player_index": session.CurrentPlayerIndex,
				"state":                state,
			})
		})
	})
}

// finish moves an active session to finished. Finishing twice fails: the
// second call sees a finished session and is rejected.
func (s *LifecycleService) finish(sessionID string) error {
	var finished *models.GameSession
	err := withConflictRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			session, err := loadSession(tx, sessionID)
			if err != nil {
				return err
			}
			if !session.Active() {
				return &IllegalStateError{Op: "finish", Status: session.Status}
			}
			prev := session.Status
			session.Status = models.StatusFinished
			if fieldErrs := session.Validate(prev); len(fieldErrs) > 0 {
				return &ValidationError{Fields: fieldErrs}
			}
			if err := casUpdate(tx, session, map[string]interface{}{
				"status": models.StatusFinished,
			}); err != nil {
				return err
			}
			finished = session
			return nil
		})
	})
	if err != nil {
		return err
	}
	if s.Archive != nil {
		s.Archive.ArchiveSession(finished)
	}
	return nil
}

// requeue reopens a finished session for a rematch. Membership and turn
// order are kept; the turn index is reset and the state payload cleared.
func (s *LifecycleService) requeue(sessionID string) error {
	return withConflictRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			session, err := loadSession(tx, sessionID)
			if err != nil {
				return err
			}
			if !session.Finished() {
				return &IllegalStateError{Op: "requeue", Status: session.Status}
			}
			prev := session.Status
			session.Status = models.StatusWaiting
			if fieldErrs := session.Validate(prev); len(fieldErrs) > 0 {
				return &ValidationError{Fields: fieldErrs}
			}
			return casUpdate(tx, session, map[string]interface{}{
				"status":               models.StatusWaiting,
				"current_player_index": 0,
				"state":                models.StateMap{},
			})
		})
	})
}

// mergeState overlays caller-supplied keys onto the opaque state payload of
// an active session. The payload is never interpreted here; the engine-owned
// current_player_index key is reserved and rejected.
func (s *LifecycleService) mergeState(sessionID string, patch map[string]interface{}) (*models.GameSession, error) {
	if _, ok := patch["current_player_index"]; ok {
		return nil, &ValidationError{Fields: []models.FieldError{
			{Field: "state", Message: "current_player_index is managed by the turn engine"},
		}}
	}

	var updated *models.GameSession
	err := withConflictRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			session, err := loadSession(tx, sessionID)
			if err != nil {
				return err
			}
			if !session.Active() {
				return &IllegalStateError{Op: "update state of", Status: session.Status}
			}
			merged := session.State.Merge(patch)
			if err := casUpdate(tx, session, map[string]interface{}{"state": merged}); err != nil {
				return err
			}
			session.State = merged
			session.Revision++
			updated = session
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddPlayer handles POST /sessions/:id/join for the acting user.
func (s *LifecycleService) AddPlayer(c *fiber.Ctx) error {
	actingUserID, _ := c.Locals("user_id").(string)
	membership, err := s.addPlayer(c.Params("id"), actingUserID)
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("[LIFECYCLE] player %s joined session %s at position %d",
		membership.PlayerID, membership.GameSessionID, membership.TurnOrder)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         membership.ID,
		"player_id":  membership.PlayerID,
		"turn_order": membership.TurnOrder,
		"player":     PlayerSummary{ID: membership.PlayerID, Name: membership.Player.Name},
	})
}

// StartSession handles POST /sessions/:id/start. The starting player must
// belong to the acting user.
func (s *LifecycleService) StartSession(c *fiber.Ctx) error {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.PlayerID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "player_id is required"})
	}

	actingUserID, _ := c.Locals("user_id").(string)
	player, err := s.Registry.FindPlayer(req.PlayerID)
	if err != nil {
		return respondError(c, err)
	}
	if !s.Registry.PlayerBelongsToUser(player, actingUserID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "player does not belong to the current user"})
	}

	if err := s.start(c.Params("id"), req.PlayerID); err != nil {
		return respondError(c, err)
	}
	session, err := loadSession(s.DB, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(serializeSession(session))
}

// FinishSession handles POST /sessions/:id/finish.
func (s *LifecycleService) FinishSession(c *fiber.Ctx) error {
	if err := s.finish(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	session, err := loadSession(s.DB, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(serializeSession(session))
}

// RequeueSession handles POST /sessions/:id/requeue.
func (s *LifecycleService) RequeueSession(c *fiber.Ctx) error {
	if err := s.requeue(c.Params("id")); err != nil {
		return respondError(c, err)
	}
	session, err := loadSession(s.DB, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(serializeSession(session))
}

// MergeState handles PATCH /sessions/:id/state.
func (s *LifecycleService) MergeState(c *fiber.Ctx) error {
	var patch map[string]interface{}
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	session, err := s.mergeState(c.Params("id"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(serializeSession(session))
}

package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"game-session-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type SessionService struct {
	DB       *gorm.DB
	Registry PlayerRegistry
}

func NewSessionService(db *gorm.DB, registry PlayerRegistry) *SessionService {
	return &SessionService{DB: db, Registry: registry}
}

// CreateSessionParams is the caller-facing shape for session creation.
// Zero min/max fall back to the 2/2 defaults.
type CreateSessionParams struct {
	Name            string          `json:"name"`
	GameType        models.GameType `json:"game_type"`
	MinPlayers      int             `json:"min_players"`
	MaxPlayers      int             `json:"max_players"`
	State           models.StateMap `json:"state"`
	CreatorPlayerID string          `json:"player_id"`
}

// PlayerSummary is the per-player slice of the session transport shape.
type PlayerSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionResponse is the serialized representation of a session for transport.
type SessionResponse struct {
	ID                 string               `json:"id"`
	Name               string               `json:"name,omitempty"`
	JoinCode           string               `json:"join_code,omitempty"`
	Status             models.SessionStatus `json:"status"`
	GameType           models.GameType      `json:"game_type"`
	MinPlayers         int                  `json:"min_players"`
	MaxPlayers         int                  `json:"max_players"`
	CreatorID          string               `json:"creator_id"`
	CurrentPlayerIndex int                  `json:"current_player_index"`
	State              models.StateMap      `json:"state"`
	Players            []PlayerSummary      `json:"players"`
}

func serializeSession(gs *models.GameSession) SessionResponse {
	players := make([]PlayerSummary, 0, len(gs.Players))
	for _, gp := range gs.Players {
		players = append(players, PlayerSummary{ID: gp.PlayerID, Name: gp.Player.Name})
	}
	return SessionResponse{
		ID:                 gs.ID,
		Name:               gs.Name,
		JoinCode:           gs.JoinCode,
		Status:             gs.Status,
		GameType:           gs.GameType,
		MinPlayers:         gs.MinPlayers,
		MaxPlayers:         gs.MaxPlayers,
		CreatorID:          gs.CreatorID,
		CurrentPlayerIndex: gs.CurrentPlayerIndex,
		State:              gs.State,
		Players:            players,
	}
}

// loadSession fetches a session with its membership in join order.
func loadSession(tx *gorm.DB, id string) (*models.GameSession, error) {
	var session models.GameSession
	err := tx.
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("turn_order asc") }).
		Preload("Players.Player").
		First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "session", ID: id}
		}
		return nil, err
	}
	return &session, nil
}

// create builds, validates and persists a new session. The creator player
// must exist and belong to the acting user, and is enrolled as the first
// member inside the same transaction so no zero-player window is observable.
func (s *SessionService) create(params CreateSessionParams, actingUserID string) (*models.GameSession, error) {
	session := &models.GameSession{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(params.Name),
		GameType:   params.GameType,
		MinPlayers: params.MinPlayers,
		MaxPlayers: params.MaxPlayers,
		State:      params.State,
		CreatorID:  params.CreatorPlayerID,
	}
	session.SetDefaults()
	if session.Name != "" {
		session.JoinCode = slug.Make(session.Name) + "-" + session.ID[:8]
	} else {
		session.JoinCode = session.ID[:8]
	}

	fieldErrs := session.Validate(models.StatusWaiting)

	var creator *models.Player
	if session.CreatorID != "" {
		var err error
		creator, err = s.Registry.FindPlayer(session.CreatorID)
		var nf *NotFoundError
		switch {
		case errors.As(err, &nf):
			fieldErrs = append(fieldErrs, models.FieldError{Field: "creator_id", Message: "must be a valid player"})
		case err != nil:
			return nil, err
		case !s.Registry.PlayerBelongsToUser(creator, actingUserID):
			fieldErrs = append(fieldErrs, models.FieldError{Field: "creator_id", Message: "must belong to the current user"})
		}
	}
	if len(fieldErrs) > 0 {
		return nil, &ValidationError{Fields: fieldErrs}
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Players", "Creator").Create(session).Error; err != nil {
			return err
		}
		membership := models.GamePlayer{
			ID:            uuid.NewString(),
			GameSessionID: session.ID,
			PlayerID:      creator.ID,
			TurnOrder:     0,
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}
		membership.Player = *creator
		session.Players = []models.GamePlayer{membership}
		return nil
	})
	if err != nil {
		log.Printf("[SESSION] failed to create session: %v", err)
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// destroy removes a session. Only waiting sessions with zero joined players
// qualify; anything else is live state and refused.
func (s *SessionService) destroy(id string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		session, err := loadSession(tx, id)
		if err != nil {
			return err
		}
		if !session.Waiting() {
			return &IllegalStateError{Op: "destroy", Status: session.Status}
		}
		if len(session.Players) > 0 {
			return &IllegalStateError{Op: "destroy a joined", Status: session.Status}
		}
		return tx.Delete(&models.GameSession{}, "id = ?", id).Error
	})
}

// CreateSession handles POST /sessions.
func (s *SessionService) CreateSession(c *fiber.Ctx) error {
	var params CreateSessionParams
	if err := c.BodyParser(&params); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	actingUserID, _ := c.Locals("user_id").(string)

	session, err := s.create(params, actingUserID)
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("[SESSION] created session %s (%s) by user %s", session.ID, session.GameType, actingUserID)
	return c.Status(fiber.StatusCreated).JSON(serializeSession(session))
}

// GetSession handles GET /sessions/:id.
func (s *SessionService) GetSession(c *fiber.Ctx) error {
	session, err := loadSession(s.DB, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(serializeSession(session))
}

// GetAllSessions handles GET /sessions with an optional ?status= filter.
func (s *SessionService) GetAllSessions(c *fiber.Ctx) error {
	query := s.DB.
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("turn_order asc") }).
		Preload("Players.Player").
		Order("created_at desc")

	if status := c.Query("status"); status != "" {
		if !models.SessionStatus(status).Valid() {
			return c.Status(400).JSON(fiber.Map{"error": fmt.Sprintf("invalid status filter %q", status)})
		}
		query = query.Where("status = ?", status)
	}

	var sessions []models.GameSession
	if err := query.Find(&sessions).Error; err != nil {
		log.Printf("[SESSION] error loading sessions: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error loading sessions"})
	}

	out := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, serializeSession(&sessions[i]))
	}
	return c.JSON(fiber.Map{"sessions": out, "count": len(out)})
}

// GetJoinableSessions handles GET /sessions/joinable: waiting sessions that
// still have an open seat.
func (s *SessionService) GetJoinableSessions(c *fiber.Ctx) error {
	var sessions []models.GameSession
	err := s.DB.
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("turn_order asc") }).
		Preload("Players.Player").
		Where("status = ?", models.StatusWaiting).
		Order("created_at desc").
		Find(&sessions).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error loading sessions"})
	}

	out := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		if len(sessions[i].Players) < sessions[i].MaxPlayers {
			out = append(out, serializeSession(&sessions[i]))
		}
	}
	return c.JSON(fiber.Map{"sessions": out, "count": len(out)})
}

// DeleteSession handles DELETE /sessions/:id.
func (s *SessionService) DeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.destroy(id); err != nil {
		return respondError(c, err)
	}
	log.Printf("[SESSION] destroyed session %s", id)
	return c.SendStatus(fiber.StatusNoContent)
}

package services

import (
	"errors"

	"game-session-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PlayerRegistry is what the session core needs from the player side:
// existence lookups and ownership checks. Backed by the locally mirrored
// Player table (see workers.PlayerSyncWorker).
type PlayerRegistry interface {
	FindPlayer(id string) (*models.Player, error)
	FindPlayerByUser(externalUserID string) (*models.Player, error)
	PlayerBelongsToUser(p *models.Player, externalUserID string) bool
}

type PlayerService struct {
	DB *gorm.DB
}

func NewPlayerService(db *gorm.DB) *PlayerService {
	return &PlayerService{DB: db}
}

func (s *PlayerService) FindPlayer(id string) (*models.Player, error) {
	var player models.Player
	if err := s.DB.First(&player, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "player", ID: id}
		}
		return nil, err
	}
	return &player, nil
}

func (s *PlayerService) FindPlayerByUser(externalUserID string) (*models.Player, error) {
	var player models.Player
	if err := s.DB.First(&player, "external_user_id = ?", externalUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "player for user", ID: externalUserID}
		}
		return nil, err
	}
	return &player, nil
}

func (s *PlayerService) PlayerBelongsToUser(p *models.Player, externalUserID string) bool {
	return p != nil && p.BelongsTo(externalUserID)
}

// SearchPlayers looks up mirrored players by name prefix, for invite pickers.
func (s *PlayerService) SearchPlayers(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(400).JSON(fiber.Map{"error": "query parameter 'q' required"})
	}
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var players []models.Player
	if err := s.DB.
		Where("name ILIKE ? AND is_banned = false", query+"%").
		Order("name asc").
		Limit(limit).
		Find(&players).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error searching players"})
	}

	return c.JSON(fiber.Map{"players": players, "count": len(players)})
}

// GetPlayer returns a single mirrored player.
func (s *PlayerService) GetPlayer(c *fiber.Ctx) error {
	player, err := s.FindPlayer(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(player)
}

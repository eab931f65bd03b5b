package services

import (
	"log"
	"time"

	"game-session-system/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
)

// cleanupBatchSize bounds a single sweep so the delete never holds locks for
// an unbounded scan. Leftovers are picked up by the next run.
const cleanupBatchSize = 500

// cleanupStale deletes sessions that were never joined: status waiting, zero
// members, created before cutoff. All three predicates must hold — a waiting
// session with even one player is live and kept. Returns the number deleted.
//
// Safe to run alongside normal traffic: creation enrolls the creator in the
// same transaction, so no mid-creation session is ever visible with zero
// players.
func (s *SessionService) cleanupStale(cutoff time.Time) (int64, error) {
	staleIDs := s.DB.Model(&models.GameSession{}).
		Select("game_sessions.id").
		Joins("LEFT JOIN game_players ON game_players.game_session_id = game_sessions.id AND game_players.deleted_at IS NULL").
		Where("game_sessions.status = ? AND game_sessions.created_at < ?", models.StatusWaiting, cutoff).
		Group("game_sessions.id").
		Having("COUNT(game_players.id) = 0").
		Limit(cleanupBatchSize)

	res := s.DB.Where("id IN (?)", staleIDs).Delete(&models.GameSession{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// CleanupSessions handles POST /admin/sessions/cleanup?before=RFC3339.
func (s *SessionService) CleanupSessions(c *fiber.Ctx) error {
	beforeStr := c.Query("before")
	if beforeStr == "" {
		return c.Status(400).JSON(fiber.Map{"error": "query parameter 'before' required (RFC3339)"})
	}
	cutoff, err := time.Parse(time.RFC3339, beforeStr)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid 'before' timestamp (use RFC3339)"})
	}

	deleted, err := s.cleanupStale(cutoff)
	if err != nil {
		log.Printf("[CLEANUP] sweep failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "cleanup failed"})
	}
	return c.JSON(fiber.Map{
		"message":       "deleted unused game sessions created before " + cutoff.Format(time.RFC3339),
		"deleted_count": deleted,
	})
}

// StartCleanupScheduler sweeps stale sessions on an interval, deleting
// waiting sessions older than ttl that nobody ever joined.
func (s *SessionService) StartCleanupScheduler(ttl time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-ttl)
			deleted, err := s.cleanupStale(cutoff)
			if err != nil {
				log.Printf("[CLEANUP] scheduled sweep failed: %v", err)
				return
			}
			if deleted > 0 {
				log.Printf("[CLEANUP] removed %d stale sessions older than %s", deleted, cutoff.Format(time.RFC3339))
			}
		}),
	)
}

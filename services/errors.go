package services

import (
	"errors"
	"fmt"

	"game-session-system/models"

	"github.com/gofiber/fiber/v2"
)

// Every error produced by the session core is a per-request outcome; nothing
// here is fatal to the process. Handlers translate them with respondError.

// ValidationError carries field-level failures from the session state machine.
type ValidationError struct {
	Fields []models.FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s %s", e.Fields[0].Field, e.Fields[0].Message)
}

// IllegalStateError means the operation is not allowed in the session's
// current status. Retrying without changing state will not help.
type IllegalStateError struct {
	Op     string
	Status models.SessionStatus
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("cannot %s a %s session", e.Op, e.Status)
}

// CapacityError means the session already holds max_players members.
type CapacityError struct {
	Max int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("session is full (%d players max)", e.Max)
}

// NotFoundError maps to a missing-resource response.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ErrConflict signals a lost race on the session revision check. The
// lifecycle service retries once internally; if it still surfaces, the
// caller should treat the failure as transient.
var ErrConflict = errors.New("session was modified concurrently")

// ErrAlreadyJoined is returned when a player holds a membership in the
// session already.
var ErrAlreadyJoined = errors.New("player already joined this session")

// respondError maps core errors onto HTTP responses in one place so every
// handler reports failures the same way.
func respondError(c *fiber.Ctx, err error) error {
	var (
		ve *ValidationError
		se *IllegalStateError
		ce *CapacityError
		ne *NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": ve.Fields,
		})
	case errors.As(err, &se):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": se.Error()})
	case errors.As(err, &ce):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": ce.Error()})
	case errors.As(err, &ne):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ne.Error()})
	case errors.Is(err, ErrAlreadyJoined):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error(), "retryable": true})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

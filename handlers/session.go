package handlers

import (
	"game-session-system/middleware"
	"game-session-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSessionRoutes(app *fiber.App, sessionService *services.SessionService, lifecycleService *services.LifecycleService, turnService *services.TurnService, playerService *services.PlayerService) {
	// 🔓 Public routes: browse sessions without auth context
	app.Get("/sessions/joinable", sessionService.GetJoinableSessions)
	app.Get("/sessions/:id", sessionService.GetSession)
	app.Get("/sessions/:id/current-player", turnService.GetCurrentPlayer)

	// 🔐 Authenticated routes — Gateway-supplied user context required
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Session CRUD
	secured.Post("/sessions", sessionService.CreateSession)
	secured.Get("/sessions", sessionService.GetAllSessions)
	secured.Delete("/sessions/:id", sessionService.DeleteSession)

	// Lifecycle
	secured.Post("/sessions/:id/join", lifecycleService.AddPlayer)
	secured.Post("/sessions/:id/start", lifecycleService.StartSession)
	secured.Post("/sessions/:id/finish", lifecycleService.FinishSession)
	secured.Post("/sessions/:id/requeue", lifecycleService.RequeueSession)

	// Turn engine + game state
	secured.Post("/sessions/:id/advance", turnService.AdvanceTurn)
	secured.Patch("/sessions/:id/state", lifecycleService.MergeState)

	// Player registry
	secured.Get("/players/search", playerService.SearchPlayers)
	secured.Get("/players/:id", playerService.GetPlayer)

	// 🔒 Admin-only maintenance
	admin := secured.Group("/admin")
	admin.Post("/sessions/cleanup", sessionService.CleanupSessions)
}

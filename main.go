package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"game-session-system/handlers"
	"game-session-system/middleware"
	"game-session-system/models"
	"game-session-system/services"
	"game-session-system/utils"
	"game-session-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // sessions are small JSON payloads
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Player{},
		&models.GameSession{},
		&models.GamePlayer{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// R2 archival of finished sessions is optional; the lifecycle never
	// depends on it.
	archiveEnabled := strings.ToLower(os.Getenv("ARCHIVE_FINISHED_SESSIONS")) == "true"
	if archiveEnabled {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
	}

	playerService := services.NewPlayerService(db)
	sessionService := services.NewSessionService(db, playerService)
	archiveService := services.NewArchiveService(archiveEnabled)
	lifecycleService := services.NewLifecycleService(db, playerService, archiveService)
	turnService := services.NewTurnService(db)

	// --- Profile sync worker configuration ---
	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("SESSION_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("SESSION_SERVICE_TOKEN environment variable not set")
	}

	syncWorker := workers.NewPlayerSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker.Start(ctx)

	sessionTTL := 24 * time.Hour
	if ttlStr := os.Getenv("SESSION_TTL_HOURS"); ttlStr != "" {
		if hours, err := strconv.Atoi(ttlStr); err == nil && hours > 0 {
			sessionTTL = time.Duration(hours) * time.Hour
		} else {
			log.Printf("⚠️  Ignoring invalid SESSION_TTL_HOURS=%q", ttlStr)
		}
	}
	sessionService.StartCleanupScheduler(sessionTTL)

	handlers.SetupSessionRoutes(app, sessionService, lifecycleService, turnService, playerService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Player sync worker running")
	log.Printf("✅ Stale session cleanup running (TTL %s)", sessionTTL)
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}

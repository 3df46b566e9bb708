package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitness-progression-system/handlers"
	"fitness-progression-system/middleware"
	"fitness-progression-system/models"
	"fitness-progression-system/services"
	"fitness-progression-system/utils"
	"fitness-progression-system/workers"

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

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-User-Roles",
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	// TranslateError lets the unique-index backstops surface as
	// gorm.ErrDuplicatedKey across drivers
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.ProgressionEvent{},
		&models.UserStats{},
		&models.UserAchievement{},
		&models.Challenge{},
		&models.UserChallenge{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	progressionService := services.NewProgressionService(db)
	achievementService := services.NewAchievementService(db)
	challengeService := services.NewChallengeService(db)

	// Weekly leaderboard is optional — the engine runs fine without Redis
	var leaderboardService *services.LeaderboardService
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		leaderboardService, err = services.NewLeaderboardService(addr, os.Getenv("REDIS_PASSWORD"), 0)
		if err != nil {
			log.Fatal("failed to connect to redis:", err)
		}
		progressionService.Leaderboard = leaderboardService
		achievementService.Progression.Leaderboard = leaderboardService
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ledger audit archive is optional — enabled when R2 credentials exist
	if os.Getenv("R2_BUCKET_NAME") != "" {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		archiveClient := workers.NewLedgerArchiveClient(db)
		go workers.PollLedgerArchive(ctx, archiveClient, 15*time.Minute)
		log.Println("✅ Ledger archive polling running (every 15m)")
	}

	progressionService.StartWeeklyReset()

	handlers.SetupProgressionRoutes(app, progressionService, achievementService, leaderboardService)
	handlers.SetupChallengeRoutes(app, challengeService, progressionService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Weekly XP reset scheduled (Mondays 00:00 UTC)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if leaderboardService != nil {
		_ = leaderboardService.Close()
	}
	_ = app.Shutdown()
}

package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/play2cash/backend/internal/api"
	"github.com/play2cash/backend/internal/config"
	"github.com/play2cash/backend/internal/database"
	"github.com/play2cash/backend/internal/events"
	"github.com/play2cash/backend/internal/match"
	"github.com/play2cash/backend/internal/migrations"
	"github.com/play2cash/backend/internal/redis"
	"github.com/play2cash/backend/internal/store"
	"github.com/play2cash/backend/internal/wallet"
	"github.com/play2cash/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	st := store.NewPostgres(db)
	pub := events.NewPublisher(rdb)
	ledger := wallet.NewLedger(st, pub)
	matches := match.NewService(st, cfg, pub)

	ctx := context.Background()

	// Reconciliation loop for expired WAITING matches
	matches.StartSweeper(ctx)

	// Live event relay: Redis pub/sub -> connected WebSocket clients
	hub := ws.NewHub()
	go ws.RunRelay(ctx, rdb, hub)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	api.SetupRoutes(router, api.Deps{
		DB:      db,
		Redis:   rdb,
		Config:  cfg,
		Store:   st,
		Ledger:  ledger,
		Matches: matches,
		Hub:     hub,
	})

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting Play2Cash server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

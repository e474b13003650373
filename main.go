// @title Exam Tracker API
// @version 1.0
// @description Backend for the exam preparation tracker: question catalogue, progress, articles and mock tests.

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"exam_tracker_backend/internal/app"
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/pkg/logger"
	"flag"
	"log"

	"github.com/joho/godotenv"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "run database migrations and exit")
	migrate := flag.Bool("migrate", false, "run database migrations on startup, even in release mode")
	flag.Parse()

	// .env is optional; deployed environments set variables directly
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded")
	}

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)

	if *migrateOnly {
		logger.Log.Info("Database migration finished, exiting")
		application.Close(context.Background())
		return
	}

	application.Run()
}

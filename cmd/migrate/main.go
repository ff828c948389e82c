package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"bookledger/internal/audit/ch"
	"bookledger/internal/config"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using existing environment variables")
	}

	cfg := &config.Config{}
	if err := config.LoadClickHouseFromEnv(cfg); err != nil {
		log.Fatalf("Failed to load ClickHouse configuration: %v", err)
	}

	db, err := ch.OpenDB(ch.DSN(
		cfg.ClickHouseHost,
		cfg.ClickHousePort,
		cfg.ClickHouseDatabase,
		cfg.ClickHouseUser,
		cfg.ClickHousePassword,
		cfg.ClickHouseUseTLS,
	))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to ClickHouse successfully")

	// Get command from arguments (default to "up")
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	// Everything except create reads the migrations compiled into the binary
	if command != "create" {
		if err := ch.UseEmbeddedMigrations(); err != nil {
			log.Fatal(err)
		}
	}

	log.Printf("Running migrations: %s", command)
	switch command {
	case "up":
		if err := goose.Up(db, "."); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Migrations completed successfully")
	case "down":
		if err := goose.Down(db, "."); err != nil {
			log.Fatalf("Failed to rollback migration: %v", err)
		}
		log.Println("Rollback completed successfully")
	case "status":
		if err := goose.Status(db, "."); err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}
	case "version":
		version, err := goose.GetDBVersion(db)
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
		log.Printf("Current migration version: %d", version)
	case "create":
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate create <migration_name>")
		}
		migrationName := os.Args[2]
		if err := goose.Create(db, "./migrations", migrationName, "sql"); err != nil {
			log.Fatalf("Failed to create migration: %v", err)
		}
		log.Printf("Created migration: %s", migrationName)
	default:
		log.Fatalf("Unknown command: %s. Available commands: up, down, status, version, create", command)
	}
}

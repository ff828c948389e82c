// Command library-dev runs the library API against a throwaway ClickHouse
// container with the sample books loaded.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"bookledger/internal/app"
	"bookledger/internal/audit/ch"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	log.Println("Starting ClickHouse testcontainer...")

	clickhouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:latest",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword("devpassword"),
		clickhouse.WithDatabase("default"),
	)
	if err != nil {
		return fmt.Errorf("failed to start ClickHouse container: %w", err)
	}

	// Ensure container cleanup on exit
	defer func() {
		log.Println("Stopping ClickHouse container...")
		if err := clickhouseContainer.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}()

	host, err := clickhouseContainer.Host(ctx)
	if err != nil {
		return fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	if err != nil {
		return fmt.Errorf("failed to get container port: %w", err)
	}

	log.Printf("ClickHouse started at %s:%s", host, port.Port())

	db, err := ch.OpenDB(ch.DSN(host, port.Int(), "default", "default", "devpassword", false))
	if err != nil {
		return err
	}
	err = ch.MigrateUp(db)
	db.Close()
	if err != nil {
		return err
	}

	// Set environment variables for the application
	os.Setenv("AUDIT_SINK", "clickhouse")
	os.Setenv("CLICKHOUSE_HOST", host)
	os.Setenv("CLICKHOUSE_PORT", port.Port())
	os.Setenv("CLICKHOUSE_DATABASE", "default")
	os.Setenv("CLICKHOUSE_USER", "default")
	os.Setenv("CLICKHOUSE_PASSWORD", "devpassword")
	os.Setenv("CLICKHOUSE_USE_TLS", "false")
	os.Setenv("SEED_DEMO", "true")

	// Set PORT for HTTP server if not already set
	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8080")
	}

	log.Println("Starting application with ClickHouse audit trail...")
	fmt.Println()

	application, err := app.New()
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Run blocks until SIGINT or SIGTERM, then the deferred Terminate runs
	return application.Run()
}

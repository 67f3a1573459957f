package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

func main() {
	target := flag.String("target", "primary", "which database to migrate: primary or backend")
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps (0 = all)")
	dbURL := flag.String("db-url", "", "database URL (overrides env)")
	flag.Parse()

	_ = godotenv.Load()

	var envVar, path string
	switch *target {
	case "primary":
		envVar, path = "PRICEWATCH_PRIMARY_DSN", "migrations/primary"
	case "backend":
		envVar, path = "PRICEWATCH_BACKEND_DSN", "migrations/backend"
	default:
		log.Fatalf("invalid target: %s (use 'primary' or 'backend')", *target)
	}

	dsn := *dbURL
	if dsn == "" {
		dsn = os.Getenv(envVar)
	}
	if dsn == "" {
		log.Fatalf("no database URL: set -db-url or %s", envVar)
	}

	m, err := migrate.New("file://"+path, dsn)
	if err != nil {
		log.Fatalf("failed to create migrator: %v", err)
	}
	defer m.Close()

	switch *direction {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	default:
		log.Fatalf("invalid direction: %s (use 'up' or 'down')", *direction)
	}

	if err != nil && err != migrate.ErrNoChange {
		log.Fatalf("migration failed: %v", err)
	}

	v, dirty, _ := m.Version()
	fmt.Printf("%s migration %s complete (version: %d, dirty: %v)\n", *target, *direction, v, dirty)
}

// This file is used to run database migrations
// How to run:
// go run cmd/migrate/main.go                      # Migrate the database from the default config
// go run cmd/migrate/main.go -config docconv.yaml # Migrate using an explicit config file
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/celestiaorg/docconv/config"
	"github.com/celestiaorg/docconv/internal/constants"
	"github.com/celestiaorg/docconv/internal/db"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", os.Getenv(constants.EnvConfigFile), "Path to the config file")
		retries    = flag.Int("retries", 5, "Number of connection retries")
		retryWait  = flag.Duration("retry-wait", 3*time.Second, "Wait time between retries")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	sslEnabled := cfg.Database.SSLEnabled
	opts := db.Options{
		Driver:     cfg.Database.Driver,
		Host:       cfg.Database.Host,
		User:       cfg.Database.User,
		Password:   cfg.Database.Password,
		DBName:     cfg.Database.Name,
		Port:       cfg.Database.Port,
		SSLEnabled: &sslEnabled,
		Path:       cfg.Database.Path,
	}

	for attempt := 1; ; attempt++ {
		// db.New migrates the schema once connected
		conn, err := db.New(opts)
		if err == nil {
			if sqlDB, err := conn.DB(); err == nil {
				_ = sqlDB.Close()
			}
			break
		}
		if attempt >= *retries {
			log.Fatalf("Migration failed after %d attempts: %v", attempt, err)
		}
		log.Printf("Database not ready (attempt %d/%d): %v", attempt, *retries, err)
		time.Sleep(*retryWait)
	}

	log.Printf("Migrated %s database", cfg.Database.Driver)
}

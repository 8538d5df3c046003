package main

import (
	"log"
	"os"

	"taskquest/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Applies a single SQL migration file given as the first argument.
// Schema changes normally flow through AutoMigrate; this exists for
// one-off data fixes that gorm cannot express.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <path/to/migration.sql>")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Read migration file
	sqlBytes, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to read migration file: %v", err)
	}

	// Execute migration
	log.Printf("Applying migration: %s", os.Args[1])
	if err := db.Exec(string(sqlBytes)).Error; err != nil {
		log.Fatalf("Failed to apply migration: %v", err)
	}

	log.Println("Migration applied successfully")
}

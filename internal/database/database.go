package database

import (
	"fmt"
	"log"

	"taskquest/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established successfully")
	return nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate() error {
	// Migrate core models first
	coreModels := []interface{}{
		&models.User{},
		&models.TeamMember{},
		&models.CreditWallet{},
		&models.CreditTransaction{},
		&models.CreditConfig{},
	}

	for _, model := range coreModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	// Migrate progression models
	progressionModels := []interface{}{
		&models.Badge{},
		&models.UserBadge{},
		&models.RewardEvent{},
		&models.Streak{},
	}

	for _, model := range progressionModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	// Migrate challenge models
	challengeModels := []interface{}{
		&models.Challenge{},
		&models.ChallengeParticipant{},
		&models.Contribution{},
		&models.Proof{},
		&models.ProofReview{},
		&models.Duel{},
	}

	for _, model := range challengeModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	// Migrate auxiliary models
	auxModels := []interface{}{
		&models.VoiceMemo{},
		&models.AuditLog{},
	}

	for _, model := range auxModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

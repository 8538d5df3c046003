package services

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskquest/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// A named in-memory database keeps the schema alive across the
	// connections gorm pools, while staying isolated per test.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.TeamMember{},
		&models.CreditWallet{},
		&models.CreditTransaction{},
		&models.CreditConfig{},
		&models.Badge{},
		&models.UserBadge{},
		&models.RewardEvent{},
		&models.Streak{},
		&models.Challenge{},
		&models.ChallengeParticipant{},
		&models.Contribution{},
		&models.Proof{},
		&models.ProofReview{},
		&models.Duel{},
		&models.VoiceMemo{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Level:        1,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func fundUser(t *testing.T, db *gorm.DB, credits *CreditService, userID uint, amount int64) {
	if _, err := credits.Credit(context.Background(), userID, amount, models.TxAdminGrant, "test funding", "", 0); err != nil {
		t.Fatalf("failed to fund user %d: %v", userID, err)
	}
}

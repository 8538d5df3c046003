package services

import (
	"context"
	"testing"
	"time"

	"taskquest/internal/models"
)

func TestXPForLevel(t *testing.T) {
	cases := []struct {
		level int
		xp    int64
	}{
		{0, 0},
		{1, 0},
		{2, 100},
		{3, 282},
		{5, 800},
		{10, 2700},
	}
	for _, tc := range cases {
		if got := XPForLevel(tc.level); got != tc.xp {
			t.Errorf("XPForLevel(%d) = %d, want %d", tc.level, got, tc.xp)
		}
	}
}

func TestLevelFromXP(t *testing.T) {
	cases := []struct {
		xp    int64
		level int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{281, 2},
		{282, 3},
		{800, 5},
		{2700, 10},
	}
	for _, tc := range cases {
		if got := LevelFromXP(tc.xp); got != tc.level {
			t.Errorf("LevelFromXP(%d) = %d, want %d", tc.xp, got, tc.level)
		}
	}
}

func TestAwardXPRecordsEventAndLevelsUp(t *testing.T) {
	db := setupTestDB(t)
	credits := NewCreditService(db)
	progression := NewProgressionService(db, credits)
	user := createTestUser(t, db, "grace")
	ctx := context.Background()

	result, err := progression.AwardXP(ctx, user.ID, 30, models.ReasonContributionApproved, "logged 5 km", nil, nil)
	if err != nil {
		t.Fatalf("failed to award xp: %v", err)
	}
	if result.LeveledUp {
		t.Error("30 XP should not level up from level 1")
	}
	if result.Event == nil || result.Event.XPAmount != 30 {
		t.Fatal("expected a 30 XP reward event")
	}

	result, err = progression.AwardXP(ctx, user.ID, 80, models.ReasonChallengeCompleted, "", nil, nil)
	if err != nil {
		t.Fatalf("failed to award xp: %v", err)
	}
	if !result.LeveledUp {
		t.Error("110 total XP should reach level 2")
	}
	if result.NewLevel != 2 {
		t.Errorf("expected level 2, got %d", result.NewLevel)
	}

	var levelUps int64
	if err := db.Model(&models.RewardEvent{}).
		Where("user_id = ? AND reason = ?", user.ID, models.ReasonLevelUp).
		Count(&levelUps).Error; err != nil {
		t.Fatalf("failed to count level up events: %v", err)
	}
	if levelUps != 1 {
		t.Errorf("expected 1 level_up event, got %d", levelUps)
	}

	var fresh models.User
	if err := db.First(&fresh, user.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if fresh.TotalPoints != 110 || fresh.Level != 2 {
		t.Errorf("expected 110 XP at level 2, got %d XP at level %d", fresh.TotalPoints, fresh.Level)
	}
}

func TestBadgesAwardedOnceWithCredits(t *testing.T) {
	db := setupTestDB(t)
	credits := NewCreditService(db)
	progression := NewProgressionService(db, credits)
	user := createTestUser(t, db, "heidi")
	ctx := context.Background()

	result, err := progression.AwardXP(ctx, user.ID, 15, models.ReasonContributionApproved, "", nil, nil)
	if err != nil {
		t.Fatalf("failed to award xp: %v", err)
	}
	if len(result.BadgesAwarded) != 1 || result.BadgesAwarded[0].Name != "First Steps" {
		t.Fatalf("expected First Steps badge, got %+v", result.BadgesAwarded)
	}

	// Same criterion must not fire twice.
	result, err = progression.AwardXP(ctx, user.ID, 5, models.ReasonPeerReview, "", nil, nil)
	if err != nil {
		t.Fatalf("failed to award xp: %v", err)
	}
	if len(result.BadgesAwarded) != 0 {
		t.Errorf("expected no new badges, got %+v", result.BadgesAwarded)
	}

	wallet, err := credits.GetOrCreateWallet(ctx, user.ID)
	if err != nil {
		t.Fatalf("failed to load wallet: %v", err)
	}
	if wallet.Balance != 5 {
		t.Errorf("expected 5 credits for a common badge, got %d", wallet.Balance)
	}

	var badges []models.UserBadge
	if err := db.Where("user_id = ?", user.ID).Find(&badges).Error; err != nil {
		t.Fatalf("failed to list user badges: %v", err)
	}
	if len(badges) != 1 {
		t.Errorf("expected 1 user badge row, got %d", len(badges))
	}
}

func TestGetUserStats(t *testing.T) {
	db := setupTestDB(t)
	credits := NewCreditService(db)
	progression := NewProgressionService(db, credits)
	user := createTestUser(t, db, "ivan")
	ctx := context.Background()

	if _, err := progression.AwardXP(ctx, user.ID, 150, models.ReasonChallengeWon, "", nil, nil); err != nil {
		t.Fatalf("failed to award xp: %v", err)
	}

	stats, err := progression.GetUserStats(ctx, user.ID)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.Level != 2 {
		t.Errorf("expected level 2, got %d", stats.Level)
	}
	if stats.XPIntoLevel != 50 {
		t.Errorf("expected 50 XP into level, got %d", stats.XPIntoLevel)
	}
	if stats.XPForNextLevel != 282 {
		t.Errorf("expected 282 XP for next level, got %d", stats.XPForNextLevel)
	}
	// 150 XP earns First Steps and Centurion.
	if stats.BadgeCount != 2 {
		t.Errorf("expected 2 badges, got %d", stats.BadgeCount)
	}
}

func TestDailyLoginBonusOncePerDay(t *testing.T) {
	db := setupTestDB(t)
	credits := NewCreditService(db)
	progression := NewProgressionService(db, credits)
	user := createTestUser(t, db, "judy")
	ctx := context.Background()

	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

	result, err := progression.AwardDailyLoginXP(ctx, user.ID, now)
	if err != nil {
		t.Fatalf("failed to award login bonus: %v", err)
	}
	if result == nil || result.Event.XPAmount != XPDailyLogin {
		t.Fatalf("expected a %d XP login bonus, got %+v", XPDailyLogin, result)
	}

	// A second login the same day claims nothing.
	result, err = progression.AwardDailyLoginXP(ctx, user.ID, now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("second award failed: %v", err)
	}
	if result != nil {
		t.Errorf("expected no bonus on repeat login, got %+v", result)
	}

	var count int64
	if err := db.Model(&models.RewardEvent{}).
		Where("user_id = ? AND reason = ?", user.ID, models.ReasonDailyLogin).
		Count(&count).Error; err != nil {
		t.Fatalf("failed to count events: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 daily_login event, got %d", count)
	}
}

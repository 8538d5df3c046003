package services

import (
	"context"
	"testing"
	"time"

	"taskquest/internal/models"
)

func streakServices(t *testing.T) (*StreakService, *CreditService, *models.User) {
	db := setupTestDB(t)
	credits := NewCreditService(db)
	progression := NewProgressionService(db, credits)
	streaks := NewStreakService(db, credits, progression)
	user := createTestUser(t, db, "judy")
	return streaks, credits, user
}

func day(offset int) time.Time {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func TestCheckInStartsAndIncrements(t *testing.T) {
	streaks, _, user := streakServices(t)
	ctx := context.Background()

	result, err := streaks.CheckIn(ctx, user.ID, "daily_login", "", day(0))
	if err != nil {
		t.Fatalf("first check-in failed: %v", err)
	}
	if result.Streak.CurrentCount != 1 || !result.Continued {
		t.Errorf("expected fresh streak of 1, got count=%d continued=%v", result.Streak.CurrentCount, result.Continued)
	}

	result, err = streaks.CheckIn(ctx, user.ID, "daily_login", "", day(1))
	if err != nil {
		t.Fatalf("second check-in failed: %v", err)
	}
	if result.Streak.CurrentCount != 2 {
		t.Errorf("expected count 2 after next-day check-in, got %d", result.Streak.CurrentCount)
	}

	// Same day again is a no-op.
	result, err = streaks.CheckIn(ctx, user.ID, "daily_login", "", day(1))
	if err != nil {
		t.Fatalf("same-day check-in failed: %v", err)
	}
	if result.Streak.CurrentCount != 2 || !result.Continued {
		t.Errorf("same-day check-in must not change count, got %d", result.Streak.CurrentCount)
	}
}

func TestCheckInGraceCoversShortGaps(t *testing.T) {
	streaks, _, user := streakServices(t)
	ctx := context.Background()

	if _, err := streaks.CheckIn(ctx, user.ID, "daily_login", "", day(0)); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}

	// One missed day costs one grace unit.
	result, err := streaks.CheckIn(ctx, user.ID, "daily_login", "", day(2))
	if err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	if !result.Continued || result.GraceConsumed != 1 {
		t.Errorf("expected continuation with 1 grace unit, got continued=%v grace=%d", result.Continued, result.GraceConsumed)
	}
	if result.Streak.CurrentCount != 2 {
		t.Errorf("expected count 2, got %d", result.Streak.CurrentCount)
	}

	// A second missed day exhausts the default grace of 2.
	result, err = streaks.CheckIn(ctx, user.ID, "daily_login", "", day(4))
	if err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	if !result.Continued {
		t.Error("one more missed day should still be covered by grace")
	}
	if result.Streak.GraceUsed != 2 {
		t.Errorf("expected 2 grace used, got %d", result.Streak.GraceUsed)
	}

	// No grace left: the next gap resets the streak.
	result, err = streaks.CheckIn(ctx, user.ID, "daily_login", "", day(6))
	if err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	if result.Continued {
		t.Error("gap beyond remaining grace must break the streak")
	}
	if result.Streak.CurrentCount != 1 || result.Streak.GraceUsed != 0 {
		t.Errorf("expected reset to count=1 grace=0, got count=%d grace=%d", result.Streak.CurrentCount, result.Streak.GraceUsed)
	}
	if result.Streak.BestCount != 3 {
		t.Errorf("best count should survive the reset, got %d", result.Streak.BestCount)
	}
}

func TestCheckInMilestoneRewards(t *testing.T) {
	streaks, credits, user := streakServices(t)
	ctx := context.Background()

	var milestone *CheckInResult
	for i := 0; i < 7; i++ {
		result, err := streaks.CheckIn(ctx, user.ID, "daily_login", "", day(i))
		if err != nil {
			t.Fatalf("check-in %d failed: %v", i, err)
		}
		milestone = result
	}

	if milestone.MilestoneDays != 7 {
		t.Fatalf("expected 7-day milestone, got %d", milestone.MilestoneDays)
	}

	var event models.RewardEvent
	if err := streaks.db.Where("user_id = ? AND reason = ?", user.ID, models.ReasonStreakMilestone).
		First(&event).Error; err != nil {
		t.Fatalf("expected a streak milestone event: %v", err)
	}
	if event.XPAmount != 25 {
		t.Errorf("expected 25 XP for a 7-day streak, got %d", event.XPAmount)
	}

	wallet, err := credits.GetOrCreateWallet(ctx, user.ID)
	if err != nil {
		t.Fatalf("failed to load wallet: %v", err)
	}
	// 10 for the milestone, 5 for First Steps, 20 for Streak Master.
	if wallet.Balance != 35 {
		t.Errorf("expected balance 35, got %d", wallet.Balance)
	}
}

func TestBreakOverdue(t *testing.T) {
	streaks, _, user := streakServices(t)
	ctx := context.Background()

	if _, err := streaks.CheckIn(ctx, user.ID, "daily_login", "", day(0)); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	if _, err := streaks.CheckIn(ctx, user.ID, "challenge", "42", day(0)); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}

	// Two days later both streaks are still salvageable with grace.
	broken, err := streaks.BreakOverdue(ctx, day(2))
	if err != nil {
		t.Fatalf("break overdue failed: %v", err)
	}
	if broken != 0 {
		t.Errorf("expected 0 broken streaks at day 2, got %d", broken)
	}

	// Four days of silence needs 3 grace units and only 2 exist.
	broken, err = streaks.BreakOverdue(ctx, day(4))
	if err != nil {
		t.Fatalf("break overdue failed: %v", err)
	}
	if broken != 2 {
		t.Errorf("expected 2 broken streaks at day 4, got %d", broken)
	}

	list, err := streaks.ListStreaks(ctx, user.ID)
	if err != nil {
		t.Fatalf("failed to list streaks: %v", err)
	}
	for _, st := range list {
		if st.CurrentCount != 0 {
			t.Errorf("streak %s/%s should be reset, got count %d", st.StreakType, st.ReferenceID, st.CurrentCount)
		}
		if st.BestCount != 1 {
			t.Errorf("best count should be preserved, got %d", st.BestCount)
		}
	}
}

func TestListAtRisk(t *testing.T) {
	streaks, _, user := streakServices(t)
	ctx := context.Background()

	if _, err := streaks.CheckIn(ctx, user.ID, "daily_login", "", day(0)); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}

	atRisk, err := streaks.ListAtRisk(ctx, day(1))
	if err != nil {
		t.Fatalf("list at risk failed: %v", err)
	}
	if len(atRisk) != 1 {
		t.Errorf("expected 1 at-risk streak one day after activity, got %d", len(atRisk))
	}

	atRisk, err = streaks.ListAtRisk(ctx, day(0))
	if err != nil {
		t.Fatalf("list at risk failed: %v", err)
	}
	if len(atRisk) != 0 {
		t.Errorf("expected no at-risk streaks on the activity day, got %d", len(atRisk))
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"taskquest/internal/models"
)

// StreakService handles consecutive-day activity tracking
type StreakService struct {
	db          *gorm.DB
	credits     *CreditService
	progression *ProgressionService
}

// NewStreakService creates a new StreakService
func NewStreakService(db *gorm.DB, credits *CreditService, progression *ProgressionService) *StreakService {
	return &StreakService{db: db, credits: credits, progression: progression}
}

// CheckInResult describes the outcome of one check-in.
type CheckInResult struct {
	Streak        *models.Streak `json:"streak"`
	Continued     bool           `json:"continued"`
	GraceConsumed int            `json:"grace_consumed"`
	// MilestoneDays is non-zero when this check-in landed exactly on a
	// rewarded streak length.
	MilestoneDays int `json:"milestone_days,omitempty"`
}

// CheckIn records activity for (user, streakType, referenceID) on the
// given date and advances the streak state machine.
//
// A gap of g days costs g-1 grace units. If the remaining grace covers
// the gap the streak continues, otherwise it resets to 1. Check-ins on
// the last recorded day, or earlier, change nothing.
func (s *StreakService) CheckIn(ctx context.Context, userID uint, streakType, referenceID string, activityDate time.Time) (*CheckInResult, error) {
	var result *CheckInResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.CheckInInTx(tx, userID, streakType, referenceID, activityDate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CheckInInTx is the composable form of CheckIn.
func (s *StreakService) CheckInInTx(tx *gorm.DB, userID uint, streakType, referenceID string, activityDate time.Time) (*CheckInResult, error) {
	day := truncateToDay(activityDate)

	var streak models.Streak
	err := forUpdate(tx).
		Where("user_id = ? AND streak_type = ? AND reference_id = ?", userID, streakType, referenceID).
		First(&streak).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		streak = models.Streak{
			UserID:           userID,
			StreakType:       streakType,
			ReferenceID:      referenceID,
			CurrentCount:     1,
			BestCount:        1,
			MaxGrace:         2,
			LastActivityDate: &day,
		}
		if err := tx.Create(&streak).Error; err != nil {
			return nil, fmt.Errorf("failed to create streak: %w", err)
		}
		result := &CheckInResult{Streak: &streak, Continued: true}
		if err := s.handleMilestone(tx, &streak, result); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	last := truncateToDay(*streak.LastActivityDate)
	gap := int(day.Sub(last).Hours() / 24)

	result := &CheckInResult{Streak: &streak}

	switch {
	case gap <= 0:
		// Same day or backdated: nothing to do.
		result.Continued = true
		return result, nil

	case gap == 1:
		streak.CurrentCount++
		result.Continued = true

	default:
		needed := gap - 1
		if streak.GraceUsed+needed <= streak.MaxGrace {
			streak.GraceUsed += needed
			streak.CurrentCount++
			result.Continued = true
			result.GraceConsumed = needed
		} else {
			streak.CurrentCount = 1
			streak.GraceUsed = 0
			result.Continued = false
		}
	}

	if streak.CurrentCount > streak.BestCount {
		streak.BestCount = streak.CurrentCount
	}
	streak.LastActivityDate = &day

	if err := tx.Model(&streak).Updates(map[string]interface{}{
		"current_count":      streak.CurrentCount,
		"best_count":         streak.BestCount,
		"grace_used":         streak.GraceUsed,
		"last_activity_date": streak.LastActivityDate,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update streak: %w", err)
	}

	if result.Continued {
		if err := s.handleMilestone(tx, &streak, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// handleMilestone awards XP and credits when the streak count lands
// exactly on a rewarded length.
func (s *StreakService) handleMilestone(tx *gorm.DB, streak *models.Streak, result *CheckInResult) error {
	xp := XPForStreakMilestone(streak.CurrentCount)
	if xp == 0 {
		return nil
	}
	result.MilestoneDays = streak.CurrentCount

	detail := fmt.Sprintf("%d-day streak (%s)", streak.CurrentCount, streak.StreakType)
	if _, err := s.progression.AwardXPInTx(tx, streak.UserID, xp, models.ReasonStreakMilestone, detail, nil, nil); err != nil {
		return err
	}

	cfg, err := s.credits.configInTx(tx)
	if err != nil {
		return err
	}
	var reward int64
	switch streak.CurrentCount {
	case 7:
		reward = cfg.RewardStreak7
	case 30:
		reward = cfg.RewardStreak30
	case 100:
		reward = cfg.RewardStreak100
	}
	if reward > 0 {
		if _, err := s.credits.CreditInTx(tx, streak.UserID, reward, models.TxStreakMilestone, detail, "streak", streak.ID); err != nil {
			return err
		}
	}
	return nil
}

// ListStreaks returns all streaks for a user.
func (s *StreakService) ListStreaks(ctx context.Context, userID uint) ([]models.Streak, error) {
	var streaks []models.Streak
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).Order("streak_type ASC, reference_id ASC").
		Find(&streaks).Error; err != nil {
		return nil, err
	}
	return streaks, nil
}

// ListAtRisk returns active streaks whose last activity was exactly one
// day before now, meaning the next missed day starts eating grace.
func (s *StreakService) ListAtRisk(ctx context.Context, now time.Time) ([]models.Streak, error) {
	yesterday := truncateToDay(now).AddDate(0, 0, -1)

	var streaks []models.Streak
	if err := s.db.WithContext(ctx).
		Where("current_count > 0 AND last_activity_date = ?", yesterday).
		Find(&streaks).Error; err != nil {
		return nil, err
	}
	return streaks, nil
}

// BreakOverdue resets streaks whose silence can no longer be covered by
// the remaining grace. Returns the number of streaks broken.
func (s *StreakService) BreakOverdue(ctx context.Context, now time.Time) (int, error) {
	today := truncateToDay(now)
	broken := 0

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var streaks []models.Streak
		if err := forUpdate(tx).
			Where("current_count > 0 AND last_activity_date IS NOT NULL").
			Find(&streaks).Error; err != nil {
			return err
		}

		for i := range streaks {
			st := &streaks[i]
			last := truncateToDay(*st.LastActivityDate)
			gap := int(today.Sub(last).Hours() / 24)
			if gap <= 1 {
				continue
			}
			// A check-in today would need gap-1 grace units; once even
			// that cannot save the streak it is dead.
			if st.GraceUsed+(gap-1) <= st.MaxGrace {
				continue
			}
			if err := tx.Model(st).Updates(map[string]interface{}{
				"current_count": 0,
				"grace_used":    0,
			}).Error; err != nil {
				return err
			}
			broken++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return broken, nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

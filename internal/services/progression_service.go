package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"taskquest/internal/models"
)

// XP awarded per reward reason.
const (
	XPContributionApproved = 10
	XPChallengeCompleted   = 50
	XPChallengeWon         = 100
	XPDuelLost             = 25
	XPDuelTie              = 50
	XPDailyLogin           = 5
	XPPhotoProof           = 5
	XPPeerReview           = 3
)

// XPForStreakMilestone maps a streak length to its one-time XP bonus.
// Lengths not present award nothing.
func XPForStreakMilestone(days int) int64 {
	switch days {
	case 7:
		return 25
	case 30:
		return 100
	case 100:
		return 500
	}
	return 0
}

// XPForLevel returns the cumulative XP needed to reach level.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(math.Floor(100 * math.Pow(float64(level-1), 1.5)))
}

// LevelFromXP returns the level a user with xp total points holds.
func LevelFromXP(xp int64) int {
	level := 1
	for xp >= XPForLevel(level+1) {
		level++
	}
	return level
}

// badgeSpec is one entry of the ordered badge criteria table.
type badgeSpec struct {
	name        string
	description string
	rarity      models.BadgeRarity
	earned      func(u *models.User, bestStreak int) bool
}

// badgeCriteria is evaluated in order on every progression change.
var badgeCriteria = []badgeSpec{
	{"First Steps", "Earn your first 10 XP", models.RarityCommon,
		func(u *models.User, _ int) bool { return u.TotalPoints >= 10 }},
	{"Centurion", "Earn 100 XP", models.RarityCommon,
		func(u *models.User, _ int) bool { return u.TotalPoints >= 100 }},
	{"Rising Star", "Reach level 5", models.RarityRare,
		func(u *models.User, _ int) bool { return u.Level >= 5 }},
	{"Dedicated", "Reach level 10", models.RarityRare,
		func(u *models.User, _ int) bool { return u.Level >= 10 }},
	{"Streak Master", "Hold a 7-day streak", models.RarityRare,
		func(_ *models.User, bestStreak int) bool { return bestStreak >= 7 }},
	{"Marathon Runner", "Hold a 30-day streak", models.RarityEpic,
		func(_ *models.User, bestStreak int) bool { return bestStreak >= 30 }},
	{"Legend", "Hold a 100-day streak", models.RarityEpic,
		func(_ *models.User, bestStreak int) bool { return bestStreak >= 100 }},
}

// ProgressionService handles XP, levels and badges
type ProgressionService struct {
	db      *gorm.DB
	credits *CreditService
}

// NewProgressionService creates a new ProgressionService
func NewProgressionService(db *gorm.DB, credits *CreditService) *ProgressionService {
	return &ProgressionService{db: db, credits: credits}
}

// AwardResult describes everything a single XP award triggered.
type AwardResult struct {
	Event         *models.RewardEvent `json:"event"`
	LeveledUp     bool                `json:"leveled_up"`
	NewLevel      int                 `json:"new_level"`
	BadgesAwarded []models.Badge      `json:"badges_awarded,omitempty"`
}

// AwardXP grants XP to a user, recording the reward event and running
// level-up and badge checks in one transaction.
func (s *ProgressionService) AwardXP(ctx context.Context, userID uint, amount int64, reason models.RewardReason, detail string, challengeID, contributionID *uint) (*AwardResult, error) {
	var result *AwardResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.AwardXPInTx(tx, userID, amount, reason, detail, challengeID, contributionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AwardXPInTx is the composable form of AwardXP.
func (s *ProgressionService) AwardXPInTx(tx *gorm.DB, userID uint, amount int64, reason models.RewardReason, detail string, challengeID, contributionID *uint) (*AwardResult, error) {
	if amount < 0 {
		return nil, fmt.Errorf("xp amount must not be negative")
	}

	var user models.User
	if err := forUpdate(tx).First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	event := &models.RewardEvent{
		UserID:         userID,
		XPAmount:       amount,
		Reason:         reason,
		ReasonDetail:   detail,
		ChallengeID:    challengeID,
		ContributionID: contributionID,
	}
	if err := tx.Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to record reward event: %w", err)
	}

	user.TotalPoints += amount
	oldLevel := user.Level
	user.Level = LevelFromXP(user.TotalPoints)

	if err := tx.Model(&user).Updates(map[string]interface{}{
		"total_points": user.TotalPoints,
		"level":        user.Level,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update user progression: %w", err)
	}

	result := &AwardResult{Event: event, NewLevel: user.Level}

	if user.Level > oldLevel {
		result.LeveledUp = true
		levelUp := &models.RewardEvent{
			UserID:       userID,
			XPAmount:     0,
			Reason:       models.ReasonLevelUp,
			ReasonDetail: fmt.Sprintf("Reached level %d", user.Level),
		}
		if err := tx.Create(levelUp).Error; err != nil {
			return nil, fmt.Errorf("failed to record level up: %w", err)
		}
	}

	badges, err := s.checkBadgesInTx(tx, &user)
	if err != nil {
		return nil, err
	}
	result.BadgesAwarded = badges

	return result, nil
}

// AwardDailyLoginXP grants the daily login XP at most once per calendar
// day. Returns nil, nil when today's bonus was already claimed.
func (s *ProgressionService) AwardDailyLoginXP(ctx context.Context, userID uint, now time.Time) (*AwardResult, error) {
	day := truncateToDay(now)

	var result *AwardResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.RewardEvent{}).
			Where("user_id = ? AND reason = ? AND created_at >= ?", userID, models.ReasonDailyLogin, day).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		var err error
		result, err = s.AwardXPInTx(tx, userID, XPDailyLogin, models.ReasonDailyLogin, "Daily login", nil, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CheckAndAwardBadges evaluates the badge criteria for a user outside of
// an XP award, for example after a streak update.
func (s *ProgressionService) CheckAndAwardBadges(ctx context.Context, userID uint) ([]models.Badge, error) {
	var badges []models.Badge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		var err error
		badges, err = s.checkBadgesInTx(tx, &user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return badges, nil
}

// CheckBadgesInTx runs the badge criteria inside an existing transaction.
func (s *ProgressionService) CheckBadgesInTx(tx *gorm.DB, userID uint) ([]models.Badge, error) {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return s.checkBadgesInTx(tx, &user)
}

func (s *ProgressionService) checkBadgesInTx(tx *gorm.DB, user *models.User) ([]models.Badge, error) {
	var bestStreak *int
	if err := tx.Model(&models.Streak{}).
		Where("user_id = ?", user.ID).
		Select("MAX(best_count)").Scan(&bestStreak).Error; err != nil {
		return nil, err
	}
	best := 0
	if bestStreak != nil {
		best = *bestStreak
	}

	var awarded []models.Badge
	for _, spec := range badgeCriteria {
		if !spec.earned(user, best) {
			continue
		}

		badge, err := s.ensureBadgeInTx(tx, spec)
		if err != nil {
			return nil, err
		}

		var count int64
		if err := tx.Model(&models.UserBadge{}).
			Where("user_id = ? AND badge_id = ?", user.ID, badge.ID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			continue
		}

		if err := tx.Create(&models.UserBadge{UserID: user.ID, BadgeID: badge.ID}).Error; err != nil {
			return nil, err
		}

		badgeID := badge.ID
		event := &models.RewardEvent{
			UserID:       user.ID,
			XPAmount:     0,
			Reason:       models.ReasonBadgeEarned,
			ReasonDetail: badge.Name,
			BadgeID:      &badgeID,
		}
		if err := tx.Create(event).Error; err != nil {
			return nil, err
		}

		if reward := s.badgeCreditReward(tx, badge.Rarity); reward > 0 {
			desc := fmt.Sprintf("Badge earned: %s", badge.Name)
			if _, err := s.credits.CreditInTx(tx, user.ID, reward, models.TxBadgeEarned, desc, "badge", badge.ID); err != nil {
				return nil, err
			}
		}

		awarded = append(awarded, *badge)
	}

	return awarded, nil
}

func (s *ProgressionService) ensureBadgeInTx(tx *gorm.DB, spec badgeSpec) (*models.Badge, error) {
	var badge models.Badge
	err := tx.Where("name = ?", spec.name).First(&badge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		badge = models.Badge{Name: spec.name, Description: spec.description, Rarity: spec.rarity}
		if err := tx.Create(&badge).Error; err != nil {
			return nil, err
		}
		return &badge, nil
	}
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

func (s *ProgressionService) badgeCreditReward(tx *gorm.DB, rarity models.BadgeRarity) int64 {
	cfg, err := s.credits.configInTx(tx)
	if err != nil {
		return 0
	}
	switch rarity {
	case models.RarityCommon:
		return cfg.RewardBadgeCommon
	case models.RarityRare:
		return cfg.RewardBadgeRare
	case models.RarityEpic, models.RarityLegendary:
		return cfg.RewardBadgeEpic
	}
	return 0
}

// UserStats is the progression summary for one user.
type UserStats struct {
	TotalPoints    int64 `json:"total_points"`
	Level          int   `json:"level"`
	XPForNextLevel int64 `json:"xp_for_next_level"`
	XPIntoLevel    int64 `json:"xp_into_level"`
	BadgeCount     int64 `json:"badge_count"`
	BestStreak     int   `json:"best_streak"`
}

// GetUserStats returns the progression summary for a user.
func (s *ProgressionService) GetUserStats(ctx context.Context, userID uint) (*UserStats, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}

	stats := &UserStats{
		TotalPoints:    user.TotalPoints,
		Level:          user.Level,
		XPForNextLevel: XPForLevel(user.Level + 1),
		XPIntoLevel:    user.TotalPoints - XPForLevel(user.Level),
	}

	if err := s.db.WithContext(ctx).Model(&models.UserBadge{}).
		Where("user_id = ?", userID).Count(&stats.BadgeCount).Error; err != nil {
		return nil, err
	}

	var best *int
	if err := s.db.WithContext(ctx).Model(&models.Streak{}).
		Where("user_id = ?", userID).
		Select("MAX(best_count)").Scan(&best).Error; err != nil {
		return nil, err
	}
	if best != nil {
		stats.BestStreak = *best
	}

	return stats, nil
}

// ListRewardEvents returns a user's reward history, newest first.
func (s *ProgressionService) ListRewardEvents(ctx context.Context, userID uint, limit, offset int) ([]models.RewardEvent, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := s.db.WithContext(ctx).Model(&models.RewardEvent{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []models.RewardEvent
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// ListUserBadges returns the badges a user has earned.
func (s *ProgressionService) ListUserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	var badges []models.UserBadge
	if err := s.db.WithContext(ctx).Preload("Badge").
		Where("user_id = ?", userID).Order("earned_at ASC").Find(&badges).Error; err != nil {
		return nil, err
	}
	return badges, nil
}

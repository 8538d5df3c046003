package models

import (
	"time"
)

// BadgeRarity scales the credit reward paid when a badge unlocks.
type BadgeRarity string

const (
	RarityCommon    BadgeRarity = "common"
	RarityRare      BadgeRarity = "rare"
	RarityEpic      BadgeRarity = "epic"
	RarityLegendary BadgeRarity = "legendary"
)

// Badge is a one-time unlockable achievement definition.
type Badge struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Name        string      `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Rarity      BadgeRarity `gorm:"size:16;default:common" json:"rarity"`
	IconURL     string      `gorm:"type:text" json:"icon_url,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// TableName specifies the table name for Badge model
func (Badge) TableName() string {
	return "badges"
}

// UserBadge is an awarded badge instance, unique per (user, badge).
type UserBadge struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UserID   uint      `gorm:"not null;index:idx_user_badge,unique" json:"user_id"`
	User     User      `gorm:"foreignKey:UserID" json:"-"`
	BadgeID  uint      `gorm:"not null;index:idx_user_badge,unique" json:"badge_id"`
	Badge    Badge     `gorm:"foreignKey:BadgeID" json:"badge"`
	EarnedAt time.Time `gorm:"autoCreateTime" json:"earned_at"`
}

// TableName specifies the table name for UserBadge model
func (UserBadge) TableName() string {
	return "user_badges"
}

// RewardReason is the closed set of causes for a reward event.
type RewardReason string

const (
	ReasonContributionApproved RewardReason = "contribution_approved"
	ReasonChallengeCompleted   RewardReason = "challenge_completed"
	ReasonChallengeWon         RewardReason = "challenge_won"
	ReasonStreakMilestone      RewardReason = "streak_milestone"
	ReasonDailyLogin           RewardReason = "daily_login"
	ReasonPhotoProof           RewardReason = "photo_proof"
	ReasonPeerReview           RewardReason = "peer_review"
	ReasonLevelUp              RewardReason = "level_up"
	ReasonBadgeEarned          RewardReason = "badge_earned"
	ReasonAdminAdjustment      RewardReason = "admin_adjustment"
)

// RewardEvent is the immutable audit record of one XP/badge grant.
// Rows are insert-only; the type has no update or delete pathway.
type RewardEvent struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	UserID       uint         `gorm:"not null;index" json:"user_id"`
	User         User         `gorm:"foreignKey:UserID" json:"-"`
	XPAmount     int64        `gorm:"not null" json:"xp_amount"`
	Reason       RewardReason `gorm:"size:40;not null;index" json:"reason"`
	ReasonDetail string       `gorm:"type:text" json:"reason_detail"`

	ChallengeID    *uint `json:"challenge_id,omitempty"`
	ContributionID *uint `json:"contribution_id,omitempty"`
	BadgeID        *uint `json:"badge_id,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for RewardEvent model
func (RewardEvent) TableName() string {
	return "reward_events"
}

// Streak tracks consecutive-day activity per (user, type, reference).
//
// Invariants: CurrentCount <= BestCount after every update and
// GraceUsed <= MaxGrace.
type Streak struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"not null;index:idx_user_streak,unique" json:"user_id"`
	User        User   `gorm:"foreignKey:UserID" json:"-"`
	StreakType  string `gorm:"size:40;not null;index:idx_user_streak,unique" json:"streak_type"`
	ReferenceID string `gorm:"size:100;not null;default:'';index:idx_user_streak,unique" json:"reference_id"`

	CurrentCount     int        `gorm:"default:0" json:"current_count"`
	BestCount        int        `gorm:"default:0" json:"best_count"`
	GraceUsed        int        `gorm:"default:0" json:"grace_used"`
	MaxGrace         int        `gorm:"default:2" json:"max_grace"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Streak model
func (Streak) TableName() string {
	return "streaks"
}

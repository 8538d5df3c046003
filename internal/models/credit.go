package models

import (
	"time"
)

// TransactionType is the business reason for a credit ledger entry.
type TransactionType string

const (
	TxSignupBonus       TransactionType = "signup_bonus"
	TxReferralBonus     TransactionType = "referral_bonus"
	TxChallengeCreate   TransactionType = "challenge_create"
	TxTaskCreate        TransactionType = "task_create"
	TxDuelStake         TransactionType = "duel_stake"
	TxChallengeComplete TransactionType = "challenge_complete"
	TxTaskComplete      TransactionType = "task_complete"
	TxStreakMilestone   TransactionType = "streak_milestone"
	TxDuelWon           TransactionType = "duel_won"
	TxPeerReview        TransactionType = "peer_review"
	TxBadgeEarned       TransactionType = "badge_earned"
	TxAdminGrant        TransactionType = "admin_grant"
	TxAdminDeduct       TransactionType = "admin_deduct"
	TxPurchase          TransactionType = "purchase"
	TxRefund            TransactionType = "refund"
)

// CreditWallet holds a user's virtual currency balance.
//
// Invariant: Balance == LifetimeEarned - LifetimeSpent and Balance >= 0.
// Wallets are created lazily on first access and never deleted.
type CreditWallet struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	User           User      `gorm:"foreignKey:UserID" json:"-"`
	Balance        int64     `gorm:"not null;default:0" json:"balance"`
	LifetimeEarned int64     `gorm:"not null;default:0" json:"lifetime_earned"`
	LifetimeSpent  int64     `gorm:"not null;default:0" json:"lifetime_spent"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for CreditWallet model
func (CreditWallet) TableName() string {
	return "credit_wallets"
}

// CreditTransaction is one immutable ledger entry. Amount is signed:
// positive for earns, negative for spends. BalanceAfter snapshots the
// wallet balance as of this entry's commit.
//
// The type deliberately has no update or delete pathway; rows are
// insert-only.
type CreditTransaction struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	WalletID        uint            `gorm:"not null;index" json:"wallet_id"`
	Wallet          CreditWallet    `gorm:"foreignKey:WalletID" json:"-"`
	TransactionType TransactionType `gorm:"size:50;not null;index" json:"transaction_type"`
	Amount          int64           `gorm:"not null" json:"amount"`
	BalanceAfter    int64           `gorm:"not null" json:"balance_after"`
	Description     string          `gorm:"type:text" json:"description"`

	// Weak reference to the originating entity. Lookup only; may dangle
	// if the referenced entity is later deleted.
	RelatedType string `gorm:"size:50" json:"related_type,omitempty"`
	RelatedID   uint   `json:"related_id,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for CreditTransaction model
func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

// CreditConfig is the singleton economy configuration. It is created once
// with defaults on first access and mutated only by administrative action.
type CreditConfig struct {
	ID uint `gorm:"primaryKey" json:"-"`

	SignupBonus   int64 `gorm:"default:100" json:"signup_bonus"`
	ReferralBonus int64 `gorm:"default:50" json:"referral_bonus"`

	// Creation costs per challenge type.
	CostTodo       int64 `gorm:"default:5" json:"cost_todo"`
	CostStreak     int64 `gorm:"default:10" json:"cost_streak"`
	CostQuantified int64 `gorm:"default:10" json:"cost_quantified"`
	CostDuel       int64 `gorm:"default:20" json:"cost_duel"`
	CostTeam       int64 `gorm:"default:25" json:"cost_team"`
	CostCommunity  int64 `gorm:"default:150" json:"cost_community"`

	// Surcharges per required proof type.
	CostPhotoProof int64 `gorm:"default:5" json:"cost_photo_proof"`
	CostVideoProof int64 `gorm:"default:10" json:"cost_video_proof"`
	CostPeerReview int64 `gorm:"default:5" json:"cost_peer_review"`

	// Rewards.
	RewardTaskComplete             int64 `gorm:"default:5" json:"reward_task_complete"`
	RewardChallengeCompletePercent int64 `gorm:"default:50" json:"reward_challenge_complete_percent"`
	RewardStreak7                  int64 `gorm:"default:10" json:"reward_streak_7"`
	RewardStreak30                 int64 `gorm:"default:50" json:"reward_streak_30"`
	RewardStreak100                int64 `gorm:"default:200" json:"reward_streak_100"`
	RewardPeerReview               int64 `gorm:"default:2" json:"reward_peer_review"`
	RewardBadgeCommon              int64 `gorm:"default:5" json:"reward_badge_common"`
	RewardBadgeRare                int64 `gorm:"default:20" json:"reward_badge_rare"`
	RewardBadgeEpic                int64 `gorm:"default:50" json:"reward_badge_epic"`

	// Lifetime aggregates over the whole economy.
	TotalCreditsMinted int64 `gorm:"default:0" json:"total_credits_minted"`
	TotalCreditsBurned int64 `gorm:"default:0" json:"total_credits_burned"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for CreditConfig model
func (CreditConfig) TableName() string {
	return "credit_configs"
}

// DefaultCreditConfig returns the starting economy configuration.
func DefaultCreditConfig() CreditConfig {
	return CreditConfig{
		SignupBonus:                    100,
		ReferralBonus:                  50,
		CostTodo:                       5,
		CostStreak:                     10,
		CostQuantified:                 10,
		CostDuel:                       20,
		CostTeam:                       25,
		CostCommunity:                  150,
		CostPhotoProof:                 5,
		CostVideoProof:                 10,
		CostPeerReview:                 5,
		RewardTaskComplete:             5,
		RewardChallengeCompletePercent: 50,
		RewardStreak7:                  10,
		RewardStreak30:                 50,
		RewardStreak100:                200,
		RewardPeerReview:               2,
		RewardBadgeCommon:              5,
		RewardBadgeRare:                20,
		RewardBadgeEpic:                50,
	}
}

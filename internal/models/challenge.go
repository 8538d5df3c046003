package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChallengeType selects the progress semantics of a challenge.
type ChallengeType string

const (
	ChallengeTodo       ChallengeType = "todo"
	ChallengeStreak     ChallengeType = "streak"
	ChallengeQuantified ChallengeType = "quantified"
	ChallengeTeam       ChallengeType = "team"
	ChallengeDuel       ChallengeType = "duel"
	ChallengeTeamVsTeam ChallengeType = "team_vs_team"
	ChallengeCommunity  ChallengeType = "community"
	ChallengeGlobal     ChallengeType = "global"
)

// ValidChallengeType reports whether t is a member of the closed enum.
func ValidChallengeType(t ChallengeType) bool {
	switch t {
	case ChallengeTodo, ChallengeStreak, ChallengeQuantified, ChallengeTeam,
		ChallengeDuel, ChallengeTeamVsTeam, ChallengeCommunity, ChallengeGlobal:
		return true
	}
	return false
}

// ChallengeStatus is the lifecycle state of a challenge.
type ChallengeStatus string

const (
	ChallengeStatusDraft     ChallengeStatus = "draft"
	ChallengeStatusUpcoming  ChallengeStatus = "upcoming"
	ChallengeStatusActive    ChallengeStatus = "active"
	ChallengeStatusCompleted ChallengeStatus = "completed"
	ChallengeStatusCancelled ChallengeStatus = "cancelled"
)

// Visibility controls who can see a challenge.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
	VisibilityInvite  Visibility = "invite"
	VisibilityPublic  Visibility = "public"
)

// ProofType is the kind of evidence accepted for a contribution.
type ProofType string

const (
	ProofSelf     ProofType = "SELF"
	ProofPhoto    ProofType = "PHOTO"
	ProofVideo    ProofType = "VIDEO"
	ProofDocument ProofType = "DOCUMENT"
	ProofPeer     ProofType = "PEER"
	ProofSensor   ProofType = "SENSOR"
)

// ValidProofType reports whether t is a member of the closed enum.
func ValidProofType(t ProofType) bool {
	switch t {
	case ProofSelf, ProofPhoto, ProofVideo, ProofDocument, ProofPeer, ProofSensor:
		return true
	}
	return false
}

// ProofTypeList is stored as a JSON array column.
type ProofTypeList []ProofType

// Contains reports whether the list includes t.
func (l ProofTypeList) Contains(t ProofType) bool {
	for _, p := range l {
		if p == t {
			return true
		}
	}
	return false
}

// SelfOnly reports whether the requirement set is empty or exactly {SELF},
// in which case contributions are approved without a review cycle.
func (l ProofTypeList) SelfOnly() bool {
	if len(l) == 0 {
		return true
	}
	return len(l) == 1 && l[0] == ProofSelf
}

// Challenge is a goal definition users participate in.
type Challenge struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Title       string          `gorm:"size:255;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Type        ChallengeType   `gorm:"size:20;not null;index" json:"challenge_type"`
	Status      ChallengeStatus `gorm:"size:20;not null;default:draft;index" json:"status"`
	Visibility  Visibility      `gorm:"size:20;not null;default:private;index" json:"visibility"`

	Goal        string `gorm:"size:255" json:"goal"`
	TargetValue int64  `gorm:"not null" json:"target_value"`
	Unit        string `gorm:"size:50" json:"unit"`

	RequiredProofTypes ProofTypeList `gorm:"serializer:json" json:"required_proof_types"`
	MinPeerApprovals   int           `gorm:"default:1" json:"min_peer_approvals"`
	ProofDeadlineHours int           `gorm:"default:24" json:"proof_deadline_hours"`

	TeamID *uint `gorm:"index" json:"team_id,omitempty"`

	CreatorID       uint  `gorm:"not null;index" json:"creator_id"`
	Creator         User  `gorm:"foreignKey:CreatorID" json:"-"`
	MaxParticipants *int  `json:"max_participants,omitempty"`
	RewardPoints    int64 `gorm:"default:0" json:"reward_points"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Challenge model
func (Challenge) TableName() string {
	return "challenges"
}

// ParticipationStatus is the state of a user inside a challenge.
type ParticipationStatus string

const (
	ParticipationInvited   ParticipationStatus = "invited"
	ParticipationActive    ParticipationStatus = "active"
	ParticipationCompleted ParticipationStatus = "completed"
	ParticipationFailed    ParticipationStatus = "failed"
	ParticipationWithdrawn ParticipationStatus = "withdrawn"
)

// ChallengeParticipant joins a user to a challenge.
//
// CurrentProgress is derived state: it is only ever recomputed from the
// sum of approved contribution values, never hand-set.
type ChallengeParticipant struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	ChallengeID uint                `gorm:"not null;index:idx_challenge_user,unique" json:"challenge_id"`
	Challenge   Challenge           `gorm:"foreignKey:ChallengeID;constraint:OnDelete:CASCADE" json:"-"`
	UserID      uint                `gorm:"not null;index:idx_challenge_user,unique" json:"user_id"`
	User        User                `gorm:"foreignKey:UserID" json:"-"`
	Status      ParticipationStatus `gorm:"size:20;not null;default:active" json:"status"`

	CurrentProgress decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"current_progress"`
	StreakCurrent   int             `gorm:"default:0" json:"streak_current"`
	StreakBest      int             `gorm:"default:0" json:"streak_best"`
	Rank            *int            `json:"rank,omitempty"`
	PointsEarned    int64           `gorm:"default:0" json:"points_earned"`

	JoinedAt           time.Time  `gorm:"autoCreateTime" json:"joined_at"`
	LastContributionAt *time.Time `json:"last_contribution_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for ChallengeParticipant model
func (ChallengeParticipant) TableName() string {
	return "challenge_participants"
}

// ContributionStatus is the review state of a logged activity.
type ContributionStatus string

const (
	ContributionPending        ContributionStatus = "pending"
	ContributionAwaitingReview ContributionStatus = "awaiting_review"
	ContributionApproved       ContributionStatus = "approved"
	ContributionRejected       ContributionStatus = "rejected"
)

// Contribution is one logged activity under a participation.
type Contribution struct {
	ID              uint                 `gorm:"primaryKey" json:"id"`
	ParticipationID uint                 `gorm:"not null;index" json:"participation_id"`
	Participation   ChallengeParticipant `gorm:"foreignKey:ParticipationID;constraint:OnDelete:CASCADE" json:"-"`

	Value  decimal.Decimal    `gorm:"type:decimal(12,2);not null" json:"value"`
	Note   string             `gorm:"type:text" json:"note"`
	Status ContributionStatus `gorm:"size:20;not null;default:pending;index" json:"status"`

	LoggedAt  time.Time `gorm:"not null;index" json:"logged_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Contribution model
func (Contribution) TableName() string {
	return "contributions"
}

// ProofStatus is the review state of a piece of evidence.
type ProofStatus string

const (
	ProofStatusPending  ProofStatus = "pending"
	ProofStatusApproved ProofStatus = "approved"
	ProofStatusRejected ProofStatus = "rejected"
	ProofStatusFlagged  ProofStatus = "flagged"
)

// Terminal reports whether the proof can no longer accept reviews.
func (s ProofStatus) Terminal() bool {
	return s == ProofStatusApproved || s == ProofStatusRejected || s == ProofStatusFlagged
}

// Proof is evidence attached to a contribution. File contents live in the
// external store; only the returned keys are recorded here.
type Proof struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	ContributionID uint         `gorm:"not null;index" json:"contribution_id"`
	Contribution   Contribution `gorm:"foreignKey:ContributionID;constraint:OnDelete:CASCADE" json:"-"`

	Type   ProofType   `gorm:"size:20;not null;index" json:"proof_type"`
	Status ProofStatus `gorm:"size:20;not null;default:pending;index" json:"status"`

	FileKey    string `gorm:"size:512" json:"file_key,omitempty"`
	SensorData string `gorm:"type:text" json:"sensor_data,omitempty"`

	OriginalFilename string `gorm:"size:255" json:"original_filename,omitempty"`
	FileSize         int64  `json:"file_size,omitempty"`
	MimeType         string `gorm:"size:100" json:"mime_type,omitempty"`

	ReviewedByID    *uint      `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason string     `gorm:"type:text" json:"rejection_reason,omitempty"`

	SubmittedAt time.Time `gorm:"autoCreateTime" json:"submitted_at"`
}

// TableName specifies the table name for Proof model
func (Proof) TableName() string {
	return "proofs"
}

// ReviewVerdict is a reviewer's decision on a proof.
type ReviewVerdict string

const (
	VerdictApproved ReviewVerdict = "approved"
	VerdictRejected ReviewVerdict = "rejected"
)

// ProofReview is one reviewer's verdict on a proof, unique per
// (proof, reviewer). Re-casting overwrites via upsert.
type ProofReview struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	ProofID    uint          `gorm:"not null;index:idx_proof_reviewer,unique" json:"proof_id"`
	Proof      Proof         `gorm:"foreignKey:ProofID;constraint:OnDelete:CASCADE" json:"-"`
	ReviewerID uint          `gorm:"not null;index:idx_proof_reviewer,unique" json:"reviewer_id"`
	Reviewer   User          `gorm:"foreignKey:ReviewerID" json:"-"`
	Verdict    ReviewVerdict `gorm:"size:20;not null" json:"verdict"`
	Comment    string        `gorm:"type:text" json:"comment"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// TableName specifies the table name for ProofReview model
func (ProofReview) TableName() string {
	return "proof_reviews"
}

// DuelStatus is the lifecycle state of a duel.
type DuelStatus string

const (
	DuelStatusPending   DuelStatus = "pending"
	DuelStatusActive    DuelStatus = "active"
	DuelStatusCompleted DuelStatus = "completed"
	DuelStatusCancelled DuelStatus = "cancelled"
)

// Duel is the 1:1 extension of a challenge of type duel.
type Duel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChallengeID uint      `gorm:"uniqueIndex;not null" json:"challenge_id"`
	Challenge   Challenge `gorm:"foreignKey:ChallengeID;constraint:OnDelete:CASCADE" json:"-"`

	ChallengerID uint       `gorm:"not null;index" json:"challenger_id"`
	Challenger   User       `gorm:"foreignKey:ChallengerID" json:"-"`
	OpponentID   uint       `gorm:"not null;index" json:"opponent_id"`
	Opponent     User       `gorm:"foreignKey:OpponentID" json:"-"`
	Status       DuelStatus `gorm:"size:20;not null;default:pending" json:"status"`
	WinnerID     *uint      `json:"winner_id,omitempty"`

	// StakePoints is the canonical stake. 0 means a free duel; payout
	// math then falls back to the configured duel cost.
	StakePoints int64 `gorm:"default:0" json:"stake_points"`

	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for Duel model
func (Duel) TableName() string {
	return "duels"
}

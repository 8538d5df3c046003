package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"

	"taskquest/internal/apperrors"
	"taskquest/internal/cache"
	"taskquest/internal/models"
)

var (
	titlePolicy = bluemonday.StrictPolicy()
	bodyPolicy  = bluemonday.UGCPolicy()
)

// ChallengeService handles challenge lifecycle and participation
type ChallengeService struct {
	db          *gorm.DB
	credits     *CreditService
	progression *ProgressionService
	leaderboard *cache.LeaderboardCache
}

// NewChallengeService creates a new ChallengeService
func NewChallengeService(db *gorm.DB, credits *CreditService, progression *ProgressionService, leaderboard *cache.LeaderboardCache) *ChallengeService {
	return &ChallengeService{db: db, credits: credits, progression: progression, leaderboard: leaderboard}
}

// CreateChallengeInput is the caller-supplied challenge definition.
type CreateChallengeInput struct {
	Title              string               `json:"title" binding:"required"`
	Description        string               `json:"description"`
	Type               models.ChallengeType `json:"challenge_type" binding:"required"`
	Visibility         models.Visibility    `json:"visibility"`
	Goal               string               `json:"goal"`
	TargetValue        int64                `json:"target_value"`
	Unit               string               `json:"unit"`
	RequiredProofTypes models.ProofTypeList `json:"required_proof_types"`
	MinPeerApprovals   int                  `json:"min_peer_approvals"`
	ProofDeadlineHours int                  `json:"proof_deadline_hours"`
	TeamID             *uint                `json:"team_id"`
	MaxParticipants    *int                 `json:"max_participants"`
	RewardPoints       int64                `json:"reward_points"`
	StartDate          time.Time            `json:"start_date"`
	EndDate            time.Time            `json:"end_date"`
}

func (in *CreateChallengeInput) validate() error {
	in.Title = strings.TrimSpace(titlePolicy.Sanitize(in.Title))
	in.Description = bodyPolicy.Sanitize(in.Description)
	in.Goal = strings.TrimSpace(titlePolicy.Sanitize(in.Goal))

	if in.Title == "" {
		return apperrors.NewValidation("title", "title is required")
	}
	if !models.ValidChallengeType(in.Type) {
		return apperrors.NewValidation("challenge_type", "unknown challenge type %q", in.Type)
	}
	for _, p := range in.RequiredProofTypes {
		if !models.ValidProofType(p) {
			return apperrors.NewValidation("required_proof_types", "unknown proof type %q", p)
		}
	}
	if in.TargetValue < 0 {
		return apperrors.NewValidation("target_value", "target value must not be negative")
	}
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPrivate
	}
	switch in.Visibility {
	case models.VisibilityPrivate, models.VisibilityTeam, models.VisibilityInvite, models.VisibilityPublic:
	default:
		return apperrors.NewValidation("visibility", "unknown visibility %q", in.Visibility)
	}
	if in.Visibility == models.VisibilityTeam && in.TeamID == nil {
		return apperrors.NewValidation("team_id", "team visibility requires a team")
	}
	if in.MinPeerApprovals < 1 {
		in.MinPeerApprovals = 1
	}
	if in.ProofDeadlineHours < 1 {
		in.ProofDeadlineHours = 24
	}
	if in.StartDate.IsZero() {
		in.StartDate = time.Now().UTC()
	}
	if !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate) {
		return apperrors.NewValidation("end_date", "end date must not precede start date")
	}
	if in.MaxParticipants != nil && *in.MaxParticipants < 1 {
		return apperrors.NewValidation("max_participants", "max participants must be positive")
	}
	return nil
}

// CreateChallenge validates the input, debits the creation cost and
// creates the challenge with the creator as first participant, all in
// one transaction.
func (s *ChallengeService) CreateChallenge(ctx context.Context, creatorID uint, in CreateChallengeInput) (*models.Challenge, error) {
	var challenge *models.Challenge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		challenge, err = s.CreateChallengeInTx(tx, creatorID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return challenge, nil
}

// CreateChallengeInTx is the composable form of CreateChallenge.
func (s *ChallengeService) CreateChallengeInTx(tx *gorm.DB, creatorID uint, in CreateChallengeInput) (*models.Challenge, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	cfg, err := s.credits.configInTx(tx)
	if err != nil {
		return nil, err
	}
	cost := challengeCostFromConfig(cfg, in.Type, in.RequiredProofTypes)

	challenge := &models.Challenge{
		Title:              in.Title,
		Description:        in.Description,
		Type:               in.Type,
		Status:             models.ChallengeStatusActive,
		Visibility:         in.Visibility,
		Goal:               in.Goal,
		TargetValue:        in.TargetValue,
		Unit:               in.Unit,
		RequiredProofTypes: in.RequiredProofTypes,
		MinPeerApprovals:   in.MinPeerApprovals,
		ProofDeadlineHours: in.ProofDeadlineHours,
		TeamID:             in.TeamID,
		CreatorID:          creatorID,
		MaxParticipants:    in.MaxParticipants,
		RewardPoints:       in.RewardPoints,
		StartDate:          in.StartDate,
		EndDate:            in.EndDate,
	}
	if challenge.StartDate.After(time.Now().UTC()) {
		challenge.Status = models.ChallengeStatusUpcoming
	}

	if err := tx.Create(challenge).Error; err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	// Debit after create so the ledger entry can reference the ID. The
	// surrounding transaction rolls both back together on failure.
	if cost > 0 {
		desc := fmt.Sprintf("Created challenge: %s", challenge.Title)
		if _, err := s.credits.DebitInTx(tx, creatorID, cost, models.TxChallengeCreate, desc, "challenge", challenge.ID); err != nil {
			return nil, err
		}
	}

	participant := &models.ChallengeParticipant{
		ChallengeID: challenge.ID,
		UserID:      creatorID,
		Status:      models.ParticipationActive,
	}
	if err := tx.Create(participant).Error; err != nil {
		return nil, fmt.Errorf("failed to add creator as participant: %w", err)
	}

	return challenge, nil
}

// GetChallenge returns a challenge if it is visible to the viewer.
// Invisible challenges are reported as not found.
func (s *ChallengeService) GetChallenge(ctx context.Context, viewerID, challengeID uint) (*models.Challenge, error) {
	var challenge models.Challenge
	err := s.db.WithContext(ctx).First(&challenge, challengeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	visible, err := s.VisibleTo(s.db.WithContext(ctx), &challenge, viewerID)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, apperrors.ErrNotFound
	}
	return &challenge, nil
}

// VisibleTo reports whether viewerID may see the challenge.
func (s *ChallengeService) VisibleTo(tx *gorm.DB, challenge *models.Challenge, viewerID uint) (bool, error) {
	if challenge.Visibility == models.VisibilityPublic {
		return true, nil
	}
	if challenge.CreatorID == viewerID {
		return true, nil
	}

	var count int64
	if err := tx.Model(&models.ChallengeParticipant{}).
		Where("challenge_id = ? AND user_id = ?", challenge.ID, viewerID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	if challenge.Visibility == models.VisibilityTeam && challenge.TeamID != nil {
		if err := tx.Model(&models.TeamMember{}).
			Where("team_id = ? AND user_id = ? AND is_active = ?", *challenge.TeamID, viewerID, true).
			Count(&count).Error; err != nil {
			return false, err
		}
		return count > 0, nil
	}

	return false, nil
}

// ChallengeFilter narrows ListChallenges.
type ChallengeFilter struct {
	Type   models.ChallengeType
	Status models.ChallengeStatus
	Mine   bool
	Limit  int
	Offset int
}

// ListChallenges returns challenges visible to the viewer: public ones,
// their own, those they participate in and their teams' challenges.
func (s *ChallengeService) ListChallenges(ctx context.Context, viewerID uint, filter ChallengeFilter) ([]models.Challenge, error) {
	q := s.db.WithContext(ctx).Model(&models.Challenge{})

	if filter.Mine {
		q = q.Where("creator_id = ?", viewerID)
	} else {
		q = q.Where(
			"visibility = ? OR creator_id = ?"+
				" OR id IN (SELECT challenge_id FROM challenge_participants WHERE user_id = ?)"+
				" OR (visibility = ? AND team_id IN (SELECT team_id FROM team_members WHERE user_id = ? AND is_active = ?))",
			models.VisibilityPublic, viewerID, viewerID, models.VisibilityTeam, viewerID, true,
		)
	}

	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var challenges []models.Challenge
	if err := q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&challenges).Error; err != nil {
		return nil, err
	}
	return challenges, nil
}

// JoinChallenge adds the user as an active participant.
func (s *ChallengeService) JoinChallenge(ctx context.Context, userID, challengeID uint) (*models.ChallengeParticipant, error) {
	var participant *models.ChallengeParticipant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		err := tx.First(&challenge, challengeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}

		visible, err := s.VisibleTo(tx, &challenge, userID)
		if err != nil {
			return err
		}
		if !visible {
			return apperrors.ErrNotFound
		}

		if challenge.Status != models.ChallengeStatusActive && challenge.Status != models.ChallengeStatusUpcoming {
			return apperrors.ErrConflict
		}

		var existing models.ChallengeParticipant
		err = tx.Where("challenge_id = ? AND user_id = ?", challengeID, userID).First(&existing).Error
		if err == nil {
			if existing.Status == models.ParticipationInvited || existing.Status == models.ParticipationWithdrawn {
				existing.Status = models.ParticipationActive
				if err := tx.Model(&existing).Update("status", models.ParticipationActive).Error; err != nil {
					return err
				}
				participant = &existing
				return nil
			}
			return apperrors.ErrConflict
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if challenge.MaxParticipants != nil {
			var count int64
			if err := tx.Model(&models.ChallengeParticipant{}).
				Where("challenge_id = ? AND status IN ?", challengeID,
					[]models.ParticipationStatus{models.ParticipationActive, models.ParticipationCompleted}).
				Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(*challenge.MaxParticipants) {
				return apperrors.ErrConflict
			}
		}

		participant = &models.ChallengeParticipant{
			ChallengeID: challengeID,
			UserID:      userID,
			Status:      models.ParticipationActive,
		}
		return tx.Create(participant).Error
	})
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// InviteToChallenge adds a user with invited status; they join by
// accepting through JoinChallenge.
func (s *ChallengeService) InviteToChallenge(ctx context.Context, inviterID, challengeID, inviteeID uint) (*models.ChallengeParticipant, error) {
	var participant *models.ChallengeParticipant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		err := tx.First(&challenge, challengeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}
		if challenge.CreatorID != inviterID {
			return apperrors.ErrNotFound
		}

		var count int64
		if err := tx.Model(&models.ChallengeParticipant{}).
			Where("challenge_id = ? AND user_id = ?", challengeID, inviteeID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperrors.ErrConflict
		}

		participant = &models.ChallengeParticipant{
			ChallengeID: challengeID,
			UserID:      inviteeID,
			Status:      models.ParticipationInvited,
		}
		return tx.Create(participant).Error
	})
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// LeaveChallenge marks the user's participation withdrawn. The creator
// cannot leave their own challenge. Progress and contributions remain
// on record.
func (s *ChallengeService) LeaveChallenge(ctx context.Context, userID, challengeID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		err := tx.First(&challenge, challengeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}
		if challenge.CreatorID == userID {
			return apperrors.NewValidation("challenge", "creator cannot leave the challenge")
		}

		var participant models.ChallengeParticipant
		err = tx.Where("challenge_id = ? AND user_id = ?", challengeID, userID).First(&participant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}
		if participant.Status != models.ParticipationActive && participant.Status != models.ParticipationInvited {
			return apperrors.ErrConflict
		}
		return tx.Model(&participant).Update("status", models.ParticipationWithdrawn).Error
	})
}

// CancelChallenge moves a challenge to cancelled. Creator only. The
// creation cost stays burned.
func (s *ChallengeService) CancelChallenge(ctx context.Context, userID, challengeID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		err := tx.First(&challenge, challengeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}
		if challenge.CreatorID != userID {
			return apperrors.ErrNotFound
		}
		if challenge.Status == models.ChallengeStatusCompleted || challenge.Status == models.ChallengeStatusCancelled {
			return apperrors.ErrConflict
		}
		return tx.Model(&challenge).Update("status", models.ChallengeStatusCancelled).Error
	})
}

// DeleteChallenge removes a challenge and its participations. Creator
// only. Contributions and proofs go with them through the cascade
// constraints.
func (s *ChallengeService) DeleteChallenge(ctx context.Context, userID, challengeID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		err := tx.First(&challenge, challengeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}
		if challenge.CreatorID != userID {
			return apperrors.ErrNotFound
		}

		if err := tx.Where("challenge_id = ?", challengeID).
			Delete(&models.ChallengeParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&challenge).Error
	})
}

// LeaderboardEntry is one ranked row of a challenge leaderboard.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Progress string `json:"progress"`
	Points   int64  `json:"points_earned"`
	Status   string `json:"status"`
}

// GetLeaderboard returns participants ranked by progress, served from
// the cache when fresh.
func (s *ChallengeService) GetLeaderboard(ctx context.Context, viewerID, challengeID uint) ([]LeaderboardEntry, error) {
	if _, err := s.GetChallenge(ctx, viewerID, challengeID); err != nil {
		return nil, err
	}

	var entries []LeaderboardEntry
	if s.leaderboard.Get(ctx, challengeID, &entries) {
		return entries, nil
	}

	var participants []models.ChallengeParticipant
	if err := s.db.WithContext(ctx).Preload("User").
		Where("challenge_id = ? AND status IN ?", challengeID,
			[]models.ParticipationStatus{models.ParticipationActive, models.ParticipationCompleted}).
		Order("current_progress DESC, joined_at ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}

	entries = make([]LeaderboardEntry, 0, len(participants))
	for i, p := range participants {
		entries = append(entries, LeaderboardEntry{
			Rank:     i + 1,
			UserID:   p.UserID,
			Username: p.User.Username,
			Progress: p.CurrentProgress.String(),
			Points:   p.PointsEarned,
			Status:   string(p.Status),
		})
	}

	s.leaderboard.Set(ctx, challengeID, entries)
	return entries, nil
}

// InvalidateLeaderboard drops the cached board after progress changes.
func (s *ChallengeService) InvalidateLeaderboard(ctx context.Context, challengeID uint) {
	s.leaderboard.Invalidate(ctx, challengeID)
}

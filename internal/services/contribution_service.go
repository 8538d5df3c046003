package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskquest/internal/apperrors"
	"taskquest/internal/models"
)

// ContributionService handles contribution logging, proof submission
// and peer review
type ContributionService struct {
	db          *gorm.DB
	credits     *CreditService
	progression *ProgressionService
	streaks     *StreakService
	challenges  *ChallengeService
}

// NewContributionService creates a new ContributionService
func NewContributionService(db *gorm.DB, credits *CreditService, progression *ProgressionService, streaks *StreakService, challenges *ChallengeService) *ContributionService {
	return &ContributionService{
		db:          db,
		credits:     credits,
		progression: progression,
		streaks:     streaks,
		challenges:  challenges,
	}
}

// LogContributionInput is the caller-supplied activity record.
type LogContributionInput struct {
	Value    decimal.Decimal `json:"value" binding:"required"`
	Note     string          `json:"note"`
	LoggedAt time.Time       `json:"logged_at"`
}

// LogContribution records activity under the user's participation. When
// the challenge accepts self-report, the contribution is approved on the
// spot and progress advances; otherwise it waits for proof.
func (s *ContributionService) LogContribution(ctx context.Context, userID, challengeID uint, in LogContributionInput) (*models.Contribution, error) {
	var contribution *models.Contribution
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		challenge, participant, err := s.activeParticipation(tx, userID, challengeID)
		if err != nil {
			return err
		}

		if in.LoggedAt.IsZero() {
			in.LoggedAt = time.Now().UTC()
		}
		if in.LoggedAt.After(time.Now().UTC().Add(time.Minute)) {
			return apperrors.NewValidation("logged_at", "cannot log activity in the future")
		}
		if in.Value.IsNegative() || in.Value.IsZero() {
			return apperrors.NewValidation("value", "value must be positive")
		}

		contribution = &models.Contribution{
			ParticipationID: participant.ID,
			Value:           in.Value,
			Note:            bodyPolicy.Sanitize(in.Note),
			Status:          models.ContributionPending,
			LoggedAt:        in.LoggedAt,
		}

		if challenge.RequiredProofTypes.SelfOnly() {
			contribution.Status = models.ContributionApproved
		}

		if err := tx.Create(contribution).Error; err != nil {
			return fmt.Errorf("failed to create contribution: %w", err)
		}

		if contribution.Status == models.ContributionApproved {
			return s.applyApprovedContribution(tx, challenge, participant, contribution, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.challenges.InvalidateLeaderboard(ctx, challengeID)
	return contribution, nil
}

// SubmitProofInput carries the evidence payload for one proof.
type SubmitProofInput struct {
	Type             models.ProofType
	FileKey          string
	OriginalFilename string
	FileSize         int64
	MimeType         string
	SensorData       string
}

// SubmitProof attaches evidence to a pending contribution. Sensor
// proofs validate immediately; everything else enters peer review.
func (s *ContributionService) SubmitProof(ctx context.Context, userID, contributionID uint, in SubmitProofInput) (*models.Proof, error) {
	var proof *models.Proof
	var challengeID uint
	var expired bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contribution, challenge, participant, err := s.ownedContribution(tx, userID, contributionID)
		if err != nil {
			return err
		}
		challengeID = challenge.ID

		if contribution.Status == models.ContributionApproved || contribution.Status == models.ContributionRejected {
			return apperrors.ErrConflict
		}

		if !models.ValidProofType(in.Type) {
			return apperrors.NewValidation("proof_type", "unknown proof type %q", in.Type)
		}
		if !challenge.RequiredProofTypes.Contains(in.Type) {
			return apperrors.NewValidation("proof_type", "proof type %q not accepted by this challenge", in.Type)
		}

		deadline := contribution.LoggedAt.Add(time.Duration(challenge.ProofDeadlineHours) * time.Hour)
		if time.Now().UTC().After(deadline) {
			expired = true
			return apperrors.NewValidation("proof", "proof window of %d hours has closed", challenge.ProofDeadlineHours)
		}

		switch in.Type {
		case models.ProofPhoto, models.ProofVideo, models.ProofDocument:
			if in.FileKey == "" {
				return apperrors.NewValidation("file", "file upload required for %s proof", in.Type)
			}
		case models.ProofSensor:
			if in.SensorData == "" || !json.Valid([]byte(in.SensorData)) {
				return apperrors.NewValidation("sensor_data", "valid sensor payload required")
			}
		}

		proof = &models.Proof{
			ContributionID:   contribution.ID,
			Type:             in.Type,
			Status:           models.ProofStatusPending,
			FileKey:          in.FileKey,
			SensorData:       in.SensorData,
			OriginalFilename: in.OriginalFilename,
			FileSize:         in.FileSize,
			MimeType:         in.MimeType,
		}

		if in.Type == models.ProofSensor {
			now := time.Now().UTC()
			proof.Status = models.ProofStatusApproved
			proof.ReviewedAt = &now
		}

		if err := tx.Create(proof).Error; err != nil {
			return fmt.Errorf("failed to create proof: %w", err)
		}

		if in.Type == models.ProofPhoto {
			contribID := contribution.ID
			if _, err := s.progression.AwardXPInTx(tx, userID, XPPhotoProof, models.ReasonPhotoProof, "Photo proof submitted", &challenge.ID, &contribID); err != nil {
				return err
			}
		}

		if proof.Status == models.ProofStatusApproved {
			if err := tx.Model(contribution).Update("status", models.ContributionApproved).Error; err != nil {
				return err
			}
			contribution.Status = models.ContributionApproved
			return s.applyApprovedContribution(tx, challenge, participant, contribution, true)
		}

		return tx.Model(contribution).Update("status", models.ContributionAwaitingReview).Error
	})
	if expired {
		// The rejection must survive the rollback of the failed submit.
		if dbErr := s.db.WithContext(ctx).Model(&models.Contribution{}).
			Where("id = ?", contributionID).
			Update("status", models.ContributionRejected).Error; dbErr != nil {
			return nil, dbErr
		}
	}
	if err != nil {
		return nil, err
	}

	s.challenges.InvalidateLeaderboard(ctx, challengeID)
	return proof, nil
}

// ReviewInput is one reviewer's verdict.
type ReviewInput struct {
	Verdict models.ReviewVerdict `json:"verdict" binding:"required"`
	Comment string               `json:"comment"`
}

// ReviewProof records a peer verdict and resolves the proof when the
// quorum is reached. Re-casting a verdict overwrites the previous one.
func (s *ContributionService) ReviewProof(ctx context.Context, reviewerID, proofID uint, in ReviewInput) (*models.Proof, error) {
	var proof models.Proof
	var challengeID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := forUpdate(tx).First(&proof, proofID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}

		var contribution models.Contribution
		if err := tx.First(&contribution, proof.ContributionID).Error; err != nil {
			return err
		}
		var owner models.ChallengeParticipant
		if err := tx.First(&owner, contribution.ParticipationID).Error; err != nil {
			return err
		}
		var challenge models.Challenge
		if err := tx.First(&challenge, owner.ChallengeID).Error; err != nil {
			return err
		}
		challengeID = challenge.ID

		visible, err := s.challenges.VisibleTo(tx, &challenge, reviewerID)
		if err != nil {
			return err
		}
		if !visible {
			return apperrors.ErrNotFound
		}

		if owner.UserID == reviewerID {
			return apperrors.NewValidation("reviewer", "cannot review your own proof")
		}
		if proof.Status.Terminal() {
			return apperrors.ErrConflict
		}
		if in.Verdict != models.VerdictApproved && in.Verdict != models.VerdictRejected {
			return apperrors.NewValidation("verdict", "verdict must be approved or rejected")
		}

		var reviewerPart models.ChallengeParticipant
		err = tx.Where("challenge_id = ? AND user_id = ? AND status IN ?", challenge.ID, reviewerID,
			[]models.ParticipationStatus{models.ParticipationActive, models.ParticipationCompleted}).
			First(&reviewerPart).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewValidation("reviewer", "only participants may review proofs")
		}
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.ProofReview{}).
			Where("proof_id = ? AND reviewer_id = ?", proofID, reviewerID).
			Count(&existing).Error; err != nil {
			return err
		}

		review := models.ProofReview{
			ProofID:    proofID,
			ReviewerID: reviewerID,
			Verdict:    in.Verdict,
			Comment:    bodyPolicy.Sanitize(in.Comment),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "proof_id"}, {Name: "reviewer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"verdict", "comment", "updated_at"}),
		}).Create(&review).Error; err != nil {
			return fmt.Errorf("failed to record review: %w", err)
		}

		// Reviewer rewards are paid once per proof, on the first verdict.
		if existing == 0 {
			contribID := contribution.ID
			if _, err := s.progression.AwardXPInTx(tx, reviewerID, XPPeerReview, models.ReasonPeerReview, "Peer review", &challenge.ID, &contribID); err != nil {
				return err
			}
			cfg, err := s.credits.configInTx(tx)
			if err != nil {
				return err
			}
			if cfg.RewardPeerReview > 0 {
				if _, err := s.credits.CreditInTx(tx, reviewerID, cfg.RewardPeerReview, models.TxPeerReview, "Peer review", "proof", proofID); err != nil {
					return err
				}
			}
		}

		// Counts are always recomputed from the review rows.
		var approvals, rejections int64
		if err := tx.Model(&models.ProofReview{}).
			Where("proof_id = ? AND verdict = ?", proofID, models.VerdictApproved).
			Count(&approvals).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ProofReview{}).
			Where("proof_id = ? AND verdict = ?", proofID, models.VerdictRejected).
			Count(&rejections).Error; err != nil {
			return err
		}
		total := approvals + rejections

		now := time.Now().UTC()
		switch {
		case approvals >= int64(challenge.MinPeerApprovals):
			proof.Status = models.ProofStatusApproved
			proof.ReviewedByID = &reviewerID
			proof.ReviewedAt = &now
			if err := tx.Model(&proof).Updates(map[string]interface{}{
				"status":         proof.Status,
				"reviewed_by_id": reviewerID,
				"reviewed_at":    now,
			}).Error; err != nil {
				return err
			}
			if err := tx.Model(&contribution).Update("status", models.ContributionApproved).Error; err != nil {
				return err
			}
			contribution.Status = models.ContributionApproved
			if err := s.applyApprovedContribution(tx, &challenge, &owner, &contribution, true); err != nil {
				return err
			}

		case rejections > int64(challenge.MinPeerApprovals)-total:
			proof.Status = models.ProofStatusRejected
			proof.ReviewedByID = &reviewerID
			proof.ReviewedAt = &now
			proof.RejectionReason = review.Comment
			if err := tx.Model(&proof).Updates(map[string]interface{}{
				"status":           proof.Status,
				"reviewed_by_id":   reviewerID,
				"reviewed_at":      now,
				"rejection_reason": review.Comment,
			}).Error; err != nil {
				return err
			}
			if err := tx.Model(&contribution).Update("status", models.ContributionRejected).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.challenges.InvalidateLeaderboard(ctx, challengeID)
	return &proof, nil
}

// applyApprovedContribution recomputes progress, advances the streak
// state, pays the per-task rewards and completes the participation when
// the target is met. Self-report approvals skip the reward path.
func (s *ContributionService) applyApprovedContribution(tx *gorm.DB, challenge *models.Challenge, participant *models.ChallengeParticipant, contribution *models.Contribution, rewarded bool) error {
	var sum *decimal.Decimal
	if err := tx.Model(&models.Contribution{}).
		Where("participation_id = ? AND status = ?", participant.ID, models.ContributionApproved).
		Select("SUM(value)").Scan(&sum).Error; err != nil {
		return err
	}
	progress := decimal.Zero
	if sum != nil {
		progress = *sum
	}

	now := time.Now().UTC()
	participant.CurrentProgress = progress
	participant.LastContributionAt = &now

	checkin, err := s.streaks.CheckInInTx(tx, participant.UserID, "challenge", fmt.Sprintf("%d", challenge.ID), contribution.LoggedAt)
	if err != nil {
		return err
	}
	participant.StreakCurrent = checkin.Streak.CurrentCount
	if checkin.Streak.CurrentCount > participant.StreakBest {
		participant.StreakBest = checkin.Streak.CurrentCount
	}

	if rewarded {
		contribID := contribution.ID
		result, err := s.progression.AwardXPInTx(tx, participant.UserID, XPContributionApproved, models.ReasonContributionApproved, "Contribution approved", &challenge.ID, &contribID)
		if err != nil {
			return err
		}
		participant.PointsEarned += result.Event.XPAmount

		cfg, err := s.credits.configInTx(tx)
		if err != nil {
			return err
		}
		if cfg.RewardTaskComplete > 0 {
			if _, err := s.credits.CreditInTx(tx, participant.UserID, cfg.RewardTaskComplete, models.TxTaskComplete, "Contribution approved", "contribution", contribution.ID); err != nil {
				return err
			}
		}
	}

	completed := false
	if participant.Status == models.ParticipationActive &&
		challenge.TargetValue > 0 &&
		progress.GreaterThanOrEqual(decimal.NewFromInt(challenge.TargetValue)) {
		completed = true
		participant.Status = models.ParticipationCompleted
		participant.CompletedAt = &now
	}

	if err := tx.Model(participant).Updates(map[string]interface{}{
		"current_progress":     participant.CurrentProgress,
		"last_contribution_at": participant.LastContributionAt,
		"streak_current":       participant.StreakCurrent,
		"streak_best":          participant.StreakBest,
		"points_earned":        participant.PointsEarned,
		"status":               participant.Status,
		"completed_at":         participant.CompletedAt,
	}).Error; err != nil {
		return err
	}

	if completed && challenge.Type != models.ChallengeDuel {
		if err := s.payCompletionReward(tx, challenge, participant); err != nil {
			return err
		}
	}

	return nil
}

// payCompletionReward grants the completion XP and pays back a share of
// the base creation cost. Proof surcharges are not refunded.
func (s *ContributionService) payCompletionReward(tx *gorm.DB, challenge *models.Challenge, participant *models.ChallengeParticipant) error {
	result, err := s.progression.AwardXPInTx(tx, participant.UserID, XPChallengeCompleted, models.ReasonChallengeCompleted, challenge.Title, &challenge.ID, nil)
	if err != nil {
		return err
	}

	cfg, err := s.credits.configInTx(tx)
	if err != nil {
		return err
	}

	cost := challengeCostFromConfig(cfg, challenge.Type, nil)
	reward := cost * cfg.RewardChallengeCompletePercent / 100
	if reward > 0 {
		desc := fmt.Sprintf("Completed challenge: %s", challenge.Title)
		if _, err := s.credits.CreditInTx(tx, participant.UserID, reward, models.TxChallengeComplete, desc, "challenge", challenge.ID); err != nil {
			return err
		}
	}

	return tx.Model(participant).
		Update("points_earned", participant.PointsEarned+result.Event.XPAmount).Error
}

// ListContributions returns the user's contributions for a challenge,
// newest first.
func (s *ContributionService) ListContributions(ctx context.Context, userID, challengeID uint) ([]models.Contribution, error) {
	var participant models.ChallengeParticipant
	err := s.db.WithContext(ctx).
		Where("challenge_id = ? AND user_id = ?", challengeID, userID).
		First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var contributions []models.Contribution
	if err := s.db.WithContext(ctx).
		Where("participation_id = ?", participant.ID).
		Order("logged_at DESC").Find(&contributions).Error; err != nil {
		return nil, err
	}
	return contributions, nil
}

// ListPendingReviews returns proofs in a challenge awaiting the
// reviewer's verdict, excluding their own.
func (s *ContributionService) ListPendingReviews(ctx context.Context, reviewerID, challengeID uint) ([]models.Proof, error) {
	if _, err := s.challenges.GetChallenge(ctx, reviewerID, challengeID); err != nil {
		return nil, err
	}

	var proofs []models.Proof
	err := s.db.WithContext(ctx).
		Joins("JOIN contributions ON contributions.id = proofs.contribution_id").
		Joins("JOIN challenge_participants ON challenge_participants.id = contributions.participation_id").
		Where("challenge_participants.challenge_id = ?", challengeID).
		Where("challenge_participants.user_id <> ?", reviewerID).
		Where("proofs.status = ?", models.ProofStatusPending).
		Where("proofs.id NOT IN (SELECT proof_id FROM proof_reviews WHERE reviewer_id = ?)", reviewerID).
		Find(&proofs).Error
	if err != nil {
		return nil, err
	}
	return proofs, nil
}

// ProofFileKey returns the stored file key for a proof the viewer may
// see: their own, or one in a challenge visible to them.
func (s *ContributionService) ProofFileKey(ctx context.Context, viewerID, proofID uint) (string, error) {
	tx := s.db.WithContext(ctx)

	var proof models.Proof
	err := tx.First(&proof, proofID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if proof.FileKey == "" {
		return "", apperrors.ErrNotFound
	}

	var contribution models.Contribution
	if err := tx.First(&contribution, proof.ContributionID).Error; err != nil {
		return "", err
	}
	var participant models.ChallengeParticipant
	if err := tx.First(&participant, contribution.ParticipationID).Error; err != nil {
		return "", err
	}
	if participant.UserID == viewerID {
		return proof.FileKey, nil
	}

	var challenge models.Challenge
	if err := tx.First(&challenge, participant.ChallengeID).Error; err != nil {
		return "", err
	}
	visible, err := s.challenges.VisibleTo(tx, &challenge, viewerID)
	if err != nil {
		return "", err
	}
	if !visible {
		return "", apperrors.ErrNotFound
	}
	return proof.FileKey, nil
}

// activeParticipation loads the challenge and the user's active
// participation, hiding invisible challenges.
func (s *ContributionService) activeParticipation(tx *gorm.DB, userID, challengeID uint) (*models.Challenge, *models.ChallengeParticipant, error) {
	var challenge models.Challenge
	err := tx.First(&challenge, challengeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	if challenge.Status != models.ChallengeStatusActive {
		return nil, nil, apperrors.ErrConflict
	}

	var participant models.ChallengeParticipant
	err = tx.Where("challenge_id = ? AND user_id = ? AND status = ?", challengeID, userID, models.ParticipationActive).
		First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	return &challenge, &participant, nil
}

// ownedContribution loads a contribution owned by userID along with its
// challenge and participation.
func (s *ContributionService) ownedContribution(tx *gorm.DB, userID, contributionID uint) (*models.Contribution, *models.Challenge, *models.ChallengeParticipant, error) {
	var contribution models.Contribution
	err := tx.First(&contribution, contributionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, nil, nil, err
	}

	var participant models.ChallengeParticipant
	if err := tx.First(&participant, contribution.ParticipationID).Error; err != nil {
		return nil, nil, nil, err
	}
	if participant.UserID != userID {
		return nil, nil, nil, apperrors.ErrNotFound
	}

	var challenge models.Challenge
	if err := tx.First(&challenge, participant.ChallengeID).Error; err != nil {
		return nil, nil, nil, err
	}

	return &contribution, &challenge, &participant, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"taskquest/internal/apperrors"
	"taskquest/internal/models"
	"taskquest/internal/notify"
)

// Share of the stake minted as the winner's bonus, in percent.
const duelWinBonusPercent = 80

// DuelService handles 1v1 challenge duels
type DuelService struct {
	db          *gorm.DB
	credits     *CreditService
	progression *ProgressionService
	challenges  *ChallengeService
	notifier    notify.Notifier
}

// NewDuelService creates a new DuelService
func NewDuelService(db *gorm.DB, credits *CreditService, progression *ProgressionService, challenges *ChallengeService, notifier notify.Notifier) *DuelService {
	return &DuelService{
		db:          db,
		credits:     credits,
		progression: progression,
		challenges:  challenges,
		notifier:    notifier,
	}
}

// CreateDuelInput defines a duel challenge against one opponent.
type CreateDuelInput struct {
	OpponentID  uint      `json:"opponent_id" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Goal        string    `json:"goal"`
	TargetValue int64     `json:"target_value"`
	Unit        string    `json:"unit"`
	StakePoints int64     `json:"stake_points"`
	EndDate     time.Time `json:"end_date"`
}

// CreateDuel creates the underlying challenge, the duel record and
// escrows the challenger's stake in one transaction. The opponent is
// invited and must accept before the duel runs.
func (s *DuelService) CreateDuel(ctx context.Context, challengerID uint, in CreateDuelInput) (*models.Duel, error) {
	if in.OpponentID == challengerID {
		return nil, apperrors.NewValidation("opponent_id", "cannot duel yourself")
	}
	if in.StakePoints < 0 {
		return nil, apperrors.NewValidation("stake_points", "stake must not be negative")
	}

	var duel *models.Duel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var opponent models.User
		err := tx.First(&opponent, in.OpponentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}

		challenge, err := s.challenges.CreateChallengeInTx(tx, challengerID, CreateChallengeInput{
			Title:       in.Title,
			Description: in.Description,
			Type:        models.ChallengeDuel,
			Visibility:  models.VisibilityInvite,
			Goal:        in.Goal,
			TargetValue: in.TargetValue,
			Unit:        in.Unit,
			EndDate:     in.EndDate,
		})
		if err != nil {
			return err
		}

		duel = &models.Duel{
			ChallengeID:  challenge.ID,
			ChallengerID: challengerID,
			OpponentID:   in.OpponentID,
			Status:       models.DuelStatusPending,
			StakePoints:  in.StakePoints,
		}
		if err := tx.Create(duel).Error; err != nil {
			return fmt.Errorf("failed to create duel: %w", err)
		}

		if in.StakePoints > 0 {
			desc := fmt.Sprintf("Duel stake: %s", challenge.Title)
			if _, err := s.credits.DebitInTx(tx, challengerID, in.StakePoints, models.TxDuelStake, desc, "duel", duel.ID); err != nil {
				return err
			}
		}

		invited := &models.ChallengeParticipant{
			ChallengeID: challenge.ID,
			UserID:      in.OpponentID,
			Status:      models.ParticipationInvited,
		}
		return tx.Create(invited).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, in.OpponentID, notify.EventDuelInvite, map[string]interface{}{
		"duel_id": duel.ID,
		"from":    challengerID,
		"stake":   duel.StakePoints,
	})
	return duel, nil
}

// AcceptDuel escrows the opponent's stake and starts the duel.
func (s *DuelService) AcceptDuel(ctx context.Context, opponentID, duelID uint) (*models.Duel, error) {
	var duel *models.Duel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		duel, err = s.lockedDuel(tx, duelID)
		if err != nil {
			return err
		}
		if duel.OpponentID != opponentID {
			return apperrors.ErrNotFound
		}
		if duel.Status != models.DuelStatusPending {
			return apperrors.ErrConflict
		}

		if duel.StakePoints > 0 {
			if _, err := s.credits.DebitInTx(tx, opponentID, duel.StakePoints, models.TxDuelStake, "Duel stake", "duel", duel.ID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		duel.Status = models.DuelStatusActive
		duel.AcceptedAt = &now
		if err := tx.Model(duel).Updates(map[string]interface{}{
			"status":      duel.Status,
			"accepted_at": now,
		}).Error; err != nil {
			return err
		}

		return tx.Model(&models.ChallengeParticipant{}).
			Where("challenge_id = ? AND user_id = ?", duel.ChallengeID, opponentID).
			Update("status", models.ParticipationActive).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, duel.ChallengerID, notify.EventDuelAccepted, map[string]interface{}{
		"duel_id": duel.ID,
		"by":      opponentID,
	})
	return duel, nil
}

// DeclineDuel cancels a pending duel and refunds the challenger's stake.
func (s *DuelService) DeclineDuel(ctx context.Context, opponentID, duelID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		duel, err := s.lockedDuel(tx, duelID)
		if err != nil {
			return err
		}
		if duel.OpponentID != opponentID && duel.ChallengerID != opponentID {
			return apperrors.ErrNotFound
		}
		if duel.Status != models.DuelStatusPending {
			return apperrors.ErrConflict
		}

		if duel.StakePoints > 0 {
			if _, err := s.credits.CreditInTx(tx, duel.ChallengerID, duel.StakePoints, models.TxRefund, "Duel declined", "duel", duel.ID); err != nil {
				return err
			}
		}

		if err := tx.Model(duel).Update("status", models.DuelStatusCancelled).Error; err != nil {
			return err
		}
		return tx.Model(&models.Challenge{}).
			Where("id = ?", duel.ChallengeID).
			Update("status", models.ChallengeStatusCancelled).Error
	})
}

// DuelResult summarizes a resolved duel.
type DuelResult struct {
	Duel     *models.Duel `json:"duel"`
	Tie      bool         `json:"tie"`
	WinnerID uint         `json:"winner_id,omitempty"`
	Payout   int64        `json:"payout,omitempty"`
}

// CompleteDuel resolves an active duel by comparing progress. The
// winner takes their stake back plus a minted bonus; a tie refunds both
// sides. Only a party to the duel may resolve it.
func (s *DuelService) CompleteDuel(ctx context.Context, callerID, duelID uint) (*DuelResult, error) {
	var result *DuelResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		duel, err := s.lockedDuel(tx, duelID)
		if err != nil {
			return err
		}
		if duel.ChallengerID != callerID && duel.OpponentID != callerID {
			return apperrors.ErrNotFound
		}
		if duel.Status != models.DuelStatusActive {
			return apperrors.ErrConflict
		}

		var challengerPart, opponentPart models.ChallengeParticipant
		if err := tx.Where("challenge_id = ? AND user_id = ?", duel.ChallengeID, duel.ChallengerID).
			First(&challengerPart).Error; err != nil {
			return err
		}
		if err := tx.Where("challenge_id = ? AND user_id = ?", duel.ChallengeID, duel.OpponentID).
			First(&opponentPart).Error; err != nil {
			return err
		}

		stake := duel.StakePoints
		if stake == 0 {
			cfg, err := s.credits.configInTx(tx)
			if err != nil {
				return err
			}
			stake = cfg.CostDuel
		}

		now := time.Now().UTC()
		result = &DuelResult{Duel: duel}

		cmp := challengerPart.CurrentProgress.Cmp(opponentPart.CurrentProgress)
		switch {
		case cmp == 0:
			result.Tie = true
			if duel.StakePoints > 0 {
				for _, userID := range []uint{duel.ChallengerID, duel.OpponentID} {
					if _, err := s.credits.CreditInTx(tx, userID, duel.StakePoints, models.TxRefund, "Duel tie", "duel", duel.ID); err != nil {
						return err
					}
				}
			}
			for _, userID := range []uint{duel.ChallengerID, duel.OpponentID} {
				if _, err := s.progression.AwardXPInTx(tx, userID, XPDuelTie, models.ReasonChallengeCompleted, "Duel tie", &duel.ChallengeID, nil); err != nil {
					return err
				}
			}

		default:
			winnerID := duel.ChallengerID
			loserID := duel.OpponentID
			if cmp < 0 {
				winnerID, loserID = loserID, winnerID
			}
			result.WinnerID = winnerID
			duel.WinnerID = &winnerID

			// Winner reclaims their escrowed stake plus a minted bonus;
			// the loser's stake stays burned.
			payout := duel.StakePoints + stake*duelWinBonusPercent/100
			result.Payout = payout
			if payout > 0 {
				if _, err := s.credits.CreditInTx(tx, winnerID, payout, models.TxDuelWon, "Duel won", "duel", duel.ID); err != nil {
					return err
				}
			}

			if _, err := s.progression.AwardXPInTx(tx, winnerID, XPChallengeWon, models.ReasonChallengeWon, "Duel won", &duel.ChallengeID, nil); err != nil {
				return err
			}
			if _, err := s.progression.AwardXPInTx(tx, loserID, XPDuelLost, models.ReasonChallengeCompleted, "Duel finished", &duel.ChallengeID, nil); err != nil {
				return err
			}
		}

		duel.Status = models.DuelStatusCompleted
		duel.CompletedAt = &now
		if err := tx.Model(duel).Updates(map[string]interface{}{
			"status":       duel.Status,
			"winner_id":    duel.WinnerID,
			"completed_at": now,
		}).Error; err != nil {
			return err
		}

		return tx.Model(&models.Challenge{}).
			Where("id = ?", duel.ChallengeID).
			Update("status", models.ChallengeStatusCompleted).Error
	})
	if err != nil {
		return nil, err
	}

	for _, userID := range []uint{result.Duel.ChallengerID, result.Duel.OpponentID} {
		s.notifier.Notify(ctx, userID, notify.EventDuelResolved, map[string]interface{}{
			"duel_id":   result.Duel.ID,
			"tie":       result.Tie,
			"winner_id": result.WinnerID,
		})
	}
	return result, nil
}

// GetDuel returns a duel if the viewer is a party to it.
func (s *DuelService) GetDuel(ctx context.Context, viewerID, duelID uint) (*models.Duel, error) {
	var duel models.Duel
	err := s.db.WithContext(ctx).First(&duel, duelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if duel.ChallengerID != viewerID && duel.OpponentID != viewerID {
		return nil, apperrors.ErrNotFound
	}
	return &duel, nil
}

// ListDuels returns all duels the user participates in, newest first.
func (s *DuelService) ListDuels(ctx context.Context, userID uint) ([]models.Duel, error) {
	var duels []models.Duel
	if err := s.db.WithContext(ctx).
		Where("challenger_id = ? OR opponent_id = ?", userID, userID).
		Order("created_at DESC").Find(&duels).Error; err != nil {
		return nil, err
	}
	return duels, nil
}

func (s *DuelService) lockedDuel(tx *gorm.DB, duelID uint) (*models.Duel, error) {
	var duel models.Duel
	err := forUpdate(tx).First(&duel, duelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &duel, nil
}

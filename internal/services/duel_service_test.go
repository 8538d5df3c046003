package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"taskquest/internal/apperrors"
	"taskquest/internal/models"
	"taskquest/internal/notify"
)

type duelFixture struct {
	db      *gorm.DB
	credits *CreditService
	duels   *DuelService
}

func newDuelFixture(t *testing.T) *duelFixture {
	db := setupTestDB(t)
	credits := NewCreditService(db)
	progression := NewProgressionService(db, credits)
	challenges := NewChallengeService(db, credits, progression, nil)
	duels := NewDuelService(db, credits, progression, challenges, notify.Noop{})
	return &duelFixture{db: db, credits: credits, duels: duels}
}

func (f *duelFixture) balance(t *testing.T, userID uint) int64 {
	wallet, err := f.credits.GetOrCreateWallet(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to load wallet: %v", err)
	}
	return wallet.Balance
}

func TestCreateDuelEscrowsStake(t *testing.T) {
	f := newDuelFixture(t)
	challenger := createTestUser(t, f.db, "jack")
	opponent := createTestUser(t, f.db, "kate")
	ctx := context.Background()

	fundUser(t, f.db, f.credits, challenger.ID, 100)

	duel, err := f.duels.CreateDuel(ctx, challenger.ID, CreateDuelInput{
		OpponentID:  opponent.ID,
		Title:       "Pushup duel",
		TargetValue: 100,
		StakePoints: 30,
	})
	if err != nil {
		t.Fatalf("failed to create duel: %v", err)
	}
	if duel.Status != models.DuelStatusPending {
		t.Errorf("expected pending duel, got %s", duel.Status)
	}

	// 20 creation cost for the duel challenge plus the 30 stake.
	if got := f.balance(t, challenger.ID); got != 50 {
		t.Errorf("expected challenger balance 50, got %d", got)
	}

	var invited models.ChallengeParticipant
	if err := f.db.Where("challenge_id = ? AND user_id = ?", duel.ChallengeID, opponent.ID).
		First(&invited).Error; err != nil {
		t.Fatalf("opponent should be invited: %v", err)
	}
	if invited.Status != models.ParticipationInvited {
		t.Errorf("expected invited status, got %s", invited.Status)
	}
}

func TestCreateDuelRejectsSelf(t *testing.T) {
	f := newDuelFixture(t)
	user := createTestUser(t, f.db, "loki")
	ctx := context.Background()

	_, err := f.duels.CreateDuel(ctx, user.ID, CreateDuelInput{
		OpponentID: user.ID,
		Title:      "Me vs me",
	})
	if !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAcceptDuelEscrowsOpponentStake(t *testing.T) {
	f := newDuelFixture(t)
	challenger := createTestUser(t, f.db, "mia")
	opponent := createTestUser(t, f.db, "noah")
	ctx := context.Background()

	fundUser(t, f.db, f.credits, challenger.ID, 100)
	fundUser(t, f.db, f.credits, opponent.ID, 100)

	duel, err := f.duels.CreateDuel(ctx, challenger.ID, CreateDuelInput{
		OpponentID:  opponent.ID,
		Title:       "Plank duel",
		StakePoints: 40,
	})
	if err != nil {
		t.Fatalf("failed to create duel: %v", err)
	}

	// Only the invited opponent may accept.
	_, err = f.duels.AcceptDuel(ctx, challenger.ID, duel.ID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for wrong accepter, got %v", err)
	}

	accepted, err := f.duels.AcceptDuel(ctx, opponent.ID, duel.ID)
	if err != nil {
		t.Fatalf("failed to accept duel: %v", err)
	}
	if accepted.Status != models.DuelStatusActive {
		t.Errorf("expected active duel, got %s", accepted.Status)
	}
	if got := f.balance(t, opponent.ID); got != 60 {
		t.Errorf("expected opponent balance 60 after stake, got %d", got)
	}

	// Accepting twice conflicts.
	_, err = f.duels.AcceptDuel(ctx, opponent.ID, duel.ID)
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict on double accept, got %v", err)
	}
}

func TestDeclineDuelRefundsChallenger(t *testing.T) {
	f := newDuelFixture(t)
	challenger := createTestUser(t, f.db, "olga")
	opponent := createTestUser(t, f.db, "pete")
	ctx := context.Background()

	fundUser(t, f.db, f.credits, challenger.ID, 100)

	duel, err := f.duels.CreateDuel(ctx, challenger.ID, CreateDuelInput{
		OpponentID:  opponent.ID,
		Title:       "Declined duel",
		StakePoints: 30,
	})
	if err != nil {
		t.Fatalf("failed to create duel: %v", err)
	}

	if err := f.duels.DeclineDuel(ctx, opponent.ID, duel.ID); err != nil {
		t.Fatalf("failed to decline duel: %v", err)
	}

	// The stake comes back; the creation cost stays burned.
	if got := f.balance(t, challenger.ID); got != 80 {
		t.Errorf("expected challenger balance 80 after refund, got %d", got)
	}

	var fresh models.Duel
	if err := f.db.First(&fresh, duel.ID).Error; err != nil {
		t.Fatalf("failed to reload duel: %v", err)
	}
	if fresh.Status != models.DuelStatusCancelled {
		t.Errorf("expected cancelled duel, got %s", fresh.Status)
	}
}

func TestCompleteDuelPaysWinner(t *testing.T) {
	f := newDuelFixture(t)
	challenger := createTestUser(t, f.db, "rita")
	opponent := createTestUser(t, f.db, "sam")
	ctx := context.Background()

	fundUser(t, f.db, f.credits, challenger.ID, 100)
	fundUser(t, f.db, f.credits, opponent.ID, 100)

	duel, err := f.duels.CreateDuel(ctx, challenger.ID, CreateDuelInput{
		OpponentID:  opponent.ID,
		Title:       "Step duel",
		TargetValue: 10000,
		StakePoints: 50,
	})
	if err != nil {
		t.Fatalf("failed to create duel: %v", err)
	}
	if _, err := f.duels.AcceptDuel(ctx, opponent.ID, duel.ID); err != nil {
		t.Fatalf("failed to accept duel: %v", err)
	}

	if err := f.db.Model(&models.ChallengeParticipant{}).
		Where("challenge_id = ? AND user_id = ?", duel.ChallengeID, opponent.ID).
		Update("current_progress", 8000).Error; err != nil {
		t.Fatalf("failed to set progress: %v", err)
	}
	if err := f.db.Model(&models.ChallengeParticipant{}).
		Where("challenge_id = ? AND user_id = ?", duel.ChallengeID, challenger.ID).
		Update("current_progress", 3000).Error; err != nil {
		t.Fatalf("failed to set progress: %v", err)
	}

	result, err := f.duels.CompleteDuel(ctx, challenger.ID, duel.ID)
	if err != nil {
		t.Fatalf("failed to complete duel: %v", err)
	}
	if result.Tie {
		t.Fatal("expected a decided duel")
	}
	if result.WinnerID != opponent.ID {
		t.Errorf("expected opponent to win, got user %d", result.WinnerID)
	}
	// Stake back plus 80 percent bonus.
	if result.Payout != 90 {
		t.Errorf("expected payout 90, got %d", result.Payout)
	}

	// Opponent: 100 - 50 stake + 90 payout.
	if got := f.balance(t, opponent.ID); got != 140 {
		t.Errorf("expected winner balance 140, got %d", got)
	}
	// Challenger: 100 - 20 creation - 50 stake, loser stake stays burned.
	if got := f.balance(t, challenger.ID); got != 30 {
		t.Errorf("expected loser balance 30, got %d", got)
	}

	var winEvent models.RewardEvent
	if err := f.db.Where("user_id = ? AND reason = ?", opponent.ID, models.ReasonChallengeWon).
		First(&winEvent).Error; err != nil {
		t.Fatalf("expected a win event: %v", err)
	}
	if winEvent.XPAmount != 100 {
		t.Errorf("expected 100 XP for the win, got %d", winEvent.XPAmount)
	}
}

func TestCompleteDuelTieRefundsBoth(t *testing.T) {
	f := newDuelFixture(t)
	challenger := createTestUser(t, f.db, "tess")
	opponent := createTestUser(t, f.db, "umar")
	ctx := context.Background()

	fundUser(t, f.db, f.credits, challenger.ID, 100)
	fundUser(t, f.db, f.credits, opponent.ID, 100)

	duel, err := f.duels.CreateDuel(ctx, challenger.ID, CreateDuelInput{
		OpponentID:  opponent.ID,
		Title:       "Even duel",
		StakePoints: 25,
	})
	if err != nil {
		t.Fatalf("failed to create duel: %v", err)
	}
	if _, err := f.duels.AcceptDuel(ctx, opponent.ID, duel.ID); err != nil {
		t.Fatalf("failed to accept duel: %v", err)
	}

	result, err := f.duels.CompleteDuel(ctx, opponent.ID, duel.ID)
	if err != nil {
		t.Fatalf("failed to complete duel: %v", err)
	}
	if !result.Tie {
		t.Fatal("expected a tie with equal progress")
	}

	// Both stakes refunded; only the challenger paid the creation cost.
	if got := f.balance(t, challenger.ID); got != 80 {
		t.Errorf("expected challenger balance 80, got %d", got)
	}
	if got := f.balance(t, opponent.ID); got != 100 {
		t.Errorf("expected opponent balance 100, got %d", got)
	}

	var tieEvents int64
	if err := f.db.Model(&models.RewardEvent{}).
		Where("xp_amount = ? AND reason_detail = ?", XPDuelTie, "Duel tie").
		Count(&tieEvents).Error; err != nil {
		t.Fatalf("failed to count tie events: %v", err)
	}
	if tieEvents != 2 {
		t.Errorf("expected 2 tie events, got %d", tieEvents)
	}
}

func TestGetDuelHiddenFromOutsiders(t *testing.T) {
	f := newDuelFixture(t)
	challenger := createTestUser(t, f.db, "vera")
	opponent := createTestUser(t, f.db, "will")
	outsider := createTestUser(t, f.db, "xena")
	ctx := context.Background()

	fundUser(t, f.db, f.credits, challenger.ID, 100)

	duel, err := f.duels.CreateDuel(ctx, challenger.ID, CreateDuelInput{
		OpponentID: opponent.ID,
		Title:      "Private duel",
	})
	if err != nil {
		t.Fatalf("failed to create duel: %v", err)
	}

	if _, err := f.duels.GetDuel(ctx, opponent.ID, duel.ID); err != nil {
		t.Fatalf("opponent must see the duel: %v", err)
	}
	_, err = f.duels.GetDuel(ctx, outsider.ID, duel.ID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for outsider, got %v", err)
	}
}

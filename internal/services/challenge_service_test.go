package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"taskquest/internal/apperrors"
	"taskquest/internal/models"
)

func challengeServices(t *testing.T) (*gorm.DB, *CreditService, *ChallengeService) {
	db := setupTestDB(t)
	credits := NewCreditService(db)
	progression := NewProgressionService(db, credits)
	challenges := NewChallengeService(db, credits, progression, nil)
	return db, credits, challenges
}

func TestCreateChallengeDebitsCost(t *testing.T) {
	db, credits, challenges := challengeServices(t)
	creator := createTestUser(t, db, "kim")
	ctx := context.Background()

	fundUser(t, db, credits, creator.ID, 100)

	challenge, err := challenges.CreateChallenge(ctx, creator.ID, CreateChallengeInput{
		Title:              "Run 50 km",
		Type:               models.ChallengeQuantified,
		Visibility:         models.VisibilityPublic,
		TargetValue:        50,
		Unit:               "km",
		RequiredProofTypes: models.ProofTypeList{models.ProofPhoto},
	})
	if err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}
	if challenge.Status != models.ChallengeStatusActive {
		t.Errorf("expected active status, got %s", challenge.Status)
	}

	wallet, err := credits.GetOrCreateWallet(ctx, creator.ID)
	if err != nil {
		t.Fatalf("failed to load wallet: %v", err)
	}
	// quantified base 10 plus photo proof 5
	if wallet.Balance != 85 {
		t.Errorf("expected balance 85 after creation, got %d", wallet.Balance)
	}

	var participant models.ChallengeParticipant
	if err := db.Where("challenge_id = ? AND user_id = ?", challenge.ID, creator.ID).
		First(&participant).Error; err != nil {
		t.Fatalf("creator should be a participant: %v", err)
	}
	if participant.Status != models.ParticipationActive {
		t.Errorf("expected active participation, got %s", participant.Status)
	}
}

func TestCreateChallengeInsufficientFundsRollsBack(t *testing.T) {
	db, credits, challenges := challengeServices(t)
	creator := createTestUser(t, db, "liam")
	ctx := context.Background()

	fundUser(t, db, credits, creator.ID, 3)

	_, err := challenges.CreateChallenge(ctx, creator.ID, CreateChallengeInput{
		Title: "Too rich for me",
		Type:  models.ChallengeTodo,
	})
	if !errors.Is(err, apperrors.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	var count int64
	if err := db.Model(&models.Challenge{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count challenges: %v", err)
	}
	if count != 0 {
		t.Errorf("failed create must leave no challenge row, got %d", count)
	}
}

func TestCreateChallengeValidation(t *testing.T) {
	db, _, challenges := challengeServices(t)
	creator := createTestUser(t, db, "mallory")
	ctx := context.Background()

	_, err := challenges.CreateChallenge(ctx, creator.ID, CreateChallengeInput{
		Title: "<script>alert(1)</script>",
		Type:  models.ChallengeTodo,
	})
	if !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for script-only title, got %v", err)
	}

	_, err = challenges.CreateChallenge(ctx, creator.ID, CreateChallengeInput{
		Title: "Team without team",
		Type:  models.ChallengeTeam,
		Visibility: models.VisibilityTeam,
	})
	if !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for missing team, got %v", err)
	}
}

func TestPrivateChallengeHiddenFromStrangers(t *testing.T) {
	db, credits, challenges := challengeServices(t)
	creator := createTestUser(t, db, "nina")
	stranger := createTestUser(t, db, "oscar")
	ctx := context.Background()

	fundUser(t, db, credits, creator.ID, 50)

	challenge, err := challenges.CreateChallenge(ctx, creator.ID, CreateChallengeInput{
		Title:      "Secret habit",
		Type:       models.ChallengeTodo,
		Visibility: models.VisibilityPrivate,
	})
	if err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}

	if _, err := challenges.GetChallenge(ctx, creator.ID, challenge.ID); err != nil {
		t.Fatalf("creator must see their challenge: %v", err)
	}

	_, err = challenges.GetChallenge(ctx, stranger.ID, challenge.ID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("stranger should get not found, got %v", err)
	}

	list, err := challenges.ListChallenges(ctx, stranger.ID, ChallengeFilter{})
	if err != nil {
		t.Fatalf("failed to list challenges: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("private challenge must not appear in stranger's list, got %d", len(list))
	}
}

func TestJoinChallengeAndMaxParticipants(t *testing.T) {
	db, credits, challenges := challengeServices(t)
	creator := createTestUser(t, db, "peggy")
	second := createTestUser(t, db, "quinn")
	third := createTestUser(t, db, "rupert")
	ctx := context.Background()

	fundUser(t, db, credits, creator.ID, 50)

	max := 2
	challenge, err := challenges.CreateChallenge(ctx, creator.ID, CreateChallengeInput{
		Title:           "Small group",
		Type:            models.ChallengeTodo,
		Visibility:      models.VisibilityPublic,
		MaxParticipants: &max,
	})
	if err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}

	if _, err := challenges.JoinChallenge(ctx, second.ID, challenge.ID); err != nil {
		t.Fatalf("second user should join: %v", err)
	}

	// Double join conflicts.
	_, err = challenges.JoinChallenge(ctx, second.ID, challenge.ID)
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict on double join, got %v", err)
	}

	// Creator plus second fill the two slots.
	_, err = challenges.JoinChallenge(ctx, third.ID, challenge.ID)
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict when full, got %v", err)
	}
}

func TestInviteThenJoin(t *testing.T) {
	db, credits, challenges := challengeServices(t)
	creator := createTestUser(t, db, "sybil")
	invitee := createTestUser(t, db, "trent")
	ctx := context.Background()

	fundUser(t, db, credits, creator.ID, 50)

	challenge, err := challenges.CreateChallenge(ctx, creator.ID, CreateChallengeInput{
		Title:      "Invite only",
		Type:       models.ChallengeTodo,
		Visibility: models.VisibilityInvite,
	})
	if err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}

	// Not visible before the invite.
	_, err = challenges.GetChallenge(ctx, invitee.ID, challenge.ID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found before invite, got %v", err)
	}

	participant, err := challenges.InviteToChallenge(ctx, creator.ID, challenge.ID, invitee.ID)
	if err != nil {
		t.Fatalf("failed to invite: %v", err)
	}
	if participant.Status != models.ParticipationInvited {
		t.Errorf("expected invited status, got %s", participant.Status)
	}

	joined, err := challenges.JoinChallenge(ctx, invitee.ID, challenge.ID)
	if err != nil {
		t.Fatalf("invitee should be able to accept: %v", err)
	}
	if joined.Status != models.ParticipationActive {
		t.Errorf("expected active status after accepting, got %s", joined.Status)
	}
}

func TestLeaveAndCancelChallenge(t *testing.T) {
	db, credits, challenges := challengeServices(t)
	creator := createTestUser(t, db, "ursula")
	member := createTestUser(t, db, "victor")
	ctx := context.Background()

	fundUser(t, db, credits, creator.ID, 50)

	challenge, err := challenges.CreateChallenge(ctx, creator.ID, CreateChallengeInput{
		Title:      "Short lived",
		Type:       models.ChallengeTodo,
		Visibility: models.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}
	if _, err := challenges.JoinChallenge(ctx, member.ID, challenge.ID); err != nil {
		t.Fatalf("failed to join: %v", err)
	}

	if err := challenges.LeaveChallenge(ctx, member.ID, challenge.ID); err != nil {
		t.Fatalf("failed to leave: %v", err)
	}
	if err := challenges.LeaveChallenge(ctx, member.ID, challenge.ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict on double leave, got %v", err)
	}

	// Only the creator may cancel.
	if err := challenges.CancelChallenge(ctx, member.ID, challenge.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for non-creator cancel, got %v", err)
	}
	if err := challenges.CancelChallenge(ctx, creator.ID, challenge.ID); err != nil {
		t.Fatalf("failed to cancel: %v", err)
	}
	if err := challenges.CancelChallenge(ctx, creator.ID, challenge.ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict on double cancel, got %v", err)
	}
}

func TestCreatorCannotLeaveChallenge(t *testing.T) {
	db, credits, challenges := challengeServices(t)
	creator := createTestUser(t, db, "yvonne")
	ctx := context.Background()

	fundUser(t, db, credits, creator.ID, 50)

	challenge, err := challenges.CreateChallenge(ctx, creator.ID, CreateChallengeInput{
		Title:      "Stuck with it",
		Type:       models.ChallengeTodo,
		Visibility: models.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}

	if err := challenges.LeaveChallenge(ctx, creator.ID, challenge.ID); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for creator leave, got %v", err)
	}

	var participant models.ChallengeParticipant
	if err := db.Where("challenge_id = ? AND user_id = ?", challenge.ID, creator.ID).
		First(&participant).Error; err != nil {
		t.Fatalf("failed to load participant: %v", err)
	}
	if participant.Status != models.ParticipationActive {
		t.Errorf("creator participation must stay active, got %s", participant.Status)
	}
}

func TestDeleteChallengeCascadesParticipations(t *testing.T) {
	db, credits, challenges := challengeServices(t)
	creator := createTestUser(t, db, "zelda")
	member := createTestUser(t, db, "amos")
	ctx := context.Background()

	fundUser(t, db, credits, creator.ID, 50)

	challenge, err := challenges.CreateChallenge(ctx, creator.ID, CreateChallengeInput{
		Title:      "Doomed",
		Type:       models.ChallengeTodo,
		Visibility: models.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}
	if _, err := challenges.JoinChallenge(ctx, member.ID, challenge.ID); err != nil {
		t.Fatalf("failed to join: %v", err)
	}

	// Only the creator may delete.
	if err := challenges.DeleteChallenge(ctx, member.ID, challenge.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for non-creator delete, got %v", err)
	}

	if err := challenges.DeleteChallenge(ctx, creator.ID, challenge.ID); err != nil {
		t.Fatalf("failed to delete challenge: %v", err)
	}

	var challengeCount int64
	if err := db.Model(&models.Challenge{}).Where("id = ?", challenge.ID).Count(&challengeCount).Error; err != nil {
		t.Fatalf("failed to count challenges: %v", err)
	}
	if challengeCount != 0 {
		t.Error("challenge row should be gone")
	}

	var participantCount int64
	if err := db.Model(&models.ChallengeParticipant{}).
		Where("challenge_id = ?", challenge.ID).Count(&participantCount).Error; err != nil {
		t.Fatalf("failed to count participants: %v", err)
	}
	if participantCount != 0 {
		t.Errorf("expected participations removed, got %d", participantCount)
	}

	if err := challenges.DeleteChallenge(ctx, creator.ID, challenge.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	db, credits, challenges := challengeServices(t)
	creator := createTestUser(t, db, "wanda")
	rival := createTestUser(t, db, "xavier")
	ctx := context.Background()

	fundUser(t, db, credits, creator.ID, 50)

	challenge, err := challenges.CreateChallenge(ctx, creator.ID, CreateChallengeInput{
		Title:       "Step contest",
		Type:        models.ChallengeQuantified,
		Visibility:  models.VisibilityPublic,
		TargetValue: 1000,
		Unit:        "steps",
	})
	if err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}
	if _, err := challenges.JoinChallenge(ctx, rival.ID, challenge.ID); err != nil {
		t.Fatalf("failed to join: %v", err)
	}

	if err := db.Model(&models.ChallengeParticipant{}).
		Where("challenge_id = ? AND user_id = ?", challenge.ID, rival.ID).
		Update("current_progress", 300).Error; err != nil {
		t.Fatalf("failed to set progress: %v", err)
	}

	entries, err := challenges.GetLeaderboard(ctx, creator.ID, challenge.ID)
	if err != nil {
		t.Fatalf("failed to get leaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].UserID != rival.ID || entries[0].Rank != 1 {
		t.Errorf("expected rival ranked first, got user %d at rank %d", entries[0].UserID, entries[0].Rank)
	}
	if entries[1].UserID != creator.ID {
		t.Errorf("expected creator ranked second, got user %d", entries[1].UserID)
	}
}

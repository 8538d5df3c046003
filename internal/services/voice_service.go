package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"gorm.io/gorm"

	"taskquest/internal/apperrors"
	"taskquest/internal/models"
	"taskquest/internal/storage"
	"taskquest/internal/voiceai"
)

// VoiceService turns recorded memos into draft challenges
type VoiceService struct {
	db          *gorm.DB
	store       storage.FileStore
	transcriber voiceai.Transcriber
	parser      voiceai.ChallengeParser
	challenges  *ChallengeService
	configured  bool
}

// NewVoiceService creates a new VoiceService. When client is nil or
// unconfigured, processing operations report unavailability but uploads
// still work.
func NewVoiceService(db *gorm.DB, store storage.FileStore, client *voiceai.Client, challenges *ChallengeService) *VoiceService {
	svc := &VoiceService{db: db, store: store, challenges: challenges}
	if client != nil && client.Configured() {
		svc.transcriber = client
		svc.parser = client
		svc.configured = true
	}
	return svc
}

// UploadMemo stores an audio file and records the memo as pending.
func (s *VoiceService) UploadMemo(ctx context.Context, userID uint, fileHeader *multipart.FileHeader) (*models.VoiceMemo, error) {
	key, err := s.store.Upload(ctx, storage.CategoryVoiceMemo, fileHeader)
	if err != nil {
		return nil, err
	}

	memo := &models.VoiceMemo{
		UserID:           userID,
		FileKey:          key,
		OriginalFilename: fileHeader.Filename,
		FileSize:         fileHeader.Size,
		MimeType:         fileHeader.Header.Get("Content-Type"),
		Status:           models.MemoStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(memo).Error; err != nil {
		return nil, fmt.Errorf("failed to create memo: %w", err)
	}
	return memo, nil
}

// ProcessMemo runs transcription and intent parsing on a memo. The
// pipeline is re-runnable from pending or failed states.
func (s *VoiceService) ProcessMemo(ctx context.Context, userID, memoID uint) (*models.VoiceMemo, error) {
	if !s.configured {
		return nil, apperrors.ErrUnavailable
	}

	memo, err := s.ownedMemo(ctx, userID, memoID)
	if err != nil {
		return nil, err
	}
	if memo.Status != models.MemoStatusPending && memo.Status != models.MemoStatusFailed {
		return nil, apperrors.ErrConflict
	}

	if err := s.setStatus(ctx, memo, models.MemoStatusTranscribing); err != nil {
		return nil, err
	}

	audio, err := s.store.Download(ctx, memo.FileKey)
	if err != nil {
		return nil, s.fail(ctx, memo, fmt.Sprintf("audio fetch failed: %v", err))
	}
	defer audio.Close()

	transcript, err := s.transcriber.Transcribe(ctx, audio, memo.OriginalFilename, memo.MimeType)
	if err != nil {
		return nil, s.fail(ctx, memo, fmt.Sprintf("transcription failed: %v", err))
	}

	memo.Transcript = transcript
	if err := s.db.WithContext(ctx).Model(memo).Updates(map[string]interface{}{
		"transcript": transcript,
		"status":     models.MemoStatusParsing,
	}).Error; err != nil {
		return nil, err
	}
	memo.Status = models.MemoStatusParsing

	intent, err := s.parser.ParseChallenge(ctx, transcript)
	if err != nil {
		return nil, s.fail(ctx, memo, fmt.Sprintf("parsing failed: %v", err))
	}
	applyIntentDefaults(intent, transcript)

	raw, err := json.Marshal(intent)
	if err != nil {
		return nil, s.fail(ctx, memo, fmt.Sprintf("intent encode failed: %v", err))
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(memo).Updates(map[string]interface{}{
		"parsed_intent": string(raw),
		"status":        models.MemoStatusParsed,
		"processed_at":  now,
	}).Error; err != nil {
		return nil, err
	}
	memo.ParsedIntent = string(raw)
	memo.Status = models.MemoStatusParsed
	memo.ProcessedAt = &now
	return memo, nil
}

// applyIntentDefaults fills missing parsed fields so every stored intent
// describes a creatable challenge.
func applyIntentDefaults(intent *voiceai.ChallengeIntent, transcript string) {
	if !models.ValidChallengeType(models.ChallengeType(intent.ChallengeType)) {
		intent.ChallengeType = string(models.ChallengeTodo)
	}
	if intent.Title == "" {
		intent.Title = transcript
		if len(intent.Title) > 60 {
			intent.Title = intent.Title[:60]
		}
	}
	if intent.Title == "" {
		intent.Title = "New Challenge"
	}
	if intent.TargetValue <= 0 {
		intent.TargetValue = 1
	}
	if intent.DurationDays <= 0 {
		intent.DurationDays = 7
	}
	if !models.ValidProofType(models.ProofType(intent.ProofType)) {
		intent.ProofType = string(models.ProofSelf)
	}
	if intent.Confidence <= 0 {
		intent.Confidence = 0.5
	}
}

// MemoChallengeOverrides adjusts parsed values before the challenge is
// created. Zero fields keep the parsed value.
type MemoChallengeOverrides struct {
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Type         models.ChallengeType `json:"challenge_type"`
	Goal         string               `json:"goal"`
	TargetValue  *int64               `json:"target_value"`
	Unit         string               `json:"unit"`
	DurationDays *int                 `json:"duration_days"`
	ProofType    models.ProofType     `json:"proof_type"`
}

// CreateChallengeFromMemo turns a parsed memo into a real challenge.
func (s *VoiceService) CreateChallengeFromMemo(ctx context.Context, userID, memoID uint, overrides *MemoChallengeOverrides) (*models.Challenge, error) {
	memo, err := s.ownedMemo(ctx, userID, memoID)
	if err != nil {
		return nil, err
	}
	if memo.Status != models.MemoStatusParsed {
		return nil, apperrors.ErrConflict
	}

	var intent voiceai.ChallengeIntent
	if err := json.Unmarshal([]byte(memo.ParsedIntent), &intent); err != nil {
		return nil, fmt.Errorf("stored intent unreadable: %w", err)
	}
	applyIntentDefaults(&intent, memo.Transcript)

	if overrides != nil {
		if overrides.Title != "" {
			intent.Title = overrides.Title
		}
		if overrides.Description != "" {
			intent.Description = overrides.Description
		}
		if overrides.Type != "" {
			intent.ChallengeType = string(overrides.Type)
		}
		if overrides.Goal != "" {
			intent.Goal = overrides.Goal
		}
		if overrides.TargetValue != nil {
			intent.TargetValue = *overrides.TargetValue
		}
		if overrides.Unit != "" {
			intent.Unit = overrides.Unit
		}
		if overrides.DurationDays != nil {
			intent.DurationDays = *overrides.DurationDays
		}
		if overrides.ProofType != "" {
			intent.ProofType = string(overrides.ProofType)
		}
	}

	input := CreateChallengeInput{
		Title:              intent.Title,
		Description:        intent.Description,
		Type:               models.ChallengeType(intent.ChallengeType),
		Visibility:         models.VisibilityPrivate,
		Goal:               intent.Goal,
		TargetValue:        intent.TargetValue,
		Unit:               intent.Unit,
		RequiredProofTypes: models.ProofTypeList{models.ProofType(intent.ProofType)},
		StartDate:          time.Now().UTC(),
	}
	input.EndDate = input.StartDate.AddDate(0, 0, intent.DurationDays)

	var challenge *models.Challenge
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		challenge, err = s.challenges.CreateChallengeInTx(tx, userID, input)
		if err != nil {
			return err
		}
		return tx.Model(memo).Updates(map[string]interface{}{
			"status":               models.MemoStatusChallengeCreated,
			"created_challenge_id": challenge.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return challenge, nil
}

// DismissMemo discards a memo that will not become a challenge.
func (s *VoiceService) DismissMemo(ctx context.Context, userID, memoID uint) error {
	memo, err := s.ownedMemo(ctx, userID, memoID)
	if err != nil {
		return err
	}
	if memo.Status.Terminal() {
		return apperrors.ErrConflict
	}
	return s.db.WithContext(ctx).Model(memo).Update("status", models.MemoStatusDismissed).Error
}

// ListMemos returns the user's memos, newest first.
func (s *VoiceService) ListMemos(ctx context.Context, userID uint) ([]models.VoiceMemo, error) {
	var memos []models.VoiceMemo
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).Order("created_at DESC").
		Find(&memos).Error; err != nil {
		return nil, err
	}
	return memos, nil
}

// GetMemo returns one memo owned by the user.
func (s *VoiceService) GetMemo(ctx context.Context, userID, memoID uint) (*models.VoiceMemo, error) {
	return s.ownedMemo(ctx, userID, memoID)
}

func (s *VoiceService) ownedMemo(ctx context.Context, userID, memoID uint) (*models.VoiceMemo, error) {
	var memo models.VoiceMemo
	err := s.db.WithContext(ctx).First(&memo, memoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if memo.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return &memo, nil
}

func (s *VoiceService) setStatus(ctx context.Context, memo *models.VoiceMemo, status models.VoiceMemoStatus) error {
	if err := s.db.WithContext(ctx).Model(memo).Update("status", status).Error; err != nil {
		return err
	}
	memo.Status = status
	return nil
}

// fail marks the memo failed and returns a wrapped error for the caller.
func (s *VoiceService) fail(ctx context.Context, memo *models.VoiceMemo, msg string) error {
	_ = s.db.WithContext(ctx).Model(memo).Updates(map[string]interface{}{
		"status":        models.MemoStatusFailed,
		"error_message": msg,
	}).Error
	return fmt.Errorf("memo processing failed: %s", msg)
}

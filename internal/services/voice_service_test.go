package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"taskquest/internal/apperrors"
	"taskquest/internal/models"
	"taskquest/internal/storage"
	"taskquest/internal/voiceai"
)

type fakeStore struct{}

func (fakeStore) Upload(context.Context, storage.FileCategory, *multipart.FileHeader) (string, error) {
	return "voice-memos/uploaded.m4a", nil
}

func (fakeStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("audio-bytes")), nil
}

func (fakeStore) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "https://example.com/signed", nil
}

func (fakeStore) Delete(context.Context, string) error { return nil }

type fakeTranscriber struct {
	transcript string
	err        error
}

func (f fakeTranscriber) Transcribe(context.Context, io.Reader, string, string) (string, error) {
	return f.transcript, f.err
}

type fakeParser struct {
	intent *voiceai.ChallengeIntent
	err    error
}

func (f fakeParser) ParseChallenge(context.Context, string) (*voiceai.ChallengeIntent, error) {
	return f.intent, f.err
}

func newVoiceFixture(t *testing.T) (*gorm.DB, *CreditService, *VoiceService) {
	db := setupTestDB(t)
	credits := NewCreditService(db)
	progression := NewProgressionService(db, credits)
	challenges := NewChallengeService(db, credits, progression, nil)
	voice := NewVoiceService(db, fakeStore{}, nil, challenges)
	return db, credits, voice
}

func seedMemo(t *testing.T, db *gorm.DB, userID uint, status models.VoiceMemoStatus) *models.VoiceMemo {
	memo := &models.VoiceMemo{
		UserID:           userID,
		FileKey:          "voice-memos/test.m4a",
		OriginalFilename: "test.m4a",
		MimeType:         "audio/mp4",
		Status:           status,
	}
	if err := db.Create(memo).Error; err != nil {
		t.Fatalf("failed to seed memo: %v", err)
	}
	return memo
}

func TestProcessMemoUnavailableWithoutClient(t *testing.T) {
	db, _, voice := newVoiceFixture(t)
	user := createTestUser(t, db, "yuki")
	memo := seedMemo(t, db, user.ID, models.MemoStatusPending)

	_, err := voice.ProcessMemo(context.Background(), user.ID, memo.ID)
	if !errors.Is(err, apperrors.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable without an AI client, got %v", err)
	}
}

func TestProcessMemoPipeline(t *testing.T) {
	db, _, voice := newVoiceFixture(t)
	user := createTestUser(t, db, "zoe")
	memo := seedMemo(t, db, user.ID, models.MemoStatusPending)

	voice.transcriber = fakeTranscriber{transcript: "run five kilometers every day for a month"}
	voice.parser = fakeParser{intent: &voiceai.ChallengeIntent{
		Title:         "Run 5km daily",
		ChallengeType: string(models.ChallengeQuantified),
		TargetValue:   150,
		Unit:          "km",
		DurationDays:  30,
		Confidence:    0.92,
	}}
	voice.configured = true

	processed, err := voice.ProcessMemo(context.Background(), user.ID, memo.ID)
	if err != nil {
		t.Fatalf("failed to process memo: %v", err)
	}
	if processed.Status != models.MemoStatusParsed {
		t.Errorf("expected parsed status, got %s", processed.Status)
	}
	if processed.Transcript != "run five kilometers every day for a month" {
		t.Errorf("unexpected transcript: %q", processed.Transcript)
	}

	var intent voiceai.ChallengeIntent
	if err := json.Unmarshal([]byte(processed.ParsedIntent), &intent); err != nil {
		t.Fatalf("stored intent unreadable: %v", err)
	}
	if intent.Title != "Run 5km daily" || intent.TargetValue != 150 {
		t.Errorf("unexpected intent: %+v", intent)
	}

	// A second run on a parsed memo conflicts.
	_, err = voice.ProcessMemo(context.Background(), user.ID, memo.ID)
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict on re-processing, got %v", err)
	}
}

func TestProcessMemoTranscriptionFailure(t *testing.T) {
	db, _, voice := newVoiceFixture(t)
	user := createTestUser(t, db, "ada")
	memo := seedMemo(t, db, user.ID, models.MemoStatusPending)

	voice.transcriber = fakeTranscriber{err: errors.New("model overloaded")}
	voice.parser = fakeParser{}
	voice.configured = true

	if _, err := voice.ProcessMemo(context.Background(), user.ID, memo.ID); err == nil {
		t.Fatal("expected an error from a failing transcriber")
	}

	var fresh models.VoiceMemo
	if err := db.First(&fresh, memo.ID).Error; err != nil {
		t.Fatalf("failed to reload memo: %v", err)
	}
	if fresh.Status != models.MemoStatusFailed {
		t.Errorf("expected failed status, got %s", fresh.Status)
	}
	if fresh.ErrorMessage == "" {
		t.Error("expected a stored error message")
	}

	// Failed memos may be retried.
	voice.transcriber = fakeTranscriber{transcript: "ten pushups"}
	voice.parser = fakeParser{intent: &voiceai.ChallengeIntent{Title: "Pushups"}}
	processed, err := voice.ProcessMemo(context.Background(), user.ID, memo.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if processed.Status != models.MemoStatusParsed {
		t.Errorf("expected parsed status after retry, got %s", processed.Status)
	}
}

func TestCreateChallengeFromMemo(t *testing.T) {
	db, credits, voice := newVoiceFixture(t)
	user := createTestUser(t, db, "ben")
	fundUser(t, db, credits, user.ID, 100)

	intent := voiceai.ChallengeIntent{
		Title:         "Read 300 pages",
		ChallengeType: string(models.ChallengeQuantified),
		TargetValue:   300,
		Unit:          "pages",
		DurationDays:  14,
	}
	raw, _ := json.Marshal(intent)

	memo := seedMemo(t, db, user.ID, models.MemoStatusParsed)
	if err := db.Model(memo).Update("parsed_intent", string(raw)).Error; err != nil {
		t.Fatalf("failed to store intent: %v", err)
	}

	challenge, err := voice.CreateChallengeFromMemo(context.Background(), user.ID, memo.ID, nil)
	if err != nil {
		t.Fatalf("failed to create challenge from memo: %v", err)
	}
	if challenge.Title != "Read 300 pages" {
		t.Errorf("unexpected title %q", challenge.Title)
	}
	if challenge.Visibility != models.VisibilityPrivate {
		t.Errorf("memo challenges start private, got %s", challenge.Visibility)
	}
	if challenge.EndDate.IsZero() {
		t.Error("expected an end date from duration_days")
	}

	var fresh models.VoiceMemo
	if err := db.First(&fresh, memo.ID).Error; err != nil {
		t.Fatalf("failed to reload memo: %v", err)
	}
	if fresh.Status != models.MemoStatusChallengeCreated {
		t.Errorf("expected challenge_created status, got %s", fresh.Status)
	}
	if fresh.CreatedChallengeID == nil || *fresh.CreatedChallengeID != challenge.ID {
		t.Error("memo should reference the created challenge")
	}
}

func TestCreateChallengeFromMemoFillsDefaults(t *testing.T) {
	db, credits, voice := newVoiceFixture(t)
	user := createTestUser(t, db, "elsa")
	fundUser(t, db, credits, user.ID, 100)

	// A sparse intent: only a title survived parsing.
	raw, _ := json.Marshal(voiceai.ChallengeIntent{Title: "Drink water"})
	memo := seedMemo(t, db, user.ID, models.MemoStatusParsed)
	if err := db.Model(memo).Update("parsed_intent", string(raw)).Error; err != nil {
		t.Fatalf("failed to store intent: %v", err)
	}

	challenge, err := voice.CreateChallengeFromMemo(context.Background(), user.ID, memo.ID, nil)
	if err != nil {
		t.Fatalf("failed to create challenge from memo: %v", err)
	}

	if challenge.Type != models.ChallengeTodo {
		t.Errorf("expected default todo type, got %s", challenge.Type)
	}
	if challenge.TargetValue != 1 {
		t.Errorf("expected default target 1, got %d", challenge.TargetValue)
	}
	if !challenge.RequiredProofTypes.SelfOnly() {
		t.Errorf("expected default SELF proof, got %v", challenge.RequiredProofTypes)
	}
	wantEnd := challenge.StartDate.AddDate(0, 0, 7)
	if !challenge.EndDate.Equal(wantEnd) {
		t.Errorf("expected a 7-day default duration, got end %v for start %v", challenge.EndDate, challenge.StartDate)
	}
}

func TestCreateChallengeFromMemoAppliesOverrides(t *testing.T) {
	db, credits, voice := newVoiceFixture(t)
	user := createTestUser(t, db, "finn")
	fundUser(t, db, credits, user.ID, 100)

	raw, _ := json.Marshal(voiceai.ChallengeIntent{
		Title:         "Morning run",
		ChallengeType: string(models.ChallengeStreak),
		DurationDays:  14,
	})
	memo := seedMemo(t, db, user.ID, models.MemoStatusParsed)
	if err := db.Model(memo).Update("parsed_intent", string(raw)).Error; err != nil {
		t.Fatalf("failed to store intent: %v", err)
	}

	target := int64(21)
	days := 21
	challenge, err := voice.CreateChallengeFromMemo(context.Background(), user.ID, memo.ID, &MemoChallengeOverrides{
		Title:        "Morning run, three weeks",
		TargetValue:  &target,
		DurationDays: &days,
	})
	if err != nil {
		t.Fatalf("failed to create challenge from memo: %v", err)
	}

	if challenge.Title != "Morning run, three weeks" {
		t.Errorf("override title not applied, got %q", challenge.Title)
	}
	if challenge.Type != models.ChallengeStreak {
		t.Errorf("parsed type should survive, got %s", challenge.Type)
	}
	if challenge.TargetValue != 21 {
		t.Errorf("override target not applied, got %d", challenge.TargetValue)
	}
	wantEnd := challenge.StartDate.AddDate(0, 0, 21)
	if !challenge.EndDate.Equal(wantEnd) {
		t.Errorf("override duration not applied, got end %v", challenge.EndDate)
	}
}

func TestDismissMemo(t *testing.T) {
	db, _, voice := newVoiceFixture(t)
	user := createTestUser(t, db, "cleo")
	other := createTestUser(t, db, "drew")
	memo := seedMemo(t, db, user.ID, models.MemoStatusPending)
	ctx := context.Background()

	// Memos are invisible to other users.
	if err := voice.DismissMemo(ctx, other.ID, memo.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for foreign memo, got %v", err)
	}

	if err := voice.DismissMemo(ctx, user.ID, memo.ID); err != nil {
		t.Fatalf("failed to dismiss memo: %v", err)
	}
	if err := voice.DismissMemo(ctx, user.ID, memo.ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict on dismissed memo, got %v", err)
	}
}

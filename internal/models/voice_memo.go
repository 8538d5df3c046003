package models

import (
	"time"
)

// VoiceMemoStatus is the processing state of an uploaded memo.
type VoiceMemoStatus string

const (
	MemoStatusPending          VoiceMemoStatus = "pending"
	MemoStatusTranscribing     VoiceMemoStatus = "transcribing"
	MemoStatusTranscribed      VoiceMemoStatus = "transcribed"
	MemoStatusParsing          VoiceMemoStatus = "parsing"
	MemoStatusParsed           VoiceMemoStatus = "parsed"
	MemoStatusChallengeCreated VoiceMemoStatus = "challenge_created"
	MemoStatusDismissed        VoiceMemoStatus = "dismissed"
	MemoStatusFailed           VoiceMemoStatus = "failed"
)

// Terminal reports whether no further processing may touch the memo.
func (s VoiceMemoStatus) Terminal() bool {
	return s == MemoStatusChallengeCreated || s == MemoStatusDismissed
}

// VoiceMemo is a recorded audio note that can be transcribed and
// parsed into a draft challenge.
type VoiceMemo struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"-"`

	FileKey          string `gorm:"size:512;not null" json:"file_key"`
	OriginalFilename string `gorm:"size:255" json:"original_filename"`
	FileSize         int64  `json:"file_size"`
	MimeType         string `gorm:"size:100" json:"mime_type"`
	DurationSeconds  *int   `json:"duration_seconds,omitempty"`

	Status     VoiceMemoStatus `gorm:"size:32;default:pending;index" json:"status"`
	Transcript string          `gorm:"type:text" json:"transcript"`
	// ParsedIntent holds the structured challenge draft extracted from
	// the transcript, stored verbatim as JSON.
	ParsedIntent string `gorm:"type:text" json:"parsed_intent,omitempty"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	CreatedChallengeID *uint `json:"created_challenge_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// TableName specifies the table name for VoiceMemo model
func (VoiceMemo) TableName() string {
	return "voice_memos"
}

package models

import (
	"time"
)

// AuditLog records security-relevant actions. Rows are insert-only;
// IP addresses are stored as salted hashes, never raw.
type AuditLog struct {
	ID     uint  `gorm:"primaryKey" json:"id"`
	UserID *uint `gorm:"index" json:"user_id,omitempty"`

	Action     string `gorm:"size:80;not null;index" json:"action"`
	TargetType string `gorm:"size:40" json:"target_type,omitempty"`
	TargetID   uint   `json:"target_id,omitempty"`
	Detail     string `gorm:"type:text" json:"detail,omitempty"`

	IPHash    string `gorm:"size:64" json:"-"`
	UserAgent string `gorm:"size:255" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

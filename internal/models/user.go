package models

import (
	"time"
)

// User represents a registered account.
//
// TotalPoints and Level are denormalized progression state; they are only
// ever written through the progression service.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	TotalPoints  int64     `gorm:"default:0" json:"total_points"`
	Level        int       `gorm:"default:1" json:"level"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// TeamMember is the membership row of the external team service.
// Teams themselves live outside this system; only the join rows are
// mirrored here so that team-visibility checks can be answered locally.
type TeamMember struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	TeamID   uint `gorm:"not null;index:idx_team_user,unique" json:"team_id"`
	UserID   uint `gorm:"not null;index:idx_team_user,unique" json:"user_id"`
	IsActive bool `gorm:"default:true" json:"is_active"`
}

// TableName specifies the table name for TeamMember model
func (TeamMember) TableName() string {
	return "team_members"
}

package models

import "time"

// User represents a group member identified by an opaque session token.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID  string `gorm:"type:varchar(36);not null;uniqueIndex"` // Public UUID.
	GroupID uint64 `gorm:"not null;index:idx_group_display,unique"` // Owning group.

	DisplayName string `gorm:"type:varchar(50);not null;index:idx_group_display,unique"` // Unique within the group.
	ColorAvatar string `gorm:"type:varchar(7);not null;default:'#3498db'"`                // Avatar hex color.

	SessionTokenHash      string     `gorm:"type:text"` // Salted hash of the session token.
	SessionTokenSalt      string     `gorm:"type:text"` // Per-token salt.
	SessionTokenExpiresAt *time.Time ``                 // Sliding expiry timestamp.

	AnswerStreak        int        `gorm:"not null;default:0"` // Current consecutive-day streak.
	LongestAnswerStreak int        `gorm:"not null;default:0"` // Best streak ever reached.
	LastAnswerDate      *time.Time ``                          // Calendar day of the last counted answer.

	Suspended        bool   `gorm:"not null;default:false"` // Blocks answering when set.
	SuspensionReason string `gorm:"type:text"`              // Admin-supplied reason.
	LastKnownIP      string `gorm:"type:varchar(45)"`       // Last observed client IP.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

package models

import "time"

// UserGroupStreak tracks per-group answer streaks for a user.
type UserGroupStreak struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID  uint64 `gorm:"not null;index:idx_user_group,unique"` // Tracked user.
	GroupID uint64 `gorm:"not null;index:idx_user_group,unique"` // Group scope.

	CurrentStreak  int        `gorm:"not null;default:0"` // Consecutive answer days.
	LongestStreak  int        `gorm:"not null;default:0"` // Best streak ever reached.
	LastAnswerDate *time.Time ``                          // Calendar day of the last counted answer.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

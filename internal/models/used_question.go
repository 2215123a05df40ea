package models

import "time"

// UsedQuestion records a template already served to a group, preventing
// repeats until the group's pool is exhausted and the history is cleared.
type UsedQuestion struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GroupID    uint64 `gorm:"not null;index:idx_group_used,unique"` // Group the template was served to.
	TemplateID uint64 `gorm:"not null;index:idx_group_used,unique"` // Served template.

	UsedAt time.Time `gorm:"not null;autoCreateTime"` // When the template was served.
}

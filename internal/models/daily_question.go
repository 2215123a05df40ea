package models

import (
	"time"

	"gorm.io/datatypes"
)

// DailyQuestion is the question instance served to a group on one calendar day.
type DailyQuestion struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	QuestionID string  `gorm:"type:varchar(36);not null;uniqueIndex"` // Public UUID.
	GroupID    uint64  `gorm:"not null;index:idx_group_qdate"`        // Owning group.
	TemplateID *uint64 `gorm:"index"`                                 // Source template, if any.

	QuestionText  string         `gorm:"type:varchar(255);not null"`                      // Question body at serve time.
	QuestionType  string         `gorm:"type:varchar(20);not null;default:'binary_vote'"` // One of the QuestionType constants.
	Options       datatypes.JSON `gorm:"type:json"`                                       // Materialized answer options.
	AllowMultiple bool           `gorm:"not null;default:false"`                          // Permits multi-select answers.

	QuestionDate string `gorm:"type:varchar(10);not null;index:idx_group_qdate"` // Calendar day (YYYY-MM-DD, UTC).
	IsActive     bool   `gorm:"not null;default:true"`                           // Flipped off when superseded.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

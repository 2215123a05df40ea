package models

import "time"

// QuestionSet is an ordered collection of question templates.
type QuestionSet struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	SetID       string `gorm:"type:varchar(36);not null;uniqueIndex"` // Public UUID.
	Name        string `gorm:"type:varchar(150);not null;index"`      // Display name.
	Description string `gorm:"type:text"`                             // Optional description.

	IsPublic bool `gorm:"not null;default:true"` // Listed for all groups when set.

	CreatorAdminID   *uint64 `gorm:"index"` // Instance admin who created the set, if any.
	CreatedByGroupID *uint64 `gorm:"index"` // Group that owns a private set, if any.

	UsageCount int `gorm:"not null;default:0"` // Times templates from this set were served.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// QuestionSetTemplate links templates to sets (many-to-many).
type QuestionSetTemplate struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	QuestionSetID uint64 `gorm:"not null;index:idx_set_template,unique"` // Owning set.
	TemplateID    uint64 `gorm:"not null;index:idx_set_template,unique"` // Linked template.

	Position int `gorm:"not null;default:0"` // Order within the set.
}

// GroupQuestionSet assigns a question set to a group.
type GroupQuestionSet struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GroupID       uint64 `gorm:"not null;index:idx_group_set,unique"` // Assigned group.
	QuestionSetID uint64 `gorm:"not null;index:idx_group_set,unique"` // Assigned set.

	IsActive bool `gorm:"not null;default:true"` // Inactive assignments are ignored by selection.

	AssignedByAdminID *uint64 `gorm:"index"`     // Instance admin who made the assignment, if any.
	AssignmentNotes   string  `gorm:"type:text"` // Optional assignment notes.

	SelectedAt time.Time `gorm:"not null;autoCreateTime"` // Assignment timestamp.
}

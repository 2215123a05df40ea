package models

import "time"

// Question types supported by templates and daily questions.
const (
	QuestionTypeBinaryVote   = "binary_vote"
	QuestionTypeSingleChoice = "single_choice"
	QuestionTypeFreeText     = "free_text"
	QuestionTypeMemberChoice = "member_choice"
	QuestionTypeDuoChoice    = "duo_choice"
)

// RequiresTwoMembers reports whether a question type needs at least two
// distinct group members to be meaningful.
func RequiresTwoMembers(questionType string) bool {
	return questionType == QuestionTypeMemberChoice || questionType == QuestionTypeDuoChoice
}

// QuestionTemplate is an immutable question definition served to groups.
type QuestionTemplate struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TemplateID string `gorm:"type:varchar(36);not null;uniqueIndex"` // Public UUID.
	Category   string `gorm:"type:varchar(50)"`                      // Grouping label.

	QuestionText  string `gorm:"type:varchar(255);not null"`                   // Question body.
	QuestionType  string `gorm:"type:varchar(20);not null;default:'binary_vote'"` // One of the QuestionType constants.
	OptionA       string `gorm:"type:varchar(100)"`                            // First fixed option, if any.
	OptionB       string `gorm:"type:varchar(100)"`                            // Second fixed option, if any.
	AllowMultiple bool   `gorm:"not null;default:false"`                       // Permits multi-select answers.

	IsPublic bool `gorm:"not null;default:true"` // Available to groups without assigned sets.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

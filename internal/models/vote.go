package models

import "time"

// Vote is a user's answer to a daily question, immutable once written.
type Vote struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	VoteID     string `gorm:"type:varchar(36);not null;uniqueIndex"`   // Public UUID.
	QuestionID uint64 `gorm:"not null;index:idx_question_user,unique"` // Answered question.
	UserID     uint64 `gorm:"not null;index:idx_question_user,unique"` // Answering user.

	Answer     string `gorm:"type:text"` // Selected option(s), JSON array for multi-select.
	TextAnswer string `gorm:"type:text"` // Free-text answer body.

	VotedAt time.Time `gorm:"not null;autoCreateTime"` // Submission timestamp.
}

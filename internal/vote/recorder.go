// Package vote validates and records answers to daily questions.
package vote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dontaskus/backend/internal/models"
	"github.com/dontaskus/backend/internal/question"
	"github.com/dontaskus/backend/internal/streak"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAlreadyAnswered indicates the user already voted on this question.
var ErrAlreadyAnswered = errors.New("vote: already answered")

// ErrInvalidAnswer indicates an answer outside the question's options.
var ErrInvalidAnswer = errors.New("vote: invalid answer")

// ErrQuestionClosed indicates a vote against an inactive question.
var ErrQuestionClosed = errors.New("vote: question closed")

// ErrQuestionNotFound indicates an unknown question or one belonging to
// another group.
var ErrQuestionNotFound = errors.New("vote: question not found")

// maxFreeTextLength bounds free-text answers.
const maxFreeTextLength = 2000

// Answer is a member's submission for one question.
type Answer struct {
	Selections []string `json:"selections"`
	Text       string   `json:"text"`
}

// VoterAnswer is one recorded answer with its voter, for result views.
type VoterAnswer struct {
	UserID      string   `json:"user_id"`
	DisplayName string   `json:"display_name"`
	ColorAvatar string   `json:"color_avatar"`
	Selections  []string `json:"selections,omitempty"`
	Text        string   `json:"text,omitempty"`
}

// Results aggregates the votes on one question.
type Results struct {
	Counts        map[string]int `json:"counts"`
	Answers       []VoterAnswer  `json:"answers"`
	AnsweredCount int            `json:"answered_count"`
	MemberCount   int            `json:"member_count"`
}

// Recorder persists votes and keeps streaks in step with them.
type Recorder struct {
	db      *gorm.DB
	streaks *streak.Tracker
}

// NewRecorder builds a recorder on the shared database handle.
func NewRecorder(conn *gorm.DB, streaks *streak.Tracker) *Recorder {
	return &Recorder{db: conn, streaks: streaks}
}

// Record validates and stores the user's answer, then advances their
// streak in the same transaction. Each member votes at most once per
// question.
func (r *Recorder) Record(user *models.User, questionID string, answer Answer) (*models.Vote, error) {
	var daily models.DailyQuestion
	errFind := r.db.Where("question_id = ?", strings.TrimSpace(questionID)).First(&daily).Error
	if errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("vote: lookup question: %w", errFind)
		}
		return nil, ErrQuestionNotFound
	}
	if daily.GroupID != user.GroupID {
		return nil, ErrQuestionNotFound
	}
	if !daily.IsActive {
		return nil, ErrQuestionClosed
	}

	normalized, errValidate := validateAnswer(&daily, answer)
	if errValidate != nil {
		return nil, errValidate
	}

	row := models.Vote{
		VoteID:     uuid.NewString(),
		QuestionID: daily.ID,
		UserID:     user.ID,
		Answer:     normalized.encodedSelections(),
		TextAnswer: normalized.Text,
		VotedAt:    time.Now().UTC(),
	}

	errTx := r.db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		errCount := tx.Model(&models.Vote{}).
			Where("question_id = ? AND user_id = ?", daily.ID, user.ID).
			Count(&existing).Error
		if errCount != nil {
			return fmt.Errorf("vote: check duplicate: %w", errCount)
		}
		if existing > 0 {
			return ErrAlreadyAnswered
		}
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("vote: create: %w", errCreate)
		}
		return r.streaks.RecordAnswer(tx, user, daily.QuestionDate)
	})
	if errTx != nil {
		return nil, errTx
	}
	return &row, nil
}

// encodedSelections stores choice answers as a JSON array string.
func (a Answer) encodedSelections() string {
	if len(a.Selections) == 0 {
		return ""
	}
	data, err := json.Marshal(a.Selections)
	if err != nil {
		return ""
	}
	return string(data)
}

// validateAnswer checks the submission against the question's frozen
// options and returns the normalized form.
func validateAnswer(daily *models.DailyQuestion, answer Answer) (Answer, error) {
	switch daily.QuestionType {
	case models.QuestionTypeFreeText:
		text := strings.TrimSpace(answer.Text)
		if text == "" || len(text) > maxFreeTextLength {
			return Answer{}, ErrInvalidAnswer
		}
		return Answer{Text: text}, nil

	case models.QuestionTypeBinaryVote, models.QuestionTypeSingleChoice:
		var options []string
		if err := json.Unmarshal(daily.Options, &options); err != nil {
			return Answer{}, fmt.Errorf("vote: decode options: %w", err)
		}
		return validateSelections(answer.Selections, options, daily.AllowMultiple)

	case models.QuestionTypeMemberChoice:
		var options []question.MemberOption
		if err := json.Unmarshal(daily.Options, &options); err != nil {
			return Answer{}, fmt.Errorf("vote: decode options: %w", err)
		}
		valid := make([]string, 0, len(options))
		for _, option := range options {
			valid = append(valid, option.UserID)
		}
		return validateSelections(answer.Selections, valid, daily.AllowMultiple)

	case models.QuestionTypeDuoChoice:
		var options []question.DuoOption
		if err := json.Unmarshal(daily.Options, &options); err != nil {
			return Answer{}, fmt.Errorf("vote: decode options: %w", err)
		}
		valid := make([]string, 0, len(options))
		for _, option := range options {
			valid = append(valid, option.Label)
		}
		return validateSelections(answer.Selections, valid, daily.AllowMultiple)

	default:
		return Answer{}, fmt.Errorf("vote: unknown question type %q", daily.QuestionType)
	}
}

func validateSelections(selections, valid []string, allowMultiple bool) (Answer, error) {
	if len(selections) == 0 {
		return Answer{}, ErrInvalidAnswer
	}
	if !allowMultiple && len(selections) > 1 {
		return Answer{}, ErrInvalidAnswer
	}

	validSet := make(map[string]struct{}, len(valid))
	for _, v := range valid {
		validSet[v] = struct{}{}
	}
	seen := make(map[string]struct{}, len(selections))
	normalized := make([]string, 0, len(selections))
	for _, selection := range selections {
		selection = strings.TrimSpace(selection)
		if _, ok := validSet[selection]; !ok {
			return Answer{}, ErrInvalidAnswer
		}
		if _, dup := seen[selection]; dup {
			return Answer{}, ErrInvalidAnswer
		}
		seen[selection] = struct{}{}
		normalized = append(normalized, selection)
	}
	return Answer{Selections: normalized}, nil
}

// Results aggregates all votes on a question together with the group's
// answer progress.
func (r *Recorder) Results(daily *models.DailyQuestion) (Results, error) {
	var votes []models.Vote
	errVotes := r.db.Where("question_id = ?", daily.ID).Order("voted_at ASC").Find(&votes).Error
	if errVotes != nil {
		return Results{}, fmt.Errorf("vote: load votes: %w", errVotes)
	}

	voterIDs := make([]uint64, 0, len(votes))
	for _, v := range votes {
		voterIDs = append(voterIDs, v.UserID)
	}
	voters := make(map[uint64]models.User, len(voterIDs))
	if len(voterIDs) > 0 {
		var users []models.User
		if errUsers := r.db.Where("id IN ?", voterIDs).Find(&users).Error; errUsers != nil {
			return Results{}, fmt.Errorf("vote: load voters: %w", errUsers)
		}
		for _, u := range users {
			voters[u.ID] = u
		}
	}

	results := Results{Counts: make(map[string]int), AnsweredCount: len(votes)}
	for _, v := range votes {
		voter := voters[v.UserID]
		entry := VoterAnswer{
			UserID:      voter.UserID,
			DisplayName: voter.DisplayName,
			ColorAvatar: voter.ColorAvatar,
			Text:        v.TextAnswer,
		}
		if v.Answer != "" {
			var selections []string
			if errDecode := json.Unmarshal([]byte(v.Answer), &selections); errDecode == nil {
				entry.Selections = selections
				for _, selection := range selections {
					results.Counts[selection]++
				}
			}
		}
		results.Answers = append(results.Answers, entry)
	}

	var memberCount int64
	errCount := r.db.Model(&models.User{}).
		Where("group_id = ? AND suspended = ?", daily.GroupID, false).
		Count(&memberCount).Error
	if errCount != nil {
		return Results{}, fmt.Errorf("vote: count members: %w", errCount)
	}
	results.MemberCount = int(memberCount)
	return results, nil
}

// HasVoted reports whether the user already answered the question.
func (r *Recorder) HasVoted(questionRowID, userRowID uint64) (bool, error) {
	var count int64
	errCount := r.db.Model(&models.Vote{}).
		Where("question_id = ? AND user_id = ?", questionRowID, userRowID).
		Count(&count).Error
	if errCount != nil {
		return false, fmt.Errorf("vote: check voted: %w", errCount)
	}
	return count > 0, nil
}

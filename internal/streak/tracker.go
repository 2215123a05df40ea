// Package streak maintains consecutive-day answer streaks.
package streak

import (
	"errors"
	"fmt"
	"time"

	"github.com/dontaskus/backend/internal/models"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Tracker updates answer streaks as votes land.
type Tracker struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTracker builds a tracker on the shared database handle.
func NewTracker(conn *gorm.DB) *Tracker {
	return &Tracker{db: conn, now: time.Now}
}

// RecordAnswer advances the user's streak for an answer on answerDate
// (a YYYY-MM-DD key, UTC). Consecutive days increment, a gap resets to
// one, and a second answer on the same day changes nothing. The call is
// transaction-aware: pass the surrounding tx to keep vote and streak
// writes atomic.
func (t *Tracker) RecordAnswer(tx *gorm.DB, user *models.User, answerDate string) error {
	if tx == nil {
		tx = t.db
	}
	day, errParse := time.ParseInLocation(dateLayout, answerDate, time.UTC)
	if errParse != nil {
		return fmt.Errorf("streak: bad answer date %q: %w", answerDate, errParse)
	}

	current, longest, changed := advance(user.AnswerStreak, user.LongestAnswerStreak, user.LastAnswerDate, day)
	if !changed {
		return nil
	}

	errUser := tx.Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"answer_streak":         current,
			"longest_answer_streak": longest,
			"last_answer_date":      day,
		}).Error
	if errUser != nil {
		return fmt.Errorf("streak: update user: %w", errUser)
	}
	user.AnswerStreak = current
	user.LongestAnswerStreak = longest
	user.LastAnswerDate = &day

	return t.upsertGroupStreak(tx, user, current, longest, day)
}

// advance computes the next streak values. changed is false when the
// user already answered on day.
func advance(current, longest int, last *time.Time, day time.Time) (int, int, bool) {
	if last != nil {
		lastDay := last.UTC().Truncate(24 * time.Hour)
		switch {
		case lastDay.Equal(day):
			return current, longest, false
		case lastDay.AddDate(0, 0, 1).Equal(day):
			current++
		default:
			current = 1
		}
	} else {
		current = 1
	}
	if current > longest {
		longest = current
	}
	return current, longest, true
}

func (t *Tracker) upsertGroupStreak(tx *gorm.DB, user *models.User, current, longest int, day time.Time) error {
	var row models.UserGroupStreak
	errFind := tx.Where("user_id = ? AND group_id = ?", user.ID, user.GroupID).First(&row).Error
	switch {
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		row = models.UserGroupStreak{
			UserID:         user.ID,
			GroupID:        user.GroupID,
			CurrentStreak:  current,
			LongestStreak:  longest,
			LastAnswerDate: &day,
		}
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("streak: create group streak: %w", errCreate)
		}
		return nil
	case errFind != nil:
		return fmt.Errorf("streak: load group streak: %w", errFind)
	}

	errUpdate := tx.Model(&row).Updates(map[string]any{
		"current_streak":   current,
		"longest_streak":   longest,
		"last_answer_date": day,
	}).Error
	if errUpdate != nil {
		return fmt.Errorf("streak: update group streak: %w", errUpdate)
	}
	return nil
}

// Leaderboard returns the group's streak standings, longest current
// streak first.
func (t *Tracker) Leaderboard(groupID uint64) ([]models.UserGroupStreak, error) {
	var rows []models.UserGroupStreak
	errFind := t.db.Where("group_id = ?", groupID).
		Order("current_streak DESC, longest_streak DESC, user_id ASC").
		Find(&rows).Error
	if errFind != nil {
		return nil, fmt.Errorf("streak: load leaderboard: %w", errFind)
	}
	return rows, nil
}

// Package scheduler drives daily question generation for all groups.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dontaskus/backend/internal/models"
	"github.com/dontaskus/backend/internal/notify"
	"github.com/dontaskus/backend/internal/question"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultInterval = 24 * time.Hour
	// groupTimeout bounds one group's generation so a stuck group
	// cannot stall the whole sweep.
	groupTimeout = 10 * time.Second
)

// Scheduler periodically ensures every group has today's question.
type Scheduler struct {
	db       *gorm.DB
	selector *question.Selector
	emitter  notify.Emitter
	interval time.Duration
	now      func() time.Time
}

// New constructs a scheduler.
func New(conn *gorm.DB, selector *question.Selector, emitter notify.Emitter, interval time.Duration) *Scheduler {
	if conn == nil || selector == nil {
		return nil
	}
	if emitter == nil {
		emitter = notify.LogEmitter{}
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		db:       conn,
		selector: selector,
		emitter:  emitter,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs the scheduling loop in the background.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go s.run(ctx)
	log.Infof("question scheduler started (interval=%s)", s.interval)
}

func (s *Scheduler) run(ctx context.Context) {
	if err := s.SweepOnce(ctx); err != nil {
		log.WithError(err).Warn("question scheduler: initial sweep failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				log.WithError(err).Warn("question scheduler: sweep failed")
			}
		}
	}
}

// SweepOnce generates today's question for every group that lacks one.
// Per-group failures are logged and skipped; the sweep continues.
func (s *Scheduler) SweepOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	today := s.now().UTC().Format("2006-01-02")

	var groupIDs []uint64
	errGroups := s.db.Model(&models.Group{}).Pluck("id", &groupIDs).Error
	if errGroups != nil {
		return fmt.Errorf("scheduler: load groups: %w", errGroups)
	}

	for _, groupID := range groupIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.ensureQuestion(ctx, groupID, today); err != nil {
			if errors.Is(err, question.ErrInsufficientMembers) || errors.Is(err, question.ErrNoEligibleTemplates) {
				log.Debugf("question scheduler: group %d skipped: %v", groupID, err)
				continue
			}
			log.WithError(err).Warnf("question scheduler: group %d failed", groupID)
		}
	}
	return nil
}

// ensureQuestion generates the group's question for the day, emitting a
// notification only when the sweep actually created one.
func (s *Scheduler) ensureQuestion(ctx context.Context, groupID uint64, date string) error {
	groupCtx, cancel := context.WithTimeout(ctx, groupTimeout)
	defer cancel()

	type outcome struct {
		daily   *models.DailyQuestion
		created bool
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		existing, errCheck := s.hasActiveQuestion(groupID, date)
		if errCheck != nil {
			done <- outcome{err: errCheck}
			return
		}
		if existing {
			done <- outcome{}
			return
		}
		daily, errGen := s.selector.Generate(groupID, date)
		done <- outcome{daily: daily, created: errGen == nil, err: errGen}
	}()

	select {
	case <-groupCtx.Done():
		return fmt.Errorf("scheduler: group %d timed out", groupID)
	case result := <-done:
		if result.err != nil {
			return result.err
		}
		if result.created && result.daily != nil {
			s.emitter.Emit(ctx, notify.Event{
				Kind:         notify.EventNewQuestion,
				GroupID:      groupID,
				QuestionID:   result.daily.QuestionID,
				QuestionText: result.daily.QuestionText,
				QuestionDate: result.daily.QuestionDate,
			})
		}
		return nil
	}
}

func (s *Scheduler) hasActiveQuestion(groupID uint64, date string) (bool, error) {
	var count int64
	errCount := s.db.Model(&models.DailyQuestion{}).
		Where("group_id = ? AND question_date = ? AND is_active = ?", groupID, date, true).
		Count(&count).Error
	if errCount != nil {
		return false, fmt.Errorf("scheduler: check question: %w", errCount)
	}
	return count > 0, nil
}

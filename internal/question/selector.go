// Package question picks and materializes each group's daily question.
package question

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/dontaskus/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrInsufficientMembers indicates that only member-targeting templates
// remain but the group is too small to use them. The cycle is not reset
// in this case; a new member unblocks it.
var ErrInsufficientMembers = errors.New("question: not enough members for remaining templates")

// ErrNoEligibleTemplates indicates the group has no templates at all to
// draw from.
var ErrNoEligibleTemplates = errors.New("question: no eligible templates")

// maxDuoOptions caps the number of generated member pairs per question.
const maxDuoOptions = 5

// dateLayout is the calendar-day key for daily questions, always UTC.
const dateLayout = "2006-01-02"

// MemberOption is one selectable member on a member_choice question.
type MemberOption struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// DuoOption is one selectable member pair on a duo_choice question.
type DuoOption struct {
	UserIDs []string `json:"user_ids"`
	Label   string   `json:"label"`
}

// Status reports a group's progress through its question pool.
type Status struct {
	PoolSize  int    `json:"pool_size"`
	UsedCount int    `json:"used_count"`
	Remaining int    `json:"remaining"`
	Exhausted bool   `json:"exhausted"`
	ActiveSet string `json:"active_set,omitempty"`
}

// Selector generates daily questions. All writes for one group are
// serialized through a per-group mutex plus a transaction, so exactly
// one question is created per (group, day) under concurrency.
type Selector struct {
	db   *gorm.DB
	now  func() time.Time
	intn func(int) int

	mu     sync.Mutex
	groups map[uint64]*sync.Mutex
}

// NewSelector constructs a selector backed by the application database.
func NewSelector(conn *gorm.DB) *Selector {
	return &Selector{
		db:     conn,
		now:    time.Now,
		intn:   rand.Intn,
		groups: make(map[uint64]*sync.Mutex),
	}
}

// Today returns the current question date key in UTC.
func (s *Selector) Today() string {
	return s.now().UTC().Format(dateLayout)
}

// Generate returns the group's question for the given date, creating it
// on first call. Re-entry for the same (group, date) returns the
// existing active question unchanged.
func (s *Selector) Generate(groupID uint64, date string) (*models.DailyQuestion, error) {
	if date == "" {
		date = s.Today()
	}

	lock := s.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	var result *models.DailyQuestion
	errTx := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.DailyQuestion
		errFind := tx.Where("group_id = ? AND question_date = ? AND is_active = ?", groupID, date, true).
			First(&existing).Error
		if errFind == nil {
			result = &existing
			return nil
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("question: lookup daily question: %w", errFind)
		}

		created, errCreate := s.createQuestion(tx, groupID, date)
		if errCreate != nil {
			return errCreate
		}
		result = created
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return result, nil
}

// Regenerate discards the group's active question for the date and
// draws a fresh one. Votes on the discarded question are kept but the
// question no longer accepts answers.
func (s *Selector) Regenerate(groupID uint64, date string) (*models.DailyQuestion, error) {
	if date == "" {
		date = s.Today()
	}

	lock := s.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	var result *models.DailyQuestion
	errTx := s.db.Transaction(func(tx *gorm.DB) error {
		errDeactivate := tx.Model(&models.DailyQuestion{}).
			Where("group_id = ? AND question_date = ? AND is_active = ?", groupID, date, true).
			Update("is_active", false).Error
		if errDeactivate != nil {
			return fmt.Errorf("question: deactivate daily question: %w", errDeactivate)
		}

		created, errCreate := s.createQuestion(tx, groupID, date)
		if errCreate != nil {
			return errCreate
		}
		result = created
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return result, nil
}

// ResetCycle clears the group's used-question history so the full pool
// becomes drawable again. Past daily questions are untouched.
func (s *Selector) ResetCycle(groupID uint64) error {
	lock := s.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	errDelete := s.db.Where("group_id = ?", groupID).Delete(&models.UsedQuestion{}).Error
	if errDelete != nil {
		return fmt.Errorf("question: reset cycle: %w", errDelete)
	}
	return nil
}

// CycleStatus reports how far the group has progressed through its pool.
func (s *Selector) CycleStatus(groupID uint64) (Status, error) {
	pool, errPool := s.templatePool(s.db, groupID)
	if errPool != nil {
		return Status{}, errPool
	}

	var usedCount int64
	errCount := s.db.Model(&models.UsedQuestion{}).Where("group_id = ?", groupID).Count(&usedCount).Error
	if errCount != nil {
		return Status{}, fmt.Errorf("question: count used: %w", errCount)
	}

	status := Status{
		PoolSize:  len(pool),
		UsedCount: int(usedCount),
		Remaining: len(pool) - int(usedCount),
	}
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	status.Exhausted = status.PoolSize > 0 && status.Remaining == 0
	return status, nil
}

// createQuestion draws an unused template, materializes its options
// from the current member snapshot, and records the draw. Caller holds
// the group lock and supplies the transaction.
func (s *Selector) createQuestion(tx *gorm.DB, groupID uint64, date string) (*models.DailyQuestion, error) {
	members, errMembers := s.memberSnapshot(tx, groupID)
	if errMembers != nil {
		return nil, errMembers
	}

	template, errPick := s.pickTemplate(tx, groupID, len(members))
	if errPick != nil {
		return nil, errPick
	}

	options, errOptions := s.materializeOptions(template, members)
	if errOptions != nil {
		return nil, errOptions
	}

	used := models.UsedQuestion{GroupID: groupID, TemplateID: template.ID, UsedAt: s.now().UTC()}
	if errUsed := tx.Create(&used).Error; errUsed != nil {
		return nil, fmt.Errorf("question: record used template: %w", errUsed)
	}

	templateID := template.ID
	daily := models.DailyQuestion{
		QuestionID:    uuid.NewString(),
		GroupID:       groupID,
		TemplateID:    &templateID,
		QuestionText:  template.QuestionText,
		QuestionType:  template.QuestionType,
		Options:       options,
		AllowMultiple: template.AllowMultiple,
		QuestionDate:  date,
		IsActive:      true,
	}
	if errCreate := tx.Create(&daily).Error; errCreate != nil {
		return nil, fmt.Errorf("question: create daily question: %w", errCreate)
	}
	return &daily, nil
}

// pickTemplate selects uniformly from the unused, member-count-eligible
// part of the pool. An exhausted pool resets the cycle exactly once; a
// pool blocked only by group size does not.
func (s *Selector) pickTemplate(tx *gorm.DB, groupID uint64, memberCount int) (*models.QuestionTemplate, error) {
	pool, errPool := s.templatePool(tx, groupID)
	if errPool != nil {
		return nil, errPool
	}
	if len(pool) == 0 {
		return nil, ErrNoEligibleTemplates
	}

	unused, errUnused := s.filterUnused(tx, groupID, pool)
	if errUnused != nil {
		return nil, errUnused
	}
	if len(unused) == 0 {
		// Cycle complete. Clear the history and start over.
		errReset := tx.Where("group_id = ?", groupID).Delete(&models.UsedQuestion{}).Error
		if errReset != nil {
			return nil, fmt.Errorf("question: reset exhausted cycle: %w", errReset)
		}
		unused = pool
	}

	eligible := make([]models.QuestionTemplate, 0, len(unused))
	for _, tpl := range unused {
		if memberCount < 2 && models.RequiresTwoMembers(tpl.QuestionType) {
			continue
		}
		eligible = append(eligible, tpl)
	}
	if len(eligible) == 0 {
		return nil, ErrInsufficientMembers
	}

	picked := eligible[s.intn(len(eligible))]
	return &picked, nil
}

// templatePool returns the templates the group can draw from: templates
// of its active assigned sets, or all public templates when nothing is
// assigned.
func (s *Selector) templatePool(tx *gorm.DB, groupID uint64) ([]models.QuestionTemplate, error) {
	var templates []models.QuestionTemplate
	errAssigned := tx.
		Joins("JOIN question_set_templates ON question_set_templates.template_id = question_templates.id").
		Joins("JOIN group_question_sets ON group_question_sets.question_set_id = question_set_templates.question_set_id").
		Where("group_question_sets.group_id = ? AND group_question_sets.is_active = ?", groupID, true).
		Distinct().
		Find(&templates).Error
	if errAssigned != nil {
		return nil, fmt.Errorf("question: load assigned templates: %w", errAssigned)
	}
	if len(templates) > 0 {
		return templates, nil
	}

	errPublic := tx.Where("is_public = ?", true).Find(&templates).Error
	if errPublic != nil {
		return nil, fmt.Errorf("question: load public templates: %w", errPublic)
	}
	return templates, nil
}

func (s *Selector) filterUnused(tx *gorm.DB, groupID uint64, pool []models.QuestionTemplate) ([]models.QuestionTemplate, error) {
	var usedIDs []uint64
	errUsed := tx.Model(&models.UsedQuestion{}).
		Where("group_id = ?", groupID).
		Pluck("template_id", &usedIDs).Error
	if errUsed != nil {
		return nil, fmt.Errorf("question: load used templates: %w", errUsed)
	}

	used := make(map[uint64]struct{}, len(usedIDs))
	for _, id := range usedIDs {
		used[id] = struct{}{}
	}

	unused := make([]models.QuestionTemplate, 0, len(pool))
	for _, tpl := range pool {
		if _, ok := used[tpl.ID]; !ok {
			unused = append(unused, tpl)
		}
	}
	return unused, nil
}

// memberSnapshot loads the group's non-suspended members in a stable order.
func (s *Selector) memberSnapshot(tx *gorm.DB, groupID uint64) ([]models.User, error) {
	var members []models.User
	errFind := tx.Where("group_id = ? AND suspended = ?", groupID, false).
		Order("id ASC").
		Find(&members).Error
	if errFind != nil {
		return nil, fmt.Errorf("question: load members: %w", errFind)
	}
	return members, nil
}

// materializeOptions freezes the answer options at creation time so
// later membership changes never alter a live question.
func (s *Selector) materializeOptions(template *models.QuestionTemplate, members []models.User) (datatypes.JSON, error) {
	switch template.QuestionType {
	case models.QuestionTypeBinaryVote, models.QuestionTypeSingleChoice:
		return marshalOptions([]string{template.OptionA, template.OptionB})
	case models.QuestionTypeMemberChoice:
		options := make([]MemberOption, 0, len(members))
		for _, member := range members {
			options = append(options, MemberOption{UserID: member.UserID, DisplayName: member.DisplayName})
		}
		return marshalOptions(options)
	case models.QuestionTypeDuoChoice:
		return marshalOptions(s.duoOptions(members))
	case models.QuestionTypeFreeText:
		return nil, nil
	default:
		return nil, fmt.Errorf("question: unknown question type %q", template.QuestionType)
	}
}

// duoOptions builds unordered unique member pairs, at most maxDuoOptions.
// With more pairs available than the cap, a random subset is taken.
func (s *Selector) duoOptions(members []models.User) []DuoOption {
	pairs := make([]DuoOption, 0)
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			pairs = append(pairs, DuoOption{
				UserIDs: []string{members[i].UserID, members[j].UserID},
				Label:   members[i].DisplayName + " & " + members[j].DisplayName,
			})
		}
	}
	for len(pairs) > maxDuoOptions {
		drop := s.intn(len(pairs))
		pairs = append(pairs[:drop], pairs[drop+1:]...)
	}
	return pairs
}

func marshalOptions(options any) (datatypes.JSON, error) {
	data, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("question: marshal options: %w", err)
	}
	return datatypes.JSON(data), nil
}

func (s *Selector) groupLock(groupID uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.groups[groupID]
	if !ok {
		lock = &sync.Mutex{}
		s.groups[groupID] = lock
	}
	return lock
}

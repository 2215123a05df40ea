package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dontaskus/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Migrate runs database migrations and seeds the default question set.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.AdminSession{},
		&models.ConsumedTempToken{},
		&models.Group{},
		&models.User{},
		&models.QuestionTemplate{},
		&models.QuestionSet{},
		&models.QuestionSetTemplate{},
		&models.GroupQuestionSet{},
		&models.DailyQuestion{},
		&models.UsedQuestion{},
		&models.Vote{},
		&models.UserGroupStreak{},
		&models.AuditLog{},
		&models.DeviceToken{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := ensureDefaultQuestionSet(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

const (
	defaultSetName        = "Default"
	defaultSetDescription = "Default question set for new groups"
)

// seedTemplate describes one default template row.
type seedTemplate struct {
	text          string
	questionType  string
	optionA       string
	optionB       string
	allowMultiple bool
}

func defaultTemplates() []seedTemplate {
	return []seedTemplate{
		{text: "Who is most likely to cheat on their partner?", questionType: models.QuestionTypeMemberChoice},
		{text: "Who would you trust least with a secret?", questionType: models.QuestionTypeMemberChoice},
		{text: "Who is the biggest backstabber?", questionType: models.QuestionTypeMemberChoice},
		{text: "Would you abandon a friend for €10,000?", questionType: models.QuestionTypeBinaryVote, optionA: "Yes", optionB: "No"},
		{text: "Who do you think is secretly jealous of you?", questionType: models.QuestionTypeMemberChoice},
		{text: "Who would sell you out to save themselves?", questionType: models.QuestionTypeMemberChoice, allowMultiple: true},
		{text: "Which duo would most likely get arrested together?", questionType: models.QuestionTypeDuoChoice},
		{text: "Which duo has the most toxic friendship?", questionType: models.QuestionTypeDuoChoice},
		{text: "Describe the most embarrassing thing someone in this group did", questionType: models.QuestionTypeFreeText},
		{text: "What's a secret you know about someone here that would shock everyone?", questionType: models.QuestionTypeFreeText},
		{text: "Who would leak the group chat if paid enough?", questionType: models.QuestionTypeMemberChoice, allowMultiple: true},
		{text: "Who is quietly keeping receipts on everyone else?", questionType: models.QuestionTypeMemberChoice, allowMultiple: true},
		{text: "Who would fake an illness to skip a friend's wedding?", questionType: models.QuestionTypeMemberChoice},
		{text: "Which duo is most likely to start a doomed business together?", questionType: models.QuestionTypeDuoChoice},
		{text: "Which duo would instantly sell out for fame?", questionType: models.QuestionTypeDuoChoice},
		{text: "Would you expose your closest friend's worst secret for five minutes of internet fame?", questionType: models.QuestionTypeBinaryVote, optionA: "Absolutely", optionB: "Never"},
		{text: "Would you rather be loved by everyone here or feared by everyone here?", questionType: models.QuestionTypeBinaryVote, optionA: "Loved", optionB: "Feared"},
		{text: "Share a petty thought you have about someone in this room", questionType: models.QuestionTypeFreeText},
		{text: "What rumor about you would hurt the most if everyone believed it?", questionType: models.QuestionTypeFreeText},
		{text: "Who would secretly enjoy being cancelled?", questionType: models.QuestionTypeMemberChoice},
	}
}

// ensureDefaultQuestionSet seeds the public Default set and its templates.
// Idempotent: safe to run on every startup.
func ensureDefaultQuestionSet(conn *gorm.DB) error {
	var set models.QuestionSet
	errFind := conn.Where("name = ?", defaultSetName).First(&set).Error
	switch {
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		set = models.QuestionSet{
			SetID:       uuid.NewString(),
			Name:        defaultSetName,
			Description: defaultSetDescription,
			IsPublic:    true,
		}
		if errCreate := conn.Create(&set).Error; errCreate != nil {
			return fmt.Errorf("db: seed default set: %w", errCreate)
		}
	case errFind != nil:
		return fmt.Errorf("db: find default set: %w", errFind)
	}

	for position, tpl := range defaultTemplates() {
		var existing models.QuestionTemplate
		errTpl := conn.Where("question_text = ? AND question_type = ?", tpl.text, tpl.questionType).First(&existing).Error
		if errors.Is(errTpl, gorm.ErrRecordNotFound) {
			existing = models.QuestionTemplate{
				TemplateID:    uuid.NewString(),
				Category:      defaultSetName,
				QuestionText:  strings.TrimSpace(tpl.text),
				QuestionType:  tpl.questionType,
				OptionA:       tpl.optionA,
				OptionB:       tpl.optionB,
				AllowMultiple: tpl.allowMultiple,
				IsPublic:      true,
			}
			if errCreate := conn.Create(&existing).Error; errCreate != nil {
				return fmt.Errorf("db: seed template: %w", errCreate)
			}
		} else if errTpl != nil {
			return fmt.Errorf("db: find template: %w", errTpl)
		}

		var link models.QuestionSetTemplate
		errLink := conn.Where("question_set_id = ? AND template_id = ?", set.ID, existing.ID).First(&link).Error
		if errors.Is(errLink, gorm.ErrRecordNotFound) {
			link = models.QuestionSetTemplate{
				QuestionSetID: set.ID,
				TemplateID:    existing.ID,
				Position:      position,
			}
			if errCreate := conn.Create(&link).Error; errCreate != nil {
				return fmt.Errorf("db: seed set link: %w", errCreate)
			}
		} else if errLink != nil {
			return fmt.Errorf("db: find set link: %w", errLink)
		}
	}
	return nil
}

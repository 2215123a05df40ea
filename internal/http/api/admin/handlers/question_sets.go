package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dontaskus/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuestionSetHandler manages question set curation.
type QuestionSetHandler struct {
	db *gorm.DB
}

// NewQuestionSetHandler constructs a QuestionSetHandler.
func NewQuestionSetHandler(db *gorm.DB) *QuestionSetHandler {
	return &QuestionSetHandler{db: db}
}

// List returns all question sets with template counts.
func (h *QuestionSetHandler) List(c *gin.Context) {
	var sets []models.QuestionSet
	errFind := h.db.WithContext(c.Request.Context()).Order("created_at ASC").Find(&sets).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list sets failed"})
		return
	}

	out := make([]gin.H, 0, len(sets))
	for _, set := range sets {
		var templateCount int64
		errCount := h.db.WithContext(c.Request.Context()).Model(&models.QuestionSetTemplate{}).
			Where("question_set_id = ?", set.ID).Count(&templateCount).Error
		if errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list sets failed"})
			return
		}
		out = append(out, gin.H{
			"set_id":         set.SetID,
			"name":           set.Name,
			"description":    set.Description,
			"is_public":      set.IsPublic,
			"template_count": templateCount,
			"usage_count":    set.UsageCount,
			"created_at":     set.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sets": out})
}

// createSetRequest defines the request body for set creation.
type createSetRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	IsPublic    *bool    `json:"is_public"`
	TemplateIDs []string `json:"template_ids"`
}

// Create builds a new question set from existing templates.
func (h *QuestionSetHandler) Create(c *gin.Context) {
	var body createSetRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	adminID := c.GetUint64(ContextAdminIDKey)
	isPublic := true
	if body.IsPublic != nil {
		isPublic = *body.IsPublic
	}
	set := models.QuestionSet{
		SetID:          uuid.NewString(),
		Name:           name,
		Description:    strings.TrimSpace(body.Description),
		IsPublic:       isPublic,
		CreatorAdminID: &adminID,
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&set).Error; errCreate != nil {
			return errCreate
		}
		for position, templateID := range body.TemplateIDs {
			var template models.QuestionTemplate
			errFind := tx.Where("template_id = ?", strings.TrimSpace(templateID)).First(&template).Error
			if errFind != nil {
				return errFind
			}
			link := models.QuestionSetTemplate{
				QuestionSetID: set.ID,
				TemplateID:    template.ID,
				Position:      position,
			}
			if errLink := tx.Create(&link).Error; errLink != nil {
				return errLink
			}
		}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create set failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"set_id": set.SetID, "name": set.Name})
}

// ListTemplates returns all question templates.
func (h *QuestionSetHandler) ListTemplates(c *gin.Context) {
	var templates []models.QuestionTemplate
	errFind := h.db.WithContext(c.Request.Context()).Order("created_at ASC").Find(&templates).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list templates failed"})
		return
	}

	out := make([]gin.H, 0, len(templates))
	for _, template := range templates {
		out = append(out, gin.H{
			"template_id":    template.TemplateID,
			"category":       template.Category,
			"question_text":  template.QuestionText,
			"question_type":  template.QuestionType,
			"option_a":       template.OptionA,
			"option_b":       template.OptionB,
			"allow_multiple": template.AllowMultiple,
			"is_public":      template.IsPublic,
		})
	}
	c.JSON(http.StatusOK, gin.H{"templates": out})
}

// createTemplateRequest defines the request body for template creation.
type createTemplateRequest struct {
	Category      string `json:"category"`
	QuestionText  string `json:"question_text"`
	QuestionType  string `json:"question_type"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	AllowMultiple bool   `json:"allow_multiple"`
	IsPublic      *bool  `json:"is_public"`
}

// validQuestionTypes accepted on template creation.
var validQuestionTypes = map[string]bool{
	models.QuestionTypeBinaryVote:   true,
	models.QuestionTypeSingleChoice: true,
	models.QuestionTypeFreeText:     true,
	models.QuestionTypeMemberChoice: true,
	models.QuestionTypeDuoChoice:    true,
}

// CreateTemplate adds a question template.
func (h *QuestionSetHandler) CreateTemplate(c *gin.Context) {
	var body createTemplateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	text := strings.TrimSpace(body.QuestionText)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing question_text"})
		return
	}
	if !validQuestionTypes[body.QuestionType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question_type"})
		return
	}
	if body.QuestionType == models.QuestionTypeBinaryVote ||
		body.QuestionType == models.QuestionTypeSingleChoice {
		if strings.TrimSpace(body.OptionA) == "" || strings.TrimSpace(body.OptionB) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing options"})
			return
		}
	}

	isPublic := true
	if body.IsPublic != nil {
		isPublic = *body.IsPublic
	}
	template := models.QuestionTemplate{
		TemplateID:    uuid.NewString(),
		Category:      strings.TrimSpace(body.Category),
		QuestionText:  text,
		QuestionType:  body.QuestionType,
		OptionA:       strings.TrimSpace(body.OptionA),
		OptionB:       strings.TrimSpace(body.OptionB),
		AllowMultiple: body.AllowMultiple,
		IsPublic:      isPublic,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&template).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create template failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template_id": template.TemplateID})
}

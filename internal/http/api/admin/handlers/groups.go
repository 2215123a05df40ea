package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dontaskus/backend/internal/audit"
	dbutil "github.com/dontaskus/backend/internal/db"
	"github.com/dontaskus/backend/internal/models"
	"github.com/dontaskus/backend/internal/question"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GroupHandler manages group oversight and question-cycle operations.
type GroupHandler struct {
	db       *gorm.DB
	selector *question.Selector
	audits   *audit.Recorder
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(db *gorm.DB, selector *question.Selector, audits *audit.Recorder) *GroupHandler {
	return &GroupHandler{db: db, selector: selector, audits: audits}
}

// List returns groups with optional name filter.
func (h *GroupHandler) List(c *gin.Context) {
	nameQ := strings.TrimSpace(c.Query("name"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.Group{})
	if nameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+nameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	var rows []models.Group
	if errFind := q.Order("created_at DESC").Limit(200).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list groups failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, h.groupView(c, &rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"groups": out})
}

// Get returns one group with its members.
func (h *GroupHandler) Get(c *gin.Context) {
	group, ok := h.findGroup(c)
	if !ok {
		return
	}

	var members []models.User
	errMembers := h.db.WithContext(c.Request.Context()).
		Where("group_id = ?", group.ID).
		Order("created_at ASC").
		Find(&members).Error
	if errMembers != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup group failed"})
		return
	}

	view := h.groupView(c, group)
	memberViews := make([]gin.H, 0, len(members))
	for i := range members {
		memberViews = append(memberViews, adminUserView(&members[i]))
	}
	view["members"] = memberViews
	c.JSON(http.StatusOK, view)
}

// notesRequest defines the request body for note updates.
type notesRequest struct {
	Notes string `json:"notes"`
}

// UpdateNotes replaces the instance-admin notes on a group.
func (h *GroupHandler) UpdateNotes(c *gin.Context) {
	group, ok := h.findGroup(c)
	if !ok {
		return
	}
	var body notesRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	before := group.InstanceAdminNotes
	errUpdate := h.db.WithContext(c.Request.Context()).Model(group).
		Update("instance_admin_notes", strings.TrimSpace(body.Notes)).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update notes failed"})
		return
	}

	h.audits.MustRecord(audit.Entry{
		AdminID: c.GetUint64(ContextAdminIDKey), Action: audit.ActionGroupNotes,
		Outcome: audit.OutcomeSuccess, TargetType: "group", TargetID: group.GroupID,
		Before: gin.H{"notes": before}, After: gin.H{"notes": strings.TrimSpace(body.Notes)},
		IPAddress: c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// ResetCycle clears the group's used-question history.
func (h *GroupHandler) ResetCycle(c *gin.Context) {
	group, ok := h.findGroup(c)
	if !ok {
		return
	}

	if errReset := h.selector.ResetCycle(group.ID); errReset != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset cycle failed"})
		return
	}

	h.audits.MustRecord(audit.Entry{
		AdminID: c.GetUint64(ContextAdminIDKey), Action: audit.ActionResetCycle,
		Outcome: audit.OutcomeSuccess, TargetType: "group", TargetID: group.GroupID,
		IPAddress: c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// Regenerate replaces today's question for the group.
func (h *GroupHandler) Regenerate(c *gin.Context) {
	group, ok := h.findGroup(c)
	if !ok {
		return
	}

	daily, errRegen := h.selector.Regenerate(group.ID, "")
	if errRegen != nil {
		switch {
		case errors.Is(errRegen, question.ErrInsufficientMembers):
			c.JSON(http.StatusConflict, gin.H{"error": "not enough members"})
		case errors.Is(errRegen, question.ErrNoEligibleTemplates):
			c.JSON(http.StatusNotFound, gin.H{"error": "no questions available"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "regenerate failed"})
		}
		return
	}

	h.audits.MustRecord(audit.Entry{
		AdminID: c.GetUint64(ContextAdminIDKey), Action: audit.ActionRegenerate,
		Outcome: audit.OutcomeSuccess, TargetType: "group", TargetID: group.GroupID,
		After: gin.H{"question_id": daily.QuestionID}, IPAddress: c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{
		"question_id":   daily.QuestionID,
		"question_text": daily.QuestionText,
		"question_type": daily.QuestionType,
		"question_date": daily.QuestionDate,
	})
}

// QuestionStatus reports the group's pool progress.
func (h *GroupHandler) QuestionStatus(c *gin.Context) {
	group, ok := h.findGroup(c)
	if !ok {
		return
	}

	status, errStatus := h.selector.CycleStatus(group.ID)
	if errStatus != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load status failed"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// assignSetRequest defines the request body for set assignment.
type assignSetRequest struct {
	SetID string `json:"set_id"`
	Notes string `json:"notes"`
}

// AssignSet makes a question set the group's active pool source.
// Previous assignments are deactivated, not deleted.
func (h *GroupHandler) AssignSet(c *gin.Context) {
	group, ok := h.findGroup(c)
	if !ok {
		return
	}
	var body assignSetRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var set models.QuestionSet
	errSet := h.db.WithContext(c.Request.Context()).
		Where("set_id = ?", strings.TrimSpace(body.SetID)).First(&set).Error
	if errSet != nil {
		if errors.Is(errSet, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "question set not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assign set failed"})
		return
	}

	adminID := c.GetUint64(ContextAdminIDKey)
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		errOff := tx.Model(&models.GroupQuestionSet{}).
			Where("group_id = ? AND is_active = ?", group.ID, true).
			Update("is_active", false).Error
		if errOff != nil {
			return errOff
		}

		var existing models.GroupQuestionSet
		errFind := tx.Where("group_id = ? AND question_set_id = ?", group.ID, set.ID).First(&existing).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			assignment := models.GroupQuestionSet{
				GroupID:           group.ID,
				QuestionSetID:     set.ID,
				IsActive:          true,
				AssignedByAdminID: &adminID,
				AssignmentNotes:   strings.TrimSpace(body.Notes),
				SelectedAt:        time.Now().UTC(),
			}
			return tx.Create(&assignment).Error
		}
		if errFind != nil {
			return errFind
		}
		return tx.Model(&existing).Updates(map[string]any{
			"is_active":            true,
			"assigned_by_admin_id": adminID,
			"assignment_notes":     strings.TrimSpace(body.Notes),
			"selected_at":          time.Now().UTC(),
		}).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assign set failed"})
		return
	}

	errUsage := h.db.WithContext(c.Request.Context()).Model(&set).
		Update("usage_count", gorm.Expr("usage_count + 1")).Error
	if errUsage != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assign set failed"})
		return
	}

	h.audits.MustRecord(audit.Entry{
		AdminID: adminID, Action: audit.ActionAssignSet,
		Outcome: audit.OutcomeSuccess, TargetType: "group", TargetID: group.GroupID,
		After: gin.H{"set_id": set.SetID}, IPAddress: c.ClientIP(), Reason: strings.TrimSpace(body.Notes),
	})
	c.JSON(http.StatusOK, gin.H{"assigned": true})
}

func (h *GroupHandler) findGroup(c *gin.Context) (*models.Group, bool) {
	publicID := strings.TrimSpace(c.Param("group_id"))
	var group models.Group
	errFind := h.db.WithContext(c.Request.Context()).Where("group_id = ?", publicID).First(&group).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup group failed"})
		return nil, false
	}
	return &group, true
}

func (h *GroupHandler) groupView(c *gin.Context, group *models.Group) gin.H {
	var memberCount int64
	_ = h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("group_id = ?", group.ID).Count(&memberCount).Error
	return gin.H{
		"group_id":     group.GroupID,
		"name":         group.Name,
		"invite_code":  group.InviteCode,
		"member_count": memberCount,
		"notes":        group.InstanceAdminNotes,
		"created_at":   group.CreatedAt.UTC().Format(time.RFC3339),
	}
}

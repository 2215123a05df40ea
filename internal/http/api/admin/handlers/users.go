package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dontaskus/backend/internal/audit"
	dbutil "github.com/dontaskus/backend/internal/db"
	"github.com/dontaskus/backend/internal/models"
	"github.com/dontaskus/backend/internal/session"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler manages member moderation endpoints.
type UserHandler struct {
	db       *gorm.DB
	sessions *session.Store
	audits   *audit.Recorder
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB, sessions *session.Store, audits *audit.Recorder) *UserHandler {
	return &UserHandler{db: db, sessions: sessions, audits: audits}
}

// List returns members with optional filters.
func (h *UserHandler) List(c *gin.Context) {
	var (
		groupQ = strings.TrimSpace(c.Query("group_id"))
		nameQ  = strings.TrimSpace(c.Query("display_name"))
		suspQ  = strings.TrimSpace(c.Query("suspended"))
	)

	q := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if groupQ != "" {
		q = q.Joins("JOIN groups ON groups.id = users.group_id").Where("groups.group_id = ?", groupQ)
	}
	if nameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+nameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "display_name"), pattern)
	}
	if suspQ == "true" {
		q = q.Where("suspended = ?", true)
	}

	var rows []models.User
	if errFind := q.Order("users.created_at DESC").Limit(200).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, adminUserView(&row))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// suspendRequest defines the request body for suspension.
type suspendRequest struct {
	Reason string `json:"reason"`
}

// Suspend blocks a member and revokes their session immediately.
func (h *UserHandler) Suspend(c *gin.Context) {
	user, ok := h.findUser(c)
	if !ok {
		return
	}
	var body suspendRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	before := gin.H{"suspended": user.Suspended, "reason": user.SuspensionReason}
	errUpdate := h.db.WithContext(c.Request.Context()).Model(user).Updates(map[string]any{
		"suspended":         true,
		"suspension_reason": strings.TrimSpace(body.Reason),
	}).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "suspend user failed"})
		return
	}
	if errRevoke := h.sessions.Revoke(user.ID); errRevoke != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "suspend user failed"})
		return
	}

	h.audits.MustRecord(audit.Entry{
		AdminID: c.GetUint64(ContextAdminIDKey), Action: audit.ActionSuspendUser,
		Outcome: audit.OutcomeSuccess, TargetType: "user", TargetID: user.UserID,
		Before: before, After: gin.H{"suspended": true, "reason": strings.TrimSpace(body.Reason)},
		IPAddress: c.ClientIP(), Reason: strings.TrimSpace(body.Reason),
	})
	c.JSON(http.StatusOK, gin.H{"suspended": true})
}

// Unsuspend lifts a suspension. The member must obtain a recovered
// token to sign in again.
func (h *UserHandler) Unsuspend(c *gin.Context) {
	user, ok := h.findUser(c)
	if !ok {
		return
	}

	errUpdate := h.db.WithContext(c.Request.Context()).Model(user).Updates(map[string]any{
		"suspended":         false,
		"suspension_reason": "",
	}).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unsuspend user failed"})
		return
	}

	h.audits.MustRecord(audit.Entry{
		AdminID: c.GetUint64(ContextAdminIDKey), Action: audit.ActionUnsuspendUser,
		Outcome: audit.OutcomeSuccess, TargetType: "user", TargetID: user.UserID,
		IPAddress: c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"suspended": false})
}

// RecoverToken reissues a session token for a locked-out member. The
// plaintext is returned once, for out-of-band delivery.
func (h *UserHandler) RecoverToken(c *gin.Context) {
	user, ok := h.findUser(c)
	if !ok {
		return
	}

	token, errRecover := h.sessions.Recover(user)
	if errRecover != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recover token failed"})
		return
	}

	h.audits.MustRecord(audit.Entry{
		AdminID: c.GetUint64(ContextAdminIDKey), Action: audit.ActionRecoverUserToken,
		Outcome: audit.OutcomeSuccess, TargetType: "user", TargetID: user.UserID,
		IPAddress: c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"session_token": token})
}

func (h *UserHandler) findUser(c *gin.Context) (*models.User, bool) {
	publicID := strings.TrimSpace(c.Param("user_id"))
	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("user_id = ?", publicID).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup user failed"})
		return nil, false
	}
	return &user, true
}

func adminUserView(user *models.User) gin.H {
	view := gin.H{
		"user_id":           user.UserID,
		"display_name":      user.DisplayName,
		"color_avatar":      user.ColorAvatar,
		"suspended":         user.Suspended,
		"suspension_reason": user.SuspensionReason,
		"answer_streak":     user.AnswerStreak,
		"longest_streak":    user.LongestAnswerStreak,
		"last_known_ip":     user.LastKnownIP,
		"created_at":        user.CreatedAt.UTC().Format(time.RFC3339),
	}
	if user.LastAnswerDate != nil {
		view["last_answer_date"] = user.LastAnswerDate.UTC().Format("2006-01-02")
	}
	return view
}

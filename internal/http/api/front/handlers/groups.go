package handlers

import (
	"crypto/rand"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dontaskus/backend/internal/models"
	"github.com/dontaskus/backend/internal/security"
	"github.com/dontaskus/backend/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	inviteCodeLength   = 8
	inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteCodeAttempts = 5
	maxDisplayNameLen  = 50
	maxGroupNameLen    = 100
)

// errInviteCodeTaken signals a generated invite code collided with an
// existing group; creation retries with a fresh code.
var errInviteCodeTaken = errors.New("invite code taken")

// defaultAvatarColors is cycled for members who do not pick one.
var defaultAvatarColors = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}

// GroupHandler manages group creation, joining, and membership views.
type GroupHandler struct {
	db       *gorm.DB
	sessions *session.Store
	newCode  func() string
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(db *gorm.DB, sessions *session.Store) *GroupHandler {
	return &GroupHandler{db: db, sessions: sessions, newCode: newInviteCode}
}

// createGroupRequest defines the request body for group creation.
type createGroupRequest struct {
	GroupName   string `json:"group_name"`
	DisplayName string `json:"display_name"`
	ColorAvatar string `json:"color_avatar"`
}

// Create creates a group and enrolls the caller as its first member.
// The group admin token and the member session token are returned
// exactly once; only their hashes are stored.
func (h *GroupHandler) Create(c *gin.Context) {
	var body createGroupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	groupName := strings.TrimSpace(body.GroupName)
	displayName := strings.TrimSpace(body.DisplayName)
	if groupName == "" || len(groupName) > maxGroupNameLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid group_name"})
		return
	}
	if displayName == "" || len(displayName) > maxDisplayNameLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid display_name"})
		return
	}

	groupID := uuid.NewString()
	adminPlaintext, adminHash, adminSalt, errToken := security.GenerateToken(groupID)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate admin token failed"})
		return
	}

	group := models.Group{
		GroupID:        groupID,
		Name:           groupName,
		AdminToken:     adminHash,
		AdminTokenSalt: adminSalt,
	}
	user := models.User{
		UserID:      uuid.NewString(),
		DisplayName: displayName,
		ColorAvatar: pickAvatarColor(body.ColorAvatar, 0),
		LastKnownIP: c.ClientIP(),
	}

	// Invite codes are short, so collisions are rare but possible.
	// Retry with a fresh code instead of surfacing the conflict.
	var errTx error
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		group.InviteCode = h.newCode()
		errTx = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var taken int64
			errTaken := tx.Model(&models.Group{}).
				Where("invite_code = ?", group.InviteCode).
				Count(&taken).Error
			if errTaken != nil {
				return errTaken
			}
			if taken > 0 {
				return errInviteCodeTaken
			}
			if errCreate := tx.Create(&group).Error; errCreate != nil {
				return errCreate
			}
			user.GroupID = group.ID
			if errCreate := tx.Create(&user).Error; errCreate != nil {
				return errCreate
			}
			return tx.Model(&group).Update("creator_id", user.ID).Error
		})
		if !errors.Is(errTx, errInviteCodeTaken) {
			break
		}
	}
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create group failed"})
		return
	}

	sessionToken, errSession := h.sessions.Issue(&user)
	if errSession != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue session failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"group":             groupView(&group, 1),
		"user":              memberView(&user),
		"invite_code":       group.InviteCode,
		"group_admin_token": adminPlaintext,
		"session_token":     sessionToken,
	})
}

// GetByInviteCode returns a join preview for an invite code.
func (h *GroupHandler) GetByInviteCode(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing invite code"})
		return
	}

	var group models.Group
	errFind := h.db.WithContext(c.Request.Context()).Where("invite_code = ?", code).First(&group).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup group failed"})
		return
	}

	memberCount, errCount := h.memberCount(c, group.ID)
	if errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup group failed"})
		return
	}
	c.JSON(http.StatusOK, groupView(&group, memberCount))
}

// joinGroupRequest defines the request body for joining a group.
type joinGroupRequest struct {
	InviteCode  string `json:"invite_code"`
	DisplayName string `json:"display_name"`
	ColorAvatar string `json:"color_avatar"`
}

// Join enrolls a new member via invite code. Display names are unique
// within a group; the session token is shown once.
func (h *GroupHandler) Join(c *gin.Context) {
	var body joinGroupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	code := strings.ToUpper(strings.TrimSpace(body.InviteCode))
	displayName := strings.TrimSpace(body.DisplayName)
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing invite_code"})
		return
	}
	if displayName == "" || len(displayName) > maxDisplayNameLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid display_name"})
		return
	}

	var group models.Group
	errFind := h.db.WithContext(c.Request.Context()).Where("invite_code = ?", code).First(&group).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup group failed"})
		return
	}

	var taken int64
	errTaken := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("group_id = ? AND display_name = ?", group.ID, displayName).
		Count(&taken).Error
	if errTaken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "join group failed"})
		return
	}
	if taken > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "display name already taken"})
		return
	}

	memberCount, errCount := h.memberCount(c, group.ID)
	if errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "join group failed"})
		return
	}

	user := models.User{
		UserID:      uuid.NewString(),
		GroupID:     group.ID,
		DisplayName: displayName,
		ColorAvatar: pickAvatarColor(body.ColorAvatar, memberCount),
		LastKnownIP: c.ClientIP(),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		// The unique index backs the pre-check under races.
		c.JSON(http.StatusConflict, gin.H{"error": "display name already taken"})
		return
	}

	sessionToken, errSession := h.sessions.Issue(&user)
	if errSession != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue session failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"group":         groupView(&group, memberCount+1),
		"user":          memberView(&user),
		"session_token": sessionToken,
	})
}

// ValidateSession confirms the bearer token and echoes the member.
func (h *GroupHandler) ValidateSession(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "user": memberView(user)})
}

// GetMine returns the caller's group with its invite code.
func (h *GroupHandler) GetMine(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	var group models.Group
	if errFind := h.db.WithContext(c.Request.Context()).First(&group, user.GroupID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup group failed"})
		return
	}
	memberCount, errCount := h.memberCount(c, group.ID)
	if errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup group failed"})
		return
	}

	view := groupView(&group, memberCount)
	view["invite_code"] = group.InviteCode
	c.JSON(http.StatusOK, view)
}

// ListMembers returns the caller's fellow group members.
func (h *GroupHandler) ListMembers(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	var members []models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Where("group_id = ? AND suspended = ?", user.GroupID, false).
		Order("created_at ASC").
		Find(&members).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list members failed"})
		return
	}

	out := make([]gin.H, 0, len(members))
	for i := range members {
		out = append(out, memberView(&members[i]))
	}
	c.JSON(http.StatusOK, gin.H{"members": out})
}

func (h *GroupHandler) memberCount(c *gin.Context, groupID uint64) (int, error) {
	var count int64
	errCount := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("group_id = ? AND suspended = ?", groupID, false).
		Count(&count).Error
	return int(count), errCount
}

func groupView(group *models.Group, memberCount int) gin.H {
	return gin.H{
		"group_id":     group.GroupID,
		"name":         group.Name,
		"member_count": memberCount,
		"created_at":   group.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func memberView(user *models.User) gin.H {
	return gin.H{
		"user_id":        user.UserID,
		"display_name":   user.DisplayName,
		"color_avatar":   user.ColorAvatar,
		"answer_streak":  user.AnswerStreak,
		"longest_streak": user.LongestAnswerStreak,
	}
}

func pickAvatarColor(requested string, memberIndex int) string {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		return requested
	}
	return defaultAvatarColors[memberIndex%len(defaultAvatarColors)]
}

func newInviteCode() string {
	raw := make([]byte, inviteCodeLength)
	if _, err := rand.Read(raw); err != nil {
		return strings.ToUpper(uuid.NewString()[:inviteCodeLength])
	}
	code := make([]byte, inviteCodeLength)
	for i, b := range raw {
		code[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(code)
}

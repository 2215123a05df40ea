package handlers

import (
	"net/http"

	"github.com/dontaskus/backend/internal/models"
	"github.com/dontaskus/backend/internal/streak"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StreakHandler serves the group streak leaderboard.
type StreakHandler struct {
	streaks *streak.Tracker
	db      *gorm.DB
}

// NewStreakHandler constructs a StreakHandler.
func NewStreakHandler(streaks *streak.Tracker, db *gorm.DB) *StreakHandler {
	return &StreakHandler{streaks: streaks, db: db}
}

// Leaderboard returns the caller's group standings by current streak.
func (h *StreakHandler) Leaderboard(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	rows, errBoard := h.streaks.Leaderboard(user.GroupID)
	if errBoard != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load leaderboard failed"})
		return
	}

	userIDs := make([]uint64, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
	}
	members := make(map[uint64]models.User, len(userIDs))
	if len(userIDs) > 0 {
		var users []models.User
		errUsers := h.db.WithContext(c.Request.Context()).Where("id IN ?", userIDs).Find(&users).Error
		if errUsers != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "load leaderboard failed"})
			return
		}
		for _, u := range users {
			members[u.ID] = u
		}
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		member := members[row.UserID]
		if member.Suspended {
			continue
		}
		out = append(out, gin.H{
			"user_id":        member.UserID,
			"display_name":   member.DisplayName,
			"color_avatar":   member.ColorAvatar,
			"current_streak": row.CurrentStreak,
			"longest_streak": row.LongestStreak,
		})
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": out})
}

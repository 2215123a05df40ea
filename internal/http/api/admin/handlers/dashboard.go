package handlers

import (
	"net/http"
	"time"

	"github.com/dontaskus/backend/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DashboardHandler serves aggregate instance statistics.
type DashboardHandler struct {
	db *gorm.DB
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// Stats returns instance-wide counters for the admin dashboard.
func (h *DashboardHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	today := time.Now().UTC().Format("2006-01-02")

	var (
		groupCount     int64
		userCount      int64
		suspendedCount int64
		questionsToday int64
		votesToday     int64
	)

	if err := h.db.WithContext(ctx).Model(&models.Group{}).Count(&groupCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load stats failed"})
		return
	}
	if err := h.db.WithContext(ctx).Model(&models.User{}).Count(&userCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load stats failed"})
		return
	}
	if err := h.db.WithContext(ctx).Model(&models.User{}).
		Where("suspended = ?", true).Count(&suspendedCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load stats failed"})
		return
	}
	if err := h.db.WithContext(ctx).Model(&models.DailyQuestion{}).
		Where("question_date = ? AND is_active = ?", today, true).
		Count(&questionsToday).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load stats failed"})
		return
	}
	if err := h.db.WithContext(ctx).Model(&models.Vote{}).
		Joins("JOIN daily_questions ON daily_questions.id = votes.daily_question_id").
		Where("daily_questions.question_date = ?", today).
		Count(&votesToday).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load stats failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"groups":          groupCount,
		"users":           userCount,
		"suspended_users": suspendedCount,
		"questions_today": questionsToday,
		"votes_today":     votesToday,
	})
}

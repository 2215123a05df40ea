package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dontaskus/backend/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	auditDefaultLimit = 50
	auditMaxLimit     = 500
)

// AuditLogHandler serves the append-only admin audit trail.
type AuditLogHandler struct {
	db *gorm.DB
}

// NewAuditLogHandler constructs an AuditLogHandler.
func NewAuditLogHandler(db *gorm.DB) *AuditLogHandler {
	return &AuditLogHandler{db: db}
}

// List returns audit entries, newest first, with optional filters.
func (h *AuditLogHandler) List(c *gin.Context) {
	var (
		actionQ     = strings.TrimSpace(c.Query("action"))
		targetTypeQ = strings.TrimSpace(c.Query("target_type"))
		targetIDQ   = strings.TrimSpace(c.Query("target_id"))
		outcomeQ    = strings.TrimSpace(c.Query("outcome"))
	)

	limit := auditDefaultLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 && parsed <= auditMaxLimit {
			limit = parsed
		}
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.AuditLog{})
	if actionQ != "" {
		q = q.Where("action = ?", actionQ)
	}
	if targetTypeQ != "" {
		q = q.Where("target_type = ?", targetTypeQ)
	}
	if targetIDQ != "" {
		q = q.Where("target_id = ?", targetIDQ)
	}
	if outcomeQ != "" {
		q = q.Where("outcome = ?", outcomeQ)
	}

	var rows []models.AuditLog
	if errFind := q.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list audit logs failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		entry := gin.H{
			"id":          row.ID,
			"admin_id":    row.AdminID,
			"action":      row.Action,
			"outcome":     row.Outcome,
			"target_type": row.TargetType,
			"target_id":   row.TargetID,
			"ip_address":  row.IPAddress,
			"reason":      row.Reason,
			"created_at":  row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if len(row.BeforeState) > 0 {
			entry["before"] = row.BeforeState
		}
		if len(row.AfterState) > 0 {
			entry["after"] = row.AfterState
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"logs": out})
}

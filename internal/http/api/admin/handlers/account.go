package handlers

import (
	"errors"
	"net/http"

	"github.com/dontaskus/backend/internal/auth"
	"github.com/dontaskus/backend/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AccountHandler serves the authenticated admin's own account settings.
type AccountHandler struct {
	db      *gorm.DB
	manager *auth.Manager
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(db *gorm.DB, manager *auth.Manager) *AccountHandler {
	return &AccountHandler{db: db, manager: manager}
}

// changePasswordRequest defines the request body for password rotation.
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword rotates the caller's password and revokes all sessions.
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	adminID := c.GetUint64(ContextAdminIDKey)
	errChange := h.manager.ChangePassword(adminID, body.CurrentPassword, body.NewPassword, c.ClientIP())
	if errChange != nil {
		if errors.Is(errChange, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "change password failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": true})
}

// MFAStatus reports whether TOTP is configured for the caller.
func (h *AccountHandler) MFAStatus(c *gin.Context) {
	adminID := c.GetUint64(ContextAdminIDKey)
	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).First(&admin, adminID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup admin failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"totp_configured": admin.TOTPConfigured,
		"totp_pending":    admin.PendingTOTPSecret != "",
	})
}

// PrepareTOTP generates a pending secret and provisioning URI.
func (h *AccountHandler) PrepareTOTP(c *gin.Context) {
	adminID := c.GetUint64(ContextAdminIDKey)
	secret, uri, errBegin := h.manager.BeginTOTPSetup(adminID)
	if errBegin != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prepare totp failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret, "provision_uri": uri})
}

// totpCodeRequest defines a request carrying one authenticator code.
type totpCodeRequest struct {
	Code string `json:"code"`
}

// ConfirmTOTP commits the pending secret after code verification.
func (h *AccountHandler) ConfirmTOTP(c *gin.Context) {
	var body totpCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	adminID := c.GetUint64(ContextAdminIDKey)
	errConfirm := h.manager.ConfirmTOTPSetup(adminID, body.Code, c.ClientIP())
	if errConfirm != nil {
		switch {
		case errors.Is(errConfirm, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		case errors.Is(errConfirm, auth.ErrTOTPNotConfigured):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no pending totp setup"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "confirm totp failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"configured": true})
}

// disableTOTPRequest defines the request body for disabling 2FA.
type disableTOTPRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

// DisableTOTP removes the second factor.
func (h *AccountHandler) DisableTOTP(c *gin.Context) {
	var body disableTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	adminID := c.GetUint64(ContextAdminIDKey)
	errDisable := h.manager.DisableTOTP(adminID, body.Password, body.Code, c.ClientIP())
	if errDisable != nil {
		switch {
		case errors.Is(errDisable, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		case errors.Is(errDisable, auth.ErrTOTPNotConfigured):
			c.JSON(http.StatusBadRequest, gin.H{"error": "totp not configured"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "disable totp failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"disabled": true})
}

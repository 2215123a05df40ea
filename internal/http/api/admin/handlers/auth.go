package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dontaskus/backend/internal/auth"
	"github.com/gin-gonic/gin"
)

// AuthHandler serves admin login, token refresh, and logout.
type AuthHandler struct {
	manager *auth.Manager
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(manager *auth.Manager) *AuthHandler {
	return &AuthHandler{manager: manager}
}

// loginRequest defines the request body for password login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the password factor. Accounts with TOTP configured get a
// short-lived temp token instead of a full pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	result, errLogin := h.manager.Login(body.Username, body.Password, c.ClientIP())
	if errLogin != nil {
		if errors.Is(errLogin, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	if result.RequiresTOTP {
		c.JSON(http.StatusOK, gin.H{"requires_totp": true, "temp_token": result.TempToken})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.Pair.AccessToken,
		"refresh_token": result.Pair.RefreshToken,
	})
}

// loginTOTPRequest defines the request body for the second factor.
type loginTOTPRequest struct {
	TempToken string `json:"temp_token"`
	Code      string `json:"code"`
}

// LoginTOTP completes a 2FA login.
func (h *AuthHandler) LoginTOTP(c *gin.Context) {
	var body loginTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	pair, errVerify := h.manager.VerifyTOTP(strings.TrimSpace(body.TempToken), body.Code, c.ClientIP())
	if errVerify != nil {
		if errors.Is(errVerify, auth.ErrInvalidCredentials) || errors.Is(errVerify, auth.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// refreshRequest defines the request body for token rotation.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a one-time-use refresh token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var body refreshRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	pair, errRefresh := h.manager.Refresh(strings.TrimSpace(body.RefreshToken), c.ClientIP())
	if errRefresh != nil {
		if errors.Is(errRefresh, auth.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Logout revokes all sessions of the authenticated admin.
func (h *AuthHandler) Logout(c *gin.Context) {
	adminID := c.GetUint64(ContextAdminIDKey)
	if errLogout := h.manager.Logout(adminID, c.ClientIP()); errLogout != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/dontaskus/backend/internal/notify"
	"github.com/gin-gonic/gin"
)

// DeviceHandler manages push notification device registrations.
type DeviceHandler struct {
	devices *notify.Registry
}

// NewDeviceHandler constructs a DeviceHandler.
func NewDeviceHandler(devices *notify.Registry) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// registerDeviceRequest defines the request body for registration.
type registerDeviceRequest struct {
	Token      string `json:"token"`
	Platform   string `json:"platform"`
	DeviceName string `json:"device_name"`
}

// Register stores or reactivates a device token for the caller.
func (h *DeviceHandler) Register(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	var body registerDeviceRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errRegister := h.devices.Register(user.ID, body.Token, body.Platform, body.DeviceName); errRegister != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "register device failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"registered": true})
}

// unregisterDeviceRequest defines the request body for removal.
type unregisterDeviceRequest struct {
	Token string `json:"token"`
}

// Unregister deactivates one of the caller's device tokens.
func (h *DeviceHandler) Unregister(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	var body unregisterDeviceRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	if errUnregister := h.devices.Unregister(user.ID, body.Token); errUnregister != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unregister device failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unregistered": true})
}

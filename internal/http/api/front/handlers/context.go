package handlers

import (
	"github.com/dontaskus/backend/internal/models"
	"github.com/gin-gonic/gin"
)

// ContextUserKey is where the session middleware stores the member.
const ContextUserKey = "sessionUser"

// CurrentUser pulls the authenticated member from the request context.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

// Package front exposes the member-facing HTTP API.
package front

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dontaskus/backend/internal/http/api/front/handlers"
	"github.com/dontaskus/backend/internal/notify"
	"github.com/dontaskus/backend/internal/question"
	"github.com/dontaskus/backend/internal/ratelimit"
	"github.com/dontaskus/backend/internal/session"
	"github.com/dontaskus/backend/internal/streak"
	"github.com/dontaskus/backend/internal/vote"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps bundles the collaborators the front API needs.
type Deps struct {
	DB       *gorm.DB
	Sessions *session.Store
	Selector *question.Selector
	Votes    *vote.Recorder
	Streaks  *streak.Tracker
	Devices  *notify.Registry
	Limits   *ratelimit.Manager
}

// RegisterRoutes registers public routes, middleware, and handlers.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	api := r.Group("/v0")

	groupHandler := handlers.NewGroupHandler(deps.DB, deps.Sessions)
	api.POST("/groups", rateLimitMiddleware(deps.Limits, ratelimit.ClassJoin), groupHandler.Create)
	api.GET("/groups/by-code/:code", groupHandler.GetByInviteCode)
	api.POST("/groups/join", rateLimitMiddleware(deps.Limits, ratelimit.ClassJoin), groupHandler.Join)

	authed := api.Group("")
	authed.Use(sessionAuthMiddleware(deps.Sessions))

	authed.GET("/session", groupHandler.ValidateSession)
	authed.GET("/groups/me", groupHandler.GetMine)
	authed.GET("/groups/me/members", groupHandler.ListMembers)

	questionHandler := handlers.NewQuestionHandler(deps.DB, deps.Selector, deps.Votes)
	authed.GET("/questions/today", questionHandler.Today)
	authed.GET("/questions/history", questionHandler.History)
	authed.POST("/questions/:question_id/answer",
		rateLimitMiddleware(deps.Limits, ratelimit.ClassAnswer), questionHandler.Answer)

	streakHandler := handlers.NewStreakHandler(deps.Streaks, deps.DB)
	authed.GET("/leaderboard", streakHandler.Leaderboard)

	deviceHandler := handlers.NewDeviceHandler(deps.Devices)
	authed.POST("/devices", deviceHandler.Register)
	authed.DELETE("/devices", deviceHandler.Unregister)
}

// sessionAuthMiddleware resolves the bearer session token to a member
// and stores it in the request context.
func sessionAuthMiddleware(sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if authHeader == "" || token == authHeader || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}

		user, errVerify := sessions.Verify(strings.TrimSpace(token))
		if errVerify != nil {
			if errors.Is(errVerify, session.ErrSuspended) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account suspended"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}
		c.Set(handlers.ContextUserKey, user)
		c.Next()
	}
}

// rateLimitMiddleware enforces the per-class, per-IP limit before the
// handler runs.
func rateLimitMiddleware(limits *ratelimit.Manager, class string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limits == nil {
			c.Next()
			return
		}
		key := ratelimit.Key(class, c.ClientIP())
		result, errAllow := limits.Allow(c.Request.Context(), key, ratelimit.LimitForClass(class))
		if errAllow != nil {
			// Limiter trouble never blocks traffic.
			c.Next()
			return
		}
		if !result.Allowed {
			retryAfter := result.RetryAfter(time.Now())
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}

package admin

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dontaskus/backend/internal/audit"
	"github.com/dontaskus/backend/internal/auth"
	handlers "github.com/dontaskus/backend/internal/http/api/admin/handlers"
	"github.com/dontaskus/backend/internal/models"
	"github.com/dontaskus/backend/internal/question"
	"github.com/dontaskus/backend/internal/ratelimit"
	"github.com/dontaskus/backend/internal/security"
	"github.com/dontaskus/backend/internal/session"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps bundles the collaborators the admin API needs.
type Deps struct {
	DB       *gorm.DB
	JWT      *security.JWTManager
	Manager  *auth.Manager
	Sessions *session.Store
	Selector *question.Selector
	Audits   *audit.Recorder
	Limits   *ratelimit.Manager
}

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(deps.Manager)
	adminGroup.POST("/login",
		rateLimitMiddleware(deps.Limits, ratelimit.ClassLogin, deps.Audits), authHandler.Login)
	adminGroup.POST("/login/totp",
		rateLimitMiddleware(deps.Limits, ratelimit.ClassTOTP, deps.Audits), authHandler.LoginTOTP)
	adminGroup.POST("/refresh", authHandler.Refresh)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(deps.DB, deps.JWT, deps.Audits))
	mutating := rateLimitMiddleware(deps.Limits, ratelimit.ClassAdminMutation, deps.Audits)

	authed.POST("/logout", authHandler.Logout)

	accountHandler := handlers.NewAccountHandler(deps.DB, deps.Manager)
	authed.PUT("/account/password", mutating, accountHandler.ChangePassword)
	authed.GET("/mfa/status", accountHandler.MFAStatus)
	authed.POST("/mfa/totp/prepare", mutating, accountHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm",
		rateLimitMiddleware(deps.Limits, ratelimit.ClassTOTP, deps.Audits), accountHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable",
		rateLimitMiddleware(deps.Limits, ratelimit.ClassTOTP, deps.Audits), accountHandler.DisableTOTP)

	userHandler := handlers.NewUserHandler(deps.DB, deps.Sessions, deps.Audits)
	authed.GET("/users", userHandler.List)
	authed.POST("/users/:user_id/suspend", mutating, userHandler.Suspend)
	authed.POST("/users/:user_id/unsuspend", mutating, userHandler.Unsuspend)
	authed.POST("/users/:user_id/recover-token", mutating, userHandler.RecoverToken)

	groupHandler := handlers.NewGroupHandler(deps.DB, deps.Selector, deps.Audits)
	authed.GET("/groups", groupHandler.List)
	authed.GET("/groups/:group_id", groupHandler.Get)
	authed.PUT("/groups/:group_id/notes", mutating, groupHandler.UpdateNotes)
	authed.POST("/groups/:group_id/reset-cycle", mutating, groupHandler.ResetCycle)
	authed.POST("/groups/:group_id/regenerate", mutating, groupHandler.Regenerate)
	authed.GET("/groups/:group_id/question-status", groupHandler.QuestionStatus)
	authed.POST("/groups/:group_id/question-set", mutating, groupHandler.AssignSet)

	setHandler := handlers.NewQuestionSetHandler(deps.DB)
	authed.GET("/question-sets", setHandler.List)
	authed.POST("/question-sets", mutating, setHandler.Create)
	authed.GET("/question-templates", setHandler.ListTemplates)
	authed.POST("/question-templates", mutating, setHandler.CreateTemplate)

	auditHandler := handlers.NewAuditLogHandler(deps.DB)
	authed.GET("/audit-logs", auditHandler.List)

	dashboardHandler := handlers.NewDashboardHandler(deps.DB)
	authed.GET("/dashboard/stats", dashboardHandler.Stats)
}

// adminAuthMiddleware validates admin access JWTs and loads admin
// context. Rejected tokens land in the audit trail.
func adminAuthMiddleware(db *gorm.DB, jwtManager *security.JWTManager, audits *audit.Recorder) gin.HandlerFunc {
	auditRejection := func(c *gin.Context, adminID uint64, reason string) {
		if audits == nil {
			return
		}
		audits.MustRecord(audit.Entry{
			AdminID: adminID, Action: audit.ActionTokenRejected,
			Outcome: audit.OutcomeFailure, TargetType: "admin_endpoint",
			TargetID: c.FullPath(), IPAddress: c.ClientIP(), Reason: reason,
		})
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := jwtManager.Parse(token, security.TokenTypeAccess)
		if errJWT != nil {
			auditRejection(c, 0, "invalid access token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			auditRejection(c, claims.AdminID, "admin not found")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			auditRejection(c, admin.ID, "admin disabled")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set(handlers.ContextAdminIDKey, admin.ID)
		c.Set(handlers.ContextAdminUsernameKey, admin.Username)
		c.Next()
	}
}

// rateLimitMiddleware enforces the per-class, per-IP limit before the
// handler runs. Rejections on admin endpoints are audited.
func rateLimitMiddleware(limits *ratelimit.Manager, class string, audits *audit.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limits == nil {
			c.Next()
			return
		}
		key := ratelimit.Key(class, c.ClientIP())
		result, errAllow := limits.Allow(c.Request.Context(), key, ratelimit.LimitForClass(class))
		if errAllow != nil {
			c.Next()
			return
		}
		if !result.Allowed {
			if audits != nil {
				audits.MustRecord(audit.Entry{
					Action: audit.ActionRateLimited, Outcome: audit.OutcomeFailure,
					TargetType: "admin_endpoint", TargetID: c.FullPath(),
					IPAddress: c.ClientIP(), Reason: "rate limit exceeded for class " + class,
				})
			}
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

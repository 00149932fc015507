package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recordkeeper/api/internal/auth"
	"github.com/recordkeeper/api/internal/db"
	"github.com/recordkeeper/api/internal/middleware"
)

// loginRateLimit bounds login attempts per client IP. Separate from the
// blanket request timeout and JSON size guard, which apply everywhere.
const (
	loginRateLimitPerSecond = 1.0
	loginRateLimitBurst     = 5
)

// NewRouter builds the Gin engine and registers every route with its
// required middleware chain: request id, structured access log, security
// headers, gzip (excluding the CSV stream endpoint), blanket timeout
// (excluding the CSV stream endpoint), bearer auth where required, then the
// JSON size guard.
func (h *Handlers) NewRouter(signer *auth.Signer, apiKeyDB *db.ApiKeyDB) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.DisallowedHTTPMethods())
	r.Use(middleware.GzipWithExclusions(5, []string{"/record/filter-stream"}))
	r.Use(middleware.Timeout(middleware.DefaultTimeoutConfig()))

	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	loginLimiter := middleware.NewRateLimiter(loginRateLimitPerSecond, loginRateLimitBurst)
	r.POST("/login", loginLimiter.Middleware(), middleware.JSONSizeLimit(h.cfg.MaxJSONPayloadSize), h.Login)

	authed := r.Group("/")
	authed.Use(auth.Middleware(signer, apiKeyDB))
	authed.Use(middleware.JSONSizeLimit(h.cfg.MaxJSONPayloadSize))

	authed.POST("/user/token/validate", h.ValidateToken)

	authed.POST("/user", auth.RequireSuperuser(), h.CreateUser)
	authed.GET("/user", auth.RequireSuperuser(), h.ListUsers)
	authed.GET("/user/:id", h.GetUser)
	authed.PATCH("/user/:id", h.UpdateUser)
	authed.DELETE("/user/:id", h.DeleteUser)

	authed.POST("/user/:id/api-key", h.CreateApiKey)
	authed.PATCH("/user/:id/api-key", h.UpdateApiKey)
	authed.DELETE("/user/:id/api-key", h.DeleteApiKey)
	authed.GET("/user/api-key", h.ListApiKeys)

	authed.POST("/format", h.CreateFormat)
	authed.GET("/format", h.ListFormats)
	authed.GET("/format/:id", h.GetFormat)
	authed.DELETE("/format/:id", h.DeleteFormat)

	authed.POST("/record", h.CreateRecords)
	authed.POST("/record/filter", h.FilterRecords)
	authed.POST("/record/filter-stream", h.FilterRecordsStream)

	authed.GET("/entitlement", h.GetEntitlements)
	authed.POST("/entitlement", auth.RequireSuperuser(), h.SetEntitlement)
	authed.DELETE("/entitlement", auth.RequireSuperuser(), h.DeleteEntitlement)

	authed.GET("/upload_session", h.ListUploadSessions)
	authed.DELETE("/upload_session/:id", h.DeleteUploadSession)

	return r
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWithSecurityHeaders(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "test")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_AllHeadersPresent(t *testing.T) {
	w := runWithSecurityHeaders(t)

	required := []string{
		"Strict-Transport-Security",
		"X-Content-Type-Options",
		"X-Frame-Options",
		"X-XSS-Protection",
		"Content-Security-Policy",
		"Referrer-Policy",
		"Permissions-Policy",
		"Cache-Control",
	}
	for _, header := range required {
		assert.NotEmpty(t, w.Header().Get(header), "header %s should be present", header)
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	w := runWithSecurityHeaders(t)

	hsts := w.Header().Get("Strict-Transport-Security")
	require.NotEmpty(t, hsts)
	assert.Contains(t, hsts, "max-age=31536000")
	assert.Contains(t, hsts, "includeSubDomains")
}

func TestSecurityHeaders_XFrameOptionsDeny(t *testing.T) {
	w := runWithSecurityHeaders(t)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestSecurityHeaders_NoStoreCaching(t *testing.T) {
	w := runWithSecurityHeaders(t)
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
}

func TestSecurityHeaders_PermissionsPolicy(t *testing.T) {
	w := runWithSecurityHeaders(t)
	pp := w.Header().Get("Permissions-Policy")
	assert.Contains(t, pp, "geolocation=()")
	assert.Contains(t, pp, "camera=()")
}

func TestSecurityHeaders_HealthEndpointIsCacheable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Cache-Control"))
}

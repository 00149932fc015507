// Package middleware provides HTTP middleware for the record repository
// API.
//
// This file implements structured per-request logging via zerolog.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recordkeeper/api/internal/auth"
	"github.com/recordkeeper/api/internal/logger"
)

// StructuredLogger logs method/path/status/duration/request-id/user-id for
// every request through logger.HTTP(), at WARN for 4xx and ERROR for 5xx.
func StructuredLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		event := logger.HTTP().Info()
		if status >= 500 {
			event = logger.HTTP().Error()
		} else if status >= 400 {
			event = logger.HTTP().Warn()
		}

		event = event.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", duration)

		if query != "" {
			event = event.Str("query", query)
		}
		if p := auth.CurrentPrincipal(c); p != nil {
			event = event.Str("user_id", p.UserID)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("request")
	}
}

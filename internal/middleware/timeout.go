// Package middleware provides HTTP middleware for the record repository
// API.
//
// This file implements a blanket request timeout, excluding the CSV
// streaming endpoint, whose duration is bounded instead by the per-user
// stream cap and client disconnect, not a fixed deadline.
package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apierrors "github.com/recordkeeper/api/internal/errors"
)

// TimeoutConfig configures the blanket request timeout.
type TimeoutConfig struct {
	Timeout       time.Duration
	ExcludedPaths []string
}

// DefaultTimeoutConfig excludes the CSV streaming endpoint.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Timeout:       30 * time.Second,
		ExcludedPaths: []string{"/record/filter-stream"},
	}
}

// Timeout aborts a request with Timeout if it runs longer than config.Timeout.
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, excluded := range config.ExcludedPaths {
			if strings.HasPrefix(path, excluded) {
				c.Next()
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		finished := make(chan struct{})
		go func() {
			c.Next()
			close(finished)
		}()

		select {
		case <-finished:
			return
		case <-ctx.Done():
			apierrors.AbortWithError(c, apierrors.Timeout("request exceeded its time budget"))
			return
		}
	}
}

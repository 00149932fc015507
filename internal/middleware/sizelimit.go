package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/recordkeeper/api/internal/errors"
)

// JSONSizeLimit rejects requests whose body exceeds maxSize with
// PayloadTooLarge, and wraps the body in a LimitReader so a lying
// Content-Length can't be used to smuggle a larger payload past the check.
func JSONSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			apierrors.AbortWithError(c, apierrors.PayloadTooLarge("request body exceeds maximum allowed size"))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

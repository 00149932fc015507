// Package middleware provides HTTP middleware for the record repository
// API.
//
// This file rejects HTTP methods that have no business reaching a JSON
// API: TRACE and TRACK (response-splitting/XSS vectors) and CONNECT
// (proxy tunneling).
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

var disallowedMethods = map[string]bool{
	"TRACE":   true,
	"TRACK":   true,
	"CONNECT": true,
}

// DisallowedHTTPMethods blocks TRACE/TRACK/CONNECT before they reach any
// handler.
func DisallowedHTTPMethods() gin.HandlerFunc {
	return func(c *gin.Context) {
		if disallowedMethods[c.Request.Method] {
			c.JSON(http.StatusMethodNotAllowed, gin.H{
				"error":   "METHOD_NOT_ALLOWED",
				"message": "the HTTP method " + c.Request.Method + " is not permitted",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

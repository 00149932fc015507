// Package errors provides standardized error handling for the record
// repository API.
//
// This file implements Gin middleware that converts AppError values into
// consistent JSON responses and logs them through the structured logger.
package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recordkeeper/api/internal/logger"
)

// ErrorHandler handles the last error attached to the Gin context, maps it
// to a JSON response, and logs it. StorageError's Details (the raw
// driver/storage message) is logged but never echoed to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()

		appErr, ok := err.Err.(*AppError)
		if !ok {
			logger.HTTP().Error().Err(err.Err).Msg("unhandled error")
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "INTERNAL",
				Message: "an unexpected error occurred",
			})
			return
		}

		ev := logger.HTTP().Warn()
		if appErr.StatusCode >= 500 {
			ev = logger.HTTP().Error()
		}
		ev.Str("code", appErr.Code).Str("details", appErr.Details).Msg(appErr.Message)

		resp := appErr.ToResponse()
		if appErr.Code == ErrCodeStorageError {
			resp.Details = ""
		}
		c.JSON(appErr.StatusCode, resp)
	}
}

// Recovery recovers from panics in downstream handlers and returns a
// generic 500 rather than letting the process crash mid-request.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.HTTP().Error().Interface("panic", r).Msg("recovered from panic")
				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Error:   "INTERNAL",
					Message: "an unexpected error occurred",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// HandleError attaches err to the Gin context and writes the matching JSON
// response immediately.
func HandleError(c *gin.Context, err error) {
	appErr, ok := err.(*AppError)
	if !ok {
		appErr = New(ErrCodeStorageError, err.Error())
		appErr.StatusCode = http.StatusInternalServerError
	}
	c.Error(appErr)
	resp := appErr.ToResponse()
	if appErr.Code == ErrCodeStorageError {
		resp.Details = ""
	}
	c.JSON(appErr.StatusCode, resp)
}

// AbortWithError aborts the request with err's status and body.
func AbortWithError(c *gin.Context, err *AppError) {
	c.Error(err)
	resp := err.ToResponse()
	if err.Code == ErrCodeStorageError {
		resp.Details = ""
	}
	c.AbortWithStatusJSON(err.StatusCode, resp)
}

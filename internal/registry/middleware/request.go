// Package middleware holds the gin middleware chain of the registry API.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/songzhibin97/mailregistry/pkg/log"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// RequestID reuses the inbound request id or generates one, and stores it in
// the request context for the loggers
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}

		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(log.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// AccessLog writes one entry per request once the response is written
func AccessLog(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []log.Field{
			log.String(log.FieldMethod, c.Request.Method),
			log.String(log.FieldPath, path),
			log.String(log.FieldRoute, c.FullPath()),
			log.String(log.FieldClientIP, c.ClientIP()),
		}
		fields = append(fields, log.ResponseFields(c.Writer.Status(), time.Since(start))...)

		entry := logger.WithContext(c.Request.Context())
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			entry.Warn("request completed", fields...)
		default:
			entry.Info("request completed", fields...)
		}
	}
}

// Recovery turns a panic into a 500 envelope
func Recovery(logger log.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithContext(c.Request.Context()).Error("panic recovered",
			log.String(log.FieldPath, c.Request.URL.Path),
			log.Any("panic", recovered),
		)
		abort(c, http.StatusInternalServerError, "Erreur interne du serveur")
	})
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}

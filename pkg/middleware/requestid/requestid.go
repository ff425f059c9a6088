// Package requestid assigns every request a correlation id.
package requestid

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnhub/learnhub/pkg/observability/logger"
)

// RequestIDHeader is the HTTP header name for request ID.
const RequestIDHeader = "X-Request-ID"

// ContextKey is the gin context key holding the request id.
const ContextKey = "request_id"

const maxRequestIDLength = 128

// RequestID generates or preserves X-Request-ID, echoes it on the response
// and stores it on the request context for loggers and error envelopes.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := sanitize(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(ContextKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// GetRequestID extracts the request ID from a context.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	return logger.RequestIDFromContext(ctx)
}

// sanitize drops client ids that are oversized or carry control characters.
func sanitize(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > maxRequestIDLength {
		return ""
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return ""
		}
	}
	return id
}

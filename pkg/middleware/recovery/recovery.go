// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/controller"
	"github.com/learnhub/learnhub/pkg/observability/logger"
)

// Recovery catches panics, logs them with the stack trace and answers with
// the standard error envelope unless the response was already started.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log.WithContext(c.Request.Context()).Error("panic recovered",
				"request_id", logger.RequestIDFromContext(c.Request.Context()),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			controller.Error(c, controller.NewInternalError(fmt.Errorf("panic: %v", r)))
		}()

		c.Next()
	}
}

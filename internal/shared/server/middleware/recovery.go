package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/shared/server/respond"
	"vitaeforge/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. Nothing is written when
// the handler already started the response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			userID, _ := c.Get(userIDKey)
			cvID, _ := c.Get(CVIDKey)
			telemetry.Error("panic.recovered", map[string]any{
				"request_id": RequestIDFromContext(c),
				"user_id":    userID,
				"cv_id":      cvID,
				"route":      c.FullPath(),
				"method":     c.Request.Method,
				"panic":      rec,
				"stack":      string(debug.Stack()),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Unexpected server error", nil)
			c.Abort()
		}()
		c.Next()
	}
}

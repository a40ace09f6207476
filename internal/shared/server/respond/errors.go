// Package respond writes JSON bodies and the error envelope
// {"error":{"code","message","details"}} shared by every endpoint.
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/shared/telemetry"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error aborts the request with the envelope. Client errors are logged at
// warn and server errors at error level.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"route":      c.FullPath(),
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if cvID := c.GetString("cvId"); cvID != "" {
		fields["cv_id"] = cvID
	}
	if status >= http.StatusInternalServerError {
		fields["message"] = message
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.rejected", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

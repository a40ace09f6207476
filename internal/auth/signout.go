package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/shared/server/middleware"
	"vitaeforge/internal/shared/server/respond"
	"vitaeforge/internal/shared/telemetry"
)

// SessionCloser flushes and closes the editor sessions of a user.
type SessionCloser interface {
	CloseOwner(ctx context.Context, ownerID string)
}

// SignOutHandler revokes the caller's token.
type SignOutHandler struct {
	Revocations RevocationStore
	Sessions    SessionCloser
}

// RegisterRoutes attaches the sign-out route.
func (h *SignOutHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/signout", h.signOut)
}

func (h *SignOutHandler) signOut(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if h.Sessions != nil && userID != "" {
		h.Sessions.CloseOwner(c.Request.Context(), userID)
	}
	tokenID := middleware.TokenIDFromContext(c)
	if tokenID == "" {
		// Guests hold no token.
		respond.NoContent(c)
		return
	}
	if err := h.Revocations.Revoke(c.Request.Context(), tokenID, middleware.TokenExpiryFromContext(c)); err != nil {
		telemetry.Error("auth.revoke_failed", map[string]any{"user_id": userID, "error": err.Error()})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to sign out", nil)
		return
	}
	telemetry.Info("auth.signed_out", map[string]any{"user_id": userID})
	respond.NoContent(c)
}

package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/shared/auth"
	"vitaeforge/internal/shared/server/respond"
	"vitaeforge/internal/shared/telemetry"
)

const (
	userIDKey      = "userId"
	userEmailKey   = "userEmail"
	userNameKey    = "userName"
	userPictureKey = "userPicture"
	tokenIDKey     = "tokenId"
	tokenExpiryKey = "tokenExpiry"
	isGuestKey     = "isGuest"
)

var publicPrefixes = []string{
	"/api/v1/auth/google/",
	"/api/v1/auth/password/",
	"/api/v1/health",
	"/api/v1/legal",
	"/api/v1/metrics",
	"/api/v1/photos/",
}

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// RevocationChecker reports whether a token id was signed out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthConfig configures the Auth middleware.
type AuthConfig struct {
	Env      string
	Verifier TokenVerifier
	Revoked  RevocationChecker
}

// Auth validates JWTs, or guest headers in dev, and stores identity in context.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	guestsAllowed := cfg.Env == "dev" || cfg.Env == "local"

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		path := c.Request.URL.Path
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") || cfg.Verifier == nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
			claims, err := cfg.Verifier.Verify(token)
			if err != nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			if cfg.Revoked != nil && claims.ID != "" {
				revoked, err := cfg.Revoked.IsRevoked(c.Request.Context(), claims.ID)
				if err != nil {
					// Fail open when the revocation store is unavailable.
					telemetry.Warn("auth.revocation_check_failed", map[string]any{"error": err})
				}
				if revoked {
					respond.Error(c, http.StatusUnauthorized, "unauthorized", "session signed out", nil)
					return
				}
			}

			c.Set(userIDKey, claims.Subject)
			c.Set(tokenIDKey, claims.ID)
			if claims.ExpiresAt != nil {
				c.Set(tokenExpiryKey, claims.ExpiresAt.Time)
			}
			if claims.Email != "" {
				c.Set(userEmailKey, claims.Email)
			}
			if name := claims.DisplayName(); name != "" {
				c.Set(userNameKey, name)
			}
			if picture := claims.AvatarURL(); picture != "" {
				c.Set(userPictureKey, picture)
			}
			c.Set(isGuestKey, false)
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id"))
		if guestID == "" || !guestsAllowed {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}

		c.Set(userIDKey, "guest:"+guestID)
		c.Set(isGuestKey, true)
		c.Next()
	}
}

func stringFromContext(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string { return stringFromContext(c, userIDKey) }

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string { return stringFromContext(c, userEmailKey) }

// UserNameFromContext fetches the user name set by the auth middleware.
func UserNameFromContext(c *gin.Context) string { return stringFromContext(c, userNameKey) }

// UserPictureFromContext fetches the user picture set by the auth middleware.
func UserPictureFromContext(c *gin.Context) string { return stringFromContext(c, userPictureKey) }

// TokenIDFromContext fetches the jti of the bearer token, empty for guests.
func TokenIDFromContext(c *gin.Context) string { return stringFromContext(c, tokenIDKey) }

// TokenExpiryFromContext returns when the bearer token expires. Guests get the zero time.
func TokenExpiryFromContext(c *gin.Context) time.Time {
	if c == nil {
		return time.Time{}
	}
	val, _ := c.Get(tokenExpiryKey)
	if t, ok := val.(time.Time); ok {
		return t
	}
	return time.Time{}
}

// IsGuest reports whether the caller authenticated with a guest header.
func IsGuest(c *gin.Context) bool {
	return c.GetBool(isGuestKey)
}

package auth

import (
	"context"
	"time"

	sharedauth "vitaeforge/internal/shared/auth"
	"vitaeforge/internal/shared/telemetry"
	"vitaeforge/internal/users"
)

// UserInfo is the public profile returned with a token.
type UserInfo struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// TokenResponse is returned by every sign-in flow.
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        UserInfo  `json:"user"`
}

// Issuer mints API tokens and records the signed-in user.
type Issuer struct {
	Signer *sharedauth.Signer
	Users  *users.Service
}

// Issue signs a token for claims and records the login. A failure to record
// the login is logged, not returned.
func (i *Issuer) Issue(ctx context.Context, claims sharedauth.Claims, provider string) (TokenResponse, error) {
	tok, err := i.Signer.Issue(claims)
	if err != nil {
		return TokenResponse{}, err
	}
	info := UserInfo{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName(),
		PhotoURL:    claims.AvatarURL(),
	}
	if i.Users != nil {
		err := i.Users.RecordLogin(ctx, users.User{
			ID:          info.ID,
			Email:       info.Email,
			DisplayName: info.DisplayName,
			PhotoURL:    info.PhotoURL,
			Provider:    provider,
		})
		if err != nil {
			telemetry.Warn("auth.record_login_failed", map[string]any{"user_id": info.ID, "error": err.Error()})
		}
	}
	telemetry.Info("auth.token_issued", map[string]any{"user_id": info.ID, "provider": provider})
	return TokenResponse{AccessToken: tok.Value, TokenType: "Bearer", ExpiresAt: tok.ExpiresAt, User: info}, nil
}

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = 24 * time.Hour

var (
	errMissingSecret = errors.New("jwt secret not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// Claims represents the identity contained in a JWT. Tokens minted by the hosted
// auth service carry profile data in user_metadata instead of top-level fields.
type Claims struct {
	Email        string         `json:"email,omitempty"`
	Name         string         `json:"name,omitempty"`
	Picture      string         `json:"picture,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// DisplayName returns the best available human name for the subject.
func (c Claims) DisplayName() string {
	if strings.TrimSpace(c.Name) != "" {
		return c.Name
	}
	for _, key := range []string{"full_name", "name"} {
		if v, ok := c.UserMetadata[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// AvatarURL returns the picture claim or the metadata avatar.
func (c Claims) AvatarURL() string {
	if strings.TrimSpace(c.Picture) != "" {
		return c.Picture
	}
	if v, ok := c.UserMetadata["avatar_url"].(string); ok {
		return v
	}
	return ""
}

// Signer issues and verifies HS256 tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner builds a Signer. An empty secret is only accepted outside production.
func NewSigner(secret, env string, ttl time.Duration) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		if env == "production" {
			return nil, fmt.Errorf("%w: JWT_SECRET required in production", errMissingSecret)
		}
		secret = "dev-secret"
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Token is a signed token with the registered claims the caller needs.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// Sign signs the given claims, filling jti, iat and exp when absent.
func (s *Signer) Sign(claims Claims) (string, error) {
	tok, err := s.Issue(claims)
	return tok.Value, err
}

// Issue is Sign returning the token id and expiry alongside the token.
func (s *Signer) Issue(claims Claims) (Token, error) {
	if claims.Subject == "" {
		return Token{}, errors.New("sub is required")
	}
	now := s.now().UTC()
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify verifies a token and returns its claims.
func (s *Signer) Verify(raw string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

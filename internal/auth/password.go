package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	sharedauth "vitaeforge/internal/shared/auth"
	"vitaeforge/internal/shared/server/respond"
	"vitaeforge/internal/shared/telemetry"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailInUse         = errors.New("email already in use")
	ErrAuthUnavailable    = errors.New("auth provider unavailable")
)

// PasswordConfig points at the hosted auth REST API.
type PasswordConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PasswordService signs users in with email and password through the hosted
// auth API and exchanges its answer for an API token.
type PasswordService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	issuer     *Issuer
}

// NewPasswordService builds a PasswordService.
func NewPasswordService(cfg PasswordConfig, issuer *Issuer) *PasswordService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PasswordService{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		issuer:     issuer,
	}
}

// RegisterRoutes attaches the password routes.
func (s *PasswordService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/password/signin", s.signIn)
	rg.POST("/auth/password/signup", s.signUp)
}

type credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type remoteUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type remoteSession struct {
	AccessToken string     `json:"access_token"`
	User        remoteUser `json:"user"`
	// Sign-up without auto-confirm returns the bare user.
	ID    string `json:"id"`
	Email string `json:"email"`
}

type remoteError struct {
	Code      any    `json:"code"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"msg"`
	Error     string `json:"error"`
	ErrorDesc string `json:"error_description"`
}

// SignIn verifies credentials with the auth API.
func (s *PasswordService) SignIn(ctx context.Context, email, password string) (TokenResponse, error) {
	sess, err := s.call(ctx, "/token?grant_type=password", email, password)
	if err != nil {
		return TokenResponse{}, err
	}
	if sess.User.ID == "" {
		return TokenResponse{}, fmt.Errorf("%w: missing user in response", ErrAuthUnavailable)
	}
	return s.issue(ctx, sess.User)
}

// SignUp registers a new account. The second return is false when the account
// must be confirmed before it can sign in.
func (s *PasswordService) SignUp(ctx context.Context, email, password string) (TokenResponse, bool, error) {
	sess, err := s.call(ctx, "/signup", email, password)
	if err != nil {
		return TokenResponse{}, false, err
	}
	user := sess.User
	if user.ID == "" {
		user = remoteUser{ID: sess.ID, Email: sess.Email}
	}
	if user.ID == "" {
		return TokenResponse{}, false, fmt.Errorf("%w: missing user in response", ErrAuthUnavailable)
	}
	if sess.AccessToken == "" {
		return TokenResponse{User: UserInfo{ID: user.ID, Email: user.Email}}, false, nil
	}
	tok, err := s.issue(ctx, user)
	return tok, true, err
}

func (s *PasswordService) issue(ctx context.Context, user remoteUser) (TokenResponse, error) {
	return s.issuer.Issue(ctx, sharedauth.Claims{
		Email:            user.Email,
		UserMetadata:     user.UserMetadata,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
	}, "password")
}

func (s *PasswordService) call(ctx context.Context, path, email, password string) (remoteSession, error) {
	if s.baseURL == "" {
		return remoteSession{}, fmt.Errorf("%w: AUTH_BASE_URL not configured", ErrAuthUnavailable)
	}
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return remoteSession{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return remoteSession{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return remoteSession{}, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return remoteSession{}, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		return remoteSession{}, classifyRemoteError(resp.StatusCode, body)
	}
	var sess remoteSession
	if err := json.Unmarshal(body, &sess); err != nil {
		return remoteSession{}, fmt.Errorf("%w: decode response: %v", ErrAuthUnavailable, err)
	}
	return sess, nil
}

func classifyRemoteError(status int, body []byte) error {
	var re remoteError
	_ = json.Unmarshal(body, &re)
	text := strings.ToLower(strings.Join([]string{re.ErrorCode, re.Message, re.Error, re.ErrorDesc}, " "))
	switch {
	case strings.Contains(text, "already") && (strings.Contains(text, "registered") || strings.Contains(text, "exists")):
		return ErrEmailInUse
	case status == http.StatusBadRequest || status == http.StatusUnauthorized || strings.Contains(text, "invalid"):
		return ErrInvalidCredentials
	case status == http.StatusUnprocessableEntity:
		return ErrEmailInUse
	}
	return fmt.Errorf("%w: status %d", ErrAuthUnavailable, status)
}

func (s *PasswordService) signIn(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "valid email and a password of at least 6 characters are required", nil)
		return
	}
	tok, err := s.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	respond.OK(c, tok)
}

func (s *PasswordService) signUp(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "valid email and a password of at least 6 characters are required", nil)
		return
	}
	tok, signedIn, err := s.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	if !signedIn {
		respond.JSON(c, http.StatusAccepted, gin.H{"confirmationRequired": true, "user": tok.User})
		return
	}
	respond.Created(c, tok)
}

func writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", nil)
	case errors.Is(err, ErrEmailInUse):
		respond.Error(c, http.StatusConflict, "email_in_use", "email already in use", nil)
	case errors.Is(err, ErrAuthUnavailable):
		telemetry.Warn("auth.password.unavailable", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusBadGateway, "auth_unavailable", "auth provider unavailable", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "authentication failed", nil)
	}
}

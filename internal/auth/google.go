package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	sharedauth "vitaeforge/internal/shared/auth"
	"vitaeforge/internal/shared/server/respond"
	"vitaeforge/internal/shared/telemetry"
)

const (
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	stateTTL           = 5 * time.Minute
	defaultNext        = "/"
)

// GoogleConfig configures Google sign-in. Endpoint and UserInfoURL default
// to Google's.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	UIRedirect   string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
}

// GoogleService runs the authorization code flow and hands the issued API
// token to the UI in the redirect fragment.
type GoogleService struct {
	oauth       *oauth2.Config
	userInfoURL string
	uiRedirect  string
	states      StateStore
	issuer      *Issuer
}

// NewGoogleService builds a GoogleService. A nil store keeps state in memory.
func NewGoogleService(cfg GoogleConfig, states StateStore, issuer *Issuer) *GoogleService {
	if states == nil {
		states = NewMemoryStateStore()
	}
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	infoURL := cfg.UserInfoURL
	if infoURL == "" {
		infoURL = defaultUserInfoURL
	}
	return &GoogleService{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userInfoURL: infoURL,
		uiRedirect:  cfg.UIRedirect,
		states:      states,
		issuer:      issuer,
	}
}

func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", s.start)
	rg.GET("/auth/google/callback", s.callback)
}

func (s *GoogleService) configured() bool {
	return s.oauth.ClientID != "" && s.oauth.ClientSecret != "" && s.oauth.RedirectURL != "" && s.uiRedirect != ""
}

// start redirects to the consent screen. ?next= is the UI path to land on
// afterwards; anything but a local path is replaced by "/".
func (s *GoogleService) start(c *gin.Context) {
	if !s.configured() {
		respond.Error(c, http.StatusServiceUnavailable, "auth_not_configured", "Google auth not configured", nil)
		return
	}
	state := uuid.NewString()
	if err := s.states.Put(c.Request.Context(), state, localPath(c.Query("next")), stateTTL); err != nil {
		telemetry.Error("auth.google.state_store_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start sign-in", nil)
		return
	}
	c.Redirect(http.StatusFound, s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

func (s *GoogleService) callback(c *gin.Context) {
	ctx := c.Request.Context()
	if reason := c.Query("error"); reason != "" {
		// The user declined consent.
		s.redirectUI(c, url.Values{"error": {reason}})
		return
	}
	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}

	next, ok, err := s.states.Consume(ctx, state)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to verify state", nil)
		return
	}
	if !ok {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		telemetry.Warn("auth.google.exchange_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}
	profile, err := s.profile(ctx, token)
	if err != nil {
		telemetry.Warn("auth.google.userinfo_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to fetch user profile", nil)
		return
	}

	issued, err := s.issuer.Issue(ctx, sharedauth.Claims{
		Email:            profile.Email,
		Name:             profile.Name,
		Picture:          profile.Picture,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "google:" + profile.ID},
	}, "google")
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}
	s.redirectUI(c, url.Values{
		"token":     {issued.AccessToken},
		"expiresAt": {issued.ExpiresAt.UTC().Format(time.RFC3339)},
		"next":      {next},
	})
}

// redirectUI sends the browser to the UI callback with values in the
// fragment, which browsers never send to servers.
func (s *GoogleService) redirectUI(c *gin.Context, values url.Values) {
	target, err := withFragment(s.uiRedirect, values)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}
	c.Redirect(http.StatusFound, target)
}

type googleProfile struct {
	ID      string `json:"id"`
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (s *GoogleService) profile(ctx context.Context, token *oauth2.Token) (googleProfile, error) {
	resp, err := s.oauth.Client(ctx, token).Get(s.userInfoURL)
	if err != nil {
		return googleProfile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return googleProfile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var p googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return googleProfile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if p.ID == "" {
		p.ID = p.Sub
	}
	if p.ID == "" {
		return googleProfile{}, errors.New("userinfo without id")
	}
	return p, nil
}

func localPath(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return defaultNext
	}
	return next
}

func withFragment(rawURL string, values url.Values) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	return u.String() + "#" + values.Encode(), nil
}

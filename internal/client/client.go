// Package client is the HTTP client of the VitaeForge API used by cvctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vitaeforge/internal/cvs"
	"vitaeforge/internal/shared/server/respond"
)

const apiPrefix = "/api/v1"

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api status %d", e.Status)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.Status)
}

// Client calls the API. Token, when set, supplies the bearer token per request.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      func() string
}

// New returns a client for baseURL.
func New(baseURL string, token func() string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 90 * time.Second},
		Token:      token,
	}
}

// UserInfo is the user returned with a token.
type UserInfo struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// AuthToken is the answer of a sign-in.
type AuthToken struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        UserInfo  `json:"user"`
}

// Me is the current identity.
type Me struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
	IsGuest     bool   `json:"isGuest"`
}

// CV is a full document.
type CV struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Content   cvs.Content `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// CVItem is a list entry.
type CVItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SaveStatus is the autosave status of an editor session.
type SaveStatus struct {
	State       string     `json:"state"`
	Pending     bool       `json:"pending"`
	LastError   string     `json:"lastError,omitempty"`
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`
}

// EditorView is the state of an open editor session.
type EditorView struct {
	CVID    string           `json:"cvId"`
	Title   string           `json:"title"`
	Content cvs.Content      `json:"content"`
	Errors  []cvs.FieldError `json:"errors"`
	Status  SaveStatus       `json:"status"`
}

// RefineResult is the answer of an editor refine.
type RefineResult struct {
	Field string `json:"field"`
	Text  string `json:"text"`
	EditorView
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+apiPrefix+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != nil {
		if tok := c.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope respond.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
			apiErr.Details = envelope.Error.Details
		}
		return nil, apiErr
	}
	return resp, nil
}

// SignIn exchanges email and password for a token.
func (c *Client) SignIn(ctx context.Context, email, password string) (AuthToken, error) {
	var tok AuthToken
	err := c.do(ctx, http.MethodPost, "/auth/password/signin", map[string]string{"email": email, "password": password}, &tok)
	return tok, err
}

// SignUp registers an account. The token is empty when confirmation is required.
func (c *Client) SignUp(ctx context.Context, email, password string) (AuthToken, error) {
	var tok AuthToken
	err := c.do(ctx, http.MethodPost, "/auth/password/signup", map[string]string{"email": email, "password": password}, &tok)
	return tok, err
}

// SignOut revokes the current token.
func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/signout", nil, nil)
}

// Me returns the current identity.
func (c *Client) Me(ctx context.Context) (Me, error) {
	var me Me
	err := c.do(ctx, http.MethodGet, "/me", nil, &me)
	return me, err
}

// ListCVs lists the caller's CVs, newest first.
func (c *Client) ListCVs(ctx context.Context) ([]CVItem, error) {
	var items []CVItem
	err := c.do(ctx, http.MethodGet, "/cvs", nil, &items)
	return items, err
}

// CreateCV creates a CV. An empty title gets the default.
func (c *Client) CreateCV(ctx context.Context, title string) (CV, error) {
	var body any
	if title != "" {
		body = map[string]string{"title": title}
	}
	var cv CV
	err := c.do(ctx, http.MethodPost, "/cvs", body, &cv)
	return cv, err
}

// OpenLatest returns the newest CV, creating one when none exists.
func (c *Client) OpenLatest(ctx context.Context) (CV, error) {
	var cv CV
	err := c.do(ctx, http.MethodPost, "/cvs/open-latest", nil, &cv)
	return cv, err
}

// GetCV fetches one CV.
func (c *Client) GetCV(ctx context.Context, id string) (CV, error) {
	var cv CV
	err := c.do(ctx, http.MethodGet, "/cvs/"+url.PathEscape(id), nil, &cv)
	return cv, err
}

// RenameCV changes the title of a CV.
func (c *Client) RenameCV(ctx context.Context, id, title string) (CV, error) {
	var cv CV
	err := c.do(ctx, http.MethodPatch, "/cvs/"+url.PathEscape(id), map[string]string{"title": title}, &cv)
	return cv, err
}

// DuplicateCV copies a CV.
func (c *Client) DuplicateCV(ctx context.Context, id string) (CV, error) {
	var cv CV
	err := c.do(ctx, http.MethodPost, "/cvs/"+url.PathEscape(id)+"/duplicate", nil, &cv)
	return cv, err
}

// DeleteCV removes a CV.
func (c *Client) DeleteCV(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/cvs/"+url.PathEscape(id), nil, nil)
}

func editorPath(id string) string {
	return "/cvs/" + url.PathEscape(id) + "/editor"
}

// OpenEditor opens or joins the editor session of a CV.
func (c *Client) OpenEditor(ctx context.Context, id string) (EditorView, error) {
	var v EditorView
	err := c.do(ctx, http.MethodPost, editorPath(id), nil, &v)
	return v, err
}

// SetFields edits fields in the editor session.
func (c *Client) SetFields(ctx context.Context, id string, fields map[string]string) (EditorView, error) {
	var v EditorView
	err := c.do(ctx, http.MethodPatch, editorPath(id)+"/fields", map[string]any{"fields": fields}, &v)
	return v, err
}

// RefineField rewrites a free-text field with the AI assistant.
func (c *Client) RefineField(ctx context.Context, id, field string) (RefineResult, error) {
	var r RefineResult
	err := c.do(ctx, http.MethodPost, editorPath(id)+"/refine", map[string]string{"field": field}, &r)
	return r, err
}

// FlushEditor saves pending edits now.
func (c *Client) FlushEditor(ctx context.Context, id string) (EditorView, error) {
	var v EditorView
	err := c.do(ctx, http.MethodPost, editorPath(id)+"/flush", nil, &v)
	return v, err
}

// CloseEditor saves and closes the editor session.
func (c *Client) CloseEditor(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, editorPath(id), nil, nil)
}

// Preview returns the rendered HTML of a CV.
func (c *Client) Preview(ctx context.Context, id, color, font string, printMode bool) ([]byte, error) {
	q := url.Values{}
	if color != "" {
		q.Set("color", color)
	}
	if font != "" {
		q.Set("font", font)
	}
	if printMode {
		q.Set("print", strconv.FormatBool(true))
	}
	path := "/cvs/" + url.PathEscape(id) + "/preview"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Summary is the dashboard summary of the caller's CVs.
type Summary struct {
	Count      int     `json:"count"`
	LastEdited *CVItem `json:"lastEdited,omitempty"`
}

// Summary returns the CV count and the most recently edited CV.
func (c *Client) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := c.do(ctx, http.MethodGet, "/cvs/summary", nil, &s)
	return s, err
}

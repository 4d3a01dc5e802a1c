package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/model"
)

// TokenSource supplies the bearer token attached to authenticated
// requests. The session store implements it; tests supply fixed strings.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource returning itself. Used by tests and one-off
// calls made before a session store exists.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() string { return string(t) }

// Error is a non-2xx backend response decoded into its message. Transport
// failures are returned as-is, not wrapped into Error, so callers can tell
// a backend rejection from a network problem when they need to.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// Client is a thin client over the remote event-management REST API. All
// business logic lives behind these endpoints; the client only shapes
// requests and decodes responses.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// NewClient constructs a Client. baseURL must not end with a slash.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
	}
}

// LoginResult is the login endpoint response.
type LoginResult struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	Username     string     `json:"username"`
	Role         model.Role `json:"role"`
}

// Login exchanges credentials for tokens and identity fields.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body := map[string]string{"email": email, "password": password}

	var res LoginResult
	if err := c.postJSON(ctx, "/api/login/", body, &res, false); err != nil {
		return LoginResult{}, err
	}
	if res.AccessToken == "" || res.RefreshToken == "" || res.Username == "" {
		return LoginResult{}, fmt.Errorf("login response missing token fields")
	}
	return res, nil
}

// Register creates a new account. The backend registers everyone as a
// guest; validation messages ("Email already in use") come back verbatim
// inside the returned *Error.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	body := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	return c.postJSON(ctx, "/api/register/", body, nil, false)
}

// RefreshToken trades a refresh token for a fresh access token.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (string, error) {
	body := map[string]string{"refresh": refresh}

	var res struct {
		Access string `json:"access"`
	}
	if err := c.postJSON(ctx, "/api/token/refresh/", body, &res, false); err != nil {
		return "", err
	}
	if res.Access == "" {
		return "", fmt.Errorf("token refresh response missing access token")
	}
	return res.Access, nil
}

// RequestPasswordReset asks the backend to mail a reset link. Returns the
// backend's confirmation message.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	body := map[string]string{"email": email}

	var res struct {
		Message string `json:"message"`
	}
	if err := c.postJSON(ctx, "/api/password-reset/", body, &res, false); err != nil {
		return "", err
	}
	return res.Message, nil
}

// ConfirmPasswordReset sets a new password using the uid/token pair from
// the reset link.
func (c *Client) ConfirmPasswordReset(ctx context.Context, uid, token, newPassword string) error {
	body := map[string]string{"new_password": newPassword}
	path := fmt.Sprintf("/api/password-reset/%s/%s/", uid, token)
	return c.postJSON(ctx, path, body, nil, false)
}

// postJSON issues a JSON POST and optionally decodes the response into out.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any, authed bool) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload), authed)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// newRequest builds a request against the backend, attaching the bearer
// token when authed is set.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, authed bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if authed {
		tok := ""
		if c.tokens != nil {
			tok = c.tokens.Token()
		}
		if tok == "" {
			return nil, fmt.Errorf("no access token for authenticated request %s %s", method, path)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// do executes the request, maps non-2xx statuses to *Error, and decodes a
// JSON body into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// decodeError extracts a human-readable message from an error response.
// The backend is inconsistent about its error envelope: most endpoints use
// {"error": "..."} or {"message": "..."}, registration returns a
// field → [messages] validation map.
func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return apiErr
	}

	for _, key := range []string{"error", "message", "detail"} {
		if s, ok := raw[key].(string); ok && s != "" {
			apiErr.Message = s
			return apiErr
		}
	}

	// Validation map: take the first field message we can find.
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			if val != "" {
				apiErr.Message = val
				return apiErr
			}
		case []any:
			if len(val) > 0 {
				if s, ok := val[0].(string); ok && s != "" {
					apiErr.Message = s
					return apiErr
				}
			}
		}
	}

	return apiErr
}

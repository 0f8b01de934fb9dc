// Package authapi talks to the backend authentication endpoints:
// /auth/login, /auth/register, /auth/refresh and /auth/logout.
//
// Responses are accepted either flat ({"user":..,"accessToken":..}) or
// wrapped in a {"data": {...}} envelope; the backend has used both.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/certhub/internal/client/models"
	"github.com/dmitrijs2005/certhub/internal/common"
	"github.com/google/uuid"
)

const (
	loginPath    = "/auth/login"
	registerPath = "/auth/register"
	refreshPath  = "/auth/refresh"
	logoutPath   = "/auth/logout"

	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// StatusError is a non-2xx response from an auth endpoint.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("auth api: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Login exchanges credentials for a session. Non-2xx responses yield
// common.ErrCredentialsRejected wrapping a *StatusError.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.AuthResult, error) {
	res, err := c.postAuth(ctx, loginPath, creds)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return res, nil
}

// Register creates an account and returns its session. An empty role is
// sent as models.DefaultRole.
func (c *Client) Register(ctx context.Context, p models.Profile) (*models.AuthResult, error) {
	if p.Role == "" {
		p.Role = models.DefaultRole
	}
	res, err := c.postAuth(ctx, registerPath, p)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return res, nil
}

func (c *Client) postAuth(ctx context.Context, path string, payload any) (*models.AuthResult, error) {
	status, body, err := c.post(ctx, path, payload, "")
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, fmt.Errorf("%w: %w", common.ErrCredentialsRejected, newStatusError(status, body))
	}

	res, err := decodeResult(body)
	if err != nil {
		return nil, err
	}
	if res.User == nil || res.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing user or access token", common.ErrInvalidAuthResponse)
	}
	return res, nil
}

// Refresh mints a new access token. The result may carry a rotated refresh
// token and an updated user; both are optional. Non-2xx responses yield
// common.ErrRefreshRejected.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.AuthResult, error) {
	if refreshToken == "" {
		return nil, common.ErrRefreshUnavailable
	}

	status, body, err := c.post(ctx, refreshPath, map[string]string{"refreshToken": refreshToken}, "")
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if !isSuccess(status) {
		return nil, fmt.Errorf("refresh: %w: %w", common.ErrRefreshRejected, newStatusError(status, body))
	}

	res, err := decodeResult(body)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if res.AccessToken == "" {
		return nil, fmt.Errorf("refresh: %w: missing access token", common.ErrInvalidAuthResponse)
	}
	return res, nil
}

// Logout asks the server to invalidate the session behind accessToken.
// Callers treat it as best effort.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	status, body, err := c.post(ctx, logoutPath, nil, accessToken)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if !isSuccess(status) {
		return fmt.Errorf("logout: %w", newStatusError(status, body))
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, bearer string) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", common.ContentTypeJSON)
	}
	req.Header.Set("Accept", common.ContentTypeJSON)
	req.Header.Set(common.RequestIDHeaderName, uuid.NewString())
	if bearer != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", common.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %w", common.ErrNetworkFailure, err)
	}
	return resp.StatusCode, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// decodeResult accepts both the enveloped and the flat shape.
func decodeResult(body []byte) (*models.AuthResult, error) {
	var envelope struct {
		Data *models.AuthResult `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidAuthResponse, err)
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}

	var flat models.AuthResult
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidAuthResponse, err)
	}
	return &flat, nil
}

func newStatusError(status int, body []byte) *StatusError {
	return &StatusError{Status: status, Message: ErrorMessage(body)}
}

// ErrorMessage extracts a human message from an error body: the "message"
// or "error" JSON field when present, otherwise the trimmed text.
func ErrorMessage(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
		return ""
	}
	return strings.TrimSpace(string(body))
}

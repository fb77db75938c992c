package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
)

const refreshPath = "/auth/refresh"

// Client is the one HTTP client for all outbound API calls. It attaches the
// current access token as a bearer credential and, on a 401, performs exactly
// one silent refresh before replaying the original request once.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      *Store
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying transport. The client needs a cookie
// jar for the refresh credential; one is installed if missing.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New builds a Client for the API at baseURL backed by store.
func New(baseURL string, store *Store, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("client: store is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("client: cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

// Store returns the session store backing this client.
func (c *Client) Store() *Store {
	return c.store
}

// Do issues one API call. body is JSON-encoded when non-nil; a 2xx response
// is decoded into out when out is non-nil. All failures are *APIError.
//
// A 401 triggers one silent refresh and one replay. A failed refresh clears
// the session as an observable side effect and surfaces ErrUnauthorized.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &APIError{Kind: ErrValidation, Message: "unencodable request body", cause: err}
		}
		payload = encoded
	}

	resp, err := c.send(ctx, method, path, payload, path != refreshPath)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && path != refreshPath {
		drain(resp)
		if refreshErr := c.refresh(ctx); refreshErr != nil {
			c.store.Clear()
			return &APIError{Kind: ErrUnauthorized, Status: http.StatusUnauthorized, Message: "session expired", cause: refreshErr}
		}
		resp, err = c.send(ctx, method, path, payload, true)
		if err != nil {
			return err
		}
	}

	return c.finish(resp, out)
}

// refresh exchanges the httpOnly cookie for a new access token and stores
// it. The request never carries the bearer token.
func (c *Client) refresh(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, refreshPath, nil, false)
	if err != nil {
		return err
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.finish(resp, &body); err != nil {
		return err
	}
	if body.AccessToken == "" {
		return &APIError{Kind: ErrUnauthorized, Message: "refresh returned no token"}
	}
	c.store.SetAccessToken(body.AccessToken)
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, withBearer bool) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &APIError{Kind: ErrValidation, Message: "invalid request", cause: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withBearer {
		if token := c.store.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: ErrNetworkFailure, Message: "request failed", cause: err}
	}
	return resp, nil
}

// finish consumes the response: decodes the body on success, classifies the
// failure otherwise.
func (c *Client) finish(resp *http.Response, out any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &APIError{Kind: ErrNetworkFailure, Message: "reading response", cause: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return &APIError{Kind: ErrServerError, Status: resp.StatusCode, Message: "undecodable response body", cause: err}
		}
		return nil
	}

	var serverErr struct {
		Message    string `json:"message"`
		RetryAfter int64  `json:"retry_after"`
	}
	_ = json.Unmarshal(data, &serverErr)

	apiErr := &APIError{Status: resp.StatusCode, Message: serverErr.Message}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.Kind = ErrRateLimited
		apiErr.RetryAfter = retryAfterOf(serverErr.RetryAfter, resp.Header.Get("Retry-After"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		apiErr.Kind = ErrUnauthorized
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		apiErr.Kind = ErrValidation
	default:
		apiErr.Kind = ErrServerError
	}
	return apiErr
}

func retryAfterOf(bodySeconds int64, header string) time.Duration {
	if bodySeconds > 0 {
		return time.Duration(bodySeconds) * time.Second
	}
	if seconds, err := strconv.ParseInt(header, 10, 64); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}

// Login authenticates with credentials, installs the verified session, and
// returns the profile.
func (c *Client) Login(ctx context.Context, email, password string) (kogu.UserProfile, error) {
	var resp struct {
		AccessToken string           `json:"access_token"`
		User        kogu.UserProfile `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.Do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return kogu.UserProfile{}, err
	}
	c.store.SetSession(resp.User, resp.AccessToken)
	return resp.User, nil
}

// Logout ends the server session and clears the local one. The local session
// is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.Do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.store.Clear()
	return err
}

// Me fetches the authoritative current-user profile.
func (c *Client) Me(ctx context.Context) (kogu.UserProfile, error) {
	var profile kogu.UserProfile
	if err := c.Do(ctx, http.MethodGet, "/users/me", nil, &profile); err != nil {
		return kogu.UserProfile{}, err
	}
	return profile, nil
}

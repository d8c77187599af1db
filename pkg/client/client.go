// Package client is a Go SDK for the socialsvc login API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dhawalhost/sociallogin/internal/login"
	"github.com/dhawalhost/sociallogin/internal/social"
)

// ErrNotFound is returned for unknown or expired login ids.
var ErrNotFound = errors.New("login not found")

// Client talks to a socialsvc instance.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	RequestID  string
}

// Config holds configuration for the client.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api/v1.
	BaseURL string
	Timeout time.Duration
}

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Message)
}

// New creates a new Client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Providers reports which providers the service has configured.
func (c *Client) Providers(ctx context.Context) (social.InitializationResult, error) {
	var out social.InitializationResult
	err := c.doRequest(ctx, http.MethodGet, "/social/providers", nil, &out)
	return out, err
}

// StartLogin begins a login. The returned attempt carries the authorize URL
// to open, or the result when the provider answered straight away.
func (c *Client) StartLogin(ctx context.Context, provider social.Provider) (login.Attempt, error) {
	var out login.Attempt
	err := c.doRequest(ctx, http.MethodPost, "/social/"+url.PathEscape(string(provider))+"/login", nil, &out)
	return out, err
}

// GetLogin fetches a tracked login. A completed login can be read once.
func (c *Client) GetLogin(ctx context.Context, id string) (login.Attempt, error) {
	var out login.Attempt
	err := c.doRequest(ctx, http.MethodGet, "/social/logins/"+url.PathEscape(id), nil, &out)
	return out, err
}

// WaitForResult polls until the login completes or ctx is done.
func (c *Client) WaitForResult(ctx context.Context, id string, interval time.Duration) (social.LoginResult, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		attempt, err := c.GetLogin(ctx, id)
		if err != nil {
			return social.LoginResult{}, err
		}
		if attempt.Status == login.StatusCompleted && attempt.Result != nil {
			return *attempt.Result, nil
		}
		select {
		case <-ctx.Done():
			return social.LoginResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.RequestID != "" {
		req.Header.Set("X-Request-ID", c.RequestID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/social/logins/") {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		respBody, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(respBody, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(respBody))
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	return nil
}

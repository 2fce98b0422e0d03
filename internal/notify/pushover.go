// Package notify sends push notifications through the Pushover API. The
// persona tools use it to alert the owner when a visitor leaves contact
// details or asks a question the agent could not answer.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// pushoverEndpoint is the Pushover message API URL.
const pushoverEndpoint = "https://api.pushover.net/1/messages.json"

// Notifier is the interface the tools depend on, so tests can fake the
// notification channel.
type Notifier interface {
	// Push delivers a single plain-text message.
	Push(ctx context.Context, message string) error
}

// Client is a Pushover Notifier. Safe for concurrent use.
type Client struct {
	// token is the Pushover application token.
	token string
	// user is the Pushover user (or group) key.
	user string
	// endpoint is the message API URL; overridable in tests.
	endpoint string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// Config holds the settings for constructing a Client.
type Config struct {
	// Token is the Pushover application token.
	Token string
	// User is the Pushover user key.
	User string
	// Endpoint overrides the default API URL (tests only).
	Endpoint string
}

// New constructs a Client from the given config.
func New(cfg *Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("notify: token is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("notify: user is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = pushoverEndpoint
	}
	return &Client{
		token:    cfg.Token,
		user:     cfg.User,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// NewFromEnv constructs a Client from PUSHOVER_TOKEN and PUSHOVER_USER.
// When either is unset it returns (nil, false) — notifications are an
// optional feature and the caller decides how to degrade.
func NewFromEnv() (*Client, bool) {
	token := os.Getenv("PUSHOVER_TOKEN")
	user := os.Getenv("PUSHOVER_USER")
	if token == "" || user == "" {
		return nil, false
	}
	c, err := New(&Config{Token: token, User: user})
	if err != nil {
		return nil, false
	}
	return c, true
}

// pushoverResponse is the JSON body returned by the message API.
// status is 1 on success; errors carries human-readable failure reasons.
type pushoverResponse struct {
	Status int      `json:"status"`
	Errors []string `json:"errors,omitempty"`
}

// Push posts a form-encoded message to the Pushover API. A non-2xx response
// or a status other than 1 in the body is an error.
func (c *Client) Push(ctx context.Context, message string) error {
	form := url.Values{
		"token":   {c.token},
		"user":    {c.user},
		"message": {message},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result pushoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("notify: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || result.Status != 1 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if len(result.Errors) > 0 {
			msg = strings.Join(result.Errors, "; ")
		}
		return fmt.Errorf("notify: pushover rejected message: %s", msg)
	}
	return nil
}

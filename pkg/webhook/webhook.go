// Package webhook posts OTA release notifications to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EventType represents the type of event that can trigger webhooks.
type EventType string

const (
	EventBuilt        EventType = "ota.built"
	EventPublished    EventType = "ota.published"
	EventVerifyFailed EventType = "ota.verify_failed"
)

// Event is the JSON body posted to webhooks.
type Event struct {
	Event     EventType `json:"event"`
	Timestamp string    `json:"timestamp"`
	Product   string    `json:"product,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Manifest  string    `json:"manifest,omitempty"`
	Bucket    string    `json:"bucket,omitempty"`
	Keys      []string  `json:"keys,omitempty"`
	Reasons   []string  `json:"reasons,omitempty"`
}

// HookConfig is one endpoint.
type HookConfig struct {
	URL    string      `yaml:"url" json:"url"`
	Secret string      `yaml:"secret,omitempty" json:"-"`
	Events []EventType `yaml:"events" json:"events"`
}

// Config configures release notifications.
type Config struct {
	Hooks      []HookConfig  `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig returns the default webhook configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		RetryDelay: 2 * time.Second,
		Timeout:    10 * time.Second,
	}
}

// Validate checks every hook has a URL and at least one event.
func (c Config) Validate() error {
	for i, h := range c.Hooks {
		if h.URL == "" {
			return fmt.Errorf("webhooks.hooks[%d]: url is required", i)
		}
		if len(h.Events) == 0 {
			return fmt.Errorf("webhooks.hooks[%d]: events must not be empty", i)
		}
	}
	if c.MaxRetries < 0 {
		return errors.New("webhooks.max_retries must not be negative")
	}
	return nil
}

// Client sends webhook notifications. sgc exits right after a command, so
// sends are synchronous.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a new webhook client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Client{config: cfg, http: &http.Client{Timeout: timeout}}
}

// Enabled reports whether any hook is configured.
func (c *Client) Enabled() bool {
	return len(c.config.Hooks) > 0
}

// Send posts event to every hook subscribed to it and returns the joined
// errors of the hooks that could not be reached.
func (c *Client) Send(ctx context.Context, event Event) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var errs []error
	for _, hook := range c.config.Hooks {
		if !matchesEvent(hook, event.Event) {
			continue
		}
		if err := c.sendSync(ctx, hook, event.Event, payload); err != nil {
			errs = append(errs, fmt.Errorf("webhook %s: %w", hook.URL, err))
		}
	}
	return errors.Join(errs...)
}

// sendSync posts payload to hook with retries.
func (c *Client) sendSync(ctx context.Context, hook HookConfig, event EventType, payload []byte) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		req, err := createRequest(ctx, hook, event, payload)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
	}
	return lastErr
}

func createRequest(ctx context.Context, hook HookConfig, event EventType, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "sgc-webhook/1.0")
	req.Header.Set("X-SGC-Event", string(event))

	if hook.Secret != "" {
		req.Header.Set("X-SGC-Signature", Sign(payload, hook.Secret))
	}
	return req, nil
}

// Sign returns the X-SGC-Signature value for payload: "sha256=" and the
// hex HMAC-SHA256 of the raw body.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func matchesEvent(hook HookConfig, event EventType) bool {
	for _, e := range hook.Events {
		if e == event || e == "*" {
			return true
		}
	}
	return false
}

// Package gateway delivers assistant replies to the messaging platform
// gateway over HTTP.
package gateway

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

	"oneinbox/internal/domain"
	"oneinbox/internal/integrations/paramstore"
)

// deliverRequest is the body posted for every outbound message.
type deliverRequest struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	ReplyTo   string `json:"reply_to,omitempty"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// tokenPayload is the expected JSON shape stored in SSM for the gateway token.
type tokenPayload struct {
	Token string `json:"token"`
}

// HTTPStatusError captures non-2xx gateway responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gateway: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client posts messages to the platform gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     paramstore.Getter
	tokenParam string
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a Client. The bearer token is read from tokenParam on
// first use and cached until the process exits; failed reads are retried.
func NewClient(ps paramstore.Getter, baseURL, tokenParam string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("gateway: paramstore getter must not be nil")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway: base URL must not be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("gateway: base URL: %w", err)
	}
	tokenParam = strings.TrimSpace(tokenParam)
	if tokenParam == "" {
		return nil, errors.New("gateway: token parameter must not be empty")
	}
	tokens, err := paramstore.NewCache(ps)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tokens:     tokens,
		tokenParam: tokenParam,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func deliverURL(baseURL string, platform domain.Platform) string {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/platforms/" + url.PathEscape(string(platform)) + "/messages"
}

// Deliver posts msg to the gateway endpoint of its platform.
func (c *Client) Deliver(ctx context.Context, msg domain.Message) error {
	if msg.Platform == "" {
		return errors.New("gateway: message platform must not be empty")
	}

	token, err := c.resolveToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(deliverRequest{
		ID:        msg.ID,
		ThreadID:  msg.ThreadID,
		ReplyTo:   msg.ReplyTo,
		Sender:    msg.User,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("gateway: marshal request: %w", err)
	}

	target := deliverURL(c.baseURL, msg.Platform)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", msg.ID)

	if err := c.do(req, target); err != nil {
		return fmt.Errorf("gateway: deliver %s: %w", msg.ID, err)
	}
	return nil
}

func (c *Client) resolveToken(ctx context.Context) (string, error) {
	var tp tokenPayload
	if err := paramstore.GetJSON(ctx, c.tokens, c.tokenParam, &tp); err != nil {
		return "", fmt.Errorf("gateway: fetch token: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("gateway: token is empty")
	}
	return tp.Token, nil
}

func (c *Client) do(req *http.Request, target string) error {
	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        target,
			Body:       string(buf),
		}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

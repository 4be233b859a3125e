// Package github is a minimal REST transport for GitHub-style APIs. It maps
// responses onto quota metadata and failures onto *fault.Fault so the access
// layer can classify them.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/reqtrack/internal/core/domain"
	"github.com/vietddude/reqtrack/internal/infra/remote/fault"
)

const (
	DefaultBaseURL   = "https://api.github.com"
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "reqtrack"

	headerLimit      = "X-RateLimit-Limit"
	headerRemaining  = "X-RateLimit-Remaining"
	headerReset      = "X-RateLimit-Reset"
	headerRetryAfter = "Retry-After"
)

// Config holds transport configuration. The token is supplied by the caller.
type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// Client issues authenticated REST calls.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client

	// Clock is used to resolve HTTP-date Retry-After values.
	Clock func() time.Time
}

// NewClient creates a new REST client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Clock: time.Now,
	}
}

// Response is a successful API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Quota      domain.Quota
}

// RateQuota returns the quota headers of the response.
func (r *Response) RateQuota() domain.Quota {
	return r.Quota
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type apiError struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

// Do sends a request. body, when non-nil, is sent as JSON. Non-2xx responses
// are returned as *fault.Fault.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &fault.Fault{Err: fmt.Errorf("%s %s: %w", method, path, err)}
	}
	defer resp.Body.Close()

	quota := c.parseQuota(resp.Header)
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &fault.Fault{StatusCode: resp.StatusCode, Quota: quota, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &fault.Fault{StatusCode: resp.StatusCode, Message: msg, Quota: quota}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Quota:      quota,
	}, nil
}

// Invoker returns a function suitable as a remote operation body.
func (c *Client) Invoker(method, path string, body any) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return c.Do(ctx, method, path, body)
	}
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) parseQuota(h http.Header) domain.Quota {
	var q domain.Quota
	q.Limit, _ = strconv.Atoi(h.Get(headerLimit))
	if v := h.Get(headerRemaining); v != "" {
		q.Remaining, _ = strconv.Atoi(v)
	} else {
		q.Remaining = q.Limit
	}
	q.Reset, _ = strconv.ParseInt(h.Get(headerReset), 10, 64)
	q.RetryAfter = c.retryAfter(h.Get(headerRetryAfter))
	return q
}

func (c *Client) retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(c.Clock()); d > 0 {
			return d
		}
	}
	return 0
}

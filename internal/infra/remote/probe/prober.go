package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Endpoint is a URL probed for reachability.
type Endpoint struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// DefaultEndpoints are probed when none are configured.
var DefaultEndpoints = []Endpoint{
	{Name: "api", URL: "https://api.github.com"},
	{Name: "web", URL: "https://github.com"},
}

// Prober checks a single endpoint. A nil error means reachable.
type Prober interface {
	Probe(ctx context.Context, ep Endpoint) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, ep Endpoint) error

func (f ProberFunc) Probe(ctx context.Context, ep Endpoint) error {
	return f(ctx, ep)
}

// HTTPProber probes with a HEAD request. Any HTTP response counts as
// reachable; only transport failures are reported.
type HTTPProber struct {
	httpClient *http.Client
	userAgent  string
}

// NewHTTPProber creates a prober with the given per-request timeout.
func NewHTTPProber(timeout time.Duration, userAgent string) *HTTPProber {
	return &HTTPProber{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
			// Redirects still prove reachability.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: userAgent,
	}
}

func (p *HTTPProber) Probe(ctx context.Context, ep Endpoint) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, ep.URL, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", ep.Name, err)
	}
	resp.Body.Close()
	return nil
}

// Package remote provides the HTTP client for the opportunity search endpoint.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/oppfinder/opps/internal/search"
	"github.com/oppfinder/opps/internal/version"
)

const (
	// SearchPath is the endpoint path, relative to the base URL.
	SearchPath = "/api/opportunities"

	// maxBodyBytes caps how much of a response is read.
	maxBodyBytes = 8 << 20
)

// Gate admits requests and learns from their outcomes.
// status is 0 when no response was received.
type Gate interface {
	Acquire(ctx context.Context) error
	Release(status int, retryAfter time.Duration, err error)
}

// RequestInfo describes one HTTP request.
type RequestInfo struct {
	Method string
	URL    string
}

// RequestResult describes how an HTTP request ended.
type RequestResult struct {
	StatusCode int
	Duration   time.Duration
	Err        error
}

// RequestHooks observes individual HTTP requests.
type RequestHooks interface {
	OnRequestStart(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult)
}

// Client calls the search endpoint. It implements search.Searcher.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
	gate       Gate
	hooks      RequestHooks
}

var _ search.Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithGate routes every request through g.
func WithGate(g Gate) Option {
	return func(c *Client) { c.gate = g }
}

// WithHooks installs request observers.
func WithHooks(h RequestHooks) Option {
	return func(c *Client) { c.hooks = h }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the endpoint at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", baseURL)
	}
	u.RawQuery = ""
	u.Fragment = ""

	c := &Client{
		baseURL:   u,
		userAgent: version.UserAgent(),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(&http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			}),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the endpoint base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// SearchURL returns the request URL for f.
func (c *Client) SearchURL(f search.FilterState, pageSize int) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + SearchPath
	u.RawPath = ""
	u.RawQuery = string(search.Encode(f)) + "&pageSize=" + strconv.Itoa(pageSize)
	return u.String()
}

// Search fetches one page of results. Every failure is a *search.FetchError.
func (c *Client) Search(ctx context.Context, f search.FilterState, pageSize int) (search.ResultPage, error) {
	if c.gate != nil {
		if err := c.gate.Acquire(ctx); err != nil {
			return search.ResultPage{}, search.TransportError(err)
		}
	}

	status, retryAfter, page, err := c.do(ctx, c.SearchURL(f, pageSize))

	if c.gate != nil {
		c.gate.Release(status, retryAfter, err)
	}
	if err != nil {
		return search.ResultPage{}, err
	}
	return page, nil
}

func (c *Client) do(ctx context.Context, rawURL string) (status int, retryAfter time.Duration, page search.ResultPage, err error) {
	info := RequestInfo{Method: http.MethodGet, URL: rawURL}
	if c.hooks != nil {
		ctx = c.hooks.OnRequestStart(ctx, info)
	}
	start := time.Now()
	defer func() {
		if c.hooks != nil {
			c.hooks.OnRequestEnd(ctx, info, RequestResult{StatusCode: status, Duration: time.Since(start), Err: err})
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, 0, page, search.TransportError(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, page, transportError(ctx, err)
	}
	defer resp.Body.Close()

	status = resp.StatusCode
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if status < 200 || status > 299 {
		retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return status, retryAfter, page, search.RemoteError(status, errorMessage(status, body))
	}
	if readErr != nil {
		return status, 0, page, transportError(ctx, readErr)
	}

	page, err = decodePage(body)
	return status, 0, page, err
}

// decodePage parses and validates a success body.
func decodePage(body []byte) (search.ResultPage, error) {
	var page search.ResultPage
	if len(body) == 0 {
		return page, search.DecodeError(errors.New("empty body"))
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return page, search.DecodeError(err)
	}
	if err := page.Validate(); err != nil {
		return page, search.DecodeError(err)
	}
	return page.Normalized(), nil
}

// transportError prefers the context's error so deadlines read as
// timeouts rather than as wrapped url.Errors.
func transportError(ctx context.Context, err error) *search.FetchError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return &search.FetchError{Kind: search.KindTransport, Message: "request timed out", Err: ctxErr}
		}
		return search.TransportError(ctxErr)
	}
	return search.TransportError(err)
}

// errorMessage extracts {"error": ...} or {"message": ...} from a failure body.
func errorMessage(status int, body []byte) string {
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Error != "" {
			return apiErr.Error
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	switch status {
	case http.StatusTooManyRequests:
		return "rate limited by search endpoint (429)"
	case http.StatusNotFound:
		return "search endpoint not found (404), check base_url"
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Sprintf("gateway error (%d)", status)
	}
	return fmt.Sprintf("request failed (HTTP %d)", status)
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return max(time.Duration(seconds)*time.Second, 0)
	}
	if t, err := http.ParseTime(header); err == nil {
		return max(t.Sub(now), 0)
	}
	return 0
}

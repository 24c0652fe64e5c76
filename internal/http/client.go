// Package http is the HTTP transport used to reach YouTube's watch pages and
// caption endpoints: explicit retry policy, per-host rate limiting, a cookie
// jar for the consent interstitial, and typed errors for non-2xx responses.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"ytscribe/internal/retry"
)

// Client wraps an HTTP client with retry logic and rate limit handling.
type Client struct {
	base        *http.Client
	config      *Config
	rateLimiter *RateLimiter
	breaker     *Breaker
	logger      zerolog.Logger
}

// Config holds HTTP client configuration including retry and rate limit settings.
type Config struct {
	// Timeout for individual HTTP requests
	Timeout time.Duration

	// Retry is applied to every request; use retry.NoRetry() for a single attempt.
	Retry retry.Config

	// UserAgent for HTTP requests
	UserAgent string

	// AcceptLanguage is sent with every request so watch pages render in a
	// predictable locale.
	AcceptLanguage string

	RateLimiter RateLimiterConfig

	// Breaker stops sending requests to a host after repeated failures.
	Breaker BreakerConfig
}

// DefaultConfig returns sensible defaults for HTTP client configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:        30 * time.Second,
		Retry:          retry.DefaultConfig(),
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) ytscribe/1.0",
		AcceptLanguage: "en-US,en;q=0.9",
		RateLimiter:    DefaultRateLimiterConfig(),
		Breaker:        DefaultBreakerConfig(),
	}
}

// Option customises a Client.
type Option func(*Client)

// WithLogger sets the logger used for retry and backoff messages.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base.Transport = rt }
}

// New creates a new HTTP client with the given configuration.
func New(cfg *Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// cookiejar.New only fails on a bad PublicSuffixList, and we pass none.
	jar, _ := cookiejar.New(nil)

	c := &Client{
		base: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		config:      cfg,
		rateLimiter: NewRateLimiter(cfg.RateLimiter),
		breaker:     NewBreaker(cfg.Breaker),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response represents an HTTP response with status code and body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get performs a GET request with retry logic.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil)
}

// Do performs an HTTP request with retry logic and rate limit handling.
// 429 and 503 responses become *RateLimitError and are retried after the
// host's backoff; other 5xx responses are retried; remaining non-2xx
// responses become a permanent *HTTPError.
func (c *Client) Do(ctx context.Context, method, urlStr string, headers map[string]string) (*Response, error) {
	var out *Response
	attempt := 0
	host := hostOf(urlStr)

	err := retry.Do(ctx, c.config.Retry, isRetryableHTTPError, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			c.logger.Debug().Str("url", urlStr).Int("attempt", attempt).Msg("retrying request")
		}

		if err := c.breaker.Allow(host); err != nil {
			return retry.Permanent(err)
		}

		resp, err := c.attempt(ctx, method, urlStr, headers)
		if err != nil {
			if countsAgainstHost(err) {
				c.breaker.Failure(host)
				if c.breaker.State(host) == BreakerOpen {
					c.logger.Warn().Str("host", host).Msg("circuit opened")
				}
			}
			return err
		}
		c.breaker.Success(host)
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// attempt sends one request after waiting out the host's rate limit.
func (c *Client) attempt(ctx context.Context, method, urlStr string, headers map[string]string) (*Response, error) {
	if err := c.rateLimiter.WaitForBackoff(ctx, urlStr); err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx, urlStr); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	if c.config.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", c.config.AcceptLanguage)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		retryAfter := parseRetryAfter(resp.Header)
		backoff := c.rateLimiter.RecordRateLimitError(urlStr, retryAfter)
		c.logger.Warn().Str("url", urlStr).Int("status", resp.StatusCode).Dur("backoff", backoff).Msg("rate limited")
		return nil, &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: urlStr, Body: body}
	}

	c.rateLimiter.RecordSuccess(urlStr)
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// isRetryableHTTPError determines if an HTTP error is retryable.
func isRetryableHTTPError(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		return !rl.Captcha
	}

	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode >= 500
	}

	return true
}

// parseRetryAfter extracts the Retry-After header value, in seconds or as an
// HTTP date. Returns 0 if absent or unparseable.
func parseRetryAfter(header http.Header) time.Duration {
	retryAfter := header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.base.CloseIdleConnections()
	return nil
}

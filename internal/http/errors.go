package http

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError indicates the server rate limited the request.
// It includes the status code and optional Retry-After duration.
type RateLimitError struct {
	// StatusCode is the HTTP status code (429 or 503)
	StatusCode int
	// RetryAfter indicates how long to wait before retrying
	RetryAfter time.Duration
	// Captcha is set when the body carried a recaptcha challenge instead of content
	Captcha bool
}

// Error returns a string representation of the rate limit error.
func (e *RateLimitError) Error() string {
	if e.Captcha {
		return "rate limited: captcha challenge served"
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d): retry after %v", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// HTTPError indicates a non-2xx response that is not a rate limit.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       []byte
}

// Error returns a string representation of the HTTP error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d for %s", e.StatusCode, e.URL)
}

// IsNotFound reports whether err is an HTTPError with status 404 or 410.
func IsNotFound(err error) bool {
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	return he.StatusCode == 404 || he.StatusCode == 410
}

// IsRateLimited reports whether err carries a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

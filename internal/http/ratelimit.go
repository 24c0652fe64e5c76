package http

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per host with a token bucket and tracks
// backoff after the server pushes back with 429/503.
type RateLimiter struct {
	limiters     map[string]*rate.Limiter
	backoffState map[string]*BackoffState
	mu           sync.RWMutex
	config       RateLimiterConfig
}

// BackoffState tracks rate limit backoff for a host.
type BackoffState struct {
	CurrentBackoff    time.Duration
	LastError         time.Time
	ConsecutiveErrors int
}

// RateLimiterConfig defines rate limiting behavior.
type RateLimiterConfig struct {
	// RequestsPerSecond applies to every host; 0 disables throttling.
	RequestsPerSecond float64
	// InitialBackoff is the pause after the first 429/503 from a host.
	InitialBackoff time.Duration
	// MaxBackoff caps the doubling backoff.
	MaxBackoff time.Duration
	// Cooldown is how long a host must stay quiet before its backoff is forgotten.
	Cooldown time.Duration
}

// DefaultRateLimiterConfig returns defaults suited to YouTube's watch pages.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 2.0,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        60 * time.Second,
		Cooldown:          5 * time.Minute,
	}
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	def := DefaultRateLimiterConfig()
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &RateLimiter{
		limiters:     make(map[string]*rate.Limiter),
		backoffState: make(map[string]*BackoffState),
		config:       cfg,
	}
}

// Wait blocks until the token bucket for the URL's host allows a request.
func (rl *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if rl == nil {
		return nil
	}
	limiter := rl.limiter(hostOf(urlStr))
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

func (rl *RateLimiter) limiter(host string) *rate.Limiter {
	if rl.config.RequestsPerSecond <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), 1)
	rl.limiters[host] = l
	return l
}

// RecordRateLimitError records a 429/503 for the URL's host and returns the
// backoff to observe before the next request: 1x, 2x, 4x ... the initial
// backoff, capped, or the server's Retry-After when that is longer.
func (rl *RateLimiter) RecordRateLimitError(urlStr string, retryAfter time.Duration) time.Duration {
	if rl == nil {
		return retryAfter
	}
	host := hostOf(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.backoffState[host]
	if !ok {
		state = &BackoffState{CurrentBackoff: rl.config.InitialBackoff}
		rl.backoffState[host] = state
	} else {
		state.CurrentBackoff *= 2
		if state.CurrentBackoff > rl.config.MaxBackoff {
			state.CurrentBackoff = rl.config.MaxBackoff
		}
	}
	state.LastError = time.Now()
	state.ConsecutiveErrors++

	if retryAfter > state.CurrentBackoff {
		state.CurrentBackoff = retryAfter
	}
	return state.CurrentBackoff
}

// RecordSuccess forgets the host's backoff once it has cooled down, and
// otherwise halves it.
func (rl *RateLimiter) RecordSuccess(urlStr string) {
	if rl == nil {
		return
	}
	host := hostOf(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.backoffState[host]
	if !ok {
		return
	}
	if time.Since(state.LastError) > rl.config.Cooldown || state.ConsecutiveErrors <= 1 {
		delete(rl.backoffState, host)
		return
	}
	state.ConsecutiveErrors--
	state.CurrentBackoff /= 2
	if state.CurrentBackoff < rl.config.InitialBackoff {
		state.CurrentBackoff = rl.config.InitialBackoff
	}
}

// GetBackoffState returns a copy of the host's backoff state, or nil.
func (rl *RateLimiter) GetBackoffState(urlStr string) *BackoffState {
	if rl == nil {
		return nil
	}
	host := hostOf(urlStr)

	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if state, ok := rl.backoffState[host]; ok {
		cp := *state
		return &cp
	}
	return nil
}

// WaitForBackoff waits for the host's current backoff period to expire.
// Returns immediately if not in backoff state.
func (rl *RateLimiter) WaitForBackoff(ctx context.Context, urlStr string) error {
	state := rl.GetBackoffState(urlStr)
	if state == nil {
		return nil
	}

	remaining := state.CurrentBackoff - time.Since(state.LastError)
	if remaining <= 0 {
		return nil
	}

	select {
	case <-time.After(remaining):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// hostOf extracts the host without port, or "unknown".
func hostOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}

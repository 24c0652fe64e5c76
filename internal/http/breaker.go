package http

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// BreakerState is the state of one host's circuit.
type BreakerState int

const (
	// BreakerClosed lets requests through.
	BreakerClosed BreakerState = iota
	// BreakerOpen fails requests without sending them.
	BreakerOpen
	// BreakerHalfOpen lets a single trial request through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is in the chain of every *CircuitOpenError.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitOpenError is returned instead of sending a request to a host that
// kept failing.
type CircuitOpenError struct {
	Host  string
	Until time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s: %v until %s", e.Host, ErrCircuitOpen, e.Until.Format(time.TimeOnly))
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// BreakerConfig configures the per-host circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failed attempts that opens
	// a host's circuit. Zero disables the breaker.
	FailureThreshold int
	// Cooldown is how long an open circuit rejects requests before a trial request.
	Cooldown time.Duration
}

// DefaultBreakerConfig opens after 8 consecutive failures for two minutes.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 8, Cooldown: 2 * time.Minute}
}

type circuit struct {
	state    BreakerState
	failures int
	openedAt time.Time
	inTrial  bool
}

// Breaker tracks consecutive failures per host. A nil *Breaker allows
// everything.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	circuits map[string]*circuit
}

// NewBreaker returns a Breaker, or nil when cfg disables it.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		return nil
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &Breaker{cfg: cfg, now: time.Now, circuits: make(map[string]*circuit)}
}

// Allow returns a *CircuitOpenError when host's circuit is open. Once the
// cooldown has passed one caller is let through as a trial request.
func (b *Breaker) Allow(host string) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(host)
	switch c.state {
	case BreakerOpen:
		until := c.openedAt.Add(b.cfg.Cooldown)
		if b.now().Before(until) {
			return &CircuitOpenError{Host: host, Until: until}
		}
		c.state = BreakerHalfOpen
		c.inTrial = true
		return nil
	case BreakerHalfOpen:
		if c.inTrial {
			return &CircuitOpenError{Host: host, Until: b.now().Add(b.cfg.Cooldown)}
		}
		c.inTrial = true
	}
	return nil
}

// Success closes host's circuit.
func (b *Breaker) Success(host string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(host)
	c.state = BreakerClosed
	c.failures = 0
	c.inTrial = false
}

// Failure counts a failed attempt against host. A failed trial request reopens the
// circuit at once.
func (b *Breaker) Failure(host string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(host)
	c.failures++
	c.inTrial = false
	if c.state == BreakerHalfOpen || c.failures >= b.cfg.FailureThreshold {
		c.state = BreakerOpen
		c.openedAt = b.now()
	}
}

// State returns host's current state.
func (b *Breaker) State(host string) BreakerState {
	if b == nil {
		return BreakerClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[host]
	if !ok {
		return BreakerClosed
	}
	if c.state == BreakerOpen && !b.now().Before(c.openedAt.Add(b.cfg.Cooldown)) {
		return BreakerHalfOpen
	}
	return c.state
}

func (b *Breaker) circuit(host string) *circuit {
	c, ok := b.circuits[host]
	if !ok {
		c = &circuit{}
		b.circuits[host] = c
	}
	return c
}

// countsAgainstHost reports whether err says something about the host's
// health: rate limiting, 5xx and network failures do; 4xx answers and a
// canceled context do not.
func countsAgainstHost(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode >= 500
	}
	var open *CircuitOpenError
	if errors.As(err, &open) {
		return false
	}
	return isRetryableHTTPError(err)
}

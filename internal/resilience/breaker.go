// Package resilience provides retry and circuit-breaking for calls to the
// external company sources.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the cooldown has elapsed.
	CircuitOpen
	// CircuitHalfOpen lets a single probe through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected by an open circuit.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls a CircuitBreaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Default: 5.
	FailureThreshold int

	// Cooldown is how long an open circuit rejects calls. Default: 60s.
	Cooldown time.Duration

	// OnStateChange is called on every transition.
	OnStateChange func(from, to CircuitState)
}

// CircuitBreaker stops hammering a source that keeps failing. After
// FailureThreshold consecutive failures the circuit opens for Cooldown, then
// a single probe decides whether it closes again.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu          sync.Mutex
	state       CircuitState
	failures    int
	openedAt    time.Time
	probeActive bool

	now func() time.Time
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// ExecuteVal runs fn unless the circuit is open. Context cancellation is not
// counted as a failure.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		cb.release()
		return val, err
	}
	cb.record(err)
	return val, err
}

// Wait blocks until the breaker would let a call through or ctx is done.
func (cb *CircuitBreaker) Wait(ctx context.Context) error {
	return Sleep(ctx, cb.Remaining())
}

// Remaining returns how long an open circuit keeps rejecting calls.
func (cb *CircuitBreaker) Remaining() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != CircuitOpen {
		return 0
	}
	left := cb.cfg.Cooldown - cb.now().Sub(cb.openedAt)
	if left < 0 {
		return 0
	}
	return left
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.Cooldown {
		return CircuitHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			return ErrCircuitOpen
		}
		cb.transition(CircuitHalfOpen)
		cb.probeActive = true
		return nil
	case CircuitHalfOpen:
		if cb.probeActive {
			return ErrCircuitOpen
		}
		cb.probeActive = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probeActive = false
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probeActive = false

	if err == nil {
		cb.failures = 0
		if cb.state != CircuitClosed {
			cb.transition(CircuitClosed)
		}
		return
	}

	cb.failures++
	if cb.state == CircuitHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		cb.openedAt = cb.now()
		cb.transition(CircuitOpen)
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}

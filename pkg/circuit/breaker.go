// Package circuit implements a circuit breaker guarding the storage and
// broker clients. A run of failures opens the circuit and sheds calls
// until a timed probe succeeds again.
package circuit

import (
	"context"
	"sync"
	"time"

	"github.com/seedprobe/seedprobe/pkg/errors"
)

// State is the breaker position.
type State int

const (
	// StateClosed passes calls through.
	StateClosed State = iota
	// StateOpen sheds calls.
	StateOpen
	// StateHalfOpen lets probes through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes when the breaker trips and recovers.
type Config struct {
	// MaxFailures opens the circuit once this many failures accumulate
	// within one reset window.
	MaxFailures int
	// SuccessRequired closes the circuit after this many half-open
	// successes.
	SuccessRequired int
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// ResetTimeout clears the failure count of a healthy closed circuit.
	ResetTimeout time.Duration
}

// DefaultConfig trips after five failures and probes after thirty seconds.
func DefaultConfig() *Config {
	return &Config{
		MaxFailures:     5,
		SuccessRequired: 3,
		Timeout:         30 * time.Second,
		ResetTimeout:    60 * time.Second,
	}
}

// Breaker tracks call outcomes and sheds load while open.
type Breaker struct {
	cfg *Config

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	windowStart time.Time
}

// New creates a closed breaker.
func New(cfg *Config) *Breaker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Breaker{
		cfg:         cfg,
		state:       StateClosed,
		windowStart: time.Now(),
	}
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	_, err := ExecuteWithResult(ctx, b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// ExecuteWithResult runs fn unless the circuit is open, recording the
// outcome either way.
func ExecuteWithResult[T any](_ context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T

	if !b.allow() {
		return zero, errors.New(errors.ErrorTypeInternal, "circuit_breaker",
			"circuit breaker is open").
			WithContext("state", b.State().String())
	}

	res, err := fn()
	b.record(err)
	return res, err
}

// allow reports whether a call may proceed, advancing timed state
// transitions as a side effect.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	switch b.state {
	case StateClosed:
		if now.Sub(b.windowStart) > b.cfg.ResetTimeout {
			b.failures = 0
			b.windowStart = now
		}
		return true

	case StateOpen:
		if now.Sub(b.lastFailure) > b.cfg.Timeout {
			b.state = StateHalfOpen
			b.successes = 0
			return true
		}
		return false

	default: // StateHalfOpen
		return true
	}
}

// record books one call outcome and moves the state machine.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = time.Now()

		// Any failure while probing reopens immediately.
		if b.state == StateHalfOpen || (b.state == StateClosed && b.failures >= b.cfg.MaxFailures) {
			b.state = StateOpen
			b.successes = 0
		}
		return
	}

	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.cfg.SuccessRequired {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
			b.windowStart = time.Now()
		}
	}
}

// State returns the current breaker position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

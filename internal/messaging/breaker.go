package messaging

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed - normal operation, calls pass through
	CircuitClosed CircuitState = iota
	// CircuitOpen - calls fail immediately
	CircuitOpen
	// CircuitHalfOpen - probing whether the broker has recovered
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var ErrCircuitOpen = errors.New("messaging: circuit is open")

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening
	SuccessThreshold int           // Successes in half-open to close
	Timeout          time.Duration // Time to wait before trying half-open
	CallTimeout      time.Duration // Deadline for a single call
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		CallTimeout:      5 * time.Second,
	}
}

// CircuitBreaker stops calling a failing dependency for a while.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failures        int
	successes       int
	lastStateChange time.Time
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		config:          config,
		now:             time.Now,
		state:           CircuitClosed,
		lastStateChange: time.Now(),
	}
}

// State returns the current state.
func (c *CircuitBreaker) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Execute runs fn with CallTimeout if the circuit allows it.
func (c *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !c.allowRequest() {
		return ErrCircuitOpen
	}
	if c.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CallTimeout)
		defer cancel()
	}
	err := fn(ctx)
	c.recordResult(err)
	return err
}

func (c *CircuitBreaker) allowRequest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if c.now().Sub(c.lastStateChange) >= c.config.Timeout {
			c.setState(CircuitHalfOpen)
			return true
		}
	}
	return false
}

func (c *CircuitBreaker) recordResult(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.failures = 0
		c.successes++
		if c.state == CircuitHalfOpen && c.successes >= c.config.SuccessThreshold {
			c.setState(CircuitClosed)
		}
		return
	}
	c.failures++
	if c.state == CircuitHalfOpen || c.failures >= c.config.FailureThreshold {
		c.setState(CircuitOpen)
	}
}

func (c *CircuitBreaker) setState(state CircuitState) {
	if c.state == state {
		return
	}
	c.state = state
	c.lastStateChange = c.now()
	c.failures = 0
	c.successes = 0
}

// BreakerPublisher guards a Publisher with a circuit breaker.
type BreakerPublisher struct {
	Publisher
	breaker *CircuitBreaker
}

func NewBreakerPublisher(p Publisher, config CircuitBreakerConfig) *BreakerPublisher {
	return &BreakerPublisher{Publisher: p, breaker: NewCircuitBreaker(config)}
}

func (p *BreakerPublisher) Publish(ctx context.Context, ev DomainEvent) error {
	return p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.Publisher.Publish(ctx, ev)
	})
}

func (p *BreakerPublisher) State() CircuitState {
	return p.breaker.State()
}

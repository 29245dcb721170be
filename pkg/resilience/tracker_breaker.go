// Package resilience wraps outbound calls in circuit breakers.
package resilience

import (
	"errors"
	"time"

	"tracker_server/pkg/logger"
	"tracker_server/pkg/metrics"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while a breaker rejects calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerConfig tunes a breaker. Zero values take the defaults below.
type BreakerConfig struct {
	Name                string
	MaxHalfOpenRequests uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	MinRequests         uint32
	FailureRatio        float64
}

// DefaultBreakerConfig trips after more than 5 consecutive failures or a 60%
// failure ratio over at least 10 requests.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxHalfOpenRequests: 3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.6,
	}
}

// Breaker is a gobreaker.CircuitBreaker that lets callers mark some errors as
// not counting against the remote service.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig(cfg.Name)
	if cfg.MaxHalfOpenRequests == 0 {
		cfg.MaxHalfOpenRequests = def.MaxHalfOpenRequests
	}
	if cfg.Interval == 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = def.ConsecutiveFailures
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}
	if cfg.FailureRatio == 0 {
		cfg.FailureRatio = def.FailureRatio
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > cfg.ConsecutiveFailures ||
				(counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio)
		},
		IsSuccessful: func(err error) bool {
			var nce *nonCircuitError
			return err == nil || errors.As(err, &nce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
			metrics.CircuitBreakerTransitions.WithLabelValues(name, to.String()).Inc()
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn under the breaker. Errors for which ignore returns true are
// passed back to the caller without tripping the breaker.
func (b *Breaker) Execute(fn func() error, ignore func(error) bool) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if ignore != nil && ignore(err) {
				return nil, &nonCircuitError{err: err}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}
	return err
}

// State returns the breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// IsOpen reports whether calls currently fail fast.
func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

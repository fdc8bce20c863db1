// Package resilience builds the circuit breakers guarding outbound calls.
package resilience

import (
	"context"
	"errors"
	"time"

	"tapcard_server/pkg/logger"

	"github.com/sony/gobreaker"
)

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	Name string
	// MaxRequests is how many trial calls are let through while half-open.
	MaxRequests uint32
	// Interval resets the closed-state counts; zero never resets.
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker once exceeded.
	ConsecutiveFailures uint32
	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32

	// Benign errors count as successes (e.g. not found).
	Benign []error
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// NewBreaker returns a gobreaker configured from cfg that logs state changes.
func NewBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.readyToTrip,
		IsSuccessful: func(err error) bool {
			return cfg.isSuccessful(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	})
}

func (cfg BreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
		return true
	}
	if cfg.FailureRatio > 0 && counts.Requests >= cfg.MinRequests && counts.Requests > 0 {
		return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
	}
	return false
}

// isSuccessful treats caller cancellation and benign errors as successes.
func (cfg BreakerConfig) isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	for _, benign := range cfg.Benign {
		if errors.Is(err, benign) {
			return true
		}
	}
	return false
}

// IsOpen reports whether err is a breaker rejection rather than a call failure.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

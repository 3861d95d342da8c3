package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"medical-rag-platform/internal/logger"
	"medical-rag-platform/internal/telemetry"
)

// ErrUnavailable wraps calls rejected because the provider's circuit is open.
var ErrUnavailable = errors.New("model provider temporarily unavailable")

// guard applies client-side rate limiting and a circuit breaker to every
// provider call.
type guard struct {
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

func newGuard(name string, rpm int, metrics *telemetry.Metrics) *guard {
	if rpm <= 0 {
		rpm = 60
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// caller cancellations say nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	// RPM limit with some buffer
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return &guard{
		breaker:     breaker,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(rpm)*0.9/60.0), burst),
	}
}

func (g *guard) do(ctx context.Context, fn func() (string, error)) (string, error) {
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", err
	}
	return result.(string), nil
}

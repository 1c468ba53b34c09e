package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// ResilientEvaluator wraps an Evaluator with resilience patterns from
// fortify. Evaluations hit an external sandbox (Docker daemon), so
// transient failures are expected: the wrapper bounds concurrency, retries
// infrastructure errors, and sheds load when the sandbox is down.
type ResilientEvaluator struct {
	inner          Evaluator
	circuitBreaker circuitbreaker.CircuitBreaker[*Result]
	retrier        retry.Retry[*Result]
	bulkhead       bulkhead.Bulkhead[*Result]
	logger         *slog.Logger
}

// ResilientConfig holds tuning for the resilient wrapper.
type ResilientConfig struct {
	MaxConcurrent int
	MaxAttempts   int
	Logger        *slog.Logger
}

// DefaultResilientConfig returns sensible defaults for sandbox evaluation.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxConcurrent: 4,
		MaxAttempts:   2,
	}
}

// NewResilientEvaluator wraps an evaluator with fortify primitives.
func NewResilientEvaluator(inner Evaluator, cfg ResilientConfig) *ResilientEvaluator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}

	re := &ResilientEvaluator{inner: inner, logger: cfg.Logger}

	re.circuitBreaker = circuitbreaker.New[*Result](circuitbreaker.Config{
		MaxRequests: 2,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			if re.logger != nil {
				re.logger.Warn("sandbox circuit breaker state change",
					"from", from.String(), "to", to.String())
			}
		},
	})

	re.retrier = retry.New[*Result](retry.Config{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		// Graded failures come back as Result.Fail, not errors, so any
		// error here is infrastructure and worth one more try.
		IsRetryable: func(err error) bool { return err != nil },
	})

	re.bulkhead = bulkhead.New[*Result](bulkhead.Config{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxQueue:      cfg.MaxConcurrent * 2,
		QueueTimeout:  20 * time.Second,
	})

	return re
}

func (re *ResilientEvaluator) Run(ctx context.Context, job Job) (*Result, error) {
	operation := func(ctx context.Context) (*Result, error) {
		return re.bulkhead.Execute(ctx, func(ctx context.Context) (*Result, error) {
			return re.inner.Run(ctx, job)
		})
	}

	return re.circuitBreaker.Execute(ctx, func(ctx context.Context) (*Result, error) {
		return re.retrier.Do(ctx, operation)
	})
}

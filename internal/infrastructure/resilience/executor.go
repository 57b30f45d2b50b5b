package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Executor runs store and broker calls under retry with one circuit breaker per operation name.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Execute runs fn, retrying errors the classifier marks retryable.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	_, err := Call(ctx, e, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, classifier)
	return err
}

// Call is Execute for operations that produce a value. A nil executor runs fn once.
func Call[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error), classifier ErrorClassifier) (T, error) {
	var zero T
	if fn == nil {
		return zero, fmt.Errorf("resilience: operation callback is nil")
	}
	if e == nil {
		return fn(ctx)
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = Chain(ContextErrors)
	}

	attempt := func() (T, error) {
		return retry(ctx, e.cfg, op, fn, classifier)
	}
	if !e.cfg.BreakerEnabled {
		return attempt()
	}

	out, err := e.breaker(op, classifier).Execute(func() (any, error) {
		return attempt()
	})
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}

func retry[T any](ctx context.Context, cfg Config, op string, fn func(context.Context) (T, error), classifier ErrorClassifier) (T, error) {
	var zero T
	wait := newBackoff(cfg)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !classifier(err).Retryable || attempt >= cfg.RetryMaxAttempts {
			return zero, err
		}

		delay := wait.Next()
		slog.Warn("retry_attempt",
			"operation", op,
			"attempt", attempt,
			"max_attempts", cfg.RetryMaxAttempts,
			"backoff_ms", delay.Milliseconds(),
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

func (e *Executor) breaker(op string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[op]; ok {
		return cb
	}
	cfg := e.cfg
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        op,
		MaxRequests: cfg.BreakerHalfOpenMaxCalls,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[op] = cb
	return cb
}

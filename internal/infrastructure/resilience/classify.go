package resilience

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification decides whether an error is retried and whether it counts against the breaker.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

var (
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	Permanent = ErrorClassification{Retryable: false, RecordFailure: true}
	Ignored   = ErrorClassification{Retryable: false, RecordFailure: false}
)

// Chain returns the first classification produced by a matching classifier. Each classifier
// reports ok=false to defer to the next one; Permanent applies when none matches.
func Chain(matchers ...func(error) (ErrorClassification, bool)) ErrorClassifier {
	return func(err error) ErrorClassification {
		for _, match := range matchers {
			if class, ok := match(err); ok {
				return class
			}
		}
		return Permanent
	}
}

// ContextErrors leaves cancellation and deadlines out of retries and breaker accounting.
func ContextErrors(err error) (ErrorClassification, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Ignored, true
	}
	return ErrorClassification{}, false
}

// OpenCircuit retries rejections from a tripped breaker once it half-opens.
func OpenCircuit(err error) (ErrorClassification, bool) {
	if IsCircuitOpen(err) {
		return Transient, true
	}
	return ErrorClassification{}, false
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

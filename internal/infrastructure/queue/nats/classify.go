package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/resilience"
)

var classifyNATSError = resilience.Chain(
	resilience.ContextErrors,
	resilience.OpenCircuit,
	transientNATSError,
)

func transientNATSError(err error) (resilience.ErrorClassification, bool) {
	if errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) {
		return resilience.Transient, true
	}
	return resilience.ErrorClassification{}, false
}

func wrapTemporaryIfNeeded(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return err
}

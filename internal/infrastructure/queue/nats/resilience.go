package nats

import (
	"context"
	"errors"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// transientNATSErrors are connectivity failures worth retrying; the
// client reconnects in the background so a later attempt can succeed.
var transientNATSErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Caller gave up; neither retrying nor penalizing the broker
		// makes sense.
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	for _, transient := range transientNATSErrors {
		if errors.Is(err, transient) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// wrapTemporaryIfNeeded marks retryable broker failures as temporary
// so the HTTP layer maps them to 503 instead of a generic 500.
func wrapTemporaryIfNeeded(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	}
	return err
}

// Package infra implements the event sources and the baseline scanner.
package infra

import (
	"context"

	"go.uber.org/zap"

	"github.com/dbrox/privacyd/internal/domain"
)

// deliver sends an event on the bounded channel, retrying until it is
// accepted. Events are never dropped: the ref-count scheme has no way to
// recover from a lost open or close short of the next full rebuild, so a
// full queue stalls the producer instead. Returns false only when the
// context is cancelled with the send still pending.
func deliver(ctx context.Context, events chan<- domain.Event, ev domain.Event, logger *zap.Logger) bool {
	select {
	case events <- ev:
		return true
	default:
	}

	logger.Debug("event queue full, waiting to deliver",
		zap.Stringer("kind", ev.Kind))

	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

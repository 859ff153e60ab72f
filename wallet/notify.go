/*
notify.go - Notification hook

PURPOSE:
  Every lifecycle transition notifies the affected parties. Delivery
  mechanics (email, push) live outside this repository; the engine only
  invokes the hook. Notification is fire-and-forget: a failing or slow
  sink must never roll back or fail the ledger operation that emitted it.

RESILIENCE:
  BreakerNotifier wraps any Notifier with a circuit breaker so a flapping
  delivery backend stops being called at all until it recovers, instead of
  adding latency to every transfer.

SEE ALSO:
  - service.go / recurring.go: emit events via notify(), which swallows
    and logs delivery errors
*/
package wallet

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// =============================================================================
// EVENTS
// =============================================================================

type EventKind string

const (
	EventCreated            EventKind = "transaction_created"
	EventReceived           EventKind = "transaction_received"
	EventConfirmed          EventKind = "transaction_confirmed"
	EventAwaitingAcceptance EventKind = "transaction_awaiting_acceptance"
	EventCompleted          EventKind = "transaction_completed"
	EventDeclined           EventKind = "transaction_declined"
	EventCancelled          EventKind = "transaction_cancelled"
	EventDenied             EventKind = "transaction_denied"
	EventFailed             EventKind = "transaction_failed"
	EventRecurringExecuted  EventKind = "recurring_executed"
	EventRecurringFailed    EventKind = "recurring_failed"
)

// Notifier delivers a lifecycle event to one account. Implementations may
// block briefly; callers never treat an error as fatal.
type Notifier interface {
	Notify(ctx context.Context, account AccountID, kind EventKind, payload map[string]string) error
}

// =============================================================================
// LOG NOTIFIER - Default sink
// =============================================================================

// LogNotifier writes events to the structured log. Used when no delivery
// backend is wired, and as the inner notifier in tests.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, account AccountID, kind EventKind, payload map[string]string) error {
	event := n.Logger.Info().Str("account", string(account)).Str("event", string(kind))
	for k, v := range payload {
		event = event.Str(k, v)
	}
	event.Msg("notification")
	return nil
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, AccountID, EventKind, map[string]string) error {
	return nil
}

// =============================================================================
// BREAKER NOTIFIER - Circuit breaker around a delivery backend
// =============================================================================

// BreakerNotifier stops calling a failing delivery backend until it
// recovers. Dropped events are logged, not retried; the ledger state they
// describe is still queryable.
type BreakerNotifier struct {
	inner  Notifier
	cb     *gobreaker.CircuitBreaker
	logger zerolog.Logger
}

func NewBreakerNotifier(inner Notifier, logger zerolog.Logger) *BreakerNotifier {
	bn := &BreakerNotifier{inner: inner, logger: logger}
	bn.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "notifier",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("notifier circuit breaker state changed")
		},
	})
	return bn
}

func (n *BreakerNotifier) Notify(ctx context.Context, account AccountID, kind EventKind, payload map[string]string) error {
	_, err := n.cb.Execute(func() (any, error) {
		return nil, n.inner.Notify(ctx, account, kind, payload)
	})
	if err != nil {
		n.logger.Warn().Err(err).
			Str("account", string(account)).
			Str("event", string(kind)).
			Msg("notification dropped")
	}
	return err
}

package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// flakyNotifier fails until told otherwise, counting delivery attempts.
type flakyNotifier struct {
	failing  bool
	attempts int
}

func (n *flakyNotifier) Notify(context.Context, AccountID, EventKind, map[string]string) error {
	n.attempts++
	if n.failing {
		return errors.New("smtp down")
	}
	return nil
}

func TestBreakerNotifierTripsAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyNotifier{failing: true}
	bn := NewBreakerNotifier(inner, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := bn.Notify(ctx, "acct-1", EventCompleted, nil)
		assert.Error(t, err)
	}
	assert.Equal(t, 5, inner.attempts)

	// Open breaker: the backend is no longer called at all
	err := bn.Notify(ctx, "acct-1", EventCompleted, nil)
	assert.Error(t, err)
	assert.Equal(t, 5, inner.attempts, "open breaker short-circuits")
}

func TestBreakerNotifierPassesThroughWhenHealthy(t *testing.T) {
	inner := &flakyNotifier{}
	bn := NewBreakerNotifier(inner, zerolog.Nop())

	assert.NoError(t, bn.Notify(context.Background(), "acct-1", EventCreated, map[string]string{"amount": "1.00"}))
	assert.Equal(t, 1, inner.attempts)
}

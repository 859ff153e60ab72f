package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const acct = wallet.AccountID("acct-1")
const other = wallet.AccountID("acct-2")

func amt(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func newStore(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	ctx := context.Background()
	for _, id := range []wallet.AccountID{acct, other} {
		require.NoError(t, m.CreateAccount(ctx, wallet.Account{
			ID:        id,
			Balance:   amt(100),
			Reserved:  decimal.Zero,
			Status:    wallet.AccountActive,
			CreatedAt: time.Now(),
		}))
	}
	return m
}

func balances(t *testing.T, m *Memory, id wallet.AccountID) (balance, reserved decimal.Decimal) {
	t.Helper()
	a, err := m.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a.Balance, a.Reserved
}

// =============================================================================
// BALANCE PRIMITIVES
// =============================================================================

func TestReserveReleaseSettle(t *testing.T) {
	m := newStore(t)
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, acct, amt(60)))
	balance, reserved := balances(t, m, acct)
	assert.True(t, balance.Equal(amt(100)), "reserve does not move money")
	assert.True(t, reserved.Equal(amt(60)))

	require.NoError(t, m.Release(ctx, acct, amt(20)))
	_, reserved = balances(t, m, acct)
	assert.True(t, reserved.Equal(amt(40)))

	require.NoError(t, m.Settle(ctx, acct, other, amt(40)))
	balance, reserved = balances(t, m, acct)
	assert.True(t, balance.Equal(amt(60)))
	assert.True(t, reserved.IsZero())
	otherBalance, _ := balances(t, m, other)
	assert.True(t, otherBalance.Equal(amt(140)))
}

func TestReserveRejectsOverAvailable(t *testing.T) {
	m := newStore(t)
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, acct, amt(70)))
	err := m.Reserve(ctx, acct, amt(40))
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	var ife *wallet.InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	assert.True(t, ife.Available.Equal(amt(30)))

	_, reserved := balances(t, m, acct)
	assert.True(t, reserved.Equal(amt(70)), "failed reserve must not change state")
}

func TestReleaseRejectsOverReserved(t *testing.T) {
	m := newStore(t)
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, acct, amt(10)))
	err := m.Release(ctx, acct, amt(20))
	assert.ErrorIs(t, err, wallet.ErrInvariantViolation)
}

func TestSettleRequiresMatchingHold(t *testing.T) {
	m := newStore(t)
	err := m.Settle(context.Background(), acct, other, amt(10))
	assert.ErrorIs(t, err, wallet.ErrInvariantViolation)
}

func TestDebitRespectsReservation(t *testing.T) {
	// Debit draws from available, never from reserved funds.
	m := newStore(t)
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, acct, amt(80)))
	assert.ErrorIs(t, m.Debit(ctx, acct, amt(30)), wallet.ErrInsufficientFunds)

	require.NoError(t, m.Debit(ctx, acct, amt(20)))
	balance, reserved := balances(t, m, acct)
	assert.True(t, balance.Equal(amt(80)))
	assert.True(t, reserved.Equal(amt(80)))
}

func TestUnknownAccount(t *testing.T) {
	m := newStore(t)
	ctx := context.Background()
	assert.ErrorIs(t, m.Reserve(ctx, "acct-ghost", amt(1)), wallet.ErrNotFound)
	assert.ErrorIs(t, m.Credit(ctx, "acct-ghost", amt(1)), wallet.ErrNotFound)
	_, err := m.GetAccount(ctx, "acct-ghost")
	assert.ErrorIs(t, err, wallet.ErrNotFound)
}

// =============================================================================
// GUARDED STATUS UPDATES
// =============================================================================

func TestUpdateStatusGuards(t *testing.T) {
	m := newStore(t)
	ctx := context.Background()

	tx := &wallet.Transaction{
		ID:         wallet.NewTransactionID(),
		SenderID:   acct,
		ReceiverID: other,
		Amount:     amt(10),
		Status:     wallet.StatusPending,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, m.InsertTransaction(ctx, tx))

	// Illegal transition rejected by the table
	err := m.UpdateStatus(ctx, tx.ID, wallet.StatusPending, wallet.StatusCompleted)
	assert.ErrorIs(t, err, wallet.ErrInvalidTransition)

	require.NoError(t, m.UpdateStatus(ctx, tx.ID, wallet.StatusPending, wallet.StatusAwaitingAcceptance))

	// Stale expectation detected
	err = m.UpdateStatus(ctx, tx.ID, wallet.StatusPending, wallet.StatusCancelled)
	assert.ErrorIs(t, err, wallet.ErrConcurrentModification)
}

// =============================================================================
// UNITS OF WORK
// =============================================================================

func TestWithTxRollsBackOnError(t *testing.T) {
	// GIVEN: a unit of work that reserves then fails
	// WHEN:  WithTx returns the error
	// THEN:  the reservation is rolled back with it
	m := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(st wallet.Store) error {
		if err := st.Reserve(ctx, acct, amt(50)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, reserved := balances(t, m, acct)
	assert.True(t, reserved.IsZero())
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	m := newStore(t)
	ctx := context.Background()

	err := m.WithTx(ctx, func(st wallet.Store) error {
		if err := st.Debit(ctx, acct, amt(25)); err != nil {
			return err
		}
		return st.Credit(ctx, other, amt(25))
	})
	require.NoError(t, err)

	balance, _ := balances(t, m, acct)
	otherBalance, _ := balances(t, m, other)
	assert.True(t, balance.Equal(amt(75)))
	assert.True(t, otherBalance.Equal(amt(125)))
}

func TestNestedWithTxSharesUnitOfWork(t *testing.T) {
	// An inner WithTx on the view must not deadlock and must roll back with
	// the outer unit.
	m := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(st wallet.Store) error {
		return st.WithTx(ctx, func(inner wallet.Store) error {
			if err := inner.Credit(ctx, acct, amt(5)); err != nil {
				return err
			}
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	balance, _ := balances(t, m, acct)
	assert.True(t, balance.Equal(amt(100)))
}

// =============================================================================
// EXECUTION RECORDS
// =============================================================================

func TestInsertExecutionPerDayUniqueness(t *testing.T) {
	m := newStore(t)
	ctx := context.Background()
	id := wallet.NewTemplateID()
	day := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.InsertExecution(ctx, &wallet.ExecutionRecord{
		ID: wallet.NewExecutionID(), TemplateID: id, ExecutionDate: day,
		Outcome: wallet.OutcomeCompleted, CreatedAt: day,
	}))

	// Same template, same day, different hour: rejected
	err := m.InsertExecution(ctx, &wallet.ExecutionRecord{
		ID: wallet.NewExecutionID(), TemplateID: id, ExecutionDate: day.Add(8 * time.Hour),
		Outcome: wallet.OutcomeFailed, CreatedAt: day,
	})
	assert.ErrorIs(t, err, wallet.ErrDuplicateExecution)

	// Next day: fine
	require.NoError(t, m.InsertExecution(ctx, &wallet.ExecutionRecord{
		ID: wallet.NewExecutionID(), TemplateID: id, ExecutionDate: day.AddDate(0, 0, 1),
		Outcome: wallet.OutcomeCompleted, CreatedAt: day,
	}))

	last, err := m.LastExecution(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.ExecutionDate.Equal(day.AddDate(0, 0, 1)))
}

func TestLastExecutionEmptyHistory(t *testing.T) {
	m := newStore(t)
	last, err := m.LastExecution(context.Background(), wallet.NewTemplateID())
	require.NoError(t, err)
	assert.Nil(t, last)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentReservesNeverOversell(t *testing.T) {
	// 50 goroutines race to reserve 10 from a balance of 300; the invariant
	// reserved <= balance must hold regardless of interleaving.
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateAccount(ctx, wallet.Account{
		ID: acct, Balance: amt(300), Status: wallet.AccountActive, CreatedAt: time.Now(),
	}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Reserve(ctx, acct, amt(10)); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 30, succeeded)
	balance, reserved := balances(t, m, acct)
	assert.True(t, balance.Equal(amt(300)))
	assert.True(t, reserved.Equal(amt(300)))
	assert.True(t, reserved.LessThanOrEqual(balance))
}

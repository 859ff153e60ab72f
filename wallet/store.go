/*
store.go - Persistence interfaces for accounts, transactions and templates

PURPOSE:
  Defines the boundary between the engine and the database. Balances are
  mutated exclusively through the five primitives below - no other code
  path writes Balance or Reserved - so every mutation enforces the account
  invariants.

BALANCE PRIMITIVES:
  Reserve: place a hold (available must cover it)
  Release: return a hold to availability
  Settle:  convert a hold into an actual two-account transfer
  Credit:  unconditional direct deposit (recurring engine only)
  Debit:   direct withdrawal (available must cover it, recurring only)

ATOMICITY:
  Each primitive is a single serializable unit of work on its own.
  WithTx groups a status transition with its balance mutation so a
  transaction cannot be, say, concurrently confirmed and cancelled:
  the status row's guarded update is the serialization point.

LOCK ORDERING:
  Settle touches two accounts and must lock them in ascending account-id
  order so concurrent settlements between the same pair in opposite roles
  cannot deadlock.

IMPLEMENTATIONS:
  - store/sqlite: production, guarded UPDATE statements in SQL transactions
  - wallet/store:  in-memory, for tests and dev

SEE ALSO:
  - service.go: composes primitives into ledger operations
  - recurring.go: uses Debit/Credit for pre-authorized transfers
*/
package wallet

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE STORE - The five primitives
// =============================================================================

// BalanceStore owns all balance mutation. Implementations must serialize
// concurrent callers targeting the same account.
type BalanceStore interface {
	// GetAccount returns the current balance state.
	// Returns ErrNotFound for unknown ids.
	GetAccount(ctx context.Context, id AccountID) (*Account, error)

	// CreateAccount registers a new account with an opening balance.
	CreateAccount(ctx context.Context, account Account) error

	// Reserve places a hold of amount on the account.
	// Fails with ErrInsufficientFunds if available < amount.
	Reserve(ctx context.Context, id AccountID, amount decimal.Decimal) error

	// Release returns a held amount to availability. Never drives reserved
	// below zero; releasing more than is held is an ErrInvariantViolation.
	Release(ctx context.Context, id AccountID, amount decimal.Decimal) error

	// Settle moves amount from sender to receiver, consuming sender's hold.
	// Fails with ErrInvariantViolation if the sender does not hold a
	// reservation of at least amount - that means a prior bug, not a
	// recoverable condition.
	Settle(ctx context.Context, sender, receiver AccountID, amount decimal.Decimal) error

	// Credit deposits amount directly, bypassing reservation.
	Credit(ctx context.Context, id AccountID, amount decimal.Decimal) error

	// Debit withdraws amount directly, bypassing reservation.
	// Fails with ErrInsufficientFunds if available < amount.
	Debit(ctx context.Context, id AccountID, amount decimal.Decimal) error
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// TransactionStore persists transfer requests. Rows are never deleted;
// terminal statuses are final and retained for audit.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx *Transaction) error

	// GetTransaction returns ErrNotFound for unknown ids.
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)

	// UpdateStatus moves a transaction from one status to another as a
	// guarded compare-and-set: if the row is no longer in from, it fails
	// with ErrConcurrentModification and writes nothing. Called inside
	// WithTx together with the balance mutation it belongs to.
	UpdateStatus(ctx context.Context, id TransactionID, from, to Status) error

	// ListBySender returns transactions with the given status sent by the
	// account, newest first. Backed by the (status, sender_id) index.
	ListBySender(ctx context.Context, status Status, sender AccountID) ([]Transaction, error)

	// ListByReceiver is the receiver-side counterpart.
	ListByReceiver(ctx context.Context, status Status, receiver AccountID) ([]Transaction, error)
}

// =============================================================================
// RECURRING STORE
// =============================================================================

// RecurringStore persists templates and their append-only execution history.
type RecurringStore interface {
	InsertTemplate(ctx context.Context, tpl *RecurringTemplate) error
	GetTemplate(ctx context.Context, id TemplateID) (*RecurringTemplate, error)
	ListActiveTemplates(ctx context.Context) ([]RecurringTemplate, error)
	SetTemplateActive(ctx context.Context, id TemplateID, active bool) error

	// LastExecution returns the most recent record for the template, or
	// (nil, nil) if it has never executed.
	LastExecution(ctx context.Context, id TemplateID) (*ExecutionRecord, error)

	// InsertExecution appends one attempt. At most one record may exist per
	// template per calendar day; a second insert on the same day fails with
	// ErrDuplicateExecution.
	InsertExecution(ctx context.Context, rec *ExecutionRecord) error

	// ListExecutions returns the template's history, newest first.
	ListExecutions(ctx context.Context, id TemplateID) ([]ExecutionRecord, error)
}

// =============================================================================
// STORE - Everything, plus units of work
// =============================================================================

// Store is the full persistence surface the engine needs.
type Store interface {
	BalanceStore
	TransactionStore
	RecurringStore

	// WithTx executes fn within one unit of work. If fn returns an error
	// the unit is rolled back in full; otherwise it commits. The Store
	// passed to fn operates inside the unit of work.
	WithTx(ctx context.Context, fn func(Store) error) error
}

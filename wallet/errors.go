/*
errors.go - Centralized error types for the wallet engine

PURPOSE:
  All error kinds in one place so callers can distinguish "this request is
  wrong, retrying the same thing won't help" from "funds were compensated,
  nothing left to clean up".

ERROR CATEGORIES:
  1. Validation errors - bad amount, self transfer, wrong-state transition
  2. Authorization errors - actor is not allowed to perform the operation
  3. Funds errors - insufficient available balance
  4. Invariant violations - a prior bug corrupted state; fatal, alerted
  5. Store errors - persistence failures; trigger the compensation path

USAGE:
  Callers classify with the helpers:

    if wallet.IsClientError(err) {
        // 4xx: report to caller, no side effects occurred
    }

SEE ALSO:
  - service.go: raises these from ledger operations
  - store.go: store implementations raise the sentinel forms
*/
package wallet

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientFunds is returned when a reservation or debit exceeds
	// the account's available balance. Expected, reported to the caller.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for non-positive or over-limit amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrSelfTransfer is returned when sender and receiver are the same.
	ErrSelfTransfer = errors.New("sender and receiver must differ")

	// ErrInvalidInterval is returned for unknown recurrence intervals.
	ErrInvalidInterval = errors.New("invalid recurrence interval")

	// ErrInvalidTransition is returned when an operation is attempted from
	// a status it is not legal in (including any terminal status).
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotAuthorized is returned when the actor is neither party to the
	// transaction, acts in the wrong role, or is not an admin.
	ErrNotAuthorized = errors.New("actor not authorized")

	// ErrNotFound is returned for unknown account/transaction/template ids.
	ErrNotFound = errors.New("not found")

	// ErrInvariantViolation indicates corrupted balance state (e.g. a
	// settlement without a matching reservation). Indicates a prior bug;
	// must be surfaced loudly, never silently corrected.
	ErrInvariantViolation = errors.New("balance invariant violated")

	// ErrConcurrentModification is returned when a guarded status update
	// finds the row changed underneath it.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateExecution is returned when an execution record already
	// exists for the template on that calendar day.
	ErrDuplicateExecution = errors.New("duplicate execution for day")

	// ErrReceiverNotEligible is returned when the receiving account is
	// blocked or deactivated.
	ErrReceiverNotEligible = errors.New("receiver not eligible")

	// ErrNotAuthorizedToTransact is returned when an account is blocked or
	// deactivated and may not move money.
	ErrNotAuthorizedToTransact = errors.New("account not authorized to transact")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError reports the shortfall so the caller can decide
// whether a different request could succeed.
type InsufficientFundsError struct {
	AccountID AccountID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on %s: available %s, requested %s",
		e.AccountID, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// AmountError reports why an amount was rejected.
type AmountError struct {
	Amount decimal.Decimal
	Max    decimal.Decimal
	Reason string
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("invalid amount %s: %s", e.Amount, e.Reason)
}

func (e *AmountError) Unwrap() error { return ErrInvalidAmount }

// TransitionError reports which operation was attempted from which status.
type TransitionError struct {
	TransactionID TransactionID
	From          Status
	Operation     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s transaction %s in status %q",
		e.Operation, e.TransactionID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// AuthorizationError reports which actor was rejected and what role the
// operation requires.
type AuthorizationError struct {
	Actor         AccountID
	TransactionID TransactionID
	Requires      string // "sender", "receiver", "admin"
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s may not act on transaction %s: requires %s",
		e.Actor, e.TransactionID, e.Requires)
}

func (e *AuthorizationError) Unwrap() error { return ErrNotAuthorized }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the request itself;
// no side effects occurred and retrying unchanged will not help.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrSelfTransfer) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrReceiverNotEligible) ||
		errors.Is(err, ErrNotAuthorizedToTransact)
}

// IsAuthorization returns true if the actor is not allowed to perform the
// operation.
func IsAuthorization(err error) bool { return errors.Is(err, ErrNotAuthorized) }

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRetryable returns true if the same request might succeed on retry.
func IsRetryable(err error) bool { return errors.Is(err, ErrConcurrentModification) }

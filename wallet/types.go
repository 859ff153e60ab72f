/*
Package wallet provides the core peer-to-peer transfer engine.

PURPOSE:
  This package contains the domain types and services for moving money
  between accounts through an explicit multi-step commitment protocol:
  a sender confirms a transfer (placing a hold on funds), the receiver
  accepts or declines it, and only acceptance actually moves money.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: balance + reserved hold, mutated only via store primitives
  - Transaction: a single transfer request with an explicit lifecycle
  - RecurringTemplate: a stored periodic transfer description
  - ExecutionRecord: one attempt (successful or not) to run a template

DESIGN PRINCIPLES:
  1. Conservation: no operation may create or destroy money
  2. Precision: decimal.Decimal, rounded to minor-currency units
  3. Type Safety: strong ID types prevent mixing account/transaction IDs
  4. Auditability: terminal transactions and execution records are kept
     forever, never deleted

SEE ALSO:
  - transition.go: the transaction state machine
  - service.go: ledger operations (Create/Confirm/Accept/...)
  - recurring.go: scheduled execution of templates
  - store.go: persistence interfaces and balance primitives
*/
package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type TransactionID string
type TemplateID string
type ExecutionID string

func NewTransactionID() TransactionID { return TransactionID(uuid.NewString()) }
func NewTemplateID() TemplateID       { return TemplateID(uuid.NewString()) }
func NewExecutionID() ExecutionID     { return ExecutionID(uuid.NewString()) }

// =============================================================================
// AMOUNTS
// =============================================================================

// AmountPrecision is the number of decimal places amounts are stored with
// (minor currency units, e.g. cents).
const AmountPrecision = 2

// NormalizeAmount rounds an amount to minor-currency precision and validates
// it against the configured maximum. Returns ErrInvalidAmount if the rounded
// amount is not strictly positive or exceeds max.
func NormalizeAmount(amount, max decimal.Decimal) (decimal.Decimal, error) {
	rounded := amount.Round(AmountPrecision)
	if !rounded.IsPositive() {
		return decimal.Zero, &AmountError{Amount: rounded, Max: max, Reason: "amount must be positive"}
	}
	if max.IsPositive() && rounded.GreaterThan(max) {
		return decimal.Zero, &AmountError{Amount: rounded, Max: max, Reason: "amount exceeds maximum"}
	}
	return rounded, nil
}

// =============================================================================
// ACCOUNT - Balance plus reserved hold
// =============================================================================

type AccountStatus string

const (
	AccountActive      AccountStatus = "active"
	AccountBlocked     AccountStatus = "blocked"
	AccountDeactivated AccountStatus = "deactivated"
)

// Account holds the money state for one wallet.
//
// INVARIANTS (enforced by the store primitives, never by direct writes):
//   - Balance >= 0
//   - Reserved >= 0
//   - Reserved <= Balance
type Account struct {
	ID        AccountID
	Balance   decimal.Decimal
	Reserved  decimal.Decimal
	Status    AccountStatus
	CreatedAt time.Time
}

// Available is the portion usable for new reservations or direct debits.
func (a Account) Available() decimal.Decimal {
	return a.Balance.Sub(a.Reserved)
}

// =============================================================================
// TRANSACTION - A single peer-to-peer transfer request
// =============================================================================

type Status string

const (
	StatusPending            Status = "pending"
	StatusAwaitingAcceptance Status = "awaiting_acceptance"
	StatusCompleted          Status = "completed"
	StatusDenied             Status = "denied"
	StatusCancelled          Status = "cancelled"
	StatusFailed             Status = "failed"
)

// IsTerminal reports whether a transaction in this status can never change
// again. Terminal rows are retained for audit, never deleted.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusDenied, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Transaction is a transfer request from sender to receiver.
// Category, Description and Currency are opaque pass-through metadata.
type Transaction struct {
	ID         TransactionID
	SenderID   AccountID
	ReceiverID AccountID
	Amount     decimal.Decimal
	Status     Status

	Category    string
	Description string
	Currency    string

	// Back-reference to the template that produced this transaction,
	// empty for one-off transfers.
	TemplateID TemplateID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// RECURRING TEMPLATES
// =============================================================================

type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

func (i Interval) Valid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	}
	return false
}

// Due reports whether a template with this interval is due again, given the
// date of the most recent execution record. A zero lastRun means the template
// has never executed and is always due.
//
// MONTHLY uses a fixed 30-day modulus, not calendar-month arithmetic. This
// drifts across months of different lengths but never starves (a template
// created on the 31st still fires every 30 days).
func (i Interval) Due(lastRun, today time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	last := DayOf(lastRun)
	now := DayOf(today)
	elapsed := int(now.Sub(last).Hours() / 24)
	switch i {
	case IntervalDaily:
		return elapsed >= 1
	case IntervalWeekly:
		return elapsed >= 7
	case IntervalMonthly:
		return elapsed >= 30
	}
	return false
}

// RecurringTemplate is a stored description of a periodic transfer,
// independent of any single Transaction instance.
type RecurringTemplate struct {
	ID            TemplateID
	TransactionID TransactionID // the transaction the user opted into recurrence
	SenderID      AccountID
	ReceiverID    AccountID
	Amount        decimal.Decimal
	Currency      string
	Interval      Interval
	Active        bool
	CreatedAt     time.Time
}

// =============================================================================
// EXECUTION RECORDS - Append-only audit trail of recurring attempts
// =============================================================================

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// ExecutionRecord captures one attempt to execute a template on a given
// date. One row per attempt, at most one row per template per calendar day.
type ExecutionRecord struct {
	ID            ExecutionID
	TemplateID    TemplateID
	ExecutionDate time.Time // normalized to midnight UTC
	Outcome       Outcome
	Reason        string // empty on success
	CreatedAt     time.Time
}

// DayOf truncates a time to midnight UTC. Execution dates are always stored
// and compared at day granularity.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

/*
service.go - Transaction Ledger operations

PURPOSE:
  Owns the lifecycle of a peer-to-peer transfer request. Money moves in
  three acts separated in time:

    Create:  sender asks to pay; nothing moves        -> PENDING
    Confirm: sender commits; funds are held           -> AWAITING_ACCEPTANCE
    Accept:  receiver takes the money; hold settles   -> COMPLETED

  Decline, Cancel and AdminDeny are the exits; FAILED is the compensating
  terminal status when a balance mutation raises unexpectedly.

ATOMICITY:
  Every operation that moves money runs the status transition and the
  balance primitive inside one unit of work (Store.WithTx). The guarded
  status update serializes concurrent operations on the same transaction;
  the primitives serialize concurrent operations on the same account.

FAILURE SEMANTICS:
  Validation and authorization errors are reported without side effects.
  An unexpected error during a balance mutation rolls the unit of work
  back, releases any hold still attributable to the transaction in a
  separate unit of work (funds are never left stuck), marks the
  transaction FAILED, notifies both parties and re-raises. Failed
  transactions are not resubmitted; the caller recreates if desired.

SEE ALSO:
  - transition.go: the legality table
  - store.go: the balance primitives
  - recurring.go: scheduled direct transfers
*/
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service is the Transaction Ledger. All fields except Store and Directory
// are optional; nil metrics and a nop notifier are safe.
type Service struct {
	Store     Store
	Directory Directory
	Notifier  Notifier
	Logger    zerolog.Logger
	Metrics   *Metrics

	// MaxAmount bounds a single transfer. Zero means unbounded.
	MaxAmount decimal.Decimal

	// Now is replaceable for tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateInput carries the sender's request. Category, Description and
// Currency are pass-through metadata the engine does not interpret.
type CreateInput struct {
	Sender      AccountID
	Receiver    AccountID
	Amount      decimal.Decimal
	Category    string
	Description string
	Currency    string
}

// =============================================================================
// CREATE - PENDING, no balance mutation
// =============================================================================

// Create validates the request and records a new PENDING transaction.
// No funds are held yet; the sender commits separately via Confirm.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Transaction, error) {
	amount, err := NormalizeAmount(in.Amount, s.MaxAmount)
	if err != nil {
		return nil, err
	}
	if in.Sender == in.Receiver {
		return nil, ErrSelfTransfer
	}
	if _, err := s.Store.GetAccount(ctx, in.Sender); err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	eligible, err := s.Directory.IsEligibleToReceive(ctx, in.Receiver)
	if err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}
	if !eligible {
		return nil, ErrReceiverNotEligible
	}

	now := s.now()
	tx := &Transaction{
		ID:          NewTransactionID(),
		SenderID:    in.Sender,
		ReceiverID:  in.Receiver,
		Amount:      amount,
		Status:      StatusPending,
		Category:    in.Category,
		Description: in.Description,
		Currency:    in.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.InsertTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	s.Metrics.transition(StatusPending)
	s.notify(ctx, tx.SenderID, EventCreated, tx, "")
	s.notify(ctx, tx.ReceiverID, EventReceived, tx, "")
	return tx, nil
}

// =============================================================================
// CONFIRM - sender commits, funds are held
// =============================================================================

// Confirm places a hold of the transaction amount on the sender's account
// and moves the transaction to AWAITING_ACCEPTANCE. Only the sender may
// confirm, only from PENDING. Available balance is re-checked now - it may
// have changed since creation. On insufficient funds nothing changes and
// the transaction stays PENDING.
func (s *Service) Confirm(ctx context.Context, id TransactionID, actor AccountID) (*Transaction, error) {
	tx, err := s.Store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != tx.SenderID {
		return nil, &AuthorizationError{Actor: actor, TransactionID: id, Requires: "sender"}
	}
	if tx.Status != StatusPending {
		return nil, &TransitionError{TransactionID: id, From: tx.Status, Operation: "confirm"}
	}

	err = s.Store.WithTx(ctx, func(st Store) error {
		if err := st.UpdateStatus(ctx, id, StatusPending, StatusAwaitingAcceptance); err != nil {
			return err
		}
		return st.Reserve(ctx, tx.SenderID, tx.Amount)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrInsufficientFunds):
		// All-or-nothing: the hold was rolled back with the status change,
		// the transaction stays PENDING.
		s.Metrics.reservationFailure()
		return nil, err
	case errors.Is(err, ErrConcurrentModification):
		return nil, err
	default:
		return nil, s.fail(ctx, tx, false, fmt.Errorf("confirm: %w", err))
	}

	tx.Status = StatusAwaitingAcceptance
	tx.UpdatedAt = s.now()
	s.Metrics.transition(StatusAwaitingAcceptance)
	s.notify(ctx, tx.SenderID, EventConfirmed, tx, "")
	s.notify(ctx, tx.ReceiverID, EventAwaitingAcceptance, tx, "")
	return tx, nil
}

// =============================================================================
// ACCEPT - receiver takes the money
// =============================================================================

// Accept settles the held funds into the receiver's account and completes
// the transaction. Only the receiver may accept, only from
// AWAITING_ACCEPTANCE. If settlement fails the transaction is failed
// outright and the hold released - there is no automatic settlement retry.
func (s *Service) Accept(ctx context.Context, id TransactionID, actor AccountID) (*Transaction, error) {
	tx, err := s.Store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != tx.ReceiverID {
		return nil, &AuthorizationError{Actor: actor, TransactionID: id, Requires: "receiver"}
	}
	if tx.Status != StatusAwaitingAcceptance {
		return nil, &TransitionError{TransactionID: id, From: tx.Status, Operation: "accept"}
	}

	err = s.Store.WithTx(ctx, func(st Store) error {
		if err := st.UpdateStatus(ctx, id, StatusAwaitingAcceptance, StatusCompleted); err != nil {
			return err
		}
		return st.Settle(ctx, tx.SenderID, tx.ReceiverID, tx.Amount)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrConcurrentModification):
		return nil, err
	default:
		// The reservation placed at Confirm is still outstanding after the
		// rollback; release it so funds are never left stuck.
		return nil, s.fail(ctx, tx, true, fmt.Errorf("settle: %w", err))
	}

	tx.Status = StatusCompleted
	tx.UpdatedAt = s.now()
	s.Metrics.transition(StatusCompleted)
	s.Metrics.settlement()
	s.notify(ctx, tx.SenderID, EventCompleted, tx, "")
	s.notify(ctx, tx.ReceiverID, EventCompleted, tx, "")
	return tx, nil
}

// =============================================================================
// DECLINE - receiver refuses
// =============================================================================

// Decline releases the sender's hold and marks the transaction DENIED.
// Only the receiver may decline, only from AWAITING_ACCEPTANCE.
func (s *Service) Decline(ctx context.Context, id TransactionID, actor AccountID, reason string) (*Transaction, error) {
	tx, err := s.Store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != tx.ReceiverID {
		return nil, &AuthorizationError{Actor: actor, TransactionID: id, Requires: "receiver"}
	}
	if tx.Status != StatusAwaitingAcceptance {
		return nil, &TransitionError{TransactionID: id, From: tx.Status, Operation: "decline"}
	}

	err = s.Store.WithTx(ctx, func(st Store) error {
		if err := st.UpdateStatus(ctx, id, StatusAwaitingAcceptance, StatusDenied); err != nil {
			return err
		}
		return st.Release(ctx, tx.SenderID, tx.Amount)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrConcurrentModification):
		return nil, err
	default:
		return nil, s.fail(ctx, tx, true, fmt.Errorf("decline: %w", err))
	}

	tx.Status = StatusDenied
	tx.UpdatedAt = s.now()
	s.Metrics.transition(StatusDenied)
	s.notify(ctx, tx.SenderID, EventDeclined, tx, reason)
	s.notify(ctx, tx.ReceiverID, EventDeclined, tx, reason)
	return tx, nil
}

// =============================================================================
// CANCEL - sender backs out
// =============================================================================

// Cancel marks the transaction CANCELLED. Only the sender may cancel, from
// PENDING or AWAITING_ACCEPTANCE; in the latter case the hold is released
// in the same unit of work.
func (s *Service) Cancel(ctx context.Context, id TransactionID, actor AccountID) (*Transaction, error) {
	tx, err := s.Store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != tx.SenderID {
		return nil, &AuthorizationError{Actor: actor, TransactionID: id, Requires: "sender"}
	}
	if tx.Status != StatusPending && tx.Status != StatusAwaitingAcceptance {
		return nil, &TransitionError{TransactionID: id, From: tx.Status, Operation: "cancel"}
	}

	held := tx.Status == StatusAwaitingAcceptance
	from := tx.Status
	err = s.Store.WithTx(ctx, func(st Store) error {
		if err := st.UpdateStatus(ctx, id, from, StatusCancelled); err != nil {
			return err
		}
		if held {
			return st.Release(ctx, tx.SenderID, tx.Amount)
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrConcurrentModification):
		return nil, err
	default:
		return nil, s.fail(ctx, tx, held, fmt.Errorf("cancel: %w", err))
	}

	tx.Status = StatusCancelled
	tx.UpdatedAt = s.now()
	s.Metrics.transition(StatusCancelled)
	s.notify(ctx, tx.SenderID, EventCancelled, tx, "")
	s.notify(ctx, tx.ReceiverID, EventCancelled, tx, "")
	return tx, nil
}

// =============================================================================
// ADMIN DENY - administrative override
// =============================================================================

// AdminDeny denies a PENDING transaction on behalf of an administrator.
// No reservation exists yet in PENDING, so no release is needed.
func (s *Service) AdminDeny(ctx context.Context, id TransactionID, admin AccountID) (*Transaction, error) {
	isAdmin, err := s.Directory.IsAdmin(ctx, admin)
	if err != nil {
		return nil, fmt.Errorf("admin check: %w", err)
	}
	if !isAdmin {
		return nil, &AuthorizationError{Actor: admin, TransactionID: id, Requires: "admin"}
	}

	tx, err := s.Store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status != StatusPending {
		return nil, &TransitionError{TransactionID: id, From: tx.Status, Operation: "deny"}
	}

	if err := s.Store.UpdateStatus(ctx, id, StatusPending, StatusDenied); err != nil {
		return nil, err
	}

	tx.Status = StatusDenied
	tx.UpdatedAt = s.now()
	s.Metrics.transition(StatusDenied)
	s.notify(ctx, tx.SenderID, EventDenied, tx, "denied by administrator")
	return tx, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns one transaction.
func (s *Service) Get(ctx context.Context, id TransactionID) (*Transaction, error) {
	return s.Store.GetTransaction(ctx, id)
}

// ListOutgoing returns an account's sent transactions with the given status.
func (s *Service) ListOutgoing(ctx context.Context, status Status, sender AccountID) ([]Transaction, error) {
	return s.Store.ListBySender(ctx, status, sender)
}

// ListIncoming returns an account's received transactions with the given status.
func (s *Service) ListIncoming(ctx context.Context, status Status, receiver AccountID) ([]Transaction, error) {
	return s.Store.ListByReceiver(ctx, status, receiver)
}

// =============================================================================
// COMPENSATION
// =============================================================================

// fail is the compensating path for an unexpected error during a balance
// mutation. The failed unit of work has already been rolled back; here we
// release any hold still attributable to the transaction (separate unit of
// work, best-effort), mark the row FAILED, notify both parties, and hand
// the cause back for the caller to surface as a server-side failure.
func (s *Service) fail(ctx context.Context, tx *Transaction, releaseHold bool, cause error) error {
	if releaseHold {
		if err := s.Store.Release(ctx, tx.SenderID, tx.Amount); err != nil {
			s.Logger.Error().Err(err).
				Str("transaction", string(tx.ID)).
				Str("sender", string(tx.SenderID)).
				Msg("compensating release failed, funds may be stuck")
		}
	}
	if err := s.Store.UpdateStatus(ctx, tx.ID, tx.Status, StatusFailed); err != nil {
		s.Logger.Error().Err(err).
			Str("transaction", string(tx.ID)).
			Msg("could not mark transaction failed")
	}
	tx.Status = StatusFailed
	s.Metrics.transition(StatusFailed)
	s.notify(ctx, tx.SenderID, EventFailed, tx, cause.Error())
	s.notify(ctx, tx.ReceiverID, EventFailed, tx, cause.Error())
	s.Logger.Error().Err(cause).
		Str("transaction", string(tx.ID)).
		Msg("transaction failed")
	return cause
}

// notify emits a lifecycle event. Fire-and-forget: delivery errors are the
// notifier's problem, never the ledger's.
func (s *Service) notify(ctx context.Context, account AccountID, kind EventKind, tx *Transaction, reason string) {
	if s.Notifier == nil {
		return
	}
	payload := map[string]string{
		"transaction_id": string(tx.ID),
		"amount":         tx.Amount.StringFixed(AmountPrecision),
		"status":         string(tx.Status),
	}
	if reason != "" {
		payload["reason"] = reason
	}
	_ = s.Notifier.Notify(ctx, account, kind, payload)
}

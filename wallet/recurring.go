/*
recurring.go - Recurring Schedule Engine

PURPOSE:
  Executes stored transfer templates on a schedule. A daily external
  trigger calls ExecuteDue; the engine re-derives due-ness from the
  execution history table every time, so restarts or duplicate triggers
  on the same day cannot double-execute a template.

EXECUTION MODEL:
  Recurring transfers are pre-authorized: the receiver already agreed by
  opting the original transaction into recurrence. Execution is therefore
  a direct Debit+Credit in one unit of work, not an escrowed
  reserve/accept round-trip.

IDEMPOTENCY:
  At most one execution record per template per calendar day, enforced
  twice: the due-ness check reads the latest record, and the store's
  unique (template_id, execution_date) index rejects a racing duplicate.
  The record insert rides in the same unit of work as the balance
  mutation - either both happen or neither.

FAILURE:
  A failed attempt (ineligible party, insufficient funds, store error)
  writes a FAILED record with the reason, notifies the sender and moves
  on. Templates are never deactivated automatically; that is an explicit
  user/admin action.

SEE ALSO:
  - types.go: Interval.Due (the due-ness rules)
  - service.go: the escrowed path recurring transfers bypass
*/
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// RECURRING SERVICE
// =============================================================================

type RecurringService struct {
	Store     Store
	Directory Directory
	Notifier  Notifier
	Logger    zerolog.Logger
	Metrics   *Metrics

	// Now is replaceable for tests. Defaults to time.Now.
	Now func() time.Time
}

func (rs *RecurringService) now() time.Time {
	if rs.Now != nil {
		return rs.Now()
	}
	return time.Now()
}

// =============================================================================
// TEMPLATE MANAGEMENT
// =============================================================================

// Register opts a transaction into recurrence, copying its parties, amount
// and currency into a new active template. Only the transaction's sender
// may register it.
func (rs *RecurringService) Register(ctx context.Context, txID TransactionID, actor AccountID, interval Interval) (*RecurringTemplate, error) {
	if !interval.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}
	tx, err := rs.Store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if actor != tx.SenderID {
		return nil, &AuthorizationError{Actor: actor, TransactionID: txID, Requires: "sender"}
	}

	tpl := &RecurringTemplate{
		ID:            NewTemplateID(),
		TransactionID: txID,
		SenderID:      tx.SenderID,
		ReceiverID:    tx.ReceiverID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Interval:      interval,
		Active:        true,
		CreatedAt:     rs.now(),
	}
	if err := rs.Store.InsertTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	return tpl, nil
}

// Deactivate turns a template off. Deactivated templates are retained with
// their history, never deleted. The template's sender or an admin may
// deactivate.
func (rs *RecurringService) Deactivate(ctx context.Context, id TemplateID, actor AccountID) error {
	tpl, err := rs.Store.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if actor != tpl.SenderID {
		isAdmin, err := rs.Directory.IsAdmin(ctx, actor)
		if err != nil {
			return fmt.Errorf("admin check: %w", err)
		}
		if !isAdmin {
			return &AuthorizationError{Actor: actor, TransactionID: tpl.TransactionID, Requires: "sender"}
		}
	}
	return rs.Store.SetTemplateActive(ctx, id, false)
}

// History returns a template's execution records, newest first.
func (rs *RecurringService) History(ctx context.Context, id TemplateID) ([]ExecutionRecord, error) {
	return rs.Store.ListExecutions(ctx, id)
}

// =============================================================================
// EXECUTE DUE - The daily batch
// =============================================================================

// RunSummary aggregates one ExecuteDue invocation.
type RunSummary struct {
	Due       int
	Completed int
	Failed    int
	Skipped   int
}

// ExecuteDue runs every active template that is due today. Individual
// outcomes never stop the run; each failure is recorded and the loop
// continues. Safe to invoke more than once per day.
func (rs *RecurringService) ExecuteDue(ctx context.Context) (RunSummary, error) {
	started := rs.now()
	today := DayOf(started)

	templates, err := rs.Store.ListActiveTemplates(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("list templates: %w", err)
	}

	var summary RunSummary
	for _, tpl := range templates {
		last, err := rs.Store.LastExecution(ctx, tpl.ID)
		if err != nil {
			rs.Logger.Error().Err(err).Str("template", string(tpl.ID)).Msg("history lookup failed")
			summary.Failed++
			continue
		}
		var lastRun time.Time
		if last != nil {
			lastRun = last.ExecutionDate
		}
		if !tpl.Interval.Due(lastRun, today) {
			continue
		}
		summary.Due++

		switch err := rs.executeOne(ctx, &tpl, today); {
		case err == nil:
			summary.Completed++
		case errors.Is(err, ErrDuplicateExecution):
			// A concurrent trigger got there first. Not a failure.
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	elapsed := rs.now().Sub(started)
	rs.Metrics.recurringRun(elapsed.Seconds())
	rs.Logger.Info().
		Int("templates", len(templates)).
		Int("due", summary.Due).
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Dur("elapsed", elapsed).
		Msg("recurring run finished")
	return summary, nil
}

// executeOne attempts a single template. Pre-checks that fail write a
// FAILED record without touching balances; a passing attempt debits,
// credits and records COMPLETED in one unit of work.
func (rs *RecurringService) executeOne(ctx context.Context, tpl *RecurringTemplate, today time.Time) error {
	if reason, err := rs.precheck(ctx, tpl); err != nil {
		return err
	} else if reason != "" {
		return rs.recordFailure(ctx, tpl, today, reason)
	}

	err := rs.Store.WithTx(ctx, func(st Store) error {
		if err := st.Debit(ctx, tpl.SenderID, tpl.Amount); err != nil {
			return err
		}
		if err := st.Credit(ctx, tpl.ReceiverID, tpl.Amount); err != nil {
			return err
		}
		return st.InsertExecution(ctx, &ExecutionRecord{
			ID:            NewExecutionID(),
			TemplateID:    tpl.ID,
			ExecutionDate: today,
			Outcome:       OutcomeCompleted,
			CreatedAt:     rs.now(),
		})
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateExecution):
		return err
	default:
		rs.Logger.Error().Err(err).Str("template", string(tpl.ID)).Msg("recurring execution failed")
		return rs.recordFailure(ctx, tpl, today, err.Error())
	}

	rs.Metrics.recurringExecution(OutcomeCompleted)
	rs.notify(ctx, tpl.SenderID, EventRecurringExecuted, tpl, "")
	rs.notify(ctx, tpl.ReceiverID, EventRecurringExecuted, tpl, "")
	return nil
}

// precheck verifies both parties may transact and the sender can cover the
// amount. Returns a non-empty reason when the attempt must be recorded as
// FAILED, or an error for store problems.
func (rs *RecurringService) precheck(ctx context.Context, tpl *RecurringTemplate) (string, error) {
	authorized, err := rs.Directory.IsAuthorizedToTransact(ctx, tpl.SenderID)
	if err != nil {
		return "", fmt.Errorf("sender check: %w", err)
	}
	if !authorized {
		return "sender not authorized to transact", nil
	}
	eligible, err := rs.Directory.IsEligibleToReceive(ctx, tpl.ReceiverID)
	if err != nil {
		return "", fmt.Errorf("receiver check: %w", err)
	}
	if !eligible {
		return "receiver not eligible to receive", nil
	}
	sender, err := rs.Store.GetAccount(ctx, tpl.SenderID)
	if err != nil {
		return "", fmt.Errorf("sender balance: %w", err)
	}
	if sender.Available().LessThan(tpl.Amount) {
		return fmt.Sprintf("insufficient funds: available %s, required %s",
			sender.Available().StringFixed(AmountPrecision),
			tpl.Amount.StringFixed(AmountPrecision)), nil
	}
	return "", nil
}

// recordFailure appends a FAILED record and notifies the sender. Returns
// an error so the caller counts the attempt as failed (or skipped when a
// record for today already exists).
func (rs *RecurringService) recordFailure(ctx context.Context, tpl *RecurringTemplate, today time.Time, reason string) error {
	rec := &ExecutionRecord{
		ID:            NewExecutionID(),
		TemplateID:    tpl.ID,
		ExecutionDate: today,
		Outcome:       OutcomeFailed,
		Reason:        reason,
		CreatedAt:     rs.now(),
	}
	if err := rs.Store.InsertExecution(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateExecution) {
			return err
		}
		rs.Logger.Error().Err(err).Str("template", string(tpl.ID)).Msg("could not record failed execution")
		return err
	}
	rs.Metrics.recurringExecution(OutcomeFailed)
	rs.notify(ctx, tpl.SenderID, EventRecurringFailed, tpl, reason)
	return fmt.Errorf("recurring execution failed: %s", reason)
}

func (rs *RecurringService) notify(ctx context.Context, account AccountID, kind EventKind, tpl *RecurringTemplate, reason string) {
	if rs.Notifier == nil {
		return
	}
	payload := map[string]string{
		"template_id": string(tpl.ID),
		"amount":      tpl.Amount.StringFixed(AmountPrecision),
		"interval":    string(tpl.Interval),
	}
	if reason != "" {
		payload["reason"] = reason
	}
	_ = rs.Notifier.Notify(ctx, account, kind, payload)
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the caller-facing surface. These decouple the
  domain model from the wire contract: amounts cross the wire as fixed
  two-decimal strings, times as RFC3339.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

VALIDATION:
  Validation lives in the engine, not here. DTOs are pure data carriers;
  handlers only decode, delegate and encode.

SEE ALSO:
  - handlers.go: uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

type CreateAccountRequest struct {
	ID      string          `json:"id"`
	Balance decimal.Decimal `json:"balance"`
	Status  string          `json:"status,omitempty"`
}

type AccountDTO struct {
	ID        string `json:"id"`
	Balance   string `json:"balance"`
	Reserved  string `json:"reserved"`
	Available string `json:"available"`
	Status    string `json:"status"`
}

func toAccountDTO(a *wallet.Account) AccountDTO {
	return AccountDTO{
		ID:        string(a.ID),
		Balance:   a.Balance.StringFixed(wallet.AmountPrecision),
		Reserved:  a.Reserved.StringFixed(wallet.AmountPrecision),
		Available: a.Available().StringFixed(wallet.AmountPrecision),
		Status:    string(a.Status),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type CreateTransactionRequest struct {
	SenderID    string          `json:"sender_id"`
	ReceiverID  string          `json:"receiver_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Currency    string          `json:"currency,omitempty"`
}

// ActorRequest identifies who performs a lifecycle action.
type ActorRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
}

type TransactionDTO struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	ReceiverID  string    `json:"receiver_id"`
	Amount      string    `json:"amount"`
	Status      string    `json:"status"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	TemplateID  string    `json:"template_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTransactionDTO(tx *wallet.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(tx.ID),
		SenderID:    string(tx.SenderID),
		ReceiverID:  string(tx.ReceiverID),
		Amount:      tx.Amount.StringFixed(wallet.AmountPrecision),
		Status:      string(tx.Status),
		Category:    tx.Category,
		Description: tx.Description,
		Currency:    tx.Currency,
		TemplateID:  string(tx.TemplateID),
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
}

func toTransactionDTOs(txs []wallet.Transaction) []TransactionDTO {
	result := make([]TransactionDTO, 0, len(txs))
	for i := range txs {
		result = append(result, toTransactionDTO(&txs[i]))
	}
	return result
}

// =============================================================================
// RECURRING
// =============================================================================

type RegisterRecurringRequest struct {
	TransactionID string `json:"transaction_id"`
	ActorID       string `json:"actor_id"`
	Interval      string `json:"interval"`
}

type TemplateDTO struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	SenderID      string    `json:"sender_id"`
	ReceiverID    string    `json:"receiver_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency,omitempty"`
	Interval      string    `json:"interval"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

func toTemplateDTO(tpl *wallet.RecurringTemplate) TemplateDTO {
	return TemplateDTO{
		ID:            string(tpl.ID),
		TransactionID: string(tpl.TransactionID),
		SenderID:      string(tpl.SenderID),
		ReceiverID:    string(tpl.ReceiverID),
		Amount:        tpl.Amount.StringFixed(wallet.AmountPrecision),
		Currency:      tpl.Currency,
		Interval:      string(tpl.Interval),
		Active:        tpl.Active,
		CreatedAt:     tpl.CreatedAt,
	}
}

type ExecutionDTO struct {
	ID            string `json:"id"`
	TemplateID    string `json:"template_id"`
	ExecutionDate string `json:"execution_date"`
	Outcome       string `json:"outcome"`
	Reason        string `json:"reason,omitempty"`
}

func toExecutionDTOs(recs []wallet.ExecutionRecord) []ExecutionDTO {
	result := make([]ExecutionDTO, 0, len(recs))
	for _, rec := range recs {
		result = append(result, ExecutionDTO{
			ID:            string(rec.ID),
			TemplateID:    string(rec.TemplateID),
			ExecutionDate: rec.ExecutionDate.Format("2006-01-02"),
			Outcome:       string(rec.Outcome),
			Reason:        rec.Reason,
		})
	}
	return result
}

type RunSummaryDTO struct {
	Due       int `json:"due"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorDTO struct {
	Error string `json:"error"`
}

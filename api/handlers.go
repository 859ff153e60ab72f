/*
handlers.go - HTTP handlers for the wallet engine

PURPOSE:
  Thin JSON adapters over the engine services. Each handler decodes the
  request, delegates to wallet.Service / wallet.RecurringService, and
  encodes the result. No business logic lives here - validation,
  authorization and balance rules are all enforced by the engine.

ERROR MAPPING:
  wallet.IsNotFound       -> 404
  wallet.IsAuthorization  -> 403
  wallet.IsRetryable      -> 409 (safe to retry the same request)
  wallet.IsClientError    -> 422 (a different request might succeed)
  anything else           -> 500 (compensation already ran in the engine)

SEE ALSO:
  - server.go: route wiring
  - wallet/service.go: the operations these expose
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/warp/wallet-engine/wallet"
)

// Handler exposes the engine over HTTP.
type Handler struct {
	Service   *wallet.Service
	Recurring *wallet.RecurringService
	Store     wallet.Store
	Logger    zerolog.Logger
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreateAccount seeds an account. Account lifecycle is owned by the
// accounts subsystem in production; this endpoint exists so a standalone
// deployment can be exercised.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status := wallet.AccountStatus(req.Status)
	if status == "" {
		status = wallet.AccountActive
	}
	account := wallet.Account{
		ID:        wallet.AccountID(req.ID),
		Balance:   req.Balance.Round(wallet.AmountPrecision),
		Status:    status,
		CreatedAt: time.Now(),
	}
	if err := h.Store.CreateAccount(r.Context(), account); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(&account))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := wallet.AccountID(chi.URLParam(r, "id"))
	account, err := h.Store.GetAccount(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// ListOutgoing returns the account's sent transactions in one status.
func (h *Handler) ListOutgoing(w http.ResponseWriter, r *http.Request) {
	id := wallet.AccountID(chi.URLParam(r, "id"))
	status := wallet.Status(r.URL.Query().Get("status"))
	txs, err := h.Service.ListOutgoing(r.Context(), status, id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// ListIncoming returns the account's received transactions in one status.
func (h *Handler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	id := wallet.AccountID(chi.URLParam(r, "id"))
	status := wallet.Status(r.URL.Query().Get("status"))
	txs, err := h.Service.ListIncoming(r.Context(), status, id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// =============================================================================
// TRANSACTION LIFECYCLE
// =============================================================================

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := h.Service.Create(r.Context(), wallet.CreateInput{
		Sender:      wallet.AccountID(req.SenderID),
		Receiver:    wallet.AccountID(req.ReceiverID),
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Currency:    req.Currency,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := wallet.TransactionID(chi.URLParam(r, "id"))
	tx, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

func (h *Handler) ConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(id wallet.TransactionID, actor wallet.AccountID, _ string) (*wallet.Transaction, error) {
		return h.Service.Confirm(r.Context(), id, actor)
	})
}

func (h *Handler) AcceptTransaction(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(id wallet.TransactionID, actor wallet.AccountID, _ string) (*wallet.Transaction, error) {
		return h.Service.Accept(r.Context(), id, actor)
	})
}

func (h *Handler) DeclineTransaction(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(id wallet.TransactionID, actor wallet.AccountID, reason string) (*wallet.Transaction, error) {
		return h.Service.Decline(r.Context(), id, actor, reason)
	})
}

func (h *Handler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(id wallet.TransactionID, actor wallet.AccountID, _ string) (*wallet.Transaction, error) {
		return h.Service.Cancel(r.Context(), id, actor)
	})
}

func (h *Handler) DenyTransaction(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(id wallet.TransactionID, actor wallet.AccountID, _ string) (*wallet.Transaction, error) {
		return h.Service.AdminDeny(r.Context(), id, actor)
	})
}

func (h *Handler) lifecycle(
	w http.ResponseWriter,
	r *http.Request,
	op func(wallet.TransactionID, wallet.AccountID, string) (*wallet.Transaction, error),
) {
	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := wallet.TransactionID(chi.URLParam(r, "id"))
	tx, err := op(id, wallet.AccountID(req.ActorID), req.Reason)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// =============================================================================
// RECURRING
// =============================================================================

func (h *Handler) RegisterRecurring(w http.ResponseWriter, r *http.Request) {
	var req RegisterRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tpl, err := h.Recurring.Register(r.Context(),
		wallet.TransactionID(req.TransactionID),
		wallet.AccountID(req.ActorID),
		wallet.Interval(req.Interval))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateDTO(tpl))
}

func (h *Handler) DeactivateRecurring(w http.ResponseWriter, r *http.Request) {
	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := wallet.TemplateID(chi.URLParam(r, "id"))
	if err := h.Recurring.Deactivate(r.Context(), id, wallet.AccountID(req.ActorID)); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RecurringHistory(w http.ResponseWriter, r *http.Request) {
	id := wallet.TemplateID(chi.URLParam(r, "id"))
	records, err := h.Recurring.History(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExecutionDTOs(records))
}

// RunRecurring is the external trigger surface: "run due recurring
// executions now". Idempotent per calendar day.
func (h *Handler) RunRecurring(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Recurring.ExecuteDue(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RunSummaryDTO{
		Due:       summary.Due,
		Completed: summary.Completed,
		Failed:    summary.Failed,
		Skipped:   summary.Skipped,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorDTO{Error: err.Error()})
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case wallet.IsNotFound(err):
		writeError(w, http.StatusNotFound, err)
	case wallet.IsAuthorization(err):
		writeError(w, http.StatusForbidden, err)
	case wallet.IsRetryable(err):
		writeError(w, http.StatusConflict, err)
	case wallet.IsClientError(err):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		h.Logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, err)
	}
}

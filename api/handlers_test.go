package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wallet-engine/wallet"
	walletstore "github.com/warp/wallet-engine/wallet/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := walletstore.NewMemory()
	directory := wallet.NewStoreDirectory(store, "admin")
	logger := zerolog.Nop()

	h := &Handler{
		Service: &wallet.Service{
			Store:     store,
			Directory: directory,
			Notifier:  wallet.NopNotifier{},
			Logger:    logger,
		},
		Recurring: &wallet.RecurringService{
			Store:     store,
			Directory: directory,
			Notifier:  wallet.NopNotifier{},
			Logger:    logger,
		},
		Store:  store,
		Logger: logger,
	}
	srv := httptest.NewServer(NewRouter(h, nil))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func seedAccount(t *testing.T, srv *httptest.Server, id string, balance string) {
	t.Helper()
	resp := post(t, srv, "/api/accounts", map[string]any{"id": id, "balance": balance})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestAccountEndpoints(t *testing.T) {
	srv := newTestServer(t)
	seedAccount(t, srv, "acct-1", "250.50")

	resp := get(t, srv, "/api/accounts/acct-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	account := decode[AccountDTO](t, resp)
	assert.Equal(t, "acct-1", account.ID)
	assert.Equal(t, "250.50", account.Balance)
	assert.Equal(t, "0.00", account.Reserved)
	assert.Equal(t, "250.50", account.Available)
	assert.Equal(t, "active", account.Status)

	resp = get(t, srv, "/api/accounts/acct-ghost")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// TRANSACTION LIFECYCLE
// =============================================================================

func TestTransactionLifecycleOverHTTP(t *testing.T) {
	// The full escrowed exchange: create, confirm, accept, with the hold
	// visible in between.
	srv := newTestServer(t)
	seedAccount(t, srv, "acct-sender", "100")
	seedAccount(t, srv, "acct-receiver", "0")

	resp := post(t, srv, "/api/transactions", map[string]any{
		"sender_id": "acct-sender", "receiver_id": "acct-receiver", "amount": "40",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tx := decode[TransactionDTO](t, resp)
	assert.Equal(t, "pending", tx.Status)
	assert.Equal(t, "40.00", tx.Amount)

	resp = post(t, srv, "/api/transactions/"+tx.ID+"/confirm", map[string]any{"actor_id": "acct-sender"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	confirmed := decode[TransactionDTO](t, resp)
	assert.Equal(t, "awaiting_acceptance", confirmed.Status)

	resp = get(t, srv, "/api/accounts/acct-sender")
	account := decode[AccountDTO](t, resp)
	assert.Equal(t, "40.00", account.Reserved)
	assert.Equal(t, "60.00", account.Available)

	resp = post(t, srv, "/api/transactions/"+tx.ID+"/accept", map[string]any{"actor_id": "acct-receiver"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	completed := decode[TransactionDTO](t, resp)
	assert.Equal(t, "completed", completed.Status)

	resp = get(t, srv, "/api/accounts/acct-receiver")
	account = decode[AccountDTO](t, resp)
	assert.Equal(t, "40.00", account.Balance)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	seedAccount(t, srv, "acct-sender", "10")
	seedAccount(t, srv, "acct-receiver", "0")

	// Self transfer -> 422
	resp := post(t, srv, "/api/transactions", map[string]any{
		"sender_id": "acct-sender", "receiver_id": "acct-sender", "amount": "5",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[ErrorDTO](t, resp)
	assert.NotEmpty(t, body.Error)

	// Unknown sender -> 404
	resp = post(t, srv, "/api/transactions", map[string]any{
		"sender_id": "acct-ghost", "receiver_id": "acct-receiver", "amount": "5",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Wrong actor -> 403
	resp = post(t, srv, "/api/transactions", map[string]any{
		"sender_id": "acct-sender", "receiver_id": "acct-receiver", "amount": "5",
	})
	tx := decode[TransactionDTO](t, resp)
	resp = post(t, srv, "/api/transactions/"+tx.ID+"/confirm", map[string]any{"actor_id": "acct-receiver"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Insufficient funds at confirm -> 422
	resp = post(t, srv, "/api/transactions", map[string]any{
		"sender_id": "acct-sender", "receiver_id": "acct-receiver", "amount": "500",
	})
	big := decode[TransactionDTO](t, resp)
	resp = post(t, srv, "/api/transactions/"+big.ID+"/confirm", map[string]any{"actor_id": "acct-sender"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Malformed body -> 400
	raw, err := http.Post(srv.URL+"/api/transactions", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestAdminDenyOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	seedAccount(t, srv, "acct-sender", "100")
	seedAccount(t, srv, "acct-receiver", "0")
	seedAccount(t, srv, "admin", "0")

	resp := post(t, srv, "/api/transactions", map[string]any{
		"sender_id": "acct-sender", "receiver_id": "acct-receiver", "amount": "10",
	})
	tx := decode[TransactionDTO](t, resp)

	resp = post(t, srv, "/api/transactions/"+tx.ID+"/deny", map[string]any{"actor_id": "acct-receiver"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = post(t, srv, "/api/transactions/"+tx.ID+"/deny", map[string]any{"actor_id": "admin"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	denied := decode[TransactionDTO](t, resp)
	assert.Equal(t, "denied", denied.Status)
}

func TestListingEndpoints(t *testing.T) {
	srv := newTestServer(t)
	seedAccount(t, srv, "acct-sender", "100")
	seedAccount(t, srv, "acct-receiver", "0")

	for i := 0; i < 2; i++ {
		resp := post(t, srv, "/api/transactions", map[string]any{
			"sender_id": "acct-sender", "receiver_id": "acct-receiver", "amount": fmt.Sprintf("%d", 10+i),
		})
		resp.Body.Close()
	}

	resp := get(t, srv, "/api/accounts/acct-sender/outgoing?status=pending")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	outgoing := decode[[]TransactionDTO](t, resp)
	assert.Len(t, outgoing, 2)

	resp = get(t, srv, "/api/accounts/acct-receiver/incoming?status=pending")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	incoming := decode[[]TransactionDTO](t, resp)
	assert.Len(t, incoming, 2)
}

// =============================================================================
// RECURRING
// =============================================================================

func TestRecurringOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	seedAccount(t, srv, "acct-sender", "100")
	seedAccount(t, srv, "acct-receiver", "0")

	resp := post(t, srv, "/api/transactions", map[string]any{
		"sender_id": "acct-sender", "receiver_id": "acct-receiver", "amount": "15",
	})
	tx := decode[TransactionDTO](t, resp)

	resp = post(t, srv, "/api/recurring", map[string]any{
		"transaction_id": tx.ID, "actor_id": "acct-sender", "interval": "daily",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tpl := decode[TemplateDTO](t, resp)
	assert.Equal(t, "daily", tpl.Interval)
	assert.True(t, tpl.Active)

	// Bad interval -> 422
	resp = post(t, srv, "/api/recurring", map[string]any{
		"transaction_id": tx.ID, "actor_id": "acct-sender", "interval": "hourly",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Trigger the daily run
	resp = post(t, srv, "/api/recurring/run", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[RunSummaryDTO](t, resp)
	assert.Equal(t, 1, summary.Due)
	assert.Equal(t, 1, summary.Completed)

	resp = get(t, srv, "/api/accounts/acct-receiver")
	account := decode[AccountDTO](t, resp)
	assert.Equal(t, "15.00", account.Balance)

	resp = get(t, srv, "/api/recurring/"+tpl.ID+"/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[[]ExecutionDTO](t, resp)
	require.Len(t, history, 1)
	assert.Equal(t, "completed", history[0].Outcome)

	// Deactivate and verify the next run finds nothing
	resp = post(t, srv, "/api/recurring/"+tpl.ID+"/deactivate", map[string]any{"actor_id": "acct-sender"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = post(t, srv, "/api/recurring/run", map[string]any{})
	summary = decode[RunSummaryDTO](t, resp)
	assert.Equal(t, 0, summary.Due)
}

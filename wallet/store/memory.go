// Package store provides an in-memory wallet.Store for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/wallet-engine/wallet"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements wallet.Store with a single mutex. The mutex makes every
// primitive trivially serializable; WithTx simulates a unit of work with a
// snapshot that is restored on error.
type Memory struct {
	mu           sync.Mutex
	accounts     map[wallet.AccountID]*wallet.Account
	transactions map[wallet.TransactionID]*wallet.Transaction
	templates    map[wallet.TemplateID]*wallet.RecurringTemplate
	executions   map[wallet.TemplateID][]wallet.ExecutionRecord
}

func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[wallet.AccountID]*wallet.Account),
		transactions: make(map[wallet.TransactionID]*wallet.Transaction),
		templates:    make(map[wallet.TemplateID]*wallet.RecurringTemplate),
		executions:   make(map[wallet.TemplateID][]wallet.ExecutionRecord),
	}
}

// =============================================================================
// BALANCE PRIMITIVES
// =============================================================================

func (m *Memory) GetAccount(_ context.Context, id wallet.AccountID) (*wallet.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAccountLocked(id)
}

func (m *Memory) CreateAccount(_ context.Context, account wallet.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := account
	m.accounts[account.ID] = &a
	return nil
}

func (m *Memory) Reserve(_ context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserveLocked(id, amount)
}

func (m *Memory) Release(_ context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseLocked(id, amount)
}

func (m *Memory) Settle(_ context.Context, sender, receiver wallet.AccountID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settleLocked(sender, receiver, amount)
}

func (m *Memory) Credit(_ context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creditLocked(id, amount)
}

func (m *Memory) Debit(_ context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debitLocked(id, amount)
}

func (m *Memory) getAccountLocked(id wallet.AccountID) (*wallet.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, wallet.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *Memory) reserveLocked(id wallet.AccountID, amount decimal.Decimal) error {
	account, ok := m.accounts[id]
	if !ok {
		return wallet.ErrNotFound
	}
	if account.Available().LessThan(amount) {
		return &wallet.InsufficientFundsError{
			AccountID: id,
			Available: account.Available(),
			Requested: amount,
		}
	}
	account.Reserved = account.Reserved.Add(amount)
	return nil
}

func (m *Memory) releaseLocked(id wallet.AccountID, amount decimal.Decimal) error {
	account, ok := m.accounts[id]
	if !ok {
		return wallet.ErrNotFound
	}
	if account.Reserved.LessThan(amount) {
		return wallet.ErrInvariantViolation
	}
	account.Reserved = account.Reserved.Sub(amount)
	return nil
}

func (m *Memory) settleLocked(sender, receiver wallet.AccountID, amount decimal.Decimal) error {
	from, ok := m.accounts[sender]
	if !ok {
		return wallet.ErrNotFound
	}
	to, ok := m.accounts[receiver]
	if !ok {
		return wallet.ErrNotFound
	}
	// Settlement consumes a hold; a missing hold means a prior bug.
	if from.Reserved.LessThan(amount) || from.Balance.LessThan(amount) {
		return wallet.ErrInvariantViolation
	}
	from.Balance = from.Balance.Sub(amount)
	from.Reserved = from.Reserved.Sub(amount)
	to.Balance = to.Balance.Add(amount)
	return nil
}

func (m *Memory) creditLocked(id wallet.AccountID, amount decimal.Decimal) error {
	account, ok := m.accounts[id]
	if !ok {
		return wallet.ErrNotFound
	}
	account.Balance = account.Balance.Add(amount)
	return nil
}

func (m *Memory) debitLocked(id wallet.AccountID, amount decimal.Decimal) error {
	account, ok := m.accounts[id]
	if !ok {
		return wallet.ErrNotFound
	}
	if account.Available().LessThan(amount) {
		return &wallet.InsufficientFundsError{
			AccountID: id,
			Available: account.Available(),
			Requested: amount,
		}
	}
	account.Balance = account.Balance.Sub(amount)
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) InsertTransaction(_ context.Context, tx *wallet.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTransactionLocked(tx)
}

func (m *Memory) GetTransaction(_ context.Context, id wallet.TransactionID) (*wallet.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getTransactionLocked(id)
}

func (m *Memory) UpdateStatus(_ context.Context, id wallet.TransactionID, from, to wallet.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateStatusLocked(id, from, to)
}

func (m *Memory) ListBySender(_ context.Context, status wallet.Status, sender wallet.AccountID) ([]wallet.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked(func(tx *wallet.Transaction) bool {
		return tx.Status == status && tx.SenderID == sender
	}), nil
}

func (m *Memory) ListByReceiver(_ context.Context, status wallet.Status, receiver wallet.AccountID) ([]wallet.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked(func(tx *wallet.Transaction) bool {
		return tx.Status == status && tx.ReceiverID == receiver
	}), nil
}

func (m *Memory) insertTransactionLocked(tx *wallet.Transaction) error {
	copied := *tx
	m.transactions[tx.ID] = &copied
	return nil
}

func (m *Memory) getTransactionLocked(id wallet.TransactionID) (*wallet.Transaction, error) {
	tx, ok := m.transactions[id]
	if !ok {
		return nil, wallet.ErrNotFound
	}
	copied := *tx
	return &copied, nil
}

func (m *Memory) updateStatusLocked(id wallet.TransactionID, from, to wallet.Status) error {
	tx, ok := m.transactions[id]
	if !ok {
		return wallet.ErrNotFound
	}
	if !wallet.CanTransition(from, to) {
		return wallet.ErrInvalidTransition
	}
	if tx.Status != from {
		return wallet.ErrConcurrentModification
	}
	tx.Status = to
	return nil
}

func (m *Memory) listLocked(match func(*wallet.Transaction) bool) []wallet.Transaction {
	var result []wallet.Transaction
	for _, tx := range m.transactions {
		if match(tx) {
			result = append(result, *tx)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// =============================================================================
// RECURRING
// =============================================================================

func (m *Memory) InsertTemplate(_ context.Context, tpl *wallet.RecurringTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *tpl
	m.templates[tpl.ID] = &copied
	return nil
}

func (m *Memory) GetTemplate(_ context.Context, id wallet.TemplateID) (*wallet.RecurringTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[id]
	if !ok {
		return nil, wallet.ErrNotFound
	}
	copied := *tpl
	return &copied, nil
}

func (m *Memory) ListActiveTemplates(_ context.Context) ([]wallet.RecurringTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []wallet.RecurringTemplate
	for _, tpl := range m.templates {
		if tpl.Active {
			result = append(result, *tpl)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) SetTemplateActive(_ context.Context, id wallet.TemplateID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[id]
	if !ok {
		return wallet.ErrNotFound
	}
	tpl.Active = active
	return nil
}

func (m *Memory) LastExecution(_ context.Context, id wallet.TemplateID) (*wallet.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastExecutionLocked(id)
}

func (m *Memory) InsertExecution(_ context.Context, rec *wallet.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertExecutionLocked(rec)
}

func (m *Memory) ListExecutions(_ context.Context, id wallet.TemplateID) ([]wallet.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := m.executions[id]
	result := make([]wallet.ExecutionRecord, len(records))
	copy(result, records)
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExecutionDate.After(result[j].ExecutionDate)
	})
	return result, nil
}

func (m *Memory) lastExecutionLocked(id wallet.TemplateID) (*wallet.ExecutionRecord, error) {
	records := m.executions[id]
	if len(records) == 0 {
		return nil, nil
	}
	latest := records[0]
	for _, rec := range records[1:] {
		if rec.ExecutionDate.After(latest.ExecutionDate) {
			latest = rec
		}
	}
	return &latest, nil
}

func (m *Memory) insertExecutionLocked(rec *wallet.ExecutionRecord) error {
	day := wallet.DayOf(rec.ExecutionDate)
	for _, existing := range m.executions[rec.TemplateID] {
		if wallet.DayOf(existing.ExecutionDate).Equal(day) {
			return wallet.ErrDuplicateExecution
		}
	}
	copied := *rec
	copied.ExecutionDate = day
	m.executions[rec.TemplateID] = append(m.executions[rec.TemplateID], copied)
	return nil
}

// =============================================================================
// UNITS OF WORK - Snapshot and restore
// =============================================================================

// WithTx executes fn under the store lock against an unlocked view. On
// error the pre-transaction snapshot is restored, giving all-or-nothing
// semantics.
func (m *Memory) WithTx(ctx context.Context, fn func(wallet.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts     map[wallet.AccountID]*wallet.Account
	transactions map[wallet.TransactionID]*wallet.Transaction
	templates    map[wallet.TemplateID]*wallet.RecurringTemplate
	executions   map[wallet.TemplateID][]wallet.ExecutionRecord
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		accounts:     make(map[wallet.AccountID]*wallet.Account, len(m.accounts)),
		transactions: make(map[wallet.TransactionID]*wallet.Transaction, len(m.transactions)),
		templates:    make(map[wallet.TemplateID]*wallet.RecurringTemplate, len(m.templates)),
		executions:   make(map[wallet.TemplateID][]wallet.ExecutionRecord, len(m.executions)),
	}
	for id, a := range m.accounts {
		copied := *a
		s.accounts[id] = &copied
	}
	for id, tx := range m.transactions {
		copied := *tx
		s.transactions[id] = &copied
	}
	for id, tpl := range m.templates {
		copied := *tpl
		s.templates[id] = &copied
	}
	for id, recs := range m.executions {
		s.executions[id] = append([]wallet.ExecutionRecord{}, recs...)
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.accounts = s.accounts
	m.transactions = s.transactions
	m.templates = s.templates
	m.executions = s.executions
}

// txView routes Store calls to the parent's unlocked methods; the parent
// holds its lock for the duration of WithTx.
type txView struct {
	parent *Memory
}

func (v *txView) GetAccount(_ context.Context, id wallet.AccountID) (*wallet.Account, error) {
	return v.parent.getAccountLocked(id)
}

func (v *txView) CreateAccount(_ context.Context, account wallet.Account) error {
	a := account
	v.parent.accounts[account.ID] = &a
	return nil
}

func (v *txView) Reserve(_ context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	return v.parent.reserveLocked(id, amount)
}

func (v *txView) Release(_ context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	return v.parent.releaseLocked(id, amount)
}

func (v *txView) Settle(_ context.Context, sender, receiver wallet.AccountID, amount decimal.Decimal) error {
	return v.parent.settleLocked(sender, receiver, amount)
}

func (v *txView) Credit(_ context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	return v.parent.creditLocked(id, amount)
}

func (v *txView) Debit(_ context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	return v.parent.debitLocked(id, amount)
}

func (v *txView) InsertTransaction(_ context.Context, tx *wallet.Transaction) error {
	return v.parent.insertTransactionLocked(tx)
}

func (v *txView) GetTransaction(_ context.Context, id wallet.TransactionID) (*wallet.Transaction, error) {
	return v.parent.getTransactionLocked(id)
}

func (v *txView) UpdateStatus(_ context.Context, id wallet.TransactionID, from, to wallet.Status) error {
	return v.parent.updateStatusLocked(id, from, to)
}

func (v *txView) ListBySender(_ context.Context, status wallet.Status, sender wallet.AccountID) ([]wallet.Transaction, error) {
	return v.parent.listLocked(func(tx *wallet.Transaction) bool {
		return tx.Status == status && tx.SenderID == sender
	}), nil
}

func (v *txView) ListByReceiver(_ context.Context, status wallet.Status, receiver wallet.AccountID) ([]wallet.Transaction, error) {
	return v.parent.listLocked(func(tx *wallet.Transaction) bool {
		return tx.Status == status && tx.ReceiverID == receiver
	}), nil
}

func (v *txView) InsertTemplate(_ context.Context, tpl *wallet.RecurringTemplate) error {
	copied := *tpl
	v.parent.templates[tpl.ID] = &copied
	return nil
}

func (v *txView) GetTemplate(_ context.Context, id wallet.TemplateID) (*wallet.RecurringTemplate, error) {
	tpl, ok := v.parent.templates[id]
	if !ok {
		return nil, wallet.ErrNotFound
	}
	copied := *tpl
	return &copied, nil
}

func (v *txView) ListActiveTemplates(_ context.Context) ([]wallet.RecurringTemplate, error) {
	var result []wallet.RecurringTemplate
	for _, tpl := range v.parent.templates {
		if tpl.Active {
			result = append(result, *tpl)
		}
	}
	return result, nil
}

func (v *txView) SetTemplateActive(_ context.Context, id wallet.TemplateID, active bool) error {
	tpl, ok := v.parent.templates[id]
	if !ok {
		return wallet.ErrNotFound
	}
	tpl.Active = active
	return nil
}

func (v *txView) LastExecution(_ context.Context, id wallet.TemplateID) (*wallet.ExecutionRecord, error) {
	return v.parent.lastExecutionLocked(id)
}

func (v *txView) InsertExecution(_ context.Context, rec *wallet.ExecutionRecord) error {
	return v.parent.insertExecutionLocked(rec)
}

func (v *txView) ListExecutions(_ context.Context, id wallet.TemplateID) ([]wallet.ExecutionRecord, error) {
	records := v.parent.executions[id]
	result := make([]wallet.ExecutionRecord, len(records))
	copy(result, records)
	return result, nil
}

// WithTx on a view reuses the enclosing unit of work.
func (v *txView) WithTx(ctx context.Context, fn func(wallet.Store) error) error {
	return fn(v)
}

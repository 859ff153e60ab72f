/*
Package sqlite provides the SQLite-backed wallet.Store.

PURPOSE:
  Production persistence for accounts, transactions, recurring templates
  and execution records. The same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

BALANCE PRIMITIVES AS GUARDED UPDATES:
  Each primitive is a single UPDATE whose WHERE clause carries the
  invariant it must preserve, e.g.

    UPDATE accounts SET reserved = reserved + ?
    WHERE id = ? AND balance - reserved >= ?

  Zero rows affected means the guard failed; a follow-up read tells
  not-found apart from insufficient funds. CHECK constraints on the table
  back the guards up - a bug that slips past them aborts the statement
  instead of corrupting balances.

AMOUNT STORAGE:
  Amounts are stored as INTEGER minor units (cents) so SQL arithmetic is
  exact. Conversion to and from decimal.Decimal happens at the boundary.

LOCK ORDERING:
  Settle updates two account rows inside one transaction, always in
  ascending account-id order, so concurrent settlements between the same
  pair in opposite roles cannot deadlock.

CONCURRENCY:
  The database is opened in WAL mode with a single writer connection
  (SetMaxOpenConns(1)); SQLite serializes writers anyway, and one
  connection also makes ":memory:" safe for tests.

IDEMPOTENCY:
  A UNIQUE index on (template_id, execution_date) enforces at most one
  recurring execution record per template per calendar day. The unique
  violation maps to wallet.ErrDuplicateExecution.

SEE ALSO:
  - wallet/store.go: interface contracts
  - wallet/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/wallet-engine/wallet"
)

// Store implements wallet.Store on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer connection: SQLite serializes writers, and a single
	// connection keeps ":memory:" databases coherent across goroutines.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		reserved INTEGER NOT NULL DEFAULT 0 CHECK (reserved >= 0),
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		CHECK (reserved <= balance)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL REFERENCES accounts(id),
		receiver_id TEXT NOT NULL REFERENCES accounts(id),
		amount INTEGER NOT NULL CHECK (amount > 0),
		status TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT '',
		template_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Lookup of pending/awaiting work per party
	CREATE INDEX IF NOT EXISTS idx_transactions_status_sender
		ON transactions(status, sender_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_status_receiver
		ON transactions(status, receiver_id);

	CREATE TABLE IF NOT EXISTS recurring_templates (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		sender_id TEXT NOT NULL REFERENCES accounts(id),
		receiver_id TEXT NOT NULL REFERENCES accounts(id),
		amount INTEGER NOT NULL CHECK (amount > 0),
		currency TEXT NOT NULL DEFAULT '',
		interval TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_templates_active
		ON recurring_templates(active);

	-- Append-only audit trail of execution attempts
	CREATE TABLE IF NOT EXISTS recurring_executions (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL REFERENCES recurring_templates(id),
		execution_date TEXT NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- CRITICAL: at most one execution attempt per template per calendar day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_executions_template_date
		ON recurring_executions(template_id, execution_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// AMOUNT AND TIME ENCODING
// =============================================================================

const (
	timeFormat = time.RFC3339Nano
	dayFormat  = "2006-01-02"
)

func toCents(d decimal.Decimal) int64 {
	return d.Round(wallet.AmountPrecision).Shift(wallet.AmountPrecision).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -wallet.AmountPrecision)
}

// querier is satisfied by both *sql.DB and *sql.Tx so the same statement
// helpers serve autocommit calls and units of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// UNITS OF WORK
// =============================================================================

// WithTx runs fn inside a SQL transaction.
func (s *Store) WithTx(ctx context.Context, fn func(wallet.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&txStore{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// txStore is the Store view inside a transaction.
type txStore struct {
	q *sql.Tx
}

// WithTx inside a transaction reuses the enclosing unit of work.
func (t *txStore) WithTx(ctx context.Context, fn func(wallet.Store) error) error {
	return fn(t)
}

// =============================================================================
// BALANCE PRIMITIVES
// =============================================================================

func (s *Store) GetAccount(ctx context.Context, id wallet.AccountID) (*wallet.Account, error) {
	return getAccount(ctx, s.db, id)
}

func (t *txStore) GetAccount(ctx context.Context, id wallet.AccountID) (*wallet.Account, error) {
	return getAccount(ctx, t.q, id)
}

func (s *Store) CreateAccount(ctx context.Context, account wallet.Account) error {
	return createAccount(ctx, s.db, account)
}

func (t *txStore) CreateAccount(ctx context.Context, account wallet.Account) error {
	return createAccount(ctx, t.q, account)
}

func (s *Store) Reserve(ctx context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	return reserve(ctx, s.db, id, amount)
}

func (t *txStore) Reserve(ctx context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	return reserve(ctx, t.q, id, amount)
}

func (s *Store) Release(ctx context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	return release(ctx, s.db, id, amount)
}

func (t *txStore) Release(ctx context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	return release(ctx, t.q, id, amount)
}

// Settle on the base store wraps itself in a transaction: it touches two
// rows and must be all-or-nothing.
func (s *Store) Settle(ctx context.Context, sender, receiver wallet.AccountID, amount decimal.Decimal) error {
	return s.WithTx(ctx, func(st wallet.Store) error {
		return st.Settle(ctx, sender, receiver, amount)
	})
}

func (t *txStore) Settle(ctx context.Context, sender, receiver wallet.AccountID, amount decimal.Decimal) error {
	return settle(ctx, t.q, sender, receiver, amount)
}

func (s *Store) Credit(ctx context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	return credit(ctx, s.db, id, amount)
}

func (t *txStore) Credit(ctx context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	return credit(ctx, t.q, id, amount)
}

func (s *Store) Debit(ctx context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	return debit(ctx, s.db, id, amount)
}

func (t *txStore) Debit(ctx context.Context, id wallet.AccountID, amount decimal.Decimal) error {
	return debit(ctx, t.q, id, amount)
}

func getAccount(ctx context.Context, q querier, id wallet.AccountID) (*wallet.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, balance, reserved, status, created_at FROM accounts WHERE id = ?`, string(id))

	var (
		account           wallet.Account
		balance, reserved int64
		createdAt         string
	)
	err := row.Scan(&account.ID, &balance, &reserved, &account.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wallet.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	account.Balance = fromCents(balance)
	account.Reserved = fromCents(reserved)
	account.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return &account, nil
}

func createAccount(ctx context.Context, q querier, account wallet.Account) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO accounts (id, balance, reserved, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(account.ID), toCents(account.Balance), toCents(account.Reserved),
		string(account.Status), account.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func reserve(ctx context.Context, q querier, id wallet.AccountID, amount decimal.Decimal) error {
	cents := toCents(amount)
	res, err := q.ExecContext(ctx,
		`UPDATE accounts SET reserved = reserved + ? WHERE id = ? AND balance - reserved >= ?`,
		cents, string(id), cents)
	if err != nil {
		return fmt.Errorf("reserve: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return nil
	}
	account, err := getAccount(ctx, q, id)
	if err != nil {
		return err
	}
	return &wallet.InsufficientFundsError{
		AccountID: id,
		Available: account.Available(),
		Requested: amount,
	}
}

func release(ctx context.Context, q querier, id wallet.AccountID, amount decimal.Decimal) error {
	cents := toCents(amount)
	res, err := q.ExecContext(ctx,
		`UPDATE accounts SET reserved = reserved - ? WHERE id = ? AND reserved >= ?`,
		cents, string(id), cents)
	if err != nil {
		return fmt.Errorf("release: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return nil
	}
	if _, err := getAccount(ctx, q, id); err != nil {
		return err
	}
	// Row exists but holds less than amount: a prior bug, not recoverable.
	return wallet.ErrInvariantViolation
}

func settle(ctx context.Context, q querier, sender, receiver wallet.AccountID, amount decimal.Decimal) error {
	cents := toCents(amount)

	debitSender := func() error {
		res, err := q.ExecContext(ctx,
			`UPDATE accounts SET balance = balance - ?, reserved = reserved - ?
			 WHERE id = ? AND reserved >= ? AND balance >= ?`,
			cents, cents, string(sender), cents, cents)
		if err != nil {
			return fmt.Errorf("settle sender: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected != 1 {
			if _, err := getAccount(ctx, q, sender); err != nil {
				return err
			}
			return wallet.ErrInvariantViolation
		}
		return nil
	}
	creditReceiver := func() error {
		res, err := q.ExecContext(ctx,
			`UPDATE accounts SET balance = balance + ? WHERE id = ?`,
			cents, string(receiver))
		if err != nil {
			return fmt.Errorf("settle receiver: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected != 1 {
			return wallet.ErrNotFound
		}
		return nil
	}

	// Always touch the lower account id first.
	first, second := debitSender, creditReceiver
	if receiver < sender {
		first, second = creditReceiver, debitSender
	}
	if err := first(); err != nil {
		return err
	}
	return second()
}

func credit(ctx context.Context, q querier, id wallet.AccountID, amount decimal.Decimal) error {
	res, err := q.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + ? WHERE id = ?`,
		toCents(amount), string(id))
	if err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected != 1 {
		return wallet.ErrNotFound
	}
	return nil
}

func debit(ctx context.Context, q querier, id wallet.AccountID, amount decimal.Decimal) error {
	cents := toCents(amount)
	res, err := q.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - ? WHERE id = ? AND balance - reserved >= ?`,
		cents, string(id), cents)
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return nil
	}
	account, err := getAccount(ctx, q, id)
	if err != nil {
		return err
	}
	return &wallet.InsufficientFundsError{
		AccountID: id,
		Available: account.Available(),
		Requested: amount,
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) InsertTransaction(ctx context.Context, tx *wallet.Transaction) error {
	return insertTransaction(ctx, s.db, tx)
}

func (t *txStore) InsertTransaction(ctx context.Context, tx *wallet.Transaction) error {
	return insertTransaction(ctx, t.q, tx)
}

func (s *Store) GetTransaction(ctx context.Context, id wallet.TransactionID) (*wallet.Transaction, error) {
	return getTransaction(ctx, s.db, id)
}

func (t *txStore) GetTransaction(ctx context.Context, id wallet.TransactionID) (*wallet.Transaction, error) {
	return getTransaction(ctx, t.q, id)
}

func (s *Store) UpdateStatus(ctx context.Context, id wallet.TransactionID, from, to wallet.Status) error {
	return updateStatus(ctx, s.db, id, from, to)
}

func (t *txStore) UpdateStatus(ctx context.Context, id wallet.TransactionID, from, to wallet.Status) error {
	return updateStatus(ctx, t.q, id, from, to)
}

func (s *Store) ListBySender(ctx context.Context, status wallet.Status, sender wallet.AccountID) ([]wallet.Transaction, error) {
	return listTransactions(ctx, s.db, `sender_id`, status, sender)
}

func (t *txStore) ListBySender(ctx context.Context, status wallet.Status, sender wallet.AccountID) ([]wallet.Transaction, error) {
	return listTransactions(ctx, t.q, `sender_id`, status, sender)
}

func (s *Store) ListByReceiver(ctx context.Context, status wallet.Status, receiver wallet.AccountID) ([]wallet.Transaction, error) {
	return listTransactions(ctx, s.db, `receiver_id`, status, receiver)
}

func (t *txStore) ListByReceiver(ctx context.Context, status wallet.Status, receiver wallet.AccountID) ([]wallet.Transaction, error) {
	return listTransactions(ctx, t.q, `receiver_id`, status, receiver)
}

func insertTransaction(ctx context.Context, q querier, tx *wallet.Transaction) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO transactions
		 (id, sender_id, receiver_id, amount, status, category, description, currency, template_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(tx.ID), string(tx.SenderID), string(tx.ReceiverID), toCents(tx.Amount),
		string(tx.Status), tx.Category, tx.Description, tx.Currency, string(tx.TemplateID),
		tx.CreatedAt.UTC().Format(timeFormat), tx.UpdatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func getTransaction(ctx context.Context, q querier, id wallet.TransactionID) (*wallet.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, sender_id, receiver_id, amount, status, category, description, currency, template_id, created_at, updated_at
		 FROM transactions WHERE id = ?`, string(id))
	tx, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wallet.ErrNotFound
	}
	return tx, err
}

func updateStatus(ctx context.Context, q querier, id wallet.TransactionID, from, to wallet.Status) error {
	if !wallet.CanTransition(from, to) {
		return wallet.ErrInvalidTransition
	}
	res, err := q.ExecContext(ctx,
		`UPDATE transactions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC().Format(timeFormat), string(id), string(from))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return nil
	}
	if _, err := getTransaction(ctx, q, id); err != nil {
		return err
	}
	return wallet.ErrConcurrentModification
}

func listTransactions(ctx context.Context, q querier, party string, status wallet.Status, id wallet.AccountID) ([]wallet.Transaction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, amount, status, category, description, currency, template_id, created_at, updated_at
		 FROM transactions WHERE status = ? AND `+party+` = ? ORDER BY created_at DESC`,
		string(status), string(id))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var result []wallet.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *tx)
	}
	return result, rows.Err()
}

func scanTransaction(scan func(dest ...any) error) (*wallet.Transaction, error) {
	var (
		tx                   wallet.Transaction
		cents                int64
		createdAt, updatedAt string
	)
	err := scan(&tx.ID, &tx.SenderID, &tx.ReceiverID, &cents, &tx.Status,
		&tx.Category, &tx.Description, &tx.Currency, &tx.TemplateID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	tx.Amount = fromCents(cents)
	tx.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	tx.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &tx, nil
}

// =============================================================================
// RECURRING TEMPLATES AND EXECUTIONS
// =============================================================================

func (s *Store) InsertTemplate(ctx context.Context, tpl *wallet.RecurringTemplate) error {
	return insertTemplate(ctx, s.db, tpl)
}

func (t *txStore) InsertTemplate(ctx context.Context, tpl *wallet.RecurringTemplate) error {
	return insertTemplate(ctx, t.q, tpl)
}

func (s *Store) GetTemplate(ctx context.Context, id wallet.TemplateID) (*wallet.RecurringTemplate, error) {
	return getTemplate(ctx, s.db, id)
}

func (t *txStore) GetTemplate(ctx context.Context, id wallet.TemplateID) (*wallet.RecurringTemplate, error) {
	return getTemplate(ctx, t.q, id)
}

func (s *Store) ListActiveTemplates(ctx context.Context) ([]wallet.RecurringTemplate, error) {
	return listActiveTemplates(ctx, s.db)
}

func (t *txStore) ListActiveTemplates(ctx context.Context) ([]wallet.RecurringTemplate, error) {
	return listActiveTemplates(ctx, t.q)
}

func (s *Store) SetTemplateActive(ctx context.Context, id wallet.TemplateID, active bool) error {
	return setTemplateActive(ctx, s.db, id, active)
}

func (t *txStore) SetTemplateActive(ctx context.Context, id wallet.TemplateID, active bool) error {
	return setTemplateActive(ctx, t.q, id, active)
}

func (s *Store) LastExecution(ctx context.Context, id wallet.TemplateID) (*wallet.ExecutionRecord, error) {
	return lastExecution(ctx, s.db, id)
}

func (t *txStore) LastExecution(ctx context.Context, id wallet.TemplateID) (*wallet.ExecutionRecord, error) {
	return lastExecution(ctx, t.q, id)
}

func (s *Store) InsertExecution(ctx context.Context, rec *wallet.ExecutionRecord) error {
	return insertExecution(ctx, s.db, rec)
}

func (t *txStore) InsertExecution(ctx context.Context, rec *wallet.ExecutionRecord) error {
	return insertExecution(ctx, t.q, rec)
}

func (s *Store) ListExecutions(ctx context.Context, id wallet.TemplateID) ([]wallet.ExecutionRecord, error) {
	return listExecutions(ctx, s.db, id)
}

func (t *txStore) ListExecutions(ctx context.Context, id wallet.TemplateID) ([]wallet.ExecutionRecord, error) {
	return listExecutions(ctx, t.q, id)
}

func insertTemplate(ctx context.Context, q querier, tpl *wallet.RecurringTemplate) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO recurring_templates
		 (id, transaction_id, sender_id, receiver_id, amount, currency, interval, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(tpl.ID), string(tpl.TransactionID), string(tpl.SenderID), string(tpl.ReceiverID),
		toCents(tpl.Amount), tpl.Currency, string(tpl.Interval), tpl.Active,
		tpl.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func getTemplate(ctx context.Context, q querier, id wallet.TemplateID) (*wallet.RecurringTemplate, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, transaction_id, sender_id, receiver_id, amount, currency, interval, active, created_at
		 FROM recurring_templates WHERE id = ?`, string(id))
	tpl, err := scanTemplate(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wallet.ErrNotFound
	}
	return tpl, err
}

func listActiveTemplates(ctx context.Context, q querier) ([]wallet.RecurringTemplate, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, transaction_id, sender_id, receiver_id, amount, currency, interval, active, created_at
		 FROM recurring_templates WHERE active = 1 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var result []wallet.RecurringTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *tpl)
	}
	return result, rows.Err()
}

func setTemplateActive(ctx context.Context, q querier, id wallet.TemplateID, active bool) error {
	res, err := q.ExecContext(ctx,
		`UPDATE recurring_templates SET active = ? WHERE id = ?`, active, string(id))
	if err != nil {
		return fmt.Errorf("set template active: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected != 1 {
		return wallet.ErrNotFound
	}
	return nil
}

func scanTemplate(scan func(dest ...any) error) (*wallet.RecurringTemplate, error) {
	var (
		tpl       wallet.RecurringTemplate
		cents     int64
		createdAt string
	)
	err := scan(&tpl.ID, &tpl.TransactionID, &tpl.SenderID, &tpl.ReceiverID,
		&cents, &tpl.Currency, &tpl.Interval, &tpl.Active, &createdAt)
	if err != nil {
		return nil, err
	}
	tpl.Amount = fromCents(cents)
	tpl.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return &tpl, nil
}

func lastExecution(ctx context.Context, q querier, id wallet.TemplateID) (*wallet.ExecutionRecord, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, template_id, execution_date, outcome, reason, created_at
		 FROM recurring_executions WHERE template_id = ?
		 ORDER BY execution_date DESC LIMIT 1`, string(id))
	rec, err := scanExecution(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func insertExecution(ctx context.Context, q querier, rec *wallet.ExecutionRecord) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO recurring_executions (id, template_id, execution_date, outcome, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(rec.ID), string(rec.TemplateID), wallet.DayOf(rec.ExecutionDate).Format(dayFormat),
		string(rec.Outcome), rec.Reason, rec.CreatedAt.UTC().Format(timeFormat))
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return wallet.ErrDuplicateExecution
	}
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

func listExecutions(ctx context.Context, q querier, id wallet.TemplateID) ([]wallet.ExecutionRecord, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, template_id, execution_date, outcome, reason, created_at
		 FROM recurring_executions WHERE template_id = ?
		 ORDER BY execution_date DESC`, string(id))
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var result []wallet.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

func scanExecution(scan func(dest ...any) error) (*wallet.ExecutionRecord, error) {
	var (
		rec            wallet.ExecutionRecord
		day, createdAt string
	)
	err := scan(&rec.ID, &rec.TemplateID, &day, &rec.Outcome, &rec.Reason, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.ExecutionDate, _ = time.Parse(dayFormat, day)
	rec.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return &rec, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const accountColumns = `id::text, borderless_account_id, currency, sort_code, acct_id, swift, iban,
	institution, address, active, created_at`

// LedgerStore implements port.LedgerStore on a pgx pool.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

var _ port.LedgerStore = (*LedgerStore)(nil)

// FindActiveAccount returns the active account for a Wise balance, or nil.
func (s *LedgerStore) FindActiveAccount(ctx context.Context, borderlessAccountID int64, currency string) (*domain.BankAccount, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM bank_accounts
		WHERE borderless_account_id = $1 AND currency = $2 AND active
		LIMIT 1
	`, borderlessAccountID, currency)

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active account: %w", err)
	}
	return acct, nil
}

// ListBankAccounts returns every known account.
func (s *LedgerStore) ListBankAccounts(ctx context.Context) ([]domain.BankAccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM bank_accounts
		ORDER BY borderless_account_id, currency
	`)
	if err != nil {
		return nil, fmt.Errorf("list bank accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.BankAccount
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *acct)
	}
	return out, rows.Err()
}

// CreateBankAccounts inserts discovered accounts, leaving rows that already
// exist for the same (borderless account, currency) untouched.
// It returns how many rows were created.
func (s *LedgerStore) CreateBankAccounts(ctx context.Context, accounts []domain.BankAccount) (int, error) {
	if len(accounts) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created := 0
	for _, a := range accounts {
		id := a.ID
		if id == "" {
			id = uuid.NewString()
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO bank_accounts
				(id, borderless_account_id, currency, sort_code, acct_id, swift, iban, institution, address, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (borderless_account_id, currency) DO NOTHING
		`, id, a.BorderlessAccountID, a.Currency, a.SortCode, a.AccountNumber, a.Swift, a.IBAN,
			a.Institution, a.Address, a.Active)
		if err != nil {
			return 0, fmt.Errorf("insert bank account %d/%s: %w", a.BorderlessAccountID, a.Currency, err)
		}
		created += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return created, nil
}

// SetAccountActive flips the active flag of one account.
func (s *LedgerStore) SetAccountActive(ctx context.Context, accountID string, active bool) error {
	if _, err := uuid.Parse(accountID); err != nil {
		return &domain.ErrValidation{Field: "id", Message: "must be a UUID"}
	}

	tag, err := s.pool.Exec(ctx, `UPDATE bank_accounts SET active = $2 WHERE id = $1`, accountID, active)
	if err != nil {
		return fmt.Errorf("update bank account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "bank account", ID: accountID}
	}
	return nil
}

// WithAccountLock holds SELECT ... FOR UPDATE on the account for the duration
// of fn and commits fn's writes as one transaction.
func (s *LedgerStore) WithAccountLock(ctx context.Context, accountID string, fn func(tx port.LedgerTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id::text FROM bank_accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.ErrNotFound{Resource: "bank account", ID: accountID}
	}
	if err != nil {
		return fmt.Errorf("lock bank account: %w", err)
	}

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Ping checks database connectivity.
func (s *LedgerStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type ledgerTx struct {
	tx pgx.Tx
}

func (l *ledgerTx) TransactionExists(ctx context.Context, key domain.TransactionKey) (bool, error) {
	var exists bool
	err := l.tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM bank_transactions
			WHERE account_id = $1 AND posted = $2 AND type = $3 AND payee = $4
		)
	`, key.AccountID, key.Posted, key.Type, key.Payee).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup transaction: %w", err)
	}
	return exists, nil
}

func (l *ledgerTx) InsertTransactions(ctx context.Context, txns []domain.BankTransaction) error {
	if len(txns) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range txns {
		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		batch.Queue(`
			INSERT INTO bank_transactions (id, account_id, posted, type, payee, amount, provider_reference)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, NULLIF($7, ''))
		`, id, t.AccountID, t.Posted, t.Type, t.Payee, t.Amount.String(), t.ProviderReference)
	}

	br := l.tx.SendBatch(ctx, batch)
	for range txns {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert transaction: %w", err)
		}
	}
	return br.Close()
}

// ListTransactions returns the transactions of one account, oldest first.
func (s *LedgerStore) ListTransactions(ctx context.Context, accountID string) ([]domain.BankTransaction, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return nil, &domain.ErrValidation{Field: "id", Message: "must be a UUID"}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, account_id::text, posted, type, payee, amount::text,
			COALESCE(provider_reference, ''), created_at
		FROM bank_transactions
		WHERE account_id = $1
		ORDER BY posted, created_at
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.BankTransaction
	for rows.Next() {
		var (
			t      domain.BankTransaction
			amount string
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Posted, &t.Type, &t.Payee, &amount,
			&t.ProviderReference, &t.CreatedAt); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.BankAccount, error) {
	var a domain.BankAccount
	err := row.Scan(&a.ID, &a.BorderlessAccountID, &a.Currency, &a.SortCode, &a.AccountNumber,
		&a.Swift, &a.IBAN, &a.Institution, &a.Address, &a.Active, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

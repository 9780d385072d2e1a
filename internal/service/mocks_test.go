package service_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/port"
)

// --- Mocks ---

type mockVerifier struct {
	err   error
	calls int
}

func (m *mockVerifier) Verify(_, _ []byte) error {
	m.calls++
	return m.err
}

type mockStatementFetcher struct {
	statement *domain.Statement
	err       error
	calls     int
	lastQuery domain.StatementQuery
}

func (m *mockStatementFetcher) FetchStatement(_ context.Context, q domain.StatementQuery) (*domain.Statement, error) {
	m.calls++
	m.lastQuery = q
	return m.statement, m.err
}

type mockNotifier struct {
	alerts []domain.Alert
	err    error
}

func (m *mockNotifier) Notify(_ context.Context, alert domain.Alert) error {
	m.alerts = append(m.alerts, alert)
	return m.err
}

// mockLedger is an in-memory LedgerStore that counts lookups, locks and commits.
type mockLedger struct {
	mu           sync.Mutex
	accounts     []domain.BankAccount
	transactions []domain.BankTransaction

	findErr   error
	lockErr   error
	insertErr error

	lookups int
	locks   int
	commits int
	created int
}

func (m *mockLedger) FindActiveAccount(_ context.Context, borderlessAccountID int64, currency string) (*domain.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.findErr != nil {
		return nil, m.findErr
	}
	for i := range m.accounts {
		a := m.accounts[i]
		if a.BorderlessAccountID == borderlessAccountID && a.Currency == currency && a.Active {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *mockLedger) ListBankAccounts(_ context.Context) ([]domain.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BankAccount(nil), m.accounts...), nil
}

func (m *mockLedger) CreateBankAccounts(_ context.Context, accounts []domain.BankAccount) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range accounts {
		exists := false
		for _, b := range m.accounts {
			if a.BorderlessAccountID == b.BorderlessAccountID && a.Currency == b.Currency {
				exists = true
				break
			}
		}
		if !exists {
			m.accounts = append(m.accounts, a)
			n++
		}
	}
	m.created += n
	return n, nil
}

func (m *mockLedger) SetAccountActive(_ context.Context, accountID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.accounts {
		if m.accounts[i].ID == accountID {
			m.accounts[i].Active = active
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "bank account", ID: accountID}
}

func (m *mockLedger) ListTransactions(_ context.Context, accountID string) ([]domain.BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BankTransaction
	for _, t := range m.transactions {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockLedger) WithAccountLock(_ context.Context, _ string, fn func(tx port.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks++
	if m.lockErr != nil {
		return m.lockErr
	}

	tx := &mockLedgerTx{ledger: m}
	if err := fn(tx); err != nil {
		return err
	}
	m.transactions = append(m.transactions, tx.pending...)
	m.commits++
	return nil
}

func (m *mockLedger) Ping(_ context.Context) error { return nil }

// mockLedgerTx runs with the ledger mutex held by WithAccountLock.
type mockLedgerTx struct {
	ledger  *mockLedger
	pending []domain.BankTransaction
}

func (t *mockLedgerTx) TransactionExists(_ context.Context, key domain.TransactionKey) (bool, error) {
	return matchesKey(t.ledger.transactions, key) || matchesKey(t.pending, key), nil
}

func matchesKey(txns []domain.BankTransaction, key domain.TransactionKey) bool {
	for _, txn := range txns {
		if txn.AccountID == key.AccountID && txn.Posted.Equal(key.Posted) && txn.Type == key.Type && txn.Payee == key.Payee {
			return true
		}
	}
	return false
}

func (t *mockLedgerTx) InsertTransactions(_ context.Context, txns []domain.BankTransaction) error {
	if t.ledger.insertErr != nil {
		return t.ledger.insertErr
	}
	t.pending = append(t.pending, txns...)
	return nil
}

type mockWiseAPI struct {
	meErr       error
	profiles    []domain.Profile
	profilesErr error
	accounts    map[int64][]domain.BorderlessAccount
	accountsErr error
	subs        []domain.Subscription
	subsErr     error

	profileCalls atomic.Int32
}

func (m *mockWiseAPI) Me(_ context.Context) (*domain.User, error) {
	if m.meErr != nil {
		return nil, m.meErr
	}
	return &domain.User{ID: 1, Name: "Ops"}, nil
}

func (m *mockWiseAPI) ListProfiles(_ context.Context) ([]domain.Profile, error) {
	m.profileCalls.Add(1)
	return m.profiles, m.profilesErr
}

func (m *mockWiseAPI) ListBorderlessAccounts(_ context.Context, profileID int64) ([]domain.BorderlessAccount, error) {
	if m.accountsErr != nil {
		return nil, m.accountsErr
	}
	return m.accounts[profileID], nil
}

func (m *mockWiseAPI) ListSubscriptions(_ context.Context, _ int64) ([]domain.Subscription, error) {
	return m.subs, m.subsErr
}

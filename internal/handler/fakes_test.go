package handler_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/port"

	"github.com/google/uuid"
)

// memLedger is an in-memory LedgerStore.
type memLedger struct {
	mu           sync.Mutex
	accounts     []domain.BankAccount
	transactions []domain.BankTransaction
	pingErr      error
}

var _ port.LedgerStore = (*memLedger)(nil)

func (m *memLedger) FindActiveAccount(_ context.Context, borderlessAccountID int64, currency string) (*domain.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.accounts {
		a := m.accounts[i]
		if a.BorderlessAccountID == borderlessAccountID && a.Currency == currency && a.Active {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memLedger) ListBankAccounts(_ context.Context) ([]domain.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BankAccount(nil), m.accounts...), nil
}

func (m *memLedger) CreateBankAccounts(_ context.Context, accounts []domain.BankAccount) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
next:
	for _, a := range accounts {
		for _, b := range m.accounts {
			if a.BorderlessAccountID == b.BorderlessAccountID && a.Currency == b.Currency {
				continue next
			}
		}
		a.ID = uuid.NewString()
		m.accounts = append(m.accounts, a)
		n++
	}
	return n, nil
}

func (m *memLedger) SetAccountActive(_ context.Context, accountID string, active bool) error {
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

func (m *memLedger) ListTransactions(_ context.Context, accountID string) ([]domain.BankTransaction, error) {
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

func (m *memLedger) WithAccountLock(_ context.Context, accountID string, fn func(tx port.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{ledger: m}
	if err := fn(tx); err != nil {
		return err
	}
	m.transactions = append(m.transactions, tx.pending...)
	return nil
}

func (m *memLedger) Ping(_ context.Context) error { return m.pingErr }

type memTx struct {
	ledger  *memLedger
	pending []domain.BankTransaction
}

func (t *memTx) TransactionExists(_ context.Context, key domain.TransactionKey) (bool, error) {
	for _, txns := range [][]domain.BankTransaction{t.ledger.transactions, t.pending} {
		for _, txn := range txns {
			if txn.AccountID == key.AccountID && txn.Posted.Equal(key.Posted) && txn.Type == key.Type && txn.Payee == key.Payee {
				return true, nil
			}
		}
	}
	return false, nil
}

func (t *memTx) InsertTransactions(_ context.Context, txns []domain.BankTransaction) error {
	for _, txn := range txns {
		txn.ID = uuid.NewString()
		t.pending = append(t.pending, txn)
	}
	return nil
}

// --- Fake Wise API ---

const (
	fakeProfileID    = 42
	fakeBorderlessID = 7
)

const fakeBorderlessJSON = `[{
  "id": 7,
  "profileId": 42,
  "active": true,
  "balances": [
    {
      "id": 100,
      "currency": "GBP",
      "bankDetails": {
        "currency": "GBP",
        "bankCode": "231470",
        "accountNumber": "GB33 TRWI 2314 7012 3456 78",
        "swift": "TRWIGB2L",
        "iban": "GB33 TRWI 2314 7012 3456 78",
        "bankName": "Wise Payments Limited",
        "bankAddress": {"addressFirstLine": "56 Shoreditch High Street", "postCode": "E1 6JJ", "city": "London", "country": "United Kingdom"}
      }
    },
    {"id": 101, "currency": "AUD", "bankDetails": null}
  ]
}]`

const fakeStatementJSON = `{
  "transactions": [
    {
      "type": "CREDIT",
      "date": "2024-01-01T09:30:00.000Z",
      "amount": {"value": 50.00, "currency": "GBP"},
      "details": {"type": "TRANSFER", "description": "Received money", "paymentReference": "INV123"},
      "referenceNumber": "TRANSFER-987"
    },
    {
      "type": "DEBIT",
      "date": "2024-01-02T10:00:00.000Z",
      "amount": {"value": -5.10, "currency": "GBP"},
      "details": {"type": "CARD", "description": "Coffee", "paymentReference": ""},
      "referenceNumber": "CARD-1"
    }
  ]
}`

// fakeWise serves the Wise endpoints used by the reconciler. Statements
// demand a signed 2FA challenge that verifies against challengeKey.
type fakeWise struct {
	challengeKey   *rsa.PublicKey
	statementCalls atomic.Int32
}

func (f *fakeWise) serve(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 1, "name": "Ops"}`))
	})
	mux.HandleFunc("/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 1, "type": "personal"}, {"id": 42, "type": "business"}]`))
	})
	mux.HandleFunc("/v1/borderless-accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("profileId") != "42" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(fakeBorderlessJSON))
	})
	mux.HandleFunc("/v3/profiles/42/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "sub-1", "trigger_on": "balances#credit"}]`))
	})
	mux.HandleFunc("/v3/profiles/42/borderless-accounts/7/statement.json", func(w http.ResponseWriter, r *http.Request) {
		f.statementCalls.Add(1)
		const challenge = "challenge-token"
		if err := f.checkChallenge(r, challenge); err != nil {
			w.Header().Set("X-2FA-Approval-Result", "REJECTED")
			w.Header().Set("X-2FA-Approval", challenge)
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("X-2FA-Approval-Result", "APPROVED")
		w.Write([]byte(fakeStatementJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeWise) checkChallenge(r *http.Request, challenge string) error {
	if r.Header.Get("X-2FA-Approval") != challenge {
		return errors.New("challenge not echoed")
	}
	sig, err := base64.StdEncoding.DecodeString(r.Header.Get("X-Signature"))
	if err != nil {
		return err
	}
	digest := sha256.Sum256([]byte(challenge))
	return rsa.VerifyPKCS1v15(f.challengeKey, crypto.SHA256, digest[:], sig)
}

// signBody produces the X-Signature Wise would send for body.
func signBody(t *testing.T, key *rsa.PrivateKey, body []byte) string {
	t.Helper()
	digest := sha256.Sum256(body)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign body: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

var (
	keysOnce          sync.Once
	wiseKey, ownerKey *rsa.PrivateKey
)

// testKeys returns Wise's webhook signing key and the statement 2FA key.
func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keysOnce.Do(func() {
		var err error
		if wiseKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			t.Fatalf("generate key: %v", err)
		}
		if ownerKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			t.Fatalf("generate key: %v", err)
		}
	})
	if wiseKey == nil || ownerKey == nil {
		t.Fatal("test keys unavailable")
	}
	return wiseKey, ownerKey
}

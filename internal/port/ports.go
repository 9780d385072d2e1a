// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/wise-recon-go/internal/domain"
)

// StatementFetcher retrieves a date-ranged statement for one Wise balance.
type StatementFetcher interface {
	FetchStatement(ctx context.Context, q domain.StatementQuery) (*domain.Statement, error)
}

// ChallengeSigner signs a Wise 2FA challenge and returns the base64 signature.
type ChallengeSigner interface {
	SignChallenge(challenge string) (string, error)
}

// SignatureVerifier checks a webhook body against its decoded X-Signature.
type SignatureVerifier interface {
	Verify(body, signature []byte) error
}

// WiseAPI is the read-only slice of the Wise API used by discovery and the
// configuration self-check.
type WiseAPI interface {
	Me(ctx context.Context) (*domain.User, error)
	ListProfiles(ctx context.Context) ([]domain.Profile, error)
	ListBorderlessAccounts(ctx context.Context, profileID int64) ([]domain.BorderlessAccount, error)
	ListSubscriptions(ctx context.Context, profileID int64) ([]domain.Subscription, error)
}

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, alert domain.Alert) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// LedgerStore defines the persistence operations on bank accounts and
// transactions. Implemented by the Postgres adapter.
type LedgerStore interface {
	// Accounts
	FindActiveAccount(ctx context.Context, borderlessAccountID int64, currency string) (*domain.BankAccount, error)
	ListBankAccounts(ctx context.Context) ([]domain.BankAccount, error)
	CreateBankAccounts(ctx context.Context, accounts []domain.BankAccount) (int, error)
	SetAccountActive(ctx context.Context, accountID string, active bool) error

	// Transactions
	ListTransactions(ctx context.Context, accountID string) ([]domain.BankTransaction, error)

	// WithAccountLock runs fn inside a transaction holding an exclusive row
	// lock on the account. fn's writes commit together when it returns nil.
	WithAccountLock(ctx context.Context, accountID string, fn func(tx LedgerTx) error) error

	Ping(ctx context.Context) error
}

// LedgerTx is the transactional view handed to WithAccountLock callbacks.
type LedgerTx interface {
	TransactionExists(ctx context.Context, key domain.TransactionKey) (bool, error)
	InsertTransactions(ctx context.Context, txns []domain.BankTransaction) error
}

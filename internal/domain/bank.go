package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Ledger: bank accounts and credited transactions
// ============================================================

// BankAccount is one currency balance held with Wise.
// Discovered accounts start inactive; reconciliation only considers active ones.
type BankAccount struct {
	ID                  string    `json:"id"`
	BorderlessAccountID int64     `json:"borderless_account_id"`
	Currency            string    `json:"currency"`
	SortCode            *string   `json:"sort_code,omitempty"`
	AccountNumber       *string   `json:"acct_id,omitempty"`
	Swift               *string   `json:"swift,omitempty"`
	IBAN                *string   `json:"iban,omitempty"`
	Institution         string    `json:"institution"`
	Address             string    `json:"address"`
	Active              bool      `json:"active"`
	CreatedAt           time.Time `json:"created_at,omitempty"`
}

// BankTransaction is one credited transfer recorded against a BankAccount.
type BankTransaction struct {
	ID                string          `json:"id"`
	AccountID         string          `json:"account_id"`
	Posted            time.Time       `json:"posted"`
	Type              string          `json:"type"`
	Payee             string          `json:"payee"`
	Amount            decimal.Decimal `json:"amount"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	CreatedAt         time.Time       `json:"created_at,omitempty"`
}

// TransactionKey identifies a BankTransaction for duplicate detection.
// Wise statements carry no stable unique id we can rely on, so this is a
// composite match and two genuinely distinct credits with equal fields collapse.
type TransactionKey struct {
	AccountID string
	Posted    time.Time
	Type      string
	Payee     string
}

// NaturalKey builds the dedup key for a statement entry credited to account.
func NaturalKey(accountID string, entry StatementTransaction) TransactionKey {
	return TransactionKey{
		AccountID: accountID,
		Posted:    entry.Date.Time,
		Type:      strings.ToLower(entry.Details.Type),
		Payee:     entry.Details.PaymentReference,
	}
}

// NewTransaction turns a credit entry into a ledger row keyed by key.
func NewTransaction(key TransactionKey, entry StatementTransaction) BankTransaction {
	return BankTransaction{
		AccountID:         key.AccountID,
		Posted:            key.Posted,
		Type:              key.Type,
		Payee:             key.Payee,
		Amount:            entry.Amount.Value,
		ProviderReference: entry.ReferenceNumber,
	}
}

package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Wise API payloads
// ============================================================

// Environment names accepted for TRANSFERWISE_ENVIRONMENT.
const (
	EnvSandbox = "sandbox"
	EnvLive    = "live"
)

// ProfileTypeBusiness is the Wise profile type we reconcile against.
const ProfileTypeBusiness = "business"

// StatementCredit is the statement entry type for incoming money.
const StatementCredit = "CREDIT"

// Timestamp accepts both the RFC 3339 instants and the plain dates Wise emits.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		parsed, err = time.Parse("2006-01-02", s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
	}
	t.Time = parsed.UTC()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Money is an amount in a currency.
type Money struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

// Statement is the response of the borderless account statement endpoint.
type Statement struct {
	AccountHolder         json.RawMessage        `json:"accountHolder,omitempty"`
	Transactions          []StatementTransaction `json:"transactions"`
	EndOfStatementBalance *Money                 `json:"endOfStatementBalance,omitempty"`
}

// StatementTransaction is a single statement entry.
type StatementTransaction struct {
	Type            string           `json:"type"`
	Date            Timestamp        `json:"date"`
	Amount          Money            `json:"amount"`
	TotalFees       *Money           `json:"totalFees,omitempty"`
	Details         StatementDetails `json:"details"`
	RunningBalance  *Money           `json:"runningBalance,omitempty"`
	ReferenceNumber string           `json:"referenceNumber"`
}

// StatementDetails carries the counterparty information of an entry.
type StatementDetails struct {
	Type             string `json:"type"`
	Description      string `json:"description"`
	SenderName       string `json:"senderName,omitempty"`
	SenderAccount    string `json:"senderAccount,omitempty"`
	PaymentReference string `json:"paymentReference"`
}

// StatementQuery addresses one statement request.
type StatementQuery struct {
	ProfileID           int64
	BorderlessAccountID int64
	Currency            string
	IntervalStart       string
	IntervalEnd         string
}

// Profile is a Wise personal or business profile.
type Profile struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// BorderlessAccount groups the per-currency balances of one owner.
type BorderlessAccount struct {
	ID        int64     `json:"id"`
	ProfileID int64     `json:"profileId"`
	Active    bool      `json:"active"`
	Balances  []Balance `json:"balances"`
}

// Balance is a single currency sub-account.
type Balance struct {
	ID          int64        `json:"id"`
	Currency    string       `json:"currency"`
	BalanceType string       `json:"balanceType"`
	BankDetails *BankDetails `json:"bankDetails"`
}

// BankDetails are the routing details that make a balance payable-to.
type BankDetails struct {
	ID                int64        `json:"id"`
	Currency          string       `json:"currency"`
	BankCode          string       `json:"bankCode"`
	AccountNumber     string       `json:"accountNumber"`
	Swift             *string      `json:"swift"`
	IBAN              *string      `json:"iban"`
	BankName          string       `json:"bankName"`
	AccountHolderName string       `json:"accountHolderName"`
	BankAddress       *BankAddress `json:"bankAddress"`
}

// BankAddress is the postal address of the holding institution.
type BankAddress struct {
	AddressFirstLine string  `json:"addressFirstLine"`
	PostCode         *string `json:"postCode"`
	City             string  `json:"city"`
	Country          string  `json:"country"`
	StateCode        *string `json:"stateCode"`
}

// Subscription is a webhook subscription registered on a profile.
type Subscription struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TriggerOn string `json:"trigger_on"`
	Delivery  struct {
		Version string `json:"version"`
		URL     string `json:"url"`
	} `json:"delivery"`
}

// User is the owner of the API token.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

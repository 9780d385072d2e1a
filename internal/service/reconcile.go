package service

import (
	"context"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/port"
)

// Reconcile records every CREDIT entry of statement that the ledger does not
// already hold for accountID, and returns the rows it inserted.
// It must run under the account lock; entries repeated within one statement
// are only inserted once.
func Reconcile(ctx context.Context, tx port.LedgerTx, accountID string, statement *domain.Statement) ([]domain.BankTransaction, error) {
	type seenKey struct {
		posted     int64
		typ, payee string
	}
	seen := make(map[seenKey]struct{})

	var fresh []domain.BankTransaction
	for _, entry := range statement.Transactions {
		if entry.Type != domain.StatementCredit {
			continue
		}

		key := domain.NaturalKey(accountID, entry)
		sk := seenKey{posted: key.Posted.UnixNano(), typ: key.Type, payee: key.Payee}
		if _, dup := seen[sk]; dup {
			continue
		}
		seen[sk] = struct{}{}

		exists, err := tx.TransactionExists(ctx, key)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		fresh = append(fresh, domain.NewTransaction(key, entry))
	}

	if err := tx.InsertTransactions(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

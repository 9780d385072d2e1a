package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/infra/observability"
	"github.com/boddenberg/wise-recon-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	// StatementLookback is how far back each credit event looks for entries.
	StatementLookback = 7 * 24 * time.Hour

	// statementTimeLayout is ISO-8601 in UTC with a literal Z.
	statementTimeLayout = "2006-01-02T15:04:05.000Z"
)

// BalanceCredit handles balances#credit events: it pulls the recent statement
// of the credited balance and records credits the ledger does not have yet.
type BalanceCredit struct {
	ledger     port.LedgerStore
	statements port.StatementFetcher
	notifier   port.Notifier
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// BalanceCreditOption configures a BalanceCredit handler.
type BalanceCreditOption func(*BalanceCredit)

// WithClock overrides the time source for the statement window.
func WithClock(now func() time.Time) BalanceCreditOption {
	return func(h *BalanceCredit) { h.now = now }
}

// NewBalanceCredit creates the balances#credit handler.
func NewBalanceCredit(
	ledger port.LedgerStore,
	statements port.StatementFetcher,
	notifier port.Notifier,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...BalanceCreditOption,
) *BalanceCredit {
	h := &BalanceCredit{
		ledger:     ledger,
		statements: statements,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ EventHandler = (*BalanceCredit)(nil)

// HandleEvent implements EventHandler.
func (h *BalanceCredit) HandleEvent(ctx context.Context, event domain.WebhookEnvelope) error {
	ctx, span := tracer.Start(ctx, "BalanceCredit.HandleEvent")
	defer span.End()

	var data domain.BalanceCreditData
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return &domain.ErrValidation{Field: "data", Message: err.Error()}
		}
	}

	if data.Resource.ProfileID == nil {
		h.logger.Error("missing profile_id in wise webhook")
		return &domain.ErrValidation{Field: "data.resource.profile_id", Message: "missing"}
	}
	if data.Resource.ID == nil {
		h.logger.Error("missing borderless_account_id in wise webhook")
		return &domain.ErrValidation{Field: "data.resource.id", Message: "missing"}
	}

	profileID := *data.Resource.ProfileID
	borderlessID := *data.Resource.ID

	// Wise fires a credit for account 0 when a subscription is set up.
	if borderlessID == domain.ConfigurationProbeAccountID {
		h.logger.Info("ignoring wise subscription probe", zap.Int64("profile_id", profileID))
		return nil
	}

	if data.Currency == nil {
		h.logger.Error("missing currency in wise webhook")
		return &domain.ErrValidation{Field: "data.currency", Message: "missing"}
	}
	currency := *data.Currency

	span.SetAttributes(
		attribute.Int64("wise.profile_id", profileID),
		attribute.Int64("wise.borderless_account_id", borderlessID),
		attribute.String("wise.currency", currency),
	)
	log := h.logger.With(
		zap.Int64("profile_id", profileID),
		zap.Int64("borderless_account_id", borderlessID),
		zap.String("currency", currency),
	)
	log.Info("checking wise details")

	account, err := h.ledger.FindActiveAccount(ctx, borderlessID, currency)
	if err != nil {
		return fmt.Errorf("find bank account: %w", err)
	}
	if account == nil {
		log.Warn("could not find bank account")
		return nil
	}

	end := h.now().UTC()
	start := end.Add(-StatementLookback)
	query := domain.StatementQuery{
		ProfileID:           profileID,
		BorderlessAccountID: borderlessID,
		Currency:            currency,
		IntervalStart:       start.Format(statementTimeLayout),
		IntervalEnd:         end.Format(statementTimeLayout),
	}

	statement, err := h.statements.FetchStatement(ctx, query)
	if err != nil {
		log.Error("could not fetch statement", zap.Error(err))
		h.metrics.IncrStatementFailure()
		h.alertStatementFailure(ctx, query, err)
		return nil
	}

	var imported []domain.BankTransaction
	err = h.ledger.WithAccountLock(ctx, account.ID, func(tx port.LedgerTx) error {
		var rerr error
		imported, rerr = Reconcile(ctx, tx, account.ID, statement)
		return rerr
	})
	if err != nil {
		return fmt.Errorf("reconcile statement: %w", err)
	}

	h.metrics.AddTransactionsImported(currency, len(imported))
	span.SetAttributes(attribute.Int("wise.transactions_imported", len(imported)))
	log.Info("imported transactions", zap.Int("count", len(imported)), zap.String("account_id", account.ID))
	return nil
}

func (h *BalanceCredit) alertStatementFailure(ctx context.Context, q domain.StatementQuery, cause error) {
	alert := domain.Alert{
		Title:   "Could not fetch Wise statement",
		Message: cause.Error(),
		Fields: map[string]string{
			"profile_id":            strconv.FormatInt(q.ProfileID, 10),
			"borderless_account_id": strconv.FormatInt(q.BorderlessAccountID, 10),
			"currency":              q.Currency,
			"interval_start":        q.IntervalStart,
			"interval_end":          q.IntervalEnd,
		},
	}
	if err := h.notifier.Notify(ctx, alert); err != nil {
		h.logger.Warn("failed to send operator alert", zap.Error(err))
	}
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/infra/observability"
	"github.com/boddenberg/wise-recon-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const businessProfileCacheKey = "wise:business_profile"

// Discovery resolves the Wise business profile and turns its balances into
// BankAccount records.
type Discovery struct {
	wise      port.WiseAPI
	ledger    port.LedgerStore
	cache     port.Cache[int64]
	profileID int64
	group     singleflight.Group
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewDiscovery creates the discovery service. A non-zero profileID pins the
// business profile instead of looking it up.
func NewDiscovery(
	wise port.WiseAPI,
	ledger port.LedgerStore,
	cache port.Cache[int64],
	profileID int64,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Discovery {
	return &Discovery{
		wise:      wise,
		ledger:    ledger,
		cache:     cache,
		profileID: profileID,
		metrics:   metrics,
		logger:    logger,
	}
}

// BusinessProfile returns the id of the business profile to reconcile.
//
// A configured id must own at least one borderless account. Otherwise the
// token must see exactly one business profile: the profiles endpoint only
// returns one business profile at random when there are several, so
// multi-business setups have to pin TRANSFERWISE_PROFILE_ID.
func (d *Discovery) BusinessProfile(ctx context.Context) (int64, error) {
	if id, ok := d.cache.Get(businessProfileCacheKey); ok {
		d.metrics.IncrCacheHit("business_profile")
		return id, nil
	}
	d.metrics.IncrCacheMiss("business_profile")

	v, err, _ := d.group.Do(businessProfileCacheKey, func() (any, error) {
		id, err := d.resolveBusinessProfile(ctx)
		if err != nil {
			return int64(0), err
		}
		d.cache.Set(businessProfileCacheKey, id)
		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// RefreshBusinessProfile resolves the business profile against Wise,
// ignoring any cached id. A successful lookup replaces the cached one.
func (d *Discovery) RefreshBusinessProfile(ctx context.Context) (int64, error) {
	id, err := d.resolveBusinessProfile(ctx)
	if err != nil {
		d.cache.Delete(businessProfileCacheKey)
		return 0, err
	}
	d.cache.Set(businessProfileCacheKey, id)
	return id, nil
}

func (d *Discovery) resolveBusinessProfile(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "Discovery.resolveBusinessProfile")
	defer span.End()

	if d.profileID != 0 {
		accounts, err := d.wise.ListBorderlessAccounts(ctx, d.profileID)
		if err != nil {
			return 0, fmt.Errorf("list borderless accounts: %w", err)
		}
		if len(accounts) == 0 {
			return 0, &domain.ErrConfiguration{
				Message: fmt.Sprintf("TRANSFERWISE_PROFILE_ID %d has no accounts", d.profileID),
			}
		}
		return d.profileID, nil
	}

	profiles, err := d.wise.ListProfiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("list profiles: %w", err)
	}

	var business []domain.Profile
	for _, p := range profiles {
		if p.Type == domain.ProfileTypeBusiness {
			business = append(business, p)
		}
	}

	switch len(business) {
	case 0:
		return 0, &domain.ErrConfiguration{Message: "no business profile found"}
	case 1:
		span.SetAttributes(attribute.Int64("wise.profile_id", business[0].ID))
		return business[0].ID, nil
	default:
		return 0, &domain.ErrConfiguration{Message: "multiple business profiles found; set TRANSFERWISE_PROFILE_ID"}
	}
}

// DiscoverAccounts lists the bank accounts of the business profile. With save
// set, accounts not yet in the ledger are stored inactive.
func (d *Discovery) DiscoverAccounts(ctx context.Context, save bool) (*domain.DiscoveryResult, error) {
	ctx, span := tracer.Start(ctx, "Discovery.DiscoverAccounts")
	defer span.End()

	profileID, err := d.BusinessProfile(ctx)
	if err != nil {
		return nil, err
	}

	borderless, err := d.wise.ListBorderlessAccounts(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("list borderless accounts: %w", err)
	}

	result := &domain.DiscoveryResult{ProfileID: profileID, Accounts: []domain.BankAccount{}}
	for _, ba := range borderless {
		result.Accounts = append(result.Accounts, CollectBankAccounts(ba)...)
	}
	span.SetAttributes(attribute.Int("wise.accounts_discovered", len(result.Accounts)))

	if save {
		n, err := d.ledger.CreateBankAccounts(ctx, result.Accounts)
		if err != nil {
			return nil, fmt.Errorf("save bank accounts: %w", err)
		}
		result.Saved = n
	}

	d.logger.Info("wise accounts discovered",
		zap.Int64("profile_id", profileID),
		zap.Int("accounts", len(result.Accounts)),
		zap.Int("saved", result.Saved),
	)
	return result, nil
}

// ListAccounts returns the accounts stored in the ledger.
func (d *Discovery) ListAccounts(ctx context.Context) ([]domain.BankAccount, error) {
	return d.ledger.ListBankAccounts(ctx)
}

// ListTransactions returns the reconciled transactions of one stored account.
func (d *Discovery) ListTransactions(ctx context.Context, accountID string) ([]domain.BankTransaction, error) {
	return d.ledger.ListTransactions(ctx, accountID)
}

// SetAccountActive enables or disables reconciliation for one stored account.
func (d *Discovery) SetAccountActive(ctx context.Context, accountID string, active bool) error {
	if err := d.ledger.SetAccountActive(ctx, accountID, active); err != nil {
		return err
	}
	d.logger.Info("bank account updated", zap.String("account_id", accountID), zap.Bool("active", active))
	return nil
}

// CollectBankAccounts maps the balances of a borderless account to inactive
// BankAccounts. Balances without bank details or a bank address are skipped.
func CollectBankAccounts(ba domain.BorderlessAccount) []domain.BankAccount {
	var out []domain.BankAccount
	for _, bal := range ba.Balances {
		bd := bal.BankDetails
		if bd == nil || bd.BankAddress == nil {
			continue
		}

		acct := domain.BankAccount{
			BorderlessAccountID: ba.ID,
			Currency:            bd.Currency,
			Swift:               bd.Swift,
			IBAN:                bd.IBAN,
			Institution:         bd.BankName,
			Address:             formatBankAddress(bd.BankAddress),
			Active:              false,
		}

		// For non-GBP balances bankCode is the SWIFT code, not a sort code.
		if bd.Currency == "GBP" {
			sortCode := bd.BankCode
			number := gbpAccountNumber(bd.AccountNumber)
			acct.SortCode = &sortCode
			acct.AccountNumber = &number
		}
		out = append(out, acct)
	}
	return out
}

// gbpAccountNumber works around GBP balances that report the IBAN as the
// account number: the account number is its last eight characters.
func gbpAccountNumber(raw string) string {
	if len(raw) == 8 {
		return raw
	}
	compact := strings.ReplaceAll(raw, " ", "")
	if len(compact) <= 8 {
		return compact
	}
	return compact[len(compact)-8:]
}

func formatBankAddress(a *domain.BankAddress) string {
	postCode := ""
	if a.PostCode != nil {
		postCode = *a.PostCode
	}
	return strings.Join([]string{
		a.AddressFirstLine,
		a.City + " " + postCode,
		a.Country,
	}, ", ")
}

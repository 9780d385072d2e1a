package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/infra/cache"
	"github.com/boddenberg/wise-recon-go/internal/infra/observability"
	"github.com/boddenberg/wise-recon-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ptr(s string) *string { return &s }

func bankDetails(currency, bankCode, accountNumber string) *domain.BankDetails {
	return &domain.BankDetails{
		Currency:      currency,
		BankCode:      bankCode,
		AccountNumber: accountNumber,
		BankName:      "Wise Payments Limited",
		Swift:         ptr("TRWIGB2L"),
		IBAN:          ptr("GB33 TRWI 2314 7012 3456 78"),
		BankAddress: &domain.BankAddress{
			AddressFirstLine: "56 Shoreditch High Street",
			City:             "London",
			PostCode:         ptr("E1 6JJ"),
			Country:          "United Kingdom",
		},
	}
}

func newDiscovery(api *mockWiseAPI, ledger *mockLedger, profileID int64) *service.Discovery {
	c := cache.New[int64](time.Minute)
	return service.NewDiscovery(api, ledger, c, profileID, observability.NewMetrics(), zap.NewNop())
}

func TestCollectBankAccounts_GBPFromIBAN(t *testing.T) {
	ba := domain.BorderlessAccount{ID: 7, Balances: []domain.Balance{
		{Currency: "GBP", BankDetails: bankDetails("GBP", "231470", "GB33 TRWI 2314 7012 3456 78")},
	}}

	accounts := service.CollectBankAccounts(ba)
	require.Len(t, accounts, 1)

	a := accounts[0]
	require.NotNil(t, a.SortCode)
	require.NotNil(t, a.AccountNumber)
	assert.Equal(t, "231470", *a.SortCode)
	assert.Equal(t, "12345678", *a.AccountNumber)
	assert.Equal(t, int64(7), a.BorderlessAccountID)
	assert.False(t, a.Active)
	assert.Equal(t, "56 Shoreditch High Street, London E1 6JJ, United Kingdom", a.Address)
	assert.Equal(t, "Wise Payments Limited", a.Institution)
}

func TestCollectBankAccounts_GBPEightDigitsUnchanged(t *testing.T) {
	ba := domain.BorderlessAccount{ID: 7, Balances: []domain.Balance{
		{Currency: "GBP", BankDetails: bankDetails("GBP", "231470", "87654321")},
	}}

	accounts := service.CollectBankAccounts(ba)
	require.Len(t, accounts, 1)
	assert.Equal(t, "87654321", *accounts[0].AccountNumber)
}

func TestCollectBankAccounts_NonGBP(t *testing.T) {
	details := bankDetails("EUR", "TRWIBEB1XXX", "BE12 3456 7890 1234")
	details.IBAN = ptr("BE12 3456 7890 1234")
	details.BankAddress.PostCode = nil
	details.BankAddress.City = "Brussels"
	details.BankAddress.Country = "Belgium"
	details.BankAddress.AddressFirstLine = "Rue du Trône 100"

	accounts := service.CollectBankAccounts(domain.BorderlessAccount{ID: 9, Balances: []domain.Balance{
		{Currency: "EUR", BankDetails: details},
	}})

	require.Len(t, accounts, 1)
	a := accounts[0]
	assert.Nil(t, a.SortCode)
	assert.Nil(t, a.AccountNumber)
	assert.Equal(t, "BE12 3456 7890 1234", *a.IBAN)
	assert.Equal(t, "TRWIGB2L", *a.Swift)
	assert.Equal(t, "Rue du Trône 100, Brussels , Belgium", a.Address)
}

func TestCollectBankAccounts_SkipsIncompleteBalances(t *testing.T) {
	noAddress := bankDetails("USD", "TRWIUS35XXX", "8310000000")
	noAddress.BankAddress = nil

	accounts := service.CollectBankAccounts(domain.BorderlessAccount{ID: 7, Balances: []domain.Balance{
		{Currency: "AUD"},
		{Currency: "USD", BankDetails: noAddress},
		{Currency: "GBP", BankDetails: bankDetails("GBP", "231470", "12345678")},
	}})

	require.Len(t, accounts, 1)
	assert.Equal(t, "GBP", accounts[0].Currency)
}

func TestBusinessProfile_Discovered(t *testing.T) {
	api := &mockWiseAPI{profiles: []domain.Profile{{ID: 1, Type: "personal"}, {ID: 42, Type: "business"}}}
	d := newDiscovery(api, &mockLedger{}, 0)

	id, err := d.BusinessProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	id, err = d.BusinessProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int32(1), api.profileCalls.Load(), "second lookup should hit the cache")
}

func TestBusinessProfile_ConcurrentCallsCollapse(t *testing.T) {
	api := &mockWiseAPI{profiles: []domain.Profile{{ID: 42, Type: "business"}}}
	d := newDiscovery(api, &mockLedger{}, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := d.BusinessProfile(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, int64(42), id)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, api.profileCalls.Load(), int32(1))

	_, err := d.BusinessProfile(context.Background())
	require.NoError(t, err)
	calls := api.profileCalls.Load()
	_, _ = d.BusinessProfile(context.Background())
	assert.Equal(t, calls, api.profileCalls.Load(), "resolved profile is cached")
}

func TestBusinessProfile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		profiles []domain.Profile
	}{
		{"none", []domain.Profile{{ID: 1, Type: "personal"}}},
		{"several", []domain.Profile{{ID: 2, Type: "business"}, {ID: 3, Type: "business"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDiscovery(&mockWiseAPI{profiles: tt.profiles}, &mockLedger{}, 0)
			_, err := d.BusinessProfile(context.Background())
			var cfgErr *domain.ErrConfiguration
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestBusinessProfile_Configured(t *testing.T) {
	api := &mockWiseAPI{accounts: map[int64][]domain.BorderlessAccount{99: {{ID: 7, ProfileID: 99}}}}
	d := newDiscovery(api, &mockLedger{}, 99)

	id, err := d.BusinessProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(99), id)
	assert.Equal(t, int32(0), api.profileCalls.Load())
}

func TestBusinessProfile_ConfiguredWithoutAccounts(t *testing.T) {
	d := newDiscovery(&mockWiseAPI{}, &mockLedger{}, 99)

	_, err := d.BusinessProfile(context.Background())
	var cfgErr *domain.ErrConfiguration
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, "99")
}

func TestBusinessProfile_APIErrorNotCached(t *testing.T) {
	api := &mockWiseAPI{profilesErr: errors.New("status 502")}
	d := newDiscovery(api, &mockLedger{}, 0)

	_, err := d.BusinessProfile(context.Background())
	require.Error(t, err)

	api.profilesErr = nil
	api.profiles = []domain.Profile{{ID: 42, Type: "business"}}
	id, err := d.BusinessProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestDiscoverAccounts_Save(t *testing.T) {
	api := &mockWiseAPI{
		profiles: []domain.Profile{{ID: 42, Type: "business"}},
		accounts: map[int64][]domain.BorderlessAccount{42: {{ID: 7, ProfileID: 42, Balances: []domain.Balance{
			{Currency: "GBP", BankDetails: bankDetails("GBP", "231470", "12345678")},
			{Currency: "EUR", BankDetails: bankDetails("EUR", "TRWIBEB1XXX", "BE12")},
		}}}},
	}
	ledger := &mockLedger{}
	d := newDiscovery(api, ledger, 0)

	result, err := d.DiscoverAccounts(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.ProfileID)
	assert.Len(t, result.Accounts, 2)
	assert.Equal(t, 0, result.Saved)
	assert.Empty(t, ledger.accounts)

	result, err = d.DiscoverAccounts(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Saved)

	result, err = d.DiscoverAccounts(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Saved, "existing balances are not duplicated")
	assert.Len(t, ledger.accounts, 2)
}

func TestSetAccountActive(t *testing.T) {
	ledger := &mockLedger{accounts: []domain.BankAccount{{ID: "acct-1", Currency: "GBP"}}}
	d := newDiscovery(&mockWiseAPI{}, ledger, 0)

	require.NoError(t, d.SetAccountActive(context.Background(), "acct-1", true))
	accounts, err := d.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.True(t, accounts[0].Active)

	err = d.SetAccountActive(context.Background(), "missing", true)
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

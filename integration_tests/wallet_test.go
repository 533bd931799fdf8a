package integration_tests

import (
	"context"
	"log"
	"net/http"
	"testing"

	"github.com/gigpay/escrowhub/common"
	"github.com/gigpay/escrowhub/db/models"
	"github.com/gigpay/escrowhub/lib/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type WalletTestSuite struct {
	TestSuite
	service *service.EscrowhubService
}

func (suite *WalletTestSuite) SetupSuite() {
	svc, err := EscrowhubTestServiceInit(NewMockGatewayClient())
	if err != nil {
		log.Fatalf("Error initializing test service: %v", err)
	}
	suite.service = svc
	suite.setupEcho(svc)
}

func (suite *WalletTestSuite) TearDownTest() {
	assert.NoError(suite.T(), clearTables(suite.service))
}

func (suite *WalletTestSuite) TestGetOrCreateWalletIsIdempotent() {
	ctx := context.Background()
	first, err := suite.service.GetOrCreateWallet(ctx, payeeId)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), common.WalletTypeUser, first.Type)
	assert.Equal(suite.T(), int64(0), first.Balance)
	assert.Equal(suite.T(), common.AccountStatusUnverified, first.AccountStatus)

	second, err := suite.service.GetOrCreateWallet(ctx, payeeId)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), first.ID, second.ID)
}

func (suite *WalletTestSuite) TestCreditAndDebitWallet() {
	ctx := context.Background()
	txId, err := suite.service.CreditWallet(ctx, payeeId, 10000, "milestone bonus")
	assert.NoError(suite.T(), err)
	assert.NotEmpty(suite.T(), txId)

	_, err = suite.service.DebitWallet(ctx, payeeId, 4000, "correction")
	assert.NoError(suite.T(), err)

	balance, err := suite.service.WalletBalance(ctx, payeeId)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(6000), balance.Total)

	// debits beyond the available balance are refused
	_, err = suite.service.DebitWallet(ctx, payeeId, 7000, "overdraft attempt")
	assert.ErrorIs(suite.T(), err, service.ErrInsufficientFunds)

	// every movement got its counter-entry on the clearing wallet
	clearing, err := suite.service.SystemWallet(ctx, common.WalletTypeClearing)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(-6000), clearing.Balance)

	wallet, err := suite.service.GetOrCreateWallet(ctx, payeeId)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(10000), wallet.LifetimeEarned)
	assert.Equal(suite.T(), int64(4000), wallet.LifetimeSpent)
}

func (suite *WalletTestSuite) TestLedgerEntryTypeFilter() {
	ctx := context.Background()
	_, err := suite.service.CreditWallet(ctx, payeeId, 10000, "milestone bonus")
	assert.NoError(suite.T(), err)
	_, err = suite.service.DebitWallet(ctx, payeeId, 4000, "correction")
	assert.NoError(suite.T(), err)

	wallet, err := suite.service.GetOrCreateWallet(ctx, payeeId)
	assert.NoError(suite.T(), err)
	debits, err := suite.service.LedgerEntriesFor(ctx, wallet.ID, service.LedgerFilter{EntryType: common.EntryTypeDebit})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, len(debits))
	assert.Equal(suite.T(), int64(4000), debits[0].Amount)

	// the same filter is reachable through the API
	apiEntries := []models.LedgerEntry{}
	suite.requestOK(http.MethodGet, "/v2/ledger?type=credit", nil, userToken(suite.service, payeeId), http.StatusOK, &apiEntries)
	assert.Equal(suite.T(), 1, len(apiEntries))
	assert.Equal(suite.T(), common.EntryTypeCredit, apiEntries[0].EntryType)
	assert.Equal(suite.T(), int64(10000), apiEntries[0].Amount)

	// a malformed time bound is rejected
	rec := suite.request(http.MethodGet, "/v2/ledger?since=yesterday", nil, userToken(suite.service, payeeId))
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *WalletTestSuite) TestLedgerMatchesCachedBalances() {
	ctx := context.Background()
	_, err := suite.service.CreditWallet(ctx, payeeId, 12345, "test funding")
	assert.NoError(suite.T(), err)
	_, err = suite.service.DebitWallet(ctx, payeeId, 345, "test debit")
	assert.NoError(suite.T(), err)

	// the write path keeps cached balances and the ledger in lockstep
	mismatches, err := suite.service.ReconcileWallets(ctx)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0, len(mismatches))

	wallet, err := suite.service.GetOrCreateWallet(ctx, payeeId)
	assert.NoError(suite.T(), err)
	ledgerSum, err := suite.service.LedgerSumFor(ctx, wallet.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(12000), ledgerSum)
}

func (suite *WalletTestSuite) TestFreshUserBalanceEndpoint() {
	balance := &service.Balance{}
	suite.requestOK(http.MethodGet, "/v2/balance", nil, userToken(suite.service, 4242), http.StatusOK, balance)
	assert.Equal(suite.T(), int64(0), balance.Total)
	assert.Equal(suite.T(), int64(0), balance.Available)
	assert.Equal(suite.T(), int64(0), balance.Pending)
}

func TestWalletTestSuite(t *testing.T) {
	suite.Run(t, new(WalletTestSuite))
}

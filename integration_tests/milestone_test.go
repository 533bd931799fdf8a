package integration_tests

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"testing"

	"github.com/gigpay/escrowhub/common"
	"github.com/gigpay/escrowhub/controllers"
	"github.com/gigpay/escrowhub/db/models"
	"github.com/gigpay/escrowhub/gateway"
	"github.com/gigpay/escrowhub/lib/responses"
	"github.com/gigpay/escrowhub/lib/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type MilestoneTestSuite struct {
	TestSuite
	service    *service.EscrowhubService
	gateway    *MockGatewayClient
	payerToken string
	payeeToken string
}

func (suite *MilestoneTestSuite) SetupSuite() {
	suite.gateway = NewMockGatewayClient()
	svc, err := EscrowhubTestServiceInit(suite.gateway)
	if err != nil {
		log.Fatalf("Error initializing test service: %v", err)
	}
	suite.service = svc
	suite.setupEcho(svc)
	suite.payerToken = userToken(svc, payerId)
	suite.payeeToken = userToken(svc, payeeId)
}

func (suite *MilestoneTestSuite) SetupTest() {
	suite.gateway.Reset()
}

func (suite *MilestoneTestSuite) TearDownTest() {
	assert.NoError(suite.T(), clearTables(suite.service))
}

// createFundedEscrow sets up an escrow with one milestone per amount and a
// successful hold, returning the escrow and its milestones.
func (suite *MilestoneTestSuite) createFundedEscrow(engagementId string, amounts ...int64) (*models.Escrow, []models.Milestone) {
	ctx := context.Background()
	proposals := make([]service.MilestoneProposal, 0, len(amounts))
	var total int64
	for i, amount := range amounts {
		proposals = append(proposals, service.MilestoneProposal{
			Title:  fmt.Sprintf("milestone %d", i+1),
			Amount: amount,
		})
		total += amount
	}
	escrow, err := suite.service.CreateEscrow(ctx, engagementId, payerId, payeeId, total, proposals)
	assert.NoError(suite.T(), err)
	escrow, err = suite.service.FundEscrow(ctx, escrow.ID, payerId, "pm_card_visa")
	assert.NoError(suite.T(), err)
	milestones, err := suite.service.MilestonesFor(ctx, escrow.ID)
	assert.NoError(suite.T(), err)
	return escrow, milestones
}

func (suite *MilestoneTestSuite) submitMilestone(milestoneId int64) *models.Milestone {
	milestone := &models.Milestone{}
	suite.requestOK(http.MethodPost, fmt.Sprintf("/v2/milestones/%d/submit", milestoneId), nil, suite.payeeToken, http.StatusOK, milestone)
	return milestone
}

func (suite *MilestoneTestSuite) approveMilestone(milestoneId int64) *escrowDetailsResponse {
	details := &escrowDetailsResponse{}
	suite.requestOK(http.MethodPost, fmt.Sprintf("/v2/milestones/%d/approve", milestoneId), nil, suite.payerToken, http.StatusOK, details)
	return details
}

func (suite *MilestoneTestSuite) TestMilestoneLifecycle() {
	ctx := context.Background()
	_, milestones := suite.createFundedEscrow("eng-lifecycle", 20000, 30000)
	first, second := milestones[0], milestones[1]

	// payee submits the first milestone
	submitted := suite.submitMilestone(first.ID)
	assert.Equal(suite.T(), common.MilestoneStatusSubmitted, submitted.Status)

	// rejection without feedback is refused
	rec := suite.request(http.MethodPost, fmt.Sprintf("/v2/milestones/%d/reject", first.ID), &controllers.RejectMilestoneRequestBody{}, suite.payerToken)
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)

	// payer rejects with feedback, payee fixes and resubmits
	rejected := &models.Milestone{}
	suite.requestOK(http.MethodPost, fmt.Sprintf("/v2/milestones/%d/reject", first.ID), &controllers.RejectMilestoneRequestBody{
		Feedback: "the logo is missing",
	}, suite.payerToken, http.StatusOK, rejected)
	assert.Equal(suite.T(), common.MilestoneStatusRejected, rejected.Status)
	assert.Equal(suite.T(), "the logo is missing", rejected.Feedback)
	suite.submitMilestone(first.ID)

	// approval captures the milestone amount and credits the payee net of
	// the 10% platform fee
	details := suite.approveMilestone(first.ID)
	assert.Equal(suite.T(), common.EscrowStatusFunded, details.Escrow.Status)

	captureCalls := suite.gateway.CallsTo("CaptureHold")
	assert.Equal(suite.T(), 1, len(captureCalls))
	assert.Equal(suite.T(), int64(20000), captureCalls[0].Amount)
	assert.Equal(suite.T(), fmt.Sprintf("milestone-%d-capture", first.ID), captureCalls[0].IdempotencyKey)

	balance, err := suite.service.WalletBalance(ctx, payeeId)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(18000), balance.Total)

	// releasing the last milestone releases the whole escrow
	suite.submitMilestone(second.ID)
	details = suite.approveMilestone(second.ID)
	assert.Equal(suite.T(), common.EscrowStatusReleased, details.Escrow.Status)

	balance, err = suite.service.WalletBalance(ctx, payeeId)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(45000), balance.Total)
	assert.Equal(suite.T(), int64(45000), balance.Available)

	// fee wallet collected 10% of each milestone
	feeWallet, err := suite.service.SystemWallet(ctx, common.WalletTypeFees)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(5000), feeWallet.Balance)

	// payee's ledger has one credit per release, newest first, with running
	// balances
	payeeWallet, err := suite.service.GetOrCreateWallet(ctx, payeeId)
	assert.NoError(suite.T(), err)
	entries, err := suite.service.LedgerEntriesFor(ctx, payeeWallet.ID, service.LedgerFilter{})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, len(entries))
	assert.Equal(suite.T(), common.EntryTypeCredit, entries[0].EntryType)
	assert.Equal(suite.T(), int64(27000), entries[0].Amount)
	assert.Equal(suite.T(), int64(45000), entries[0].ResultingBalance)
	assert.Equal(suite.T(), int64(18000), entries[1].Amount)
	assert.Equal(suite.T(), int64(18000), entries[1].ResultingBalance)

	// ledger entries are also served over the API
	apiEntries := []models.LedgerEntry{}
	suite.requestOK(http.MethodGet, "/v2/ledger", nil, suite.payeeToken, http.StatusOK, &apiEntries)
	assert.Equal(suite.T(), 2, len(apiEntries))

	apiBalance := &service.Balance{}
	suite.requestOK(http.MethodGet, "/v2/balance", nil, suite.payeeToken, http.StatusOK, apiBalance)
	assert.Equal(suite.T(), int64(45000), apiBalance.Available)
}

func (suite *MilestoneTestSuite) TestSubmitAuthorization() {
	_, milestones := suite.createFundedEscrow("eng-submit-auth", 10000)

	// only the payee can submit work
	rec := suite.request(http.MethodPost, fmt.Sprintf("/v2/milestones/%d/submit", milestones[0].ID), nil, suite.payerToken)
	assert.Equal(suite.T(), http.StatusForbidden, rec.Code)
}

func (suite *MilestoneTestSuite) TestSubmitBeforeFunding() {
	ctx := context.Background()
	escrow, err := suite.service.CreateEscrow(ctx, "eng-unfunded", payerId, payeeId, 10000, []service.MilestoneProposal{
		{Title: "the work", Amount: 10000},
	})
	assert.NoError(suite.T(), err)
	milestones, err := suite.service.MilestonesFor(ctx, escrow.ID)
	assert.NoError(suite.T(), err)

	errorResp := suite.requestError(http.MethodPost, fmt.Sprintf("/v2/milestones/%d/submit", milestones[0].ID), nil, suite.payeeToken)
	assert.Equal(suite.T(), responses.InvalidStateError.Code, errorResp.Code)
}

func (suite *MilestoneTestSuite) TestApproveRequiresSubmission() {
	_, milestones := suite.createFundedEscrow("eng-approve-pending", 10000)

	errorResp := suite.requestError(http.MethodPost, fmt.Sprintf("/v2/milestones/%d/approve", milestones[0].ID), nil, suite.payerToken)
	assert.Equal(suite.T(), responses.InvalidStateError.Code, errorResp.Code)
	assert.Equal(suite.T(), 0, len(suite.gateway.CallsTo("CaptureHold")))
}

func (suite *MilestoneTestSuite) TestApproveByPayee() {
	_, milestones := suite.createFundedEscrow("eng-approve-payee", 10000)
	suite.submitMilestone(milestones[0].ID)

	rec := suite.request(http.MethodPost, fmt.Sprintf("/v2/milestones/%d/approve", milestones[0].ID), nil, suite.payeeToken)
	assert.Equal(suite.T(), http.StatusForbidden, rec.Code)
}

func (suite *MilestoneTestSuite) TestApproveTwiceCapturesOnce() {
	ctx := context.Background()
	_, milestones := suite.createFundedEscrow("eng-double-approve", 10000, 10000)
	suite.submitMilestone(milestones[0].ID)
	suite.approveMilestone(milestones[0].ID)

	errorResp := suite.requestError(http.MethodPost, fmt.Sprintf("/v2/milestones/%d/approve", milestones[0].ID), nil, suite.payerToken)
	assert.Equal(suite.T(), responses.InvalidStateError.Code, errorResp.Code)

	assert.Equal(suite.T(), 1, len(suite.gateway.CallsTo("CaptureHold")))
	balance, err := suite.service.WalletBalance(ctx, payeeId)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(9000), balance.Total)
}

func (suite *MilestoneTestSuite) TestConcurrentApprovalsReleaseOnce() {
	ctx := context.Background()
	escrow, milestones := suite.createFundedEscrow("eng-concurrent-approve", 10000, 10000)
	suite.submitMilestone(milestones[0].ID)

	// two racing approvals: the state re-check under the escrow lock lets
	// exactly one of them record the release
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _, err := suite.service.ReleaseMilestone(ctx, escrow.ID, milestones[0].ID, payerId)
			results <- err
		}()
	}
	var succeeded, lost int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, service.ErrInvalidState):
			lost++
		default:
			assert.NoError(suite.T(), err)
		}
	}
	assert.Equal(suite.T(), 1, succeeded)
	assert.Equal(suite.T(), 1, lost)

	// every capture attempt carries the same idempotency key, so at most
	// one capture takes effect at the processor
	captureCalls := suite.gateway.CallsTo("CaptureHold")
	assert.GreaterOrEqual(suite.T(), len(captureCalls), 1)
	for _, call := range captureCalls {
		assert.Equal(suite.T(), fmt.Sprintf("milestone-%d-capture", milestones[0].ID), call.IdempotencyKey)
	}

	// the payee was credited exactly once
	balance, err := suite.service.WalletBalance(ctx, payeeId)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(9000), balance.Total)
}

func (suite *MilestoneTestSuite) TestApproveResolvesDispute() {
	ctx := context.Background()
	escrow, milestones := suite.createFundedEscrow("eng-dispute-approve", 10000)
	suite.submitMilestone(milestones[0].ID)
	_, err := suite.service.MarkEscrowDisputed(ctx, escrow.ID, payeeId)
	assert.NoError(suite.T(), err)

	// the payer approving the submitted work resolves the dispute in the
	// payee's favor
	details := suite.approveMilestone(milestones[0].ID)
	assert.Equal(suite.T(), common.EscrowStatusReleased, details.Escrow.Status)

	balance, err := suite.service.WalletBalance(ctx, payeeId)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(9000), balance.Total)
}

func (suite *MilestoneTestSuite) TestCaptureDeclined() {
	ctx := context.Background()
	_, milestones := suite.createFundedEscrow("eng-capture-declined", 10000)
	suite.submitMilestone(milestones[0].ID)
	suite.gateway.CaptureOutcome = gateway.OutcomeDeclined

	rec := suite.request(http.MethodPost, fmt.Sprintf("/v2/milestones/%d/approve", milestones[0].ID), nil, suite.payerToken)
	assert.Equal(suite.T(), responses.PaymentProcessorError.HttpStatusCode, rec.Code)

	// milestone stays submitted and no money moved
	milestone, err := suite.service.FindMilestone(ctx, milestones[0].ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), common.MilestoneStatusSubmitted, milestone.Status)
	balance, err := suite.service.WalletBalance(ctx, payeeId)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(0), balance.Total)
}

func TestMilestoneTestSuite(t *testing.T) {
	suite.Run(t, new(MilestoneTestSuite))
}

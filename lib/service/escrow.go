package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gigpay/escrowhub/common"
	"github.com/gigpay/escrowhub/db/models"
	"github.com/gigpay/escrowhub/gateway"
	"github.com/getsentry/sentry-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// MilestoneProposal is one accepted milestone from the engagement proposal,
// turned into a Milestone row when the escrow is created.
type MilestoneProposal struct {
	Title   string
	Amount  int64
	DueDate time.Time
}

// CreateEscrow opens the holding account for an engagement and creates its
// milestone rows in the same transaction. The milestone amounts must sum to
// the escrow amount; an engagement can have only one escrow, enforced by
// the unique constraint on engagement_id.
func (svc *EscrowhubService) CreateEscrow(ctx context.Context, engagementId string, payerId, payeeId int64, amount int64, proposals []MilestoneProposal) (*models.Escrow, error) {
	if amount <= 0 || len(proposals) == 0 {
		return nil, ErrMilestoneSumMismatch
	}
	var proposalSum int64
	for _, proposal := range proposals {
		if proposal.Amount <= 0 {
			return nil, ErrMilestoneSumMismatch
		}
		proposalSum += proposal.Amount
	}
	if proposalSum != amount {
		return nil, ErrMilestoneSumMismatch
	}

	escrow := &models.Escrow{
		EngagementID: engagementId,
		PayerID:      payerId,
		PayeeID:      payeeId,
		Amount:       amount,
		Currency:     svc.Config.Currency,
		Status:       common.EscrowStatusCreated,
	}
	err := svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(escrow).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateEscrow
			}
			return err
		}
		for i, proposal := range proposals {
			milestone := models.Milestone{
				EscrowID: escrow.ID,
				Title:    proposal.Title,
				Amount:   proposal.Amount,
				Order:    i + 1,
				Status:   common.MilestoneStatusPending,
			}
			if !proposal.DueDate.IsZero() {
				milestone.DueDate = bun.NullTime{Time: proposal.DueDate}
			}
			if _, err := tx.NewInsert().Model(&milestone).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return escrow, nil
}

// FundEscrow places a manual-capture hold on the payer's payment method.
// The gateway call happens outside any DB transaction; on a gateway failure
// the escrow stays CREATED and nothing is persisted.
func (svc *EscrowhubService) FundEscrow(ctx context.Context, escrowId int64, payerId int64, paymentMethodRef string) (*models.Escrow, error) {
	// Phase 1: verify preconditions and release the lock before going to
	// the network.
	escrow, err := svc.FindEscrow(ctx, escrowId)
	if err != nil {
		return nil, err
	}
	if escrow.PayerID != payerId {
		return nil, ErrForbidden
	}
	if escrow.Status != common.EscrowStatusCreated {
		return nil, ErrInvalidState
	}

	// Phase 2: the idempotency key is derived from the escrow id, so a
	// retried or concurrent fund attempt yields the same hold.
	idempotencyKey := fmt.Sprintf("escrow-%d-fund", escrow.ID)
	result, err := gateway.CallWithRetry(ctx, svc.gatewayRetryBudget(), func(ctx context.Context) (*gateway.Result, error) {
		return svc.Gateway.CreateHold(ctx, escrow.Amount, escrow.Currency, paymentMethodRef, idempotencyKey)
	})
	if err != nil {
		return nil, err
	}
	if result.Outcome == gateway.OutcomeDeclined {
		svc.Logger.Errorf("Hold declined escrow_id:%v payer_id:%v message:%s", escrow.ID, payerId, result.Message)
		return nil, ErrPaymentDeclined
	}

	// Phase 3: record the outcome. A failure here means money is held at
	// the processor without a matching FUNDED row, which operators have to
	// reconcile by hand.
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := lockEscrow(ctx, tx, escrow); err != nil {
			return err
		}
		if escrow.Status != common.EscrowStatusCreated {
			return ErrInvalidState
		}
		escrow.Status = common.EscrowStatusFunded
		escrow.ExternalHoldReference = result.Reference
		escrow.FundedAt = bun.NullTime{Time: time.Now()}
		_, err := tx.NewUpdate().Model(escrow).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		// a concurrent fund attempt losing the state re-check got the same
		// hold via the shared idempotency key, so there is nothing to
		// reconcile in that case
		if !errors.Is(err, ErrInvalidState) {
			svc.reconciliationIncident(err, "fund", escrow.ID, result.Reference)
		}
		return nil, err
	}

	svc.notify(ctx, escrow.PayeeID, "escrow.funded", escrow)
	return escrow, nil
}

// RefundEscrow returns the held funds to the payer. From FUNDED this is a
// direct cancellation of the hold; from DISPUTED the dispute was resolved
// in the payer's favor and the processor refunds the remainder. Milestone
// amounts already captured stay with the payee.
func (svc *EscrowhubService) RefundEscrow(ctx context.Context, escrowId int64, actorId int64, reason string) (*models.Escrow, error) {
	escrow, err := svc.FindEscrow(ctx, escrowId)
	if err != nil {
		return nil, err
	}
	if escrow.PayerID != actorId && escrow.PayeeID != actorId {
		return nil, ErrForbidden
	}
	if escrow.Status != common.EscrowStatusFunded && escrow.Status != common.EscrowStatusDisputed {
		return nil, ErrInvalidState
	}

	fromDispute := escrow.Status == common.EscrowStatusDisputed
	idempotencyKey := fmt.Sprintf("escrow-%d-refund", escrow.ID)
	result, err := gateway.CallWithRetry(ctx, svc.gatewayRetryBudget(), func(ctx context.Context) (*gateway.Result, error) {
		if fromDispute {
			return svc.Gateway.RefundHold(ctx, escrow.ExternalHoldReference, idempotencyKey)
		}
		return svc.Gateway.CancelHold(ctx, escrow.ExternalHoldReference, idempotencyKey)
	})
	if err != nil {
		return nil, err
	}
	if result.Outcome == gateway.OutcomeDeclined {
		svc.Logger.Errorf("Refund declined escrow_id:%v message:%s", escrow.ID, result.Message)
		return nil, ErrPaymentDeclined
	}

	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := lockEscrow(ctx, tx, escrow); err != nil {
			return err
		}
		if !common.CanTransition(common.EscrowTransitions, escrow.Status, common.EscrowStatusRefunded) {
			return ErrInvalidState
		}
		escrow.Status = common.EscrowStatusRefunded
		escrow.RefundedAt = bun.NullTime{Time: time.Now()}
		_, err := tx.NewUpdate().Model(escrow).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidState) {
			svc.reconciliationIncident(err, "refund", escrow.ID, escrow.ExternalHoldReference)
		}
		return nil, err
	}

	svc.notify(ctx, escrow.PayerID, "escrow.refunded", escrow)
	svc.notify(ctx, escrow.PayeeID, "escrow.refunded", escrow)
	return escrow, nil
}

// MarkEscrowDisputed freezes a funded escrow. Calling it on an escrow that
// is already disputed is an error; callers that want idempotency must check
// the current state first.
func (svc *EscrowhubService) MarkEscrowDisputed(ctx context.Context, escrowId int64, actorId int64) (*models.Escrow, error) {
	escrow := &models.Escrow{ID: escrowId}
	err := svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := lockEscrow(ctx, tx, escrow); err != nil {
			return err
		}
		if escrow.PayerID != actorId && escrow.PayeeID != actorId {
			return ErrForbidden
		}
		if escrow.Status != common.EscrowStatusFunded {
			return ErrInvalidState
		}
		escrow.Status = common.EscrowStatusDisputed
		_, err := tx.NewUpdate().Model(escrow).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	svc.notify(ctx, escrow.PayerID, "escrow.disputed", escrow)
	svc.notify(ctx, escrow.PayeeID, "escrow.disputed", escrow)
	return escrow, nil
}

func (svc *EscrowhubService) FindEscrow(ctx context.Context, escrowId int64) (*models.Escrow, error) {
	escrow := &models.Escrow{}
	err := svc.DB.NewSelect().Model(escrow).Where("id = ?", escrowId).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return escrow, err
}

func (svc *EscrowhubService) FindEscrowByEngagement(ctx context.Context, engagementId string) (*models.Escrow, error) {
	escrow := &models.Escrow{}
	err := svc.DB.NewSelect().Model(escrow).Where("engagement_id = ?", engagementId).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return escrow, err
}

// lockEscrow re-reads the escrow row under FOR UPDATE so the state check
// and the transition write form one atomic read-modify-write.
func lockEscrow(ctx context.Context, tx bun.Tx, escrow *models.Escrow) error {
	err := tx.NewSelect().Model(escrow).Where("escrow.id = ?", escrow.ID).For("UPDATE").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (svc *EscrowhubService) gatewayRetryBudget() time.Duration {
	return time.Duration(svc.Config.GatewayRetryTimeout) * time.Second
}

// reconciliationIncident flags the dangerous case where the gateway call
// succeeded but recording the outcome failed. Retrying blindly could move
// money twice, so this is surfaced to operators instead.
func (svc *EscrowhubService) reconciliationIncident(err error, operation string, recordId int64, externalRef string) {
	svc.Logger.Errorf("RECONCILIATION REQUIRED: failed to record gateway outcome operation:%s record_id:%v external_ref:%s error: %v", operation, recordId, externalRef, err)
	sentry.CaptureException(fmt.Errorf("reconciliation required (%s, record %d, ref %s): %w", operation, recordId, externalRef, err))
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}

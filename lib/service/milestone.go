package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gigpay/escrowhub/common"
	"github.com/gigpay/escrowhub/db/models"
	"github.com/gigpay/escrowhub/gateway"
	"github.com/uptrace/bun"
)

// SubmitMilestone moves a milestone to SUBMITTED. Only the payee may
// submit, and only while the escrow is funded. Resubmission after a
// rejection goes through the same path.
func (svc *EscrowhubService) SubmitMilestone(ctx context.Context, milestoneId int64, actorId int64) (*models.Milestone, error) {
	milestone := &models.Milestone{ID: milestoneId}
	var escrow *models.Escrow
	err := svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		escrow, err = lockMilestoneWithEscrow(ctx, tx, milestone)
		if err != nil {
			return err
		}
		if escrow.PayeeID != actorId {
			return ErrForbidden
		}
		if escrow.Status != common.EscrowStatusFunded {
			return ErrInvalidState
		}
		if !common.CanTransition(common.MilestoneTransitions, milestone.Status, common.MilestoneStatusSubmitted) {
			return ErrInvalidState
		}
		milestone.Status = common.MilestoneStatusSubmitted
		milestone.SubmittedAt = bun.NullTime{Time: time.Now()}
		_, err = tx.NewUpdate().Model(milestone).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	svc.notify(ctx, escrow.PayerID, "milestone.submitted", milestone)
	return milestone, nil
}

// RejectMilestone sends a submitted milestone back to the payee. Feedback
// is mandatory so the payee knows what to fix before resubmitting.
func (svc *EscrowhubService) RejectMilestone(ctx context.Context, milestoneId int64, actorId int64, feedback string) (*models.Milestone, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, ErrFeedbackRequired
	}
	milestone := &models.Milestone{ID: milestoneId}
	var escrow *models.Escrow
	err := svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		escrow, err = lockMilestoneWithEscrow(ctx, tx, milestone)
		if err != nil {
			return err
		}
		if escrow.PayerID != actorId {
			return ErrForbidden
		}
		if milestone.Status != common.MilestoneStatusSubmitted {
			return ErrInvalidState
		}
		milestone.Status = common.MilestoneStatusRejected
		milestone.Feedback = feedback
		milestone.RejectedAt = bun.NullTime{Time: time.Now()}
		_, err = tx.NewUpdate().Model(milestone).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	svc.notify(ctx, escrow.PayeeID, "milestone.rejected", milestone)
	return milestone, nil
}

// ReleaseMilestone approves a submitted milestone: a partial capture of the
// escrow hold for the milestone amount, a ledger credit to the payee net of
// the platform fee, and, when this was the last open milestone, the escrow
// transition to RELEASED. Approving while the escrow is DISPUTED is allowed
// and resolves the dispute in the payee's favor for that milestone.
//
// The capture runs outside any DB transaction. Its idempotency key is fixed
// per milestone, so two concurrent release calls produce at most one
// capture; the loser then observes the APPROVED status inside the recording
// transaction and fails with ErrInvalidState.
func (svc *EscrowhubService) ReleaseMilestone(ctx context.Context, escrowId int64, milestoneId int64, actorId int64) (*models.Escrow, *models.Milestone, error) {
	// Phase 1: precondition checks, no lock held afterwards.
	milestone := &models.Milestone{ID: milestoneId}
	err := svc.DB.NewSelect().Model(milestone).Where("milestone.id = ?", milestoneId).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if milestone.EscrowID != escrowId {
		return nil, nil, ErrNotFound
	}
	escrow, err := svc.FindEscrow(ctx, escrowId)
	if err != nil {
		return nil, nil, err
	}
	if escrow.PayerID != actorId {
		return nil, nil, ErrForbidden
	}
	if !common.CanTransition(common.EscrowTransitions, escrow.Status, common.EscrowStatusReleased) {
		return nil, nil, ErrInvalidState
	}
	if milestone.Status != common.MilestoneStatusSubmitted {
		return nil, nil, ErrInvalidState
	}

	// Phase 2: capture the milestone amount from the hold.
	idempotencyKey := fmt.Sprintf("milestone-%d-capture", milestone.ID)
	result, err := gateway.CallWithRetry(ctx, svc.gatewayRetryBudget(), func(ctx context.Context) (*gateway.Result, error) {
		return svc.Gateway.CaptureHold(ctx, escrow.ExternalHoldReference, milestone.Amount, idempotencyKey)
	})
	if err != nil {
		return nil, nil, err
	}
	if result.Outcome == gateway.OutcomeDeclined {
		svc.Logger.Errorf("Capture declined escrow_id:%v milestone_id:%v message:%s", escrow.ID, milestone.ID, result.Message)
		return nil, nil, ErrPaymentDeclined
	}

	payeeWallet, err := svc.GetOrCreateWallet(ctx, escrow.PayeeID)
	if err != nil {
		svc.reconciliationIncident(err, "release", milestone.ID, escrow.ExternalHoldReference)
		return nil, nil, err
	}
	clearing, err := svc.SystemWallet(ctx, common.WalletTypeClearing)
	if err != nil {
		svc.reconciliationIncident(err, "release", milestone.ID, escrow.ExternalHoldReference)
		return nil, nil, err
	}
	feeWallet, err := svc.SystemWallet(ctx, common.WalletTypeFees)
	if err != nil {
		svc.reconciliationIncident(err, "release", milestone.ID, escrow.ExternalHoldReference)
		return nil, nil, err
	}

	// Phase 3: record the approval, the ledger movement and, if this was
	// the last open milestone, release the whole escrow.
	fee := svc.PlatformFee(milestone.Amount)
	net := milestone.Amount - fee
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := lockEscrow(ctx, tx, escrow); err != nil {
			return err
		}
		if _, err := lockMilestoneWithEscrow(ctx, tx, milestone); err != nil {
			return err
		}
		if !common.CanTransition(common.EscrowTransitions, escrow.Status, common.EscrowStatusReleased) ||
			milestone.Status != common.MilestoneStatusSubmitted {
			return ErrInvalidState
		}

		milestone.Status = common.MilestoneStatusApproved
		milestone.ApprovedAt = bun.NullTime{Time: time.Now()}
		if _, err := tx.NewUpdate().Model(milestone).WherePK().Exec(ctx); err != nil {
			return err
		}

		description := fmt.Sprintf("milestone %d release for engagement %s", milestone.ID, escrow.EngagementID)
		entries := []LedgerEntryParams{
			{WalletID: clearing.ID, EntryType: common.EntryTypeDebit, Amount: milestone.Amount, Description: description},
			{WalletID: payeeWallet.ID, EntryType: common.EntryTypeCredit, Amount: net, Description: description},
		}
		if fee > 0 {
			entries = append(entries, LedgerEntryParams{
				WalletID: feeWallet.ID, EntryType: common.EntryTypeCredit, Amount: fee,
				Description: fmt.Sprintf("platform fee for milestone %d", milestone.ID),
			})
		}
		if _, err := svc.RecordLedgerTransaction(ctx, tx, entries); err != nil {
			return err
		}

		open, err := tx.NewSelect().
			Model((*models.Milestone)(nil)).
			Where("escrow_id = ?", escrow.ID).
			Where("status <> ?", common.MilestoneStatusApproved).
			Count(ctx)
		if err != nil {
			return err
		}
		if open == 0 {
			escrow.Status = common.EscrowStatusReleased
			escrow.ReleasedAt = bun.NullTime{Time: time.Now()}
			if _, err := tx.NewUpdate().Model(escrow).WherePK().Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidState) {
			svc.reconciliationIncident(err, "release", milestone.ID, escrow.ExternalHoldReference)
		}
		return nil, nil, err
	}

	svc.notify(ctx, escrow.PayeeID, "milestone.approved", milestone)
	if escrow.Status == common.EscrowStatusReleased {
		svc.notify(ctx, escrow.PayeeID, "escrow.released", escrow)
	}
	return escrow, milestone, nil
}

func (svc *EscrowhubService) MilestonesFor(ctx context.Context, escrowId int64) ([]models.Milestone, error) {
	milestones := []models.Milestone{}
	err := svc.DB.NewSelect().
		Model(&milestones).
		Where("escrow_id = ?", escrowId).
		OrderExpr("sort_order ASC").
		Scan(ctx)
	return milestones, err
}

func (svc *EscrowhubService) FindMilestone(ctx context.Context, milestoneId int64) (*models.Milestone, error) {
	milestone := &models.Milestone{}
	err := svc.DB.NewSelect().Model(milestone).Where("milestone.id = ?", milestoneId).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return milestone, err
}

// lockMilestoneWithEscrow locks the milestone row and returns its escrow.
// The escrow is read without a lock; callers mutating the escrow must lock
// it separately (and before the milestone, to keep lock order stable).
func lockMilestoneWithEscrow(ctx context.Context, tx bun.Tx, milestone *models.Milestone) (*models.Escrow, error) {
	err := tx.NewSelect().Model(milestone).Where("milestone.id = ?", milestone.ID).For("UPDATE").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	escrow := &models.Escrow{}
	err = tx.NewSelect().Model(escrow).Where("escrow.id = ?", milestone.EscrowID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return escrow, err
}

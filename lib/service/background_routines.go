package service

import (
	"context"
	"time"

	"github.com/gigpay/escrowhub/common"
	"github.com/gigpay/escrowhub/db/models"
	"github.com/gigpay/escrowhub/gateway"
)

// StartStalePayoutRoutine periodically resolves payouts that got stuck
// between phases: APPROVED payouts whose transfer call never completed are
// retried with their original idempotency key, and PROCESSING payouts whose
// completion webhook never arrived are polled against the gateway.
func (svc *EscrowhubService) StartStalePayoutRoutine(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(svc.Config.PayoutPollInterval) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := svc.CheckStalePayouts(ctx); err != nil {
				svc.Logger.Errorf("Stale payout check failed: %v", err)
			}
		}
	}
}

func (svc *EscrowhubService) CheckStalePayouts(ctx context.Context) error {
	staleBefore := time.Now().Add(-time.Duration(svc.Config.PayoutStaleAfter) * time.Second)

	approved := []models.Payout{}
	err := svc.DB.NewSelect().
		Model(&approved).
		Where("status = ?", common.PayoutStatusApproved).
		Where("approved_at < ?", staleBefore).
		Scan(ctx)
	if err != nil {
		return err
	}
	for i := range approved {
		payout := approved[i]
		svc.Logger.Infof("Retrying stale approved payout payout_id:%v", payout.ID)
		if _, err := svc.executePayoutTransfer(ctx, &payout); err != nil {
			svc.Logger.Errorf("Stale payout retry failed payout_id:%v error: %v", payout.ID, err)
		}
	}

	processing := []models.Payout{}
	err = svc.DB.NewSelect().
		Model(&processing).
		Where("status = ?", common.PayoutStatusProcessing).
		Where("approved_at < ?", staleBefore).
		Scan(ctx)
	if err != nil {
		return err
	}
	for i := range processing {
		payout := processing[i]
		result, err := svc.Gateway.TransferStatus(ctx, payout.ExternalTransferReference)
		if err != nil {
			svc.Logger.Errorf("Transfer status check failed payout_id:%v error: %v", payout.ID, err)
			continue
		}
		switch result.Outcome {
		case gateway.OutcomeSucceeded:
			if _, err := svc.CompletePayout(ctx, payout.ExternalTransferReference); err != nil {
				svc.Logger.Errorf("Failed to complete stale payout payout_id:%v error: %v", payout.ID, err)
			}
		case gateway.OutcomePending:
			// still settling, check again next tick
		case gateway.OutcomeDeclined:
			svc.reconciliationIncident(ErrPaymentDeclined, "payout-status", payout.ID, payout.ExternalTransferReference)
		}
	}
	return nil
}

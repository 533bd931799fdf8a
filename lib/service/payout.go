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
	"github.com/uptrace/bun"
)

// RequestPayout creates a PENDING withdrawal request. No funds move until
// an approver signs it off. The wallet row is locked while checking for
// other in-flight payouts so two concurrent requests cannot both pass the
// exclusivity check.
func (svc *EscrowhubService) RequestPayout(ctx context.Context, userId int64, amount int64, notes string) (*models.Payout, error) {
	if amount < svc.Config.PayoutMinimum {
		return nil, ErrBelowMinimum
	}
	wallet, err := svc.GetOrCreateWallet(ctx, userId)
	if err != nil {
		return nil, err
	}
	if !wallet.PayoutsEnabled || wallet.ExternalAccountID == "" || wallet.AccountStatus != common.AccountStatusVerified {
		return nil, ErrPayoutNotEnabled
	}

	fee := svc.PayoutFee(amount)
	payout := &models.Payout{
		WalletID:  wallet.ID,
		Amount:    amount,
		Fee:       fee,
		NetAmount: amount - fee,
		Status:    common.PayoutStatusPending,
		Notes:     notes,
	}
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(wallet).Where("wallet.id = ?", wallet.ID).For("UPDATE").Scan(ctx); err != nil {
			return err
		}
		pending, err := svc.pendingPayoutTotal(ctx, tx, wallet.ID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return ErrDuplicatePendingPayout
		}
		if wallet.Balance-pending < amount {
			return ErrInsufficientFunds
		}
		_, err = tx.NewInsert().Model(payout).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// ApprovePayout initiates the external transfer and, on success, debits the
// wallet for the gross amount. The APPROVED status is committed before the
// gateway call as the pending-external-call marker; a crash between the two
// phases leaves an APPROVED payout the background routine can pick up.
func (svc *EscrowhubService) ApprovePayout(ctx context.Context, payoutId int64, approverId int64) (*models.Payout, error) {
	payout := &models.Payout{ID: payoutId}
	err := svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := lockPayout(ctx, tx, payout); err != nil {
			return err
		}
		if payout.Status != common.PayoutStatusPending {
			return ErrInvalidState
		}
		payout.Status = common.PayoutStatusApproved
		payout.ApprovedAt = bun.NullTime{Time: time.Now()}
		_, err := tx.NewUpdate().Model(payout).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	svc.Logger.Infof("Payout approved payout_id:%v approver_id:%v", payout.ID, approverId)

	return svc.executePayoutTransfer(ctx, payout)
}

// executePayoutTransfer runs phases 2 and 3 for an APPROVED payout: the
// gateway transfer and the recording transaction. Shared with the stale
// payout recovery routine.
func (svc *EscrowhubService) executePayoutTransfer(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	wallet, err := svc.FindWallet(ctx, payout.WalletID)
	if err != nil {
		return nil, err
	}

	idempotencyKey := fmt.Sprintf("payout-%d-transfer", payout.ID)
	result, err := gateway.CallWithRetry(ctx, svc.gatewayRetryBudget(), func(ctx context.Context) (*gateway.Result, error) {
		return svc.Gateway.TransferToExternalAccount(ctx, wallet.ExternalAccountID, payout.NetAmount, idempotencyKey)
	})
	if err != nil {
		// Ambiguous or exhausted: the payout stays APPROVED and is retried
		// with the same idempotency key by the background routine.
		svc.Logger.Errorf("Payout transfer unresolved payout_id:%v error: %v", payout.ID, err)
		return nil, err
	}
	if result.Outcome == gateway.OutcomeDeclined {
		failErr := svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			if err := lockPayout(ctx, tx, payout); err != nil {
				return err
			}
			payout.Status = common.PayoutStatusFailed
			payout.ErrorMessage = result.Message
			_, err := tx.NewUpdate().Model(payout).WherePK().Exec(ctx)
			return err
		})
		if failErr != nil {
			return nil, failErr
		}
		return nil, ErrPaymentDeclined
	}

	clearing, err := svc.SystemWallet(ctx, common.WalletTypeClearing)
	if err != nil {
		svc.reconciliationIncident(err, "payout", payout.ID, result.Reference)
		return nil, err
	}
	feeWallet, err := svc.SystemWallet(ctx, common.WalletTypeFees)
	if err != nil {
		svc.reconciliationIncident(err, "payout", payout.ID, result.Reference)
		return nil, err
	}

	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := lockPayout(ctx, tx, payout); err != nil {
			return err
		}
		if payout.Status != common.PayoutStatusApproved {
			return ErrInvalidState
		}
		payout.Status = common.PayoutStatusProcessing
		payout.ExternalTransferReference = result.Reference
		if _, err := tx.NewUpdate().Model(payout).WherePK().Exec(ctx); err != nil {
			return err
		}

		description := fmt.Sprintf("payout %d to external account", payout.ID)
		entries := []LedgerEntryParams{
			{WalletID: wallet.ID, EntryType: common.EntryTypeDebit, Amount: payout.Amount, Description: description},
			{WalletID: clearing.ID, EntryType: common.EntryTypeCredit, Amount: payout.NetAmount, Description: description},
		}
		if payout.Fee > 0 {
			entries = append(entries, LedgerEntryParams{
				WalletID: feeWallet.ID, EntryType: common.EntryTypeCredit, Amount: payout.Fee,
				Description: fmt.Sprintf("payout fee for payout %d", payout.ID),
			})
		}
		_, err := svc.RecordLedgerTransaction(ctx, tx, entries)
		return err
	})
	if err != nil {
		svc.reconciliationIncident(err, "payout", payout.ID, result.Reference)
		return nil, err
	}

	if wallet.UserID != 0 {
		svc.notify(ctx, wallet.UserID, "payout.processing", payout)
	}
	return payout, nil
}

// RejectPayout declines a PENDING request. No funds were ever moved.
func (svc *EscrowhubService) RejectPayout(ctx context.Context, payoutId int64, approverId int64, reason string) (*models.Payout, error) {
	payout := &models.Payout{ID: payoutId}
	err := svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := lockPayout(ctx, tx, payout); err != nil {
			return err
		}
		if payout.Status != common.PayoutStatusPending {
			return ErrInvalidState
		}
		payout.Status = common.PayoutStatusRejected
		payout.RejectionReason = reason
		_, err := tx.NewUpdate().Model(payout).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	svc.Logger.Infof("Payout rejected payout_id:%v approver_id:%v reason:%s", payout.ID, approverId, reason)

	wallet, err := svc.FindWallet(ctx, payout.WalletID)
	if err == nil && wallet.UserID != 0 {
		svc.notify(ctx, wallet.UserID, "payout.rejected", payout)
	}
	return payout, nil
}

// CompletePayout is driven by the gateway's asynchronous transfer webhook.
// Delivery is at-least-once, so an already-completed payout is returned
// as-is instead of failing.
func (svc *EscrowhubService) CompletePayout(ctx context.Context, externalTransferReference string) (*models.Payout, error) {
	payout := &models.Payout{}
	err := svc.DB.NewSelect().Model(payout).Where("external_transfer_reference = ?", externalTransferReference).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if payout.Status == common.PayoutStatusCompleted {
		return payout, nil
	}

	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := lockPayout(ctx, tx, payout); err != nil {
			return err
		}
		if payout.Status == common.PayoutStatusCompleted {
			return nil
		}
		if payout.Status != common.PayoutStatusProcessing {
			return ErrInvalidState
		}
		payout.Status = common.PayoutStatusCompleted
		payout.CompletedAt = bun.NullTime{Time: time.Now()}
		_, err := tx.NewUpdate().Model(payout).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	wallet, err := svc.FindWallet(ctx, payout.WalletID)
	if err == nil && wallet.UserID != 0 {
		svc.notify(ctx, wallet.UserID, "payout.completed", payout)
	}
	return payout, nil
}

func (svc *EscrowhubService) PayoutsFor(ctx context.Context, userId int64) ([]models.Payout, error) {
	wallet, err := svc.GetOrCreateWallet(ctx, userId)
	if err != nil {
		return nil, err
	}
	payouts := []models.Payout{}
	err = svc.DB.NewSelect().
		Model(&payouts).
		Where("wallet_id = ?", wallet.ID).
		OrderExpr("id DESC").
		Limit(100).
		Scan(ctx)
	return payouts, err
}

func (svc *EscrowhubService) FindPayout(ctx context.Context, payoutId int64) (*models.Payout, error) {
	payout := &models.Payout{}
	err := svc.DB.NewSelect().Model(payout).Where("payout.id = ?", payoutId).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return payout, err
}

func lockPayout(ctx context.Context, tx bun.Tx, payout *models.Payout) error {
	err := tx.NewSelect().Model(payout).Where("payout.id = ?", payout.ID).For("UPDATE").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

package service

import (
	"context"
	"fmt"

	"github.com/gigpay/escrowhub/db/models"
	"github.com/getsentry/sentry-go"
)

// WalletMismatch is one wallet whose cached balance disagrees with the sum
// of its ledger entries.
type WalletMismatch struct {
	WalletID      int64
	CachedBalance int64
	LedgerBalance int64
}

// ReconcileWallets recomputes every wallet balance from the ledger and
// returns the wallets that disagree with their cached balance. The ledger
// is the source of truth; a mismatch means a write bypassed the
// RecordLedgerTransaction path and needs operator attention.
func (svc *EscrowhubService) ReconcileWallets(ctx context.Context) ([]WalletMismatch, error) {
	wallets := []models.Wallet{}
	err := svc.DB.NewSelect().Model(&wallets).OrderExpr("id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}

	mismatches := []WalletMismatch{}
	for _, wallet := range wallets {
		ledgerBalance, err := svc.LedgerSumFor(ctx, wallet.ID)
		if err != nil {
			return nil, err
		}
		if ledgerBalance != wallet.Balance {
			mismatch := WalletMismatch{
				WalletID:      wallet.ID,
				CachedBalance: wallet.Balance,
				LedgerBalance: ledgerBalance,
			}
			mismatches = append(mismatches, mismatch)
			svc.Logger.Errorf("Wallet balance mismatch wallet_id:%v cached:%v ledger:%v", wallet.ID, wallet.Balance, ledgerBalance)
			sentry.CaptureException(fmt.Errorf("wallet %d balance mismatch: cached %d, ledger %d", wallet.ID, wallet.Balance, ledgerBalance))
		}
	}
	return mismatches, nil
}

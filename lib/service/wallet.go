package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gigpay/escrowhub/common"
	"github.com/gigpay/escrowhub/db/models"
	"github.com/uptrace/bun"
)

type Balance struct {
	Available int64 `json:"available"`
	Pending   int64 `json:"pending"`
	Total     int64 `json:"total"`
}

// GetOrCreateWallet lazily creates a zero-balance wallet on a user's first
// financial event. Safe to call concurrently: the unique constraint on
// user_id makes the insert race resolve to a single row.
func (svc *EscrowhubService) GetOrCreateWallet(ctx context.Context, userId int64) (*models.Wallet, error) {
	wallet := &models.Wallet{}
	err := svc.DB.NewSelect().Model(wallet).Where("user_id = ?", userId).Limit(1).Scan(ctx)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	wallet = &models.Wallet{
		UserID:        userId,
		Type:          common.WalletTypeUser,
		AccountStatus: common.AccountStatusUnverified,
	}
	_, err = svc.DB.NewInsert().Model(wallet).On("CONFLICT (user_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return nil, err
	}
	// Re-read to cover the case where a concurrent insert won the race.
	err = svc.DB.NewSelect().Model(wallet).Where("user_id = ?", userId).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (svc *EscrowhubService) FindWallet(ctx context.Context, walletId int64) (*models.Wallet, error) {
	wallet := &models.Wallet{}
	err := svc.DB.NewSelect().Model(wallet).Where("id = ?", walletId).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return wallet, err
}

// SystemWallet returns one of the platform wallets (clearing, fees) created
// by the init migration.
func (svc *EscrowhubService) SystemWallet(ctx context.Context, walletType string) (*models.Wallet, error) {
	wallet := &models.Wallet{}
	err := svc.DB.NewSelect().Model(wallet).Where("type = ?", walletType).Limit(1).Scan(ctx)
	return wallet, err
}

// WalletBalance returns the user's balance split into available, pending
// and total. Pending is the sum of payouts that have not reached a terminal
// state yet.
func (svc *EscrowhubService) WalletBalance(ctx context.Context, userId int64) (*Balance, error) {
	wallet, err := svc.GetOrCreateWallet(ctx, userId)
	if err != nil {
		return nil, err
	}
	pending, err := svc.pendingPayoutTotal(ctx, svc.DB, wallet.ID)
	if err != nil {
		return nil, err
	}
	available := wallet.Balance - pending
	if available < 0 {
		available = 0
	}
	return &Balance{
		Available: available,
		Pending:   pending,
		Total:     wallet.Balance,
	}, nil
}

func (svc *EscrowhubService) pendingPayoutTotal(ctx context.Context, db bun.IDB, walletId int64) (int64, error) {
	var pending int64
	err := db.NewSelect().
		Model((*models.Payout)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("wallet_id = ?", walletId).
		Where("status IN (?)", bun.In(common.PayoutNonTerminalStatuses)).
		Scan(ctx, &pending)
	return pending, err
}

// EnablePayouts records the outcome of the external KYC/bank verification
// for a user's wallet. Verification itself happens outside this system.
func (svc *EscrowhubService) EnablePayouts(ctx context.Context, userId int64, externalAccountId string) (*models.Wallet, error) {
	wallet, err := svc.GetOrCreateWallet(ctx, userId)
	if err != nil {
		return nil, err
	}
	wallet.PayoutsEnabled = true
	wallet.ExternalAccountID = externalAccountId
	wallet.AccountStatus = common.AccountStatusVerified
	_, err = svc.DB.NewUpdate().Model(wallet).WherePK().Exec(ctx)
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// CreditWallet books amount onto the user's wallet with a matching debit on
// the platform clearing wallet.
func (svc *EscrowhubService) CreditWallet(ctx context.Context, userId int64, amount int64, reason string) (string, error) {
	wallet, err := svc.GetOrCreateWallet(ctx, userId)
	if err != nil {
		return "", err
	}
	clearing, err := svc.SystemWallet(ctx, common.WalletTypeClearing)
	if err != nil {
		return "", err
	}
	var transactionId string
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		transactionId, err = svc.RecordLedgerTransaction(ctx, tx, []LedgerEntryParams{
			{WalletID: wallet.ID, EntryType: common.EntryTypeCredit, Amount: amount, Description: reason},
			{WalletID: clearing.ID, EntryType: common.EntryTypeDebit, Amount: amount, Description: reason},
		})
		return err
	})
	return transactionId, err
}

// DebitWallet books amount off the user's wallet with a matching credit on
// the platform clearing wallet. Fails when the amount exceeds the available
// (not merely total) balance. The wallet row is locked while checking so a
// concurrent debit or payout request cannot eat into the same funds.
func (svc *EscrowhubService) DebitWallet(ctx context.Context, userId int64, amount int64, reason string) (string, error) {
	wallet, err := svc.GetOrCreateWallet(ctx, userId)
	if err != nil {
		return "", err
	}
	clearing, err := svc.SystemWallet(ctx, common.WalletTypeClearing)
	if err != nil {
		return "", err
	}
	var transactionId string
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(wallet).Where("wallet.id = ?", wallet.ID).For("UPDATE").Scan(ctx); err != nil {
			return err
		}
		pending, err := svc.pendingPayoutTotal(ctx, tx, wallet.ID)
		if err != nil {
			return err
		}
		if wallet.Balance-pending < amount {
			return ErrInsufficientFunds
		}
		transactionId, err = svc.RecordLedgerTransaction(ctx, tx, []LedgerEntryParams{
			{WalletID: wallet.ID, EntryType: common.EntryTypeDebit, Amount: amount, Description: reason},
			{WalletID: clearing.ID, EntryType: common.EntryTypeCredit, Amount: amount, Description: reason},
		})
		return err
	})
	return transactionId, err
}

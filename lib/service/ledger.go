package service

import (
	"context"
	"time"

	"github.com/gigpay/escrowhub/common"
	"github.com/gigpay/escrowhub/db/models"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LedgerEntryParams describes one leg of a ledger transaction.
type LedgerEntryParams struct {
	WalletID    int64
	EntryType   string
	Amount      int64
	Description string
}

// RecordLedgerTransaction appends a balanced set of ledger entries and
// updates the cached balance of every touched wallet, all inside the
// caller's transaction. This is the only code path that writes wallet
// balances; wallet rows are locked in a stable order to avoid deadlocks
// between concurrent transactions.
func (svc *EscrowhubService) RecordLedgerTransaction(ctx context.Context, tx bun.Tx, entries []LedgerEntryParams) (string, error) {
	if len(entries) == 0 {
		return "", ErrImbalancedTransaction
	}
	var debits, credits int64
	walletIds := map[int64]bool{}
	for _, entry := range entries {
		if entry.Amount <= 0 {
			return "", ErrImbalancedTransaction
		}
		switch entry.EntryType {
		case common.EntryTypeDebit:
			debits += entry.Amount
		case common.EntryTypeCredit:
			credits += entry.Amount
		default:
			return "", ErrImbalancedTransaction
		}
		walletIds[entry.WalletID] = true
	}
	if debits != credits {
		return "", ErrImbalancedTransaction
	}

	// Lock wallet rows lowest id first.
	lockOrder := make([]int64, 0, len(walletIds))
	for id := range walletIds {
		lockOrder = append(lockOrder, id)
	}
	for i := 0; i < len(lockOrder); i++ {
		for j := i + 1; j < len(lockOrder); j++ {
			if lockOrder[j] < lockOrder[i] {
				lockOrder[i], lockOrder[j] = lockOrder[j], lockOrder[i]
			}
		}
	}
	wallets := map[int64]*models.Wallet{}
	for _, walletId := range lockOrder {
		wallet := &models.Wallet{}
		err := tx.NewSelect().Model(wallet).Where("id = ?", walletId).For("UPDATE").Scan(ctx)
		if err != nil {
			return "", err
		}
		wallets[walletId] = wallet
	}

	transactionId := uuid.NewString()
	for _, params := range entries {
		wallet := wallets[params.WalletID]
		if params.EntryType == common.EntryTypeCredit {
			wallet.Balance += params.Amount
			if wallet.Type == common.WalletTypeUser {
				wallet.LifetimeEarned += params.Amount
			}
		} else {
			wallet.Balance -= params.Amount
			if wallet.Type == common.WalletTypeUser {
				wallet.LifetimeSpent += params.Amount
			}
		}
		entry := models.LedgerEntry{
			TransactionID:    transactionId,
			WalletID:         params.WalletID,
			EntryType:        params.EntryType,
			Amount:           params.Amount,
			ResultingBalance: wallet.Balance,
			Description:      params.Description,
		}
		if _, err := tx.NewInsert().Model(&entry).Exec(ctx); err != nil {
			return "", err
		}
	}
	for _, walletId := range lockOrder {
		// The check constraint on user wallets rejects the update if the
		// balance would go negative.
		if _, err := tx.NewUpdate().Model(wallets[walletId]).WherePK().Exec(ctx); err != nil {
			return "", err
		}
	}
	return transactionId, nil
}

// LedgerFilter narrows a ledger history query. Zero values mean "no
// constraint" for every field except Limit, which is capped at 100.
type LedgerFilter struct {
	EntryType string
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// LedgerEntriesFor returns a wallet's history, newest first.
func (svc *EscrowhubService) LedgerEntriesFor(ctx context.Context, walletId int64, filter LedgerFilter) ([]models.LedgerEntry, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	entries := []models.LedgerEntry{}
	query := svc.DB.NewSelect().
		Model(&entries).
		Where("wallet_id = ?", walletId)
	if filter.EntryType != "" {
		query = query.Where("entry_type = ?", filter.EntryType)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at < ?", filter.Until)
	}
	err := query.
		OrderExpr("id DESC").
		Limit(limit).
		Offset(filter.Offset).
		Scan(ctx)
	return entries, err
}

// LedgerSumFor recomputes a wallet balance from its entries. Used by the
// reconciliation job, never by the write path.
func (svc *EscrowhubService) LedgerSumFor(ctx context.Context, walletId int64) (int64, error) {
	var sum int64
	err := svc.DB.NewSelect().
		Model((*models.LedgerEntry)(nil)).
		ColumnExpr("COALESCE(SUM(CASE WHEN entry_type = ? THEN amount ELSE -amount END), 0)", common.EntryTypeCredit).
		Where("wallet_id = ?", walletId).
		Scan(ctx, &sum)
	return sum, err
}

package migrations

import (
	"context"

	"github.com/gigpay/escrowhub/common"
	"github.com/gigpay/escrowhub/db/models"
	"github.com/uptrace/bun"
)

/* Since this init will reflect the latest model fields when run on fresh db
make sure that when you add/remove columns in subsequent migrations IfNotExists/IfExists is used
otherwise it's going to result in errors.
*/
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {

		if _, err := db.NewCreateTable().Model((*models.Wallet)(nil)).Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.LedgerEntry)(nil)).Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.Escrow)(nil)).Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.Milestone)(nil)).Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.Payout)(nil)).Exec(ctx); err != nil {
			return err
		}

		// User wallets may never go negative. System wallets (clearing)
		// represent money held outside user balances and are exempt.
		if _, err := db.Exec(`ALTER TABLE wallets ADD CONSTRAINT check_user_balance_not_negative CHECK (type <> 'user' OR balance >= 0)`); err != nil {
			return err
		}
		if _, err := db.Exec(`CREATE INDEX ledger_entries_wallet_id_idx ON ledger_entries (wallet_id)`); err != nil {
			return err
		}
		if _, err := db.Exec(`CREATE INDEX ledger_entries_transaction_id_idx ON ledger_entries (transaction_id)`); err != nil {
			return err
		}
		if _, err := db.Exec(`CREATE INDEX milestones_escrow_id_idx ON milestones (escrow_id)`); err != nil {
			return err
		}
		if _, err := db.Exec(`CREATE INDEX payouts_wallet_id_idx ON payouts (wallet_id)`); err != nil {
			return err
		}
		if _, err := db.Exec(`CREATE UNIQUE INDEX payouts_external_transfer_reference_idx ON payouts (external_transfer_reference) WHERE external_transfer_reference IS NOT NULL`); err != nil {
			return err
		}

		// Platform-level system wallets. Every user credit/debit gets its
		// counter-entry against the clearing wallet; fees accumulate on the
		// fees wallet.
		systemWallets := []models.Wallet{
			{Type: common.WalletTypeClearing, AccountStatus: common.AccountStatusVerified},
			{Type: common.WalletTypeFees, AccountStatus: common.AccountStatusVerified},
		}
		for _, wallet := range systemWallets {
			wallet := wallet
			if _, err := db.NewInsert().Model(&wallet).Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	}, nil)
}

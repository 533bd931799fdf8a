package models

import (
	"time"
)

// LedgerEntry : append-only double-entry record. Entries sharing a
// TransactionID always balance (sum of debits == sum of credits); rows are
// never updated or deleted after insert.
type LedgerEntry struct {
	ID               int64     `json:"id" bun:",pk,autoincrement"`
	TransactionID    string    `json:"transaction_id" bun:",notnull"`
	WalletID         int64     `json:"wallet_id" bun:",notnull"`
	Wallet           *Wallet   `json:"-" bun:"rel:belongs-to,join:wallet_id=id"`
	EntryType        string    `json:"entry_type" bun:",notnull"`
	Amount           int64     `json:"amount" bun:",notnull"`
	ResultingBalance int64     `json:"resulting_balance" bun:",notnull"`
	Description      string    `json:"description" bun:",nullzero"`
	CreatedAt        time.Time `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}

package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Wallet : per-user cached balance, derived from the ledger. The Balance
// column is only ever written inside the same transaction that appends the
// matching ledger entries. System wallets (clearing, fees) have a zero
// UserID and a non-user Type.
type Wallet struct {
	ID                int64        `json:"id" bun:",pk,autoincrement"`
	UserID            int64        `json:"user_id" bun:",nullzero,unique"`
	Type              string       `json:"type" bun:",notnull,default:'user'"`
	Balance           int64        `json:"balance" bun:",notnull,default:0"`
	LifetimeEarned    int64        `json:"lifetime_earned" bun:",notnull,default:0"`
	LifetimeSpent     int64        `json:"lifetime_spent" bun:",notnull,default:0"`
	PayoutsEnabled    bool         `json:"payouts_enabled" bun:",notnull,default:false"`
	ExternalAccountID string       `json:"external_account_id,omitempty" bun:",nullzero"`
	AccountStatus     string       `json:"account_status" bun:",notnull,default:'unverified'"`
	CreatedAt         time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt         bun.NullTime `json:"updated_at"`
}

func (w *Wallet) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		w.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Wallet)(nil)

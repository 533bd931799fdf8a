package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Payout : withdrawal of wallet funds to an external bank account. At most
// one payout per wallet may be in a non-terminal state at a time.
type Payout struct {
	ID                        int64        `json:"id" bun:",pk,autoincrement"`
	WalletID                  int64        `json:"wallet_id" bun:",notnull"`
	Wallet                    *Wallet      `json:"-" bun:"rel:belongs-to,join:wallet_id=id"`
	Amount                    int64        `json:"amount" bun:",notnull"`
	Fee                       int64        `json:"fee" bun:",notnull,default:0"`
	NetAmount                 int64        `json:"net_amount" bun:",notnull"`
	Status                    string       `json:"status" bun:",notnull,default:'pending'"`
	Notes                     string       `json:"notes,omitempty" bun:",nullzero"`
	ExternalTransferReference string       `json:"external_transfer_reference,omitempty" bun:",nullzero"`
	RejectionReason           string       `json:"rejection_reason,omitempty" bun:",nullzero"`
	ErrorMessage              string       `json:"error_message,omitempty" bun:",nullzero"`
	RequestedAt               time.Time    `json:"requested_at" bun:",nullzero,notnull,default:current_timestamp"`
	ApprovedAt                bun.NullTime `json:"approved_at"`
	CompletedAt               bun.NullTime `json:"completed_at"`
	UpdatedAt                 bun.NullTime `json:"updated_at"`
}

func (p *Payout) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		p.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Payout)(nil)

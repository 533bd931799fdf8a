package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Escrow : holding account for one engagement (gig + application pair).
// Amount is immutable after creation; status only moves through the
// transition table in the common package. Rows are kept forever for audit.
type Escrow struct {
	ID                    int64        `json:"id" bun:",pk,autoincrement"`
	EngagementID          string       `json:"engagement_id" bun:",notnull,unique"`
	PayerID               int64        `json:"payer_id" bun:",notnull"`
	PayeeID               int64        `json:"payee_id" bun:",notnull"`
	Amount                int64        `json:"amount" bun:",notnull"`
	Currency              string       `json:"currency" bun:",notnull,default:'usd'"`
	Status                string       `json:"status" bun:",notnull,default:'created'"`
	ExternalHoldReference string       `json:"external_hold_reference,omitempty" bun:",nullzero"`
	FundedAt              bun.NullTime `json:"funded_at"`
	ReleasedAt            bun.NullTime `json:"released_at"`
	RefundedAt            bun.NullTime `json:"refunded_at"`
	CreatedAt             time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt             bun.NullTime `json:"updated_at"`
}

func (e *Escrow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		e.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Escrow)(nil)

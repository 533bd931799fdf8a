package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Milestone : sub-deliverable of an engagement. The amounts of all
// milestones for one escrow sum to the escrow amount, checked at creation.
type Milestone struct {
	ID          int64        `json:"id" bun:",pk,autoincrement"`
	EscrowID    int64        `json:"escrow_id" bun:",notnull"`
	Escrow      *Escrow      `json:"-" bun:"rel:belongs-to,join:escrow_id=id"`
	Title       string       `json:"title" bun:",notnull"`
	Amount      int64        `json:"amount" bun:",notnull"`
	Order       int          `json:"order" bun:"sort_order,notnull"`
	Status      string       `json:"status" bun:",notnull,default:'pending'"`
	DueDate     bun.NullTime `json:"due_date"`
	Feedback    string       `json:"feedback,omitempty" bun:",nullzero"`
	SubmittedAt bun.NullTime `json:"submitted_at"`
	ApprovedAt  bun.NullTime `json:"approved_at"`
	RejectedAt  bun.NullTime `json:"rejected_at"`
	CreatedAt   time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt   bun.NullTime `json:"updated_at"`
}

func (m *Milestone) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		m.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Milestone)(nil)

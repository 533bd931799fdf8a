package service

import "errors"

// Sentinel errors for the escrow, milestone, wallet and payout flows.
// Controllers map these onto the response envelopes in lib/responses; none
// of them leaves partial state behind.
var (
	ErrForbidden              = errors.New("actor is not allowed to perform this operation")
	ErrNotFound               = errors.New("record not found")
	ErrInvalidState           = errors.New("operation is not allowed in the current state")
	ErrDuplicateEscrow        = errors.New("an escrow already exists for this engagement")
	ErrMilestoneSumMismatch   = errors.New("milestone amounts do not sum to the escrow amount")
	ErrImbalancedTransaction  = errors.New("ledger transaction debits and credits do not balance")
	ErrInsufficientFunds      = errors.New("not enough available balance")
	ErrBelowMinimum           = errors.New("amount is below the platform minimum")
	ErrPayoutNotEnabled       = errors.New("payouts are not enabled for this wallet")
	ErrDuplicatePendingPayout = errors.New("another payout is already in progress for this wallet")
	ErrFeedbackRequired       = errors.New("rejection feedback must not be empty")
	ErrPaymentDeclined        = errors.New("payment was declined by the processor")
)

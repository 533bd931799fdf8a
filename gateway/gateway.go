package gateway

import (
	"context"
	"fmt"
)

// Outcome is the closed set of results a gateway call can produce. Callers
// branch on this instead of inspecting raw processor responses.
type Outcome string

const (
	// OutcomeSucceeded : the processor accepted the operation.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomePending : the processor accepted the operation but final
	// settlement arrives later via webhook.
	OutcomePending Outcome = "pending"
	// OutcomeDeclined : the processor rejected the operation. Terminal for
	// this attempt, retrying with the same parameters will not help.
	OutcomeDeclined Outcome = "declined"
)

// Result is the tagged response for every gateway primitive.
type Result struct {
	Outcome   Outcome
	Reference string
	Message   string
}

// Error wraps transport-level gateway failures. Transient errors (timeouts,
// 5xx, connection resets) are safe to retry with the same idempotency key;
// anything else must surface to the caller as-is.
type Error struct {
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable gateway transport error.
func IsTransient(err error) bool {
	gwErr, ok := err.(*Error)
	return ok && gwErr.Transient
}

// Client is the payment processor abstraction the escrow and payout flows
// depend on. Every mutating call carries an idempotency key so an ambiguous
// outcome (timeout) can be retried without double-charging.
type Client interface {
	CreateHold(ctx context.Context, amount int64, currency string, paymentMethodRef string, idempotencyKey string) (*Result, error)
	CaptureHold(ctx context.Context, holdRef string, amount int64, idempotencyKey string) (*Result, error)
	CancelHold(ctx context.Context, holdRef string, idempotencyKey string) (*Result, error)
	RefundHold(ctx context.Context, holdRef string, idempotencyKey string) (*Result, error)
	TransferToExternalAccount(ctx context.Context, destinationAccountRef string, amount int64, idempotencyKey string) (*Result, error)
	TransferStatus(ctx context.Context, transferRef string) (*Result, error)
}

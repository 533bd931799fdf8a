package integration_tests

import (
	"context"
	"errors"
	"sync"

	"github.com/gigpay/escrowhub/gateway"
)

type MockGatewayCall struct {
	Method         string
	Reference      string
	Amount         int64
	IdempotencyKey string
}

// MockGatewayClient is an in-memory stand-in for the payment processor.
// References are derived from the idempotency key, so a retried call yields
// the same reference just like the real processor would.
type MockGatewayClient struct {
	mu    sync.Mutex
	calls []MockGatewayCall

	// Zero values mean every call succeeds.
	HoldOutcome       gateway.Outcome
	CaptureOutcome    gateway.Outcome
	TransferOutcome   gateway.Outcome
	StatusOutcome     gateway.Outcome
	TransientFailures int
}

func NewMockGatewayClient() *MockGatewayClient {
	return &MockGatewayClient{}
}

// Reset clears recorded calls and restores the all-success behavior.
func (m *MockGatewayClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.HoldOutcome = ""
	m.CaptureOutcome = ""
	m.TransferOutcome = ""
	m.StatusOutcome = ""
	m.TransientFailures = 0
}

func (m *MockGatewayClient) record(call MockGatewayCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	if m.TransientFailures > 0 {
		m.TransientFailures--
		return &gateway.Error{Transient: true, Err: errors.New("mock: connection reset")}
	}
	return nil
}

func (m *MockGatewayClient) Calls() []MockGatewayCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockGatewayCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

func (m *MockGatewayClient) CallsTo(method string) []MockGatewayCall {
	matched := []MockGatewayCall{}
	for _, call := range m.Calls() {
		if call.Method == method {
			matched = append(matched, call)
		}
	}
	return matched
}

func outcomeOrSucceeded(outcome gateway.Outcome) gateway.Outcome {
	if outcome == "" {
		return gateway.OutcomeSucceeded
	}
	return outcome
}

func (m *MockGatewayClient) CreateHold(ctx context.Context, amount int64, currency string, paymentMethodRef string, idempotencyKey string) (*gateway.Result, error) {
	if err := m.record(MockGatewayCall{Method: "CreateHold", Amount: amount, IdempotencyKey: idempotencyKey}); err != nil {
		return nil, err
	}
	outcome := outcomeOrSucceeded(m.HoldOutcome)
	if outcome == gateway.OutcomeDeclined {
		return &gateway.Result{Outcome: outcome, Message: "mock: card declined"}, nil
	}
	return &gateway.Result{Outcome: outcome, Reference: "hold_" + idempotencyKey}, nil
}

func (m *MockGatewayClient) CaptureHold(ctx context.Context, holdRef string, amount int64, idempotencyKey string) (*gateway.Result, error) {
	if err := m.record(MockGatewayCall{Method: "CaptureHold", Reference: holdRef, Amount: amount, IdempotencyKey: idempotencyKey}); err != nil {
		return nil, err
	}
	outcome := outcomeOrSucceeded(m.CaptureOutcome)
	if outcome == gateway.OutcomeDeclined {
		return &gateway.Result{Outcome: outcome, Message: "mock: capture declined"}, nil
	}
	return &gateway.Result{Outcome: outcome, Reference: "cap_" + idempotencyKey}, nil
}

func (m *MockGatewayClient) CancelHold(ctx context.Context, holdRef string, idempotencyKey string) (*gateway.Result, error) {
	if err := m.record(MockGatewayCall{Method: "CancelHold", Reference: holdRef, IdempotencyKey: idempotencyKey}); err != nil {
		return nil, err
	}
	return &gateway.Result{Outcome: gateway.OutcomeSucceeded, Reference: holdRef}, nil
}

func (m *MockGatewayClient) RefundHold(ctx context.Context, holdRef string, idempotencyKey string) (*gateway.Result, error) {
	if err := m.record(MockGatewayCall{Method: "RefundHold", Reference: holdRef, IdempotencyKey: idempotencyKey}); err != nil {
		return nil, err
	}
	return &gateway.Result{Outcome: gateway.OutcomeSucceeded, Reference: holdRef}, nil
}

func (m *MockGatewayClient) TransferToExternalAccount(ctx context.Context, destinationAccountRef string, amount int64, idempotencyKey string) (*gateway.Result, error) {
	if err := m.record(MockGatewayCall{Method: "TransferToExternalAccount", Reference: destinationAccountRef, Amount: amount, IdempotencyKey: idempotencyKey}); err != nil {
		return nil, err
	}
	outcome := outcomeOrSucceeded(m.TransferOutcome)
	if outcome == gateway.OutcomeDeclined {
		return &gateway.Result{Outcome: outcome, Message: "mock: destination account closed"}, nil
	}
	return &gateway.Result{Outcome: outcome, Reference: "tr_" + idempotencyKey}, nil
}

func (m *MockGatewayClient) TransferStatus(ctx context.Context, transferRef string) (*gateway.Result, error) {
	if err := m.record(MockGatewayCall{Method: "TransferStatus", Reference: transferRef}); err != nil {
		return nil, err
	}
	return &gateway.Result{Outcome: outcomeOrSucceeded(m.StatusOutcome), Reference: transferRef}, nil
}

package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCallWithRetryTransientThenSuccess(t *testing.T) {
	attempts := 0
	result, err := CallWithRetry(context.Background(), 5*time.Second, func(ctx context.Context) (*Result, error) {
		attempts++
		if attempts < 3 {
			return nil, &Error{Transient: true, Err: errors.New("connection reset")}
		}
		return &Result{Outcome: OutcomeSucceeded, Reference: "hold_1"}, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, result.Outcome)
	assert.Equal(t, 3, attempts)
}

func TestCallWithRetryPermanentStopsImmediately(t *testing.T) {
	attempts := 0
	permanent := &Error{Transient: false, Err: errors.New("unknown payment method")}
	_, err := CallWithRetry(context.Background(), 5*time.Second, func(ctx context.Context) (*Result, error) {
		attempts++
		return nil, permanent
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.False(t, IsTransient(err))
}

func TestCallWithRetryDeclinedIsNotRetried(t *testing.T) {
	attempts := 0
	result, err := CallWithRetry(context.Background(), 5*time.Second, func(ctx context.Context) (*Result, error) {
		attempts++
		return &Result{Outcome: OutcomeDeclined, Message: "card declined"}, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, result.Outcome)
	assert.Equal(t, 1, attempts)
}

func TestCallWithRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := CallWithRetry(ctx, 5*time.Second, func(ctx context.Context) (*Result, error) {
		return nil, &Error{Transient: true, Err: errors.New("timeout")}
	})
	assert.Error(t, err)
}

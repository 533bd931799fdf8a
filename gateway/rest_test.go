package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *RestClient) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, NewRestClient(server.URL, "test-api-key", 5*time.Second)
}

func TestCreateHoldSucceeded(t *testing.T) {
	var gotPath, gotIdempotencyKey, gotAuth string
	var gotBody map[string]interface{}
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "hold_123", "status": "requires_capture"})
	})

	result, err := client.CreateHold(context.Background(), 50000, "usd", "pm_card_visa", "escrow-1-fund")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, result.Outcome)
	assert.Equal(t, "hold_123", result.Reference)

	assert.Equal(t, "/v1/holds", gotPath)
	assert.Equal(t, "escrow-1-fund", gotIdempotencyKey)
	assert.Equal(t, "Bearer test-api-key", gotAuth)
	assert.Equal(t, float64(50000), gotBody["amount"])
	assert.Equal(t, "usd", gotBody["currency"])
	assert.Equal(t, false, gotBody["capture"])
}

func TestCreateHoldPending(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "hold_456", "status": "pending"})
	})

	result, err := client.CreateHold(context.Background(), 1000, "usd", "pm_bank", "escrow-2-fund")
	assert.NoError(t, err)
	assert.Equal(t, OutcomePending, result.Outcome)
	assert.Equal(t, "hold_456", result.Reference)
}

func TestCreateHoldDeclined(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]string{"id": "hold_789", "message": "card has insufficient funds"})
	})

	result, err := client.CreateHold(context.Background(), 1000, "usd", "pm_card_declined", "escrow-3-fund")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, result.Outcome)
	assert.Equal(t, "card has insufficient funds", result.Message)
}

func TestServerErrorIsTransient(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.CaptureHold(context.Background(), "hold_123", 500, "milestone-1-capture")
	assert.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestRateLimitIsTransient(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.TransferToExternalAccount(context.Background(), "acct_1", 500, "payout-1-transfer")
	assert.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestBadRequestIsPermanent(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "unknown payment method"})
	})

	_, err := client.CreateHold(context.Background(), 1000, "usd", "pm_bogus", "escrow-4-fund")
	assert.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestCaptureHoldPath(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"id": "cap_1", "status": "succeeded"})
	})

	result, err := client.CaptureHold(context.Background(), "hold_123", 20000, "milestone-7-capture")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, result.Outcome)
	assert.Equal(t, "/v1/holds/hold_123/capture", gotPath)
	assert.Equal(t, float64(20000), gotBody["amount"])
}

func TestTransferStatus(t *testing.T) {
	var gotPath, gotMethod string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		json.NewEncoder(w).Encode(map[string]string{"id": "tr_1", "status": "pending"})
	})

	result, err := client.TransferStatus(context.Background(), "tr_1")
	assert.NoError(t, err)
	assert.Equal(t, OutcomePending, result.Outcome)
	assert.Equal(t, "/v1/transfers/tr_1", gotPath)
	assert.Equal(t, http.MethodGet, gotMethod)
}

func TestConnectionResetIsTransient(t *testing.T) {
	// the server tears the connection down after the request is sent, so
	// the client cannot know whether the processor applied the capture
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		assert.NoError(t, err)
		conn.Close()
	})

	_, err := client.CaptureHold(context.Background(), "hold_123", 500, "milestone-9-capture")
	assert.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestCaptureRetriesAfterConnectionReset(t *testing.T) {
	requests := 0
	var gotKeys []string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		gotKeys = append(gotKeys, r.Header.Get("Idempotency-Key"))
		if requests == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			assert.NoError(t, err)
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "cap_9", "status": "succeeded"})
	})

	result, err := CallWithRetry(context.Background(), 5*time.Second, func(ctx context.Context) (*Result, error) {
		return client.CaptureHold(ctx, "hold_123", 500, "milestone-9-capture")
	})
	assert.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, result.Outcome)
	assert.Equal(t, 2, requests)
	// every attempt carries the same idempotency key
	assert.Equal(t, []string{"milestone-9-capture", "milestone-9-capture"}, gotKeys)
}

func TestTimeoutIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(server.Close)
	client := NewRestClient(server.URL, "", 50*time.Millisecond)

	_, err := client.CancelHold(context.Background(), "hold_123", "escrow-5-refund")
	assert.Error(t, err)
	assert.True(t, IsTransient(err))
}

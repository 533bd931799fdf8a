package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RestClient talks to the payment processor's REST API. Holds use the
// manual-capture pattern: a hold reserves funds on the payer's card, partial
// captures charge it milestone by milestone, cancel releases the remainder.
type RestClient struct {
	baseUrl    string
	apiKey     string
	httpClient *http.Client
}

func NewRestClient(baseUrl, apiKey string, timeout time.Duration) *RestClient {
	return &RestClient{
		baseUrl: baseUrl,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type holdRequestBody struct {
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	PaymentMethodRef string `json:"payment_method"`
	Capture          bool   `json:"capture"`
}

type captureRequestBody struct {
	Amount int64 `json:"amount"`
}

type transferRequestBody struct {
	Amount      int64  `json:"amount"`
	Destination string `json:"destination"`
}

type gatewayResponseBody struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (client *RestClient) CreateHold(ctx context.Context, amount int64, currency string, paymentMethodRef string, idempotencyKey string) (*Result, error) {
	return client.post(ctx, "/v1/holds", &holdRequestBody{
		Amount:           amount,
		Currency:         currency,
		PaymentMethodRef: paymentMethodRef,
		Capture:          false,
	}, idempotencyKey)
}

func (client *RestClient) CaptureHold(ctx context.Context, holdRef string, amount int64, idempotencyKey string) (*Result, error) {
	return client.post(ctx, fmt.Sprintf("/v1/holds/%s/capture", holdRef), &captureRequestBody{Amount: amount}, idempotencyKey)
}

func (client *RestClient) CancelHold(ctx context.Context, holdRef string, idempotencyKey string) (*Result, error) {
	return client.post(ctx, fmt.Sprintf("/v1/holds/%s/cancel", holdRef), nil, idempotencyKey)
}

func (client *RestClient) RefundHold(ctx context.Context, holdRef string, idempotencyKey string) (*Result, error) {
	return client.post(ctx, fmt.Sprintf("/v1/holds/%s/refund", holdRef), nil, idempotencyKey)
}

func (client *RestClient) TransferToExternalAccount(ctx context.Context, destinationAccountRef string, amount int64, idempotencyKey string) (*Result, error) {
	return client.post(ctx, "/v1/transfers", &transferRequestBody{
		Amount:      amount,
		Destination: destinationAccountRef,
	}, idempotencyKey)
}

func (client *RestClient) TransferStatus(ctx context.Context, transferRef string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, client.baseUrl+fmt.Sprintf("/v1/transfers/%s", transferRef), nil)
	if err != nil {
		return nil, err
	}
	return client.do(req)
}

func (client *RestClient) post(ctx context.Context, path string, body interface{}, idempotencyKey string) (*Result, error) {
	payload := new(bytes.Buffer)
	if body != nil {
		if err := json.NewEncoder(payload).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseUrl+path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	return client.do(req)
}

func (client *RestClient) do(req *http.Request) (*Result, error) {
	if client.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+client.apiKey)
	}
	resp, err := client.httpClient.Do(req)
	if err != nil {
		// timeouts, resets and other transport failures are ambiguous: the
		// processor may or may not have seen the request, so they are all
		// retryable with the same idempotency key
		return nil, &Error{Transient: true, Err: err}
	}
	defer resp.Body.Close()

	responseBody := gatewayResponseBody{}
	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Transient: true, Err: err}
	}
	if len(rawBody) > 0 {
		if err = json.Unmarshal(rawBody, &responseBody); err != nil {
			return nil, &Error{Transient: false, Err: fmt.Errorf("malformed gateway response: %w", err)}
		}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		outcome := OutcomeSucceeded
		if responseBody.Status == "pending" {
			outcome = OutcomePending
		}
		return &Result{Outcome: outcome, Reference: responseBody.ID, Message: responseBody.Message}, nil
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity:
		return &Result{Outcome: OutcomeDeclined, Reference: responseBody.ID, Message: responseBody.Message}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &Error{Transient: true, Err: fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, responseBody.Message)}
	default:
		return nil, &Error{Transient: false, Err: fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, responseBody.Message)}
	}
}

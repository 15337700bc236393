package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/payment"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

var (
	// ErrUnavailable means the gateway could not be reached or refused our
	// credentials. Retryable; never implies anything about the payment.
	ErrUnavailable = errors.New("payment gateway unavailable")

	// ErrDeclined means the gateway processed the request and said no.
	ErrDeclined = errors.New("payment declined")
)

// Client wraps the remote two-phase payment protocol: create an intent the
// customer approves off-site, then capture it. All calls authenticate with
// a bearer token from the gateway's own token endpoint; token failures are
// connectivity errors, not payment failures.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// MustNewClient creates a gateway client from config. The capture timeout
// bounds every call; a timed-out capture is reported as unavailable, never
// as success.
func MustNewClient() *Client {
	baseURL := viper.GetString("gateway.base_url")
	if baseURL == "" {
		panic("gateway.base_url is not configured")
	}

	timeoutSeconds := viper.GetInt("gateway.timeout_seconds")
	if timeoutSeconds == 0 {
		timeoutSeconds = 15
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     os.Getenv("CHECKOUT_GATEWAY_CLIENT_ID"),
		clientSecret: os.Getenv("CHECKOUT_GATEWAY_CLIENT_SECRET"),
	}
}

// NewClient creates a gateway client with explicit parameters. Used by
// tests and by callers that do not read viper config.
func NewClient(httpClient *http.Client, baseURL, clientID, clientSecret string) *Client {
	return &Client{
		httpClient:   httpClient,
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached bearer token, refreshing it shortly before expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/v1/oauth/token",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrUnavailable, resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %v", ErrUnavailable, err)
	}

	c.accessToken = token.AccessToken
	// Refresh a little early so in-flight calls never carry a stale token.
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - 30*time.Second)

	return c.accessToken, nil
}

type createIntentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type createIntentResponse struct {
	IntentID    string `json:"intent_id"`
	ApprovalURL string `json:"approval_url"`
}

// CreateIntent starts the first phase and returns the approval handle the
// client is redirected to.
func (c *Client) CreateIntent(ctx context.Context, amountCents int64, cur currency.Currency) (*payment.Intent, error) {
	body, status, err := c.post(ctx, "/v1/intents", uuid.NewString(), createIntentRequest{
		AmountCents: amountCents,
		Currency:    cur.String(),
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, fmt.Errorf("%w: create intent returned %d", ErrUnavailable, status)
	}

	var resp createIntentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding intent response: %v", ErrUnavailable, err)
	}
	if resp.IntentID == "" || resp.ApprovalURL == "" {
		return nil, fmt.Errorf("%w: intent response missing fields", ErrUnavailable)
	}

	return &payment.Intent{
		ID:          resp.IntentID,
		ApprovalURL: resp.ApprovalURL,
		AmountCents: amountCents,
		Currency:    cur,
	}, nil
}

type captureResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

// Capture runs the second phase. It is safe to call more than once for the
// same intent: the idempotency key is derived from the intent id, and an
// ALREADY_CAPTURED reply is folded into the original success with the
// original transaction id.
func (c *Client) Capture(ctx context.Context, intentID string) (*payment.CaptureResult, error) {
	body, status, err := c.post(ctx, "/v1/intents/"+url.PathEscape(intentID)+"/capture", "capture-"+intentID, nil)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusPaymentRequired, http.StatusUnprocessableEntity:
	default:
		return nil, fmt.Errorf("%w: capture returned %d", ErrUnavailable, status)
	}

	var resp captureResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding capture response: %v", ErrUnavailable, err)
	}

	switch resp.Status {
	case "COMPLETED", "ALREADY_CAPTURED":
		if resp.TransactionID == "" {
			return nil, fmt.Errorf("%w: capture response missing transaction id", ErrUnavailable)
		}

		return &payment.CaptureResult{TransactionID: resp.TransactionID}, nil
	case "DECLINED":
		return nil, fmt.Errorf("%w: intent %s", ErrDeclined, intentID)
	default:
		return nil, fmt.Errorf("%w: unexpected capture status %q", ErrUnavailable, resp.Status)
	}
}

type refundRequest struct {
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents"`
}

type refundResponse struct {
	Status   string `json:"status"`
	RefundID string `json:"refund_id"`
}

// Refund returns captured funds for a transaction.
func (c *Client) Refund(ctx context.Context, transactionID string, amountCents int64) (*payment.RefundResult, error) {
	body, status, err := c.post(ctx, "/v1/refunds", "refund-"+transactionID, refundRequest{
		TransactionID: transactionID,
		AmountCents:   amountCents,
	})
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusUnprocessableEntity:
	default:
		return nil, fmt.Errorf("%w: refund returned %d", ErrUnavailable, status)
	}

	var resp refundResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding refund response: %v", ErrUnavailable, err)
	}

	switch resp.Status {
	case "COMPLETED":
		return &payment.RefundResult{RefundID: resp.RefundID}, nil
	case "DECLINED":
		return nil, fmt.Errorf("%w: refund for transaction %s", ErrDeclined, transactionID)
	default:
		return nil, fmt.Errorf("%w: unexpected refund status %q", ErrUnavailable, resp.Status)
	}
}

// post sends an authenticated JSON request and returns the raw body and
// status. Transport-level failures come back as ErrUnavailable.
func (c *Client) post(ctx context.Context, path, idempotencyKey string, payload any) ([]byte, int, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, 0, err
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: encoding request: %v", ErrUnavailable, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	return body, resp.StatusCode, nil
}

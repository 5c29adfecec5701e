package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds every call to the payment node. The node is the
// only blocking dependency on the issuer side, so an unbounded call
// would stall challenge issuance.
const DefaultTimeout = 30 * time.Second

// Client is an HTTP Gateway implementation against an LND-style REST
// node.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

var _ Gateway = (*Client)(nil)

// NewClient creates a gateway client for the node at baseURL. The
// apiKey may be empty for unauthenticated nodes.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

type createInvoiceRequest struct {
	Value  int64  `json:"value"`
	Memo   string `json:"memo,omitempty"`
	Expiry int64  `json:"expiry,omitempty"`
}

type createInvoiceResponse struct {
	RHash          string `json:"r_hash"`
	PaymentRequest string `json:"payment_request"`
}

// CreatePaymentRequest implements Gateway.
func (c *Client) CreatePaymentRequest(ctx context.Context, amount int64, memo string, expirySeconds int64) (*PaymentRequest, error) {
	var resp createInvoiceResponse
	err := c.do(ctx, http.MethodPost, "/v1/invoices", createInvoiceRequest{
		Value:  amount,
		Memo:   memo,
		Expiry: expirySeconds,
	}, &resp)
	if err != nil {
		return nil, err
	}
	hash, err := base64.StdEncoding.DecodeString(resp.RHash)
	if err != nil {
		return nil, WrapError(ErrCodeUnavailable, "node returned an invalid commitment hash", err)
	}
	if len(hash) == 0 || resp.PaymentRequest == "" {
		return nil, NewError(ErrCodeUnavailable, "node returned an incomplete payment request")
	}
	return &PaymentRequest{CommitmentHash: hash, Request: resp.PaymentRequest}, nil
}

type sendPaymentRequest struct {
	PaymentRequest string `json:"payment_request"`
}

type sendPaymentResponse struct {
	PaymentError    string `json:"payment_error"`
	PaymentPreimage string `json:"payment_preimage"`
	PaymentRoute    struct {
		TotalFees int64 `json:"total_fees,string"`
	} `json:"payment_route"`
}

// Settle implements Gateway. A reachable node that reports a payment
// error yields PAYMENT_FAILED, not GATEWAY_UNAVAILABLE.
func (c *Client) Settle(ctx context.Context, request string) (*Settlement, error) {
	var resp sendPaymentResponse
	err := c.do(ctx, http.MethodPost, "/v1/channels/transactions", sendPaymentRequest{
		PaymentRequest: request,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.PaymentError != "" {
		return nil, NewError(ErrCodePaymentFailed, resp.PaymentError)
	}
	secret, err := base64.StdEncoding.DecodeString(resp.PaymentPreimage)
	if err != nil {
		return nil, WrapError(ErrCodePaymentFailed, "node returned an invalid settlement secret", err)
	}
	if len(secret) == 0 {
		return nil, NewError(ErrCodePaymentFailed, "node settled without revealing a secret")
	}
	return &Settlement{Secret: secret, Fee: resp.PaymentRoute.TotalFees}, nil
}

type decodeResponse struct {
	Destination string `json:"destination"`
	PaymentHash string `json:"payment_hash"`
	NumSatoshis int64  `json:"num_satoshis,string"`
	Description string `json:"description"`
	Expiry      int64  `json:"expiry,string"`
}

// Decode implements Gateway.
func (c *Client) Decode(ctx context.Context, request string) (*DecodedRequest, error) {
	var resp decodeResponse
	err := c.do(ctx, http.MethodGet, "/v1/payreq/"+url.PathEscape(request), nil, &resp)
	if err != nil {
		return nil, err
	}
	hash, err := hex.DecodeString(resp.PaymentHash)
	if err != nil {
		return nil, WrapError(ErrCodeUnavailable, "node returned an invalid payment hash", err)
	}
	return &DecodedRequest{
		Amount:         resp.NumSatoshis,
		Memo:           resp.Description,
		Destination:    resp.Destination,
		CommitmentHash: hash,
		ExpirySeconds:  resp.Expiry,
	}, nil
}

type lookupInvoiceResponse struct {
	Settled    bool  `json:"settled"`
	AmtPaidSat int64 `json:"amt_paid_sat,string"`
}

// CheckSettlement implements Gateway.
func (c *Client) CheckSettlement(ctx context.Context, commitmentHash []byte) (*SettlementStatus, error) {
	var resp lookupInvoiceResponse
	err := c.do(ctx, http.MethodGet, "/v1/invoice/"+hex.EncodeToString(commitmentHash), nil, &resp)
	if err != nil {
		return nil, err
	}
	return &SettlementStatus{Settled: resp.Settled, AmountReceived: resp.AmtPaidSat}, nil
}

type channelBalanceResponse struct {
	Balance            int64 `json:"balance,string"`
	RemoteBalance      int64 `json:"remote_balance,string"`
	PendingOpenBalance int64 `json:"pending_open_balance,string"`
}

// ChannelBalance implements Gateway.
func (c *Client) ChannelBalance(ctx context.Context) (*Balance, error) {
	var resp channelBalanceResponse
	err := c.do(ctx, http.MethodGet, "/v1/balance/channels", nil, &resp)
	if err != nil {
		return nil, err
	}
	return &Balance{
		Local:       resp.Balance,
		Remote:      resp.RemoteBalance,
		PendingOpen: resp.PendingOpenBalance,
	}, nil
}

// do performs one call against the node and decodes the response into
// out. Transport errors, timeouts and non-2xx statuses all map to
// GATEWAY_UNAVAILABLE.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	log.Debug().Str("method", method).Str("path", path).Str("request_id", requestID).Msg("payment node call")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return WrapError(ErrCodeUnavailable, "payment node request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return WrapError(ErrCodeUnavailable, "failed to read payment node response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewError(ErrCodeUnavailable,
			fmt.Sprintf("payment node returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return WrapError(ErrCodeUnavailable, "failed to decode payment node response", err)
		}
	}
	return nil
}

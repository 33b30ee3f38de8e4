package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"inua-fund-server/metrics"
)

const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"

	// Sandbox credentials published by Safaricom for the Lipa Na M-Pesa test till.
	SandboxShortCode = "174379"
	SandboxPassKey   = "bfb279f9aa9bdbcf158e97dd71a467cd2e0c893059b10f78e6b72ada1ed2c919"
)

var ErrInvalidAmount = errors.New("amount must be at least 1 after rounding")

// BaseURL picks the Daraja host for an environment name. Anything other than
// "production" is treated as sandbox.
func BaseURL(environment string) string {
	if strings.EqualFold(environment, "production") {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// Config holds the merchant settings the client signs requests with.
type Config struct {
	BaseURL        string
	ShortCode      string
	PassKey        string
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
	// Location is the clock the request timestamp is rendered in. Nil means time.Local.
	Location *time.Location
	Timeout  time.Duration
}

// Client talks to the Daraja STK push and query endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     *TokenSource
	log        *logrus.Logger
	now        func() time.Time
}

func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		tokens:     NewTokenSource(httpClient, cfg.BaseURL, cfg.ConsumerKey, cfg.ConsumerSecret),
		log:        log,
		now:        time.Now,
	}
}

// InitiatePayment sends an STK push for req and returns the provider's
// acknowledgement. The payer's phone shows the PIN prompt afterwards and the
// final result arrives on the callback URL, not here.
func (c *Client) InitiatePayment(ctx context.Context, req PaymentRequest) (*STKPushResponse, error) {
	amount := RoundAmount(req.Amount)
	if amount < 1 {
		return nil, &InitiationError{Err: ErrInvalidAmount}
	}

	phone := NormalizePhone(req.Phone)
	cred := NewCredential(c.cfg.ShortCode, c.cfg.PassKey, c.now().In(c.cfg.Location))

	payload := stkPushPayload{
		BusinessShortCode: cred.ShortCode,
		Password:          cred.Password,
		Timestamp:         cred.Timestamp,
		TransactionType:   TransactionTypePayBill,
		Amount:            amount,
		PartyA:            phone,
		PartyB:            cred.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.AccountReference(),
		TransactionDesc:   req.TransactionDesc(),
	}

	c.log.WithFields(logrus.Fields{
		"phone":        phone,
		"amount":       amount,
		"callback_url": c.cfg.CallbackURL,
	}).Info("Initiating STK push")

	var out STKPushResponse
	if err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", payload, &out); err != nil {
		metrics.ProviderRequests.WithLabelValues("stk_push", "error").Inc()

		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, err
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, &InitiationError{Provider: apiErr}
		}
		return nil, &InitiationError{Err: err}
	}

	if out.CheckoutRequestID == "" || (out.ResponseCode != "" && out.ResponseCode != ResultSuccess) {
		metrics.ProviderRequests.WithLabelValues("stk_push", "rejected").Inc()
		return nil, &InitiationError{Provider: &APIError{
			StatusCode:   http.StatusOK,
			ErrorCode:    string(out.ResponseCode),
			ErrorMessage: out.ResponseDescription,
		}}
	}

	metrics.ProviderRequests.WithLabelValues("stk_push", "ok").Inc()
	c.log.WithFields(logrus.Fields{
		"checkout_request_id": out.CheckoutRequestID,
		"merchant_request_id": out.MerchantRequestID,
	}).Info("STK push accepted")

	return &out, nil
}

// QueryStatus asks the provider for the state of one STK push. A payment the
// payer has not answered yet comes back as an *APIError for which
// IsStillProcessing is true.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResponse, error) {
	cred := NewCredential(c.cfg.ShortCode, c.cfg.PassKey, c.now().In(c.cfg.Location))
	payload := stkQueryPayload{
		BusinessShortCode: cred.ShortCode,
		Password:          cred.Password,
		Timestamp:         cred.Timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var out QueryResponse
	if err := c.postJSON(ctx, "/mpesa/stkpushquery/v1/query", payload, &out); err != nil {
		outcome := "error"
		if IsStillProcessing(err) {
			outcome = "pending"
		}
		metrics.ProviderRequests.WithLabelValues("stk_query", outcome).Inc()
		return nil, err
	}

	metrics.ProviderRequests.WithLabelValues("stk_query", "ok").Inc()
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || (apiErr.ErrorCode == "" && apiErr.ErrorMessage == "") {
			return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, path, string(raw))
		}
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

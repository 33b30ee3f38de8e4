// Package client talks to the donation server's payment endpoints. It is what
// a donation form does: start an STK push, then poll its status.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"inua-fund-server/mpesa"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type initiateBody struct {
	MpesaNumber string  `json:"mpesa_number"`
	Name        string  `json:"name"`
	Amount      float64 `json:"amount"`
	Email       string  `json:"email,omitempty"`
	Purpose     string  `json:"purpose,omitempty"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error json.RawMessage `json:"error"`
}

// InitiatePayment asks the server to send an STK push. Rejections come back
// as *mpesa.InitiationError.
func (c *Client) InitiatePayment(ctx context.Context, req mpesa.PaymentRequest) (*mpesa.STKPushResponse, error) {
	body := initiateBody{
		MpesaNumber: req.Phone,
		Name:        req.Name,
		Amount:      req.Amount,
		Email:       req.Email,
		Purpose:     req.Purpose,
	}

	var out mpesa.STKPushResponse
	status, env, err := c.do(ctx, http.MethodPost, "/api/payments/stk-push", body)
	if err != nil {
		return nil, &mpesa.InitiationError{Err: err}
	}
	if status != http.StatusOK {
		if apiErr := decodeAPIError(status, env.Error); apiErr != nil {
			return nil, &mpesa.InitiationError{Provider: apiErr}
		}
		return nil, &mpesa.InitiationError{Err: errors.New(errorText(status, env.Error))}
	}
	if err := json.Unmarshal(env.Data, &out); err != nil || out.CheckoutRequestID == "" {
		return nil, &mpesa.InitiationError{Err: fmt.Errorf("unexpected response from %s", c.baseURL)}
	}
	return &out, nil
}

// QueryStatus runs one status query through the server. The provider's error
// payload is returned as *mpesa.APIError so callers can spot the
// still-processing code.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResponse, error) {
	status, env, err := c.do(ctx, http.MethodGet, "/api/payments/"+url.PathEscape(checkoutRequestID)+"/status", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		if apiErr := decodeAPIError(status, env.Error); apiErr != nil {
			return nil, apiErr
		}
		// Keep the shape so the poller reports a generic failure.
		return nil, &mpesa.APIError{StatusCode: status}
	}

	var out mpesa.QueryResponse
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (int, envelope, error) {
	var env envelope

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, env, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, env, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, env, fmt.Errorf("failed to reach %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, env, fmt.Errorf("failed to read response: %w", err)
	}
	// Bodies that are not JSON leave env empty; the status code still decides.
	_ = json.Unmarshal(data, &env)
	return resp.StatusCode, env, nil
}

// decodeAPIError returns nil unless raw is an object with a code or message.
func decodeAPIError(status int, raw json.RawMessage) *mpesa.APIError {
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var apiErr mpesa.APIError
	if err := json.Unmarshal(raw, &apiErr); err != nil {
		return nil
	}
	if apiErr.ErrorCode == "" && apiErr.ErrorMessage == "" {
		return nil
	}
	apiErr.StatusCode = status
	return &apiErr
}

func errorText(status int, raw json.RawMessage) string {
	var msg string
	if len(raw) > 0 && json.Unmarshal(raw, &msg) == nil && msg != "" {
		return msg
	}
	return fmt.Sprintf("request failed with status %d", status)
}

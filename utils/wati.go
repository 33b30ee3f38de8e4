package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WatiMessage represents the structure of a message to send via Wati API
type WatiMessage struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// WatiClient sends WhatsApp session messages through Wati.
type WatiClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewWatiClient(baseURL, apiKey string) *WatiClient {
	return &WatiClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SendMessage delivers text to a 254… phone number.
func (w *WatiClient) SendMessage(ctx context.Context, phoneNumber, text string) error {
	messageJSON, err := json.Marshal(WatiMessage{Phone: phoneNumber, Message: text})
	if err != nil {
		return fmt.Errorf("failed to marshal WhatsApp message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/api/v1/sendSessionMessage", bytes.NewBuffer(messageJSON))
	if err != nil {
		return fmt.Errorf("failed to create Wati API request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send WhatsApp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send WhatsApp message: received status code %d", resp.StatusCode)
	}
	return nil
}

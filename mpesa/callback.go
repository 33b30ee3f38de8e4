package mpesa

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Callback is the body Daraja posts to the CallBackURL once the payer has
// answered (or ignored) the STK prompt.
type Callback struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        Code              `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata is only present on successful payments.
type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem values are strings or numbers depending on the field, and
// some items arrive with no Value at all.
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

func (m *CallbackMetadata) lookup(name string) (json.RawMessage, bool) {
	if m == nil {
		return nil, false
	}
	for _, item := range m.Item {
		if item.Name == name && len(item.Value) > 0 && string(item.Value) != "null" {
			return item.Value, true
		}
	}
	return nil, false
}

// String returns the named item as text, whether it was sent as a JSON
// string or a number. Empty values count as absent.
func (m *CallbackMetadata) String(name string) (string, bool) {
	raw, ok := m.lookup(name)
	if !ok {
		return "", false
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		s = n.String()
	}

	s = strings.TrimSpace(s)
	return s, s != ""
}

// Amount returns the named item rounded to whole shillings.
func (m *CallbackMetadata) Amount(name string) (int64, bool) {
	s, ok := m.String(name)
	if !ok {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.Round(0).IntPart(), true
}

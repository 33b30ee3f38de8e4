package mpesa

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionTypePayBill is the only STK transaction type the donation flow uses.
const TransactionTypePayBill = "CustomerPayBillOnline"

// ResultSuccess is the ResultCode Daraja uses for a completed payment.
const ResultSuccess Code = "0"

// PaymentRequest describes one donation attempt. Build a fresh one per submission.
type PaymentRequest struct {
	Phone   string
	Name    string
	Amount  float64
	Email   string
	Purpose string
}

// AccountReference is what the payer sees as the bill reference on their phone.
func (r PaymentRequest) AccountReference() string {
	if r.Purpose != "" {
		return r.Name + "-" + r.Purpose
	}
	if r.Name == "" {
		return "Donation"
	}
	return r.Name
}

func (r PaymentRequest) TransactionDesc() string {
	if r.Purpose == "" {
		return "Donation - General Support"
	}
	return "Donation - " + r.Purpose
}

// RoundAmount rounds half away from zero; Daraja only accepts whole shillings.
func RoundAmount(amount float64) int64 {
	return decimal.NewFromFloat(amount).Round(0).IntPart()
}

// Code is a Daraja result code. The provider sends it as a string on some
// endpoints and as a number on others.
type Code string

func (c *Code) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = Code(n.String())
	return nil
}

// tokenResponse keeps expires_in raw: Daraja documents it as a string but
// numbers show up too, and a bad lifetime must not cost a valid token.
type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresIn   json.RawMessage `json:"expires_in"`
}

// lifetime returns expires_in in seconds, or false when it is absent or unusable.
func (tr tokenResponse) lifetime() (time.Duration, bool) {
	raw := strings.Trim(strings.TrimSpace(string(tr.ExpiresIn)), `"`)
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is the synchronous acknowledgement of an STK push.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        Code   `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// QueryResponse is the result of an STK status query.
type QueryResponse struct {
	ResponseCode        Code   `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          Code   `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inua-fund-server/mpesa"
	"inua-fund-server/store"
)

type mockGateway struct {
	InitiateFunc func(ctx context.Context, req mpesa.PaymentRequest) (*mpesa.STKPushResponse, error)
	QueryFunc    func(ctx context.Context, id string) (*mpesa.QueryResponse, error)

	initiated []mpesa.PaymentRequest
}

func (m *mockGateway) InitiatePayment(ctx context.Context, req mpesa.PaymentRequest) (*mpesa.STKPushResponse, error) {
	m.initiated = append(m.initiated, req)
	return m.InitiateFunc(ctx, req)
}

func (m *mockGateway) QueryStatus(ctx context.Context, id string) (*mpesa.QueryResponse, error) {
	return m.QueryFunc(ctx, id)
}

func accepted(context.Context, mpesa.PaymentRequest) (*mpesa.STKPushResponse, error) {
	return &mpesa.STKPushResponse{
		MerchantRequestID: "29115-34620561-1",
		CheckoutRequestID: "ws_CO_1",
		ResponseCode:      mpesa.ResultSuccess,
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

func setup(gw *mockGateway) (*gin.Engine, *store.MemoryIntentStore) {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	intents := store.NewMemoryIntentStore(store.DefaultIntentTTL)
	r := gin.New()
	NewHandler(gw, intents, log).RegisterRoutes(r.Group("/api"))
	return r, intents
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInitiateMpesaPayment(t *testing.T) {
	gw := &mockGateway{InitiateFunc: accepted}
	r, intents := setup(gw)

	w := postJSON(r, "/api/payments/stk-push", gin.H{
		"mpesa_number": "0712345678",
		"name":         " Jane Doe ",
		"amount":       500,
		"email":        "jane@example.org",
		"purpose":      "School Fees",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data InitiatePaymentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ws_CO_1", body.Data.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", body.Data.MerchantRequestID)

	require.Len(t, gw.initiated, 1)
	assert.Equal(t, "Jane Doe", gw.initiated[0].Name)
	assert.Equal(t, "0712345678", gw.initiated[0].Phone)

	intent, err := intents.Get(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	require.NotNil(t, intent)
	assert.Equal(t, "School Fees", intent.Purpose)
	assert.Equal(t, "254712345678", intent.Phone)
	assert.Equal(t, int64(500), intent.Amount)
}

func TestInitiateMpesaPayment_Validation(t *testing.T) {
	tests := []struct {
		name string
		body gin.H
		want string
	}{
		{"bad phone", gin.H{"mpesa_number": "0812345678", "name": "Jane", "amount": 10}, "Please enter a valid M-Pesa number"},
		{"missing phone", gin.H{"name": "Jane", "amount": 10}, "Please enter a valid M-Pesa number"},
		{"zero amount", gin.H{"mpesa_number": "0712345678", "name": "Jane", "amount": 0}, "Amount must be greater than zero"},
		{"negative amount", gin.H{"mpesa_number": "0712345678", "name": "Jane", "amount": -5}, "Amount must be greater than zero"},
		{"blank name", gin.H{"mpesa_number": "0712345678", "name": "   ", "amount": 10}, "Name is required"},
		{"bad email", gin.H{"mpesa_number": "0712345678", "name": "Jane", "amount": 10, "email": "nope"}, "Please enter a valid email address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &mockGateway{InitiateFunc: accepted}
			r, _ := setup(gw)

			w := postJSON(r, "/api/payments/stk-push", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
			assert.Empty(t, gw.initiated, "no push for invalid input")
		})
	}
}

func TestInitiateMpesaPayment_Errors(t *testing.T) {
	valid := gin.H{"mpesa_number": "254712345678", "name": "Jane", "amount": 10}

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"auth", &mpesa.AuthError{Err: errors.New("401")}, http.StatusBadGateway, "Failed to authenticate with M-Pesa"},
		{"provider", &mpesa.InitiationError{Provider: &mpesa.APIError{ErrorCode: "400.002.02", ErrorMessage: "Bad Request - Invalid PhoneNumber"}}, http.StatusBadGateway, "Invalid PhoneNumber"},
		{"transport", &mpesa.InitiationError{Err: errors.New("dial tcp: timeout")}, http.StatusBadGateway, "Failed to initiate payment"},
		{"rounds to zero", &mpesa.InitiationError{Err: mpesa.ErrInvalidAmount}, http.StatusBadRequest, "Amount must be greater than zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &mockGateway{InitiateFunc: func(context.Context, mpesa.PaymentRequest) (*mpesa.STKPushResponse, error) {
				return nil, tt.err
			}}
			r, _ := setup(gw)

			w := postJSON(r, "/api/payments/stk-push", valid)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestGetPaymentStatus(t *testing.T) {
	tests := []struct {
		name     string
		resp     *mpesa.QueryResponse
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "completed",
			resp:     &mpesa.QueryResponse{CheckoutRequestID: "ws_CO_1", ResultCode: "0", ResultDesc: "The service request is processed successfully."},
			wantCode: http.StatusOK,
			wantBody: `"ResultCode":"0"`,
		},
		{
			name:     "still processing",
			err:      &mpesa.APIError{StatusCode: http.StatusInternalServerError, ErrorCode: mpesa.StillProcessingCode, ErrorMessage: "The transaction is being processed"},
			wantCode: http.StatusInternalServerError,
			wantBody: `"errorCode":"500.001.1001"`,
		},
		{
			name:     "transport failure",
			err:      errors.New("connection reset"),
			wantCode: http.StatusBadGateway,
			wantBody: "Failed to query payment status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var asked string
			gw := &mockGateway{QueryFunc: func(_ context.Context, id string) (*mpesa.QueryResponse, error) {
				asked = id
				return tt.resp, tt.err
			}}
			r, _ := setup(gw)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/payments/ws_CO_1/status", nil))

			assert.Equal(t, "ws_CO_1", asked)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

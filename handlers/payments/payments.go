package payments

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"inua-fund-server/handlers"
	"inua-fund-server/models"
	"inua-fund-server/mpesa"
	"inua-fund-server/store"
)

// Gateway is the part of the M-Pesa client the payment endpoints use.
type Gateway interface {
	InitiatePayment(ctx context.Context, req mpesa.PaymentRequest) (*mpesa.STKPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResponse, error)
}

type InitiatePaymentRequest struct {
	MpesaNumber string  `json:"mpesa_number" binding:"required,ke_phone"`
	Name        string  `json:"name" binding:"required"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Email       string  `json:"email" binding:"omitempty,email"`
	Purpose     string  `json:"purpose" binding:"omitempty,max=100"`
}

type InitiatePaymentResponse struct {
	CheckoutRequestID string `json:"CheckoutRequestID"`
	MerchantRequestID string `json:"MerchantRequestID"`
	CustomerMessage   string `json:"CustomerMessage"`
}

type Handler struct {
	gateway Gateway
	intents store.IntentStore
	log     *logrus.Logger
	now     func() time.Time
}

func NewHandler(gateway Gateway, intents store.IntentStore, log *logrus.Logger) *Handler {
	registerValidators()
	return &Handler{gateway: gateway, intents: intents, log: log, now: time.Now}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/payments/stk-push", h.InitiateMpesaPayment)
	r.GET("/payments/:checkoutRequestId/status", h.GetPaymentStatus)
}

var registerOnce sync.Once

func registerValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("ke_phone", func(fl validator.FieldLevel) bool {
				return mpesa.ValidPhone(fl.Field().String())
			})
		}
	})
}

var fieldMessages = map[string]string{
	"MpesaNumber": "Please enter a valid M-Pesa number",
	"Name":        "Name is required",
	"Amount":      "Amount must be greater than zero",
	"Email":       "Please enter a valid email address",
	"Purpose":     "Purpose is too long",
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := fieldMessages[verrs[0].Field()]; ok {
			return msg
		}
	}
	return "Invalid request"
}

// InitiateMpesaPayment sends the STK push. It never records a donation; that
// only happens when the provider calls back.
func (h *Handler) InitiateMpesaPayment(c *gin.Context) {
	log := handlers.Logger(c, h.log)

	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Purpose = strings.TrimSpace(req.Purpose)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": fieldMessages["Name"]})
		return
	}

	resp, err := h.gateway.InitiatePayment(c.Request.Context(), mpesa.PaymentRequest{
		Phone:   req.MpesaNumber,
		Name:    req.Name,
		Amount:  req.Amount,
		Email:   req.Email,
		Purpose: req.Purpose,
	})
	if err != nil {
		h.writeInitiationError(c, log, err)
		return
	}

	intent := models.PaymentIntent{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Name:              req.Name,
		Phone:             mpesa.NormalizePhone(req.MpesaNumber),
		Email:             req.Email,
		Purpose:           req.Purpose,
		Amount:            mpesa.RoundAmount(req.Amount),
		CreatedAt:         h.now(),
	}
	if err := h.intents.Save(c.Request.Context(), intent); err != nil {
		// The callback still records the donation, just without the purpose.
		log.WithError(err).WithField("checkout_request_id", resp.CheckoutRequestID).Warn("Failed to save payment intent")
	}

	c.JSON(http.StatusOK, gin.H{"data": InitiatePaymentResponse{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}})
}

func (h *Handler) writeInitiationError(c *gin.Context, log *logrus.Entry, err error) {
	var authErr *mpesa.AuthError
	var initErr *mpesa.InitiationError

	switch {
	case errors.As(err, &authErr):
		log.WithError(err).Error("M-Pesa authentication failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to authenticate with M-Pesa"})
	case errors.As(err, &initErr) && errors.Is(initErr.Err, mpesa.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": fieldMessages["Amount"]})
	case errors.As(err, &initErr) && initErr.Provider != nil:
		log.WithError(err).Error("STK push rejected")
		c.JSON(http.StatusBadGateway, gin.H{"error": initErr.Provider})
	default:
		log.WithError(err).Error("STK push failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to initiate payment"})
	}
}

// GetPaymentStatus runs a single provider status query. Polling is the
// caller's job.
func (h *Handler) GetPaymentStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("checkoutRequestId"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"errorMessage": "CheckoutRequestID is required"}})
		return
	}

	resp, err := h.gateway.QueryStatus(c.Request.Context(), id)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"data": resp})
		return
	}

	var apiErr *mpesa.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": apiErr})
		return
	}

	handlers.Logger(c, h.log).WithError(err).WithField("checkout_request_id", id).Error("Status query failed")
	c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"errorMessage": "Failed to query payment status"}})
}

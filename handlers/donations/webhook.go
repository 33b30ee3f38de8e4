package donations

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"inua-fund-server/handlers"
	"inua-fund-server/metrics"
	"inua-fund-server/models"
	"inua-fund-server/mpesa"
	"inua-fund-server/store"
	"inua-fund-server/utils"
)

// DonationRepository is the durable outcome store.
type DonationRepository interface {
	Create(ctx context.Context, d *models.Donation) error
	FindByID(ctx context.Context, id string) (*models.Donation, error)
	List(ctx context.Context, limit, offset int) ([]models.Donation, int64, error)
}

type EventPublisher interface {
	Publish(subject string, v interface{}) error
}

type Notifier interface {
	DonationRecorded(ctx context.Context, d models.Donation, intent *models.PaymentIntent)
}

// Deps wires the handler. Events and Notifier are optional.
type Deps struct {
	Donations DonationRepository
	Intents   store.IntentStore
	Events    EventPublisher
	Notifier  Notifier
	Log       *logrus.Logger
}

type Handler struct {
	donations DonationRepository
	intents   store.IntentStore
	events    EventPublisher
	notifier  Notifier
	log       *logrus.Logger
	now       func() time.Time

	// async runs post-commit side effects; tests swap it for a synchronous call.
	async func(func())
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		donations: deps.Donations,
		intents:   deps.Intents,
		events:    deps.Events,
		notifier:  deps.Notifier,
		log:       deps.Log,
		now:       time.Now,
		async:     func(f func()) { go f() },
	}
}

// RegisterRoutes mounts the public callback and the admin-only history
// endpoints. admin guards the latter.
func (h *Handler) RegisterRoutes(r gin.IRouter, admin gin.HandlerFunc) {
	r.POST("/donations/payment-success", h.PaymentSuccess)
	r.GET("/donations", admin, h.ListDonations)
	r.GET("/donations/:id", admin, h.GetDonation)
}

func reject(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// PaymentSuccess records the outcome the provider posts to the callback URL.
// The provider retries callbacks, so a second delivery of the same receipt
// answers 400 and never creates a second record.
func (h *Handler) PaymentSuccess(c *gin.Context) {
	log := handlers.Logger(c, h.log)
	ctx := c.Request.Context()

	var cb mpesa.Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		metrics.WebhookCallbacks.WithLabelValues("malformed").Inc()
		log.WithError(err).Warn("Malformed payment callback")
		reject(c, http.StatusBadRequest, "Invalid callback payload")
		return
	}

	stk := cb.Body.STKCallback
	log = log.WithFields(logrus.Fields{
		"checkout_request_id": stk.CheckoutRequestID,
		"merchant_request_id": stk.MerchantRequestID,
		"result_code":         string(stk.ResultCode),
	})

	if stk.ResultCode != mpesa.ResultSuccess {
		metrics.WebhookCallbacks.WithLabelValues("failed").Inc()
		log.WithField("result_desc", stk.ResultDesc).Info("Payment failed")
		h.forgetIntent(ctx, log, stk.CheckoutRequestID)
		reject(c, http.StatusBadRequest, "Payment failed: "+stk.ResultDesc)
		return
	}

	intent, err := h.intents.Get(ctx, stk.CheckoutRequestID)
	if err != nil {
		log.WithError(err).Warn("Failed to load payment intent")
	}

	donation, dq := BuildDonation(stk, intent, h.now())
	if dq != nil {
		for _, field := range dq.Missing {
			metrics.DataQualityFailures.WithLabelValues(field).Inc()
		}
		log.WithError(dq).WithField("fields", dq.Missing).Error("Payment callback is missing required fields")
	}
	if donation.ID == "" {
		metrics.WebhookCallbacks.WithLabelValues("malformed").Inc()
		log.Error("Payment callback has neither a receipt number nor a CheckoutRequestID")
		reject(c, http.StatusBadRequest, "Invalid callback payload")
		return
	}
	log = log.WithField("donation_id", donation.ID)

	if err := h.donations.Create(ctx, donation); err != nil {
		if errors.Is(err, store.ErrDuplicateDonation) {
			metrics.WebhookCallbacks.WithLabelValues("duplicate").Inc()
			log.Info("Donation already recorded")
			reject(c, http.StatusBadRequest, "Donation with this transaction ID already exists")
			return
		}
		metrics.WebhookCallbacks.WithLabelValues("error").Inc()
		log.WithError(err).Error("Failed to record donation")
		reject(c, http.StatusInternalServerError, "Failed to record donation")
		return
	}

	metrics.WebhookCallbacks.WithLabelValues("recorded").Inc()
	log.WithFields(logrus.Fields{"amount": donation.Amount, "donor": donation.Donor}).Info("Donation recorded")

	h.forgetIntent(ctx, log, stk.CheckoutRequestID)
	h.afterRecorded(log, *donation, intent)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Donation recorded successfully"})
}

func (h *Handler) forgetIntent(ctx context.Context, log *logrus.Entry, checkoutRequestID string) {
	if checkoutRequestID == "" {
		return
	}
	if err := h.intents.Delete(ctx, checkoutRequestID); err != nil {
		log.WithError(err).Warn("Failed to delete payment intent")
	}
}

// afterRecorded publishes the event and thanks the donor off the request path.
func (h *Handler) afterRecorded(log *logrus.Entry, d models.Donation, intent *models.PaymentIntent) {
	if h.events == nil && h.notifier == nil {
		return
	}
	h.async(func() {
		if h.events != nil {
			if err := h.events.Publish(utils.DonationRecordedSubject, d); err != nil {
				log.WithError(err).Warn("Failed to publish donation event")
			}
		}
		if h.notifier != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			h.notifier.DonationRecorded(ctx, d, intent)
		}
	})
}

package donations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inua-fund-server/models"
	"inua-fund-server/store"
	"inua-fund-server/utils"
)

// memoryRepo enforces the unique id the way the donations table does.
type memoryRepo struct {
	mu        sync.Mutex
	donations map[string]models.Donation
	createErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{donations: make(map[string]models.Donation)}
}

func (r *memoryRepo) Create(_ context.Context, d *models.Donation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.donations[d.ID]; ok {
		return store.ErrDuplicateDonation
	}
	r.donations[d.ID] = *d
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, store.ErrDonationNotFound
	}
	return &d, nil
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]models.Donation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]models.Donation, 0, len(r.donations))
	for _, d := range r.donations {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.donations)
}

type published struct {
	subject string
	payload interface{}
}

type fakePublisher struct{ events []published }

func (p *fakePublisher) Publish(subject string, v interface{}) error {
	p.events = append(p.events, published{subject, v})
	return nil
}

type fakeNotifier struct {
	donations []models.Donation
	intents   []*models.PaymentIntent
}

func (n *fakeNotifier) DonationRecorded(_ context.Context, d models.Donation, intent *models.PaymentIntent) {
	n.donations = append(n.donations, d)
	n.intents = append(n.intents, intent)
}

var fixedNow = time.Date(2024, time.March, 5, 10, 4, 9, 0, time.UTC)

type fixture struct {
	router   *gin.Engine
	repo     *memoryRepo
	intents  *store.MemoryIntentStore
	events   *fakePublisher
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		repo:     newMemoryRepo(),
		intents:  store.NewMemoryIntentStore(store.DefaultIntentTTL),
		events:   &fakePublisher{},
		notifier: &fakeNotifier{},
	}
	h := NewHandler(Deps{
		Donations: f.repo,
		Intents:   f.intents,
		Events:    f.events,
		Notifier:  f.notifier,
		Log:       log,
	})
	h.now = func() time.Time { return fixedNow }
	h.async = func(fn func()) { fn() }

	f.router = gin.New()
	allow := func(c *gin.Context) { c.Next() }
	h.RegisterRoutes(f.router.Group("/api"), allow)
	return f
}

func (f *fixture) callback(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/donations/payment-success", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

const successBody = `{"Body":{"stkCallback":{
  "MerchantRequestID":"29115-34620561-1",
  "CheckoutRequestID":"ws_CO_1",
  "ResultCode":0,
  "ResultDesc":"The service request is processed successfully.",
  "CallbackMetadata":{"Item":[
    {"Name":"Amount","Value":500},
    {"Name":"MpesaReceiptNumber","Value":"ABC123"},
    {"Name":"TransactionDate","Value":20240305100409},
    {"Name":"PhoneNumber","Value":254712345678}
  ]}}}}`

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestPaymentSuccess_RecordsDonation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.intents.Save(context.Background(), models.PaymentIntent{
		CheckoutRequestID: "ws_CO_1",
		Name:              "Jane Doe",
		Email:             "jane@example.org",
		Purpose:           "School Fees",
	}))

	w := f.callback(t, successBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["success"])

	d, err := f.repo.FindByID(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, int64(500), d.Amount)
	assert.Equal(t, "+254712345678", d.Donor)
	assert.Equal(t, models.DonationSuccessful, d.Status)
	assert.Equal(t, fixedNow, d.Date)
	assert.Equal(t, "ws_CO_1", d.CheckoutRequestID)
	require.NotNil(t, d.Campaign)
	assert.Equal(t, "School Fees", *d.Campaign)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, utils.DonationRecordedSubject, f.events.events[0].subject)

	require.Len(t, f.notifier.donations, 1)
	assert.Equal(t, "jane@example.org", f.notifier.intents[0].Email)

	intent, err := f.intents.Get(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Nil(t, intent, "intent is dropped once the donation is recorded")
}

func TestPaymentSuccess_NoIntent(t *testing.T) {
	f := newFixture(t)

	w := f.callback(t, successBody)
	require.Equal(t, http.StatusOK, w.Code)

	d, err := f.repo.FindByID(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Nil(t, d.Campaign)
	require.Len(t, f.notifier.intents, 1)
	assert.Nil(t, f.notifier.intents[0])
}

func TestPaymentSuccess_Idempotent(t *testing.T) {
	f := newFixture(t)

	first := f.callback(t, successBody)
	require.Equal(t, http.StatusOK, first.Code)

	second := f.callback(t, successBody)
	assert.Equal(t, http.StatusBadRequest, second.Code)
	body := decode(t, second)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Donation with this transaction ID already exists", body["message"])

	assert.Equal(t, 1, f.repo.count())
	assert.Len(t, f.events.events, 1, "a retried callback does not re-announce the donation")
}

func TestPaymentSuccess_FailedPaymentNotRecorded(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.intents.Save(context.Background(), models.PaymentIntent{CheckoutRequestID: "ws_CO_2"}))

	w := f.callback(t, `{"Body":{"stkCallback":{"MerchantRequestID":"m","CheckoutRequestID":"ws_CO_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Payment failed: Request cancelled by user", decode(t, w)["message"])
	assert.Equal(t, 0, f.repo.count())
	assert.Empty(t, f.events.events)

	intent, err := f.intents.Get(context.Background(), "ws_CO_2")
	require.NoError(t, err)
	assert.Nil(t, intent)
}

func TestPaymentSuccess_Malformed(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{`{"Body":`, `not json`, `{"Body":{"stkCallback":{"ResultCode":{}}}}`} {
		w := f.callback(t, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Equal(t, 0, f.repo.count())
}

func TestPaymentSuccess_MissingFieldsFallBack(t *testing.T) {
	f := newFixture(t)

	w := f.callback(t, `{"Body":{"stkCallback":{"MerchantRequestID":"m","CheckoutRequestID":"ws_CO_3","ResultCode":"0","ResultDesc":"ok","CallbackMetadata":{"Item":[{"Name":"Amount","Value":"250"}]}}}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	d, err := f.repo.FindByID(context.Background(), "ws_CO_3")
	require.NoError(t, err, "recorded under the CheckoutRequestID")
	assert.Equal(t, int64(250), d.Amount)
	assert.Equal(t, "Anonymous", d.Donor)
}

func TestPaymentSuccess_NoIdentifier(t *testing.T) {
	f := newFixture(t)

	w := f.callback(t, `{"Body":{"stkCallback":{"ResultCode":0,"CallbackMetadata":{"Item":[{"Name":"Amount","Value":10}]}}}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, f.repo.count())
}

func TestPaymentSuccess_StoreError(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = errors.New("failed to create donation: connection refused")

	w := f.callback(t, successBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Failed to record donation", body["message"])
	assert.NotContains(t, body, "error")
	assert.NotContains(t, w.Body.String(), "connection refused", "store details stay in the log")
	assert.Empty(t, f.events.events)
	assert.Empty(t, f.notifier.donations)
}

package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"github.com/ManuelReschke/CoachDesk/app/repository"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/billing"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/calendar"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
)

var testPricing = config.PricingConfig{Trial: 6000, Continuation: 40000}

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	return repository.NewRepositories(newTestDB(t))
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

type notifyCall struct {
	Event    string
	ClientID string
	Flag     bool
	Amount   int64
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

func (f *fakeNotifier) add(call notifyCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeNotifier) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Event)
	}
	return out
}

func (f *fakeNotifier) last() notifyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeNotifier) ApplicationReceived(_ context.Context, client *models.Client, requiresPayment bool) error {
	return f.add(notifyCall{Event: "application_received", ClientID: client.ID, Flag: requiresPayment})
}

func (f *fakeNotifier) BankTransferApplicationReceived(_ context.Context, client *models.Client, amount int64) error {
	return f.add(notifyCall{Event: "bank_transfer_application", ClientID: client.ID, Amount: amount})
}

func (f *fakeNotifier) TrialPaymentConfirmed(_ context.Context, client *models.Client, amount int64) error {
	return f.add(notifyCall{Event: "trial_payment_confirmed", ClientID: client.ID, Amount: amount})
}

func (f *fakeNotifier) ContinuationApplicationReceived(_ context.Context, client *models.Client, app *models.ContinuationApplication) error {
	return f.add(notifyCall{Event: "continuation_received", ClientID: client.ID, Amount: app.Amount})
}

func (f *fakeNotifier) ContinuationPaymentConfirmed(_ context.Context, client *models.Client, app *models.ContinuationApplication) error {
	return f.add(notifyCall{Event: "continuation_payment_confirmed", ClientID: client.ID, Amount: app.Amount})
}

func (f *fakeNotifier) BookingConfirmed(_ context.Context, client *models.Client, _ *models.Session) error {
	return f.add(notifyCall{Event: "booking_confirmed", ClientID: client.ID})
}

func (f *fakeNotifier) SessionCompleted(_ context.Context, client *models.Client, _ *models.Session, promote bool) error {
	return f.add(notifyCall{Event: "session_completed", ClientID: client.ID, Flag: promote})
}

type fakeProvider struct {
	customers int
	requests  []billing.CheckoutRequest
	checkout  *billing.Checkout
	err       error
}

func (p *fakeProvider) CreateCustomer(context.Context, string, string, billing.Metadata) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.customers++
	return "cus_test", nil
}

func (p *fakeProvider) CreateCheckout(_ context.Context, req billing.CheckoutRequest) (*billing.Checkout, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.requests = append(p.requests, req)
	return &billing.Checkout{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1", Metadata: req.Metadata}, nil
}

func (p *fakeProvider) RetrieveCheckout(_ context.Context, id string) (*billing.Checkout, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.checkout == nil || p.checkout.ID != id {
		return nil, errors.New("no such checkout session")
	}
	return p.checkout, nil
}

type fakeScheduler struct {
	meetings []calendar.Meeting
	err      error
}

func (s *fakeScheduler) CreateMeeting(_ context.Context, m calendar.Meeting) (string, error) {
	s.meetings = append(s.meetings, m)
	if s.err != nil {
		return "", s.err
	}
	return "https://meet.google.com/abc-defg-hij", nil
}

func createClient(t *testing.T, repos *repository.Repositories, email string, steps ...models.ClientStatus) *models.Client {
	t.Helper()
	client := &models.Client{Name: "山田 花子", Email: email}
	require.NoError(t, repos.Client.Create(context.Background(), client))
	for _, to := range steps {
		res, _, err := repos.Client.TransitionStatus(context.Background(), client.ID, to)
		require.NoError(t, err)
		require.Equal(t, models.TransitionApplied, res)
	}
	return client
}


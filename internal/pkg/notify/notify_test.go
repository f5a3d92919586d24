package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/jobqueue"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/mail"
)

type captureDispatcher struct {
	events []string
	groups [][]mail.Message
}

func (d *captureDispatcher) Dispatch(_ context.Context, event string, msgs ...mail.Message) error {
	d.events = append(d.events, event)
	d.groups = append(d.groups, msgs)
	return nil
}

type fakeSequencer struct {
	mu       sync.Mutex
	sent     []mail.Message
	failures map[string]bool
}

func (f *fakeSequencer) SendSequence(_ context.Context, msgs ...mail.Message) []mail.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mail.Outcome, 0, len(msgs))
	for _, m := range msgs {
		f.sent = append(f.sent, m)
		if f.failures[m.To] {
			out = append(out, mail.Outcome{Transport: "smtp", Error: "refused"})
			continue
		}
		out = append(out, mail.Outcome{Success: true, Transport: "smtp"})
	}
	return out
}

type fakeEnqueuer struct {
	jobType jobqueue.JobType
	payload map[string]interface{}
	err     error
}

func (f *fakeEnqueuer) EnqueueJob(_ context.Context, jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.jobType = jobType
	f.payload = payload
	return &jobqueue.Job{ID: "job-1", Type: jobType, Payload: payload}, nil
}

func newTestNotifier(t *testing.T, d Dispatcher) *Notifier {
	t.Helper()
	catalog, err := LoadCatalog(nil)
	require.NoError(t, err)
	return NewNotifier(catalog, d, Options{
		AdminEmail: "admin@example.com",
		BaseURL:    "https://coach.example.com",
		Bank: config.BankConfig{
			Name: "みずほ銀行", Branch: "渋谷支店", AccountType: "普通",
			AccountNumber: "1234567", AccountHolder: "コーチデスク", PaymentWindow: 72 * time.Hour,
		},
		Now: func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
}

func testClient() *models.Client {
	return &models.Client{ID: "client-1", Name: "山田太郎", Email: "taro@example.com", Goals: "転職"}
}

func TestDefaultCatalogLoads(t *testing.T) {
	catalog, err := LoadCatalog(nil)
	require.NoError(t, err)
	for _, name := range []string{
		"application_received", "application_received_admin", "bank_transfer_instructions",
		"trial_payment_confirmed", "continuation_payment_confirmed", "booking_confirmed",
		"session_completed", "next_session_promotion",
	} {
		assert.Truef(t, catalog.Has(name), "missing template %s", name)
	}
}

func TestLoadCatalogRejectsUnknownCategory(t *testing.T) {
	_, err := LoadCatalog([]byte("x:\n  category: spam\n  subject: hi\n  body: hi\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestCatalogRenderUnknownTemplate(t *testing.T) {
	catalog, err := LoadCatalog(nil)
	require.NoError(t, err)
	_, err = catalog.Render("nope", "a@example.com", Data{})
	assert.Error(t, err)
}

func TestApplicationReceivedSendsClientThenAdmin(t *testing.T) {
	d := &captureDispatcher{}
	n := newTestNotifier(t, d)

	require.NoError(t, n.ApplicationReceived(context.Background(), testClient(), true))

	require.Len(t, d.groups, 1)
	assert.Equal(t, "application_received", d.events[0])
	msgs := d.groups[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, "taro@example.com", msgs[0].To)
	assert.Equal(t, "admin@example.com", msgs[1].To)
	assert.Equal(t, mail.CategoryApplication, msgs[0].Category)
	assert.Equal(t, "client-1", msgs[0].ClientID)
	assert.Contains(t, msgs[0].Body, "山田太郎")
	assert.Contains(t, msgs[1].Body, "taro@example.com")
}

func TestNoAdminCopyWithoutAdminEmail(t *testing.T) {
	d := &captureDispatcher{}
	n := newTestNotifier(t, d)
	n.opts.AdminEmail = ""

	require.NoError(t, n.TrialPaymentConfirmed(context.Background(), testClient(), 6000))
	require.Len(t, d.groups, 1)
	assert.Len(t, d.groups[0], 1)
}

func TestBankTransferApplicationIsOneGroup(t *testing.T) {
	d := &captureDispatcher{}
	n := newTestNotifier(t, d)

	require.NoError(t, n.BankTransferApplicationReceived(context.Background(), testClient(), 6000))

	require.Len(t, d.groups, 1)
	assert.Equal(t, "application_received", d.events[0])
	msgs := d.groups[0]
	require.Len(t, msgs, 3)
	assert.Equal(t, "taro@example.com", msgs[0].To)
	assert.Equal(t, mail.CategoryApplication, msgs[0].Category)

	instructions := msgs[1]
	assert.Equal(t, "taro@example.com", instructions.To)
	assert.Contains(t, instructions.Body, "¥6,000")
	assert.Contains(t, instructions.Body, "1234567")
	assert.Contains(t, instructions.Body, "2026年3月4日 09:00")
	assert.Equal(t, "client-1", instructions.ClientID)

	assert.Equal(t, "admin@example.com", msgs[2].To)
}

func TestBankTransferApplicationWithoutAdminEmail(t *testing.T) {
	d := &captureDispatcher{}
	n := newTestNotifier(t, d)
	n.opts.AdminEmail = ""

	require.NoError(t, n.BankTransferApplicationReceived(context.Background(), testClient(), 6000))
	require.Len(t, d.groups, 1)
	require.Len(t, d.groups[0], 2)
	assert.Contains(t, d.groups[0][1].Body, "1234567")
}

func TestBookingConfirmedCarriesSessionID(t *testing.T) {
	d := &captureDispatcher{}
	n := newTestNotifier(t, d)
	session := &models.Session{
		ID: "session-1", Type: models.SessionTypeTrial, DurationMinutes: 60,
		ScheduledAt: time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC), MeetingURL: "https://meet.google.com/abc",
	}

	require.NoError(t, n.BookingConfirmed(context.Background(), testClient(), session))

	msgs := d.groups[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, mail.CategoryBooking, msgs[0].Category)
	assert.Equal(t, "session-1", msgs[0].SessionID)
	assert.Contains(t, msgs[0].Body, "https://meet.google.com/abc")
	assert.Contains(t, msgs[0].Body, "2026年3月10日 10:30")
}

func TestSessionCompletedPromotesAfterTrial(t *testing.T) {
	d := &captureDispatcher{}
	n := newTestNotifier(t, d)
	session := &models.Session{ID: "session-1", ScheduledAt: time.Now(), Summary: "目標を整理"}

	require.NoError(t, n.SessionCompleted(context.Background(), testClient(), session, true))
	require.NoError(t, n.SessionCompleted(context.Background(), testClient(), session, false))

	require.Len(t, d.groups, 2)
	require.Len(t, d.groups[0], 2)
	assert.Equal(t, mail.CategorySessionUpdate, d.groups[0][0].Category)
	assert.Equal(t, mail.CategoryNextSessionPromotion, d.groups[0][1].Category)
	assert.Contains(t, d.groups[0][1].Body, "https://coach.example.com/apply/continue")
	assert.Len(t, d.groups[1], 1)
}

func TestFormatYen(t *testing.T) {
	tests := map[int64]string{
		0:       "¥0",
		999:     "¥999",
		6000:    "¥6,000",
		40000:   "¥40,000",
		1234567: "¥1,234,567",
		-1500:   "-¥1,500",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatYen(in))
	}
}

func TestQueueDispatcher(t *testing.T) {
	q := &fakeEnqueuer{}
	d := NewQueueDispatcher(q)
	msgs := []mail.Message{{To: "a@example.com", Subject: "s", Body: "b", Category: mail.CategoryBooking}}

	require.NoError(t, d.Dispatch(context.Background(), "booking_confirmed", msgs...))
	assert.Equal(t, jobqueue.JobTypeNotification, q.jobType)

	payload, err := jobqueue.NotificationJobPayloadFromMap(q.payload)
	require.NoError(t, err)
	assert.Equal(t, "booking_confirmed", payload.Event)
	assert.Equal(t, msgs, payload.Messages)

	q.err = errors.New("redis down")
	assert.Error(t, d.Dispatch(context.Background(), "booking_confirmed", msgs...))
}

func TestInlineDispatcherSurvivesCancelledCaller(t *testing.T) {
	seq := &fakeSequencer{}
	d := NewInlineDispatcher(seq)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, d.Dispatch(ctx, "application_received",
		mail.Message{To: "a@example.com"}, mail.Message{To: "b@example.com"}))
	d.Wait()

	require.Len(t, seq.sent, 2)
	assert.Equal(t, "a@example.com", seq.sent[0].To)
}

func TestJobHandler(t *testing.T) {
	seq := &fakeSequencer{failures: map[string]bool{"bad@example.com": true}}
	handler := NewJobHandler(seq)

	ok := jobqueue.NotificationJobPayload{Event: "e", Messages: []mail.Message{{To: "a@example.com"}}}
	require.NoError(t, handler(context.Background(), &jobqueue.Job{Payload: ok.ToMap()}))

	bad := jobqueue.NotificationJobPayload{Event: "e", Messages: []mail.Message{{To: "bad@example.com"}, {To: "a@example.com"}}}
	err := handler(context.Background(), &jobqueue.Job{Payload: bad.ToMap()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Len(t, seq.sent, 3)
}

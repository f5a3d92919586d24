package controllers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"github.com/ManuelReschke/CoachDesk/app/repository"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/jobqueue"
)

type fakeQueue struct {
	err error
}

func (q fakeQueue) GetJobStats(context.Context) (map[jobqueue.JobStatus]int64, error) {
	if q.err != nil {
		return nil, q.err
	}
	return map[jobqueue.JobStatus]int64{jobqueue.JobStatusCompleted: 7, jobqueue.JobStatusFailed: 1}, nil
}

func (q fakeQueue) GetQueueSize(context.Context) (int64, error)      { return 2, nil }
func (q fakeQueue) GetProcessingSize(context.Context) (int64, error) { return 1, nil }

func newAdminApp(t *testing.T, queue QueueMonitor) (*fiber.App, *repository.Repositories, *fakeNotifier) {
	t.Helper()
	repos := newTestRepos(t)
	notifier := &fakeNotifier{}
	ac := NewAdminController(repos, notifier, testPricing, queue)
	ac.now = func() time.Time { return testNow }

	app := fiber.New()
	admin := app.Group("/api/admin")
	admin.Get("/clients", ac.HandleClients)
	admin.Get("/clients/:id", ac.HandleClient)
	admin.Patch("/clients/:id/status", ac.HandleClientStatus)
	admin.Post("/clients/:id/confirm-trial-payment", ac.HandleConfirmTrialPayment)
	admin.Get("/sessions", ac.HandleSessions)
	admin.Get("/applications", ac.HandleApplications)
	admin.Post("/applications/:id/decision", ac.HandleApplicationDecision)
	admin.Get("/payments", ac.HandlePayments)
	admin.Get("/email-history", ac.HandleEmailHistory)
	admin.Get("/queue", ac.HandleQueue)
	return app, repos, notifier
}

func TestAdminClients_ListAndDetail(t *testing.T) {
	app, repos, _ := newAdminApp(t, nil)
	ctx := context.Background()
	hanako := createClient(t, repos, "hanako@example.com", models.ClientStatusTrialBooked)
	createClient(t, repos, "taro@example.com")
	require.NoError(t, repos.Session.Create(ctx, &models.Session{ClientID: hanako.ID, ScheduledAt: testNow}))

	status, body := doJSON(t, app, fiber.MethodGet, "/api/admin/clients?status=trial_booked", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
	assert.Len(t, body["data"], 1)

	status, body = doJSON(t, app, fiber.MethodGet, "/api/admin/clients?page=1&page_size=1", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(2), body["total"])
	assert.Len(t, body["data"], 1)
	assert.Equal(t, float64(1), body["pageSize"])

	status, body = doJSON(t, app, fiber.MethodGet, "/api/admin/clients/"+hanako.ID, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["sessions"], 1)

	status, _ = doJSON(t, app, fiber.MethodGet, "/api/admin/clients/missing", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAdminClientStatus(t *testing.T) {
	app, repos, _ := newAdminApp(t, nil)
	client := createClient(t, repos, "hanako@example.com")
	path := "/api/admin/clients/" + client.ID + "/status"

	status, body := doJSON(t, app, fiber.MethodPatch, path, fiber.Map{"status": "archived"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "unknown_status", body["error"])

	status, body = doJSON(t, app, fiber.MethodPatch, path, fiber.Map{"status": "active"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "applied", body["current"])
	assert.Contains(t, body["message"], "applied -> active")

	status, body = doJSON(t, app, fiber.MethodPatch, path, fiber.Map{"status": "inactive"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["changed"])

	status, body = doJSON(t, app, fiber.MethodPatch, path, fiber.Map{"status": "inactive"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["changed"])
}

func TestAdminConfirmTrialPayment(t *testing.T) {
	app, repos, notifier := newAdminApp(t, nil)
	ctx := context.Background()
	client := createClient(t, repos, "hanako@example.com")
	path := "/api/admin/clients/" + client.ID + "/confirm-trial-payment"

	status, body := doJSON(t, app, fiber.MethodPost, path, nil)
	require.Equal(t, fiber.StatusOK, status, body)

	stored, err := repos.Client.GetByID(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, stored.TrialPaymentStatus)
	require.NotNil(t, stored.TrialPaidAt)
	assert.True(t, stored.TrialPaidAt.Equal(testNow))

	rows, err := repos.Payment.ListTrialPayments(ctx, repository.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.PaymentProviderBankTransfer, rows[0].LedgerEntry.Provider)
	assert.Equal(t, int64(6000), rows[0].LedgerEntry.Amount)

	status, body = doJSON(t, app, fiber.MethodPost, path, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["alreadyPaid"])

	_, trial, err := repos.Payment.CountPayments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), trial)
	assert.Equal(t, []string{"trial_payment_confirmed"}, notifier.events())
}

func TestAdminApplicationDecision_BankTransferApproval(t *testing.T) {
	app, repos, notifier := newAdminApp(t, nil)
	ctx := context.Background()
	client := createClient(t, repos, "hanako@example.com", models.ClientStatusTrialBooked, models.ClientStatusTrialCompleted)
	application := &models.ContinuationApplication{
		ClientID:      client.ID,
		PaymentMethod: models.PaymentMethodBankTransfer,
		Amount:        40000,
		Currency:      "jpy",
	}
	require.NoError(t, repos.Application.Create(ctx, application))
	path := "/api/admin/applications/" + application.ID + "/decision"

	status, body := doJSON(t, app, fiber.MethodPost, path, fiber.Map{"decision": "maybe"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", body["error"])

	status, body = doJSON(t, app, fiber.MethodPost, path, fiber.Map{"decision": "approve"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, true, body["changed"])

	stored, err := repos.Application.GetByID(ctx, application.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, stored.Status)
	assert.Equal(t, models.PaymentStatusSucceeded, stored.PaymentStatus)

	updated, err := repos.Client.GetByID(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClientStatusActive, updated.Status)

	continuation, _, err := repos.Payment.CountPayments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), continuation)
	assert.Equal(t, []string{"continuation_payment_confirmed"}, notifier.events())

	status, body = doJSON(t, app, fiber.MethodPost, path, fiber.Map{"decision": "reject"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "approved", body["current"])
}

func TestAdminApplicationDecision_CardRejection(t *testing.T) {
	app, repos, notifier := newAdminApp(t, nil)
	ctx := context.Background()
	client := createClient(t, repos, "hanako@example.com")
	application := &models.ContinuationApplication{ClientID: client.ID, Amount: 40000}
	require.NoError(t, repos.Application.Create(ctx, application))

	status, _ := doJSON(t, app, fiber.MethodPost, "/api/admin/applications/missing/decision", fiber.Map{"decision": "reject"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body := doJSON(t, app, fiber.MethodPost, "/api/admin/applications/"+application.ID+"/decision", fiber.Map{"decision": "reject"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "rejected", body["status"])

	status, body = doJSON(t, app, fiber.MethodGet, "/api/admin/applications?status=rejected", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	continuation, _, err := repos.Payment.CountPayments(ctx)
	require.NoError(t, err)
	assert.Zero(t, continuation)
	assert.Empty(t, notifier.events())
}

func TestAdminEmailHistoryFilters(t *testing.T) {
	app, repos, _ := newAdminApp(t, nil)
	ctx := context.Background()
	clientID := "client-1"
	for _, status := range []models.DeliveryStatus{models.DeliveryStatusSent, models.DeliveryStatusFailed, models.DeliveryStatusSent} {
		require.NoError(t, repos.EmailHistory.Create(ctx, &models.EmailHistory{
			Recipient: "hanako@example.com", Subject: "予約確認", Category: "booking", Transport: "smtp",
			Status: status, ClientID: &clientID,
		}))
	}

	status, body := doJSON(t, app, fiber.MethodGet, "/api/admin/email-history?client_id=client-1&status=failed", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	status, body = doJSON(t, app, fiber.MethodGet, "/api/admin/email-history?client_id=other", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(0), body["total"])
}

func TestAdminListingsAndQueue(t *testing.T) {
	app, _, _ := newAdminApp(t, fakeQueue{})

	status, body := doJSON(t, app, fiber.MethodGet, "/api/admin/sessions", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(0), body["total"])

	status, body = doJSON(t, app, fiber.MethodGet, "/api/admin/payments", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "totals")

	status, body = doJSON(t, app, fiber.MethodGet, "/api/admin/queue", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["enabled"])
	assert.Equal(t, float64(2), body["pending"])

	noQueue, _, _ := newAdminApp(t, nil)
	status, body = doJSON(t, noQueue, fiber.MethodGet, "/api/admin/queue", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["enabled"])

	failing, _, _ := newAdminApp(t, fakeQueue{err: errors.New("redis down")})
	status, _ = doJSON(t, failing, fiber.MethodGet, "/api/admin/queue", nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
}

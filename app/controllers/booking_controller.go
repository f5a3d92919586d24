package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"github.com/ManuelReschke/CoachDesk/app/repository"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/calendar"
)

// BookingController schedules and completes coaching sessions.
type BookingController struct {
	repos     *repository.Repositories
	scheduler calendar.MeetingScheduler
	notifier  Notifier
	now       func() time.Time
}

func NewBookingController(repos *repository.Repositories, scheduler calendar.MeetingScheduler, notifier Notifier) *BookingController {
	if scheduler == nil {
		scheduler = calendar.NoopScheduler{}
	}
	return &BookingController{repos: repos, scheduler: scheduler, notifier: notifier, now: time.Now}
}

type bookingRequest struct {
	ClientID        string    `json:"clientId" validate:"omitempty,uuid"`
	Email           string    `json:"email" validate:"omitempty,email"`
	ScheduledAt     time.Time `json:"scheduledAt" validate:"required"`
	DurationMinutes int       `json:"durationMinutes" validate:"omitempty,min=15,max=240"`
	Type            string    `json:"type" validate:"omitempty,oneof=trial regular"`
	Notes           string    `json:"notes" validate:"omitempty,max=4000"`
}

type completeRequest struct {
	Summary string `json:"summary" validate:"omitempty,max=8000"`
}

// HandleBooking books a session, creates a meeting link when a calendar is
// configured and confirms the booking by mail.
func (bc *BookingController) HandleBooking(c *fiber.Ctx) error {
	var req bookingRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	ctx := c.UserContext()

	if req.ClientID == "" && req.Email == "" {
		return jsonError(c, fiber.StatusBadRequest, "missing_client", "clientId or email is required")
	}
	if req.ScheduledAt.Before(bc.now()) {
		return jsonError(c, fiber.StatusBadRequest, "in_past", "scheduledAt must be in the future")
	}

	var (
		client *models.Client
		err    error
	)
	if req.ClientID != "" {
		client, err = bc.repos.Client.GetByID(ctx, req.ClientID)
	} else {
		client, err = bc.repos.Client.GetByEmail(ctx, req.Email)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return jsonError(c, fiber.StatusNotFound, "client_not_found", "Client not found")
	}
	if err != nil {
		log.Errorf("[Booking] Client lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "lookup_failed", "Booking could not be saved")
	}

	session := &models.Session{
		ID:              uuid.New().String(),
		ClientID:        client.ID,
		Type:            models.SessionTypeTrial,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Notes:           strings.TrimSpace(req.Notes),
	}
	if req.Type == string(models.SessionTypeRegular) {
		session.Type = models.SessionTypeRegular
	}
	if session.DurationMinutes == 0 {
		session.DurationMinutes = 60
	}

	link, err := bc.scheduler.CreateMeeting(ctx, calendar.Meeting{
		RequestID:   session.ID,
		Summary:     "コーチングセッション: " + client.Name,
		Description: session.Notes,
		Start:       session.ScheduledAt,
		End:         session.EndsAt(),
		Attendees:   []string{client.Email},
	})
	if err != nil {
		log.Warnf("[Booking] Meeting for session %s could not be created: %v", session.ID, err)
	}
	session.MeetingURL = link

	if err := bc.repos.Session.Create(ctx, session); err != nil {
		log.Errorf("[Booking] Failed to create session for client %s: %v", client.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "create_failed", "Booking could not be saved")
	}

	if session.Type == models.SessionTypeTrial {
		res, cur, err := bc.repos.Client.TransitionStatus(ctx, client.ID, models.ClientStatusTrialBooked)
		if err != nil {
			log.Errorf("[Booking] Failed to advance client %s: %v", client.ID, err)
		} else if res == models.TransitionRejected {
			log.Debugf("[Booking] Client %s stays %s", client.ID, cur)
		}
	}

	notify(ctx, "Booking", func(ctx context.Context) error {
		return bc.notifier.BookingConfirmed(ctx, client, session)
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"sessionId":  session.ID,
		"meetingUrl": session.MeetingURL,
		"session":    session,
	})
}

// HandleCompleteSession closes a session. After a trial the client is moved
// to trial_completed and invited to the continuation program.
func (bc *BookingController) HandleCompleteSession(c *fiber.Ctx) error {
	var req completeRequest
	if len(c.Body()) > 0 {
		if ok, err := bindJSON(c, &req); !ok {
			return err
		}
	}
	ctx := c.UserContext()

	session, err := bc.repos.Session.GetByID(ctx, c.Params("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return jsonError(c, fiber.StatusNotFound, "session_not_found", "Session not found")
	}
	if err != nil {
		log.Errorf("[Booking] Session lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "lookup_failed", "Session could not be loaded")
	}

	summary := strings.TrimSpace(req.Summary)
	res, err := bc.repos.Session.Complete(ctx, session.ID, summary, bc.now())
	if err != nil {
		log.Errorf("[Booking] Failed to complete session %s: %v", session.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "update_failed", "Session could not be updated")
	}
	switch res {
	case models.TransitionRejected:
		return jsonError(c, fiber.StatusConflict, "illegal_transition", "Session is "+string(session.Status))
	case models.TransitionNoop:
		return c.JSON(fiber.Map{"success": true, "alreadyCompleted": true})
	}
	session.Summary = summary

	trial := session.Type == models.SessionTypeTrial
	if trial {
		if _, cur, err := bc.repos.Client.TransitionStatus(ctx, session.ClientID, models.ClientStatusTrialCompleted); err != nil {
			log.Errorf("[Booking] Failed to advance client %s: %v", session.ClientID, err)
		} else if cur != models.ClientStatusTrialCompleted {
			log.Warnf("[Booking] Client %s stays %s after trial", session.ClientID, cur)
		}
	}

	if session.Client != nil {
		notify(ctx, "Booking", func(ctx context.Context) error {
			return bc.notifier.SessionCompleted(ctx, session.Client, session, trial)
		})
	}
	return c.JSON(fiber.Map{"success": true, "sessionId": session.ID})
}

package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
)

// Meeting describes a coaching session to put on the calendar.
type Meeting struct {
	RequestID   string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// MeetingScheduler creates a calendar event with a video link.
type MeetingScheduler interface {
	CreateMeeting(ctx context.Context, m Meeting) (string, error)
}

// NoopScheduler is used when no calendar is configured. It returns no link.
type NoopScheduler struct{}

func (NoopScheduler) CreateMeeting(context.Context, Meeting) (string, error) {
	return "", nil
}

type eventInserter interface {
	Insert(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error)
}

type googleEvents struct {
	svc *gcal.Service
}

func (g googleEvents) Insert(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error) {
	return g.svc.Events.Insert(calendarID, event).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
}

// GoogleScheduler books events on a Google Calendar with a Meet conference.
type GoogleScheduler struct {
	events     eventInserter
	calendarID string
	timeZone   string
}

// NewGoogleScheduler authenticates with a stored OAuth2 refresh token.
func NewGoogleScheduler(ctx context.Context, cfg config.GoogleConfig) (*GoogleScheduler, error) {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarEventsScope},
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	log.Infof("[Calendar] Using Google Calendar %s", cfg.CalendarID)
	return &GoogleScheduler{events: googleEvents{svc: svc}, calendarID: cfg.CalendarID, timeZone: cfg.TimeZone}, nil
}

func (g *GoogleScheduler) CreateMeeting(ctx context.Context, m Meeting) (string, error) {
	attendees := make([]*gcal.EventAttendee, 0, len(m.Attendees))
	for _, a := range m.Attendees {
		if a != "" {
			attendees = append(attendees, &gcal.EventAttendee{Email: a})
		}
	}

	event := &gcal.Event{
		Summary:     m.Summary,
		Description: m.Description,
		Start:       &gcal.EventDateTime{DateTime: m.Start.Format(time.RFC3339), TimeZone: g.timeZone},
		End:         &gcal.EventDateTime{DateTime: m.End.Format(time.RFC3339), TimeZone: g.timeZone},
		Attendees:   attendees,
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             m.RequestID,
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}

	created, err := g.events.Insert(ctx, g.calendarID, event)
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}
	if created.HangoutLink != "" {
		return created.HangoutLink, nil
	}
	if created.ConferenceData != nil {
		for _, ep := range created.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				return ep.Uri, nil
			}
		}
	}
	return "", nil
}

package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
)

type fakeInserter struct {
	calendarID string
	event      *gcal.Event
	reply      *gcal.Event
	err        error
}

func (f *fakeInserter) Insert(_ context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error) {
	f.calendarID = calendarID
	f.event = event
	return f.reply, f.err
}

func TestGoogleScheduler_CreateMeeting(t *testing.T) {
	ins := &fakeInserter{reply: &gcal.Event{HangoutLink: "https://meet.google.com/abc-defg-hij"}}
	s := &GoogleScheduler{events: ins, calendarID: "primary", timeZone: "Asia/Tokyo"}
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	link, err := s.CreateMeeting(context.Background(), Meeting{
		RequestID: "session-1",
		Summary:   "体験セッション",
		Start:     start,
		End:       start.Add(time.Hour),
		Attendees: []string{"taro@example.com", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", link)

	assert.Equal(t, "primary", ins.calendarID)
	require.NotNil(t, ins.event.ConferenceData)
	assert.Equal(t, "hangoutsMeet", ins.event.ConferenceData.CreateRequest.ConferenceSolutionKey.Type)
	assert.Equal(t, "session-1", ins.event.ConferenceData.CreateRequest.RequestId)
	assert.Len(t, ins.event.Attendees, 1)
	assert.Equal(t, "2026-03-10T10:00:00Z", ins.event.Start.DateTime)
	assert.Equal(t, "Asia/Tokyo", ins.event.Start.TimeZone)
}

func TestGoogleScheduler_FallsBackToVideoEntryPoint(t *testing.T) {
	ins := &fakeInserter{reply: &gcal.Event{ConferenceData: &gcal.ConferenceData{
		EntryPoints: []*gcal.EntryPoint{{EntryPointType: "phone", Uri: "tel:+1"}, {EntryPointType: "video", Uri: "https://meet.google.com/x"}},
	}}}
	s := &GoogleScheduler{events: ins, calendarID: "primary"}

	link, err := s.CreateMeeting(context.Background(), Meeting{Start: time.Now(), End: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "https://meet.google.com/x", link)
}

func TestGoogleScheduler_Error(t *testing.T) {
	s := &GoogleScheduler{events: &fakeInserter{err: errors.New("quota")}, calendarID: "primary"}
	_, err := s.CreateMeeting(context.Background(), Meeting{Start: time.Now(), End: time.Now()})
	assert.Error(t, err)
}

func TestNoopScheduler(t *testing.T) {
	link, err := NoopScheduler{}.CreateMeeting(context.Background(), Meeting{})
	assert.NoError(t, err)
	assert.Empty(t, link)
}

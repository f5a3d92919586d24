package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/metrics"
)

const (
	CarrierFallbackDelay  = 10 * time.Second
	StandardFallbackDelay = 3 * time.Second
	SequencePause         = 2 * time.Second
	CarrierSequencePause  = 10 * time.Second

	transportNone = "none"
)

var ErrNoTransport = errors.New("no mail transport configured")

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration)

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

type Option func(*Service)

func WithSleeper(sleep Sleeper) Option {
	return func(s *Service) { s.sleep = sleep }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service picks a transport per recipient, falls back once to the other
// transport and records every attempt.
type Service struct {
	smtp     Transport
	resend   Transport
	recorder Recorder
	sleep    Sleeper
	now      func() time.Time
}

// NewService builds the delivery service. Either transport may be nil.
func NewService(smtp, resend Transport, recorder Recorder, opts ...Option) *Service {
	s := &Service{
		smtp:     smtp,
		resend:   resend,
		recorder: recorder,
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// route returns the primary transport, the fallback (may be nil) and the
// delay before the fallback.
func (s *Service) route(to string) (Transport, Transport, time.Duration) {
	if IsCarrier(to) {
		return pick(s.resend, s.smtp, CarrierFallbackDelay)
	}
	return pick(s.smtp, s.resend, StandardFallbackDelay)
}

func pick(preferred, other Transport, delay time.Duration) (Transport, Transport, time.Duration) {
	if preferred == nil {
		return other, nil, 0
	}
	return preferred, other, delay
}

// Send delivers msg and never panics or returns an error.
func (s *Service) Send(ctx context.Context, msg Message) Outcome {
	if err := msg.Validate(); err != nil {
		s.record(ctx, msg, transportNone, err)
		return Outcome{Transport: transportNone, Error: err.Error()}
	}

	primary, fallback, delay := s.route(msg.To)
	if primary == nil {
		s.record(ctx, msg, transportNone, ErrNoTransport)
		return Outcome{Transport: transportNone, Error: ErrNoTransport.Error()}
	}

	err := s.attempt(ctx, primary, msg)
	if err == nil {
		return Outcome{Success: true, Transport: primary.Name()}
	}
	if fallback == nil {
		return Outcome{Transport: primary.Name(), Error: err.Error()}
	}

	log.Warnf("[Mail] %s failed for %s (%v), falling back to %s in %s", primary.Name(), msg.To, err, fallback.Name(), delay)
	s.sleep(ctx, delay)

	ferr := s.attempt(ctx, fallback, msg)
	if ferr == nil {
		return Outcome{Success: true, Transport: fallback.Name()}
	}
	log.Errorf("[Mail] All transports failed for %s: %v", msg.To, ferr)
	return Outcome{
		Transport: fallback.Name(),
		Error:     fmt.Sprintf("%s: %v; %s: %v", primary.Name(), err, fallback.Name(), ferr),
	}
}

// SendSequence delivers related messages in order with a pause between them.
// A failed message does not stop the rest.
func (s *Service) SendSequence(ctx context.Context, msgs ...Message) []Outcome {
	outcomes := make([]Outcome, 0, len(msgs))
	for i, msg := range msgs {
		if i > 0 {
			pause := SequencePause
			if IsCarrier(msgs[i-1].To) || IsCarrier(msg.To) {
				pause = CarrierSequencePause
			}
			s.sleep(ctx, pause)
		}
		outcomes = append(outcomes, s.Send(ctx, msg))
	}
	return outcomes
}

func (s *Service) attempt(ctx context.Context, t Transport, msg Message) error {
	err := safeSend(ctx, t, msg)
	s.record(ctx, msg, t.Name(), err)
	return err
}

func safeSend(ctx context.Context, t Transport, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", t.Name(), r)
		}
	}()
	return t.Send(ctx, msg)
}

func (s *Service) record(ctx context.Context, msg Message, transport string, sendErr error) {
	status := models.DeliveryStatusSent
	if sendErr != nil {
		status = models.DeliveryStatusFailed
	}
	metrics.EmailAttempts.WithLabelValues(transport, string(status)).Inc()

	if sendErr == nil {
		log.Infof("[Mail] Sent %q to %s via %s", msg.Category, msg.To, transport)
	}
	if s.recorder == nil {
		return
	}

	record := &models.EmailHistory{
		Recipient: msg.To,
		Subject:   msg.Subject,
		Category:  string(msg.Category),
		Transport: transport,
		Status:    status,
		SessionID: models.StringPtr(msg.SessionID),
		ClientID:  models.StringPtr(msg.ClientID),
		RelatedID: models.StringPtr(msg.RelatedID),
	}
	if sendErr != nil {
		errMsg := sendErr.Error()
		record.ErrorMessage = &errMsg
	} else {
		sentAt := s.now()
		record.SentAt = &sentAt
	}

	// The audit write must survive a cancelled caller.
	if err := safeRecord(context.WithoutCancel(ctx), s.recorder, record); err != nil {
		log.Errorf("[Mail] Failed to record delivery to %s: %v", msg.To, err)
	}
}

func safeRecord(ctx context.Context, recorder Recorder, record *models.EmailHistory) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recorder panicked: %v", r)
		}
	}()
	return recorder.Create(ctx, record)
}

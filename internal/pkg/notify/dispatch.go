package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/jobqueue"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/mail"
)

// Sequencer delivers an ordered group of messages.
type Sequencer interface {
	SendSequence(ctx context.Context, msgs ...mail.Message) []mail.Outcome
}

type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

// QueueDispatcher hands messages to the Redis job queue.
type QueueDispatcher struct {
	queue Enqueuer
}

func NewQueueDispatcher(queue Enqueuer) *QueueDispatcher {
	return &QueueDispatcher{queue: queue}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, event string, msgs ...mail.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	payload := jobqueue.NotificationJobPayload{Event: event, Messages: msgs}
	if _, err := d.queue.EnqueueJob(ctx, jobqueue.JobTypeNotification, payload.ToMap()); err != nil {
		return fmt.Errorf("enqueue %s notification: %w", event, err)
	}
	return nil
}

// InlineDispatcher sends from a detached goroutine. Used when Redis is unavailable.
type InlineDispatcher struct {
	mailer Sequencer
	wg     sync.WaitGroup
}

func NewInlineDispatcher(mailer Sequencer) *InlineDispatcher {
	return &InlineDispatcher{mailer: mailer}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, event string, msgs ...mail.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logOutcomes(event, d.mailer.SendSequence(detached, msgs...))
	}()
	return nil
}

// Wait blocks until every dispatched group has been attempted.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

// NewJobHandler returns the job queue handler for notification jobs.
func NewJobHandler(mailer Sequencer) jobqueue.Handler {
	return func(ctx context.Context, job *jobqueue.Job) error {
		payload, err := jobqueue.NotificationJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("decode notification payload: %w", err)
		}
		return logOutcomes(payload.Event, mailer.SendSequence(ctx, payload.Messages...))
	}
}

func logOutcomes(event string, outcomes []mail.Outcome) error {
	var failed []string
	for _, o := range outcomes {
		if !o.Success {
			failed = append(failed, o.Error)
		}
	}
	if len(failed) == 0 {
		log.Debugf("[Notify] %s: %d message(s) delivered", event, len(outcomes))
		return nil
	}
	err := fmt.Errorf("%s: %d of %d message(s) failed: %s", event, len(failed), len(outcomes), strings.Join(failed, "; "))
	log.Warnf("[Notify] %v", err)
	return err
}

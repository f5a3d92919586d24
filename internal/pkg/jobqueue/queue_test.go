package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/mail"
)

// TestNewQueue tests the queue constructor
func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, 3},
		{"Negative workers", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue(nil, tt.workers)

			assert.NotNil(t, queue)
			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.NotNil(t, queue.workerPool)
			assert.Equal(t, tt.expectedWorkers, cap(queue.workerPool))
			assert.NotNil(t, queue.stopCh)
			assert.False(t, queue.running)
			assert.Empty(t, queue.handlers)
		})
	}
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "coachdesk:job:", JobKeyPrefix)
	assert.Equal(t, "coachdesk:job_queue", JobQueueKey)
	assert.Equal(t, "coachdesk:job_processing", JobProcessingKey)
	assert.Equal(t, "coachdesk:job_stats", JobStatsKey)

	assert.Equal(t, 3, DefaultMaxRetries)
	assert.Equal(t, 24*time.Hour, JobTTL)
}

func TestRegisterHandler(t *testing.T) {
	q := NewQueue(nil, 1)
	noop := func(context.Context, *Job) error { return nil }

	q.RegisterHandler(JobTypeNotification, noop, 0)
	assert.Equal(t, 0, q.handlers[JobTypeNotification].maxRetries)

	q.RegisterHandler("other", noop, -1)
	assert.Equal(t, DefaultMaxRetries, q.handlers["other"].maxRetries)
}

func TestRunHandlerRecoversPanic(t *testing.T) {
	err := runHandler(context.Background(), func(context.Context, *Job) error { panic("kaputt") }, &Job{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaputt")
}

func TestQueue_EnqueueAndProcess(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	resetJobQueueRedisWithClient(t, client)
	ctx := context.Background()

	q := NewQueue(client, 1)
	var got *NotificationJobPayload
	q.RegisterHandler(JobTypeNotification, func(ctx context.Context, job *Job) error {
		p, err := NotificationJobPayloadFromMap(job.Payload)
		if err != nil {
			return err
		}
		got = p
		return nil
	}, 0)

	payload := NotificationJobPayload{Event: "booking_confirmed", Messages: []mail.Message{
		{To: "client@example.com", Subject: "Booked", Body: "See you", Category: mail.CategoryBooking},
	}}
	job, err := q.EnqueueJob(ctx, JobTypeNotification, payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, 0, job.MaxRetries)

	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.processJob(ctx, dequeued)

	require.NotNil(t, got)
	assert.Equal(t, "booking_confirmed", got.Event)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, mail.CategoryBooking, got.Messages[0].Category)

	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), processing)

	stats, err := q.GetJobStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[JobStatusCompleted])

	_, err = q.GetJob(ctx, job.ID)
	assert.Error(t, err, "completed jobs are removed")
}

func TestQueue_FailedJobWithoutRetries(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	resetJobQueueRedisWithClient(t, client)
	ctx := context.Background()

	q := NewQueue(client, 1)
	q.RegisterHandler(JobTypeNotification, func(context.Context, *Job) error {
		return errors.New("smtp down")
	}, 0)

	job, err := q.EnqueueJob(ctx, JobTypeNotification, map[string]interface{}{})
	require.NoError(t, err)

	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.processJob(ctx, dequeued)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
	assert.Equal(t, "smtp down", stored.ErrorMsg)

	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestQueue_StartStop(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	resetJobQueueRedisWithClient(t, client)

	q := NewQueue(client, 2)
	done := make(chan struct{})
	q.RegisterHandler(JobTypeNotification, func(context.Context, *Job) error {
		close(done)
		return nil
	}, 0)

	q.Start()
	_, err := q.EnqueueJob(context.Background(), JobTypeNotification, map[string]interface{}{})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not processed")
	}
	q.Stop()
	assert.False(t, q.running)
}

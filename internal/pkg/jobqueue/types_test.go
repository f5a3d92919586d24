package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/mail"
)

func TestJobStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   JobStatus
		expected string
	}{
		{"Pending", JobStatusPending, "pending"},
		{"Processing", JobStatusProcessing, "processing"},
		{"Completed", JobStatusCompleted, "completed"},
		{"Failed", JobStatusFailed, "failed"},
		{"Retrying", JobStatusRetrying, "retrying"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.status))
		})
	}
}

func TestJob_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		job       *Job
		retryable bool
	}{
		{"Failed job with retries remaining", &Job{Status: JobStatusFailed, RetryCount: 1, MaxRetries: 3}, true},
		{"Failed job with no retries remaining", &Job{Status: JobStatusFailed, RetryCount: 3, MaxRetries: 3}, false},
		{"Failed job without retry budget", &Job{Status: JobStatusFailed, RetryCount: 1, MaxRetries: 0}, false},
		{"Completed job", &Job{Status: JobStatusCompleted, RetryCount: 1, MaxRetries: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.job.IsRetryable())
		})
	}
}

func TestJob_StatusTransitions(t *testing.T) {
	job := &Job{Status: JobStatusPending, MaxRetries: 3}
	before := time.Now()

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)
	assert.False(t, job.UpdatedAt.Before(before))

	job.MarkAsFailed("resend 500")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "resend 500", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)

	job.MarkAsRetrying()
	assert.Equal(t, JobStatusRetrying, job.Status)

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.ErrorMsg)
}

func TestNotificationJobPayload_MapRoundTrip(t *testing.T) {
	in := NotificationJobPayload{
		Event: "trial_payment_confirmed",
		Messages: []mail.Message{
			{To: "client@docomo.ne.jp", Subject: "Paid", Body: "Thanks", Category: mail.CategoryApplication, ClientID: "c1"},
			{To: "admin@example.com", Subject: "Paid (admin)", Body: "Client paid", Category: mail.CategoryApplication, ClientID: "c1"},
		},
	}

	out, err := NotificationJobPayloadFromMap(in.ToMap())
	require.NoError(t, err)
	assert.Equal(t, in, *out)
}

package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailJobPayloadRoundTrip(t *testing.T) {
	p := MailJobPayload{
		To:       "owner@example.com",
		Subject:  "You have been invited",
		BodyHTML: "<p>hello</p>",
	}

	got, err := MailJobPayloadFromMap(p.ToMap())
	require.NoError(t, err)
	assert.Equal(t, p, *got)
}

func TestJobRetryBudget(t *testing.T) {
	job := &Job{MaxRetries: 2}

	require.True(t, job.IsRetryable())
	job.MarkAsRetrying()
	require.True(t, job.IsRetryable())
	job.MarkAsRetrying()
	assert.False(t, job.IsRetryable())
	assert.Equal(t, JobStatusRetrying, job.Status)
}

func TestJobStatusTransitions(t *testing.T) {
	job := &Job{Status: JobStatusPending}

	job.MarkAsProcessing()
	require.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)

	job.MarkAsCompleted()
	require.Equal(t, JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)

	job.MarkAsFailed("smtp unreachable")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "smtp unreachable", job.ErrorMsg)
}

package jobqueue

import (
	"fmt"

	"github.com/cornerstone-hq/cornerstone/internal/pkg/mail"
)

// processMailJob delivers one queued notification mail via SMTP.
func (q *Queue) processMailJob(job *Job) error {
	payload, err := MailJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid mail payload: %w", err)
	}
	if payload.To == "" {
		return fmt.Errorf("mail job %s has no recipient", job.ID)
	}

	return mail.SendMail(payload.To, payload.Subject, payload.BodyHTML)
}

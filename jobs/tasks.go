package jobs

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeImageSweep is the task type for sweeping broken product images.
	TaskTypeImageSweep = "catalog:image_sweep"
	// TaskTypeSessionPrune is the task type for deleting expired session rows.
	TaskTypeSessionPrune = "auth:session_prune"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewImageSweepTask constructs the nightly image sweep task.
func NewImageSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeImageSweep, nil)
}

// NewSessionPruneTask constructs the session prune task.
func NewSessionPruneTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSessionPrune, nil)
}

// ConfirmationEmail builds the signup confirmation message. The link lands
// on /auth/callback which spends the token and forwards to login.
func ConfirmationEmail(siteURL, email, token string) SendEmailPayload {
	link := strings.TrimRight(siteURL, "/") + "/auth/callback?" + url.Values{"token": {token}}.Encode()
	body := fmt.Sprintf("Welcome!\n\nConfirm your email to finish creating your store:\n\n%s\n\nIf you did not sign up, ignore this message.\n", link)
	return SendEmailPayload{
		To:      email,
		Subject: "Confirm your email",
		Body:    body,
	}
}

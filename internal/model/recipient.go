// internal/model/recipient.go
package model

import "time"

// Recipient statuses. PENDING means more steps remain; SENT means every step
// completed (not "message in flight"). FAILED and OPTED_OUT are terminal.
const (
	RecipientStatusPending  = "PENDING"
	RecipientStatusSent     = "SENT"
	RecipientStatusFailed   = "FAILED"
	RecipientStatusOptedOut = "OPTED_OUT"
)

// CampaignRecipient tracks one lead's progress through a campaign.
// CurrentStepIndex points at the next step to execute and only ever
// increases; NextSendAt is when that step becomes due.
type CampaignRecipient struct {
	ID               int        `db:"id" json:"id"`
	CampaignID       int        `db:"campaign_id" json:"campaign_id"`
	LeadID           int        `db:"lead_id" json:"lead_id"`
	Status           string     `db:"status" json:"status"`
	CurrentStepIndex int        `db:"current_step_index" json:"current_step_index"`
	EnrolledAt       time.Time  `db:"enrolled_at" json:"enrolled_at"`
	NextSendAt       time.Time  `db:"next_send_at" json:"next_send_at"`
	LastAttemptAt    *time.Time `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	LastError        string     `db:"last_error" json:"last_error,omitempty"`
}

// StepExecution is the durable record of one dispatch attempt for a
// (recipient, step index) pair. The unique key over that pair is the
// engine-side half of the dispatch idempotency token: a sweep only sends a
// step after inserting this row, so overlapping sweeps cannot double-send.
type StepExecution struct {
	ID          int        `db:"id" json:"id"`
	RecipientID int        `db:"recipient_id" json:"recipient_id"`
	StepIndex   int        `db:"step_index" json:"step_index"`
	Status      string     `db:"status" json:"status"`
	Error       string     `db:"error" json:"error,omitempty"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Execution statuses.
const (
	ExecutionStatusPending = "PENDING"
	ExecutionStatusSent    = "SENT"
	ExecutionStatusFailed  = "FAILED"
)

// RecipientDetail is a recipient joined with its lead summary, for operator
// inspection of a campaign.
type RecipientDetail struct {
	CampaignRecipient
	LeadNumber string `db:"lead_number" json:"lead_number"`
	FirstName  string `db:"first_name" json:"first_name"`
	LastName   string `db:"last_name" json:"last_name"`
	Phone      string `db:"phone" json:"phone"`
	Email      string `db:"email" json:"email"`
}

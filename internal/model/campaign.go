// internal/model/campaign.go
package model

import "time"

// Campaign statuses. DRAFT -> ACTIVE <-> PAUSED -> COMPLETED; any non-terminal
// status may move to ARCHIVED, which is terminal.
const (
	CampaignStatusDraft     = "DRAFT"
	CampaignStatusActive    = "ACTIVE"
	CampaignStatusPaused    = "PAUSED"
	CampaignStatusCompleted = "COMPLETED"
	CampaignStatusArchived  = "ARCHIVED"
)

type Campaign struct {
	ID              int            `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Description     string         `db:"description" json:"description,omitempty"`
	Channel         string         `db:"channel" json:"channel"`
	IsDrip          bool           `db:"is_drip" json:"is_drip"`
	AudienceFilter  AudienceFilter `db:"audience_filter" json:"audience_filter"`
	Status          string         `db:"status" json:"status"`
	TotalRecipients int            `db:"total_recipients" json:"total_recipients"`
	TotalSent       int            `db:"total_sent" json:"total_sent"`
	TotalFailed     int            `db:"total_failed" json:"total_failed"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignStep is one message in a campaign, ordered by SortOrder (0-based).
// TemplateID and inline subject/body are mutually exclusive. The delay is
// relative to the previous step's completion; step 0's delay is ignored.
type CampaignStep struct {
	ID         int    `db:"id" json:"id"`
	CampaignID int    `db:"campaign_id" json:"campaign_id"`
	SortOrder  int    `db:"sort_order" json:"sort_order"`
	TemplateID *int   `db:"template_id" json:"template_id,omitempty"`
	Subject    string `db:"subject" json:"subject,omitempty"`
	Body       string `db:"body" json:"body,omitempty"`
	DelayDays  int    `db:"delay_days" json:"delay_days"`
	DelayHours int    `db:"delay_hours" json:"delay_hours"`
}

// Delay returns the wait before this step fires, relative to the previous
// step's completion.
func (s *CampaignStep) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// Content returns the step's message as a template-or-inline variant.
func (s *CampaignStep) Content() MessageContent {
	return MessageContent{TemplateID: s.TemplateID, Subject: s.Subject, Body: s.Body}
}

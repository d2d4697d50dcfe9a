// internal/model/template.go
package model

import "time"

// Message channels.
const (
	ChannelSMS   = "SMS"
	ChannelEmail = "EMAIL"
)

// ValidChannel reports whether s is a supported channel.
func ValidChannel(s string) bool {
	return s == ChannelSMS || s == ChannelEmail
}

// MessageTemplate is a reusable message body with {{placeholder}} tokens.
// Subject is only meaningful for EMAIL templates.
type MessageTemplate struct {
	ID        int        `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Channel   string     `db:"channel" json:"channel"`
	Subject   string     `db:"subject" json:"subject,omitempty"`
	Body      string     `db:"body" json:"body"`
	CreatedBy string     `db:"created_by" json:"created_by"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// MessageContent is the template-or-inline variant used by campaign steps and
// automation rules. TemplateID nil means the subject/body fields are inline
// content; otherwise the referenced template is resolved at render time.
type MessageContent struct {
	TemplateID *int   `json:"template_id,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Body       string `json:"body,omitempty"`
}

// IsTemplate reports whether the content references a stored template.
func (c MessageContent) IsTemplate() bool {
	return c.TemplateID != nil
}

// internal/model/automation.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Automation trigger types.
const (
	TriggerStatusChange = "status_change"
	TriggerNewLead      = "new_lead"
	TriggerTagAdded     = "tag_added"
)

// ValidTriggerType reports whether s is a supported trigger type.
func ValidTriggerType(s string) bool {
	return s == TriggerStatusChange || s == TriggerNewLead || s == TriggerTagAdded
}

// TriggerValue carries the trigger-type-specific match parameters.
// status_change: optional FromStatus, required ToStatus. tag_added: Tag.
// new_lead uses none of them.
type TriggerValue struct {
	FromStatus string `json:"fromStatus,omitempty"`
	ToStatus   string `json:"toStatus,omitempty"`
	Tag        string `json:"tag,omitempty"`
}

// Value stores the trigger value as JSONB.
func (v TriggerValue) Value() (driver.Value, error) {
	return json.Marshal(v)
}

// Scan loads the trigger value from a JSONB column.
func (v *TriggerValue) Scan(src any) error {
	if src == nil {
		*v = TriggerValue{}
		return nil
	}
	switch b := src.(type) {
	case []byte:
		return json.Unmarshal(b, v)
	case string:
		return json.Unmarshal([]byte(b), v)
	}
	return fmt.Errorf("unsupported trigger value type %T", src)
}

// AutomationRule fires a single templated message when a matching lead event
// occurs. Rules are independent of campaigns and of each other.
type AutomationRule struct {
	ID           int          `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Enabled      bool         `db:"enabled" json:"enabled"`
	Channel      string       `db:"channel" json:"channel"`
	TriggerType  string       `db:"trigger_type" json:"trigger_type"`
	TriggerValue TriggerValue `db:"trigger_value" json:"trigger_value"`
	TemplateID   *int         `db:"template_id" json:"template_id,omitempty"`
	Subject      string       `db:"subject" json:"subject,omitempty"`
	Body         string       `db:"body" json:"body,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time   `db:"updated_at" json:"updated_at,omitempty"`
}

// Content returns the rule's message as a template-or-inline variant.
func (r *AutomationRule) Content() MessageContent {
	return MessageContent{TemplateID: r.TemplateID, Subject: r.Subject, Body: r.Body}
}

// Matches reports whether the rule's trigger matches the event. The rule's
// channel never affects matching; it only selects the contact field at send
// time. Tag comparison is case-sensitive.
func (r *AutomationRule) Matches(ev *LeadEvent) bool {
	if r.TriggerType != ev.EventType {
		return false
	}
	switch r.TriggerType {
	case TriggerStatusChange:
		if r.TriggerValue.ToStatus == "" || r.TriggerValue.ToStatus != ev.ToStatus {
			return false
		}
		if r.TriggerValue.FromStatus != "" && r.TriggerValue.FromStatus != ev.FromStatus {
			return false
		}
		return true
	case TriggerNewLead:
		return true
	case TriggerTagAdded:
		return r.TriggerValue.Tag == ev.Tag
	}
	return false
}

// LeadEvent is the inbound lifecycle event payload consumed by the engine.
// EventID de-duplicates redelivered events.
type LeadEvent struct {
	LeadID     int    `json:"lead_id"`
	EventType  string `json:"event_type"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	Tag        string `json:"tag,omitempty"`
	EventID    string `json:"event_id"`
}

// AutomationFiring records one rule firing for one event. The unique key over
// (rule, lead, event) makes duplicate event delivery a no-op.
type AutomationFiring struct {
	ID        int       `db:"id" json:"id"`
	RuleID    int       `db:"rule_id" json:"rule_id"`
	LeadID    int       `db:"lead_id" json:"lead_id"`
	EventID   string    `db:"event_id" json:"event_id"`
	Status    string    `db:"status" json:"status"`
	Error     string    `db:"error" json:"error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

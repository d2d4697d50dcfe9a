// internal/model/lead.go
package model

import (
	"time"

	"github.com/lib/pq"
)

// Lead statuses as used by the CRM pipeline.
const (
	LeadStatusNew                = "NEW"
	LeadStatusContacted          = "CONTACTED"
	LeadStatusQualified          = "QUALIFIED"
	LeadStatusDocumentsPending   = "DOCUMENTS_PENDING"
	LeadStatusDocumentsCollected = "DOCUMENTS_COLLECTED"
	LeadStatusInterview          = "INTERVIEW"
	LeadStatusOffer              = "OFFER"
	LeadStatusHired              = "HIRED"
	LeadStatusRejected           = "REJECTED"
)

// Lead is a read-only view of a CRM lead. The engine never owns or mutates
// lead records; it only reads them for audience matching and rendering.
type Lead struct {
	ID         int            `db:"id" json:"id"`
	LeadNumber string         `db:"lead_number" json:"lead_number"`
	FirstName  string         `db:"first_name" json:"first_name"`
	LastName   string         `db:"last_name" json:"last_name"`
	Phone      string         `db:"phone" json:"phone"`
	Email      string         `db:"email" json:"email"`
	Status     string         `db:"status" json:"status"`
	Source     string         `db:"source" json:"source"`
	Priority   string         `db:"priority" json:"priority"`
	Tags       pq.StringArray `db:"tags" json:"tags"`
	OptedOut   bool           `db:"opted_out" json:"opted_out"`
	DeletedAt  *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
}

// FullName joins first and last name, trimming when either is missing.
func (l *Lead) FullName() string {
	if l.FirstName == "" {
		return l.LastName
	}
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}

// ContactFor returns the destination for the given channel, or "" when the
// lead has no usable contact on that channel.
func (l *Lead) ContactFor(channel string) string {
	if channel == ChannelSMS {
		return l.Phone
	}
	return l.Email
}

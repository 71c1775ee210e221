package registry

import (
	"time"
)

// ListOptions is shared by the lists of soft-deletable entities
type ListOptions struct {
	Page            PageRequest
	Query           string
	IncludeInactive bool
}

// ServiceFilter narrows service lists
type ServiceFilter struct {
	ListOptions

	// MailType IN or OUT also matches services handling BOTH
	MailType MailType
}

// UserFilter narrows user lists
type UserFilter struct {
	ListOptions
	ServiceID int64
}

// MailInFilter narrows incoming mail lists. All criteria combine with AND.
type MailInFilter struct {
	NeedsMayor *bool
	NeedsDgs   *bool
	DateFrom   *time.Time
	DateTo     *time.Time

	// ServiceIDs matches mails routed to at least one of the services
	ServiceIDs []int64

	// Query is a case-insensitive substring of the subject
	Query string

	// UserID restricts to mails distributed to that user
	UserID     string
	UnreadOnly bool
}

// MailOutFilter narrows outgoing mail lists
type MailOutFilter struct {
	ServiceID int64
	UserID    string
	DateFrom  *time.Time
	DateTo    *time.Time

	// Query is a case-insensitive substring of the subject or the reference
	Query string
}

// Day truncates t to its calendar day in UTC. Mail dates are stored at day
// granularity.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

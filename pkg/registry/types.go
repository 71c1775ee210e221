package registry

import (
	"time"
)

// Lifecycle is the state of a soft-deletable entity.
// Mail items are hard-deleted and carry no lifecycle.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "ACTIVE"
	LifecycleInactive Lifecycle = "INACTIVE"
)

// IsActive reports whether the entity is in the active state
func (l Lifecycle) IsActive() bool {
	return l == LifecycleActive
}

// Valid reports whether l is a known lifecycle state
func (l Lifecycle) Valid() bool {
	return l == LifecycleActive || l == LifecycleInactive
}

// LifecycleOf maps an active flag onto a lifecycle state
func LifecycleOf(active bool) Lifecycle {
	if active {
		return LifecycleActive
	}
	return LifecycleInactive
}

// MailType restricts which direction of mail a service handles
type MailType string

const (
	MailTypeIn   MailType = "IN"
	MailTypeOut  MailType = "OUT"
	MailTypeBoth MailType = "BOTH"
)

// Valid reports whether t is a known mail type
func (t MailType) Valid() bool {
	switch t {
	case MailTypeIn, MailTypeOut, MailTypeBoth:
		return true
	}
	return false
}

// Role is the role carried by a user principal
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// DestinationType tags the way a service receives an incoming mail
type DestinationType string

const (
	DestinationInfo  DestinationType = "INFO"
	DestinationSuivi DestinationType = "SUIVI"
)

// Valid reports whether d is a known destination type
func (d DestinationType) Valid() bool {
	return d == DestinationInfo || d == DestinationSuivi
}

// Direction selects one of the two disjoint contact tables
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Service represents a municipal department
type Service struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	MailType  MailType  `json:"mailType"`
	Status    Lifecycle `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User represents an agent attached to a service
type User struct {
	ID           string          `json:"id"`
	PasswordHash string          `json:"-"` // never serialized
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	Email        *string         `json:"email,omitempty"`
	ServiceID    int64           `json:"serviceId"`
	Service      *ServiceSummary `json:"service,omitempty"`
	Role         Role            `json:"role"`
	Status       Lifecycle       `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Sanitized returns a copy of the user without its password hash
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	return &c
}

// Admin represents an administrator principal, distinct from users
type Admin struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Status       Lifecycle `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Sanitized returns a copy of the admin without its password hash
func (a *Admin) Sanitized() *Admin {
	if a == nil {
		return nil
	}
	c := *a
	c.PasswordHash = ""
	return &c
}

// Council represents a council member who can be copied on incoming mail
type Council struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Position  string    `json:"position"`
	Login     string    `json:"login"`
	Status    Lifecycle `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Contact is a sender (DirectionIn) or recipient (DirectionOut) of mail
type Contact struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Status    Lifecycle `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ServiceSummary is the nested service shape of hydrated relations
type ServiceSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// CouncilSummary is the nested council shape of hydrated relations
type CouncilSummary struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Position  string `json:"position"`
}

// ContactSummary is the nested contact shape of hydrated relations
type ContactSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UserSummary is the nested user shape of hydrated relations
type UserSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ServiceDestination is one (service, type) pair of an incoming mail
type ServiceDestination struct {
	ServiceID int64           `json:"serviceId"`
	Type      DestinationType `json:"type"`
}

// ServiceReceivedMail links an incoming mail to a destination service
type ServiceReceivedMail struct {
	ServiceID int64           `json:"serviceId"`
	Type      DestinationType `json:"type"`
	Service   ServiceSummary  `json:"service"`
}

// MailCopy links an incoming mail to a council member
type MailCopy struct {
	CouncilID int64          `json:"councilId"`
	Council   CouncilSummary `json:"council"`
}

// MailRecipient links a mail item to a contact
type MailRecipient struct {
	ContactID int64          `json:"contactId"`
	Contact   ContactSummary `json:"contact"`
}

// UserReceivedMail tracks whether a user has read an incoming mail
type UserReceivedMail struct {
	UserID string      `json:"userId"`
	IsRead bool        `json:"isRead"`
	ReadAt *time.Time  `json:"readAt,omitempty"`
	User   UserSummary `json:"user"`
}

// MailInCount carries relation counts for list views
type MailInCount struct {
	Copies     int `json:"copies"`
	Recipients int `json:"recipients"`
}

// MailIn represents an incoming mail item
type MailIn struct {
	ID                int64                 `json:"id"`
	Date              time.Time             `json:"date"`
	Subject           string                `json:"subject"`
	NeedsMayor        bool                  `json:"needsMayor"`
	NeedsDgs          bool                  `json:"needsDgs"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
	Services          []ServiceReceivedMail `json:"services"`
	Copies            []MailCopy            `json:"copies,omitempty"`
	Recipients        []MailRecipient       `json:"recipients"`
	UserReceivedMails []UserReceivedMail    `json:"userReceivedMails,omitempty"`
	Count             *MailInCount          `json:"_count,omitempty"`
}

// MailOutCount carries relation counts for list views
type MailOutCount struct {
	Recipients int `json:"recipients"`
}

// MailOut represents an outgoing mail item
type MailOut struct {
	ID         int64           `json:"id"`
	Date       time.Time       `json:"date"`
	Subject    string          `json:"subject"`
	Reference  string          `json:"reference"`
	ServiceID  int64           `json:"serviceId"`
	UserID     string          `json:"userId"`
	Service    *ServiceSummary `json:"service,omitempty"`
	User       *UserSummary    `json:"user,omitempty"`
	Recipients []MailRecipient `json:"recipients"`
	Count      *MailOutCount   `json:"_count,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ServiceVolume is the number of incoming mails routed to one service
type ServiceVolume struct {
	Service ServiceSummary `json:"service"`
	MailIn  int64          `json:"mailIn"`
}

// MonthlyVolume is the mail traffic of one calendar month
type MonthlyVolume struct {
	Month   string `json:"month"` // YYYY-MM
	MailIn  int64  `json:"mailIn"`
	MailOut int64  `json:"mailOut"`
}

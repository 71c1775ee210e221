package registry

import (
	"context"
	"time"
)

// Repository is the storage backend of the registry
type Repository interface {
	Stores

	// Health returns the health status of the repository
	Health(ctx context.Context) HealthStatus

	// Close closes the repository connection and releases resources
	Close() error

	// BeginTx begins a transaction
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction groups writes to several tables into one atomic unit
type Transaction interface {
	Stores

	// Commit commits the transaction
	Commit(ctx context.Context) error

	// Rollback rolls back the transaction
	Rollback(ctx context.Context) error
}

// Stores gives access to the per-entity stores, either bound to a
// transaction or to the repository itself.
type Stores interface {
	Services() ServiceRepository
	Users() UserRepository
	Admins() AdminRepository
	Councils() CouncilRepository
	Contacts() ContactRepository
	MailIn() MailInRepository
	MailOut() MailOutRepository
	Stats() StatsRepository
}

// HealthStatus represents the health status of a repository
type HealthStatus struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ServiceRepository stores services
type ServiceRepository interface {
	CreateService(ctx context.Context, service *Service) error
	GetService(ctx context.Context, id int64) (*Service, error)
	GetServiceByCode(ctx context.Context, code string) (*Service, error)
	UpdateService(ctx context.Context, service *Service) error
	UpdateServiceStatus(ctx context.Context, id int64, status Lifecycle) error
	ListServices(ctx context.Context, filter ServiceFilter) ([]*Service, int64, error)

	// MissingActiveServices returns the ids that do not resolve to an active service
	MissingActiveServices(ctx context.Context, ids []int64) ([]int64, error)
}

// UserRepository stores users. Returned users carry their password hash;
// callers strip it before it leaves the registry.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	UpdateUserStatus(ctx context.Context, id string, status Lifecycle) error
	ListUsers(ctx context.Context, filter UserFilter) ([]*User, int64, error)
	MissingActiveUsers(ctx context.Context, ids []string) ([]string, error)
	CountActiveUsersByService(ctx context.Context, serviceID int64) (int64, error)
	ActiveUserIDsByServices(ctx context.Context, serviceIDs []int64) ([]string, error)
}

// AdminRepository stores administrators
type AdminRepository interface {
	CreateAdmin(ctx context.Context, admin *Admin) error
	GetAdmin(ctx context.Context, id int64) (*Admin, error)
	GetAdminByUsername(ctx context.Context, username string) (*Admin, error)
	UpdateAdmin(ctx context.Context, admin *Admin) error
	UpdateAdminStatus(ctx context.Context, id int64, status Lifecycle) error
	ListAdmins(ctx context.Context, opts ListOptions) ([]*Admin, int64, error)
}

// CouncilRepository stores council members
type CouncilRepository interface {
	CreateCouncil(ctx context.Context, council *Council) error
	GetCouncil(ctx context.Context, id int64) (*Council, error)
	GetCouncilByLogin(ctx context.Context, login string) (*Council, error)
	UpdateCouncil(ctx context.Context, council *Council) error
	UpdateCouncilStatus(ctx context.Context, id int64, status Lifecycle) error
	ListCouncils(ctx context.Context, opts ListOptions) ([]*Council, int64, error)
	MissingActiveCouncils(ctx context.Context, ids []int64) ([]int64, error)
}

// ContactRepository stores both contact tables, selected by direction
type ContactRepository interface {
	CreateContact(ctx context.Context, dir Direction, contact *Contact) error
	GetContact(ctx context.Context, dir Direction, id int64) (*Contact, error)
	UpdateContact(ctx context.Context, dir Direction, contact *Contact) error
	UpdateContactStatus(ctx context.Context, dir Direction, id int64, status Lifecycle) error
	ListContacts(ctx context.Context, dir Direction, opts ListOptions) ([]*Contact, int64, error)
	MissingActiveContacts(ctx context.Context, dir Direction, ids []int64) ([]int64, error)
}

// MailInRepository stores incoming mail and its join rows. Relation writes are
// exposed as explicit delete-all and insert steps.
type MailInRepository interface {
	CreateMailIn(ctx context.Context, mail *MailIn) error
	GetMailIn(ctx context.Context, id int64) (*MailIn, error)
	ExistsMailIn(ctx context.Context, id int64) (bool, error)
	UpdateMailIn(ctx context.Context, mail *MailIn) error
	DeleteMailIn(ctx context.Context, id int64) error
	ListMailIn(ctx context.Context, filter MailInFilter, page PageRequest) ([]*MailIn, int64, error)

	AddServiceDestinations(ctx context.Context, mailID int64, dests []ServiceDestination) error
	DeleteServiceDestinations(ctx context.Context, mailID int64) error
	AddCopies(ctx context.Context, mailID int64, councilIDs []int64) error
	DeleteCopies(ctx context.Context, mailID int64) error
	AddRecipients(ctx context.Context, mailID int64, contactIDs []int64) error
	DeleteRecipients(ctx context.Context, mailID int64) error

	// AddUserReceipts inserts unread rows, skipping users that already have one
	AddUserReceipts(ctx context.Context, mailID int64, userIDs []string) error
	DeleteUserReceipts(ctx context.Context, mailID int64) error

	// MarkAsRead returns the number of rows flagged as read
	MarkAsRead(ctx context.Context, mailID int64, userID string, at time.Time) (int64, error)
}

// MailOutRepository stores outgoing mail and its recipients
type MailOutRepository interface {
	CreateMailOut(ctx context.Context, mail *MailOut) error
	GetMailOut(ctx context.Context, id int64) (*MailOut, error)
	ExistsMailOut(ctx context.Context, id int64) (bool, error)
	UpdateMailOut(ctx context.Context, mail *MailOut) error
	DeleteMailOut(ctx context.Context, id int64) error
	ListMailOut(ctx context.Context, filter MailOutFilter, page PageRequest) ([]*MailOut, int64, error)

	AddRecipients(ctx context.Context, mailID int64, contactIDs []int64) error
	DeleteRecipients(ctx context.Context, mailID int64) error
}

// StatsRepository answers the aggregate queries of the dashboard
type StatsRepository interface {
	CountMailIn(ctx context.Context, filter MailInFilter) (int64, error)
	CountMailOut(ctx context.Context, filter MailOutFilter) (int64, error)
	MailInVolumeByService(ctx context.Context, limit int) ([]ServiceVolume, error)
	MonthlyVolumes(ctx context.Context, since time.Time) ([]MonthlyVolume, error)
}

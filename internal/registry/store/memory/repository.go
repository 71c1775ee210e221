// Package memory is a map-backed registry.Repository used by tests and by
// single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// access runs a function against the tables, under whatever locking the
// caller requires. Stores are bound either to the repository or to a
// transaction through it.
type access interface {
	read(fn func(s *state) error) error
	write(fn func(s *state) error) error
}

// Repository implements the registry.Repository interface using in-memory storage
type Repository struct {
	mu     sync.RWMutex
	st     *state
	closed bool
}

// NewRepository creates a new in-memory repository
func NewRepository() *Repository {
	return &Repository{st: newState()}
}

// Health returns the health status of the repository
func (r *Repository) Health(ctx context.Context) registry.HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := "healthy"
	message := "In-memory repository is operational"
	details := map[string]interface{}{
		"database_type": "memory",
		"closed":        r.closed,
	}
	if r.closed {
		status = "unhealthy"
		message = "Repository is closed"
	} else {
		details["services"] = len(r.st.services)
		details["users"] = len(r.st.users)
		details["mail_in"] = len(r.st.mailIn)
		details["mail_out"] = len(r.st.mailOut)
	}

	return registry.HealthStatus{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// Close releases the tables. Later calls fail with an internal error.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.st = newState()
	r.closed = true
	return nil
}

// BeginTx begins a transaction. The transaction holds the write lock until it
// is committed or rolled back, so transactions are serialized.
func (r *Repository) BeginTx(ctx context.Context) (registry.Transaction, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, registry.NewDatabaseError("REPO_CLOSED", "repository is closed", nil)
	}

	return newTransaction(r), nil
}

func (r *Repository) read(fn func(s *state) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return registry.NewDatabaseError("REPO_CLOSED", "repository is closed", nil)
	}
	return fn(r.st)
}

func (r *Repository) write(fn func(s *state) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return registry.NewDatabaseError("REPO_CLOSED", "repository is closed", nil)
	}
	return fn(r.st)
}

// Services returns the service store
func (r *Repository) Services() registry.ServiceRepository { return &ServiceRepository{a: r} }

// Users returns the user store
func (r *Repository) Users() registry.UserRepository { return &UserRepository{a: r} }

// Admins returns the admin store
func (r *Repository) Admins() registry.AdminRepository { return &AdminRepository{a: r} }

// Councils returns the council store
func (r *Repository) Councils() registry.CouncilRepository { return &CouncilRepository{a: r} }

// Contacts returns the contact store
func (r *Repository) Contacts() registry.ContactRepository { return &ContactRepository{a: r} }

// MailIn returns the incoming mail store
func (r *Repository) MailIn() registry.MailInRepository { return &MailInRepository{a: r} }

// MailOut returns the outgoing mail store
func (r *Repository) MailOut() registry.MailOutRepository { return &MailOutRepository{a: r} }

// Stats returns the aggregate store
func (r *Repository) Stats() registry.StatsRepository { return &StatsRepository{a: r} }

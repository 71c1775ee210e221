// Package contact manages the sender and recipient contact books. The two
// books are disjoint; a Manager is bound to one of them.
package contact

import (
	"context"
	"strings"

	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// UpdateInput carries a partial update
type UpdateInput struct {
	Name   *string
	Active *bool
}

// Manager implements the contact operations of one direction
type Manager struct {
	repo         registry.Repository
	dir          registry.Direction
	logger       log.Logger
	defaultLimit int
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithDefaultLimit sets the page size used when a request has none
func WithDefaultLimit(limit int) Option {
	return func(m *Manager) { m.defaultLimit = limit }
}

// NewManager creates a contact manager for dir
func NewManager(repo registry.Repository, dir registry.Direction, opts ...Option) *Manager {
	m := &Manager{
		repo:         repo,
		dir:          dir,
		logger:       log.Component("contact").With(log.String("direction", string(dir))),
		defaultLimit: registry.DefaultPageLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Direction returns the contact book the manager works on
func (m *Manager) Direction() registry.Direction {
	return m.dir
}

// Create inserts an active contact
func (m *Manager) Create(ctx context.Context, name string) (*registry.Contact, error) {
	c := &registry.Contact{Name: strings.TrimSpace(name), Status: registry.LifecycleActive}
	if c.Name == "" {
		return nil, registry.NewValidationError("NAME_REQUIRED", "Le nom du contact est requis")
	}

	if err := m.repo.Contacts().CreateContact(ctx, m.dir, c); err != nil {
		return nil, err
	}
	m.logger.WithContext(ctx).Info("contact created", log.EntityFields("create", "contact", c.ID)...)
	return c, nil
}

// GetByID returns the contact; inactive contacts are hidden unless includeInactive
func (m *Manager) GetByID(ctx context.Context, id int64, includeInactive bool) (*registry.Contact, error) {
	c, err := m.repo.Contacts().GetContact(ctx, m.dir, id)
	if err != nil {
		return nil, err
	}
	if !includeInactive && !c.Status.IsActive() {
		return nil, registry.NewNotFoundError("CONTACT_NOT_FOUND", "Contact introuvable")
	}
	return c, nil
}

// List returns a page of contacts ordered by name
func (m *Manager) List(ctx context.Context, opts registry.ListOptions) (*registry.Page[*registry.Contact], error) {
	opts.Page = opts.Page.Normalize(m.defaultLimit)
	opts.Query = strings.TrimSpace(opts.Query)

	items, total, err := m.repo.Contacts().ListContacts(ctx, m.dir, opts)
	if err != nil {
		return nil, err
	}
	return registry.NewPage(items, total, opts.Page), nil
}

// Update renames and/or re-activates the contact
func (m *Manager) Update(ctx context.Context, id int64, in UpdateInput) (*registry.Contact, error) {
	c, err := m.repo.Contacts().GetContact(ctx, m.dir, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
		if c.Name == "" {
			return nil, registry.NewValidationError("NAME_REQUIRED", "Le nom du contact est requis")
		}
	}
	if in.Active != nil {
		c.Status = registry.LifecycleOf(*in.Active)
	}

	if err := m.repo.Contacts().UpdateContact(ctx, m.dir, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete deactivates the contact
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if _, err := m.GetByID(ctx, id, false); err != nil {
		return err
	}
	if err := m.repo.Contacts().UpdateContactStatus(ctx, m.dir, id, registry.LifecycleInactive); err != nil {
		return err
	}

	m.logger.WithContext(ctx).Info("contact deactivated", log.Int64(log.FieldEntityID, id))
	return nil
}

// Package council manages the council members that can be copied on
// incoming mail.
package council

import (
	"context"
	"strings"

	"github.com/songzhibin97/mailregistry/internal/validation"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// CreateInput carries the fields of a new council member
type CreateInput struct {
	FirstName string
	LastName  string
	Position  string
	Login     string
}

// UpdateInput carries a partial update. Active re-activates or deactivates.
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Position  *string
	Login     *string
	Active    *bool
}

// Manager implements the council operations
type Manager struct {
	repo         registry.Repository
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

// NewManager creates a new council manager
func NewManager(repo registry.Repository, opts ...Option) *Manager {
	m := &Manager{
		repo:         repo,
		logger:       log.Component("council"),
		defaultLimit: registry.DefaultPageLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create checks the login is free and inserts the member
func (m *Manager) Create(ctx context.Context, in CreateInput) (*registry.Council, error) {
	c := &registry.Council{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Position:  strings.TrimSpace(in.Position),
		Login:     validation.NormalizeLogin(in.Login),
		Status:    registry.LifecycleActive,
	}
	if err := check(c); err != nil {
		return nil, err
	}
	if err := m.loginAvailable(ctx, c.Login, 0); err != nil {
		return nil, err
	}

	if err := m.repo.Councils().CreateCouncil(ctx, c); err != nil {
		return nil, err
	}

	m.logger.WithContext(ctx).Info("council created", log.EntityFields("create", "council", c.ID)...)
	return c, nil
}

// GetByID returns the member; inactive members are hidden unless includeInactive
func (m *Manager) GetByID(ctx context.Context, id int64, includeInactive bool) (*registry.Council, error) {
	c, err := m.repo.Councils().GetCouncil(ctx, id)
	if err != nil {
		return nil, err
	}
	if !includeInactive && !c.Status.IsActive() {
		return nil, notFound()
	}
	return c, nil
}

// List returns a page of members ordered by name
func (m *Manager) List(ctx context.Context, opts registry.ListOptions) (*registry.Page[*registry.Council], error) {
	opts.Page = opts.Page.Normalize(m.defaultLimit)
	opts.Query = strings.TrimSpace(opts.Query)

	items, total, err := m.repo.Councils().ListCouncils(ctx, opts)
	if err != nil {
		return nil, err
	}
	return registry.NewPage(items, total, opts.Page), nil
}

// Update applies a partial update, re-checking the login when it changes
func (m *Manager) Update(ctx context.Context, id int64, in UpdateInput) (*registry.Council, error) {
	c, err := m.repo.Councils().GetCouncil(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		c.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		c.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Position != nil {
		c.Position = strings.TrimSpace(*in.Position)
	}
	if in.Login != nil {
		login := validation.NormalizeLogin(*in.Login)
		if login != c.Login {
			if err := m.loginAvailable(ctx, login, id); err != nil {
				return nil, err
			}
		}
		c.Login = login
	}
	if in.Active != nil {
		c.Status = registry.LifecycleOf(*in.Active)
	}
	if err := check(c); err != nil {
		return nil, err
	}

	if err := m.repo.Councils().UpdateCouncil(ctx, c); err != nil {
		return nil, err
	}
	return m.repo.Councils().GetCouncil(ctx, id)
}

// Delete deactivates the member
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if _, err := m.GetByID(ctx, id, false); err != nil {
		return err
	}
	if err := m.repo.Councils().UpdateCouncilStatus(ctx, id, registry.LifecycleInactive); err != nil {
		return err
	}

	m.logger.WithContext(ctx).Info("council deactivated", log.Int64(log.FieldEntityID, id))
	return nil
}

func (m *Manager) loginAvailable(ctx context.Context, login string, self int64) error {
	existing, err := m.repo.Councils().GetCouncilByLogin(ctx, login)
	switch {
	case registry.IsNotFoundError(err):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return registry.NewConflictError("COUNCIL_LOGIN_EXISTS", "Un élu avec le login "+login+" existe déjà")
	}
	return nil
}

func check(c *registry.Council) error {
	switch {
	case c.FirstName == "" || c.LastName == "":
		return registry.NewValidationError("NAME_REQUIRED", "Le prénom et le nom sont requis")
	case c.Position == "":
		return registry.NewValidationError("POSITION_REQUIRED", "La fonction est requise")
	case c.Login == "":
		return registry.NewValidationError("LOGIN_REQUIRED", "Le login est requis")
	}
	return nil
}

func notFound() error {
	return registry.NewNotFoundError("COUNCIL_NOT_FOUND", "Élu introuvable")
}

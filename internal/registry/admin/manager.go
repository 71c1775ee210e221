// Package admin manages administrator accounts, a principal table distinct
// from users.
package admin

import (
	"context"
	"strconv"
	"strings"

	"github.com/songzhibin97/mailregistry/internal/registry/auth"
	"github.com/songzhibin97/mailregistry/internal/validation"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// CreateInput carries the fields of a new administrator
type CreateInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// UpdateInput carries a partial update
type UpdateInput struct {
	Username  *string
	Password  *string
	FirstName *string
	LastName  *string
	Active    *bool
}

// Manager implements the administrator operations
type Manager struct {
	repo         registry.Repository
	hasher       *auth.PasswordHasher
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

// NewManager creates a new administrator manager
func NewManager(repo registry.Repository, hasher *auth.PasswordHasher, opts ...Option) *Manager {
	m := &Manager{
		repo:         repo,
		hasher:       hasher,
		logger:       log.Component("admin"),
		defaultLimit: registry.DefaultPageLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create checks the username is free, hashes the password and inserts the
// administrator
func (m *Manager) Create(ctx context.Context, in CreateInput) (*registry.Admin, error) {
	a := &registry.Admin{
		Username:  strings.TrimSpace(in.Username),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Status:    registry.LifecycleActive,
	}
	if a.Username == "" {
		return nil, registry.NewValidationError("USERNAME_REQUIRED", "Le nom d'utilisateur est requis")
	}
	if !validation.IsValidPassword(in.Password) {
		return nil, passwordTooShort()
	}
	if err := m.usernameAvailable(ctx, a.Username, 0); err != nil {
		return nil, err
	}

	hash, err := m.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, registry.NewInternalError("HASH_FAILED", "Impossible de chiffrer le mot de passe", err)
	}
	a.PasswordHash = hash

	if err := m.repo.Admins().CreateAdmin(ctx, a); err != nil {
		return nil, err
	}

	m.logger.WithContext(ctx).Info("admin created", log.EntityFields("create", "admin", a.ID)...)
	return a.Sanitized(), nil
}

// GetByID returns the administrator; inactive ones are hidden unless includeInactive
func (m *Manager) GetByID(ctx context.Context, id int64, includeInactive bool) (*registry.Admin, error) {
	a, err := m.repo.Admins().GetAdmin(ctx, id)
	if err != nil {
		return nil, err
	}
	if !includeInactive && !a.Status.IsActive() {
		return nil, registry.NewNotFoundError("ADMIN_NOT_FOUND", "Administrateur introuvable")
	}
	return a.Sanitized(), nil
}

// List returns a page of administrators ordered by username
func (m *Manager) List(ctx context.Context, opts registry.ListOptions) (*registry.Page[*registry.Admin], error) {
	opts.Page = opts.Page.Normalize(m.defaultLimit)
	opts.Query = strings.TrimSpace(opts.Query)

	items, total, err := m.repo.Admins().ListAdmins(ctx, opts)
	if err != nil {
		return nil, err
	}
	for i, a := range items {
		items[i] = a.Sanitized()
	}
	return registry.NewPage(items, total, opts.Page), nil
}

// Update applies a partial update
func (m *Manager) Update(ctx context.Context, id int64, in UpdateInput) (*registry.Admin, error) {
	a, err := m.repo.Admins().GetAdmin(ctx, id)
	if err != nil {
		return nil, err
	}
	a.PasswordHash = ""

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, registry.NewValidationError("USERNAME_REQUIRED", "Le nom d'utilisateur est requis")
		}
		if username != a.Username {
			if err := m.usernameAvailable(ctx, username, id); err != nil {
				return nil, err
			}
		}
		a.Username = username
	}
	if in.FirstName != nil {
		a.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		a.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Active != nil {
		a.Status = registry.LifecycleOf(*in.Active)
	}
	if in.Password != nil {
		if !validation.IsValidPassword(*in.Password) {
			return nil, passwordTooShort()
		}
		hash, err := m.hasher.HashPassword(*in.Password)
		if err != nil {
			return nil, registry.NewInternalError("HASH_FAILED", "Impossible de chiffrer le mot de passe", err)
		}
		a.PasswordHash = hash
	}

	if err := m.repo.Admins().UpdateAdmin(ctx, a); err != nil {
		return nil, err
	}
	return m.GetByID(ctx, id, true)
}

// Delete deactivates the administrator
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if _, err := m.GetByID(ctx, id, false); err != nil {
		return err
	}
	if err := m.repo.Admins().UpdateAdminStatus(ctx, id, registry.LifecycleInactive); err != nil {
		return err
	}

	m.logger.WithContext(ctx).Info("admin deactivated", log.Int64(log.FieldEntityID, id))
	return nil
}

// Authenticate checks the credentials of an active administrator
func (m *Manager) Authenticate(ctx context.Context, username, password string) (*registry.Admin, error) {
	a, err := m.repo.Admins().GetAdminByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if registry.IsNotFoundError(err) {
			return nil, invalidCredentials()
		}
		return nil, err
	}
	if !a.Status.IsActive() {
		return nil, invalidCredentials()
	}
	if err := m.hasher.VerifyPassword(password, a.PasswordHash); err != nil {
		m.logger.WithContext(ctx).Warn("admin authentication failed", log.String("username", a.Username))
		return nil, invalidCredentials()
	}
	return a.Sanitized(), nil
}

// Caller returns the identity an authenticated administrator runs as
func Caller(a *registry.Admin) registry.Caller {
	return registry.Caller{ID: strconv.FormatInt(a.ID, 10), Role: registry.RoleAdmin, Kind: registry.PrincipalAdmin}
}

func (m *Manager) usernameAvailable(ctx context.Context, username string, self int64) error {
	existing, err := m.repo.Admins().GetAdminByUsername(ctx, username)
	switch {
	case registry.IsNotFoundError(err):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return registry.NewConflictError("ADMIN_USERNAME_EXISTS", "Un administrateur avec le nom "+username+" existe déjà")
	}
	return nil
}

func passwordTooShort() error {
	return registry.NewValidationError("PASSWORD_TOO_SHORT", "Le mot de passe doit contenir au moins "+strconv.Itoa(validation.MinPasswordLength)+" caractères")
}

func invalidCredentials() error {
	return registry.NewUnauthorizedError("INVALID_CREDENTIALS", "Identifiant ou mot de passe incorrect")
}

// Package user manages the agents attached to services and authenticates them.
package user

import (
	"context"
	"strconv"
	"strings"

	"github.com/songzhibin97/mailregistry/internal/registry/auth"
	"github.com/songzhibin97/mailregistry/internal/validation"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// CreateInput carries the fields of a new user
type CreateInput struct {
	ID        string
	Password  string
	FirstName string
	LastName  string
	Email     string
	ServiceID int64
	Role      registry.Role
}

// UpdateInput carries a partial update. The id cannot change; an empty
// Email pointer target clears the address.
type UpdateInput struct {
	Password  *string
	FirstName *string
	LastName  *string
	Email     *string
	ServiceID *int64
	Role      *registry.Role
	Active    *bool
}

// Manager implements the user operations
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

// NewManager creates a new user manager
func NewManager(repo registry.Repository, hasher *auth.PasswordHasher, opts ...Option) *Manager {
	m := &Manager{
		repo:         repo,
		hasher:       hasher,
		logger:       log.Component("user"),
		defaultLimit: registry.DefaultPageLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create validates the fields, hashes the password and inserts the user.
// The returned user carries no password hash.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*registry.User, error) {
	u := &registry.User{
		ID:        validation.NormalizeUserID(in.ID),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     email(in.Email),
		ServiceID: in.ServiceID,
		Role:      in.Role,
		Status:    registry.LifecycleActive,
	}
	if u.Role == "" {
		u.Role = registry.RoleUser
	}
	if !validation.IsValidUserID(u.ID) {
		return nil, registry.NewValidationError("INVALID_USER_ID", "L'identifiant doit contenir exactement 4 lettres")
	}
	if !validation.IsValidPassword(in.Password) {
		return nil, passwordTooShort()
	}
	if err := check(u); err != nil {
		return nil, err
	}
	if err := m.checkService(ctx, u.ServiceID); err != nil {
		return nil, err
	}

	if _, err := m.repo.Users().GetUser(ctx, u.ID); err == nil {
		return nil, registry.NewConflictError("USER_ALREADY_EXISTS", "Un utilisateur avec l'identifiant "+u.ID+" existe déjà")
	} else if !registry.IsNotFoundError(err) {
		return nil, err
	}

	hash, err := m.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, registry.NewInternalError("HASH_FAILED", "Impossible de chiffrer le mot de passe", err)
	}
	u.PasswordHash = hash

	if err := m.repo.Users().CreateUser(ctx, u); err != nil {
		return nil, err
	}

	m.logger.WithContext(ctx).Info("user created", log.EntityFields("create", "user", u.ID)...)
	return m.get(ctx, u.ID)
}

// GetByID returns the user; inactive users are hidden unless includeInactive
func (m *Manager) GetByID(ctx context.Context, id string, includeInactive bool) (*registry.User, error) {
	u, err := m.get(ctx, validation.NormalizeUserID(id))
	if err != nil {
		return nil, err
	}
	if !includeInactive && !u.Status.IsActive() {
		return nil, notFound()
	}
	return u, nil
}

// List returns a page of users ordered by name
func (m *Manager) List(ctx context.Context, filter registry.UserFilter) (*registry.Page[*registry.User], error) {
	filter.Page = filter.Page.Normalize(m.defaultLimit)
	filter.Query = strings.TrimSpace(filter.Query)

	items, total, err := m.repo.Users().ListUsers(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i, u := range items {
		items[i] = u.Sanitized()
	}
	return registry.NewPage(items, total, filter.Page), nil
}

// Update applies a partial update. A new password is re-hashed.
func (m *Manager) Update(ctx context.Context, id string, in UpdateInput) (*registry.User, error) {
	id = validation.NormalizeUserID(id)
	u, err := m.repo.Users().GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	// empty hash keeps the stored one
	u.PasswordHash = ""

	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		u.Email = email(*in.Email)
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.Active != nil {
		u.Status = registry.LifecycleOf(*in.Active)
	}
	if err := check(u); err != nil {
		return nil, err
	}
	if in.ServiceID != nil {
		if err := m.checkService(ctx, *in.ServiceID); err != nil {
			return nil, err
		}
		u.ServiceID = *in.ServiceID
	}
	if in.Password != nil {
		if !validation.IsValidPassword(*in.Password) {
			return nil, passwordTooShort()
		}
		hash, err := m.hasher.HashPassword(*in.Password)
		if err != nil {
			return nil, registry.NewInternalError("HASH_FAILED", "Impossible de chiffrer le mot de passe", err)
		}
		u.PasswordHash = hash
	}

	if err := m.repo.Users().UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return m.get(ctx, id)
}

// Delete deactivates the user
func (m *Manager) Delete(ctx context.Context, id string) error {
	u, err := m.GetByID(ctx, id, false)
	if err != nil {
		return err
	}
	if err := m.repo.Users().UpdateUserStatus(ctx, u.ID, registry.LifecycleInactive); err != nil {
		return err
	}

	m.logger.WithContext(ctx).Info("user deactivated", log.String(log.FieldEntityID, u.ID))
	return nil
}

// Authenticate checks the credentials of an active user. Every failure maps
// to the same unauthorized error.
func (m *Manager) Authenticate(ctx context.Context, id, password string) (*registry.User, error) {
	u, err := m.repo.Users().GetUser(ctx, validation.NormalizeUserID(id))
	if err != nil {
		if registry.IsNotFoundError(err) {
			return nil, invalidCredentials()
		}
		return nil, err
	}
	if !u.Status.IsActive() {
		return nil, invalidCredentials()
	}
	if err := m.hasher.VerifyPassword(password, u.PasswordHash); err != nil {
		m.logger.WithContext(ctx).Warn("user authentication failed", log.String(log.FieldEntityID, u.ID))
		return nil, invalidCredentials()
	}
	return u.Sanitized(), nil
}

func (m *Manager) get(ctx context.Context, id string) (*registry.User, error) {
	u, err := m.repo.Users().GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Sanitized(), nil
}

func (m *Manager) checkService(ctx context.Context, serviceID int64) error {
	if !validation.IsValidID(serviceID) {
		return registry.NewValidationError("SERVICE_REQUIRED", "Le service est requis")
	}
	missing, err := m.repo.Services().MissingActiveServices(ctx, []int64{serviceID})
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return registry.NewValidationError("SERVICE_INVALID", "Service inexistant ou inactif: "+strconv.FormatInt(serviceID, 10))
	}
	return nil
}

func check(u *registry.User) error {
	switch {
	case u.FirstName == "" || u.LastName == "":
		return registry.NewValidationError("NAME_REQUIRED", "Le prénom et le nom sont requis")
	case !u.Role.Valid():
		return registry.NewValidationError("ROLE_INVALID", "Rôle invalide: "+string(u.Role))
	case u.Email != nil && !validation.IsValidEmail(*u.Email):
		return registry.NewValidationError("EMAIL_INVALID", "Adresse email invalide")
	}
	return nil
}

func email(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func passwordTooShort() error {
	return registry.NewValidationError("PASSWORD_TOO_SHORT", "Le mot de passe doit contenir au moins "+strconv.Itoa(validation.MinPasswordLength)+" caractères")
}

func invalidCredentials() error {
	return registry.NewUnauthorizedError("INVALID_CREDENTIALS", "Identifiant ou mot de passe incorrect")
}

func notFound() error {
	return registry.NewNotFoundError("USER_NOT_FOUND", "Utilisateur introuvable")
}

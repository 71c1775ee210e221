// Package services manages the municipal services mail is routed to.
package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/songzhibin97/mailregistry/internal/validation"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// CreateInput carries the fields of a new service
type CreateInput struct {
	Name     string
	Code     string
	MailType registry.MailType
}

// UpdateInput carries a partial update
type UpdateInput struct {
	Name     *string
	Code     *string
	MailType *registry.MailType
	Active   *bool
}

// Listener is called after a service has been renamed, recoded or deactivated
type Listener func(ctx context.Context, serviceID int64)

// Manager implements the service operations
type Manager struct {
	repo         registry.Repository
	logger       log.Logger
	defaultLimit int
	listeners    []Listener
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

// WithListeners registers callbacks run after a committed update or delete
func WithListeners(listeners ...Listener) Option {
	return func(m *Manager) { m.listeners = append(m.listeners, listeners...) }
}

// NewManager creates a new service manager
func NewManager(repo registry.Repository, opts ...Option) *Manager {
	m := &Manager{
		repo:         repo,
		logger:       log.Component("services"),
		defaultLimit: registry.DefaultPageLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create normalizes and validates the code, checks it is free and inserts
// the service
func (m *Manager) Create(ctx context.Context, in CreateInput) (*registry.Service, error) {
	svc := &registry.Service{
		Name:     strings.TrimSpace(in.Name),
		Code:     validation.NormalizeServiceCode(in.Code),
		MailType: registry.MailType(strings.ToUpper(string(in.MailType))),
		Status:   registry.LifecycleActive,
	}
	if svc.MailType == "" {
		svc.MailType = registry.MailTypeBoth
	}
	if err := check(svc); err != nil {
		return nil, err
	}
	if err := m.codeAvailable(ctx, svc.Code, 0); err != nil {
		return nil, err
	}

	if err := m.repo.Services().CreateService(ctx, svc); err != nil {
		return nil, err
	}

	m.logger.WithContext(ctx).Info("service created", log.EntityFields("create", "service", svc.ID)...)
	return svc, nil
}

// GetByID returns the service; inactive services are hidden unless includeInactive
func (m *Manager) GetByID(ctx context.Context, id int64, includeInactive bool) (*registry.Service, error) {
	svc, err := m.repo.Services().GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if !includeInactive && !svc.Status.IsActive() {
		return nil, registry.NewNotFoundError("SERVICE_NOT_FOUND", "Service introuvable")
	}
	return svc, nil
}

// List returns a page of services ordered by name
func (m *Manager) List(ctx context.Context, filter registry.ServiceFilter) (*registry.Page[*registry.Service], error) {
	if filter.MailType != "" && !filter.MailType.Valid() {
		return nil, registry.NewValidationError("MAIL_TYPE_INVALID", "Type de courrier invalide: "+string(filter.MailType))
	}
	filter.Page = filter.Page.Normalize(m.defaultLimit)
	filter.Query = strings.TrimSpace(filter.Query)

	items, total, err := m.repo.Services().ListServices(ctx, filter)
	if err != nil {
		return nil, err
	}
	return registry.NewPage(items, total, filter.Page), nil
}

// Update applies a partial update, re-checking the code when it changes
func (m *Manager) Update(ctx context.Context, id int64, in UpdateInput) (*registry.Service, error) {
	svc, err := m.repo.Services().GetService(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		svc.Name = strings.TrimSpace(*in.Name)
	}
	if in.MailType != nil {
		svc.MailType = registry.MailType(strings.ToUpper(string(*in.MailType)))
	}
	if in.Code != nil {
		svc.Code = validation.NormalizeServiceCode(*in.Code)
	}
	deactivating := in.Active != nil && !*in.Active && svc.Status.IsActive()
	if in.Active != nil {
		svc.Status = registry.LifecycleOf(*in.Active)
	}
	if err := check(svc); err != nil {
		return nil, err
	}
	if in.Code != nil {
		if err := m.codeAvailable(ctx, svc.Code, id); err != nil {
			return nil, err
		}
	}
	if deactivating {
		if err := m.notInUse(ctx, id); err != nil {
			return nil, err
		}
	}

	if err := m.repo.Services().UpdateService(ctx, svc); err != nil {
		return nil, err
	}
	m.notify(ctx, id)
	return m.repo.Services().GetService(ctx, id)
}

// Delete deactivates the service. It is refused while active users are
// attached to it.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if _, err := m.GetByID(ctx, id, false); err != nil {
		return err
	}

	if err := m.notInUse(ctx, id); err != nil {
		return err
	}

	if err := m.repo.Services().UpdateServiceStatus(ctx, id, registry.LifecycleInactive); err != nil {
		return err
	}
	m.notify(ctx, id)

	m.logger.WithContext(ctx).Info("service deactivated", log.Int64(log.FieldEntityID, id))
	return nil
}

// notInUse refuses the deactivation of a service active users belong to
func (m *Manager) notInUse(ctx context.Context, id int64) error {
	users, err := m.repo.Users().CountActiveUsersByService(ctx, id)
	if err != nil {
		return err
	}
	if users > 0 {
		return registry.NewValidationError("SERVICE_IN_USE",
			"Impossible de supprimer le service: "+strconv.FormatInt(users, 10)+" utilisateur(s) actif(s) y sont rattachés")
	}
	return nil
}

func (m *Manager) notify(ctx context.Context, id int64) {
	for _, l := range m.listeners {
		l(ctx, id)
	}
}

func (m *Manager) codeAvailable(ctx context.Context, code string, self int64) error {
	existing, err := m.repo.Services().GetServiceByCode(ctx, code)
	switch {
	case registry.IsNotFoundError(err):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return registry.NewConflictError("SERVICE_CODE_EXISTS", "Un service avec le code "+code+" existe déjà")
	}
	return nil
}

func check(svc *registry.Service) error {
	switch {
	case svc.Name == "":
		return registry.NewValidationError("NAME_REQUIRED", "Le nom du service est requis")
	case !validation.IsValidServiceCode(svc.Code):
		return registry.NewValidationError("SERVICE_CODE_INVALID", "Le code doit contenir 2 à 10 lettres majuscules ou chiffres")
	case !svc.MailType.Valid():
		return registry.NewValidationError("MAIL_TYPE_INVALID", "Type de courrier invalide: "+string(svc.MailType))
	}
	return nil
}

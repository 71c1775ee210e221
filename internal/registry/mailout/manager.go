// Package mailout manages outgoing mail and its recipient contacts.
package mailout

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/songzhibin97/mailregistry/internal/validation"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// CreateInput carries the fields of a new outgoing mail
type CreateInput struct {
	Date       time.Time
	Subject    string
	Reference  string
	ServiceID  int64
	UserID     string
	ContactIDs []int64
}

// UpdateInput carries a partial update; ContactIDs replaces the recipients
// when non-nil
type UpdateInput struct {
	Date       *time.Time
	Subject    *string
	Reference  *string
	ServiceID  *int64
	UserID     *string
	ContactIDs *[]int64
}

// Manager implements the outgoing mail operations
type Manager struct {
	repo         registry.Repository
	listeners    registry.MailListeners
	logger       log.Logger
	defaultLimit int
}

// Option configures a Manager
type Option func(*Manager)

// WithListeners registers listeners notified after each committed write
func WithListeners(listeners ...registry.MailListener) Option {
	return func(m *Manager) { m.listeners = append(m.listeners, listeners...) }
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithDefaultLimit sets the page size used when a request has none
func WithDefaultLimit(limit int) Option {
	return func(m *Manager) { m.defaultLimit = limit }
}

// NewManager creates a new outgoing mail manager
func NewManager(repo registry.Repository, opts ...Option) *Manager {
	m := &Manager{
		repo:         repo,
		logger:       log.Component("mailout"),
		defaultLimit: registry.DefaultPageLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create validates the sender and recipients, then writes the mail and its
// recipient rows in one transaction
func (m *Manager) Create(ctx context.Context, in CreateInput) (*registry.MailOut, error) {
	mail := &registry.MailOut{
		Date:      in.Date,
		Subject:   strings.TrimSpace(in.Subject),
		Reference: strings.TrimSpace(in.Reference),
		ServiceID: in.ServiceID,
		UserID:    validation.NormalizeUserID(in.UserID),
	}
	if err := checkScalars(mail); err != nil {
		return nil, err
	}
	if err := m.checkSender(ctx, mail.ServiceID, mail.UserID); err != nil {
		return nil, err
	}

	contactIDs := validation.UniqueInt64(in.ContactIDs)
	if err := m.checkContacts(ctx, contactIDs); err != nil {
		return nil, err
	}

	err := registry.RunInTx(ctx, m.repo, func(tx registry.Transaction) error {
		if err := tx.MailOut().CreateMailOut(ctx, mail); err != nil {
			return err
		}
		return tx.MailOut().AddRecipients(ctx, mail.ID, contactIDs)
	})
	if err != nil {
		m.logger.WithContext(ctx).Warn("mail out create failed",
			log.String(log.FieldErrorType, string(registry.TypeOf(err))),
			log.Error(err),
		)
		return nil, err
	}

	m.logger.WithContext(ctx).Info("mail out created",
		log.Int64(log.FieldMailID, mail.ID),
		log.Int64("service_id", mail.ServiceID),
		log.Int("recipients", len(contactIDs)),
	)
	m.listeners.Notify(ctx, registry.MailEvent{Direction: registry.DirectionOut, Op: registry.OpCreate, MailID: mail.ID})

	return m.GetByID(ctx, mail.ID)
}

// GetByID returns the mail with its service, sender and recipients
func (m *Manager) GetByID(ctx context.Context, id int64) (*registry.MailOut, error) {
	return m.repo.MailOut().GetMailOut(ctx, id)
}

// List returns a page of mails matching filter, newest first
func (m *Manager) List(ctx context.Context, filter registry.MailOutFilter, req registry.PageRequest) (*registry.Page[*registry.MailOut], error) {
	if filter.DateFrom != nil && filter.DateTo != nil && registry.Day(*filter.DateFrom).After(registry.Day(*filter.DateTo)) {
		return nil, registry.NewValidationError("DATE_RANGE_INVALID", "La date de début doit précéder la date de fin")
	}
	filter.Query = strings.TrimSpace(filter.Query)
	filter.UserID = validation.NormalizeUserID(filter.UserID)

	req = req.Normalize(m.defaultLimit)
	mails, total, err := m.repo.MailOut().ListMailOut(ctx, filter, req)
	if err != nil {
		return nil, err
	}
	return registry.NewPage(mails, total, req), nil
}

// Search matches query against the subject or the reference
func (m *Manager) Search(ctx context.Context, query string, req registry.PageRequest) (*registry.Page[*registry.MailOut], error) {
	return m.List(ctx, registry.MailOutFilter{Query: query}, req)
}

// ListByUser returns the mails sent by userID
func (m *Manager) ListByUser(ctx context.Context, userID string, req registry.PageRequest) (*registry.Page[*registry.MailOut], error) {
	userID = validation.NormalizeUserID(userID)
	if !validation.IsValidUserID(userID) {
		return nil, registry.NewValidationError("INVALID_USER_ID", "Identifiant utilisateur invalide")
	}
	return m.List(ctx, registry.MailOutFilter{UserID: userID}, req)
}

// Update applies a partial update. A present ContactIDs list replaces every
// recipient row.
func (m *Manager) Update(ctx context.Context, id int64, in UpdateInput) (*registry.MailOut, error) {
	current, err := m.repo.MailOut().GetMailOut(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Date != nil {
		current.Date = *in.Date
	}
	if in.Subject != nil {
		current.Subject = strings.TrimSpace(*in.Subject)
	}
	if in.Reference != nil {
		current.Reference = strings.TrimSpace(*in.Reference)
	}
	if in.ServiceID != nil {
		current.ServiceID = *in.ServiceID
	}
	if in.UserID != nil {
		current.UserID = validation.NormalizeUserID(*in.UserID)
	}
	if err := checkScalars(current); err != nil {
		return nil, err
	}

	if in.ServiceID != nil || in.UserID != nil {
		if err := m.checkSender(ctx, current.ServiceID, current.UserID); err != nil {
			return nil, err
		}
	}

	var contactIDs []int64
	if in.ContactIDs != nil {
		contactIDs = validation.UniqueInt64(*in.ContactIDs)
		if err := m.checkContacts(ctx, contactIDs); err != nil {
			return nil, err
		}
	}

	err = registry.RunInTx(ctx, m.repo, func(tx registry.Transaction) error {
		if err := tx.MailOut().UpdateMailOut(ctx, current); err != nil {
			return err
		}
		if in.ContactIDs == nil {
			return nil
		}
		if err := tx.MailOut().DeleteRecipients(ctx, id); err != nil {
			return err
		}
		return tx.MailOut().AddRecipients(ctx, id, contactIDs)
	})
	if err != nil {
		return nil, err
	}

	m.logger.WithContext(ctx).Info("mail out updated", log.Int64(log.FieldMailID, id))
	m.listeners.Notify(ctx, registry.MailEvent{Direction: registry.DirectionOut, Op: registry.OpUpdate, MailID: id})

	return m.GetByID(ctx, id)
}

// Delete removes the recipients then the mail, in one transaction
func (m *Manager) Delete(ctx context.Context, id int64) error {
	exists, err := m.repo.MailOut().ExistsMailOut(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return registry.NewNotFoundError("MAIL_OUT_NOT_FOUND", "Courrier sortant introuvable")
	}

	err = registry.RunInTx(ctx, m.repo, func(tx registry.Transaction) error {
		if err := tx.MailOut().DeleteRecipients(ctx, id); err != nil {
			return err
		}
		return tx.MailOut().DeleteMailOut(ctx, id)
	})
	if err != nil {
		return err
	}

	m.logger.WithContext(ctx).Info("mail out deleted", log.Int64(log.FieldMailID, id))
	m.listeners.Notify(ctx, registry.MailEvent{Direction: registry.DirectionOut, Op: registry.OpDelete, MailID: id})
	return nil
}

func checkScalars(mail *registry.MailOut) error {
	switch {
	case mail.Subject == "":
		return registry.NewValidationError("SUBJECT_REQUIRED", "L'objet du courrier est requis")
	case mail.Date.IsZero():
		return registry.NewValidationError("DATE_REQUIRED", "La date du courrier est requise")
	case !validation.IsValidID(mail.ServiceID):
		return registry.NewValidationError("SERVICE_REQUIRED", "Le service expéditeur est requis")
	case !validation.IsValidUserID(mail.UserID):
		return registry.NewValidationError("INVALID_USER_ID", "Identifiant utilisateur invalide")
	}
	return nil
}

func (m *Manager) checkSender(ctx context.Context, serviceID int64, userID string) error {
	missing, err := m.repo.Services().MissingActiveServices(ctx, []int64{serviceID})
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return registry.NewValidationError("SERVICE_INVALID", "Service inexistant ou inactif: "+strconv.FormatInt(serviceID, 10))
	}

	missingUsers, err := m.repo.Users().MissingActiveUsers(ctx, []string{userID})
	if err != nil {
		return err
	}
	if len(missingUsers) > 0 {
		return registry.NewValidationError("USER_INVALID", "Utilisateur inexistant ou inactif: "+userID)
	}
	return nil
}

func (m *Manager) checkContacts(ctx context.Context, ids []int64) error {
	missing, err := m.repo.Contacts().MissingActiveContacts(ctx, registry.DirectionOut, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return registry.NewValidationError("CONTACTS_INVALID",
			"Contacts destinataires inexistants ou inactifs: "+registry.JoinIDs(missing)+
				". Créez d'abord le contact avant de l'associer au courrier.")
	}
	return nil
}

// Package mailin manages incoming mail and its relations to services,
// council members, sender contacts and the users it is distributed to.
package mailin

import (
	"context"
	"strings"
	"time"

	"github.com/songzhibin97/mailregistry/internal/validation"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

const entity = "mail_in"

// CreateInput carries the fields of a new incoming mail. ServiceIDs are routed
// as INFO next to the explicit ServiceDestinations.
type CreateInput struct {
	Date                time.Time
	Subject             string
	NeedsMayor          bool
	NeedsDgs            bool
	ServiceDestinations []registry.ServiceDestination
	ServiceIDs          []int64
	CouncilIDs          []int64
	ContactIDs          []int64
}

// UpdateInput carries a partial update. A nil field is left untouched; a
// non-nil relation list, even empty, replaces the whole relation.
type UpdateInput struct {
	Date                *time.Time
	Subject             *string
	NeedsMayor          *bool
	NeedsDgs            *bool
	ServiceDestinations *[]registry.ServiceDestination
	ServiceIDs          *[]int64
	CouncilIDs          *[]int64
	ContactIDs          *[]int64
}

func (in UpdateInput) touchesServices() bool {
	return in.ServiceDestinations != nil || in.ServiceIDs != nil
}

// Manager implements the incoming mail operations
type Manager struct {
	repo         registry.Repository
	listeners    registry.MailListeners
	logger       log.Logger
	defaultLimit int
	now          func() time.Time
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

// WithClock overrides the clock used for read timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a new incoming mail manager
func NewManager(repo registry.Repository, opts ...Option) *Manager {
	m := &Manager{
		repo:         repo,
		logger:       log.Component("mailin"),
		defaultLimit: registry.DefaultPageLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create validates every reference, then writes the mail, its relations and
// its distribution rows in one transaction.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*registry.MailIn, error) {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return nil, registry.NewValidationError("SUBJECT_REQUIRED", "L'objet du courrier est requis")
	}
	if in.Date.IsZero() {
		return nil, registry.NewValidationError("DATE_REQUIRED", "La date du courrier est requise")
	}

	dests, err := destinations(in.ServiceDestinations, in.ServiceIDs)
	if err != nil {
		return nil, err
	}
	councilIDs := validation.UniqueInt64(in.CouncilIDs)
	contactIDs := validation.UniqueInt64(in.ContactIDs)

	if err := m.checkServices(ctx, dests); err != nil {
		return nil, err
	}
	if err := m.checkCouncils(ctx, councilIDs); err != nil {
		return nil, err
	}
	if err := m.checkContacts(ctx, contactIDs); err != nil {
		return nil, err
	}

	mail := &registry.MailIn{
		Date:       in.Date,
		Subject:    subject,
		NeedsMayor: in.NeedsMayor,
		NeedsDgs:   in.NeedsDgs,
	}

	err = registry.RunInTx(ctx, m.repo, func(tx registry.Transaction) error {
		if err := tx.MailIn().CreateMailIn(ctx, mail); err != nil {
			return err
		}
		if err := replaceServices(ctx, tx, mail.ID, dests, false); err != nil {
			return err
		}
		if err := tx.MailIn().AddCopies(ctx, mail.ID, councilIDs); err != nil {
			return err
		}
		return tx.MailIn().AddRecipients(ctx, mail.ID, contactIDs)
	})
	if err != nil {
		m.logFailure(ctx, registry.OpCreate, 0, err)
		return nil, err
	}

	m.logger.WithContext(ctx).Info("mail in created",
		log.Int64(log.FieldMailID, mail.ID),
		log.Int("services", len(dests)),
		log.Int("copies", len(councilIDs)),
		log.Int("senders", len(contactIDs)),
	)
	m.listeners.Notify(ctx, registry.MailEvent{Direction: registry.DirectionIn, Op: registry.OpCreate, MailID: mail.ID})

	return m.GetByID(ctx, mail.ID)
}

// GetByID returns the mail with every relation hydrated
func (m *Manager) GetByID(ctx context.Context, id int64) (*registry.MailIn, error) {
	return m.repo.MailIn().GetMailIn(ctx, id)
}

// List returns a page of mails matching filter, newest first
func (m *Manager) List(ctx context.Context, filter registry.MailInFilter, req registry.PageRequest) (*registry.Page[*registry.MailIn], error) {
	if filter.DateFrom != nil && filter.DateTo != nil && registry.Day(*filter.DateFrom).After(registry.Day(*filter.DateTo)) {
		return nil, registry.NewValidationError("DATE_RANGE_INVALID", "La date de début doit précéder la date de fin")
	}
	filter.Query = strings.TrimSpace(filter.Query)
	filter.UserID = validation.NormalizeUserID(filter.UserID)

	req = req.Normalize(m.defaultLimit)
	mails, total, err := m.repo.MailIn().ListMailIn(ctx, filter, req)
	if err != nil {
		return nil, err
	}
	return registry.NewPage(mails, total, req), nil
}

// Search matches query against the subject only
func (m *Manager) Search(ctx context.Context, query string, req registry.PageRequest) (*registry.Page[*registry.MailIn], error) {
	return m.List(ctx, registry.MailInFilter{Query: query}, req)
}

// ListForUser returns the mails distributed to userID
func (m *Manager) ListForUser(ctx context.Context, userID string, unreadOnly bool, req registry.PageRequest) (*registry.Page[*registry.MailIn], error) {
	userID = validation.NormalizeUserID(userID)
	if !validation.IsValidUserID(userID) {
		return nil, registry.NewValidationError("INVALID_USER_ID", "Identifiant utilisateur invalide")
	}
	return m.List(ctx, registry.MailInFilter{UserID: userID, UnreadOnly: unreadOnly}, req)
}

// Update applies a partial update. Each relation present in the input is
// replaced wholesale; absent relations keep their rows.
func (m *Manager) Update(ctx context.Context, id int64, in UpdateInput) (*registry.MailIn, error) {
	current, err := m.repo.MailIn().GetMailIn(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Subject != nil {
		subject := strings.TrimSpace(*in.Subject)
		if subject == "" {
			return nil, registry.NewValidationError("SUBJECT_REQUIRED", "L'objet du courrier est requis")
		}
		current.Subject = subject
	}
	if in.Date != nil {
		if in.Date.IsZero() {
			return nil, registry.NewValidationError("DATE_REQUIRED", "La date du courrier est requise")
		}
		current.Date = *in.Date
	}
	if in.NeedsMayor != nil {
		current.NeedsMayor = *in.NeedsMayor
	}
	if in.NeedsDgs != nil {
		current.NeedsDgs = *in.NeedsDgs
	}

	var dests []registry.ServiceDestination
	if in.touchesServices() {
		var explicit []registry.ServiceDestination
		var infoIDs []int64
		if in.ServiceDestinations != nil {
			explicit = *in.ServiceDestinations
		}
		if in.ServiceIDs != nil {
			infoIDs = *in.ServiceIDs
		}
		if dests, err = destinations(explicit, infoIDs); err != nil {
			return nil, err
		}
		if err := m.checkServices(ctx, dests); err != nil {
			return nil, err
		}
	}

	var councilIDs, contactIDs []int64
	if in.CouncilIDs != nil {
		councilIDs = validation.UniqueInt64(*in.CouncilIDs)
		if err := m.checkCouncils(ctx, councilIDs); err != nil {
			return nil, err
		}
	}
	if in.ContactIDs != nil {
		contactIDs = validation.UniqueInt64(*in.ContactIDs)
		if err := m.checkContacts(ctx, contactIDs); err != nil {
			return nil, err
		}
	}

	err = registry.RunInTx(ctx, m.repo, func(tx registry.Transaction) error {
		if err := tx.MailIn().UpdateMailIn(ctx, current); err != nil {
			return err
		}
		if in.touchesServices() {
			if err := replaceServices(ctx, tx, id, dests, true); err != nil {
				return err
			}
		}
		if in.CouncilIDs != nil {
			if err := tx.MailIn().DeleteCopies(ctx, id); err != nil {
				return err
			}
			if err := tx.MailIn().AddCopies(ctx, id, councilIDs); err != nil {
				return err
			}
		}
		if in.ContactIDs != nil {
			if err := tx.MailIn().DeleteRecipients(ctx, id); err != nil {
				return err
			}
			if err := tx.MailIn().AddRecipients(ctx, id, contactIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		m.logFailure(ctx, registry.OpUpdate, id, err)
		return nil, err
	}

	m.logger.WithContext(ctx).Info("mail in updated", log.Int64(log.FieldMailID, id))
	m.listeners.Notify(ctx, registry.MailEvent{Direction: registry.DirectionIn, Op: registry.OpUpdate, MailID: id})

	return m.GetByID(ctx, id)
}

// Delete removes the mail and every join row referencing it
func (m *Manager) Delete(ctx context.Context, id int64) error {
	exists, err := m.repo.MailIn().ExistsMailIn(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return registry.NewNotFoundError("MAIL_IN_NOT_FOUND", "Courrier entrant introuvable")
	}

	err = registry.RunInTx(ctx, m.repo, func(tx registry.Transaction) error {
		store := tx.MailIn()
		if err := store.DeleteCopies(ctx, id); err != nil {
			return err
		}
		if err := store.DeleteServiceDestinations(ctx, id); err != nil {
			return err
		}
		if err := store.DeleteRecipients(ctx, id); err != nil {
			return err
		}
		if err := store.DeleteUserReceipts(ctx, id); err != nil {
			return err
		}
		return store.DeleteMailIn(ctx, id)
	})
	if err != nil {
		m.logFailure(ctx, registry.OpDelete, id, err)
		return err
	}

	m.logger.WithContext(ctx).Info("mail in deleted", log.Int64(log.FieldMailID, id))
	m.listeners.Notify(ctx, registry.MailEvent{Direction: registry.DirectionIn, Op: registry.OpDelete, MailID: id})
	return nil
}

// MarkAsRead flags the mail as read for userID. Nothing happens when the mail
// was never distributed to that user.
func (m *Manager) MarkAsRead(ctx context.Context, mailID int64, userID string) error {
	userID = validation.NormalizeUserID(userID)

	n, err := m.repo.MailIn().MarkAsRead(ctx, mailID, userID, m.now())
	if err != nil {
		return err
	}
	if n > 0 {
		m.listeners.Notify(ctx, registry.MailEvent{Direction: registry.DirectionIn, Op: registry.OpMarkRead, MailID: mailID})
	}
	return nil
}

// replaceServices swaps the service rows of the mail and distributes it to
// the active users of the new services. Receipts already present keep their
// read state.
func replaceServices(ctx context.Context, tx registry.Transaction, mailID int64, dests []registry.ServiceDestination, clear bool) error {
	store := tx.MailIn()
	if clear {
		if err := store.DeleteServiceDestinations(ctx, mailID); err != nil {
			return err
		}
	}
	if len(dests) == 0 {
		return nil
	}
	if err := store.AddServiceDestinations(ctx, mailID, dests); err != nil {
		return err
	}

	userIDs, err := tx.Users().ActiveUserIDsByServices(ctx, serviceIDs(dests))
	if err != nil {
		return err
	}
	return store.AddUserReceipts(ctx, mailID, userIDs)
}

func (m *Manager) checkServices(ctx context.Context, dests []registry.ServiceDestination) error {
	missing, err := m.repo.Services().MissingActiveServices(ctx, serviceIDs(dests))
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return registry.NewValidationError("SERVICES_INVALID", "Services inexistants ou inactifs: "+registry.JoinIDs(missing))
	}
	return nil
}

func (m *Manager) checkCouncils(ctx context.Context, ids []int64) error {
	missing, err := m.repo.Councils().MissingActiveCouncils(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return registry.NewValidationError("COUNCILS_INVALID", "Élus inexistants ou inactifs: "+registry.JoinIDs(missing))
	}
	return nil
}

func (m *Manager) checkContacts(ctx context.Context, ids []int64) error {
	missing, err := m.repo.Contacts().MissingActiveContacts(ctx, registry.DirectionIn, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return registry.NewValidationError("CONTACTS_INVALID",
			"Contacts expéditeurs inexistants ou inactifs: "+registry.JoinIDs(missing)+
				". Créez d'abord le contact avant de l'associer au courrier.")
	}
	return nil
}

func (m *Manager) logFailure(ctx context.Context, op string, id int64, err error) {
	fields := []log.Field{
		log.String(log.FieldOperation, op),
		log.String(log.FieldEntity, entity),
		log.String(log.FieldErrorType, string(registry.TypeOf(err))),
		log.Error(err),
	}
	if id != 0 {
		fields = append(fields, log.Int64(log.FieldMailID, id))
	}

	logger := m.logger.WithContext(ctx)
	if registry.IsInternalError(err) {
		logger.Error("mail in write failed", fields...)
		return
	}
	logger.Warn("mail in write rejected", fields...)
}

// destinations merges explicit pairs and INFO ids, dropping duplicate pairs
// while keeping the first-seen order
func destinations(explicit []registry.ServiceDestination, infoIDs []int64) ([]registry.ServiceDestination, error) {
	seen := make(map[registry.ServiceDestination]struct{}, len(explicit)+len(infoIDs))
	out := make([]registry.ServiceDestination, 0, len(explicit)+len(infoIDs))

	add := func(d registry.ServiceDestination) error {
		if !d.Type.Valid() {
			return registry.NewValidationError("DESTINATION_TYPE_INVALID", "Type de destination invalide: "+string(d.Type))
		}
		if _, ok := seen[d]; ok {
			return nil
		}
		seen[d] = struct{}{}
		out = append(out, d)
		return nil
	}

	for _, d := range explicit {
		if err := add(d); err != nil {
			return nil, err
		}
	}
	for _, id := range infoIDs {
		if err := add(registry.ServiceDestination{ServiceID: id, Type: registry.DestinationInfo}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func serviceIDs(dests []registry.ServiceDestination) []int64 {
	ids := make([]int64, 0, len(dests))
	for _, d := range dests {
		ids = append(ids, d.ServiceID)
	}
	return validation.UniqueInt64(ids)
}

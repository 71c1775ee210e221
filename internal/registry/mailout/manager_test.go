package mailout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/songzhibin97/mailregistry/internal/registry/store/memory"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

type ManagerSuite struct {
	suite.Suite

	ctx     context.Context
	repo    *memory.Repository
	manager *Manager
	events  []registry.MailEvent
	service *registry.Service
	user    *registry.User
	mairie  *registry.Contact
	prefect *registry.Contact
	date    time.Time
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = memory.NewRepository()
	s.events = nil
	s.date = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	s.service = &registry.Service{Name: "Cabinet", Code: "CAB", MailType: registry.MailTypeOut}
	s.Require().NoError(s.repo.Services().CreateService(s.ctx, s.service))

	s.user = &registry.User{ID: "JDOE", FirstName: "John", LastName: "Doe", ServiceID: s.service.ID, Role: registry.RoleUser}
	s.Require().NoError(s.repo.Users().CreateUser(s.ctx, s.user))

	s.mairie = &registry.Contact{Name: "Mairie voisine"}
	s.prefect = &registry.Contact{Name: "Préfecture"}
	s.Require().NoError(s.repo.Contacts().CreateContact(s.ctx, registry.DirectionOut, s.mairie))
	s.Require().NoError(s.repo.Contacts().CreateContact(s.ctx, registry.DirectionOut, s.prefect))

	s.manager = NewManager(s.repo,
		WithLogger(log.Nop()),
		WithListeners(func(_ context.Context, e registry.MailEvent) { s.events = append(s.events, e) }),
	)
}

func (s *ManagerSuite) create(subject, reference string, contacts ...int64) *registry.MailOut {
	mail, err := s.manager.Create(s.ctx, CreateInput{
		Date:       s.date,
		Subject:    subject,
		Reference:  reference,
		ServiceID:  s.service.ID,
		UserID:     "jdoe",
		ContactIDs: contacts,
	})
	s.Require().NoError(err)
	return mail
}

func (s *ManagerSuite) TestCreateHydrates() {
	mail := s.create("Réponse", "REF-2024-01", s.prefect.ID, s.mairie.ID)

	s.Equal("JDOE", mail.UserID)
	s.Require().NotNil(mail.Service)
	s.Equal("CAB", mail.Service.Code)
	s.Require().NotNil(mail.User)
	s.Equal("Doe", mail.User.LastName)
	s.Require().Len(mail.Recipients, 2)
	s.Equal(s.mairie.ID, mail.Recipients[0].ContactID)
	s.Equal("Préfecture", mail.Recipients[1].Contact.Name)
	s.Equal([]registry.MailEvent{{Direction: registry.DirectionOut, Op: registry.OpCreate, MailID: mail.ID}}, s.events)
}

func (s *ManagerSuite) TestCreateRejectsInactiveSender() {
	s.Require().NoError(s.repo.Users().UpdateUserStatus(s.ctx, "JDOE", registry.LifecycleInactive))

	_, err := s.manager.Create(s.ctx, CreateInput{Date: s.date, Subject: "X", ServiceID: s.service.ID, UserID: "JDOE"})
	s.True(registry.IsValidationError(err))
	s.Contains(err.Error(), "Utilisateur inexistant ou inactif: JDOE")

	_, err = s.manager.Create(s.ctx, CreateInput{Date: s.date, Subject: "X", ServiceID: 3, UserID: "JDOE"})
	s.Contains(err.Error(), "Service inexistant ou inactif: 3")

	page, err := s.manager.List(s.ctx, registry.MailOutFilter{}, registry.PageRequest{})
	s.Require().NoError(err)
	s.Empty(page.Data)
}

func (s *ManagerSuite) TestCreateRejectsUnknownContact() {
	_, err := s.manager.Create(s.ctx, CreateInput{
		Date:       s.date,
		Subject:    "X",
		ServiceID:  s.service.ID,
		UserID:     "JDOE",
		ContactIDs: []int64{s.mairie.ID, 404},
	})
	s.True(registry.IsValidationError(err))
	s.Contains(err.Error(), "Contacts destinataires inexistants ou inactifs: 404")

	n, err := s.repo.Stats().CountMailOut(s.ctx, registry.MailOutFilter{})
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ManagerSuite) TestCreateValidatesScalars() {
	_, err := s.manager.Create(s.ctx, CreateInput{Date: s.date, ServiceID: s.service.ID, UserID: "JDOE"})
	s.True(registry.IsValidationError(err))

	_, err = s.manager.Create(s.ctx, CreateInput{Date: s.date, Subject: "X", UserID: "JDOE"})
	s.True(registry.IsValidationError(err))

	_, err = s.manager.Create(s.ctx, CreateInput{Date: s.date, Subject: "X", ServiceID: s.service.ID, UserID: "J1"})
	s.True(registry.IsValidationError(err))
}

func (s *ManagerSuite) TestUpdateReplacesRecipients() {
	mail := s.create("Convocation", "", s.mairie.ID)

	contacts := []int64{s.prefect.ID}
	updated, err := s.manager.Update(s.ctx, mail.ID, UpdateInput{ContactIDs: &contacts})
	s.Require().NoError(err)
	s.Require().Len(updated.Recipients, 1)
	s.Equal(s.prefect.ID, updated.Recipients[0].ContactID)

	reference := "REF-9"
	updated, err = s.manager.Update(s.ctx, mail.ID, UpdateInput{Reference: &reference})
	s.Require().NoError(err)
	s.Equal("REF-9", updated.Reference)
	s.Len(updated.Recipients, 1, "absent list keeps recipients")

	empty := []int64{}
	updated, err = s.manager.Update(s.ctx, mail.ID, UpdateInput{ContactIDs: &empty})
	s.Require().NoError(err)
	s.Empty(updated.Recipients)
}

func (s *ManagerSuite) TestUpdateRevalidatesSender() {
	mail := s.create("Convocation", "")

	other := &registry.Service{Name: "Archives", Code: "ARC", MailType: registry.MailTypeOut, Status: registry.LifecycleInactive}
	s.Require().NoError(s.repo.Services().CreateService(s.ctx, other))

	_, err := s.manager.Update(s.ctx, mail.ID, UpdateInput{ServiceID: &other.ID})
	s.True(registry.IsValidationError(err))

	got, err := s.manager.GetByID(s.ctx, mail.ID)
	s.Require().NoError(err)
	s.Equal(s.service.ID, got.ServiceID)

	_, err = s.manager.Update(s.ctx, 99, UpdateInput{})
	s.True(registry.IsNotFoundError(err))
}

func (s *ManagerSuite) TestDeleteIsHard() {
	mail := s.create("Éphémère", "", s.mairie.ID, s.prefect.ID)

	s.Require().NoError(s.manager.Delete(s.ctx, mail.ID))

	_, err := s.manager.GetByID(s.ctx, mail.ID)
	s.True(registry.IsNotFoundError(err))
	s.True(registry.IsNotFoundError(s.manager.Delete(s.ctx, mail.ID)))

	// contacts are untouched
	_, err = s.repo.Contacts().GetContact(s.ctx, registry.DirectionOut, s.mairie.ID)
	s.NoError(err)
}

func (s *ManagerSuite) TestSearchAndListByUser() {
	s.create("Invitation gala", "GALA-1")
	s.create("Courrier divers", "REF-gala")
	s.create("Budget", "B-1")

	page, err := s.manager.Search(s.ctx, "gala", registry.PageRequest{})
	s.Require().NoError(err)
	s.Len(page.Data, 2)
	s.Equal("Courrier divers", page.Data[0].Subject)

	page, err = s.manager.ListByUser(s.ctx, "jdoe", registry.PageRequest{Limit: 2})
	s.Require().NoError(err)
	s.Len(page.Data, 2)
	s.EqualValues(3, page.Pagination.Total)
	s.Equal(2, page.Pagination.TotalPages)

	_, err = s.manager.ListByUser(s.ctx, "??", registry.PageRequest{})
	s.True(registry.IsValidationError(err))
}

func (s *ManagerSuite) TestListDateBoundsInclusive() {
	s.create("Jour J", "")
	s.date = s.date.AddDate(0, 0, 1)
	s.create("Lendemain", "")

	same := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	page, err := s.manager.List(s.ctx, registry.MailOutFilter{DateFrom: &same, DateTo: &same}, registry.PageRequest{})
	s.Require().NoError(err)
	s.Require().Len(page.Data, 1)
	s.Equal("Jour J", page.Data[0].Subject)

	to := same.AddDate(0, 0, 1)
	page, err = s.manager.List(s.ctx, registry.MailOutFilter{DateFrom: &same, DateTo: &to}, registry.PageRequest{})
	s.Require().NoError(err)
	s.EqualValues(2, page.Pagination.Total)
}

func TestListRejectsInvertedRange(t *testing.T) {
	m := NewManager(memory.NewRepository(), WithLogger(log.Nop()))
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, -1, 0)

	_, err := m.List(context.Background(), registry.MailOutFilter{DateFrom: &from, DateTo: &to}, registry.PageRequest{})
	require.Error(t, err)
	assert.True(t, registry.IsValidationError(err))
}

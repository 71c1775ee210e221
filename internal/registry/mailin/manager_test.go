package mailin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/mailregistry/internal/registry/store/memory"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

type fixture struct {
	repo     *memory.Repository
	manager  *Manager
	events   []registry.MailEvent
	urb      *registry.Service
	cul      *registry.Service
	council  *registry.Council
	sender   *registry.Contact
	userURB  *registry.User
	userCUL  *registry.User
	readTime time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{repo: memory.NewRepository(), readTime: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)}

	f.urb = &registry.Service{Name: "Urbanisme", Code: "URB", MailType: registry.MailTypeBoth}
	f.cul = &registry.Service{Name: "Culture", Code: "CUL", MailType: registry.MailTypeIn}
	require.NoError(t, f.repo.Services().CreateService(ctx, f.urb))
	require.NoError(t, f.repo.Services().CreateService(ctx, f.cul))

	f.council = &registry.Council{FirstName: "Anne", LastName: "Martin", Position: "Adjointe", Login: "amartin"}
	require.NoError(t, f.repo.Councils().CreateCouncil(ctx, f.council))

	f.sender = &registry.Contact{Name: "Préfecture"}
	require.NoError(t, f.repo.Contacts().CreateContact(ctx, registry.DirectionIn, f.sender))

	f.userURB = &registry.User{ID: "ABCD", FirstName: "Paul", LastName: "Durand", ServiceID: f.urb.ID, Role: registry.RoleUser}
	f.userCUL = &registry.User{ID: "EFGH", FirstName: "Lea", LastName: "Petit", ServiceID: f.cul.ID, Role: registry.RoleUser}
	require.NoError(t, f.repo.Users().CreateUser(ctx, f.userURB))
	require.NoError(t, f.repo.Users().CreateUser(ctx, f.userCUL))

	f.manager = NewManager(f.repo,
		WithLogger(log.Nop()),
		WithClock(func() time.Time { return f.readTime }),
		WithListeners(func(_ context.Context, e registry.MailEvent) { f.events = append(f.events, e) }),
	)
	return f
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func countMailIn(t *testing.T, repo registry.Repository) int64 {
	t.Helper()
	n, err := repo.Stats().CountMailIn(context.Background(), registry.MailInFilter{})
	require.NoError(t, err)
	return n
}

func TestCreate_HydratesDestinations(t *testing.T) {
	f := newFixture(t)

	mail, err := f.manager.Create(context.Background(), CreateInput{
		Date:                day("2024-01-10"),
		Subject:             "Permis de construire",
		ServiceDestinations: []registry.ServiceDestination{{ServiceID: f.urb.ID, Type: registry.DestinationInfo}},
	})
	require.NoError(t, err)

	got, err := f.manager.GetByID(context.Background(), mail.ID)
	require.NoError(t, err)
	require.Len(t, got.Services, 1)
	assert.Equal(t, registry.DestinationInfo, got.Services[0].Type)
	assert.Equal(t, "URB", got.Services[0].Service.Code)
	assert.Equal(t, day("2024-01-10"), got.Date)
	assert.False(t, got.NeedsMayor)

	require.Len(t, f.events, 1)
	assert.Equal(t, registry.MailEvent{Direction: registry.DirectionIn, Op: registry.OpCreate, MailID: mail.ID}, f.events[0])
}

func TestCreate_MergesServiceIDsAsInfo(t *testing.T) {
	f := newFixture(t)

	mail, err := f.manager.Create(context.Background(), CreateInput{
		Date:    day("2024-01-10"),
		Subject: "Subvention",
		ServiceDestinations: []registry.ServiceDestination{
			{ServiceID: f.urb.ID, Type: registry.DestinationSuivi},
			{ServiceID: f.urb.ID, Type: registry.DestinationSuivi},
		},
		ServiceIDs: []int64{f.urb.ID, f.cul.ID},
	})
	require.NoError(t, err)

	require.Len(t, mail.Services, 3)
	assert.Equal(t, f.urb.ID, mail.Services[0].ServiceID)
	assert.Equal(t, f.urb.ID, mail.Services[1].ServiceID)
	assert.Equal(t, f.cul.ID, mail.Services[2].ServiceID)
	assert.Equal(t, registry.DestinationInfo, mail.Services[2].Type)
}

func TestCreate_DistributesToServiceUsers(t *testing.T) {
	f := newFixture(t)

	mail, err := f.manager.Create(context.Background(), CreateInput{
		Date:       day("2024-01-10"),
		Subject:    "Voirie",
		ServiceIDs: []int64{f.urb.ID},
	})
	require.NoError(t, err)

	require.Len(t, mail.UserReceivedMails, 1)
	assert.Equal(t, "ABCD", mail.UserReceivedMails[0].UserID)
	assert.False(t, mail.UserReceivedMails[0].IsRead)
}

func TestCreate_RejectsUnknownContact(t *testing.T) {
	f := newFixture(t)
	before := countMailIn(t, f.repo)

	_, err := f.manager.Create(context.Background(), CreateInput{
		Date:       day("2024-01-10"),
		Subject:    "Courrier",
		ContactIDs: []int64{9999},
	})

	require.Error(t, err)
	assert.True(t, registry.IsValidationError(err))
	assert.Contains(t, err.Error(), "9999")
	assert.Contains(t, err.Error(), "Créez d'abord le contact")
	assert.Equal(t, before, countMailIn(t, f.repo))
	assert.Empty(t, f.events)
}

func TestCreate_RejectsInactiveReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Services().UpdateServiceStatus(ctx, f.cul.ID, registry.LifecycleInactive))
	require.NoError(t, f.repo.Councils().UpdateCouncilStatus(ctx, f.council.ID, registry.LifecycleInactive))

	_, err := f.manager.Create(ctx, CreateInput{Date: day("2024-01-10"), Subject: "A", ServiceIDs: []int64{f.cul.ID, 7}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Services inexistants ou inactifs: 2, 7")

	_, err = f.manager.Create(ctx, CreateInput{Date: day("2024-01-10"), Subject: "A", CouncilIDs: []int64{f.council.ID}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Élus inexistants ou inactifs: 1")

	assert.Zero(t, countMailIn(t, f.repo))
}

func TestCreate_ValidatesScalars(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, CreateInput{Date: day("2024-01-10"), Subject: "   "})
	assert.True(t, registry.IsValidationError(err))

	_, err = f.manager.Create(ctx, CreateInput{Subject: "Sans date"})
	assert.True(t, registry.IsValidationError(err))

	_, err = f.manager.Create(ctx, CreateInput{
		Date:                day("2024-01-10"),
		Subject:             "Type inconnu",
		ServiceDestinations: []registry.ServiceDestination{{ServiceID: f.urb.ID, Type: "COPY"}},
	})
	assert.True(t, registry.IsValidationError(err))
}

func TestUpdate_LeavesAbsentRelations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mail, err := f.manager.Create(ctx, CreateInput{
		Date:       day("2024-01-10"),
		Subject:    "Deux services",
		ServiceIDs: []int64{f.urb.ID, f.cul.ID},
	})
	require.NoError(t, err)

	councils := []int64{f.council.ID}
	_, err = f.manager.Update(ctx, mail.ID, UpdateInput{CouncilIDs: &councils})
	require.NoError(t, err)

	got, err := f.manager.GetByID(ctx, mail.ID)
	require.NoError(t, err)
	assert.Len(t, got.Services, 2)
	require.Len(t, got.Copies, 1)
	assert.Equal(t, f.council.ID, got.Copies[0].CouncilID)
	assert.Equal(t, "Deux services", got.Subject)
}

func TestUpdate_ReplacesPresentRelations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mail, err := f.manager.Create(ctx, CreateInput{
		Date:       day("2024-01-10"),
		Subject:    "Remplacement",
		ServiceIDs: []int64{f.urb.ID},
		CouncilIDs: []int64{f.council.ID},
		ContactIDs: []int64{f.sender.ID},
	})
	require.NoError(t, err)

	services := []int64{f.cul.ID}
	empty := []int64{}
	subject := "Remplacement v2"
	got, err := f.manager.Update(ctx, mail.ID, UpdateInput{
		Subject:    &subject,
		ServiceIDs: &services,
		CouncilIDs: &empty,
	})
	require.NoError(t, err)

	require.Len(t, got.Services, 1)
	assert.Equal(t, f.cul.ID, got.Services[0].ServiceID)
	assert.Empty(t, got.Copies)
	assert.Len(t, got.Recipients, 1)
	assert.Equal(t, "Remplacement v2", got.Subject)

	// receipts from the first routing stay, new service users are added
	require.Len(t, got.UserReceivedMails, 2)
	assert.Equal(t, "ABCD", got.UserReceivedMails[0].UserID)
	assert.Equal(t, "EFGH", got.UserReceivedMails[1].UserID)
}

func TestUpdate_KeepsReadState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mail, err := f.manager.Create(ctx, CreateInput{Date: day("2024-01-10"), Subject: "Lu", ServiceIDs: []int64{f.urb.ID}})
	require.NoError(t, err)
	require.NoError(t, f.manager.MarkAsRead(ctx, mail.ID, "abcd"))

	services := []int64{f.urb.ID, f.cul.ID}
	got, err := f.manager.Update(ctx, mail.ID, UpdateInput{ServiceIDs: &services})
	require.NoError(t, err)

	require.Len(t, got.UserReceivedMails, 2)
	assert.True(t, got.UserReceivedMails[0].IsRead)
	assert.False(t, got.UserReceivedMails[1].IsRead)
}

func TestUpdate_NotFoundBeforeValidation(t *testing.T) {
	f := newFixture(t)

	contacts := []int64{9999}
	_, err := f.manager.Update(context.Background(), 42, UpdateInput{ContactIDs: &contacts})
	assert.True(t, registry.IsNotFoundError(err))
}

func TestUpdate_InvalidReferenceWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mail, err := f.manager.Create(ctx, CreateInput{Date: day("2024-01-10"), Subject: "Avant", ServiceIDs: []int64{f.urb.ID}})
	require.NoError(t, err)

	subject := "Après"
	contacts := []int64{f.sender.ID, 77}
	_, err = f.manager.Update(ctx, mail.ID, UpdateInput{Subject: &subject, ContactIDs: &contacts})
	require.Error(t, err)
	assert.True(t, registry.IsValidationError(err))

	got, err := f.manager.GetByID(ctx, mail.ID)
	require.NoError(t, err)
	assert.Equal(t, "Avant", got.Subject)
	assert.Empty(t, got.Recipients)
}

func TestDelete_RemovesJoinRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mail, err := f.manager.Create(ctx, CreateInput{
		Date:       day("2024-01-10"),
		Subject:    "À supprimer",
		ServiceIDs: []int64{f.urb.ID},
		CouncilIDs: []int64{f.council.ID},
		ContactIDs: []int64{f.sender.ID},
	})
	require.NoError(t, err)

	require.NoError(t, f.manager.Delete(ctx, mail.ID))

	_, err = f.manager.GetByID(ctx, mail.ID)
	assert.True(t, registry.IsNotFoundError(err))
	assert.Zero(t, countMailIn(t, f.repo))

	inbox, err := f.manager.ListForUser(ctx, "ABCD", false, registry.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, inbox.Data)

	assert.True(t, registry.IsNotFoundError(f.manager.Delete(ctx, mail.ID)))
	assert.Equal(t, registry.OpDelete, f.events[len(f.events)-1].Op)
}

func TestGetByID_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mail, err := f.manager.Create(ctx, CreateInput{
		Date:       day("2024-01-10"),
		Subject:    "Stable",
		ServiceIDs: []int64{f.cul.ID, f.urb.ID},
		ContactIDs: []int64{f.sender.ID},
	})
	require.NoError(t, err)

	first, err := f.manager.GetByID(ctx, mail.ID)
	require.NoError(t, err)
	second, err := f.manager.GetByID(ctx, mail.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestList_FiltersAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inputs := []CreateInput{
		{Date: day("2024-01-05"), Subject: "Permis A", NeedsMayor: true, ServiceIDs: []int64{f.urb.ID}},
		{Date: day("2024-01-20"), Subject: "Festival", ServiceIDs: []int64{f.cul.ID}},
		{Date: day("2024-01-20"), Subject: "Permis B", NeedsDgs: true, ServiceIDs: []int64{f.urb.ID}},
	}
	for _, in := range inputs {
		_, err := f.manager.Create(ctx, in)
		require.NoError(t, err)
	}

	all, err := f.manager.List(ctx, registry.MailInFilter{}, registry.PageRequest{})
	require.NoError(t, err)
	require.Len(t, all.Data, 3)
	assert.Equal(t, "Permis B", all.Data[0].Subject)
	assert.Equal(t, "Festival", all.Data[1].Subject)
	assert.Equal(t, "Permis A", all.Data[2].Subject)
	assert.NotNil(t, all.Data[0].Count)

	mayor := true
	from := day("2024-01-01")
	to := day("2024-01-10")
	page, err := f.manager.List(ctx, registry.MailInFilter{NeedsMayor: &mayor, DateFrom: &from, DateTo: &to}, registry.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Permis A", page.Data[0].Subject)

	page, err = f.manager.Search(ctx, "permis", registry.PageRequest{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
	assert.EqualValues(t, 2, page.Pagination.Total)
	assert.True(t, page.Pagination.HasNext)

	page, err = f.manager.List(ctx, registry.MailInFilter{ServiceIDs: []int64{f.cul.ID}}, registry.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Festival", page.Data[0].Subject)

	page, err = f.manager.List(ctx, registry.MailInFilter{ServiceIDs: []int64{f.cul.ID, 999}}, registry.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Festival", page.Data[0].Subject)

	page, err = f.manager.List(ctx, registry.MailInFilter{ServiceIDs: []int64{f.cul.ID, f.urb.ID}}, registry.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Pagination.Total)

	_, err = f.manager.List(ctx, registry.MailInFilter{DateFrom: &to, DateTo: &from}, registry.PageRequest{})
	assert.True(t, registry.IsValidationError(err))
}

func TestList_DateBoundsInclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []CreateInput{
		{Date: day("2024-01-09"), Subject: "Veille"},
		{Date: day("2024-01-10"), Subject: "Jour J"},
		{Date: day("2024-01-11"), Subject: "Lendemain"},
	} {
		_, err := f.manager.Create(ctx, in)
		require.NoError(t, err)
	}

	same := day("2024-01-10")
	page, err := f.manager.List(ctx, registry.MailInFilter{DateFrom: &same, DateTo: &same}, registry.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Jour J", page.Data[0].Subject)

	from := day("2024-01-09")
	to := day("2024-01-11")
	page, err = f.manager.List(ctx, registry.MailInFilter{DateFrom: &from, DateTo: &to}, registry.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Pagination.Total)
}

func TestList_UserFilterNormalized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, CreateInput{Date: day("2024-01-10"), Subject: "Urbanisme", ServiceIDs: []int64{f.urb.ID}})
	require.NoError(t, err)
	_, err = f.manager.Create(ctx, CreateInput{Date: day("2024-01-10"), Subject: "Culture", ServiceIDs: []int64{f.cul.ID}})
	require.NoError(t, err)

	for _, id := range []string{"ABCD", "abcd", " abcd "} {
		page, err := f.manager.List(ctx, registry.MailInFilter{UserID: id}, registry.PageRequest{})
		require.NoError(t, err)
		require.Len(t, page.Data, 1, id)
		assert.Equal(t, "Urbanisme", page.Data[0].Subject)
	}
}

func TestMarkAsRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mail, err := f.manager.Create(ctx, CreateInput{Date: day("2024-01-10"), Subject: "Inbox", ServiceIDs: []int64{f.urb.ID}})
	require.NoError(t, err)

	unread, err := f.manager.ListForUser(ctx, "abcd", true, registry.PageRequest{})
	require.NoError(t, err)
	require.Len(t, unread.Data, 1)

	require.NoError(t, f.manager.MarkAsRead(ctx, mail.ID, "ABCD"))
	events := len(f.events)
	require.NoError(t, f.manager.MarkAsRead(ctx, mail.ID, "EFGH"))
	assert.Len(t, f.events, events, "no event when nothing was marked")

	got, err := f.manager.GetByID(ctx, mail.ID)
	require.NoError(t, err)
	require.Len(t, got.UserReceivedMails, 1)
	assert.True(t, got.UserReceivedMails[0].IsRead)
	require.NotNil(t, got.UserReceivedMails[0].ReadAt)
	assert.True(t, f.readTime.Equal(*got.UserReceivedMails[0].ReadAt))

	unread, err = f.manager.ListForUser(ctx, "ABCD", true, registry.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, unread.Data)

	_, err = f.manager.ListForUser(ctx, "A1", false, registry.PageRequest{})
	assert.True(t, registry.IsValidationError(err))
}

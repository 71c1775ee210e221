//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

type PostgresSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	repo      *Repository
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("mailregistry"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("password"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.repo, err = NewRepository(ctx, &Config{DSN: dsn, MaxOpenConns: 5, MaxIdleConns: 2, ConnMaxLifetime: time.Minute})
	s.Require().NoError(err)
	s.Require().NoError(s.repo.Migrate())
}

func (s *PostgresSuite) TearDownSuite() {
	if s.repo != nil {
		s.repo.Close()
	}
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *PostgresSuite) SetupTest() {
	_, err := s.repo.DB().Exec(`TRUNCATE mail_out_recipients, mail_out, user_received_mail, mail_in_recipients,
		mail_copies, service_received_mail, mail_in, contacts_out, contacts_in, councils, admins, users, services
		RESTART IDENTITY`)
	s.Require().NoError(err)
}

func (s *PostgresSuite) TestMigrationVersion() {
	version, dirty, err := s.repo.MigrationVersion()
	s.Require().NoError(err)
	s.Equal(uint(1), version)
	s.False(dirty)
}

func (s *PostgresSuite) TestUniqueConstraintsSurfaceAsConflict() {
	ctx := context.Background()
	stores := s.repo

	s.Require().NoError(stores.Services().CreateService(ctx, &registry.Service{Name: "Urbanisme", Code: "URB", MailType: registry.MailTypeBoth}))
	err := stores.Services().CreateService(ctx, &registry.Service{Name: "Autre", Code: "URB", MailType: registry.MailTypeIn})
	s.True(registry.IsConflictError(err), "got %v", err)

	s.Require().NoError(stores.Councils().CreateCouncil(ctx, &registry.Council{FirstName: "A", LastName: "B", Position: "Adjoint", Login: "abcd"}))
	err = stores.Councils().CreateCouncil(ctx, &registry.Council{FirstName: "C", LastName: "D", Position: "Adjoint", Login: "abcd"})
	s.True(registry.IsConflictError(err), "got %v", err)
}

func (s *PostgresSuite) TestMailInLifecycle() {
	ctx := context.Background()
	t := s.T()

	svc := &registry.Service{Name: "Urbanisme", Code: "URB", MailType: registry.MailTypeBoth}
	require.NoError(t, s.repo.Services().CreateService(ctx, svc))
	require.NoError(t, s.repo.Users().CreateUser(ctx, &registry.User{ID: "ABCD", PasswordHash: "x", FirstName: "Ana", LastName: "Dupont", ServiceID: svc.ID, Role: registry.RoleUser}))
	contact := &registry.Contact{Name: "Préfecture"}
	require.NoError(t, s.repo.Contacts().CreateContact(ctx, registry.DirectionIn, contact))

	mail := &registry.MailIn{Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Subject: "Permis de construire"}
	err := registry.RunInTx(ctx, s.repo, func(tx registry.Transaction) error {
		if err := tx.MailIn().CreateMailIn(ctx, mail); err != nil {
			return err
		}
		if err := tx.MailIn().AddServiceDestinations(ctx, mail.ID, []registry.ServiceDestination{
			{ServiceID: svc.ID, Type: registry.DestinationInfo},
			{ServiceID: svc.ID, Type: registry.DestinationSuivi},
		}); err != nil {
			return err
		}
		if err := tx.MailIn().AddRecipients(ctx, mail.ID, []int64{contact.ID}); err != nil {
			return err
		}
		return tx.MailIn().AddUserReceipts(ctx, mail.ID, []string{"ABCD", "ABCD"})
	})
	require.NoError(t, err)

	got, err := s.repo.MailIn().GetMailIn(ctx, mail.ID)
	require.NoError(t, err)
	s.Equal(mail.Date, got.Date)
	s.Len(got.Services, 2)
	s.Len(got.UserReceivedMails, 1)
	s.Equal("Préfecture", got.Recipients[0].Contact.Name)

	n, err := s.repo.MailIn().MarkAsRead(ctx, mail.ID, "ABCD", time.Now())
	require.NoError(t, err)
	s.EqualValues(1, n)

	// a failing relation insert rolls the parent row back too
	before, err := s.repo.Stats().CountMailIn(ctx, registry.MailInFilter{})
	require.NoError(t, err)
	err = registry.RunInTx(ctx, s.repo, func(tx registry.Transaction) error {
		m := &registry.MailIn{Date: time.Now(), Subject: "Orphelin"}
		if err := tx.MailIn().CreateMailIn(ctx, m); err != nil {
			return err
		}
		return tx.MailIn().AddRecipients(ctx, m.ID, []int64{9999})
	})
	s.True(registry.IsValidationError(err), "got %v", err)
	after, err := s.repo.Stats().CountMailIn(ctx, registry.MailInFilter{})
	require.NoError(t, err)
	s.Equal(before, after)

	// delete is refused while join rows remain
	err = s.repo.MailIn().DeleteMailIn(ctx, mail.ID)
	s.True(registry.IsValidationError(err), "got %v", err)
}

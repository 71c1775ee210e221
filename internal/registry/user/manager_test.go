package user

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/songzhibin97/mailregistry/internal/registry/auth"
	"github.com/songzhibin97/mailregistry/internal/registry/store/memory"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

func setup(t *testing.T) (*Manager, *memory.Repository, *registry.Service) {
	t.Helper()
	repo := memory.NewRepository()
	svc := &registry.Service{Name: "Urbanisme", Code: "URB", MailType: registry.MailTypeBoth}
	require.NoError(t, repo.Services().CreateService(context.Background(), svc))
	return NewManager(repo, auth.NewPasswordHasher(bcrypt.MinCost), WithLogger(log.Nop())), repo, svc
}

func TestCreate_HidesHash(t *testing.T) {
	m, repo, svc := setup(t)
	ctx := context.Background()

	u, err := m.Create(ctx, CreateInput{ID: "abcd", Password: "motdepasse", FirstName: "Paul", LastName: "Durand", Email: "paul@ville.fr", ServiceID: svc.ID})
	require.NoError(t, err)
	assert.Equal(t, "ABCD", u.ID)
	assert.Empty(t, u.PasswordHash)
	assert.Equal(t, registry.RoleUser, u.Role)
	require.NotNil(t, u.Service)
	assert.Equal(t, "URB", u.Service.Code)

	stored, err := repo.Users().GetUser(ctx, "ABCD")
	require.NoError(t, err)
	assert.NotEqual(t, "motdepasse", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("motdepasse")))

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")
}

func TestCreate_Validation(t *testing.T) {
	m, repo, svc := setup(t)
	ctx := context.Background()
	require.NoError(t, repo.Services().CreateService(ctx, &registry.Service{Name: "Fermé", Code: "OLD", MailType: registry.MailTypeIn, Status: registry.LifecycleInactive}))

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"id with digits", CreateInput{ID: "AB12", Password: "motdepasse", FirstName: "A", LastName: "B", ServiceID: svc.ID}},
		{"id too long", CreateInput{ID: "ABCDE", Password: "motdepasse", FirstName: "A", LastName: "B", ServiceID: svc.ID}},
		{"short password", CreateInput{ID: "ABCD", Password: "court", FirstName: "A", LastName: "B", ServiceID: svc.ID}},
		{"bad email", CreateInput{ID: "ABCD", Password: "motdepasse", FirstName: "A", LastName: "B", Email: "pas-un-email", ServiceID: svc.ID}},
		{"unknown service", CreateInput{ID: "ABCD", Password: "motdepasse", FirstName: "A", LastName: "B", ServiceID: 99}},
		{"inactive service", CreateInput{ID: "ABCD", Password: "motdepasse", FirstName: "A", LastName: "B", ServiceID: 2}},
		{"bad role", CreateInput{ID: "ABCD", Password: "motdepasse", FirstName: "A", LastName: "B", ServiceID: svc.ID, Role: "ROOT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Create(ctx, tt.in)
			assert.True(t, registry.IsValidationError(err), "got %v", err)
		})
	}

	_, err := m.GetByID(ctx, "ABCD", true)
	assert.True(t, registry.IsNotFoundError(err))
}

func TestCreate_DuplicateID(t *testing.T) {
	m, _, svc := setup(t)
	ctx := context.Background()

	_, err := m.Create(ctx, CreateInput{ID: "ABCD", Password: "motdepasse", FirstName: "A", LastName: "B", ServiceID: svc.ID})
	require.NoError(t, err)

	_, err = m.Create(ctx, CreateInput{ID: "abcd", Password: "motdepasse", FirstName: "C", LastName: "D", ServiceID: svc.ID})
	assert.True(t, registry.IsConflictError(err))
}

func TestAuthenticate(t *testing.T) {
	m, _, svc := setup(t)
	ctx := context.Background()

	_, err := m.Create(ctx, CreateInput{ID: "ABCD", Password: "motdepasse", FirstName: "A", LastName: "B", ServiceID: svc.ID})
	require.NoError(t, err)

	u, err := m.Authenticate(ctx, "abcd", "motdepasse")
	require.NoError(t, err)
	assert.Equal(t, "ABCD", u.ID)
	assert.Empty(t, u.PasswordHash)

	_, err = m.Authenticate(ctx, "ABCD", "mauvais-mdp")
	assert.True(t, registry.IsUnauthorizedError(err))

	_, err = m.Authenticate(ctx, "ZZZZ", "motdepasse")
	assert.True(t, registry.IsUnauthorizedError(err))

	require.NoError(t, m.Delete(ctx, "ABCD"))
	_, err = m.Authenticate(ctx, "ABCD", "motdepasse")
	assert.True(t, registry.IsUnauthorizedError(err))
}

func TestUpdate_PasswordAndReactivation(t *testing.T) {
	m, _, svc := setup(t)
	ctx := context.Background()

	_, err := m.Create(ctx, CreateInput{ID: "ABCD", Password: "motdepasse", FirstName: "A", LastName: "B", ServiceID: svc.ID})
	require.NoError(t, err)

	last := "Bernard"
	u, err := m.Update(ctx, "ABCD", UpdateInput{LastName: &last})
	require.NoError(t, err)
	assert.Equal(t, "Bernard", u.LastName)

	_, err = m.Authenticate(ctx, "ABCD", "motdepasse")
	require.NoError(t, err, "password kept when absent")

	pw := "nouveau-mdp"
	_, err = m.Update(ctx, "ABCD", UpdateInput{Password: &pw})
	require.NoError(t, err)
	_, err = m.Authenticate(ctx, "ABCD", "nouveau-mdp")
	require.NoError(t, err)

	short := "x"
	_, err = m.Update(ctx, "ABCD", UpdateInput{Password: &short})
	assert.True(t, registry.IsValidationError(err))

	require.NoError(t, m.Delete(ctx, "ABCD"))
	got, err := m.GetByID(ctx, "ABCD", true)
	require.NoError(t, err)
	assert.False(t, got.Status.IsActive())

	active := true
	got, err = m.Update(ctx, "ABCD", UpdateInput{Active: &active})
	require.NoError(t, err)
	assert.True(t, got.Status.IsActive())
}

func TestList_ByService(t *testing.T) {
	m, repo, svc := setup(t)
	ctx := context.Background()
	other := &registry.Service{Name: "Culture", Code: "CUL", MailType: registry.MailTypeIn}
	require.NoError(t, repo.Services().CreateService(ctx, other))

	for _, in := range []CreateInput{
		{ID: "ABCD", Password: "motdepasse", FirstName: "Paul", LastName: "Zidane", ServiceID: svc.ID},
		{ID: "EFGH", Password: "motdepasse", FirstName: "Lea", LastName: "Arnaud", ServiceID: svc.ID},
		{ID: "IJKL", Password: "motdepasse", FirstName: "Tom", LastName: "Morel", ServiceID: other.ID},
	} {
		_, err := m.Create(ctx, in)
		require.NoError(t, err)
	}

	page, err := m.List(ctx, registry.UserFilter{ServiceID: svc.ID})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "EFGH", page.Data[0].ID)
	for _, u := range page.Data {
		assert.Empty(t, u.PasswordHash)
	}
}

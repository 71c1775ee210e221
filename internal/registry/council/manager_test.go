package council

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/mailregistry/internal/registry/store/memory"
	"github.com/songzhibin97/mailregistry/pkg/log"
	"github.com/songzhibin97/mailregistry/pkg/registry"
)

func newManager() *Manager {
	return NewManager(memory.NewRepository(), WithLogger(log.Nop()))
}

func input(login string) CreateInput {
	return CreateInput{FirstName: "Marie", LastName: "Curie", Position: "Conseillère", Login: login}
}

func TestCreate_DuplicateLogin(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	first, err := m.Create(ctx, input("abcd"))
	require.NoError(t, err)

	_, err = m.Create(ctx, CreateInput{FirstName: "Autre", LastName: "Personne", Position: "Maire", Login: "  ABCD "})
	require.Error(t, err)
	assert.True(t, registry.IsConflictError(err))

	got, err := m.GetByID(ctx, first.ID, false)
	require.NoError(t, err)
	assert.True(t, got.Status.IsActive())
	assert.Equal(t, "Marie", got.FirstName)
	assert.Equal(t, "abcd", got.Login)
}

func TestCreate_RequiresFields(t *testing.T) {
	m := newManager()

	_, err := m.Create(context.Background(), CreateInput{FirstName: "Marie", Login: "mc"})
	assert.True(t, registry.IsValidationError(err))
}

func TestDelete_IsSoft(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	c, err := m.Create(ctx, input("mcurie"))
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, c.ID))

	_, err = m.GetByID(ctx, c.ID, false)
	assert.True(t, registry.IsNotFoundError(err))

	got, err := m.GetByID(ctx, c.ID, true)
	require.NoError(t, err)
	assert.Equal(t, registry.LifecycleInactive, got.Status)

	assert.True(t, registry.IsNotFoundError(m.Delete(ctx, c.ID)))

	page, err := m.List(ctx, registry.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Data)

	page, err = m.List(ctx, registry.ListOptions{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
}

func TestUpdate_ReactivatesAndChecksLogin(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	a, err := m.Create(ctx, input("alpha"))
	require.NoError(t, err)
	_, err = m.Create(ctx, input("beta"))
	require.NoError(t, err)

	taken := "Beta"
	_, err = m.Update(ctx, a.ID, UpdateInput{Login: &taken})
	assert.True(t, registry.IsConflictError(err))

	require.NoError(t, m.Delete(ctx, a.ID))

	active := true
	same := "ALPHA"
	position := "Maire adjoint"
	got, err := m.Update(ctx, a.ID, UpdateInput{Active: &active, Login: &same, Position: &position})
	require.NoError(t, err)
	assert.True(t, got.Status.IsActive())
	assert.Equal(t, "alpha", got.Login)
	assert.Equal(t, "Maire adjoint", got.Position)

	_, err = m.Update(ctx, 404, UpdateInput{Position: &position})
	assert.True(t, registry.IsNotFoundError(err))
}

func TestList_Search(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	for _, in := range []CreateInput{
		{FirstName: "Jean", LastName: "Zola", Position: "Maire", Login: "jzola"},
		{FirstName: "Ana", LastName: "Blanc", Position: "Adjointe culture", Login: "ablanc"},
	} {
		_, err := m.Create(ctx, in)
		require.NoError(t, err)
	}

	page, err := m.List(ctx, registry.ListOptions{Query: "culture"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Blanc", page.Data[0].LastName)

	page, err = m.List(ctx, registry.ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Blanc", page.Data[0].LastName)
}
